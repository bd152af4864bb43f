// Category profiles: the per-category variant table behind every actor.
// Each profile tunes reputation growth, default strategy, and naming.
package agents

import "github.com/talgya/swarm-arena/internal/economy"

// Profile defines how a service category modifies shared actor behavior.
type Profile struct {
	// ReputationGain is added on every delivered job.
	ReputationGain float64

	// HighValueBonus is added when the payment is at least HighValueFactor × base price.
	HighValueBonus float64

	// TrustSensitive categories earn TrustBonus on top of every delivery;
	// clients in these categories reward reliability.
	TrustSensitive bool
	TrustBonus     float64

	// Default strategy knobs.
	QualityFocus      float64
	AllianceThreshold float64
	RiskTolerance     float64

	// Deliverable names what the actor hands over, for event text.
	Deliverable string

	// NameStems seed display names.
	NameStems []string
}

// HighValueFactor marks a payment as high-value relative to base price.
const HighValueFactor = 1.5

// profiles maps each category to its profile.
var profiles = map[economy.Category]Profile{
	economy.CategoryDataAnalysis: {
		ReputationGain:    1.0,
		HighValueBonus:    1.0,
		QualityFocus:      0.7,
		AllianceThreshold: 55,
		RiskTolerance:     0.4,
		Deliverable:       "report",
		NameStems:         []string{"Sigma", "Vector", "Quant", "Delta"},
	},
	economy.CategoryContentWriting: {
		ReputationGain:    0.8,
		HighValueBonus:    0.5,
		QualityFocus:      0.5,
		AllianceThreshold: 50,
		RiskTolerance:     0.6,
		Deliverable:       "draft",
		NameStems:         []string{"Quill", "Prose", "Verse", "Inkwell"},
	},
	economy.CategoryCodeReview: {
		ReputationGain:    1.0,
		HighValueBonus:    1.0,
		TrustSensitive:    true,
		TrustBonus:        0.5,
		QualityFocus:      0.8,
		AllianceThreshold: 60,
		RiskTolerance:     0.3,
		Deliverable:       "review",
		NameStems:         []string{"Linter", "Diff", "Patch", "Commit"},
	},
	economy.CategoryTranslation: {
		ReputationGain:    0.7,
		HighValueBonus:    0.5,
		QualityFocus:      0.6,
		AllianceThreshold: 45,
		RiskTolerance:     0.5,
		Deliverable:       "translation",
		NameStems:         []string{"Babel", "Lingo", "Polyglot", "Rosetta"},
	},
	economy.CategoryResearch: {
		ReputationGain:    1.2,
		HighValueBonus:    1.5,
		QualityFocus:      0.7,
		AllianceThreshold: 55,
		RiskTolerance:     0.5,
		Deliverable:       "brief",
		NameStems:         []string{"Scholar", "Archive", "Index", "Atlas"},
	},
	economy.CategorySecurityAudit: {
		ReputationGain:    1.5,
		HighValueBonus:    2.0,
		TrustSensitive:    true,
		TrustBonus:        1.0,
		QualityFocus:      0.9,
		AllianceThreshold: 65,
		RiskTolerance:     0.2,
		Deliverable:       "audit",
		NameStems:         []string{"Sentinel", "Aegis", "Warden", "Bastion"},
	},
}

// ProfileFor returns the profile for a category. Unknown categories get a
// plain profile with a unit reputation gain.
func ProfileFor(c economy.Category) Profile {
	if p, ok := profiles[c]; ok {
		return p
	}
	return Profile{
		ReputationGain:    1.0,
		QualityFocus:      0.5,
		AllianceThreshold: 50,
		RiskTolerance:     0.5,
		Deliverable:       "result",
		NameStems:         []string{"Agent"},
	}
}

// ReputationDelta is the reputation gained for delivering a job at payment.
func (p Profile) ReputationDelta(payment, basePrice float64) float64 {
	d := p.ReputationGain
	if basePrice > 0 && payment >= HighValueFactor*basePrice {
		d += p.HighValueBonus
	}
	if p.TrustSensitive {
		d += p.TrustBonus
	}
	return d
}
