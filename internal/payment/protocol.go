// Package payment implements the three-message micropayment handshake between a
// requester and a provider: challenge, authorization, settlement.
//
// The digest scheme is verifiable but not hardened against an adversary that
// can see the fields; it proves integrity of the authorization, not identity.
package payment

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/gowebpki/jcs"
)

// MinorUnits is the number of minor units in one currency unit.
const MinorUnits = 1_000_000

// DefaultMaxAge is the freshness window of a challenge.
const DefaultMaxAge = 60 * time.Second

var (
	ErrDigestMismatch = errors.New("authorization digest mismatch")
	ErrOutsideWindow  = errors.New("authorization outside validity window")
)

// Challenge is sent by the provider to the requester.
type Challenge struct {
	Category      string `json:"category"`
	AmountMinor   int64  `json:"amount_minor"`
	PayTo         string `json:"pay_to"`
	Resource      string `json:"resource"`
	MaxAgeSeconds int64  `json:"max_age_seconds"`
	IssuedAt      int64  `json:"issued_at"`
}

// Authorization is the requester's signed-by-digest answer to a challenge.
type Authorization struct {
	From        string `json:"from"`
	To          string `json:"to"`
	AmountMinor int64  `json:"amount_minor"`
	ValidAfter  int64  `json:"valid_after"`
	ValidBefore int64  `json:"valid_before"`
	Nonce       string `json:"nonce"`
	Digest      string `json:"digest"`
}

// Settlement is the provider's verified result.
type Settlement struct {
	Success   bool      `json:"success"`
	Reference string    `json:"reference,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Reason    string    `json:"reason,omitempty"`
	Err       error     `json:"-"`
}

// Protocol runs the handshake. Now is injectable so tests can pin the clock.
type Protocol struct {
	Now    func() time.Time
	MaxAge time.Duration
}

// NewProtocol creates a protocol on the wall clock with the default window.
func NewProtocol() *Protocol {
	return &Protocol{Now: time.Now, MaxAge: DefaultMaxAge}
}

func (p *Protocol) now() time.Time {
	if p.Now == nil {
		return time.Now()
	}
	return p.Now()
}

// ToMinor converts currency units to minor units.
func ToMinor(amount float64) int64 {
	return int64(math.Round(amount * MinorUnits))
}

// FromMinor converts minor units to currency units.
func FromMinor(minor int64) float64 {
	return float64(minor) / MinorUnits
}

// IssueChallenge builds the provider's challenge for a resource.
func (p *Protocol) IssueChallenge(payee, category string, amount float64, resource string) Challenge {
	maxAge := p.MaxAge
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return Challenge{
		Category:      category,
		AmountMinor:   ToMinor(amount),
		PayTo:         payee,
		Resource:      resource,
		MaxAgeSeconds: int64(maxAge / time.Second),
		IssuedAt:      p.now().Unix(),
	}
}

// Authorize answers a challenge on behalf of payer. An empty nonce gets a fresh one.
func (p *Protocol) Authorize(ch Challenge, payer, nonce string) (Authorization, error) {
	if nonce == "" {
		nonce = uuid.NewString()
	}
	now := p.now().Unix()
	auth := Authorization{
		From:        payer,
		To:          ch.PayTo,
		AmountMinor: ch.AmountMinor,
		ValidAfter:  now,
		ValidBefore: now + ch.MaxAgeSeconds,
		Nonce:       nonce,
	}
	digest, err := Digest(auth.From, auth.To, auth.AmountMinor, auth.Nonce)
	if err != nil {
		return Authorization{}, err
	}
	auth.Digest = digest
	return auth, nil
}

// Settle verifies an authorization. It succeeds iff the digest recomputes and
// the current time lies in [ValidAfter, ValidBefore].
func (p *Protocol) Settle(auth Authorization) Settlement {
	now := p.now()
	s := Settlement{Timestamp: now}

	want, err := Digest(auth.From, auth.To, auth.AmountMinor, auth.Nonce)
	if err != nil {
		s.Err = err
		s.Reason = err.Error()
		return s
	}
	if want != auth.Digest {
		s.Err = ErrDigestMismatch
		s.Reason = ErrDigestMismatch.Error()
		return s
	}
	unix := now.Unix()
	if unix < auth.ValidAfter || unix > auth.ValidBefore {
		s.Err = ErrOutsideWindow
		s.Reason = fmt.Sprintf("%s: now=%d window=[%d,%d]", ErrOutsideWindow, unix, auth.ValidAfter, auth.ValidBefore)
		return s
	}

	s.Success = true
	s.Reference = "stl_" + auth.Digest[len(digestPrefix):len(digestPrefix)+24]
	return s
}

// Pay runs the full handshake for one transfer and returns the settlement.
func (p *Protocol) Pay(payer, payee, category string, amount float64, resource string) (Settlement, error) {
	ch := p.IssueChallenge(payee, category, amount, resource)
	auth, err := p.Authorize(ch, payer, "")
	if err != nil {
		return Settlement{Timestamp: p.now(), Reason: err.Error(), Err: err}, err
	}
	return p.Settle(auth), nil
}

const digestPrefix = "sha256:"

// digestFields is the canonical payload behind an authorization digest.
type digestFields struct {
	Amount int64  `json:"amount"`
	From   string `json:"from"`
	Nonce  string `json:"nonce"`
	To     string `json:"to"`
}

// Digest computes sha256 over the RFC 8785 canonical JSON of {payer, payee, amount, nonce}.
func Digest(from, to string, amountMinor int64, nonce string) (string, error) {
	raw, err := json.Marshal(digestFields{Amount: amountMinor, From: from, Nonce: nonce, To: to})
	if err != nil {
		return "", fmt.Errorf("marshal digest fields: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("canonicalize digest fields: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return digestPrefix + hex.EncodeToString(sum[:]), nil
}
