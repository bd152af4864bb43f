package economy

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// WorkStatus is the lifecycle state of a work item.
type WorkStatus string

const (
	WorkPending    WorkStatus = "pending"
	WorkInProgress WorkStatus = "in_progress"
	WorkCompleted  WorkStatus = "completed"
	WorkFailed     WorkStatus = "failed"
)

// WorkItem is a unit of requested work with an offered payment.
// Created by the generator, mutated only by the matcher.
type WorkItem struct {
	ID          string     `json:"id"`
	RequesterID string     `json:"requester_id"`
	AssignedTo  string     `json:"assigned_to,omitempty"`
	Category    Category   `json:"category"`
	Payment     float64    `json:"payment"`
	Quote       float64    `json:"quote,omitempty"` // provider's asking price at match time
	Description string     `json:"description"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Status      WorkStatus `json:"status"`
	Scam        bool       `json:"scam,omitempty"`
	FailReason  string     `json:"fail_reason,omitempty"`
}

// NewWorkItem creates a pending work item.
func NewWorkItem(requester string, cat Category, payment float64, desc string, now time.Time) *WorkItem {
	return &WorkItem{
		ID:          uuid.NewString(),
		RequesterID: requester,
		Category:    cat,
		Payment:     payment,
		Description: desc,
		CreatedAt:   now,
		Status:      WorkPending,
	}
}

// Terminal reports whether the item is completed or failed.
func (w *WorkItem) Terminal() bool {
	return w.Status == WorkCompleted || w.Status == WorkFailed
}

// Assign moves a pending item to in-progress for an actor.
func (w *WorkItem) Assign(actorID string) error {
	if w.Status != WorkPending {
		return fmt.Errorf("work %s: assign from status %s", w.ID, w.Status)
	}
	w.AssignedTo = actorID
	w.Status = WorkInProgress
	return nil
}

// Complete marks the item completed.
func (w *WorkItem) Complete(now time.Time, scam bool) {
	w.Status = WorkCompleted
	w.Scam = scam
	w.CompletedAt = &now
}

// Fail marks the item failed with a reason.
func (w *WorkItem) Fail(now time.Time, reason string) {
	w.Status = WorkFailed
	w.FailReason = reason
	w.CompletedAt = &now
}

// descriptions gives each category a few request templates.
var descriptions = map[Category][]string{
	CategoryDataAnalysis:   {"Summarize a sales dataset", "Detect anomalies in sensor logs", "Build a cohort retention table"},
	CategoryContentWriting: {"Draft a product announcement", "Write a newsletter intro", "Rewrite landing page copy"},
	CategoryCodeReview:     {"Review a payment handler", "Audit a pull request for races", "Check an API for error handling"},
	CategoryTranslation:    {"Translate release notes to Spanish", "Localize onboarding strings", "Translate a support reply"},
	CategoryResearch:       {"Compare three vector databases", "Survey pricing of competitors", "Collect sources on agent markets"},
	CategorySecurityAudit:  {"Scan a contract for reentrancy", "Review IAM policies", "Assess a login flow for injection"},
}

// Description picks a request template for a category using i as the selector.
func Description(c Category, i int) string {
	list := descriptions[c]
	if len(list) == 0 {
		return string(c) + " request"
	}
	if i < 0 {
		i = -i
	}
	return list[i%len(list)]
}
