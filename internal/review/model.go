// Package review holds the violation lifecycle: the review result model, the
// JSON-backed store with its approve/reject and re-review lookups, and the
// service that runs a file through the LLM and the extractor.
package review

import (
	"errors"
	"time"

	"github.com/tildaslashalef/critiq/internal/extractor"
	"github.com/tildaslashalef/critiq/internal/ulid"
)

var (
	// ErrReviewNotFound is returned when no stored result has the given id
	ErrReviewNotFound = errors.New("review result not found")
	// ErrIndexOutOfRange is returned for a violation index outside the result
	ErrIndexOutOfRange = errors.New("violation index out of range")
	// ErrInvalidStatus is returned for a status that is not a valid target
	ErrInvalidStatus = errors.New("invalid violation status")
)

// ViolationStatus is the reviewer's decision on a violation
type ViolationStatus string

const (
	StatusPending  ViolationStatus = "pending"
	StatusApproved ViolationStatus = "approved"
	StatusRejected ViolationStatus = "rejected"
)

// ParseViolationStatus maps user input onto a status
func ParseViolationStatus(s string) (ViolationStatus, error) {
	switch ViolationStatus(s) {
	case StatusPending, StatusApproved, StatusRejected:
		return ViolationStatus(s), nil
	}
	return "", ErrInvalidStatus
}

// Severity is the weight of a violation
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// ResultStatus is the outcome of the review pass itself
type ResultStatus string

const (
	ResultCompleted ResultStatus = "completed"
	ResultFailed    ResultStatus = "failed"
)

// Violation is one issue flagged by the reviewer
type Violation struct {
	Line         int             `json:"line"`
	Severity     Severity        `json:"severity"`
	Message      string          `json:"message"`
	OriginalCode string          `json:"originalCode,omitempty"`
	Suggestion   string          `json:"suggestion,omitempty"`
	Status       ViolationStatus `json:"status"`
	ReviewNote   string          `json:"reviewNote,omitempty"`
}

// ReviewResult is one review pass over one file
type ReviewResult struct {
	ID                  string       `json:"id"`
	File                string       `json:"file"`
	Violations          []Violation  `json:"violations"`
	Summary             string       `json:"summary"`
	Timestamp           int64        `json:"timestamp"` // epoch ms
	Status              ResultStatus `json:"status"`
	LastReviewTimestamp *int64       `json:"lastReviewTimestamp,omitempty"`
}

// NewResult creates a completed result for file stamped at now
func NewResult(file string, now time.Time) *ReviewResult {
	return &ReviewResult{
		ID:         ulid.NewWithTime(now, ulid.PrefixReview).String(),
		File:       file,
		Violations: []Violation{},
		Timestamp:  now.UnixMilli(),
		Status:     ResultCompleted,
	}
}

// Created returns Timestamp as a time
func (r *ReviewResult) Created() time.Time {
	return time.UnixMilli(r.Timestamp)
}

// Count returns how many violations have the given status
func (r *ReviewResult) Count(status ViolationStatus) int {
	n := 0
	for _, v := range r.Violations {
		if v.Status == status {
			n++
		}
	}
	return n
}

// FromFindings converts extractor output into pending violations, keeping order
func FromFindings(findings []extractor.Finding) []Violation {
	out := make([]Violation, 0, len(findings))
	for _, f := range findings {
		out = append(out, Violation{
			Line:         f.Line,
			Severity:     Severity(extractor.NormalizeSeverity(f.Severity)),
			Message:      f.Message,
			OriginalCode: f.OriginalCode,
			Suggestion:   f.Suggestion,
			Status:       StatusPending,
		})
	}
	return out
}

// ReReviewFeedback is the prior decisions fed back into a re-review
type ReReviewFeedback struct {
	Approved []Violation `json:"approved"`
	Rejected []Violation `json:"rejected"`
}

// Empty reports whether there is no feedback at all
func (f ReReviewFeedback) Empty() bool {
	return len(f.Approved) == 0 && len(f.Rejected) == 0
}

func partition(r *ReviewResult) ReReviewFeedback {
	fb := ReReviewFeedback{Approved: []Violation{}, Rejected: []Violation{}}
	if r == nil {
		return fb
	}
	for _, v := range r.Violations {
		switch v.Status {
		case StatusApproved:
			fb.Approved = append(fb.Approved, v)
		case StatusRejected:
			fb.Rejected = append(fb.Rejected, v)
		}
	}
	return fb
}
