package model

import "time"

// SubmissionStatus is the lifecycle state of a submission.
type SubmissionStatus string

// Submission lifecycle states.
const (
	StatusDraft       SubmissionStatus = "draft"
	StatusSubmitted   SubmissionStatus = "submitted"
	StatusUnderReview SubmissionStatus = "under_review"
	StatusApproved    SubmissionStatus = "approved"
	StatusRejected    SubmissionStatus = "rejected"
)

// Ranked reports whether submissions in this state enter leaderboards.
func (s SubmissionStatus) Ranked() bool {
	return s == StatusSubmitted || s == StatusApproved
}

// Valid reports whether s is a known status.
func (s SubmissionStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusSubmitted, StatusUnderReview, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Submission is a team's or member's entry into an event.
type Submission struct {
	ID          string           `json:"id"`
	EventID     string           `json:"event_id"`
	TeamID      string           `json:"team_id,omitempty"`
	SubmittedBy string           `json:"submitted_by"`
	Status      SubmissionStatus `json:"status"`
	CreatedAt   time.Time        `json:"created_at"`
	SubmittedAt *time.Time       `json:"submitted_at,omitempty"`
}

// EffectiveTime is SubmittedAt when present, else CreatedAt.
func (s Submission) EffectiveTime() time.Time {
	if s.SubmittedAt != nil {
		return *s.SubmittedAt
	}
	return s.CreatedAt
}

// Team is the display-relevant slice of a team record.
type Team struct {
	ID      string `json:"id" yaml:"id"`
	Name    string `json:"name" yaml:"name"`
	GroupID string `json:"group_id,omitempty" yaml:"group_id"`
}

// Event is the display-relevant slice of an event record.
type Event struct {
	ID      string `json:"id" yaml:"id"`
	Title   string `json:"title" yaml:"title"`
	GroupID string `json:"group_id,omitempty" yaml:"group_id"`
}

// Member is a participant credited on individual leaderboards.
type Member struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}
