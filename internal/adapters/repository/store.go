// Package repository defines the collaborator stores the judging engine
// reads from and provides in-memory and seed-file implementations.
package repository

import (
	"context"
	"time"

	"github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/pkg/metrics"
)

// ScoreStore persists judge scores.
type ScoreStore interface {
	// Create stores a new score. A second score for the same
	// (submission, judge) pair overwrites the first, keeping its id.
	Create(ctx context.Context, s model.Score) error
	// Update replaces an existing score by id. Returns ErrNotFound if unknown.
	Update(ctx context.Context, s model.Score) error
	GetBySubmissionID(ctx context.Context, submissionID string) ([]model.Score, error)
	// GetBySubmissionAndJudge returns nil when the judge has not scored the submission.
	GetBySubmissionAndJudge(ctx context.Context, submissionID, judgeID string) (*model.Score, error)
	GetBySubmissionIDs(ctx context.Context, ids []string) (map[string][]model.Score, error)
	GetByEventID(ctx context.Context, eventID string) ([]model.Score, error)
	// StreamBySubmissionID delivers a notification after every write to the
	// submission's scores until ctx is done, then closes the channel.
	StreamBySubmissionID(ctx context.Context, submissionID string) (<-chan model.ScoreChanged, error)
}

// SubmissionStore reads submissions.
type SubmissionStore interface {
	// GetByID returns ErrNotFound if the submission is unknown.
	GetByID(ctx context.Context, id string) (*model.Submission, error)
	GetByEventID(ctx context.Context, eventID string) ([]model.Submission, error)
	GetByTeamID(ctx context.Context, teamID string) ([]model.Submission, error)
}

// RubricStore persists rubrics.
type RubricStore interface {
	Create(ctx context.Context, r model.Rubric) error
	// GetByID returns ErrNotFound if the rubric is unknown.
	GetByID(ctx context.Context, id string) (*model.Rubric, error)
	List(ctx context.Context, f model.RubricFilter) ([]model.Rubric, error)
	Clone(ctx context.Context, id string, o model.RubricOverrides) (model.Rubric, error)
}

// Directory resolves display records. Unknown ids yield nil without error.
type Directory interface {
	GetTeamByID(ctx context.Context, id string) (*model.Team, error)
	GetEventByID(ctx context.Context, id string) (*model.Event, error)
	GetMemberByID(ctx context.Context, id string) (*model.Member, error)
}

// Writer loads reference records; used by seeding.
type Writer interface {
	PutEvent(ctx context.Context, e model.Event) error
	PutTeam(ctx context.Context, t model.Team) error
	PutMember(ctx context.Context, m model.Member) error
	PutSubmission(ctx context.Context, s model.Submission) error
}

// Store is every collaborator the service needs.
type Store interface {
	Scores() ScoreStore
	Submissions() SubmissionStore
	Rubrics() RubricStore
	Directory
	Writer
	Close() error
}

// observe records a store call's latency.
func observe(op string, start time.Time) {
	metrics.RecordStoreLatency(op, float64(time.Since(start).Microseconds())/1000)
}
