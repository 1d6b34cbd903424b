// Package pgstore implements the collaborator stores on PostgreSQL via bun.
package pgstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/okian/arena/internal/adapters/repository"
	"github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/pkg/logger"
	"github.com/okian/arena/pkg/metrics"
)

// scoreChannel is the LISTEN/NOTIFY channel carrying score writes.
const scoreChannel = "arena_score_changed"

// Store is a repository.Store backed by PostgreSQL.
type Store struct {
	db  *bun.DB
	log logger.Logger
	now func() time.Time
}

var _ repository.Store = (*Store)(nil)

// Open connects to dsn and creates any missing tables.
func Open(ctx context.Context, dsn string) (*Store, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	if err := sqldb.PingContext(ctx); err != nil {
		_ = sqldb.Close()
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	s := New(bun.NewDB(sqldb, pgdialect.New()))
	if err := s.CreateSchema(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing bun database.
func New(db *bun.DB) *Store {
	return &Store{db: db, log: logger.Get().Named("pgstore"), now: time.Now}
}

// CreateSchema creates the tables if they do not exist.
func (s *Store) CreateSchema(ctx context.Context) error {
	for _, m := range []any{
		(*eventRow)(nil), (*teamRow)(nil), (*memberRow)(nil),
		(*submissionRow)(nil), (*scoreRow)(nil), (*rubricRow)(nil),
	} {
		if _, err := s.db.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	type index struct {
		model        any
		name, column string
	}
	indexes := []index{
		{(*submissionRow)(nil), "submissions_event_idx", "event_id"},
		{(*submissionRow)(nil), "submissions_team_idx", "team_id"},
		{(*scoreRow)(nil), "scores_event_idx", "event_id"},
	}
	for _, ix := range indexes {
		if _, err := s.db.NewCreateIndex().Model(ix.model).Index(ix.name).Column(ix.column).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create index %s: %w", ix.name, err)
		}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Scores() repository.ScoreStore           { return pgScores{s} }
func (s *Store) Submissions() repository.SubmissionStore { return pgSubmissions{s} }
func (s *Store) Rubrics() repository.RubricStore         { return pgRubrics{s} }

func (s *Store) GetTeamByID(ctx context.Context, id string) (*model.Team, error) {
	row := new(teamRow)
	if err := s.db.NewSelect().Model(row).Where("id = ?", id).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get team: %w", err)
	}
	return &model.Team{ID: row.ID, Name: row.Name, GroupID: row.GroupID}, nil
}

func (s *Store) GetEventByID(ctx context.Context, id string) (*model.Event, error) {
	row := new(eventRow)
	if err := s.db.NewSelect().Model(row).Where("id = ?", id).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return &model.Event{ID: row.ID, Title: row.Title, GroupID: row.GroupID}, nil
}

func (s *Store) GetMemberByID(ctx context.Context, id string) (*model.Member, error) {
	row := new(memberRow)
	if err := s.db.NewSelect().Model(row).Where("id = ?", id).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get member: %w", err)
	}
	return &model.Member{ID: row.ID, Name: row.Name}, nil
}

func (s *Store) PutEvent(ctx context.Context, e model.Event) error {
	_, err := s.db.NewInsert().
		Model(&eventRow{ID: e.ID, Title: e.Title, GroupID: e.GroupID}).
		On("CONFLICT (id) DO UPDATE").
		Set("title = EXCLUDED.title").
		Set("group_id = EXCLUDED.group_id").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("put event: %w", err)
	}
	return nil
}

func (s *Store) PutTeam(ctx context.Context, t model.Team) error {
	_, err := s.db.NewInsert().
		Model(&teamRow{ID: t.ID, Name: t.Name, GroupID: t.GroupID}).
		On("CONFLICT (id) DO UPDATE").
		Set("name = EXCLUDED.name").
		Set("group_id = EXCLUDED.group_id").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("put team: %w", err)
	}
	return nil
}

func (s *Store) PutMember(ctx context.Context, m model.Member) error {
	_, err := s.db.NewInsert().
		Model(&memberRow{ID: m.ID, Name: m.Name}).
		On("CONFLICT (id) DO UPDATE").
		Set("name = EXCLUDED.name").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("put member: %w", err)
	}
	return nil
}

func (s *Store) PutSubmission(ctx context.Context, sub model.Submission) error {
	if !sub.Status.Valid() {
		return fmt.Errorf("submission %s: unknown status %q", sub.ID, sub.Status)
	}
	row := &submissionRow{
		ID: sub.ID, EventID: sub.EventID, TeamID: sub.TeamID, SubmittedBy: sub.SubmittedBy,
		Status: string(sub.Status), CreatedAt: sub.CreatedAt, SubmittedAt: sub.SubmittedAt,
	}
	_, err := s.db.NewInsert().
		Model(row).
		On("CONFLICT (id) DO UPDATE").
		Set("event_id = EXCLUDED.event_id").
		Set("team_id = EXCLUDED.team_id").
		Set("submitted_by = EXCLUDED.submitted_by").
		Set("status = EXCLUDED.status").
		Set("submitted_at = EXCLUDED.submitted_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("put submission: %w", err)
	}
	return nil
}

// notify announces a score write on scoreChannel. Failures are logged; the
// write itself has already committed.
func (s *Store) notify(ctx context.Context, sc model.Score) {
	payload, err := json.Marshal(model.ScoreChanged{
		ScoreID: sc.ID, SubmissionID: sc.SubmissionID, EventID: sc.EventID, JudgeID: sc.JudgeID, At: sc.UpdatedAt,
	})
	if err == nil {
		err = pgdriver.Notify(ctx, s.db, scoreChannel, string(payload))
	}
	if err != nil {
		metrics.RecordErrorByComponent("pgstore", "notify")
		s.log.Warn(ctx, "score notify failed", logger.String("score_id", sc.ID), logger.Error(err))
	}
}

type pgScores struct{ *Store }

func (s pgScores) Create(ctx context.Context, sc model.Score) error {
	defer observe("scores.create", time.Now())
	row := fromScore(sc)
	_, err := s.db.NewInsert().
		Model(row).
		On("CONFLICT (submission_id, judge_id) DO UPDATE").
		Set("rubric_id = EXCLUDED.rubric_id").
		Set("criterion_values = EXCLUDED.criterion_values").
		Set("comments = EXCLUDED.comments").
		Set("total = EXCLUDED.total").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create score: %w", err)
	}
	s.notify(ctx, sc)
	return nil
}

func (s pgScores) Update(ctx context.Context, sc model.Score) error {
	defer observe("scores.update", time.Now())
	res, err := s.db.NewUpdate().
		Model(fromScore(sc)).
		Column("rubric_id", "criterion_values", "comments", "total", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update score: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("score %s: %w", sc.ID, repository.ErrNotFound)
	}
	s.notify(ctx, sc)
	return nil
}

func (s pgScores) GetBySubmissionID(ctx context.Context, submissionID string) ([]model.Score, error) {
	defer observe("scores.by_submission", time.Now())
	return s.selectScores(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("submission_id = ?", submissionID)
	})
}

func (s pgScores) GetBySubmissionAndJudge(ctx context.Context, submissionID, judgeID string) (*model.Score, error) {
	row := new(scoreRow)
	err := s.db.NewSelect().Model(row).
		Where("submission_id = ?", submissionID).
		Where("judge_id = ?", judgeID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get score: %w", err)
	}
	out := row.toModel()
	return &out, nil
}

func (s pgScores) GetBySubmissionIDs(ctx context.Context, ids []string) (map[string][]model.Score, error) {
	defer observe("scores.by_submissions", time.Now())
	out := make(map[string][]model.Score, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := s.selectScores(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("submission_id IN (?)", bun.In(ids))
	})
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.SubmissionID] = append(out[r.SubmissionID], r)
	}
	return out, nil
}

func (s pgScores) GetByEventID(ctx context.Context, eventID string) ([]model.Score, error) {
	defer observe("scores.by_event", time.Now())
	return s.selectScores(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("event_id = ?", eventID)
	})
}

func (s pgScores) selectScores(ctx context.Context, where func(*bun.SelectQuery) *bun.SelectQuery) ([]model.Score, error) {
	var rows []scoreRow
	if err := where(s.db.NewSelect().Model(&rows)).OrderExpr("created_at ASC, id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("select scores: %w", err)
	}
	out := make([]model.Score, len(rows))
	for i, r := range rows {
		out[i] = r.toModel()
	}
	return out, nil
}

// StreamBySubmissionID listens on the score channel and forwards the
// submission's notifications until ctx is done.
func (s pgScores) StreamBySubmissionID(ctx context.Context, submissionID string) (<-chan model.ScoreChanged, error) {
	ln := pgdriver.NewListener(s.db)
	if err := ln.Listen(ctx, scoreChannel); err != nil {
		_ = ln.Close()
		return nil, fmt.Errorf("listen %s: %w", scoreChannel, err)
	}

	out := make(chan model.ScoreChanged, 16)
	go func() {
		defer close(out)
		defer ln.Close()
		notes := ln.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case n, ok := <-notes:
				if !ok {
					return
				}
				var ev model.ScoreChanged
				if err := json.Unmarshal([]byte(n.Payload), &ev); err != nil || ev.SubmissionID != submissionID {
					continue
				}
				select {
				case out <- ev:
				default:
				}
			}
		}
	}()
	return out, nil
}

type pgSubmissions struct{ *Store }

func (s pgSubmissions) GetByID(ctx context.Context, id string) (*model.Submission, error) {
	defer observe("submissions.by_id", time.Now())
	row := new(submissionRow)
	if err := s.db.NewSelect().Model(row).Where("id = ?", id).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("submission %s: %w", id, repository.ErrNotFound)
		}
		return nil, fmt.Errorf("get submission: %w", err)
	}
	out := row.toModel()
	return &out, nil
}

func (s pgSubmissions) GetByEventID(ctx context.Context, eventID string) ([]model.Submission, error) {
	defer observe("submissions.by_event", time.Now())
	return s.list(ctx, "event_id = ?", eventID)
}

func (s pgSubmissions) GetByTeamID(ctx context.Context, teamID string) ([]model.Submission, error) {
	defer observe("submissions.by_team", time.Now())
	return s.list(ctx, "team_id = ?", teamID)
}

func (s pgSubmissions) list(ctx context.Context, where string, arg string) ([]model.Submission, error) {
	var rows []submissionRow
	if err := s.db.NewSelect().Model(&rows).Where(where, arg).OrderExpr("created_at ASC, id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	out := make([]model.Submission, len(rows))
	for i, r := range rows {
		out[i] = r.toModel()
	}
	return out, nil
}

type pgRubrics struct{ *Store }

func (s pgRubrics) Create(ctx context.Context, r model.Rubric) error {
	res, err := s.db.NewInsert().Model(fromRubric(r)).On("CONFLICT (id) DO NOTHING").Exec(ctx)
	if err != nil {
		return fmt.Errorf("create rubric: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("rubric %s: %w", r.ID, repository.ErrConflict)
	}
	return nil
}

func (s pgRubrics) GetByID(ctx context.Context, id string) (*model.Rubric, error) {
	row := new(rubricRow)
	if err := s.db.NewSelect().Model(row).Where("id = ?", id).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("rubric %s: %w", id, repository.ErrNotFound)
		}
		return nil, fmt.Errorf("get rubric: %w", err)
	}
	out := row.toModel()
	return &out, nil
}

func (s pgRubrics) List(ctx context.Context, f model.RubricFilter) ([]model.Rubric, error) {
	var rows []rubricRow
	q := s.db.NewSelect().Model(&rows).OrderExpr("created_at ASC, id ASC")
	if f.EventID != "" {
		q = q.Where("event_id = ?", f.EventID)
	}
	if f.GroupID != "" {
		q = q.Where("group_id = ?", f.GroupID)
	}
	if f.TemplateOnly {
		q = q.Where("is_template")
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("list rubrics: %w", err)
	}
	out := make([]model.Rubric, len(rows))
	for i, r := range rows {
		out[i] = r.toModel()
	}
	return out, nil
}

func (s pgRubrics) Clone(ctx context.Context, id string, o model.RubricOverrides) (model.Rubric, error) {
	src, err := s.GetByID(ctx, id)
	if err != nil {
		return model.Rubric{}, err
	}
	out := src.Derive(uuid.NewString(), o, s.now().UTC())
	if err := s.Create(ctx, out); err != nil {
		return model.Rubric{}, err
	}
	return out, nil
}

func observe(op string, start time.Time) {
	metrics.RecordStoreLatency("pg."+op, float64(time.Since(start).Microseconds())/1000)
}
