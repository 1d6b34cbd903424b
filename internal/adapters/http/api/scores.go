package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/internal/domain/scoring"
)

// ScoreHandler handles judge score writes and submission aggregates.
type ScoreHandler struct {
	deps ScoreDependencies
	live *streamer
}

// NewScoreHandler creates a new score handler.
func NewScoreHandler(deps ScoreDependencies, live *streamer) *ScoreHandler {
	return &ScoreHandler{deps: deps, live: live}
}

// HandlePostScore handles POST /scores requests.
func (h *ScoreHandler) HandlePostScore(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_score"
	var in scoring.ScoreInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeDomainError(w, op, err)
		return
	}
	in.SubmissionID = strings.TrimSpace(in.SubmissionID)
	in.JudgeID = strings.TrimSpace(in.JudgeID)

	score, err := h.deps.SubmitScore(r.Context(), in)
	if err != nil {
		writeDomainError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, score)
}

// HandleGetAggregate handles GET /submissions/{id}/aggregate requests.
func (h *ScoreHandler) HandleGetAggregate(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_aggregate"
	agg, err := h.deps.Aggregate(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, agg)
}

// HandleLiveAggregate handles GET /submissions/{id}/aggregate/live by
// streaming a fresh aggregate whenever one of its scores changes.
func (h *ScoreHandler) HandleLiveAggregate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	stream(h.live, w, r, "api.live_aggregate", func(ctx context.Context) (<-chan model.AggregatedScore, error) {
		return h.deps.WatchSubmission(ctx, id)
	})
}
