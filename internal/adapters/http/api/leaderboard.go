package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/internal/report"
)

// LeaderboardHandler handles leaderboard requests.
type LeaderboardHandler struct {
	deps     LeaderboardDependencies
	live     *streamer
	maxLimit int
}

// NewLeaderboardHandler creates a new leaderboard handler.
func NewLeaderboardHandler(deps LeaderboardDependencies, live *streamer, maxLimit int) *LeaderboardHandler {
	if maxLimit <= 0 {
		maxLimit = defaultMaxLimit
	}
	return &LeaderboardHandler{deps: deps, live: live, maxLimit: maxLimit}
}

// HandleGetLeaderboard handles GET /events/{id}/leaderboard requests.
func (h *LeaderboardHandler) HandleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_leaderboard"
	lb, ok := h.calculate(w, r, op)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, lb)
}

// HandleExportLeaderboard handles GET /events/{id}/leaderboard.xlsx requests.
func (h *LeaderboardHandler) HandleExportLeaderboard(w http.ResponseWriter, r *http.Request) {
	const op = "api.export_leaderboard"
	lb, ok := h.calculate(w, r, op)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := report.LeaderboardXLSX(&buf, lb); err != nil {
		writeDomainError(w, op, err)
		return
	}
	w.Header().Set("Content-Type", report.XLSXContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "leaderboard-"+lb.EventID+".xlsx"))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// HandleLiveLeaderboard handles GET /events/{id}/leaderboard/live by
// streaming the full board each time the event's scores change.
func (h *LeaderboardHandler) HandleLiveLeaderboard(w http.ResponseWriter, r *http.Request) {
	const op = "api.live_leaderboard"
	eventID := r.PathValue("id")
	scope := newParams(r.URL.Query()).scope()
	if scope == "" {
		writeDomainError(w, op, fmt.Errorf("%w: %q", errInvalidScope, r.URL.Query().Get("scope")))
		return
	}
	stream(h.live, w, r, op, func(ctx context.Context) (<-chan model.Leaderboard, error) {
		return h.deps.Watch(ctx, eventID, scope)
	})
}

func (h *LeaderboardHandler) calculate(w http.ResponseWriter, r *http.Request, op string) (model.Leaderboard, bool) {
	q, err := leaderboardQuery(r.PathValue("id"), r.URL.Query(), h.maxLimit)
	if err != nil {
		writeDomainError(w, op, err)
		return model.Leaderboard{}, false
	}
	lb, err := h.deps.Leaderboard(r.Context(), q)
	if err != nil {
		writeDomainError(w, op, err)
		return model.Leaderboard{}, false
	}
	return lb, true
}
