package api

import (
	"net/http"
	"strconv"

	"github.com/okian/arena/internal/report"
)

// TeamHandler handles team history and trend requests.
type TeamHandler struct {
	deps TeamDependencies
}

// NewTeamHandler creates a new team handler.
func NewTeamHandler(deps TeamDependencies) *TeamHandler {
	return &TeamHandler{deps: deps}
}

// HandleGetHistory handles GET /teams/{id}/history requests.
func (h *TeamHandler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_history"
	q, err := historyQuery(r.PathValue("id"), r.URL.Query())
	if err != nil {
		writeDomainError(w, op, err)
		return
	}
	hist, err := h.deps.History(r.Context(), q)
	if err != nil {
		writeDomainError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, hist)
}

// HandleGetTrend handles GET /teams/{id}/trend requests.
func (h *TeamHandler) HandleGetTrend(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_trend"
	q, err := trendQuery(r.PathValue("id"), r.URL.Query())
	if err != nil {
		writeDomainError(w, op, err)
		return
	}
	tr, err := h.deps.Trend(r.Context(), q)
	if err != nil {
		writeDomainError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, tr)
}

// HandleGetTrendChart handles GET /teams/{id}/trend.png requests.
func (h *TeamHandler) HandleGetTrendChart(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_trend_chart"
	q, err := trendQuery(r.PathValue("id"), r.URL.Query())
	if err != nil {
		writeDomainError(w, op, err)
		return
	}
	tr, err := h.deps.Trend(r.Context(), q)
	if err != nil {
		writeDomainError(w, op, err)
		return
	}
	png, err := report.TrendPNG(tr, report.DefaultPalette)
	if err != nil {
		writeDomainError(w, op, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}
