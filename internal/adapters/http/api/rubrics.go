package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/okian/arena/internal/domain/model"
)

// RubricHandler handles rubric management requests.
type RubricHandler struct {
	deps RubricDependencies
}

// NewRubricHandler creates a new rubric handler.
func NewRubricHandler(deps RubricDependencies) *RubricHandler {
	return &RubricHandler{deps: deps}
}

// HandleCreateRubric handles POST /rubrics requests.
func (h *RubricHandler) HandleCreateRubric(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_rubric"
	var in model.Rubric
	if err := decodeJSON(w, r, &in); err != nil {
		writeDomainError(w, op, err)
		return
	}
	out, err := h.deps.CreateRubric(r.Context(), in)
	if err != nil {
		writeDomainError(w, op, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

// HandleListRubrics handles GET /rubrics requests.
func (h *RubricHandler) HandleListRubrics(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_rubrics"
	f, err := rubricFilter(r.URL.Query())
	if err != nil {
		writeDomainError(w, op, err)
		return
	}
	out, err := h.deps.ListRubrics(r.Context(), f)
	if err != nil {
		writeDomainError(w, op, err)
		return
	}
	if out == nil {
		out = []model.Rubric{}
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleGetRubric handles GET /rubrics/{id} requests.
func (h *RubricHandler) HandleGetRubric(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_rubric"
	out, err := h.deps.GetRubric(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleCloneRubric handles POST /rubrics/{id}/clone requests. An empty
// body clones with no overrides.
func (h *RubricHandler) HandleCloneRubric(w http.ResponseWriter, r *http.Request) {
	const op = "api.clone_rubric"
	var o model.RubricOverrides
	if err := decodeJSON(w, r, &o); err != nil && !errors.Is(err, io.EOF) {
		writeDomainError(w, op, err)
		return
	}
	out, err := h.deps.CloneRubric(r.Context(), r.PathValue("id"), o)
	if err != nil {
		writeDomainError(w, op, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}
