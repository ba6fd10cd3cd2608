package httptransport

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"rollcall/internal/roster"
	dErrors "rollcall/pkg/domain-errors"
)

type usersResponse struct {
	Users []roster.Person `json:"users"`
}

// handleListUsers returns the roster sorted by name (cache order).
func (h *Handler) handleListUsers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, usersResponse{Users: h.cache.Snapshot()})
}

func (h *Handler) handleAddUser(w http.ResponseWriter, r *http.Request) {
	var p roster.Person
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if p.Name == "" {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "name is required"))
		return
	}

	added, err := h.cache.Add(r.Context(), p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, added)
}

func (h *Handler) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	var p roster.Person
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	p.ID = chi.URLParam(r, "id")

	if _, found := h.cache.Find(p.ID); !found {
		writeError(w, dErrors.New(dErrors.CodeNotFound, "unknown person id"))
		return
	}
	if err := h.cache.Update(r.Context(), p); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, found := h.cache.Find(id); !found {
		writeError(w, dErrors.New(dErrors.CodeNotFound, "unknown person id"))
		return
	}
	if err := h.cache.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRefreshRoster(w http.ResponseWriter, r *http.Request) {
	if err := h.cache.Refresh(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"people": len(h.cache.Snapshot())})
}
