package httptransport

import (
	"net/http"

	"rollcall/internal/roster"
	"rollcall/internal/search"
)

type searchResponse struct {
	Query   string          `json:"query"`
	Results []roster.Person `json:"results"`
}

// handleSearch ranks the roster against ?q= and returns the shortlist.
// Ranking always runs over the full candidate set before truncation.
func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	ranked := h.rank(query)

	writeJSON(w, http.StatusOK, searchResponse{
		Query:   query,
		Results: search.Shortlist(ranked, h.shortlistSize),
	})
}
