package httptransport

import (
	"encoding/json"
	"net/http"
	"time"

	"rollcall/internal/roster"
	"rollcall/internal/search"
	dErrors "rollcall/pkg/domain-errors"
)

type checkInRequest struct {
	// PersonID is the badge/QR path: a known stable identifier.
	PersonID string `json:"person_id"`
	// Query is the kiosk path: free text resolved through ranking.
	Query string `json:"query"`
}

type checkInResponse struct {
	Date   string        `json:"date"`
	Person roster.Person `json:"person"`
}

type shortlistResponse struct {
	Query     string          `json:"query"`
	Shortlist []roster.Person `json:"shortlist"`
}

// handleCheckIn records attendance for today. A person_id checks in directly;
// a query checks in only when it resolves to a single candidate, otherwise
// the ranked shortlist comes back for disambiguation.
func (h *Handler) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	var req checkInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	person, ok := h.resolveTarget(w, req)
	if !ok {
		return
	}

	date, err := h.ledger.CheckIn(r.Context(), person.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, checkInResponse{Date: date, Person: person})
}

// resolveTarget picks the person to check in. When resolution cannot
// complete it writes the response itself and reports !ok.
func (h *Handler) resolveTarget(w http.ResponseWriter, req checkInRequest) (roster.Person, bool) {
	if req.PersonID != "" {
		person, found := h.cache.Find(req.PersonID)
		if !found {
			writeError(w, dErrors.New(dErrors.CodeNotFound, "unknown person id"))
			return roster.Person{}, false
		}
		return person, true
	}

	if req.Query == "" {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "person_id or query is required"))
		return roster.Person{}, false
	}

	ranked := h.rank(req.Query)
	switch len(ranked) {
	case 0:
		writeError(w, dErrors.New(dErrors.CodeNotFound, "no roster match"))
		return roster.Person{}, false
	case 1:
		return ranked[0], true
	default:
		writeJSON(w, http.StatusMultipleChoices, shortlistResponse{
			Query:     req.Query,
			Shortlist: search.Shortlist(ranked, h.shortlistSize),
		})
		return roster.Person{}, false
	}
}

func (h *Handler) rank(query string) []roster.Person {
	start := time.Now()
	ranked := search.Rank(query, h.cache.Snapshot())
	if h.metrics != nil {
		h.metrics.SearchDuration.Observe(time.Since(start).Seconds())
	}
	return ranked
}
