package httptransport

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"rollcall/internal/ledger"
	"rollcall/internal/roster"
	dErrors "rollcall/pkg/domain-errors"
)

type datesResponse struct {
	// Dates is reverse-chronological for display; Default is the most
	// recent date when any exist.
	Dates   []string `json:"dates"`
	Default string   `json:"default,omitempty"`
}

type attendanceResponse struct {
	Date      string          `json:"date"`
	CreatedAt time.Time       `json:"created_at"`
	Attendees []roster.Person `json:"attendees"`
}

func (h *Handler) handleListDates(w http.ResponseWriter, r *http.Request) {
	dates, err := h.ledger.ListDates(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	reversed := make([]string, len(dates))
	for i, date := range dates {
		reversed[len(dates)-1-i] = date
	}

	resp := datesResponse{Dates: reversed}
	if len(reversed) > 0 {
		resp.Default = reversed[0]
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleAttendanceForDate returns the enriched attendee list for one date.
// A fetch failure degrades to an empty list rather than blocking the view.
func (h *Handler) handleAttendanceForDate(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	if _, err := time.Parse(ledger.DateLayout, date); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "date must be YYYY-MM-DD"))
		return
	}

	rec, err := h.ledger.FetchForDate(r.Context(), date)
	if err != nil {
		h.logger.WarnContext(r.Context(), "serving degraded attendance view", "date", date, "error", err)
	}

	people, err := h.ledger.EnrichAttendees(r.Context(), rec)
	if err != nil {
		writeError(w, err)
		return
	}
	if people == nil {
		people = []roster.Person{}
	}

	writeJSON(w, http.StatusOK, attendanceResponse{
		Date:      rec.Date,
		CreatedAt: rec.CreatedAt,
		Attendees: people,
	})
}

// handleExport streams the full presence matrix as CSV.
func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	csv, err := h.aggregator.Export(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="attendance.csv"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(csv))
}
