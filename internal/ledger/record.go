package ledger

import (
	"sort"
	"time"

	"rollcall/internal/docstore"
)

// DateLayout is the calendar-date key format for attendance documents. It is
// fixed-width, so lexicographic order on keys equals chronological order.
const DateLayout = "2006-01-02"

// Record is one day's attendance: the set of person IDs who checked in.
type Record struct {
	Date        string    `json:"date"`
	CreatedAt   time.Time `json:"created_at"`
	Description string    `json:"description"`
	Attendees   []string  `json:"attendees"`
}

// RecordFromDocument decodes an Attendance document. Missing fields default
// rather than fail: no attendees means an empty set, no timestamp means now,
// no description means empty. A partially-written document therefore still
// reads as a usable record.
func RecordFromDocument(date string, doc docstore.Document, now time.Time) Record {
	attendees := doc.Strings("attendees")
	if attendees == nil {
		attendees = []string{}
	} else {
		attendees = append([]string(nil), attendees...)
		sort.Strings(attendees)
	}

	return Record{
		Date:        date,
		CreatedAt:   doc.Time("date", now),
		Description: doc.String("description"),
		Attendees:   attendees,
	}
}

// emptyRecord is the logically-empty result for a date with no document.
func emptyRecord(date string, now time.Time) Record {
	return Record{Date: date, CreatedAt: now, Attendees: []string{}}
}

// Contains reports membership of a person in the attendee set.
func (r Record) Contains(personID string) bool {
	for _, id := range r.Attendees {
		if id == personID {
			return true
		}
	}
	return false
}
