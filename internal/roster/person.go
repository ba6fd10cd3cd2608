package roster

import "rollcall/internal/docstore"

// Person is one roster entry. ID is the stable identity used as the join key
// everywhere; Name is display-only and may collide between people.
type Person struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Subteam   string `json:"subteam"`
	Grade     string `json:"grade"`
	StudentID string `json:"student_id"`
}

// PersonFromDocument decodes a Users document. Every field is
// optional-with-default, so a malformed document degrades to empty fields
// instead of failing the refresh that carried it.
func PersonFromDocument(id string, doc docstore.Document) Person {
	return Person{
		ID:        id,
		Name:      doc.String("name"),
		Email:     doc.String("email"),
		Subteam:   doc.String("subteam"),
		Grade:     doc.String("grade"),
		StudentID: doc.String("studentId"),
	}
}

// Fields returns the document representation written to the remote store.
func (p Person) Fields() docstore.Document {
	return docstore.Document{
		"name":      p.Name,
		"email":     p.Email,
		"subteam":   p.Subteam,
		"grade":     p.Grade,
		"studentId": p.StudentID,
	}
}

// Unknown synthesizes a placeholder for an attendee whose roster entry no
// longer exists, so ledger views never silently drop a checked-in person.
// The identifier is preserved on both ID and Email since historical records
// used email-shaped identifiers.
func Unknown(id string) Person {
	return Person{
		ID:        id,
		Name:      "Unknown",
		Email:     id,
		Subteam:   "Unknown",
		Grade:     "Unknown",
		StudentID: "Unknown",
	}
}
