// Package search ranks roster entries against free-text input. Ranking is a
// pure function of the query and the roster snapshot, so repeated calls are
// deterministic and safe to run concurrently.
package search

import (
	"sort"
	"strings"

	"rollcall/internal/roster"
)

// DefaultShortlistSize is the display truncation applied by callers after the
// full candidate set has been ranked.
const DefaultShortlistSize = 5

// Match classes, ascending priority.
const (
	classNamePrefix  = 0
	classEmailPrefix = 1
	classSubstring   = 2
)

// noNameOccurrence sorts candidates matched only through student ID or email
// after every in-name match.
const noNameOccurrence = 1 << 30

type candidate struct {
	person roster.Person
	class  int
	// namePos is the first occurrence of the query in the lower-cased name,
	// or noNameOccurrence.
	namePos int
}

// Rank returns every candidate for query ordered by match quality. An empty
// query returns the whole roster in cache order.
func Rank(query string, people []roster.Person) []roster.Person {
	if strings.TrimSpace(query) == "" {
		return append([]roster.Person(nil), people...)
	}

	q := strings.ToLower(strings.TrimSpace(query))
	candidates := make([]candidate, 0, len(people))
	for _, p := range people {
		c, ok := classify(q, p)
		if !ok {
			continue
		}
		candidates = append(candidates, c)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return less(candidates[i], candidates[j])
	})

	out := make([]roster.Person, len(candidates))
	for i, c := range candidates {
		out[i] = c.person
	}
	return out
}

// Shortlist truncates ranked results for display. Ranking must already have
// covered the full candidate set.
func Shortlist(ranked []roster.Person, size int) []roster.Person {
	if size <= 0 || len(ranked) <= size {
		return ranked
	}
	return ranked[:size]
}

func classify(q string, p roster.Person) (candidate, bool) {
	name := strings.ToLower(p.Name)
	email := strings.ToLower(p.Email)
	studentID := strings.ToLower(p.StudentID)

	nameHit := strings.Contains(name, q)
	if !nameHit && !strings.Contains(studentID, q) && !strings.HasPrefix(email, q) {
		return candidate{}, false
	}

	c := candidate{person: p, class: classSubstring, namePos: noNameOccurrence}
	if nameHit {
		c.namePos = strings.Index(name, q)
	}
	switch {
	case strings.HasPrefix(name, q):
		c.class = classNamePrefix
	case strings.HasPrefix(email, q):
		c.class = classEmailPrefix
	}
	return c, true
}

func less(a, b candidate) bool {
	if a.class != b.class {
		return a.class < b.class
	}
	switch a.class {
	case classNamePrefix:
		if a.person.Name != b.person.Name {
			return a.person.Name < b.person.Name
		}
	case classEmailPrefix:
		if a.person.Email != b.person.Email {
			return a.person.Email < b.person.Email
		}
	default:
		if a.namePos != b.namePos {
			return a.namePos < b.namePos
		}
		if a.person.Name != b.person.Name {
			return a.person.Name < b.person.Name
		}
	}
	// Final tie-break keeps the order total even for identical names.
	return a.person.ID < b.person.ID
}
