package docstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDocumentString(t *testing.T) {
	doc := Document{"name": "Ann", "count": 3}

	assert.Equal(t, "Ann", doc.String("name"))
	assert.Equal(t, "", doc.String("missing"))
	assert.Equal(t, "", doc.String("count"), "mistyped field defaults to empty")
}

func TestDocumentStrings(t *testing.T) {
	t.Run("native string slice", func(t *testing.T) {
		doc := Document{"attendees": []string{"a", "b"}}
		assert.Equal(t, []string{"a", "b"}, doc.Strings("attendees"))
	})

	t.Run("decoded JSON slice", func(t *testing.T) {
		doc := Document{"attendees": []any{"a", 7, "b"}}
		assert.Equal(t, []string{"a", "b"}, doc.Strings("attendees"), "non-string members are skipped")
	})

	t.Run("absent field yields nil", func(t *testing.T) {
		assert.Nil(t, Document{}.Strings("attendees"))
	})
}

func TestDocumentTime(t *testing.T) {
	fallback := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	t.Run("native time", func(t *testing.T) {
		stamp := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)
		doc := Document{"date": stamp}
		assert.Equal(t, stamp, doc.Time("date", fallback))
	})

	t.Run("RFC 3339 string", func(t *testing.T) {
		doc := Document{"date": "2024-01-02T09:30:00Z"}
		assert.Equal(t, time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC), doc.Time("date", fallback))
	})

	t.Run("garbage falls back", func(t *testing.T) {
		doc := Document{"date": "yesterday-ish"}
		assert.Equal(t, fallback, doc.Time("date", fallback))
	})

	t.Run("absent falls back", func(t *testing.T) {
		assert.Equal(t, fallback, Document{}.Time("date", fallback))
	})
}
