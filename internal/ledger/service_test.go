package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"rollcall/internal/docstore"
	"rollcall/internal/docstore/mocks"
	dErrors "rollcall/pkg/domain-errors"
	"rollcall/pkg/platform/audit"
)

// capturingPublisher records emitted audit events for assertions.
type capturingPublisher struct {
	mu     sync.Mutex
	events []audit.Event
}

func (p *capturingPublisher) Emit(_ context.Context, event audit.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

type ServiceSuite struct {
	suite.Suite
	store   *docstore.InMemoryStore
	auditor *capturingPublisher
	service *Service
	today   time.Time
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.store = docstore.NewInMemory()
	s.auditor = &capturingPublisher{}
	s.today = time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)

	var err error
	s.service, err = New(s.store,
		WithClock(func() time.Time { return s.today }),
		WithAuditPublisher(s.auditor),
	)
	s.Require().NoError(err)
}

func (s *ServiceSuite) TestNew() {
	s.Run("nil store returns error", func() {
		_, err := New(nil)
		s.Error(err)
	})
}

func (s *ServiceSuite) TestCheckIn() {
	ctx := context.Background()

	s.Run("empty person id is rejected", func() {
		_, err := s.service.CheckIn(ctx, "")
		s.Equal(dErrors.CodeBadRequest, dErrors.CodeOf(err))
	})

	s.Run("creates today's record on first check-in", func() {
		date, err := s.service.CheckIn(ctx, "u1")
		s.Require().NoError(err)
		s.Equal("2024-03-15", date)

		rec, err := s.service.FetchForDate(ctx, date)
		s.NoError(err)
		s.Equal([]string{"u1"}, rec.Attendees)
		s.Equal(s.today, rec.CreatedAt)
	})

	s.Run("is idempotent for the same person", func() {
		_, err := s.service.CheckIn(ctx, "u2")
		s.Require().NoError(err)
		_, err = s.service.CheckIn(ctx, "u2")
		s.Require().NoError(err)

		rec, err := s.service.FetchForDate(ctx, "2024-03-15")
		s.NoError(err)

		count := 0
		for _, id := range rec.Attendees {
			if id == "u2" {
				count++
			}
		}
		s.Equal(1, count)
	})

	s.Run("emits an audit event", func() {
		_, err := s.service.CheckIn(ctx, "u3")
		s.Require().NoError(err)

		s.auditor.mu.Lock()
		defer s.auditor.mu.Unlock()
		last := s.auditor.events[len(s.auditor.events)-1]
		s.Equal("person_checked_in", last.Action)
		s.Equal("u3", last.Subject)
		s.Equal("2024-03-15", last.Detail)
	})
}

func (s *ServiceSuite) TestCheckInConcurrentUnion() {
	ctx := context.Background()
	ids := []string{"alpha", "beta", "gamma", "delta", "epsilon"}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(personID string) {
			defer wg.Done()
			_, err := s.service.CheckIn(ctx, personID)
			s.NoError(err)
		}(id)
	}
	wg.Wait()

	rec, err := s.service.FetchForDate(ctx, "2024-03-15")
	s.Require().NoError(err)
	s.ElementsMatch(ids, rec.Attendees)
}

func (s *ServiceSuite) TestCheckInWriteFailure() {
	ctx := context.Background()
	ctrl := gomock.NewController(s.T())
	store := mocks.NewMockStore(ctrl)

	store.EXPECT().
		UpdateUnion(gomock.Any(), docstore.CollectionAttendance, "2024-03-15", "attendees", "u1").
		Return(errors.New("broker timeout"))

	svc, err := New(store, WithClock(func() time.Time { return s.today }))
	s.Require().NoError(err)

	_, err = svc.CheckIn(ctx, "u1")
	s.Error(err)
	s.Equal(dErrors.CodeUnavailable, dErrors.CodeOf(err))
}

func (s *ServiceSuite) TestFetchForDate() {
	ctx := context.Background()

	s.Run("missing date yields logically-empty record, not an error", func() {
		rec, err := s.service.FetchForDate(ctx, "1999-12-31")
		s.NoError(err)
		s.Equal("1999-12-31", rec.Date)
		s.Empty(rec.Attendees)
	})

	s.Run("record missing attendees decodes to empty set", func() {
		err := s.store.Set(ctx, docstore.CollectionAttendance, "2024-03-01", docstore.Document{
			"description": "partial write",
		})
		s.Require().NoError(err)

		rec, err := s.service.FetchForDate(ctx, "2024-03-01")
		s.NoError(err)
		s.NotNil(rec.Attendees)
		s.Empty(rec.Attendees)
		s.Equal("partial write", rec.Description)
	})

	s.Run("record missing date field defaults to now", func() {
		s.Require().NoError(s.store.UpdateUnion(ctx, docstore.CollectionAttendance, "2024-03-02", "attendees", "u1"))
		// No stamp: simulate a record created by a client that never wrote scalars.
		s.Require().NoError(s.store.Set(ctx, docstore.CollectionAttendance, "2024-03-02", docstore.Document{}))

		rec, err := s.service.FetchForDate(ctx, "2024-03-02")
		s.NoError(err)
		s.Equal(s.today, rec.CreatedAt)
	})

	s.Run("fetch error still presents an empty record", func() {
		ctrl := gomock.NewController(s.T())
		store := mocks.NewMockStore(ctrl)
		store.EXPECT().
			Get(gomock.Any(), docstore.CollectionAttendance, "2024-03-15").
			Return(nil, errors.New("connection reset"))

		svc, err := New(store, WithClock(func() time.Time { return s.today }))
		s.Require().NoError(err)

		rec, err := svc.FetchForDate(ctx, "2024-03-15")
		s.Error(err)
		s.Equal(dErrors.CodeUnavailable, dErrors.CodeOf(err))
		s.Empty(rec.Attendees)
	})
}

func (s *ServiceSuite) TestListDates() {
	ctx := context.Background()

	s.Run("empty ledger lists nothing", func() {
		dates, err := s.service.ListDates(ctx)
		s.NoError(err)
		s.Empty(dates)

		_, ok, err := s.service.LatestDate(ctx)
		s.NoError(err)
		s.False(ok)
	})

	s.Run("dates come back ascending with the latest selectable", func() {
		for _, date := range []string{"2024-03-10", "2024-01-05", "2024-02-20"} {
			s.Require().NoError(s.store.UpdateUnion(ctx, docstore.CollectionAttendance, date, "attendees", "u1"))
		}

		dates, err := s.service.ListDates(ctx)
		s.NoError(err)
		s.Equal([]string{"2024-01-05", "2024-02-20", "2024-03-10"}, dates)

		latest, ok, err := s.service.LatestDate(ctx)
		s.NoError(err)
		s.True(ok)
		s.Equal("2024-03-10", latest)
	})
}

func (s *ServiceSuite) TestEnrichAttendees() {
	ctx := context.Background()

	s.Run("resolves known people and synthesizes placeholders", func() {
		err := s.store.Set(ctx, docstore.CollectionUsers, "u1", docstore.Document{
			"name": "Ann Lee", "email": "ann@x.com", "studentId": "1001",
		})
		s.Require().NoError(err)

		people, err := s.service.EnrichAttendees(ctx, Record{
			Date:      "2024-03-15",
			Attendees: []string{"u1", "ghost@x.com"},
		})
		s.Require().NoError(err)
		s.Require().Len(people, 2)

		s.Equal("Ann Lee", people[0].Name)

		ghost := people[1]
		s.Equal("Unknown", ghost.Name)
		s.Equal("Unknown", ghost.Grade)
		s.Equal("Unknown", ghost.StudentID)
		s.Equal("ghost@x.com", ghost.Email)
	})

	s.Run("result order matches the attendee set order", func() {
		for _, id := range []string{"a", "b", "c", "d"} {
			err := s.store.Set(ctx, docstore.CollectionUsers, id, docstore.Document{"name": "P-" + id})
			s.Require().NoError(err)
		}

		people, err := s.service.EnrichAttendees(ctx, Record{Attendees: []string{"d", "a", "c", "b"}})
		s.Require().NoError(err)
		s.Equal([]string{"P-d", "P-a", "P-c", "P-b"}, []string{people[0].Name, people[1].Name, people[2].Name, people[3].Name})
	})

	s.Run("individual fetch failures degrade to placeholders", func() {
		ctrl := gomock.NewController(s.T())
		store := mocks.NewMockStore(ctrl)
		store.EXPECT().
			Get(gomock.Any(), docstore.CollectionUsers, "u1").
			Return(nil, errors.New("timeout"))

		svc, err := New(store)
		s.Require().NoError(err)

		people, err := svc.EnrichAttendees(ctx, Record{Attendees: []string{"u1"}})
		s.Require().NoError(err)
		s.Require().Len(people, 1)
		s.Equal("Unknown", people[0].Name)
	})

	s.Run("empty attendee set enriches to nothing", func() {
		people, err := s.service.EnrichAttendees(ctx, Record{})
		s.NoError(err)
		s.Empty(people)
	})
}

func TestRecordFromDocument(t *testing.T) {
	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	t.Run("attendees are deduplicated by the store and sorted here", func(t *testing.T) {
		rec := RecordFromDocument("2024-05-01", docstore.Document{
			"attendees": []string{"c", "a", "b"},
			"date":      now,
		}, time.Now())

		if got := rec.Attendees; got[0] != "a" || got[1] != "b" || got[2] != "c" {
			t.Fatalf("attendees not sorted: %v", got)
		}
		if !rec.CreatedAt.Equal(now) {
			t.Fatalf("created at = %v, want %v", rec.CreatedAt, now)
		}
	})

	t.Run("empty document decodes without error", func(t *testing.T) {
		rec := RecordFromDocument("2024-05-01", docstore.Document{}, now)
		if rec.Attendees == nil || len(rec.Attendees) != 0 {
			t.Fatalf("want empty non-nil attendees, got %v", rec.Attendees)
		}
		if !rec.CreatedAt.Equal(now) {
			t.Fatalf("created at should default to now")
		}
	})

	t.Run("contains", func(t *testing.T) {
		rec := Record{Attendees: []string{"a", "b"}}
		if !rec.Contains("a") || rec.Contains("z") {
			t.Fatal("membership check wrong")
		}
	})
}
