package export

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"rollcall/internal/docstore"
	"rollcall/internal/ledger"
	"rollcall/internal/roster"
)

type AggregatorSuite struct {
	suite.Suite
	store      *docstore.InMemoryStore
	cache      *roster.Cache
	ledgerSvc  *ledger.Service
	aggregator *Aggregator
}

func TestAggregatorSuite(t *testing.T) {
	suite.Run(t, new(AggregatorSuite))
}

func (s *AggregatorSuite) SetupTest() {
	s.store = docstore.NewInMemory()

	var err error
	s.cache, err = roster.NewCache(s.store)
	s.Require().NoError(err)

	s.ledgerSvc, err = ledger.New(s.store)
	s.Require().NoError(err)

	s.aggregator, err = New(s.cache, s.ledgerSvc)
	s.Require().NoError(err)
}

func (s *AggregatorSuite) seedPerson(id, name, email, studentID string) {
	ctx := context.Background()
	err := s.store.Set(ctx, docstore.CollectionUsers, id, docstore.Document{
		"name": name, "email": email, "studentId": studentID,
	})
	s.Require().NoError(err)
}

func (s *AggregatorSuite) seedAttendance(date string, ids ...string) {
	ctx := context.Background()
	s.Require().NoError(s.store.UpdateUnion(ctx, docstore.CollectionAttendance, date, "attendees", ids...))
	s.Require().NoError(s.store.Set(ctx, docstore.CollectionAttendance, date, docstore.Document{
		"date": time.Now().UTC(), "description": "",
	}))
}

func (s *AggregatorSuite) TestExportRoundTrip() {
	ctx := context.Background()

	s.seedPerson("a", "Ann Lee", "ann@x.com", "1001")
	s.seedPerson("b", "Benny Ann", "b@x.com", "1002")
	s.seedAttendance("2024-01-01", "a")
	s.seedAttendance("2024-01-02", "a", "b")
	s.Require().NoError(s.cache.Refresh(ctx))

	csv, err := s.aggregator.Export(ctx)
	s.Require().NoError(err)

	want := "Name,Email,StudentID,2024-01-01,2024-01-02\n" +
		"Ann Lee,ann@x.com,1001,✓,✓\n" +
		"Benny Ann,b@x.com,1002,✗,✓\n"
	s.Equal(want, csv)
}

func (s *AggregatorSuite) TestRowOrderIndependentOfFetchOrder() {
	ctx := context.Background()

	// Seed deliberately out of alphabetical order.
	s.seedPerson("z", "Zoe", "z@x.com", "3")
	s.seedPerson("m", "Mia", "m@x.com", "2")
	s.seedPerson("a", "Ann", "a@x.com", "1")
	s.Require().NoError(s.cache.Refresh(ctx))

	matrix := BuildMatrix(s.cache.Snapshot(), nil)
	s.Require().Len(matrix.Rows, 3)
	s.Equal("Ann", matrix.Rows[0].Person.Name)
	s.Equal("Mia", matrix.Rows[1].Person.Name)
	s.Equal("Zoe", matrix.Rows[2].Person.Name)
}

func (s *AggregatorSuite) TestEmptyLedger() {
	ctx := context.Background()

	s.seedPerson("a", "Ann", "a@x.com", "1")
	s.Require().NoError(s.cache.Refresh(ctx))

	csv, err := s.aggregator.Export(ctx)
	s.Require().NoError(err)
	s.Equal("Name,Email,StudentID\nAnn,a@x.com,1\n", csv)
}

func (s *AggregatorSuite) TestWrite() {
	ctx := context.Background()

	s.seedPerson("a", "Ann", "a@x.com", "1")
	s.seedAttendance("2024-02-02", "a")
	s.Require().NoError(s.cache.Refresh(ctx))

	var buf bytes.Buffer
	s.Require().NoError(s.aggregator.Write(ctx, &buf))
	s.Contains(buf.String(), "2024-02-02")
	s.Contains(buf.String(), markPresent)
}

func TestBuildMatrix(t *testing.T) {
	people := []roster.Person{
		{ID: "b", Name: "Benny"},
		{ID: "a", Name: "Ann"},
	}
	records := map[string]ledger.Record{
		"2024-01-02": {Date: "2024-01-02", Attendees: []string{"a", "b"}},
		"2024-01-01": {Date: "2024-01-01", Attendees: []string{"a"}},
	}

	m := BuildMatrix(people, records)

	if m.Dates[0] != "2024-01-01" || m.Dates[1] != "2024-01-02" {
		t.Fatalf("dates not ascending: %v", m.Dates)
	}
	if m.Rows[0].Person.Name != "Ann" {
		t.Fatalf("rows not name-sorted: %v", m.Rows[0].Person.Name)
	}
	if !m.Rows[0].Present[0] || !m.Rows[0].Present[1] {
		t.Fatal("Ann should be present both days")
	}
	if m.Rows[1].Present[0] || !m.Rows[1].Present[1] {
		t.Fatal("Benny should be present only the second day")
	}
}

func TestSerializeCSVEscaping(t *testing.T) {
	m := Matrix{
		Dates: []string{"2024-01-01"},
		Rows: []Row{
			{Person: roster.Person{Name: `Lee, Ann "Annie"`, Email: "ann@x.com", StudentID: "1"}, Present: []bool{true}},
		},
	}

	got := SerializeCSV(m)
	want := "Name,Email,StudentID,2024-01-01\n" +
		`"Lee, Ann ""Annie""",ann@x.com,1,✓` + "\n"
	if got != want {
		t.Fatalf("got:\n%s\nwant:\n%s", got, want)
	}
}
