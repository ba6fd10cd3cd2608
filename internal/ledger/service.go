// Package ledger maintains per-date attendance records. Check-in is an
// add-to-set union, so the operation is idempotent and concurrent writers
// merge instead of overwriting each other.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"rollcall/internal/docstore"
	"rollcall/internal/platform/metrics"
	"rollcall/internal/roster"
	dErrors "rollcall/pkg/domain-errors"
	"rollcall/pkg/platform/audit"
)

// enrichConcurrency bounds the per-attendee fan-out against the remote store.
const enrichConcurrency = 8

var tracer = otel.Tracer("rollcall/internal/ledger")

type Service struct {
	store   docstore.Store
	logger  *slog.Logger
	metrics *metrics.Metrics
	auditor audit.Publisher
	now     func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithAuditPublisher(publisher audit.Publisher) Option {
	return func(s *Service) {
		s.auditor = publisher
	}
}

// WithClock overrides the time source; tests pin "today".
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func New(store docstore.Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("document store is required")
	}

	svc := &Service{
		store:   store,
		logger:  slog.Default(),
		auditor: audit.Nop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// CheckIn records personID against today's attendance document and returns
// the date key it landed on. Checking the same person in twice on one day is
// a no-op after the first; concurrent check-ins for different people both
// survive because the attendee set is unioned, never replaced.
func (s *Service) CheckIn(ctx context.Context, personID string) (string, error) {
	ctx, span := tracer.Start(ctx, "ledger.CheckIn")
	defer span.End()

	if personID == "" {
		return "", dErrors.New(dErrors.CodeBadRequest, "person id is required")
	}

	now := s.now().UTC()
	date := now.Format(DateLayout)

	err := s.store.UpdateUnion(ctx, docstore.CollectionAttendance, date, "attendees", personID)
	if err != nil {
		s.logger.ErrorContext(ctx, "check-in write failed", "person_id", personID, "date", date, "error", err)
		return "", dErrors.Wrap(err, dErrors.CodeUnavailable, "check-in write failed")
	}

	s.stampCreation(ctx, date, now)

	if s.metrics != nil {
		s.metrics.CheckinsTotal.Inc()
	}
	s.auditor.Emit(ctx, audit.Event{
		Action:  "person_checked_in",
		Subject: personID,
		At:      now,
		Detail:  date,
	})
	s.logger.InfoContext(ctx, "person checked in", "person_id", personID, "date", date)
	return date, nil
}

// stampCreation backfills the creation timestamp on a freshly-created
// document. Best effort: a failure here leaves a record whose decode defaults
// the timestamp, which readers already tolerate.
func (s *Service) stampCreation(ctx context.Context, date string, now time.Time) {
	doc, err := s.store.Get(ctx, docstore.CollectionAttendance, date)
	if err != nil {
		if !errors.Is(err, docstore.ErrNotFound) {
			s.logger.WarnContext(ctx, "could not read back attendance record", "date", date, "error", err)
		}
		return
	}
	if _, ok := doc["date"]; ok {
		return
	}
	fields := docstore.Document{"date": now, "description": ""}
	if err := s.store.Set(ctx, docstore.CollectionAttendance, date, fields); err != nil {
		s.logger.WarnContext(ctx, "could not stamp attendance record", "date", date, "error", err)
	}
}

// FetchForDate resolves the attendance record for a date key. A date with no
// document yields a logically-empty record and no error; a transport failure
// yields the same empty record alongside the error so callers can still show
// what they have.
func (s *Service) FetchForDate(ctx context.Context, date string) (Record, error) {
	doc, err := s.store.Get(ctx, docstore.CollectionAttendance, date)
	if errors.Is(err, docstore.ErrNotFound) {
		return emptyRecord(date, s.now().UTC()), nil
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "attendance fetch failed", "date", date, "error", err)
		return emptyRecord(date, s.now().UTC()), dErrors.Wrap(err, dErrors.CodeUnavailable, "attendance fetch failed")
	}
	return RecordFromDocument(date, doc, s.now().UTC()), nil
}

// ListDates returns every attendance date key in ascending order. The date
// key format is fixed-width, so string order is chronological order.
func (s *Service) ListDates(ctx context.Context) ([]string, error) {
	docs, err := s.store.GetAll(ctx, docstore.CollectionAttendance)
	if err != nil {
		s.logger.ErrorContext(ctx, "attendance listing failed", "error", err)
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "attendance listing failed")
	}

	dates := make([]string, 0, len(docs))
	for date := range docs {
		dates = append(dates, date)
	}
	sort.Strings(dates)
	return dates, nil
}

// LatestDate returns the most recent attendance date, used as the default
// selection when browsing records.
func (s *Service) LatestDate(ctx context.Context) (string, bool, error) {
	dates, err := s.ListDates(ctx)
	if err != nil {
		return "", false, err
	}
	if len(dates) == 0 {
		return "", false, nil
	}
	return dates[len(dates)-1], true, nil
}

// EnrichAttendees resolves each attendee ID in the record to a full Person.
// One fetch fans out per identifier and the result is produced only after
// every fetch has completed. An identifier with no roster document, or whose
// fetch fails, degrades to an Unknown placeholder so no attendee is silently
// dropped.
func (s *Service) EnrichAttendees(ctx context.Context, rec Record) ([]roster.Person, error) {
	ctx, span := tracer.Start(ctx, "ledger.EnrichAttendees")
	defer span.End()

	people := make([]roster.Person, len(rec.Attendees))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(enrichConcurrency)
	for i, id := range rec.Attendees {
		g.Go(func() error {
			doc, err := s.store.Get(ctx, docstore.CollectionUsers, id)
			if err != nil {
				if !errors.Is(err, docstore.ErrNotFound) {
					s.logger.WarnContext(ctx, "attendee fetch degraded to placeholder", "attendee_id", id, "error", err)
				}
				people[i] = roster.Unknown(id)
				return nil
			}
			people[i] = roster.PersonFromDocument(id, doc)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		// Sub-fetches never return errors; this is context cancellation.
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "attendee enrichment interrupted")
	}
	return people, nil
}
