// Package export joins the roster against the full attendance ledger into a
// people-by-dates presence matrix and serializes it as CSV.
package export

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"rollcall/internal/ledger"
	"rollcall/internal/platform/metrics"
	"rollcall/internal/roster"
	dErrors "rollcall/pkg/domain-errors"
)

// Presence markers, matching the historical export format.
const (
	markPresent = "✓"
	markAbsent  = "✗"
)

// snapshotConcurrency bounds the per-date record fetch fan-out.
const snapshotConcurrency = 8

var tracer = otel.Tracer("rollcall/internal/export")

// Rosterer supplies the current roster snapshot.
type Rosterer interface {
	Snapshot() []roster.Person
}

// Ledgerer supplies attendance dates and records.
type Ledgerer interface {
	ListDates(ctx context.Context) ([]string, error)
	FetchForDate(ctx context.Context, date string) (ledger.Record, error)
}

// Matrix is the derived people-by-dates presence grid. Rows are sorted by
// person name, dates ascending; it is computed on demand and never persisted.
type Matrix struct {
	Dates []string
	Rows  []Row
}

// Row is one person's presence across every date column.
type Row struct {
	Person  roster.Person
	Present []bool
}

type Aggregator struct {
	roster  Rosterer
	ledger  Ledgerer
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Aggregator)

func WithLogger(logger *slog.Logger) Option {
	return func(a *Aggregator) {
		a.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Aggregator) {
		a.metrics = m
	}
}

func New(rosterer Rosterer, ledgerer Ledgerer, opts ...Option) (*Aggregator, error) {
	if rosterer == nil {
		return nil, fmt.Errorf("roster source is required")
	}
	if ledgerer == nil {
		return nil, fmt.Errorf("ledger source is required")
	}

	a := &Aggregator{
		roster: rosterer,
		ledger: ledgerer,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Snapshot fetches every attendance record before any matrix work begins, so
// the export never sees a partially-populated column set. Individual record
// fetch failures degrade to empty records; only a failed date listing aborts.
func (a *Aggregator) Snapshot(ctx context.Context) (map[string]ledger.Record, error) {
	ctx, span := tracer.Start(ctx, "export.Snapshot")
	defer span.End()

	dates, err := a.ledger.ListDates(ctx)
	if err != nil {
		return nil, err
	}

	records := make([]ledger.Record, len(dates))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(snapshotConcurrency)
	for i, date := range dates {
		g.Go(func() error {
			rec, err := a.ledger.FetchForDate(ctx, date)
			if err != nil {
				a.logger.WarnContext(ctx, "export degraded to empty record", "date", date, "error", err)
			}
			records[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "ledger snapshot interrupted")
	}

	out := make(map[string]ledger.Record, len(records))
	for _, rec := range records {
		out[rec.Date] = rec
	}
	return out, nil
}

// BuildMatrix computes the presence grid for the given roster and records.
// Pure: row order is alphabetical by name regardless of roster fetch order,
// and dates sort ascending (fixed-width keys, so string order is date order).
func BuildMatrix(people []roster.Person, records map[string]ledger.Record) Matrix {
	dates := make([]string, 0, len(records))
	for date := range records {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	sorted := append([]roster.Person(nil), people...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Name != sorted[j].Name {
			return sorted[i].Name < sorted[j].Name
		}
		return sorted[i].ID < sorted[j].ID
	})

	rows := make([]Row, len(sorted))
	for i, p := range sorted {
		present := make([]bool, len(dates))
		for j, date := range dates {
			present[j] = records[date].Contains(p.ID)
		}
		rows[i] = Row{Person: p, Present: present}
	}
	return Matrix{Dates: dates, Rows: rows}
}

// SerializeCSV renders the matrix. Header is Name,Email,StudentID followed by
// the date columns; every row ends with a single newline and no trailing
// separator. Fields containing the delimiter are quoted per RFC 4180.
func SerializeCSV(m Matrix) string {
	var b strings.Builder

	header := append([]string{"Name", "Email", "StudentID"}, m.Dates...)
	writeRow(&b, header)

	for _, row := range m.Rows {
		fields := []string{row.Person.Name, row.Person.Email, row.Person.StudentID}
		for _, present := range row.Present {
			if present {
				fields = append(fields, markPresent)
			} else {
				fields = append(fields, markAbsent)
			}
		}
		writeRow(&b, fields)
	}
	return b.String()
}

// Export builds and serializes the matrix from live sources.
func (a *Aggregator) Export(ctx context.Context) (string, error) {
	ctx, span := tracer.Start(ctx, "export.Export")
	defer span.End()

	start := time.Now()
	records, err := a.Snapshot(ctx)
	if err != nil {
		return "", err
	}

	csv := SerializeCSV(BuildMatrix(a.roster.Snapshot(), records))
	if a.metrics != nil {
		a.metrics.ExportDuration.Observe(time.Since(start).Seconds())
	}
	return csv, nil
}

// Write streams the export to a sink.
func (a *Aggregator) Write(ctx context.Context, w io.Writer) error {
	csv, err := a.Export(ctx)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, csv); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "write export")
	}
	return nil
}

func writeRow(b *strings.Builder, fields []string) {
	for i, field := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(escapeField(field))
	}
	b.WriteByte('\n')
}

// escapeField quotes only when necessary so the common output stays
// byte-identical to the historical format.
func escapeField(field string) string {
	if !strings.ContainsAny(field, ",\"\n\r") {
		return field
	}
	return `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
}
