// Package service holds the rental ledger: the state machine that moves a
// title between Available and Rented. Opening and closing a rental each run
// as one transaction that pairs the rental write with the availability flip.
package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"

	"github.com/iliyamo/video-rental/internal/database"
	"github.com/iliyamo/video-rental/internal/model"
	"github.com/iliyamo/video-rental/internal/queue"
	"github.com/iliyamo/video-rental/internal/repository"
)

const instrumentationName = "github.com/iliyamo/video-rental/internal/service"

// EventPublisher receives rental events after their transaction committed.
type EventPublisher interface {
	PublishRentalEvent(ctx context.Context, event queue.RentalEvent) error
}

// Ledger opens and closes rentals. It is safe for concurrent use; per-title
// mutual exclusion comes from the store (row lock or single-writer
// transaction plus a guarded availability update), so several Ledger values
// or processes may share one store.
type Ledger struct {
	store     *database.Store
	titles    *repository.TitleRepo
	customers *repository.CustomerRepo
	rentals   *repository.RentalRepo

	publisher EventPublisher
	logger    *slog.Logger
	now       func() time.Time

	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	tracer         trace.Tracer
	opened         metric.Int64Counter
	closed         metric.Int64Counter
	conflicts      metric.Int64Counter
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithPublisher sets where rental events go after commit.
func WithPublisher(p EventPublisher) Option { return func(l *Ledger) { l.publisher = p } }

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option { return func(l *Ledger) { l.logger = logger } }

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option { return func(l *Ledger) { l.now = now } }

// WithTracerProvider overrides the global OpenTelemetry tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(l *Ledger) { l.tracerProvider = tp }
}

// WithMeterProvider overrides the global OpenTelemetry meter provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(l *Ledger) { l.meterProvider = mp }
}

// NewLedger wires the ledger to its repositories.
func NewLedger(
	store *database.Store,
	titles *repository.TitleRepo,
	customers *repository.CustomerRepo,
	rentals *repository.RentalRepo,
	opts ...Option,
) *Ledger {
	l := &Ledger{
		store:     store,
		titles:    titles,
		customers: customers,
		rentals:   rentals,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.tracerProvider == nil {
		l.tracerProvider = otel.GetTracerProvider()
	}
	if l.meterProvider == nil {
		l.meterProvider = otel.GetMeterProvider()
	}
	l.tracer = l.tracerProvider.Tracer(instrumentationName)
	meter := l.meterProvider.Meter(instrumentationName)
	l.opened = l.counter(meter, "rental.opened", "Rentals opened")
	l.closed = l.counter(meter, "rental.closed", "Rentals closed")
	l.conflicts = l.counter(meter, "rental.conflicts", "Rental attempts rejected because the title was already rented")
	return l
}

func (l *Ledger) counter(meter metric.Meter, name, desc string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(desc))
	if err != nil {
		l.logger.Warn("ledger: counter unavailable", "name", name, "err", err)
		c, _ = noop.NewMeterProvider().Meter(instrumentationName).Int64Counter(name)
	}
	return c
}

// OpenRental rents a title to a customer. The title lookup, the
// availability check, the rental insert and the availability flip run in a
// single transaction: of two concurrent calls for the same title exactly one
// succeeds and the other fails with a conflict.
func (l *Ledger) OpenRental(ctx context.Context, customerID, titleID uint64) (*model.Rental, error) {
	const op = "openRental"
	ctx, span := l.tracer.Start(ctx, "Ledger.OpenRental", trace.WithAttributes(
		attribute.Int64("rental.customer_id", int64(customerID)),
		attribute.Int64("rental.title_id", int64(titleID)),
	))
	defer span.End()

	rental := &model.Rental{CustomerID: customerID, TitleID: titleID}
	err := l.store.WithTx(ctx, func(tx *sql.Tx) error {
		title, err := l.titles.GetForUpdateTx(ctx, tx, titleID)
		if errors.Is(err, sql.ErrNoRows) {
			return repository.NotFoundError(op, "title %d not found", titleID)
		}
		if err != nil {
			return repository.StorageError(op, err)
		}
		if !title.Available {
			return repository.ConflictError(op, "title %d already rented", titleID)
		}
		exists, err := l.customers.ExistsTx(ctx, tx, customerID)
		if err != nil {
			return repository.StorageError(op, err)
		}
		if !exists {
			return repository.NotFoundError(op, "customer %d not found", customerID)
		}
		flipped, err := l.titles.SetAvailabilityTx(ctx, tx, titleID, false)
		if err != nil {
			return repository.StorageError(op, err)
		}
		if !flipped {
			return repository.ConflictError(op, "title %d already rented", titleID)
		}
		// Stamped under the lock so it never precedes the previous return.
		rental.OpenedAt = l.now().UTC()
		if err := l.rentals.CreateTx(ctx, tx, rental); err != nil {
			switch {
			case database.IsUniqueViolation(err):
				return repository.ConflictError(op, "title %d already rented", titleID)
			case database.IsForeignKeyViolation(err):
				return repository.NotFoundError(op, "customer %d or title %d not found", customerID, titleID)
			}
			return repository.StorageError(op, err)
		}
		return nil
	})
	if err != nil {
		err = repository.StorageError(op, err)
		l.fail(ctx, span, op, err)
		return nil, err
	}

	span.SetAttributes(attribute.Int64("rental.id", int64(rental.ID)))
	l.opened.Add(ctx, 1)
	l.logger.InfoContext(ctx, "rental opened",
		"rental_id", rental.ID, "customer_id", customerID, "title_id", titleID)
	l.publish(ctx, queue.RentalEvent{
		Type:       queue.EventRentalOpened,
		RentalID:   rental.ID,
		CustomerID: rental.CustomerID,
		TitleID:    rental.TitleID,
		OpenedAt:   rental.OpenedAt.Format(database.TimeLayout),
	})
	return rental, nil
}

// CloseRental returns a rented title. Only an open rental can be closed, so
// a second return of the same rental fails with not found and the title's
// availability flips exactly once. Closing stamps closed_at and makes the
// title available in the same transaction.
func (l *Ledger) CloseRental(ctx context.Context, rentalID uint64) (*model.RentalReturn, error) {
	const op = "closeRental"
	ctx, span := l.tracer.Start(ctx, "Ledger.CloseRental", trace.WithAttributes(
		attribute.Int64("rental.id", int64(rentalID)),
	))
	defer span.End()

	var (
		rental *model.Rental
		ret    model.RentalReturn
	)
	err := l.store.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		rental, err = l.rentals.GetOpenForUpdateTx(ctx, tx, rentalID)
		if errors.Is(err, sql.ErrNoRows) {
			return repository.NotFoundError(op, "rental %d not found or already returned", rentalID)
		}
		if err != nil {
			return repository.StorageError(op, err)
		}
		closedAt := l.now().UTC()
		if closedAt.Before(rental.OpenedAt) {
			closedAt = rental.OpenedAt
		}
		ok, err := l.rentals.CloseTx(ctx, tx, rentalID, closedAt)
		if err != nil {
			return repository.StorageError(op, err)
		}
		if !ok {
			return repository.NotFoundError(op, "rental %d not found or already returned", rentalID)
		}
		flipped, err := l.titles.SetAvailabilityTx(ctx, tx, rental.TitleID, true)
		if err != nil {
			return repository.StorageError(op, err)
		}
		if !flipped {
			// The title was already available while this rental was open; after
			// this commit flag and rental agree again.
			l.logger.WarnContext(ctx, "ledger: title was available during an open rental",
				"rental_id", rentalID, "title_id", rental.TitleID)
		}
		ret = model.RentalReturn{ID: rentalID, TitleID: rental.TitleID, ClosedAt: closedAt}
		return nil
	})
	if err != nil {
		err = repository.StorageError(op, err)
		l.fail(ctx, span, op, err)
		return nil, err
	}

	l.closed.Add(ctx, 1)
	l.logger.InfoContext(ctx, "rental closed", "rental_id", rentalID, "title_id", ret.TitleID)
	l.publish(ctx, queue.RentalEvent{
		Type:       queue.EventRentalClosed,
		RentalID:   rentalID,
		CustomerID: rental.CustomerID,
		TitleID:    rental.TitleID,
		OpenedAt:   rental.OpenedAt.Format(database.TimeLayout),
		ClosedAt:   ret.ClosedAt.Format(database.TimeLayout),
	})
	return &ret, nil
}

// CheckConsistency lists titles whose availability flag disagrees with their
// open rentals.
func (l *Ledger) CheckConsistency(ctx context.Context) ([]uint64, error) {
	return l.rentals.InconsistentTitles(ctx)
}

func (l *Ledger) fail(ctx context.Context, span trace.Span, op string, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	if errors.Is(err, repository.ErrConflict) {
		l.conflicts.Add(ctx, 1)
	}
	level := slog.LevelInfo
	if errors.Is(err, repository.ErrStorage) {
		level = slog.LevelError
	}
	l.logger.Log(ctx, level, "ledger: operation failed", "op", op, "err", err)
}

// publish emits ev best-effort. The rental has already committed, so a
// broker failure is logged and never reported to the caller.
func (l *Ledger) publish(ctx context.Context, ev queue.RentalEvent) {
	if l.publisher == nil {
		return
	}
	ev.EventID = uuid.NewString()
	ev.OccurredAt = l.now().UTC().Format(database.TimeLayout)
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
	defer cancel()
	if err := l.publisher.PublishRentalEvent(pctx, ev); err != nil {
		l.logger.WarnContext(ctx, "ledger: publish rental event failed",
			"type", ev.Type, "rental_id", ev.RentalID, "err", err)
	}
}
