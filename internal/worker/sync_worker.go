// Package worker runs the spreadsheet mirror consumer. It drains
// expense events from RabbitMQ and replays them against the configured
// MirrorWriter.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/astelwilliam/expense-tracker/internal/amqp"
	"github.com/astelwilliam/expense-tracker/internal/core"
	"github.com/astelwilliam/expense-tracker/internal/log"
	"github.com/astelwilliam/expense-tracker/internal/storage"
)

// EventSource delivers expense events to a handler until the context is
// cancelled. Satisfied by amqp.Client.
type EventSource interface {
	ConsumeEvents(ctx context.Context, handler amqp.EventHandler) error
}

// ExpenseLookup resolves an expense by ID regardless of owner. The
// worker runs outside any session so it cannot scope lookups to a user.
type ExpenseLookup interface {
	GetExpenseByID(ctx context.Context, id int64) (*core.Expense, error)
}

// MirrorTarget is the subset of the sheets port the worker drives.
type MirrorTarget interface {
	AppendExpense(ctx context.Context, e core.Expense) error
	RemoveExpense(ctx context.Context, e core.Expense) error
}

type SyncWorker struct {
	source EventSource
	store  ExpenseLookup
	mirror MirrorTarget
	logger *log.Logger

	// Heartbeat interval for the liveness log line.
	heartbeat time.Duration
}

// NewSyncWorker builds a worker. A zero heartbeat falls back to five
// minutes.
func NewSyncWorker(source EventSource, store ExpenseLookup, mirror MirrorTarget, heartbeat time.Duration) *SyncWorker {
	if heartbeat <= 0 {
		heartbeat = 5 * time.Minute
	}
	cfg := log.DefaultConfig()
	cfg.Component = log.ComponentWorker
	return &SyncWorker{
		source:    source,
		store:     store,
		mirror:    mirror,
		logger:    log.New(cfg),
		heartbeat: heartbeat,
	}
}

// Run consumes events until the context is cancelled. The consumer and
// the heartbeat run under one errgroup so either failing stops both.
func (w *SyncWorker) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return w.source.ConsumeEvents(ctx, w.handleEvent)
	})

	g.Go(func() error {
		ticker := time.NewTicker(w.heartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				w.logger.InfoContext(ctx, "Mirror worker alive")
			}
		}
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (w *SyncWorker) handleEvent(ctx context.Context, event *amqp.ExpenseEvent) error {
	switch event.Kind {
	case amqp.EventExpenseCreated:
		return w.mirrorCreated(ctx, event.ExpenseID)
	case amqp.EventExpenseDeleted:
		return w.mirrorDeleted(ctx, event)
	default:
		// Unknown kinds are logged and acked so they do not clog
		// the queue.
		w.logger.WarnContext(ctx, "Skipping event of unknown kind", "kind", event.Kind)
		return nil
	}
}

func (w *SyncWorker) mirrorCreated(ctx context.Context, id int64) error {
	e, err := w.store.GetExpenseByID(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		// Deleted before the mirror caught up. Nothing to append.
		w.logger.WarnContext(ctx, "Expense gone before mirroring", log.FieldExpenseID, id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load expense %d: %w", id, err)
	}

	if err := w.mirror.AppendExpense(ctx, *e); err != nil {
		return fmt.Errorf("append expense %d to mirror: %w", id, err)
	}

	w.logger.InfoContext(ctx, "Mirrored expense", log.FieldExpenseID, id)
	return nil
}

func (w *SyncWorker) mirrorDeleted(ctx context.Context, event *amqp.ExpenseEvent) error {
	if event.Snapshot == nil {
		w.logger.WarnContext(ctx, "Delete event without snapshot, skipping",
			log.FieldExpenseID, event.ExpenseID)
		return nil
	}

	date, err := core.ParseDate(event.Snapshot.Date)
	if err != nil {
		w.logger.WarnContext(ctx, "Delete event with malformed date, skipping",
			log.FieldExpenseID, event.ExpenseID, "date", event.Snapshot.Date)
		return nil
	}

	category, _ := core.ParseCategory(event.Snapshot.Category)
	e := core.Expense{
		ID:       event.ExpenseID,
		Title:    event.Snapshot.Title,
		Amount:   core.Money{Cents: event.Snapshot.AmountCents},
		Date:     date,
		Category: category,
	}

	if err := w.mirror.RemoveExpense(ctx, e); err != nil {
		return fmt.Errorf("remove expense %d from mirror: %w", event.ExpenseID, err)
	}

	w.logger.InfoContext(ctx, "Removed mirrored expense", log.FieldExpenseID, event.ExpenseID)
	return nil
}
