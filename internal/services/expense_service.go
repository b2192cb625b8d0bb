package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/astelwilliam/expense-tracker/internal/amqp"
	"github.com/astelwilliam/expense-tracker/internal/core"
	"github.com/astelwilliam/expense-tracker/internal/storage"
)

// ExpenseService orchestrates expense creation: budget alert evaluation,
// the SQLite write, and the optional mirror event on AMQP.
type ExpenseService struct {
	storage    *storage.Repository
	evaluator  *Evaluator
	amqpClient *amqp.Client
}

func NewExpenseService(storage *storage.Repository, evaluator *Evaluator, amqpClient *amqp.Client) *ExpenseService {
	return &ExpenseService{
		storage:    storage,
		evaluator:  evaluator,
		amqpClient: amqpClient,
	}
}

// Create evaluates budget alerts for the candidate expense, persists it,
// and publishes a mirror event. The alerts are advisory: an evaluator
// failure is logged and the save proceeds without messages, never the
// other way around.
func (s *ExpenseService) Create(ctx context.Context, e core.Expense) (int64, []string, error) {
	if err := e.Validate(); err != nil {
		return 0, nil, err
	}

	var alerts []string
	if s.evaluator != nil {
		var err error
		alerts, err = s.evaluator.Evaluate(ctx, e.UserID, e.Category, e.Amount, e.Date)
		if err != nil {
			slog.ErrorContext(ctx, "Budget alert evaluation failed",
				"user_id", e.UserID,
				"category", e.Category,
				"error", err)
			alerts = nil
		}
	}

	id, err := s.storage.CreateExpense(ctx, e)
	if err != nil {
		return 0, nil, fmt.Errorf("save expense: %w", err)
	}

	if err := s.publishCreated(ctx, id); err != nil {
		slog.ErrorContext(ctx, "Failed to publish expense-created event",
			"id", id, "error", err)
		// Expense is saved locally; the mirror catches up later.
	}

	return id, alerts, nil
}

// Delete removes an expense owned by the user and publishes the matching
// mirror event. The row is snapshot before deletion because the mirror
// needs its fields to find the corresponding sheet row.
func (s *ExpenseService) Delete(ctx context.Context, userID, id int64) error {
	var snapshot *amqp.ExpenseSnapshot
	if s.amqpClient != nil {
		e, err := s.storage.GetExpense(ctx, userID, id)
		if err == nil {
			snapshot = &amqp.ExpenseSnapshot{
				Title:       e.Title,
				AmountCents: e.Amount.Cents,
				Date:        e.Date.ISO(),
				Category:    string(e.Category),
			}
		}
	}

	if err := s.storage.DeleteExpense(ctx, userID, id); err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}

	if err := s.publishDeleted(ctx, id, snapshot); err != nil {
		slog.ErrorContext(ctx, "Failed to publish expense-deleted event",
			"id", id, "error", err)
	}

	return nil
}

func (s *ExpenseService) publishCreated(ctx context.Context, id int64) error {
	if s.amqpClient == nil {
		slog.DebugContext(ctx, "AMQP client not available, skipping expense-created event")
		return nil
	}
	return s.amqpClient.PublishExpenseCreated(ctx, id)
}

func (s *ExpenseService) publishDeleted(ctx context.Context, id int64, snapshot *amqp.ExpenseSnapshot) error {
	if s.amqpClient == nil {
		slog.DebugContext(ctx, "AMQP client not available, skipping expense-deleted event")
		return nil
	}
	return s.amqpClient.PublishExpenseDeleted(ctx, id, snapshot)
}

// Close closes storage and AMQP connections.
func (s *ExpenseService) Close() error {
	var errs []error

	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if s.amqpClient != nil {
		if err := s.amqpClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close expense service: %v", errs)
	}

	return nil
}
