// Package worker copies income changes from SQLite into the backup
// spreadsheet. Events arrive over AMQP; a periodic sweep retries anything the
// events missed.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ruktech/income-tracker/internal/amqp"
	"github.com/ruktech/income-tracker/internal/core"
	"github.com/ruktech/income-tracker/internal/log"
	"github.com/ruktech/income-tracker/internal/sheets"
	"github.com/ruktech/income-tracker/internal/storage"
)

// ExportStore is the storage surface the worker needs. It is unscoped: the
// worker exports every user's records.
type ExportStore interface {
	GetIncomeAny(ctx context.Context, id int64) (core.Income, error)
	GetUser(ctx context.Context, id int64) (core.User, error)
	ListPendingExport(ctx context.Context, limit int) ([]int64, error)
	MarkExported(ctx context.Context, id int64) error
	MarkExportError(ctx context.Context, id int64) error
}

// EventSource delivers change events until the context is cancelled.
type EventSource interface {
	ConsumeIncomeEvents(ctx context.Context, handler func(*amqp.IncomeEventMessage) error) error
}

type ExportWorker struct {
	store     ExportStore
	writer    sheets.IncomeWriter
	batchSize int
	logger    *log.Logger
}

func NewExportWorker(store ExportStore, writer sheets.IncomeWriter, batchSize int, logger *log.Logger) *ExportWorker {
	if batchSize < 1 {
		batchSize = 1
	}
	return &ExportWorker{
		store:     store,
		writer:    writer,
		batchSize: batchSize,
		logger:    logger.WithComponent(log.ComponentWorker),
	}
}

// HandleIncomeEvent processes one change event. Deletes are skipped: the
// backup sheet is append-only, so a removed income simply stops being updated.
// An income already gone from the database is treated as handled.
func (w *ExportWorker) HandleIncomeEvent(ctx context.Context, msg *amqp.IncomeEventMessage) error {
	w.logger.InfoContext(ctx, "Processing income event",
		log.FieldIncomeID, msg.ID,
		"action", msg.Action)

	if msg.Action == amqp.ActionDeleted {
		return nil
	}
	return w.exportIncome(ctx, msg.ID)
}

// ProcessPending exports one batch of incomes whose state is still pending.
// Per-record failures are marked and skipped so one bad row never blocks the
// rest of the batch.
func (w *ExportWorker) ProcessPending(ctx context.Context) error {
	ids, err := w.store.ListPendingExport(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("list pending export: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}

	w.logger.InfoContext(ctx, "Processing pending exports", "count", len(ids))

	for _, id := range ids {
		if err := w.exportIncome(ctx, id); err != nil {
			w.logger.ErrorContext(ctx, "Failed to export income",
				log.FieldIncomeID, id,
				log.FieldError, err)
		}
	}
	return nil
}

// Run consumes events and sweeps pending rows until the context is cancelled.
func (w *ExportWorker) Run(ctx context.Context, events EventSource, sweepInterval time.Duration) error {
	g, ctx := errgroup.WithContext(ctx)

	if events != nil {
		g.Go(func() error {
			return events.ConsumeIncomeEvents(ctx, func(msg *amqp.IncomeEventMessage) error {
				return w.HandleIncomeEvent(ctx, msg)
			})
		})
	}

	g.Go(func() error {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				if err := w.ProcessPending(ctx); err != nil {
					w.logger.ErrorContext(ctx, "Pending sweep failed", log.FieldError, err)
				}
			}
		}
	})

	return g.Wait()
}

func (w *ExportWorker) exportIncome(ctx context.Context, id int64) error {
	inc, err := w.store.GetIncomeAny(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		w.logger.WarnContext(ctx, "Income gone before export, skipping", log.FieldIncomeID, id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get income %d: %w", id, err)
	}

	owner := fmt.Sprintf("user-%d", inc.OwnerID)
	if user, err := w.store.GetUser(ctx, inc.OwnerID); err == nil && user.Username != "" {
		owner = user.Username
	}

	ref, err := w.writer.AppendIncome(ctx, exportRow(inc, owner))
	if err != nil {
		if markErr := w.store.MarkExportError(ctx, id); markErr != nil {
			w.logger.ErrorContext(ctx, "Failed to mark export error",
				log.FieldIncomeID, id,
				log.FieldError, markErr)
		}
		return fmt.Errorf("append income %d: %w", id, err)
	}

	if err := w.store.MarkExported(ctx, id); err != nil {
		// The row is in the sheet; a stale state only causes one extra append
		// on the next sweep.
		w.logger.ErrorContext(ctx, "Failed to mark income as exported",
			log.FieldIncomeID, id,
			log.FieldError, err)
	}

	w.logger.InfoContext(ctx, "Income exported",
		log.FieldIncomeID, id,
		"sheets_ref", ref)
	return nil
}

func exportRow(inc core.Income, owner string) sheets.IncomeRow {
	return sheets.IncomeRow{
		ID:          inc.ID,
		Owner:       owner,
		DueDate:     inc.DueDate.String(),
		Category:    inc.CategoryName,
		Description: inc.Description,
		Amount:      inc.Amount.Decimal(),
		Currency:    string(inc.Currency),
		Frequency:   string(inc.Frequency),
		Active:      inc.Active,
	}
}
