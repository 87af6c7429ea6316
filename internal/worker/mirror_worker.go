package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/sheets"

	"golang.org/x/sync/errgroup"
)

// Loader reads the current transaction collection.
type Loader interface {
	Load(ctx context.Context) ([]core.Transaction, error)
}

// Consumer delivers transaction events to a handler until ctx is done.
type Consumer interface {
	ConsumeTransactionEvents(ctx context.Context, handler func(context.Context, *amqp.TransactionEvent) error) error
}

// MirrorWorker keeps a spreadsheet tab in step with the stored collection.
type MirrorWorker struct {
	store  Loader
	mirror sheets.Mirror
	logger *log.Logger
}

// NewMirrorWorker builds a worker. A nil logger logs through the slog default.
func NewMirrorWorker(store Loader, mirror sheets.Mirror, logger *log.Logger) *MirrorWorker {
	if logger == nil {
		logger = log.Default(log.ComponentWorker)
	}
	return &MirrorWorker{store: store, mirror: mirror, logger: logger.WithComponent(log.ComponentWorker)}
}

// HandleEvent rewrites the mirror after any collection change. Events carry
// no row data, so every action triggers a full rewrite.
func (w *MirrorWorker) HandleEvent(ctx context.Context, event *amqp.TransactionEvent) error {
	if event == nil {
		return errors.New("nil event")
	}

	w.logger.InfoContext(ctx, "Processing transaction event",
		"action", event.Action,
		log.FieldTransactionID, event.ID,
		log.FieldCount, event.Count)

	if err := w.Resync(ctx); err != nil {
		return fmt.Errorf("mirror after %s: %w", event.Action, err)
	}
	return nil
}

// Resync loads the collection and replaces the mirror contents.
func (w *MirrorWorker) Resync(ctx context.Context) error {
	txs, err := w.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load transactions: %w", err)
	}

	rows := sheets.Rows(txs)
	if err := w.mirror.ReplaceRows(ctx, rows); err != nil {
		return fmt.Errorf("replace rows: %w", err)
	}

	w.logger.InfoContext(ctx, "Mirror updated", log.FieldOperation, log.OpSync, log.FieldCount, len(rows)-1)
	return nil
}

// Run resyncs once, then serves events from consumer (when non-nil) and
// resyncs every interval until ctx is cancelled.
func (w *MirrorWorker) Run(ctx context.Context, consumer Consumer, interval time.Duration) error {
	if err := w.Resync(ctx); err != nil {
		w.logger.ErrorContext(ctx, "Startup resync failed", log.FieldOperation, log.OpStartup, log.FieldError, err)
	}

	g, ctx := errgroup.WithContext(ctx)

	if consumer != nil {
		g.Go(func() error {
			w.logger.InfoContext(ctx, "Starting AMQP consumer")
			err := consumer.ConsumeTransactionEvents(ctx, w.HandleEvent)
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("consume events: %w", err)
			}
			return nil
		})
	}

	if interval > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					if err := w.Resync(ctx); err != nil {
						w.logger.ErrorContext(ctx, "Periodic resync failed", log.FieldOperation, log.OpSync, log.FieldError, err)
					}
				}
			}
		})
	}

	return g.Wait()
}
