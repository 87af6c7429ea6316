package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/csvcodec"
	"fintrack/internal/log"

	"github.com/google/uuid"
)

// Store loads and replaces the whole transaction collection.
type Store interface {
	Load(ctx context.Context) ([]core.Transaction, error)
	Save(ctx context.Context, txs []core.Transaction) error
}

// EventPublisher announces collection changes to other processes.
type EventPublisher interface {
	PublishTransactionEvent(ctx context.Context, event *amqp.TransactionEvent) error
}

// ChangeHook runs after every successful write, e.g. to purge caches.
type ChangeHook func()

// TransactionService owns the transaction collection. Every operation runs
// load-mutate-save under one mutex so concurrent writers in this process
// never overwrite each other. Events are published after the mutex is
// released so a slow broker never blocks readers.
type TransactionService struct {
	mu        sync.Mutex
	store     Store
	publisher EventPublisher
	onChange  []ChangeHook
	logger    *log.Logger
}

func NewTransactionService(store Store, publisher EventPublisher) *TransactionService {
	return &TransactionService{
		store:     store,
		publisher: publisher,
		logger:    log.Default(log.ComponentTransaction),
	}
}

// WithLogger replaces the service logger.
func (s *TransactionService) WithLogger(logger *log.Logger) *TransactionService {
	if logger != nil {
		s.logger = logger.WithComponent(log.ComponentTransaction)
	}
	return s
}

// OnChange registers hooks that run after each committed write, before the
// next operation can observe the collection.
func (s *TransactionService) OnChange(hooks ...ChangeHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = append(s.onChange, hooks...)
}

// List returns the collection in store order. A store read failure is logged
// and reported as an empty collection.
func (s *TransactionService) List(ctx context.Context) []core.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()

	txs, err := s.store.Load(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to load transactions, returning empty list",
			log.NewFields().WithOperation(log.OpList).WithError(err).ToSlice()...)
		return []core.Transaction{}
	}
	return txs
}

// mutation edits the loaded collection. A nil event means nothing changed
// and nothing is saved.
type mutation func(txs []core.Transaction) ([]core.Transaction, *amqp.TransactionEvent, error)

// commit runs fn on the loaded collection and saves the result under the
// mutex, running the change hooks before releasing it. With load false fn
// receives nil instead of the stored collection.
func (s *TransactionService) commit(ctx context.Context, load bool, fn mutation) (*amqp.TransactionEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var txs []core.Transaction
	if load {
		var err error
		if txs, err = s.store.Load(ctx); err != nil {
			return nil, fmt.Errorf("load transactions: %w", err)
		}
	}

	next, event, err := fn(txs)
	if err != nil || event == nil {
		return nil, err
	}
	if err := s.store.Save(ctx, next); err != nil {
		return nil, fmt.Errorf("save transactions: %w", err)
	}

	for _, hook := range s.onChange {
		hook()
	}
	return event, nil
}

// Create appends a transaction. An empty id is replaced with a fresh UUID;
// an id already in the collection is rejected with core.ErrDuplicateID.
func (s *TransactionService) Create(ctx context.Context, in core.TransactionInput) (core.Transaction, error) {
	t, err := in.Build()
	if err != nil {
		return core.Transaction{}, err
	}
	if strings.TrimSpace(t.ID) == "" {
		t.ID = uuid.NewString()
	}

	event, err := s.commit(ctx, true, func(txs []core.Transaction) ([]core.Transaction, *amqp.TransactionEvent, error) {
		if indexOf(txs, t.ID) >= 0 {
			return nil, nil, fmt.Errorf("%w: %s", core.ErrDuplicateID, t.ID)
		}
		return append(txs, t), amqp.NewTransactionEvent(amqp.ActionCreated, t.ID, 1), nil
	})
	if err != nil {
		return core.Transaction{}, err
	}

	s.publish(ctx, log.OpCreate, event)
	return t, nil
}

// Update merges p into the first transaction with id. A missing id is a
// silent no-op; the returned bool reports whether a record matched.
func (s *TransactionService) Update(ctx context.Context, id string, p core.Patch) (bool, error) {
	matched := false
	event, err := s.commit(ctx, true, func(txs []core.Transaction) ([]core.Transaction, *amqp.TransactionEvent, error) {
		idx := indexOf(txs, id)
		if idx < 0 {
			return nil, nil, nil
		}
		matched = true
		if p.IsEmpty() {
			return nil, nil, nil
		}
		txs[idx] = txs[idx].Apply(p)
		return txs, amqp.NewTransactionEvent(amqp.ActionUpdated, id, 1), nil
	})
	if err != nil {
		return false, err
	}

	s.publish(ctx, log.OpUpdate, event)
	return matched, nil
}

// DeleteOne removes the first transaction with id. A missing id is a silent
// no-op, so repeated calls leave the same end state.
func (s *TransactionService) DeleteOne(ctx context.Context, id string) (bool, error) {
	event, err := s.commit(ctx, true, func(txs []core.Transaction) ([]core.Transaction, *amqp.TransactionEvent, error) {
		idx := indexOf(txs, id)
		if idx < 0 {
			return nil, nil, nil
		}
		return append(txs[:idx], txs[idx+1:]...), amqp.NewTransactionEvent(amqp.ActionDeleted, id, 1), nil
	})
	if err != nil {
		return false, err
	}

	s.publish(ctx, log.OpDelete, event)
	return event != nil, nil
}

// DeleteAll empties the collection.
func (s *TransactionService) DeleteAll(ctx context.Context) error {
	event, err := s.commit(ctx, false, func([]core.Transaction) ([]core.Transaction, *amqp.TransactionEvent, error) {
		return nil, amqp.NewTransactionEvent(amqp.ActionCleared, "", 0), nil
	})
	if err != nil {
		return err
	}

	s.publish(ctx, log.OpClear, event)
	return nil
}

// Import replaces the whole collection with the records decoded from
// csvText in a single save. Nothing is written when decoding fails or any
// row has an amount that is not a number.
func (s *TransactionService) Import(ctx context.Context, csvText string) (int, error) {
	imported, err := csvcodec.DecodeStrict(csvText)
	if err != nil {
		return 0, err
	}

	event, err := s.commit(ctx, false, func([]core.Transaction) ([]core.Transaction, *amqp.TransactionEvent, error) {
		return imported, amqp.NewTransactionEvent(amqp.ActionImported, "", len(imported)), nil
	})
	if err != nil {
		return 0, err
	}

	s.publish(ctx, log.OpImport, event)
	return len(imported), nil
}

// Export encodes the current collection as CSV.
func (s *TransactionService) Export(ctx context.Context) string {
	return csvcodec.Encode(s.List(ctx))
}

// publish announces a committed write. It must not be called with the mutex
// held.
func (s *TransactionService) publish(ctx context.Context, op string, event *amqp.TransactionEvent) {
	if event == nil {
		return
	}

	fields := log.NewFields().WithOperation(op).WithCount(event.Count)
	if event.ID != "" {
		fields = fields.WithTransactionID(event.ID)
	}

	if s.publisher == nil {
		s.logger.DebugContext(ctx, "Event publisher not configured, skipping event", fields.ToSlice()...)
		return
	}
	if err := s.publisher.PublishTransactionEvent(ctx, event); err != nil {
		// The write is already committed; the mirror catches up on resync.
		s.logger.ErrorContext(ctx, "Failed to publish transaction event", fields.WithError(err).ToSlice()...)
	}
}

func indexOf(txs []core.Transaction, id string) int {
	for i, t := range txs {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// IsValidationError reports whether err comes from the presence checks.
func IsValidationError(err error) bool {
	return errors.Is(err, core.ErrMissingAmount) ||
		errors.Is(err, core.ErrMissingCategory) ||
		errors.Is(err, core.ErrMissingDate)
}
