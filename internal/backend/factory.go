package backend

import (
	"context"
	"errors"
	"fmt"

	"fintrack/internal/amqp"
	"fintrack/internal/log"
	"fintrack/internal/services"
	"fintrack/internal/sheets"
	gsheet "fintrack/internal/sheets/google"
	"fintrack/internal/sheets/memory"
	"fintrack/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger

	// swappable in tests
	newEvents func(url, exchange, queue string, logger *log.Logger) (*amqp.Client, error)
	newGoogle func(ctx context.Context, spreadsheetID, sheetName string) (sheets.Mirror, error)
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &DefaultFactory{
		logger:    logger.WithComponent(log.ComponentBackend),
		newEvents: amqp.NewClient,
		newGoogle: newGoogleMirror,
	}
}

// CreateServer implements Factory.CreateServer. A broker that cannot be
// reached only disables events.
func (f *DefaultFactory) CreateServer(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid backend config: %w", err)
	}

	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	events := f.connectEvents(ctx, config)

	// a nil *amqp.Client must not reach the service as a non-nil interface
	var publisher services.EventPublisher
	if events != nil {
		publisher = events
	}
	svc := services.NewTransactionService(repo, publisher).WithLogger(f.logger)

	f.logger.InfoContext(ctx, "Initialized server backend",
		"db_path", config.SQLiteDBPath,
		"amqp_enabled", events != nil)

	return &BackendResult{
		Store:   repo,
		Service: svc,
		Events:  events,
		Cleanup: closeAll(events, repo),
	}, nil
}

// CreateWorker implements Factory.CreateWorker. Unlike the server, the
// worker has no purpose without a mirror, so mirror errors are fatal.
func (f *DefaultFactory) CreateWorker(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid backend config: %w", err)
	}

	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	var mirror sheets.Mirror
	switch config.Mirror {
	case GoogleMirror:
		mirror, err = f.newGoogle(ctx, config.GoogleSpreadsheetID, config.GoogleSheetName)
		if err != nil {
			_ = repo.Close()
			return nil, fmt.Errorf("failed to initialize Google Sheets mirror: %w", err)
		}
	default:
		mirror = memory.New()
	}

	events := f.connectEvents(ctx, config)

	f.logger.InfoContext(ctx, "Initialized worker backend",
		"db_path", config.SQLiteDBPath,
		"mirror", mirrorName(config.Mirror),
		"amqp_enabled", events != nil)

	return &BackendResult{
		Store:   repo,
		Events:  events,
		Mirror:  mirror,
		Cleanup: closeAll(events, repo),
	}, nil
}

func (f *DefaultFactory) connectEvents(ctx context.Context, config Config) *amqp.Client {
	if config.AMQPURL == "" {
		return nil
	}
	client, err := f.newEvents(config.AMQPURL, config.AMQPExchange, config.AMQPQueue, f.logger)
	if err != nil {
		f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without events", log.FieldError, err)
		return nil
	}
	f.logger.InfoContext(ctx, "Initialized AMQP client",
		"exchange", config.AMQPExchange,
		"queue", config.AMQPQueue)
	return client
}

func newGoogleMirror(ctx context.Context, spreadsheetID, sheetName string) (sheets.Mirror, error) {
	svc, err := gsheet.NewServiceFromEnv(ctx)
	if err != nil {
		return nil, err
	}
	return gsheet.New(svc, spreadsheetID, sheetName), nil
}

func mirrorName(mt MirrorType) string {
	if mt == "" {
		return MemoryMirror.String()
	}
	return mt.String()
}

func closeAll(events *amqp.Client, repo *storage.SQLiteRepository) CleanupFunc {
	return func() error {
		var errs []error
		if events != nil {
			if err := events.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close amqp: %w", err))
			}
		}
		if err := repo.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close sqlite: %w", err))
		}
		return errors.Join(errs...)
	}
}
