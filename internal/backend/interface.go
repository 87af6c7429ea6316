package backend

import (
	"context"

	"fintrack/internal/amqp"
	"fintrack/internal/services"
	"fintrack/internal/sheets"
	"fintrack/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult holds the wired components of one process. Fields a role
// does not need are left nil.
type BackendResult struct {
	Store   *storage.SQLiteRepository
	Service *services.TransactionService
	Events  *amqp.Client
	Mirror  sheets.Mirror
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateServer wires the store, the optional event publisher and the
	// transaction service used by the HTTP API.
	CreateServer(ctx context.Context, config Config) (*BackendResult, error)
	// CreateWorker wires the store, the event consumer and the sheet mirror.
	CreateWorker(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	SQLiteDBPath string

	// AMQP; empty URL disables events
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Mirror target
	Mirror              MirrorType
	GoogleSpreadsheetID string
	GoogleSheetName     string
}

// MirrorType selects where the worker mirrors the collection.
type MirrorType string

const (
	GoogleMirror MirrorType = "google"
	MemoryMirror MirrorType = "memory"
)

// String implements fmt.Stringer
func (mt MirrorType) String() string {
	return string(mt)
}

// IsValid returns true if the mirror type is valid
func (mt MirrorType) IsValid() bool {
	switch mt {
	case GoogleMirror, MemoryMirror:
		return true
	default:
		return false
	}
}
