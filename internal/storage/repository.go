package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/log"

	_ "modernc.org/sqlite"
)

const (
	selectAllQuery = `SELECT id, title, amount, category, date FROM transactions ORDER BY rowid`
	deleteAllQuery = `DELETE FROM transactions`
	insertQuery    = `INSERT INTO transactions (id, title, amount, category, date) VALUES (?, ?, ?, ?, ?)`
)

// SQLiteRepository persists the whole transaction collection in one table.
// Row order (rowid) is the collection order.
type SQLiteRepository struct {
	db *sql.DB
}

// SQLite result codes for a file that is not a readable database.
const (
	sqliteCorrupt = 11
	sqliteNotADB  = 26
)

// NewSQLiteRepository opens (creating if needed) the database at dbPath and
// migrates it. A file that is not a readable SQLite database is renamed to
// dbPath.corrupt-<timestamp> and replaced with an empty one.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := openDatabase(dbPath)
	if err != nil && isCorrupt(err) {
		moved, qerr := quarantine(dbPath, time.Now())
		if qerr != nil {
			return nil, fmt.Errorf("%w (move aside: %v)", err, qerr)
		}
		log.Default(log.ComponentStorage).Warn("Database file unreadable, moved aside and starting empty",
			"db_path", dbPath,
			"moved_to", moved,
			log.FieldError, err)
		db, err = openDatabase(dbPath)
	}
	if err != nil {
		return nil, err
	}

	return &SQLiteRepository{db: db}, nil
}

func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single connection keeps writers from tripping over SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return db, nil
}

// isCorrupt reports whether err means the file is not a usable database.
func isCorrupt(err error) bool {
	var coded interface{ Code() int }
	if errors.As(err, &coded) {
		switch coded.Code() & 0xff {
		case sqliteCorrupt, sqliteNotADB:
			return true
		}
	}
	msg := err.Error()
	return strings.Contains(msg, "file is not a database") ||
		strings.Contains(msg, "database disk image is malformed")
}

// quarantine renames the database and its journal files out of the way and
// returns the new database path.
func quarantine(dbPath string, now time.Time) (string, error) {
	suffix := ".corrupt-" + now.UTC().Format("20060102T150405")
	moved := dbPath + suffix
	if err := os.Rename(dbPath, moved); err != nil {
		return "", err
	}
	for _, journal := range []string{"-wal", "-shm", "-journal"} {
		if err := os.Rename(dbPath+journal, moved+journal); err != nil && !errors.Is(err, os.ErrNotExist) {
			return moved, err
		}
	}
	return moved, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks that the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Load returns every stored transaction in insertion order.
// NULL columns load as zero values.
func (r *SQLiteRepository) Load(ctx context.Context) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, selectAllQuery)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	txs := make([]core.Transaction, 0)
	for rows.Next() {
		var (
			id, title, category, date sql.NullString
			amount                    sql.NullFloat64
		)
		if err := rows.Scan(&id, &title, &amount, &category, &date); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, core.Transaction{
			ID:       id.String,
			Title:    title.String,
			Amount:   amount.Float64,
			Category: category.String,
			Date:     date.String,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return txs, nil
}

// Save replaces the stored collection with txs. The replacement happens in
// one SQL transaction; on failure the previous collection is left intact.
func (r *SQLiteRepository) Save(ctx context.Context, txs []core.Transaction) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, deleteAllQuery); err != nil {
		return fmt.Errorf("clear transactions: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, insertQuery)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, t := range txs {
		if _, err := stmt.ExecContext(ctx, t.ID, t.Title, t.Amount, t.Category, t.Date); err != nil {
			return fmt.Errorf("insert transaction %s: %w", t.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
