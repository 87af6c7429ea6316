package sheets

import (
	"context"

	"fintrack/internal/core"
	"fintrack/internal/csvcodec"
)

// Mirror is a spreadsheet tab that holds a copy of the collection.
type Mirror interface {
	// ReplaceRows overwrites the tab with rows; the first row is the header.
	ReplaceRows(ctx context.Context, rows [][]string) error
}

// Rows lays txs out as a header row followed by one row per transaction,
// using the same columns as the CSV export.
func Rows(txs []core.Transaction) [][]string {
	rows := make([][]string, 0, len(txs)+1)
	rows = append(rows, append([]string(nil), csvcodec.HeaderFields...))
	for _, t := range txs {
		rows = append(rows, csvcodec.Row(t))
	}
	return rows
}
