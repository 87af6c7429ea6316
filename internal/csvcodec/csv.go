// Package csvcodec converts transaction collections to and from the
// spreadsheet-friendly CSV layout used by export and import.
package csvcodec

import (
	"encoding/csv"
	"errors"
	"io"
	"math"
	"strings"

	"fintrack/internal/core"

	"github.com/google/uuid"
)

// Header is the first line of every encoded document.
const Header = "Title,Category,Amount,Date"

// HeaderFields are the column names of Header, in order.
var HeaderFields = []string{"Title", "Category", "Amount", "Date"}

// Encode renders txs as CSV. Title and category are always quoted with
// embedded quotes doubled; amount and date are written bare. Lines are
// separated by "\n" with no trailing newline.
func Encode(txs []core.Transaction) string {
	var b strings.Builder
	b.WriteString(Header)
	for _, t := range txs {
		b.WriteByte('\n')
		b.WriteString(quote(t.Title))
		b.WriteByte(',')
		b.WriteString(quote(t.Category))
		b.WriteByte(',')
		b.WriteString(core.FormatAmount(t.Amount))
		b.WriteByte(',')
		b.WriteString(t.Date)
	}
	return b.String()
}

// Row returns the cell values Encode would write for t, unquoted.
func Row(t core.Transaction) []string {
	return []string{t.Title, t.Category, core.FormatAmount(t.Amount), t.Date}
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// Decode parses CSV text into transactions with fresh ids. The first line is
// a header and is skipped without inspection. Amounts that do not parse
// decode to NaN; callers decide whether to accept them.
func Decode(text string) ([]core.Transaction, error) {
	txs, _, err := decode(text)
	return txs, err
}

// DecodeStrict is Decode but also rejects rows whose amount is not a finite
// number, naming the offending line.
func DecodeStrict(text string) ([]core.Transaction, error) {
	txs, lines, err := decode(text)
	if err != nil {
		return nil, err
	}
	for i, t := range txs {
		if math.IsNaN(t.Amount) || math.IsInf(t.Amount, 0) {
			return nil, &core.FormatError{Line: lines[i], Reason: "amount is not a number"}
		}
	}
	return txs, nil
}

func decode(text string) ([]core.Transaction, []int, error) {
	text = strings.TrimSpace(text)
	if strings.Count(text, "\n") < 1 {
		return nil, nil, &core.FormatError{Reason: "must have headers and data"}
	}

	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	if _, err := r.Read(); err != nil {
		return nil, nil, formatError(err)
	}

	var (
		txs   []core.Transaction
		lines []int
	)
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, formatError(err)
		}
		line, _ := r.FieldPos(0)
		if len(rec) < len(HeaderFields) {
			return nil, nil, &core.FormatError{Line: line, Reason: "expected 4 fields"}
		}
		txs = append(txs, core.Transaction{
			ID:       uuid.NewString(),
			Title:    stripQuotes(rec[0]),
			Category: stripQuotes(rec[1]),
			Amount:   core.ParseAmount(rec[2]),
			Date:     strings.TrimSpace(rec[3]),
		})
		lines = append(lines, line)
	}
	if len(txs) == 0 {
		return nil, nil, &core.FormatError{Reason: "must have headers and data"}
	}
	return txs, lines, nil
}

func stripQuotes(s string) string {
	return strings.ReplaceAll(s, `"`, "")
}

func formatError(err error) error {
	var perr *csv.ParseError
	if errors.As(err, &perr) {
		return &core.FormatError{Line: perr.Line, Reason: perr.Err.Error()}
	}
	return &core.FormatError{Reason: err.Error()}
}
