package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// IncomeCategory is the one category that marks a transaction as inflow.
// Every other category is treated as an expense.
const IncomeCategory = "income"

// DefaultTitle is used when a transaction is created without a title.
const DefaultTitle = "Untitled"

// DateLayout is the calendar date format used for Transaction.Date.
const DateLayout = "2006-01-02"

const (
	Weekly  Period = "weekly"
	Monthly Period = "monthly"
)

type (
	// Period selects the display window used by aggregations.
	Period string

	Transaction struct {
		ID       string  `json:"id"`
		Title    string  `json:"title"`
		Amount   float64 `json:"amount"`
		Category string  `json:"category"`
		Date     string  `json:"date"`
	}

	// TransactionInput carries the fields of a transaction being created.
	// Amount is a pointer so a missing value can be told apart from zero.
	TransactionInput struct {
		ID       string   `json:"id"`
		Title    string   `json:"title"`
		Amount   *float64 `json:"amount"`
		Category string   `json:"category"`
		Date     string   `json:"date"`
	}

	// Patch holds a partial update. Nil fields keep their stored value.
	Patch struct {
		Title    *string  `json:"title,omitempty"`
		Amount   *float64 `json:"amount,omitempty"`
		Category *string  `json:"category,omitempty"`
		Date     *string  `json:"date,omitempty"`
	}
)

var (
	ErrDuplicateID     = errors.New("transaction id already exists")
	ErrMissingAmount   = errors.New("missing amount")
	ErrMissingCategory = errors.New("missing category")
	ErrMissingDate     = errors.New("missing date")
	ErrInvalidPeriod   = errors.New("invalid period")
)

// FormatError reports CSV input that cannot be turned into transactions.
type FormatError struct {
	Line   int // 1-based; 0 when the problem concerns the whole input
	Reason string
}

func (e *FormatError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("invalid csv format at line %d: %s", e.Line, e.Reason)
	}
	return "invalid csv format: " + e.Reason
}

// IsIncome reports whether the transaction is an inflow.
func (t Transaction) IsIncome() bool {
	return t.Category == IncomeCategory
}

// Apply returns a copy of t with every non-nil field of p merged in.
func (t Transaction) Apply(p Patch) Transaction {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Amount != nil {
		t.Amount = *p.Amount
	}
	if p.Category != nil {
		t.Category = *p.Category
	}
	if p.Date != nil {
		t.Date = *p.Date
	}
	return t
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Title == nil && p.Amount == nil && p.Category == nil && p.Date == nil
}

// Build checks that the required fields are present and returns the
// transaction with defaults applied. Only presence is checked.
func (in TransactionInput) Build() (Transaction, error) {
	if in.Amount == nil {
		return Transaction{}, ErrMissingAmount
	}
	if strings.TrimSpace(in.Category) == "" {
		return Transaction{}, ErrMissingCategory
	}
	if strings.TrimSpace(in.Date) == "" {
		return Transaction{}, ErrMissingDate
	}
	title := in.Title
	if strings.TrimSpace(title) == "" {
		title = DefaultTitle
	}
	return Transaction{
		ID:       in.ID,
		Title:    title,
		Amount:   *in.Amount,
		Category: in.Category,
		Date:     in.Date,
	}, nil
}

// ParsePeriod converts a query value into a Period.
func ParsePeriod(s string) (Period, error) {
	switch Period(strings.ToLower(strings.TrimSpace(s))) {
	case Weekly:
		return Weekly, nil
	case Monthly:
		return Monthly, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}
}

// ParseDate parses a YYYY-MM-DD string as midnight in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	return time.ParseInLocation(DateLayout, strings.TrimSpace(s), loc)
}
