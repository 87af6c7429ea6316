// Package aggregate derives balances, period filters and chart series from a
// transaction collection. Every function is pure; sums are accumulated as
// decimals and returned as float64.
package aggregate

import (
	"math"
	"sort"
	"strconv"
	"time"

	"fintrack/internal/core"

	"github.com/shopspring/decimal"
)

var weekdayLabels = [7]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

// Point is one bucket of a chart series.
type Point struct {
	Key     int     `json:"key"`
	Label   string  `json:"label"`
	Income  float64 `json:"income"`
	Expense float64 `json:"expense"`
}

// Summary bundles everything a dashboard needs for one period.
type Summary struct {
	Period     core.Period           `json:"period"`
	Now        string                `json:"now"`
	Balance    float64               `json:"balance"`
	Totals     core.Totals           `json:"totals"`
	Series     []Point               `json:"series"`
	Categories []core.CategoryAmount `json:"categories"`
	Count      int                   `json:"count"`
}

// amount converts t.Amount to a decimal. Non-finite amounts count as zero.
func amount(t core.Transaction) decimal.Decimal {
	if math.IsNaN(t.Amount) || math.IsInf(t.Amount, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(t.Amount)
}

func signed(t core.Transaction) decimal.Decimal {
	d := amount(t)
	if t.IsIncome() {
		return d
	}
	return d.Neg()
}

// Balance is income minus expenses over the whole collection.
func Balance(txs []core.Transaction) float64 {
	sum := decimal.Zero
	for _, t := range txs {
		sum = sum.Add(signed(t))
	}
	return sum.InexactFloat64()
}

// Filter keeps the transactions that fall in period relative to now.
// Weekly keeps dates on or after the calendar day seven days before now;
// monthly keeps dates in now's calendar month. Dates are read as civil
// dates in now's location and unparseable dates never match.
func Filter(txs []core.Transaction, period core.Period, now time.Time) []core.Transaction {
	loc := now.Location()
	y, m, d := now.Date()
	weekStart := time.Date(y, m, d-7, 0, 0, 0, 0, loc)

	out := make([]core.Transaction, 0, len(txs))
	for _, t := range txs {
		date, err := core.ParseDate(t.Date, loc)
		if err != nil {
			continue
		}
		switch period {
		case core.Weekly:
			if !date.Before(weekStart) {
				out = append(out, t)
			}
		case core.Monthly:
			if date.Year() == y && date.Month() == m {
				out = append(out, t)
			}
		}
	}
	return out
}

// ByCategory keeps the transactions whose category equals category exactly.
// An empty category keeps everything.
func ByCategory(txs []core.Transaction, category string) []core.Transaction {
	if category == "" {
		return txs
	}
	out := make([]core.Transaction, 0, len(txs))
	for _, t := range txs {
		if t.Category == category {
			out = append(out, t)
		}
	}
	return out
}

// Totals sums income and expenses separately.
func Totals(txs []core.Transaction) core.Totals {
	income, expense := decimal.Zero, decimal.Zero
	for _, t := range txs {
		amt := amount(t)
		if t.IsIncome() {
			income = income.Add(amt)
		} else {
			expense = expense.Add(amt)
		}
	}
	return core.Totals{Income: income.InexactFloat64(), Expense: expense.InexactFloat64()}
}

// Series buckets income and expense sums by weekday (weekly) or day of
// month (monthly), sorted by bucket key. Empty buckets are omitted.
func Series(txs []core.Transaction, period core.Period) []Point {
	type bucket struct{ income, expense decimal.Decimal }
	buckets := make(map[int]*bucket)
	for _, t := range txs {
		date, err := core.ParseDate(t.Date, time.UTC)
		if err != nil {
			continue
		}
		var key int
		switch period {
		case core.Weekly:
			key = int(date.Weekday())
		case core.Monthly:
			key = date.Day()
		default:
			continue
		}
		b, ok := buckets[key]
		if !ok {
			b = &bucket{income: decimal.Zero, expense: decimal.Zero}
			buckets[key] = b
		}
		if t.IsIncome() {
			b.income = b.income.Add(amount(t))
		} else {
			b.expense = b.expense.Add(amount(t))
		}
	}

	keys := make([]int, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	points := make([]Point, 0, len(keys))
	for _, k := range keys {
		b := buckets[k]
		points = append(points, Point{
			Key:     k,
			Label:   label(period, k),
			Income:  b.income.InexactFloat64(),
			Expense: b.expense.InexactFloat64(),
		})
	}
	return points
}

func label(period core.Period, key int) string {
	if period == core.Weekly {
		return weekdayLabels[key]
	}
	return strconv.Itoa(key)
}

// Categories sums expenses per category in first-seen order.
func Categories(txs []core.Transaction) []core.CategoryAmount {
	index := make(map[string]int)
	sums := make([]decimal.Decimal, 0)
	names := make([]string, 0)
	for _, t := range txs {
		if t.IsIncome() {
			continue
		}
		i, ok := index[t.Category]
		if !ok {
			i = len(names)
			index[t.Category] = i
			names = append(names, t.Category)
			sums = append(sums, decimal.Zero)
		}
		sums[i] = sums[i].Add(amount(t))
	}

	out := make([]core.CategoryAmount, len(names))
	for i, name := range names {
		out[i] = core.CategoryAmount{Category: name, Amount: sums[i].InexactFloat64()}
	}
	return out
}

// Summarize computes the balance over all of txs and the period views over
// the filtered subset.
func Summarize(txs []core.Transaction, period core.Period, now time.Time) Summary {
	filtered := Filter(txs, period, now)
	return Summary{
		Period:     period,
		Now:        now.Format(core.DateLayout),
		Balance:    Balance(txs),
		Totals:     Totals(filtered),
		Series:     Series(filtered, period),
		Categories: Categories(filtered),
		Count:      len(filtered),
	}
}
