package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"fintrack/internal/core"
)

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"valid", `{"id":"a","amount":1}`, false},
		{"empty", ``, true},
		{"whitespace", "  \n", true},
		{"malformed", `{"id":`, true},
		{"wrong type", `{"amount":"ten"}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/transactions", strings.NewReader(tt.body))
			var in core.TransactionInput
			err := DecodeJSON(httptest.NewRecorder(), req, &in)
			if (err != nil) != tt.wantErr {
				t.Errorf("DecodeJSON() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDecodeJSONEmptyBodyError(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/transactions", strings.NewReader(""))
	var v map[string]any
	if err := DecodeJSON(httptest.NewRecorder(), req, &v); !errors.Is(err, errEmptyBody) {
		t.Errorf("DecodeJSON() error = %v, want errEmptyBody", err)
	}
}

func TestParseSummaryParams(t *testing.T) {
	rome, err := time.LoadLocation("Europe/Rome")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	clock := func() time.Time { return time.Date(2024, 3, 31, 23, 30, 0, 0, time.UTC) }

	tests := []struct {
		name       string
		query      url.Values
		loc        *time.Location
		wantPeriod core.Period
		wantNow    string
		wantErr    bool
	}{
		{"defaults", url.Values{}, time.UTC, core.Monthly, "2024-03-31", false},
		{"clock converted to location", url.Values{}, rome, core.Monthly, "2024-04-01", false},
		{"weekly", url.Values{"period": {"weekly"}}, time.UTC, core.Weekly, "2024-03-31", false},
		{"case insensitive period", url.Values{"period": {"Monthly"}}, time.UTC, core.Monthly, "2024-03-31", false},
		{"explicit now", url.Values{"now": {"2024-01-15"}}, time.UTC, core.Monthly, "2024-01-15", false},
		{"nil location", url.Values{"now": {"2024-01-15"}}, nil, core.Monthly, "2024-01-15", false},
		{"bad period", url.Values{"period": {"yearly"}}, time.UTC, "", "", true},
		{"bad now", url.Values{"now": {"15/01/2024"}}, time.UTC, "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSummaryParams(tt.query, tt.loc, clock)
			if tt.wantErr {
				if err == nil {
					t.Fatal("ParseSummaryParams() error = nil, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseSummaryParams() error = %v", err)
			}
			if got.Period != tt.wantPeriod {
				t.Errorf("Period = %v, want %v", got.Period, tt.wantPeriod)
			}
			if d := got.Now.Format(core.DateLayout); d != tt.wantNow {
				t.Errorf("Now = %v, want %v", d, tt.wantNow)
			}
		})
	}
}

func TestParseSummaryParamsInvalidPeriodIsTyped(t *testing.T) {
	_, err := ParseSummaryParams(url.Values{"period": {"daily"}}, time.UTC, time.Now)
	if !errors.Is(err, core.ErrInvalidPeriod) {
		t.Errorf("error = %v, want ErrInvalidPeriod", err)
	}
}

func TestExportFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "transactions.csv"},
		{"march", "march.csv"},
		{"march.csv", "march.csv"},
		{"my report", "my_report.csv"},
		{`evil"; x=1`, "evil_x1.csv"},
		{"../../etc/passwd", "....etcpasswd.csv"},
		{"\x00\x01", "transactions.csv"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			q := url.Values{}
			if tt.in != "" {
				q.Set("filename", tt.in)
			}
			if got := ExportFilename(q); got != tt.want {
				t.Errorf("ExportFilename(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRequireMethod(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if RequireMethod(req, http.MethodGet, http.MethodPost) != nil {
		t.Error("GET should be allowed")
	}
	if RequireGET(req) != nil {
		t.Error("RequireGET should allow GET")
	}

	resp := RequirePOST(req)
	if resp == nil {
		t.Fatal("RequirePOST should reject GET")
	}
	w := httptest.NewRecorder()
	resp.Write(w)
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", w.Code)
	}
	if w.Header().Get("Allow") != http.MethodPost {
		t.Errorf("Allow = %q", w.Header().Get("Allow"))
	}
}

func TestSanitizeInput(t *testing.T) {
	if got := sanitizeInput("  a\x00b\tc\n "); got != "ab\tc" {
		t.Errorf("sanitizeInput() = %q", got)
	}
}
