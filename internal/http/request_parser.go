// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"fintrack/internal/core"
)

// maxBodyBytes caps JSON and CSV request bodies.
const maxBodyBytes = 5 << 20

var errEmptyBody = errors.New("empty request body")

// ReadBody reads the whole request body up to maxBodyBytes.
func ReadBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// DecodeJSON decodes the request body into v. An empty body is an error.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body, err := ReadBody(w, r)
	if err != nil {
		return err
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return errEmptyBody
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode json: %w", err)
	}
	return nil
}

// SummaryParams holds the parsed /summary query.
type SummaryParams struct {
	Period core.Period
	Now    time.Time
}

// ParseSummaryParams reads period (default monthly) and now (default today
// in loc) from the query string.
func ParseSummaryParams(query url.Values, loc *time.Location, clock func() time.Time) (SummaryParams, error) {
	if loc == nil {
		loc = time.UTC
	}
	params := SummaryParams{Period: core.Monthly}

	if v := strings.TrimSpace(query.Get("period")); v != "" {
		p, err := core.ParsePeriod(v)
		if err != nil {
			return SummaryParams{}, err
		}
		params.Period = p
	}

	if v := strings.TrimSpace(query.Get("now")); v != "" {
		now, err := core.ParseDate(v, loc)
		if err != nil {
			return SummaryParams{}, fmt.Errorf("invalid now %q: %w", v, err)
		}
		params.Now = now
	} else {
		t := clock().In(loc)
		params.Now = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	}

	return params, nil
}

// ExportFilename returns the attachment name for an export, always ending
// in .csv.
func ExportFilename(query url.Values) string {
	name := sanitizeFilename(query.Get("filename"))
	name = strings.TrimSuffix(name, ".csv")
	if name == "" {
		name = "transactions"
	}
	return name + ".csv"
}

// RequireMethod checks if the request method matches the expected method(s).
// Returns an error response builder if the method doesn't match.
func RequireMethod(r *http.Request, methods ...string) *JSONResponseBuilder {
	for _, m := range methods {
		if r.Method == m {
			return nil
		}
	}
	return MethodNotAllowedError(strings.Join(methods, ", "))
}

// RequireGET is a convenience function for GET-only handlers.
func RequireGET(r *http.Request) *JSONResponseBuilder {
	return RequireMethod(r, http.MethodGet)
}

// RequirePOST is a convenience function for POST-only handlers.
func RequirePOST(r *http.Request) *JSONResponseBuilder {
	return RequireMethod(r, http.MethodPost)
}
