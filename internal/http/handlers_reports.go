package http

import (
	"errors"
	"net/http"

	"fintrack/internal/aggregate"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/report"
)

const msgInvalidCSV = "Invalid CSV format. Must have headers and data."

// cachedSummary is a summary tagged with the write generation it was
// computed from.
type cachedSummary struct {
	generation uint64
	summary    aggregate.Summary
}

type reportResponse struct {
	Summary string `json:"summary"`
}

// handleQuarterlyReport returns the provider's text. Missing credentials and
// provider failures still carry a summary string, with status 500.
func (s *Server) handleQuarterlyReport(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}

	result := s.reports.Generate(r.Context())

	status := http.StatusOK
	if result.Status != report.StatusOK {
		status = http.StatusInternalServerError
	}
	s.requestLogger(r.Context()).InfoContext(r.Context(), "Quarterly report served",
		log.FieldOperation, log.OpReport,
		"report_status", result.Status.String())

	NewJSONResponse().Status(status).JSON(reportResponse{Summary: result.Summary}).Write(w)
}

// handleSummary serves balance, totals, series and categories for a period.
// Results are cached per period, date and location until the next write.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	ctx := r.Context()

	params, err := ParseSummaryParams(r.URL.Query(), s.loc, s.clock)
	if err != nil {
		if errors.Is(err, core.ErrInvalidPeriod) {
			BadRequestError("Invalid period. Use weekly or monthly.").Write(w)
			return
		}
		BadRequestError("Invalid date. Use YYYY-MM-DD.").Write(w)
		return
	}

	key := string(params.Period) + "|" + params.Now.Format(core.DateLayout) + "|" + s.loc.String()
	// an entry is only served while no write has happened since it was computed
	gen := s.generation.Load()
	if entry, ok := s.summaryCache.Get(key); ok && entry.generation == gen {
		s.requestLogger(ctx).DebugContext(ctx, "Summary cache hit", log.FieldOperation, log.OpSummary, log.FieldPeriod, params.Period)
		NewJSONResponse().JSON(entry.summary).Write(w)
		return
	}

	summary := aggregate.Summarize(s.svc.List(ctx), params.Period, params.Now)
	s.summaryCache.Set(key, cachedSummary{generation: gen, summary: summary})

	NewJSONResponse().JSON(summary).Write(w)
}

// handleExport downloads the collection as CSV.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}

	filename := ExportFilename(r.URL.Query())
	body := s.svc.Export(r.Context())

	s.requestLogger(r.Context()).InfoContext(r.Context(), "Transactions exported",
		log.FieldOperation, log.OpExport,
		"filename", filename)

	NewJSONResponse().
		Header("Content-Disposition", `attachment; filename="`+filename+`"`).
		Raw("text/csv; charset=utf-8", []byte(body)).
		Write(w)
}

// handleImport replaces the collection with the CSV request body.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	ctx := r.Context()

	body, err := ReadBody(w, r)
	if err != nil {
		BadRequestError(msgInvalidBody).Write(w)
		return
	}

	n, err := s.svc.Import(ctx, string(body))
	if err != nil {
		var formatErr *core.FormatError
		if errors.As(err, &formatErr) {
			s.requestLogger(ctx).WarnContext(ctx, "Rejected CSV import",
				log.FieldOperation, log.OpImport,
				log.FieldError, formatErr)
			BadRequestError(msgInvalidCSV).Write(w)
			return
		}
		s.structured.LogError(ctx, "Failed to import transactions", err, log.ComponentTransaction, log.OpImport, nil)
		InternalServerError("Failed to import transactions").Write(w)
		return
	}

	s.structured.LogTransactionChange(ctx, log.OpImport, "", n)
	NewJSONResponse().JSON(MessageBody{Message: "Imported", Count: ptr(n)}).Write(w)
}
