package http

import (
	"errors"
	"net/http"

	"fintrack/internal/aggregate"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/services"
)

const (
	msgInvalidBody = "Invalid request body"
	msgMissingID   = "Missing id"
)

type updateRequest struct {
	ID string `json:"id"`
	core.Patch
}

type deleteRequest struct {
	ID        string `json:"id"`
	DeleteAll bool   `json:"deleteAll"`
}

// handleTransactions serves the /transactions collection resource.
func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListTransactions(w, r)
	case http.MethodPost:
		s.handleCreateTransaction(w, r)
	case http.MethodPut:
		s.handleUpdateTransaction(w, r)
	case http.MethodDelete:
		s.handleDeleteTransactions(w, r)
	default:
		MethodNotAllowedError("GET, POST, PUT, DELETE").Write(w)
	}
}

// handleListTransactions returns the collection, optionally narrowed to one
// category with ?category=.
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	txs := aggregate.ByCategory(s.svc.List(r.Context()), r.URL.Query().Get("category"))
	NewJSONResponse().JSON(txs).Write(w)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var in core.TransactionInput
	if err := DecodeJSON(w, r, &in); err != nil {
		s.requestLogger(ctx).WarnContext(ctx, "Invalid create body", log.FieldError, err)
		BadRequestError(msgInvalidBody).Write(w)
		return
	}

	t, err := s.svc.Create(ctx, in)
	switch {
	case err == nil:
	case services.IsValidationError(err):
		BadRequestError("Invalid transaction: " + err.Error()).Write(w)
		return
	case errors.Is(err, core.ErrDuplicateID):
		ConflictError("Transaction id already exists").Write(w)
		return
	default:
		var amount float64
		if in.Amount != nil {
			amount = *in.Amount
		}
		s.structured.LogError(ctx, "Failed to create transaction", err, log.ComponentTransaction, log.OpCreate,
			log.NewFields().WithTransaction(in.ID, in.Category, amount, in.Date))
		InternalServerError("Failed to save transaction").Write(w)
		return
	}

	s.structured.LogTransactionChange(ctx, log.OpCreate, t.ID, 1)
	NewJSONResponse().Message("Added").Write(w)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req updateRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		s.requestLogger(ctx).WarnContext(ctx, "Invalid update body", log.FieldError, err)
		BadRequestError(msgInvalidBody).Write(w)
		return
	}
	if req.ID == "" {
		BadRequestError(msgMissingID).Write(w)
		return
	}

	matched, err := s.svc.Update(ctx, req.ID, req.Patch)
	if err != nil {
		s.structured.LogError(ctx, "Failed to update transaction", err, log.ComponentTransaction, log.OpUpdate,
			log.NewFields().WithTransactionID(req.ID))
		InternalServerError("Failed to update transaction").Write(w)
		return
	}
	if matched {
		s.structured.LogTransactionChange(ctx, log.OpUpdate, req.ID, 1)
	}

	NewJSONResponse().Message("Updated").Write(w)
}

func (s *Server) handleDeleteTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req deleteRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		s.requestLogger(ctx).WarnContext(ctx, "Invalid delete body", log.FieldError, err)
		BadRequestError(msgInvalidBody).Write(w)
		return
	}

	if req.DeleteAll {
		if err := s.svc.DeleteAll(ctx); err != nil {
			s.structured.LogError(ctx, "Failed to delete all transactions", err, log.ComponentTransaction, log.OpClear, nil)
			InternalServerError("Failed to delete transactions").Write(w)
			return
		}
		s.structured.LogTransactionChange(ctx, log.OpClear, "", 0)
		NewJSONResponse().Message("All transactions deleted.").Write(w)
		return
	}

	if req.ID == "" {
		BadRequestError(msgMissingID).Write(w)
		return
	}

	matched, err := s.svc.DeleteOne(ctx, req.ID)
	if err != nil {
		s.structured.LogError(ctx, "Failed to delete transaction", err, log.ComponentTransaction, log.OpDelete,
			log.NewFields().WithTransactionID(req.ID))
		InternalServerError("Failed to delete transaction").Write(w)
		return
	}
	if matched {
		s.structured.LogTransactionChange(ctx, log.OpDelete, req.ID, 1)
	}

	NewJSONResponse().Message("Deleted").Write(w)
}
