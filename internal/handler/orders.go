package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/dukerupert/invoicer/internal/domain"
	"github.com/dukerupert/invoicer/internal/middleware"
)

// RecordCreator stores an order request.
type RecordCreator interface {
	CreateRecord(ctx context.Context, req domain.OrderRequest) (*domain.InvoiceRecord, error)
}

// OrderHandler accepts order requests over HTTP and stores them. Storing a
// record fires the same trigger as any other writer.
type OrderHandler struct {
	store RecordCreator
}

// NewOrderHandler creates an OrderHandler.
func NewOrderHandler(store RecordCreator) *OrderHandler {
	return &OrderHandler{store: store}
}

// Create handles POST /orders. It answers 202 with the record id.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	const op = "orders.create"

	var req domain.OrderRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			ErrorResponse(w, r, domain.WrapError(err, domain.ETOOLARGE, op, "request body too large"))
		case errors.Is(err, io.EOF):
			ErrorResponse(w, r, domain.Invalid(op, "request body is empty"))
		default:
			ErrorResponse(w, r, domain.WrapError(err, domain.EINVALID, op, "request body is not a valid order request"))
		}
		return
	}

	if err := req.Validate(); err != nil {
		msgs := make([]string, 0)
		for _, verr := range domain.ValidationErrors(err) {
			for field, msg := range domain.GetValidationFields(verr) {
				msgs = append(msgs, field+": "+msg)
			}
		}
		ErrorResponse(w, r, domain.WrapError(err, domain.EINVALID, op, strings.Join(msgs, "; ")))
		return
	}

	rec, err := h.store.CreateRecord(r.Context(), req)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	middleware.GetLogger(r.Context()).Info("order request accepted", "record_id", rec.ID)
	RespondJSON(w, http.StatusAccepted, map[string]string{"id": rec.ID})
}
