package ar

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/saldo-id/saldo/internal/platform/httpx"
	internalShared "github.com/saldo-id/saldo/internal/shared"
)

type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

type invoiceLineRequest struct {
	Description    string `json:"description"`
	RevenueAccount string `json:"revenue_account" validate:"required"`
	ProjectCode    string `json:"project_code"`
	Amount         int64  `json:"amount" validate:"required,gt=0"`
}

type createInvoiceRequest struct {
	CustomerID  int64                `json:"customer_id" validate:"required"`
	InvoiceDate string               `json:"invoice_date" validate:"required"`
	DueDate     string               `json:"due_date"`
	FakturPajak string               `json:"faktur_pajak"`
	Memo        string               `json:"memo"`
	Lines       []invoiceLineRequest `json:"lines" validate:"required,min=1,dive"`
}

func parseDate(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}

func (h *Handler) createInvoice(w http.ResponseWriter, r *http.Request) {
	actor := internalShared.ActorFromContext(r.Context())
	if actor == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	var req createInvoiceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "VALIDATION", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}
	invoiceDate, err := parseDate(req.InvoiceDate)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "VALIDATION", "invoice_date must be YYYY-MM-DD")
		return
	}
	var dueDate time.Time
	if req.DueDate != "" {
		if dueDate, err = parseDate(req.DueDate); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "VALIDATION", "due_date must be YYYY-MM-DD")
			return
		}
	}

	input := CreateInvoiceInput{
		CustomerID:  req.CustomerID,
		InvoiceDate: invoiceDate,
		DueDate:     dueDate,
		FakturPajak: req.FakturPajak,
		Memo:        req.Memo,
		CreatedBy:   actor.UserID,
	}
	for _, l := range req.Lines {
		input.Lines = append(input.Lines, CreateInvoiceLineInput(l))
	}

	invoice, err := h.service.CreateInvoice(r.Context(), input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, invoice)
}

func (h *Handler) listInvoices(w http.ResponseWriter, r *http.Request) {
	customerID, _ := strconv.ParseInt(r.URL.Query().Get("customer_id"), 10, 64)
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	invoices, err := h.service.ListInvoices(r.Context(), ListInvoicesRequest{
		Status:     InvoiceStatus(r.URL.Query().Get("status")),
		CustomerID: customerID,
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		h.logger.Error("list invoices", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"invoices": invoices})
}

func (h *Handler) getInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "VALIDATION", "invalid invoice id")
		return
	}
	invoice, err := h.service.GetInvoice(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, invoice)
}

type postInvoiceRequest struct {
	IdempotencyKey string `json:"idempotency_key"`
}

func (h *Handler) postInvoice(w http.ResponseWriter, r *http.Request) {
	actor := internalShared.ActorFromContext(r.Context())
	if actor == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "VALIDATION", "invalid invoice id")
		return
	}
	var req postInvoiceRequest
	_ = httpx.DecodeJSON(r, &req)

	invoice, err := h.service.PostInvoice(r.Context(), PostInvoiceInput{InvoiceID: id, IdempotencyKey: req.IdempotencyKey}, *actor)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, invoice)
}

type voidRequest struct {
	Reason string `json:"reason" validate:"required"`
}

func (h *Handler) voidInvoice(w http.ResponseWriter, r *http.Request) {
	actor := internalShared.ActorFromContext(r.Context())
	if actor == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "VALIDATION", "invalid invoice id")
		return
	}
	var req voidRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "VALIDATION", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}
	if err := h.service.VoidInvoice(r.Context(), VoidInvoiceInput{InvoiceID: id, Reason: req.Reason}, *actor); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type receiptAllocationRequest struct {
	InvoiceID int64 `json:"invoice_id" validate:"required"`
	Amount    int64 `json:"amount" validate:"required,gt=0"`
}

type registerReceiptRequest struct {
	CustomerID     int64                      `json:"customer_id" validate:"required"`
	BankAccountID  int64                      `json:"bank_account_id" validate:"required"`
	ReceivedAt     string                     `json:"received_at"`
	Memo           string                     `json:"memo"`
	WithheldAmount int64                      `json:"withheld_amount" validate:"gte=0"`
	IdempotencyKey string                     `json:"idempotency_key"`
	Allocations    []receiptAllocationRequest `json:"allocations" validate:"required,min=1,dive"`
}

func (h *Handler) registerReceipt(w http.ResponseWriter, r *http.Request) {
	actor := internalShared.ActorFromContext(r.Context())
	if actor == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	var req registerReceiptRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "VALIDATION", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}
	var receivedAt time.Time
	if req.ReceivedAt != "" {
		var err error
		if receivedAt, err = parseDate(req.ReceivedAt); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "VALIDATION", "received_at must be YYYY-MM-DD")
			return
		}
	}

	input := RegisterReceiptInput{
		CustomerID:     req.CustomerID,
		BankAccountID:  req.BankAccountID,
		ReceivedAt:     receivedAt,
		Memo:           req.Memo,
		WithheldAmount: req.WithheldAmount,
		IdempotencyKey: req.IdempotencyKey,
		CreatedBy:      actor.UserID,
	}
	for _, a := range req.Allocations {
		input.Allocations = append(input.Allocations, AllocationInput(a))
	}

	receipt, err := h.service.RegisterReceipt(r.Context(), input, *actor)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, receipt)
}

func (h *Handler) listReceipts(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	receipts, err := h.service.ListReceipts(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("list receipts", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"receipts": receipts})
}

func (h *Handler) getReceipt(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "VALIDATION", "invalid receipt id")
		return
	}
	receipt, err := h.service.GetReceipt(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, receipt)
}

func (h *Handler) voidReceipt(w http.ResponseWriter, r *http.Request) {
	actor := internalShared.ActorFromContext(r.Context())
	if actor == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "VALIDATION", "invalid receipt id")
		return
	}
	var req voidRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "VALIDATION", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}
	if err := h.service.VoidReceipt(r.Context(), VoidReceiptInput{ReceiptID: id, Reason: req.Reason}, *actor); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) aging(w http.ResponseWriter, r *http.Request) {
	asOf := time.Now()
	if v := r.URL.Query().Get("as_of"); v != "" {
		var err error
		if asOf, err = parseDate(v); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "VALIDATION", "as_of must be YYYY-MM-DD")
			return
		}
	}
	bucket, err := h.service.Aging(r.Context(), asOf)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, bucket)
}
