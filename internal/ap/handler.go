package ap

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

type billLineRequest struct {
	Description    string `json:"description"`
	ExpenseAccount string `json:"expense_account" validate:"required"`
	ProjectCode    string `json:"project_code"`
	Amount         int64  `json:"amount" validate:"required,gt=0"`
}

type createBillRequest struct {
	VendorID    int64             `json:"vendor_id" validate:"required"`
	BillDate    string            `json:"bill_date" validate:"required"`
	DueDate     string            `json:"due_date"`
	FakturPajak string            `json:"faktur_pajak"`
	Memo        string            `json:"memo"`
	Lines       []billLineRequest `json:"lines" validate:"required,min=1,dive"`
}

func parseDate(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}

func (h *Handler) createBill(w http.ResponseWriter, r *http.Request) {
	actor := internalShared.ActorFromContext(r.Context())
	if actor == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	var req createBillRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "VALIDATION", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}
	billDate, err := parseDate(req.BillDate)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "VALIDATION", "bill_date must be YYYY-MM-DD")
		return
	}
	var dueDate time.Time
	if req.DueDate != "" {
		if dueDate, err = parseDate(req.DueDate); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "VALIDATION", "due_date must be YYYY-MM-DD")
			return
		}
	}

	input := CreateBillInput{
		VendorID:    req.VendorID,
		BillDate:    billDate,
		DueDate:     dueDate,
		FakturPajak: req.FakturPajak,
		Memo:        req.Memo,
		CreatedBy:   actor.UserID,
	}
	for _, l := range req.Lines {
		input.Lines = append(input.Lines, CreateBillLineInput(l))
	}

	bill, err := h.service.CreateBill(r.Context(), input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, bill)
}

func (h *Handler) listBills(w http.ResponseWriter, r *http.Request) {
	vendorID, _ := strconv.ParseInt(r.URL.Query().Get("vendor_id"), 10, 64)
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	bills, err := h.service.ListBills(r.Context(), ListBillsRequest{
		Status:   BillStatus(r.URL.Query().Get("status")),
		VendorID: vendorID,
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		h.logger.Error("list bills", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"bills": bills})
}

func (h *Handler) getBill(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "VALIDATION", "invalid bill id")
		return
	}
	bill, err := h.service.GetBill(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, bill)
}

type postBillRequest struct {
	IdempotencyKey string `json:"idempotency_key"`
}

func (h *Handler) postBill(w http.ResponseWriter, r *http.Request) {
	actor := internalShared.ActorFromContext(r.Context())
	if actor == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "VALIDATION", "invalid bill id")
		return
	}
	var req postBillRequest
	_ = httpx.DecodeJSON(r, &req)

	bill, err := h.service.PostBill(r.Context(), PostBillInput{BillID: id, IdempotencyKey: req.IdempotencyKey}, *actor)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, bill)
}

type voidRequest struct {
	Reason string `json:"reason" validate:"required"`
}

func (h *Handler) voidBill(w http.ResponseWriter, r *http.Request) {
	actor := internalShared.ActorFromContext(r.Context())
	if actor == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "VALIDATION", "invalid bill id")
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
	if err := h.service.VoidBill(r.Context(), VoidBillInput{BillID: id, Reason: req.Reason}, *actor); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type allocationRequest struct {
	BillID int64 `json:"bill_id" validate:"required"`
	Amount int64 `json:"amount" validate:"required,gt=0"`
}

type registerPaymentRequest struct {
	VendorID       int64               `json:"vendor_id" validate:"required"`
	BankAccountID  int64               `json:"bank_account_id" validate:"required"`
	PaidAt         string              `json:"paid_at"`
	Memo           string              `json:"memo"`
	Attachments    []string            `json:"attachments"`
	IdempotencyKey string              `json:"idempotency_key"`
	Allocations    []allocationRequest `json:"allocations" validate:"required,min=1,dive"`
}

func (h *Handler) registerPayment(w http.ResponseWriter, r *http.Request) {
	actor := internalShared.ActorFromContext(r.Context())
	if actor == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	var req registerPaymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "VALIDATION", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}
	var paidAt time.Time
	if req.PaidAt != "" {
		var err error
		if paidAt, err = parseDate(req.PaidAt); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "VALIDATION", "paid_at must be YYYY-MM-DD")
			return
		}
	}

	input := RegisterPaymentInput{
		VendorID:       req.VendorID,
		BankAccountID:  req.BankAccountID,
		PaidAt:         paidAt,
		Memo:           req.Memo,
		Attachments:    req.Attachments,
		IdempotencyKey: req.IdempotencyKey,
		CreatedBy:      actor.UserID,
	}
	for _, a := range req.Allocations {
		input.Allocations = append(input.Allocations, AllocationInput(a))
	}

	payment, err := h.service.RegisterPayment(r.Context(), input, *actor)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, payment)
}

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	payments, err := h.service.ListPayments(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("list payments", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"payments": payments})
}

func (h *Handler) getPayment(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "VALIDATION", "invalid payment id")
		return
	}
	payment, err := h.service.GetPayment(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, payment)
}

func (h *Handler) voidPayment(w http.ResponseWriter, r *http.Request) {
	actor := internalShared.ActorFromContext(r.Context())
	if actor == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "VALIDATION", "invalid payment id")
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
	if err := h.service.VoidPayment(r.Context(), VoidPaymentInput{PaymentID: id, Reason: req.Reason}, *actor); err != nil {
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
