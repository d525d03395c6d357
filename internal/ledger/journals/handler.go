package journals

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/saldo-id/saldo/internal/platform/httpx"
	internalShared "github.com/saldo-id/saldo/internal/shared"
)

// Handler wires manual journal endpoints. Bills, invoices, payments and
// receipts post through their own modules; this surface is for manual entries
// and voids.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

type journalLineResponse struct {
	AccountCode string  `json:"account_code"`
	Debit       int64   `json:"debit"`
	Credit      int64   `json:"credit"`
	Description string  `json:"description,omitempty"`
	ProjectCode *string `json:"project_code,omitempty"`
}

type journalResponse struct {
	ID                int64                 `json:"id"`
	Number            string                `json:"number"`
	Date              string                `json:"date"`
	Period            string                `json:"period"`
	Memo              string                `json:"memo"`
	Status            string                `json:"status"`
	SourceType        string                `json:"source_type"`
	VoidedAt          *time.Time            `json:"voided_at,omitempty"`
	ReversalJournalID *int64                `json:"reversal_journal_id,omitempty"`
	Lines             []journalLineResponse `json:"lines,omitempty"`
}

func toJournalResponse(j Journal) journalResponse {
	resp := journalResponse{
		ID:                j.ID,
		Number:            j.Number,
		Date:              j.Date.Format("2006-01-02"),
		Period:            j.Period,
		Memo:              j.Memo,
		Status:            string(j.Status),
		SourceType:        j.SourceType,
		VoidedAt:          j.VoidedAt,
		ReversalJournalID: j.ReversalJournalID,
	}
	for _, l := range j.Lines {
		resp.Lines = append(resp.Lines, journalLineResponse{
			AccountCode: l.AccountCode,
			Debit:       l.Debit,
			Credit:      l.Credit,
			Description: l.Description,
			ProjectCode: l.ProjectCode,
		})
	}
	return resp
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	entries, pag, err := h.service.List(r.Context(), page, perPage)
	if err != nil {
		h.logger.Error("list journals", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]journalResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toJournalResponse(e))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"journals": out, "pagination": pag})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "VALIDATION", "invalid journal id")
		return
	}
	entry, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toJournalResponse(entry))
}

type postLineRequest struct {
	AccountCode string  `json:"account_code" validate:"required"`
	Debit       int64   `json:"debit"`
	Credit      int64   `json:"credit"`
	Description string  `json:"description"`
	ProjectCode *string `json:"project_code"`
}

type postJournalRequest struct {
	Date           string            `json:"date" validate:"required"`
	Memo           string            `json:"memo" validate:"required"`
	IdempotencyKey string            `json:"idempotency_key"`
	Lines          []postLineRequest `json:"lines" validate:"required,min=2,dive"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor := internalShared.ActorFromContext(r.Context())
	if actor == nil || !actor.Role.CanPost() {
		httpx.RespondError(w, fmt.Errorf("%w: posting requires user role", httpx.ErrForbidden))
		return
	}
	var req postJournalRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "VALIDATION", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: date must be YYYY-MM-DD", httpx.ErrValidation))
		return
	}
	input := PostingInput{
		Date:           date,
		SourceType:     SourceManual,
		SourceID:       uuid.New(),
		Memo:           req.Memo,
		PostedBy:       actor.UserID,
		IdempotencyKey: req.IdempotencyKey,
	}
	for _, l := range req.Lines {
		input.Lines = append(input.Lines, PostingLineInput{
			AccountCode: l.AccountCode,
			Debit:       l.Debit,
			Credit:      l.Credit,
			Description: l.Description,
			ProjectCode: l.ProjectCode,
		})
	}
	entry, err := h.service.Post(r.Context(), input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toJournalResponse(entry))
}

type voidRequest struct {
	Reason string `json:"reason" validate:"required"`
}

func (h *Handler) void(w http.ResponseWriter, r *http.Request) {
	actor := internalShared.ActorFromContext(r.Context())
	if actor == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "VALIDATION", "invalid journal id")
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
	reversal, err := h.service.Void(r.Context(), VoidInput{JournalID: id, Reason: req.Reason, Actor: *actor})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toJournalResponse(reversal))
}
