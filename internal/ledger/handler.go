package ledger

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/atlasbank/atlasbank/internal/accounts"
	"github.com/atlasbank/atlasbank/internal/platform/httpx"
	"github.com/atlasbank/atlasbank/internal/shared"
)

// Handler wires the posting and history endpoints.
type Handler struct {
	logger    *slog.Logger
	poster    *Poster
	query     *QueryService
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, poster *Poster, query *QueryService) *Handler {
	return &Handler{
		logger:    logger,
		poster:    poster,
		query:     query,
		validator: validator.New(),
	}
}

// MountRoutes registers ledger routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/transactions", h.create)
	r.Get("/transactions", h.listMine)
	r.Get("/accounts/{id}/transactions", h.listByAccount)
}

type createTransactionRequest struct {
	Type          string          `json:"type" validate:"required"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency" validate:"omitempty,len=3"`
	FromAccountID *uuid.UUID      `json:"fromAccountId"`
	ToAccountID   *uuid.UUID      `json:"toAccountId"`
	Description   string          `json:"description" validate:"omitempty,max=500"`
	CategoryID    *uuid.UUID      `json:"categoryId"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actorID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	var req createTransactionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	posted, err := h.poster.Post(r.Context(), PostRequest{
		ActorID:       actorID,
		Type:          TransactionType(req.Type),
		Amount:        req.Amount,
		Currency:      req.Currency,
		FromAccountID: req.FromAccountID,
		ToAccountID:   req.ToAccountID,
		Description:   req.Description,
		CategoryID:    req.CategoryID,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, posted)
}

func (h *Handler) listMine(w http.ResponseWriter, r *http.Request) {
	actorID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	page := shared.ParsePageRequest(r.URL.Query())
	entries, err := h.query.ListByOwner(r.Context(), actorID, page)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entries)
}

func (h *Handler) listByAccount(w http.ResponseWriter, r *http.Request) {
	actorID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	accountID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid account id")
		return
	}
	page := shared.ParsePageRequest(r.URL.Query())
	entries, err := h.query.ListByAccount(r.Context(), actorID, accountID, page)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entries)
}

func (h *Handler) requireUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := shared.UserIDFromContext(r.Context())
	if raw == "" {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidType),
		errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrEndpointMismatch),
		errors.Is(err, ErrCurrencyMismatch),
		errors.Is(err, ErrSameAccount),
		errors.Is(err, ErrAccountInactive),
		errors.Is(err, ErrInsufficientFunds):
		httpx.Problem(w, http.StatusBadRequest, "Transaction Rejected", err.Error())
	case errors.Is(err, accounts.ErrAccessDenied):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, accounts.ErrAccountNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	default:
		if h.logger != nil {
			h.logger.Error("posting failed", slog.Any("error", err))
		}
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
