package accounts

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/atlasbank/atlasbank/internal/platform/httpx"
	"github.com/atlasbank/atlasbank/internal/shared"
)

// Handler wires account lifecycle endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers account routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/accounts", h.list)
	r.Post("/accounts", h.open)
	r.Get("/accounts/{id}", h.get)
	r.Patch("/accounts/{id}", h.update)
}

type openAccountRequest struct {
	AccountType string `json:"accountType" validate:"required,oneof=checking savings investment joint business"`
	Currency    string `json:"currency" validate:"omitempty,len=3"`
	IsDefault   bool   `json:"isDefault"`
}

type updateAccountRequest struct {
	Status    *string `json:"status" validate:"omitempty,oneof=active inactive suspended closed"`
	IsDefault *bool   `json:"isDefault"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	callerID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	owned, err := h.service.ListByOwner(r.Context(), callerID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	if owned == nil {
		owned = []Account{}
	}
	httpx.JSON(w, http.StatusOK, owned)
}

func (h *Handler) open(w http.ResponseWriter, r *http.Request) {
	callerID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	var req openAccountRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	account, err := h.service.Open(r.Context(), OpenInput{
		OwnerID:   callerID,
		Type:      AccountType(req.AccountType),
		Currency:  req.Currency,
		IsDefault: req.IsDefault,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, account)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	callerID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid account id")
		return
	}
	account, err := h.service.Get(r.Context(), callerID, id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, account)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	callerID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid account id")
		return
	}
	var req updateAccountRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input := UpdateInput{IsDefault: req.IsDefault}
	if req.Status != nil {
		status := AccountStatus(*req.Status)
		input.Status = &status
	}
	account, err := h.service.UpdateSettings(r.Context(), callerID, id, input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, account)
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
	case errors.Is(err, ErrAccountNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrAccessDenied):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, ErrInvalidType),
		errors.Is(err, ErrInvalidStatus),
		errors.Is(err, ErrInvalidCurrency),
		errors.Is(err, ErrBalanceNotZero):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		if h.logger != nil {
			h.logger.Error("account operation failed", slog.Any("error", err))
		}
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
