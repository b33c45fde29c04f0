package analytics

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/atlasbank/atlasbank/internal/platform/httpx"
	"github.com/atlasbank/atlasbank/internal/shared"
)

// Handler serves spending analytics.
type Handler struct {
	logger  *slog.Logger
	service *Service
	now     func() time.Time
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, now: time.Now}
}

// MountRoutes registers analytics routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/analytics/spending", h.spending)
}

func (h *Handler) spending(w http.ResponseWriter, r *http.Request) {
	raw := shared.UserIDFromContext(r.Context())
	ownerID, err := uuid.Parse(raw)
	if raw == "" || err != nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
		return
	}

	to := h.now().UTC().Truncate(24 * time.Hour).AddDate(0, 0, 1)
	from := to.AddDate(0, -1, 0)
	if raw := r.URL.Query().Get("from"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "from must be YYYY-MM-DD")
			return
		}
		from = parsed
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "to must be YYYY-MM-DD")
			return
		}
		to = parsed.AddDate(0, 0, 1)
	}
	if !from.Before(to) {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "from must precede to")
		return
	}

	spending, err := h.service.Spending(r.Context(), ownerID, from, to)
	if err != nil {
		if h.logger != nil {
			h.logger.Error("spending analytics", slog.Any("error", err))
		}
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, spending)
}
