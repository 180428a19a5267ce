package statement

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/coinloop/rewards-api/internal/middleware"
	"github.com/coinloop/rewards-api/internal/pkg/errorhandler"
	"github.com/coinloop/rewards-api/internal/pkg/response"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Export handles GET /coins/statement?month=YYYY-MM
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	month := r.URL.Query().Get("month")
	if month == "" {
		response.BadRequest(w, "Missing month parameter")
		return
	}

	userID := middleware.GetUserID(r.Context())
	st, err := h.service.Export(r.Context(), userID, month)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidMonth):
			response.BadRequest(w, "Month must be YYYY-MM and not in the future")
		case errors.Is(err, ErrNoStorage):
			response.ServiceUnavailable(w, "Statement export is not available")
		default:
			errorhandler.HandleError(r.Context(), w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to export statement", err)
		}
		return
	}
	response.OK(w, st)
}

func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Get("/", h.Export)
	return r
}
