package streak

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/coinloop/rewards-api/internal/middleware"
	"github.com/coinloop/rewards-api/internal/pkg/response"
)

// Handler exposes streak state reads. Claims go through the rewards handler
// because paying the bonus touches the ledger.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	t := Type(chi.URLParam(r, "type"))
	state, err := h.svc.GetState(r.Context(), userID, t)
	switch {
	case errors.Is(err, ErrUnknownType):
		response.BadRequest(w, "streak type must be login, order or review")
		return
	case errors.Is(err, ErrNotFound):
		// A user with no activity yet simply has a zero streak.
		response.OK(w, &State{UserID: userID, Type: t})
		return
	case err != nil:
		response.InternalError(w)
		return
	}

	response.OK(w, state)
}

func (h *Handler) Claims(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	claims, err := h.svc.ListClaims(r.Context(), userID, Type(chi.URLParam(r, "type")))
	if err != nil {
		if errors.Is(err, ErrUnknownType) {
			response.BadRequest(w, "streak type must be login, order or review")
			return
		}
		response.InternalError(w)
		return
	}

	response.OK(w, claims)
}
