package ledger

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/coinloop/rewards-api/internal/middleware"
	"github.com/coinloop/rewards-api/internal/pkg/response"
)

// Handler exposes the read-only ledger surface: balance and history.
// Mutations go through the rewards adapters, never through HTTP directly.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	balance, err := h.svc.GetBalance(r.Context(), userID)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, map[string]interface{}{"balance": balance})
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	f, err := parseFilters(r)
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	entries, total, err := h.svc.ListEntries(r.Context(), userID, f)
	if err != nil {
		response.InternalError(w)
		return
	}

	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	page := f.Offset/limit + 1
	pages := (total + limit - 1) / limit

	response.WithMeta(w, entries, response.Meta{
		Total:   total,
		Page:    page,
		Limit:   limit,
		Pages:   pages,
		HasNext: f.Offset+limit < total,
		HasPrev: f.Offset > 0,
	})
}

func parseFilters(r *http.Request) (Filters, error) {
	q := r.URL.Query()
	f := Filters{
		Kind:   q.Get("kind"),
		Source: q.Get("source"),
	}

	if f.Kind != "" && !Kind(f.Kind).Valid() {
		return f, errBadFilter("kind")
	}

	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, errBadFilter("from")
		}
		f.From = &t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, errBadFilter("to")
		}
		f.To = &t
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, errBadFilter("limit")
		}
		f.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, errBadFilter("offset")
		}
		f.Offset = n
	}
	return f, nil
}

type errBadFilter string

func (e errBadFilter) Error() string { return "invalid filter: " + string(e) }

