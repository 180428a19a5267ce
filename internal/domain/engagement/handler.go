package engagement

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/coinloop/rewards-api/internal/pkg/response"
	"github.com/coinloop/rewards-api/internal/pkg/validator"
)

// Handler exposes the operator surface for tuning limits, amounts and
// campaigns at runtime.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type upsertConfigRequest struct {
	Action     string          `json:"action" validate:"required,reward_source"`
	DailyLimit int             `json:"daily_limit" validate:"min=0"`
	CoinAmount int64           `json:"coin_amount" validate:"min=0"`
	ExpiryDays int             `json:"expiry_days" validate:"min=0"`
	Enabled    bool            `json:"enabled"`
	Metadata   json.RawMessage `json:"metadata"`
}

type createCampaignRequest struct {
	Action     string    `json:"action" validate:"required,reward_source"`
	Multiplier float64   `json:"multiplier" validate:"required"`
	StartsAt   time.Time `json:"starts_at" validate:"required"`
	EndsAt     time.Time `json:"ends_at" validate:"required"`
}

func (h *Handler) ListConfigs(w http.ResponseWriter, r *http.Request) {
	configs, err := h.svc.ListConfigs(r.Context())
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, configs)
}

func (h *Handler) UpsertConfig(w http.ResponseWriter, r *http.Request) {
	var req upsertConfigRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	cfg := &ActionConfig{
		Action:     req.Action,
		DailyLimit: req.DailyLimit,
		CoinAmount: req.CoinAmount,
		ExpiryDays: req.ExpiryDays,
		Enabled:    req.Enabled,
		Metadata:   req.Metadata,
	}
	if err := h.svc.UpsertConfig(r.Context(), cfg); err != nil {
		if errors.Is(err, ErrInvalidConfig) {
			response.BadRequest(w, err.Error())
			return
		}
		response.InternalError(w)
		return
	}
	response.OK(w, cfg)
}

func (h *Handler) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var req createCampaignRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	campaign := &Campaign{
		Action:     req.Action,
		Multiplier: req.Multiplier,
		StartsAt:   req.StartsAt,
		EndsAt:     req.EndsAt,
	}
	if err := h.svc.CreateCampaign(r.Context(), campaign); err != nil {
		if errors.Is(err, ErrInvalidCampaign) {
			response.BadRequest(w, err.Error())
			return
		}
		response.InternalError(w)
		return
	}
	response.Created(w, campaign)
}

func (h *Handler) Routes(authMiddleware, adminMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Use(adminMiddleware)
	r.Get("/configs", h.ListConfigs)
	r.Put("/configs", h.UpsertConfig)
	r.Post("/campaigns", h.CreateCampaign)
	return r
}
