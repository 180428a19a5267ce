package rewards

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/coinloop/rewards-api/internal/domain/engagement"
	"github.com/coinloop/rewards-api/internal/domain/ledger"
	"github.com/coinloop/rewards-api/internal/domain/quota"
	"github.com/coinloop/rewards-api/internal/domain/streak"
	"github.com/coinloop/rewards-api/internal/middleware"
	"github.com/coinloop/rewards-api/internal/pkg/errorhandler"
	"github.com/coinloop/rewards-api/internal/pkg/response"
	"github.com/coinloop/rewards-api/internal/pkg/validator"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type shareRequest struct {
	Platform string `json:"platform" validate:"required,share_platform"`
}

type redeemRequest struct {
	Amount  int64  `json:"amount" validate:"required,gt=0"`
	OrderID string `json:"order_id" validate:"required"`
}

type cashbackRequest struct {
	UserID     uuid.UUID `json:"user_id" validate:"required"`
	OrderID    string    `json:"order_id" validate:"required"`
	OrderTotal int64     `json:"order_total" validate:"required,gt=0"`
}

type referralRequest struct {
	ReferrerID uuid.UUID `json:"referrer_id" validate:"required"`
	ReferredID uuid.UUID `json:"referred_id" validate:"required"`
}

type achievementRequest struct {
	UserID        uuid.UUID `json:"user_id" validate:"required"`
	AchievementID string    `json:"achievement_id" validate:"required"`
	Coins         int64     `json:"coins" validate:"gte=0"`
}

type refundRequest struct {
	UserID  uuid.UUID `json:"user_id" validate:"required"`
	Amount  int64     `json:"amount" validate:"required,gt=0"`
	OrderID string    `json:"order_id" validate:"required"`
}

type streakActivityRequest struct {
	UserID uuid.UUID `json:"user_id" validate:"required"`
	Type   string    `json:"type" validate:"required,streak_type"`
}

// Spin handles POST /coins/spin
func (h *Handler) Spin(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	result, err := h.service.Spin(r.Context(), userID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	response.OK(w, result)
}

// CheckIn handles POST /coins/check-in
func (h *Handler) CheckIn(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	result, err := h.service.CheckIn(r.Context(), userID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	response.OK(w, result)
}

// Share handles POST /coins/share
func (h *Handler) Share(w http.ResponseWriter, r *http.Request) {
	var req shareRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	userID := middleware.GetUserID(r.Context())
	award, err := h.service.ShareSocial(r.Context(), userID, req.Platform)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	response.OK(w, award)
}

// Redeem handles POST /coins/redeem
func (h *Handler) Redeem(w http.ResponseWriter, r *http.Request) {
	var req redeemRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	userID := middleware.GetUserID(r.Context())
	result, err := h.service.Redeem(r.Context(), userID, req.Amount, req.OrderID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	response.OK(w, result)
}

// Quotas handles GET /coins/quotas
func (h *Handler) Quotas(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	statuses, err := h.service.Quotas(r.Context(), userID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	response.OK(w, statuses)
}

// ClaimMilestone handles POST /streaks/{type}/claim/{day}
func (h *Handler) ClaimMilestone(w http.ResponseWriter, r *http.Request) {
	t := streak.Type(chi.URLParam(r, "type"))
	if !t.Valid() {
		response.BadRequest(w, "Unknown streak type")
		return
	}
	day, err := strconv.Atoi(chi.URLParam(r, "day"))
	if err != nil || day <= 0 {
		response.BadRequest(w, "Invalid milestone day")
		return
	}

	userID := middleware.GetUserID(r.Context())
	award, err := h.service.ClaimMilestone(r.Context(), userID, t, day)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	response.OK(w, award)
}

// OrderCashback handles POST /coins/orders/cashback (service role)
func (h *Handler) OrderCashback(w http.ResponseWriter, r *http.Request) {
	var req cashbackRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	award, err := h.service.AwardOrderCashback(r.Context(), req.UserID, req.OrderID, req.OrderTotal)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	response.Created(w, award)
}

// ReferralQualify handles POST /coins/referrals/qualify (service role)
func (h *Handler) ReferralQualify(w http.ResponseWriter, r *http.Request) {
	var req referralRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	award, err := h.service.QualifyReferral(r.Context(), req.ReferrerID, req.ReferredID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	response.Created(w, award)
}

// AchievementUnlock handles POST /coins/achievements/unlock (service role)
func (h *Handler) AchievementUnlock(w http.ResponseWriter, r *http.Request) {
	var req achievementRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	award, err := h.service.UnlockAchievement(r.Context(), req.UserID, req.AchievementID, req.Coins)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	response.Created(w, award)
}

// Refund handles POST /coins/refund (service role)
func (h *Handler) Refund(w http.ResponseWriter, r *http.Request) {
	var req refundRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	award, err := h.service.Refund(r.Context(), req.UserID, req.Amount, req.OrderID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	response.Created(w, award)
}

// StreakActivity handles POST /coins/streaks/record (service role)
func (h *Handler) StreakActivity(w http.ResponseWriter, r *http.Request) {
	var req streakActivityRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	state, err := h.service.RecordStreakActivity(r.Context(), req.UserID, streak.Type(req.Type))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	response.OK(w, state)
}

// Grant handles POST /admin/coins/grant
func (h *Handler) Grant(w http.ResponseWriter, r *http.Request) {
	var req GrantInput
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	adminID := middleware.GetUserID(r.Context())
	award, err := h.service.Grant(r.Context(), adminID, req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	response.Created(w, award)
}

// Revoke handles POST /admin/coins/revoke
func (h *Handler) Revoke(w http.ResponseWriter, r *http.Request) {
	var req GrantInput
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	adminID := middleware.GetUserID(r.Context())
	award, err := h.service.Revoke(r.Context(), adminID, req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	response.Created(w, award)
}

func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, quota.ErrQuotaExceeded):
		response.TooManyRequests(w, "QUOTA_EXCEEDED", "Daily limit reached for this action")
	case errors.Is(err, ledger.ErrInsufficientBalance):
		response.Error(w, http.StatusUnprocessableEntity, "INSUFFICIENT_BALANCE", "Not enough coins")
	case errors.Is(err, ledger.ErrReferenceConflict):
		response.Conflict(w, "Reference already used with a different amount")
	case errors.Is(err, ledger.ErrUnavailable):
		response.ServiceUnavailable(w, "Ledger temporarily unavailable, try again")
	case errors.Is(err, engagement.ErrUnknownAction):
		response.NotFound(w, "Unknown action")
	case errors.Is(err, engagement.ErrActionDisabled):
		response.Forbidden(w, "This action is currently disabled")
	case errors.Is(err, engagement.ErrInvalidConfig):
		response.ServiceUnavailable(w, "Action is misconfigured")
	case errors.Is(err, streak.ErrAlreadyClaimed):
		response.Conflict(w, "Milestone already claimed")
	case errors.Is(err, streak.ErrNotReached):
		response.BadRequest(w, "Milestone not reached")
	case errors.Is(err, streak.ErrUnknownType):
		response.BadRequest(w, "Unknown streak type")
	case errors.Is(err, ErrInvalidPlatform):
		response.BadRequest(w, "Unsupported share platform")
	case errors.Is(err, ErrInvalidOrder):
		response.BadRequest(w, "Invalid order reference")
	case errors.Is(err, ErrNothingToAward):
		response.BadRequest(w, "Order total too small for cashback")
	default:
		errorhandler.HandleError(r.Context(), w, http.StatusInternalServerError, "INTERNAL_ERROR", "Something went wrong", err)
	}
}

// Routes wires the earning and spending surface under /coins. User-facing
// actions sit behind plain auth; webhook-style adapters require the service
// role. Milestone claims and the admin grant/revoke endpoints are mounted
// elsewhere by the caller.
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)

	r.Post("/spin", h.Spin)
	r.Post("/check-in", h.CheckIn)
	r.Post("/share", h.Share)
	r.Post("/redeem", h.Redeem)
	r.Get("/quotas", h.Quotas)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireService())
		r.Post("/orders/cashback", h.OrderCashback)
		r.Post("/referrals/qualify", h.ReferralQualify)
		r.Post("/achievements/unlock", h.AchievementUnlock)
		r.Post("/refund", h.Refund)
		r.Post("/streaks/record", h.StreakActivity)
	})

	return r
}
