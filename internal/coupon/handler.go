package coupon

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	errors "github.com/frahmantamala/course-marketplace/internal"
	"github.com/frahmantamala/course-marketplace/internal/auth"
	"github.com/frahmantamala/course-marketplace/internal/transport"
)

// PriceResolver resolves the current price of the purchase target so the
// discount preview matches what checkout would charge.
type PriceResolver interface {
	PriceForTarget(ctx context.Context, courseID, bundleID *int64) (float64, error)
}

type Handler struct {
	transport.BaseHandler
	Service *Service
	Pricer  PriceResolver
	Logger  *slog.Logger
}

func NewHandler(service *Service, pricer PriceResolver, logger *slog.Logger) *Handler {
	return &Handler{
		Service: service,
		Pricer:  pricer,
		Logger:  logger,
	}
}

// ValidateCoupon handles POST /api/v1/coupons/validate
func (h *Handler) ValidateCoupon(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.HandleError(w, errors.NewUnauthorizedError("authentication required", errors.ErrCodeInvalidToken))
		return
	}

	var req ValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("ValidateCoupon: failed to parse request body", "error", err)
		h.HandleError(w, errors.NewValidationError("invalid request body", errors.ErrCodeValidationFailed))
		return
	}

	if err := req.Validate(); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	price, err := h.Pricer.PriceForTarget(r.Context(), req.CourseID, req.BundleID)
	if err != nil {
		h.Logger.Error("ValidateCoupon: price lookup failed", "error", err)
		h.HandleServiceError(w, err)
		return
	}

	c, discount, err := h.Service.Validate(r.Context(), req.Code, user.ID, req.CourseID, price)
	if err != nil {
		h.Logger.Info("ValidateCoupon: coupon rejected",
			"code", req.Code,
			"user_id", user.ID,
			"error", err)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, ToValidateResponse(c, price, discount))
}
