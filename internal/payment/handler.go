package payment

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"

	errors "github.com/frahmantamala/course-marketplace/internal"
	"github.com/frahmantamala/course-marketplace/internal/auth"
	"github.com/frahmantamala/course-marketplace/internal/transport"
)

type Handler struct {
	transport.BaseHandler
	Service *Service
	Logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{
		Service: service,
		Logger:  logger,
	}
}

// Checkout handles POST /api/v1/checkout
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.HandleError(w, errors.NewUnauthorizedError("authentication required", errors.ErrCodeInvalidToken))
		return
	}

	var req CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("Checkout: failed to parse request body", "error", err)
		h.HandleError(w, errors.NewValidationError("invalid request body", errors.ErrCodeValidationFailed))
		return
	}

	if err := req.Validate(); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	resp, err := h.Service.Checkout(r.Context(), user.ID, &req)
	if err != nil {
		h.Logger.Error("Checkout: service error",
			"error", err,
			"user_id", user.ID,
			"method", req.Method)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, resp)
}

// GetPayment handles GET /api/v1/payments/{paymentID}
func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.HandleError(w, errors.NewUnauthorizedError("authentication required", errors.ErrCodeInvalidToken))
		return
	}

	paymentID := chi.URLParam(r, "paymentID")
	p, err := h.Service.GetPayment(r.Context(), user.ID, paymentID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, ToPaymentResponse(p))
}

// ListPayments handles GET /api/v1/payments
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.HandleError(w, errors.NewUnauthorizedError("authentication required", errors.ErrCodeInvalidToken))
		return
	}

	list, err := h.Service.ListForUser(r.Context(), user.ID)
	if err != nil {
		h.Logger.Error("ListPayments: service error", "error", err, "user_id", user.ID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"payments": ToPaymentListResponse(list),
	})
}

// AdminTransition handles PATCH /api/v1/admin/payments/{paymentID}/status
func (h *Handler) AdminTransition(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.HandleError(w, errors.NewUnauthorizedError("authentication required", errors.ErrCodeInvalidToken))
		return
	}
	if !user.HasPermission(auth.PermManagePayments) {
		h.HandleError(w, errors.NewForbiddenError("insufficient permissions", errors.ErrCodeUnauthorizedAccess))
		return
	}

	paymentID := chi.URLParam(r, "paymentID")

	var req AdminTransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.HandleError(w, errors.NewValidationError("invalid request body", errors.ErrCodeValidationFailed))
		return
	}

	if err := req.Validate(); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	if err := h.Service.AdminTransition(r.Context(), paymentID, req.Status, req.Reason, user.Email); err != nil {
		h.Logger.Error("AdminTransition: service error",
			"error", err,
			"payment_id", paymentID,
			"target", req.Status,
			"actor", user.Email)
		h.HandleServiceError(w, err)
		return
	}

	h.Logger.Info("AdminTransition: status changed",
		"payment_id", paymentID,
		"target", req.Status,
		"actor", user.Email)

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status": "transition applied",
	})
}
