package payment

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"

	errors "github.com/frahmantamala/course-marketplace/internal"
	"github.com/frahmantamala/course-marketplace/internal/auth"
	"github.com/frahmantamala/course-marketplace/internal/transport"
)

const maxSlipSize = 5 << 20

type SlipHandler struct {
	transport.BaseHandler
	Service *Service
	Logger  *slog.Logger
}

func NewSlipHandler(service *Service, logger *slog.Logger) *SlipHandler {
	return &SlipHandler{
		Service: service,
		Logger:  logger,
	}
}

// SubmitSlip handles POST /api/v1/payments/{paymentID}/slip with a multipart
// "slip" file field.
func (h *SlipHandler) SubmitSlip(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.HandleError(w, errors.NewUnauthorizedError("authentication required", errors.ErrCodeInvalidToken))
		return
	}

	paymentID := chi.URLParam(r, "paymentID")

	if err := r.ParseMultipartForm(maxSlipSize); err != nil {
		h.HandleError(w, errors.NewValidationError("invalid multipart body", errors.ErrCodeValidationFailed))
		return
	}

	file, header, err := r.FormFile("slip")
	if err != nil {
		h.HandleError(w, errors.NewValidationError("slip file is required", errors.ErrCodeValidationFailed))
		return
	}
	defer file.Close()

	p, err := h.Service.SubmitSlip(r.Context(), user.ID, paymentID, header.Filename, file)
	if err != nil {
		h.Logger.Error("SubmitSlip: service error",
			"error", err,
			"payment_id", paymentID,
			"user_id", user.ID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, ToPaymentResponse(p))
}
