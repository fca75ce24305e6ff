package certificate

import (
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

// VerifyCertificate handles GET /api/v1/certificates/{code}. Public, no auth:
// anyone holding a code can check it.
func (h *Handler) VerifyCertificate(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if code == "" {
		h.HandleError(w, errors.NewValidationError("certificate code is required", errors.ErrCodeValidationFailed))
		return
	}

	cert, err := h.Service.GetByCode(r.Context(), code)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, ToCertificateResponse(cert))
}

// ListCertificates handles GET /api/v1/certificates
func (h *Handler) ListCertificates(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.HandleError(w, errors.NewUnauthorizedError("authentication required", errors.ErrCodeInvalidToken))
		return
	}

	list, err := h.Service.ListForUser(r.Context(), user.ID)
	if err != nil {
		h.Logger.Error("ListCertificates: service error", "error", err, "user_id", user.ID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"certificates": ToCertificateListResponse(list),
	})
}
