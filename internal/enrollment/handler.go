package enrollment

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

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

// ListEnrollments handles GET /api/v1/enrollments
func (h *Handler) ListEnrollments(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.HandleError(w, errors.NewUnauthorizedError("authentication required", errors.ErrCodeInvalidToken))
		return
	}

	list, err := h.Service.ListForUser(r.Context(), user.ID)
	if err != nil {
		h.Logger.Error("ListEnrollments: service error", "error", err, "user_id", user.ID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"enrollments": ToEnrollmentListResponse(list),
	})
}

// UpdateProgress handles PATCH /api/v1/enrollments/{courseID}/progress
func (h *Handler) UpdateProgress(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.HandleError(w, errors.NewUnauthorizedError("authentication required", errors.ErrCodeInvalidToken))
		return
	}

	courseID, err := strconv.ParseInt(chi.URLParam(r, "courseID"), 10, 64)
	if err != nil {
		h.HandleError(w, errors.NewValidationError("invalid course ID", errors.ErrCodeValidationFailed))
		return
	}

	var req ProgressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("UpdateProgress: failed to parse request body", "error", err)
		h.HandleError(w, errors.NewValidationError("invalid request body", errors.ErrCodeValidationFailed))
		return
	}

	if err := req.Validate(); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	if err := h.Service.UpdateProgress(r.Context(), user.ID, courseID, req.ProgressPercent); err != nil {
		h.Logger.Error("UpdateProgress: service error",
			"error", err,
			"user_id", user.ID,
			"course_id", courseID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status": "progress updated",
	})
}
