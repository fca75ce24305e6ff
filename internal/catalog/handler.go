package catalog

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/frahmantamala/course-marketplace/internal/core/datamodel/catalog"
	"github.com/frahmantamala/course-marketplace/internal/transport"
)

type CourseResponse struct {
	ID             int64   `json:"id"`
	Title          string  `json:"title"`
	Price          float64 `json:"price"`
	EffectivePrice float64 `json:"effective_price"`
}

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

// ListCourses handles GET /api/v1/courses. Public.
func (h *Handler) ListCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := h.Service.ListCourses(r.Context())
	if err != nil {
		h.Logger.Error("ListCourses: service error", "error", err)
		h.HandleServiceError(w, err)
		return
	}

	now := time.Now()
	out := make([]CourseResponse, 0, len(courses))
	for i := range courses {
		out = append(out, toCourseResponse(&courses[i], now))
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"courses": out,
	})
}

func toCourseResponse(c *catalog.Course, now time.Time) CourseResponse {
	return CourseResponse{
		ID:             c.ID,
		Title:          c.Title,
		Price:          c.Price,
		EffectivePrice: RoundMoney(c.EffectivePrice(now)),
	}
}
