package enrollment

import (
	"time"

	errors "github.com/frahmantamala/course-marketplace/internal"
	"github.com/frahmantamala/course-marketplace/internal/core/common/validation"
	"github.com/frahmantamala/course-marketplace/internal/core/datamodel/enrollment"
)

type ProgressRequest struct {
	ProgressPercent float64 `json:"progress_percent"`
}

func (r *ProgressRequest) Validate() error {
	v := validation.NewValidator()
	v.Field("progress_percent", r.ProgressPercent).NonNegative(errors.ErrCodeValidationFailed)
	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}

type EnrollmentResponse struct {
	CourseID        int64      `json:"course_id"`
	ProgressPercent float64    `json:"progress_percent"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	EnrolledAt      time.Time  `json:"enrolled_at"`
}

func ToEnrollmentResponse(e *enrollment.Enrollment) *EnrollmentResponse {
	return &EnrollmentResponse{
		CourseID:        e.CourseID,
		ProgressPercent: e.ProgressPercent,
		CompletedAt:     e.CompletedAt,
		EnrolledAt:      e.EnrolledAt,
	}
}

func ToEnrollmentListResponse(list []enrollment.Enrollment) []*EnrollmentResponse {
	out := make([]*EnrollmentResponse, 0, len(list))
	for i := range list {
		out = append(out, ToEnrollmentResponse(&list[i]))
	}
	return out
}
