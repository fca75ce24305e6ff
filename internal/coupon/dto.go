package coupon

import (
	"time"

	"github.com/frahmantamala/course-marketplace/internal/core/common/validation"
	"github.com/frahmantamala/course-marketplace/internal/core/datamodel/coupon"
)

type ValidateRequest struct {
	Code     string `json:"code"`
	CourseID *int64 `json:"course_id,omitempty"`
	BundleID *int64 `json:"bundle_id,omitempty"`
}

func (r *ValidateRequest) Validate() error {
	v := validation.NewValidator()
	v.Field("code", r.Code).Required().MaxLength(64)
	if err := v.Validate(); err != nil {
		return err
	}
	if err := validation.ValidateTarget(r.CourseID, r.BundleID); err != nil {
		return err
	}
	return nil
}

type ValidateResponse struct {
	Code           string     `json:"code"`
	Type           string     `json:"type"`
	DiscountAmount float64    `json:"discount_amount"`
	FinalAmount    float64    `json:"final_amount"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
}

func ToValidateResponse(c *coupon.Coupon, price, discount float64) *ValidateResponse {
	return &ValidateResponse{
		Code:           c.Code,
		Type:           c.Type,
		DiscountAmount: discount,
		FinalAmount:    price - discount,
		ExpiresAt:      c.ExpiresAt,
	}
}
