package payment

import (
	"time"

	errors "github.com/frahmantamala/course-marketplace/internal"
	"github.com/frahmantamala/course-marketplace/internal/core/common/validation"
	"github.com/frahmantamala/course-marketplace/internal/core/datamodel/payment"
)

type CheckoutRequest struct {
	CourseID   *int64  `json:"course_id,omitempty"`
	BundleID   *int64  `json:"bundle_id,omitempty"`
	Method     string  `json:"method"`
	Currency   string  `json:"currency,omitempty"`
	CouponCode *string `json:"coupon_code,omitempty"`
}

func (r *CheckoutRequest) Validate() error {
	v := validation.NewValidator()
	v.Field("method", r.Method).Required().OneOf(
		[]string{payment.MethodCard, payment.MethodBankSlip, payment.MethodFree},
		errors.ErrCodeValidationFailed,
	)
	if err := v.Validate(); err != nil {
		return err
	}
	if err := validation.ValidateTarget(r.CourseID, r.BundleID); err != nil {
		return err
	}
	return nil
}

type CheckoutResponse struct {
	PaymentID      string  `json:"payment_id"`
	Status         string  `json:"status"`
	Amount         float64 `json:"amount"`
	Currency       string  `json:"currency"`
	DiscountAmount float64 `json:"discount_amount"`
	RedirectURL    *string `json:"redirect_url,omitempty"`
}

func ToCheckoutResponse(p *payment.Payment, redirectURL *string) *CheckoutResponse {
	return &CheckoutResponse{
		PaymentID:      p.ID,
		Status:         p.Status,
		Amount:         p.Amount,
		Currency:       p.Currency,
		DiscountAmount: p.DiscountAmount,
		RedirectURL:    redirectURL,
	}
}

type PaymentResponse struct {
	ID             string     `json:"id"`
	CourseID       *int64     `json:"course_id,omitempty"`
	BundleID       *int64     `json:"bundle_id,omitempty"`
	Amount         float64    `json:"amount"`
	Currency       string     `json:"currency"`
	Method         string     `json:"method"`
	Status         string     `json:"status"`
	CouponCode     *string    `json:"coupon_code,omitempty"`
	DiscountAmount float64    `json:"discount_amount"`
	FailureReason  *string    `json:"failure_reason,omitempty"`
	PaidAt         *time.Time `json:"paid_at,omitempty"`
	RefundedAt     *time.Time `json:"refunded_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

func ToPaymentResponse(p *payment.Payment) *PaymentResponse {
	return &PaymentResponse{
		ID:             p.ID,
		CourseID:       p.CourseID,
		BundleID:       p.BundleID,
		Amount:         p.Amount,
		Currency:       p.Currency,
		Method:         p.Method,
		Status:         p.Status,
		CouponCode:     p.CouponCode,
		DiscountAmount: p.DiscountAmount,
		FailureReason:  p.FailureReason,
		PaidAt:         p.PaidAt,
		RefundedAt:     p.RefundedAt,
		CreatedAt:      p.CreatedAt,
	}
}

func ToPaymentListResponse(list []payment.Payment) []*PaymentResponse {
	out := make([]*PaymentResponse, 0, len(list))
	for i := range list {
		out = append(out, ToPaymentResponse(&list[i]))
	}
	return out
}

// Gateway webhook event types.
const (
	GatewayEventSucceeded = "payment.succeeded"
	GatewayEventFailed    = "payment.failed"
	GatewayEventRefunded  = "payment.refunded"
)

// GatewayEvent is the parsed webhook payload. PaymentID comes from the
// metadata the session was created with; ExternalRef is the provider's own
// session ID, used as a fallback lookup.
type GatewayEvent struct {
	Type        string  `json:"event_type"`
	PaymentID   string  `json:"payment_id"`
	ExternalRef string  `json:"external_ref"`
	Amount      float64 `json:"amount"`
	Reason      string  `json:"reason"`
}

func (e *GatewayEvent) Validate() error {
	v := validation.NewValidator()
	v.Field("event_type", e.Type).Required()
	if err := v.Validate(); err != nil {
		return err
	}
	if e.PaymentID == "" && e.ExternalRef == "" {
		return errors.NewValidationError("payment reference missing from event", errors.ErrCodeValidationFailed)
	}
	return nil
}

type AdminTransitionRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

func (r *AdminTransitionRequest) Validate() error {
	v := validation.NewValidator()
	v.Field("status", r.Status).Required().OneOf(
		[]string{
			payment.StatusCompleted,
			payment.StatusFailed,
			payment.StatusRefunded,
		},
		errors.ErrCodeInvalidStatus,
	)
	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}
