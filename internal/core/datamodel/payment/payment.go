package payment

import (
	"time"
)

// Status values. Transitions between them are owned by the payment state
// machine; nothing else mutates Status.
const (
	StatusPending   = "pending"
	StatusVerifying = "verifying"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusRefunded  = "refunded"
)

const (
	MethodCard     = "card"
	MethodBankSlip = "bank_slip"
	MethodFree     = "free"
)

// Payment is one attempted transaction. Target is exactly one of CourseID or
// BundleID. The ID is a uuid generated at creation and stable across retries;
// the gateway echoes it back in webhook metadata.
type Payment struct {
	ID             string     `gorm:"primaryKey"`
	UserID         int64      `gorm:"column:user_id;not null;index"`
	CourseID       *int64     `gorm:"column:course_id;index"`
	BundleID       *int64     `gorm:"column:bundle_id;index"`
	Amount         float64    `gorm:"column:amount;not null"`
	Currency       string     `gorm:"column:currency;not null"`
	Method         string     `gorm:"column:method;not null"`
	Status         string     `gorm:"column:status;default:pending;index"`
	ExternalRef    *string    `gorm:"column:external_ref;index"`
	CouponCode     *string    `gorm:"column:coupon_code"`
	DiscountAmount float64    `gorm:"column:discount_amount;default:0"`
	FailureReason  *string    `gorm:"column:failure_reason"`
	RetryCount     int        `gorm:"column:retry_count;default:0"`
	PaidAt         *time.Time `gorm:"column:paid_at"`
	RefundedAt     *time.Time `gorm:"column:refunded_at"`
	CreatedAt      time.Time  `gorm:"column:created_at;default:now()"`
	UpdatedAt      time.Time  `gorm:"column:updated_at;default:now()"`
}

func (Payment) TableName() string {
	return "payments"
}

func (p *Payment) IsBundle() bool {
	return p.BundleID != nil
}
