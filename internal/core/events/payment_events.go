package events

import (
	"time"
)

const (
	PaymentCompletedEvent = "payment.completed"
	PaymentFailedEvent    = "payment.failed"
	PaymentRefundedEvent  = "payment.refunded"
)

type PaymentCompleted struct {
	PaymentID string
	UserID    int64
	CourseID  *int64
	BundleID  *int64
	Amount    float64
	Currency  string
	Method    string
	PaidAt    time.Time
}

func (PaymentCompleted) EventName() string { return PaymentCompletedEvent }

type PaymentFailed struct {
	PaymentID string
	UserID    int64
	Reason    string
	FailedAt  time.Time
}

func (PaymentFailed) EventName() string { return PaymentFailedEvent }

type PaymentRefunded struct {
	PaymentID  string
	UserID     int64
	Amount     float64
	RefundedAt time.Time
}

func (PaymentRefunded) EventName() string { return PaymentRefundedEvent }
