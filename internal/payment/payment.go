package payment

import (
	"context"
	"io"
	"time"

	"github.com/frahmantamala/course-marketplace/internal/core/datamodel/coupon"
	"github.com/frahmantamala/course-marketplace/internal/core/datamodel/payment"
	"github.com/frahmantamala/course-marketplace/internal/slipverify"
)

// RepositoryAPI is the payment store. InTransaction opens the unit of work
// that keeps a status change and its entitlement effects atomic.
type RepositoryAPI interface {
	Get(ctx context.Context, id string) (*payment.Payment, error)
	GetByExternalRef(ctx context.Context, ref string) (*payment.Payment, error)
	FindReusablePending(ctx context.Context, userID int64, courseID, bundleID *int64, method string) (*payment.Payment, error)
	ListForUser(ctx context.Context, userID int64) ([]payment.Payment, error)
	ListStuckVerifying(ctx context.Context, olderThan time.Time, limit int) ([]payment.Payment, error)
	SetExternalRef(ctx context.Context, id, ref string) error
	InTransaction(ctx context.Context, fn func(tx EntitlementTx) error) error
}

// EntitlementTx is the set of writes available inside one transaction. A
// payment row lock is taken first so concurrent webhooks for the same payment
// serialize.
type EntitlementTx interface {
	PaymentForUpdate(ctx context.Context, id string) (*payment.Payment, error)
	CreatePayment(ctx context.Context, p *payment.Payment) error
	UpdatePayment(ctx context.Context, p *payment.Payment) error
	GrantCourse(ctx context.Context, userID, courseID int64) (bool, error)
	BundleCourseIDs(ctx context.Context, bundleID int64) ([]int64, error)
	RedeemCouponIfAbsent(ctx context.Context, code string, userID int64, courseID *int64, discount float64) (bool, error)
}

// CatalogAPI resolves prices and bundle composition.
type CatalogAPI interface {
	PriceForTarget(ctx context.Context, courseID, bundleID *int64) (float64, error)
	BundleCourseIDs(ctx context.Context, bundleID int64) ([]int64, error)
}

// CouponAPI validates a coupon against a purchase and computes its discount.
type CouponAPI interface {
	Validate(ctx context.Context, code string, userID int64, courseID *int64, price float64) (*coupon.Coupon, float64, error)
}

// GatewayAPI creates hosted checkout sessions with the card processor.
type GatewayAPI interface {
	CreateSession(ctx context.Context, paymentID string, amount float64) (sessionID, redirectURL string, err error)
}

// SlipVerifierAPI submits a bank transfer slip and the amount the payment
// expects to the external verification service.
type SlipVerifierAPI interface {
	Verify(ctx context.Context, fileName string, file io.Reader, amount float64) (*slipverify.Result, error)
}

// RevocationAPI reconciles enrollments after a refund.
type RevocationAPI interface {
	ReconcileRefund(ctx context.Context, userID int64, courseIDs []int64, refundedPaymentID string) error
}

// Evidence carries the provenance of a status change for the audit trail.
type Evidence struct {
	Source      string
	ExternalRef string
	Note        string
	Actor       string
}
