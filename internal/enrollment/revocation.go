package enrollment

import (
	"context"
	"log/slog"
	"time"

	"github.com/frahmantamala/course-marketplace/internal/core/events"
)

// RevocationRepository answers entitlement questions for the revocation
// checker. "Other" always means payments other than the one being refunded.
type RevocationRepository interface {
	HasOtherCompletedDirect(ctx context.Context, userID, courseID int64, excludePaymentID string) (bool, error)
	HasOtherCompletedBundleCovering(ctx context.Context, userID, courseID int64, excludePaymentID string) (bool, error)
	DeleteEnrollment(ctx context.Context, userID, courseID int64) error
}

// CertificateRevoker revokes a certificate when the enrollment that earned it
// is withdrawn.
type CertificateRevoker interface {
	RevokeForCourse(ctx context.Context, userID, courseID int64, reason string) error
}

// RevocationChecker decides, per course, whether a refund should withdraw
// access. Access survives when any other completed payment covers the same
// course, either directly or through a bundle.
type RevocationChecker struct {
	repo     RevocationRepository
	certs    CertificateRevoker
	eventBus events.EventBus
	logger   *slog.Logger
}

func NewRevocationChecker(repo RevocationRepository, certs CertificateRevoker, eventBus events.EventBus, logger *slog.Logger) *RevocationChecker {
	return &RevocationChecker{
		repo:     repo,
		certs:    certs,
		eventBus: eventBus,
		logger:   logger,
	}
}

// ReconcileRefund runs after a payment moved to refunded. Each course the
// refunded payment granted is checked independently so a bundle refund only
// removes courses the user holds no other claim to.
func (c *RevocationChecker) ReconcileRefund(ctx context.Context, userID int64, courseIDs []int64, refundedPaymentID string) error {
	for _, courseID := range courseIDs {
		keep, err := c.hasOtherEntitlement(ctx, userID, courseID, refundedPaymentID)
		if err != nil {
			return err
		}
		if keep {
			c.logger.Info("ReconcileRefund: access retained",
				"user_id", userID,
				"course_id", courseID,
				"payment_id", refundedPaymentID)
			continue
		}

		if err := c.repo.DeleteEnrollment(ctx, userID, courseID); err != nil {
			return err
		}
		if err := c.certs.RevokeForCourse(ctx, userID, courseID, "payment refunded"); err != nil {
			c.logger.Error("ReconcileRefund: certificate revocation failed",
				"user_id", userID,
				"course_id", courseID,
				"error", err)
		}

		c.logger.Info("ReconcileRefund: access revoked",
			"user_id", userID,
			"course_id", courseID,
			"payment_id", refundedPaymentID)
		c.eventBus.Publish(ctx, events.EnrollmentRevoked{
			UserID:    userID,
			CourseID:  courseID,
			PaymentID: refundedPaymentID,
			RevokedAt: time.Now(),
		})
	}
	return nil
}

func (c *RevocationChecker) hasOtherEntitlement(ctx context.Context, userID, courseID int64, excludePaymentID string) (bool, error) {
	direct, err := c.repo.HasOtherCompletedDirect(ctx, userID, courseID, excludePaymentID)
	if err != nil {
		return false, err
	}
	if direct {
		return true, nil
	}
	return c.repo.HasOtherCompletedBundleCovering(ctx, userID, courseID, excludePaymentID)
}
