package payment

import (
	"context"
	"io"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	errors "github.com/frahmantamala/course-marketplace/internal"
	"github.com/frahmantamala/course-marketplace/internal/core/datamodel/payment"
	"github.com/frahmantamala/course-marketplace/internal/core/events"
	"github.com/frahmantamala/course-marketplace/internal/slipverify"
)

type Service struct {
	repo     RepositoryAPI
	catalog  CatalogAPI
	coupons  CouponAPI
	gateway  GatewayAPI
	slips    SlipVerifierAPI
	revoker  RevocationAPI
	eventBus events.EventBus
	logger   *slog.Logger
	currency string
	now      func() time.Time
}

func NewService(
	repo RepositoryAPI,
	catalog CatalogAPI,
	coupons CouponAPI,
	gateway GatewayAPI,
	slips SlipVerifierAPI,
	revoker RevocationAPI,
	eventBus events.EventBus,
	logger *slog.Logger,
	currency string,
) *Service {
	return &Service{
		repo:     repo,
		catalog:  catalog,
		coupons:  coupons,
		gateway:  gateway,
		slips:    slips,
		revoker:  revoker,
		eventBus: eventBus,
		logger:   logger,
		currency: currency,
		now:      time.Now,
	}
}

func roundMoney(v float64) float64 {
	return math.Floor(v*100+0.5) / 100
}

// priceQuote recomputes the charge server side. Client-supplied amounts are
// never trusted.
type priceQuote struct {
	Price    float64
	Discount float64
	Amount   float64
}

func (s *Service) quote(ctx context.Context, userID int64, req *CheckoutRequest) (*priceQuote, error) {
	price, err := s.catalog.PriceForTarget(ctx, req.CourseID, req.BundleID)
	if err != nil {
		return nil, err
	}

	var discount float64
	if req.CouponCode != nil && *req.CouponCode != "" {
		_, discount, err = s.coupons.Validate(ctx, *req.CouponCode, userID, req.CourseID, price)
		if err != nil {
			return nil, err
		}
	}

	return &priceQuote{
		Price:    price,
		Discount: discount,
		Amount:   roundMoney(price - discount),
	}, nil
}

// Checkout starts a purchase. Free targets and fully covering coupons skip
// the gateway entirely and settle in one transaction; everything else leaves
// a pending payment behind, with a redirect URL for card checkouts.
func (s *Service) Checkout(ctx context.Context, userID int64, req *CheckoutRequest) (*CheckoutResponse, error) {
	if req.Currency == "" {
		req.Currency = s.currency
	}
	quote, err := s.quote(ctx, userID, req)
	if err != nil {
		return nil, err
	}

	if quote.Amount == 0 {
		p, err := s.enrollDirect(ctx, userID, req, quote)
		if err != nil {
			return nil, err
		}
		return ToCheckoutResponse(p, nil), nil
	}

	if req.Method == payment.MethodFree {
		return nil, errors.NewEligibilityError("target is not free of charge", errors.ErrCodeInvalidAmount)
	}

	p, err := s.ensurePending(ctx, userID, req, quote)
	if err != nil {
		return nil, err
	}

	var redirectURL *string
	if req.Method == payment.MethodCard {
		sessionID, url, err := s.gateway.CreateSession(ctx, p.ID, p.Amount)
		if err != nil {
			s.logger.Error("Checkout: gateway session failed", "error", err, "payment_id", p.ID)
			return nil, errors.NewExternalError("payment gateway unavailable", errors.ErrCodeSlipServiceFailed, err)
		}
		if err := s.repo.SetExternalRef(ctx, p.ID, sessionID); err != nil {
			return nil, err
		}
		p.ExternalRef = &sessionID
		redirectURL = &url
	}

	s.logger.Info("Checkout: payment created",
		"payment_id", p.ID,
		"user_id", userID,
		"amount", p.Amount,
		"method", p.Method)
	return ToCheckoutResponse(p, redirectURL), nil
}

// ensurePending reuses an open pending payment for the same user, target and
// method rather than piling up abandoned rows, refreshing its quote in case
// the price or coupon changed.
func (s *Service) ensurePending(ctx context.Context, userID int64, req *CheckoutRequest, quote *priceQuote) (*payment.Payment, error) {
	existing, err := s.repo.FindReusablePending(ctx, userID, req.CourseID, req.BundleID, req.Method)
	if err != nil {
		return nil, err
	}

	var result *payment.Payment
	err = s.repo.InTransaction(ctx, func(tx EntitlementTx) error {
		if existing != nil {
			p, err := tx.PaymentForUpdate(ctx, existing.ID)
			if err != nil {
				return err
			}
			if p.Status == payment.StatusPending {
				p.Amount = quote.Amount
				p.DiscountAmount = quote.Discount
				p.CouponCode = req.CouponCode
				p.UpdatedAt = s.now()
				if err := tx.UpdatePayment(ctx, p); err != nil {
					return err
				}
				result = p
				return nil
			}
		}

		p := &payment.Payment{
			ID:             uuid.NewString(),
			UserID:         userID,
			CourseID:       req.CourseID,
			BundleID:       req.BundleID,
			Amount:         quote.Amount,
			Currency:       req.Currency,
			Method:         req.Method,
			Status:         payment.StatusPending,
			CouponCode:     req.CouponCode,
			DiscountAmount: quote.Discount,
			CreatedAt:      s.now(),
			UpdatedAt:      s.now(),
		}
		if err := tx.CreatePayment(ctx, p); err != nil {
			return err
		}
		result = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// enrollDirect settles a zero-amount purchase in a single transaction: the
// payment row is born completed, the coupon is redeemed and access granted
// atomically. When the user already holds everything the purchase would
// grant, the transaction rolls back and the checkout is rejected, so repeat
// free checkouts never pile up completed payment rows or burn redemptions.
func (s *Service) enrollDirect(ctx context.Context, userID int64, req *CheckoutRequest, quote *priceQuote) (*payment.Payment, error) {
	method := payment.MethodFree
	now := s.now()

	var result *payment.Payment
	var granted []int64
	err := s.repo.InTransaction(ctx, func(tx EntitlementTx) error {
		granted = granted[:0]
		p := &payment.Payment{
			ID:             uuid.NewString(),
			UserID:         userID,
			CourseID:       req.CourseID,
			BundleID:       req.BundleID,
			Amount:         0,
			Currency:       req.Currency,
			Method:         method,
			Status:         payment.StatusCompleted,
			CouponCode:     req.CouponCode,
			DiscountAmount: quote.Discount,
			PaidAt:         &now,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := tx.CreatePayment(ctx, p); err != nil {
			return err
		}

		if req.CouponCode != nil && *req.CouponCode != "" {
			if _, err := tx.RedeemCouponIfAbsent(ctx, *req.CouponCode, userID, req.CourseID, quote.Discount); err != nil {
				return err
			}
		}

		courseIDs, err := s.targetCourses(ctx, tx, p)
		if err != nil {
			return err
		}
		for _, courseID := range courseIDs {
			created, err := tx.GrantCourse(ctx, userID, courseID)
			if err != nil {
				return err
			}
			if created {
				granted = append(granted, courseID)
			}
		}
		if len(granted) == 0 {
			return errors.ErrAlreadyEnrolled
		}

		result = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishCompleted(ctx, result, granted)
	return result, nil
}

// TransitionTo is the single entry point for every status change. It locks
// the payment row, consults the lifecycle rules, applies entitlement effects
// for settlement inside the same transaction, and publishes events only
// after commit.
func (s *Service) TransitionTo(ctx context.Context, paymentID, target string, ev Evidence) error {
	var (
		applied bool
		from    string
		p       *payment.Payment
		granted []int64
	)

	err := s.repo.InTransaction(ctx, func(tx EntitlementTx) error {
		applied = false
		granted = granted[:0]

		locked, err := tx.PaymentForUpdate(ctx, paymentID)
		if err != nil {
			return err
		}
		p = locked
		from = p.Status

		switch Decide(p.Status, target) {
		case Ignore:
			return nil
		case Reject:
			return errors.NewConflictError("payment status transition not allowed", errors.ErrCodeInvalidTransition).
				WithDetails(map[string]string{"from": p.Status, "to": target})
		}

		p.Status = target
		p.UpdatedAt = s.now()
		if ev.ExternalRef != "" {
			p.ExternalRef = &ev.ExternalRef
		}

		switch target {
		case payment.StatusCompleted:
			now := s.now()
			p.PaidAt = &now
			p.FailureReason = nil

			if p.CouponCode != nil && *p.CouponCode != "" {
				if _, err := tx.RedeemCouponIfAbsent(ctx, *p.CouponCode, p.UserID, p.CourseID, p.DiscountAmount); err != nil {
					return err
				}
			}
			courseIDs, err := s.targetCourses(ctx, tx, p)
			if err != nil {
				return err
			}
			for _, courseID := range courseIDs {
				created, err := tx.GrantCourse(ctx, p.UserID, courseID)
				if err != nil {
					return err
				}
				if created {
					granted = append(granted, courseID)
				}
			}

		case payment.StatusFailed:
			if ev.Note != "" {
				reason := ev.Note
				p.FailureReason = &reason
			}

		case payment.StatusRefunded:
			now := s.now()
			p.RefundedAt = &now
		}

		if err := tx.UpdatePayment(ctx, p); err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return err
	}

	if !applied {
		s.logger.Info("TransitionTo: ignored",
			"payment_id", paymentID,
			"target", target,
			"current", from,
			"source", ev.Source)
		return nil
	}

	s.logger.Info("TransitionTo: applied",
		"payment_id", paymentID,
		"from", from,
		"to", target,
		"source", ev.Source,
		"actor", ev.Actor)

	switch target {
	case payment.StatusCompleted:
		s.publishCompleted(ctx, p, granted)
	case payment.StatusFailed:
		reason := ""
		if p.FailureReason != nil {
			reason = *p.FailureReason
		}
		s.eventBus.Publish(ctx, events.PaymentFailed{
			PaymentID: p.ID,
			UserID:    p.UserID,
			Reason:    reason,
			FailedAt:  p.UpdatedAt,
		})
	case payment.StatusRefunded:
		s.eventBus.Publish(ctx, events.PaymentRefunded{
			PaymentID:  p.ID,
			UserID:     p.UserID,
			Amount:     p.Amount,
			RefundedAt: *p.RefundedAt,
		})
		s.reconcileRefund(ctx, p)
	}
	return nil
}

// reconcileRefund runs after the refund committed. Revocation is best effort
// here; the periodic reconciler catches anything this pass misses.
func (s *Service) reconcileRefund(ctx context.Context, p *payment.Payment) {
	courseIDs, err := s.coursesOf(ctx, p)
	if err != nil {
		s.logger.Error("reconcileRefund: could not resolve courses",
			"payment_id", p.ID, "error", err)
		return
	}
	if err := s.revoker.ReconcileRefund(ctx, p.UserID, courseIDs, p.ID); err != nil {
		s.logger.Error("reconcileRefund: revocation failed",
			"payment_id", p.ID, "error", err)
	}
}

func (s *Service) targetCourses(ctx context.Context, tx EntitlementTx, p *payment.Payment) ([]int64, error) {
	if p.CourseID != nil {
		return []int64{*p.CourseID}, nil
	}
	return tx.BundleCourseIDs(ctx, *p.BundleID)
}

func (s *Service) coursesOf(ctx context.Context, p *payment.Payment) ([]int64, error) {
	if p.CourseID != nil {
		return []int64{*p.CourseID}, nil
	}
	return s.catalog.BundleCourseIDs(ctx, *p.BundleID)
}

func (s *Service) publishCompleted(ctx context.Context, p *payment.Payment, granted []int64) {
	s.eventBus.Publish(ctx, events.PaymentCompleted{
		PaymentID: p.ID,
		UserID:    p.UserID,
		CourseID:  p.CourseID,
		BundleID:  p.BundleID,
		Amount:    p.Amount,
		Currency:  p.Currency,
		Method:    p.Method,
		PaidAt:    *p.PaidAt,
	})
	for _, courseID := range granted {
		s.eventBus.Publish(ctx, events.EnrollmentCreated{
			UserID:     p.UserID,
			CourseID:   courseID,
			PaymentID:  p.ID,
			EnrolledAt: *p.PaidAt,
		})
	}
}

// GetPayment returns a payment the user owns.
func (s *Service) GetPayment(ctx context.Context, userID int64, paymentID string) (*payment.Payment, error) {
	p, err := s.repo.Get(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.UserID != userID {
		return nil, errors.ErrPaymentNotFound
	}
	return p, nil
}

func (s *Service) ListForUser(ctx context.Context, userID int64) ([]payment.Payment, error) {
	return s.repo.ListForUser(ctx, userID)
}

// HandleGatewayEvent applies one webhook notification. The signature was
// already verified by the transport layer against the raw body.
func (s *Service) HandleGatewayEvent(ctx context.Context, ev *GatewayEvent) error {
	p, err := s.resolvePayment(ctx, ev)
	if err != nil {
		return err
	}

	evidence := Evidence{
		Source:      "gateway_webhook",
		ExternalRef: ev.ExternalRef,
	}

	switch ev.Type {
	case GatewayEventSucceeded:
		if ev.Amount != 0 && ev.Amount != p.Amount {
			evidence.Note = "gateway amount does not match charge"
			s.logger.Warn("HandleGatewayEvent: amount mismatch",
				"payment_id", p.ID,
				"expected", p.Amount,
				"reported", ev.Amount)
			return s.TransitionTo(ctx, p.ID, payment.StatusFailed, evidence)
		}
		return s.TransitionTo(ctx, p.ID, payment.StatusCompleted, evidence)
	case GatewayEventFailed:
		evidence.Note = ev.Reason
		return s.TransitionTo(ctx, p.ID, payment.StatusFailed, evidence)
	case GatewayEventRefunded:
		return s.TransitionTo(ctx, p.ID, payment.StatusRefunded, evidence)
	default:
		s.logger.Info("HandleGatewayEvent: unknown event type ignored", "type", ev.Type)
		return nil
	}
}

func (s *Service) resolvePayment(ctx context.Context, ev *GatewayEvent) (*payment.Payment, error) {
	if ev.PaymentID != "" {
		return s.repo.Get(ctx, ev.PaymentID)
	}
	return s.repo.GetByExternalRef(ctx, ev.ExternalRef)
}

// SubmitSlip runs the bank transfer flow: park the payment in verifying,
// call the verification service, then settle on the verdict. A verification
// service outage fails the payment so the user can resubmit.
func (s *Service) SubmitSlip(ctx context.Context, userID int64, paymentID, fileName string, file io.Reader) (*payment.Payment, error) {
	p, err := s.GetPayment(ctx, userID, paymentID)
	if err != nil {
		return nil, err
	}
	if p.Method != payment.MethodBankSlip {
		return nil, errors.NewValidationError("payment does not accept slips", errors.ErrCodeValidationFailed)
	}
	if p.Status != payment.StatusPending && p.Status != payment.StatusFailed {
		return nil, errors.NewConflictError("payment is not awaiting a slip", errors.ErrCodeInvalidTransition).
			WithDetails(map[string]string{"status": p.Status})
	}

	if err := s.TransitionTo(ctx, p.ID, payment.StatusVerifying, Evidence{Source: "slip_upload"}); err != nil {
		return nil, err
	}

	result, err := s.slips.Verify(ctx, fileName, file, p.Amount)
	if err != nil {
		s.logger.Error("SubmitSlip: verification service error", "error", err, "payment_id", p.ID)
		_ = s.TransitionTo(ctx, p.ID, payment.StatusFailed, Evidence{
			Source: "slip_verification",
			Note:   "slip verification service unavailable",
		})
		return nil, errors.NewExternalError("slip verification unavailable", errors.ErrCodeSlipServiceFailed, err)
	}

	evidence := Evidence{
		Source:      "slip_verification",
		ExternalRef: result.TransRef,
	}

	if !result.Success {
		evidence.Note = slipFailureReason(result)
		if err := s.TransitionTo(ctx, p.ID, payment.StatusFailed, evidence); err != nil {
			return nil, err
		}
		return s.repo.Get(ctx, p.ID)
	}

	if result.Amount != p.Amount {
		evidence.Note = "slip amount does not match charge"
		s.logger.Warn("SubmitSlip: amount mismatch",
			"payment_id", p.ID,
			"expected", p.Amount,
			"slip", result.Amount)
		if err := s.TransitionTo(ctx, p.ID, payment.StatusFailed, evidence); err != nil {
			return nil, err
		}
		return s.repo.Get(ctx, p.ID)
	}

	if err := s.TransitionTo(ctx, p.ID, payment.StatusCompleted, evidence); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, p.ID)
}

func slipFailureReason(result *slipverify.Result) string {
	switch result.Code {
	case slipverify.CodeDuplicate:
		return "slip already used for another payment"
	case slipverify.CodeUnreadable:
		return "slip image could not be read"
	case slipverify.CodeNotFound:
		return "transfer not found by the bank"
	default:
		if result.Message != "" {
			return result.Message
		}
		return "slip verification rejected"
	}
}

// AdminTransition lets support move a payment manually, through the same
// state machine as every automated path.
func (s *Service) AdminTransition(ctx context.Context, paymentID, target, reason, actor string) error {
	return s.TransitionTo(ctx, paymentID, target, Evidence{
		Source: "admin",
		Note:   reason,
		Actor:  actor,
	})
}

// FailStuckVerifying fails payments that have sat in verifying past the
// cutoff. Run from the maintenance worker.
func (s *Service) FailStuckVerifying(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	cutoff := s.now().Add(-olderThan)
	stuck, err := s.repo.ListStuckVerifying(ctx, cutoff, limit)
	if err != nil {
		return 0, err
	}
	failed := 0
	for _, p := range stuck {
		err := s.TransitionTo(ctx, p.ID, payment.StatusFailed, Evidence{
			Source: "reconciler",
			Note:   "verification timed out",
		})
		if err != nil {
			s.logger.Error("FailStuckVerifying: transition failed",
				"payment_id", p.ID, "error", err)
			continue
		}
		failed++
	}
	return failed, nil
}
