package coupon

import (
	"context"
	"log/slog"
	"math"
	"time"

	errors "github.com/frahmantamala/course-marketplace/internal"
	"github.com/frahmantamala/course-marketplace/internal/core/datamodel/coupon"
)

type RepositoryAPI interface {
	GetByCode(ctx context.Context, code string) (*coupon.Coupon, error)
	CountUserUsage(ctx context.Context, couponID, userID int64) (int64, error)
}

type Service struct {
	repo   RepositoryAPI
	logger *slog.Logger
	now    func() time.Time
}

func NewService(repo RepositoryAPI, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

// Validate checks every eligibility rule for applying a coupon to a purchase
// and returns the coupon with its computed discount. The checks run in a
// fixed order so clients get stable error codes: active, time window, course
// scope, global usage limit, per-user limit, minimum purchase.
func (s *Service) Validate(ctx context.Context, code string, userID int64, courseID *int64, price float64) (*coupon.Coupon, float64, error) {
	c, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return nil, 0, err
	}

	now := s.now()

	if !c.IsActive {
		return nil, 0, errors.NewEligibilityError("coupon is not active", errors.ErrCodeCouponInactive)
	}
	if c.StartsAt != nil && now.Before(*c.StartsAt) {
		return nil, 0, errors.NewEligibilityError("coupon is not yet valid", errors.ErrCodeCouponNotStarted)
	}
	if c.ExpiresAt != nil && now.After(*c.ExpiresAt) {
		return nil, 0, errors.NewEligibilityError("coupon has expired", errors.ErrCodeCouponExpired)
	}
	if c.CourseID != nil {
		if courseID == nil || *courseID != *c.CourseID {
			return nil, 0, errors.NewEligibilityError("coupon does not apply to this course", errors.ErrCodeCouponWrongCourse)
		}
	}
	if c.UsageLimit > 0 && c.UsedCount >= c.UsageLimit {
		return nil, 0, errors.NewEligibilityError("coupon usage limit reached", errors.ErrCodeCouponLimitReached)
	}
	if c.PerUserLimit > 0 {
		used, err := s.repo.CountUserUsage(ctx, c.ID, userID)
		if err != nil {
			return nil, 0, err
		}
		if used >= int64(c.PerUserLimit) {
			return nil, 0, errors.NewEligibilityError("coupon already used by this account", errors.ErrCodeCouponUserLimit)
		}
	}
	if price < c.MinPurchase {
		return nil, 0, errors.NewEligibilityError("purchase amount below coupon minimum", errors.ErrCodeCouponMinPurchase)
	}

	discount := CalculateDiscount(c, price)
	s.logger.Debug("coupon validated",
		"code", c.Code,
		"user_id", userID,
		"price", price,
		"discount", discount)
	return c, discount, nil
}

// CalculateDiscount computes the discount a coupon yields on a price.
// Percentage coupons are capped by MaxDiscount when set. The result is
// clamped to [0, price] and rounded half-up at the cent.
func CalculateDiscount(c *coupon.Coupon, price float64) float64 {
	var discount float64
	switch c.Type {
	case coupon.TypePercentage:
		discount = price * c.Value / 100
		if c.MaxDiscount != nil && discount > *c.MaxDiscount {
			discount = *c.MaxDiscount
		}
	case coupon.TypeFixed:
		discount = c.Value
	}
	if discount < 0 {
		discount = 0
	}
	if discount > price {
		discount = price
	}
	return roundMoney(discount)
}

func roundMoney(v float64) float64 {
	return math.Floor(v*100+0.5) / 100
}
