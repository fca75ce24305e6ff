package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"

	internal "github.com/frahmantamala/course-marketplace/internal"
	"github.com/frahmantamala/course-marketplace/internal/core/datamodel/coupon"
)

type CouponRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *CouponRepository {
	return &CouponRepository{db: db}
}

// WithTx returns a repository bound to an open transaction so redemption can
// participate in the caller's unit of work.
func (r *CouponRepository) WithTx(tx *gorm.DB) *CouponRepository {
	return &CouponRepository{db: tx}
}

func (r *CouponRepository) GetByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	var c coupon.Coupon
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrCouponNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *CouponRepository) CountUserUsage(ctx context.Context, couponID, userID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&coupon.Usage{}).
		Where("coupon_id = ? AND user_id = ?", couponID, userID).
		Count(&count).Error
	return count, err
}

// RedeemIfAbsent records one redemption of the coupon by the user for the
// given course, unless an identical usage row already exists. The counter
// increment is conditional on both the global usage limit and the per-user
// limit so concurrent redemptions cannot overshoot either; validation at
// checkout time is only advisory because two pending payments can settle
// long after they were quoted. Returns false when the redemption was
// already recorded.
func (r *CouponRepository) RedeemIfAbsent(ctx context.Context, code string, userID int64, courseID *int64, discount float64) (bool, error) {
	var c coupon.Coupon
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, internal.ErrCouponNotFound
		}
		return false, err
	}

	query := r.db.WithContext(ctx).
		Model(&coupon.Usage{}).
		Where("coupon_id = ? AND user_id = ?", c.ID, userID)
	if courseID != nil {
		query = query.Where("course_id = ?", *courseID)
	} else {
		query = query.Where("course_id IS NULL")
	}
	var existing int64
	if err := query.Count(&existing).Error; err != nil {
		return false, err
	}
	if existing > 0 {
		return false, nil
	}

	res := r.db.WithContext(ctx).
		Model(&coupon.Coupon{}).
		Where("id = ? AND (usage_limit = 0 OR used_count < usage_limit)", c.ID).
		Where("per_user_limit = 0 OR (SELECT COUNT(*) FROM coupon_usages WHERE coupon_id = ? AND user_id = ?) < per_user_limit", c.ID, userID).
		UpdateColumn("used_count", gorm.Expr("used_count + 1"))
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		if c.PerUserLimit > 0 {
			used, err := r.CountUserUsage(ctx, c.ID, userID)
			if err != nil {
				return false, err
			}
			if used >= int64(c.PerUserLimit) {
				return false, internal.NewEligibilityError("coupon already used by this account", internal.ErrCodeCouponUserLimit)
			}
		}
		return false, internal.NewEligibilityError("coupon usage limit reached", internal.ErrCodeCouponLimitReached)
	}

	usage := coupon.Usage{
		CouponID:       c.ID,
		UserID:         userID,
		CourseID:       courseID,
		DiscountAmount: discount,
	}
	if err := r.db.WithContext(ctx).Create(&usage).Error; err != nil {
		return false, err
	}
	return true, nil
}
