package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	internal "github.com/frahmantamala/course-marketplace/internal"
	couponpg "github.com/frahmantamala/course-marketplace/internal/coupon/postgres"
	"github.com/frahmantamala/course-marketplace/internal/core/datamodel/catalog"
	"github.com/frahmantamala/course-marketplace/internal/core/datamodel/payment"
	"github.com/frahmantamala/course-marketplace/internal/enrollment"
	paymentsvc "github.com/frahmantamala/course-marketplace/internal/payment"
)

type PaymentRepository struct {
	db        *gorm.DB
	fulfiller *enrollment.Fulfiller
	coupons   *couponpg.CouponRepository
}

func NewRepository(db *gorm.DB, fulfiller *enrollment.Fulfiller, coupons *couponpg.CouponRepository) *PaymentRepository {
	return &PaymentRepository{
		db:        db,
		fulfiller: fulfiller,
		coupons:   coupons,
	}
}

func (r *PaymentRepository) Get(ctx context.Context, id string) (*payment.Payment, error) {
	var p payment.Payment
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrPaymentNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) GetByExternalRef(ctx context.Context, ref string) (*payment.Payment, error) {
	var p payment.Payment
	if err := r.db.WithContext(ctx).Where("external_ref = ?", ref).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrPaymentNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) FindReusablePending(ctx context.Context, userID int64, courseID, bundleID *int64, method string) (*payment.Payment, error) {
	query := r.db.WithContext(ctx).
		Where("user_id = ? AND method = ? AND status = ?", userID, method, payment.StatusPending)
	if courseID != nil {
		query = query.Where("course_id = ?", *courseID)
	} else {
		query = query.Where("bundle_id = ?", *bundleID)
	}

	var p payment.Payment
	if err := query.First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) ListForUser(ctx context.Context, userID int64) ([]payment.Payment, error) {
	var list []payment.Payment
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (r *PaymentRepository) ListStuckVerifying(ctx context.Context, olderThan time.Time, limit int) ([]payment.Payment, error) {
	var list []payment.Payment
	err := r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", payment.StatusVerifying, olderThan).
		Order("updated_at").
		Limit(limit).
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (r *PaymentRepository) SetExternalRef(ctx context.Context, id, ref string) error {
	return r.db.WithContext(ctx).
		Model(&payment.Payment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"external_ref": ref,
			"updated_at":   time.Now(),
		}).Error
}

// InTransaction runs fn inside one database transaction. The EntitlementTx
// passed to fn shares that transaction, so a payment update, its enrollment
// grants and the coupon redemption commit or roll back together.
func (r *PaymentRepository) InTransaction(ctx context.Context, fn func(tx paymentsvc.EntitlementTx) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&entitlementTx{
			tx:        tx,
			fulfiller: r.fulfiller,
			coupons:   r.coupons.WithTx(tx),
		})
	})
}

type entitlementTx struct {
	tx        *gorm.DB
	fulfiller *enrollment.Fulfiller
	coupons   *couponpg.CouponRepository
}

// PaymentForUpdate loads the payment under a row lock so concurrent status
// changes for the same payment serialize behind each other.
func (t *entitlementTx) PaymentForUpdate(ctx context.Context, id string) (*payment.Payment, error) {
	var p payment.Payment
	err := t.tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrPaymentNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (t *entitlementTx) CreatePayment(ctx context.Context, p *payment.Payment) error {
	return t.tx.WithContext(ctx).Create(p).Error
}

func (t *entitlementTx) UpdatePayment(ctx context.Context, p *payment.Payment) error {
	return t.tx.WithContext(ctx).Save(p).Error
}

func (t *entitlementTx) GrantCourse(ctx context.Context, userID, courseID int64) (bool, error) {
	return t.fulfiller.Grant(ctx, t.tx, userID, courseID)
}

func (t *entitlementTx) BundleCourseIDs(ctx context.Context, bundleID int64) ([]int64, error) {
	var ids []int64
	err := t.tx.WithContext(ctx).
		Model(&catalog.BundleCourse{}).
		Where("bundle_id = ?", bundleID).
		Order("course_id").
		Pluck("course_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (t *entitlementTx) RedeemCouponIfAbsent(ctx context.Context, code string, userID int64, courseID *int64, discount float64) (bool, error) {
	return t.coupons.RedeemIfAbsent(ctx, code, userID, courseID, discount)
}
