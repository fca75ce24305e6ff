package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	internal "github.com/frahmantamala/course-marketplace/internal"
	"github.com/frahmantamala/course-marketplace/internal/core/datamodel/enrollment"
	"github.com/frahmantamala/course-marketplace/internal/core/datamodel/payment"
)

type EnrollmentRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

func (r *EnrollmentRepository) GetForUser(ctx context.Context, userID, courseID int64) (*enrollment.Enrollment, error) {
	var e enrollment.Enrollment
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		First(&e).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrEnrollmentNotFound
		}
		return nil, err
	}
	return &e, nil
}

func (r *EnrollmentRepository) ListForUser(ctx context.Context, userID int64) ([]enrollment.Enrollment, error) {
	var list []enrollment.Enrollment
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("enrolled_at DESC").
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (r *EnrollmentRepository) UpdateProgress(ctx context.Context, userID, courseID int64, percent float64, completedAt *time.Time) error {
	updates := map[string]interface{}{
		"progress_percent": percent,
		"updated_at":       time.Now(),
	}
	if completedAt != nil {
		updates["completed_at"] = *completedAt
	}
	return r.db.WithContext(ctx).
		Model(&enrollment.Enrollment{}).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Updates(updates).Error
}

// HasOtherCompletedDirect reports whether a completed payment other than the
// excluded one bought the course directly.
func (r *EnrollmentRepository) HasOtherCompletedDirect(ctx context.Context, userID, courseID int64, excludePaymentID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&payment.Payment{}).
		Where("user_id = ? AND course_id = ? AND status = ? AND id <> ?",
			userID, courseID, payment.StatusCompleted, excludePaymentID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// HasOtherCompletedBundleCovering reports whether a completed bundle payment
// other than the excluded one includes the course.
func (r *EnrollmentRepository) HasOtherCompletedBundleCovering(ctx context.Context, userID, courseID int64, excludePaymentID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&payment.Payment{}).
		Joins("JOIN bundle_courses ON bundle_courses.bundle_id = payments.bundle_id").
		Where("payments.user_id = ? AND bundle_courses.course_id = ? AND payments.status = ? AND payments.id <> ?",
			userID, courseID, payment.StatusCompleted, excludePaymentID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *EnrollmentRepository) DeleteEnrollment(ctx context.Context, userID, courseID int64) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Delete(&enrollment.Enrollment{}).Error
}
