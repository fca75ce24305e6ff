package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	internal "github.com/frahmantamala/course-marketplace/internal"
	"github.com/frahmantamala/course-marketplace/internal/core/datamodel/certificate"
)

type CertificateRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *CertificateRepository {
	return &CertificateRepository{db: db}
}

func (r *CertificateRepository) Create(ctx context.Context, cert *certificate.Certificate) error {
	return r.db.WithContext(ctx).Create(cert).Error
}

func (r *CertificateRepository) GetByCode(ctx context.Context, code string) (*certificate.Certificate, error) {
	var cert certificate.Certificate
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&cert).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.NewNotFoundError("certificate not found", internal.ErrCodeCertificateNotFound)
		}
		return nil, err
	}
	return &cert, nil
}

func (r *CertificateRepository) GetForCourse(ctx context.Context, userID, courseID int64) (*certificate.Certificate, error) {
	var cert certificate.Certificate
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		First(&cert).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.NewNotFoundError("certificate not found", internal.ErrCodeCertificateNotFound)
		}
		return nil, err
	}
	return &cert, nil
}

func (r *CertificateRepository) ListForUser(ctx context.Context, userID int64) ([]certificate.Certificate, error) {
	var list []certificate.Certificate
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("issued_at DESC").
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (r *CertificateRepository) Revoke(ctx context.Context, id int64, reason string, revokedAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&certificate.Certificate{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"revoked_at":    revokedAt,
			"revoke_reason": reason,
		}).Error
}

// CompletedWithoutCertificate finds completed enrollments with no matching
// certificate row. Limit bounds each sweep run.
func (r *CertificateRepository) CompletedWithoutCertificate(ctx context.Context, limit int) ([]certificate.CompletionGap, error) {
	var gaps []certificate.CompletionGap
	err := r.db.WithContext(ctx).
		Table("enrollments").
		Select("enrollments.user_id, enrollments.course_id, enrollments.completed_at").
		Joins("LEFT JOIN certificates ON certificates.user_id = enrollments.user_id AND certificates.course_id = enrollments.course_id").
		Where("enrollments.completed_at IS NOT NULL AND certificates.id IS NULL").
		Limit(limit).
		Scan(&gaps).Error
	if err != nil {
		return nil, err
	}
	return gaps, nil
}
