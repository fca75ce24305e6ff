package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/frahmantamala/course-marketplace/internal"
	"github.com/frahmantamala/course-marketplace/internal/core/datamodel/catalog"
)

type CatalogRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

func (r *CatalogRepository) GetCourse(ctx context.Context, id int64) (*catalog.Course, error) {
	var course catalog.Course
	if err := r.db.WithContext(ctx).First(&course, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrCourseNotFound
		}
		return nil, err
	}
	return &course, nil
}

func (r *CatalogRepository) GetBundle(ctx context.Context, id int64) (*catalog.Bundle, error) {
	var bundle catalog.Bundle
	if err := r.db.WithContext(ctx).First(&bundle, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrBundleNotFound
		}
		return nil, err
	}
	return &bundle, nil
}

func (r *CatalogRepository) BundleCourseIDs(ctx context.Context, bundleID int64) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).
		Model(&catalog.BundleCourse{}).
		Where("bundle_id = ?", bundleID).
		Order("course_id").
		Pluck("course_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *CatalogRepository) ListCourses(ctx context.Context) ([]catalog.Course, error) {
	var courses []catalog.Course
	err := r.db.WithContext(ctx).
		Where("is_published = ?", true).
		Order("id").
		Find(&courses).Error
	if err != nil {
		return nil, err
	}
	return courses, nil
}
