package catalog

import (
	"context"
	"math"
	"time"

	"github.com/frahmantamala/course-marketplace/internal"
	"github.com/frahmantamala/course-marketplace/internal/core/datamodel/catalog"
)

// RoundMoney rounds half-up at the cent boundary. All prices and discounts
// pass through here before they are persisted or compared.
func RoundMoney(v float64) float64 {
	return math.Floor(v*100+0.5) / 100
}

type RepositoryAPI interface {
	GetCourse(ctx context.Context, id int64) (*catalog.Course, error)
	GetBundle(ctx context.Context, id int64) (*catalog.Bundle, error)
	BundleCourseIDs(ctx context.Context, bundleID int64) ([]int64, error)
	ListCourses(ctx context.Context) ([]catalog.Course, error)
}

type Service struct {
	repo RepositoryAPI
	now  func() time.Time
}

func NewService(repo RepositoryAPI) *Service {
	return &Service{repo: repo, now: time.Now}
}

// PriceForCourse resolves the effective price of a published course at the
// current time, honoring the promo window.
func (s *Service) PriceForCourse(ctx context.Context, courseID int64) (float64, error) {
	course, err := s.repo.GetCourse(ctx, courseID)
	if err != nil {
		return 0, err
	}
	if !course.IsPublished {
		return 0, internal.ErrCourseNotFound
	}
	return RoundMoney(course.EffectivePrice(s.now())), nil
}

func (s *Service) PriceForBundle(ctx context.Context, bundleID int64) (float64, error) {
	bundle, err := s.repo.GetBundle(ctx, bundleID)
	if err != nil {
		return 0, err
	}
	if !bundle.IsPublished {
		return 0, internal.ErrBundleNotFound
	}
	return RoundMoney(bundle.EffectivePrice(s.now())), nil
}

// PriceForTarget dispatches on which of courseID or bundleID is set. Callers
// validate the exactly-one-of rule before reaching here.
func (s *Service) PriceForTarget(ctx context.Context, courseID, bundleID *int64) (float64, error) {
	if courseID != nil {
		return s.PriceForCourse(ctx, *courseID)
	}
	if bundleID != nil {
		return s.PriceForBundle(ctx, *bundleID)
	}
	return 0, internal.NewValidationError("either course_id or bundle_id is required", internal.ErrCodeInvalidTarget)
}

func (s *Service) CourseTitle(ctx context.Context, courseID int64) (string, error) {
	course, err := s.repo.GetCourse(ctx, courseID)
	if err != nil {
		return "", err
	}
	return course.Title, nil
}

func (s *Service) BundleCourseIDs(ctx context.Context, bundleID int64) ([]int64, error) {
	return s.repo.BundleCourseIDs(ctx, bundleID)
}

func (s *Service) ListCourses(ctx context.Context) ([]catalog.Course, error) {
	return s.repo.ListCourses(ctx)
}
