package enrollment

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/frahmantamala/course-marketplace/internal/core/common/database"
	"github.com/frahmantamala/course-marketplace/internal/core/datamodel/enrollment"
)

// Fulfiller grants course access. Grant methods take the caller's *gorm.DB so
// fulfillment lands in the same transaction as the payment status change.
type Fulfiller struct{}

func NewFulfiller() *Fulfiller {
	return &Fulfiller{}
}

// Grant creates an enrollment for the user on the course. The unique index on
// (user_id, course_id) makes this idempotent: if the row already exists the
// grant reports created=false and no error. Running it twice never produces
// two enrollments.
func (f *Fulfiller) Grant(ctx context.Context, db *gorm.DB, userID, courseID int64) (bool, error) {
	e := enrollment.Enrollment{
		UserID:     userID,
		CourseID:   courseID,
		EnrolledAt: time.Now(),
	}
	if err := db.WithContext(ctx).Create(&e).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// GrantAll grants every course in the list and returns the IDs that were
// newly created. Courses the user already holds are skipped silently.
func (f *Fulfiller) GrantAll(ctx context.Context, db *gorm.DB, userID int64, courseIDs []int64) ([]int64, error) {
	var created []int64
	for _, courseID := range courseIDs {
		ok, err := f.Grant(ctx, db, userID, courseID)
		if err != nil {
			return created, err
		}
		if ok {
			created = append(created, courseID)
		}
	}
	return created, nil
}
