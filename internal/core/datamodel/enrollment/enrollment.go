package enrollment

import (
	"time"
)

// Enrollment grants one user access to one course. The unique index on
// (user_id, course_id) is the idempotency guard for fulfillment: concurrent
// grants converge on a single row.
type Enrollment struct {
	ID              int64      `gorm:"primaryKey"`
	UserID          int64      `gorm:"column:user_id;not null;uniqueIndex:idx_enrollments_user_course"`
	CourseID        int64      `gorm:"column:course_id;not null;uniqueIndex:idx_enrollments_user_course"`
	ProgressPercent float64    `gorm:"column:progress_percent;default:0"`
	CompletedAt     *time.Time `gorm:"column:completed_at"`
	EnrolledAt      time.Time  `gorm:"column:enrolled_at;default:now()"`
	UpdatedAt       time.Time  `gorm:"column:updated_at;default:now()"`
}

func (Enrollment) TableName() string {
	return "enrollments"
}
