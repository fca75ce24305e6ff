package certificate

import (
	"time"
)

// Certificate is proof of course completion. Name and title are snapshots
// taken at issuance so later profile or catalog edits do not rewrite history.
type Certificate struct {
	ID            int64      `gorm:"primaryKey"`
	Code          string     `gorm:"column:code;not null;uniqueIndex"`
	UserID        int64      `gorm:"column:user_id;not null;uniqueIndex:idx_certificates_user_course"`
	CourseID      int64      `gorm:"column:course_id;not null;uniqueIndex:idx_certificates_user_course"`
	RecipientName string     `gorm:"column:recipient_name;not null"`
	CourseTitle   string     `gorm:"column:course_title;not null"`
	CompletedAt   time.Time  `gorm:"column:completed_at;not null"`
	IssuedAt      time.Time  `gorm:"column:issued_at;default:now()"`
	RevokedAt     *time.Time `gorm:"column:revoked_at"`
	RevokeReason  *string    `gorm:"column:revoke_reason"`
}

func (Certificate) TableName() string {
	return "certificates"
}

func (c *Certificate) IsRevoked() bool {
	return c.RevokedAt != nil
}

// CompletionGap is a completed enrollment with no certificate on record,
// surfaced by the sweep query.
type CompletionGap struct {
	UserID      int64
	CourseID    int64
	CompletedAt time.Time
}
