package coupon

import (
	"time"
)

const (
	TypePercentage = "percentage"
	TypeFixed      = "fixed"
)

// Coupon is a discount definition. UsageLimit and PerUserLimit of zero mean
// unlimited. UsedCount is only ever mutated through the conditional increment
// in the repository, never read-modify-write.
type Coupon struct {
	ID           int64      `gorm:"primaryKey"`
	Code         string     `gorm:"column:code;not null;uniqueIndex"`
	Type         string     `gorm:"column:type;not null"`
	Value        float64    `gorm:"column:value;not null"`
	MaxDiscount  *float64   `gorm:"column:max_discount"`
	MinPurchase  float64    `gorm:"column:min_purchase;default:0"`
	CourseID     *int64     `gorm:"column:course_id;index"`
	StartsAt     *time.Time `gorm:"column:starts_at"`
	ExpiresAt    *time.Time `gorm:"column:expires_at"`
	UsageLimit   int        `gorm:"column:usage_limit;default:0"`
	PerUserLimit int        `gorm:"column:per_user_limit;default:0"`
	UsedCount    int        `gorm:"column:used_count;default:0"`
	IsActive     bool       `gorm:"column:is_active;default:true"`
	CreatedAt    time.Time  `gorm:"column:created_at;default:now()"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;default:now()"`
}

func (Coupon) TableName() string {
	return "coupons"
}

// Usage is one accounting record of a coupon applied by a user. CourseID is
// nil when the coupon applied bundle-wide.
type Usage struct {
	ID             int64     `gorm:"primaryKey"`
	CouponID       int64     `gorm:"column:coupon_id;not null;index"`
	UserID         int64     `gorm:"column:user_id;not null;index"`
	CourseID       *int64    `gorm:"column:course_id"`
	DiscountAmount float64   `gorm:"column:discount_amount;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;default:now()"`
}

func (Usage) TableName() string {
	return "coupon_usages"
}
