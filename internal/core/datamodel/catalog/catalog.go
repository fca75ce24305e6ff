package catalog

import (
	"time"
)

type Course struct {
	ID            int64      `gorm:"primaryKey"`
	Title         string     `gorm:"column:title;not null"`
	Price         float64    `gorm:"column:price;not null"`
	PromoPrice    *float64   `gorm:"column:promo_price"`
	PromoStartsAt *time.Time `gorm:"column:promo_starts_at"`
	PromoEndsAt   *time.Time `gorm:"column:promo_ends_at"`
	IsPublished   bool       `gorm:"column:is_published;default:false"`
	CreatedAt     time.Time  `gorm:"column:created_at;default:now()"`
	UpdatedAt     time.Time  `gorm:"column:updated_at;default:now()"`
}

func (Course) TableName() string {
	return "courses"
}

// EffectivePrice returns the promo price when the promo window covers now.
func (c *Course) EffectivePrice(now time.Time) float64 {
	return effectivePrice(c.Price, c.PromoPrice, c.PromoStartsAt, c.PromoEndsAt, now)
}

type Bundle struct {
	ID            int64      `gorm:"primaryKey"`
	Title         string     `gorm:"column:title;not null"`
	Price         float64    `gorm:"column:price;not null"`
	PromoPrice    *float64   `gorm:"column:promo_price"`
	PromoStartsAt *time.Time `gorm:"column:promo_starts_at"`
	PromoEndsAt   *time.Time `gorm:"column:promo_ends_at"`
	IsPublished   bool       `gorm:"column:is_published;default:false"`
	CreatedAt     time.Time  `gorm:"column:created_at;default:now()"`
	UpdatedAt     time.Time  `gorm:"column:updated_at;default:now()"`
}

func (Bundle) TableName() string {
	return "bundles"
}

func (b *Bundle) EffectivePrice(now time.Time) float64 {
	return effectivePrice(b.Price, b.PromoPrice, b.PromoStartsAt, b.PromoEndsAt, now)
}

type BundleCourse struct {
	ID       int64 `gorm:"primaryKey"`
	BundleID int64 `gorm:"column:bundle_id;not null;uniqueIndex:idx_bundle_courses_pair"`
	CourseID int64 `gorm:"column:course_id;not null;uniqueIndex:idx_bundle_courses_pair"`
}

func (BundleCourse) TableName() string {
	return "bundle_courses"
}

func effectivePrice(price float64, promo *float64, startsAt, endsAt *time.Time, now time.Time) float64 {
	if promo == nil {
		return price
	}
	if startsAt != nil && now.Before(*startsAt) {
		return price
	}
	if endsAt != nil && now.After(*endsAt) {
		return price
	}
	return *promo
}
