package postgres_test

import (
	"context"
	"sync"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	internal "github.com/frahmantamala/course-marketplace/internal"
	"github.com/frahmantamala/course-marketplace/internal/core/datamodel/coupon"
	couponpg "github.com/frahmantamala/course-marketplace/internal/coupon/postgres"
)

func TestCouponRepository(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Coupon Repository Suite")
}

// SQLite-compatible models: no now() defaults.
type SQLiteCoupon struct {
	ID           int64      `gorm:"primaryKey"`
	Code         string     `gorm:"column:code;not null;uniqueIndex"`
	Type         string     `gorm:"column:type;not null"`
	Value        float64    `gorm:"column:value;not null"`
	MaxDiscount  *float64   `gorm:"column:max_discount"`
	MinPurchase  float64    `gorm:"column:min_purchase;default:0"`
	CourseID     *int64     `gorm:"column:course_id"`
	StartsAt     *time.Time `gorm:"column:starts_at"`
	ExpiresAt    *time.Time `gorm:"column:expires_at"`
	UsageLimit   int        `gorm:"column:usage_limit;default:0"`
	PerUserLimit int        `gorm:"column:per_user_limit;default:0"`
	UsedCount    int        `gorm:"column:used_count;default:0"`
	IsActive     bool       `gorm:"column:is_active;default:true"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	UpdatedAt    time.Time  `gorm:"column:updated_at"`
}

func (SQLiteCoupon) TableName() string { return "coupons" }

type SQLiteCouponUsage struct {
	ID             int64     `gorm:"primaryKey"`
	CouponID       int64     `gorm:"column:coupon_id;not null;index"`
	UserID         int64     `gorm:"column:user_id;not null;index"`
	CourseID       *int64    `gorm:"column:course_id"`
	DiscountAmount float64   `gorm:"column:discount_amount;not null"`
	CreatedAt      time.Time `gorm:"column:created_at"`
}

func (SQLiteCouponUsage) TableName() string { return "coupon_usages" }

func ptrInt64(v int64) *int64 { return &v }

var _ = Describe("Coupon Repository", func() {
	var (
		db   *gorm.DB
		repo *couponpg.CouponRepository
		ctx  context.Context
	)

	BeforeEach(func() {
		var err error
		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		})
		Expect(err).NotTo(HaveOccurred())

		// one connection so every goroutine sees the same in-memory database
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		sqlDB.SetMaxOpenConns(1)

		err = db.AutoMigrate(&SQLiteCoupon{}, &SQLiteCouponUsage{})
		Expect(err).NotTo(HaveOccurred())

		repo = couponpg.NewRepository(db)
		ctx = context.Background()
	})

	seedCoupon := func(c *SQLiteCoupon) {
		Expect(db.Create(c).Error).NotTo(HaveOccurred())
	}

	Describe("GetByCode", func() {
		It("should return the coupon", func() {
			seedCoupon(&SQLiteCoupon{Code: "SAVE10", Type: coupon.TypePercentage, Value: 10, IsActive: true})

			c, err := repo.GetByCode(ctx, "SAVE10")
			Expect(err).NotTo(HaveOccurred())
			Expect(c.Code).To(Equal("SAVE10"))
			Expect(c.Value).To(Equal(10.0))
		})

		It("should return not found for an unknown code", func() {
			_, err := repo.GetByCode(ctx, "NOPE")
			Expect(err).To(Equal(internal.ErrCouponNotFound))
		})
	})

	Describe("RedeemIfAbsent", func() {
		BeforeEach(func() {
			seedCoupon(&SQLiteCoupon{Code: "ONCE", Type: coupon.TypeFixed, Value: 100, IsActive: true, UsageLimit: 2})
		})

		It("should record the redemption and bump the counter", func() {
			created, err := repo.RedeemIfAbsent(ctx, "ONCE", 42, ptrInt64(101), 100)
			Expect(err).NotTo(HaveOccurred())
			Expect(created).To(BeTrue())

			c, err := repo.GetByCode(ctx, "ONCE")
			Expect(err).NotTo(HaveOccurred())
			Expect(c.UsedCount).To(Equal(1))

			var usages []coupon.Usage
			Expect(db.Find(&usages).Error).NotTo(HaveOccurred())
			Expect(usages).To(HaveLen(1))
			Expect(usages[0].UserID).To(Equal(int64(42)))
			Expect(usages[0].DiscountAmount).To(Equal(100.0))
		})

		It("should be idempotent for the same user and course", func() {
			for i := 0; i < 5; i++ {
				_, err := repo.RedeemIfAbsent(ctx, "ONCE", 42, ptrInt64(101), 100)
				Expect(err).NotTo(HaveOccurred())
			}

			c, err := repo.GetByCode(ctx, "ONCE")
			Expect(err).NotTo(HaveOccurred())
			Expect(c.UsedCount).To(Equal(1))

			var count int64
			Expect(db.Model(&coupon.Usage{}).Count(&count).Error).NotTo(HaveOccurred())
			Expect(count).To(Equal(int64(1)))
		})

		It("should treat a nil course as its own redemption scope", func() {
			created, err := repo.RedeemIfAbsent(ctx, "ONCE", 42, nil, 100)
			Expect(err).NotTo(HaveOccurred())
			Expect(created).To(BeTrue())

			created, err = repo.RedeemIfAbsent(ctx, "ONCE", 42, nil, 100)
			Expect(err).NotTo(HaveOccurred())
			Expect(created).To(BeFalse())
		})

		It("should stop at the usage limit", func() {
			created, err := repo.RedeemIfAbsent(ctx, "ONCE", 1, ptrInt64(101), 100)
			Expect(err).NotTo(HaveOccurred())
			Expect(created).To(BeTrue())

			created, err = repo.RedeemIfAbsent(ctx, "ONCE", 2, ptrInt64(101), 100)
			Expect(err).NotTo(HaveOccurred())
			Expect(created).To(BeTrue())

			_, err = repo.RedeemIfAbsent(ctx, "ONCE", 3, ptrInt64(101), 100)
			Expect(err).To(HaveOccurred())
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodeCouponLimitReached))

			c, err := repo.GetByCode(ctx, "ONCE")
			Expect(err).NotTo(HaveOccurred())
			Expect(c.UsedCount).To(Equal(2))
		})

		It("should stop at the per-user limit even across different courses", func() {
			seedCoupon(&SQLiteCoupon{Code: "SINGLE", Type: coupon.TypeFixed, Value: 100, IsActive: true, PerUserLimit: 1})

			created, err := repo.RedeemIfAbsent(ctx, "SINGLE", 42, ptrInt64(101), 100)
			Expect(err).NotTo(HaveOccurred())
			Expect(created).To(BeTrue())

			_, err = repo.RedeemIfAbsent(ctx, "SINGLE", 42, ptrInt64(102), 100)
			Expect(err).To(HaveOccurred())
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodeCouponUserLimit))

			c, err := repo.GetByCode(ctx, "SINGLE")
			Expect(err).NotTo(HaveOccurred())
			Expect(c.UsedCount).To(Equal(1))

			count, err := repo.CountUserUsage(ctx, c.ID, 42)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(int64(1)))

			created, err = repo.RedeemIfAbsent(ctx, "SINGLE", 7, ptrInt64(102), 100)
			Expect(err).NotTo(HaveOccurred())
			Expect(created).To(BeTrue())
		})

		It("should not overshoot the usage limit under concurrent redemptions", func() {
			const attempts = 5

			var wg sync.WaitGroup
			createds := make([]bool, attempts)
			errs := make([]error, attempts)
			for i := 0; i < attempts; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					createds[i], errs[i] = repo.RedeemIfAbsent(ctx, "ONCE", int64(i+1), ptrInt64(101), 100)
				}(i)
			}
			wg.Wait()

			var succeeded, limited int
			for i := 0; i < attempts; i++ {
				if errs[i] == nil {
					Expect(createds[i]).To(BeTrue())
					succeeded++
					continue
				}
				appErr, ok := internal.IsAppError(errs[i])
				Expect(ok).To(BeTrue())
				Expect(appErr.Code).To(Equal(internal.ErrCodeCouponLimitReached))
				limited++
			}
			Expect(succeeded).To(Equal(2))
			Expect(limited).To(Equal(attempts - 2))

			c, err := repo.GetByCode(ctx, "ONCE")
			Expect(err).NotTo(HaveOccurred())
			Expect(c.UsedCount).To(Equal(2))

			var count int64
			Expect(db.Model(&coupon.Usage{}).Count(&count).Error).NotTo(HaveOccurred())
			Expect(count).To(Equal(int64(2)))
		})

		It("should return not found for an unknown code", func() {
			_, err := repo.RedeemIfAbsent(ctx, "NOPE", 42, nil, 100)
			Expect(err).To(Equal(internal.ErrCouponNotFound))
		})
	})

	Describe("CountUserUsage", func() {
		It("should count redemptions per user", func() {
			seedCoupon(&SQLiteCoupon{Code: "MULTI", Type: coupon.TypeFixed, Value: 50, IsActive: true})

			c, err := repo.GetByCode(ctx, "MULTI")
			Expect(err).NotTo(HaveOccurred())

			_, err = repo.RedeemIfAbsent(ctx, "MULTI", 42, ptrInt64(101), 50)
			Expect(err).NotTo(HaveOccurred())
			_, err = repo.RedeemIfAbsent(ctx, "MULTI", 42, ptrInt64(102), 50)
			Expect(err).NotTo(HaveOccurred())

			count, err := repo.CountUserUsage(ctx, c.ID, 42)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(int64(2)))

			count, err = repo.CountUserUsage(ctx, c.ID, 99)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(BeZero())
		})
	})
})
