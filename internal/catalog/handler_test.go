package catalog_test

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/frahmantamala/course-marketplace/internal/catalog"
	catalogpg "github.com/frahmantamala/course-marketplace/internal/catalog/postgres"
)

// SQLite-compatible model: no now() defaults.
type CourseSQLite struct {
	ID            int64      `gorm:"primaryKey"`
	Title         string     `gorm:"column:title;not null"`
	Price         float64    `gorm:"column:price;not null"`
	PromoPrice    *float64   `gorm:"column:promo_price"`
	PromoStartsAt *time.Time `gorm:"column:promo_starts_at"`
	PromoEndsAt   *time.Time `gorm:"column:promo_ends_at"`
	IsPublished   bool       `gorm:"column:is_published;default:false"`
	CreatedAt     time.Time  `gorm:"column:created_at"`
	UpdatedAt     time.Time  `gorm:"column:updated_at"`
}

func (CourseSQLite) TableName() string { return "courses" }

var _ = Describe("Catalog Handler Integration", func() {
	var handler *catalog.Handler

	BeforeEach(func() {
		db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		})
		Expect(err).NotTo(HaveOccurred())

		Expect(db.AutoMigrate(&CourseSQLite{})).To(Succeed())

		courses := []*CourseSQLite{
			{Title: "Go Fundamentals", Price: 1490, IsPublished: true},
			{
				Title: "Distributed Systems", Price: 2990, IsPublished: true,
				PromoPrice:  ptrFloat(1990),
				PromoEndsAt: ptrTime(time.Now().Add(24 * time.Hour)),
			},
			{Title: "Unreleased Draft", Price: 990, IsPublished: false},
		}
		for _, c := range courses {
			Expect(db.Create(c).Error).NotTo(HaveOccurred())
		}

		slogger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		service := catalog.NewService(catalogpg.NewRepository(db))
		handler = catalog.NewHandler(service, slogger)
	})

	It("should list only published courses", func() {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/courses", nil)
		w := httptest.NewRecorder()

		handler.ListCourses(w, req)

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Header().Get("Content-Type")).To(ContainSubstring("application/json"))

		var response struct {
			Courses []catalog.CourseResponse `json:"courses"`
		}
		Expect(json.NewDecoder(w.Body).Decode(&response)).To(Succeed())

		titles := make([]string, len(response.Courses))
		for i, c := range response.Courses {
			titles[i] = c.Title
		}
		Expect(titles).To(ConsistOf("Go Fundamentals", "Distributed Systems"))
	})

	It("should report the promo price as the effective price", func() {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/courses", nil)
		w := httptest.NewRecorder()

		handler.ListCourses(w, req)

		var response struct {
			Courses []catalog.CourseResponse `json:"courses"`
		}
		Expect(json.NewDecoder(w.Body).Decode(&response)).To(Succeed())

		for _, c := range response.Courses {
			if c.Title != "Distributed Systems" {
				continue
			}
			Expect(c.Price).To(Equal(2990.0))
			Expect(c.EffectivePrice).To(Equal(1990.0))
		}
	})
})
