package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed the database with sample data for development and testing purposes.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(".")
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		db, err := initGorm(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}

		if clearData {
			for _, table := range []string{
				"coupon_usages", "certificates", "enrollments", "payments",
				"bundle_courses", "coupons", "bundles", "courses",
				"user_permissions", "users",
			} {
				if err := db.Exec(fmt.Sprintf("DELETE FROM %s", table)).Error; err != nil {
					log.Fatalf("failed to clear table %s: %v", table, err)
				}
			}
			fmt.Println("Cleared existing data")
		}

		password := "password"
		hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)

		adminID := seedUser(db, "admin@mail.com", "Marketplace Admin", string(hash))
		learnerID := seedUser(db, "sasi@mail.com", "Sasithorn", string(hash))

		adminPermissions := []string{"admin", "manage_payments", "manage_coupons"}
		for _, perm := range adminPermissions {
			var exists int
			if err := db.Raw("SELECT 1 FROM user_permissions WHERE user_id = ? AND permission = ?", adminID, perm).Row().Scan(&exists); err == nil {
				continue
			}
			if err := db.Exec("INSERT INTO user_permissions (user_id, permission, created_at) VALUES (?, ?, now())", adminID, perm).Error; err != nil {
				log.Fatalf("failed to grant permission %s to admin user: %v", perm, err)
			}
		}
		fmt.Println("Granted admin permissions to:", "admin@mail.com")
		fmt.Println("Seeded learner user without permissions:", "sasi@mail.com", "id:", learnerID)

		courses := []struct {
			Title string
			Price float64
		}{
			{"Go Fundamentals", 1490.00},
			{"Concurrency in Practice", 1990.00},
			{"Building HTTP Services", 1790.00},
			{"Postgres for Developers", 1590.00},
		}

		courseIDs := make([]int64, 0, len(courses))
		for _, c := range courses {
			var id int64
			if err := db.Raw("SELECT id FROM courses WHERE title = ?", c.Title).Row().Scan(&id); err != nil {
				if err := db.Exec("INSERT INTO courses (title, price, is_published, created_at, updated_at) VALUES (?, ?, true, now(), now())", c.Title, c.Price).Error; err != nil {
					log.Fatalf("failed to insert course %s: %v", c.Title, err)
				}
				if err := db.Raw("SELECT id FROM courses WHERE title = ?", c.Title).Row().Scan(&id); err != nil {
					log.Fatalf("course not found after insert %s: %v", c.Title, err)
				}
				fmt.Printf("Seeded course: %s\n", c.Title)
			}
			courseIDs = append(courseIDs, id)
		}

		bundleTitle := "Backend Engineer Track"
		var bundleID int64
		if err := db.Raw("SELECT id FROM bundles WHERE title = ?", bundleTitle).Row().Scan(&bundleID); err != nil {
			if err := db.Exec("INSERT INTO bundles (title, price, is_published, created_at, updated_at) VALUES (?, ?, true, now(), now())", bundleTitle, 4490.00).Error; err != nil {
				log.Fatalf("failed to insert bundle: %v", err)
			}
			if err := db.Raw("SELECT id FROM bundles WHERE title = ?", bundleTitle).Row().Scan(&bundleID); err != nil {
				log.Fatalf("bundle not found after insert: %v", err)
			}
			fmt.Println("Seeded bundle:", bundleTitle)
		}

		for _, courseID := range courseIDs[:3] {
			var exists int
			if err := db.Raw("SELECT 1 FROM bundle_courses WHERE bundle_id = ? AND course_id = ?", bundleID, courseID).Row().Scan(&exists); err == nil {
				continue
			}
			if err := db.Exec("INSERT INTO bundle_courses (bundle_id, course_id, created_at) VALUES (?, ?, now())", bundleID, courseID).Error; err != nil {
				log.Fatalf("failed to link course %d to bundle: %v", courseID, err)
			}
		}

		coupons := []struct {
			Code  string
			Type  string
			Value float64
			Limit int
		}{
			{"WELCOME10", "percentage", 10, 0},
			{"LAUNCH500", "fixed", 500, 100},
		}

		for _, c := range coupons {
			var exists int
			if err := db.Raw("SELECT 1 FROM coupons WHERE code = ?", c.Code).Row().Scan(&exists); err != nil {
				if err := db.Exec(
					"INSERT INTO coupons (code, type, value, min_purchase, usage_limit, per_user_limit, used_count, is_active, created_at, updated_at) VALUES (?, ?, ?, 0, ?, 1, 0, true, now(), now())",
					c.Code, c.Type, c.Value, c.Limit,
				).Error; err != nil {
					log.Fatalf("failed to insert coupon %s: %v", c.Code, err)
				}
				fmt.Printf("Seeded coupon: %s\n", c.Code)
			}
		}

		fmt.Println("Catalog seeded successfully")
	},
}

func seedUser(db *gorm.DB, email, name, passwordHash string) int64 {
	var id int64
	if err := db.Raw("SELECT id FROM users WHERE email = ?", email).Row().Scan(&id); err == nil {
		fmt.Println("user already exists:", email)
		return id
	}

	if err := db.Exec("INSERT INTO users (email, name, password_hash, is_active, created_at, updated_at) VALUES (?, ?, ?, true, now(), now())", email, name, passwordHash).Error; err != nil {
		log.Fatalf("failed to insert user %s: %v", email, err)
	}
	if err := db.Raw("SELECT id FROM users WHERE email = ?", email).Row().Scan(&id); err != nil {
		log.Fatalf("user not found after insert %s: %v", email, err)
	}
	fmt.Println("Seeded user:", email)
	return id
}
