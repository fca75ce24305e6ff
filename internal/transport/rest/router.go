package rest

import (
	"database/sql"
	"log/slog"

	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"

	internal "github.com/frahmantamala/course-marketplace/internal"
	"github.com/frahmantamala/course-marketplace/internal/auth"
	"github.com/frahmantamala/course-marketplace/internal/catalog"
	"github.com/frahmantamala/course-marketplace/internal/certificate"
	"github.com/frahmantamala/course-marketplace/internal/coupon"
	"github.com/frahmantamala/course-marketplace/internal/enrollment"
	"github.com/frahmantamala/course-marketplace/internal/payment"
	"github.com/frahmantamala/course-marketplace/internal/ratelimit"
	"github.com/frahmantamala/course-marketplace/internal/transport/middleware"
)

type Handlers struct {
	Auth        *auth.Handler
	Catalog     *catalog.Handler
	Payment     *payment.Handler
	Webhook     *payment.WebhookHandler
	Slip        *payment.SlipHandler
	Coupon      *coupon.Handler
	Enrollment  *enrollment.Handler
	Certificate *certificate.Handler
}

// RegisterAllRoutes wires every endpoint. The gateway webhook and
// certificate verification stay outside the auth group; rate limits guard
// the checkout, slip and coupon endpoints.
func RegisterAllRoutes(router *chi.Mux, db *sql.DB, h Handlers, limiter *ratelimit.Limiter, rl internal.RateLimitConfig, logger *slog.Logger) {
	healthHandler := NewHealthHandler(db)

	router.Use(middleware.CORS)
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		if h.Webhook != nil {
			r.Post("/webhooks/gateway", h.Webhook.HandleGatewayWebhook)
		}

		if h.Auth != nil {
			r.Route("/auth", func(sr chi.Router) {
				sr.Post("/login", h.Auth.Login)
				sr.Post("/refresh", h.Auth.RefreshToken)
			})
		}

		// Public catalog and certificate verification.
		if h.Catalog != nil {
			r.Get("/courses", h.Catalog.ListCourses)
		}
		if h.Certificate != nil {
			r.Get("/certificates/{code}", h.Certificate.VerifyCertificate)
		}

		if h.Auth == nil {
			return
		}

		r.Group(func(pr chi.Router) {
			pr.Use(h.Auth.AuthMiddleware)

			if h.Payment != nil {
				pr.Group(func(cr chi.Router) {
					cr.Use(middleware.RateLimit(limiter, "checkout", int64(rl.CheckoutMax), rl.Window))
					cr.Post("/checkout", h.Payment.Checkout)
				})
				pr.Get("/payments", h.Payment.ListPayments)
				pr.Get("/payments/{paymentID}", h.Payment.GetPayment)
			}

			if h.Slip != nil {
				pr.Group(func(sr chi.Router) {
					sr.Use(middleware.RateLimit(limiter, "slip", int64(rl.SlipMax), rl.Window))
					sr.Post("/payments/{paymentID}/slip", h.Slip.SubmitSlip)
				})
			}

			if h.Coupon != nil {
				pr.Group(func(cr chi.Router) {
					cr.Use(middleware.RateLimit(limiter, "coupon", int64(rl.CouponMax), rl.Window))
					cr.Post("/coupons/validate", h.Coupon.ValidateCoupon)
				})
			}

			if h.Enrollment != nil {
				pr.Route("/enrollments", func(er chi.Router) {
					er.Get("/", h.Enrollment.ListEnrollments)
					er.Patch("/{courseID}/progress", h.Enrollment.UpdateProgress)
				})
			}

			if h.Certificate != nil {
				pr.Get("/certificates", h.Certificate.ListCertificates)
			}

			if h.Payment != nil {
				pr.Group(func(ar chi.Router) {
					ar.Use(h.Auth.RequirePermission(auth.PermManagePayments))
					ar.Patch("/admin/payments/{paymentID}/status", h.Payment.AdminTransition)
				})
			}
		})
	})
}
