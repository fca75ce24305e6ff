package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/frahmantamala/course-marketplace/internal"
	"github.com/frahmantamala/course-marketplace/internal/auth"
	authpg "github.com/frahmantamala/course-marketplace/internal/auth/postgres"
	"github.com/frahmantamala/course-marketplace/internal/catalog"
	catalogpg "github.com/frahmantamala/course-marketplace/internal/catalog/postgres"
	"github.com/frahmantamala/course-marketplace/internal/certificate"
	certificatepg "github.com/frahmantamala/course-marketplace/internal/certificate/postgres"
	"github.com/frahmantamala/course-marketplace/internal/core/events"
	"github.com/frahmantamala/course-marketplace/internal/coupon"
	couponpg "github.com/frahmantamala/course-marketplace/internal/coupon/postgres"
	"github.com/frahmantamala/course-marketplace/internal/enrollment"
	enrollmentpg "github.com/frahmantamala/course-marketplace/internal/enrollment/postgres"
	"github.com/frahmantamala/course-marketplace/internal/gateway"
	"github.com/frahmantamala/course-marketplace/internal/notification"
	"github.com/frahmantamala/course-marketplace/internal/payment"
	paymentpg "github.com/frahmantamala/course-marketplace/internal/payment/postgres"
	"github.com/frahmantamala/course-marketplace/internal/ratelimit"
	"github.com/frahmantamala/course-marketplace/internal/slipverify"
	"github.com/frahmantamala/course-marketplace/internal/transport/rest"
	"github.com/frahmantamala/course-marketplace/internal/user"
	userpg "github.com/frahmantamala/course-marketplace/internal/user/postgres"
	"github.com/frahmantamala/course-marketplace/pkg/logger"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config     *internal.Config
	DB         *sqlx.DB
	GormDB     *gorm.DB
	Redis      *redis.Client
	Router     *chi.Mux
	Dispatcher *notification.Dispatcher
	Logger     *slog.Logger
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:              addr,
		Handler:           deps.Router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	// Signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("received signal, shutting down", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			deps.Logger.Error("server shutdown error", "error", err)
		}
		deps.Dispatcher.Shutdown()
		if err := deps.Redis.Close(); err != nil {
			deps.Logger.Error("redis close error", "error", err)
		}
		if err := deps.DB.Close(); err != nil {
			deps.Logger.Error("database close error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			deps.Logger.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}

	deps.Logger.Info("server stopped")
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if config.Observability.Logging.Format == "json" {
		logger.Init("production")
	} else {
		logger.Init("development")
	}
	log := logger.LoggerWrapper()

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gormDB, err := initGorm(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize gorm: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     config.Redis.Addr,
		Password: config.Redis.Password,
		DB:       config.Redis.DB,
	})
	limiter := ratelimit.NewLimiter(ratelimit.NewRedisCounter(redisClient), log)

	eventBus := events.NewEventBus()

	gatewayClient := gateway.NewClient(gateway.Config{
		BaseURL:       config.Gateway.BaseURL,
		APIKey:        config.Gateway.APIKey,
		WebhookSecret: config.Gateway.WebhookSecret,
		SuccessURL:    config.Gateway.SuccessURL,
		CancelURL:     config.Gateway.CancelURL,
		Currency:      config.Gateway.Currency,
		Timeout:       config.Gateway.Timeout,
	})

	slipClient := slipverify.NewClient(slipverify.Config{
		BaseURL: config.SlipVerify.BaseURL,
		APIKey:  config.SlipVerify.APIKey,
		Timeout: config.SlipVerify.Timeout,
	})

	// Repositories share one gorm connection. The payment repository owns the
	// settlement transaction, so it composes the fulfiller and coupon repo.
	catalogRepo := catalogpg.NewRepository(gormDB)
	couponRepo := couponpg.NewRepository(gormDB)
	enrollmentRepo := enrollmentpg.NewRepository(gormDB)
	certificateRepo := certificatepg.NewRepository(gormDB)
	userRepo := userpg.NewRepository(gormDB)
	authRepo := authpg.NewRepository(gormDB)
	paymentRepo := paymentpg.NewRepository(gormDB, enrollment.NewFulfiller(), couponRepo)

	catalogService := catalog.NewService(catalogRepo)
	couponService := coupon.NewService(couponRepo, log)
	directory := user.NewDirectory(userRepo)
	certificateService := certificate.NewService(certificateRepo, directory, catalogService, eventBus, log)
	enrollmentService := enrollment.NewService(enrollmentRepo, certificateService, log)
	revocationChecker := enrollment.NewRevocationChecker(enrollmentRepo, certificateService, eventBus, log)

	paymentService := payment.NewService(
		paymentRepo,
		catalogService,
		couponService,
		gatewayClient,
		slipClient,
		revocationChecker,
		eventBus,
		log,
		config.Gateway.Currency,
	)

	tokenGen := auth.NewJWTTokenGenerator(config.Security.JWTSecret, config.Security.JWTSecret)
	authService := auth.NewService(authRepo, tokenGen)

	dispatcher := notification.NewDispatcher(notification.DispatcherConfig{
		MaxWorkers:   config.Notification.Workers,
		JobQueueSize: config.Notification.QueueSize,
	}, log)
	emailSender := notification.NewEmailSender(notification.EmailConfig{
		Host:     config.Notification.SMTPHost,
		Port:     config.Notification.SMTPPort,
		From:     config.Notification.EmailFrom,
		Password: config.Notification.EmailPass,
	})
	notifier := notification.NewWebhookNotifier(config.Notification.DispatchURL, 10*time.Second)
	notification.NewEventHandler(dispatcher, emailSender, notifier, directory, catalogService, log).Subscribe(eventBus)

	router := chi.NewRouter()
	rest.RegisterAllRoutes(router, db.DB, rest.Handlers{
		Auth:        auth.NewHandler(authService),
		Catalog:     catalog.NewHandler(catalogService, log),
		Payment:     payment.NewHandler(paymentService, log),
		Webhook:     payment.NewWebhookHandler(paymentService, gatewayClient, log),
		Slip:        payment.NewSlipHandler(paymentService, log),
		Coupon:      coupon.NewHandler(couponService, catalogService, log),
		Enrollment:  enrollment.NewHandler(enrollmentService, log),
		Certificate: certificate.NewHandler(certificateService, log),
	}, limiter, config.RateLimit, log)

	return &Dependencies{
		Config:     config,
		DB:         db,
		GormDB:     gormDB,
		Redis:      redisClient,
		Router:     router,
		Dispatcher: dispatcher,
		Logger:     log,
	}, nil
}

// initDB opens the sqlx connection used by the health endpoint.
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}

// initGorm opens the gorm connection the repositories run on.
func initGorm(cfg internal.DatabaseConfig) (*gorm.DB, error) {
	gormDB, err := gorm.Open(gormpostgres.Open(cfg.Source), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open gorm connection: %w", err)
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access underlying db: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return gormDB, nil
}
