package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

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
	"github.com/frahmantamala/course-marketplace/internal/payment"
	paymentpg "github.com/frahmantamala/course-marketplace/internal/payment/postgres"
	"github.com/frahmantamala/course-marketplace/internal/slipverify"
	"github.com/frahmantamala/course-marketplace/internal/user"
	userpg "github.com/frahmantamala/course-marketplace/internal/user/postgres"
	"github.com/frahmantamala/course-marketplace/pkg/logger"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start background workers",
	Long:  `Start and manage background workers for reconciliation and maintenance jobs.`,
}

var maintenanceWorkerCmd = &cobra.Command{
	Use:   "maintenance",
	Short: "Start the maintenance worker",
	Long:  `Run scheduled maintenance: fail stuck slip verifications and issue missing certificates.`,
	Run: func(cmd *cobra.Command, args []string) {
		startMaintenanceWorker()
	},
}

var (
	stuckAfter time.Duration
	batchSize  int
)

func startMaintenanceWorker() {
	config, err := loadConfig(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.LoggerWrapper()

	gormDB, err := initGorm(config.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize gorm: %v\n", err)
		os.Exit(1)
	}

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

	catalogRepo := catalogpg.NewRepository(gormDB)
	couponRepo := couponpg.NewRepository(gormDB)
	enrollmentRepo := enrollmentpg.NewRepository(gormDB)
	certificateRepo := certificatepg.NewRepository(gormDB)
	userRepo := userpg.NewRepository(gormDB)
	paymentRepo := paymentpg.NewRepository(gormDB, enrollment.NewFulfiller(), couponRepo)

	catalogService := catalog.NewService(catalogRepo)
	couponService := coupon.NewService(couponRepo, log)
	directory := user.NewDirectory(userRepo)
	certificateService := certificate.NewService(certificateRepo, directory, catalogService, eventBus, log)
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

	c := cron.New()

	_, err = c.AddFunc("@every 10m", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		failed, err := paymentService.FailStuckVerifying(ctx, stuckAfter, batchSize)
		if err != nil {
			log.Error("stuck verification sweep failed", "error", err)
			return
		}
		if failed > 0 {
			log.Info("failed stuck verifying payments", "count", failed)
		}
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to schedule stuck verification sweep: %v\n", err)
		os.Exit(1)
	}

	_, err = c.AddFunc("@hourly", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		issued, err := certificateService.SweepMissing(ctx, batchSize)
		if err != nil {
			log.Error("certificate sweep failed", "error", err)
			return
		}
		if issued > 0 {
			log.Info("issued missing certificates", "count", issued)
		}
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to schedule certificate sweep: %v\n", err)
		os.Exit(1)
	}

	c.Start()
	log.Info("maintenance worker is running. Press Ctrl+C to stop.",
		"stuck_after", stuckAfter,
		"batch_size", batchSize)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.Info("received signal, shutting down maintenance worker", "signal", sig)

	stopCtx := c.Stop()
	select {
	case <-stopCtx.Done():
		log.Info("maintenance worker shutdown complete")
	case <-time.After(30 * time.Second):
		log.Warn("shutdown timeout reached, forcing exit")
	}
}

func init() {
	maintenanceWorkerCmd.Flags().DurationVar(&stuckAfter, "stuck-after", 30*time.Minute, "How long a payment may sit in verifying before it is failed")
	maintenanceWorkerCmd.Flags().IntVar(&batchSize, "batch", 100, "Maximum rows processed per sweep")

	workerCmd.AddCommand(maintenanceWorkerCmd)
}
