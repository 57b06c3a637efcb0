package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/example/phoneauth/internal/config"
	"github.com/example/phoneauth/internal/database"
	"github.com/example/phoneauth/internal/events"
	"github.com/example/phoneauth/internal/handlers"
	"github.com/example/phoneauth/internal/metrics"
	"github.com/example/phoneauth/internal/repository"
	"github.com/example/phoneauth/internal/routes"
	"github.com/example/phoneauth/internal/services"
	"github.com/example/phoneauth/internal/session"
)

func main() {
	cfg := config.Load()
	db := database.Connect(cfg.DatabaseURL, cfg.DBLogLevel)
	identities := repository.NewIdentityRepository(db)

	var (
		registry    *prometheus.Registry
		authMetrics *metrics.Auth
	)
	if cfg.MetricsEnabled {
		registry, authMetrics = metrics.NewRegistry()
	}

	var publisher *events.Publisher
	if cfg.KafkaEnabled() {
		publisher = events.NewPublisher(events.NewKafkaWriter(cfg.KafkaBrokers), cfg.KafkaUserEventsTopic, cfg.KafkaClientID)
	}

	deps := services.AuthDeps{
		Identities: identities,
		Sender:     otpSender(cfg, publisher),
		Metrics:    authMetrics,
	}
	if publisher != nil {
		deps.Events = publisher
	}
	authService := services.NewAuthService(cfg, deps)

	validator := session.NewValidator(identities, cfg.JWTSecret, session.WithRecorder(authMetrics.SessionValidated))

	app := fiber.New(fiber.Config{
		AppName:      "Phone Auth Service",
		ErrorHandler: handlers.ErrorHandler,
	})

	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{Header: "x-request-id"}))
	app.Use(logger.New(logger.Config{
		Format: "${time} ${locals:requestid} ${status} - ${latency} ${method} ${path}\n",
	}))

	routes.Register(app, routes.Deps{
		DB:        db,
		Auth:      authService,
		Validator: validator,
		Registry:  registry,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	consumerDone := make(chan struct{})
	if cfg.KafkaEnabled() {
		consumer := events.NewConsumer(
			events.NewKafkaReader(cfg.KafkaBrokers, cfg.KafkaGroupID, cfg.KafkaOnboardingTopic),
			authService,
		)
		go func() {
			defer close(consumerDone)
			if err := consumer.Run(ctx); err != nil {
				log.Printf("onboarding consumer stopped: %v", err)
			}
			if err := consumer.Close(); err != nil {
				log.Printf("onboarding consumer close: %v", err)
			}
		}()
	} else {
		close(consumerDone)
	}

	go func() {
		log.Printf("Starting server on :%s (env=%s, otp dispatch=%s)", cfg.AppPort, cfg.AppEnv, cfg.OTPDispatch)
		if err := app.Listen(":" + cfg.AppPort); err != nil {
			log.Printf("fiber.Listen error: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		log.Printf("fiber shutdown: %v", err)
	}
	<-consumerDone
	authService.Wait()

	if publisher != nil {
		if err := publisher.Close(); err != nil {
			log.Printf("kafka writer close: %v", err)
		}
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func otpSender(cfg *config.Config, publisher *events.Publisher) services.OTPSender {
	switch cfg.OTPDispatch {
	case "msg91":
		return services.NewMSG91Service(services.MSG91Config{
			BaseURL:    cfg.MSG91BaseURL,
			AuthKey:    cfg.MSG91AuthKey,
			TemplateID: cfg.MSG91TemplateID,
		}, cfg.OTPDispatchTimeout)
	case "kafka":
		return publisher
	default:
		return services.NewLogSender(cfg.IsNonProduction())
	}
}
