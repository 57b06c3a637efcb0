package routes

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/example/phoneauth/internal/handlers"
	"github.com/example/phoneauth/internal/middleware"
	"github.com/example/phoneauth/internal/services"
	"github.com/example/phoneauth/internal/session"
)

// Deps carries what the HTTP surface needs. DB and Registry may be nil.
type Deps struct {
	DB        *gorm.DB
	Auth      *services.AuthService
	Validator *session.Validator
	Registry  *prometheus.Registry
}

// Register wires up all HTTP routes.
func Register(app *fiber.App, deps Deps) {
	authHandler := handlers.NewAuthHandler(deps.Auth)
	requireSession := middleware.AuthMiddleware(deps.Validator)

	app.Get("/health", health(deps.DB))
	if deps.Registry != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{})))
	}

	api := app.Group("/api/v1")

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/generate_otp", authHandler.GenerateOTP)
	auth.Post("/verify_otp", authHandler.VerifyOTP)
	auth.Post("/login", authHandler.Login)

	auth.Get("/me", requireSession, authHandler.Me)
	auth.Get("/verify-status/:userId", requireSession, authHandler.VerifyStatus)
	auth.Post("/identities/:id/onboarded", requireSession, authHandler.MarkOnboarded)
	auth.Patch("/identities/:id/status", requireSession, middleware.RequireAdmin(), authHandler.UpdateStatus)
}

func health(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if db != nil {
			sqlDB, err := db.DB()
			if err == nil {
				ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
				err = sqlDB.PingContext(ctx)
				cancel()
			}
			if err != nil {
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
					"status":   "degraded",
					"database": err.Error(),
				})
			}
		}
		return c.JSON(fiber.Map{"status": "ok"})
	}
}
