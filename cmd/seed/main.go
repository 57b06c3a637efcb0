// Command seed creates the back-office admin identity from ADMIN_EMAIL and
// ADMIN_PASSWORD.
package main

import (
	"context"
	"log"
	"time"

	"github.com/example/phoneauth/internal/config"
	"github.com/example/phoneauth/internal/database"
	"github.com/example/phoneauth/internal/repository"
	"github.com/example/phoneauth/internal/services"
)

func main() {
	cfg := config.Load()
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		log.Fatal("ADMIN_EMAIL and ADMIN_PASSWORD must be set")
	}

	db := database.Connect(cfg.DatabaseURL, cfg.DBLogLevel)
	authService := services.NewAuthService(cfg, services.AuthDeps{
		Identities: repository.NewIdentityRepository(db),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	admin, created, err := authService.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword)
	if err != nil {
		log.Fatalf("seed admin: %v", err)
	}
	if created {
		log.Printf("admin %s created (user %s)", admin.ID, admin.UserID)
	} else {
		log.Printf("admin %s already exists, left unchanged", admin.ID)
	}
}
