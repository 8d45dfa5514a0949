package main

import (
	"context"
	"flag"
	"log"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"guardforce-cctv/be/config"
	"guardforce-cctv/be/database"
	"guardforce-cctv/be/logger"
	"guardforce-cctv/be/models"
	"guardforce-cctv/be/repository"
)

// Creates a user or resets its password in the postgres user table.
func main() {
	email := flag.String("email", repository.DefaultAdminEmail, "user email")
	name := flag.String("name", "Admin User", "display name for new users")
	password := flag.String("password", repository.DefaultAdminPassword, "new password")
	role := flag.String("role", string(models.RoleAdmin), "role for new users")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}
	cfg := config.Load()

	zlog, err := logger.NewLogger(cfg.Log.Level, "console", "create-admin")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zlog.Sync()

	if !models.Role(*role).Valid() {
		zlog.Fatal("Unknown role", zap.String("role", *role))
	}

	db, err := database.Initialize(cfg.Database, zlog)
	if err != nil {
		zlog.Fatal("Failed to connect to database", zap.Error(err))
	}

	created, err := repository.ResetPassword(context.Background(), repository.NewGormUserRepository(db),
		*email, *name, *password, models.Role(*role))
	if err != nil {
		zlog.Fatal("Failed to update user", zap.Error(err))
	}
	if created {
		zlog.Info("User created", zap.String("email", *email), zap.String("role", *role))
		return
	}
	zlog.Info("Password reset", zap.String("email", *email))
}
