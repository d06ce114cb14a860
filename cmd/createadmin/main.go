// Command createadmin seeds the first administrator account.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"time"

	"fleet-mileage/internal/config"
	"fleet-mileage/internal/models"
	"fleet-mileage/internal/repository"
	"fleet-mileage/internal/services"
	"fleet-mileage/pkg/database"
)

func main() {
	cfg := config.Load()
	if cfg.StoreDriver != config.StoreMongo {
		log.Fatal("createadmin needs STORE_DRIVER=mongo; the memory store does not persist")
	}

	name := flag.String("name", envOr("ADMIN_NAME", "Administrator"), "display name")
	email := flag.String("email", os.Getenv("ADMIN_EMAIL"), "login email (or ADMIN_EMAIL)")
	password := flag.String("password", os.Getenv("ADMIN_PASSWORD"), "initial password (or ADMIN_PASSWORD)")
	flag.Parse()

	if *email == "" || *password == "" {
		log.Fatal("email and password are required")
	}

	db, err := database.Connect(cfg.MongoURI)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer database.Disconnect(db.Client())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	users := services.NewUserService(repository.NewUserRepository(db))
	admin, err := users.CreateUser(ctx, &services.CreateUserRequest{
		Name:     *name,
		Email:    *email,
		Password: *password,
		Role:     models.RoleAdmin,
	})
	if errors.Is(err, models.ErrDuplicateEmail) {
		log.Printf("A user with email %s already exists; nothing to do", *email)
		return
	}
	if err != nil {
		log.Fatalf("Failed to create admin: %v", err)
	}

	log.Printf("Admin created: %s (%s)", admin.Email, admin.ID.Hex())
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
