package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/segyhp/lead-intake/internal/auth"
	"github.com/segyhp/lead-intake/internal/config"
	"github.com/segyhp/lead-intake/internal/database"
	"github.com/segyhp/lead-intake/internal/domain"
	"github.com/segyhp/lead-intake/internal/repository"
)

// create-admin seeds an admin account for CREDENTIAL_SOURCE=database.
// Running it again for an existing email changes nothing.
func main() {
	email := flag.String("email", "admin@baadaye.com", "admin email")
	password := flag.String("password", "", "admin password (required)")
	name := flag.String("name", "Admin User", "display name")
	flag.Parse()

	if *password == "" {
		fmt.Fprintln(os.Stderr, "-password is required")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.Database.Driver != "postgres" {
		log.Fatalf("create-admin requires STORE_DRIVER=postgres")
	}

	db, err := database.Open(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(db); err != nil {
			log.Fatalf("Failed to migrate database: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	admins := repository.NewAdminRepository(db)
	normalized := strings.ToLower(strings.TrimSpace(*email))

	existing, err := admins.FindByEmail(ctx, normalized)
	switch {
	case err == nil:
		fmt.Printf("Admin %s already exists\n", existing.Email)
		return
	case !errors.Is(err, repository.ErrNotFound):
		log.Fatalf("Failed to look up admin: %v", err)
	}

	hash, err := auth.HashPassword(*password)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}

	admin := &domain.AdminCredential{
		Email:        normalized,
		PasswordHash: hash,
		Name:         *name,
	}
	if err := admins.Create(ctx, admin); err != nil {
		log.Fatalf("Failed to create admin: %v", err)
	}

	fmt.Printf("Admin %s created\n", admin.Email)
}
