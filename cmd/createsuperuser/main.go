// Command createsuperuser adds a superadmin account. Superadmins belong to no company.
//
//	createsuperuser <username> <email> <password>
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"go.uber.org/zap"

	"printcost-backend/config"
	"printcost-backend/internal/auth"
	"printcost-backend/internal/db"
	"printcost-backend/internal/model"
	"printcost-backend/internal/store"
)

func main() {
	if len(os.Args) != 4 {
		fmt.Fprintln(os.Stderr, "usage: createsuperuser <username> <email> <password>")
		os.Exit(2)
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	if err := createSuperuser(context.Background(), cfg, logger, os.Args[1], os.Args[2], os.Args[3]); err != nil {
		logger.Fatal("Could not create superadmin", zap.Error(err))
	}
}

func createSuperuser(ctx context.Context, cfg *config.Config, logger *zap.Logger, username, email, password string) error {
	username, email = strings.TrimSpace(username), strings.TrimSpace(email)
	if username == "" || email == "" || password == "" {
		return errors.New("username, email and password must not be empty")
	}
	if len(password) < auth.MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters", auth.MinPasswordLength)
	}

	gormDB, err := db.Init(&cfg.Database, logger)
	if err != nil {
		return err
	}
	if sqlDB, err := gormDB.DB(); err == nil {
		defer sqlDB.Close()
	}
	s := store.NewGormStore(gormDB)

	for _, identifier := range []string{username, email} {
		_, err := s.FindUserByLogin(ctx, identifier)
		if err == nil {
			return fmt.Errorf("a user with that username or email already exists: %w", store.ErrConflict)
		}
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	u := &model.User{Username: username, Email: email, PasswordHash: hash, Role: model.RoleSuperAdmin}
	if err := s.CreateUser(ctx, u); err != nil {
		return err
	}
	logger.Info("Superadmin created", zap.String("username", u.Username), zap.String("id", u.ID))
	return nil
}
