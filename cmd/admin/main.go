// Package main provides admin management utilities for KöydenAL.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"koydenal/internal/config"
	"koydenal/internal/database"
	"koydenal/internal/models"
	"koydenal/internal/repository"
	"koydenal/internal/service"
	"koydenal/internal/storage"

	"github.com/joho/godotenv"
)

type tool struct {
	users    repository.UserRepository
	approval *service.ApprovalService
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Failed to read .env file: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	store, err := storage.NewDiskStore(cfg.StorageDir, cfg.StoragePublicURL)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}

	users := repository.NewUserRepository(db)
	t := &tool{
		users:    users,
		approval: service.NewApprovalService(repository.NewListingRepository(db), users, store, nil, cfg.FeaturedDays),
	}

	ctx := context.Background()
	command := os.Args[1]

	switch command {
	case "promote", "approve", "delete-user":
		if len(os.Args) < 3 {
			fmt.Printf("Usage: go run ./cmd/admin/main.go %s <email>\n", command)
			os.Exit(1)
		}
		err = t.byEmail(ctx, command, os.Args[2])
	case "list-admins":
		err = t.listAdmins(ctx)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) && appErr.Code == models.CodeNotFound {
			fmt.Printf("User with email %s not found\n", os.Args[2])
			os.Exit(1)
		}
		log.Fatalf("%s failed: %v", command, err)
	}
}

func printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  go run ./cmd/admin/main.go promote <email>      - Give the user the admin role (still needs approval)")
	fmt.Println("  go run ./cmd/admin/main.go approve <email>      - Approve the user's profile")
	fmt.Println("  go run ./cmd/admin/main.go delete-user <email>  - Delete the user and every listing they own")
	fmt.Println("  go run ./cmd/admin/main.go list-admins          - List all admins")
}

func (t *tool) byEmail(ctx context.Context, command, email string) error {
	user, err := t.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}

	switch command {
	case "promote":
		return t.promote(ctx, user)
	case "approve":
		return t.approve(ctx, user)
	default:
		return t.deleteUser(ctx, user)
	}
}

func (t *tool) promote(ctx context.Context, user *models.User) error {
	if user.Role == models.RoleAdmin {
		fmt.Printf("User %s (ID: %s) is already an admin\n", user.Email, user.ID)
		return nil
	}
	if err := t.users.SetRole(ctx, user.ID, models.RoleAdmin); err != nil {
		return err
	}
	fmt.Printf("✅ Successfully promoted %s (ID: %s) to admin\n", user.Email, user.ID)
	if user.Status != models.StatusApproved {
		fmt.Printf("   Profile is %s; run `approve %s` before admin access is granted\n", user.Status, user.Email)
	}
	return nil
}

// approve records the user as their own reviewer; the CLI runs without an admin session.
func (t *tool) approve(ctx context.Context, user *models.User) error {
	approved, err := t.approval.ApproveUser(ctx, user.ID, user.ID)
	if err != nil {
		return err
	}
	fmt.Printf("✅ Approved %s (ID: %s, role: %s)\n", approved.Email, approved.ID, approved.Role)
	return nil
}

func (t *tool) deleteUser(ctx context.Context, user *models.User) error {
	if err := t.approval.DeleteUser(ctx, user.ID); err != nil {
		return err
	}
	fmt.Printf("🗑️  Deleted %s (ID: %s) and their listings\n", user.Email, user.ID)
	return nil
}

func (t *tool) listAdmins(ctx context.Context) error {
	admins, _, err := t.users.List(ctx, repository.UserFilter{
		Role: models.RoleAdmin,
		Page: repository.Page{Limit: 100},
	})
	if err != nil {
		return err
	}

	if len(admins) == 0 {
		fmt.Println("No admins found in the system")
		return nil
	}

	fmt.Println("\n📋 Current Admins:")
	fmt.Println("─────────────────────────────────────")
	for _, admin := range admins {
		fmt.Printf("ID: %s | Email: %s | Status: %s\n", admin.ID, admin.Email, admin.Status)
	}
	fmt.Println("─────────────────────────────────────")
	return nil
}
