// Command seed populates the database with categories and demo listings.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"

	"koydenal/internal/config"
	"koydenal/internal/database"
	"koydenal/internal/repository"
	"koydenal/internal/seed"

	"github.com/joho/godotenv"
)

func main() {
	defaults := seed.DefaultOptions()
	numListings := flag.Int("listings", defaults.Listings, "Number of demo listings to create (0 seeds categories only)")
	approved := flag.Float64("approved", defaults.Approved, "Share of demo listings created approved")
	rejected := flag.Float64("rejected", defaults.Rejected, "Share of demo listings created rejected")
	shouldClean := flag.Bool("clean", false, "Remove existing listings before seeding")
	randSeed := flag.Int64("seed", 0, "Random seed for reproducible data (0 = time based)")
	flag.Parse()

	log.Println("🌱 Database Seeder")
	log.Println("==================")
	log.Printf("Target: %d listings, clean=%v\n", *numListings, *shouldClean)

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Failed to read .env file: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	ctx := context.Background()
	if err := seed.Categories(ctx, repository.NewCategoryRepository(db)); err != nil {
		log.Fatalf("❌ Category seeding failed: %v", err)
	}

	s := seed.NewSeeder(db, *randSeed)
	if *shouldClean {
		if err := s.ClearListings(ctx); err != nil {
			log.Fatalf("❌ Cleanup failed: %v", err)
		}
	}

	if *numListings > 0 {
		if _, err := s.Listings(ctx, seed.Options{
			Listings: *numListings,
			Approved: *approved,
			Rejected: *rejected,
		}); err != nil {
			log.Fatalf("❌ Listing seeding failed: %v", err)
		}
		log.Printf("📧 Demo accounts use the password: %s", seed.DemoPassword)
	}

	log.Println("✨ All done!")
}
