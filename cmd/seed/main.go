// Command main runs the database seeder for press.
package main

import (
	"context"
	"flag"
	"log"
	"strings"

	"press/internal/bootstrap"
	"press/internal/config"
	"press/internal/seed"
)

func main() {
	preset := flag.String("preset", "demo", "Built-in preset ("+strings.Join(seed.PresetNames(), ", ")+") or path to a YAML preset file")
	numUsers := flag.Int("users", 0, "Override the preset's number of users")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	flag.Parse()

	log.Println("🌱 Database Seeder")
	log.Println("==================")

	opts, err := seed.LoadPreset(*preset)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	if *numUsers > 0 {
		opts.Users = *numUsers
	}
	opts.Clean = *shouldClean
	log.Printf("Preset %s: %d users, %d comments per post, clean=%v\n", *preset, opts.Users, opts.CommentsPerPost, opts.Clean)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, _, err := bootstrap.InitRuntime(cfg, bootstrap.Options{})
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}

	if _, err := seed.NewSeeder(db, cfg).Run(context.Background(), opts); err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	log.Println("✨ All done! Your database is now populated with test data.")
	log.Printf("📧 All test users have the password: %s\n", seed.DefaultPassword)
}
