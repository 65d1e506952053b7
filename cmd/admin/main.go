// Package main provides maintenance utilities for the press database.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"press/internal/bootstrap"
	"press/internal/config"
	"press/internal/database"
	"press/internal/models"
	"press/internal/repository"
	"press/internal/tree"

	"gorm.io/gorm"
)

func usage() {
	fmt.Println("Usage:")
	fmt.Println("  go run ./cmd/admin migrate               - Apply schema migrations")
	fmt.Println("  go run ./cmd/admin dedupe                - Drop duplicate like/follow rows")
	fmt.Println("  go run ./cmd/admin recount               - Recompute like/follow/comment counters")
	fmt.Println("  go run ./cmd/admin verify-trees          - Check every comment tree")
	fmt.Println("  go run ./cmd/admin rebuild-trees         - Renumber every comment tree")
	fmt.Println("  go run ./cmd/admin promote <user_id>     - Promote user to admin")
	fmt.Println("  go run ./cmd/admin demote <user_id>      - Demote user from admin")
	fmt.Println("  go run ./cmd/admin list-admins           - List all admins")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	command := os.Args[1]

	// Counter rewrites drop cached trending pages, so only they need Redis.
	touchesCounters := command == "recount" || command == "dedupe"
	db, _, err := bootstrap.InitRuntime(cfg, bootstrap.Options{SkipRedis: !touchesCounters})
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}

	ctx := context.Background()

	switch command {
	case "migrate":
		if err := database.Migrate(db); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		fmt.Println("✅ Schema is up to date")

	case "dedupe":
		dedupe(ctx, db)

	case "recount":
		n, err := repository.NewPostRepository(db).RecountAll(ctx)
		if err != nil {
			log.Fatalf("Recount failed: %v", err)
		}
		fmt.Printf("✅ Recounted %d posts\n", n)

	case "verify-trees":
		if bad := verifyTrees(ctx, db); bad > 0 {
			fmt.Printf("❌ %d comment trees are inconsistent, run rebuild-trees\n", bad)
			os.Exit(1)
		}
		fmt.Println("✅ All comment trees are consistent")

	case "rebuild-trees":
		rebuildTrees(ctx, db, tree.ParseOrder(cfg.CommentOrder))

	case "promote":
		if len(os.Args) < 3 {
			fmt.Println("Usage: go run ./cmd/admin promote <user_id>")
			os.Exit(1)
		}
		setAdmin(db, os.Args[2], true)

	case "demote":
		if len(os.Args) < 3 {
			fmt.Println("Usage: go run ./cmd/admin demote <user_id>")
			os.Exit(1)
		}
		setAdmin(db, os.Args[2], false)

	case "list-admins":
		listAdmins(db)

	default:
		fmt.Printf("Unknown command: %s\n", command)
		usage()
		os.Exit(1)
	}
}

// dedupe removes repeated (post, user) rows left over from before the unique
// indexes existed, then recounts so counters match what is left.
func dedupe(ctx context.Context, db *gorm.DB) {
	engagements := repository.NewEngagementRepository(db)
	for _, kind := range []models.EngagementKind{models.EngagementLike, models.EngagementFollow} {
		n, err := engagements.RemoveDuplicates(ctx, kind)
		if err != nil {
			log.Fatalf("Failed to dedupe %s rows: %v", kind, err)
		}
		fmt.Printf("Removed %d duplicate %s rows\n", n, kind)
	}
	if _, err := repository.NewPostRepository(db).RecountAll(ctx); err != nil {
		log.Fatalf("Recount failed: %v", err)
	}
	fmt.Println("✅ Engagement deduplicated")
}

func verifyTrees(ctx context.Context, db *gorm.DB) int {
	comments := repository.NewCommentRepository(db)
	refs, err := comments.Objects(ctx)
	if err != nil {
		log.Fatalf("Failed to list commented objects: %v", err)
	}

	bad := 0
	for _, ref := range refs {
		nodes, err := comments.Nodes(ctx, ref)
		if err != nil {
			log.Fatalf("Failed to load comments of %s %d: %v", ref.ContentType, ref.ObjectID, err)
		}
		if err := tree.Verify(nodes); err != nil {
			fmt.Printf("%s %d: %v\n", ref.ContentType, ref.ObjectID, err)
			bad++
		}
	}
	return bad
}

func rebuildTrees(ctx context.Context, db *gorm.DB, order tree.Order) {
	comments := repository.NewCommentRepository(db)
	refs, err := comments.Objects(ctx)
	if err != nil {
		log.Fatalf("Failed to list commented objects: %v", err)
	}
	for _, ref := range refs {
		if err := comments.RebuildObject(ctx, ref, order); err != nil {
			log.Fatalf("Failed to rebuild %s %d: %v", ref.ContentType, ref.ObjectID, err)
		}
	}
	fmt.Printf("✅ Rebuilt %d comment trees (%s order)\n", len(refs), order)
}

func setAdmin(db *gorm.DB, userID string, admin bool) {
	var user models.User
	if err := db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			fmt.Printf("User with ID %s not found\n", userID)
		} else {
			log.Fatalf("Database error: %v", err)
		}
		os.Exit(1)
	}

	if user.IsAdmin == admin {
		fmt.Printf("User %s (ID: %d) already has is_admin=%t\n", user.Username, user.ID, admin)
		return
	}

	if err := db.Model(&user).Update("is_admin", admin).Error; err != nil {
		log.Fatalf("Failed to update user: %v", err)
	}

	action := "promoted"
	if !admin {
		action = "demoted"
	}
	fmt.Printf("✅ Successfully %s %s (ID: %d)\n", action, user.Username, user.ID)
}

func listAdmins(db *gorm.DB) {
	var admins []models.User
	if err := db.Where("is_admin = ?", true).Find(&admins).Error; err != nil {
		log.Fatalf("Failed to fetch admins: %v", err)
	}

	if len(admins) == 0 {
		fmt.Println("No admins found in the system")
		return
	}

	fmt.Printf("Found %d admin(s):\n", len(admins))
	for _, admin := range admins {
		fmt.Printf("  - %s (ID: %d, Email: %s)\n", admin.Username, admin.ID, admin.Email)
	}
}
