// Package testutil provides shared fixtures for package tests.
package testutil

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"press/internal/database"
	"press/internal/models"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var dbSeq atomic.Int64

// NewDB returns a migrated, private in-memory SQLite database that is closed when the test ends.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, dbSeq.Add(1))

	db, err := database.OpenSQLite(dsn)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// CreateUser inserts an active user with a complete profile.
func CreateUser(t testing.TB, db *gorm.DB, username string) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)

	user := &models.User{
		Username: username,
		Email:    username + "@example.com",
		Password: string(hash),
		IsActive: true,
		Profile: &models.Profile{
			Name:        strings.ToUpper(username[:1]) + username[1:],
			Description: "Hi, I am " + username,
		},
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// CreatePost inserts a post for user with the given content.
func CreatePost(t testing.TB, db *gorm.DB, user *models.User, content string) *models.Post {
	t.Helper()

	post := &models.Post{
		UserID:  user.ID,
		Title:   models.DeriveTitle(content),
		Content: content,
	}
	require.NoError(t, db.Create(post).Error)
	return post
}
