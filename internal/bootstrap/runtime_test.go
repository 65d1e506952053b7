package bootstrap

import (
	"testing"

	"press/internal/config"
	"press/internal/models"
	"press/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func devConfig() *config.Config {
	return &config.Config{
		Env:              "development",
		DevBootstrapRoot: true,
		DevRootUsername:  "root",
		DevRootEmail:     "Root@Example.com",
		DevRootPassword:  "correct horse",
	}
}

func TestEnsureDevRootAdmin_CreatesActiveAdmin(t *testing.T) {
	db := testutil.NewDB(t)

	require.NoError(t, EnsureDevRootAdmin(devConfig(), db))
	require.NoError(t, EnsureDevRootAdmin(devConfig(), db), "second run is a no-op")

	var users []models.User
	require.NoError(t, db.Preload("Profile").Find(&users).Error)
	require.Len(t, users, 1)
	root := users[0]
	assert.Equal(t, "root", root.Username)
	assert.Equal(t, "root@example.com", root.Email)
	assert.True(t, root.IsAdmin)
	assert.True(t, root.IsActive)
	assert.True(t, root.Profile.IsValid())
}

func TestEnsureDevRootAdmin_PromotesExisting(t *testing.T) {
	db := testutil.NewDB(t)
	existing := testutil.CreateUser(t, db, "root")
	require.False(t, existing.IsAdmin)

	require.NoError(t, EnsureDevRootAdmin(devConfig(), db))

	var got models.User
	require.NoError(t, db.First(&got, existing.ID).Error)
	assert.True(t, got.IsAdmin)
}

func TestEnsureDevRootAdmin_Guards(t *testing.T) {
	db := testutil.NewDB(t)

	cfg := devConfig()
	cfg.Env = "production"
	require.NoError(t, EnsureDevRootAdmin(cfg, db))

	cfg = devConfig()
	cfg.DevBootstrapRoot = false
	require.NoError(t, EnsureDevRootAdmin(cfg, db))

	var n int64
	require.NoError(t, db.Model(&models.User{}).Count(&n).Error)
	assert.Zero(t, n)

	cfg = devConfig()
	cfg.DevRootPassword = ""
	assert.Error(t, EnsureDevRootAdmin(cfg, db))
	assert.NoError(t, EnsureDevRootAdmin(nil, db))
}
