package database

import (
	"errors"
	"fmt"
	"testing"

	"press/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := OpenSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func TestOpenSQLite_RegistersPower(t *testing.T) {
	db := openTestDB(t)

	var got float64
	require.NoError(t, db.Raw("SELECT power(?, ?)", 2.0, 10.0).Scan(&got).Error)
	assert.InDelta(t, 1024.0, got, 1e-9)
	assert.False(t, IsPostgres(db))
}

func TestMigrate_UniqueEngagementPerUser(t *testing.T) {
	db := openTestDB(t)

	user := &models.User{Username: "ann", Email: "ann@example.com", Password: "x", IsActive: true}
	require.NoError(t, db.Create(user).Error)
	post := &models.Post{UserID: user.ID, Title: "t", Content: "t"}
	require.NoError(t, db.Create(post).Error)

	require.NoError(t, db.Create(&models.Like{PostID: post.ID, UserID: user.ID}).Error)
	err := db.Create(&models.Like{PostID: post.ID, UserID: user.ID}).Error
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))

	err = db.Create(&models.Post{UserID: user.ID, Title: "second"}).Error
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))
}

func TestIsUniqueViolation(t *testing.T) {
	assert.False(t, IsUniqueViolation(nil))
	assert.False(t, IsUniqueViolation(errors.New("connection refused")))
	assert.True(t, IsUniqueViolation(gorm.ErrDuplicatedKey))
	assert.True(t, IsUniqueViolation(fmt.Errorf("wrap: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
}

func TestPostBeforeSave_TracksUpdatedUnix(t *testing.T) {
	db := openTestDB(t)

	user := &models.User{Username: "bo", Email: "bo@example.com", Password: "x"}
	require.NoError(t, db.Create(user).Error)
	post := &models.Post{UserID: user.ID, Title: "t", Content: "t"}
	require.NoError(t, db.Create(post).Error)

	var stored models.Post
	require.NoError(t, db.First(&stored, post.ID).Error)
	assert.NotZero(t, stored.UpdatedUnix)
	assert.Equal(t, stored.UpdatedAt.Unix(), stored.UpdatedUnix)
}
