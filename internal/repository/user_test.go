package repository

import (
	"context"
	"testing"

	"press/internal/models"
	"press/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func TestUserRepository_CreateDuplicate(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &models.User{Username: "alice", Email: "alice@example.com", Password: "x"}))

	err := repo.Create(ctx, &models.User{Username: "alice", Email: "other@example.com", Password: "x"})
	assert.True(t, models.IsCode(err, models.CodeConflict), "got %v", err)
}

func TestUserRepository_Lookups(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice")
	testutil.CreateUser(t, db, "bob")

	got, err := repo.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Profile)
	assert.Equal(t, alice.Profile.ID, got.Profile.ID)

	_, err = repo.GetByID(ctx, 999)
	assert.True(t, models.IsCode(err, models.CodeNotFound))

	byEmail, err := repo.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, byEmail.ID)

	missing, err := repo.GetByEmail(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, missing)

	users, err := repo.GetByUsernames(ctx, []string{"bob", "carol", "alice"})
	require.NoError(t, err)
	var names []string
	for _, u := range users {
		names = append(names, u.Username)
	}
	assert.ElementsMatch(t, []string{"alice", "bob"}, names)

	none, err := repo.GetByUsernames(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestUserRepository_Activate(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	user := &models.User{Username: "dana", Email: "dana@example.com", Password: "x"}
	require.NoError(t, repo.Create(ctx, user))
	assert.False(t, user.IsActive)

	require.NoError(t, repo.Activate(ctx, user.ID))
	got, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, got.IsActive)

	assert.True(t, models.IsCode(repo.Activate(ctx, 4242), models.CodeNotFound))
}

func TestUserRepository_DeleteCascades(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewUserRepository(db)
	engagements := NewEngagementRepository(db)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	alicePost := testutil.CreatePost(t, db, alice, "alice writes")
	bobPost := testutil.CreatePost(t, db, bob, "bob writes")

	_, _, err := engagements.Set(ctx, models.EngagementLike, bobPost.ID, alice.ID, true)
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, alice.ID))

	var n int64
	require.NoError(t, db.Model(&models.Post{}).Where("id = ?", alicePost.ID).Count(&n).Error)
	assert.Zero(t, n, "post should cascade")
	require.NoError(t, db.Model(&models.Like{}).Where("user_id = ?", alice.ID).Count(&n).Error)
	assert.Zero(t, n, "likes should cascade")
	require.NoError(t, db.Model(&models.Profile{}).Where("user_id = ?", alice.ID).Count(&n).Error)
	assert.Zero(t, n, "profile should cascade")

	assert.True(t, models.IsCode(repo.Delete(ctx, alice.ID), models.CodeNotFound))
}

func TestUserRepository_Profiles(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice")

	profile, err := repo.GetProfileByUserID(ctx, alice.ID)
	require.NoError(t, err)

	profile.Name = "Alice A."
	profile.Description = ""
	require.NoError(t, repo.UpdateProfile(ctx, profile))

	got, err := repo.GetProfile(ctx, profile.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice A.", got.Name)
	assert.Empty(t, got.Description)
	assert.False(t, got.IsValid())

	_, err = repo.GetProfile(ctx, 999)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}
