package repository

import (
	"context"
	"regexp"
	"sync"
	"testing"

	"press/internal/models"
	"press/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngagementRepository_SetTransitions(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewEngagementRepository(db)
	ctx := context.Background()

	owner := testutil.CreateUser(t, db, "owner")
	fan := testutil.CreateUser(t, db, "fan")
	post := testutil.CreatePost(t, db, owner, "post")

	none, err := repo.Get(ctx, models.EngagementLike, post.ID, fan.ID)
	require.NoError(t, err)
	assert.Nil(t, none)

	steps := []struct {
		active      bool
		wantChanged bool
	}{
		{true, true},
		{true, false},
		{false, true},
		{false, false},
		{true, true},
	}
	var firstID uint
	for i, step := range steps {
		row, changed, err := repo.Set(ctx, models.EngagementLike, post.ID, fan.ID, step.active)
		require.NoError(t, err)
		assert.Equal(t, step.wantChanged, changed, "step %d", i)
		assert.Equal(t, step.active, row.Active, "step %d", i)
		assert.Equal(t, models.EngagementLike, row.Kind)
		if i == 0 {
			firstID = row.ID
		}
		assert.Equal(t, firstID, row.ID, "the pair keeps a single row")
	}

	var n int64
	require.NoError(t, db.Model(&models.Like{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)
	require.NoError(t, db.Model(&models.Follow{}).Count(&n).Error)
	assert.Zero(t, n, "likes and follows are separate relations")
}

func TestEngagementRepository_ConcurrentActivationChangesOnce(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewEngagementRepository(db)
	ctx := context.Background()

	owner := testutil.CreateUser(t, db, "owner")
	fan := testutil.CreateUser(t, db, "fan")
	post := testutil.CreatePost(t, db, owner, "post")

	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		changed int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := repo.Set(ctx, models.EngagementFollow, post.ID, fan.ID, true)
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				changed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, changed)
}

func TestEngagementRepository_PostIDsByUser(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewEngagementRepository(db)
	ctx := context.Background()

	fan := testutil.CreateUser(t, db, "fan")
	p1 := testutil.CreatePost(t, db, testutil.CreateUser(t, db, "a"), "a")
	p2 := testutil.CreatePost(t, db, testutil.CreateUser(t, db, "b"), "b")

	_, _, err := repo.Set(ctx, models.EngagementLike, p1.ID, fan.ID, true)
	require.NoError(t, err)
	_, _, err = repo.Set(ctx, models.EngagementFollow, p1.ID, fan.ID, true)
	require.NoError(t, err)
	_, _, err = repo.Set(ctx, models.EngagementFollow, p2.ID, fan.ID, false)
	require.NoError(t, err)

	ids, err := repo.PostIDsByUser(ctx, fan.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{p1.ID, p2.ID}, ids)
}

func TestEngagementRepository_RemoveDuplicatesKeepsFirst(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewEngagementRepository(db)
	ctx := context.Background()

	owner := testutil.CreateUser(t, db, "owner")
	fan := testutil.CreateUser(t, db, "fan")
	post := testutil.CreatePost(t, db, owner, "post")

	// Legacy data predates the unique index.
	require.NoError(t, db.Migrator().DropIndex(&models.Like{}, "idx_likes_post_user"))
	rows := []*models.Like{
		{PostID: post.ID, UserID: fan.ID, Active: true},
		{PostID: post.ID, UserID: fan.ID, Active: true},
		{PostID: post.ID, UserID: fan.ID, Active: true},
		{PostID: post.ID, UserID: owner.ID, Active: true},
	}
	for _, r := range rows {
		require.NoError(t, db.Create(r).Error)
	}

	removed, err := repo.RemoveDuplicates(ctx, models.EngagementLike)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	var left []models.Like
	require.NoError(t, db.Order("id").Find(&left).Error)
	require.Len(t, left, 2)
	assert.Equal(t, rows[0].ID, left[0].ID)
	assert.Equal(t, rows[3].ID, left[1].ID)
}

func TestEngagementRepository_UpsertSQL(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewEngagementRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(
		`INSERT INTO likes (post_id, user_id, active, created_at, updated_at) VALUES ($1, $2, $3, $4, $5) ` +
			`ON CONFLICT (post_id, user_id) DO UPDATE SET active = excluded.active, updated_at = excluded.updated_at ` +
			`WHERE likes.active <> excluded.active`,
	)).WithArgs(3, 4, true, sqlmock.AnyArg(), sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "likes" WHERE post_id = $1 AND user_id = $2 LIMIT $3`)).
		WithArgs(3, 4, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "post_id", "user_id", "active"}).AddRow(11, 3, 4, true))

	row, changed, err := repo.Set(context.Background(), models.EngagementLike, 3, 4, true)
	require.NoError(t, err)
	assert.False(t, changed, "an already-active pair is a no-op")
	assert.Equal(t, uint(11), row.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEngagementRepository_RemoveDuplicatesSQL(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewEngagementRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(
		`DELETE FROM follows WHERE id NOT IN (SELECT MIN(id) FROM follows GROUP BY post_id, user_id)`,
	)).WillReturnResult(sqlmock.NewResult(0, 3))

	removed, err := repo.RemoveDuplicates(context.Background(), models.EngagementFollow)
	require.NoError(t, err)
	assert.Equal(t, int64(3), removed)
	assert.NoError(t, mock.ExpectationsWereMet())
}
