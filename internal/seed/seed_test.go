package seed

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"press/internal/config"
	"press/internal/mention"
	"press/internal/models"
	"press/internal/repository"
	"press/internal/testutil"
	"press/internal/tree"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadPreset(t *testing.T) {
	t.Parallel()

	opts, err := LoadPreset("tiny")
	require.NoError(t, err)
	assert.Equal(t, Presets["tiny"], opts)

	path := filepath.Join(t.TempDir(), "preset.yml")
	require.NoError(t, os.WriteFile(path, []byte("users: 3\ncomments_per_post: 1\nlike_chance: 1\nseed: 9\n"), 0o600))
	opts, err = LoadPreset(path)
	require.NoError(t, err)
	assert.Equal(t, 3, opts.Users)
	assert.Equal(t, 1, opts.CommentsPerPost)
	assert.Equal(t, 1.0, opts.LikeChance)
	assert.Equal(t, int64(9), opts.Seed)

	bad := filepath.Join(t.TempDir(), "bad.yml")
	require.NoError(t, os.WriteFile(bad, []byte("users: 2\nlike_chance: 3\n"), 0o600))
	_, err = LoadPreset(bad)
	assert.Error(t, err)

	_, err = LoadPreset("no-such-preset")
	assert.Error(t, err)
}

func TestPresetNamesSorted(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []string{"busy", "demo", "tiny"}, PresetNames())
}

func TestSeeder_RunKeepsDataConsistent(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	s := NewSeeder(db, &config.Config{CommentOrder: "asc"})

	opts := Options{Users: 4, CommentsPerPost: 5, LikeChance: 1, FollowChance: 0.5, ReplyChance: 0.7, MaxDays: 2, Seed: 3, FastHash: true}
	sum, err := s.Run(ctx, opts)
	require.NoError(t, err)
	assert.Equal(t, 4, sum.Users)
	assert.Equal(t, 4, sum.Posts)
	assert.Equal(t, 12, sum.Likes, "every user likes every other post")
	assert.Equal(t, 20, sum.Comments)

	var posts []models.Post
	require.NoError(t, db.Find(&posts).Error)
	require.Len(t, posts, 4)

	comments := repository.NewCommentRepository(db)
	for _, p := range posts {
		var likes, follows, cs int64
		require.NoError(t, db.Model(&models.Like{}).Where("post_id = ? AND active = ?", p.ID, true).Count(&likes).Error)
		require.NoError(t, db.Model(&models.Follow{}).Where("post_id = ? AND active = ?", p.ID, true).Count(&follows).Error)
		require.NoError(t, db.Model(&models.Comment{}).Where("object_id = ?", p.ID).Count(&cs).Error)
		assert.Equal(t, likes, p.LikeCount)
		assert.Equal(t, follows, p.FollowCount)
		assert.Equal(t, cs, p.CommentCount)

		nodes, err := comments.Nodes(ctx, models.PostRef(p.ID))
		require.NoError(t, err)
		assert.NoError(t, tree.Verify(nodes))
	}

	var users []*models.User
	require.NoError(t, db.Find(&users).Error)
	for _, u := range users {
		assert.True(t, mention.IsUsername(u.Username), u.Username)
	}

	// Re-running with Clean replaces the data.
	opts.Clean = true
	opts.Users = 2
	_, err = s.Run(ctx, opts)
	require.NoError(t, err)
	var n int64
	require.NoError(t, db.Model(&models.User{}).Count(&n).Error)
	assert.Equal(t, int64(2), n)
}

func TestOptionsValidate(t *testing.T) {
	t.Parallel()
	assert.Error(t, Options{}.Validate())
	assert.Error(t, Options{Users: 1, CommentsPerPost: -1}.Validate())
	assert.Error(t, Options{Users: 1, FollowChance: -0.1}.Validate())
	assert.NoError(t, Presets["demo"].Validate())
}

func TestFactory_Chance(t *testing.T) {
	t.Parallel()
	f, err := NewFactory(nil, Options{Users: 1, Seed: 5, FastHash: true})
	require.NoError(t, err)

	hits := 0
	for i := 0; i < 1000; i++ {
		assert.True(t, f.Chance(1))
		assert.False(t, f.Chance(0))
		if f.Chance(0.3) {
			hits++
		}
	}
	assert.InDelta(t, 300, hits, 80)
}

func TestSeeder_RunCreatesFollowsAndReplies(t *testing.T) {
	db := testutil.NewDB(t)
	s := NewSeeder(db, &config.Config{CommentOrder: "asc"})

	sum, err := s.Run(context.Background(), Options{
		Users: 3, CommentsPerPost: 6, FollowChance: 1, ReplyChance: 1, MaxDays: 1, Seed: 11, FastHash: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 6, sum.Follows)
	assert.Zero(t, sum.Likes)

	var replies int64
	require.NoError(t, db.Model(&models.Comment{}).Where("parent_id IS NOT NULL").Count(&replies).Error)
	assert.Equal(t, int64(3*5), replies, "every comment after the first in a thread is a reply")
}
