package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"press/internal/models"
	"press/internal/repository"
	"press/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingRecounts is a PostRepository whose counter updates always fail.
type failingRecounts struct {
	repository.PostRepository
}

func (failingRecounts) RecountEngagement(context.Context, uint, models.EngagementKind) error {
	return models.NewInternalError(errors.New("database unavailable"))
}

func TestEngagementService_LikeLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, f.db, "owner")
	fan := testutil.CreateUser(t, f.db, "fan")
	post := testutil.CreatePost(t, f.db, owner, "# Hello")

	res, err := f.counter.Set(ctx, SetEngagementInput{Kind: models.EngagementLike, PostID: post.ID, UserID: fan.ID, Active: true})
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.True(t, res.Engagement.Active)
	assert.Equal(t, int64(1), res.Post.LikeCount)
	assert.Equal(t, int64(1), f.reload(t, post.ID).LikeCount)

	notes := f.notificationsFor(t, owner.ID)
	require.Len(t, notes, 1)
	assert.Equal(t, models.VerbLiked, notes[0].Verb)
	assert.Equal(t, fan.ID, notes[0].ActorID)
	assert.Equal(t, models.ObjectLike, notes[0].ActionObjectType)
	assert.Equal(t, res.Engagement.ID, notes[0].ActionObjectID)
	assert.Equal(t, models.ObjectPost, notes[0].TargetType)
	assert.Equal(t, post.ID, notes[0].TargetID)
	assert.True(t, notes[0].Unread)
	assert.Equal(t, 1, f.publisher.count())

	// Setting the same state again is not a transition.
	res, err = f.counter.Set(ctx, SetEngagementInput{Kind: models.EngagementLike, PostID: post.ID, UserID: fan.ID, Active: true})
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Len(t, f.notificationsFor(t, owner.ID), 1)

	res, err = f.counter.Set(ctx, SetEngagementInput{Kind: models.EngagementLike, PostID: post.ID, UserID: fan.ID, Active: false})
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, int64(0), f.reload(t, post.ID).LikeCount)
	assert.Len(t, f.notificationsFor(t, owner.ID), 1, "deactivating emits nothing")

	// Liking again is a new transition and a new notification.
	_, err = f.counter.Toggle(ctx, models.EngagementLike, post.ID, fan.ID)
	require.NoError(t, err)
	assert.Len(t, f.notificationsFor(t, owner.ID), 2)
	assert.Equal(t, int64(1), f.reload(t, post.ID).LikeCount)
}

func TestEngagementService_ToggleFollow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, f.db, "owner")
	reader := testutil.CreateUser(t, f.db, "reader")
	post := testutil.CreatePost(t, f.db, owner, "# Hello")

	res, err := f.counter.Toggle(ctx, models.EngagementFollow, post.ID, reader.ID)
	require.NoError(t, err)
	assert.True(t, res.Engagement.Active)
	assert.Equal(t, int64(1), f.reload(t, post.ID).FollowCount)
	assert.Equal(t, int64(0), f.reload(t, post.ID).LikeCount)

	liked, followed, err := f.counter.State(ctx, post.ID, reader.ID)
	require.NoError(t, err)
	assert.False(t, liked)
	assert.True(t, followed)

	res, err = f.counter.Toggle(ctx, models.EngagementFollow, post.ID, reader.ID)
	require.NoError(t, err)
	assert.False(t, res.Engagement.Active)
	assert.Equal(t, int64(0), f.reload(t, post.ID).FollowCount)

	notes := f.notificationsFor(t, owner.ID)
	require.Len(t, notes, 1)
	assert.Equal(t, models.VerbFollowed, notes[0].Verb)
}

func TestEngagementService_ConcurrentLikesNotifyOnce(t *testing.T) {
	f := newFixture(t)
	owner := testutil.CreateUser(t, f.db, "owner")
	fan := testutil.CreateUser(t, f.db, "fan")
	post := testutil.CreatePost(t, f.db, owner, "# Hello")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.counter.Set(context.Background(), SetEngagementInput{
				Kind: models.EngagementLike, PostID: post.ID, UserID: fan.ID, Active: true,
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, f.notificationsFor(t, owner.ID), 1)
	assert.Equal(t, int64(1), f.reload(t, post.ID).LikeCount)
}

func TestEngagementService_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, f.db, "owner")
	post := testutil.CreatePost(t, f.db, owner, "# Hello")

	_, err := f.counter.Set(ctx, SetEngagementInput{Kind: "share", PostID: post.ID, UserID: owner.ID, Active: true})
	assertValidationError(t, err)

	_, err = f.counter.Set(ctx, SetEngagementInput{Kind: models.EngagementLike, PostID: post.ID, Active: true})
	assertCode(t, err, models.CodeUnauthorized)

	_, err = f.counter.Set(ctx, SetEngagementInput{Kind: models.EngagementLike, PostID: 9999, UserID: owner.ID, Active: true})
	assertCode(t, err, models.CodeNotFound)
}

func TestEngagementService_RecountFailureDoesNotFailWrite(t *testing.T) {
	f := newFixture(t)
	owner := testutil.CreateUser(t, f.db, "owner")
	fan := testutil.CreateUser(t, f.db, "fan")
	post := testutil.CreatePost(t, f.db, owner, "# Hello")

	svc := NewEngagementService(f.engagements, failingRecounts{f.posts}, f.notifier)
	res, err := svc.Set(context.Background(), SetEngagementInput{
		Kind: models.EngagementLike, PostID: post.ID, UserID: fan.ID, Active: true,
	})
	require.NoError(t, err)
	assert.True(t, res.Engagement.Active)
	assert.Equal(t, int64(0), f.reload(t, post.ID).LikeCount, "the stale counter stays until the next recount")
	assert.Len(t, f.notificationsFor(t, owner.ID), 1)

	// Any later recount heals it.
	require.NoError(t, f.counter.RecomputeCounts(context.Background(), post.ID))
	assert.Equal(t, int64(1), f.reload(t, post.ID).LikeCount)
}

func TestEngagementService_RecomputeCountsIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, f.db, "owner")
	post := testutil.CreatePost(t, f.db, owner, "# Hello")

	for i, name := range []string{"a1", "a2", "a3"} {
		u := testutil.CreateUser(t, f.db, name)
		_, err := f.counter.Set(ctx, SetEngagementInput{Kind: models.EngagementLike, PostID: post.ID, UserID: u.ID, Active: i != 2})
		require.NoError(t, err)
		_, err = f.counter.Set(ctx, SetEngagementInput{Kind: models.EngagementFollow, PostID: post.ID, UserID: u.ID, Active: true})
		require.NoError(t, err)
	}
	_, err := f.commentSvc.CreateComment(ctx, CreateCommentInput{UserID: owner.ID, PostID: post.ID, Body: "first"})
	require.NoError(t, err)

	// Corrupt the counters, then recompute twice.
	require.NoError(t, f.db.Model(&models.Post{}).Where("id = ?", post.ID).
		UpdateColumns(map[string]interface{}{"like_count": 42, "follow_count": 0, "comment_count": 7}).Error)

	for i := 0; i < 2; i++ {
		require.NoError(t, f.counter.RecomputeCounts(ctx, post.ID))
		got := f.reload(t, post.ID)
		assert.Equal(t, int64(2), got.LikeCount)
		assert.Equal(t, int64(3), got.FollowCount)
		assert.Equal(t, int64(1), got.CommentCount)
	}
}
