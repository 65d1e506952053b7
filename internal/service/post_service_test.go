package service

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"press/internal/models"
	"press/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostService_CreatePost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, f.db, "alice")

	post, err := f.postSvc.CreatePost(ctx, alice.ID, "   ")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultPostContent, post.Content)
	assert.Equal(t, "# Edit here to create your first and only post!", post.Title)
	assert.NotZero(t, post.UpdatedUnix)

	_, err = f.postSvc.CreatePost(ctx, alice.ID, "# Another")
	assertCode(t, err, models.CodeConflict)

	_, err = f.postSvc.CreatePost(ctx, alice.ID, strings.Repeat("x", MaxPostLength+1))
	assertValidationError(t, err)
}

func TestPostService_GetOwnPostRequiresPost(t *testing.T) {
	f := newFixture(t)
	bob := testutil.CreateUser(t, f.db, "bob")

	_, err := f.postSvc.GetOwnPost(context.Background(), bob.ID)
	assertCode(t, err, models.CodePostRequired)

	_, err = f.postSvc.UpdatePost(context.Background(), UpdatePostInput{UserID: bob.ID, Content: "# Hi"})
	assertCode(t, err, models.CodePostRequired)
}

func TestPostService_UpdatePost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, f.db, "alice")
	bob := testutil.CreateUser(t, f.db, "bob")
	post := testutil.CreatePost(t, f.db, alice, "# Draft")

	c, err := f.commentSvc.CreateComment(ctx, CreateCommentInput{UserID: bob.ID, PostID: post.ID, Body: "nice"})
	require.NoError(t, err)
	assert.False(t, c.Old)

	updated, err := f.postSvc.UpdatePost(ctx, UpdatePostInput{
		UserID:  alice.ID,
		Content: "\n  # Final title  \nThanks @bob and @nobody",
	})
	require.NoError(t, err)
	assert.Equal(t, "# Final title", updated.Title)
	assert.Equal(t, "# Final title", f.reload(t, post.ID).Title)

	notes := f.notificationsFor(t, bob.ID)
	require.Len(t, notes, 1)
	assert.Equal(t, models.VerbMentioned, notes[0].Verb)
	assert.Equal(t, alice.ID, notes[0].ActorID)
	assert.Equal(t, models.ObjectPost, notes[0].ActionObjectType)
	assert.Equal(t, post.ID, notes[0].TargetID)

	var stored models.Comment
	require.NoError(t, f.db.First(&stored, c.ID).Error)
	assert.True(t, stored.Old, "comments written before the edit are marked old")

	_, err = f.postSvc.UpdatePost(ctx, UpdatePostInput{UserID: alice.ID, Content: "  "})
	assertValidationError(t, err)
}

func TestPostService_RenderHTML(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, f.db, "alice")
	bob := testutil.CreateUser(t, f.db, "bob")
	post := testutil.CreatePost(t, f.db, alice, "# Title\nHello @bob and @ghost <script>alert(1)</script>")

	out, err := f.postSvc.RenderHTML(ctx, post.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "<h1")
	assert.Contains(t, out, fmt.Sprintf(`<a href="%s">@bob</a>`, bob.Profile.URL()))
	assert.Contains(t, out, "@ghost")
	assert.NotContains(t, out, "<script>")

	_, err = f.postSvc.RenderHTML(ctx, 9999)
	assertCode(t, err, models.CodeNotFound)
}
