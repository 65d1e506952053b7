package service

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"press/internal/config"
	"press/internal/middleware"
	"press/internal/models"
	"press/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	xwebp "golang.org/x/image/webp"
)

func requireVerification(c *config.Config) { c.RequireEmailVerification = true }

func TestUserService_RegisterWithoutVerification(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.userSvc.Register(ctx, RegisterInput{Username: "alice", Email: " Alice@Example.com ", Password: "password123"})
	require.NoError(t, err)
	assert.True(t, res.User.IsActive)
	assert.Equal(t, "alice@example.com", res.User.Email)
	assert.False(t, res.VerificationSent)
	require.NotEmpty(t, res.Token)

	id, err := middleware.ParseToken(f.cfg.JWTSecret, res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, id)

	profile, err := f.userSvc.GetOwnProfile(ctx, res.User.ID)
	require.NoError(t, err)
	assert.False(t, profile.IsValid(), "new profiles start empty")

	_, err = f.userSvc.Register(ctx, RegisterInput{Username: "alice2", Email: "alice@example.com", Password: "password123"})
	assertCode(t, err, models.CodeConflict)
	_, err = f.userSvc.Register(ctx, RegisterInput{Username: "alice", Email: "other@example.com", Password: "password123"})
	assertCode(t, err, models.CodeConflict)
}

func TestUserService_RegisterValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []RegisterInput{
		{Username: "", Email: "a@example.com", Password: "password123"},
		{Username: "bad name", Email: "a@example.com", Password: "password123"},
		{Username: "ann", Email: "not-an-email", Password: "password123"},
		{Username: "ann", Email: "a@example.com", Password: "short"},
	}
	for _, in := range tests {
		_, err := f.userSvc.Register(ctx, in)
		assertValidationError(t, err)
	}
}

func TestUserService_VerificationFlow(t *testing.T) {
	f := newFixture(t, requireVerification)
	ctx := context.Background()
	in := RegisterInput{Username: "carol", Email: "carol@example.com", Password: "password123"}

	res, err := f.userSvc.Register(ctx, in)
	require.NoError(t, err)
	assert.False(t, res.User.IsActive)
	assert.Empty(t, res.Token)
	assert.True(t, res.VerificationSent)
	require.Len(t, f.mail.sent, 1)

	_, _, err = f.userSvc.Login(ctx, LoginInput{Username: "carol", Password: "password123"})
	assertCode(t, err, models.CodeForbidden)

	// Registering again with the inactive address re-sends the link.
	again, err := f.userSvc.Register(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, again.User.ID)
	require.Len(t, f.mail.sent, 2)

	body := f.mail.sent[1].Body
	i := strings.Index(body, "/verify/")
	require.Positive(t, i)
	rest := body[i+len("/verify/"):]
	token := rest[:strings.Index(rest, "/")]

	_, err = f.userSvc.Verify(ctx, "garbage")
	assertValidationError(t, err)

	user, err := f.userSvc.Verify(ctx, token)
	require.NoError(t, err)
	assert.True(t, user.IsActive)

	_, session, err := f.userSvc.Login(ctx, LoginInput{Username: "carol", Password: "password123"})
	require.NoError(t, err)
	assert.NotEmpty(t, session)

	_, err = f.userSvc.Register(ctx, in)
	assertCode(t, err, models.CodeConflict)
}

func TestUserService_Login(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	testutil.CreateUser(t, f.db, "dave")

	_, _, err := f.userSvc.Login(ctx, LoginInput{Username: "dave", Password: "wrong-password"})
	assertCode(t, err, models.CodeUnauthorized)
	_, _, err = f.userSvc.Login(ctx, LoginInput{Username: "nobody", Password: "password123"})
	assertCode(t, err, models.CodeUnauthorized)

	user, token, err := f.userSvc.Login(ctx, LoginInput{Username: "dave", Password: "password123"})
	require.NoError(t, err)
	assert.Equal(t, "dave", user.Username)
	assert.NotEmpty(t, token)
}

func TestUserService_UpdateProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res, err := f.userSvc.Register(ctx, RegisterInput{Username: "erin", Email: "erin@example.com", Password: "password123"})
	require.NoError(t, err)

	_, err = f.userSvc.UpdateProfile(ctx, UpdateProfileInput{UserID: res.User.ID, Name: "Erin"})
	assertValidationError(t, err)

	profile, err := f.userSvc.UpdateProfile(ctx, UpdateProfileInput{UserID: res.User.ID, Name: " Erin ", Description: "Writes things"})
	require.NoError(t, err)
	assert.Equal(t, "Erin", profile.Name)
	assert.True(t, profile.IsValid())

	stored, err := f.userSvc.GetProfile(ctx, profile.ID)
	require.NoError(t, err)
	assert.Equal(t, "Writes things", stored.Description)
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestUserService_UpdatePicture(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, f.db, "frank")

	_, err := f.userSvc.UpdatePicture(ctx, user.ID, []byte("not an image at all"))
	assertValidationError(t, err)

	profile, err := f.userSvc.UpdatePicture(ctx, user.ID, pngBytes(t, 600, 400))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(profile.Pic, ProfilePicDir+"/"))
	assert.True(t, strings.HasSuffix(profile.Pic, ".webp"))

	first := filepath.Join(f.cfg.MediaDir, filepath.FromSlash(profile.Pic))
	raw, err := os.ReadFile(first)
	require.NoError(t, err)
	cfg, err := xwebp.DecodeConfig(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, 300, cfg.Width)
	assert.Equal(t, 200, cfg.Height)

	// A replacement removes the previous file.
	_, err = f.userSvc.UpdatePicture(ctx, user.ID, pngBytes(t, 50, 50))
	require.NoError(t, err)
	_, err = os.Stat(first)
	assert.True(t, os.IsNotExist(err))
}

func TestUserService_DeleteAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, f.db, "alice")
	bob := testutil.CreateUser(t, f.db, "bob")
	carol := testutil.CreateUser(t, f.db, "carol")
	alicePost := testutil.CreatePost(t, f.db, alice, "alice post")
	bobPost := testutil.CreatePost(t, f.db, bob, "bob post")

	for _, kind := range []models.EngagementKind{models.EngagementLike, models.EngagementFollow} {
		_, err := f.counter.Set(ctx, SetEngagementInput{Kind: kind, PostID: alicePost.ID, UserID: bob.ID, Active: true})
		require.NoError(t, err)
		_, err = f.counter.Set(ctx, SetEngagementInput{Kind: kind, PostID: alicePost.ID, UserID: carol.ID, Active: true})
		require.NoError(t, err)
	}
	bobsComment, err := f.commentSvc.CreateComment(ctx, CreateCommentInput{UserID: bob.ID, PostID: alicePost.ID, Body: "from bob"})
	require.NoError(t, err)
	_, err = f.commentSvc.CreateComment(ctx, CreateCommentInput{UserID: carol.ID, PostID: alicePost.ID, Body: "reply to bob", ParentID: &bobsComment.ID})
	require.NoError(t, err)
	_, err = f.commentSvc.CreateComment(ctx, CreateCommentInput{UserID: carol.ID, PostID: alicePost.ID, Body: "from carol"})
	require.NoError(t, err)
	_, err = f.commentSvc.CreateComment(ctx, CreateCommentInput{UserID: carol.ID, PostID: bobPost.ID, Body: "on bob's post"})
	require.NoError(t, err)

	before := f.reload(t, alicePost.ID)
	assert.Equal(t, int64(2), before.LikeCount)
	assert.Equal(t, int64(3), before.CommentCount)

	err = f.userSvc.DeleteAccount(ctx, carol.ID, bob.Profile.ID)
	assertCode(t, err, models.CodeForbidden)

	require.NoError(t, f.userSvc.DeleteAccount(ctx, bob.ID, bob.Profile.ID))

	after := f.reload(t, alicePost.ID)
	assert.Equal(t, int64(1), after.LikeCount)
	assert.Equal(t, int64(1), after.FollowCount)
	assert.Equal(t, int64(1), after.CommentCount, "bob's thread goes with bob")

	var posts int64
	require.NoError(t, f.db.Model(&models.Post{}).Where("id = ?", bobPost.ID).Count(&posts).Error)
	assert.Zero(t, posts)
	var orphans int64
	require.NoError(t, f.db.Model(&models.Comment{}).Where("object_id = ?", bobPost.ID).Count(&orphans).Error)
	assert.Zero(t, orphans)

	_, err = f.userSvc.GetUser(ctx, bob.ID)
	assertCode(t, err, models.CodeNotFound)
}
