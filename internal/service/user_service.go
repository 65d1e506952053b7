package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"press/internal/cache"
	"press/internal/config"
	"press/internal/middleware"
	"press/internal/models"
	"press/internal/repository"
	"press/internal/tree"
	"press/internal/validation"
	"press/internal/verification"

	"github.com/chai2010/webp"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

const (
	ProfilePicSize        = 300
	ProfilePicDir         = "profile_pic"
	MaxProfilePicBytes    = 5 * 1024 * 1024
	MaxProfileNameLength  = 255
	MaxProfileDescription = 5000
	profilePicQuality     = 80
)

type UserService struct {
	users       repository.UserRepository
	posts       repository.PostRepository
	comments    repository.CommentRepository
	engagements repository.EngagementRepository
	counter     *EngagementService
	sender      *verification.Sender

	jwtSecret           string
	requireVerification bool
	mediaDir            string
	order               tree.Order
}

type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// RegisterResult carries a session token when the account is usable right away.
type RegisterResult struct {
	User             *models.User `json:"user"`
	Token            string       `json:"token,omitempty"`
	VerificationSent bool         `json:"verification_sent"`
}

type LoginInput struct {
	Username string
	Password string
}

type UpdateProfileInput struct {
	UserID      uint
	Name        string
	Description string
}

func NewUserService(
	users repository.UserRepository,
	posts repository.PostRepository,
	comments repository.CommentRepository,
	engagements repository.EngagementRepository,
	counter *EngagementService,
	sender *verification.Sender,
	cfg *config.Config,
) *UserService {
	return &UserService{
		users:               users,
		posts:               posts,
		comments:            comments,
		engagements:         engagements,
		counter:             counter,
		sender:              sender,
		jwtSecret:           cfg.JWTSecret,
		requireVerification: cfg.RequireEmailVerification,
		mediaDir:            cfg.MediaDir,
		order:               tree.ParseOrder(cfg.CommentOrder),
	}
}

// Register creates an account with an empty profile. When e-mail verification
// is required the account starts inactive and a link is mailed; registering
// again with the address of an inactive account re-sends that link.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*RegisterResult, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))

	if err := validation.ValidateUsername(in.Username); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateEmail(in.Email); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	existing, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if !existing.IsActive && s.requireVerification {
			return &RegisterResult{User: existing, VerificationSent: s.sendVerification(ctx, existing)}, nil
		}
		return nil, models.NewConflictError("Email is already registered", nil)
	}
	taken, err := s.users.GetByUsername(ctx, in.Username)
	if err != nil {
		return nil, err
	}
	if taken != nil {
		return nil, models.NewConflictError("Username is already taken", nil)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	user := &models.User{
		Username: in.Username,
		Email:    in.Email,
		Password: string(hash),
		IsActive: !s.requireVerification,
		Profile:  &models.Profile{},
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	if s.requireVerification {
		return &RegisterResult{User: user, VerificationSent: s.sendVerification(ctx, user)}, nil
	}
	token, err := middleware.IssueToken(s.jwtSecret, user.ID, user.Username)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &RegisterResult{User: user, Token: token}, nil
}

func (s *UserService) sendVerification(ctx context.Context, user *models.User) bool {
	if s.sender == nil {
		return false
	}
	if err := s.sender.SendVerification(ctx, user); err != nil {
		middleware.Logger.ErrorContext(ctx, "failed to send verification mail",
			slog.Uint64("user_id", uint64(user.ID)),
			slog.String("error", err.Error()),
		)
		return false
	}
	return true
}

// Login checks credentials and returns a session token. Inactive accounts are refused.
func (s *UserService) Login(ctx context.Context, in LoginInput) (*models.User, string, error) {
	user, err := s.users.GetByUsername(ctx, strings.TrimSpace(in.Username))
	if err != nil {
		return nil, "", err
	}
	if user == nil {
		return nil, "", models.NewUnauthorizedError("Invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(in.Password)); err != nil {
		return nil, "", models.NewUnauthorizedError("Invalid credentials")
	}
	if !user.IsActive {
		return nil, "", models.NewForbiddenError("Confirm your e-mail address first")
	}
	token, err := middleware.IssueToken(s.jwtSecret, user.ID, user.Username)
	if err != nil {
		return nil, "", models.NewInternalError(err)
	}
	return user, token, nil
}

// Verify activates the account a verification link was issued for.
func (s *UserService) Verify(ctx context.Context, token string) (*models.User, error) {
	if s.sender == nil {
		return nil, models.NewValidationError("E-mail verification is not enabled")
	}
	email, err := s.sender.Tokens.Parse(token)
	if err != nil {
		if errors.Is(err, verification.ErrExpiredToken) {
			return nil, models.NewValidationError("Verification link has expired")
		}
		return nil, models.NewValidationError("Verification link is invalid")
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.NewNotFoundError("User", email)
	}
	if !user.IsActive {
		if err := s.users.Activate(ctx, user.ID); err != nil {
			return nil, err
		}
		user.IsActive = true
	}
	return user, nil
}

func (s *UserService) GetUser(ctx context.Context, id uint) (*models.User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *UserService) GetProfile(ctx context.Context, profileID uint) (*models.Profile, error) {
	return s.users.GetProfile(ctx, profileID)
}

func (s *UserService) GetOwnProfile(ctx context.Context, userID uint) (*models.Profile, error) {
	return s.users.GetProfileByUserID(ctx, userID)
}

func (s *UserService) UpdateProfile(ctx context.Context, in UpdateProfileInput) (*models.Profile, error) {
	name := strings.TrimSpace(in.Name)
	description := strings.TrimSpace(in.Description)
	if name == "" || description == "" {
		return nil, models.NewValidationError("Name and description are required")
	}
	if utf8.RuneCountInString(name) > MaxProfileNameLength {
		return nil, models.NewValidationError(fmt.Sprintf("Name too long (max %d characters)", MaxProfileNameLength))
	}
	if utf8.RuneCountInString(description) > MaxProfileDescription {
		return nil, models.NewValidationError(fmt.Sprintf("Description too long (max %d characters)", MaxProfileDescription))
	}

	profile, err := s.users.GetProfileByUserID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	profile.Name = name
	profile.Description = description
	if err := s.users.UpdateProfile(ctx, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

// UpdatePicture scales an uploaded image to fit ProfilePicSize square, stores it
// as WebP under the media directory and points the profile at it.
func (s *UserService) UpdatePicture(ctx context.Context, userID uint, content []byte) (*models.Profile, error) {
	if len(content) == 0 {
		return nil, models.NewValidationError("No file uploaded")
	}
	if len(content) > MaxProfilePicBytes {
		return nil, models.NewValidationError(fmt.Sprintf("File too large (max %dMB)", MaxProfilePicBytes/(1024*1024)))
	}
	if !strings.HasPrefix(http.DetectContentType(content), "image/") {
		return nil, models.NewValidationError("Invalid image type")
	}
	decoded, _, err := image.Decode(bytes.NewReader(content))
	if err != nil {
		return nil, models.NewValidationError("Invalid image file")
	}

	encoded, err := encodeWebP(resizeToFit(decoded, ProfilePicSize, ProfilePicSize), profilePicQuality)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	profile, err := s.users.GetProfileByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	rel := filepath.ToSlash(filepath.Join(ProfilePicDir, fmt.Sprintf("%d-%s.webp", userID, uuid.NewString())))
	abs := filepath.Join(s.mediaDir, filepath.FromSlash(rel))
	if err := writeBytesToFile(abs, encoded); err != nil {
		return nil, models.NewInternalError(err)
	}

	previous := profile.Pic
	profile.Pic = rel
	if err := s.users.UpdateProfile(ctx, profile); err != nil {
		_ = os.Remove(abs)
		return nil, err
	}
	s.removePicture(previous)
	return profile, nil
}

func (s *UserService) removePicture(rel string) {
	if rel == "" || !strings.HasPrefix(rel, ProfilePicDir+"/") {
		return
	}
	_ = os.Remove(filepath.Join(s.mediaDir, filepath.FromSlash(rel)))
}

// DeleteAccount removes the owner of profileID with everything they wrote.
// Only the owner may do this. Counters of other posts they engaged with or
// commented on are recomputed afterwards.
func (s *UserService) DeleteAccount(ctx context.Context, actorID, profileID uint) error {
	profile, err := s.users.GetProfile(ctx, profileID)
	if err != nil {
		return err
	}
	if profile.UserID != actorID {
		return models.NewForbiddenError("You can only delete your own account")
	}
	userID := profile.UserID

	engaged, err := s.engagements.PostIDsByUser(ctx, userID)
	if err != nil {
		return err
	}
	own, err := s.posts.GetByUserID(ctx, userID)
	if err != nil {
		return err
	}

	touched, err := s.comments.DeleteByAuthor(ctx, userID, s.order)
	if err != nil {
		return err
	}
	if own != nil {
		if err := s.comments.DeleteByObject(ctx, models.PostRef(own.ID)); err != nil {
			return err
		}
	}
	if err := s.users.Delete(ctx, userID); err != nil {
		return err
	}
	s.removePicture(profile.Pic)

	if own != nil {
		cache.InvalidatePost(ctx, own.ID)
	}
	cache.InvalidateTrending(ctx)

	if s.counter == nil {
		return nil
	}
	isOwn := func(postID uint) bool { return own != nil && own.ID == postID }
	for _, ref := range touched {
		if ref.ContentType == models.ContentTypePost && !isOwn(ref.ObjectID) {
			_ = s.counter.RecountComments(ctx, ref.ObjectID)
		}
	}
	for _, postID := range engaged {
		if !isOwn(postID) {
			_ = s.counter.RecountLikes(ctx, postID)
			_ = s.counter.RecountFollows(ctx, postID)
		}
	}
	return nil
}

func resizeToFit(src image.Image, maxWidth, maxHeight int) image.Image {
	bounds := src.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()
	if w <= 0 || h <= 0 {
		return src
	}
	if w <= maxWidth && h <= maxHeight {
		return src
	}

	scale := float64(maxWidth) / float64(w)
	if s := float64(maxHeight) / float64(h); s < scale {
		scale = s
	}
	newW := max(int(float64(w)*scale), 1)
	newH := max(int(float64(h)*scale), 1)

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}

func encodeWebP(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := webp.Encode(buf, img, &webp.Options{Quality: float32(quality)}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeBytesToFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
