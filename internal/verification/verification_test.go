package verification

import (
	"context"
	"strings"
	"testing"
	"time"

	"press/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type outbox struct {
	sent []Message
}

func (o *outbox) Send(_ context.Context, msg Message) error {
	o.sent = append(o.sent, msg)
	return nil
}

func TestTokens_RoundTrip(t *testing.T) {
	tokens := NewTokens("secret", time.Hour)

	token, err := tokens.Issue("alice@example.com")
	require.NoError(t, err)

	email, err := tokens.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", email)
}

func TestTokens_Rejections(t *testing.T) {
	issuer := NewTokens("secret", time.Hour)
	token, err := issuer.Issue("alice@example.com")
	require.NoError(t, err)

	_, err = NewTokens("other-secret", time.Hour).Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = issuer.Parse("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	later := NewTokens("secret", time.Hour)
	later.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = later.Parse(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestLink(t *testing.T) {
	link, err := Link("https://press.example.com/app/", "abc.def")
	require.NoError(t, err)
	assert.Equal(t, "https://press.example.com/verify/abc.def/", link)
}

func TestSender_SendVerification(t *testing.T) {
	box := &outbox{}
	s := &Sender{
		Tokens:  NewTokens("secret", time.Hour),
		Mailer:  box,
		Domain:  "http://localhost:8375",
		From:    "no-reply@press.local",
		Subject: "Confirm",
	}

	user := &models.User{Username: "alice", Email: "alice@example.com"}
	require.NoError(t, s.SendVerification(context.Background(), user))

	require.Len(t, box.sent, 1)
	msg := box.sent[0]
	assert.Equal(t, "alice@example.com", msg.To)
	assert.Equal(t, "Confirm", msg.Subject)
	assert.Contains(t, msg.Body, "Hi alice")

	i := strings.Index(msg.Body, "/verify/")
	require.Positive(t, i)
	rest := msg.Body[i+len("/verify/"):]
	token := rest[:strings.Index(rest, "/")]
	email, err := s.Tokens.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, user.Email, email)
}

func TestEncode(t *testing.T) {
	raw := string(encode(Message{From: "a@x", To: "b@x", Subject: "Hi", Body: "line1\nline2"}))
	assert.Contains(t, raw, "Subject: Hi\r\n")
	assert.True(t, strings.HasSuffix(raw, "\r\n\r\nline1\r\nline2"))
}
