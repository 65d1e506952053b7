// Package verification issues and checks e-mail verification links.
package verification

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("verification token is invalid")
	ErrExpiredToken = errors.New("verification token has expired")
)

// claims carry the address being verified and when the link stops working.
type claims struct {
	Email      string `json:"email"`
	Expiration string `json:"expiration"`
	jwt.RegisteredClaims
}

// Tokens signs verification tokens with an HMAC secret.
type Tokens struct {
	secret []byte
	life   time.Duration
	now    func() time.Time
}

func NewTokens(secret string, life time.Duration) *Tokens {
	return &Tokens{secret: []byte(secret), life: life, now: time.Now}
}

// Issue returns a signed token for email valid for the configured lifetime.
func (t *Tokens) Issue(email string) (string, error) {
	expires := t.now().Add(t.life).UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Email:      email,
		Expiration: expires.Format(time.RFC3339),
	})
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign verification token: %w", err)
	}
	return signed, nil
}

// Parse validates token and returns the e-mail address it verifies.
func (t *Tokens) Parse(token string) (string, error) {
	var c claims
	parsed, err := jwt.ParseWithClaims(token, &c, func(tok *jwt.Token) (interface{}, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid || c.Email == "" {
		return "", ErrInvalidToken
	}
	if c.Expiration != "" {
		expires, err := time.Parse(time.RFC3339, c.Expiration)
		if err != nil {
			return "", ErrInvalidToken
		}
		if expires.Before(t.now()) {
			return "", ErrExpiredToken
		}
	}
	return c.Email, nil
}

// Link builds the verification page address for token under domain.
func Link(domain, token string) (string, error) {
	base, err := url.Parse(domain)
	if err != nil {
		return "", fmt.Errorf("parse EMAIL_PAGE_DOMAIN: %w", err)
	}
	return base.ResolveReference(&url.URL{Path: "/verify/" + token + "/"}).String(), nil
}
