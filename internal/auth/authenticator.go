package auth

import (
	"fmt"
	"time"

	"github.com/nerrad567/library-core/internal/infrastructure/config"
)

// dummyHash is verified against when the username is unknown so both paths
// cost one Argon2id derivation.
const dummyHash = "$argon2id$v=19$m=65536,t=3,p=1$c29tZXNhbHRzb21lc2FsdA$2Jt8m8W1K4E6jQ0pTnYw3u7yQyJ3l7fV9Q9l3R2mXkE"

// Token is the result of a successful login.
type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Authenticator checks librarian credentials and issues access tokens.
type Authenticator struct {
	librarians map[string]string
	secret     string
	ttl        time.Duration
	clock      func() time.Time
}

// NewAuthenticator builds an authenticator from the security config.
func NewAuthenticator(cfg config.SecurityConfig) *Authenticator {
	librarians := make(map[string]string, len(cfg.Auth.Librarians))
	for _, l := range cfg.Auth.Librarians {
		librarians[l.Username] = l.PasswordHash
	}
	return &Authenticator{
		librarians: librarians,
		secret:     cfg.JWT.Secret,
		ttl:        time.Duration(cfg.JWT.AccessTokenTTL) * time.Minute,
		clock:      time.Now,
	}
}

// Login verifies username and password and returns a signed access token.
func (a *Authenticator) Login(username, password string) (*Token, error) {
	hash, known := a.librarians[username]
	if !known {
		hash = dummyHash
	}

	ok, err := VerifyPassword(password, hash)
	if err != nil {
		return nil, fmt.Errorf("verifying password for %q: %w", username, err)
	}
	if !ok || !known {
		return nil, ErrInvalidCredentials
	}

	signed, expires, err := GenerateAccessToken(username, a.secret, a.ttl, a.clock())
	if err != nil {
		return nil, err
	}
	return &Token{AccessToken: signed, TokenType: "Bearer", ExpiresAt: expires}, nil
}

// Verify parses a bearer token and returns its claims.
func (a *Authenticator) Verify(token string) (*Claims, error) {
	return ParseToken(token, a.secret)
}
