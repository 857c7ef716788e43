package localstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"moneymanager/internal/core"
)

// TokenIssuer mints the session token handed out by local login/register.
type TokenIssuer interface {
	Issue(user core.UserSummary) (string, error)
}

// TokenParser is implemented by issuers that can validate their own tokens.
type TokenParser interface {
	Parse(tokenStr string) (core.UserSummary, error)
}

// LocalUserPrefix marks identities minted by RegisterUser.
const LocalUserPrefix = "local-"

// JWTIssuer signs HS256 tokens carrying the local user's identity.
type JWTIssuer struct {
	Secret []byte
	TTL    time.Duration
	Now    func() time.Time
}

type localClaims struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

func (i JWTIssuer) Issue(user core.UserSummary) (string, error) {
	if len(i.Secret) == 0 {
		return "", errors.New("jwt secret is empty")
	}
	now := time.Now
	if i.Now != nil {
		now = i.Now
	}
	claims := localClaims{
		Email:    user.Email,
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  user.ID,
			Issuer:   "moneymanager-local",
			IssuedAt: jwt.NewNumericDate(now()),
		},
	}
	if i.TTL > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now().Add(i.TTL))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.Secret)
}

// Parse validates a token minted by Issue and returns its subject.
func (i JWTIssuer) Parse(tokenStr string) (core.UserSummary, error) {
	tok, err := jwt.ParseWithClaims(tokenStr, &localClaims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected signing method")
		}
		return i.Secret, nil
	})
	if err != nil || !tok.Valid {
		if err == nil {
			err = errors.New("invalid token")
		}
		return core.UserSummary{}, err
	}
	c, _ := tok.Claims.(*localClaims)
	if c == nil || c.Subject == "" {
		return core.UserSummary{}, errors.New("invalid claims")
	}
	return core.UserSummary{ID: c.Subject, Username: c.Username, Email: c.Email}, nil
}

// WithPasswordCost sets the bcrypt cost of new local credentials.
func WithPasswordCost(cost int) Option {
	return func(s *Store) { s.hashCost = cost }
}

type userRecord struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

func (u userRecord) summary() core.UserSummary {
	return core.UserSummary{ID: u.ID, Username: u.Username, Email: u.Email}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// RegisterUser creates a local credential record and returns a session token.
func (s *Store) RegisterUser(ctx context.Context, username, email, password string) (core.UserSummary, string, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return core.UserSummary{}, "", core.Invalid("credentials", core.ErrMissingCredentials)
	}
	if strings.TrimSpace(username) == "" {
		username = email
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return core.UserSummary{}, "", fmt.Errorf("hash password: %w", err)
	}

	rec := userRecord{
		ID:           LocalUserPrefix + uuid.NewString(),
		Username:     strings.TrimSpace(username),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    s.now().UTC(),
	}
	err = UpdateList(ctx, s.kv, keyUsers, func(users []userRecord) ([]userRecord, error) {
		for _, u := range users {
			if u.Email == email {
				return nil, fmt.Errorf("%s: %w", email, core.ErrAlreadyRegistered)
			}
		}
		return append(users, rec), nil
	})
	if err != nil {
		return core.UserSummary{}, "", fmt.Errorf("register local user: %w", err)
	}

	token, err := s.tokens.Issue(rec.summary())
	if err != nil {
		return core.UserSummary{}, "", fmt.Errorf("issue local token: %w", err)
	}
	s.logger.InfoContext(ctx, "Registered local user", "user_id", rec.ID)
	return rec.summary(), token, nil
}

// Authenticate checks local credentials and returns a session token.
func (s *Store) Authenticate(ctx context.Context, email, password string) (core.UserSummary, string, error) {
	email = normalizeEmail(email)
	users, _, err := ReadList[userRecord](ctx, s.kv, keyUsers)
	if err != nil {
		return core.UserSummary{}, "", fmt.Errorf("read local users: %w", err)
	}
	for _, u := range users {
		if u.Email != email {
			continue
		}
		if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
			break
		}
		token, err := s.tokens.Issue(u.summary())
		if err != nil {
			return core.UserSummary{}, "", fmt.Errorf("issue local token: %w", err)
		}
		return u.summary(), token, nil
	}
	return core.UserSummary{}, "", core.ErrInvalidCredentials
}
