// Package auth verifies the HS256 bearer tokens that identify learners.
package auth

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	apperrors "github.com/hrygo/tutormind/server/internal/errors"
)

const (
	// Issuer is the iss claim of every token.
	Issuer = "tutormind"

	bearerPrefix = "Bearer "
)

// User is the authenticated caller.
type User struct {
	ID int32
	// Name is how personas address the learner.
	Name string
}

// Claims are the JWT claims of an access token. The subject is the user id.
type Claims struct {
	Name string `json:"name"`
	jwt.RegisteredClaims
}

type Authenticator struct {
	secret []byte
	now    func() time.Time
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret), now: time.Now}
}

// IssueToken signs a token for the user valid for ttl. A ttl of zero never expires.
func (a *Authenticator) IssueToken(userID int32, name string, ttl time.Duration) (string, error) {
	if userID <= 0 {
		return "", errors.Errorf("invalid user id %d", userID)
	}
	now := a.now()
	claims := Claims{
		Name: name,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   Issuer,
			Subject:  strconv.FormatInt(int64(userID), 10),
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign token")
	}
	return token, nil
}

// ParseToken verifies token and returns its user.
func (a *Authenticator) ParseToken(token string) (*User, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return nil, errors.Wrap(err, "invalid token")
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 32)
	if err != nil || id <= 0 {
		return nil, errors.Errorf("invalid token subject %q", claims.Subject)
	}
	return &User{ID: int32(id), Name: claims.Name}, nil
}

// Middleware authenticates requests carrying a bearer token. Requests without one pass
// through anonymously; a present but invalid token is rejected.
func (a *Authenticator) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if header == "" {
				return next(c)
			}
			if !strings.HasPrefix(header, bearerPrefix) {
				return apperrors.Unauthorized("authorization header must be a bearer token")
			}
			user, err := a.ParseToken(strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix)))
			if err != nil {
				return apperrors.Unauthorized("invalid or expired token")
			}
			c.SetRequest(c.Request().WithContext(WithUser(c.Request().Context(), user)))
			return next(c)
		}
	}
}

// RequireUser rejects anonymous requests.
func RequireUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, ok := UserFromContext(c.Request().Context()); !ok {
			return apperrors.Unauthorized("authentication required")
		}
		return next(c)
	}
}

type userKey struct{}

func WithUser(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

// UserFromContext returns the authenticated user, if any.
func UserFromContext(ctx context.Context) (*User, bool) {
	user, ok := ctx.Value(userKey{}).(*User)
	return user, ok && user != nil
}

// RateLimitKey identifies the caller for rate limiting: the user id when authenticated,
// the client address otherwise.
func RateLimitKey(c echo.Context) string {
	if user, ok := UserFromContext(c.Request().Context()); ok {
		return "user:" + strconv.FormatInt(int64(user.ID), 10)
	}
	return "ip:" + c.RealIP()
}
