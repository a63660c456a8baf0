package middleware

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nextlogic/remix-api/internal/model"
	"github.com/nextlogic/remix-api/pkg/auth"
	apperrors "github.com/nextlogic/remix-api/pkg/errors"
)

const (
	ContextClaims    = "session_claims"
	ContextAccountID = "account_id"
)

// Authenticator validates a session token, rejecting revoked ones.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*auth.Claims, error)
}

type SessionMiddleware struct {
	auth       Authenticator
	cookieName string
}

func NewSessionMiddleware(a Authenticator, cookieName string) *SessionMiddleware {
	return &SessionMiddleware{auth: a, cookieName: cookieName}
}

// load puts valid claims into the context. Missing or bad cookies leave it empty.
func (m *SessionMiddleware) load(c *gin.Context) error {
	token, err := c.Cookie(m.cookieName)
	if err != nil || token == "" {
		return nil
	}

	claims, err := m.auth.Authenticate(c.Request.Context(), token)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			return nil
		}
		return err
	}
	id, err := claims.AccountID()
	if err != nil {
		return nil
	}

	c.Set(ContextClaims, claims)
	c.Set(ContextAccountID, id)
	return nil
}

// Optional attaches the session when there is one and never rejects.
func (m *SessionMiddleware) Optional() gin.HandlerFunc {
	return func(c *gin.Context) {
		// a storage error here only costs the caller their session
		_ = m.load(c)
		c.Next()
	}
}

// Required rejects requests without a live session with 401.
func (m *SessionMiddleware) Required() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := m.load(c); err != nil {
			_ = c.Error(apperrors.Storage(err))
			c.Abort()
			return
		}
		if _, ok := ClaimsFrom(c); !ok {
			_ = c.Error(apperrors.Unauthorized("not logged in", nil))
			c.Abort()
			return
		}
		c.Next()
	}
}

// Admin must run after Required.
func (m *SessionMiddleware) Admin() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := ClaimsFrom(c)
		if !ok || claims.Role != model.RoleAdmin {
			_ = c.Error(apperrors.Denied("admin_required", "admin access required"))
			c.Abort()
			return
		}
		c.Next()
	}
}

func ClaimsFrom(c *gin.Context) (*auth.Claims, bool) {
	v, ok := c.Get(ContextClaims)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*auth.Claims)
	return claims, ok
}

func AccountIDFrom(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(ContextAccountID)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}
