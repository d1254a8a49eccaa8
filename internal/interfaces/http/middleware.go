package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/garyjia/cpq-approval/internal/application/port"
	"github.com/garyjia/cpq-approval/internal/domain/entity"
)

const (
	identityKey     = "identity"
	requestIDKey    = "request_id"
	requestIDHeader = "X-Request-ID"
)

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// authMiddleware resolves the bearer token and records the caller as a user
func authMiddleware(resolver port.IdentityResolver, users port.UserRepository, logger Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
				Success: false,
				Error:   "missing bearer token",
			})
			return
		}

		identity, err := resolver.Resolve(c.Request.Context(), token)
		if err != nil {
			logger.Warn("Authentication failed", "error", err, "path", c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
				Success: false,
				Error:   "invalid or expired token",
			})
			return
		}

		if users != nil {
			if err := rememberUser(c, users, identity); err != nil {
				// Not fatal: the request can proceed without the users row
				logger.Warn("Failed to record user", "user_id", identity.UserID, "error", err)
			}
		}

		c.Set(identityKey, *identity)
		c.Next()
	}
}

func rememberUser(c *gin.Context, users port.UserRepository, id *entity.Identity) error {
	ctx := c.Request.Context()

	existing, err := users.GetByID(ctx, id.UserID)
	if err != nil {
		return err
	}
	if existing != nil && existing.Persona == id.Persona && existing.Email == id.Email {
		return nil
	}

	now := time.Now().UTC()
	user := &entity.User{
		ID:        id.UserID,
		Email:     id.Email,
		Persona:   id.Persona,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if existing != nil {
		user.FullName = existing.FullName
		user.CreatedAt = existing.CreatedAt
	} else if i := strings.IndexByte(id.Email, '@'); i > 0 {
		user.FullName = id.Email[:i]
	}
	return users.Upsert(ctx, user)
}

var errNoIdentity = errors.New("no identity on request")

func identityFrom(c *gin.Context) (entity.Identity, error) {
	v, ok := c.Get(identityKey)
	if !ok {
		return entity.Identity{}, errNoIdentity
	}
	id, ok := v.(entity.Identity)
	if !ok {
		return entity.Identity{}, errNoIdentity
	}
	return id, nil
}
