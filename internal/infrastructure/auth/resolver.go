// Package auth resolves bearer tokens into caller identities.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/garyjia/cpq-approval/internal/application/port"
	"github.com/garyjia/cpq-approval/internal/domain/entity"
)

// ErrUnauthenticated is returned for missing, malformed or unverifiable tokens
var ErrUnauthenticated = errors.New("unauthenticated")

// DefaultDevTokenPrefix marks development tokens of the form <prefix><user>[:<persona>]
const DefaultDevTokenPrefix = "dev-token-"

// Config holds resolver settings
type Config struct {
	JWTSecret      string
	DevMode        bool
	DevTokenPrefix string
}

// Claims is the token payload issued by the identity provider
type Claims struct {
	Email        string         `json:"email"`
	Role         string         `json:"role"`
	UserMetadata map[string]any `json:"user_metadata"`
	AppMetadata  map[string]any `json:"app_metadata"`
	jwt.RegisteredClaims
}

// persona prefers user_metadata over app_metadata and defaults to ae
func (c *Claims) persona() (entity.Persona, error) {
	for _, md := range []map[string]any{c.UserMetadata, c.AppMetadata} {
		raw, ok := md["persona"].(string)
		if !ok || raw == "" {
			continue
		}
		p, ok := entity.ParsePersona(raw)
		if !ok {
			return "", fmt.Errorf("%w: unknown persona %q", ErrUnauthenticated, raw)
		}
		return p, nil
	}
	return entity.PersonaAE, nil
}

// JWTResolver implements port.IdentityResolver
type JWTResolver struct {
	secret    []byte
	devMode   bool
	devPrefix string
	parser    *jwt.Parser
	logger    *zap.Logger
}

// NewJWTResolver creates a resolver for HS256 tokens
func NewJWTResolver(cfg Config, logger *zap.Logger) *JWTResolver {
	prefix := cfg.DevTokenPrefix
	if prefix == "" {
		prefix = DefaultDevTokenPrefix
	}
	if cfg.DevMode {
		logger.Warn("Development tokens are accepted", zap.String("prefix", prefix))
	}
	return &JWTResolver{
		secret:    []byte(cfg.JWTSecret),
		devMode:   cfg.DevMode,
		devPrefix: prefix,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
		),
		logger: logger,
	}
}

// Resolve verifies the token and returns the caller identity
func (r *JWTResolver) Resolve(ctx context.Context, token string) (*entity.Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("%w: missing token", ErrUnauthenticated)
	}

	if r.devMode && strings.HasPrefix(token, r.devPrefix) {
		return r.resolveDev(strings.TrimPrefix(token, r.devPrefix))
	}

	if len(r.secret) == 0 {
		return nil, fmt.Errorf("%w: token verification is not configured", ErrUnauthenticated)
	}

	claims := &Claims{}
	_, err := r.parser.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return r.secret, nil
	})
	if err != nil {
		r.logger.Debug("Token rejected", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: token has no subject", ErrUnauthenticated)
	}

	persona, err := claims.persona()
	if err != nil {
		return nil, err
	}

	return &entity.Identity{
		UserID:  claims.Subject,
		Email:   claims.Email,
		Persona: persona,
	}, nil
}

func (r *JWTResolver) resolveDev(rest string) (*entity.Identity, error) {
	user, rawPersona, hasPersona := strings.Cut(rest, ":")
	if user == "" {
		return nil, fmt.Errorf("%w: development token has no user", ErrUnauthenticated)
	}

	persona := entity.PersonaAE
	if hasPersona {
		p, ok := entity.ParsePersona(rawPersona)
		if !ok {
			return nil, fmt.Errorf("%w: unknown persona %q", ErrUnauthenticated, rawPersona)
		}
		persona = p
	}

	return &entity.Identity{
		UserID:  user,
		Email:   user + "@dev.local",
		Persona: persona,
	}, nil
}

// Verify interface compliance
var _ port.IdentityResolver = (*JWTResolver)(nil)
