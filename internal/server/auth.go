package server

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"chronicle/internal/authz"
	"chronicle/internal/cache"
	"chronicle/internal/middleware"
	"chronicle/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token issuer and audience.
const (
	TokenIssuer   = "chronicle-api"
	TokenAudience = "chronicle-client"
)

// Fiber locals set by the auth middleware.
const (
	localUserID    = "userID"
	localPrincipal = "principal"
	localTokenJTI  = "tokenJTI"
	localTokenExp  = "tokenExp"
)

const (
	msgNoToken     = "Not authorized, no token"
	msgTokenFailed = "Not authorized, token failed"
	msgNotAdmin    = "Not authorized as an admin"
)

var errTokenRevoked = errors.New("token has been revoked")

// tokenClaims is what a verified token carries.
type tokenClaims struct {
	UserID    uint
	JTI       string
	ExpiresAt time.Time
}

func (s *Server) tokenTTL() time.Duration {
	if s.config.JWTTTLHours > 0 {
		return time.Duration(s.config.JWTTTLHours) * time.Hour
	}
	return 7 * 24 * time.Hour
}

// generateToken creates a signed JWT for user.
func (s *Server) generateToken(user *models.User) (string, error) {
	if s.config.JWTSecret == "" {
		return "", fmt.Errorf("JWT secret not configured")
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":      strconv.FormatUint(uint64(user.ID), 10),
		"username": user.Username,
		"iss":      TokenIssuer,
		"aud":      TokenAudience,
		"exp":      now.Add(s.tokenTTL()).Unix(),
		"iat":      now.Unix(),
		"nbf":      now.Unix(),
		"jti":      uuid.NewString(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.JWTSecret))
}

// verifyToken checks signature, issuer, audience, expiry and revocation.
func (s *Server) verifyToken(ctx context.Context, tokenString string) (*tokenClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		return []byte(s.config.JWTSecret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(TokenIssuer),
		jwt.WithAudience(TokenAudience),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid token claims")
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return nil, err
	}
	userID, err := strconv.ParseUint(sub, 10, 32)
	if err != nil || userID == 0 {
		return nil, errors.New("invalid subject claim")
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, errors.New("invalid expiration claim")
	}

	out := &tokenClaims{UserID: uint(userID), ExpiresAt: exp.Time}
	if jti, ok := claims["jti"].(string); ok {
		out.JTI = jti
	}
	if out.JTI != "" && s.redis != nil {
		n, err := s.redis.Exists(ctx, cache.BlacklistKey(out.JTI)).Result()
		if err == nil && n > 0 {
			return nil, errTokenRevoked
		}
	}
	return out, nil
}

// revokeToken blacklists jti until the token would have expired anyway.
func (s *Server) revokeToken(ctx context.Context, jti string, expiresAt time.Time) error {
	if s.redis == nil || jti == "" {
		return nil
	}
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	return s.redis.Set(ctx, cache.BlacklistKey(jti), "1", ttl).Err()
}

// resolvePrincipal loads the caller's role, going through the in-process LRU first.
func (s *Server) resolvePrincipal(ctx context.Context, userID uint) (authz.Principal, error) {
	if p, ok := s.principals.Get(userID); ok {
		return p, nil
	}
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return authz.Principal{}, err
	}
	p := authz.FromUser(user)
	s.principals.Add(userID, p)
	return p, nil
}

// forgetPrincipal drops a cached principal after a role change or delete.
func (s *Server) forgetPrincipal(userID uint) {
	s.principals.Remove(userID)
}

func bearerToken(c *fiber.Ctx) string {
	parts := strings.Fields(c.Get(fiber.HeaderAuthorization))
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return parts[1]
	}
	return ""
}

// authenticate verifies the bearer token and stores the principal in locals.
func (s *Server) authenticate(c *fiber.Ctx, tokenString string) error {
	claims, err := s.verifyToken(c.UserContext(), tokenString)
	if err != nil {
		return err
	}
	p, err := s.resolvePrincipal(c.UserContext(), claims.UserID)
	if err != nil {
		return err
	}

	c.Locals(localUserID, p.ID)
	c.Locals(localPrincipal, p)
	c.Locals(localTokenJTI, claims.JTI)
	c.Locals(localTokenExp, claims.ExpiresAt)
	ctx := context.WithValue(c.UserContext(), middleware.UserIDKey, p.ID)
	c.SetUserContext(ctx)
	return nil
}

// AuthRequired rejects requests without a valid bearer token.
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := bearerToken(c)
		if tokenString == "" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError(msgNoToken))
		}
		if err := s.authenticate(c, tokenString); err != nil {
			if models.HasCode(err, models.CodeInternal) {
				return mapServiceError(c, err)
			}
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError(msgTokenFailed))
		}
		return c.Next()
	}
}

// OptionalAuth attaches the principal when a valid token is present and
// otherwise lets the request through as anonymous.
func (s *Server) OptionalAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if tokenString := bearerToken(c); tokenString != "" {
			_ = s.authenticate(c, tokenString)
		}
		return c.Next()
	}
}

// AdminRequired returns middleware that rejects non-admin users with 403.
// Must be placed after AuthRequired.
func (s *Server) AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !principal(c).IsAdmin() {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError(msgNotAdmin))
		}
		return c.Next()
	}
}
