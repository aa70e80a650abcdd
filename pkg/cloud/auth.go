package cloud

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/teslashibe/go-focus/internal/log"
	"github.com/teslashibe/go-focus/pkg/metrics"
)

// ErrUnauthorized is returned for missing, invalid or revoked tokens.
var ErrUnauthorized = errors.New("cloud: unauthorized")

const claimsLocal = "claims"

// Claims are the JWT claims accepted on the tracking socket. A non-empty
// subject pins the token to one user_id.
type Claims struct {
	Scopes []string `json:"scopes,omitempty"`
	jwt.RegisteredClaims
}

// Validator checks HMAC-signed tokens and, when a Redis client is
// configured, a revocation list keyed by token id.
type Validator struct {
	secret        []byte
	revocationKey string
	redis         redis.Cmdable
}

// NewValidator creates a validator for secret. rdb may be nil.
func NewValidator(secret string, rdb redis.Cmdable) *Validator {
	return &Validator{
		secret:        []byte(secret),
		revocationKey: "focus:revoked",
		redis:         rdb,
	}
}

// ValidateToken parses and validates tokenString.
func (v *Validator) ValidateToken(ctx context.Context, tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("%w: missing token", ErrUnauthorized)
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%w: invalid token", ErrUnauthorized)
	}

	revoked, err := v.isRevoked(ctx, claims.ID)
	if err != nil {
		// Fail open on Redis errors.
		log.Warn("token revocation check failed", "error", err)
	}
	if revoked {
		return nil, fmt.Errorf("%w: token revoked", ErrUnauthorized)
	}
	return claims, nil
}

func (v *Validator) isRevoked(ctx context.Context, jti string) (bool, error) {
	if v.redis == nil || jti == "" {
		return false, nil
	}
	n, err := v.redis.Exists(ctx, v.revocationKey+":"+jti).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return n == 1, nil
}

// Sign issues a token for claims. Used by tooling and tests.
func (v *Validator) Sign(claims Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// middleware rejects upgrades without a valid token and stores the claims
// in the request locals.
func (v *Validator) middleware(queryParam string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Query(queryParam)
		if token == "" {
			token = strings.TrimPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
		}
		claims, err := v.ValidateToken(c.UserContext(), token)
		if err != nil {
			reason := "invalid"
			if token == "" {
				reason = "missing"
			}
			metrics.AuthFailures.WithLabelValues(reason).Inc()
			return fiber.NewError(fiber.StatusUnauthorized, err.Error())
		}
		c.Locals(claimsLocal, claims)
		return c.Next()
	}
}
