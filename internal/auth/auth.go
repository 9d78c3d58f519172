// Package auth resolves the caller identity from bearer JWTs.
package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/errors"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
)

const callerKey = "caller"

// Claims are the token claims the storefront reads.
type Claims struct {
	Role models.Role `json:"role"`
	jwt.RegisteredClaims
}

// Verifier validates HS256 tokens.
type Verifier struct {
	secret []byte
	issuer string
}

// NewVerifier creates a verifier. An empty secret is a configuration error.
func NewVerifier(cfg config.AuthConfig) (*Verifier, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New(errors.ErrConfiguration, "AUTH_JWT_SECRET is required")
	}
	return &Verifier{secret: []byte(cfg.JWTSecret), issuer: cfg.Issuer}, nil
}

// Verify parses the token and returns the caller it names.
func (v *Verifier) Verify(token string) (models.Caller, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return models.Caller{}, fmt.Errorf("%w: %v", errors.ErrUnauthenticated, err)
	}
	if claims.Subject == "" {
		return models.Caller{}, errors.New(errors.ErrUnauthenticated, "token has no subject")
	}

	role := claims.Role
	if role == "" {
		role = models.RoleCustomer
	}
	return models.Caller{UserID: claims.Subject, Role: role}, nil
}

// Sign issues a token for caller. Used by tooling and tests.
func (v *Verifier) Sign(caller models.Caller, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: caller.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   caller.UserID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// RequireAuth rejects requests without a valid bearer token and stores the
// caller on the gin context. onError renders the failure.
func RequireAuth(v *Verifier, onError func(*gin.Context, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			onError(c, errors.New(errors.ErrUnauthenticated, "missing bearer token"))
			c.Abort()
			return
		}

		caller, err := v.Verify(token)
		if err != nil {
			onError(c, errors.New(errors.ErrUnauthenticated, "invalid token"))
			c.Abort()
			return
		}

		c.Set(callerKey, caller)
		c.Next()
	}
}

// RequireAdmin must run after RequireAuth.
func RequireAdmin(onError func(*gin.Context, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := CallerFrom(c)
		if !ok {
			onError(c, errors.New(errors.ErrUnauthenticated, "authentication required"))
			c.Abort()
			return
		}
		if !caller.IsAdmin() {
			onError(c, errors.New(errors.ErrForbidden, "administrator role required"))
			c.Abort()
			return
		}
		c.Next()
	}
}

// CallerFrom returns the caller stored by RequireAuth.
func CallerFrom(c *gin.Context) (models.Caller, bool) {
	v, ok := c.Get(callerKey)
	if !ok {
		return models.Caller{}, false
	}
	caller, ok := v.(models.Caller)
	return caller, ok
}

// SetCaller stores caller on the context.
func SetCaller(c *gin.Context, caller models.Caller) {
	c.Set(callerKey, caller)
}

func bearerToken(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}
