package middleware

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/taskquest/taskquest-api/internal/database"
	logpkg "github.com/taskquest/taskquest-api/internal/logger"
	"github.com/taskquest/taskquest-api/internal/models"
	"github.com/taskquest/taskquest-api/internal/request"
	"go.uber.org/zap"
)

// KeySetProvider supplies the key set used to verify bearer tokens.
type KeySetProvider interface {
	KeySet(ctx context.Context) (jwk.Set, error)
}

// JWKSCache is a KeySetProvider backed by an auto-refreshing JWKS endpoint.
type JWKSCache struct {
	cache *jwk.Cache
	url   string
}

// NewJWKSCache registers the JWKS URL and performs an initial fetch so
// misconfiguration surfaces at startup rather than on the first request.
func NewJWKSCache(ctx context.Context, url string) (*JWKSCache, error) {
	cache := jwk.NewCache(ctx)
	if err := cache.Register(url, jwk.WithMinRefreshInterval(15*time.Minute)); err != nil {
		return nil, err
	}
	if _, err := cache.Refresh(ctx, url); err != nil {
		return nil, err
	}
	return &JWKSCache{cache: cache, url: url}, nil
}

// KeySet returns the cached key set, refreshing it when stale.
func (j *JWKSCache) KeySet(ctx context.Context) (jwk.Set, error) {
	return j.cache.Get(ctx, j.url)
}

// Auth validates the bearer token on each request, resolves (or provisions)
// the user record for the token subject, and attaches it to the request
// context.
func Auth(keys KeySetProvider, users database.UserRepositoryInterface, issuer, audience string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				respondErrorJSON(w, r, http.StatusUnauthorized, "Unauthorized", "Missing Authorization header", logger)
				return
			}
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				respondErrorJSON(w, r, http.StatusUnauthorized, "Unauthorized", "Invalid Authorization header format", logger)
				return
			}

			ctx := r.Context()
			keySet, err := keys.KeySet(ctx)
			if err != nil {
				logger.Error("jwks_unavailable", zap.String("error", logpkg.SanitizeError(err)))
				respondErrorJSON(w, r, http.StatusInternalServerError, "Internal Server Error", "Token verification unavailable", logger)
				return
			}

			options := []jwt.ParseOption{
				jwt.WithKeySet(keySet),
				jwt.WithValidate(true),
			}
			if issuer != "" {
				options = append(options, jwt.WithIssuer(issuer))
			}
			if audience != "" {
				options = append(options, jwt.WithAudience(audience))
			}

			token, err := jwt.Parse([]byte(parts[1]), options...)
			if err != nil {
				respondErrorJSON(w, r, http.StatusUnauthorized, "Unauthorized", "Invalid or expired token", logger)
				return
			}
			subject := token.Subject()
			if subject == "" {
				respondErrorJSON(w, r, http.StatusUnauthorized, "Unauthorized", "Token has no subject", logger)
				return
			}

			user, err := resolveUser(ctx, users, token, subject)
			if err != nil {
				logger.Error("user_resolution_failed",
					zap.String("subject", logpkg.SanitizeUserID(subject)),
					zap.String("error", logpkg.SanitizeError(err)),
				)
				respondErrorJSON(w, r, http.StatusInternalServerError, "Internal Server Error", "Failed to resolve user", logger)
				return
			}

			next.ServeHTTP(w, r.WithContext(request.WithUser(ctx, user)))
		})
	}
}

// resolveUser looks up the user for the token subject, provisioning a record
// on first sight.
func resolveUser(ctx context.Context, users database.UserRepositoryInterface, token jwt.Token, subject string) (*models.User, error) {
	user, err := users.GetBySubject(ctx, subject)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	user = &models.User{
		ID:      uuid.New(),
		Subject: subject,
		Email:   stringClaim(token, "email"),
	}
	if name := stringClaim(token, "name"); name != "" {
		user.Name = &name
	}
	if err := users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func stringClaim(token jwt.Token, claim string) string {
	value, ok := token.Get(claim)
	if !ok {
		return ""
	}
	s, _ := value.(string)
	return s
}
