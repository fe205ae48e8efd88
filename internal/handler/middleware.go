package handler

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/boddenberg/finance-tracker-go/internal/domain"
)

type contextKey string

const userIDKey contextKey = "userID"

// TokenValidator turns an access token into its claims.
type TokenValidator interface {
	ValidateAccessToken(token string) (*domain.TokenClaims, error)
}

// JWTAuthMiddleware requires a valid Bearer token and puts its user id in the
// request context.
func JWTAuthMiddleware(tokens TokenValidator, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, reason := bearerToken(r.Header.Get("Authorization"))
			if reason != "" {
				logger.Warn("auth: rejected request",
					zap.String("reason", reason),
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeError(w, http.StatusUnauthorized, reason)
				return
			}

			claims, err := tokens.ValidateAccessToken(raw)
			if err != nil {
				logger.Warn("auth: rejected request",
					zap.String("reason", "invalid token"),
					zap.String("path", r.URL.Path),
					zap.Error(err),
				)
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}

			trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("user.id", claims.UserID))
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey, claims.UserID)))
		})
	}
}

// bearerToken extracts the token from an Authorization header value. A
// non-empty reason means the header is unusable.
func bearerToken(header string) (token, reason string) {
	if header == "" {
		return "", "missing authentication token"
	}
	scheme, token, ok := strings.Cut(header, " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", "invalid token format"
	}
	return token, ""
}

// UserIDFromContext extracts the authenticated user ID from context.
func UserIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(userIDKey).(string)
	return v
}

// AdminTokenMiddleware guards operator endpoints with a shared token.
func AdminTokenMiddleware(token string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get("X-Admin-Token")
			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				logger.Warn("admin: rejected token",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeError(w, http.StatusUnauthorized, "invalid admin token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
