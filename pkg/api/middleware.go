package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"

	"github.com/shelfd/shelfd/internal/logger"
	"github.com/shelfd/shelfd/pkg/service"
)

type contextKey string

const principalKey contextKey = "principal"

// PrincipalFrom returns the request principal; the zero principal when the
// request carried no (valid) token.
func PrincipalFrom(ctx context.Context) service.Principal {
	p, _ := ctx.Value(principalKey).(service.Principal)
	return p
}

// withPrincipal stores the principal on the request context.
func withPrincipal(ctx context.Context, p service.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// principalMiddleware extracts the caller identity from a Bearer token.
// Requests without a token proceed as anonymous; the authorization oracle
// decides what anonymous callers may do.
func principalMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if secret == "" || !strings.HasPrefix(header, "Bearer ") {
				next.ServeHTTP(w, r)
				return
			}

			tokenString := strings.TrimPrefix(header, "Bearer ")
			token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				Unauthorized(w, "Invalid token")
				return
			}

			principal := service.Principal{}
			if claims, ok := token.Claims.(jwt.MapClaims); ok {
				if sub, err := claims.GetSubject(); err == nil {
					principal.Subject = sub
				}
				if roles, ok := claims["roles"].([]any); ok {
					for _, role := range roles {
						if s, ok := role.(string); ok {
							principal.Roles = append(principal.Roles, s)
						}
					}
				}
			}

			next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), principal)))
		})
	}
}

// requestLogger logs request start (DEBUG) and completion (INFO) with
// method, path, status, and duration.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		logger.Debug("request started",
			"method", r.Method,
			"path", r.URL.Path,
			"remote", r.RemoteAddr,
			"request_id", middleware.GetReqID(r.Context()))

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logger.Info("request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}
