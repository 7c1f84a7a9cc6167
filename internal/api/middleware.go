package api

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/ewbrowntech/atto-host/internal/auth"
	"github.com/ewbrowntech/atto-host/internal/models"
)

type contextKey string

const (
	userContextKey  = contextKey("user")
	tokenContextKey = contextKey("token")
)

// AuthMiddleware verifies the bearer token and resolves its subject against
// the credential store. Handlers behind it always see a known user.
func (s *Server) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header required", http.StatusUnauthorized)
			return
		}

		headerParts := strings.Split(authHeader, " ")
		if len(headerParts) != 2 || headerParts[0] != "Bearer" {
			http.Error(w, "Invalid Authorization header format", http.StatusUnauthorized)
			return
		}

		tokenString := headerParts[1]

		claims, err := auth.VerifyJWT(tokenString, s.config.JWT.Secret)
		if err != nil {
			http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
			return
		}

		user, err := s.store.GetUserByID(r.Context(), claims.UserID)
		if err != nil {
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		if user == nil {
			http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, user)
		ctx = context.WithValue(ctx, tokenContextKey, tokenString)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// FreshKeyMiddleware enforces perpetual-token rotation for automated
// accounts: the presented token must digest to the stored api_key. It must
// run after AuthMiddleware. Non-automated accounts hold no rotating key and
// pass through, as does an automated account before its first key is issued.
func (s *Server) FreshKeyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := GetUserFromContext(r.Context())
		if user == nil {
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		if user.Automated && user.APIKeyHash != nil {
			token := GetTokenFromContext(r.Context())
			if !auth.CheckAPIKeyDigest(token, *user.APIKeyHash) {
				http.Error(w, "API key is out of date.", http.StatusForbidden)
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

// AdminMiddleware rejects any identity whose admin flag is not set. The flag
// defaults to false, so an absent flag never grants access.
func (s *Server) AdminMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := GetUserFromContext(r.Context())
		if user == nil {
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		if !user.Admin {
			log.Printf("Admin check failed for user %s", user.Username)
			http.Error(w, "You are not authorized to perform this operation!", http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func GetUserFromContext(ctx context.Context) *models.User {
	if user, ok := ctx.Value(userContextKey).(*models.User); ok {
		return user
	}
	return nil
}

func GetTokenFromContext(ctx context.Context) string {
	if token, ok := ctx.Value(tokenContextKey).(string); ok {
		return token
	}
	return ""
}
