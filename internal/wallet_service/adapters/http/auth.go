package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type contextKey string

const actorContextKey contextKey = "actor"

const RoleAdmin = "admin"

// Actor is the authenticated caller. AccountID is the wallet the caller owns.
type Actor struct {
	ID        string
	AccountID uuid.UUID
	Role      string
}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// JWTVerifier validates HS256 access tokens issued by the auth service.
type JWTVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

// ParseActor validates tokenString and extracts the actor. The subject
// claim must be the caller's account id.
func (v *JWTVerifier) ParseActor(tokenString string) (Actor, error) {
	claims := jwt.MapClaims{}
	tok, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithLeeway(5*time.Second))
	if err != nil || !tok.Valid {
		return Actor{}, errors.New("invalid token")
	}

	sub, _ := claims["sub"].(string)
	accountID, err := uuid.Parse(sub)
	if err != nil {
		return Actor{}, errors.New("subject is not an account id")
	}
	role, _ := claims["role"].(string)
	return Actor{ID: sub, AccountID: accountID, Role: role}, nil
}

func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey, actor)
}

func ActorFromContext(ctx context.Context) (Actor, bool) {
	v, ok := ctx.Value(actorContextKey).(Actor)
	return v, ok
}

// AuthMiddleware requires a valid bearer token.
func AuthMiddleware(verifier *JWTVerifier, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			if !strings.HasPrefix(h, "Bearer ") {
				jsonError(w, "Authorization header required", http.StatusUnauthorized)
				return
			}
			actor, err := verifier.ParseActor(strings.TrimPrefix(h, "Bearer "))
			if err != nil {
				logger.WarnContext(r.Context(), "Token validation failed", "error", err)
				jsonError(w, "Invalid or expired token", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

// RequireAdmin rejects callers without the admin role. AuthMiddleware must run first.
func RequireAdmin(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFromContext(r.Context())
			if !ok {
				logger.ErrorContext(r.Context(), "Actor not found in context. AuthMiddleware must run first.")
				jsonError(w, "Internal server error", http.StatusInternalServerError)
				return
			}
			if !actor.IsAdmin() {
				logger.WarnContext(r.Context(), "Admin route denied", "actor_id", actor.ID, "role", actor.Role)
				jsonError(w, "Forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
