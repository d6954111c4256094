// Package auth authenticates requests with HMAC-signed JWTs and places the
// resulting actor on the request context.
package auth

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"bursar/pkg/domain"
	dErrors "bursar/pkg/domain-errors"
	"bursar/pkg/requestcontext"
)

// Claims carried by an access token. Subject is the actor id.
type Claims struct {
	Role       string `json:"role"`
	Department string `json:"dept,omitempty"`
	jwt.RegisteredClaims
}

// Middleware rejects requests without a valid bearer token and injects the
// authenticated actor into the context for everything downstream.
func Middleware(signingKey []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, err := actorFromRequest(r, signingKey)
			if err != nil {
				unauthorized(w, err.Error())
				return
			}
			next.ServeHTTP(w, r.WithContext(requestcontext.WithActor(r.Context(), actor)))
		})
	}
}

func actorFromRequest(r *http.Request, signingKey []byte) (domain.Actor, error) {
	header := r.Header.Get("Authorization")
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		return domain.Actor{}, fmt.Errorf("missing bearer token")
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %s", t.Method.Alg())
		}
		return signingKey, nil
	})
	if err != nil || !token.Valid {
		return domain.Actor{}, fmt.Errorf("invalid token")
	}

	actorID, err := domain.ParseActorID(claims.Subject)
	if err != nil {
		return domain.Actor{}, fmt.Errorf("invalid subject")
	}
	role, err := domain.ParseRole(claims.Role)
	if err != nil {
		return domain.Actor{}, fmt.Errorf("invalid role")
	}

	actor := domain.Actor{ID: actorID, Role: role}
	if claims.Department != "" {
		dept, err := domain.ParseDepartmentID(claims.Department)
		if err != nil {
			return domain.Actor{}, fmt.Errorf("invalid department")
		}
		actor.Department = dept
	}
	return actor, nil
}

// Sign mints a token for an actor. Used by tests and local tooling.
func Sign(signingKey []byte, actor domain.Actor, ttl time.Duration) (string, error) {
	claims := Claims{
		Role: string(actor.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID.String(),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	if !actor.Department.IsNil() {
		claims.Department = actor.Department.String()
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(signingKey)
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"code":  string(dErrors.CodeUnauthorized),
		"error": message,
	})
}
