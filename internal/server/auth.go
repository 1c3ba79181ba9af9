package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/54b3r/docqa-go/internal/logging"
)

// accessTokenCookie is checked when no Authorization header is present.
const accessTokenCookie = "access_token"

// ownerKey is the context key of the authenticated owner id.
type ownerKey struct{}

// withOwner returns a copy of ctx carrying ownerID.
func withOwner(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, ownerKey{}, ownerID)
}

// ownerFrom returns the owner authenticated for the request, or "".
func ownerFrom(ctx context.Context) string {
	owner, _ := ctx.Value(ownerKey{}).(string)
	return owner
}

// authMiddleware resolves the request's owner from an HS256 JWT and stores
// it in the request context. The owner is the token's "sub" claim, or its
// "user_id" claim when sub is absent. If secret is empty, auth is disabled
// and every request acts as localOwner.
//
// Tokens are read from:
//
//	Authorization: Bearer <token>
//	Cookie: access_token=<token>
//
// Requests without a valid token receive 401 Unauthorized with a
// WWW-Authenticate: Bearer challenge. Token values are never logged.
func authMiddleware(secret, localOwner string, next http.Handler) http.Handler {
	if secret == "" {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(withOwner(r.Context(), localOwner)))
		})
	}
	key := []byte(secret)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log := logging.FromContext(r.Context())

		token := requestToken(r)
		if token == "" {
			log.Warn("auth: missing token", slog.String("path", r.URL.Path))
			w.Header().Set("WWW-Authenticate", `Bearer realm="docqa"`)
			writeJSON(w, r, http.StatusUnauthorized, errorResponse{Error: "authorization required"})
			return
		}

		owner, err := ownerFromToken(token, key)
		if err != nil {
			log.Warn("auth: invalid token",
				slog.String("path", r.URL.Path),
				slog.String("reason", err.Error()),
			)
			w.Header().Set("WWW-Authenticate", `Bearer realm="docqa" error="invalid_token"`)
			writeJSON(w, r, http.StatusUnauthorized, errorResponse{Error: "invalid token"})
			return
		}

		ctx := logging.WithLogger(withOwner(r.Context(), owner), log.With(slog.String("owner_id", owner)))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ownerFromToken verifies token with key and returns its owner claim.
func ownerFromToken(token string, key []byte) (string, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("parse: %w", err)
	}

	sub, err := claims.GetSubject()
	if err != nil {
		return "", fmt.Errorf("subject: %w", err)
	}
	if sub == "" {
		sub, _ = claims["user_id"].(string)
	}
	if strings.TrimSpace(sub) == "" {
		return "", errors.New("token has no subject")
	}
	return sub, nil
}

// requestToken returns the bearer token from the Authorization header, or
// from the access_token cookie when the header is absent.
func requestToken(r *http.Request) string {
	if t := bearerToken(r); t != "" {
		return t
	}
	if c, err := r.Cookie(accessTokenCookie); err == nil {
		return strings.TrimSpace(c.Value)
	}
	return ""
}

// bearerToken extracts the token from an "Authorization: Bearer <token>"
// header. Returns an empty string if the header is absent or malformed.
func bearerToken(r *http.Request) string {
	hdr := r.Header.Get("Authorization")
	if hdr == "" {
		return ""
	}
	parts := strings.SplitN(hdr, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
