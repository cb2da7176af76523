package api

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"autoapply-agent/internal/infra/logging"
)

var (
	errMissingToken = errors.New("missing token")
	errInvalidToken = errors.New("invalid token")
)

// UserClaims identifies a dashboard user; Subject is the user id.
type UserClaims struct {
	jwt.RegisteredClaims
}

// AuthManager mints and verifies HS256 dashboard tokens.
type AuthManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewAuthManager(secret string, ttl time.Duration) *AuthManager {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &AuthManager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Mint returns a signed token for userID.
func (a *AuthManager) Mint(userID string) (string, error) {
	if len(a.secret) == 0 {
		return "", errors.New("jwt secret is not configured")
	}
	now := a.now()
	claims := UserClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
			Subject:   userID,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Verify parses tok and returns the user id it was minted for.
func (a *AuthManager) Verify(tok string) (string, error) {
	if len(a.secret) == 0 {
		return "", errInvalidToken
	}
	claims := &UserClaims{}
	tkn, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(a.now))
	if err != nil || !tkn.Valid || claims.Subject == "" {
		return "", errInvalidToken
	}
	return claims.Subject, nil
}

func bearer(r *http.Request) (string, error) {
	hdr := r.Header.Get("Authorization")
	if hdr == "" {
		return "", errMissingToken
	}
	parts := strings.SplitN(hdr, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || strings.TrimSpace(parts[1]) == "" {
		return "", errInvalidToken
	}
	return strings.TrimSpace(parts[1]), nil
}

// userAuth puts the token's user id into the request context.
func (a *AuthManager) userAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok, err := bearer(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		userID, err := a.Verify(tok)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		next.ServeHTTP(w, r.WithContext(logging.WithUserID(r.Context(), userID)))
	})
}

// apiKeyAuth guards admin routes with a static bearer key.
func apiKeyAuth(key string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key == "" {
				writeError(w, http.StatusForbidden, "admin api key is not configured")
				return
			}
			tok, err := bearer(r)
			if err != nil {
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}
			if subtle.ConstantTimeCompare([]byte(tok), []byte(key)) != 1 {
				writeError(w, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
