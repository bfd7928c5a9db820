package transport

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// TokenResolver extracts the authenticated user from a bearer token. A nil
// resolver means auth is not configured and the request body names the user.
type TokenResolver struct {
	key []byte
}

func NewTokenResolver(signingKey string) *TokenResolver {
	if signingKey == "" {
		return nil
	}
	return &TokenResolver{key: []byte(signingKey)}
}

// UserID returns the subject claim of a valid HS256 bearer token.
func (t *TokenResolver) UserID(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}

	token, err := jwt.Parse(strings.TrimPrefix(header, prefix), func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", tok.Header["alg"])
		}
		return t.key, nil
	})
	if err != nil || !token.Valid {
		return "", false
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", false
	}
	sub, _ := claims["sub"].(string)
	return sub, sub != ""
}
