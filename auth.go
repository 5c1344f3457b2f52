package gtfsrttrigger

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/theoremus-urban-solutions/gtfsrt-trigger/config"
)

// resolveOwner extracts an opaque owner identity from a request: a verified
// bearer token's email claim, a device-linked pseudo-identity header, or an
// explicit owner query parameter, in that order.
func resolveOwner(r *http.Request) (string, error) {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return ownerFromToken(strings.TrimPrefix(h, "Bearer "))
	}
	if id := r.Header.Get("X-Device-ID"); id != "" {
		return id + "@device", nil
	}
	if o := r.URL.Query().Get("owner"); o != "" {
		return o, nil
	}
	return "", fmt.Errorf("no owner identity in request")
}

func ownerFromToken(raw string) (string, error) {
	secret := config.Config.Auth.JWTSecret
	if secret == "" {
		return "", fmt.Errorf("bearer tokens not accepted: no jwtSecret configured")
	}
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return "", fmt.Errorf("invalid bearer token: %w", err)
	}
	email, _ := claims["email"].(string)
	if email == "" {
		return "", fmt.Errorf("bearer token carries no email claim")
	}
	return email, nil
}
