package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/example/fleet-tracking/internal/models"
)

// ErrAuthentication is returned for any missing or invalid credential.
// Fatal to the connection attempt; authentication is evaluated exactly
// once at connection establishment.
var ErrAuthentication = errors.New("authentication error")

// Claims is the signed payload the identity collaborator issues. It
// carries the full actor triple so the engine never needs a user store.
type Claims struct {
	Username string      `json:"username"`
	Role     models.Role `json:"role"`
	jwt.RegisteredClaims
}

// Resolver verifies handshake credentials into Actors.
type Resolver struct {
	secret []byte
}

func NewResolver(secret string) *Resolver { return &Resolver{secret: []byte(secret)} }

// Resolve verifies a signed token and returns the actor it names.
func (r *Resolver) Resolve(token string) (models.Actor, error) {
	if token == "" {
		return models.Actor{}, ErrAuthentication
	}
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return r.secret, nil
	})
	if err != nil || !parsed.Valid {
		return models.Actor{}, ErrAuthentication
	}
	if claims.Subject == "" || claims.Username == "" || !claims.Role.Valid() {
		return models.Actor{}, ErrAuthentication
	}
	return models.Actor{ID: claims.Subject, Username: claims.Username, Role: claims.Role}, nil
}

// ResolveRequest extracts the credential from the handshake request:
// the token cookie set by the identity collaborator, or a bearer header
// for non-browser clients.
func (r *Resolver) ResolveRequest(req *http.Request) (models.Actor, error) {
	if c, err := req.Cookie("token"); err == nil && c.Value != "" {
		return r.Resolve(c.Value)
	}
	if h := req.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return r.Resolve(strings.TrimPrefix(h, "Bearer "))
	}
	return models.Actor{}, ErrAuthentication
}
