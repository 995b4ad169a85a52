// Package identity resolves the authenticated principal for a
// connection. Resolution happens once at connect time; the resulting
// Principal is an immutable value passed explicitly into every
// operation, never re-derived per event.
package identity

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"

	"github.com/corpchat/corpchat/internal/domain"
)

// Principal is the resolved (user, role) pair the core trusts.
type Principal struct {
	UserID      string
	Role        domain.Role
	DisplayName string
}

// IsAdmin reports elevated-role visibility.
func (p Principal) IsAdmin() bool { return p.Role == domain.RoleAdmin }

type Resolver struct {
	secret []byte
}

func NewResolver(secret string) *Resolver {
	return &Resolver{secret: []byte(secret)}
}

// Resolve validates the token and extracts the principal.
func (r *Resolver) Resolve(tokenStr string) (Principal, error) {
	tok, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		return r.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return Principal{}, err
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok || !tok.Valid {
		return Principal{}, errors.New("invalid token")
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		sub, _ = claims["user_id"].(string)
	}
	if sub == "" {
		return Principal{}, errors.New("invalid token: missing subject")
	}
	role := domain.RoleMember
	if v, _ := claims["role"].(string); v == string(domain.RoleAdmin) {
		role = domain.RoleAdmin
	}
	name, _ := claims["name"].(string)
	return Principal{UserID: sub, Role: role, DisplayName: name}, nil
}
