package session

import (
	"github.com/golang-jwt/jwt/v5"
)

// accessClaims is the subset of Keycloak access-token claims the
// console derives authorization state from.
type accessClaims struct {
	RealmAccess struct {
		Roles []string `json:"roles"`
	} `json:"realm_access"`
	PreferredUsername string `json:"preferred_username"`
	jwt.RegisteredClaims
}

// realmRoles extracts the realm role names from a bearer token without
// verifying the signature. The console only uses them for client-side
// gating; the API re-checks every request server-side.
func realmRoles(token string) map[string]struct{} {
	roles := map[string]struct{}{}
	if token == "" {
		return roles
	}

	claims := &accessClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return roles
	}

	for _, r := range claims.RealmAccess.Roles {
		roles[r] = struct{}{}
	}
	return roles
}
