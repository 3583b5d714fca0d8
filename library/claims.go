package library

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the payload segment of a token issued by the identity service.
// The client reads it without checking the signature; the resource service
// is the one that verifies tokens.
type Claims struct {
	AuthID      any      `json:"auth_id,omitempty"`
	UserID      any      `json:"userId,omitempty"`
	Role        string   `json:"role,omitempty"`
	Authorities []string `json:"authorities,omitempty"`
	jwt.RegisteredClaims
}

var unverified = jwt.NewParser(jwt.WithJSONNumber())

// DecodeClaims base64-decodes and parses the claims segment of token.
func DecodeClaims(token string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := unverified.ParseUnverified(strings.TrimSpace(token), claims); err != nil {
		return nil, fmt.Errorf("decode token claims: %w", err)
	}
	return claims, nil
}

// IdentityID returns the numeric identity reference carried by the token,
// trying auth_id, then userId, then a numeric subject.
func (c *Claims) IdentityID() (int64, bool) {
	for _, v := range []any{c.AuthID, c.UserID, c.Subject} {
		if id, ok := asInt64(v); ok {
			return id, true
		}
	}
	return 0, false
}

// RoleClaim returns the first recognised role in the token: the role claim
// itself, then the authorities list. Empty when neither is recognised.
func (c *Claims) RoleClaim() string {
	if knownRole(c.Role) {
		return c.Role
	}
	for _, a := range c.Authorities {
		if knownRole(a) {
			return a
		}
	}
	return ""
}

// Expiry is the token expiry, zero when absent.
func (c *Claims) Expiry() time.Time {
	if c.RegisteredClaims.ExpiresAt == nil {
		return time.Time{}
	}
	return c.RegisteredClaims.ExpiresAt.Time
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		if f, err := n.Float64(); err == nil && f == float64(int64(f)) {
			return int64(f), true
		}
	case float64:
		if n == float64(int64(n)) {
			return int64(n), true
		}
	case string:
		if i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64); err == nil {
			return i, true
		}
	}
	return 0, false
}
