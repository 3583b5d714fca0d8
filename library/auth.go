package library

import (
	"context"
	"fmt"
	"net/http"
)

// Credentials is the body of POST /auth/login. The identity service keys
// accounts by email, sent as username.
type Credentials struct {
	Username string `json:"username" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Registration is the body of POST /auth/register. Both email and username
// carry the address because the identity service has accepted either.
type Registration struct {
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username"`
	Password string `json:"password" validate:"required"`
	FullName string `json:"fullName,omitempty"`
	Role     string `json:"role" validate:"required,oneof=ADMIN USER"`
}

// AuthResponse is what both identity endpoints return.
type AuthResponse struct {
	Token string `json:"token"`
	Role  string `json:"role,omitempty"`
	Email string `json:"email,omitempty"`
}

// IdentityClient talks to the identity service. It never attaches a bearer
// token: login and register must not carry a stale one.
type IdentityClient struct {
	ep *endpoint
}

func NewIdentityClient(opts ClientOptions) *IdentityClient {
	return &IdentityClient{ep: newEndpoint(ServiceIdentity, opts)}
}

func (c *IdentityClient) Login(ctx context.Context, cred Credentials) (*AuthResponse, error) {
	return c.post(ctx, "/auth/login", cred)
}

func (c *IdentityClient) Register(ctx context.Context, reg Registration) (*AuthResponse, error) {
	if reg.Username == "" {
		reg.Username = reg.Email
	}
	return c.post(ctx, "/auth/register", reg)
}

func (c *IdentityClient) post(ctx context.Context, path string, body any) (*AuthResponse, error) {
	var out AuthResponse
	if err := c.ep.do(ctx, http.MethodPost, path, "", body, &out); err != nil {
		return nil, err
	}
	if out.Token == "" {
		return nil, fmt.Errorf("%s: response carried no token", path)
	}
	return &out, nil
}
