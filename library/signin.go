package library

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// IdentityAPI is the part of the identity service the sign-in flow needs.
type IdentityAPI interface {
	Login(ctx context.Context, cred Credentials) (*AuthResponse, error)
	Register(ctx context.Context, reg Registration) (*AuthResponse, error)
}

// SignUp is a self-registration request.
type SignUp struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
	FullName string `validate:"required"`
	Role     Role   `validate:"required,oneof=librarian user"`
}

// Authenticator signs the operator in and out against the identity service.
type Authenticator struct {
	identity IdentityAPI
	session  *Session
	log      zerolog.Logger
}

func NewAuthenticator(identity IdentityAPI, session *Session, log zerolog.Logger) *Authenticator {
	return &Authenticator{identity: identity, session: session, log: log}
}

// Login exchanges credentials for a token and establishes the session.
// Any failure leaves the session signed out.
func (a *Authenticator) Login(ctx context.Context, email, password string) (*Profile, error) {
	cred := Credentials{Username: strings.TrimSpace(email), Password: password}
	if err := Validate(cred); err != nil {
		return nil, err
	}

	resp, err := a.identity.Login(ctx, cred)
	if err != nil {
		a.signOutAfterFailure(ctx)
		return nil, err
	}
	return a.establish(ctx, resp, cred.Username, "")
}

// Register creates an identity for the operator and signs them in.
func (a *Authenticator) Register(ctx context.Context, su SignUp) (*Profile, error) {
	su.Email = strings.TrimSpace(su.Email)
	if err := Validate(su); err != nil {
		return nil, err
	}

	resp, err := a.identity.Register(ctx, Registration{
		Email:    su.Email,
		Password: su.Password,
		FullName: su.FullName,
		Role:     su.Role.backendRole(),
	})
	if err != nil {
		return nil, err
	}
	return a.establish(ctx, resp, su.Email, su.FullName)
}

// Logout clears the session. The identity service is not contacted.
func (a *Authenticator) Logout(ctx context.Context) error {
	return a.session.Clear(ctx)
}

func (a *Authenticator) establish(ctx context.Context, resp *AuthResponse, email, fullName string) (*Profile, error) {
	p, err := profileFromToken(resp, email, fullName)
	if err != nil {
		a.signOutAfterFailure(ctx)
		return nil, err
	}
	if err := a.session.Establish(ctx, resp.Token, p); err != nil {
		return nil, err
	}
	a.log.Info().Str("email", p.Email).Str("role", string(p.Role)).Msg("signed in")
	return &p, nil
}

func (a *Authenticator) signOutAfterFailure(ctx context.Context) {
	if err := a.session.Clear(ctx); err != nil {
		a.log.Error().Err(err).Msg("clear session after failed sign-in")
	}
}

// profileFromToken derives the operator profile from the token claims,
// falling back to the response fields and the typed email.
func profileFromToken(resp *AuthResponse, email, fullName string) (Profile, error) {
	claims, err := DecodeClaims(resp.Token)
	if err != nil {
		return Profile{}, err
	}

	role := claims.RoleClaim()
	if role == "" {
		role = resp.Role
	}

	p := Profile{
		Email:    firstNonEmpty(resp.Email, email, claims.Subject),
		FullName: fullName,
		Role:     MapRole(role),
		Expires:  claims.Expiry(),
	}
	if id, ok := claims.IdentityID(); ok {
		p.ID = strconv.FormatInt(id, 10)
	} else {
		p.ID = claims.Subject
	}
	if p.FullName == "" {
		p.FullName, _, _ = strings.Cut(p.Email, "@")
	}
	if p.Email == "" {
		return Profile{}, fmt.Errorf("token carries no subject and no email was given")
	}
	return p, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
