package library

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"library-client/metrics"
)

// NewUser is what an operator fills in to create a member.
type NewUser struct {
	FullName string `validate:"required"`
	Email    string `validate:"required,email"`
	Phone    string
	Password string `validate:"required"`
	Role     Role   `validate:"required,oneof=librarian user"`
}

// Provisioner creates a user that exists in both the identity service and
// the resource service. Implementations decide what happens on partial
// failure; callers only see the outcome.
type Provisioner interface {
	Provision(ctx context.Context, nu NewUser) (*User, error)
}

// Registrar and ProfileWriter are the two halves a provisioner drives.
type Registrar interface {
	Register(ctx context.Context, reg Registration) (*AuthResponse, error)
}

type ProfileWriter interface {
	CreateUser(ctx context.Context, u User) (*User, error)
}

// TokenLender lends the current bearer slot to another token.
type TokenLender interface {
	Borrow(token string) (restore func())
}

// TwoPhaseProvisioner registers the identity, reads its id from the issued
// token, then creates the profile under that token. There is no rollback: a
// failure after registration leaves an orphaned identity, which is logged
// and counted.
type TwoPhaseProvisioner struct {
	identity Registrar
	profiles ProfileWriter
	lender   TokenLender
	log      zerolog.Logger

	// mu keeps two provisioning runs from lending the bearer slot at once.
	mu sync.Mutex
}

func NewTwoPhaseProvisioner(identity Registrar, profiles ProfileWriter, lender TokenLender, log zerolog.Logger) *TwoPhaseProvisioner {
	return &TwoPhaseProvisioner{identity: identity, profiles: profiles, lender: lender, log: log}
}

func (p *TwoPhaseProvisioner) Provision(ctx context.Context, nu NewUser) (*User, error) {
	nu.Email = strings.TrimSpace(nu.Email)
	if err := Validate(nu); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	resp, err := p.identity.Register(ctx, Registration{
		Email:    nu.Email,
		Password: nu.Password,
		FullName: nu.FullName,
		Role:     nu.Role.backendRole(),
	})
	if err != nil {
		return nil, fmt.Errorf("register identity: %w", err)
	}

	authID, err := identityFromToken(resp.Token)
	if err != nil {
		p.orphaned(nu.Email, err)
		return nil, fmt.Errorf("%w: %w", ErrOrphanedIdentity, err)
	}

	restore := p.lender.Borrow(resp.Token)
	defer restore()

	user, err := p.profiles.CreateUser(ctx, User{
		FullName: nu.FullName,
		Email:    nu.Email,
		Phone:    nu.Phone,
		Status:   UserActive,
		AuthID:   &authID,
	})
	if err != nil {
		p.orphaned(nu.Email, err)
		return nil, fmt.Errorf("%w: create profile: %w", ErrOrphanedIdentity, err)
	}

	p.log.Info().Int64("user_id", user.ID).Int64("auth_id", authID).Msg("user provisioned")
	return user, nil
}

func (p *TwoPhaseProvisioner) orphaned(email string, cause error) {
	metrics.OrphanedIdentitiesTotal.Inc()
	p.log.Error().Err(cause).Str("email", email).Msg(ErrOrphanedIdentity.Error())
}

func identityFromToken(token string) (int64, error) {
	claims, err := DecodeClaims(token)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMissingIdentity, err)
	}
	id, ok := claims.IdentityID()
	if !ok {
		return 0, ErrMissingIdentity
	}
	return id, nil
}

// ------------------ Directory ------------------

// UserAPI is the user half of the resource service.
type UserAPI interface {
	Users(ctx context.Context) ([]User, error)
	User(ctx context.Context, id int64) (*User, error)
	UpdateUser(ctx context.Context, id int64, u User) (*User, error)
	DeleteUser(ctx context.Context, id int64) error
}

// ProfileChanges are the editable profile fields. Nil means unchanged.
type ProfileChanges struct {
	FullName *string
	Email    *string
	Phone    *string
	Status   *UserStatus
}

// UserDirectory manages members. Creation goes through the Provisioner; edits
// and deletes only ever touch the resource service.
type UserDirectory struct {
	api         UserAPI
	provisioner Provisioner
	log         zerolog.Logger
}

func NewUserDirectory(api UserAPI, provisioner Provisioner, log zerolog.Logger) *UserDirectory {
	return &UserDirectory{api: api, provisioner: provisioner, log: log}
}

func (d *UserDirectory) List(ctx context.Context) ([]User, error) { return d.api.Users(ctx) }

func (d *UserDirectory) Get(ctx context.Context, id int64) (*User, error) { return d.api.User(ctx, id) }

func (d *UserDirectory) Create(ctx context.Context, nu NewUser) (*User, error) {
	return d.provisioner.Provision(ctx, nu)
}

// Update edits profile fields of existing. The identity link is carried over
// from existing and cannot be changed here.
func (d *UserDirectory) Update(ctx context.Context, existing User, ch ProfileChanges) (*User, error) {
	u := User{
		FullName: existing.FullName,
		Email:    existing.Email,
		Phone:    existing.Phone,
		Status:   existing.Status,
		AuthID:   existing.AuthID,
	}
	if ch.FullName != nil {
		u.FullName = strings.TrimSpace(*ch.FullName)
	}
	if ch.Email != nil {
		u.Email = strings.TrimSpace(*ch.Email)
	}
	if ch.Phone != nil {
		u.Phone = strings.TrimSpace(*ch.Phone)
	}
	if ch.Status != nil {
		u.Status = *ch.Status
	}
	if u.Status == "" {
		u.Status = UserActive
	}
	if err := Validate(u); err != nil {
		return nil, err
	}
	return d.api.UpdateUser(ctx, existing.ID, u)
}

// Delete removes the profile only. The identity record stays behind.
func (d *UserDirectory) Delete(ctx context.Context, id int64) error {
	if err := d.api.DeleteUser(ctx, id); err != nil {
		return err
	}
	d.log.Info().Int64("user_id", id).Msg("profile deleted, identity kept")
	return nil
}

// FilterUsers keeps users whose name, email, phone or identity id contains
// term, case-insensitively.
func FilterUsers(users []User, term string) []User {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return users
	}
	var out []User
	for _, u := range users {
		switch {
		case strings.Contains(strings.ToLower(u.FullName), term),
			strings.Contains(strings.ToLower(u.Email), term),
			u.Phone != "" && strings.Contains(u.Phone, term),
			u.AuthID != nil && strings.Contains(strconv.FormatInt(*u.AuthID, 10), term):
			out = append(out, u)
		}
	}
	return out
}

// FilterBooks keeps books whose title, author or ISBN contains term.
func FilterBooks(books []Book, term string) []Book {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return books
	}
	var out []Book
	for _, b := range books {
		if strings.Contains(strings.ToLower(b.Title), term) ||
			strings.Contains(strings.ToLower(b.Author), term) ||
			strings.Contains(strings.ToLower(b.ISBN), term) {
			out = append(out, b)
		}
	}
	return out
}
