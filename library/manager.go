package library

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Options wires a LibraryManager to its backends and session storage.
type Options struct {
	APIURL     string
	AuthURL    string
	Timeout    time.Duration
	Limiter    *rate.Limiter
	HTTPClient *http.Client
	Store      Store
	Logger     zerolog.Logger
}

// LibraryManager is a thin façade over the session, the two backend clients
// and the workflows, keeping CLI code simple.
type LibraryManager struct {
	session *Session
	api     *ResourceClient
	auth    *Authenticator
	loans   *LoanWorkflow
	users   *UserDirectory
	store   Store
}

// NewLibraryManager builds the clients and restores any persisted session.
func NewLibraryManager(ctx context.Context, opts Options) (*LibraryManager, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("library: no session store")
	}
	log := opts.Logger

	session := NewSession(opts.Store, log.With().Str("component", "session").Logger())
	if err := session.Hydrate(ctx); err != nil {
		return nil, fmt.Errorf("restore session: %w", err)
	}

	client := func(base string) ClientOptions {
		return ClientOptions{
			BaseURL:    base,
			Timeout:    opts.Timeout,
			Limiter:    opts.Limiter,
			HTTPClient: opts.HTTPClient,
			Logger:     log,
		}
	}
	api := NewResourceClient(client(opts.APIURL), session)
	identity := NewIdentityClient(client(opts.AuthURL))
	provisioner := NewTwoPhaseProvisioner(identity, api, session, log.With().Str("component", "provisioning").Logger())

	return &LibraryManager{
		session: session,
		api:     api,
		auth:    NewAuthenticator(identity, session, log),
		loans:   NewLoanWorkflow(api, log.With().Str("component", "loans").Logger()),
		users:   NewUserDirectory(api, provisioner, log),
		store:   opts.Store,
	}, nil
}

// Close closes the underlying session store.
func (lm *LibraryManager) Close() error { return lm.store.Close() }

// ------------------ Session ------------------

func (lm *LibraryManager) Login(ctx context.Context, email, password string) (*Profile, error) {
	return lm.auth.Login(ctx, email, password)
}

func (lm *LibraryManager) Register(ctx context.Context, su SignUp) (*Profile, error) {
	return lm.auth.Register(ctx, su)
}

func (lm *LibraryManager) Logout(ctx context.Context) error { return lm.auth.Logout(ctx) }
func (lm *LibraryManager) Profile() (Profile, bool)         { return lm.session.Profile() }
func (lm *LibraryManager) Session() *Session                { return lm.session }
func (lm *LibraryManager) IsLibrarian() bool                { return lm.session.Role() == RoleLibrarian }
func (lm *LibraryManager) requireSession() error            { return lm.session.require() }
func (lm *LibraryManager) Stats(ctx context.Context) (*DashboardStats, error) {
	if err := lm.requireSession(); err != nil {
		return nil, err
	}
	return lm.api.Stats(ctx)
}

// ------------------ Categories ------------------

func (lm *LibraryManager) Categories(ctx context.Context) ([]Category, error) {
	return lm.api.Categories(ctx)
}

func (lm *LibraryManager) AddCategory(ctx context.Context, c Category) (*Category, error) {
	if err := Validate(c); err != nil {
		return nil, err
	}
	return lm.api.CreateCategory(ctx, c)
}

// ------------------ Books ------------------

func (lm *LibraryManager) GetBook(ctx context.Context, id int64) (*Book, error) {
	return lm.api.Book(ctx, id)
}

func (lm *LibraryManager) GetAllBooks(ctx context.Context) ([]Book, error) {
	return lm.api.Books(ctx)
}

func (lm *LibraryManager) AvailableBooks(ctx context.Context) ([]Book, error) {
	return lm.api.AvailableBooks(ctx)
}

// SearchBooks asks the server; an empty query returns nothing without a call.
func (lm *LibraryManager) SearchBooks(ctx context.Context, q string) ([]Book, error) {
	if q == "" {
		return []Book{}, nil
	}
	return lm.api.SearchBooks(ctx, q)
}

// AddBook creates a catalog entry. Status is left for the server to set.
func (lm *LibraryManager) AddBook(ctx context.Context, b Book) (*Book, error) {
	b.ID, b.Status = 0, ""
	if err := Validate(b); err != nil {
		return nil, err
	}
	return lm.api.CreateBook(ctx, b)
}

// UpdateBook replaces the editable fields of a book. The status the server
// last reported is sent back unchanged.
func (lm *LibraryManager) UpdateBook(ctx context.Context, id int64, b Book) (*Book, error) {
	if err := Validate(b); err != nil {
		return nil, err
	}
	b.ID = 0
	return lm.api.UpdateBook(ctx, id, b)
}

func (lm *LibraryManager) DeleteBook(ctx context.Context, id int64) error {
	return lm.api.DeleteBook(ctx, id)
}

// ------------------ Users ------------------

func (lm *LibraryManager) GetUser(ctx context.Context, id int64) (*User, error) {
	return lm.users.Get(ctx, id)
}

func (lm *LibraryManager) GetAllUsers(ctx context.Context) ([]User, error) {
	return lm.users.List(ctx)
}

// CreateUser provisions a member in both backends.
func (lm *LibraryManager) CreateUser(ctx context.Context, nu NewUser) (*User, error) {
	if err := lm.requireSession(); err != nil {
		return nil, err
	}
	return lm.users.Create(ctx, nu)
}

func (lm *LibraryManager) UpdateUser(ctx context.Context, existing User, ch ProfileChanges) (*User, error) {
	return lm.users.Update(ctx, existing, ch)
}

func (lm *LibraryManager) DeleteUser(ctx context.Context, id int64) error {
	return lm.users.Delete(ctx, id)
}

// ------------------ Circulation ------------------

func (lm *LibraryManager) CreateLoan(ctx context.Context, req LoanRequest) (*Loan, error) {
	if err := lm.requireSession(); err != nil {
		return nil, err
	}
	return lm.loans.CreateLoan(ctx, req)
}

func (lm *LibraryManager) ReturnLoan(ctx context.Context, id int64) (*Loan, error) {
	if err := lm.requireSession(); err != nil {
		return nil, err
	}
	return lm.loans.ReturnLoan(ctx, id)
}

func (lm *LibraryManager) DeleteLoan(ctx context.Context, id int64) error {
	return lm.loans.DeleteLoan(ctx, id)
}

func (lm *LibraryManager) GetLoan(ctx context.Context, id int64) (*Loan, error) {
	return lm.api.Loan(ctx, id)
}

// ListLoans fetches the listing the signed-in role may read and filters it.
// Title and name lookups are only fetched when a search term is given.
func (lm *LibraryManager) ListLoans(ctx context.Context, f LoanFilter) ([]Loan, error) {
	if err := lm.requireSession(); err != nil {
		return nil, err
	}
	loans, err := lm.loans.ListLoans(ctx, ScopeFor(lm.session.Role()))
	if err != nil {
		return nil, err
	}
	if f.Search != "" && f.Books == nil {
		books, err := lm.api.Books(ctx)
		if err != nil {
			return nil, err
		}
		f.Books = BookIndex(books)
	}
	if f.Search != "" && f.Users == nil && lm.IsLibrarian() {
		users, err := lm.api.Users(ctx)
		if err != nil {
			return nil, err
		}
		f.Users = UserIndex(users)
	}
	return FilterLoans(loans, f), nil
}

// LoanEligibility fetches the book and user and runs the form-time check.
func (lm *LibraryManager) LoanEligibility(ctx context.Context, bookID, userID int64) error {
	book, err := lm.api.Book(ctx, bookID)
	if err != nil {
		return err
	}
	user, err := lm.api.User(ctx, userID)
	if err != nil {
		return err
	}
	return CheckEligibility(*book, *user)
}

// ------------------ Utilities ------------------

// PrettyBook formats a book for lists.
func PrettyBook(b Book) string {
	return fmt.Sprintf("%-5d %-30s %-25s %-15s %-12s", b.ID, Truncate(b.Title, 30), Truncate(b.Author, 25), b.ISBN, b.Status)
}

// Truncate shortens s to at most max runes, ending in "..." when cut.
func Truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}
