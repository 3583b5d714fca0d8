package library

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// LoanAPI is the part of the resource service the loan workflow needs.
type LoanAPI interface {
	Loans(ctx context.Context) ([]Loan, error)
	MyLoans(ctx context.Context) ([]Loan, error)
	ActiveLoans(ctx context.Context) ([]Loan, error)
	CreateLoan(ctx context.Context, req LoanRequest) (*Loan, error)
	ReturnLoan(ctx context.Context, id int64) (*Loan, error)
	DeleteLoan(ctx context.Context, id int64) error
}

// LoanScope selects which listing endpoint is used.
type LoanScope string

const (
	LoanScopeAll    LoanScope = "all"
	LoanScopeMine   LoanScope = "mine"
	LoanScopeActive LoanScope = "active"
)

// ScopeFor picks the widest listing role may read.
func ScopeFor(role Role) LoanScope {
	if role == RoleLibrarian {
		return LoanScopeAll
	}
	return LoanScopeMine
}

// LoanWorkflow mediates borrowing and returning. Availability is enforced by
// the resource service; the workflow neither locks nor retries.
type LoanWorkflow struct {
	api LoanAPI
	log zerolog.Logger
}

func NewLoanWorkflow(api LoanAPI, log zerolog.Logger) *LoanWorkflow {
	return &LoanWorkflow{api: api, log: log}
}

// CheckEligibility is the form-time hint: the book must read available and
// the user active. It says nothing about what the server will decide.
func CheckEligibility(book Book, user User) error {
	var errs []error
	if !book.Available() {
		errs = append(errs, fmt.Errorf("%w: %q is %s", ErrBookUnavailable, book.Title, book.Status))
	}
	if !user.Active() {
		errs = append(errs, fmt.Errorf("%w: %s is %s", ErrUserInactive, user.FullName, user.Status))
	}
	return errors.Join(errs...)
}

// CreateLoan asks the server to lend a book. A server rejection is reported
// as ErrLoanRejected without telling the causes apart.
func (w *LoanWorkflow) CreateLoan(ctx context.Context, req LoanRequest) (*Loan, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}

	loan, err := w.api.CreateLoan(ctx, req)
	if err != nil {
		var ae *APIError
		if errors.As(err, &ae) && ae.Status != http.StatusUnauthorized {
			w.log.Warn().Int64("book_id", req.BookID).Int("status", ae.Status).Msg("loan rejected")
			return nil, fmt.Errorf("%w: %w", ErrLoanRejected, err)
		}
		return nil, err
	}
	w.log.Info().Int64("loan_id", loan.ID).Int64("book_id", loan.BookID).Msg("loan created")
	return loan, nil
}

// ReturnLoan marks a loan returned. No check is made that it was active; the
// server's answer is relayed as is.
func (w *LoanWorkflow) ReturnLoan(ctx context.Context, id int64) (*Loan, error) {
	loan, err := w.api.ReturnLoan(ctx, id)
	if err != nil {
		return nil, err
	}
	w.log.Info().Int64("loan_id", id).Msg("loan returned")
	return loan, nil
}

func (w *LoanWorkflow) DeleteLoan(ctx context.Context, id int64) error {
	return w.api.DeleteLoan(ctx, id)
}

// ListLoans fetches a full listing. There is no pagination.
func (w *LoanWorkflow) ListLoans(ctx context.Context, scope LoanScope) ([]Loan, error) {
	switch scope {
	case LoanScopeAll:
		return w.api.Loans(ctx)
	case LoanScopeActive:
		return w.api.ActiveLoans(ctx)
	case LoanScopeMine, "":
		return w.api.MyLoans(ctx)
	}
	return nil, fmt.Errorf("%w: unknown loan scope %q", ErrValidation, scope)
}

// LoanFilter narrows a fetched listing client-side. Books and Users are
// lookups used to match Search against titles and names.
type LoanFilter struct {
	Status LoanStatus
	Search string
	Books  map[int64]Book
	Users  map[int64]User
}

// FilterLoans returns the loans matching f, most recent first. loans is not
// modified.
func FilterLoans(loans []Loan, f LoanFilter) []Loan {
	term := strings.ToLower(strings.TrimSpace(f.Search))
	out := make([]Loan, 0, len(loans))
	for _, l := range loans {
		if f.Status != "" && f.Status != "all" && l.Status != f.Status {
			continue
		}
		if term != "" && !loanMatches(l, term, f) {
			continue
		}
		out = append(out, l)
	}
	sort.SliceStable(out, func(i, j int) bool {
		ti, tj := out[i].LoanedOn(), out[j].LoanedOn()
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func loanMatches(l Loan, term string, f LoanFilter) bool {
	if b, ok := f.Books[l.BookID]; ok && strings.Contains(strings.ToLower(b.Title), term) {
		return true
	}
	if u, ok := f.Users[l.UserID]; ok && strings.Contains(strings.ToLower(u.FullName), term) {
		return true
	}
	return strconv.FormatInt(l.ID, 10) == term
}

// BookIndex and UserIndex key a listing by id for LoanFilter.
func BookIndex(books []Book) map[int64]Book {
	m := make(map[int64]Book, len(books))
	for _, b := range books {
		m[b.ID] = b
	}
	return m
}

func UserIndex(users []User) map[int64]User {
	m := make(map[int64]User, len(users))
	for _, u := range users {
		m[u.ID] = u
	}
	return m
}
