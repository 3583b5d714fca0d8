package library

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
)

// Bearer supplies the token for resource-service calls and is told when the
// service rejects it.
type Bearer interface {
	Token() string
	Rejected(ctx context.Context)
}

// ResourceClient is a typed wrapper over the resource service's REST API.
type ResourceClient struct {
	ep     *endpoint
	bearer Bearer
}

// NewResourceClient builds a client for the resource service. bearer may be
// nil, in which case requests go out without credentials.
func NewResourceClient(opts ClientOptions, bearer Bearer) *ResourceClient {
	return &ResourceClient{ep: newEndpoint(ServiceResource, opts), bearer: bearer}
}

func (c *ResourceClient) call(ctx context.Context, method, path string, in, out any) error {
	var token string
	if c.bearer != nil {
		token = c.bearer.Token()
	}
	err := c.ep.do(ctx, method, path, token, in, out)
	var ae *APIError
	if errors.As(err, &ae) && ae.Status == http.StatusUnauthorized && c.bearer != nil {
		c.bearer.Rejected(ctx)
	}
	return err
}

func getList[T any](ctx context.Context, c *ResourceClient, path string) ([]T, error) {
	var out []T
	if err := c.call(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type messageResponse struct {
	Message string `json:"message"`
}

// ------------------ Categories ------------------

func (c *ResourceClient) Categories(ctx context.Context) ([]Category, error) {
	return getList[Category](ctx, c, "/categories/")
}

func (c *ResourceClient) CreateCategory(ctx context.Context, cat Category) (*Category, error) {
	var out Category
	if err := c.call(ctx, http.MethodPost, "/categories/", cat, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ------------------ Users ------------------

func (c *ResourceClient) Users(ctx context.Context) ([]User, error) {
	return getList[User](ctx, c, "/users/")
}

func (c *ResourceClient) User(ctx context.Context, id int64) (*User, error) {
	var out User
	if err := c.call(ctx, http.MethodGet, fmt.Sprintf("/users/%d", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *ResourceClient) CreateUser(ctx context.Context, u User) (*User, error) {
	var out User
	if err := c.call(ctx, http.MethodPost, "/users/", u, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *ResourceClient) UpdateUser(ctx context.Context, id int64, u User) (*User, error) {
	var out User
	if err := c.call(ctx, http.MethodPut, fmt.Sprintf("/users/%d", id), u, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *ResourceClient) DeleteUser(ctx context.Context, id int64) error {
	return c.call(ctx, http.MethodDelete, fmt.Sprintf("/users/%d", id), nil, &messageResponse{})
}

// ------------------ Books ------------------

func (c *ResourceClient) Books(ctx context.Context) ([]Book, error) {
	return getList[Book](ctx, c, "/books/")
}

func (c *ResourceClient) Book(ctx context.Context, id int64) (*Book, error) {
	var out Book
	if err := c.call(ctx, http.MethodGet, fmt.Sprintf("/books/%d", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *ResourceClient) CreateBook(ctx context.Context, b Book) (*Book, error) {
	var out Book
	if err := c.call(ctx, http.MethodPost, "/books/", b, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *ResourceClient) UpdateBook(ctx context.Context, id int64, b Book) (*Book, error) {
	var out Book
	if err := c.call(ctx, http.MethodPut, fmt.Sprintf("/books/%d", id), b, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *ResourceClient) DeleteBook(ctx context.Context, id int64) error {
	return c.call(ctx, http.MethodDelete, fmt.Sprintf("/books/%d", id), nil, &messageResponse{})
}

func (c *ResourceClient) AvailableBooks(ctx context.Context) ([]Book, error) {
	return getList[Book](ctx, c, "/books/available")
}

func (c *ResourceClient) SearchBooks(ctx context.Context, q string) ([]Book, error) {
	return getList[Book](ctx, c, "/books/search?search="+url.QueryEscape(q))
}

// ------------------ Loans ------------------

// LoanRequest is the body of POST /loans/. UserID is ignored by servers that
// take the borrower from the token.
type LoanRequest struct {
	BookID   int64  `json:"book_id" validate:"required,gt=0"`
	UserID   int64  `json:"user_id,omitempty" validate:"omitempty,gt=0"`
	LoanDate string `json:"loan_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// Loans lists every loan. Librarians only.
func (c *ResourceClient) Loans(ctx context.Context) ([]Loan, error) {
	return getList[Loan](ctx, c, "/loans/")
}

// MyLoans lists the loans of the signed-in user.
func (c *ResourceClient) MyLoans(ctx context.Context) ([]Loan, error) {
	return getList[Loan](ctx, c, "/loans/me")
}

func (c *ResourceClient) ActiveLoans(ctx context.Context) ([]Loan, error) {
	return getList[Loan](ctx, c, "/loans/active")
}

func (c *ResourceClient) Loan(ctx context.Context, id int64) (*Loan, error) {
	var out Loan
	if err := c.call(ctx, http.MethodGet, fmt.Sprintf("/loans/%d", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *ResourceClient) CreateLoan(ctx context.Context, req LoanRequest) (*Loan, error) {
	var out Loan
	if err := c.call(ctx, http.MethodPost, "/loans/", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *ResourceClient) ReturnLoan(ctx context.Context, id int64) (*Loan, error) {
	var out Loan
	if err := c.call(ctx, http.MethodPut, fmt.Sprintf("/loans/return/%d", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *ResourceClient) DeleteLoan(ctx context.Context, id int64) error {
	return c.call(ctx, http.MethodDelete, fmt.Sprintf("/loans/%d", id), nil, &messageResponse{})
}

// ------------------ Stats ------------------

func (c *ResourceClient) Stats(ctx context.Context) (*DashboardStats, error) {
	var out DashboardStats
	if err := c.call(ctx, http.MethodGet, "/stats/dashboard", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
