package library

import "time"

// BookStatus is derived by the resource service from outstanding loans.
type BookStatus string

const (
	BookAvailable   BookStatus = "available"
	BookUnavailable BookStatus = "unavailable"
)

// UserStatus is the lifecycle state of a resource-service profile.
type UserStatus string

const (
	UserActive    UserStatus = "active"
	UserInactive  UserStatus = "inactive"
	UserSuspended UserStatus = "suspended"
)

// LoanStatus is the lifecycle state of a loan. LoanOverdue is only ever
// reported by the server; the client never derives it.
type LoanStatus string

const (
	LoanActive   LoanStatus = "active"
	LoanReturned LoanStatus = "returned"
	LoanOverdue  LoanStatus = "overdue"
)

// Category groups books in the catalog.
type Category struct {
	ID          int64  `json:"category_id,omitempty"`
	Name        string `json:"name" validate:"required"`
	Description string `json:"description,omitempty"`
}

// Book is a catalog entry. Status is read-only from the client's point of view.
type Book struct {
	ID              int64      `json:"book_id,omitempty"`
	Title           string     `json:"title" validate:"required"`
	Author          string     `json:"author" validate:"required"`
	ISBN            string     `json:"isbn" validate:"required"`
	PublicationYear int        `json:"publication_year,omitempty" validate:"omitempty,gte=0,lte=9999"`
	CategoryID      int64      `json:"category_id,omitempty"`
	Status          BookStatus `json:"status,omitempty"`
}

// Available reports whether the server last said this book can be borrowed.
func (b Book) Available() bool { return b.Status == BookAvailable }

// User is a library member profile held by the resource service. AuthID links
// it to the identity service's record and never changes once set.
type User struct {
	ID       int64      `json:"user_id,omitempty"`
	FullName string     `json:"full_name" validate:"required"`
	Email    string     `json:"email" validate:"required,email"`
	Phone    string     `json:"phone,omitempty"`
	Status   UserStatus `json:"status,omitempty" validate:"omitempty,oneof=active inactive suspended"`
	AuthID   *int64     `json:"auth_id,omitempty"`
}

// Active reports whether the profile may borrow books.
func (u User) Active() bool { return u.Status == "" || u.Status == UserActive }

// Loan ties a book to a user. ReturnDate is set exactly when Status is returned.
type Loan struct {
	ID         int64      `json:"loan_id,omitempty"`
	BookID     int64      `json:"book_id"`
	UserID     int64      `json:"user_id,omitempty"`
	LoanDate   string     `json:"loan_date,omitempty"`
	ReturnDate string     `json:"return_date,omitempty"`
	Status     LoanStatus `json:"status,omitempty"`
}

// LoanedOn parses LoanDate. The zero time is returned for missing or
// malformed dates.
func (l Loan) LoanedOn() time.Time {
	t, err := time.Parse(DateLayout, l.LoanDate)
	if err != nil {
		return time.Time{}
	}
	return t
}

// DashboardStats is the summary served by /stats/dashboard.
type DashboardStats struct {
	TotalBooks     int `json:"total_books"`
	TotalUsers     int `json:"total_users"`
	ActiveLoans    int `json:"active_loans"`
	AvailableBooks int `json:"available_books"`
}

// Profile is the signed-in operator as derived from the identity service.
type Profile struct {
	ID       string    `json:"id"`
	Email    string    `json:"email"`
	FullName string    `json:"full_name"`
	Role     Role      `json:"role"`
	Expires  time.Time `json:"expires,omitempty"`
}

// DateLayout is the calendar-date format both backends exchange.
const DateLayout = "2006-01-02"
