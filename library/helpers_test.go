package library

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

func tempStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	s, err := NewSQLiteStore(filepath.Join(dir, "session.db"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// mintToken signs claims the way the identity service would. The client
// never verifies the signature, so the key is arbitrary.
func mintToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	if _, ok := claims["exp"]; !ok {
		claims["exp"] = time.Now().Add(time.Hour).Unix()
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func pathID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id
}

// fakeResource is an in-memory resource service. Only tokens in accepted get
// through; everything else is answered 401.
type fakeResource struct {
	mu       sync.Mutex
	accepted map[string]bool
	seen     []string // Authorization headers, in order
	books    map[int64]Book
	users    map[int64]User
	loans    map[int64]Loan
	nextID   int64

	// failUserCreate, when set, makes POST /users/ answer with this status.
	failUserCreate int
	userCreates    int
	createdBy      []string // bearer tokens used for POST /users/
}

func newFakeResource() *fakeResource {
	return &fakeResource{
		accepted: map[string]bool{},
		books:    map[int64]Book{},
		users:    map[int64]User{},
		loans:    map[int64]Loan{},
		nextID:   100,
	}
}

func (f *fakeResource) accept(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accepted[token] = true
}

func (f *fakeResource) revoke(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.accepted, token)
}

func (f *fakeResource) addBook(b Book) Book {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	b.ID = f.nextID
	if b.Status == "" {
		b.Status = BookAvailable
	}
	f.books[b.ID] = b
	return b
}

func (f *fakeResource) addUser(u User) User {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	u.ID = f.nextID
	f.users[u.ID] = u
	return u
}

func (f *fakeResource) addLoan(l Loan) Loan {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	l.ID = f.nextID
	f.loans[l.ID] = l
	return l
}

func (f *fakeResource) lastAuth() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.seen) == 0 {
		return ""
	}
	return f.seen[len(f.seen)-1]
}

// guard takes the lock and answers 401 unless the bearer token is accepted.
func (f *fakeResource) guard(h func(w http.ResponseWriter, r *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		auth := r.Header.Get("Authorization")
		f.seen = append(f.seen, auth)
		if !f.accepted[strings.TrimPrefix(auth, "Bearer ")] {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid token"})
			return
		}
		h(w, r)
	}
}

func (f *fakeResource) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("GET /books/{$}", f.guard(func(w http.ResponseWriter, r *http.Request) {
		out := []Book{}
		for _, b := range f.books {
			out = append(out, b)
		}
		writeJSON(w, http.StatusOK, out)
	}))
	mux.HandleFunc("GET /books/{id}", f.guard(func(w http.ResponseWriter, r *http.Request) {
		b, ok := f.books[pathID(r)]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Book not found"})
			return
		}
		writeJSON(w, http.StatusOK, b)
	}))
	mux.HandleFunc("GET /books/search", f.guard(func(w http.ResponseWriter, r *http.Request) {
		q := strings.ToLower(r.URL.Query().Get("search"))
		out := []Book{}
		for _, b := range f.books {
			if strings.Contains(strings.ToLower(b.Title), q) {
				out = append(out, b)
			}
		}
		writeJSON(w, http.StatusOK, out)
	}))
	mux.HandleFunc("POST /books/{$}", f.guard(func(w http.ResponseWriter, r *http.Request) {
		var b Book
		json.NewDecoder(r.Body).Decode(&b)
		f.nextID++
		b.ID, b.Status = f.nextID, BookAvailable
		f.books[b.ID] = b
		writeJSON(w, http.StatusCreated, b)
	}))

	mux.HandleFunc("GET /users/{$}", f.guard(func(w http.ResponseWriter, r *http.Request) {
		out := []User{}
		for _, u := range f.users {
			out = append(out, u)
		}
		writeJSON(w, http.StatusOK, out)
	}))
	mux.HandleFunc("GET /users/{id}", f.guard(func(w http.ResponseWriter, r *http.Request) {
		u, ok := f.users[pathID(r)]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"detail": "User not found"})
			return
		}
		writeJSON(w, http.StatusOK, u)
	}))
	mux.HandleFunc("POST /users/{$}", f.guard(func(w http.ResponseWriter, r *http.Request) {
		f.userCreates++
		f.createdBy = append(f.createdBy, strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
		if f.failUserCreate != 0 {
			writeJSON(w, f.failUserCreate, map[string]string{"error": "Email already registered"})
			return
		}
		var u User
		json.NewDecoder(r.Body).Decode(&u)
		f.nextID++
		u.ID = f.nextID
		f.users[u.ID] = u
		writeJSON(w, http.StatusCreated, u)
	}))
	mux.HandleFunc("PUT /users/{id}", f.guard(func(w http.ResponseWriter, r *http.Request) {
		id := pathID(r)
		if _, ok := f.users[id]; !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"detail": "User not found"})
			return
		}
		var u User
		json.NewDecoder(r.Body).Decode(&u)
		u.ID = id
		f.users[id] = u
		writeJSON(w, http.StatusOK, u)
	}))
	mux.HandleFunc("DELETE /users/{id}", f.guard(func(w http.ResponseWriter, r *http.Request) {
		delete(f.users, pathID(r))
		writeJSON(w, http.StatusOK, map[string]string{"message": "User deleted"})
	}))

	listLoans := func(filter func(Loan) bool) http.HandlerFunc {
		return f.guard(func(w http.ResponseWriter, r *http.Request) {
			out := []Loan{}
			for _, l := range f.loans {
				if filter(l) {
					out = append(out, l)
				}
			}
			writeJSON(w, http.StatusOK, out)
		})
	}
	mux.HandleFunc("GET /loans/{$}", listLoans(func(Loan) bool { return true }))
	mux.HandleFunc("GET /loans/me", listLoans(func(Loan) bool { return true }))
	mux.HandleFunc("GET /loans/active", listLoans(func(l Loan) bool { return l.Status == LoanActive }))
	mux.HandleFunc("POST /loans/{$}", f.guard(func(w http.ResponseWriter, r *http.Request) {
		var req LoanRequest
		json.NewDecoder(r.Body).Decode(&req)
		b, ok := f.books[req.BookID]
		if !ok || !b.Available() {
			writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Book not available"})
			return
		}
		if u, ok := f.users[req.UserID]; ok && !u.Active() {
			writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "User is not active"})
			return
		}
		b.Status = BookUnavailable
		f.books[b.ID] = b
		f.nextID++
		l := Loan{ID: f.nextID, BookID: req.BookID, UserID: req.UserID, LoanDate: "2026-10-19", Status: LoanActive}
		f.loans[l.ID] = l
		writeJSON(w, http.StatusCreated, l)
	}))
	mux.HandleFunc("PUT /loans/return/{id}", f.guard(func(w http.ResponseWriter, r *http.Request) {
		l, ok := f.loans[pathID(r)]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Loan not found"})
			return
		}
		if l.Status == LoanReturned {
			writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Loan already returned"})
			return
		}
		l.Status, l.ReturnDate = LoanReturned, "2026-10-20"
		f.loans[l.ID] = l
		if b, ok := f.books[l.BookID]; ok {
			b.Status = BookAvailable
			f.books[b.ID] = b
		}
		writeJSON(w, http.StatusOK, l)
	}))
	mux.HandleFunc("GET /stats/dashboard", f.guard(func(w http.ResponseWriter, r *http.Request) {
		s := DashboardStats{TotalBooks: len(f.books), TotalUsers: len(f.users)}
		for _, b := range f.books {
			if b.Available() {
				s.AvailableBooks++
			}
		}
		for _, l := range f.loans {
			if l.Status == LoanActive {
				s.ActiveLoans++
			}
		}
		writeJSON(w, http.StatusOK, s)
	}))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// fakeIdentity issues tokens and registers them with the resource fake so
// they are accepted there.
type fakeIdentity struct {
	t        *testing.T
	resource *fakeResource

	mu        sync.Mutex
	accounts  map[string]account
	nextID    int64
	seenAuth  []string
	noIDClaim bool // issue tokens without any numeric identity claim
}

type account struct {
	id       int64
	password string
	role     string
}

func newFakeIdentity(t *testing.T, resource *fakeResource) *fakeIdentity {
	return &fakeIdentity{t: t, resource: resource, accounts: map[string]account{}, nextID: 40}
}

func (f *fakeIdentity) addAccount(email, password, role string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.accounts[email] = account{id: f.nextID, password: password, role: role}
	return f.nextID
}

func (f *fakeIdentity) issue(email string, acc account) string {
	claims := jwt.MapClaims{
		"sub":         email,
		"authorities": []string{"ROLE_" + acc.role},
		"iat":         time.Now().Unix(),
	}
	if !f.noIDClaim {
		claims["auth_id"] = acc.id
	}
	tok := mintToken(f.t, claims)
	f.resource.accept(tok)
	return tok
}

func (f *fakeIdentity) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.seenAuth = append(f.seenAuth, r.Header.Get("Authorization"))
		var cred Credentials
		json.NewDecoder(r.Body).Decode(&cred)
		acc, ok := f.accounts[cred.Username]
		if !ok || acc.password != cred.Password {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Bad credentials"})
			return
		}
		writeJSON(w, http.StatusOK, AuthResponse{Token: f.issue(cred.Username, acc)})
	})
	mux.HandleFunc("POST /auth/register", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.seenAuth = append(f.seenAuth, r.Header.Get("Authorization"))
		var reg Registration
		json.NewDecoder(r.Body).Decode(&reg)
		if _, exists := f.accounts[reg.Email]; exists {
			writeJSON(w, http.StatusConflict, map[string]string{"message": "Email already in use"})
			return
		}
		f.nextID++
		acc := account{id: f.nextID, password: reg.Password, role: reg.Role}
		f.accounts[reg.Email] = acc
		writeJSON(w, http.StatusOK, AuthResponse{Token: f.issue(reg.Email, acc), Role: reg.Role, Email: reg.Email})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// testEnv is a manager wired to both fakes over a temporary session store.
type testEnv struct {
	mgr      *LibraryManager
	store    *SQLiteStore
	resource *fakeResource
	identity *fakeIdentity
	apiURL   string
	authURL  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	res := newFakeResource()
	id := newFakeIdentity(t, res)
	env := &testEnv{
		store:    tempStore(t),
		resource: res,
		identity: id,
		apiURL:   res.server(t).URL,
		authURL:  id.server(t).URL,
	}
	env.mgr = env.open(t, env.store)
	return env
}

// open builds a fresh manager over store, as a new CLI process would.
func (e *testEnv) open(t *testing.T, store Store) *LibraryManager {
	t.Helper()
	mgr, err := NewLibraryManager(context.Background(), Options{
		APIURL:  e.apiURL,
		AuthURL: e.authURL,
		Timeout: 5 * time.Second,
		Store:   store,
		Logger:  zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	return mgr
}

// signIn creates an account in the identity fake and logs the manager in.
func (e *testEnv) signIn(t *testing.T, email, role string) *Profile {
	t.Helper()
	e.identity.addAccount(email, "secret", role)
	p, err := e.mgr.Login(context.Background(), email, "secret")
	if err != nil {
		t.Fatalf("login %s: %v", email, err)
	}
	return p
}

func ptr[T any](v T) *T { return &v }
