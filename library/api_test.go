package library

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// staticBearer hands out a fixed token and counts rejections.
type staticBearer struct {
	token    string
	rejected int
}

func (b *staticBearer) Token() string                { return b.token }
func (b *staticBearer) Rejected(ctx context.Context) { b.rejected++ }

func newTestResourceClient(url string, bearer Bearer) *ResourceClient {
	return NewResourceClient(ClientOptions{BaseURL: url, Logger: zerolog.Nop()}, bearer)
}

func TestResourceClientSendsBearerAndRequestID(t *testing.T) {
	var gotAuth, gotReqID, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotReqID = r.Header.Get("X-Request-ID")
		gotPath = r.URL.RequestURI()
		writeJSON(w, http.StatusOK, []Book{{ID: 1, Title: "Dune", Status: BookAvailable}})
	}))
	defer srv.Close()

	c := newTestResourceClient(srv.URL+"/", &staticBearer{token: "abc"})
	books, err := c.SearchBooks(context.Background(), "dune & co")
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, "Bearer abc", gotAuth)
	assert.NotEmpty(t, gotReqID)
	assert.Equal(t, "/books/search?search=dune+%26+co", gotPath)
}

func TestResourceClientWithoutTokenSendsNoHeader(t *testing.T) {
	var sawAuth bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, sawAuth = r.Header["Authorization"]
		writeJSON(w, http.StatusOK, []Category{})
	}))
	defer srv.Close()

	_, err := newTestResourceClient(srv.URL, &staticBearer{}).Categories(context.Background())
	require.NoError(t, err)
	assert.False(t, sawAuth)
}

func TestResourceClientUnauthorizedNotifiesBearer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Token expired"})
	}))
	defer srv.Close()

	bearer := &staticBearer{token: "old"}
	_, err := newTestResourceClient(srv.URL, bearer).Books(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnauthorized))
	assert.Equal(t, 1, bearer.rejected)
	assert.Equal(t, "Token expired", Describe(err))
}

func TestResourceClientForbiddenKeepsSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	bearer := &staticBearer{token: "tok"}
	_, err := newTestResourceClient(srv.URL, bearer).Users(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrForbidden))
	assert.Zero(t, bearer.rejected)
	assert.Equal(t, "You do not have permission to do that.", Describe(err))
}

func TestResourceClientDeleteAcceptsEmptyBody(t *testing.T) {
	var method, path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	err := newTestResourceClient(srv.URL, &staticBearer{token: "t"}).DeleteBook(context.Background(), 12)
	require.NoError(t, err)
	assert.Equal(t, http.MethodDelete, method)
	assert.Equal(t, "/books/12", path)
}

func TestReturnLoanUsesReturnRoute(t *testing.T) {
	var method, path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		writeJSON(w, http.StatusOK, Loan{ID: 5, Status: LoanReturned, ReturnDate: "2026-10-19"})
	}))
	defer srv.Close()

	loan, err := newTestResourceClient(srv.URL, &staticBearer{token: "t"}).ReturnLoan(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/loans/return/5", path)
	assert.Equal(t, LoanReturned, loan.Status)
}

func TestIdentityClientNeverSendsToken(t *testing.T) {
	var sawAuth bool
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, sawAuth = r.Header["Authorization"]
		raw, _ := io.ReadAll(r.Body)
		body = string(raw)
		writeJSON(w, http.StatusOK, AuthResponse{Token: "fresh"})
	}))
	defer srv.Close()

	c := NewIdentityClient(ClientOptions{BaseURL: srv.URL, Logger: zerolog.Nop()})
	resp, err := c.Register(context.Background(), Registration{Email: "a@b.c", Password: "pw", Role: "USER"})
	require.NoError(t, err)
	assert.Equal(t, "fresh", resp.Token)
	assert.False(t, sawAuth)
	assert.Contains(t, body, `"username":"a@b.c"`)
}

func TestIdentityClientRequiresToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "ok"})
	}))
	defer srv.Close()

	c := NewIdentityClient(ClientOptions{BaseURL: srv.URL, Logger: zerolog.Nop()})
	_, err := c.Login(context.Background(), Credentials{Username: "a@b.c", Password: "pw"})
	require.Error(t, err)
}

func TestServerMessagePreference(t *testing.T) {
	cases := []struct {
		body string
		want string
	}{
		{`{"message":"m","error":"e","detail":"d"}`, "m"},
		{`{"error":"e","detail":"d"}`, "e"},
		{`{"detail":"d"}`, "d"},
		{`{"detail":[{"loc":["body"],"msg":"bad"}]}`, ""},
		{`<html>oops</html>`, ""},
		{``, ""},
	}
	for _, tc := range cases {
		if got := serverMessage([]byte(tc.body)); got != tc.want {
			t.Errorf("serverMessage(%s) = %q, want %q", tc.body, got, tc.want)
		}
	}
}
