package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/dummycsv/internal/config"
	"github.com/JonMunkholm/dummycsv/internal/core"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newSessions(secret string) *Sessions {
	return New(config.SessionConfig{Secret: secret, MaxAge: time.Hour})
}

// withCookies copies the cookies set on rec onto a new request.
func withCookies(rec *httptest.ResponseRecorder) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	return req
}

type lookupFunc func(ctx context.Context, id int64) (core.User, error)

func (f lookupFunc) GetUser(ctx context.Context, id int64) (core.User, error) { return f(ctx, id) }

func TestSessions_LoginRoundTrip(t *testing.T) {
	s := newSessions(testSecret)

	rec := httptest.NewRecorder()
	require.NoError(t, s.Login(rec, httptest.NewRequest(http.MethodPost, "/", nil), 42))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, DefaultCookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, 3600, cookies[0].MaxAge)

	id, ok := s.UserID(withCookies(rec))
	require.True(t, ok)
	assert.Equal(t, int64(42), id)
}

func TestSessions_NoCookie(t *testing.T) {
	_, ok := newSessions(testSecret).UserID(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.False(t, ok)
}

func TestSessions_OtherSecretRejected(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, newSessions(testSecret).Login(rec, httptest.NewRequest(http.MethodPost, "/", nil), 7))

	other := newSessions("fedcba9876543210fedcba9876543210")
	_, ok := other.UserID(withCookies(rec))
	assert.False(t, ok)

	// A bad cookie does not prevent logging in again.
	rec2 := httptest.NewRecorder()
	require.NoError(t, other.Login(rec2, withCookies(rec), 8))
	id, ok := other.UserID(withCookies(rec2))
	require.True(t, ok)
	assert.Equal(t, int64(8), id)
}

func TestSessions_Logout(t *testing.T) {
	s := newSessions(testSecret)

	login := httptest.NewRecorder()
	require.NoError(t, s.Login(login, httptest.NewRequest(http.MethodPost, "/", nil), 42))

	logout := httptest.NewRecorder()
	require.NoError(t, s.Logout(logout, withCookies(login)))

	cookies := logout.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Less(t, cookies[0].MaxAge, 0, "cookie should be expired")
}

func TestSessions_LoadUser(t *testing.T) {
	s := newSessions(testSecret)
	users := lookupFunc(func(ctx context.Context, id int64) (core.User, error) {
		if id == 42 {
			return core.User{ID: 42, Username: "ann"}, nil
		}
		return core.User{}, core.ErrUnauthenticated
	})

	var got core.User
	var found bool
	h := s.LoadUser(users)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, found = core.UserFromContext(r.Context())
	}))

	t.Run("known user", func(t *testing.T) {
		rec := httptest.NewRecorder()
		require.NoError(t, s.Login(rec, httptest.NewRequest(http.MethodPost, "/", nil), 42))

		h.ServeHTTP(httptest.NewRecorder(), withCookies(rec))
		require.True(t, found)
		assert.Equal(t, "ann", got.Username)
	})

	t.Run("deleted user", func(t *testing.T) {
		rec := httptest.NewRecorder()
		require.NoError(t, s.Login(rec, httptest.NewRequest(http.MethodPost, "/", nil), 99))

		h.ServeHTTP(httptest.NewRecorder(), withCookies(rec))
		assert.False(t, found)
	})

	t.Run("anonymous", func(t *testing.T) {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		assert.False(t, found)
	})
}
