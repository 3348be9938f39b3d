package session

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/protomem/district-tasks/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T) (*Manager, *miniredis.Miniredis) {
	t.Helper()

	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewManager(logger, client, Options{Prefix: "test", Secret: "secret", TTL: time.Hour}), srv
}

func serve(m *Manager, h http.HandlerFunc, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	m.Handle(h).ServeHTTP(rec, req)
	return rec
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == CookieName {
			return c
		}
	}
	t.Fatal("session cookie not set")
	return nil
}

func TestSessionRoundTrip(t *testing.T) {
	m, _ := newManager(t)

	rec := serve(m, func(w http.ResponseWriter, r *http.Request) {
		sess := FromContext(r.Context())
		sess.Login(model.ID(7))
		sess.AddFlash(FlashSuccess, "welcome")
		http.Redirect(w, r, "/", http.StatusSeeOther)
	})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	cookie := sessionCookie(t, rec)
	assert.True(t, cookie.HttpOnly)

	var flashes []Flash
	serve(m, func(w http.ResponseWriter, r *http.Request) {
		sess := FromContext(r.Context())
		require.True(t, sess.Authenticated())
		assert.Equal(t, model.ID(7), *sess.UserID)
		flashes = sess.PopFlashes()
		w.WriteHeader(http.StatusOK)
	}, cookie)
	assert.Equal(t, []Flash{{Level: FlashSuccess, Message: "welcome"}}, flashes)

	serve(m, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, FromContext(r.Context()).PopFlashes())
	}, cookie)
}

func TestSessionForgedCookie(t *testing.T) {
	m, _ := newManager(t)

	forged := &http.Cookie{Name: CookieName, Value: "not-a-jwt"}
	serve(m, func(w http.ResponseWriter, r *http.Request) {
		assert.False(t, FromContext(r.Context()).Authenticated())
	}, forged)
}

func TestSessionLoginRotatesID(t *testing.T) {
	m, srv := newManager(t)

	rec := serve(m, func(w http.ResponseWriter, r *http.Request) {
		FromContext(r.Context()).SetPendingLink(42, "token")
	})
	first := sessionCookie(t, rec)
	require.Len(t, srv.Keys(), 1)
	oldKey := srv.Keys()[0]

	rec = serve(m, func(w http.ResponseWriter, r *http.Request) {
		sess := FromContext(r.Context())
		telegramID, token, ok := sess.TakePendingLink()
		assert.True(t, ok)
		assert.Equal(t, int64(42), telegramID)
		assert.Equal(t, "token", token)
		sess.Login(1)
	}, first)
	sessionCookie(t, rec)

	require.Len(t, srv.Keys(), 1)
	assert.NotEqual(t, oldKey, srv.Keys()[0])
}

func TestSessionLogoutClearsCookie(t *testing.T) {
	m, srv := newManager(t)

	rec := serve(m, func(w http.ResponseWriter, r *http.Request) {
		FromContext(r.Context()).Login(3)
	})
	cookie := sessionCookie(t, rec)

	rec = serve(m, func(w http.ResponseWriter, r *http.Request) {
		FromContext(r.Context()).Logout()
	}, cookie)

	assert.Empty(t, srv.Keys())
	assert.Equal(t, -1, sessionCookie(t, rec).MaxAge)
}
