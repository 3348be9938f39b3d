// Package session keeps browser sessions in Redis behind a signed cookie.
//
// The cookie only carries a session id inside an HS256 JWT; the session body
// (member id, pending telegram link, flash messages) lives in Redis.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/google/uuid"
	"github.com/protomem/district-tasks/internal/ctxstore"
	"github.com/protomem/district-tasks/internal/model"
	"github.com/redis/go-redis/v9"
)

const (
	CookieName = "jwt"

	_claimSessionID = "sid"
	_contextKey     = ctxstore.Key("session")
)

type FlashLevel string

const (
	FlashSuccess FlashLevel = "success"
	FlashInfo    FlashLevel = "info"
	FlashWarning FlashLevel = "warning"
	FlashError   FlashLevel = "error"
)

type Flash struct {
	Level   FlashLevel `json:"level"`
	Message string     `json:"message"`
}

type Session struct {
	ID string `json:"-"`

	UserID *model.ID `json:"user_id,omitempty"`

	PendingTelegramID *int64 `json:"pending_telegram_id,omitempty"`
	PendingLinkToken  string `json:"pending_link_token,omitempty"`

	Flashes []Flash `json:"flashes,omitempty"`

	previousID string
	modified   bool
}

func (s *Session) Authenticated() bool {
	return s.UserID != nil
}

func (s *Session) empty() bool {
	return s.UserID == nil && s.PendingTelegramID == nil && len(s.Flashes) == 0
}

// Login binds the session to a member. The id rotates on save.
func (s *Session) Login(user model.ID) {
	s.renew()
	s.UserID = &user
	s.modified = true
}

// Logout drops everything, flashes included.
func (s *Session) Logout() {
	s.renew()
	s.UserID = nil
	s.PendingTelegramID = nil
	s.PendingLinkToken = ""
	s.Flashes = nil
	s.modified = true
}

func (s *Session) renew() {
	if s.previousID == "" {
		s.previousID = s.ID
	}
	s.ID = newID()
}

func (s *Session) AddFlash(level FlashLevel, message string) {
	s.Flashes = append(s.Flashes, Flash{Level: level, Message: message})
	s.modified = true
}

func (s *Session) PopFlashes() []Flash {
	flashes := s.Flashes
	if len(flashes) > 0 {
		s.Flashes = nil
		s.modified = true
	}
	if flashes == nil {
		flashes = []Flash{}
	}
	return flashes
}

func (s *Session) SetPendingLink(telegramID int64, token string) {
	s.PendingTelegramID = &telegramID
	s.PendingLinkToken = token
	s.modified = true
}

// TakePendingLink returns and clears the pending telegram link.
func (s *Session) TakePendingLink() (int64, string, bool) {
	if s.PendingTelegramID == nil {
		return 0, "", false
	}
	telegramID, token := *s.PendingTelegramID, s.PendingLinkToken
	s.PendingTelegramID = nil
	s.PendingLinkToken = ""
	s.modified = true
	return telegramID, token, true
}

func newID() string {
	return uuid.NewString()
}

type Manager struct {
	logger *slog.Logger
	client *redis.Client
	auth   *jwtauth.JWTAuth
	prefix string
	ttl    time.Duration
	secure bool
}

type Options struct {
	Prefix string
	Secret string
	TTL    time.Duration
	Secure bool
}

func NewManager(logger *slog.Logger, client *redis.Client, opts Options) *Manager {
	return &Manager{
		logger: logger.With("module", "session"),
		client: client,
		auth:   jwtauth.New("HS256", []byte(opts.Secret), nil),
		prefix: opts.Prefix,
		ttl:    opts.TTL,
		secure: opts.Secure,
	}
}

func (m *Manager) key(id string) string {
	return m.prefix + ":session:" + id
}

// Load returns the session named by the request cookie, or a fresh one when
// the cookie is missing, forged, expired or points at nothing.
func (m *Manager) Load(r *http.Request) (*Session, error) {
	token, err := jwtauth.VerifyRequest(m.auth, r, jwtauth.TokenFromCookie)
	if err != nil {
		return &Session{ID: newID()}, nil
	}

	id, _ := token.PrivateClaims()[_claimSessionID].(string)
	if id == "" {
		return &Session{ID: newID()}, nil
	}

	data, err := m.client.Get(r.Context(), m.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return &Session{ID: newID()}, nil
		}
		return nil, fmt.Errorf("session: load: %w", err)
	}

	sess := &Session{ID: id}
	if err := json.Unmarshal(data, sess); err != nil {
		m.logger.Warn("drop undecodable session", "error", err)
		return &Session{ID: newID()}, nil
	}

	return sess, nil
}

// Save persists a modified session and refreshes the cookie.
func (m *Manager) Save(ctx context.Context, w http.ResponseWriter, sess *Session) error {
	if !sess.modified {
		return nil
	}

	stale := make([]string, 0, 2)
	if sess.previousID != "" {
		stale = append(stale, m.key(sess.previousID))
	}
	if sess.empty() {
		stale = append(stale, m.key(sess.ID))
	}
	if len(stale) > 0 {
		if err := m.client.Del(ctx, stale...).Err(); err != nil {
			return fmt.Errorf("session: drop stale: %w", err)
		}
		sess.previousID = ""
	}

	// Empty sessions are not stored.
	if sess.empty() {
		m.clearCookie(w)
		sess.modified = false
		return nil
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}

	if err := m.client.Set(ctx, m.key(sess.ID), data, m.ttl).Err(); err != nil {
		return fmt.Errorf("session: save: %w", err)
	}

	claims := map[string]any{_claimSessionID: sess.ID}
	jwtauth.SetIssuedNow(claims)
	jwtauth.SetExpiryIn(claims, m.ttl)

	_, tokenString, err := m.auth.Encode(claims)
	if err != nil {
		return fmt.Errorf("session: sign cookie: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    tokenString,
		Path:     "/",
		Expires:  time.Now().Add(m.ttl),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})

	sess.modified = false
	return nil
}

func (m *Manager) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Handle loads the session into the request context and saves it right
// before the response headers go out.
func (m *Manager) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := m.Load(r)
		if err != nil {
			m.logger.Error("failed to load session", "error", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		cw := &commitWriter{ResponseWriter: w}
		cw.commit = func() {
			if err := m.Save(r.Context(), w, sess); err != nil {
				m.logger.Error("failed to save session", "error", err)
			}
		}

		next.ServeHTTP(cw, r.WithContext(ctxstore.With(r.Context(), _contextKey, sess)))

		cw.flush()
	})
}

// FromContext returns the request session. Outside Handle it returns a
// throwaway session so callers never deal with nil.
func FromContext(ctx context.Context) *Session {
	if sess, ok := ctxstore.From[*Session](ctx, _contextKey); ok {
		return sess
	}
	return &Session{ID: newID()}
}

// WithSession puts sess into ctx the way Handle does.
func WithSession(ctx context.Context, sess *Session) context.Context {
	return ctxstore.With(ctx, _contextKey, sess)
}

type commitWriter struct {
	http.ResponseWriter
	commit    func()
	committed bool
}

func (cw *commitWriter) flush() {
	if !cw.committed {
		cw.committed = true
		cw.commit()
	}
}

func (cw *commitWriter) WriteHeader(statusCode int) {
	cw.flush()
	cw.ResponseWriter.WriteHeader(statusCode)
}

func (cw *commitWriter) Write(b []byte) (int, error) {
	cw.flush()
	return cw.ResponseWriter.Write(b)
}

func (cw *commitWriter) Unwrap() http.ResponseWriter {
	return cw.ResponseWriter
}
