package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	logger "github.com/wso2/open-auth-bouncer/internal/logging"
	"github.com/wso2/open-auth-bouncer/internal/util"
)

// ManagerOptions configures the session cookie
type ManagerOptions struct {
	CookieName string
	Secret     string
	Secure     bool
	TTL        time.Duration
}

// Manager binds a Store to the caller's session cookie. It is the only way the
// bouncer reads or writes session state.
type Manager struct {
	store  Store
	signer *util.SessionSigner
	opts   ManagerOptions
}

func NewManager(store Store, opts ManagerOptions) *Manager {
	return &Manager{
		store:  store,
		signer: util.NewSessionSigner(opts.Secret, opts.TTL),
		opts:   opts,
	}
}

// Store returns the backing store
func (m *Manager) Store() Store {
	return m.store
}

// Load returns the caller's session, or a fresh empty one when the cookie is
// missing, forged, expired or points at a record the store no longer has.
// Store failures fail closed to an empty session.
func (m *Manager) Load(r *http.Request) *Session {
	cookie, err := r.Cookie(m.opts.CookieName)
	if err != nil {
		return New(uuid.NewString())
	}

	id, err := m.signer.Verify(cookie.Value)
	if err != nil {
		logger.Debug("Discarding session cookie: %v", err)
		return New(uuid.NewString())
	}

	sess, err := m.store.Get(r.Context(), id)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			logger.Error("Error loading session %s: %v", id, err)
		}
		return New(uuid.NewString())
	}
	return sess
}

// Rotate moves the session to a fresh id. The record under the old id is
// deleted by the next successful Save, so a cookie planted before a login,
// logout or desync never names the session that follows it.
func (m *Manager) Rotate(s *Session) {
	if !s.isNew && s.retired == "" {
		s.retired = s.ID
	}
	s.ID = uuid.NewString()
	s.dirty = true
}

// Save persists the session if it changed and (re)issues the cookie. It must be
// called before anything is written to w.
func (m *Manager) Save(ctx context.Context, w http.ResponseWriter, s *Session) error {
	if !s.Dirty() {
		return nil
	}
	if s.IsNew() && s.IsEmpty() {
		return nil
	}

	if err := m.store.Save(ctx, s, m.opts.TTL); err != nil {
		return fmt.Errorf("save session %s: %w", s.ID, err)
	}

	value, err := m.signer.Sign(s.ID)
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     m.opts.CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(m.opts.TTL / time.Second),
		HttpOnly: true,
		Secure:   m.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	if s.retired != "" {
		if err := m.store.Delete(ctx, s.retired); err != nil {
			logger.Warn("Error deleting rotated session %s: %v", s.retired, err)
		}
		s.retired = ""
	}

	s.isNew = false
	s.dirty = false
	return nil
}
