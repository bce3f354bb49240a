package session

import "errors"

// ErrIncompleteLogin is returned when a login lacks an identity email or an access token
var ErrIncompleteLogin = errors.New("login requires an identity email and an access token")

// Identity is the caller's profile as reported by the OAuth provider
type Identity struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	ID    string `json:"id,omitempty"`
}

// Session is the per-caller record owned by the store.
//
// Every transition below replaces the whole record in a single assignment, so a
// store write never persists a half-applied change.
type Session struct {
	ID string `json:"-"`

	Authenticated bool      `json:"authenticated,omitempty"`
	Identity      *Identity `json:"identity,omitempty"`
	AccessToken   string    `json:"accessToken,omitempty"`
	SyncNonce     string    `json:"syncNonce,omitempty"`
	RedirectPath  string    `json:"redirectPath,omitempty"`
	OAuthState    string    `json:"oauthState,omitempty"`

	isNew   bool
	dirty   bool
	retired string // id to drop from the store once the record is saved under ID
}

// New returns an empty session that has not been issued a cookie yet
func New(id string) *Session {
	return &Session{ID: id, isNew: true}
}

func (s *Session) replace(next Session) {
	next.ID = s.ID
	next.isNew = s.isNew
	next.retired = s.retired
	next.dirty = true
	*s = next
}

// IsAuthenticated reports whether the session holds a complete login
func (s *Session) IsAuthenticated() bool {
	return s.Authenticated && s.Identity != nil && s.Identity.Email != "" && s.AccessToken != ""
}

// IsEmpty reports whether the session is in its initial state
func (s *Session) IsEmpty() bool {
	return !s.Authenticated && s.Identity == nil && s.AccessToken == "" &&
		s.SyncNonce == "" && s.RedirectPath == "" && s.OAuthState == ""
}

// Dirty reports whether the session changed since it was loaded
func (s *Session) Dirty() bool { return s.dirty }

// IsNew reports whether the caller has no session cookie yet
func (s *Session) IsNew() bool { return s.isNew }

// Clear resets the session to its empty initial state
func (s *Session) Clear() {
	s.replace(Session{})
}

// Desync invalidates the session and remembers where the caller was headed
func (s *Session) Desync(redirectPath string) {
	s.replace(Session{RedirectPath: redirectPath})
}

// Authenticate records a completed login. The pending redirect path survives so
// the caller can be sent back to it; the handshake state and any previous nonce do not.
func (s *Session) Authenticate(id Identity, accessToken string) error {
	if id.Email == "" || accessToken == "" {
		return ErrIncompleteLogin
	}
	s.replace(Session{
		Authenticated: true,
		Identity:      &id,
		AccessToken:   accessToken,
		RedirectPath:  s.RedirectPath,
	})
	return nil
}

// BeginHandshake stores the state for a pending OAuth handshake
func (s *Session) BeginHandshake(state string) {
	next := *s
	next.OAuthState = state
	s.replace(next)
}

// SetRedirectPath remembers where an unauthenticated caller was headed
func (s *Session) SetRedirectPath(path string) {
	if s.RedirectPath == path {
		return
	}
	next := *s
	next.RedirectPath = path
	s.replace(next)
}

// ConsumeRedirectPath returns the pending redirect path and clears it
func (s *Session) ConsumeRedirectPath() string {
	path := s.RedirectPath
	if path == "" {
		return ""
	}
	next := *s
	next.RedirectPath = ""
	s.replace(next)
	return path
}

// AdoptNonce records the sync cookie value seen on first contact
func (s *Session) AdoptNonce(nonce string) {
	if s.SyncNonce == nonce {
		return
	}
	next := *s
	next.SyncNonce = nonce
	s.replace(next)
}
