package nonce

import (
	"net/http"

	"github.com/wso2/open-auth-bouncer/internal/session"
)

type Status int

const (
	InSync Status = iota
	Desynced
)

func (s Status) String() string {
	if s == Desynced {
		return "desynced"
	}
	return "in_sync"
}

// Synchronizer compares an externally controlled cookie with the nonce cached
// in the session. A change means the caller's upstream login changed and the
// local session must not be trusted any more.
type Synchronizer struct {
	cookieName string
}

// NewSynchronizer returns a synchronizer for cookieName; an empty name disables it
func NewSynchronizer(cookieName string) *Synchronizer {
	return &Synchronizer{cookieName: cookieName}
}

func (s *Synchronizer) Enabled() bool {
	return s != nil && s.cookieName != ""
}

// Incoming returns the sync cookie value on r and whether it was present
func (s *Synchronizer) Incoming(r *http.Request) (string, bool) {
	if !s.Enabled() {
		return "", false
	}
	c, err := r.Cookie(s.cookieName)
	if err != nil {
		return "", false
	}
	return c.Value, true
}

// Synchronize adopts the incoming value on first contact and reports Desynced
// when a previously recorded nonce no longer matches. A missing cookie counts
// as a mismatch once a nonce has been recorded. It never clears the session;
// that is the caller's job.
func (s *Synchronizer) Synchronize(sess *session.Session, r *http.Request) Status {
	if !s.Enabled() {
		return InSync
	}

	incoming, present := s.Incoming(r)
	if sess.SyncNonce == "" {
		if present && incoming != "" {
			sess.AdoptNonce(incoming)
		}
		return InSync
	}

	if !present || incoming != sess.SyncNonce {
		return Desynced
	}
	return InSync
}
