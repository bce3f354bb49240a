package bouncer

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wso2/open-auth-bouncer/internal/constants"
	logger "github.com/wso2/open-auth-bouncer/internal/logging"
	"github.com/wso2/open-auth-bouncer/internal/route"
	"github.com/wso2/open-auth-bouncer/internal/session"
)

// Mount registers the login, callback and logout routes on r
func (b *Bouncer) Mount(r chi.Router) {
	r.Get(b.authPath, b.login)
	r.Get(b.authPath+"/callback", b.callback)
	r.Get(b.authPath+"/logout", b.logout)
}

// login starts the OAuth handshake
func (b *Bouncer) login(w http.ResponseWriter, r *http.Request) {
	sess := b.sessions.Load(r)
	state := uuid.NewString()
	sess.BeginHandshake(state)

	if err := b.sessions.Save(r.Context(), w, sess); err != nil {
		logger.Error("Error saving session before login: %v", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	redirect(w, r, b.oauth.AuthCodeURL(state))
}

// callback completes the OAuth handshake and sends the caller back to where
// they were headed
func (b *Bouncer) callback(w http.ResponseWriter, r *http.Request) {
	sess := b.sessions.Load(r)
	class := b.classifier.Classify(r)

	if err := b.completeHandshake(r, sess); err != nil {
		logger.Warn("Login failed: %v", err)
		b.metrics.ObserveLogin("failure")
		b.rejectHandshake(w, r, class)
		return
	}

	b.sessions.Rotate(sess)

	if incoming, ok := b.sync.Incoming(r); ok && incoming != "" {
		sess.AdoptNonce(incoming)
	}

	target := sess.ConsumeRedirectPath()
	if !isLocalPath(target) {
		target = b.opts.LoginLanding
	}

	if err := b.sessions.Save(r.Context(), w, sess); err != nil {
		logger.Error("Error saving session after login: %v", err)
		b.metrics.ObserveLogin("failure")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	logger.Info("Logged in %s", sess.Identity.Email)
	b.metrics.ObserveLogin("success")
	redirect(w, r, target)
}

func (b *Bouncer) completeHandshake(r *http.Request, sess *session.Session) error {
	q := r.URL.Query()
	if providerErr := q.Get("error"); providerErr != "" {
		return fmt.Errorf("%w: provider returned %s", ErrHandshakeFailure, providerErr)
	}

	state := q.Get("state")
	if state == "" || sess.OAuthState == "" || state != sess.OAuthState {
		return fmt.Errorf("%w: state mismatch", ErrHandshakeFailure)
	}

	token, err := b.oauth.Exchange(r.Context(), q.Get("code"))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrHandshakeFailure, err)
	}

	id, err := b.oauth.Identity(r.Context(), token)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrHandshakeFailure, err)
	}

	if err := sess.Authenticate(*id, token.AccessToken); err != nil {
		return fmt.Errorf("%w: %v", ErrHandshakeFailure, err)
	}
	return nil
}

// rejectHandshake answers a failed login like any unauthenticated request, but
// leaves the session alone so the pending redirect path survives a retry.
func (b *Bouncer) rejectHandshake(w http.ResponseWriter, r *http.Request, class route.Result) {
	if class.BrowserGET {
		redirect(w, r, b.authPath)
		return
	}
	writeUnauthorized(w, constants.PleaseAuthenticate)
}

// logout clears the whole session, whatever state it was in
func (b *Bouncer) logout(w http.ResponseWriter, r *http.Request) {
	sess := b.sessions.Load(r)
	sess.Clear()
	b.sessions.Rotate(sess)
	b.save(r.Context(), w, sess)
	redirect(w, r, b.logoutURL(r))
}

func (b *Bouncer) logoutURL(r *http.Request) string {
	if b.opts.LogoutURL != "" {
		return b.opts.LogoutURL
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + "/logout"
}
