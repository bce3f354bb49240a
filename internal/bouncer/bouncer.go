package bouncer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wso2/open-auth-bouncer/internal/authz"
	"github.com/wso2/open-auth-bouncer/internal/config"
	"github.com/wso2/open-auth-bouncer/internal/constants"
	logger "github.com/wso2/open-auth-bouncer/internal/logging"
	"github.com/wso2/open-auth-bouncer/internal/metrics"
	"github.com/wso2/open-auth-bouncer/internal/nonce"
	"github.com/wso2/open-auth-bouncer/internal/oauth"
	"github.com/wso2/open-auth-bouncer/internal/route"
	"github.com/wso2/open-auth-bouncer/internal/session"
)

const tracerName = "github.com/wso2/open-auth-bouncer/internal/bouncer"

// Options is the policy configuration. It is read once by New and never
// changed afterwards.
type Options struct {
	// Provider names the login routes: /auth/<provider>, /auth/<provider>/callback
	// and /auth/<provider>/logout.
	Provider string

	// IgnoredRoutes bypass the bouncer entirely. See route.NewClassifier.
	IgnoredRoutes []string

	// SessionSyncNonce is the name of an externally set cookie. When set, a
	// change in its value logs the caller out.
	SessionSyncNonce string

	// Policy is applied to authenticated callers. The zero value allows all.
	Policy authz.Policy

	// LoginLanding is where callers go after login when no redirect path is pending.
	LoginLanding string

	// LogoutURL is where callers go after logout. Empty means /logout on the
	// host that served the request.
	LogoutURL string
}

// OptionsFromConfig builds Options from the config file
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Provider:         cfg.Provider.Name,
		IgnoredRoutes:    cfg.GetIgnoredRoutes(),
		SessionSyncNonce: cfg.SessionSyncNonce,
		Policy:           authz.FromConfig(cfg.Authorization),
		LoginLanding:     cfg.Landing.Login,
		LogoutURL:        cfg.LogoutURL(),
	}
}

// Bouncer is the authentication gate. It holds no per-request state; every
// decision works on the session loaded for that request.
type Bouncer struct {
	opts       Options
	authPath   string
	sessions   *session.Manager
	oauth      oauth.Client
	classifier *route.Classifier
	sync       *nonce.Synchronizer
	evaluator  authz.AccessControl
	metrics    *metrics.Recorder
	tracer     trace.Tracer
}

// New builds a Bouncer. rec may be nil.
func New(opts Options, sessions *session.Manager, client oauth.Client, rec *metrics.Recorder) (*Bouncer, error) {
	if sessions == nil {
		return nil, errors.New("bouncer: session manager is required")
	}
	if client == nil {
		return nil, errors.New("bouncer: oauth client is required")
	}
	if opts.Provider == "" {
		opts.Provider = constants.DefaultProvider
	}
	if opts.LoginLanding == "" || !isLocalPath(opts.LoginLanding) {
		opts.LoginLanding = constants.DefaultLoginLanding
	}

	return &Bouncer{
		opts:       opts,
		authPath:   "/auth/" + opts.Provider,
		sessions:   sessions,
		oauth:      client,
		classifier: route.NewClassifier(opts.IgnoredRoutes),
		sync:       nonce.NewSynchronizer(opts.SessionSyncNonce),
		evaluator:  authz.NewEvaluator(opts.Policy),
		metrics:    rec,
		tracer:     otel.Tracer(tracerName),
	}, nil
}

// AuthPath is the login entry point browsers are redirected to
func (b *Bouncer) AuthPath() string {
	return b.authPath
}

// Handler returns next behind the bouncer, with the login routes mounted
func (b *Bouncer) Handler(next http.Handler) http.Handler {
	r := chi.NewRouter()
	b.Mount(r)
	r.Handle("/*", b.Middleware(next))
	return r
}

// Middleware gates every request that is not on an ignored route
func (b *Bouncer) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		class := b.classifier.Classify(r)
		if class.Ignored {
			b.metrics.ObserveDecision(outcomeIgnored, 0)
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		ctx, span := b.tracer.Start(r.Context(), "bouncer.gate",
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.Bool("bouncer.json", class.JSON),
			))
		defer span.End()
		r = r.WithContext(ctx)

		outcome, err := b.gate(w, r, class, next)
		span.SetAttributes(attribute.String("bouncer.outcome", outcome))
		if outcome == outcomeError {
			span.SetStatus(codes.Error, err.Error())
		}
		if err != nil {
			logger.Debug("%s %s: %v", r.Method, r.URL.Path, err)
		}
		b.metrics.ObserveDecision(outcome, time.Since(start))
	})
}

func (b *Bouncer) gate(w http.ResponseWriter, r *http.Request, class route.Result, next http.Handler) (string, error) {
	sess := b.sessions.Load(r)

	if !sess.IsAuthenticated() {
		b.rejectUnauthenticated(w, r, sess, class)
		return outcomeUnauthenticated, ErrUnauthenticated
	}

	if b.sync.Synchronize(sess, r) == nonce.Desynced {
		sess.Desync(r.URL.RequestURI())
		b.sessions.Rotate(sess)
		b.rejectUnauthenticated(w, r, sess, class)
		return outcomeDesynced, fmt.Errorf("%w: %s cookie changed", ErrDesynchronized, b.opts.SessionSyncNonce)
	}

	if err := b.sessions.Save(r.Context(), w, sess); err != nil {
		logger.Error("Error saving session: %v", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return outcomeError, err
	}

	res := b.evaluator.Authorize(*sess.Identity, w, r)
	switch res.Decision {
	case authz.DecisionDelegated:
		return outcomeDelegated, nil
	case authz.DecisionDeny:
		b.rejectForbidden(w, r, class, res)
		return outcomeForbidden, fmt.Errorf("%w: %s", ErrForbidden, sess.Identity.Email)
	}

	next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), sess)))
	return outcomeAllow, nil
}

// rejectUnauthenticated redirects browsers to log in, remembering where they
// were headed, and answers everyone else with a 401.
func (b *Bouncer) rejectUnauthenticated(w http.ResponseWriter, r *http.Request, sess *session.Session, class route.Result) {
	if class.BrowserGET {
		sess.SetRedirectPath(r.URL.RequestURI())
	}
	b.save(r.Context(), w, sess)

	if class.BrowserGET {
		redirect(w, r, b.authPath)
		return
	}
	writeUnauthorized(w, constants.PleaseAuthenticate)
}

func (b *Bouncer) rejectForbidden(w http.ResponseWriter, r *http.Request, class route.Result, res authz.AccessControlResult) {
	if class.BrowserGET && res.FallbackURL != "" {
		redirect(w, r, res.FallbackURL)
		return
	}
	writeUnauthorized(w, res.Message)
}

// save persists the session on paths that reject the request anyway; a failure
// there only loses the pending redirect path.
func (b *Bouncer) save(ctx context.Context, w http.ResponseWriter, sess *session.Session) {
	if err := b.sessions.Save(ctx, w, sess); err != nil {
		logger.Error("Error saving session: %v", err)
	}
}
