package constants

// Package constant provides constants for the auth bouncer

const (
	DefaultProvider        = "heroku"
	DefaultSessionCookie   = "bouncer_session"
	DefaultLoginLanding    = "/"
	DefaultMetricsPath     = "/metrics"
	DefaultRedisPrefix     = "bouncer:"
	DefaultTimeoutSeconds  = 15
	DefaultListenPort      = 8080
	DefaultSessionTTLHours = 24
)

// Messages returned in 401 bodies.
const (
	UnauthorizedID      = "unauthorized"
	PleaseAuthenticate  = "Please authenticate."
	ForbiddenMessageFmt = "This app is limited to %s only."
)

// Headers set on requests forwarded to the upstream application.
const (
	HeaderEmail  = "X-Bouncer-Email"
	HeaderName   = "X-Bouncer-Name"
	HeaderUserID = "X-Bouncer-User-Id"
	HeaderToken  = "X-Bouncer-Token"
)
