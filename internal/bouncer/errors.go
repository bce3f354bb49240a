package bouncer

import "errors"

// Gate outcomes. Only ErrForbidden changes what the caller sees; the rest are
// told apart in logs and metrics.
var (
	ErrUnauthenticated  = errors.New("unauthenticated")
	ErrDesynchronized   = errors.New("session desynchronized")
	ErrForbidden        = errors.New("forbidden by authorization policy")
	ErrHandshakeFailure = errors.New("oauth handshake failed")
)

const (
	outcomeIgnored         = "ignored"
	outcomeAllow           = "allow"
	outcomeUnauthenticated = "unauthenticated"
	outcomeDesynced        = "desynced"
	outcomeForbidden       = "forbidden"
	outcomeDelegated       = "delegated"
	outcomeError           = "error"
)
