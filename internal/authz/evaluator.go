package authz

import (
	"net/http"

	logger "github.com/wso2/open-auth-bouncer/internal/logging"
	"github.com/wso2/open-auth-bouncer/internal/session"
)

// Evaluator applies a Policy to an authenticated identity
type Evaluator struct {
	policy Policy
}

func NewEvaluator(policy Policy) *Evaluator {
	return &Evaluator{policy: policy}
}

// Authorize never returns DecisionAllow for a handler that panics.
func (e *Evaluator) Authorize(id session.Identity, w http.ResponseWriter, r *http.Request) AccessControlResult {
	switch e.policy.kind {
	case requireDomain:
		if EmailInDomain(id.Email, e.policy.domain) {
			return AccessControlResult{Decision: DecisionAllow}
		}
		return e.policy.deny()
	case delegate:
		return e.delegate(id, w, r)
	default:
		return AccessControlResult{Decision: DecisionAllow}
	}
}

func (e *Evaluator) delegate(id session.Identity, w http.ResponseWriter, r *http.Request) (result AccessControlResult) {
	if e.policy.handler == nil {
		return e.policy.deny()
	}

	tw := &trackingWriter{ResponseWriter: w}
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("Authorization handler panicked for %s: %v", id.Email, rec)
			if tw.wrote {
				result = AccessControlResult{Decision: DecisionDelegated}
				return
			}
			result = e.policy.deny()
		}
	}()

	allowed := e.policy.handler(id, tw, r)
	switch {
	case tw.wrote:
		return AccessControlResult{Decision: DecisionDelegated}
	case allowed:
		return AccessControlResult{Decision: DecisionAllow}
	default:
		return e.policy.deny()
	}
}

// trackingWriter records whether a handler started a response
type trackingWriter struct {
	http.ResponseWriter
	wrote bool
}

func (t *trackingWriter) WriteHeader(code int) {
	t.wrote = true
	t.ResponseWriter.WriteHeader(code)
}

func (t *trackingWriter) Write(b []byte) (int, error) {
	t.wrote = true
	return t.ResponseWriter.Write(b)
}

func (t *trackingWriter) Unwrap() http.ResponseWriter {
	return t.ResponseWriter
}
