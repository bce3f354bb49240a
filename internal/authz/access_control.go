package authz

import (
	"net/http"

	"github.com/wso2/open-auth-bouncer/internal/session"
)

type Decision int

const (
	DecisionAllow Decision = iota
	DecisionDeny
	// DecisionDelegated means a custom handler already wrote the response
	DecisionDelegated
)

func (d Decision) String() string {
	switch d {
	case DecisionAllow:
		return "allow"
	case DecisionDeny:
		return "deny"
	case DecisionDelegated:
		return "delegated"
	}
	return "unknown"
}

type AccessControlResult struct {
	Decision    Decision
	Message     string
	FallbackURL string
}

type AccessControl interface {
	Authorize(id session.Identity, w http.ResponseWriter, r *http.Request) AccessControlResult
}
