package authz

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/wso2/open-auth-bouncer/internal/config"
	"github.com/wso2/open-auth-bouncer/internal/constants"
	"github.com/wso2/open-auth-bouncer/internal/session"
)

// Handler is a custom authorization hook. It either writes a response itself,
// which ends the request, or returns true to let the request through. Returning
// false without writing denies with the policy's message.
type Handler func(id session.Identity, w http.ResponseWriter, r *http.Request) bool

type policyKind int

const (
	allowAll policyKind = iota
	requireDomain
	delegate
)

// Policy is the access predicate applied to authenticated callers. The zero
// value allows everyone.
type Policy struct {
	kind        policyKind
	domain      string
	group       string
	fallbackURL string
	handler     Handler
}

func AllowAll() Policy {
	return Policy{kind: allowAll}
}

// RequireDomain allows only callers whose email is in domain. group names them
// in the deny message; browsers are sent to fallbackURL.
func RequireDomain(domain, group, fallbackURL string) Policy {
	if group == "" {
		group = domain
	}
	return Policy{kind: requireDomain, domain: domain, group: group, fallbackURL: fallbackURL}
}

func Delegate(h Handler) Policy {
	return Policy{kind: delegate, handler: h}
}

// Denying sets the group named in deny messages and the browser fallback page
func (p Policy) Denying(group, fallbackURL string) Policy {
	p.group = group
	p.fallbackURL = fallbackURL
	return p
}

// ForbiddenMessage is the 401 message for authenticated callers the policy rejects
func (p Policy) ForbiddenMessage() string {
	group := p.group
	if group == "" {
		group = "authorized users"
	}
	return fmt.Sprintf(constants.ForbiddenMessageFmt, group)
}

func (p Policy) deny() AccessControlResult {
	return AccessControlResult{Decision: DecisionDeny, Message: p.ForbiddenMessage(), FallbackURL: p.fallbackURL}
}

// FromConfig builds the policy selected in the config file. Delegate policies
// can only be built in code.
func FromConfig(cfg config.AuthorizationConfig) Policy {
	if cfg.Mode == config.DomainMode {
		return RequireDomain(cfg.AllowedDomain, cfg.GroupName, cfg.FallbackURL)
	}
	return AllowAll()
}

// EmailInDomain reports whether email belongs to domain, ignoring case
func EmailInDomain(email, domain string) bool {
	if domain == "" {
		return false
	}
	return strings.HasSuffix(strings.ToLower(email), "@"+strings.ToLower(strings.TrimPrefix(domain, "@")))
}
