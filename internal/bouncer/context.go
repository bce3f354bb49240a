package bouncer

import (
	"context"

	"github.com/wso2/open-auth-bouncer/internal/session"
)

// Principal is the authenticated caller of a request the bouncer let through
type Principal struct {
	session.Identity
	AccessToken string
}

type principalContextKey struct{}

func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(*Principal)
	return p, ok
}

func withPrincipal(ctx context.Context, sess *session.Session) context.Context {
	return context.WithValue(ctx, principalContextKey{}, &Principal{
		Identity:    *sess.Identity,
		AccessToken: sess.AccessToken,
	})
}
