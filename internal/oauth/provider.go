package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/wso2/open-auth-bouncer/internal/config"
	"github.com/wso2/open-auth-bouncer/internal/session"
)

// ErrHandshake wraps every failure talking to the OAuth server
var ErrHandshake = errors.New("oauth handshake failed")

// Client is the OAuth capability the bouncer relies on. It owns the protocol
// details of the authorization-code flow; the bouncer only sequences the calls.
type Client interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	Identity(ctx context.Context, token *oauth2.Token) (*session.Identity, error)
}

// Provider is a Client for an authorization-code OAuth2 server exposing
// /oauth/authorize and /oauth/token, plus an API endpoint describing the caller.
type Provider struct {
	conf        *oauth2.Config
	identityURL string
	httpClient  *http.Client
}

func NewProvider(cfg config.ProviderConfig, timeout time.Duration) *Provider {
	server := strings.TrimRight(cfg.ServerURL, "/")
	return &Provider{
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:  server + "/oauth/authorize",
				TokenURL: server + "/oauth/token",
			},
			RedirectURL: cfg.RedirectURL,
			Scopes:      cfg.Scopes,
		},
		identityURL: strings.TrimRight(cfg.APIURL, "/") + cfg.IdentityPath,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

func (p *Provider) context(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
}

func (p *Provider) AuthCodeURL(state string) string {
	return p.conf.AuthCodeURL(state)
}

func (p *Provider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: missing authorization code", ErrHandshake)
	}
	token, err := p.conf.Exchange(p.context(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("%w: token exchange: %v", ErrHandshake, err)
	}
	return token, nil
}

func (p *Provider) Identity(ctx context.Context, token *oauth2.Token) (*session.Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.identityURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build identity request: %v", ErrHandshake, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.conf.Client(p.context(ctx), token).Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: identity request: %v", ErrHandshake, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: identity request failed (%d): %s", ErrHandshake, resp.StatusCode, string(body))
	}

	var id session.Identity
	if err := json.NewDecoder(resp.Body).Decode(&id); err != nil {
		return nil, fmt.Errorf("%w: failed to parse identity JSON: %v", ErrHandshake, err)
	}
	if id.Email == "" {
		return nil, fmt.Errorf("%w: identity has no email", ErrHandshake)
	}
	return &id, nil
}
