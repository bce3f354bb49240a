package proxy

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wso2/open-auth-bouncer/internal/bouncer"
	"github.com/wso2/open-auth-bouncer/internal/config"
	"github.com/wso2/open-auth-bouncer/internal/constants"
	logger "github.com/wso2/open-auth-bouncer/internal/logging"
	"github.com/wso2/open-auth-bouncer/internal/metrics"
	"github.com/wso2/open-auth-bouncer/internal/route"
)

// NewRouter builds a chi router that routes
// * /auth/<provider>, its callback and logout to the bouncer
// * the metrics path to Prometheus, when enabled
// * everything else through the bouncer to the upstream application
func NewRouter(cfg *config.Config, b *bouncer.Bouncer, rec *metrics.Recorder) (http.Handler, error) {
	upstream, err := url.Parse(cfg.UpstreamURL)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream URL: %w", err)
	}
	if upstream.Scheme == "" || upstream.Host == "" {
		return nil, fmt.Errorf("invalid upstream URL %q: scheme and host are required", cfg.UpstreamURL)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	b.Mount(r)

	if cfg.Metrics.Enabled && rec != nil {
		r.Handle(cfg.Metrics.Path, rec.Handler())
	}

	r.Handle("/*", b.Middleware(buildProxyHandler(cfg, upstream)))
	return r, nil
}

func buildProxyHandler(cfg *config.Config, upstream *url.URL) http.HandlerFunc {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	basePath := strings.TrimRight(upstream.Path, "/")

	rp := &httputil.ReverseProxy{
		Director: func(req *http.Request) {
			// Forward the same path the ignored-route check saw
			path := route.CleanPath(req.URL.Path)
			req.URL.Scheme = upstream.Scheme
			req.URL.Host = upstream.Host
			req.URL.Path = basePath + path
			req.URL.RawPath = ""
			req.Host = upstream.Host

			cleanHeaders := http.Header{}
			for k, v := range req.Header {
				// Skip hop-by-hop headers and anything posing as the bouncer
				if skipHeader(k) || isIdentityHeader(k) {
					continue
				}
				cleanHeaders[k] = v
			}
			forwardIdentity(req.Context(), cleanHeaders, cfg.ForwardAccessToken)
			req.Header = cleanHeaders

			logger.Debug("%s -> %s%s", path, req.URL.Host, req.URL.Path)
		},
		ModifyResponse: func(resp *http.Response) error {
			logger.Debug("Response from %s%s: %d", resp.Request.URL.Host, resp.Request.URL.Path, resp.StatusCode)
			return nil
		},
		ErrorHandler: func(rw http.ResponseWriter, req *http.Request, err error) {
			logger.Error("Error proxying: %v", err)
			http.Error(rw, "Bad Gateway", http.StatusBadGateway)
		},
		FlushInterval: -1, // immediate flush for streams
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if isStreamRequest(r) {
			serveStream(w, r, rp)
			return
		}

		// Standard requests: enforce a timeout
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		rp.ServeHTTP(w, r.WithContext(ctx))
	}
}

// forwardIdentity passes the authenticated caller to the upstream application
func forwardIdentity(ctx context.Context, h http.Header, withToken bool) {
	p, ok := bouncer.PrincipalFromContext(ctx)
	if !ok {
		return
	}
	h.Set(constants.HeaderEmail, p.Email)
	if p.Name != "" {
		h.Set(constants.HeaderName, p.Name)
	}
	if p.ID != "" {
		h.Set(constants.HeaderUserID, p.ID)
	}
	if withToken {
		h.Set(constants.HeaderToken, p.AccessToken)
	}
}

func isIdentityHeader(h string) bool {
	return strings.HasPrefix(strings.ToLower(h), "x-bouncer-")
}

func skipHeader(h string) bool {
	switch strings.ToLower(h) {
	case "connection", "keep-alive", "transfer-encoding", "upgrade", "proxy-authorization", "proxy-connection", "te", "trailer":
		return true
	}
	return false
}
