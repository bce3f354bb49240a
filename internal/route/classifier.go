package route

import (
	"mime"
	"net/http"
	"path"
	"strings"
)

// Result describes how the bouncer should treat a request
type Result struct {
	Ignored    bool
	JSON       bool
	BrowserGET bool
}

type matcher func(p string) bool

// Classifier decides whether a request bypasses the bouncer and whether its
// caller expects JSON or can follow a redirect.
type Classifier struct {
	matchers []matcher
}

// NewClassifier builds a classifier from ignored route patterns:
//
//	/exact        matches only that path
//	/prefix/*     matches the prefix and everything below it
//	/a/[0-9]?/b   any other pattern with glob metacharacters uses path.Match
func NewClassifier(ignored []string) *Classifier {
	c := &Classifier{}
	for _, pattern := range ignored {
		c.matchers = append(c.matchers, compile(pattern))
	}
	return c
}

func compile(pattern string) matcher {
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok && !strings.ContainsAny(prefix, "*?[") {
		return func(p string) bool {
			return strings.HasPrefix(p, prefix) || p == strings.TrimSuffix(prefix, "/")
		}
	}
	if strings.ContainsAny(pattern, "*?[") {
		return func(p string) bool {
			ok, err := path.Match(pattern, p)
			return err == nil && ok
		}
	}
	return func(p string) bool {
		return p == pattern
	}
}

// CleanPath resolves dot segments and duplicate slashes. A trailing slash is
// kept so "/prefix/" still means the directory.
func CleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if p[0] != '/' {
		p = "/" + p
	}
	cleaned := path.Clean(p)
	if strings.HasSuffix(p, "/") && cleaned != "/" {
		cleaned += "/"
	}
	return cleaned
}

// Classify has no side effects
func (c *Classifier) Classify(r *http.Request) Result {
	res := Result{
		Ignored: c.IsIgnored(r.URL.Path),
		JSON:    WantsJSON(r),
	}
	res.BrowserGET = r.Method == http.MethodGet && !res.JSON
	return res
}

// IsIgnored matches the cleaned form of p, so "/assets/../admin" is not under "/assets/*"
func (c *Classifier) IsIgnored(p string) bool {
	p = CleanPath(p)
	for _, m := range c.matchers {
		if m(p) {
			return true
		}
	}
	return false
}

// WantsJSON reports whether the client asked for a JSON response
func WantsJSON(r *http.Request) bool {
	if strings.EqualFold(r.Header.Get("X-Requested-With"), "XMLHttpRequest") {
		return true
	}

	for _, accept := range r.Header.Values("Accept") {
		for _, part := range strings.Split(accept, ",") {
			mediaType, _, err := mime.ParseMediaType(strings.TrimSpace(part))
			if err != nil {
				continue
			}
			if mediaType == "application/json" || strings.HasSuffix(mediaType, "+json") {
				return true
			}
		}
	}
	return false
}
