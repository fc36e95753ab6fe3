package offlineworker

import (
	"net/http"
	"net/url"
	"path"
	"strings"
)

// Outcome is the classification of an intercepted request.
type Outcome int

const (
	// Excluded requests carry live transactional traffic (or mutate
	// state) and must never touch the cache.
	Excluded Outcome = iota
	// Navigation requests load a page document.
	Navigation
	// StaticAsset requests load immutable-ish sub-resources.
	StaticAsset
	// Default is everything else.
	Default
)

func (o Outcome) String() string {
	switch o {
	case Excluded:
		return "excluded"
	case Navigation:
		return "navigation"
	case StaticAsset:
		return "static-asset"
	default:
		return "default"
	}
}

// Classifier decides the caching category of a request.
// Classify is a pure function of the request: no side effects, no
// stored state. Rule order is significant: exclusion beats navigation,
// which beats the asset checks.
type Classifier struct {
	origin        *url.URL
	excludedHosts []string
	excludedPaths []string
	assetExts     map[string]struct{}
	assetHosts    []string
}

func NewClassifier(cfg Config) Classifier {
	exts := make(map[string]struct{}, len(cfg.AssetExtensions))
	for _, ext := range cfg.AssetExtensions {
		exts[strings.ToLower(ext)] = struct{}{}
	}
	return Classifier{
		origin:        cfg.originURL,
		excludedHosts: cfg.ExcludedHosts,
		excludedPaths: cfg.ExcludedPaths,
		assetExts:     exts,
		assetHosts:    cfg.AssetHosts,
	}
}

func (c Classifier) Classify(r *http.Request) Outcome {
	host := requestHost(r, c.origin)
	for _, h := range c.excludedHosts {
		if strings.Contains(host, h) {
			return Excluded
		}
	}
	for _, p := range c.excludedPaths {
		if strings.Contains(r.URL.Path, p) {
			return Excluded
		}
	}
	if r.Method != http.MethodGet {
		return Excluded
	}
	if isNavigation(r) {
		return Navigation
	}
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(r.URL.Path), "."))
	if _, ok := c.assetExts[ext]; ok {
		return StaticAsset
	}
	for _, h := range c.assetHosts {
		if strings.Contains(host, h) {
			return StaticAsset
		}
	}
	return Default
}

// requestHost returns the hostname the request is addressed to: the
// URL host for absolute-form URLs, the application origin otherwise.
// The Host header carries the gateway's own listen address and plays
// no part in classification.
func requestHost(r *http.Request, origin *url.URL) string {
	if r.URL.IsAbs() {
		return r.URL.Hostname()
	}
	if origin != nil {
		return origin.Hostname()
	}
	return ""
}

// isNavigation reports whether the request is a page navigation:
// either the browser says so, or a plain GET asks for an HTML document.
func isNavigation(r *http.Request) bool {
	if r.Header.Get("Sec-Fetch-Mode") == "navigate" {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}
