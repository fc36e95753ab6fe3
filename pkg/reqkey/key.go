package reqkey

import (
	"errors"
	"net/http"
	"net/url"
)

// ErrMethodNotSupported is returned for non-GET requests.
// Only GET responses are ever cached.
var ErrMethodNotSupported = errors.New("method not supported")

// Keyer derives cache keys from requests and raw URLs.
// Relative URLs are resolved against the application origin so that a
// manifest entry like "/" and a runtime request for "/" produce the
// same key.
type Keyer struct {
	origin *url.URL
}

func New(origin *url.URL) Keyer {
	return Keyer{origin: origin}
}

// ForRequest returns the cache key for the given request.
func (k Keyer) ForRequest(r *http.Request) (string, error) {
	if r.Method != http.MethodGet {
		return "", ErrMethodNotSupported
	}
	u := r.URL
	if !u.IsAbs() {
		u = k.origin.ResolveReference(u)
	}
	return http.MethodGet + " " + u.String(), nil
}

// ForURL returns the cache key for a GET of the given URL,
// which may be relative to the origin.
func (k Keyer) ForURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if !u.IsAbs() {
		u = k.origin.ResolveReference(u)
	}
	return http.MethodGet + " " + u.String(), nil
}
