package offlineworker

import (
	"encoding/base64"
	"io"
	"net/http"

	"github.com/rs/zerolog"
)

// Forwarder relays booking and availability calls to their upstream
// endpoint without touching the cache. It is a stateless pass-through:
// the JSON body goes up as-is and the upstream's status and body come
// back as-is. These hosts are on the exclusion list precisely so that
// the caching layer never sees this traffic.
type Forwarder struct {
	upstream string
	auth     string
	client   *http.Client
	log      zerolog.Logger
}

func NewForwarder(upstream, authHeader string, client *http.Client, logger zerolog.Logger) *Forwarder {
	if client == nil {
		client = http.DefaultClient
	}
	return &Forwarder{
		upstream: upstream,
		auth:     authHeader,
		client:   client,
		log:      logger.With().Str("upstream", upstream).Logger(),
	}
}

// BasicAuth builds the Authorization header value for an API key used
// as a Basic auth username with an empty password.
func BasicAuth(apiKey string) string {
	if apiKey == "" {
		return ""
	}
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(apiKey+":"))
}

func (f *Forwarder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, f.upstream, r.Body)
	if err != nil {
		f.log.Error().Err(err).Msg("Could not build upstream request")
		http.Error(w, "Bad Gateway", http.StatusBadGateway)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if f.auth != "" {
		req.Header.Set("Authorization", f.auth)
	}

	res, err := f.client.Do(req)
	if err != nil {
		f.log.Error().Err(err).Msg("Upstream request failed")
		http.Error(w, "Bad Gateway", http.StatusBadGateway)
		return
	}
	defer res.Body.Close()

	if ct := res.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(res.StatusCode)
	if _, err := io.Copy(w, res.Body); err != nil {
		f.log.Error().Err(err).Msg("Could not write upstream body to client")
	}
}
