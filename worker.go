package offlineworker

import (
	"context"
	"io"
	"net/http"
	"net/url"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/rr-portal/offline-worker/bucket"
	"github.com/rr-portal/offline-worker/pkg/reqkey"
	"github.com/rr-portal/offline-worker/pkg/respcodec"
)

// Options configures a Worker.
type Options struct {
	Config Config
	// Store backs all cache reads and writes.
	Store *bucket.Manager
	// Lifecycle gates interception: until the instance is active,
	// every request passes through untouched. Optional.
	Lifecycle *Lifecycle
	// Client used for origin and pass-through fetches.
	// http.DefaultClient if nil.
	Client *http.Client
	// Logger to use. The global zerolog logger is used if nil.
	Logger *zerolog.Logger
}

// Worker intercepts requests and applies one of three caching
// strategies chosen by the classifier: network-first with offline
// fallback for navigations, cache-first with background refresh for
// static assets, and network-first without a strict fallback for the
// rest. Excluded requests never engage any caching logic.
type Worker struct {
	classifier Classifier
	store      *bucket.Manager
	lifecycle  *Lifecycle
	keyer      reqkey.Keyer
	client     *http.Client
	origin     *url.URL
	bucketName string
	offlineKey string
	log        zerolog.Logger

	// refresh dedupes concurrent background refreshes of one asset.
	refresh singleflight.Group
}

func New(opts Options) (*Worker, error) {
	cfg := opts.Config
	if cfg.originURL == nil {
		if err := cfg.Prepare(); err != nil {
			return nil, err
		}
	}

	var logger zerolog.Logger
	if opts.Logger == nil {
		logger = zerolog.New(zerolog.NewConsoleWriter())
	} else {
		logger = *opts.Logger
	}
	logger = logger.With().
		Str("origin", cfg.Origin).
		Str("bucket", cfg.Version).
		Logger()

	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout()}
	}

	keyer := reqkey.New(cfg.originURL)
	offlineKey, err := keyer.ForURL(cfg.OfflineURL)
	if err != nil {
		return nil, err
	}

	return &Worker{
		classifier: NewClassifier(cfg),
		store:      opts.Store,
		lifecycle:  opts.Lifecycle,
		keyer:      keyer,
		client:     client,
		origin:     cfg.originURL,
		bucketName: cfg.Version,
		offlineKey: offlineKey,
		log:        logger,
	}, nil
}

// ServeHTTP implements the http.Handler interface.
// It is the single entry point for intercepted requests.
func (w *Worker) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	if w.lifecycle != nil && !w.lifecycle.Controls() {
		w.passThrough(rw, r)
		return
	}
	outcome := w.classifier.Classify(r)
	w.log.Trace().
		Str("method", r.Method).
		Str("url", r.URL.String()).
		Str("outcome", outcome.String()).
		Msg("Classified request")
	switch outcome {
	case Excluded:
		w.passThrough(rw, r)
	case Navigation:
		w.serveNavigation(rw, r)
	case StaticAsset:
		w.serveAsset(rw, r)
	default:
		w.serveDefault(rw, r)
	}
}

// serveNavigation is network-first with fallback: live response when
// the network works, last cached copy when it does not, and the
// offline document as the floor. A navigation never surfaces a bare
// connection error.
func (w *Worker) serveNavigation(rw http.ResponseWriter, r *http.Request) {
	key, err := w.keyer.ForRequest(r)
	if err != nil {
		w.passThrough(rw, r)
		return
	}

	res, err := w.fetch(r)
	if err == nil {
		defer res.Body.Close()
		w.storeIfOK(key, res)
		w.writeResponse(rw, res)
		return
	}
	w.log.Debug().Err(err).Str("url", r.URL.String()).Msg("Navigation fetch failed, falling back")

	if stored, err := w.store.Match(w.bucketName, key); err == nil {
		w.writeStored(rw, stored)
		return
	}
	if stored, err := w.store.Match(w.bucketName, w.offlineKey); err == nil {
		w.writeStored(rw, stored)
		return
	}
	// the offline document is part of the precache manifest, so this
	// only happens when serving started without a completed install
	http.Error(rw, "offline", http.StatusServiceUnavailable)
}

// serveAsset is cache-first with background refresh: a hit is returned
// immediately and refreshed behind the response (stale-while-
// revalidate); a miss is fetched synchronously with no further
// fallback.
func (w *Worker) serveAsset(rw http.ResponseWriter, r *http.Request) {
	key, err := w.keyer.ForRequest(r)
	if err != nil {
		w.passThrough(rw, r)
		return
	}

	if stored, err := w.store.Match(w.bucketName, key); err == nil {
		w.writeStored(rw, stored)
		w.refreshAsync(key, r)
		return
	}

	res, err := w.fetch(r)
	if err != nil {
		w.log.Debug().Err(err).Str("url", r.URL.String()).Msg("Asset fetch failed with no cached entry")
		http.Error(rw, "Could not get response", http.StatusBadGateway)
		return
	}
	defer res.Body.Close()
	w.storeIfOK(key, res)
	w.writeResponse(rw, res)
}

// serveDefault is network-first caching without a strict fallback:
// a failed fetch falls back to the cache, and a miss there surfaces as
// a gateway error.
func (w *Worker) serveDefault(rw http.ResponseWriter, r *http.Request) {
	key, err := w.keyer.ForRequest(r)
	if err != nil {
		w.passThrough(rw, r)
		return
	}

	res, err := w.fetch(r)
	if err == nil {
		defer res.Body.Close()
		w.storeIfOK(key, res)
		w.writeResponse(rw, res)
		return
	}
	w.log.Debug().Err(err).Str("url", r.URL.String()).Msg("Fetch failed, trying cache")

	if stored, err := w.store.Match(w.bucketName, key); err == nil {
		w.writeStored(rw, stored)
		return
	}
	http.Error(rw, "Could not get response", http.StatusBadGateway)
}

// passThrough forwards the request untouched, with zero cache
// interaction.
func (w *Worker) passThrough(rw http.ResponseWriter, r *http.Request) {
	res, err := w.fetch(r)
	if err != nil {
		http.Error(rw, "Could not get response", http.StatusBadGateway)
		return
	}
	defer res.Body.Close()
	w.writeResponse(rw, res)
}

// refreshAsync refetches an asset behind an already-sent cached
// response and overwrites the cache entry on success. Fire-and-forget:
// failures are logged and swallowed, and concurrent refreshes of the
// same key collapse into one fetch.
func (w *Worker) refreshAsync(key string, r *http.Request) {
	// detach from the request context: the response has already been
	// served when this fetch runs
	req := w.upstreamRequest(r.Clone(context.Background()))
	go func() {
		w.refresh.Do(key, func() (interface{}, error) {
			res, err := w.client.Do(req)
			if err != nil {
				w.log.Debug().Err(err).Str("key", key).Msg("Background refresh failed")
				return nil, nil
			}
			defer res.Body.Close()
			if !statusOK(res.StatusCode) {
				return nil, nil
			}
			stored, err := respcodec.Encode(res)
			if err != nil {
				w.log.Error().Err(err).Str("key", key).Msg("Could not serialize refreshed response")
				return nil, nil
			}
			if err := w.store.Put(w.bucketName, key, stored); err != nil {
				w.log.Error().Err(err).Str("key", key).Msg("Could not store refreshed response")
			}
			return nil, nil
		})
	}()
}

// fetch performs the network request for r.
func (w *Worker) fetch(r *http.Request) (*http.Response, error) {
	return w.client.Do(w.upstreamRequest(r))
}

// upstreamRequest turns an intercepted server request into an outgoing
// client request. Relative URLs always go to the application origin;
// the Host header is the gateway's own listen address and must not
// influence routing. Third-party hosts are reached with absolute-form
// URLs only.
func (w *Worker) upstreamRequest(r *http.Request) *http.Request {
	req := r.Clone(r.Context())
	req.RequestURI = ""
	if req.URL.IsAbs() {
		return req
	}
	req.URL.Scheme = w.origin.Scheme
	req.URL.Host = w.origin.Host
	req.Host = w.origin.Host
	return req
}

// storeIfOK writes a copy of a successful response into the current
// bucket. The stored copy and the copy sent to the client are
// independent snapshots of the same body.
func (w *Worker) storeIfOK(key string, res *http.Response) {
	if !statusOK(res.StatusCode) {
		return
	}
	stored, err := respcodec.Encode(res)
	if err != nil {
		w.log.Error().Err(err).Str("key", key).Msg("Could not serialize response")
		return
	}
	if err := w.store.Put(w.bucketName, key, stored); err != nil {
		w.log.Error().Err(err).Str("key", key).Msg("Could not store response")
	}
}

func (w *Worker) writeStored(rw http.ResponseWriter, stored []byte) {
	res, err := respcodec.Decode(stored)
	if err != nil {
		// corrupted entry: nothing sensible to serve from it
		w.log.Error().Err(err).Msg("Could not read stored response")
		http.Error(rw, "Could not get response", http.StatusBadGateway)
		return
	}
	defer res.Body.Close()
	w.writeResponse(rw, res)
}

func (w *Worker) writeResponse(rw http.ResponseWriter, res *http.Response) {
	copyHeader(rw.Header(), res.Header)
	rw.WriteHeader(res.StatusCode)
	if _, err := io.Copy(rw, res.Body); err != nil {
		w.log.Error().Err(err).Msg("Could not write response body to client")
	}
}

func statusOK(code int) bool {
	return code >= 200 && code < 300
}

func copyHeader(dst, src http.Header) {
	for k, vv := range src {
		for _, v := range vv {
			dst.Add(k, v)
		}
	}
}
