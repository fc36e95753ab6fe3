package offlineworker

import "context"

// Message types recognized on the control channel.
const (
	// MessageSkipWaiting forces immediate activation of the instance.
	MessageSkipWaiting = "SKIP_WAITING"
	// MessageCacheURLs adds URLs to the current bucket, best-effort.
	MessageCacheURLs = "CACHE_URLS"
)

// Message is a typed control message from the page.
type Message struct {
	Type    string   `json:"type"`
	Payload []string `json:"payload,omitempty"`
}

// HandleMessage processes a control message. Unknown types are logged
// and ignored.
func (w *Worker) HandleMessage(ctx context.Context, msg Message) {
	switch msg.Type {
	case MessageSkipWaiting:
		if w.lifecycle == nil {
			return
		}
		if err := w.lifecycle.SkipWaiting(ctx); err != nil {
			w.log.Error().Err(err).Msg("Could not skip waiting")
		}
	case MessageCacheURLs:
		// fire-and-forget: the page is not waiting for the outcome
		go w.cacheURLs(context.Background(), msg.Payload)
	default:
		w.log.Debug().Str("type", msg.Type).Msg("Ignoring unknown message")
	}
}

// cacheURLs adds the given URLs to the current bucket. Unlike install
// population this is best-effort: a failed URL is logged and the rest
// still go in.
func (w *Worker) cacheURLs(ctx context.Context, urls []string) {
	for _, u := range urls {
		if err := w.store.Add(ctx, w.bucketName, u); err != nil {
			w.log.Warn().Err(err).Str("url", u).Msg("Could not cache URL")
		}
	}
}
