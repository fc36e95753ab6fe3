package notify

import (
	"sync"

	"github.com/rs/zerolog"
)

// Registry is an in-memory Clients implementation tracking the pages
// currently open against the gateway.
type Registry struct {
	mu      sync.Mutex
	windows []*Window
	log     zerolog.Logger
}

func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{log: logger.With().Str("component", "clients").Logger()}
}

// Window is one open page.
type Window struct {
	url string
	reg *Registry
}

func (w *Window) URL() string { return w.url }

func (w *Window) Focus() error {
	w.reg.log.Info().Str("url", w.url).Msg("Focusing window")
	return nil
}

// Register records an open page and returns its window handle.
func (r *Registry) Register(url string) *Window {
	r.mu.Lock()
	defer r.mu.Unlock()
	w := &Window{url: url, reg: r}
	r.windows = append(r.windows, w)
	return w
}

func (r *Registry) List() []Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Client, len(r.windows))
	for i, w := range r.windows {
		out[i] = w
	}
	return out
}

func (r *Registry) OpenWindow(url string) error {
	r.log.Info().Str("url", url).Msg("Opening window")
	r.Register(url)
	return nil
}
