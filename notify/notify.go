// Package notify decodes push payloads into notification descriptors
// and routes notification interactions to window focus/open actions.
// It operates independently of the request path and never touches the
// cache.
package notify

import (
	"encoding/json"
	"strings"

	"github.com/rs/zerolog"
)

// Actions available on every displayed notification.
const (
	ActionOpen    = "open"
	ActionDismiss = "dismiss"
)

// Descriptor is the display structure built from a push payload.
// It is constructed per push event and discarded after display.
type Descriptor struct {
	Title              string   `json:"title"`
	Body               string   `json:"body"`
	Icon               string   `json:"icon"`
	Badge              string   `json:"badge"`
	Tag                string   `json:"tag"`
	RequireInteraction bool     `json:"requireInteraction"`
	Data               Data     `json:"data"`
	Actions            []Action `json:"-"`
}

// Data is the descriptor payload; URL is where an interaction
// navigates to.
type Data struct {
	URL string `json:"url"`
}

type Action struct {
	Action string
	Title  string
}

func defaultActions() []Action {
	return []Action{
		{Action: ActionOpen, Title: "Open Portal"},
		{Action: ActionDismiss, Title: "Dismiss"},
	}
}

// Notifier displays a notification. The UI side of this is out of
// scope here; the bridge only forwards the descriptor.
type Notifier interface {
	Show(Descriptor) error
}

// Client is an open page the notification can focus.
type Client interface {
	URL() string
	Focus() error
}

// Clients enumerates open pages and opens new ones.
type Clients interface {
	List() []Client
	OpenWindow(url string) error
}

// Bridge wires push payloads and notification interactions to the
// host environment.
type Bridge struct {
	defaults Descriptor
	notifier Notifier
	clients  Clients
	log      zerolog.Logger
}

func NewBridge(defaults Descriptor, notifier Notifier, clients Clients, logger zerolog.Logger) *Bridge {
	return &Bridge{
		defaults: defaults,
		notifier: notifier,
		clients:  clients,
		log:      logger.With().Str("component", "notify").Logger(),
	}
}

// HandlePush turns a push payload into a displayed notification.
// A JSON payload overlays the defaults field by field. A payload that
// does not parse as JSON becomes the body text, with every other field
// at its default. A malformed payload is never silently dropped: a
// notification is always shown.
func (b *Bridge) HandlePush(payload []byte) error {
	d := b.defaults
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &d); err != nil {
			b.log.Debug().Err(err).Msg("Push payload is not JSON, using it as body text")
			d = b.defaults
			d.Body = string(payload)
		}
	}
	d.Actions = defaultActions()
	b.log.Info().Str("title", d.Title).Str("tag", d.Tag).Msg("Showing notification")
	return b.notifier.Show(d)
}

// HandleClick routes a notification interaction. Dismiss closes the
// notification and nothing else. Any other action resolves the target
// URL from the descriptor data (default portal URL) and then either
// focuses an already-open matching page or opens a new one - exactly
// one of the two.
func (b *Bridge) HandleClick(action string, data Data) error {
	b.log.Debug().Str("action", action).Msg("Notification clicked")
	if action == ActionDismiss {
		return nil
	}
	target := data.URL
	if target == "" {
		target = b.defaults.Data.URL
	}
	// An empty target would match every open window below.
	if target == "" {
		b.log.Debug().Msg("Click without target URL ignored")
		return nil
	}
	for _, c := range b.clients.List() {
		if strings.Contains(c.URL(), target) {
			return c.Focus()
		}
	}
	return b.clients.OpenWindow(target)
}
