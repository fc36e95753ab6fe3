package notify

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

type recordingNotifier struct {
	shown []Descriptor
}

func (r *recordingNotifier) Show(d Descriptor) error {
	r.shown = append(r.shown, d)
	return nil
}

type fakeClient struct {
	url     string
	focused bool
}

func (f *fakeClient) URL() string  { return f.url }
func (f *fakeClient) Focus() error { f.focused = true; return nil }

type fakeClients struct {
	clients []*fakeClient
	opened  []string
}

func (f *fakeClients) List() []Client {
	out := make([]Client, len(f.clients))
	for i, c := range f.clients {
		out[i] = c
	}
	return out
}

func (f *fakeClients) OpenWindow(url string) error {
	f.opened = append(f.opened, url)
	return nil
}

func testDefaults() Descriptor {
	return Descriptor{
		Title: "Relax & Renew",
		Body:  "You have a new notification",
		Icon:  "/icons/icon-192x192.png",
		Badge: "/icons/badge-72x72.png",
		Tag:   "rr-notification",
		Data:  Data{URL: "/portal.html"},
	}
}

func newTestBridge() (*Bridge, *recordingNotifier, *fakeClients) {
	notifier := &recordingNotifier{}
	clients := &fakeClients{}
	return NewBridge(testDefaults(), notifier, clients, zerolog.Nop()), notifier, clients
}

func TestPushWithJSONPayloadOverlaysDefaults(t *testing.T) {
	bridge, notifier, _ := newTestBridge()
	err := bridge.HandlePush([]byte(`{"title":"Waitlist spot open","body":"A slot just freed up"}`))
	if err != nil {
		t.Fatal(err)
	}
	if len(notifier.shown) != 1 {
		t.Fatalf("Shown %d notifications", len(notifier.shown))
	}
	d := notifier.shown[0]
	if d.Title != "Waitlist spot open" || d.Body != "A slot just freed up" {
		t.Fatalf("Descriptor is %+v", d)
	}
	// untouched fields keep their defaults
	if d.Tag != "rr-notification" || d.Data.URL != "/portal.html" {
		t.Fatalf("Defaults lost: %+v", d)
	}
}

func TestPushWithPlainTextPayload(t *testing.T) {
	bridge, notifier, _ := newTestBridge()
	if err := bridge.HandlePush([]byte("plain text")); err != nil {
		t.Fatal(err)
	}
	d := notifier.shown[0]
	if d.Body != "plain text" {
		t.Fatalf("Body is %q", d.Body)
	}
	if d.Title != "Relax & Renew" {
		t.Fatalf("Title is %q", d.Title)
	}
}

func TestPushWithEmptyPayloadShowsDefaults(t *testing.T) {
	bridge, notifier, _ := newTestBridge()
	if err := bridge.HandlePush(nil); err != nil {
		t.Fatal(err)
	}
	d := notifier.shown[0]
	if d.Body != "You have a new notification" {
		t.Fatalf("Body is %q", d.Body)
	}
}

func TestPushAlwaysCarriesActions(t *testing.T) {
	bridge, notifier, _ := newTestBridge()
	bridge.HandlePush([]byte("whatever"))
	d := notifier.shown[0]
	if len(d.Actions) != 2 || d.Actions[0].Action != ActionOpen || d.Actions[1].Action != ActionDismiss {
		t.Fatalf("Actions are %+v", d.Actions)
	}
}

func TestClickDismissDoesNothing(t *testing.T) {
	bridge, _, clients := newTestBridge()
	clients.clients = []*fakeClient{{url: "https://site/portal.html"}}

	if err := bridge.HandleClick(ActionDismiss, Data{URL: "/portal.html"}); err != nil {
		t.Fatal(err)
	}
	if clients.clients[0].focused || len(clients.opened) != 0 {
		t.Fatal("Dismiss must not focus or open anything")
	}
}

func TestClickFocusesMatchingWindow(t *testing.T) {
	bridge, _, clients := newTestBridge()
	other := &fakeClient{url: "https://site/about.html"}
	portal := &fakeClient{url: "https://site/portal.html"}
	clients.clients = []*fakeClient{other, portal}

	if err := bridge.HandleClick(ActionOpen, Data{URL: "/portal.html"}); err != nil {
		t.Fatal(err)
	}
	if !portal.focused {
		t.Fatal("Matching window not focused")
	}
	if other.focused {
		t.Fatal("Wrong window focused")
	}
	if len(clients.opened) != 0 {
		t.Fatalf("Opened %v in addition to focusing", clients.opened)
	}
}

func TestClickOpensWindowWhenNoneMatches(t *testing.T) {
	bridge, _, clients := newTestBridge()
	clients.clients = []*fakeClient{{url: "https://site/about.html"}}

	if err := bridge.HandleClick(ActionOpen, Data{URL: "/portal.html"}); err != nil {
		t.Fatal(err)
	}
	if len(clients.opened) != 1 || clients.opened[0] != "/portal.html" {
		t.Fatalf("Opened %v", clients.opened)
	}
}

func TestClickDefaultsToPortalURL(t *testing.T) {
	bridge, _, clients := newTestBridge()
	if err := bridge.HandleClick("", Data{}); err != nil {
		t.Fatal(err)
	}
	if len(clients.opened) != 1 || clients.opened[0] != "/portal.html" {
		t.Fatalf("Opened %v", clients.opened)
	}
}

func TestClickWithoutAnyTargetFocusesNothing(t *testing.T) {
	notifier := &recordingNotifier{}
	clients := &fakeClients{}
	defaults := testDefaults()
	defaults.Data.URL = ""
	bridge := NewBridge(defaults, notifier, clients, zerolog.Nop())

	unrelated := &fakeClient{url: "https://example.com/somewhere"}
	clients.clients = append(clients.clients, unrelated)

	if err := bridge.HandleClick(ActionOpen, Data{}); err != nil {
		t.Fatal(err)
	}
	if unrelated.focused {
		t.Fatal("Unrelated window focused")
	}
	if len(clients.opened) != 0 {
		t.Fatalf("Opened %v", clients.opened)
	}
}

func TestNotifierErrorSurfaces(t *testing.T) {
	wantErr := errors.New("display broken")
	bridge := NewBridge(testDefaults(), failingNotifier{wantErr}, &fakeClients{}, zerolog.Nop())
	if err := bridge.HandlePush([]byte("hi")); !errors.Is(err, wantErr) {
		t.Fatalf("Got %v", err)
	}
}

type failingNotifier struct{ err error }

func (f failingNotifier) Show(Descriptor) error { return f.err }
