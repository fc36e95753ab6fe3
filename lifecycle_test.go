package offlineworker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/rr-portal/offline-worker/bucket"
	"github.com/rr-portal/offline-worker/pkg/reqkey"
)

func newTestLifecycle(t *testing.T, origin, version string, manifest []string) (*Lifecycle, *bucket.Manager, bucket.Memory) {
	t.Helper()
	cfg := testConfig(t, origin)
	provider := bucket.NewMemory()
	store := bucket.NewManager(provider, nil, reqkey.New(cfg.OriginURL()), zerolog.Nop())
	return NewLifecycle(store, version, manifest, zerolog.Nop()), store, provider
}

func okServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("content for " + r.URL.Path))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestInstallReachesWaiting(t *testing.T) {
	server := okServer(t)
	lc, store, _ := newTestLifecycle(t, server.URL, "v2", []string{"/", "/offline.html"})

	if err := lc.Install(context.Background()); err != nil {
		t.Fatal(err)
	}
	if lc.State() != StateWaiting {
		t.Fatalf("State is %s", lc.State())
	}
	for _, path := range []string{"/", "/offline.html"} {
		if _, err := store.Match("v2", "GET "+server.URL+path); err != nil {
			t.Fatalf("Manifest entry %s missing: %v", path, err)
		}
	}
}

func TestInstallFailureAbortsRegistration(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/offline.html" {
			http.Error(w, "deploy gone wrong", http.StatusInternalServerError)
			return
		}
		w.Write([]byte("fine"))
	}))
	defer server.Close()
	lc, _, provider := newTestLifecycle(t, server.URL, "v2", []string{"/", "/offline.html"})

	if err := lc.Install(context.Background()); err == nil {
		t.Fatal("Expected install to fail")
	}
	if lc.State() != StateSuperseded {
		t.Fatalf("State is %s", lc.State())
	}
	if lc.Controls() {
		t.Fatal("Failed install must not control pages")
	}
	names, _ := provider.Buckets()
	if len(names) != 0 {
		t.Fatalf("Buckets after failed install: %v", names)
	}
}

func TestSkipWaitingBeforeInstallActivatesImmediately(t *testing.T) {
	server := okServer(t)
	lc, _, _ := newTestLifecycle(t, server.URL, "v2", []string{"/"})

	if err := lc.SkipWaiting(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := lc.Install(context.Background()); err != nil {
		t.Fatal(err)
	}
	if lc.State() != StateActive {
		t.Fatalf("State is %s", lc.State())
	}
}

func TestSkipWaitingWhileWaitingActivates(t *testing.T) {
	server := okServer(t)
	lc, _, provider := newTestLifecycle(t, server.URL, "v2", []string{"/"})
	provider.Put("v1", "key", []byte("stale"))

	if err := lc.Install(context.Background()); err != nil {
		t.Fatal(err)
	}
	if lc.State() != StateWaiting {
		t.Fatalf("State is %s", lc.State())
	}
	if err := lc.SkipWaiting(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !lc.Controls() {
		t.Fatalf("State is %s", lc.State())
	}
	names, _ := provider.Buckets()
	if len(names) != 1 || names[0] != "v2" {
		t.Fatalf("Buckets after activation: %v", names)
	}
}

func TestActivationSweepsStaleBuckets(t *testing.T) {
	server := okServer(t)
	lc, _, provider := newTestLifecycle(t, server.URL, "v2", []string{"/"})
	provider.Put("v1", "GET http://old/", []byte("stale"))

	if err := lc.Install(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := lc.Activate(context.Background()); err != nil {
		t.Fatal(err)
	}
	names, _ := provider.Buckets()
	if len(names) != 1 || names[0] != "v2" {
		t.Fatalf("Buckets after sweep: %v", names)
	}
}

func TestActivateClaimsClients(t *testing.T) {
	server := okServer(t)
	lc, _, _ := newTestLifecycle(t, server.URL, "v2", []string{"/"})
	var claimed bool
	lc.OnClaim(func() { claimed = true })

	lc.Install(context.Background())
	lc.Activate(context.Background())

	if !claimed {
		t.Fatal("Activation did not claim clients")
	}
}

func TestSupersededInstanceCannotActivate(t *testing.T) {
	server := okServer(t)
	lc, _, _ := newTestLifecycle(t, server.URL, "v2", []string{"/"})
	lc.Install(context.Background())
	lc.Supersede()

	if err := lc.Activate(context.Background()); err == nil {
		t.Fatal("Expected activation of superseded instance to fail")
	}
	if lc.Controls() {
		t.Fatal("Superseded instance must not control pages")
	}
}

// An instance that is not yet active leaves requests untouched.
func TestWorkerPassesThroughUntilActive(t *testing.T) {
	server := okServer(t)
	cfg := testConfig(t, server.URL)
	provider := &countingProvider{Memory: bucket.NewMemory()}
	store := bucket.NewManager(provider, nil, reqkey.New(cfg.OriginURL()), zerolog.Nop())
	lc := NewLifecycle(store, cfg.Version, []string{"/"}, zerolog.Nop())
	logger := zerolog.Nop()
	worker, err := New(Options{Config: cfg, Store: store, Lifecycle: lc, Logger: &logger})
	if err != nil {
		t.Fatal(err)
	}

	rr := get(t, worker, "/portal", navHeaders)
	if rr.Code != http.StatusOK {
		t.Fatalf("Status is %d", rr.Code)
	}
	if provider.gets != 0 || provider.puts != 0 {
		t.Fatalf("Cache touched before activation: %d gets, %d puts", provider.gets, provider.puts)
	}

	lc.Install(context.Background())
	lc.Activate(context.Background())
	putsAfterInstall := provider.puts
	get(t, worker, "/portal", navHeaders)
	if provider.puts <= putsAfterInstall {
		t.Fatal("Active worker did not cache the navigation")
	}
}
