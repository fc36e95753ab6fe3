package bucket

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/rr-portal/offline-worker/pkg/reqkey"
	"github.com/rr-portal/offline-worker/pkg/respcodec"
)

// Manager owns the lifecycle of cache buckets.
// It is the only component that creates and deletes buckets; strategy
// code only reads and writes entries within the current bucket.
type Manager struct {
	provider Provider
	client   *http.Client
	keyer    reqkey.Keyer
	log      zerolog.Logger
}

func NewManager(provider Provider, client *http.Client, keyer reqkey.Keyer, logger zerolog.Logger) *Manager {
	if client == nil {
		client = http.DefaultClient
	}
	return &Manager{
		provider: provider,
		client:   client,
		keyer:    keyer,
		log:      logger.With().Str("component", "bucket").Logger(),
	}
}

// Open creates the named bucket if it does not exist. Idempotent.
func (m *Manager) Open(name string) error {
	return m.provider.EnsureBucket(name)
}

// Populate fetches every URL in the precache manifest and stores the
// responses in the named bucket. The operation is all-or-nothing: every
// URL is fetched first, and nothing is written unless all fetches
// succeed with a 2xx status.
func (m *Manager) Populate(ctx context.Context, name string, urls []string) error {
	type fetched struct {
		key   string
		bytes []byte
	}
	results := make([]fetched, len(urls))

	g, ctx := errgroup.WithContext(ctx)
	for i, u := range urls {
		i, u := i, u
		g.Go(func() error {
			key, err := m.keyer.ForURL(u)
			if err != nil {
				return fmt.Errorf("precache %s: %w", u, err)
			}
			bts, err := m.fetch(ctx, key)
			if err != nil {
				return fmt.Errorf("precache %s: %w", u, err)
			}
			results[i] = fetched{key: key, bytes: bts}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if err := m.provider.EnsureBucket(name); err != nil {
		return err
	}
	for _, f := range results {
		if err := m.provider.Put(name, f.key, f.bytes); err != nil {
			return err
		}
	}
	m.log.Info().Str("bucket", name).Int("entries", len(results)).Msg("Precache complete")
	return nil
}

// Add fetches a single URL and stores it in the named bucket.
// Used for out-of-band cache additions (best-effort, caller decides
// what a failure means).
func (m *Manager) Add(ctx context.Context, name, url string) error {
	key, err := m.keyer.ForURL(url)
	if err != nil {
		return err
	}
	bts, err := m.fetch(ctx, key)
	if err != nil {
		return err
	}
	return m.provider.Put(name, key, bts)
}

// Put inserts or replaces an entry in the named bucket.
func (m *Manager) Put(name, key string, stored []byte) error {
	return m.provider.Put(name, key, stored)
}

// Match returns the stored response bytes for the given key, or
// ErrNotFound. It never consults the network.
func (m *Manager) Match(name, key string) ([]byte, error) {
	return m.provider.Get(name, key)
}

// Sweep deletes every bucket except the named one.
// Deletion failures on individual buckets are logged and do not stop
// the sweep. Calling Sweep when no other buckets exist is a no-op.
func (m *Manager) Sweep(keep string) error {
	names, err := m.provider.Buckets()
	if err != nil {
		return fmt.Errorf("sweep: %w", err)
	}
	for _, name := range names {
		if name == keep {
			continue
		}
		if err := m.provider.DeleteBucket(name); err != nil {
			m.log.Error().Err(err).Str("bucket", name).Msg("Could not delete stale bucket")
			continue
		}
		m.log.Debug().Str("bucket", name).Msg("Deleted stale bucket")
	}
	return nil
}

// fetch performs the network request for the given key and returns the
// response in stored form. Non-2xx responses count as failures.
func (m *Manager) fetch(ctx context.Context, key string) ([]byte, error) {
	url := key[len(http.MethodGet)+1:]
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	res, err := m.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d", res.StatusCode)
	}
	return respcodec.Encode(res)
}
