package offlineworker

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/rr-portal/offline-worker/bucket"
)

// State is the lifecycle state of a worker instance.
type State int

const (
	// StateInstalling is the initial state; the precache manifest is
	// being populated into the version bucket.
	StateInstalling State = iota
	// StateWaiting holds an installed instance until it is activated
	// or superseded.
	StateWaiting
	// StateActivating sweeps stale buckets and claims the pages.
	StateActivating
	// StateActive is the steady state: all requests are intercepted.
	StateActive
	// StateSuperseded instances no longer intercept anything.
	StateSuperseded
)

func (s State) String() string {
	switch s {
	case StateInstalling:
		return "installing"
	case StateWaiting:
		return "waiting"
	case StateActivating:
		return "activating"
	case StateActive:
		return "active"
	case StateSuperseded:
		return "superseded"
	default:
		return "unknown"
	}
}

// Lifecycle governs the install/activate transitions of one worker
// version. Install populates the version bucket from the manifest,
// Activate sweeps every other bucket and starts interception.
// An explicit skip-waiting signal forces activation without waiting.
type Lifecycle struct {
	mu          sync.Mutex
	state       State
	skipWaiting bool

	version  string
	manifest []string
	store    *bucket.Manager
	log      zerolog.Logger

	// onClaim is called once when the instance reaches Active.
	onClaim func()
}

func NewLifecycle(store *bucket.Manager, version string, manifest []string, logger zerolog.Logger) *Lifecycle {
	return &Lifecycle{
		state:    StateInstalling,
		version:  version,
		manifest: manifest,
		store:    store,
		log:      logger.With().Str("component", "lifecycle").Str("version", version).Logger(),
	}
}

// OnClaim registers a callback invoked when the instance claims the
// open pages during activation.
func (l *Lifecycle) OnClaim(fn func()) {
	l.mu.Lock()
	l.onClaim = fn
	l.mu.Unlock()
}

func (l *Lifecycle) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Controls reports whether this instance currently intercepts requests.
func (l *Lifecycle) Controls() bool {
	return l.State() == StateActive
}

// BucketName returns the versioned name of this instance's bucket.
func (l *Lifecycle) BucketName() string {
	return l.version
}

// Install populates the precache manifest into the version bucket.
// Population is all-or-nothing; on failure the instance never becomes
// active. On success the instance waits, unless a skip-waiting signal
// was already received, in which case it activates immediately.
func (l *Lifecycle) Install(ctx context.Context) error {
	l.log.Info().Msg("Installing")
	if err := l.store.Populate(ctx, l.version, l.manifest); err != nil {
		l.mu.Lock()
		l.state = StateSuperseded
		l.mu.Unlock()
		l.log.Error().Err(err).Msg("Install failed")
		return fmt.Errorf("install: %w", err)
	}

	l.mu.Lock()
	skip := l.skipWaiting
	if !skip {
		l.state = StateWaiting
	}
	l.mu.Unlock()

	if skip {
		return l.Activate(ctx)
	}
	l.log.Info().Msg("Installed, waiting")
	return nil
}

// SkipWaiting forces immediate activation. Received before install
// completes, it makes the install transition straight to activation;
// received while waiting, it activates now.
func (l *Lifecycle) SkipWaiting(ctx context.Context) error {
	l.mu.Lock()
	switch l.state {
	case StateInstalling:
		l.skipWaiting = true
		l.mu.Unlock()
		return nil
	case StateWaiting:
		l.mu.Unlock()
		return l.Activate(ctx)
	default:
		l.mu.Unlock()
		return nil
	}
}

// Activate sweeps every bucket except this version's and claims the
// open pages. Individual bucket deletion failures do not abort the
// sweep, and a failed enumeration still lets the instance go active:
// serving requests beats a clean disk.
func (l *Lifecycle) Activate(ctx context.Context) error {
	l.mu.Lock()
	switch l.state {
	case StateActive, StateActivating:
		l.mu.Unlock()
		return nil
	case StateSuperseded:
		l.mu.Unlock()
		return fmt.Errorf("superseded instance cannot activate")
	}
	l.state = StateActivating
	l.mu.Unlock()

	l.log.Info().Msg("Activating")
	if err := l.store.Sweep(l.version); err != nil {
		l.log.Error().Err(err).Msg("Could not sweep stale buckets")
	}

	l.mu.Lock()
	l.state = StateActive
	claim := l.onClaim
	l.mu.Unlock()

	l.log.Info().Msg("Active")
	if claim != nil {
		claim()
	}
	return nil
}

// Supersede marks this instance as replaced by a newer install.
func (l *Lifecycle) Supersede() {
	l.mu.Lock()
	l.state = StateSuperseded
	l.mu.Unlock()
	l.log.Info().Msg("Superseded")
}
