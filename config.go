package offlineworker

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config describes one worker deployment: the application origin, the
// cache version, the precache manifest and the classification lists.
// Values come from a YAML file with an environment-variable overlay.
type Config struct {
	// Version discriminator, used as the cache bucket name.
	// Bump it on deploy to trigger generational cache replacement.
	Version string `yaml:"version" env:"SW_VERSION"`
	// Origin is the URL of the application shell being served.
	Origin string `yaml:"origin" env:"SW_ORIGIN"`
	// OfflineURL is the precached document served when a navigation
	// fails and nothing is cached for it.
	OfflineURL string `yaml:"offlineURL" env:"SW_OFFLINE_URL"`
	// PortalURL is the default notification target.
	PortalURL string `yaml:"portalURL"`
	// Precache is the manifest of URLs fetched at install.
	// Every entry must be fetchable without authentication.
	Precache []string `yaml:"precache"`

	// ExcludedHosts bypass all caching (substring match on hostname).
	ExcludedHosts []string `yaml:"excludedHosts"`
	// ExcludedPaths bypass all caching (substring match on path).
	ExcludedPaths []string `yaml:"excludedPaths"`
	// AssetExtensions mark static assets by URL path extension.
	AssetExtensions []string `yaml:"assetExtensions"`
	// AssetHosts mark static assets by CDN hostname (substring match).
	AssetHosts []string `yaml:"assetHosts"`

	// FetchTimeout bounds origin fetches, e.g. "30s". Empty means no
	// timeout, which is the baseline contract; set it as a hardening
	// measure.
	FetchTimeout string `yaml:"fetchTimeout" env:"SW_FETCH_TIMEOUT"`

	Notifications NotificationConfig `yaml:"notifications"`
	Forwarders    ForwarderConfig    `yaml:"forwarders"`

	originURL    *url.URL
	fetchTimeout time.Duration
}

// NotificationConfig holds the descriptor defaults used when a push
// payload does not override them.
type NotificationConfig struct {
	Title string `yaml:"title"`
	Body  string `yaml:"body"`
	Icon  string `yaml:"icon"`
	Badge string `yaml:"badge"`
	Tag   string `yaml:"tag"`
}

// ForwarderConfig configures the pass-through booking endpoints.
type ForwarderConfig struct {
	AvailabilityURL string `yaml:"availabilityURL" env:"AVAILABILITY_WEBHOOK_URL"`
	BookingURL      string `yaml:"bookingURL" env:"CLINIKO_BASE_URL"`
	BookingAPIKey   string `yaml:"-" env:"CLINIKO_API_KEY"`
}

// LoadConfig reads the YAML file at path (skipped if path is empty)
// and applies environment overrides. Callers apply any further
// overrides of their own and then call Prepare.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Prepare applies defaults and validates the config.
func (c *Config) Prepare() error {
	if c.Origin == "" {
		return fmt.Errorf("origin is required")
	}
	u, err := url.Parse(c.Origin)
	if err != nil {
		return fmt.Errorf("origin: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("origin must be an absolute URL: %q", c.Origin)
	}
	c.originURL = u

	if c.FetchTimeout != "" {
		d, err := time.ParseDuration(c.FetchTimeout)
		if err != nil {
			return fmt.Errorf("fetchTimeout: %w", err)
		}
		c.fetchTimeout = d
	}

	if c.Version == "" {
		c.Version = "rr-portal-v1"
	}
	if c.OfflineURL == "" {
		c.OfflineURL = "/offline.html"
	}
	if c.PortalURL == "" {
		c.PortalURL = "/portal.html"
	}
	if len(c.Precache) == 0 {
		c.Precache = []string{"/", c.PortalURL, c.OfflineURL}
	}
	if len(c.ExcludedHosts) == 0 {
		c.ExcludedHosts = []string{"railway.app", "auth0.com", "googleapis.com", "stripe.com"}
	}
	if len(c.ExcludedPaths) == 0 {
		c.ExcludedPaths = []string{"/webhook"}
	}
	if len(c.AssetExtensions) == 0 {
		c.AssetExtensions = []string{
			"js", "css", "png", "jpg", "jpeg", "gif", "svg",
			"woff", "woff2", "ttf", "ico",
		}
	}
	if len(c.AssetHosts) == 0 {
		c.AssetHosts = []string{
			"fonts.googleapis.com", "fonts.gstatic.com",
			"wixstatic.com", "unpkg.com", "cdn.tailwindcss.com",
		}
	}
	if c.Notifications.Title == "" {
		c.Notifications.Title = "Relax & Renew"
	}
	if c.Notifications.Body == "" {
		c.Notifications.Body = "You have a new notification"
	}
	if c.Notifications.Icon == "" {
		c.Notifications.Icon = "/icons/icon-192x192.png"
	}
	if c.Notifications.Badge == "" {
		c.Notifications.Badge = "/icons/badge-72x72.png"
	}
	if c.Notifications.Tag == "" {
		c.Notifications.Tag = "rr-notification"
	}
	return nil
}

// OriginURL returns the parsed application origin.
func (c *Config) OriginURL() *url.URL {
	return c.originURL
}

// Timeout returns the parsed fetch timeout, zero when unset.
func (c *Config) Timeout() time.Duration {
	return c.fetchTimeout
}
