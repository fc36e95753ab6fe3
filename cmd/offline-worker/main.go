package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	offlineworker "github.com/rr-portal/offline-worker"
	"github.com/rr-portal/offline-worker/bucket"
	"github.com/rr-portal/offline-worker/notify"
	"github.com/rr-portal/offline-worker/pkg/reqkey"
)

var (
	// CLI flags
	configFilenameFlag string
	portFlag           int
	originFlag         string
	providerFlag       string
	dbFilenameFlag     string
	verbosityTraceFlag bool
	logFilenameFlag    string

	// this is set by goreleaser
	version string
)

func init() {
	flag.StringVar(&configFilenameFlag, "config", "", "Path to config file")
	flag.StringVar(&originFlag, "origin", "", "Origin URL of the app shell (overrides config)")
	flag.IntVar(&portFlag, "port", 8080, "Port to listen on")
	flag.StringVar(&providerFlag, "provider", "sqlite", "Bucket provider to use (sqlite, memory, leveldb, badger)")
	flag.StringVar(&dbFilenameFlag, "db", "cache.db", "Cache DB file or directory (use 'memory' for in-memory sqlite)")
	flag.BoolVar(&verbosityTraceFlag, "vv", false, "Verbosity: trace logging")
	flag.StringVar(&logFilenameFlag, "log-file", "", "Log file to use (in addition to stdout)")

	if version == "" {
		version = "DEV"
	}
}

func main() {
	flag.Parse()

	// set log level
	logLevel := zerolog.DebugLevel
	if verbosityTraceFlag {
		logLevel = zerolog.TraceLevel
	}

	// set up log output to stdout
	// also output to logfile if specified
	logOutputs := make([]io.Writer, 0)
	logOutputs = append(logOutputs, zerolog.ConsoleWriter{Out: os.Stdout})
	if logFilenameFlag != "" {
		if logFileOutput, err := os.OpenFile(logFilenameFlag, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644); err != nil {
			log.Fatal().Err(err).Msg("Cannot open log file")
		} else {
			logOutputs = append(logOutputs, logFileOutput)
		}
	}
	multiWriter := zerolog.MultiLevelWriter(logOutputs...)
	log.Logger = log.Level(logLevel).Output(multiWriter).
		With().Str("version", version).Logger()

	cfg, err := offlineworker.LoadConfig(configFilenameFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("Could not load config")
	}
	if originFlag != "" {
		cfg.Origin = originFlag
	}
	if err := cfg.Prepare(); err != nil {
		log.Fatal().Err(err).Msg("Invalid config")
	}

	// use configured provider, abort if unknown
	var provider bucket.Provider
	dbFilename := dbFilenameFlag
	if dbFilename == "memory" {
		dbFilename = ""
	}
	switch providerFlag {
	case "sqlite":
		provider, err = bucket.NewSQLite(dbFilename)
	case "memory":
		provider = bucket.NewMemory()
	case "leveldb":
		provider, err = bucket.NewLevelDB(dbFilename)
	case "badger":
		provider, err = bucket.NewBadger(dbFilename)
	default:
		log.Fatal().Msgf("Unsupported bucket provider: %s", providerFlag)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Could not open bucket provider")
	}
	defer provider.Close()

	client := &http.Client{Timeout: cfg.Timeout()}
	store := bucket.NewManager(provider, client, reqkey.New(cfg.OriginURL()), log.Logger)
	lifecycle := offlineworker.NewLifecycle(store, cfg.Version, cfg.Precache, log.Logger)

	worker, err := offlineworker.New(offlineworker.Options{
		Config:    cfg,
		Store:     store,
		Lifecycle: lifecycle,
		Client:    client,
		Logger:    &log.Logger,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Could not create worker")
	}

	registry := notify.NewRegistry(log.Logger)
	bridge := notify.NewBridge(notify.Descriptor{
		Title: cfg.Notifications.Title,
		Body:  cfg.Notifications.Body,
		Icon:  cfg.Notifications.Icon,
		Badge: cfg.Notifications.Badge,
		Tag:   cfg.Notifications.Tag,
		Data:  notify.Data{URL: cfg.PortalURL},
	}, logNotifier{}, registry, log.Logger)

	// a fresh start has no older version holding pages open, so skip
	// the waiting phase and activate as soon as the precache is in
	ctx := context.Background()
	if err := lifecycle.SkipWaiting(ctx); err != nil {
		log.Fatal().Err(err).Msg("Could not signal skip waiting")
	}
	if err := lifecycle.Install(ctx); err != nil {
		log.Fatal().Err(err).Msg("Install failed")
	}

	r := chi.NewRouter()
	r.Post("/sw/message", messageHandler(worker))
	r.Post("/sw/push", pushHandler(bridge))
	r.Post("/sw/click", clickHandler(bridge))
	r.Post("/sw/sync/{tag}", func(rw http.ResponseWriter, req *http.Request) {
		worker.HandleSync(chi.URLParam(req, "tag"))
		rw.WriteHeader(http.StatusAccepted)
	})
	r.Get("/sw/state", func(rw http.ResponseWriter, req *http.Request) {
		rw.Header().Set("Content-Type", "application/json")
		json.NewEncoder(rw).Encode(map[string]string{
			"state":  lifecycle.State().String(),
			"bucket": lifecycle.BucketName(),
		})
	})
	if cfg.Forwarders.AvailabilityURL != "" {
		r.Post("/api/availability", offlineworker.NewForwarder(
			cfg.Forwarders.AvailabilityURL, "", client, log.Logger).ServeHTTP)
	}
	if cfg.Forwarders.BookingURL != "" {
		r.Post("/api/booking", offlineworker.NewForwarder(
			cfg.Forwarders.BookingURL,
			offlineworker.BasicAuth(cfg.Forwarders.BookingAPIKey),
			client, log.Logger).ServeHTTP)
	}
	r.Handle("/*", worker)

	log.Info().Msgf("Intercepting port %v for %s (bucket '%s')", portFlag, cfg.Origin, cfg.Version)
	if err := http.ListenAndServe(fmt.Sprintf(":%d", portFlag), r); err != nil {
		log.Fatal().Err(err).Msg("Server stopped")
	}
}

func messageHandler(worker *offlineworker.Worker) http.HandlerFunc {
	return func(rw http.ResponseWriter, req *http.Request) {
		var msg offlineworker.Message
		if err := json.NewDecoder(req.Body).Decode(&msg); err != nil {
			http.Error(rw, "Bad Request", http.StatusBadRequest)
			return
		}
		worker.HandleMessage(req.Context(), msg)
		rw.WriteHeader(http.StatusAccepted)
	}
}

func pushHandler(bridge *notify.Bridge) http.HandlerFunc {
	return func(rw http.ResponseWriter, req *http.Request) {
		payload, err := io.ReadAll(req.Body)
		if err != nil {
			http.Error(rw, "Bad Request", http.StatusBadRequest)
			return
		}
		if err := bridge.HandlePush(payload); err != nil {
			http.Error(rw, "Could not show notification", http.StatusInternalServerError)
			return
		}
		rw.WriteHeader(http.StatusAccepted)
	}
}

func clickHandler(bridge *notify.Bridge) http.HandlerFunc {
	return func(rw http.ResponseWriter, req *http.Request) {
		var click struct {
			Action string      `json:"action"`
			Data   notify.Data `json:"data"`
		}
		if err := json.NewDecoder(req.Body).Decode(&click); err != nil {
			http.Error(rw, "Bad Request", http.StatusBadRequest)
			return
		}
		if err := bridge.HandleClick(click.Action, click.Data); err != nil {
			http.Error(rw, "Could not handle click", http.StatusInternalServerError)
			return
		}
		rw.WriteHeader(http.StatusAccepted)
	}
}

// logNotifier forwards notifications to the log; rendering real UI
// notifications is the host page's concern.
type logNotifier struct{}

func (logNotifier) Show(d notify.Descriptor) error {
	log.Info().
		Str("title", d.Title).
		Str("body", d.Body).
		Str("tag", d.Tag).
		Str("url", d.Data.URL).
		Msg("Notification")
	return nil
}
