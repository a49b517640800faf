// Library Core - book, member and loan service
//
// This is the main entry point for the library REST service. It serves the
// book, member and loan collections over HTTP, mirrors every change to the
// configured backing store, and optionally announces changes on an MQTT
// bus, records activity in InfluxDB, and keeps an audit trail in SQLite.
//
// Usage:
//
//	librarycore                      run the service
//	librarycore hash-password [pw]   print an argon2id hash for a librarian account
//	librarycore migrate status|up|down  inspect, apply or roll back database migrations
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nerrad567/library-core/internal/api"
	"github.com/nerrad567/library-core/internal/audit"
	"github.com/nerrad567/library-core/internal/auth"
	"github.com/nerrad567/library-core/internal/infrastructure/config"
	"github.com/nerrad567/library-core/internal/infrastructure/database"
	"github.com/nerrad567/library-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/library-core/internal/infrastructure/logging"
	"github.com/nerrad567/library-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/library-core/internal/library"
	"github.com/nerrad567/library-core/internal/publisher"
	"github.com/nerrad567/library-core/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// auditQueueSize bounds audit entries waiting to be written.
const auditQueueSize = 256

func main() {
	if len(os.Args) > 1 && os.Args[1] == "hash-password" {
		if err := hashPassword(os.Args[2:], os.Stdin, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := migrate(context.Background(), os.Args[2:], os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Cancel on Ctrl+C or SIGTERM for a graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// It returns nil on clean shutdown.
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // linear startup sequence
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Library Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, configFound, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if configFound {
		log.Info("configuration loaded", "path", configPath)
	} else {
		log.Warn("config file not found, using defaults", "path", configPath)
	}

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Open the library store
	persister, err := newPersister(cfg, db)
	if err != nil {
		return err
	}
	store, err := library.Open(ctx, library.Options{
		Persister: persister,
		Logger:    log.With("component", "store"),
		Seed:      cfg.Store.Seed,
	})
	if err != nil {
		return fmt.Errorf("opening library store: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			log.Error("error closing library store", "error", closeErr)
		}
	}()
	stats := store.Stats()
	log.Info("library store ready",
		"backend", cfg.Store.Backend,
		"books", stats.Books,
		"members", stats.Members,
		"loans", stats.Loans,
	)

	// Connect to MQTT broker (optional). A broker that cannot be reached
	// leaves the service running without bus announcements.
	var mqttClient *mqtt.Client
	var pub *publisher.Publisher
	if cfg.MQTT.Enabled {
		mqttClient, pub = startPublisher(cfg, store, log)
		if mqttClient != nil {
			defer func() {
				log.Info("disconnecting from MQTT")
				if closeErr := mqttClient.Close(); closeErr != nil {
					log.Error("error closing MQTT", "error", closeErr)
				}
			}()
		}
		if pub != nil {
			// Flushes queued changes after the API has stopped and before
			// the broker connection closes.
			defer runPublisher(pub)()
		}
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			log.Warn("InfluxDB unavailable, activity history disabled", "error", err)
			influxClient = nil
		} else {
			defer func() {
				log.Info("closing InfluxDB connection")
				if closeErr := influxClient.Close(); closeErr != nil {
					log.Error("error closing InfluxDB", "error", closeErr)
				}
			}()
			influxClient.SetOnError(func(err error) {
				log.Error("InfluxDB write error", "error", err)
			})
			store.AddNotifier(activityRecorder(influxClient, store, cfg.Site.ID))
			log.Info("InfluxDB connected",
				"url", cfg.InfluxDB.URL,
				"org", cfg.InfluxDB.Org,
				"bucket", cfg.InfluxDB.Bucket,
			)
		}
	} else {
		log.Info("InfluxDB disabled")
	}

	// Audit trail
	var recorder *audit.Recorder
	if cfg.Audit.Enabled {
		recorder = audit.NewRecorder(audit.NewSQLiteRepository(db.DB), auditQueueSize, log)
		if cfg.Audit.RetentionDays > 0 {
			purged, purgeErr := recorder.PurgeOlderThan(ctx, cfg.Audit.RetentionDays, time.Now())
			if purgeErr != nil {
				log.Warn("audit purge failed", "error", purgeErr)
			} else if purged > 0 {
				log.Info("audit entries purged", "count", purged, "retention_days", cfg.Audit.RetentionDays)
			}
		}
		auditDone := make(chan struct{})
		auditCtx, stopAudit := context.WithCancel(context.Background())
		go func() {
			recorder.Run(auditCtx)
			close(auditDone)
		}()
		// Drains after the API has stopped accepting requests.
		defer func() {
			stopAudit()
			<-auditDone
		}()
	}

	var authenticator *auth.Authenticator
	if cfg.Security.Auth.Enabled {
		authenticator = auth.NewAuthenticator(cfg.Security)
		log.Info("authentication enabled", "librarians", len(cfg.Security.Auth.Librarians))
	}

	// Start the HTTP API
	srv, err := api.New(api.Deps{
		Config:    cfg.API,
		WS:        cfg.WebSocket,
		Security:  cfg.Security,
		Site:      cfg.Site,
		Logger:    log,
		Store:     store,
		DB:        db,
		MQTT:      mqttClient,
		InfluxDB:  influxClient,
		Publisher: pub,
		Audit:     recorder,
		Auth:      authenticator,
		Version:   version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := srv.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	// Apply log level changes without a restart
	if configFound {
		go func() {
			watchErr := config.Watch(ctx, configPath, log.Logger, func(next *config.Config) {
				log.SetLevel(next.Logging.Level)
				log.Info("log level applied", "level", next.Logging.Level)
			})
			if watchErr != nil {
				log.Warn("config watcher stopped", "error", watchErr)
			}
		}()
	}

	log.Info("initialisation complete, waiting for shutdown signal", "address", srv.Addr())

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// API server, audit recorder, InfluxDB, publisher, MQTT, store, database.

	log.Info("Library Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses LIBRARY_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("LIBRARY_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// loadConfig reads path, falling back to the built-in defaults when the
// file does not exist. found reports whether the file was read.
func loadConfig(path string) (cfg *config.Config, found bool, err error) {
	cfg, err = config.Load(path)
	switch {
	case err == nil:
		return cfg, true, nil
	case errors.Is(err, fs.ErrNotExist):
		cfg = config.Default()
		if err := cfg.Validate(); err != nil {
			return nil, false, fmt.Errorf("validating default config: %w", err)
		}
		return cfg, false, nil
	default:
		return nil, false, err
	}
}

// newPersister returns the backing store selected by store.backend.
func newPersister(cfg *config.Config, db *database.DB) (library.Persister, error) {
	switch cfg.Store.Backend {
	case config.StoreBackendFile:
		return library.NewFilePersister(cfg.Store.Path), nil
	case config.StoreBackendSQLite:
		return library.NewSQLitePersister(db), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// startPublisher connects to the broker and registers the change publisher
// with the store. The publisher is nil when the broker cannot be reached or
// publishing is disabled; start it with runPublisher.
func startPublisher(cfg *config.Config, store *library.Store, log *logging.Logger) (*mqtt.Client, *publisher.Publisher) {
	topics := mqtt.NewTopics(cfg.Publisher.TopicPrefix)
	client, err := mqtt.Connect(cfg.MQTT, topics)
	if err != nil {
		log.Warn("MQTT unavailable, change announcements disabled", "error", err)
		return nil, nil
	}
	client.SetLogger(log)
	client.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	client.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	if !cfg.Publisher.Enabled {
		log.Info("change publisher disabled")
		return client, nil
	}

	pub := publisher.New(client, publisher.Options{
		Topics:   topics,
		QoS:      byte(cfg.MQTT.QoS), //nolint:gosec // validated to 0-2
		BaseURL:  cfg.GetPublicBaseURL(),
		Interval: cfg.GetAnnounceInterval(),
		Queue:    cfg.Publisher.QueueSize,
		Logger:   log,
	})
	store.AddNotifier(pub)
	log.Info("change publisher started",
		"prefix", cfg.Publisher.TopicPrefix,
		"announce_interval", cfg.GetAnnounceInterval(),
	)
	return client, pub
}

// runPublisher starts pub and returns a func that stops it and waits until
// every queued change has been published.
func runPublisher(pub *publisher.Publisher) (stop func()) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		pub.Run(ctx)
		close(done)
	}()
	return func() {
		cancel()
		<-done
	}
}

// activityRecorder writes every change and the resulting collection sizes to InfluxDB.
func activityRecorder(client *influxdb.Client, store *library.Store, site string) library.Notifier {
	return library.NotifierFunc(func(c library.Change) {
		client.WriteActivity(c.Kind, string(c.Action), c.ID, c.At)
		s := store.Stats()
		client.WriteCollectionSizes(site, s.Books, s.Members, s.Loans, s.OnLoan)
	})
}

// migrate runs a migration command against the configured database.
func migrate(ctx context.Context, args []string, out io.Writer) error {
	if len(args) != 1 {
		return errors.New("usage: librarycore migrate status|up|down")
	}
	cmd := args[0]
	if cmd != "status" && cmd != "up" && cmd != "down" {
		return fmt.Errorf("unknown migrate command %q", cmd)
	}

	cfg, _, err := loadConfig(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close() //nolint:errcheck // Read-mostly command

	switch cmd {
	case "up":
		if err := db.Migrate(ctx, migrations.FS); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
	case "down":
		if err := db.MigrateDown(ctx, migrations.FS); err != nil {
			return fmt.Errorf("rolling back migration: %w", err)
		}
	}

	applied, pending, err := db.GetMigrationStatus(ctx, migrations.FS)
	if err != nil {
		return fmt.Errorf("reading migration status: %w", err)
	}
	for _, m := range applied {
		fmt.Fprintf(out, "applied  %s  %s\n", m.Version, m.AppliedAt.UTC().Format(time.RFC3339))
	}
	for _, m := range pending {
		fmt.Fprintf(out, "pending  %s  %s\n", m.Version, m.Name)
	}
	return nil
}

// hashPassword prints the argon2id hash of a password given as the only
// argument or, without arguments, read from the first line of in.
func hashPassword(args []string, in io.Reader, out io.Writer) error {
	var password string
	switch len(args) {
	case 0:
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("reading password: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	case 1:
		password = args[0]
	default:
		return errors.New("usage: librarycore hash-password [password]")
	}
	if password == "" {
		return errors.New("password must not be empty")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	_, err = fmt.Fprintln(out, hash)
	return err
}
