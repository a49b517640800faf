package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nerrad567/library-core/internal/auth"
	"github.com/nerrad567/library-core/internal/infrastructure/config"
	"github.com/nerrad567/library-core/internal/infrastructure/database"
	"github.com/nerrad567/library-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/library-core/internal/library"
	"github.com/nerrad567/library-core/internal/publisher"
)

// freePort returns a TCP port that was free a moment ago.
func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

// writeConfig writes a minimal config into a temp dir and points LIBRARY_CONFIG at it.
func writeConfig(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()
	content := fmt.Sprintf(`
site:
  id: test-branch

store:
  backend: file
  path: %q
  seed: true

database:
  path: %q
  wal_mode: false
  busy_timeout: 1

mqtt:
  enabled: false

influxdb:
  enabled: false

logging:
  level: error
  format: json
  output: stdout

api:
  host: "127.0.0.1"
  port: %d
`, filepath.Join(dir, "library.json"), filepath.Join(dir, "library.db"), freePort(t)) + extra

	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	t.Setenv("LIBRARY_CONFIG", path)
	return dir
}

func TestRun_InvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("api:\n  port: 0\n"), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	t.Setenv("LIBRARY_CONFIG", path)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() error = nil, want invalid port error")
	}
}

func TestRun_StartsAndSeedsFileStore(t *testing.T) {
	dir := writeConfig(t, "")

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	if err := run(ctx); err != nil {
		t.Fatalf("run() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "library.json"))
	if err != nil {
		t.Fatalf("reading backing document: %v", err)
	}
	var snap library.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		t.Fatalf("decoding backing document: %v", err)
	}
	if len(snap.Books) != len(library.SeedSnapshot().Books) {
		t.Errorf("seeded books = %d, want %d", len(snap.Books), len(library.SeedSnapshot().Books))
	}
}

func TestRun_SQLiteBackend(t *testing.T) {
	dir := writeConfig(t, "")
	t.Setenv("LIBRARY_STORE_BACKEND", config.StoreBackendSQLite)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	if err := run(ctx); err != nil {
		t.Fatalf("run() error = %v", err)
	}

	db, err := database.Open(context.Background(), database.Config{Path: filepath.Join(dir, "library.db"), BusyTimeout: 1})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	defer db.Close()

	snap, found, err := library.NewSQLitePersister(db).Load(context.Background())
	if err != nil || !found {
		t.Fatalf("Load() = found %v, error %v", found, err)
	}
	if len(snap.Members) != len(library.SeedSnapshot().Members) {
		t.Errorf("seeded members = %d, want %d", len(snap.Members), len(library.SeedSnapshot().Members))
	}
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, found, err := loadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if found {
		t.Error("found = true for a missing file")
	}
	if cfg.Store.Backend != config.StoreBackendFile || cfg.API.Port != 8080 {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}

func TestNewPersister(t *testing.T) {
	cfg := config.Default()

	cfg.Store.Backend = config.StoreBackendFile
	p, err := newPersister(cfg, nil)
	if err != nil {
		t.Fatalf("newPersister(file) error = %v", err)
	}
	if _, ok := p.(*library.FilePersister); !ok {
		t.Errorf("newPersister(file) = %T", p)
	}

	cfg.Store.Backend = "tape"
	if _, err := newPersister(cfg, nil); err == nil {
		t.Error("newPersister(tape) error = nil, want error")
	}
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("LIBRARY_CONFIG", "")
	if got := getConfigPath(); got != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", got, defaultConfigPath)
	}

	t.Setenv("LIBRARY_CONFIG", "/custom/path/config.yaml")
	if got := getConfigPath(); got != "/custom/path/config.yaml" {
		t.Errorf("getConfigPath() = %q, want /custom/path/config.yaml", got)
	}
}

func TestHashPassword(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		stdin   string
		wantErr bool
	}{
		{name: "argument", args: []string{"s3cret"}},
		{name: "stdin", stdin: "s3cret\n"},
		{name: "empty stdin", stdin: "", wantErr: true},
		{name: "too many arguments", args: []string{"a", "b"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			err := hashPassword(tt.args, strings.NewReader(tt.stdin), &out)
			if tt.wantErr {
				if err == nil {
					t.Error("hashPassword() error = nil, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("hashPassword() error = %v", err)
			}
			ok, err := auth.VerifyPassword("s3cret", strings.TrimSpace(out.String()))
			if err != nil || !ok {
				t.Errorf("VerifyPassword() = %v, %v for %q", ok, err, out.String())
			}
		})
	}
}

func TestMigrate(t *testing.T) {
	writeConfig(t, "")
	ctx := context.Background()

	status := func(t *testing.T, cmd string) (applied, pending int) {
		t.Helper()
		var out bytes.Buffer
		if err := migrate(ctx, []string{cmd}, &out); err != nil {
			t.Fatalf("migrate(%s) error = %v", cmd, err)
		}
		for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
			switch {
			case strings.HasPrefix(line, "applied"):
				applied++
			case strings.HasPrefix(line, "pending"):
				pending++
			}
		}
		return applied, pending
	}

	if applied, pending := status(t, "status"); applied != 0 || pending != 2 {
		t.Errorf("fresh status = %d applied, %d pending, want 0 and 2", applied, pending)
	}
	if applied, pending := status(t, "up"); applied != 2 || pending != 0 {
		t.Errorf("after up = %d applied, %d pending, want 2 and 0", applied, pending)
	}
	if applied, pending := status(t, "down"); applied != 1 || pending != 1 {
		t.Errorf("after down = %d applied, %d pending, want 1 and 1", applied, pending)
	}

	for _, args := range [][]string{nil, {"sideways"}, {"up", "down"}} {
		if err := migrate(ctx, args, &bytes.Buffer{}); err == nil {
			t.Errorf("migrate(%v) error = nil, want error", args)
		}
	}
}

// slowBus takes a while per publish so queued changes are still pending at shutdown.
type slowBus struct {
	published atomic.Int64
}

func (b *slowBus) Publish(string, []byte, byte, bool) error {
	time.Sleep(10 * time.Millisecond)
	b.published.Add(1)
	return nil
}

func TestRunPublisher_StopWaitsForQueue(t *testing.T) {
	bus := &slowBus{}
	pub := publisher.New(bus, publisher.Options{Topics: mqtt.NewTopics("library"), QoS: 1})
	stop := runPublisher(pub)

	for id := 1; id <= 5; id++ {
		pub.Notify(library.Change{Kind: "book", Action: library.ActionCreated, ID: id})
	}
	stop()

	if got := bus.published.Load(); got != 5 {
		t.Errorf("published before stop returned = %d, want 5", got)
	}
	if s := pub.Stats(); s.Published != 5 || s.Failed != 0 {
		t.Errorf("Stats() = %+v", s)
	}
}
