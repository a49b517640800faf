package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/library-core/internal/infrastructure/config"
)

func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Enabled: true,
		Broker: config.MQTTBrokerConfig{
			Host:     "localhost",
			Port:     1883,
			ClientID: "library-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     30,
		},
	}
}

func TestTopicBuilders(t *testing.T) {
	topics := NewTopics("library")

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"change", topics.Change("book", "created"), "library/book/created"},
		{"loan change", topics.Change("loan", "deleted"), "library/loan/deleted"},
		{"borrow", topics.Borrow(), "library/borrow"},
		{"announce", topics.Announce(), "library/announce"},
		{"system status", topics.SystemStatus(), "library/system/status"},
		{"all topics", topics.AllTopics(), "library/#"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestNewTopicsPrefix(t *testing.T) {
	tests := []struct {
		prefix string
		want   string
	}{
		{"", "library/borrow"},
		{"/", "library/borrow"},
		{"campus/library/", "campus/library/borrow"},
		{"/branch-2", "branch-2/borrow"},
	}

	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			if got := NewTopics(tt.prefix).Borrow(); got != tt.want {
				t.Errorf("NewTopics(%q).Borrow() = %q, want %q", tt.prefix, got, tt.want)
			}
		})
	}

	if got := (Topics{}).Announce(); got != "library/announce" {
		t.Errorf("zero Topics.Announce() = %q", got)
	}
}

func TestValidatePublish(t *testing.T) {
	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		wantErr error
	}{
		{"valid", "library/borrow", []byte(`{}`), 1, nil},
		{"empty topic", "", []byte(`{}`), 1, ErrInvalidTopic},
		{"qos too high", "library/borrow", []byte(`{}`), 3, ErrInvalidQoS},
		{"payload too large", "library/borrow", make([]byte, maxPayloadSize+1), 0, ErrPublishFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validatePublish(tt.topic, tt.payload, tt.qos)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("validatePublish() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestPublishDisconnected(t *testing.T) {
	c := &Client{cfg: testConfig(), topics: NewTopics("")}

	err := c.PublishDefault(c.Topics().Borrow(), []byte(`{}`))
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("PublishDefault() = %v, want ErrNotConnected", err)
	}

	// Validation happens before the connection check.
	err = c.Publish("", []byte(`{}`), 0, false)
	if !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Publish(\"\") = %v, want ErrInvalidTopic", err)
	}
}

func TestHealthCheckDisconnected(t *testing.T) {
	c := &Client{cfg: testConfig()}

	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() = %v, want ErrNotConnected", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck(cancelled) = %v, want context.Canceled", err)
	}
}

func TestCloseNil(t *testing.T) {
	var c *Client
	if err := c.Close(); err != nil {
		t.Errorf("nil Close() = %v", err)
	}
	if err := (&Client{}).Close(); err != nil {
		t.Errorf("unconnected Close() = %v", err)
	}
	if c.IsConnected() {
		t.Error("nil IsConnected() = true")
	}
}

func TestQoSClamped(t *testing.T) {
	tests := []struct {
		cfg  int
		want byte
	}{
		{-1, 0},
		{0, 0},
		{1, 1},
		{2, 2},
		{5, 2},
	}

	for _, tt := range tests {
		cfg := testConfig()
		cfg.QoS = tt.cfg
		c := &Client{cfg: cfg}
		if got := c.QoS(); got != tt.want {
			t.Errorf("QoS() with %d = %d, want %d", tt.cfg, got, tt.want)
		}
	}
}

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Auth = config.MQTTAuthConfig{Username: "librarian", Password: "secret"}

	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://localhost:1883" {
		t.Errorf("Servers = %v, want tcp://localhost:1883", opts.Servers)
	}
	if opts.ClientID != "library-test" {
		t.Errorf("ClientID = %q", opts.ClientID)
	}
	if opts.Username != "librarian" || opts.Password != "secret" {
		t.Errorf("credentials = %q/%q", opts.Username, opts.Password)
	}
	if !opts.CleanSession || !opts.AutoReconnect {
		t.Error("expected clean session with auto-reconnect")
	}
	if opts.MaxReconnectInterval != 30*time.Second {
		t.Errorf("MaxReconnectInterval = %v", opts.MaxReconnectInterval)
	}
	if opts.TLSConfig != nil {
		t.Error("TLS configured without being enabled")
	}
}

func TestBuildClientOptionsTLS(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = true
	cfg.Broker.Port = 8883

	opts := buildClientOptions(cfg)

	if opts.Servers[0].String() != "ssl://localhost:8883" {
		t.Errorf("Servers[0] = %v", opts.Servers[0])
	}
	if opts.TLSConfig == nil || opts.TLSConfig.MinVersion != tlsMinVersion {
		t.Errorf("TLSConfig = %+v", opts.TLSConfig)
	}
}

func TestConfigureLWT(t *testing.T) {
	opts := buildClientOptions(testConfig())
	configureLWT(opts, NewTopics("campus"), "library-test")

	if !opts.WillEnabled || !opts.WillRetained || opts.WillQos != 1 {
		t.Errorf("will enabled=%v retained=%v qos=%d", opts.WillEnabled, opts.WillRetained, opts.WillQos)
	}
	if opts.WillTopic != "campus/system/status" {
		t.Errorf("WillTopic = %q", opts.WillTopic)
	}

	var msg StatusMessage
	if err := json.Unmarshal(opts.WillPayload, &msg); err != nil {
		t.Fatalf("will payload: %v", err)
	}
	if msg.Status != statusOffline || msg.Reason != "unexpected_disconnect" || msg.ClientID != "library-test" {
		t.Errorf("will message = %+v", msg)
	}
}

func TestBuildStatusPayload(t *testing.T) {
	payload := string(buildStatusPayload(statusOnline, "library-test", ""))

	if !strings.Contains(payload, `"status":"online"`) {
		t.Errorf("payload = %s", payload)
	}
	if strings.Contains(payload, "reason") {
		t.Errorf("empty reason should be omitted: %s", payload)
	}
}
