package api

import (
	"bytes"
	"net/http"
	"runtime"
	"strings"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/nerrad567/library-core/internal/library"
	"github.com/nerrad567/library-core/internal/publisher"
)

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string           `json:"timestamp"`
	Version       string           `json:"version"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	Runtime       RuntimeMetrics   `json:"runtime"`
	Store         library.Stats    `json:"store"`
	WebSocket     WSMetrics        `json:"websocket"`
	MQTT          MQTTMetrics      `json:"mqtt"`
	Publisher     *publisher.Stats `json:"publisher,omitempty"`
	InfluxDB      InfluxMetrics    `json:"influxdb"`
	Database      *DatabaseMetrics `json:"database,omitempty"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int `json:"connected_clients"`
}

// MQTTMetrics contains MQTT client statistics.
type MQTTMetrics struct {
	Enabled   bool `json:"enabled"`
	Connected bool `json:"connected"`
}

// InfluxMetrics contains InfluxDB client statistics.
type InfluxMetrics struct {
	Enabled   bool `json:"enabled"`
	Connected bool `json:"connected"`
}

// DatabaseMetrics contains database connection pool statistics.
type DatabaseMetrics struct {
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	Idle            int   `json:"idle"`
	WaitCount       int64 `json:"wait_count"`
}

// handleMetrics returns system metrics as JSON, or in the Prometheus text
// exposition format with ?format=prometheus or an Accept: text/plain header.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	m := s.collectMetrics()

	if wantsPrometheus(r) {
		var buf bytes.Buffer
		for _, mf := range metricFamilies(m) {
			if _, err := expfmt.MetricFamilyToText(&buf, mf); err != nil {
				s.logger.Error("encoding prometheus metrics failed", "metric", mf.GetName(), "error", err)
				writeInternalError(w, "encoding metrics failed")
				return
			}
		}
		w.Header().Set("Content-Type", string(expfmt.NewFormat(expfmt.TypeTextPlain)))
		w.WriteHeader(http.StatusOK)
		//nolint:errcheck // Best-effort write to response; connection may be closed
		w.Write(buf.Bytes())
		return
	}

	writeJSON(w, http.StatusOK, m)
}

// collectMetrics snapshots every component.
func (s *Server) collectMetrics() SystemMetrics {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	m := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		Store: s.store.Stats(),
		WebSocket: WSMetrics{
			ConnectedClients: s.hub.ClientCount(),
		},
		MQTT: MQTTMetrics{
			Enabled:   s.mqtt != nil,
			Connected: s.mqtt != nil && s.mqtt.IsConnected(),
		},
		InfluxDB: InfluxMetrics{
			Enabled:   s.influx != nil,
			Connected: s.influx != nil && s.influx.IsConnected(),
		},
	}

	if s.publisher != nil {
		ps := s.publisher.Stats()
		m.Publisher = &ps
	}

	if s.db != nil {
		dbStats := s.db.Stats()
		m.Database = &DatabaseMetrics{
			OpenConnections: dbStats.OpenConnections,
			InUse:           dbStats.InUse,
			Idle:            dbStats.Idle,
			WaitCount:       dbStats.WaitCount,
		}
	}

	return m
}

// wantsPrometheus reports whether the client asked for the text exposition format.
func wantsPrometheus(r *http.Request) bool {
	if f := r.URL.Query().Get("format"); f != "" {
		return f == "prometheus"
	}
	return strings.HasPrefix(r.Header.Get("Accept"), "text/plain")
}

// metricFamilies converts a metrics snapshot into Prometheus metric families.
func metricFamilies(m SystemMetrics) []*dto.MetricFamily {
	families := []*dto.MetricFamily{
		gaugeFamily("library_records", "Records held in the store.",
			labelled(float64(m.Store.Books), "kind", "book"),
			labelled(float64(m.Store.Members), "kind", "member"),
			labelled(float64(m.Store.Loans), "kind", "loan"),
		),
		gaugeFamily("library_loans_on_loan", "Loans currently on loan.",
			labelled(float64(m.Store.OnLoan)),
		),
		counterFamily("library_mutations_total", "Successful store mutations.",
			labelled(float64(m.Store.Creates), "action", "created"),
			labelled(float64(m.Store.Updates), "action", "updated"),
			labelled(float64(m.Store.Deletes), "action", "deleted"),
		),
		counterFamily("library_rejected_total", "Mutations refused by validation, uniqueness or reference checks.",
			labelled(float64(m.Store.Rejected)),
		),
		counterFamily("library_save_failures_total", "Failed writes to the backing store.",
			labelled(float64(m.Store.SaveFails)),
		),
		gaugeFamily("library_websocket_clients", "Connected WebSocket clients.",
			labelled(float64(m.WebSocket.ConnectedClients)),
		),
		gaugeFamily("library_mqtt_connected", "1 when the MQTT broker is connected.",
			labelled(boolValue(m.MQTT.Connected)),
		),
		gaugeFamily("library_uptime_seconds", "Seconds since the API server was created.",
			labelled(float64(m.UptimeSeconds)),
		),
		gaugeFamily("library_goroutines", "Number of goroutines.",
			labelled(float64(m.Runtime.Goroutines)),
		),
	}

	if m.Publisher != nil {
		families = append(families, counterFamily("library_publisher_events_total", "Change events handled by the message-bus publisher.",
			labelled(float64(m.Publisher.Published), "result", "published"),
			labelled(float64(m.Publisher.Dropped), "result", "dropped"),
			labelled(float64(m.Publisher.Failed), "result", "failed"),
		))
	}

	return families
}

// sample is one value with its label pairs.
type sample struct {
	value  float64
	labels []*dto.LabelPair
}

// labelled builds a sample from a value and alternating label names and values.
func labelled(value float64, kv ...string) sample {
	s := sample{value: value}
	for i := 0; i+1 < len(kv); i += 2 {
		s.labels = append(s.labels, &dto.LabelPair{Name: ptr(kv[i]), Value: ptr(kv[i+1])})
	}
	return s
}

func gaugeFamily(name, help string, samples ...sample) *dto.MetricFamily {
	mf := &dto.MetricFamily{Name: ptr(name), Help: ptr(help), Type: dto.MetricType_GAUGE.Enum()}
	for _, s := range samples {
		mf.Metric = append(mf.Metric, &dto.Metric{Label: s.labels, Gauge: &dto.Gauge{Value: ptr(s.value)}})
	}
	return mf
}

func counterFamily(name, help string, samples ...sample) *dto.MetricFamily {
	mf := &dto.MetricFamily{Name: ptr(name), Help: ptr(help), Type: dto.MetricType_COUNTER.Enum()}
	for _, s := range samples {
		mf.Metric = append(mf.Metric, &dto.Metric{Label: s.labels, Counter: &dto.Counter{Value: ptr(s.value)}})
	}
	return mf
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func ptr[T any](v T) *T {
	return &v
}
