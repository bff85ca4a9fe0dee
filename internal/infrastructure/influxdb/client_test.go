package influxdb_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/plaf203-core/internal/infrastructure/config"
	"github.com/nerrad567/plaf203-core/internal/infrastructure/influxdb"
)

// testConfig returns a configuration for a local dev InfluxDB.
func testConfig() config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           "http://127.0.0.1:8086",
		Token:         "plaf203-dev-token",
		Org:           "plaf203",
		Bucket:        "feeder",
		BatchSize:     100,
		FlushInterval: 1,
	}
}

// connectOrSkip connects to the local InfluxDB or skips the test.
func connectOrSkip(t *testing.T) *influxdb.Client {
	t.Helper()
	client, err := influxdb.Connect(testConfig())
	if err != nil {
		t.Skip("InfluxDB not available, skipping integration test")
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false

	_, err := influxdb.Connect(cfg)
	if !errors.Is(err, influxdb.ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_InvalidURL(t *testing.T) {
	cfg := testConfig()
	cfg.URL = "http://127.0.0.1:1"

	_, err := influxdb.Connect(cfg)
	if !errors.Is(err, influxdb.ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestNilClient(t *testing.T) {
	var c *influxdb.Client

	if c.IsConnected() {
		t.Error("nil client reports connected")
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close() on nil client error = %v", err)
	}
	c.WritePoint(nil)
}

func TestNewFeederPoint(t *testing.T) {
	ts := time.Date(2026, 10, 18, 7, 30, 0, 0, time.UTC)
	p := influxdb.NewFeederPoint(influxdb.MeasurementFeed, "AF0123",
		map[string]string{"type": "PLAN", "plan_id": ""},
		map[string]any{"expected": 5, "actual": 4},
		ts,
	)

	if p.Name() != influxdb.MeasurementFeed {
		t.Errorf("Name() = %q, want %q", p.Name(), influxdb.MeasurementFeed)
	}
	if !p.Time().Equal(ts) {
		t.Errorf("Time() = %v, want %v", p.Time(), ts)
	}

	tags := map[string]string{}
	for _, tag := range p.TagList() {
		tags[tag.Key] = tag.Value
	}
	if tags["serial"] != "AF0123" || tags["type"] != "PLAN" {
		t.Errorf("tags = %v", tags)
	}
	if _, ok := tags["plan_id"]; ok {
		t.Error("empty tag values must be skipped")
	}

	fields := map[string]any{}
	for _, f := range p.FieldList() {
		fields[f.Key] = f.Value
	}
	if fields["expected"] != int64(5) || fields["actual"] != int64(4) {
		t.Errorf("fields = %v", fields)
	}
}

func TestHealthCheck(t *testing.T) {
	client := connectOrSkip(t)

	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	client.Close()
	if err := client.HealthCheck(context.Background()); !errors.Is(err, influxdb.ErrNotConnected) {
		t.Errorf("HealthCheck() after Close error = %v, want ErrNotConnected", err)
	}
}

func TestWriteFeederMetric(t *testing.T) {
	client := connectOrSkip(t)

	var writeErr error
	client.SetOnError(func(err error) { writeErr = err })

	client.WriteFeederMetric(influxdb.MeasurementWifi, "TEST01", "rssi", -55)
	client.WritePoint(influxdb.NewFeederPoint(influxdb.MeasurementConnectivity, "TEST01", nil,
		map[string]any{"online": true}, time.Now()))
	client.Flush()

	time.Sleep(100 * time.Millisecond)
	if writeErr != nil {
		t.Errorf("write error = %v", writeErr)
	}
}
