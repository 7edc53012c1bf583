package influxdb

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/nerrad567/devicesim/internal/infrastructure/config"
)

const (
	connectTimeout = 10 * time.Second
	pingTimeout    = 5 * time.Second
)

// Mirror copies simulated device telemetry into an InfluxDB v2 bucket.
//
// Writes are batched by the client library and never block a device's
// telemetry loop. All methods are safe for concurrent use.
type Mirror struct {
	client    influxdb2.Client
	writeAPI  api.WriteAPI
	telemetry string
	power     string
	closed    atomic.Bool
}

// Open connects to InfluxDB and returns a mirror writing to cfg.Bucket.
//
// Every point carries cfg.Tags in addition to its own device tags, and is
// written to the measurements named in cfg.Measurements.
//
// Parameters:
//   - ctx: Bounds the initial ping
//   - cfg: The influxdb section of config.yaml
//   - onError: Receives asynchronous write failures; may be nil
//
// Returns:
//   - *Mirror: Connected mirror
//   - error: ErrDisabled, or ErrConnectionFailed when the server does not answer
func Open(ctx context.Context, cfg config.InfluxDBConfig, onError func(error)) (*Mirror, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	opts := influxdb2.DefaultOptions().
		SetBatchSize(atLeastOne(cfg.BatchSize)).
		SetFlushInterval(atLeastOne(cfg.FlushInterval) * uint(time.Second/time.Millisecond))
	for k, v := range cfg.Tags {
		opts.WriteOptions().AddDefaultTag(k, v)
	}
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, opts)

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	healthy, err := client.Ping(pingCtx)
	if err != nil || !healthy {
		client.Close()
		if err == nil {
			err = fmt.Errorf("server not healthy")
		}
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	m := &Mirror{
		client:    client,
		writeAPI:  client.WriteAPI(cfg.Org, cfg.Bucket),
		telemetry: cfg.Measurements.Telemetry,
		power:     cfg.Measurements.Power,
	}
	if onError != nil {
		go func(errs <-chan error) {
			for err := range errs {
				onError(err)
			}
		}(m.writeAPI.Errors())
	}
	return m, nil
}

func atLeastOne(v int) uint {
	if v < 1 {
		return 1
	}
	return uint(v)
}

// Close flushes pending points and disconnects. Calling it again does nothing.
func (m *Mirror) Close() error {
	if m.client == nil || m.closed.Swap(true) {
		return nil
	}
	m.writeAPI.Flush()
	m.client.Close()
	return nil
}

// HealthCheck pings the server.
func (m *Mirror) HealthCheck(ctx context.Context) error {
	if m.client == nil || m.closed.Load() {
		return ErrNotConnected
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	healthy, err := m.client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("influxdb health check failed: %w", err)
	}
	if !healthy {
		return fmt.Errorf("influxdb health check failed: server not healthy")
	}
	return nil
}

// writable reports whether points can be queued.
func (m *Mirror) writable() bool {
	return m.writeAPI != nil && !m.closed.Load()
}
