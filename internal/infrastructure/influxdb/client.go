package influxdb

import (
	"context"
	"fmt"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/nerrad567/hydrogate/internal/infrastructure/config"
)

const (
	connectTimeout = 10 * time.Second
	pingTimeout    = 5 * time.Second

	defaultBatchSize     = 100
	defaultFlushInterval = 10 * time.Second

	// serviceTag is added to every point so several gateways can share a bucket.
	serviceTag   = "service"
	serviceValue = "hydrogate"
)

// Client records control changes in an InfluxDB v2 bucket.
//
// Writes are batched and non-blocking. All methods are safe for concurrent
// use and tolerate a client that never connected.
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	bucket   string

	mu        sync.RWMutex
	connected bool
	onError   func(err error)
}

// Connect pings the server and opens the batched write API for cfg.Bucket.
//
// Returns ErrDisabled when cfg.Enabled is false and ErrConnectionFailed when
// the ping fails or the server reports itself unhealthy.
func Connect(cfg config.InfluxDBConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, clientOptions(cfg))

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := ping(ctx, client); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	c := &Client{
		client:    client,
		writeAPI:  client.WriteAPI(cfg.Org, cfg.Bucket),
		bucket:    cfg.Bucket,
		connected: true,
	}
	go c.forwardWriteErrors(c.writeAPI.Errors())

	return c, nil
}

// clientOptions applies batch size and flush interval, falling back to the
// defaults for non-positive values. Points carry millisecond timestamps.
func clientOptions(cfg config.InfluxDBConfig) *influxdb2.Options {
	batchSize := uint(defaultBatchSize)
	if cfg.BatchSize > 0 {
		batchSize = uint(cfg.BatchSize)
	}
	flush := defaultFlushInterval
	if cfg.FlushInterval > 0 {
		flush = time.Duration(cfg.FlushInterval) * time.Second
	}

	return influxdb2.DefaultOptions().
		SetBatchSize(batchSize).
		SetFlushInterval(uint(flush.Milliseconds())).
		SetPrecision(time.Millisecond).
		AddDefaultTag(serviceTag, serviceValue)
}

func ping(ctx context.Context, client influxdb2.Client) error {
	healthy, err := client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	if !healthy {
		return fmt.Errorf("server not healthy")
	}
	return nil
}

// forwardWriteErrors hands async batch failures to the onError callback.
// It exits when the write API closes the channel.
func (c *Client) forwardWriteErrors(errs <-chan error) {
	for err := range errs {
		c.mu.RLock()
		callback := c.onError
		c.mu.RUnlock()

		if callback != nil {
			callback(fmt.Errorf("writing to bucket %s: %w", c.bucket, err))
		}
	}
}

// Close flushes buffered points and releases the client. Calling it more
// than once is harmless.
func (c *Client) Close() error {
	c.mu.Lock()
	wasConnected := c.connected
	c.connected = false
	c.mu.Unlock()

	if !wasConnected || c.client == nil {
		return nil
	}
	c.writeAPI.Flush()
	c.client.Close()
	return nil
}

// HealthCheck pings the server.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := ping(ctx, c.client); err != nil {
		return fmt.Errorf("influxdb health check: %w", err)
	}
	return nil
}

func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// SetOnError registers the callback for failed batch writes.
func (c *Client) SetOnError(callback func(err error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = callback
}

// Flush sends buffered points now. A no-op once closed.
func (c *Client) Flush() {
	if c.writeAPI == nil || !c.IsConnected() {
		return
	}
	c.writeAPI.Flush()
}
