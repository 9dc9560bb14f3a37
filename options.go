package abtest

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	"github.com/tracklab/abtest-go/abengine/utils"
)

type Option func(c *Client)

// Make sure the options are Option.
var _ = []Option{
	WithBaseURL(""),
	WithRequestTimeout(0),
	WithSnapshotRefreshInterval(0),
	WithImpressions(0),
	WithRetries(3, 1*time.Second),
	WithCustomHeaders(nil),
	WithRandom(nil),
	WithClock(nil),
	WithMetricsRegisterer(nil),
	WithTracerProvider(nil),
	WithSnapshotSource(nil),
	WithContext(context.TODO()),
	WithSlogLogger(nil),
}

// WithBaseURL sets the API base URL, which must end with a slash.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.config.baseURL = url
	}
}

func WithRequestTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.config.timeout = timeout
	}
}

// WithSnapshotRefreshInterval makes the client refresh its snapshot in the
// background. Zero disables polling.
func WithSnapshotRefreshInterval(interval time.Duration) Option {
	return func(c *Client) {
		c.config.snapshotRefreshInterval = interval
	}
}

// WithImpressions enables batching of impressions to the API. A
// non-positive flushInterval uses DefaultImpressionFlushInterval.
func WithImpressions(flushInterval time.Duration) Option {
	return func(c *Client) {
		c.config.enableImpressions = true
		if flushInterval > 0 {
			c.config.impressionFlushInterval = flushInterval
		}
	}
}

func WithRetries(count int, waitTime time.Duration) Option {
	return func(c *Client) {
		c.client.SetRetryCount(count)
		c.client.SetRetryWaitTime(waitTime)
	}
}

func WithCustomHeaders(headers map[string]string) Option {
	return func(c *Client) {
		c.client.SetHeaders(headers)
	}
}

// WithRandom sets the source of the draw used for weighted creative selection.
func WithRandom(r utils.Random) Option {
	return func(c *Client) {
		if r != nil {
			c.random = r
		}
	}
}

// WithClock sets the function used as the current time for schedule windows.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// WithMetricsRegisterer registers the client's collectors with reg. Without
// it the collectors are created but not registered.
func WithMetricsRegisterer(reg prometheus.Registerer) Option {
	return func(c *Client) {
		c.registerer = reg
	}
}

// WithTracerProvider sets the provider Execute spans are started from.
// Defaults to the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) {
		c.tracerProvider = tp
	}
}

// WithSnapshotSource replaces the API as the origin of snapshots.
func WithSnapshotSource(source SnapshotSource) Option {
	return func(c *Client) {
		c.source = source
	}
}

// WithContext sets the context that bounds the client's background workers.
func WithContext(ctx context.Context) Option {
	return func(c *Client) {
		c.ctx = ctx
	}
}

// WithSlogLogger sets a custom [slog.Logger] for the Client.
func WithSlogLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.log = logger
		}
	}
}
