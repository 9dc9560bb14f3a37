package abtest

import (
	"time"
)

const (
	// Number of seconds to wait for a request to
	// complete before terminating the request.
	DefaultTimeout = 10 * time.Second

	// Default base URL for the API.
	DefaultBaseURL = "https://api.tracklab.io/api/v1/"

	// Interval used by the server binary when no refresh interval is configured.
	DefaultSnapshotRefreshInterval = 60 * time.Second

	SnapshotEndpoint = "snapshot/"

	// Header carrying the API key on every request to the API.
	APIKeyHeader = "X-Api-Key"
)

// config contains all configurable Client settings.
type config struct {
	baseURL                 string
	timeout                 time.Duration
	snapshotRefreshInterval time.Duration
	enableImpressions       bool
	impressionFlushInterval time.Duration
}

func defaultConfig() config {
	return config{
		baseURL:                 DefaultBaseURL,
		timeout:                 DefaultTimeout,
		impressionFlushInterval: DefaultImpressionFlushInterval,
	}
}
