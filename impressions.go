package abtest

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

const (
	DefaultImpressionFlushInterval = 10 * time.Second
	ImpressionsEndpoint            = "abtest-logs/"

	// Impressions tracked beyond this many unsent ones are dropped.
	MaxBufferedImpressions = 10000
)

// Impression records one creative served to one visitor.
type Impression struct {
	ID            string    `json:"id"`
	ProjectID     string    `json:"projectId"`
	ExperimentID  string    `json:"abtestId"`
	UserID        string    `json:"userId,omitempty"`
	CreativeIndex int       `json:"creativeIndex"`
	CreativeName  string    `json:"creativeName"`
	IsOriginal    bool      `json:"isOriginal"`
	URL           string    `json:"url"`
	Device        string    `json:"device"`
	Browser       string    `json:"browser"`
	OS            string    `json:"os"`
	Language      string    `json:"language"`
	Timestamp     time.Time `json:"timestamp"`
}

type impressionStore struct {
	mu   sync.Mutex
	data []Impression
	// inFlight counts impressions taken by a Flush that has not finished.
	inFlight int
}

// take empties the buffer and returns its content as the next batch.
func (s *impressionStore) take() []Impression {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch := s.data
	s.data = nil
	s.inFlight = len(batch)
	return batch
}

// settle ends the flush of batch. An unsent batch goes back in front of the
// impressions tracked meanwhile; what no longer fits is dropped and counted.
func (s *impressionStore) settle(batch []Impression, sent bool) (dropped int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight = 0
	if sent {
		return 0
	}
	s.data = append(batch, s.data...)
	if over := len(s.data) - MaxBufferedImpressions; over > 0 {
		s.data = s.data[:MaxBufferedImpressions]
		return over
	}
	return 0
}

// ImpressionProcessor buffers impressions and posts them to the API in batches.
type ImpressionProcessor struct {
	// flushMu serializes flushes. Track never takes it.
	flushMu  sync.Mutex
	client   *resty.Client
	store    *impressionStore
	endpoint string
	log      *slog.Logger
	metrics  *metrics
}

func NewImpressionProcessor(ctx context.Context, client *resty.Client, baseURL string, flushInterval time.Duration, log *slog.Logger) *ImpressionProcessor {
	return newImpressionProcessor(ctx, client, baseURL, flushInterval, log, newMetrics(nil))
}

func newImpressionProcessor(ctx context.Context, client *resty.Client, baseURL string, flushInterval time.Duration, log *slog.Logger, m *metrics) *ImpressionProcessor {
	if flushInterval <= 0 {
		flushInterval = DefaultImpressionFlushInterval
	}
	processor := ImpressionProcessor{
		client:   client,
		store:    &impressionStore{},
		endpoint: baseURL + ImpressionsEndpoint,
		log:      log,
		metrics:  m,
	}
	go processor.start(ctx, flushInterval)
	return &processor
}

func (p *ImpressionProcessor) start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.flushAndLog(ctx)
		case <-ctx.Done():
			// ctx is gone, so the final flush gets its own deadline.
			flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), DefaultTimeout)
			p.flushAndLog(flushCtx)
			cancel()
			return
		}
	}
}

func (p *ImpressionProcessor) flushAndLog(ctx context.Context) {
	resp, err := p.Flush(ctx)
	if err == nil {
		return
	}
	attrs := []any{"error", err}
	if resp != nil {
		attrs = append(attrs, slog.Int("status", resp.StatusCode))
	}
	p.log.Warn("failed to send impressions", attrs...)
}

// Flush posts every buffered impression. The buffer is only locked while the
// batch is taken, so Track does not wait for the API. A batch the API does
// not accept is buffered again.
func (p *ImpressionProcessor) Flush(ctx context.Context) (*http.Response, error) {
	p.flushMu.Lock()
	defer p.flushMu.Unlock()

	batch := p.store.take()
	if len(batch) == 0 {
		p.store.settle(nil, true)
		return nil, nil
	}

	resp, err := p.client.R().SetContext(ctx).SetBody(batch).Post(p.endpoint)
	if err == nil && !resp.IsSuccess() {
		err = fmt.Errorf("ImpressionProcessor.Flush received error response %d %s", resp.StatusCode(), resp.Status())
	}
	if err != nil {
		p.metrics.impressions.WithLabelValues("failed").Add(float64(len(batch)))
		if dropped := p.store.settle(batch, false); dropped > 0 {
			p.metrics.impressions.WithLabelValues("dropped").Add(float64(dropped))
		}
		if resp == nil {
			return nil, err
		}
		return resp.RawResponse, err
	}
	p.store.settle(batch, true)
	p.metrics.impressions.WithLabelValues("sent").Add(float64(len(batch)))
	return resp.RawResponse, nil
}

// Track buffers imp, assigning an ID when it has none. It reports false when
// the buffer is full and imp was dropped.
func (p *ImpressionProcessor) Track(imp Impression) bool {
	if imp.ID == "" {
		imp.ID = uuid.NewString()
	}
	p.store.mu.Lock()
	defer p.store.mu.Unlock()
	if len(p.store.data)+p.store.inFlight >= MaxBufferedImpressions {
		p.metrics.impressions.WithLabelValues("dropped").Inc()
		return false
	}
	p.store.data = append(p.store.data, imp)
	return true
}

// Pending returns the number of unsent impressions, including those of a
// flush in progress.
func (p *ImpressionProcessor) Pending() int {
	p.store.mu.Lock()
	defer p.store.mu.Unlock()
	return len(p.store.data) + p.store.inFlight
}
