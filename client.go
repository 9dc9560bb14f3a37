package abtest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tracklab/abtest-go/abengine"
	"github.com/tracklab/abtest-go/abengine/utils"
)

const tracerName = "github.com/tracklab/abtest-go"

// ExecuteRequest is what the tracker reports about a page view.
type ExecuteRequest struct {
	// ProjectID selects the project. When empty the project is looked up by URL.
	ProjectID  string `json:"projectId"`
	UserID     string `json:"userId"`
	URL        string `json:"url"`
	UserAgent  string `json:"userAgent"`
	Language   string `json:"language"`
	VisitCount int    `json:"visitCount"`
	Referrer   string `json:"referrer"`
}

// Creative is the variant delivered to the page. CSS and JavaScript are empty
// for the original creative.
type Creative struct {
	Name       string `json:"name"`
	CSS        string `json:"css"`
	JavaScript string `json:"javascript"`
	IsOriginal bool   `json:"isOriginal"`
}

// Decision is the outcome of Execute.
type Decision struct {
	Matched        bool   `json:"matched"`
	ProjectID      string `json:"projectId,omitempty"`
	ExperimentID   string `json:"experimentId,omitempty"`
	ExperimentName string `json:"experimentName,omitempty"`
	// SessionDuration is in minutes.
	SessionDuration int       `json:"sessionDuration,omitempty"`
	CreativeIndex   int       `json:"creativeIndex"`
	Creative        *Creative `json:"creative,omitempty"`
}

// Client decides which creative a visitor gets, from a locally held Snapshot.
type Client struct {
	apiKey string
	config config

	client *resty.Client
	ctx    context.Context
	log    *slog.Logger

	state       snapshotState
	source      SnapshotSource
	impressions *ImpressionProcessor

	random utils.Random
	now    func() time.Time

	registerer     prometheus.Registerer
	metrics        *metrics
	tracerProvider trace.TracerProvider
	tracer         trace.Tracer
}

// NewClient creates a Client. Snapshots come from the API unless
// WithSnapshotSource is given; a snapshot must be loaded with UpdateSnapshot
// or SetSnapshot, or by background polling, before Execute can match.
func NewClient(apiKey string, options ...Option) *Client {
	c := &Client{
		apiKey: apiKey,
		config: defaultConfig(),
		client: resty.New(),
		ctx:    context.Background(),
		log:    slog.Default(),
		random: utils.DefaultRandom,
		now:    time.Now,
	}

	c.client.SetHeaders(map[string]string{
		"Accept":     "application/json",
		APIKeyHeader: c.apiKey,
		"User-Agent": getUserAgent(),
	})

	for _, opt := range options {
		if opt != nil {
			opt(c)
		}
	}

	c.client.SetTimeout(c.config.timeout)
	c.client.SetLogger(restySlogLogger{logger: c.log}).
		OnBeforeRequest(newRestyLogRequestMiddleware(c.log)).
		OnAfterResponse(newRestyLogResponseMiddleware(c.log))

	c.metrics = newMetrics(c.registerer)
	if c.tracerProvider == nil {
		c.tracerProvider = otel.GetTracerProvider()
	}
	c.tracer = c.tracerProvider.Tracer(tracerName)

	if c.source == nil {
		c.source = &apiSnapshotSource{client: c.client, endpoint: c.config.baseURL + SnapshotEndpoint}
	}

	if c.config.enableImpressions {
		c.impressions = newImpressionProcessor(
			c.ctx, c.client, c.config.baseURL, c.config.impressionFlushInterval,
			c.log.With(slog.String("worker", "impressions")), c.metrics,
		)
	}

	if c.config.snapshotRefreshInterval > 0 {
		go c.pollSnapshot(c.ctx, c.config.snapshotRefreshInterval)
	}
	return c
}

// GetSnapshot returns the snapshot in use, or nil if none was loaded yet.
func (c *Client) GetSnapshot() *Snapshot {
	return c.state.GetSnapshot()
}

// SetSnapshot validates s and makes it the snapshot in use.
func (c *Client) SetSnapshot(s *Snapshot) error {
	if s == nil {
		return newClientError(nil, "snapshot is nil")
	}
	if err := s.Validate(); err != nil {
		return newClientError(err, "invalid snapshot")
	}
	return c.applySnapshot(s)
}

// UpdateSnapshot fetches a snapshot from the configured source and applies it.
func (c *Client) UpdateSnapshot(ctx context.Context) error {
	s, err := c.source.FetchSnapshot(ctx)
	if err != nil {
		c.metrics.snapshotRefreshes.WithLabelValues("error").Inc()
		return err
	}
	return c.applySnapshot(s)
}

func (c *Client) applySnapshot(s *Snapshot) error {
	previous := c.state.AppliedAt()
	changed, err := c.state.SetSnapshot(s, c.now())
	if err != nil {
		c.metrics.snapshotRefreshes.WithLabelValues("error").Inc()
		return newClientError(err, "unable to apply snapshot")
	}
	if !changed {
		c.metrics.snapshotRefreshes.WithLabelValues("unchanged").Inc()
		c.log.Debug("snapshot unchanged", slog.Time("applied_at", previous))
		return nil
	}
	for _, problem := range s.Problems() {
		c.log.Warn("snapshot rule ignored", "error", problem)
	}
	c.metrics.snapshotRefreshes.WithLabelValues("applied").Inc()
	c.log.Info("snapshot applied",
		slog.String("schema_version", s.SchemaVersion),
		slog.Int("projects", len(s.Projects)),
	)
	return nil
}

func (c *Client) pollSnapshot(ctx context.Context, interval time.Duration) {
	log := c.log.With(
		slog.String("worker", "poll"),
		slog.Any("source", c.source),
	)
	defer log.Info("stopped")

	b := newBackoff()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := c.UpdateSnapshot(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error("failed to refresh snapshot", "error", err)
			if !b.wait(ctx) {
				return
			}
			continue
		}
		b.reset()

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Execute picks the creative for the page view described by req. An
// unmatched Decision is not an error; errors report a missing snapshot, an
// unknown project or a URL outside its project.
func (c *Client) Execute(ctx context.Context, req ExecuteRequest) (*Decision, error) {
	start := time.Now()
	ctx, span := c.tracer.Start(ctx, "abtest.Execute", trace.WithAttributes(
		attribute.String("abtest.project_id", req.ProjectID),
		attribute.String("url.full", req.URL),
	))
	defer span.End()

	decision, err := c.execute(ctx, &req)
	c.metrics.executeDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.executions.WithLabelValues("error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Bool("abtest.matched", decision.Matched))
	if !decision.Matched {
		c.metrics.executions.WithLabelValues("unmatched").Inc()
		return decision, nil
	}
	span.SetAttributes(
		attribute.String("abtest.experiment_id", decision.ExperimentID),
		attribute.Int("abtest.creative_index", decision.CreativeIndex),
	)
	c.metrics.executions.WithLabelValues("matched").Inc()
	c.metrics.assignments.WithLabelValues(decision.ExperimentID, decision.Creative.Name).Inc()
	return decision, nil
}

func (c *Client) execute(ctx context.Context, req *ExecuteRequest) (*Decision, error) {
	snapshot := c.state.GetSnapshot()
	if snapshot == nil {
		return nil, ErrSnapshotNotLoaded
	}

	var (
		project *Project
		ok      bool
	)
	if req.ProjectID != "" {
		project, ok = snapshot.Project(req.ProjectID)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, req.ProjectID)
		}
		if !project.Owns(req.URL) {
			return nil, fmt.Errorf("%w: %s does not match project %s", ErrURLMismatch, req.URL, project.URL)
		}
	} else {
		project, ok = snapshot.ProjectForURL(req.URL)
		if !ok {
			return nil, fmt.Errorf("%w: no project for %s", ErrProjectNotFound, req.URL)
		}
	}

	visitor := NewVisitor(req)
	result := abengine.Resolve(project.ActiveExperiments(), c.now(), visitor, abengine.WithRandom(c.random))

	log := c.log.With(slog.String("project", project.ID))
	for _, d := range result.Diagnostics {
		c.metrics.evaluationProblems.WithLabelValues("diagnostic").Inc()
		log.WarnContext(ctx, "malformed pattern", "error", d)
	}
	for _, e := range result.Errors {
		c.metrics.evaluationProblems.WithLabelValues("error").Inc()
		log.ErrorContext(ctx, "experiment evaluation failed", "error", e)
	}

	decision := &Decision{Matched: result.Matched, ProjectID: project.ID}
	if !result.Matched {
		log.DebugContext(ctx, "no experiment matched", slog.Int("skipped", len(result.Skipped)))
		return decision, nil
	}

	variant := result.Variant
	decision.ExperimentID = result.ExperimentID
	decision.ExperimentName = result.ExperimentName
	decision.SessionDuration = result.SessionDuration
	decision.CreativeIndex = result.VariantIndex
	decision.Creative = &Creative{Name: variant.Name, IsOriginal: variant.IsOriginal}
	if !variant.IsOriginal {
		decision.Creative.CSS = variant.CSS
		decision.Creative.JavaScript = variant.JavaScript
	}

	if c.impressions != nil {
		c.impressions.Track(Impression{
			ProjectID:     project.ID,
			ExperimentID:  result.ExperimentID,
			UserID:        req.UserID,
			CreativeIndex: result.VariantIndex,
			CreativeName:  variant.Name,
			IsOriginal:    variant.IsOriginal,
			URL:           req.URL,
			Device:        visitor.Device,
			Browser:       visitor.Browser,
			OS:            visitor.OS,
			Language:      visitor.Language,
			Timestamp:     c.now(),
		})
	}
	return decision, nil
}

// FlushImpressions sends buffered impressions right away. It is a no-op when
// impressions are disabled.
func (c *Client) FlushImpressions(ctx context.Context) error {
	if c.impressions == nil {
		return nil
	}
	_, err := c.impressions.Flush(ctx)
	return err
}
