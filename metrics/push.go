package metrics

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang/protobuf/proto"
	"github.com/golang/snappy"
	"github.com/prometheus/prometheus/prompb"
)

// Metric represents a single metric point for remote write.
type Metric struct {
	Name      string
	Value     float64
	Labels    map[string]string
	Timestamp time.Time
}

// Client pushes metric points to a remote write endpoint.
type Client struct {
	url        string
	httpClient *http.Client
}

// NewClient creates a remote write client for the given base URL
// (e.g. "http://victoriametrics:8428").
func NewClient(url string) *Client {
	return &Client{
		url:        url + "/api/v1/write",
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// PushMetrics sends the given points using the Prometheus remote write
// protocol (snappy-compressed protobuf).
func (c *Client) PushMetrics(ctx context.Context, metrics []Metric) error {
	if len(metrics) == 0 {
		return nil
	}

	timeseries := make([]prompb.TimeSeries, 0, len(metrics))
	for _, metric := range metrics {
		timeseries = append(timeseries, metricToTimeSeries(metric))
	}

	req := &prompb.WriteRequest{Timeseries: timeseries}
	data, err := proto.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshaling write request: %w", err)
	}
	compressed := snappy.Encode(nil, data)

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.url, bytes.NewReader(compressed))
	if err != nil {
		return fmt.Errorf("creating HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Encoding", "snappy")
	httpReq.Header.Set("Content-Type", "application/x-protobuf")
	httpReq.Header.Set("X-Prometheus-Remote-Write-Version", "0.1.0")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

func metricToTimeSeries(metric Metric) prompb.TimeSeries {
	labels := make([]prompb.Label, 0, len(metric.Labels)+1)
	labels = append(labels, prompb.Label{Name: "__name__", Value: metric.Name})
	for k, v := range metric.Labels {
		labels = append(labels, prompb.Label{Name: k, Value: v})
	}

	timestamp := metric.Timestamp.UnixMilli()
	if metric.Timestamp.IsZero() {
		timestamp = time.Now().UnixMilli()
	}

	return prompb.TimeSeries{
		Labels:  labels,
		Samples: []prompb.Sample{{Value: metric.Value, Timestamp: timestamp}},
	}
}

// Pusher periodically gathers the engine registry and pushes the points.
type Pusher struct {
	client   *Client
	metrics  *Metrics
	interval time.Duration
	instance string
	logger   *slog.Logger
}

// NewPusher creates a pusher for the given registry holder.
func NewPusher(client *Client, m *Metrics, interval time.Duration, instance string, logger *slog.Logger) *Pusher {
	return &Pusher{
		client:   client,
		metrics:  m,
		interval: interval,
		instance: instance,
		logger:   logger.With("component", "metrics"),
	}
}

// Run pushes on each interval until ctx is cancelled, with a final push on
// shutdown. Push failures are logged and retried on the next tick; they never
// affect the status line.
func (p *Pusher) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			p.push(flushCtx)
			cancel()
			return nil
		case <-ticker.C:
			p.push(ctx)
		}
	}
}

func (p *Pusher) push(ctx context.Context) {
	points, err := p.gather()
	if err != nil {
		p.logger.Warn("gathering metrics failed", "error", err)
		return
	}
	if err := p.client.PushMetrics(ctx, points); err != nil {
		p.logger.Warn("pushing metrics failed", "error", err)
		return
	}
	p.logger.Debug("metrics pushed", "count", len(points))
}

// gather converts the registry's current state into remote write points.
func (p *Pusher) gather() ([]Metric, error) {
	families, err := p.metrics.Registry().Gather()
	if err != nil {
		return nil, fmt.Errorf("gathering registry: %w", err)
	}

	now := time.Now()
	var points []Metric
	for _, family := range families {
		for _, m := range family.GetMetric() {
			labels := map[string]string{"instance": p.instance}
			for _, l := range m.GetLabel() {
				labels[l.GetName()] = l.GetValue()
			}

			var value float64
			switch {
			case m.GetCounter() != nil:
				value = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				value = m.GetGauge().GetValue()
			default:
				continue
			}

			points = append(points, Metric{
				Name:      family.GetName(),
				Value:     value,
				Labels:    labels,
				Timestamp: now,
			})
		}
	}
	return points, nil
}
