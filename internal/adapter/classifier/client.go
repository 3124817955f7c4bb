// Package classifier calls the flood-classification inference sidecar over
// HTTP.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/jpeg"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/couchcryptid/flood-risk-service/internal/domain"
	"github.com/couchcryptid/flood-risk-service/internal/observability"
)

// healthCacheTTL bounds how often readiness probes hit the sidecar.
const healthCacheTTL = 30 * time.Second

// Client implements pipeline.Classifier against the inference sidecar's
// POST /classify endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *observability.Metrics

	healthMu      sync.Mutex
	healthChecked time.Time
	healthErr     error
}

// NewClient creates a sidecar client for the given base URL.
func NewClient(endpoint string, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger:  logger,
		metrics: metrics,
	}
}

// Classify posts one frame to the sidecar and returns its flood probability.
func (c *Client) Classify(ctx context.Context, frame domain.Frame) (float64, error) {
	data := frame.JPEG
	if len(data) == 0 {
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, frame.Image, nil); err != nil {
			return 0, &domain.AdapterError{Adapter: "classifier", Err: fmt.Errorf("encode frame %d: %w", frame.Index, err)}
		}
		data = buf.Bytes()
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", fmt.Sprintf("frame-%06d.jpg", frame.Index))
	if err != nil {
		return 0, &domain.AdapterError{Adapter: "classifier", Err: err}
	}
	if _, err := part.Write(data); err != nil {
		return 0, &domain.AdapterError{Adapter: "classifier", Err: err}
	}
	if err := mw.Close(); err != nil {
		return 0, &domain.AdapterError{Adapter: "classifier", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/classify", &body)
	if err != nil {
		return 0, &domain.AdapterError{Adapter: "classifier", Err: err}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, &domain.AdapterError{Adapter: "classifier", Err: err}
	}
	defer resp.Body.Close()
	c.metrics.ClassifierRequestDuration.Observe(time.Since(start).Seconds())

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, &domain.AdapterError{
			Adapter: "classifier",
			Err:     fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail))),
		}
	}

	var out struct {
		Probability float64 `json:"probability"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, &domain.AdapterError{Adapter: "classifier", Err: fmt.Errorf("decode response: %w", err)}
	}
	return out.Probability, nil
}

// CheckReadiness reports whether the sidecar is up with its model loaded.
// Results are cached for healthCacheTTL so frequent probes stay cheap.
func (c *Client) CheckReadiness(ctx context.Context) error {
	c.healthMu.Lock()
	defer c.healthMu.Unlock()

	if time.Since(c.healthChecked) < healthCacheTTL {
		return c.healthErr
	}

	c.healthErr = c.checkHealth(ctx)
	c.healthChecked = time.Now()

	if c.healthErr != nil {
		c.metrics.ClassifierHealthy.Set(0)
		c.logger.Warn("classifier sidecar unhealthy", "endpoint", c.endpoint, "error", c.healthErr)
	} else {
		c.metrics.ClassifierHealthy.Set(1)
	}
	return c.healthErr
}

func (c *Client) checkHealth(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/health", nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("classifier health request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("classifier health: status %d", resp.StatusCode)
	}

	var health struct {
		Status      string `json:"status"`
		ModelLoaded bool   `json:"model_loaded"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return fmt.Errorf("decode health response: %w", err)
	}
	if !health.ModelLoaded {
		return errors.New("classifier model not loaded")
	}
	return nil
}
