package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/promolens/backend/internal/domain"
)

const (
	// DefaultBaseURL is the public Cloud Vision endpoint
	DefaultBaseURL = "https://vision.googleapis.com"

	maxAttempts = 3
)

// Client handles communication with the Cloud Vision images:annotate API
type Client struct {
	httpClient  *http.Client
	apiKey      string
	baseURL     string
	rateLimiter *rate.Limiter
	logger      logrus.FieldLogger
	debug       bool
}

type annotateRequest struct {
	Requests []imageRequest `json:"requests"`
}

type imageRequest struct {
	Image    imageContent `json:"image"`
	Features []feature    `json:"features"`
}

type imageContent struct {
	Content string `json:"content"`
}

type feature struct {
	Type string `json:"type"`
}

type annotateResponse struct {
	Responses []domain.Annotation `json:"responses"`
}

// NewClient creates a new Vision API client. A non-positive
// requestsPerSecond disables rate limiting.
func NewClient(apiKey, baseURL string, requestsPerSecond float64, burst int, logger logrus.FieldLogger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}
	if burst <= 0 {
		burst = 1
	}

	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		apiKey:      apiKey,
		baseURL:     baseURL,
		rateLimiter: rate.NewLimiter(limit, burst),
		logger:      logger.WithField("component", "vision"),
	}
}

// SetDebug enables request/response logging at debug level
func (c *Client) SetDebug(debug bool) {
	c.debug = debug
}

// Name identifies the engine in logs and configuration
func (c *Client) Name() string {
	return "vision"
}

// Annotate reads the image file and requests TEXT_DETECTION for it
func (c *Client) Annotate(ctx context.Context, imagePath string) (*domain.Annotation, error) {
	content, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}

	annotation, err := c.AnnotateContent(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(imagePath), err)
	}
	return annotation, nil
}

// AnnotateContent requests TEXT_DETECTION for raw image bytes. Server
// errors and rate limiting are retried with exponential backoff; other
// client errors are not.
func (c *Client) AnnotateContent(ctx context.Context, content []byte) (*domain.Annotation, error) {
	payload, err := json.Marshal(annotateRequest{
		Requests: []imageRequest{{
			Image:    imageContent{Content: base64.StdEncoding.EncodeToString(content)},
			Features: []feature{{Type: "TEXT_DETECTION"}},
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	params := url.Values{}
	params.Add("key", c.apiKey)
	reqURL := fmt.Sprintf("%s/v1/images:annotate?%s", c.baseURL, params.Encode())

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter error: %w", err)
		}

		body, status, err := c.doRequest(ctx, reqURL, payload)
		if err != nil {
			c.logger.WithError(err).WithField("attempt", attempt).Warn("annotate request failed")
			lastErr = err
			if !c.sleep(ctx, attempt) {
				return nil, ctx.Err()
			}
			continue
		}

		if status != http.StatusOK {
			lastErr = fmt.Errorf("%w: status %d", domain.ErrOCRFailure, status)
			c.logger.WithFields(logrus.Fields{
				"attempt": attempt,
				"status":  status,
			}).Warn("annotate request rejected")
			if !retryable(status) {
				return nil, lastErr
			}
			if !c.sleep(ctx, attempt) {
				return nil, ctx.Err()
			}
			continue
		}

		if c.debug {
			c.logger.WithField("bytes", len(body)).Debug("annotate response received")
		}

		var resp annotateResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
		if len(resp.Responses) == 0 {
			return nil, fmt.Errorf("%w: empty response", domain.ErrOCRFailure)
		}

		annotation := resp.Responses[0]
		if annotation.Error != nil {
			return nil, fmt.Errorf("%w: %s (code %d)", domain.ErrOCRFailure, annotation.Error.Message, annotation.Error.Code)
		}
		return &annotation, nil
	}

	return nil, lastErr
}

// doRequest executes an HTTP POST request and returns the body and status
func (c *Client) doRequest(ctx context.Context, reqURL string, payload []byte) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "PromoLens/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", domain.ErrOCRFailure, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: reading body: %v", domain.ErrOCRFailure, err)
	}
	return body, resp.StatusCode, nil
}

// sleep waits out the backoff for an attempt, returning false if the
// context ends first. Nothing is waited after the last attempt.
func (c *Client) sleep(ctx context.Context, attempt int) bool {
	if attempt >= maxAttempts {
		return true
	}
	timer := time.NewTimer(exponentialBackoff(attempt))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

// exponentialBackoff returns 500ms, 1s, 2s, ... for attempts 1, 2, 3, ...
func exponentialBackoff(attempt int) time.Duration {
	return time.Duration(500*(1<<(attempt-1))) * time.Millisecond
}
