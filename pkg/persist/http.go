package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/teslashibe/go-focus/internal/httpc"
	"github.com/teslashibe/go-focus/internal/log"
)

const (
	httpInitialBackoff = 200 * time.Millisecond
	httpMaxBackoff     = 2 * time.Second
)

// HTTPConfig configures an HTTPSink.
type HTTPConfig struct {
	Endpoint   string
	MaxRetries uint64
	Client     *http.Client
}

// HTTPSink POSTs records as JSON to a remote collector. The collector
// answers {"success": true} on success and {"success": false, "error": ...}
// otherwise.
type HTTPSink struct {
	endpoint   string
	maxRetries uint64
	client     *http.Client
}

// NewHTTPSink creates an HTTP sink.
func NewHTTPSink(cfg HTTPConfig) (*HTTPSink, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("persist: http endpoint is required")
	}
	if cfg.Client == nil {
		cfg.Client = httpc.Client
	}
	return &HTTPSink{
		endpoint:   cfg.Endpoint,
		maxRetries: cfg.MaxRetries,
		client:     cfg.Client,
	}, nil
}

// Name implements Sink.
func (s *HTTPSink) Name() string { return "http" }

type collectorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// Save posts rec, retrying transient failures until ctx expires or the
// retry budget is spent.
func (s *HTTPSink) Save(ctx context.Context, rec Record) error {
	operation := func() error {
		err := s.post(ctx, rec)
		var se *SinkError
		if errors.As(err, &se) && !se.IsRetryable() {
			return backoff.Permanent(err)
		}
		return err
	}

	strategy := backoff.WithContext(
		backoff.WithMaxRetries(
			backoff.NewExponentialBackOff(
				backoff.WithInitialInterval(httpInitialBackoff),
				backoff.WithMaxInterval(httpMaxBackoff),
			),
			s.maxRetries,
		),
		ctx,
	)

	return backoff.RetryNotify(operation, strategy, func(err error, d time.Duration) {
		log.Warn("retrying tracking upload", "endpoint", s.endpoint, "error", err, "backoff", d)
	})
}

func (s *HTTPSink) post(ctx context.Context, rec Record) error {
	resp, err := httpc.PostJSON(ctx, s.client, s.endpoint, rec)
	if err != nil {
		return &SinkError{Sink: s.Name(), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return &SinkError{Sink: s.Name(), StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}

	var out collectorResponse
	decodeErr := json.Unmarshal(body, &out)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := out.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &SinkError{Sink: s.Name(), StatusCode: resp.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		return &SinkError{Sink: s.Name(), StatusCode: resp.StatusCode, Message: "invalid response", Err: decodeErr}
	}
	if !out.Success {
		msg := out.Error
		if msg == "" {
			msg = "collector rejected record"
		}
		return &SinkError{Sink: s.Name(), StatusCode: resp.StatusCode, Message: msg}
	}
	return nil
}
