package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dnt-protocol/dnt-staking-engine/internal/observability/metrics"
	"github.com/dnt-protocol/dnt-staking-engine/internal/types"
)

type BaseClient interface {
	GetBaseURL() string
	GetDefaultRequestTimeout() time.Duration
	GetHttpClient() *http.Client
}

type HttpClientOptions struct {
	Timeout time.Duration
	Path    string
	// TemplatePath is the route used as the metrics label
	TemplatePath string
	Headers      map[string]string
}

// SendRequest performs one JSON request against client and decodes the
// response into R. Non 2xx responses are returned as *types.Error carrying
// the upstream status code.
func SendRequest[I any, R any](
	ctx context.Context, client BaseClient, method string, opts *HttpClientOptions, input *I,
) (*R, error) {
	timeout := client.GetDefaultRequestTimeout()
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if input != nil {
		payload, err := json.Marshal(input)
		if err != nil {
			return nil, types.NewErrorWithMsg(
				http.StatusInternalServerError, types.InternalServiceError,
				"failed to marshal request body",
			)
		}
		body = bytes.NewReader(payload)
	}

	url := client.GetBaseURL() + opts.Path
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, types.NewInternalServiceError(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if input != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	templatePath := opts.TemplatePath
	if templatePath == "" {
		templatePath = opts.Path
	}
	timer := metrics.StartClientRequestDurationTimer(client.GetBaseURL(), method, templatePath)

	resp, err := client.GetHttpClient().Do(req)
	if err != nil {
		timer(0)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, types.NewError(
				http.StatusRequestTimeout, types.InternalServiceError,
				fmt.Errorf("request to %s timed out: %w", templatePath, err),
			)
		}
		return nil, types.NewInternalServiceError(fmt.Errorf("failed to send request to %s: %w", templatePath, err))
	}
	defer resp.Body.Close()
	timer(resp.StatusCode)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, types.NewErrorWithMsg(
			resp.StatusCode, types.InternalServiceError,
			fmt.Sprintf("rate limit exceeded when calling %s", templatePath),
		)
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, types.NewErrorWithMsg(
			resp.StatusCode, types.InternalServiceError,
			fmt.Sprintf("upstream error %d when calling %s", resp.StatusCode, templatePath),
		)
	case resp.StatusCode >= http.StatusBadRequest:
		return nil, types.NewErrorWithMsg(
			resp.StatusCode, types.BadRequest,
			fmt.Sprintf("request to %s rejected with status %d", templatePath, resp.StatusCode),
		)
	}

	var output R
	if err := json.NewDecoder(resp.Body).Decode(&output); err != nil {
		return nil, types.NewInternalServiceError(fmt.Errorf("failed to decode response from %s: %w", templatePath, err))
	}

	return &output, nil
}

// IsRetryable reports whether a SendRequest error is worth another attempt.
// Rejections other than rate limiting are final.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var e *types.Error
	if !errors.As(err, &e) {
		return true
	}
	return e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode == http.StatusRequestTimeout ||
		e.StatusCode >= http.StatusInternalServerError
}
