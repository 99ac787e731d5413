package hedgeclient

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/dnt-protocol/dnt-staking-engine/internal/clients/client"
	"github.com/dnt-protocol/dnt-staking-engine/internal/config"
)

const (
	profitPath   = "/v1/profit"
	exposurePath = "/v1/exposure"
	positionPath = "/v1/positions/losses"
)

type HedgeClient struct {
	httpClient *http.Client
	cfg        *config.FeedClientConfig
}

func NewHedgeClient(cfg *config.FeedClientConfig) *HedgeClient {
	return &HedgeClient{
		httpClient: &http.Client{},
		cfg:        cfg,
	}
}

func (c *HedgeClient) GetBaseURL() string {
	return c.cfg.URL
}

func (c *HedgeClient) GetDefaultRequestTimeout() time.Duration {
	return c.cfg.Timeout
}

func (c *HedgeClient) GetHttpClient() *http.Client {
	return c.httpClient
}

type empty struct{}

func (c *HedgeClient) GetProfit(ctx context.Context, from, to int64) (*ProfitReport, error) {
	if to < from {
		return nil, fmt.Errorf("invalid profit window [%d, %d]", from, to)
	}

	call := func() (*ProfitReport, error) {
		opts := &client.HttpClientOptions{
			Path:         fmt.Sprintf("%s?from=%d&to=%d", profitPath, from, to),
			TemplatePath: profitPath,
		}
		return client.SendRequest[empty, ProfitReport](ctx, c, http.MethodGet, opts, nil)
	}

	report, err := client.CallWithRetry(ctx, call, c.cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to get profit for window [%d, %d]: %w", from, to, err)
	}
	return report, nil
}

func (c *HedgeClient) GetExposure(ctx context.Context) (*ExposureReport, error) {
	call := func() (*ExposureReport, error) {
		opts := &client.HttpClientOptions{
			Path: exposurePath,
		}
		return client.SendRequest[empty, ExposureReport](ctx, c, http.MethodGet, opts, nil)
	}

	report, err := client.CallWithRetry(ctx, call, c.cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to get exposure: %w", err)
	}
	return report, nil
}

func (c *HedgeClient) GetPositionLosses(ctx context.Context) (*PositionLossReport, error) {
	call := func() (*PositionLossReport, error) {
		opts := &client.HttpClientOptions{
			Path: positionPath,
		}
		return client.SendRequest[empty, PositionLossReport](ctx, c, http.MethodGet, opts, nil)
	}

	report, err := client.CallWithRetry(ctx, call, c.cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to get position losses: %w", err)
	}
	return report, nil
}
