package priceclient

import (
	"context"
	"fmt"
	"net/http"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/dnt-protocol/dnt-staking-engine/internal/clients/client"
	"github.com/dnt-protocol/dnt-staking-engine/internal/config"
	"github.com/dnt-protocol/dnt-staking-engine/internal/types"
)

const pricesPath = "/v1/prices"

type PriceClient struct {
	httpClient *http.Client
	cfg        *config.FeedClientConfig
}

func NewPriceClient(cfg *config.FeedClientConfig) *PriceClient {
	return &PriceClient{
		httpClient: &http.Client{},
		cfg:        cfg,
	}
}

func (c *PriceClient) GetBaseURL() string {
	return c.cfg.URL
}

func (c *PriceClient) GetDefaultRequestTimeout() time.Duration {
	return c.cfg.Timeout
}

func (c *PriceClient) GetHttpClient() *http.Client {
	return c.httpClient
}

type priceResponse struct {
	Asset string `json:"asset"`
	Price string `json:"price"`
}

type empty struct{}

func (c *PriceClient) GetPrice(ctx context.Context, asset types.AssetKind) (sdkmath.LegacyDec, error) {
	call := func() (*priceResponse, error) {
		opts := &client.HttpClientOptions{
			Path:         pricesPath + "/" + asset.String(),
			TemplatePath: pricesPath + "/{asset}",
		}
		return client.SendRequest[empty, priceResponse](ctx, c, http.MethodGet, opts, nil)
	}

	resp, err := client.CallWithRetry(ctx, call, c.cfg)
	if err != nil {
		return sdkmath.LegacyDec{}, fmt.Errorf("failed to get price of %s: %w", asset, err)
	}

	price, err := sdkmath.LegacyNewDecFromStr(resp.Price)
	if err != nil {
		return sdkmath.LegacyDec{}, fmt.Errorf("invalid price %q for %s: %w", resp.Price, asset, err)
	}
	if !price.IsPositive() {
		return sdkmath.LegacyDec{}, fmt.Errorf("non positive price %s for %s", price, asset)
	}
	return price, nil
}
