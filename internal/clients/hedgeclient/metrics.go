package hedgeclient

import (
	"context"
	"time"

	"github.com/dnt-protocol/dnt-staking-engine/internal/observability/metrics"
)

const feedName = "hedge"

type hedgeClientWithMetrics struct {
	hedge HedgeInterface
}

func NewHedgeClientWithMetrics(hedge HedgeInterface) *hedgeClientWithMetrics {
	return &hedgeClientWithMetrics{hedge: hedge}
}

func (h *hedgeClientWithMetrics) GetProfit(ctx context.Context, from, to int64) (*ProfitReport, error) {
	return runHedgeClientMethodWithMetrics("GetProfit", func() (*ProfitReport, error) {
		return h.hedge.GetProfit(ctx, from, to)
	})
}

func (h *hedgeClientWithMetrics) GetExposure(ctx context.Context) (*ExposureReport, error) {
	return runHedgeClientMethodWithMetrics("GetExposure", func() (*ExposureReport, error) {
		return h.hedge.GetExposure(ctx)
	})
}

func (h *hedgeClientWithMetrics) GetPositionLosses(ctx context.Context) (*PositionLossReport, error) {
	return runHedgeClientMethodWithMetrics("GetPositionLosses", func() (*PositionLossReport, error) {
		return h.hedge.GetPositionLosses(ctx)
	})
}

func runHedgeClientMethodWithMetrics[T any](method string, f func() (T, error)) (T, error) {
	startTime := time.Now()
	v, err := f()
	duration := time.Since(startTime)

	metrics.RecordFeedClientLatency(duration, feedName, method, err != nil)
	return v, err
}
