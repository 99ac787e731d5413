package services

import (
	"context"

	"github.com/dnt-protocol/dnt-staking-engine/consumer"
	"github.com/dnt-protocol/dnt-staking-engine/internal/clients/hedgeclient"
	"github.com/dnt-protocol/dnt-staking-engine/internal/clients/priceclient"
	"github.com/dnt-protocol/dnt-staking-engine/internal/clock"
	"github.com/dnt-protocol/dnt-staking-engine/internal/config"
	"github.com/dnt-protocol/dnt-staking-engine/internal/db"
	"github.com/dnt-protocol/dnt-staking-engine/internal/governance"
	"github.com/dnt-protocol/dnt-staking-engine/internal/observability/metrics"
	"github.com/dnt-protocol/dnt-staking-engine/internal/utils/poller"
)

type Service struct {
	cfg        *config.Config
	db         db.DbInterface
	hedge      hedgeclient.HedgeInterface
	pricing    priceclient.PricingInterface
	publisher  consumer.EventConsumer
	governance *governance.Store
	clock      clock.Clock

	locks        *keyedMutex
	evaluateLock chan struct{}
	riskPoller   *poller.Poller
	rewardPoller *poller.Poller
	lossPoller   *poller.Poller
}

// NewService wires the engine. publisher may be nil, in which case
// liquidation records are only persisted.
func NewService(
	cfg *config.Config,
	db db.DbInterface,
	hedge hedgeclient.HedgeInterface,
	pricing priceclient.PricingInterface,
	publisher consumer.EventConsumer,
	governanceStore *governance.Store,
	clk clock.Clock,
) *Service {
	s := &Service{
		cfg:          cfg,
		db:           db,
		hedge:        hedge,
		pricing:      pricing,
		publisher:    publisher,
		governance:   governanceStore,
		clock:        clk,
		locks:        newKeyedMutex(),
		evaluateLock: make(chan struct{}, 1),
	}

	s.riskPoller = poller.NewPoller(
		"risk",
		cfg.Poller.RiskEvaluationInterval,
		metrics.RecordPollerDuration("risk_evaluation", s.evaluatePass),
	)
	s.rewardPoller = poller.NewPoller(
		"rewards",
		cfg.Poller.RewardDistributionInterval,
		metrics.RecordPollerDuration("reward_distribution", s.distributionPass),
	)
	s.lossPoller = poller.NewPoller(
		"losses",
		cfg.Poller.LossCheckInterval,
		metrics.RecordPollerDuration("loss_check", s.lossCheckPass),
	)
	return s
}

// StartPollers runs the reward distribution, risk evaluation and loss check
// loops until ctx is done.
func (s *Service) StartPollers(ctx context.Context) {
	go s.rewardPoller.Start(ctx)
	go s.riskPoller.Start(ctx)
	go s.lossPoller.Start(ctx)
}

// afterMutation requests a reactive evaluate pass. Requests made while a
// pass is pending are coalesced.
func (s *Service) afterMutation() {
	if s.cfg.Risk.EvaluateAfterMutation {
		s.riskPoller.Trigger()
	}
}
