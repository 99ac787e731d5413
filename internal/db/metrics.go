package db

import (
	"context"
	"time"

	"github.com/dnt-protocol/dnt-staking-engine/internal/db/model"
	"github.com/dnt-protocol/dnt-staking-engine/internal/observability/metrics"
)

type DbWithMetrics struct {
	db DbInterface
}

func NewDbWithMetrics(db DbInterface) *DbWithMetrics {
	return &DbWithMetrics{db: db}
}

func (d *DbWithMetrics) Ping(ctx context.Context) error {
	return d.db.Ping(ctx)
}

func (d *DbWithMetrics) InitGlobalState(ctx context.Context, state *model.GlobalStateDocument) error {
	return d.run("InitGlobalState", func() error {
		return d.db.InitGlobalState(ctx, state)
	})
}

func (d *DbWithMetrics) GetGlobalState(ctx context.Context) (result *model.GlobalStateDocument, err error) {
	//nolint:errcheck
	d.run("GetGlobalState", func() error {
		result, err = d.db.GetGlobalState(ctx)
		return err
	})
	return
}

func (d *DbWithMetrics) UpdateGlobalState(
	ctx context.Context, expectedVersion uint64, opts ...GlobalStateOption,
) (result *model.GlobalStateDocument, err error) {
	//nolint:errcheck
	d.run("UpdateGlobalState", func() error {
		result, err = d.db.UpdateGlobalState(ctx, expectedVersion, opts...)
		return err
	})
	return
}

func (d *DbWithMetrics) ApplyGovernanceUpdate(
	ctx context.Context, expectedVersion uint64, update *model.GovernanceUpdateDocument,
) (result *model.GlobalStateDocument, err error) {
	//nolint:errcheck
	d.run("ApplyGovernanceUpdate", func() error {
		result, err = d.db.ApplyGovernanceUpdate(ctx, expectedVersion, update)
		return err
	})
	return
}

func (d *DbWithMetrics) FindGovernanceUpdates(ctx context.Context, limit int64) (result []*model.GovernanceUpdateDocument, err error) {
	//nolint:errcheck
	d.run("FindGovernanceUpdates", func() error {
		result, err = d.db.FindGovernanceUpdates(ctx, limit)
		return err
	})
	return
}

func (d *DbWithMetrics) GetUserAccount(ctx context.Context, owner string) (result *model.UserAccountDocument, err error) {
	//nolint:errcheck
	d.run("GetUserAccount", func() error {
		result, err = d.db.GetUserAccount(ctx, owner)
		return err
	})
	return
}

func (d *DbWithMetrics) FindStakedAccounts(ctx context.Context) (result []*model.UserAccountDocument, err error) {
	//nolint:errcheck
	d.run("FindStakedAccounts", func() error {
		result, err = d.db.FindStakedAccounts(ctx)
		return err
	})
	return
}

func (d *DbWithMetrics) CommitAccount(ctx context.Context, commit *AccountCommit) (result *model.GlobalStateDocument, err error) {
	//nolint:errcheck
	d.run("CommitAccount", func() error {
		result, err = d.db.CommitAccount(ctx, commit)
		return err
	})
	return
}

func (d *DbWithMetrics) SumAccountAmounts(ctx context.Context) (result uint64, err error) {
	//nolint:errcheck
	d.run("SumAccountAmounts", func() error {
		result, err = d.db.SumAccountAmounts(ctx)
		return err
	})
	return
}

func (d *DbWithMetrics) DeleteDustAccounts(ctx context.Context) (result int64, err error) {
	//nolint:errcheck
	d.run("DeleteDustAccounts", func() error {
		result, err = d.db.DeleteDustAccounts(ctx)
		return err
	})
	return
}

func (d *DbWithMetrics) FindLiquidationRecords(
	ctx context.Context, owner string, limit int64,
) (result []*model.LiquidationRecord, err error) {
	//nolint:errcheck
	d.run("FindLiquidationRecords", func() error {
		result, err = d.db.FindLiquidationRecords(ctx, owner, limit)
		return err
	})
	return
}

// run is a private method that executes given lambda and records latency
// and failures. Conflicts are expected under contention and are not failures.
func (d *DbWithMetrics) run(method string, f func() error) error {
	startTime := time.Now()
	err := f()
	duration := time.Since(startTime)

	failed := err != nil && !IsConflictError(err) && !IsNotFoundError(err)
	metrics.RecordDbLatency(duration, method, failed)
	return err
}
