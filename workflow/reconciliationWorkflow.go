package workflow

import (
	"context"
	"time"

	"bitbucket.org/gudangkita/inventory_backend/appctx"
	"bitbucket.org/gudangkita/inventory_backend/config"
	"bitbucket.org/gudangkita/inventory_backend/models"
	"github.com/bsm/redislock"
	"github.com/sirupsen/logrus"
)

// RunReconciliationSweep compares every account's cached balance against
// its journal sum, store by store, repairing drift in place. When a Redis
// locker is available the sweep is singleton across instances; without one
// it still runs (single-instance deployments).
func RunReconciliationSweep(ctx context.Context, logger *logrus.Logger) {

	locker := config.GetRedisLock()
	if locker != nil {
		lock, err := locker.Obtain(ctx, "lock:reconciliation-sweep", 5*time.Minute, nil)
		if err == redislock.ErrNotObtained {
			return
		}
		if err != nil {
			config.LogError(logger, "reconciliationWorkflow.go", "RunReconciliationSweep", "Obtain lock", nil, err)
			return
		}
		defer func() {
			_ = lock.Release(ctx)
		}()
	}

	stores, err := listStores(ctx)
	if err != nil {
		config.LogError(logger, "reconciliationWorkflow.go", "RunReconciliationSweep", "listStores", nil, err)
		return
	}

	for _, store := range stores {
		storeCtx := appctx.Set(ctx, appctx.ContextKeyStore, store)
		drifts, err := models.ReconcileAccountBalances(storeCtx, true)
		if err != nil {
			config.LogError(logger, "reconciliationWorkflow.go", "RunReconciliationSweep", "ReconcileAccountBalances", store, err)
			continue
		}
		for _, drift := range drifts {
			logger.WithFields(logrus.Fields{
				"store":       store,
				"account_id":  drift.AccountId,
				"account":     drift.AccountName,
				"cached":      drift.Cached.String(),
				"journal_sum": drift.JournalSum.String(),
			}).Warn("account balance drift repaired")
		}
	}
}

// StartReconciliationSweeper runs the sweep on an interval until ctx is
// cancelled.
func StartReconciliationSweeper(ctx context.Context, logger *logrus.Logger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			RunReconciliationSweep(ctx, logger)
		}
	}
}

// listStores returns every store that owns at least one account. The query
// bypasses the tenant guard since it is cross-store by nature.
func listStores(ctx context.Context) ([]string, error) {
	adminCtx := appctx.Set(ctx, appctx.ContextKeySkipTenantScope, true)
	db := config.GetDB()
	var stores []string
	err := db.WithContext(adminCtx).Model(&models.Account{}).
		Distinct("store").Pluck("store", &stores).Error
	if err != nil {
		return nil, err
	}
	return stores, nil
}
