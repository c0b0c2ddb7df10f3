// balance-reconcile runs one reconciliation sweep over every store and
// exits. Intended for cron/jobs; the server also sweeps on an interval.
package main

import (
	"context"
	"flag"
	"log"

	"bitbucket.org/gudangkita/inventory_backend/appctx"
	"bitbucket.org/gudangkita/inventory_backend/config"
	"bitbucket.org/gudangkita/inventory_backend/models"
	"bitbucket.org/gudangkita/inventory_backend/workflow"
)

func main() {
	store := flag.String("store", "", "reconcile a single store (default: all stores)")
	repair := flag.Bool("repair", true, "rewrite drifted cached balances to the journal sum")
	flag.Parse()

	config.ConnectDatabaseWithRetry()
	logger := config.GetLogger()
	ctx := context.Background()

	if *store == "" {
		workflow.RunReconciliationSweep(ctx, logger)
		log.Println("reconciliation sweep finished")
		return
	}

	storeCtx := appctx.Set(ctx, appctx.ContextKeyStore, *store)
	drifts, err := models.ReconcileAccountBalances(storeCtx, *repair)
	if err != nil {
		log.Fatalf("reconcile failed for store %s: %v", *store, err)
	}
	if len(drifts) == 0 {
		log.Printf("store %s: no drift", *store)
		return
	}
	for _, d := range drifts {
		log.Printf("store %s account %d (%s): cached=%s journal=%s",
			*store, d.AccountId, d.AccountName, d.Cached.String(), d.JournalSum.String())
	}
}
