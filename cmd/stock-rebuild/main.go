// stock-rebuild recomputes stock counters from recorded transaction history
// and repairs drifted counters. Run it against one store or all stores.
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
	store := flag.String("store", "", "rebuild a single store (default: all stores)")
	flag.Parse()

	config.ConnectDatabaseWithRetry()
	logger := config.GetLogger()
	ctx := context.Background()

	stores := []string{*store}
	if *store == "" {
		adminCtx := appctx.Set(ctx, appctx.ContextKeySkipTenantScope, true)
		db := config.GetDB()
		if err := db.WithContext(adminCtx).Model(&models.StockEntry{}).
			Distinct("store").Pluck("store", &stores).Error; err != nil {
			log.Fatalf("listing stores: %v", err)
		}
	}

	total := 0
	for _, s := range stores {
		storeCtx := appctx.Set(ctx, appctx.ContextKeyStore, s)
		repaired, err := workflow.RebuildStockCounters(storeCtx, logger, s)
		if err != nil {
			log.Fatalf("rebuild failed for store %s: %v", s, err)
		}
		if repaired > 0 {
			log.Printf("store %s: repaired %d counters", s, repaired)
		}
		total += repaired
	}
	log.Printf("stock rebuild finished; %d counters repaired", total)
}
