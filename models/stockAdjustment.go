package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/gudangkita/inventory_backend/config"
	"bitbucket.org/gudangkita/inventory_backend/utils"
)

// StockAdjustment records one manual correction outside purchase/sale flow.
// Reason is mandatory; an adjustment without one is indistinguishable from
// shrinkage.
type StockAdjustment struct {
	ID              int                 `gorm:"primary_key" json:"id"`
	Store           string              `gorm:"index;size:64;not null" json:"store"`
	ProductId       int                 `gorm:"index;not null" json:"product_id"`
	WarehouseId     int                 `gorm:"index;not null" json:"warehouse_id"`
	Direction       AdjustmentDirection `gorm:"size:10;not null" json:"direction"`
	Quantity        int                 `gorm:"not null" json:"quantity"`
	QuantityAfter   int                 `gorm:"not null" json:"quantity_after"`
	Reason          string              `gorm:"size:255;not null" json:"reason"`
	TransactionTime time.Time           `gorm:"index;not null" json:"transaction_time"`
	CreatedBy       string              `gorm:"size:100" json:"created_by"`
	CreatedAt       time.Time           `gorm:"autoCreateTime" json:"created_at"`
}

// GetStockAdjustments lists adjustments newest first, optionally filtered
// by product and warehouse.
func GetStockAdjustments(ctx context.Context, productId *int, warehouseId *int) ([]*StockAdjustment, error) {

	store, ok := utils.GetStoreFromContext(ctx)
	if !ok || store == "" {
		return nil, errors.New("store is required")
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("store = ?", store)
	if productId != nil && *productId > 0 {
		dbCtx = dbCtx.Where("product_id = ?", *productId)
	}
	if warehouseId != nil && *warehouseId > 0 {
		dbCtx = dbCtx.Where("warehouse_id = ?", *warehouseId)
	}

	var results []*StockAdjustment
	err := dbCtx.Order("transaction_time DESC, id DESC").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
