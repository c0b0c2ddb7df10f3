package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/gudangkita/inventory_backend/config"
	"bitbucket.org/gudangkita/inventory_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StockEntry is the unit of physical truth: one quantity counter per
// (store, product, warehouse). Rows are created lazily on the first
// stock-affecting posting and only mutated through AdjustStockTx.
type StockEntry struct {
	ID          int       `gorm:"primary_key" json:"id"`
	Store       string    `gorm:"size:64;not null;uniqueIndex:idx_stock_store_product_warehouse,priority:1" json:"store"`
	ProductId   int       `gorm:"not null;uniqueIndex:idx_stock_store_product_warehouse,priority:2" json:"product_id"`
	WarehouseId int       `gorm:"not null;uniqueIndex:idx_stock_store_product_warehouse,priority:3" json:"warehouse_id"`
	Quantity    int       `gorm:"not null;default:0" json:"quantity"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// AdjustStockTx applies delta to the (product, warehouse) counter inside the
// caller's transaction and returns the new quantity. The row is locked FOR
// UPDATE so concurrent adjustments to the same key serialize; the
// non-negative check therefore reads the transaction's own uncommitted
// value, never stale data.
func AdjustStockTx(tx *gorm.DB, ctx context.Context, store string, productId int, warehouseId int, delta int) (int, error) {

	var entry StockEntry
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("store = ? AND product_id = ? AND warehouse_id = ?", store, productId, warehouseId).
		First(&entry).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, err
		}
		entry = StockEntry{
			Store:       store,
			ProductId:   productId,
			WarehouseId: warehouseId,
			Quantity:    0,
		}
		if err := tx.WithContext(ctx).Create(&entry).Error; err != nil {
			return 0, err
		}
	}

	newQuantity := entry.Quantity + delta
	if newQuantity < 0 {
		return 0, fmt.Errorf("%w: have %d, need %d", utils.ErrInsufficientStock, entry.Quantity, -delta)
	}

	if err := tx.WithContext(ctx).Model(&StockEntry{}).
		Where("id = ?", entry.ID).
		Update("quantity", newQuantity).Error; err != nil {
		return 0, err
	}
	return newQuantity, nil
}

// MigrateStockTx moves quantity between two warehouses of the same store as
// one unit; the caller's transaction boundary makes a partial move
// impossible. Returns the new quantities at source and target.
func MigrateStockTx(tx *gorm.DB, ctx context.Context, store string, productId int, sourceWarehouseId int, targetWarehouseId int, quantity int) (int, int, error) {

	if quantity <= 0 {
		return 0, 0, utils.NewValidationError("quantity", "must be positive")
	}
	if sourceWarehouseId == targetWarehouseId {
		return 0, 0, utils.NewValidationError("warehouse", "source and target must differ")
	}

	sourceAfter, err := AdjustStockTx(tx, ctx, store, productId, sourceWarehouseId, -quantity)
	if err != nil {
		return 0, 0, err
	}
	targetAfter, err := AdjustStockTx(tx, ctx, store, productId, targetWarehouseId, quantity)
	if err != nil {
		return 0, 0, err
	}
	return sourceAfter, targetAfter, nil
}

// WarehouseStock is the per-warehouse view of one product's stock.
type WarehouseStock struct {
	WarehouseId   int    `json:"warehouse_id"`
	WarehouseName string `json:"warehouse_name"`
	Quantity      int    `json:"quantity"`
}

// GetProductWarehouseStock returns the product's quantity per warehouse.
func GetProductWarehouseStock(ctx context.Context, productId int) ([]*WarehouseStock, error) {

	store, ok := utils.GetStoreFromContext(ctx)
	if !ok || store == "" {
		return nil, errors.New("store is required")
	}

	db := config.GetDB()
	var results []*WarehouseStock
	err := db.WithContext(ctx).Model(&StockEntry{}).
		Select("stock_entries.warehouse_id, warehouses.name AS warehouse_name, stock_entries.quantity").
		Joins("JOIN warehouses ON warehouses.id = stock_entries.warehouse_id").
		Where("stock_entries.store = ? AND stock_entries.product_id = ?", store, productId).
		Order("warehouses.name").
		Scan(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// StockSummaryRow is one product's stock in one warehouse, for list views.
type StockSummaryRow struct {
	ProductId     int    `json:"product_id"`
	ProductName   string `json:"product_name"`
	WarehouseId   int    `json:"warehouse_id"`
	WarehouseName string `json:"warehouse_name"`
	Quantity      int    `json:"quantity"`
}

// GetStockSummary lists stock per (product, warehouse); warehouseId filters
// to a single warehouse when > 0.
func GetStockSummary(ctx context.Context, warehouseId int) ([]*StockSummaryRow, error) {

	store, ok := utils.GetStoreFromContext(ctx)
	if !ok || store == "" {
		return nil, errors.New("store is required")
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&StockEntry{}).
		Select("stock_entries.product_id, products.name AS product_name, stock_entries.warehouse_id, warehouses.name AS warehouse_name, stock_entries.quantity").
		Joins("JOIN products ON products.id = stock_entries.product_id").
		Joins("JOIN warehouses ON warehouses.id = stock_entries.warehouse_id").
		Where("stock_entries.store = ?", store)
	if warehouseId > 0 {
		dbCtx = dbCtx.Where("stock_entries.warehouse_id = ?", warehouseId)
	}

	var results []*StockSummaryRow
	err := dbCtx.Order("products.name, warehouses.name").Scan(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
