package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/gudangkita/inventory_backend/config"
	"bitbucket.org/gudangkita/inventory_backend/models"
	"bitbucket.org/gudangkita/inventory_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// NewStockAdjustment corrects a stock counter outside the purchase/sale
// flow. Reason is mandatory.
type NewStockAdjustment struct {
	ProductId       int                        `json:"product_id" binding:"required"`
	WarehouseId     int                        `json:"warehouse_id" binding:"required"`
	Direction       models.AdjustmentDirection `json:"direction" binding:"required"`
	Quantity        int                        `json:"quantity" binding:"required,gt=0"`
	Reason          string                     `json:"reason" binding:"required"`
	TransactionTime time.Time                  `json:"transaction_time"`
}

// RecordStockAdjustment applies the correction and its audit row atomically.
// A reduce below zero rolls back with ErrInsufficientStock.
func RecordStockAdjustment(ctx context.Context, logger *logrus.Logger, input *NewStockAdjustment) (*models.StockAdjustment, error) {

	store, ok := utils.GetStoreFromContext(ctx)
	if !ok || store == "" {
		return nil, errors.New("store is required")
	}
	if !input.Direction.Valid() {
		return nil, utils.NewValidationError("direction", "must be add or reduce")
	}
	if input.Quantity <= 0 {
		return nil, utils.NewValidationError("quantity", "must be positive")
	}
	if input.Reason == "" {
		return nil, utils.NewValidationError("reason", "required")
	}
	if err := utils.ValidateResourceId[models.Product](ctx, store, input.ProductId); err != nil {
		return nil, err
	}
	if err := utils.ValidateResourceId[models.Warehouse](ctx, store, input.WarehouseId); err != nil {
		return nil, err
	}

	username, _ := utils.GetUsernameFromContext(ctx)
	transactionTime := input.TransactionTime
	if transactionTime.IsZero() {
		return nil, utils.NewValidationError("transaction_time", "is required")
	}
	delta := input.Quantity
	if input.Direction == models.AdjustmentDirectionReduce {
		delta = -input.Quantity
	}

	adjustment := models.StockAdjustment{
		Store:           store,
		ProductId:       input.ProductId,
		WarehouseId:     input.WarehouseId,
		Direction:       input.Direction,
		Quantity:        input.Quantity,
		Reason:          input.Reason,
		TransactionTime: transactionTime,
		CreatedBy:       username,
	}

	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := AcquireStorePostingLock(tx, store); err != nil {
			config.LogError(logger, "stockWorkflow.go", "RecordStockAdjustment", "AcquireStorePostingLock", store, err)
			return err
		}
		defer ReleaseStorePostingLock(tx, store)

		newQuantity, err := models.AdjustStockTx(tx, ctx, store, input.ProductId, input.WarehouseId, delta)
		if err != nil {
			config.LogError(logger, "stockWorkflow.go", "RecordStockAdjustment", "AdjustStockTx", input, err)
			return err
		}
		adjustment.QuantityAfter = newQuantity

		if err := tx.WithContext(ctx).Create(&adjustment).Error; err != nil {
			config.LogError(logger, "stockWorkflow.go", "RecordStockAdjustment", "Create StockAdjustment", nil, err)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &adjustment, nil
}

// stockKey identifies one counter during a rebuild.
type stockKey struct {
	ProductId   int
	WarehouseId int
}

// RebuildStockCounters recomputes every stock counter of the store from
// recorded history (purchases, sales, returns, adjustments; migrations
// appear as adjustment pairs) and rewrites drifted counters. Returns the
// number of counters repaired.
func RebuildStockCounters(ctx context.Context, logger *logrus.Logger, store string) (int, error) {

	db := config.GetDB()
	expected := make(map[stockKey]int)

	var purchases []*models.Purchase
	if err := db.WithContext(ctx).Where("store = ?", store).Find(&purchases).Error; err != nil {
		return 0, err
	}
	for _, p := range purchases {
		expected[stockKey{p.ProductId, p.WarehouseId}] += p.Quantity
	}

	var sales []*models.Sale
	if err := db.WithContext(ctx).Where("store = ?", store).Find(&sales).Error; err != nil {
		return 0, err
	}
	for _, s := range sales {
		expected[stockKey{s.ProductId, s.WarehouseId}] -= s.Quantity
	}

	var returns []*models.ReturnRecord
	if err := db.WithContext(ctx).Preload("Items").Where("store = ?", store).Find(&returns).Error; err != nil {
		return 0, err
	}
	for _, r := range returns {
		sign := 1
		if r.Kind == models.ReturnKindPurchase {
			sign = -1
		}
		for _, item := range r.Items {
			expected[stockKey{item.ProductId, r.WarehouseId}] += sign * item.Quantity
		}
	}

	var adjustments []*models.StockAdjustment
	if err := db.WithContext(ctx).Where("store = ?", store).Find(&adjustments).Error; err != nil {
		return 0, err
	}
	for _, a := range adjustments {
		delta := a.Quantity
		if a.Direction == models.AdjustmentDirectionReduce {
			delta = -a.Quantity
		}
		expected[stockKey{a.ProductId, a.WarehouseId}] += delta
	}

	repaired := 0
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := AcquireStorePostingLock(tx, store); err != nil {
			return err
		}
		defer ReleaseStorePostingLock(tx, store)

		var entries []*models.StockEntry
		if err := tx.Where("store = ?", store).Find(&entries).Error; err != nil {
			return err
		}
		for _, entry := range entries {
			key := stockKey{entry.ProductId, entry.WarehouseId}
			want := expected[key]
			delete(expected, key)
			if entry.Quantity == want {
				continue
			}
			logger.WithFields(logrus.Fields{
				"store":        store,
				"product_id":   entry.ProductId,
				"warehouse_id": entry.WarehouseId,
				"stored":       entry.Quantity,
				"rebuilt":      want,
			}).Warn("stock counter drift repaired")
			if err := tx.Model(&models.StockEntry{}).
				Where("id = ?", entry.ID).
				Update("quantity", want).Error; err != nil {
				return err
			}
			repaired++
		}
		// counters the history implies but no row exists for yet
		for key, want := range expected {
			if want == 0 {
				continue
			}
			entry := models.StockEntry{
				Store:       store,
				ProductId:   key.ProductId,
				WarehouseId: key.WarehouseId,
				Quantity:    want,
			}
			if err := tx.Create(&entry).Error; err != nil {
				return err
			}
			repaired++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return repaired, nil
}

// NewStockMigration moves quantity between two warehouses.
type NewStockMigration struct {
	ProductId         int       `json:"product_id" binding:"required"`
	SourceWarehouseId int       `json:"source_warehouse_id" binding:"required"`
	TargetWarehouseId int       `json:"target_warehouse_id" binding:"required"`
	Quantity          int       `json:"quantity" binding:"required,gt=0"`
	TransactionTime   time.Time `json:"transaction_time"`
}

// MigrateStock moves stock atomically; a source shortfall rolls back both
// legs. Each leg leaves an adjustment row so the movement stays
// reconstructible from history.
func MigrateStock(ctx context.Context, logger *logrus.Logger, input *NewStockMigration) error {

	store, ok := utils.GetStoreFromContext(ctx)
	if !ok || store == "" {
		return errors.New("store is required")
	}
	if input.SourceWarehouseId == input.TargetWarehouseId {
		return utils.NewValidationError("warehouse", "source and target must differ")
	}
	if err := utils.ValidateResourceId[models.Product](ctx, store, input.ProductId); err != nil {
		return err
	}
	if err := utils.ValidateResourcesId[models.Warehouse](ctx, store,
		[]int{input.SourceWarehouseId, input.TargetWarehouseId}); err != nil {
		return err
	}

	username, _ := utils.GetUsernameFromContext(ctx)
	transactionTime := input.TransactionTime
	if transactionTime.IsZero() {
		return utils.NewValidationError("transaction_time", "is required")
	}
	reason := fmt.Sprintf("migration %d>%d", input.SourceWarehouseId, input.TargetWarehouseId)

	db := config.GetDB()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := AcquireStorePostingLock(tx, store); err != nil {
			config.LogError(logger, "stockWorkflow.go", "MigrateStock", "AcquireStorePostingLock", store, err)
			return err
		}
		defer ReleaseStorePostingLock(tx, store)

		sourceAfter, targetAfter, err := models.MigrateStockTx(tx, ctx, store, input.ProductId,
			input.SourceWarehouseId, input.TargetWarehouseId, input.Quantity)
		if err != nil {
			config.LogError(logger, "stockWorkflow.go", "MigrateStock", "MigrateStockTx", input, err)
			return err
		}

		legs := []models.StockAdjustment{
			{
				Store:           store,
				ProductId:       input.ProductId,
				WarehouseId:     input.SourceWarehouseId,
				Direction:       models.AdjustmentDirectionReduce,
				Quantity:        input.Quantity,
				QuantityAfter:   sourceAfter,
				Reason:          reason,
				TransactionTime: transactionTime,
				CreatedBy:       username,
			},
			{
				Store:           store,
				ProductId:       input.ProductId,
				WarehouseId:     input.TargetWarehouseId,
				Direction:       models.AdjustmentDirectionAdd,
				Quantity:        input.Quantity,
				QuantityAfter:   targetAfter,
				Reason:          reason,
				TransactionTime: transactionTime,
				CreatedBy:       username,
			},
		}
		for i := range legs {
			if err := tx.WithContext(ctx).Create(&legs[i]).Error; err != nil {
				config.LogError(logger, "stockWorkflow.go", "MigrateStock", "Create StockAdjustment", legs[i], err)
				return err
			}
		}
		return nil
	})
}
