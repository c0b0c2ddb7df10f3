package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/gudangkita/inventory_backend/config"
	"bitbucket.org/gudangkita/inventory_backend/utils"
	"gorm.io/gorm"
)

type Warehouse struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Store     string    `gorm:"index;size:64;not null;uniqueIndex:idx_warehouse_store_name,priority:1" json:"store"`
	Name      string    `gorm:"size:100;not null;uniqueIndex:idx_warehouse_store_name,priority:2" json:"name" binding:"required"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewWarehouse struct {
	Name string `json:"name" binding:"required"`
}

func CreateWarehouse(ctx context.Context, input *NewWarehouse) (*Warehouse, error) {

	store, ok := utils.GetStoreFromContext(ctx)
	if !ok || store == "" {
		return nil, errors.New("store is required")
	}

	if err := utils.ValidateUnique[Warehouse](ctx, store, "name", input.Name, 0); err != nil {
		return nil, err
	}

	warehouse := Warehouse{
		Store: store,
		Name:  input.Name,
	}

	db := config.GetDB()
	err := db.WithContext(ctx).Create(&warehouse).Error
	if err != nil {
		return nil, err
	}
	return &warehouse, nil
}

// DeleteWarehouse refuses to delete a warehouse that still holds stock.
// Stock must be moved out first (MigrateStock); deleting would silently
// discard stock records otherwise.
func DeleteWarehouse(ctx context.Context, id int) (*Warehouse, error) {

	store, ok := utils.GetStoreFromContext(ctx)
	if !ok || store == "" {
		return nil, errors.New("store is required")
	}
	warehouse, err := utils.FetchModel[Warehouse](ctx, store, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	var stocked int64
	err = db.WithContext(ctx).Model(&StockEntry{}).
		Where("store = ? AND warehouse_id = ? AND quantity > 0", store, id).
		Count(&stocked).Error
	if err != nil {
		return nil, err
	}
	if stocked > 0 {
		return nil, fmt.Errorf("%w: %s; migrate stock before deleting", utils.ErrWarehouseNotEmpty, warehouse.Name)
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("store = ? AND warehouse_id = ?", store, id).Delete(&StockEntry{}).Error; err != nil {
			return err
		}
		return tx.Delete(&warehouse).Error
	})
	if err != nil {
		return nil, err
	}

	return warehouse, nil
}

func GetWarehouse(ctx context.Context, id int) (*Warehouse, error) {
	store, ok := utils.GetStoreFromContext(ctx)
	if !ok || store == "" {
		return nil, errors.New("store is required")
	}
	return utils.FetchModel[Warehouse](ctx, store, id)
}

func GetWarehouses(ctx context.Context) ([]*Warehouse, error) {

	store, ok := utils.GetStoreFromContext(ctx)
	if !ok || store == "" {
		return nil, errors.New("store is required")
	}

	db := config.GetDB()
	var results []*Warehouse
	err := db.WithContext(ctx).Where("store = ?", store).Order("name").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
