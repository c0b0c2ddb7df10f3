package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/gudangkita/inventory_backend/config"
	"bitbucket.org/gudangkita/inventory_backend/utils"
)

// Product is owned by a store. Attributes are mutable; products are never
// deleted because historical transactions reference them.
type Product struct {
	ID          int       `gorm:"primary_key" json:"id"`
	Store       string    `gorm:"index;size:64;not null;uniqueIndex:idx_product_store_name,priority:1" json:"store"`
	Name        string    `gorm:"size:150;not null;uniqueIndex:idx_product_store_name,priority:2" json:"name" binding:"required"`
	Type        string    `gorm:"size:100" json:"type"`
	Size        string    `gorm:"size:50" json:"size"`
	Color       string    `gorm:"size:50" json:"color"`
	Brand       string    `gorm:"size:100" json:"brand"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewProduct struct {
	Name        string `json:"name" binding:"required"`
	Type        string `json:"type"`
	Size        string `json:"size"`
	Color       string `json:"color"`
	Brand       string `json:"brand"`
	Description string `json:"description"`
}

// validate input for both create & update. (id = 0 for create)
func (input *NewProduct) validate(ctx context.Context, store string, id int) error {
	if id > 0 {
		if err := utils.ValidateResourceId[Product](ctx, store, id); err != nil {
			return err
		}
	}
	if err := utils.ValidateUnique[Product](ctx, store, "name", input.Name, id); err != nil {
		return err
	}
	return nil
}

func CreateProduct(ctx context.Context, input *NewProduct) (*Product, error) {

	store, ok := utils.GetStoreFromContext(ctx)
	if !ok || store == "" {
		return nil, errors.New("store is required")
	}

	if err := input.validate(ctx, store, 0); err != nil {
		return nil, err
	}

	product := Product{
		Store:       store,
		Name:        input.Name,
		Type:        input.Type,
		Size:        input.Size,
		Color:       input.Color,
		Brand:       input.Brand,
		Description: input.Description,
	}

	db := config.GetDB()
	err := db.WithContext(ctx).Create(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func UpdateProduct(ctx context.Context, id int, input *NewProduct) (*Product, error) {

	store, ok := utils.GetStoreFromContext(ctx)
	if !ok || store == "" {
		return nil, errors.New("store is required")
	}

	if err := input.validate(ctx, store, id); err != nil {
		return nil, err
	}

	product, err := utils.FetchModel[Product](ctx, store, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(&product).Updates(map[string]interface{}{
		"Name":        input.Name,
		"Type":        input.Type,
		"Size":        input.Size,
		"Color":       input.Color,
		"Brand":       input.Brand,
		"Description": input.Description,
	}).Error
	if err != nil {
		return nil, err
	}
	return product, nil
}

func GetProduct(ctx context.Context, id int) (*Product, error) {
	store, ok := utils.GetStoreFromContext(ctx)
	if !ok || store == "" {
		return nil, errors.New("store is required")
	}
	return utils.FetchModel[Product](ctx, store, id)
}

func GetProducts(ctx context.Context, name *string) ([]*Product, error) {

	store, ok := utils.GetStoreFromContext(ctx)
	if !ok || store == "" {
		return nil, errors.New("store is required")
	}

	db := config.GetDB()
	var results []*Product

	dbCtx := db.WithContext(ctx).Where("store = ?", store)
	if name != nil && len(*name) > 0 {
		dbCtx = dbCtx.Where("name LIKE ?", "%"+*name+"%")
	}
	err := dbCtx.Order("name").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
