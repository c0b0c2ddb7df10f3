package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/gudangkita/inventory_backend/config"
	"bitbucket.org/gudangkita/inventory_backend/utils"
	"github.com/shopspring/decimal"
)

// Purchase is one line item of an acquisition. Multi-item carts share a
// TransactionGroup; DebtId links credit purchases to the payable they opened.
type Purchase struct {
	ID               int             `gorm:"primary_key" json:"id"`
	Store            string          `gorm:"index;size:64;not null" json:"store"`
	ProductId        int             `gorm:"index;not null" json:"product_id"`
	WarehouseId      int             `gorm:"index;not null" json:"warehouse_id"`
	SupplierId       int             `gorm:"index;not null" json:"supplier_id"`
	Quantity         int             `gorm:"not null" json:"quantity"`
	UnitPrice        decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"unit_price"`
	TotalPrice       decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"total_price"`
	PaymentType      PaymentType     `gorm:"size:10;not null" json:"payment_type"`
	AccountId        *int            `json:"account_id"`
	DebtId           *int            `json:"debt_id"`
	InvoiceNumber    string          `gorm:"size:100" json:"invoice_number"`
	TransactionGroup string          `gorm:"size:64;index" json:"transaction_group"`
	TransactionTime  time.Time       `gorm:"index;not null" json:"transaction_time"`
	CreatedBy        string          `gorm:"size:100" json:"created_by"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// GetPurchases lists purchase lines newest first, optionally filtered by
// product, supplier and time window.
func GetPurchases(ctx context.Context, productId *int, supplierId *int, from *time.Time, to *time.Time) ([]*Purchase, error) {

	store, ok := utils.GetStoreFromContext(ctx)
	if !ok || store == "" {
		return nil, errors.New("store is required")
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("store = ?", store)
	if productId != nil && *productId > 0 {
		dbCtx = dbCtx.Where("product_id = ?", *productId)
	}
	if supplierId != nil && *supplierId > 0 {
		dbCtx = dbCtx.Where("supplier_id = ?", *supplierId)
	}
	if from != nil {
		dbCtx = dbCtx.Where("transaction_time >= ?", *from)
	}
	if to != nil {
		dbCtx = dbCtx.Where("transaction_time <= ?", *to)
	}

	var results []*Purchase
	err := dbCtx.Order("transaction_time DESC, id DESC").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// AverageAcquisitionPrice returns the unweighted average of the product's
// purchase unit prices, zero when the product was never purchased. The
// result is cached; recording a purchase invalidates the key.
func AverageAcquisitionPrice(ctx context.Context, productId int) (decimal.Decimal, error) {

	store, ok := utils.GetStoreFromContext(ctx)
	if !ok || store == "" {
		return decimal.Zero, errors.New("store is required")
	}

	cacheKey := averagePriceCacheKey(store, productId)
	var cached decimal.Decimal
	if hit, err := config.GetRedisObject(cacheKey, &cached); err == nil && hit {
		return cached, nil
	}

	db := config.GetDB()
	var avg decimal.NullDecimal
	err := db.WithContext(ctx).Model(&Purchase{}).
		Where("store = ? AND product_id = ?", store, productId).
		Select("AVG(unit_price)").Scan(&avg).Error
	if err != nil {
		return decimal.Zero, err
	}
	result := decimal.Zero
	if avg.Valid {
		result = avg.Decimal
	}
	_ = config.SetRedisObject(cacheKey, result, 10*time.Minute)
	return result, nil
}

func averagePriceCacheKey(store string, productId int) string {
	return fmt.Sprintf("avgprice:%s:%d", store, productId)
}

// InvalidateAveragePrice drops the cached average after a new purchase line.
func InvalidateAveragePrice(store string, productId int) {
	_ = config.RemoveRedisKey(averagePriceCacheKey(store, productId))
}
