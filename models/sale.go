package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/gudangkita/inventory_backend/config"
	"bitbucket.org/gudangkita/inventory_backend/utils"
	"github.com/shopspring/decimal"
)

// Sale is one line item of a disposal. CustomerName is free text; credit
// sales additionally record a customer id for the receivable they open.
type Sale struct {
	ID               int             `gorm:"primary_key" json:"id"`
	Store            string          `gorm:"index;size:64;not null" json:"store"`
	ProductId        int             `gorm:"index;not null" json:"product_id"`
	WarehouseId      int             `gorm:"index;not null" json:"warehouse_id"`
	CustomerId       int             `gorm:"index" json:"customer_id"`
	CustomerName     string          `gorm:"size:150" json:"customer_name"`
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

// GetSales lists sale lines newest first, optionally filtered by product,
// customer and time window.
func GetSales(ctx context.Context, productId *int, customerId *int, from *time.Time, to *time.Time) ([]*Sale, error) {

	store, ok := utils.GetStoreFromContext(ctx)
	if !ok || store == "" {
		return nil, errors.New("store is required")
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("store = ?", store)
	if productId != nil && *productId > 0 {
		dbCtx = dbCtx.Where("product_id = ?", *productId)
	}
	if customerId != nil && *customerId > 0 {
		dbCtx = dbCtx.Where("customer_id = ?", *customerId)
	}
	if from != nil {
		dbCtx = dbCtx.Where("transaction_time >= ?", *from)
	}
	if to != nil {
		dbCtx = dbCtx.Where("transaction_time <= ?", *to)
	}

	var results []*Sale
	err := dbCtx.Order("transaction_time DESC, id DESC").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// SalesTotal sums sale revenue over an optional time window.
func SalesTotal(ctx context.Context, from *time.Time, to *time.Time) (decimal.Decimal, error) {

	store, ok := utils.GetStoreFromContext(ctx)
	if !ok || store == "" {
		return decimal.Zero, errors.New("store is required")
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&Sale{}).Where("store = ?", store)
	if from != nil {
		dbCtx = dbCtx.Where("transaction_time >= ?", *from)
	}
	if to != nil {
		dbCtx = dbCtx.Where("transaction_time <= ?", *to)
	}

	var sum decimal.NullDecimal
	err := dbCtx.Select("SUM(total_price)").Scan(&sum).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !sum.Valid {
		return decimal.Zero, nil
	}
	return sum.Decimal, nil
}
