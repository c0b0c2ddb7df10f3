package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/gudangkita/inventory_backend/config"
	"bitbucket.org/gudangkita/inventory_backend/utils"
	"github.com/shopspring/decimal"
)

// ReturnRecord is the header of one return cart. Kind tells which side of
// the original trade is being unwound; ReturnType decides the money effect
// (refund posts to an account, replacement moves stock only, credit_note
// burns open debts).
type ReturnRecord struct {
	ID               int             `gorm:"primary_key" json:"id"`
	Store            string          `gorm:"index;size:64;not null" json:"store"`
	Kind             ReturnKind      `gorm:"size:20;not null;index" json:"kind"`
	ReturnType       ReturnType      `gorm:"size:20;not null" json:"return_type"`
	CounterpartyId   int             `gorm:"index" json:"counterparty_id"`
	CounterpartyName string          `gorm:"size:150" json:"counterparty_name"`
	WarehouseId      int             `gorm:"index;not null" json:"warehouse_id"`
	AccountId        *int            `json:"account_id"`
	TotalAmount      decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"total_amount"`
	Reason           string          `gorm:"size:255" json:"reason"`
	Description      string          `gorm:"type:text" json:"description"`
	InvoiceNumber    string          `gorm:"size:100" json:"invoice_number"`
	TransactionGroup string          `gorm:"size:64;index" json:"transaction_group"`
	TransactionTime  time.Time       `gorm:"index;not null" json:"transaction_time"`
	CreatedBy        string          `gorm:"size:100" json:"created_by"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`

	Items []ReturnItem `gorm:"foreignKey:ReturnId" json:"items"`
}

// ReturnItem is one line of a return cart.
type ReturnItem struct {
	ID        int             `gorm:"primary_key" json:"id"`
	Store     string          `gorm:"index;size:64;not null" json:"store"`
	ReturnId  int             `gorm:"index;not null" json:"return_id"`
	ProductId int             `gorm:"index;not null" json:"product_id"`
	Quantity  int             `gorm:"not null" json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"unit_price"`
	Subtotal  decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"subtotal"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// GetReturnRecord loads one return with its items.
func GetReturnRecord(ctx context.Context, id int) (*ReturnRecord, error) {
	store, ok := utils.GetStoreFromContext(ctx)
	if !ok || store == "" {
		return nil, errors.New("store is required")
	}
	return utils.FetchModel[ReturnRecord](ctx, store, id, "Items")
}

// GetReturnRecords lists return headers newest first, optionally filtered
// by kind and time window.
func GetReturnRecords(ctx context.Context, kind *ReturnKind, from *time.Time, to *time.Time) ([]*ReturnRecord, error) {

	store, ok := utils.GetStoreFromContext(ctx)
	if !ok || store == "" {
		return nil, errors.New("store is required")
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Preload("Items").Where("store = ?", store)
	if kind != nil && *kind != "" {
		dbCtx = dbCtx.Where("kind = ?", *kind)
	}
	if from != nil {
		dbCtx = dbCtx.Where("transaction_time >= ?", *from)
	}
	if to != nil {
		dbCtx = dbCtx.Where("transaction_time <= ?", *to)
	}

	var results []*ReturnRecord
	err := dbCtx.Order("transaction_time DESC, id DESC").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
