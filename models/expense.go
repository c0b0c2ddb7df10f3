package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/gudangkita/inventory_backend/config"
	"bitbucket.org/gudangkita/inventory_backend/utils"
	"github.com/shopspring/decimal"
)

// OperationalExpense is one outflow that is not a purchase: rent, utilities,
// salaries. ExpenseType is stored lowercased free text; StaffId is set for
// salary payouts only.
type OperationalExpense struct {
	ID              int             `gorm:"primary_key" json:"id"`
	Store           string          `gorm:"index;size:64;not null" json:"store"`
	ExpenseType     string          `gorm:"size:100;not null;index" json:"expense_type"`
	Amount          decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	Description     string          `gorm:"size:255" json:"description"`
	AccountId       int             `gorm:"index;not null" json:"account_id"`
	StaffId         *int            `gorm:"index" json:"staff_id"`
	TransactionTime time.Time       `gorm:"index;not null" json:"transaction_time"`
	CreatedBy       string          `gorm:"size:100" json:"created_by"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// GetExpenses lists expenses newest first, optionally filtered by type and
// time window.
func GetExpenses(ctx context.Context, expenseType *string, from *time.Time, to *time.Time) ([]*OperationalExpense, error) {

	store, ok := utils.GetStoreFromContext(ctx)
	if !ok || store == "" {
		return nil, errors.New("store is required")
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("store = ?", store)
	if expenseType != nil && *expenseType != "" {
		dbCtx = dbCtx.Where("expense_type = ?", *expenseType)
	}
	if from != nil {
		dbCtx = dbCtx.Where("transaction_time >= ?", *from)
	}
	if to != nil {
		dbCtx = dbCtx.Where("transaction_time <= ?", *to)
	}

	var results []*OperationalExpense
	err := dbCtx.Order("transaction_time DESC, id DESC").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// ExpenseTotalByType sums expenses per type over an optional window.
func ExpenseTotalByType(ctx context.Context, from *time.Time, to *time.Time) (map[string]decimal.Decimal, error) {

	store, ok := utils.GetStoreFromContext(ctx)
	if !ok || store == "" {
		return nil, errors.New("store is required")
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&OperationalExpense{}).Where("store = ?", store)
	if from != nil {
		dbCtx = dbCtx.Where("transaction_time >= ?", *from)
	}
	if to != nil {
		dbCtx = dbCtx.Where("transaction_time <= ?", *to)
	}

	type row struct {
		ExpenseType string
		Total       decimal.Decimal
	}
	var rows []row
	err := dbCtx.Select("expense_type, SUM(amount) AS total").
		Group("expense_type").Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	totals := make(map[string]decimal.Decimal, len(rows))
	for _, r := range rows {
		totals[r.ExpenseType] = r.Total
	}
	return totals, nil
}
