package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/gudangkita/inventory_backend/config"
	"bitbucket.org/gudangkita/inventory_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Debt tracks one credit transaction until it is fully settled. PaidAmount
// only grows; RemainingAmount = TotalAmount - PaidAmount stays >= 0, and
// once it reaches zero the status flips to paid and stays there.
type Debt struct {
	ID               int             `gorm:"primary_key" json:"id"`
	Store            string          `gorm:"index;size:64;not null" json:"store"`
	Kind             DebtKind        `gorm:"size:20;not null;index" json:"kind"`
	CounterpartyId   int             `gorm:"index;not null" json:"counterparty_id"`
	CounterpartyName string          `gorm:"size:150" json:"counterparty_name"`
	TransactionGroup string          `gorm:"size:64;index" json:"transaction_group"`
	TotalAmount      decimal.Decimal `gorm:"column:total_debt;type:decimal(20,4);not null" json:"total_debt"`
	PaidAmount       decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"paid_amount"`
	RemainingAmount  decimal.Decimal `gorm:"column:remaining_debt;type:decimal(20,4);not null" json:"remaining_debt"`
	Status           DebtStatus      `gorm:"size:20;not null;default:'open';index" json:"status"`
	Description      string          `gorm:"size:255" json:"description"`
	DueDate          *time.Time      `json:"due_date"`
	IncurredAt       time.Time       `gorm:"index;not null" json:"incurred_at"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// PaymentHistory is one settlement event against a debt. Rows are append
// only; a credit-note settlement carries no account journal reference.
type PaymentHistory struct {
	ID        int             `gorm:"primary_key" json:"id"`
	Store     string          `gorm:"index;size:64;not null" json:"store"`
	DebtId    int             `gorm:"index;not null" json:"debt_id"`
	Amount    decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	Method    string          `gorm:"size:30;not null;default:'cash'" json:"method"`
	Reference string          `gorm:"size:255" json:"reference"`
	PaidAt    time.Time       `gorm:"index;not null" json:"paid_at"`
	CreatedBy string          `gorm:"size:100" json:"created_by"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// CreateDebtTx opens a debt inside the caller's transaction.
func CreateDebtTx(tx *gorm.DB, ctx context.Context, debt *Debt) error {

	if !debt.Kind.Valid() {
		return utils.NewValidationError("kind", "must be payable or receivable")
	}
	if !debt.TotalAmount.IsPositive() {
		return utils.NewValidationError("amount", "must be positive")
	}
	debt.PaidAmount = decimal.Zero
	debt.RemainingAmount = debt.TotalAmount
	debt.Status = DebtStatusOpen
	if debt.IncurredAt.IsZero() {
		return utils.NewValidationError("incurred_at", "is required")
	}
	return tx.WithContext(ctx).Create(debt).Error
}

// FetchDebtForUpdateTx loads the debt with a FOR UPDATE lock so concurrent
// settlements against the same debt serialize.
func FetchDebtForUpdateTx(tx *gorm.DB, ctx context.Context, store string, debtId int) (*Debt, error) {

	var debt Debt
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("store = ? AND id = ?", store, debtId).
		First(&debt).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: debt %d", utils.ErrorRecordNotFound, debtId)
		}
		return nil, err
	}
	return &debt, nil
}

// SettleDebtTx reduces the locked debt by amount and appends the payment
// history row. The caller must have loaded the debt via
// FetchDebtForUpdateTx in the same transaction.
func SettleDebtTx(tx *gorm.DB, ctx context.Context, debt *Debt, amount decimal.Decimal, method string, reference string, paidAt time.Time, createdBy string) (*PaymentHistory, error) {

	if debt.Status == DebtStatusPaid {
		return nil, fmt.Errorf("%w: debt %d", utils.ErrDebtAlreadyPaid, debt.ID)
	}
	if !amount.IsPositive() {
		return nil, utils.NewValidationError("amount", "must be positive")
	}
	if amount.GreaterThan(debt.RemainingAmount) {
		return nil, fmt.Errorf("%w: remaining %s, paying %s",
			utils.ErrOverpayment, debt.RemainingAmount.String(), amount.String())
	}
	if paidAt.IsZero() {
		return nil, utils.NewValidationError("paid_at", "is required")
	}

	paid := debt.PaidAmount.Add(amount)
	remaining := debt.TotalAmount.Sub(paid)
	status := DebtStatusOpen
	if remaining.IsZero() {
		status = DebtStatusPaid
	}

	if err := tx.WithContext(ctx).Model(&Debt{}).
		Where("id = ?", debt.ID).
		Updates(map[string]interface{}{
			"paid_amount":    paid,
			"remaining_debt": remaining,
			"status":         status,
		}).Error; err != nil {
		return nil, err
	}
	debt.PaidAmount = paid
	debt.RemainingAmount = remaining
	debt.Status = status

	payment := PaymentHistory{
		Store:     debt.Store,
		DebtId:    debt.ID,
		Amount:    amount,
		Method:    method,
		Reference: reference,
		PaidAt:    paidAt,
		CreatedBy: createdBy,
	}
	if err := tx.WithContext(ctx).Create(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func GetDebt(ctx context.Context, id int) (*Debt, error) {
	store, ok := utils.GetStoreFromContext(ctx)
	if !ok || store == "" {
		return nil, errors.New("store is required")
	}
	return utils.FetchModel[Debt](ctx, store, id)
}

// GetDebts lists debts, optionally filtered by kind, counterparty and status.
func GetDebts(ctx context.Context, kind *DebtKind, counterpartyId *int, status *DebtStatus) ([]*Debt, error) {

	store, ok := utils.GetStoreFromContext(ctx)
	if !ok || store == "" {
		return nil, errors.New("store is required")
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("store = ?", store)
	if kind != nil && *kind != "" {
		dbCtx = dbCtx.Where("kind = ?", *kind)
	}
	if counterpartyId != nil && *counterpartyId > 0 {
		dbCtx = dbCtx.Where("counterparty_id = ?", *counterpartyId)
	}
	if status != nil && *status != "" {
		dbCtx = dbCtx.Where("status = ?", *status)
	}

	var results []*Debt
	err := dbCtx.Order("incurred_at DESC, id DESC").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// GetOpenDebtsForUpdateTx loads the counterparty's open debts oldest first,
// locked FOR UPDATE. Used by credit-note settlement which burns across
// multiple debts. Counterparties without a registry id (walk-in customers
// store counterparty_id 0) are matched by name; id 0 alone would collect
// every anonymous counterparty's debts.
func GetOpenDebtsForUpdateTx(tx *gorm.DB, ctx context.Context, store string, kind DebtKind, counterpartyId int, counterpartyName string) ([]*Debt, error) {

	dbCtx := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("store = ? AND kind = ? AND status = ?", store, kind, DebtStatusOpen)
	if counterpartyId > 0 {
		dbCtx = dbCtx.Where("counterparty_id = ?", counterpartyId)
	} else {
		if counterpartyName == "" {
			return nil, utils.NewValidationError("counterparty", "id or name is required")
		}
		dbCtx = dbCtx.Where("counterparty_id = 0 AND counterparty_name = ?", counterpartyName)
	}

	var results []*Debt
	err := dbCtx.Order("incurred_at, id").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// GetDebtTotal sums the remaining amount of a counterparty's open debts.
func GetDebtTotal(ctx context.Context, kind DebtKind, counterpartyId int) (decimal.Decimal, error) {

	store, ok := utils.GetStoreFromContext(ctx)
	if !ok || store == "" {
		return decimal.Zero, errors.New("store is required")
	}

	db := config.GetDB()
	var sum decimal.NullDecimal
	err := db.WithContext(ctx).Model(&Debt{}).
		Where("store = ? AND kind = ? AND counterparty_id = ? AND status = ?",
			store, kind, counterpartyId, DebtStatusOpen).
		Select("SUM(remaining_debt)").Scan(&sum).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !sum.Valid {
		return decimal.Zero, nil
	}
	return sum.Decimal, nil
}

// GetDebtPayments lists the settlement history of one debt, newest first.
func GetDebtPayments(ctx context.Context, debtId int) ([]*PaymentHistory, error) {

	store, ok := utils.GetStoreFromContext(ctx)
	if !ok || store == "" {
		return nil, errors.New("store is required")
	}
	if err := utils.ValidateResourceId[Debt](ctx, store, debtId); err != nil {
		return nil, err
	}

	db := config.GetDB()
	var results []*PaymentHistory
	err := db.WithContext(ctx).Where("store = ? AND debt_id = ?", store, debtId).
		Order("paid_at DESC, id DESC").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
