package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/gudangkita/inventory_backend/config"
	"bitbucket.org/gudangkita/inventory_backend/models"
	"bitbucket.org/gudangkita/inventory_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// NewDebtPayment settles part or all of one debt.
type NewDebtPayment struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
	Note   string          `json:"note"`
	PaidAt time.Time       `json:"paid_at"`
}

// RecordDebtPayment reduces the debt and posts the matching journal entry
// to the store's default account in one transaction: outflow when the
// store pays a supplier, inflow when a customer pays the store.
func RecordDebtPayment(ctx context.Context, logger *logrus.Logger, debtId int, input *NewDebtPayment) (*models.PaymentHistory, error) {

	store, ok := utils.GetStoreFromContext(ctx)
	if !ok || store == "" {
		return nil, errors.New("store is required")
	}
	if !input.Amount.IsPositive() {
		return nil, utils.NewValidationError("amount", "must be positive")
	}

	username, _ := utils.GetUsernameFromContext(ctx)
	paidAt := input.PaidAt
	if paidAt.IsZero() {
		return nil, utils.NewValidationError("paid_at", "is required")
	}

	var payment *models.PaymentHistory
	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := AcquireStorePostingLock(tx, store); err != nil {
			config.LogError(logger, "debtPaymentWorkflow.go", "RecordDebtPayment", "AcquireStorePostingLock", store, err)
			return err
		}
		defer ReleaseStorePostingLock(tx, store)

		debt, err := models.FetchDebtForUpdateTx(tx, ctx, store, debtId)
		if err != nil {
			config.LogError(logger, "debtPaymentWorkflow.go", "RecordDebtPayment", "FetchDebtForUpdateTx", debtId, err)
			return err
		}

		payment, err = models.SettleDebtTx(tx, ctx, debt, input.Amount, "cash", input.Note, paidAt, username)
		if err != nil {
			config.LogError(logger, "debtPaymentWorkflow.go", "RecordDebtPayment", "SettleDebtTx", input.Amount, err)
			return err
		}

		account, err := models.GetDefaultAccountTx(tx, ctx, store)
		if err != nil {
			config.LogError(logger, "debtPaymentWorkflow.go", "RecordDebtPayment", "GetDefaultAccountTx", store, err)
			return err
		}

		amount := input.Amount
		if debt.Kind == models.DebtKindPayable {
			amount = amount.Neg()
		}
		_, err = models.PostAccountTransactionTx(tx, ctx, &models.AccountPosting{
			Store:           store,
			AccountId:       account.ID,
			TransactionType: models.TransactionTypeDebtPayment,
			Amount:          amount,
			Reference:       fmt.Sprintf("debt:%d", debt.ID),
			TransactionTime: paidAt,
			CreatedBy:       username,
		})
		if err != nil {
			config.LogError(logger, "debtPaymentWorkflow.go", "RecordDebtPayment", "PostAccountTransactionTx", amount, err)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}
