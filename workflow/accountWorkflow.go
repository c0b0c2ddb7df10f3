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

// NewTransfer moves funds between two accounts of the same store.
type NewTransfer struct {
	SourceAccountId int             `json:"source_account_id" binding:"required"`
	TargetAccountId int             `json:"target_account_id" binding:"required"`
	Amount          decimal.Decimal `json:"amount" binding:"required"`
	Note            string          `json:"note"`
	TransactionTime time.Time       `json:"transaction_time"`
}

// TransferFunds posts the debit and credit legs in one transaction. The
// debit leg fails first when the source lacks funds, so the credit leg
// never lands alone.
func TransferFunds(ctx context.Context, logger *logrus.Logger, input *NewTransfer) error {

	store, ok := utils.GetStoreFromContext(ctx)
	if !ok || store == "" {
		return errors.New("store is required")
	}
	if !input.Amount.IsPositive() {
		return utils.NewValidationError("amount", "must be positive")
	}
	if input.SourceAccountId == input.TargetAccountId {
		return utils.NewValidationError("target_account_id", "source and target must differ")
	}
	if err := utils.ValidateResourcesId[models.Account](ctx, store,
		[]int{input.SourceAccountId, input.TargetAccountId}); err != nil {
		return err
	}

	username, _ := utils.GetUsernameFromContext(ctx)
	transactionTime := input.TransactionTime
	if transactionTime.IsZero() {
		return utils.NewValidationError("transaction_time", "is required")
	}
	reference := fmt.Sprintf("transfer:%d>%d", input.SourceAccountId, input.TargetAccountId)
	if input.Note != "" {
		reference = input.Note
	}

	db := config.GetDB()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := AcquireStorePostingLock(tx, store); err != nil {
			config.LogError(logger, "accountWorkflow.go", "TransferFunds", "AcquireStorePostingLock", store, err)
			return err
		}
		defer ReleaseStorePostingLock(tx, store)

		_, err := models.PostAccountTransactionTx(tx, ctx, &models.AccountPosting{
			Store:           store,
			AccountId:       input.SourceAccountId,
			TransactionType: models.TransactionTypeTransfer,
			Amount:          input.Amount.Neg(),
			Reference:       reference,
			TransactionTime: transactionTime,
			CreatedBy:       username,
		})
		if err != nil {
			config.LogError(logger, "accountWorkflow.go", "TransferFunds", "PostAccountTransactionTx debit", input.Amount, err)
			return err
		}

		_, err = models.PostAccountTransactionTx(tx, ctx, &models.AccountPosting{
			Store:           store,
			AccountId:       input.TargetAccountId,
			TransactionType: models.TransactionTypeTransfer,
			Amount:          input.Amount,
			Reference:       reference,
			TransactionTime: transactionTime,
			CreatedBy:       username,
		})
		if err != nil {
			config.LogError(logger, "accountWorkflow.go", "TransferFunds", "PostAccountTransactionTx credit", input.Amount, err)
			return err
		}
		return nil
	})
}

// NewBalanceAdjustment is a manual signed correction to an account.
type NewBalanceAdjustment struct {
	Amount          decimal.Decimal `json:"amount" binding:"required"`
	Note            string          `json:"note" binding:"required"`
	TransactionTime time.Time       `json:"transaction_time"`
}

// AdjustAccountBalance posts a manual journal entry. Negative adjustments
// still cannot take the account below zero.
func AdjustAccountBalance(ctx context.Context, logger *logrus.Logger, accountId int, input *NewBalanceAdjustment) (*models.AccountTransaction, error) {

	store, ok := utils.GetStoreFromContext(ctx)
	if !ok || store == "" {
		return nil, errors.New("store is required")
	}
	if input.Amount.IsZero() {
		return nil, utils.NewValidationError("amount", "must not be zero")
	}
	if input.Note == "" {
		return nil, utils.NewValidationError("note", "required")
	}
	if err := utils.ValidateResourceId[models.Account](ctx, store, accountId); err != nil {
		return nil, err
	}

	username, _ := utils.GetUsernameFromContext(ctx)
	transactionTime := input.TransactionTime
	if transactionTime.IsZero() {
		return nil, utils.NewValidationError("transaction_time", "is required")
	}

	var journal *models.AccountTransaction
	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := AcquireStorePostingLock(tx, store); err != nil {
			config.LogError(logger, "accountWorkflow.go", "AdjustAccountBalance", "AcquireStorePostingLock", store, err)
			return err
		}
		defer ReleaseStorePostingLock(tx, store)

		var err error
		journal, err = models.PostAccountTransactionTx(tx, ctx, &models.AccountPosting{
			Store:           store,
			AccountId:       accountId,
			TransactionType: models.TransactionTypeAdjustment,
			Amount:          input.Amount,
			Reference:       input.Note,
			TransactionTime: transactionTime,
			CreatedBy:       username,
		})
		if err != nil {
			config.LogError(logger, "accountWorkflow.go", "AdjustAccountBalance", "PostAccountTransactionTx", input.Amount, err)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return journal, nil
}
