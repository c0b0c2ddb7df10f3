package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bitbucket.org/gudangkita/inventory_backend/config"
	"bitbucket.org/gudangkita/inventory_backend/models"
	"bitbucket.org/gudangkita/inventory_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// NewExpense records one operational outflow.
type NewExpense struct {
	ExpenseType     string          `json:"expense_type" binding:"required"`
	Amount          decimal.Decimal `json:"amount" binding:"required"`
	Description     string          `json:"description"`
	AccountId       *int            `json:"account_id"`
	TransactionTime time.Time       `json:"transaction_time"`
}

// RecordExpense posts the outflow and the expense record in one
// transaction.
func RecordExpense(ctx context.Context, logger *logrus.Logger, input *NewExpense) (*models.OperationalExpense, error) {

	store, ok := utils.GetStoreFromContext(ctx)
	if !ok || store == "" {
		return nil, errors.New("store is required")
	}
	if input.ExpenseType == "" {
		return nil, utils.NewValidationError("expense_type", "required")
	}
	if !input.Amount.IsPositive() {
		return nil, utils.NewValidationError("amount", "must be positive")
	}

	username, _ := utils.GetUsernameFromContext(ctx)
	transactionTime := input.TransactionTime
	if transactionTime.IsZero() {
		return nil, utils.NewValidationError("transaction_time", "is required")
	}
	expenseType := strings.ToLower(strings.TrimSpace(input.ExpenseType))

	expense := models.OperationalExpense{
		Store:           store,
		ExpenseType:     expenseType,
		Amount:          input.Amount,
		Description:     input.Description,
		TransactionTime: transactionTime,
		CreatedBy:       username,
	}

	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := AcquireStorePostingLock(tx, store); err != nil {
			config.LogError(logger, "expenseWorkflow.go", "RecordExpense", "AcquireStorePostingLock", store, err)
			return err
		}
		defer ReleaseStorePostingLock(tx, store)

		account, err := resolveAccountTx(tx, ctx, store, input.AccountId)
		if err != nil {
			config.LogError(logger, "expenseWorkflow.go", "RecordExpense", "resolveAccountTx", input.AccountId, err)
			return err
		}
		_, err = models.PostAccountTransactionTx(tx, ctx, &models.AccountPosting{
			Store:           store,
			AccountId:       account.ID,
			TransactionType: models.TransactionTypeExpense,
			Amount:          input.Amount.Neg(),
			Reference:       expenseType,
			TransactionTime: transactionTime,
			CreatedBy:       username,
		})
		if err != nil {
			config.LogError(logger, "expenseWorkflow.go", "RecordExpense", "PostAccountTransactionTx", input.Amount, err)
			return err
		}

		expense.AccountId = account.ID
		if err := tx.WithContext(ctx).Create(&expense).Error; err != nil {
			config.LogError(logger, "expenseWorkflow.go", "RecordExpense", "Create OperationalExpense", nil, err)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &expense, nil
}

// NewSalaryPayment pays one staff member for one period.
type NewSalaryPayment struct {
	StaffId         int             `json:"staff_id" binding:"required"`
	Period          time.Time       `json:"period" binding:"required"`
	Amount          decimal.Decimal `json:"amount"`
	AccountId       *int            `json:"account_id"`
	TransactionTime time.Time       `json:"transaction_time"`
}

// RecordSalaryPayment posts a salary expense, then writes the denormalized
// StaffPayment row after the posting commits. The second write is best
// effort: a failure there leaves the financial record intact and is only
// logged.
func RecordSalaryPayment(ctx context.Context, logger *logrus.Logger, input *NewSalaryPayment) (*models.OperationalExpense, error) {

	store, ok := utils.GetStoreFromContext(ctx)
	if !ok || store == "" {
		return nil, errors.New("store is required")
	}
	if err := utils.ValidateResourceId[models.Staff](ctx, store, input.StaffId); err != nil {
		return nil, err
	}
	staff, err := models.GetStaff(ctx, input.StaffId)
	if err != nil {
		return nil, err
	}

	amount := input.Amount
	if amount.IsZero() {
		amount = staff.MonthlySalary
	}
	if !amount.IsPositive() {
		return nil, utils.NewValidationError("amount", "must be positive")
	}

	username, _ := utils.GetUsernameFromContext(ctx)
	transactionTime := input.TransactionTime
	if transactionTime.IsZero() {
		return nil, utils.NewValidationError("transaction_time", "is required")
	}

	expense := models.OperationalExpense{
		Store:           store,
		ExpenseType:     "gaji",
		Amount:          amount,
		Description:     fmt.Sprintf("gaji %s %s", staff.Name, input.Period.Format("2006-01")),
		StaffId:         &staff.ID,
		TransactionTime: transactionTime,
		CreatedBy:       username,
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := AcquireStorePostingLock(tx, store); err != nil {
			config.LogError(logger, "expenseWorkflow.go", "RecordSalaryPayment", "AcquireStorePostingLock", store, err)
			return err
		}
		defer ReleaseStorePostingLock(tx, store)

		account, err := resolveAccountTx(tx, ctx, store, input.AccountId)
		if err != nil {
			config.LogError(logger, "expenseWorkflow.go", "RecordSalaryPayment", "resolveAccountTx", input.AccountId, err)
			return err
		}
		_, err = models.PostAccountTransactionTx(tx, ctx, &models.AccountPosting{
			Store:           store,
			AccountId:       account.ID,
			TransactionType: models.TransactionTypeSalary,
			Amount:          amount.Neg(),
			Reference:       fmt.Sprintf("staff:%d", staff.ID),
			TransactionTime: transactionTime,
			CreatedBy:       username,
		})
		if err != nil {
			config.LogError(logger, "expenseWorkflow.go", "RecordSalaryPayment", "PostAccountTransactionTx", amount, err)
			return err
		}

		expense.AccountId = account.ID
		if err := tx.WithContext(ctx).Create(&expense).Error; err != nil {
			config.LogError(logger, "expenseWorkflow.go", "RecordSalaryPayment", "Create OperationalExpense", nil, err)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Best-effort denormalized record; the expense posting above is the
	// financial source of truth.
	payment := models.StaffPayment{
		Store:   store,
		StaffId: staff.ID,
		Period:  input.Period,
		Amount:  amount,
		PaidAt:  transactionTime,
		Status:  "paid",
	}
	if err := db.WithContext(ctx).Create(&payment).Error; err != nil {
		config.LogError(logger, "expenseWorkflow.go", "RecordSalaryPayment", "Create StaffPayment", payment, err)
	}

	return &expense, nil
}
