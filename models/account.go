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

// DefaultCashAccountName is created once per store and receives postings
// that do not name an explicit account (debt settlements, salary payouts).
const DefaultCashAccountName = "Kas"

// Account carries a cached balance. The balance is only ever mutated through
// PostAccountTransactionTx, which appends the journal row and updates the
// cache in the same transaction; the journal is the source of truth.
type Account struct {
	ID          int             `gorm:"primary_key" json:"id"`
	Store       string          `gorm:"index;size:64;not null;uniqueIndex:idx_account_store_name,priority:1" json:"store"`
	Name        string          `gorm:"size:100;not null;uniqueIndex:idx_account_store_name,priority:2" json:"name" binding:"required"`
	AccountType AccountType     `gorm:"size:20;not null;default:'cash'" json:"account_type"`
	Balance     decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"balance"`
	IsDefault   bool            `gorm:"not null;default:false" json:"is_default"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// AccountTransaction is one append-only journal row. Amount is signed:
// positive for inflow, negative for outflow. BalanceAfter snapshots the
// cached balance at posting time.
type AccountTransaction struct {
	ID              int             `gorm:"primary_key" json:"id"`
	Store           string          `gorm:"index;size:64;not null" json:"store"`
	AccountId       int             `gorm:"index;not null" json:"account_id"`
	TransactionType TransactionType `gorm:"size:30;not null" json:"transaction_type"`
	Amount          decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	BalanceAfter    decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"balance_after"`
	Reference       string          `gorm:"size:255" json:"reference"`
	TransactionTime time.Time       `gorm:"index;not null" json:"transaction_time"`
	CreatedBy       string          `gorm:"size:100" json:"created_by"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

type NewAccount struct {
	Name           string          `json:"name" binding:"required"`
	AccountType    AccountType     `json:"account_type"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
}

func CreateAccount(ctx context.Context, input *NewAccount) (*Account, error) {

	store, ok := utils.GetStoreFromContext(ctx)
	if !ok || store == "" {
		return nil, errors.New("store is required")
	}

	if err := utils.ValidateUnique[Account](ctx, store, "name", input.Name, 0); err != nil {
		return nil, err
	}
	accountType := input.AccountType
	if accountType == "" {
		accountType = AccountTypeCash
	}
	if !accountType.Valid() {
		return nil, utils.NewValidationError("account_type", "must be cash or bank")
	}
	if input.InitialBalance.IsNegative() {
		return nil, utils.NewValidationError("initial_balance", "must not be negative")
	}

	username, _ := utils.GetUsernameFromContext(ctx)
	account := Account{
		Store:       store,
		Name:        input.Name,
		AccountType: accountType,
		Balance:     decimal.Zero,
	}

	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&account).Error; err != nil {
			return err
		}
		if input.InitialBalance.IsPositive() {
			_, err := PostAccountTransactionTx(tx, ctx, &AccountPosting{
				Store:           store,
				AccountId:       account.ID,
				TransactionType: TransactionTypeAdjustment,
				Amount:          input.InitialBalance,
				Reference:       "initial balance",
				TransactionTime: time.Now(),
				CreatedBy:       username,
			})
			if err != nil {
				return err
			}
			account.Balance = input.InitialBalance
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// EnsureDefaultCashAccount creates the store's default cash account if it
// does not exist yet. Safe to call repeatedly.
func EnsureDefaultCashAccount(ctx context.Context) (*Account, error) {

	store, ok := utils.GetStoreFromContext(ctx)
	if !ok || store == "" {
		return nil, errors.New("store is required")
	}

	db := config.GetDB()
	var account Account
	err := db.WithContext(ctx).
		Where("store = ? AND is_default = ?", store, true).
		First(&account).Error
	if err == nil {
		return &account, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	account = Account{
		Store:       store,
		Name:        DefaultCashAccountName,
		AccountType: AccountTypeCash,
		Balance:     decimal.Zero,
		IsDefault:   true,
	}
	if err := db.WithContext(ctx).Create(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

// GetDefaultAccountTx loads the store's default account through the caller's
// transaction with a FOR UPDATE lock.
func GetDefaultAccountTx(tx *gorm.DB, ctx context.Context, store string) (*Account, error) {

	var account Account
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("store = ? AND is_default = ?", store, true).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: default account", utils.ErrorRecordNotFound)
		}
		return nil, err
	}
	return &account, nil
}

// AccountPosting is the input to a single journal append.
type AccountPosting struct {
	Store           string
	AccountId       int
	TransactionType TransactionType
	Amount          decimal.Decimal
	Reference       string
	TransactionTime time.Time
	CreatedBy       string
	AllowNegative   bool
}

// PostAccountTransactionTx locks the account row, appends the journal row
// and updates the cached balance in the caller's transaction. A posting
// that would drive the balance negative fails with ErrInsufficientFunds
// unless AllowNegative is set (manual adjustments only).
func PostAccountTransactionTx(tx *gorm.DB, ctx context.Context, posting *AccountPosting) (*AccountTransaction, error) {

	if posting.Amount.IsZero() {
		return nil, utils.NewValidationError("amount", "must not be zero")
	}
	if !posting.TransactionType.Valid() {
		return nil, utils.NewValidationError("transaction_type", "unknown transaction type")
	}

	var account Account
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("store = ? AND id = ?", posting.Store, posting.AccountId).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: account %d", utils.ErrorRecordNotFound, posting.AccountId)
		}
		return nil, err
	}

	newBalance := account.Balance.Add(posting.Amount)
	if newBalance.IsNegative() && !posting.AllowNegative {
		return nil, fmt.Errorf("%w: account %s has %s, posting %s",
			utils.ErrInsufficientFunds, account.Name,
			account.Balance.String(), posting.Amount.String())
	}

	transactionTime := posting.TransactionTime
	if transactionTime.IsZero() {
		return nil, utils.NewValidationError("transaction_time", "is required")
	}

	journal := AccountTransaction{
		Store:           posting.Store,
		AccountId:       account.ID,
		TransactionType: posting.TransactionType,
		Amount:          posting.Amount,
		BalanceAfter:    newBalance,
		Reference:       posting.Reference,
		TransactionTime: transactionTime,
		CreatedBy:       posting.CreatedBy,
	}
	if err := tx.WithContext(ctx).Create(&journal).Error; err != nil {
		return nil, err
	}

	if err := tx.WithContext(ctx).Model(&Account{}).
		Where("id = ?", account.ID).
		Update("balance", newBalance).Error; err != nil {
		return nil, err
	}
	return &journal, nil
}

func GetAccount(ctx context.Context, id int) (*Account, error) {
	store, ok := utils.GetStoreFromContext(ctx)
	if !ok || store == "" {
		return nil, errors.New("store is required")
	}
	return utils.FetchModel[Account](ctx, store, id)
}

func GetAccounts(ctx context.Context) ([]*Account, error) {

	store, ok := utils.GetStoreFromContext(ctx)
	if !ok || store == "" {
		return nil, errors.New("store is required")
	}

	db := config.GetDB()
	var results []*Account
	err := db.WithContext(ctx).Where("store = ?", store).
		Order("is_default DESC, name").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// GetAccountTransactions lists the journal newest first, optionally
// filtered by transaction type and time window.
func GetAccountTransactions(ctx context.Context, accountId int, transactionType *TransactionType, from *time.Time, to *time.Time) ([]*AccountTransaction, error) {

	store, ok := utils.GetStoreFromContext(ctx)
	if !ok || store == "" {
		return nil, errors.New("store is required")
	}
	if err := utils.ValidateResourceId[Account](ctx, store, accountId); err != nil {
		return nil, err
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).
		Where("store = ? AND account_id = ?", store, accountId)
	if transactionType != nil && *transactionType != "" {
		dbCtx = dbCtx.Where("transaction_type = ?", *transactionType)
	}
	if from != nil {
		dbCtx = dbCtx.Where("transaction_time >= ?", *from)
	}
	if to != nil {
		dbCtx = dbCtx.Where("transaction_time <= ?", *to)
	}

	var results []*AccountTransaction
	err := dbCtx.Order("transaction_time DESC, id DESC").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// AccountDrift reports a cached balance that disagrees with its journal sum.
type AccountDrift struct {
	AccountId   int             `json:"account_id"`
	AccountName string          `json:"account_name"`
	Cached      decimal.Decimal `json:"cached"`
	JournalSum  decimal.Decimal `json:"journal_sum"`
}

// ReconcileAccountBalances compares every cached balance against its journal
// sum. When repair is set, drifted caches are rewritten to the journal sum;
// the journal itself is never touched.
func ReconcileAccountBalances(ctx context.Context, repair bool) ([]*AccountDrift, error) {

	store, ok := utils.GetStoreFromContext(ctx)
	if !ok || store == "" {
		return nil, errors.New("store is required")
	}

	db := config.GetDB()
	var drifts []*AccountDrift

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var accounts []*Account
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("store = ?", store).Find(&accounts).Error; err != nil {
			return err
		}

		for _, account := range accounts {
			var sum decimal.NullDecimal
			err := tx.Model(&AccountTransaction{}).
				Where("store = ? AND account_id = ?", store, account.ID).
				Select("SUM(amount)").Scan(&sum).Error
			if err != nil {
				return err
			}
			journalSum := decimal.Zero
			if sum.Valid {
				journalSum = sum.Decimal
			}
			if account.Balance.Equal(journalSum) {
				continue
			}
			drifts = append(drifts, &AccountDrift{
				AccountId:   account.ID,
				AccountName: account.Name,
				Cached:      account.Balance,
				JournalSum:  journalSum,
			})
			if repair {
				if err := tx.Model(&Account{}).
					Where("id = ?", account.ID).
					Update("balance", journalSum).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return drifts, nil
}
