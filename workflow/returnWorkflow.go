package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/gudangkita/inventory_backend/config"
	"bitbucket.org/gudangkita/inventory_backend/models"
	"bitbucket.org/gudangkita/inventory_backend/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ReturnItemInput is one line of a return cart.
type ReturnItemInput struct {
	ProductId int             `json:"product_id" binding:"required"`
	Quantity  int             `json:"quantity" binding:"required,gt=0"`
	UnitPrice decimal.Decimal `json:"unit_price" binding:"required"`
}

// NewReturn records a purchase return (goods back to a supplier) or a sale
// return (goods back from a customer). ReturnType decides the money effect:
//
//	refund       cash moves through an account (inflow for purchase
//	             returns, outflow for sale returns)
//	replacement  stock moves only, no money effect
//	credit_note  the return total burns the counterparty's open debts
//	             oldest first; fails when it exceeds the total remaining
type NewReturn struct {
	SupplierId      int               `json:"supplier_id"`
	CustomerId      int               `json:"customer_id"`
	CustomerName    string            `json:"customer_name"`
	WarehouseId     int               `json:"warehouse_id" binding:"required"`
	ReturnType      models.ReturnType `json:"return_type" binding:"required"`
	AccountId       *int              `json:"account_id"`
	Reason          string            `json:"reason"`
	Description     string            `json:"description"`
	InvoiceNumber   string            `json:"invoice_number"`
	TransactionTime time.Time         `json:"transaction_time"`
	Items           []ReturnItemInput `json:"items" binding:"required,min=1,dive"`
}

func (input *NewReturn) validate(ctx context.Context, store string, kind models.ReturnKind) error {
	if !input.ReturnType.Valid() {
		return utils.NewValidationError("return_type", "must be refund, replacement or credit_note")
	}
	if kind == models.ReturnKindPurchase {
		if err := utils.ValidateResourceId[models.Supplier](ctx, store, input.SupplierId); err != nil {
			return err
		}
	} else if input.CustomerName == "" {
		return utils.NewValidationError("customer_name", "required for sale returns")
	}
	if err := utils.ValidateResourceId[models.Warehouse](ctx, store, input.WarehouseId); err != nil {
		return err
	}
	productIds := make([]int, 0, len(input.Items))
	for _, item := range input.Items {
		if item.Quantity <= 0 {
			return utils.NewValidationError("quantity", "must be positive")
		}
		if item.UnitPrice.IsNegative() {
			return utils.NewValidationError("unit_price", "must not be negative")
		}
		productIds = append(productIds, item.ProductId)
	}
	return utils.ValidateResourcesId[models.Product](ctx, store, productIds)
}

// RecordPurchaseReturn sends goods back to the supplier: stock decrements,
// and money comes back according to the return type.
func RecordPurchaseReturn(ctx context.Context, logger *logrus.Logger, input *NewReturn) (*models.ReturnRecord, error) {
	return recordReturn(ctx, logger, models.ReturnKindPurchase, input)
}

// RecordSaleReturn takes goods back from a customer: stock increments, and
// money goes back out according to the return type.
func RecordSaleReturn(ctx context.Context, logger *logrus.Logger, input *NewReturn) (*models.ReturnRecord, error) {
	return recordReturn(ctx, logger, models.ReturnKindSale, input)
}

func recordReturn(ctx context.Context, logger *logrus.Logger, kind models.ReturnKind, input *NewReturn) (*models.ReturnRecord, error) {

	store, ok := utils.GetStoreFromContext(ctx)
	if !ok || store == "" {
		return nil, errors.New("store is required")
	}
	if err := input.validate(ctx, store, kind); err != nil {
		return nil, err
	}

	counterpartyId := input.CustomerId
	counterpartyName := input.CustomerName
	debtKind := models.DebtKindReceivable
	stockSign := 1
	if kind == models.ReturnKindPurchase {
		supplier, err := models.GetSupplier(ctx, input.SupplierId)
		if err != nil {
			return nil, err
		}
		counterpartyId = supplier.ID
		counterpartyName = supplier.Name
		debtKind = models.DebtKindPayable
		stockSign = -1
	}

	username, _ := utils.GetUsernameFromContext(ctx)
	transactionGroup := uuid.NewString()
	transactionTime := input.TransactionTime
	if transactionTime.IsZero() {
		return nil, utils.NewValidationError("transaction_time", "is required")
	}

	total := decimal.Zero
	for _, item := range input.Items {
		total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	record := models.ReturnRecord{
		Store:            store,
		Kind:             kind,
		ReturnType:       input.ReturnType,
		CounterpartyId:   counterpartyId,
		CounterpartyName: counterpartyName,
		WarehouseId:      input.WarehouseId,
		TotalAmount:      total,
		Reason:           input.Reason,
		Description:      input.Description,
		InvoiceNumber:    input.InvoiceNumber,
		TransactionGroup: transactionGroup,
		TransactionTime:  transactionTime,
		CreatedBy:        username,
	}

	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := AcquireStorePostingLock(tx, store); err != nil {
			config.LogError(logger, "returnWorkflow.go", "recordReturn", "AcquireStorePostingLock", store, err)
			return err
		}
		defer ReleaseStorePostingLock(tx, store)

		for _, item := range input.Items {
			_, err := models.AdjustStockTx(tx, ctx, store, item.ProductId, input.WarehouseId, stockSign*item.Quantity)
			if err != nil {
				config.LogError(logger, "returnWorkflow.go", "recordReturn", "AdjustStockTx", item, err)
				return err
			}
		}

		switch input.ReturnType {
		case models.ReturnTypeRefund:
			account, err := resolveAccountTx(tx, ctx, store, input.AccountId)
			if err != nil {
				config.LogError(logger, "returnWorkflow.go", "recordReturn", "resolveAccountTx", input.AccountId, err)
				return err
			}
			amount := total
			transactionType := models.TransactionTypePurchaseReturn
			if kind == models.ReturnKindSale {
				amount = total.Neg()
				transactionType = models.TransactionTypeSaleReturn
			}
			_, err = models.PostAccountTransactionTx(tx, ctx, &models.AccountPosting{
				Store:           store,
				AccountId:       account.ID,
				TransactionType: transactionType,
				Amount:          amount,
				Reference:       transactionGroup,
				TransactionTime: transactionTime,
				CreatedBy:       username,
			})
			if err != nil {
				config.LogError(logger, "returnWorkflow.go", "recordReturn", "PostAccountTransactionTx", amount, err)
				return err
			}
			record.AccountId = &account.ID

		case models.ReturnTypeReplacement:
			// stock already moved; no money effect

		case models.ReturnTypeCreditNote:
			if err := burnDebtsTx(tx, ctx, store, debtKind, counterpartyId, counterpartyName, total, transactionGroup, transactionTime, username); err != nil {
				config.LogError(logger, "returnWorkflow.go", "recordReturn", "burnDebtsTx", total, err)
				return err
			}
		}

		if err := tx.WithContext(ctx).Create(&record).Error; err != nil {
			config.LogError(logger, "returnWorkflow.go", "recordReturn", "Create ReturnRecord", nil, err)
			return err
		}
		for _, item := range input.Items {
			returnItem := models.ReturnItem{
				Store:     store,
				ReturnId:  record.ID,
				ProductId: item.ProductId,
				Quantity:  item.Quantity,
				UnitPrice: item.UnitPrice,
				Subtotal:  item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))),
			}
			if err := tx.WithContext(ctx).Create(&returnItem).Error; err != nil {
				config.LogError(logger, "returnWorkflow.go", "recordReturn", "Create ReturnItem", item, err)
				return err
			}
			record.Items = append(record.Items, returnItem)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// burnDebtsTx settles the counterparty's open debts oldest first until the
// credit note is consumed. The note must fit inside the total remaining
// debt; a partial burn never happens. Walk-in customers carry no registry
// id, so their receivables are matched by name.
func burnDebtsTx(tx *gorm.DB, ctx context.Context, store string, kind models.DebtKind, counterpartyId int, counterpartyName string, total decimal.Decimal, reference string, paidAt time.Time, createdBy string) error {

	debts, err := models.GetOpenDebtsForUpdateTx(tx, ctx, store, kind, counterpartyId, counterpartyName)
	if err != nil {
		return err
	}

	remaining := decimal.Zero
	for _, debt := range debts {
		remaining = remaining.Add(debt.RemainingAmount)
	}
	if total.GreaterThan(remaining) {
		return fmt.Errorf("%w: note %s, remaining %s",
			utils.ErrReturnExceedsDebt, total.String(), remaining.String())
	}

	left := total
	for _, debt := range debts {
		if !left.IsPositive() {
			break
		}
		amount := decimal.Min(left, debt.RemainingAmount)
		_, err := models.SettleDebtTx(tx, ctx, debt, amount, "credit_note", reference, paidAt, createdBy)
		if err != nil {
			return err
		}
		left = left.Sub(amount)
	}
	return nil
}
