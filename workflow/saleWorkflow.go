package workflow

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/gudangkita/inventory_backend/config"
	"bitbucket.org/gudangkita/inventory_backend/models"
	"bitbucket.org/gudangkita/inventory_backend/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// SaleItem is one line of a sale cart.
type SaleItem struct {
	ProductId   int             `json:"product_id" binding:"required"`
	WarehouseId int             `json:"warehouse_id" binding:"required"`
	Quantity    int             `json:"quantity" binding:"required,gt=0"`
	UnitPrice   decimal.Decimal `json:"unit_price" binding:"required"`
}

// NewSale records a disposal of one or more items. Cash sales credit
// AccountId (default account when omitted); credit sales require a customer
// name and open one receivable covering the whole cart.
type NewSale struct {
	CustomerId      int                `json:"customer_id"`
	CustomerName    string             `json:"customer_name"`
	PaymentType     models.PaymentType `json:"payment_type" binding:"required"`
	AccountId       *int               `json:"account_id"`
	InvoiceNumber   string             `json:"invoice_number"`
	DueDate         *time.Time         `json:"due_date"`
	TransactionTime time.Time          `json:"transaction_time"`
	Items           []SaleItem         `json:"items" binding:"required,min=1,dive"`
}

func (input *NewSale) validate(ctx context.Context, store string) error {
	if !input.PaymentType.Valid() {
		return utils.NewValidationError("payment_type", "must be cash or credit")
	}
	if input.PaymentType == models.PaymentTypeCredit && input.CustomerName == "" {
		return utils.NewValidationError("customer_name", "required for credit sales")
	}
	productIds := make([]int, 0, len(input.Items))
	warehouseIds := make([]int, 0, len(input.Items))
	for _, item := range input.Items {
		if item.Quantity <= 0 {
			return utils.NewValidationError("quantity", "must be positive")
		}
		if item.UnitPrice.IsNegative() {
			return utils.NewValidationError("unit_price", "must not be negative")
		}
		productIds = append(productIds, item.ProductId)
		warehouseIds = append(warehouseIds, item.WarehouseId)
	}
	if err := utils.ValidateResourcesId[models.Product](ctx, store, productIds); err != nil {
		return err
	}
	if err := utils.ValidateResourcesId[models.Warehouse](ctx, store, warehouseIds); err != nil {
		return err
	}
	return nil
}

// RecordSale applies the cart atomically. Stock is decremented first so an
// oversell rolls back before any money effect happens.
func RecordSale(ctx context.Context, logger *logrus.Logger, input *NewSale) ([]*models.Sale, error) {

	store, ok := utils.GetStoreFromContext(ctx)
	if !ok || store == "" {
		return nil, errors.New("store is required")
	}
	if err := input.validate(ctx, store); err != nil {
		return nil, err
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

	var sales []*models.Sale
	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := AcquireStorePostingLock(tx, store); err != nil {
			config.LogError(logger, "saleWorkflow.go", "RecordSale", "AcquireStorePostingLock", store, err)
			return err
		}
		defer ReleaseStorePostingLock(tx, store)

		for _, item := range input.Items {
			_, err := models.AdjustStockTx(tx, ctx, store, item.ProductId, item.WarehouseId, -item.Quantity)
			if err != nil {
				config.LogError(logger, "saleWorkflow.go", "RecordSale", "AdjustStockTx", item, err)
				return err
			}
		}

		var accountId *int
		var debtId *int
		switch input.PaymentType {
		case models.PaymentTypeCash:
			account, err := resolveAccountTx(tx, ctx, store, input.AccountId)
			if err != nil {
				config.LogError(logger, "saleWorkflow.go", "RecordSale", "resolveAccountTx", input.AccountId, err)
				return err
			}
			_, err = models.PostAccountTransactionTx(tx, ctx, &models.AccountPosting{
				Store:           store,
				AccountId:       account.ID,
				TransactionType: models.TransactionTypeSale,
				Amount:          total,
				Reference:       transactionGroup,
				TransactionTime: transactionTime,
				CreatedBy:       username,
			})
			if err != nil {
				config.LogError(logger, "saleWorkflow.go", "RecordSale", "PostAccountTransactionTx", total, err)
				return err
			}
			accountId = &account.ID
		case models.PaymentTypeCredit:
			debt := models.Debt{
				Store:            store,
				Kind:             models.DebtKindReceivable,
				CounterpartyId:   input.CustomerId,
				CounterpartyName: input.CustomerName,
				TransactionGroup: transactionGroup,
				TotalAmount:      total,
				Description:      input.InvoiceNumber,
				DueDate:          input.DueDate,
				IncurredAt:       transactionTime,
			}
			if err := models.CreateDebtTx(tx, ctx, &debt); err != nil {
				config.LogError(logger, "saleWorkflow.go", "RecordSale", "CreateDebtTx", total, err)
				return err
			}
			debtId = &debt.ID
		}

		for _, item := range input.Items {
			sale := models.Sale{
				Store:            store,
				ProductId:        item.ProductId,
				WarehouseId:      item.WarehouseId,
				CustomerId:       input.CustomerId,
				CustomerName:     input.CustomerName,
				Quantity:         item.Quantity,
				UnitPrice:        item.UnitPrice,
				TotalPrice:       item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))),
				PaymentType:      input.PaymentType,
				AccountId:        accountId,
				DebtId:           debtId,
				InvoiceNumber:    input.InvoiceNumber,
				TransactionGroup: transactionGroup,
				TransactionTime:  transactionTime,
				CreatedBy:        username,
			}
			if err := tx.WithContext(ctx).Create(&sale).Error; err != nil {
				config.LogError(logger, "saleWorkflow.go", "RecordSale", "Create Sale", item, err)
				return err
			}
			sales = append(sales, &sale)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sales, nil
}
