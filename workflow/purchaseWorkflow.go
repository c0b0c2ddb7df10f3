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

// PurchaseItem is one line of a purchase cart.
type PurchaseItem struct {
	ProductId   int             `json:"product_id" binding:"required"`
	WarehouseId int             `json:"warehouse_id" binding:"required"`
	Quantity    int             `json:"quantity" binding:"required,gt=0"`
	UnitPrice   decimal.Decimal `json:"unit_price" binding:"required"`
}

// NewPurchase records an acquisition of one or more items from a supplier.
// Cash purchases debit AccountId (default account when omitted); credit
// purchases open one payable covering the whole cart.
type NewPurchase struct {
	SupplierId      int                `json:"supplier_id" binding:"required"`
	PaymentType     models.PaymentType `json:"payment_type" binding:"required"`
	AccountId       *int               `json:"account_id"`
	InvoiceNumber   string             `json:"invoice_number"`
	DueDate         *time.Time         `json:"due_date"`
	TransactionTime time.Time          `json:"transaction_time"`
	Items           []PurchaseItem     `json:"items" binding:"required,min=1,dive"`
}

func (input *NewPurchase) validate(ctx context.Context, store string) error {
	if !input.PaymentType.Valid() {
		return utils.NewValidationError("payment_type", "must be cash or credit")
	}
	if err := utils.ValidateResourceId[models.Supplier](ctx, store, input.SupplierId); err != nil {
		return err
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

// RecordPurchase applies the cart atomically: every stock increment, the
// money effect and every purchase row commit together or not at all.
func RecordPurchase(ctx context.Context, logger *logrus.Logger, input *NewPurchase) ([]*models.Purchase, error) {

	store, ok := utils.GetStoreFromContext(ctx)
	if !ok || store == "" {
		return nil, errors.New("store is required")
	}
	if err := input.validate(ctx, store); err != nil {
		return nil, err
	}

	supplier, err := models.GetSupplier(ctx, input.SupplierId)
	if err != nil {
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

	var purchases []*models.Purchase
	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := AcquireStorePostingLock(tx, store); err != nil {
			config.LogError(logger, "purchaseWorkflow.go", "RecordPurchase", "AcquireStorePostingLock", store, err)
			return err
		}
		defer ReleaseStorePostingLock(tx, store)

		for _, item := range input.Items {
			_, err := models.AdjustStockTx(tx, ctx, store, item.ProductId, item.WarehouseId, item.Quantity)
			if err != nil {
				config.LogError(logger, "purchaseWorkflow.go", "RecordPurchase", "AdjustStockTx", item, err)
				return err
			}
		}

		var accountId *int
		var debtId *int
		switch input.PaymentType {
		case models.PaymentTypeCash:
			account, err := resolveAccountTx(tx, ctx, store, input.AccountId)
			if err != nil {
				config.LogError(logger, "purchaseWorkflow.go", "RecordPurchase", "resolveAccountTx", input.AccountId, err)
				return err
			}
			_, err = models.PostAccountTransactionTx(tx, ctx, &models.AccountPosting{
				Store:           store,
				AccountId:       account.ID,
				TransactionType: models.TransactionTypePurchase,
				Amount:          total.Neg(),
				Reference:       transactionGroup,
				TransactionTime: transactionTime,
				CreatedBy:       username,
			})
			if err != nil {
				config.LogError(logger, "purchaseWorkflow.go", "RecordPurchase", "PostAccountTransactionTx", total, err)
				return err
			}
			accountId = &account.ID
		case models.PaymentTypeCredit:
			debt := models.Debt{
				Store:            store,
				Kind:             models.DebtKindPayable,
				CounterpartyId:   supplier.ID,
				CounterpartyName: supplier.Name,
				TransactionGroup: transactionGroup,
				TotalAmount:      total,
				Description:      input.InvoiceNumber,
				DueDate:          input.DueDate,
				IncurredAt:       transactionTime,
			}
			if err := models.CreateDebtTx(tx, ctx, &debt); err != nil {
				config.LogError(logger, "purchaseWorkflow.go", "RecordPurchase", "CreateDebtTx", total, err)
				return err
			}
			debtId = &debt.ID
		}

		for _, item := range input.Items {
			purchase := models.Purchase{
				Store:            store,
				ProductId:        item.ProductId,
				WarehouseId:      item.WarehouseId,
				SupplierId:       supplier.ID,
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
			if err := tx.WithContext(ctx).Create(&purchase).Error; err != nil {
				config.LogError(logger, "purchaseWorkflow.go", "RecordPurchase", "Create Purchase", item, err)
				return err
			}
			purchases = append(purchases, &purchase)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, item := range input.Items {
		models.InvalidateAveragePrice(store, item.ProductId)
	}
	return purchases, nil
}

// resolveAccountTx loads and locks the named account, falling back to the
// store's default account when accountId is nil.
func resolveAccountTx(tx *gorm.DB, ctx context.Context, store string, accountId *int) (*models.Account, error) {
	if accountId == nil || *accountId == 0 {
		return models.GetDefaultAccountTx(tx, ctx, store)
	}
	var account models.Account
	err := tx.WithContext(ctx).
		Where("store = ? AND id = ?", store, *accountId).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &account, nil
}
