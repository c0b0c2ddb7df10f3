package main

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"bitbucket.org/gudangkita/inventory_backend/config"
	"bitbucket.org/gudangkita/inventory_backend/models"
	"bitbucket.org/gudangkita/inventory_backend/utils"
	"bitbucket.org/gudangkita/inventory_backend/workflow"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// respondError maps domain errors onto HTTP statuses. Business-rule
// rejections are 422: the request was well formed but the ledger refused it.
func respondError(c *gin.Context, err error) {
	var validationErrs validator.ValidationErrors
	switch {
	case utils.IsValidationError(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &validationErrs):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "fields": utils.ProcessValidationErrors(validationErrs)})
	case errors.Is(err, utils.ErrorRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, utils.ErrDuplicateEntity):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, utils.ErrInsufficientStock),
		errors.Is(err, utils.ErrInsufficientFunds),
		errors.Is(err, utils.ErrOverpayment),
		errors.Is(err, utils.ErrReturnExceedsDebt),
		errors.Is(err, utils.ErrDebtAlreadyPaid),
		errors.Is(err, utils.ErrWarehouseNotEmpty):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	}
}

func bindJSON(c *gin.Context, target interface{}) bool {
	if err := c.ShouldBindJSON(target); err != nil {
		respondError(c, err)
		return false
	}
	return true
}

func pathId(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, name string) *int {
	raw := c.Query(name)
	if raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil
	}
	return &v
}

func queryTime(c *gin.Context, name string) *time.Time {
	raw := c.Query(name)
	if raw == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil
	}
	return &t
}

func queryString(c *gin.Context, name string) *string {
	raw := c.Query(name)
	if raw == "" {
		return nil
	}
	return &raw
}

// --- registration ---

func createProductHandler(c *gin.Context) {
	var input models.NewProduct
	if !bindJSON(c, &input) {
		return
	}
	product, err := models.CreateProduct(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

func updateProductHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	var input models.NewProduct
	if !bindJSON(c, &input) {
		return
	}
	product, err := models.UpdateProduct(c.Request.Context(), id, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func listProductsHandler(c *gin.Context) {
	products, err := models.GetProducts(c.Request.Context(), queryString(c, "name"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func getProductHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	product, err := models.GetProduct(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func productAveragePriceHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	avg, err := models.AverageAcquisitionPrice(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"product_id": id, "average_price": avg})
}

func productStockHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	stock, err := models.GetProductWarehouseStock(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stock)
}

func createWarehouseHandler(c *gin.Context) {
	var input models.NewWarehouse
	if !bindJSON(c, &input) {
		return
	}
	warehouse, err := models.CreateWarehouse(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, warehouse)
}

func deleteWarehouseHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	warehouse, err := models.DeleteWarehouse(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, warehouse)
}

func getWarehouseHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	warehouse, err := models.GetWarehouse(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, warehouse)
}

func listWarehousesHandler(c *gin.Context) {
	warehouses, err := models.GetWarehouses(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, warehouses)
}

func createSupplierHandler(c *gin.Context) {
	var input models.NewSupplier
	if !bindJSON(c, &input) {
		return
	}
	supplier, err := models.CreateSupplier(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, supplier)
}

func updateSupplierHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	var input models.NewSupplier
	if !bindJSON(c, &input) {
		return
	}
	supplier, err := models.UpdateSupplier(c.Request.Context(), id, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, supplier)
}

func listSuppliersHandler(c *gin.Context) {
	suppliers, err := models.GetSuppliers(c.Request.Context(), queryString(c, "name"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, suppliers)
}

func createAccountHandler(c *gin.Context) {
	var input models.NewAccount
	if !bindJSON(c, &input) {
		return
	}
	account, err := models.CreateAccount(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, account)
}

func ensureDefaultAccountHandler(c *gin.Context) {
	account, err := models.EnsureDefaultCashAccount(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

func listAccountsHandler(c *gin.Context) {
	accounts, err := models.GetAccounts(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, accounts)
}

func accountTransactionsHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	var transactionType *models.TransactionType
	if raw := c.Query("type"); raw != "" {
		t := models.TransactionType(raw)
		transactionType = &t
	}
	transactions, err := models.GetAccountTransactions(c.Request.Context(), id,
		transactionType, queryTime(c, "from"), queryTime(c, "to"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, transactions)
}

func createStaffHandler(c *gin.Context) {
	var input models.NewStaff
	if !bindJSON(c, &input) {
		return
	}
	staff, err := models.CreateStaff(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, staff)
}

func listStaffHandler(c *gin.Context) {
	staff, err := models.GetStaffList(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, staff)
}

func staffPaymentsHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	payments, err := models.GetStaffPayments(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, payments)
}

// --- transaction recording ---

func recordPurchaseHandler(c *gin.Context) {
	var input workflow.NewPurchase
	if !bindJSON(c, &input) {
		return
	}
	purchases, err := workflow.RecordPurchase(c.Request.Context(), config.GetLogger(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, purchases)
}

func recordSaleHandler(c *gin.Context) {
	var input workflow.NewSale
	if !bindJSON(c, &input) {
		return
	}
	sales, err := workflow.RecordSale(c.Request.Context(), config.GetLogger(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sales)
}

func recordPurchaseReturnHandler(c *gin.Context) {
	var input workflow.NewReturn
	if !bindJSON(c, &input) {
		return
	}
	record, err := workflow.RecordPurchaseReturn(c.Request.Context(), config.GetLogger(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, record)
}

func recordSaleReturnHandler(c *gin.Context) {
	var input workflow.NewReturn
	if !bindJSON(c, &input) {
		return
	}
	record, err := workflow.RecordSaleReturn(c.Request.Context(), config.GetLogger(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, record)
}

func recordStockAdjustmentHandler(c *gin.Context) {
	var input workflow.NewStockAdjustment
	if !bindJSON(c, &input) {
		return
	}
	adjustment, err := workflow.RecordStockAdjustment(c.Request.Context(), config.GetLogger(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, adjustment)
}

func migrateStockHandler(c *gin.Context) {
	var input workflow.NewStockMigration
	if !bindJSON(c, &input) {
		return
	}
	if err := workflow.MigrateStock(c.Request.Context(), config.GetLogger(), &input); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func recordDebtPaymentHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	var input workflow.NewDebtPayment
	if !bindJSON(c, &input) {
		return
	}
	payment, err := workflow.RecordDebtPayment(c.Request.Context(), config.GetLogger(), id, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, payment)
}

func transferFundsHandler(c *gin.Context) {
	var input workflow.NewTransfer
	if !bindJSON(c, &input) {
		return
	}
	if err := workflow.TransferFunds(c.Request.Context(), config.GetLogger(), &input); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func adjustAccountBalanceHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	var input workflow.NewBalanceAdjustment
	if !bindJSON(c, &input) {
		return
	}
	journal, err := workflow.AdjustAccountBalance(c.Request.Context(), config.GetLogger(), id, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, journal)
}

func recordExpenseHandler(c *gin.Context) {
	var input workflow.NewExpense
	if !bindJSON(c, &input) {
		return
	}
	expense, err := workflow.RecordExpense(c.Request.Context(), config.GetLogger(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, expense)
}

func recordSalaryHandler(c *gin.Context) {
	var input workflow.NewSalaryPayment
	if !bindJSON(c, &input) {
		return
	}
	expense, err := workflow.RecordSalaryPayment(c.Request.Context(), config.GetLogger(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, expense)
}

// --- histories and reads ---

func listPurchasesHandler(c *gin.Context) {
	purchases, err := models.GetPurchases(c.Request.Context(),
		queryInt(c, "product_id"), queryInt(c, "supplier_id"),
		queryTime(c, "from"), queryTime(c, "to"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, purchases)
}

func listSalesHandler(c *gin.Context) {
	sales, err := models.GetSales(c.Request.Context(),
		queryInt(c, "product_id"), queryInt(c, "customer_id"),
		queryTime(c, "from"), queryTime(c, "to"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sales)
}

func salesTotalHandler(c *gin.Context) {
	total, err := models.SalesTotal(c.Request.Context(), queryTime(c, "from"), queryTime(c, "to"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"total": total})
}

func listReturnsHandler(c *gin.Context) {
	var kind *models.ReturnKind
	if raw := c.Query("kind"); raw != "" {
		k := models.ReturnKind(raw)
		kind = &k
	}
	returns, err := models.GetReturnRecords(c.Request.Context(), kind,
		queryTime(c, "from"), queryTime(c, "to"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, returns)
}

func getReturnHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	record, err := models.GetReturnRecord(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func getDebtHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	debt, err := models.GetDebt(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, debt)
}

func listDebtsHandler(c *gin.Context) {
	var kind *models.DebtKind
	if raw := c.Query("kind"); raw != "" {
		k := models.DebtKind(raw)
		kind = &k
	}
	var status *models.DebtStatus
	if raw := c.Query("status"); raw != "" {
		s := models.DebtStatus(raw)
		status = &s
	}
	debts, err := models.GetDebts(c.Request.Context(), kind, queryInt(c, "counterparty_id"), status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, debts)
}

func debtTotalHandler(c *gin.Context) {
	kind := models.DebtKind(c.Query("kind"))
	if !kind.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "kind must be payable or receivable"})
		return
	}
	counterpartyId := queryInt(c, "counterparty_id")
	if counterpartyId == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "counterparty_id is required"})
		return
	}
	total, err := models.GetDebtTotal(c.Request.Context(), kind, *counterpartyId)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"kind": kind, "counterparty_id": *counterpartyId, "total": total})
}

func debtHistoryHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	payments, err := models.GetDebtPayments(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, payments)
}

func stockSummaryHandler(c *gin.Context) {
	warehouseId := 0
	if v := queryInt(c, "warehouse"); v != nil {
		warehouseId = *v
	}
	summary, err := models.GetStockSummary(c.Request.Context(), warehouseId)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func listStockAdjustmentsHandler(c *gin.Context) {
	adjustments, err := models.GetStockAdjustments(c.Request.Context(),
		queryInt(c, "product_id"), queryInt(c, "warehouse_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, adjustments)
}

func listExpensesHandler(c *gin.Context) {
	expenses, err := models.GetExpenses(c.Request.Context(),
		queryString(c, "type"), queryTime(c, "from"), queryTime(c, "to"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, expenses)
}

func expenseTotalsHandler(c *gin.Context) {
	totals, err := models.ExpenseTotalByType(c.Request.Context(),
		queryTime(c, "from"), queryTime(c, "to"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, totals)
}
