package models_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"bitbucket.org/gudangkita/inventory_backend/config"
	"bitbucket.org/gudangkita/inventory_backend/models"
	"bitbucket.org/gudangkita/inventory_backend/utils"
	"bitbucket.org/gudangkita/inventory_backend/workflow"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// End-to-end ledger regression harness.
//
// Safety net for the recorder invariants: stock never negative, account
// balance == journal sum, debt remaining == total - payments, rejected
// operations leave no side effects.
//
// Usage: INTEGRATION_TESTS=1 go test ./models -run Ledger -v (requires docker)

func TestLedger_PurchaseSaleDebtRoundTrip(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := setupLedgerTest(t, "toko-roundtrip")
	logger := logrus.New()
	now := time.Now()

	product, err := models.CreateProduct(ctx, &models.NewProduct{Name: "Kaos Polos", Type: "kaos", Size: "L"})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	warehouse, err := models.CreateWarehouse(ctx, &models.NewWarehouse{Name: "Gudang Utama"})
	if err != nil {
		t.Fatalf("CreateWarehouse: %v", err)
	}
	supplier, err := models.CreateSupplier(ctx, &models.NewSupplier{Name: "PT Sumber Kain"})
	if err != nil {
		t.Fatalf("CreateSupplier: %v", err)
	}
	account, err := models.CreateAccount(ctx, &models.NewAccount{
		Name:           "Kas Toko",
		AccountType:    models.AccountTypeCash,
		InitialBalance: decimal.NewFromInt(1_000_000),
	})
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	if _, err := models.EnsureDefaultCashAccount(ctx); err != nil {
		t.Fatalf("EnsureDefaultCashAccount: %v", err)
	}

	// Cash purchase: 10 @ 20.000.
	_, err = workflow.RecordPurchase(ctx, logger, &workflow.NewPurchase{
		SupplierId:      supplier.ID,
		PaymentType:     models.PaymentTypeCash,
		AccountId:       &account.ID,
		TransactionTime: now,
		Items: []workflow.PurchaseItem{
			{ProductId: product.ID, WarehouseId: warehouse.ID, Quantity: 10, UnitPrice: decimal.NewFromInt(20_000)},
		},
	})
	if err != nil {
		t.Fatalf("RecordPurchase cash: %v", err)
	}

	got, err := models.GetAccount(ctx, account.ID)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if want := decimal.NewFromInt(800_000); !got.Balance.Equal(want) {
		t.Fatalf("balance after purchase: want %s, got %s", want, got.Balance)
	}

	// Credit purchase: 5 @ 22.000 opens a payable of 110.000.
	_, err = workflow.RecordPurchase(ctx, logger, &workflow.NewPurchase{
		SupplierId:      supplier.ID,
		PaymentType:     models.PaymentTypeCredit,
		TransactionTime: now,
		Items: []workflow.PurchaseItem{
			{ProductId: product.ID, WarehouseId: warehouse.ID, Quantity: 5, UnitPrice: decimal.NewFromInt(22_000)},
		},
	})
	if err != nil {
		t.Fatalf("RecordPurchase credit: %v", err)
	}

	kind := models.DebtKindPayable
	debts, err := models.GetDebts(ctx, &kind, &supplier.ID, nil)
	if err != nil {
		t.Fatalf("GetDebts: %v", err)
	}
	if len(debts) != 1 {
		t.Fatalf("want 1 payable, got %d", len(debts))
	}
	debt := debts[0]
	if want := decimal.NewFromInt(110_000); !debt.RemainingAmount.Equal(want) {
		t.Fatalf("payable remaining: want %s, got %s", want, debt.RemainingAmount)
	}

	// Average price over two purchases: (20000 + 22000) / 2.
	avg, err := models.AverageAcquisitionPrice(ctx, product.ID)
	if err != nil {
		t.Fatalf("AverageAcquisitionPrice: %v", err)
	}
	if want := decimal.NewFromInt(21_000); !avg.Equal(want) {
		t.Fatalf("average price: want %s, got %s", want, avg)
	}

	// Cash sale: 8 @ 35.000 back into the account.
	_, err = workflow.RecordSale(ctx, logger, &workflow.NewSale{
		CustomerName:    "Budi",
		PaymentType:     models.PaymentTypeCash,
		AccountId:       &account.ID,
		TransactionTime: now,
		Items: []workflow.SaleItem{
			{ProductId: product.ID, WarehouseId: warehouse.ID, Quantity: 8, UnitPrice: decimal.NewFromInt(35_000)},
		},
	})
	if err != nil {
		t.Fatalf("RecordSale: %v", err)
	}

	stock, err := models.GetProductWarehouseStock(ctx, product.ID)
	if err != nil {
		t.Fatalf("GetProductWarehouseStock: %v", err)
	}
	if len(stock) != 1 || stock[0].Quantity != 7 {
		t.Fatalf("stock after 10+5-8: want 7, got %+v", stock)
	}

	// Oversell must reject and leave stock untouched.
	_, err = workflow.RecordSale(ctx, logger, &workflow.NewSale{
		CustomerName:    "Budi",
		PaymentType:     models.PaymentTypeCash,
		AccountId:       &account.ID,
		TransactionTime: now,
		Items: []workflow.SaleItem{
			{ProductId: product.ID, WarehouseId: warehouse.ID, Quantity: 50, UnitPrice: decimal.NewFromInt(35_000)},
		},
	})
	if !errors.Is(err, utils.ErrInsufficientStock) {
		t.Fatalf("oversell: want ErrInsufficientStock, got %v", err)
	}
	stock, _ = models.GetProductWarehouseStock(ctx, product.ID)
	if stock[0].Quantity != 7 {
		t.Fatalf("stock changed by rejected sale: got %d", stock[0].Quantity)
	}

	// Partial then exact settlement of the payable.
	_, err = workflow.RecordDebtPayment(ctx, logger, debt.ID, &workflow.NewDebtPayment{
		Amount: decimal.NewFromInt(60_000),
		PaidAt: now,
	})
	if err != nil {
		t.Fatalf("RecordDebtPayment partial: %v", err)
	}
	_, err = workflow.RecordDebtPayment(ctx, logger, debt.ID, &workflow.NewDebtPayment{
		Amount: decimal.NewFromInt(60_000),
		PaidAt: now,
	})
	if !errors.Is(err, utils.ErrOverpayment) {
		t.Fatalf("overpayment: want ErrOverpayment, got %v", err)
	}
	_, err = workflow.RecordDebtPayment(ctx, logger, debt.ID, &workflow.NewDebtPayment{
		Amount: decimal.NewFromInt(50_000),
		PaidAt: now,
	})
	if err != nil {
		t.Fatalf("RecordDebtPayment final: %v", err)
	}

	settled, err := models.GetDebt(ctx, debt.ID)
	if err != nil {
		t.Fatalf("GetDebt: %v", err)
	}
	if settled.Status != models.DebtStatusPaid || !settled.RemainingAmount.IsZero() {
		t.Fatalf("debt not terminal after full payment: %+v", settled)
	}
	_, err = workflow.RecordDebtPayment(ctx, logger, debt.ID, &workflow.NewDebtPayment{
		Amount: decimal.NewFromInt(1),
		PaidAt: now,
	})
	if !errors.Is(err, utils.ErrDebtAlreadyPaid) {
		t.Fatalf("payment on paid debt: want ErrDebtAlreadyPaid, got %v", err)
	}

	// PaymentHistory must sum to the original total.
	payments, err := models.GetDebtPayments(ctx, debt.ID)
	if err != nil {
		t.Fatalf("GetDebtPayments: %v", err)
	}
	sum := decimal.Zero
	for _, p := range payments {
		sum = sum.Add(p.Amount)
	}
	if !sum.Equal(settled.TotalAmount) {
		t.Fatalf("payment history sum %s != debt total %s", sum, settled.TotalAmount)
	}

	// Every cached balance must equal its journal sum.
	drifts, err := models.ReconcileAccountBalances(ctx, false)
	if err != nil {
		t.Fatalf("ReconcileAccountBalances: %v", err)
	}
	if len(drifts) != 0 {
		t.Fatalf("balance drift after round trip: %+v", drifts)
	}
}

func TestLedger_CreditNoteBurnsOldestFirst(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := setupLedgerTest(t, "toko-creditnote")
	logger := logrus.New()
	now := time.Now()

	product, err := models.CreateProduct(ctx, &models.NewProduct{Name: "Celana Jeans"})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	warehouse, err := models.CreateWarehouse(ctx, &models.NewWarehouse{Name: "Gudang"})
	if err != nil {
		t.Fatalf("CreateWarehouse: %v", err)
	}
	supplier, err := models.CreateSupplier(ctx, &models.NewSupplier{Name: "CV Denim"})
	if err != nil {
		t.Fatalf("CreateSupplier: %v", err)
	}
	if _, err := models.EnsureDefaultCashAccount(ctx); err != nil {
		t.Fatalf("EnsureDefaultCashAccount: %v", err)
	}

	// Two credit purchases: payables of 100.000 then 200.000.
	for _, price := range []int64{10_000, 20_000} {
		_, err = workflow.RecordPurchase(ctx, logger, &workflow.NewPurchase{
			SupplierId:      supplier.ID,
			PaymentType:     models.PaymentTypeCredit,
			TransactionTime: now,
			Items: []workflow.PurchaseItem{
				{ProductId: product.ID, WarehouseId: warehouse.ID, Quantity: 10, UnitPrice: decimal.NewFromInt(price)},
			},
		})
		if err != nil {
			t.Fatalf("RecordPurchase credit @%d: %v", price, err)
		}
	}

	// Credit note over both debts: 150.000 clears the older and leaves
	// 150.000 on the newer.
	_, err = workflow.RecordPurchaseReturn(ctx, logger, &workflow.NewReturn{
		SupplierId:      supplier.ID,
		WarehouseId:     warehouse.ID,
		ReturnType:      models.ReturnTypeCreditNote,
		Reason:          "cacat produksi",
		TransactionTime: now,
		Items: []workflow.ReturnItemInput{
			{ProductId: product.ID, Quantity: 10, UnitPrice: decimal.NewFromInt(15_000)},
		},
	})
	if err != nil {
		t.Fatalf("RecordPurchaseReturn credit_note: %v", err)
	}

	kind := models.DebtKindPayable
	debts, err := models.GetDebts(ctx, &kind, &supplier.ID, nil)
	if err != nil {
		t.Fatalf("GetDebts: %v", err)
	}
	var open, paid int
	for _, d := range debts {
		switch d.Status {
		case models.DebtStatusOpen:
			open++
			if want := decimal.NewFromInt(150_000); !d.RemainingAmount.Equal(want) {
				t.Fatalf("newer debt remaining: want %s, got %s", want, d.RemainingAmount)
			}
		case models.DebtStatusPaid:
			paid++
		}
	}
	if open != 1 || paid != 1 {
		t.Fatalf("want 1 open + 1 paid debt, got open=%d paid=%d", open, paid)
	}

	total, err := models.GetDebtTotal(ctx, kind, supplier.ID)
	if err != nil {
		t.Fatalf("GetDebtTotal: %v", err)
	}
	if want := decimal.NewFromInt(150_000); !total.Equal(want) {
		t.Fatalf("remaining total: want %s, got %s", want, total)
	}

	// A note larger than the remaining debt must reject without burning.
	_, err = workflow.RecordPurchaseReturn(ctx, logger, &workflow.NewReturn{
		SupplierId:      supplier.ID,
		WarehouseId:     warehouse.ID,
		ReturnType:      models.ReturnTypeCreditNote,
		Reason:          "salah kirim",
		TransactionTime: now,
		Items: []workflow.ReturnItemInput{
			{ProductId: product.ID, Quantity: 10, UnitPrice: decimal.NewFromInt(99_000)},
		},
	})
	if !errors.Is(err, utils.ErrReturnExceedsDebt) {
		t.Fatalf("oversized note: want ErrReturnExceedsDebt, got %v", err)
	}
	total, _ = models.GetDebtTotal(ctx, kind, supplier.ID)
	if want := decimal.NewFromInt(150_000); !total.Equal(want) {
		t.Fatalf("debt changed by rejected note: got %s", total)
	}
}

func TestLedger_TransferAndMigrationAtomicity(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := setupLedgerTest(t, "toko-atomic")
	logger := logrus.New()
	now := time.Now()

	product, err := models.CreateProduct(ctx, &models.NewProduct{Name: "Topi"})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	gudangA, err := models.CreateWarehouse(ctx, &models.NewWarehouse{Name: "Gudang A"})
	if err != nil {
		t.Fatalf("CreateWarehouse A: %v", err)
	}
	gudangB, err := models.CreateWarehouse(ctx, &models.NewWarehouse{Name: "Gudang B"})
	if err != nil {
		t.Fatalf("CreateWarehouse B: %v", err)
	}
	kas, err := models.CreateAccount(ctx, &models.NewAccount{
		Name: "Kas", AccountType: models.AccountTypeCash, InitialBalance: decimal.NewFromInt(100_000),
	})
	if err != nil {
		t.Fatalf("CreateAccount kas: %v", err)
	}
	bank, err := models.CreateAccount(ctx, &models.NewAccount{
		Name: "BCA", AccountType: models.AccountTypeBank,
	})
	if err != nil {
		t.Fatalf("CreateAccount bank: %v", err)
	}

	// Transfer beyond the source balance must leave both accounts intact.
	err = workflow.TransferFunds(ctx, logger, &workflow.NewTransfer{
		SourceAccountId: kas.ID,
		TargetAccountId: bank.ID,
		Amount:          decimal.NewFromInt(500_000),
		TransactionTime: now,
	})
	if !errors.Is(err, utils.ErrInsufficientFunds) {
		t.Fatalf("over-transfer: want ErrInsufficientFunds, got %v", err)
	}
	gotBank, _ := models.GetAccount(ctx, bank.ID)
	if !gotBank.Balance.IsZero() {
		t.Fatalf("credit leg landed despite failed debit: %s", gotBank.Balance)
	}

	err = workflow.TransferFunds(ctx, logger, &workflow.NewTransfer{
		SourceAccountId: kas.ID,
		TargetAccountId: bank.ID,
		Amount:          decimal.NewFromInt(40_000),
		TransactionTime: now,
	})
	if err != nil {
		t.Fatalf("TransferFunds: %v", err)
	}
	gotKas, _ := models.GetAccount(ctx, kas.ID)
	gotBank, _ = models.GetAccount(ctx, bank.ID)
	if !gotKas.Balance.Equal(decimal.NewFromInt(60_000)) || !gotBank.Balance.Equal(decimal.NewFromInt(40_000)) {
		t.Fatalf("transfer balances: kas=%s bank=%s", gotKas.Balance, gotBank.Balance)
	}

	// Stock 6 into A via adjustment, migrate 4 to B, then over-migrate.
	_, err = workflow.RecordStockAdjustment(ctx, logger, &workflow.NewStockAdjustment{
		ProductId:       product.ID,
		WarehouseId:     gudangA.ID,
		Direction:       models.AdjustmentDirectionAdd,
		Quantity:        6,
		Reason:          "stok awal",
		TransactionTime: now,
	})
	if err != nil {
		t.Fatalf("RecordStockAdjustment: %v", err)
	}
	err = workflow.MigrateStock(ctx, logger, &workflow.NewStockMigration{
		ProductId:         product.ID,
		SourceWarehouseId: gudangA.ID,
		TargetWarehouseId: gudangB.ID,
		Quantity:          4,
		TransactionTime:   now,
	})
	if err != nil {
		t.Fatalf("MigrateStock: %v", err)
	}
	err = workflow.MigrateStock(ctx, logger, &workflow.NewStockMigration{
		ProductId:         product.ID,
		SourceWarehouseId: gudangA.ID,
		TargetWarehouseId: gudangB.ID,
		Quantity:          10,
		TransactionTime:   now,
	})
	if !errors.Is(err, utils.ErrInsufficientStock) {
		t.Fatalf("over-migration: want ErrInsufficientStock, got %v", err)
	}

	stock, err := models.GetProductWarehouseStock(ctx, product.ID)
	if err != nil {
		t.Fatalf("GetProductWarehouseStock: %v", err)
	}
	byWarehouse := map[int]int{}
	for _, s := range stock {
		byWarehouse[s.WarehouseId] = s.Quantity
	}
	if byWarehouse[gudangA.ID] != 2 || byWarehouse[gudangB.ID] != 4 {
		t.Fatalf("migration stock: A=%d B=%d", byWarehouse[gudangA.ID], byWarehouse[gudangB.ID])
	}

	// Migration legs must be reconstructible: a rebuild reports no drift.
	store, _ := utils.GetStoreFromContext(ctx)
	repaired, err := workflow.RebuildStockCounters(ctx, logger, store)
	if err != nil {
		t.Fatalf("RebuildStockCounters: %v", err)
	}
	if repaired != 0 {
		t.Fatalf("rebuild repaired %d counters after consistent history", repaired)
	}

	// A stocked warehouse refuses deletion with a typed rejection.
	if _, err := models.DeleteWarehouse(ctx, gudangB.ID); !errors.Is(err, utils.ErrWarehouseNotEmpty) {
		t.Fatalf("DeleteWarehouse on stocked warehouse: want ErrWarehouseNotEmpty, got %v", err)
	}
}

func TestLedger_CreditNoteTargetsNamedCustomer(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := setupLedgerTest(t, "toko-walkin")
	logger := logrus.New()
	now := time.Now()

	product, err := models.CreateProduct(ctx, &models.NewProduct{Name: "Jaket"})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	warehouse, err := models.CreateWarehouse(ctx, &models.NewWarehouse{Name: "Gudang"})
	if err != nil {
		t.Fatalf("CreateWarehouse: %v", err)
	}
	if _, err := models.EnsureDefaultCashAccount(ctx); err != nil {
		t.Fatalf("EnsureDefaultCashAccount: %v", err)
	}
	_, err = workflow.RecordStockAdjustment(ctx, logger, &workflow.NewStockAdjustment{
		ProductId:       product.ID,
		WarehouseId:     warehouse.ID,
		Direction:       models.AdjustmentDirectionAdd,
		Quantity:        30,
		Reason:          "stok awal",
		TransactionTime: now,
	})
	if err != nil {
		t.Fatalf("RecordStockAdjustment: %v", err)
	}

	// Two walk-in customers buy on credit. Neither has a registry id, so
	// their receivables are distinguished only by name.
	for _, sale := range []struct {
		name  string
		price int64
	}{
		{"Ani", 10_000},
		{"Budi", 20_000},
	} {
		_, err = workflow.RecordSale(ctx, logger, &workflow.NewSale{
			CustomerName:    sale.name,
			PaymentType:     models.PaymentTypeCredit,
			TransactionTime: now,
			Items: []workflow.SaleItem{
				{ProductId: product.ID, WarehouseId: warehouse.ID, Quantity: 10, UnitPrice: decimal.NewFromInt(sale.price)},
			},
		})
		if err != nil {
			t.Fatalf("RecordSale credit %s: %v", sale.name, err)
		}
	}

	// Budi returns half the goods as a credit note. Only Budi's receivable
	// may shrink; Ani's must stay whole.
	_, err = workflow.RecordSaleReturn(ctx, logger, &workflow.NewReturn{
		CustomerName:    "Budi",
		WarehouseId:     warehouse.ID,
		ReturnType:      models.ReturnTypeCreditNote,
		Reason:          "ukuran salah",
		TransactionTime: now,
		Items: []workflow.ReturnItemInput{
			{ProductId: product.ID, Quantity: 5, UnitPrice: decimal.NewFromInt(20_000)},
		},
	})
	if err != nil {
		t.Fatalf("RecordSaleReturn credit_note: %v", err)
	}

	kind := models.DebtKindReceivable
	debts, err := models.GetDebts(ctx, &kind, nil, nil)
	if err != nil {
		t.Fatalf("GetDebts: %v", err)
	}
	remaining := map[string]decimal.Decimal{}
	for _, d := range debts {
		remaining[d.CounterpartyName] = d.RemainingAmount
	}
	if want := decimal.NewFromInt(100_000); !remaining["Ani"].Equal(want) {
		t.Fatalf("Ani receivable touched by Budi's note: want %s, got %s", want, remaining["Ani"])
	}
	if want := decimal.NewFromInt(100_000); !remaining["Budi"].Equal(want) {
		t.Fatalf("Budi receivable after note: want %s, got %s", want, remaining["Budi"])
	}

	// A note for an unknown name finds no debt to burn and must reject.
	_, err = workflow.RecordSaleReturn(ctx, logger, &workflow.NewReturn{
		CustomerName:    "Citra",
		WarehouseId:     warehouse.ID,
		ReturnType:      models.ReturnTypeCreditNote,
		TransactionTime: now,
		Items: []workflow.ReturnItemInput{
			{ProductId: product.ID, Quantity: 1, UnitPrice: decimal.NewFromInt(20_000)},
		},
	})
	if !errors.Is(err, utils.ErrReturnExceedsDebt) {
		t.Fatalf("note for unknown customer: want ErrReturnExceedsDebt, got %v", err)
	}
}

func TestLedger_MultiItemSaleRollsBackAtomically(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := setupLedgerTest(t, "toko-cart")
	logger := logrus.New()
	now := time.Now()

	shirt, err := models.CreateProduct(ctx, &models.NewProduct{Name: "Kemeja"})
	if err != nil {
		t.Fatalf("CreateProduct shirt: %v", err)
	}
	belt, err := models.CreateProduct(ctx, &models.NewProduct{Name: "Sabuk"})
	if err != nil {
		t.Fatalf("CreateProduct belt: %v", err)
	}
	warehouse, err := models.CreateWarehouse(ctx, &models.NewWarehouse{Name: "Gudang"})
	if err != nil {
		t.Fatalf("CreateWarehouse: %v", err)
	}
	account, err := models.CreateAccount(ctx, &models.NewAccount{
		Name: "Kas", AccountType: models.AccountTypeCash, InitialBalance: decimal.NewFromInt(50_000),
	})
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	for _, seed := range []struct {
		productId int
		quantity  int
	}{
		{shirt.ID, 10},
		{belt.ID, 1},
	} {
		_, err = workflow.RecordStockAdjustment(ctx, logger, &workflow.NewStockAdjustment{
			ProductId:       seed.productId,
			WarehouseId:     warehouse.ID,
			Direction:       models.AdjustmentDirectionAdd,
			Quantity:        seed.quantity,
			Reason:          "stok awal",
			TransactionTime: now,
		})
		if err != nil {
			t.Fatalf("RecordStockAdjustment product %d: %v", seed.productId, err)
		}
	}

	// The first cart line fits, the second oversells. The whole cart must
	// reject with no partial decrement and no money movement.
	_, err = workflow.RecordSale(ctx, logger, &workflow.NewSale{
		CustomerName:    "Budi",
		PaymentType:     models.PaymentTypeCash,
		AccountId:       &account.ID,
		TransactionTime: now,
		Items: []workflow.SaleItem{
			{ProductId: shirt.ID, WarehouseId: warehouse.ID, Quantity: 3, UnitPrice: decimal.NewFromInt(40_000)},
			{ProductId: belt.ID, WarehouseId: warehouse.ID, Quantity: 5, UnitPrice: decimal.NewFromInt(15_000)},
		},
	})
	if !errors.Is(err, utils.ErrInsufficientStock) {
		t.Fatalf("oversold cart: want ErrInsufficientStock, got %v", err)
	}

	for _, check := range []struct {
		productId int
		want      int
	}{
		{shirt.ID, 10},
		{belt.ID, 1},
	} {
		stock, err := models.GetProductWarehouseStock(ctx, check.productId)
		if err != nil {
			t.Fatalf("GetProductWarehouseStock %d: %v", check.productId, err)
		}
		if len(stock) != 1 || stock[0].Quantity != check.want {
			t.Fatalf("stock of product %d after rejected cart: want %d, got %+v", check.productId, check.want, stock)
		}
	}

	got, err := models.GetAccount(ctx, account.ID)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if want := decimal.NewFromInt(50_000); !got.Balance.Equal(want) {
		t.Fatalf("balance moved on rejected cart: want %s, got %s", want, got.Balance)
	}

	sales, err := models.GetSales(ctx, nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("GetSales: %v", err)
	}
	if len(sales) != 0 {
		t.Fatalf("rejected cart left %d sale rows", len(sales))
	}
}

var ledgerTestOnce struct {
	done bool
}

func setupLedgerTest(t *testing.T, store string) context.Context {
	t.Helper()
	ctx := context.Background()

	if !ledgerTestOnce.done {
		mysqlName, mysqlPort := startMySQLContainer(t)
		t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

		t.Setenv("DB_USER", "root")
		t.Setenv("DB_PASSWORD", "testpw")
		t.Setenv("DB_HOST", "127.0.0.1")
		t.Setenv("DB_PORT", mysqlPort)
		t.Setenv("DB_NAME", "inventory_test")

		config.ConnectDatabaseWithRetry()
		models.MigrateTable()
		ledgerTestOnce.done = true
	}

	ctx = utils.SetStoreInContext(ctx, store)
	ctx = utils.SetUsernameInContext(ctx, "test@local")
	return ctx
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("inventory-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=inventory_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
