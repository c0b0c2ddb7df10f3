package models

import "testing"

func TestEnumValidity(t *testing.T) {
	if !PaymentTypeCash.Valid() || !PaymentTypeCredit.Valid() {
		t.Error("known payment types rejected")
	}
	if PaymentType("transfer").Valid() {
		t.Error("unknown payment type accepted")
	}

	if !DebtKindPayable.Valid() || !DebtKindReceivable.Valid() {
		t.Error("known debt kinds rejected")
	}
	if DebtKind("loan").Valid() {
		t.Error("unknown debt kind accepted")
	}

	for _, rt := range []ReturnType{ReturnTypeRefund, ReturnTypeReplacement, ReturnTypeCreditNote} {
		if !rt.Valid() {
			t.Errorf("known return type %q rejected", rt)
		}
	}
	if ReturnType("exchange").Valid() {
		t.Error("unknown return type accepted")
	}

	for _, tt := range []TransactionType{
		TransactionTypeSale, TransactionTypePurchase, TransactionTypeDebtPayment,
		TransactionTypeAdjustment, TransactionTypeTransfer, TransactionTypeExpense,
		TransactionTypeSalary, TransactionTypePurchaseReturn, TransactionTypeSaleReturn,
	} {
		if !tt.Valid() {
			t.Errorf("known transaction type %q rejected", tt)
		}
	}
	if TransactionType("refund").Valid() {
		t.Error("unknown transaction type accepted")
	}

	if !AdjustmentDirectionAdd.Valid() || !AdjustmentDirectionReduce.Valid() {
		t.Error("known directions rejected")
	}
	if AdjustmentDirection("set").Valid() {
		t.Error("unknown direction accepted")
	}
}
