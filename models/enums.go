package models

type AccountType string

const (
	AccountTypeCash AccountType = "cash"
	AccountTypeBank AccountType = "bank"
)

func (t AccountType) Valid() bool {
	return t == AccountTypeCash || t == AccountTypeBank
}

type PaymentType string

const (
	PaymentTypeCash   PaymentType = "cash"
	PaymentTypeCredit PaymentType = "credit"
)

func (t PaymentType) Valid() bool {
	return t == PaymentTypeCash || t == PaymentTypeCredit
}

// TransactionType tags every journal entry with the operation that produced it.
type TransactionType string

const (
	TransactionTypeSale           TransactionType = "sale"
	TransactionTypePurchase       TransactionType = "purchase"
	TransactionTypeDebtPayment    TransactionType = "debt_payment"
	TransactionTypeAdjustment     TransactionType = "adjustment"
	TransactionTypeTransfer       TransactionType = "transfer"
	TransactionTypeExpense        TransactionType = "expense"
	TransactionTypeSalary         TransactionType = "salary"
	TransactionTypePurchaseReturn TransactionType = "purchase_return"
	TransactionTypeSaleReturn     TransactionType = "sale_return"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypeSale, TransactionTypePurchase, TransactionTypeDebtPayment,
		TransactionTypeAdjustment, TransactionTypeTransfer, TransactionTypeExpense,
		TransactionTypeSalary, TransactionTypePurchaseReturn, TransactionTypeSaleReturn:
		return true
	}
	return false
}

type DebtKind string

const (
	// DebtKindPayable is owed by the store to a supplier (credit purchase).
	DebtKindPayable DebtKind = "payable"
	// DebtKindReceivable is owed to the store by a customer (credit sale).
	DebtKindReceivable DebtKind = "receivable"
)

func (k DebtKind) Valid() bool {
	return k == DebtKindPayable || k == DebtKindReceivable
}

type DebtStatus string

const (
	DebtStatusOpen DebtStatus = "open"
	// DebtStatusPaid is terminal; no further payments are accepted.
	DebtStatusPaid DebtStatus = "paid"
)

type ReturnKind string

const (
	ReturnKindPurchase ReturnKind = "purchase_return"
	ReturnKindSale     ReturnKind = "sale_return"
)

func (k ReturnKind) Valid() bool {
	return k == ReturnKindPurchase || k == ReturnKindSale
}

type ReturnType string

const (
	ReturnTypeRefund      ReturnType = "refund"
	ReturnTypeReplacement ReturnType = "replacement"
	ReturnTypeCreditNote  ReturnType = "credit_note"
)

func (t ReturnType) Valid() bool {
	return t == ReturnTypeRefund || t == ReturnTypeReplacement || t == ReturnTypeCreditNote
}

type AdjustmentDirection string

const (
	AdjustmentDirectionAdd    AdjustmentDirection = "add"
	AdjustmentDirectionReduce AdjustmentDirection = "reduce"
)

func (d AdjustmentDirection) Valid() bool {
	return d == AdjustmentDirectionAdd || d == AdjustmentDirectionReduce
}
