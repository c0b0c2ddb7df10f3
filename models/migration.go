package models

import (
	"log"

	"bitbucket.org/gudangkita/inventory_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Product{}, &Warehouse{}, &StockEntry{},
		&Supplier{}, &Staff{}, &StaffPayment{},
		&Account{}, &AccountTransaction{},
		&Purchase{}, &Sale{},
		&Debt{}, &PaymentHistory{},
		&ReturnRecord{}, &ReturnItem{},
		&StockAdjustment{}, &OperationalExpense{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
