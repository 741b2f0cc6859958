package models

import (
	"log"

	"github.com/openretail/backoffice_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Company{}, &User{},
		&Category{}, &Unit{}, &Product{},
		&Customer{}, &Supplier{},
		&Sale{}, &SaleItem{},
		&Purchase{}, &PurchaseItem{},
		&PaymentRecord{},
		&StockMovement{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
