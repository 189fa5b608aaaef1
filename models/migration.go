package models

import (
	"log"

	"github.com/mmdatafocus/settlement_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Title{},
		&BankReturnBatch{}, &BankReturnItem{},
		&BankStatementLine{}, &ReconciliationLink{},
		&SpreadsheetSettlement{}, &ReceiptSettlement{},
		&ClassificationRun{}, &ClassificationRunStep{},
		&ConsistencyReport{},
		&IdempotencyKey{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
