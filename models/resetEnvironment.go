package models

import (
	"gorm.io/gorm"
)

// ResetEnvironmentCounts is the dry-run report for cmd/reset-environment.
type ResetEnvironmentCounts struct {
	Titles                 int64
	BankReturnBatches      int64
	BankReturnItems        int64
	BankStatementLines     int64
	ReconciliationLinks    int64
	SpreadsheetSettlements int64
	ReceiptSettlements     int64
	ClassificationRuns     int64
	ConsistencyReports     int64
}

func CountResetTargets(db *gorm.DB, businessId string) (ResetEnvironmentCounts, error) {
	var c ResetEnvironmentCounts
	counts := []struct {
		model any
		dest  *int64
	}{
		{&Title{}, &c.Titles},
		{&BankReturnBatch{}, &c.BankReturnBatches},
		{&BankReturnItem{}, &c.BankReturnItems},
		{&BankStatementLine{}, &c.BankStatementLines},
		{&ReconciliationLink{}, &c.ReconciliationLinks},
		{&SpreadsheetSettlement{}, &c.SpreadsheetSettlements},
		{&ReceiptSettlement{}, &c.ReceiptSettlements},
		{&ClassificationRun{}, &c.ClassificationRuns},
		{&ConsistencyReport{}, &c.ConsistencyReports},
	}
	for _, target := range counts {
		if err := db.Model(target.model).Where("business_id = ?", businessId).Count(target.dest).Error; err != nil {
			return c, err
		}
	}
	return c, nil
}

// ResetEnvironment wipes all settlement state AND evidence for one business.
// Only for non-production test setups; the caller must have passed the
// confirm guard and the AllowDestructiveReset flag.
func ResetEnvironment(db *gorm.DB, businessId string) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("business_id = ?", businessId).Delete(&ReconciliationLink{}).Error; err != nil {
			return err
		}
		if err := tx.Where("business_id = ?", businessId).Delete(&BankStatementLine{}).Error; err != nil {
			return err
		}
		if err := tx.Where("business_id = ?", businessId).Delete(&BankReturnItem{}).Error; err != nil {
			return err
		}
		if err := tx.Where("business_id = ?", businessId).Delete(&BankReturnBatch{}).Error; err != nil {
			return err
		}
		if err := tx.Where("business_id = ?", businessId).Delete(&SpreadsheetSettlement{}).Error; err != nil {
			return err
		}
		if err := tx.Where("business_id = ?", businessId).Delete(&ReceiptSettlement{}).Error; err != nil {
			return err
		}
		if err := tx.Exec(`
			DELETE s FROM classification_run_steps s
			INNER JOIN classification_runs r ON r.id = s.run_id
			WHERE r.business_id = ?`, businessId).Error; err != nil {
			return err
		}
		if err := tx.Where("business_id = ?", businessId).Delete(&ClassificationRun{}).Error; err != nil {
			return err
		}
		if err := tx.Where("business_id = ?", businessId).Delete(&ConsistencyReport{}).Error; err != nil {
			return err
		}
		// Titles are never deleted, only reset to unsettled.
		return tx.Model(&Title{}).
			Where("business_id = ?", businessId).
			Updates(map[string]interface{}{
				"settled":           false,
				"settlement_method": nil,
				"settlement_date":   nil,
				"external_status":   ExternalStatusNotPaid,
			}).Error
	})
}
