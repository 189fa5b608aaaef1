package models

import (
	"errors"
	"time"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ReconciliationLink is the many-to-many join between statement lines and
// titles: one line paying several titles, or several lines together paying
// one title. It is an explicit indexed relation with its own status, never
// bidirectional object references, so ownership stays unambiguous.
type ReconciliationLink struct {
	ID                  int             `gorm:"primary_key" json:"id"`
	BusinessId          string          `gorm:"size:64;index;not null" json:"business_id"`
	BankStatementLineId int             `gorm:"not null;index:uniq_line_title,unique" json:"bank_statement_line_id"`
	TitleId             int             `gorm:"not null;index:uniq_line_title,unique" json:"title_id"`
	Amount              decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
	Status              LinkStatus      `gorm:"size:20;index;default:'pending'" json:"status"`
	CreatedAt           time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (l ReconciliationLink) GetId() int {
	return l.ID
}

func isDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}

// LinkStatementLineToTitle creates a pending link, or returns the existing one
// when the pair is already linked. Linking twice is a no-op, not an error.
func LinkStatementLineToTitle(db *gorm.DB, businessId string, lineId, titleId int, amount decimal.Decimal) (*ReconciliationLink, error) {
	link := ReconciliationLink{
		BusinessId:          businessId,
		BankStatementLineId: lineId,
		TitleId:             titleId,
		Amount:              amount,
		Status:              LinkStatusPending,
	}
	err := db.Create(&link).Error
	if err == nil {
		return &link, nil
	}
	if !isDuplicateKeyErr(err) {
		return nil, err
	}

	var existing ReconciliationLink
	if err := db.Where("bank_statement_line_id = ? AND title_id = ?", lineId, titleId).
		First(&existing).Error; err != nil {
		return nil, err
	}
	return &existing, nil
}

// ApproveReconciliationLink transitions pending -> conciliated. Conciliated is
// the trigger state the classifier's statement-link step reads.
func ApproveReconciliationLink(db *gorm.DB, businessId string, linkId int) error {
	res := db.Model(&ReconciliationLink{}).
		Where("business_id = ? AND id = ?", businessId, linkId).
		Update("status", LinkStatusConciliated)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func UnlinkAllForTitle(tx *gorm.DB, businessId string, titleId int) error {
	return tx.Where("business_id = ? AND title_id = ?", businessId, titleId).
		Delete(&ReconciliationLink{}).Error
}

func UnlinkAllForStatementLine(tx *gorm.DB, businessId string, lineId int) error {
	return tx.Where("business_id = ? AND bank_statement_line_id = ?", businessId, lineId).
		Delete(&ReconciliationLink{}).Error
}

// SumLinkedAmountForTitle totals the conciliated amounts attributed to a
// title. The auditor compares this against the title's amount; small residuals
// from partial payments and rounding are expected and tolerated.
func SumLinkedAmountForTitle(db *gorm.DB, businessId string, titleId int) (decimal.Decimal, error) {
	var raw *string
	err := db.Model(&ReconciliationLink{}).
		Select("CAST(COALESCE(SUM(amount), 0) AS CHAR)").
		Where("business_id = ? AND title_id = ? AND status = ?", businessId, titleId, LinkStatusConciliated).
		Scan(&raw).Error
	if err != nil {
		return decimal.Zero, err
	}
	if raw == nil {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(*raw)
}
