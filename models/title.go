package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mmdatafocus/settlement_backend/utils"
)

// Title is a single receivable or payable obligation in the ledger. It is the
// one entity owned by this engine: Settled/SettlementMethod/SettlementDate are
// written only by the settlement classifier and the reconciliation unwind;
// ExternalStatus only by erpsync and the unwind. Titles are never deleted,
// only voided.
type Title struct {
	ID             int            `gorm:"primary_key" json:"id"`
	BusinessId     string         `gorm:"size:64;index;not null" json:"business_id" binding:"required"`
	Direction      TitleDirection `gorm:"not null;type:enum('Receivable','Payable');index" json:"direction"`
	DocumentNumber string         `gorm:"size:50;index;not null" json:"document_number" binding:"required"`
	// Installment is free text as issued ("1", "01", "001/003"). Compare only
	// through utils.NormalizeInstallment.
	Installment      string            `gorm:"size:20;default:''" json:"installment"`
	Amount           decimal.Decimal   `gorm:"type:decimal(20,4);default:0" json:"amount"`
	DueDate          time.Time         `json:"due_date"`
	Settled          bool              `gorm:"index;default:false" json:"settled"`
	SettlementMethod *SettlementMethod `gorm:"size:40;index;default:null" json:"settlement_method"`
	SettlementDate   *time.Time        `gorm:"default:null" json:"settlement_date"`
	ExternalStatus   ExternalStatus    `gorm:"size:20;index;default:'not_paid'" json:"external_status"`
	// ExternalLineId is the accounting system's identifier for this title's
	// line, used by the receipt channel and erpsync.
	ExternalLineId *string   `gorm:"size:100;index;default:null" json:"external_line_id"`
	Voided         bool      `gorm:"default:false" json:"voided"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (t Title) GetId() int {
	return t.ID
}

// InstallmentKey is the normalized comparison form of the installment.
func (t Title) InstallmentKey() string {
	return utils.NormalizeInstallment(t.Installment)
}

// GetTitle loads one title scoped to a business.
func GetTitle(db *gorm.DB, businessId string, id int) (*Title, error) {
	var title Title
	err := db.Where("business_id = ? AND id = ?", businessId, id).First(&title).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrorRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &title, nil
}

// FindTitlesByDocument returns the non-voided titles for a document number
// whose installment matches hint under normalization. Multiple results are a
// legitimate outcome (duplicate document numbers across directions) and are
// returned as-is: narrowing an ambiguous set is never done here.
func FindTitlesByDocument(db *gorm.DB, businessId, documentNumber, installmentHint string) ([]Title, error) {
	var candidates []Title
	err := db.Where("business_id = ? AND document_number = ? AND voided = 0", businessId, documentNumber).
		Find(&candidates).Error
	if err != nil {
		return nil, err
	}

	key := utils.NormalizeInstallment(installmentHint)
	matched := make([]Title, 0, len(candidates))
	for _, t := range candidates {
		if t.InstallmentKey() == key {
			matched = append(matched, t)
		}
	}
	return matched, nil
}

// FindTitleByExternalLineId returns the title mirroring a given accounting
// system line, or nil when unknown locally.
func FindTitleByExternalLineId(db *gorm.DB, businessId, externalLineId string) (*Title, error) {
	if externalLineId == "" {
		return nil, nil
	}
	var title Title
	err := db.Where("business_id = ? AND external_line_id = ? AND voided = 0", businessId, externalLineId).
		First(&title).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &title, nil
}

// UnclassifiedSettledTitleIds snapshots the classifier's working set: settled
// titles with no settlement method yet. The snapshot is taken once per run,
// before step 1, so later steps never observe earlier steps' writes.
func UnclassifiedSettledTitleIds(db *gorm.DB, businessId string, subset []int, includeCatchAll bool) ([]int, error) {
	q := db.Model(&Title{}).
		Where("business_id = ? AND settled = 1 AND voided = 0", businessId)
	if includeCatchAll {
		// Retroactive normalization: catch-all labels predate the installment
		// fix, so evidence that only matches under normalization may upgrade
		// them. Any other label is final.
		q = q.Where("(settlement_method IS NULL OR settlement_method = ?)", SettlementMethodExternalSystem)
	} else {
		q = q.Where("settlement_method IS NULL")
	}
	if len(subset) > 0 {
		q = q.Where("id IN ?", subset)
	}
	var ids []int
	if err := q.Order("id").Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
