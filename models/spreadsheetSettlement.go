package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SpreadsheetSettlement is one row of a manually uploaded settlement
// confirmation workbook. Keyed by document number + installment; the row is
// kept even after its title link is unwound (evidence survives state resets).
type SpreadsheetSettlement struct {
	ID             int             `gorm:"primary_key" json:"id"`
	BusinessId     string          `gorm:"size:64;index;not null" json:"business_id"`
	DocumentNumber string          `gorm:"size:50;index;not null" json:"document_number"`
	Installment    string          `gorm:"size:20;default:''" json:"installment"`
	Amount         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
	SettlementDate time.Time       `json:"settlement_date"`
	Status         EvidenceStatus  `gorm:"size:20;index;default:'pending'" json:"status"`
	TitleId        *int            `gorm:"index;default:null" json:"title_id"`
	SourceFile     string          `gorm:"size:255;default:''" json:"source_file"`
	RowNumber      int             `gorm:"default:0" json:"row_number"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (s SpreadsheetSettlement) GetId() int {
	return s.ID
}
