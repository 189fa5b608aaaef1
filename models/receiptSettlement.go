package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReceiptSettlement is an uploaded payment-receipt confirmation. Primary key
// into the ledger is the accounting system's line id; document+installment is
// the fallback when the line id is unknown locally.
type ReceiptSettlement struct {
	ID                 int             `gorm:"primary_key" json:"id"`
	BusinessId         string          `gorm:"size:64;index;not null" json:"business_id"`
	ExternalLineId     string          `gorm:"size:100;index;default:''" json:"external_line_id"`
	DocumentNumberHint string          `gorm:"size:50;index;default:''" json:"document_number_hint"`
	InstallmentHint    string          `gorm:"size:20;default:''" json:"installment_hint"`
	Amount             decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
	Status             EvidenceStatus  `gorm:"size:20;index;default:'pending'" json:"status"`
	TitleId            *int            `gorm:"index;default:null" json:"title_id"`
	ReceiptUrl         string          `gorm:"size:500;default:''" json:"receipt_url"`
	CreatedAt          time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (r ReceiptSettlement) GetId() int {
	return r.ID
}
