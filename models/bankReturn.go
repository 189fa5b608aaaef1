package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mmdatafocus/settlement_backend/utils"
)

// BankReturnBatch is the unit of idempotent ingestion for bank-return files.
// The content hash makes re-import of the same file a no-op at the boundary:
// ingestion is at-most-once per byte-identical file.
type BankReturnBatch struct {
	ID              int        `gorm:"primary_key" json:"id"`
	BusinessId      string     `gorm:"size:64;not null;index:uniq_batch_hash,unique" json:"business_id" binding:"required"`
	FileName        string     `gorm:"size:255" json:"file_name"`
	ContentHash     string     `gorm:"size:64;not null;index:uniq_batch_hash,unique" json:"content_hash"`
	OccurrenceCount int        `gorm:"default:0" json:"occurrence_count"`
	ImportedAt      time.Time  `json:"imported_at"`
	ClassifiedAt    *time.Time `gorm:"default:null" json:"classified_at"`
	CreatedAt       time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// BankReturnItem is one parsed occurrence from a bank-return batch. TitleId is
// the direct link written at ingestion time when the bank echoed our own
// reference; the document/installment hints feed the fallback resolution.
type BankReturnItem struct {
	ID                 int             `gorm:"primary_key" json:"id"`
	BusinessId         string          `gorm:"size:64;index;not null" json:"business_id"`
	BatchId            int             `gorm:"index;not null" json:"batch_id"`
	OccurrenceCode     string          `gorm:"size:2;index;not null" json:"occurrence_code"`
	TitleId            *int            `gorm:"index;default:null" json:"title_id"`
	// TitleIdBackfilled marks a link the classifier resolved from hints, as
	// opposed to a link the bank echoed at ingestion. Unwind clears only
	// backfilled links; the ingestion link is primary evidence.
	TitleIdBackfilled  bool            `gorm:"default:false" json:"title_id_backfilled"`
	DocumentNumberHint string          `gorm:"size:50;index;default:''" json:"document_number_hint"`
	InstallmentHint    string          `gorm:"size:20;default:''" json:"installment_hint"`
	Amount             decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
	OccurrenceDate     time.Time       `json:"occurrence_date"`
	CreatedAt          time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (i BankReturnItem) GetId() int {
	return i.ID
}

// Settles reports whether this item's occurrence code is liquidating.
func (i BankReturnItem) Settles() bool {
	return OccurrenceSettles(i.OccurrenceCode)
}

// NewBankReturnItem is the ingestion-boundary shape: already parsed, typed
// records. The byte layout of the bank file is not this repository's concern.
type NewBankReturnItem struct {
	OccurrenceCode     string          `json:"occurrence_code"`
	TitleId            *int            `json:"title_id,omitempty"`
	DocumentNumberHint string          `json:"document_number_hint"`
	InstallmentHint    string          `json:"installment_hint"`
	Amount             decimal.Decimal `json:"amount"`
	OccurrenceDate     time.Time       `json:"occurrence_date"`
}

// RegisterBankReturnBatch stores a parsed batch and its items in one
// transaction, enforcing the content-hash precondition. Returns
// utils.ErrBatchAlreadyImported when the hash is already present for the
// business.
func RegisterBankReturnBatch(db *gorm.DB, businessId, fileName, contentHash string, items []NewBankReturnItem) (*BankReturnBatch, error) {
	if contentHash == "" {
		return nil, errors.New("content hash is required")
	}

	var existing BankReturnBatch
	err := db.Where("business_id = ? AND content_hash = ?", businessId, contentHash).First(&existing).Error
	if err == nil {
		return nil, utils.ErrBatchAlreadyImported
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	batch := BankReturnBatch{
		BusinessId:      businessId,
		FileName:        fileName,
		ContentHash:     contentHash,
		OccurrenceCount: len(items),
		ImportedAt:      time.Now().UTC(),
	}
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&batch).Error; err != nil {
			return err
		}
		for _, in := range items {
			item := BankReturnItem{
				BusinessId:         businessId,
				BatchId:            batch.ID,
				OccurrenceCode:     in.OccurrenceCode,
				TitleId:            in.TitleId,
				DocumentNumberHint: in.DocumentNumberHint,
				InstallmentHint:    in.InstallmentHint,
				Amount:             in.Amount,
				OccurrenceDate:     in.OccurrenceDate,
			}
			if err := tx.Create(&item).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &batch, nil
}

// BatchAlreadyClassified is the precondition check exposed to callers that
// want to refuse re-classification of a batch.
func BatchAlreadyClassified(db *gorm.DB, businessId string, batchId int) (bool, error) {
	var batch BankReturnBatch
	err := db.Where("business_id = ? AND id = ?", businessId, batchId).First(&batch).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, utils.ErrorRecordNotFound
	}
	if err != nil {
		return false, err
	}
	return batch.ClassifiedAt != nil, nil
}

// MarkBatchClassified stamps the batch after a successful batch-scoped run.
func MarkBatchClassified(db *gorm.DB, businessId string, batchId int, at time.Time) error {
	return db.Model(&BankReturnBatch{}).
		Where("business_id = ? AND id = ?", businessId, batchId).
		Update("classified_at", at).Error
}
