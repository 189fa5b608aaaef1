package erpsync

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/mmdatafocus/settlement_backend/models"
	"github.com/mmdatafocus/settlement_backend/utils"
	"github.com/mmdatafocus/settlement_backend/workflow"
)

const handlerName = "ErpPaymentConfirmation"

// ProcessConfirmation mirrors one payment confirmation onto the ledger:
// external_status on the matching title, plus a receipt evidence row when the
// confirmation carries one. Durable idempotency makes Pub/Sub's at-least-once
// delivery safe. Settled/settlement_method are never written here.
func ProcessConfirmation(ctx context.Context, db *gorm.DB, logger *logrus.Logger, c PaymentConfirmation) error {
	if c.BusinessId == "" || c.MessageId == "" {
		return errors.New("invalid confirmation payload")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = utils.SetBusinessIdInContext(ctx, c.BusinessId)

	status, err := mapStatus(c.Status)
	if err != nil {
		return err
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		skip, err := workflow.BeginIdempotency(tx, c.BusinessId, handlerName, c.MessageId)
		if err != nil {
			return err
		}
		if skip {
			return nil
		}

		if err := applyConfirmation(tx, logger, c, status); err != nil {
			_ = workflow.MarkIdempotencyFailed(tx, c.BusinessId, handlerName, c.MessageId, err)
			return err
		}
		return workflow.MarkIdempotencySucceeded(tx, c.BusinessId, handlerName, c.MessageId)
	})
}

func applyConfirmation(tx *gorm.DB, logger *logrus.Logger, c PaymentConfirmation, status models.ExternalStatus) error {
	title, err := resolveTitle(tx, c)
	if errors.Is(err, utils.ErrAmbiguousResolution) {
		// More than one open title fits the document hints. Guessing would
		// mark the wrong title paid; the receipt evidence is still recorded.
		if logger != nil {
			bid, _ := utils.GetBusinessIdFromContext(tx.Statement.Context)
			logger.WithFields(logrus.Fields{
				"module":          "ErpSync",
				"business_id":     bid,
				"document_number": c.DocumentNumber,
				"installment":     c.Installment,
			}).Warn("confirmation resolves to multiple titles")
		}
		title, err = nil, nil
	}
	if err != nil {
		return err
	}

	if title != nil {
		updates := map[string]interface{}{"external_status": status}
		if title.ExternalLineId == nil && c.ExternalLineId != "" {
			updates["external_line_id"] = c.ExternalLineId
		}
		if err := tx.Model(&models.Title{}).
			Where("id = ?", title.ID).Updates(updates).Error; err != nil {
			return err
		}
	} else if logger != nil {
		logger.WithFields(logrus.Fields{
			"module":           "ErpSync",
			"business_id":      c.BusinessId,
			"external_line_id": c.ExternalLineId,
			"document_number":  c.DocumentNumber,
		}).Warn("confirmation does not resolve to a local title")
	}

	if c.ReceiptUrl == "" {
		return nil
	}

	// Receipt-bearing confirmations become receipt evidence for the
	// classifier. Upsert keyed on the external line id.
	receipt := models.ReceiptSettlement{
		BusinessId:         c.BusinessId,
		ExternalLineId:     c.ExternalLineId,
		DocumentNumberHint: c.DocumentNumber,
		InstallmentHint:    c.Installment,
		Amount:             c.Amount,
		Status:             receiptStatus(status),
		ReceiptUrl:         c.ReceiptUrl,
	}
	if c.ExternalLineId != "" {
		var existing models.ReceiptSettlement
		err := tx.Where("business_id = ? AND external_line_id = ?", c.BusinessId, c.ExternalLineId).
			First(&existing).Error
		if err == nil {
			return tx.Model(&models.ReceiptSettlement{}).
				Where("id = ?", existing.ID).
				Updates(map[string]interface{}{
					"status":      receipt.Status,
					"amount":      receipt.Amount,
					"receipt_url": receipt.ReceiptUrl,
				}).Error
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
	}
	return tx.Create(&receipt).Error
}

func resolveTitle(tx *gorm.DB, c PaymentConfirmation) (*models.Title, error) {
	title, err := models.FindTitleByExternalLineId(tx, c.BusinessId, c.ExternalLineId)
	if err != nil || title != nil {
		return title, err
	}
	if c.DocumentNumber == "" {
		return nil, nil
	}
	candidates, err := models.FindTitlesByDocument(tx, c.BusinessId, c.DocumentNumber, c.Installment)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 1 {
		return &candidates[0], nil
	}
	if len(candidates) > 1 {
		return nil, utils.ErrAmbiguousResolution
	}
	return nil, nil
}

func mapStatus(raw string) (models.ExternalStatus, error) {
	switch models.ExternalStatus(raw) {
	case models.ExternalStatusPaid, models.ExternalStatusPaidBankReturn,
		models.ExternalStatusNotPaid, models.ExternalStatusReversed:
		return models.ExternalStatus(raw), nil
	default:
		return "", fmt.Errorf("unknown payment status %q", raw)
	}
}

func receiptStatus(s models.ExternalStatus) models.EvidenceStatus {
	if s.IsPaidVariant() {
		return models.EvidenceStatusSuccess
	}
	return models.EvidenceStatusFailed
}
