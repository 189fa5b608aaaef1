package workflow

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/mmdatafocus/settlement_backend/models"
)

// UnwindRequest targets either an explicit title id set or everything a
// bank-return batch touched.
type UnwindRequest struct {
	BusinessId string
	TitleIds   []int
	BatchId    int
}

type UnwindResult struct {
	TitlesReverted   int64 `json:"titles_reverted"`
	LinksDeleted     int64 `json:"links_deleted"`
	LinesReset       int64 `json:"lines_reset"`
	EvidenceUnlinked int64 `json:"evidence_unlinked"`
}

// RunReconciliationUnwind reverts a set of titles to unsettled in one
// transaction: all of the set reverts, or none of it does. Destructive to
// state, never to evidence. Bank-return items, spreadsheet rows and receipts
// lose only their title back-references and stay on record for audit.
func RunReconciliationUnwind(ctx context.Context, db *gorm.DB, logger *logrus.Logger, req UnwindRequest) (UnwindResult, error) {
	var result UnwindResult
	if req.BusinessId == "" {
		return result, errors.New("business id is required")
	}
	if len(req.TitleIds) == 0 && req.BatchId == 0 {
		return result, errors.New("either title ids or a batch id is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	targets := req.TitleIds
	if req.BatchId != 0 {
		var batchTargets []int
		err := db.Model(&models.BankReturnItem{}).
			Where("business_id = ? AND batch_id = ? AND title_id IS NOT NULL", req.BusinessId, req.BatchId).
			Distinct().Pluck("title_id", &batchTargets).Error
		if err != nil {
			return result, err
		}
		targets = mergeIds(targets, batchTargets)
	}
	if len(targets) == 0 {
		return result, nil
	}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Statement lines: both legacy-linked lines and lines attached
		// through reconciliation links go back to pending.
		var linkedLineIds []int
		if err := tx.Model(&models.ReconciliationLink{}).
			Where("business_id = ? AND title_id IN ?", req.BusinessId, targets).
			Distinct().Pluck("bank_statement_line_id", &linkedLineIds).Error; err != nil {
			return err
		}

		res := tx.Model(&models.BankStatementLine{}).
			Where("business_id = ? AND (title_id IN ? OR id IN ?)", req.BusinessId, targets, neverEmpty(linkedLineIds)).
			Updates(map[string]interface{}{
				"match_status":   models.MatchStatusPending,
				"match_score":    0,
				"match_criteria": "",
				"title_id":       nil,
			})
		if res.Error != nil {
			return res.Error
		}
		result.LinesReset = res.RowsAffected

		res = tx.Where("business_id = ? AND title_id IN ?", req.BusinessId, targets).
			Delete(&models.ReconciliationLink{})
		if res.Error != nil {
			return res.Error
		}
		result.LinksDeleted = res.RowsAffected

		// Evidence keeps its rows, loses the back-references classification
		// wrote. A bank-return link provided at ingestion is primary evidence
		// and survives, so re-running the classifier restores the same label.
		res = tx.Model(&models.BankReturnItem{}).
			Where("business_id = ? AND title_id IN ? AND title_id_backfilled = 1", req.BusinessId, targets).
			Updates(map[string]interface{}{"title_id": nil, "title_id_backfilled": false})
		if res.Error != nil {
			return res.Error
		}
		result.EvidenceUnlinked += res.RowsAffected
		for _, model := range []any{&models.SpreadsheetSettlement{}, &models.ReceiptSettlement{}} {
			res = tx.Model(model).
				Where("business_id = ? AND title_id IN ?", req.BusinessId, targets).
				Update("title_id", nil)
			if res.Error != nil {
				return res.Error
			}
			result.EvidenceUnlinked += res.RowsAffected
		}

		// Titles last. A reversed external status is an upstream fact and is
		// preserved; only the paid variants are reset.
		if err := tx.Model(&models.Title{}).
			Where("business_id = ? AND id IN ? AND external_status IN ?",
				req.BusinessId, targets,
				[]models.ExternalStatus{models.ExternalStatusPaid, models.ExternalStatusPaidBankReturn}).
			Update("external_status", models.ExternalStatusNotPaid).Error; err != nil {
			return err
		}
		res = tx.Model(&models.Title{}).
			Where("business_id = ? AND id IN ?", req.BusinessId, targets).
			Updates(map[string]interface{}{
				"settled":           false,
				"settlement_method": nil,
				"settlement_date":   nil,
			})
		if res.Error != nil {
			return res.Error
		}
		result.TitlesReverted = res.RowsAffected

		if req.BatchId != 0 {
			if err := tx.Model(&models.BankReturnBatch{}).
				Where("business_id = ? AND id = ?", req.BusinessId, req.BatchId).
				Update("classified_at", nil).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return UnwindResult{}, err
	}

	if logger != nil {
		logger.WithFields(logrus.Fields{
			"module":            "ReconciliationUnwind",
			"business_id":       req.BusinessId,
			"titles_reverted":   result.TitlesReverted,
			"links_deleted":     result.LinksDeleted,
			"lines_reset":       result.LinesReset,
			"evidence_unlinked": result.EvidenceUnlinked,
		}).Info("reconciliation unwind completed")
	}
	return result, nil
}

func mergeIds(a, b []int) []int {
	seen := make(map[int]bool, len(a)+len(b))
	out := make([]int, 0, len(a)+len(b))
	for _, id := range append(append([]int{}, a...), b...) {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// neverEmpty keeps "id IN ?" valid when no linked lines exist (MySQL rejects
// an empty IN list).
func neverEmpty(ids []int) []int {
	if len(ids) == 0 {
		return []int{-1}
	}
	return ids
}
