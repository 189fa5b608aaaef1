package workflow

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/mmdatafocus/settlement_backend/models"
)

type MatchResult struct {
	Attempted int `json:"attempted"`
	Matched   int `json:"matched"`
	Ambiguous int `json:"ambiguous"`
	Unmatched int `json:"unmatched"`
}

// MatchStatementLines runs the resolver over pending statement lines, writing
// the proposed match (status, score, criterion) and a pending reconciliation
// link for single-candidate results. Ambiguous lines stay pending for manual
// review; approval into a settlement is a separate, explicit act.
func MatchStatementLines(ctx context.Context, db *gorm.DB, logger *logrus.Logger, businessId string) (MatchResult, error) {
	var result MatchResult
	if businessId == "" {
		return result, errors.New("business id is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var lines []models.BankStatementLine
	err := db.WithContext(ctx).
		Where("business_id = ? AND match_status = ? AND title_id IS NULL", businessId, models.MatchStatusPending).
		Order("id").Find(&lines).Error
	if err != nil {
		return result, err
	}

	for _, line := range lines {
		result.Attempted++
		candidates, err := ResolveTitle(db, ResolveHints{
			BusinessId: businessId,
			Amount:     line.Amount,
			Date:       line.TransactionDate,
		})
		if err != nil {
			return result, err
		}
		switch len(candidates) {
		case 0:
			result.Unmatched++
		case 1:
			c := candidates[0]
			err := db.Transaction(func(tx *gorm.DB) error {
				if err := tx.Model(&models.BankStatementLine{}).
					Where("id = ?", line.ID).
					Updates(map[string]interface{}{
						"match_status":   models.MatchStatusMatched,
						"match_score":    c.Score,
						"match_criteria": c.Criterion,
					}).Error; err != nil {
					return err
				}
				_, err := models.LinkStatementLineToTitle(tx, businessId, line.ID, c.Title.ID,
					decimal.Min(line.Amount, c.Title.Amount))
				return err
			})
			if err != nil {
				return result, err
			}
			result.Matched++
		default:
			// More than one plausible title: never guessed at.
			result.Ambiguous++
		}
	}

	if logger != nil {
		logger.WithFields(logrus.Fields{
			"module":      "StatementMatching",
			"business_id": businessId,
			"attempted":   result.Attempted,
			"matched":     result.Matched,
			"ambiguous":   result.Ambiguous,
			"unmatched":   result.Unmatched,
		}).Info("statement line matching completed")
	}
	return result, nil
}
