package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/mmdatafocus/settlement_backend/config"
	"github.com/mmdatafocus/settlement_backend/models"
	"github.com/mmdatafocus/settlement_backend/utils"
)

const (
	SeverityError   = "error"
	SeverityWarning = "warning"

	CheckSettledStatusContradiction = "SETTLED_STATUS_CONTRADICTION"
	CheckUnclassifiedSettledTitle   = "UNCLASSIFIED_SETTLED_TITLE"
	CheckLinkSumExceedsAmount       = "LINK_SUM_EXCEEDS_AMOUNT"
)

// Finding is one consistency violation. The auditor only surfaces findings;
// repair is a human's (or a separate remediation flow's) job.
type Finding struct {
	CheckType  string `json:"check_type"`
	Severity   string `json:"severity"`
	EntityType string `json:"entity_type"`
	EntityId   int    `json:"entity_id"`
	Details    string `json:"details"`
}

type AuditOptions struct {
	// Persist writes findings as consistency_reports rows. The audited
	// entities themselves are never touched either way.
	Persist bool
}

// RunConsistencyAudit scans for contradictory settlement state. Read-only
// with respect to titles, evidence and links.
func RunConsistencyAudit(ctx context.Context, db *gorm.DB, logger *logrus.Logger, businessId string, opts AuditOptions) ([]Finding, string, error) {
	if businessId == "" {
		return nil, "", errors.New("business id is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	cid, ok := utils.GetCorrelationIdFromContext(ctx)
	if !ok || cid == "" {
		cid = uuid.NewString()
	}

	var findings []Finding

	// (a) settled but the accounting system says not paid or reversed.
	type contradictionRow struct {
		ID             int
		ExternalStatus string
	}
	var contradictions []contradictionRow
	err := db.WithContext(ctx).Raw(`
		SELECT t.id, t.external_status
		FROM titles t
		WHERE t.business_id = ?
		  AND t.settled = 1
		  AND t.external_status IN (?, ?)
		ORDER BY t.id
	`, businessId, models.ExternalStatusNotPaid, models.ExternalStatusReversed).Scan(&contradictions).Error
	if err != nil {
		return nil, cid, err
	}
	for _, row := range contradictions {
		findings = append(findings, Finding{
			CheckType:  CheckSettledStatusContradiction,
			Severity:   SeverityError,
			EntityType: "Title",
			EntityId:   row.ID,
			Details:    fmt.Sprintf("settled=1 but external_status=%s", row.ExternalStatus),
		})
	}

	// (b) settled without a settlement method. Expected empty after a full
	// classifier run; anything here after one is stuck.
	var unclassified []int
	err = db.WithContext(ctx).Model(&models.Title{}).
		Where("business_id = ? AND settled = 1 AND settlement_method IS NULL AND voided = 0", businessId).
		Order("id").Pluck("id", &unclassified).Error
	if err != nil {
		return nil, cid, err
	}
	for _, id := range unclassified {
		findings = append(findings, Finding{
			CheckType:  CheckUnclassifiedSettledTitle,
			Severity:   SeverityWarning,
			EntityType: "Title",
			EntityId:   id,
			Details:    "settled=1 with no settlement_method",
		})
	}

	// (c) conciliated link amounts exceed the title amount beyond tolerance.
	tolerance := config.LinkSumTolerance()
	type overRow struct {
		TitleId     int
		TitleAmount string
		LinkedSum   string
	}
	var overs []overRow
	err = db.WithContext(ctx).Raw(`
		SELECT
			t.id AS title_id,
			CAST(t.amount AS CHAR) AS title_amount,
			CAST(SUM(l.amount) AS CHAR) AS linked_sum
		FROM titles t
		INNER JOIN reconciliation_links l
		  ON l.title_id = t.id
		 AND l.business_id = t.business_id
		 AND l.status = ?
		WHERE t.business_id = ?
		GROUP BY t.id
		HAVING SUM(l.amount) > t.amount + ?
		ORDER BY t.id
	`, models.LinkStatusConciliated, businessId, tolerance).Scan(&overs).Error
	if err != nil {
		return nil, cid, err
	}
	for _, row := range overs {
		findings = append(findings, Finding{
			CheckType:  CheckLinkSumExceedsAmount,
			Severity:   SeverityError,
			EntityType: "Title",
			EntityId:   row.TitleId,
			Details:    fmt.Sprintf("sum(links.amount)=%s exceeds title amount=%s beyond tolerance %s", row.LinkedSum, row.TitleAmount, tolerance),
		})
	}

	if opts.Persist && len(findings) > 0 {
		now := time.Now().UTC()
		for _, f := range findings {
			report := models.ConsistencyReport{
				BusinessId:    businessId,
				CheckType:     f.CheckType,
				Severity:      f.Severity,
				EntityType:    f.EntityType,
				EntityId:      f.EntityId,
				Details:       f.Details,
				CorrelationId: cid,
				CreatedAt:     now,
			}
			if err := db.WithContext(ctx).Create(&report).Error; err != nil {
				return findings, cid, err
			}
		}
	}

	if logger != nil {
		logger.WithFields(logrus.Fields{
			"module":         "ConsistencyAudit",
			"business_id":    businessId,
			"correlation_id": cid,
			"contradictions": len(contradictions),
			"unclassified":   len(unclassified),
			"over_linked":    len(overs),
		}).Info("consistency audit completed")
	}
	return findings, cid, nil
}
