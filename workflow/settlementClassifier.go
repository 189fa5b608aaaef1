package workflow

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"gorm.io/gorm"

	"github.com/mmdatafocus/settlement_backend/config"
	"github.com/mmdatafocus/settlement_backend/models"
	"github.com/mmdatafocus/settlement_backend/utils"
)

var tracer = otel.Tracer("settlement-classifier")

var ErrBatchAlreadyClassified = errors.New("bank return batch already classified")

// ClassifyOptions bounds one classification run. Empty TitleIds and zero
// BatchId means the whole unclassified population.
type ClassifyOptions struct {
	BusinessId string
	TitleIds   []int
	BatchId    int
	// Reclassify skips the batch classified_at precondition (after an unwind).
	Reclassify bool
}

// runContext carries the id-set boundary through all steps: the immutable
// snapshot of unclassified settled title ids taken before step 1, plus the
// ids classified so far this run. Steps never read each other's DB writes;
// the ordering invariant holds regardless of how a step is executed.
type runContext struct {
	businessId string
	snapshot   []int
	inSnapshot map[int]bool
	classified map[int]bool
	// relabelCatchAll lets steps 1-7 upgrade a catch-all label left by a run
	// that predates installment normalization. All other labels stay final.
	relabelCatchAll bool
}

func newRunContext(businessId string, snapshot []int) *runContext {
	in := make(map[int]bool, len(snapshot))
	for _, id := range snapshot {
		in[id] = true
	}
	return &runContext{
		businessId: businessId,
		snapshot:   snapshot,
		inSnapshot: in,
		classified: make(map[int]bool),
	}
}

// remaining returns the snapshot ids not yet classified this run, in stable
// order.
func (rc *runContext) remaining() []int {
	out := make([]int, 0, len(rc.snapshot))
	for _, id := range rc.snapshot {
		if !rc.classified[id] {
			out = append(out, id)
		}
	}
	return out
}

func (rc *runContext) inScope(titleId int) bool {
	return rc.inSnapshot[titleId] && !rc.classified[titleId]
}

type stepFunc func(tx *gorm.DB, rc *runContext, step *models.ClassificationRunStep) error

type stepDef struct {
	number int
	label  models.SettlementMethod
	run    stepFunc
}

// waterfallSteps is the priority order: most structurally certain evidence
// first, so a title is never attributed to a weaker channel when stronger
// evidence exists. Each step only touches titles still unclassified.
func waterfallSteps() []stepDef {
	return []stepDef{
		{1, models.SettlementMethodBankReturnDirect, stepBankReturnDirect},
		{2, models.SettlementMethodBankReturnDocument, stepBankReturnDocument},
		{3, models.SettlementMethodBankReturnStatus, stepBankReturnStatus},
		{4, models.SettlementMethodSpreadsheet, stepSpreadsheet},
		{5, models.SettlementMethodReceipt, stepReceipt},
		{6, models.SettlementMethodStatementDirect, stepStatementDirect},
		{7, models.SettlementMethodStatementLink, stepStatementLink},
		{8, models.SettlementMethodExternalSystem, stepCatchAll},
	}
}

// RunSettlementClassification assigns a settlement method to every settled,
// unclassified title in scope, one committed transaction per waterfall step.
// Idempotent: a second run over an unchanged population writes nothing. A
// step failure rolls back only that step; the run stops there (running later,
// weaker steps after a failed stronger one could misattribute titles) and is
// reported as partial.
func RunSettlementClassification(ctx context.Context, db *gorm.DB, logger *logrus.Logger, opts ClassifyOptions) (*models.ClassificationRun, error) {
	if opts.BusinessId == "" {
		return nil, errors.New("business id is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	cid, ok := utils.GetCorrelationIdFromContext(ctx)
	if !ok || cid == "" {
		cid = uuid.NewString()
	}
	actor, _ := utils.GetActorFromContext(ctx)

	if err := AcquireClassificationLock(db, opts.BusinessId); err != nil {
		return nil, err
	}
	defer ReleaseClassificationLock(db, opts.BusinessId)

	subset := opts.TitleIds
	scope := "all"
	if len(opts.TitleIds) > 0 {
		scope = fmt.Sprintf("titles:%d", len(opts.TitleIds))
	}
	if opts.BatchId != 0 {
		scope = "batch:" + strconv.Itoa(opts.BatchId)
		already, err := models.BatchAlreadyClassified(db, opts.BusinessId, opts.BatchId)
		if err != nil {
			return nil, err
		}
		if already && !opts.Reclassify {
			return nil, ErrBatchAlreadyClassified
		}
		batchIds, err := batchTitleIds(db, opts.BusinessId, opts.BatchId)
		if err != nil {
			return nil, err
		}
		subset = intersectIds(subset, batchIds)
	}

	relabelCatchAll := config.RetroactiveInstallmentNormalization()
	snapshot, err := models.UnclassifiedSettledTitleIds(db, opts.BusinessId, subset, relabelCatchAll)
	if err != nil {
		return nil, err
	}

	run := &models.ClassificationRun{
		BusinessId:    opts.BusinessId,
		CorrelationId: cid,
		Actor:         actor,
		Scope:         scope,
		SnapshotSize:  len(snapshot),
		Status:        models.RunStatusRunning,
		StartedAt:     time.Now().UTC(),
	}
	if err := db.Create(run).Error; err != nil {
		return nil, err
	}

	rc := newRunContext(opts.BusinessId, snapshot)
	rc.relabelCatchAll = relabelCatchAll

	for _, def := range waterfallSteps() {
		// A run may be aborted between steps without corruption: every
		// committed step is a safe resumption point.
		if err := ctx.Err(); err != nil {
			_ = run.Finish(db, models.RunStatusAborted)
			return run, err
		}

		step := models.ClassificationRunStep{
			RunId:      run.ID,
			StepNumber: def.number,
			Label:      string(def.label),
		}

		stepCtx, span := tracer.Start(ctx, "classify.step."+string(def.label))
		txErr := db.WithContext(stepCtx).Transaction(func(tx *gorm.DB) error {
			return def.run(tx, rc, &step)
		})
		span.End()

		if txErr != nil {
			// Rolled back in isolation; prior steps' commits stand.
			msg := txErr.Error()
			step.FailedError = &msg
			_ = db.Create(&step).Error
			run.Steps = append(run.Steps, step)
			_ = run.Finish(db, models.RunStatusPartial)
			config.LogError(logger, "settlementClassifier.go", "RunSettlementClassification",
				fmt.Sprintf("step %d (%s) rolled back after %d rows", def.number, def.label, step.Attempted), nil, txErr)
			return run, fmt.Errorf("step %d (%s) failed: %w", def.number, def.label, txErr)
		}

		now := time.Now().UTC()
		step.CommittedAt = &now
		if err := db.Create(&step).Error; err != nil {
			return run, err
		}
		run.Steps = append(run.Steps, step)

		logger.WithFields(logrus.Fields{
			"module":         "SettlementClassifier",
			"business_id":    opts.BusinessId,
			"correlation_id": cid,
			"step":           def.number,
			"label":          def.label,
			"attempted":      step.Attempted,
			"classified":     step.Classified,
			"skipped":        step.Skipped,
			"errored":        step.Errored,
		}).Info("classification step committed")
	}

	if opts.BatchId != 0 {
		if err := models.MarkBatchClassified(db, opts.BusinessId, opts.BatchId, time.Now().UTC()); err != nil {
			return run, err
		}
	}

	if err := run.Finish(db, models.RunStatusSucceeded); err != nil {
		return run, err
	}

	logger.WithFields(logrus.Fields{
		"module":         "SettlementClassifier",
		"business_id":    opts.BusinessId,
		"correlation_id": cid,
		"snapshot_size":  len(snapshot),
		"classified":     run.TotalClassified(),
	}).Info("classification run completed")
	return run, nil
}

// classifyTitle writes the method label, guarded so an already-classified
// title is never overwritten even if the in-memory bookkeeping and the
// database disagree.
func classifyTitle(tx *gorm.DB, rc *runContext, step *models.ClassificationRunStep, titleId int, method models.SettlementMethod, settledAt *time.Time) error {
	if !rc.inScope(titleId) {
		step.Skipped++
		return nil
	}
	updates := map[string]interface{}{"settlement_method": method}
	if settledAt != nil {
		updates["settlement_date"] = *settledAt
	}
	q := tx.Model(&models.Title{}).
		Where("business_id = ? AND id = ? AND settled = 1", rc.businessId, titleId)
	if rc.relabelCatchAll {
		q = q.Where("(settlement_method IS NULL OR settlement_method = ?)", models.SettlementMethodExternalSystem)
	} else {
		q = q.Where("settlement_method IS NULL")
	}
	res := q.Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		step.Skipped++
		return nil
	}
	rc.classified[titleId] = true
	step.Classified++
	return nil
}

// --- step 1: bank-return item with a direct title link ---

func stepBankReturnDirect(tx *gorm.DB, rc *runContext, step *models.ClassificationRunStep) error {
	remaining := rc.remaining()
	if len(remaining) == 0 {
		return nil
	}
	var items []models.BankReturnItem
	err := tx.Where("business_id = ? AND title_id IN ? AND occurrence_code IN ?",
		rc.businessId, remaining, liquidationCodes()).
		Order("id").Find(&items).Error
	if err != nil {
		return err
	}
	for _, item := range items {
		step.Attempted++
		at := item.OccurrenceDate
		if err := classifyTitle(tx, rc, step, *item.TitleId, models.SettlementMethodBankReturnDirect, &at); err != nil {
			return err
		}
	}
	return nil
}

// --- step 2: bank-return item resolved by document+installment ---

func stepBankReturnDocument(tx *gorm.DB, rc *runContext, step *models.ClassificationRunStep) error {
	var items []models.BankReturnItem
	err := tx.Where("business_id = ? AND title_id IS NULL AND occurrence_code IN ? AND document_number_hint <> ''",
		rc.businessId, liquidationCodes()).
		Order("id").Find(&items).Error
	if err != nil {
		return err
	}
	for _, item := range items {
		step.Attempted++
		candidates, err := models.FindTitlesByDocument(tx, rc.businessId, item.DocumentNumberHint, item.InstallmentHint)
		if err != nil {
			return err
		}
		scoped := filterToScope(candidates, rc)
		if len(scoped) != 1 {
			// Zero candidates or duplicate document numbers: left for the
			// next run or manual review, never guessed at.
			step.Skipped++
			continue
		}
		at := item.OccurrenceDate
		if err := classifyTitle(tx, rc, step, scoped[0], models.SettlementMethodBankReturnDocument, &at); err != nil {
			return err
		}
		// Backfill the link so unwind-by-batch can find this title. Marked
		// backfilled so unwind knows it was derived, not bank-provided.
		if err := tx.Model(&models.BankReturnItem{}).
			Where("id = ?", item.ID).
			Updates(map[string]interface{}{"title_id": scoped[0], "title_id_backfilled": true}).Error; err != nil {
			return err
		}
	}
	return nil
}

// --- step 3: external-status mirror already flags a bank-return payment ---

func stepBankReturnStatus(tx *gorm.DB, rc *runContext, step *models.ClassificationRunStep) error {
	remaining := rc.remaining()
	if len(remaining) == 0 {
		return nil
	}
	var ids []int
	err := tx.Model(&models.Title{}).
		Where("business_id = ? AND id IN ? AND external_status = ?",
			rc.businessId, remaining, models.ExternalStatusPaidBankReturn).
		Order("id").Pluck("id", &ids).Error
	if err != nil {
		return err
	}
	for _, id := range ids {
		step.Attempted++
		if err := classifyTitle(tx, rc, step, id, models.SettlementMethodBankReturnStatus, nil); err != nil {
			return err
		}
	}
	return nil
}

// --- step 4: spreadsheet confirmations by document+installment ---

func stepSpreadsheet(tx *gorm.DB, rc *runContext, step *models.ClassificationRunStep) error {
	var rows []models.SpreadsheetSettlement
	err := tx.Where("business_id = ? AND status = ?", rc.businessId, models.EvidenceStatusSuccess).
		Order("id").Find(&rows).Error
	if err != nil {
		return err
	}
	for _, row := range rows {
		step.Attempted++
		candidates, err := models.FindTitlesByDocument(tx, rc.businessId, row.DocumentNumber, row.Installment)
		if err != nil {
			return err
		}
		scoped := filterToScope(candidates, rc)
		if len(scoped) != 1 {
			step.Skipped++
			continue
		}
		at := row.SettlementDate
		if err := classifyTitle(tx, rc, step, scoped[0], models.SettlementMethodSpreadsheet, &at); err != nil {
			return err
		}
		if err := tx.Model(&models.SpreadsheetSettlement{}).
			Where("id = ?", row.ID).Update("title_id", scoped[0]).Error; err != nil {
			return err
		}
	}
	return nil
}

// --- step 5: receipts by external line id, then document+installment ---

func stepReceipt(tx *gorm.DB, rc *runContext, step *models.ClassificationRunStep) error {
	var rows []models.ReceiptSettlement
	err := tx.Where("business_id = ? AND status = ?", rc.businessId, models.EvidenceStatusSuccess).
		Order("id").Find(&rows).Error
	if err != nil {
		return err
	}
	for _, row := range rows {
		step.Attempted++

		titleId := 0
		if row.ExternalLineId != "" {
			title, err := models.FindTitleByExternalLineId(tx, rc.businessId, row.ExternalLineId)
			if err != nil {
				return err
			}
			if title != nil {
				titleId = title.ID
			}
		}
		if titleId == 0 && row.DocumentNumberHint != "" {
			candidates, err := models.FindTitlesByDocument(tx, rc.businessId, row.DocumentNumberHint, row.InstallmentHint)
			if err != nil {
				return err
			}
			scoped := filterToScope(candidates, rc)
			if len(scoped) == 1 {
				titleId = scoped[0]
			}
		}
		if titleId == 0 {
			step.Skipped++
			continue
		}
		if err := classifyTitle(tx, rc, step, titleId, models.SettlementMethodReceipt, nil); err != nil {
			return err
		}
		if err := tx.Model(&models.ReceiptSettlement{}).
			Where("id = ?", row.ID).Update("title_id", titleId).Error; err != nil {
			return err
		}
	}
	return nil
}

// --- step 6: statement line, legacy direct link, approved ---

func stepStatementDirect(tx *gorm.DB, rc *runContext, step *models.ClassificationRunStep) error {
	remaining := rc.remaining()
	if len(remaining) == 0 {
		return nil
	}
	var lines []models.BankStatementLine
	err := tx.Where("business_id = ? AND match_status = ? AND title_id IN ?",
		rc.businessId, models.MatchStatusApproved, remaining).
		Order("id").Find(&lines).Error
	if err != nil {
		return err
	}
	for _, line := range lines {
		step.Attempted++
		at := line.TransactionDate
		if err := classifyTitle(tx, rc, step, *line.TitleId, models.SettlementMethodStatementDirect, &at); err != nil {
			return err
		}
	}
	return nil
}

// --- step 7: statement line via conciliated reconciliation link ---

func stepStatementLink(tx *gorm.DB, rc *runContext, step *models.ClassificationRunStep) error {
	remaining := rc.remaining()
	if len(remaining) == 0 {
		return nil
	}
	var links []models.ReconciliationLink
	err := tx.Where("business_id = ? AND status = ? AND title_id IN ?",
		rc.businessId, models.LinkStatusConciliated, remaining).
		Order("id").Find(&links).Error
	if err != nil {
		return err
	}
	for _, link := range links {
		step.Attempted++
		if err := classifyTitle(tx, rc, step, link.TitleId, models.SettlementMethodStatementLink, nil); err != nil {
			return err
		}
	}
	return nil
}

// --- step 8: catch-all, external system confirmed by unattributable means ---

func stepCatchAll(tx *gorm.DB, rc *runContext, step *models.ClassificationRunStep) error {
	for _, id := range rc.remaining() {
		step.Attempted++
		if err := classifyTitle(tx, rc, step, id, models.SettlementMethodExternalSystem, nil); err != nil {
			return err
		}
	}
	return nil
}

// --- helpers ---

func liquidationCodes() []string {
	return []string{
		models.OccurrenceLiquidated,
		models.OccurrenceLiquidatedDoc,
		models.OccurrenceLiquidatedLate,
		models.OccurrenceLiquidatedCash,
		models.OccurrenceLiquidatedPost,
	}
}

// filterToScope keeps only candidates inside the run's unclassified snapshot.
func filterToScope(candidates []models.Title, rc *runContext) []int {
	out := make([]int, 0, len(candidates))
	for _, t := range candidates {
		if rc.inScope(t.ID) {
			out = append(out, t.ID)
		}
	}
	return out
}

// batchTitleIds collects the titles a bank-return batch can touch: items'
// direct links plus unambiguous document+installment resolutions.
func batchTitleIds(db *gorm.DB, businessId string, batchId int) ([]int, error) {
	var items []models.BankReturnItem
	err := db.Where("business_id = ? AND batch_id = ?", businessId, batchId).Find(&items).Error
	if err != nil {
		return nil, err
	}
	seen := map[int]bool{}
	var ids []int
	for _, item := range items {
		if item.TitleId != nil && *item.TitleId != 0 {
			if !seen[*item.TitleId] {
				seen[*item.TitleId] = true
				ids = append(ids, *item.TitleId)
			}
			continue
		}
		if item.DocumentNumberHint == "" {
			continue
		}
		candidates, err := models.FindTitlesByDocument(db, businessId, item.DocumentNumberHint, item.InstallmentHint)
		if err != nil {
			return nil, err
		}
		if len(candidates) == 1 && !seen[candidates[0].ID] {
			seen[candidates[0].ID] = true
			ids = append(ids, candidates[0].ID)
		}
	}
	return ids, nil
}

// intersectIds returns b when a is empty, otherwise the intersection.
func intersectIds(a, b []int) []int {
	if len(a) == 0 {
		return b
	}
	inA := make(map[int]bool, len(a))
	for _, id := range a {
		inA[id] = true
	}
	var out []int
	for _, id := range b {
		if inA[id] {
			out = append(out, id)
		}
	}
	return out
}
