package workflow_test

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/mmdatafocus/settlement_backend/config"
	"github.com/mmdatafocus/settlement_backend/models"
	"github.com/mmdatafocus/settlement_backend/workflow"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// End-to-end regressions over a real MySQL. Covered here rather than with
// mocks because the engine's guarantees live in SQL semantics: guarded
// updates, per-step transactions and the unique keys on evidence tables.

func setupSettlementDB(t *testing.T) *gorm.DB {
	t.Helper()
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "settlement_test")

	config.ConnectDatabaseWithRetry()
	models.MigrateTable()
	return config.GetDB()
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.ErrorLevel)
	return l
}

func seedTitle(t *testing.T, db *gorm.DB, title *models.Title) *models.Title {
	t.Helper()
	if title.Direction == "" {
		title.Direction = models.TitleDirectionReceivable
	}
	if err := db.Create(title).Error; err != nil {
		t.Fatalf("seed title: %v", err)
	}
	return title
}

func fetchTitle(t *testing.T, db *gorm.DB, businessId string, id int) *models.Title {
	t.Helper()
	title, err := models.GetTitle(db, businessId, id)
	if err != nil {
		t.Fatalf("fetch title %d: %v", id, err)
	}
	return title
}

func methodOf(t *testing.T, db *gorm.DB, businessId string, id int) string {
	t.Helper()
	title := fetchTitle(t, db, businessId, id)
	if title.SettlementMethod == nil {
		return ""
	}
	return string(*title.SettlementMethod)
}

func TestClassificationPriorityAndIdempotence(t *testing.T) {
	db := setupSettlementDB(t)
	logger := quietLogger()
	bid := "biz-priority"
	due := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)

	// Liquidated via bank return AND present in a spreadsheet: the return
	// channel must win.
	contested := seedTitle(t, db, &models.Title{
		BusinessId: bid, DocumentNumber: "DOC-1", Installment: "1",
		Amount: decimal.NewFromInt(100), DueDate: due, Settled: true,
	})
	// Spreadsheet only.
	sheetOnly := seedTitle(t, db, &models.Title{
		BusinessId: bid, DocumentNumber: "DOC-2", Installment: "1",
		Amount: decimal.NewFromInt(200), DueDate: due, Settled: true,
	})
	// Settled with no evidence anywhere: catch-all.
	orphan := seedTitle(t, db, &models.Title{
		BusinessId: bid, DocumentNumber: "DOC-3", Installment: "1",
		Amount: decimal.NewFromInt(300), DueDate: due, Settled: true,
	})

	_, err := models.RegisterBankReturnBatch(db, bid, "ret.txt", "hash-priority", []models.NewBankReturnItem{
		{OccurrenceCode: models.OccurrenceLiquidated, TitleId: &contested.ID,
			Amount: decimal.NewFromInt(100), OccurrenceDate: due},
	})
	if err != nil {
		t.Fatalf("register batch: %v", err)
	}
	for _, doc := range []string{"DOC-1", "DOC-2"} {
		row := models.SpreadsheetSettlement{
			BusinessId: bid, DocumentNumber: doc, Installment: "1",
			Amount: decimal.NewFromInt(100), SettlementDate: due,
			Status: models.EvidenceStatusSuccess, SourceFile: "sheet.xlsx",
		}
		if err := db.Create(&row).Error; err != nil {
			t.Fatalf("seed spreadsheet row: %v", err)
		}
	}

	run, err := workflow.RunSettlementClassification(context.Background(), db, logger,
		workflow.ClassifyOptions{BusinessId: bid})
	if err != nil {
		t.Fatalf("classification: %v", err)
	}
	if run.Status != models.RunStatusSucceeded {
		t.Fatalf("run status = %s", run.Status)
	}
	if run.SnapshotSize != 3 || run.TotalClassified() != 3 {
		t.Fatalf("snapshot=%d classified=%d, want 3/3", run.SnapshotSize, run.TotalClassified())
	}

	if got := methodOf(t, db, bid, contested.ID); got != string(models.SettlementMethodBankReturnDirect) {
		t.Errorf("contested title method = %q, want bank-return-direct", got)
	}
	if got := methodOf(t, db, bid, sheetOnly.ID); got != string(models.SettlementMethodSpreadsheet) {
		t.Errorf("spreadsheet title method = %q, want spreadsheet", got)
	}
	if got := methodOf(t, db, bid, orphan.ID); got != string(models.SettlementMethodExternalSystem) {
		t.Errorf("orphan title method = %q, want direct-from-external-system", got)
	}

	// One persisted row per step: finishing the run must not re-insert the
	// step records it already committed.
	var stepRows int64
	if err := db.Model(&models.ClassificationRunStep{}).
		Where("run_id = ?", run.ID).Count(&stepRows).Error; err != nil {
		t.Fatalf("count step rows: %v", err)
	}
	if int(stepRows) != len(run.Steps) {
		t.Errorf("persisted %d step rows for run %d, want %d", stepRows, run.ID, len(run.Steps))
	}
	for _, s := range run.Steps {
		if s.ID == 0 {
			t.Errorf("step %d (%s) kept a zero id after persisting", s.StepNumber, s.Label)
		}
	}

	// Second run with no new evidence: zero additional writes.
	rerun, err := workflow.RunSettlementClassification(context.Background(), db, logger,
		workflow.ClassifyOptions{BusinessId: bid})
	if err != nil {
		t.Fatalf("second classification: %v", err)
	}
	if rerun.SnapshotSize != 0 || rerun.TotalClassified() != 0 {
		t.Errorf("second run snapshot=%d classified=%d, want 0/0",
			rerun.SnapshotSize, rerun.TotalClassified())
	}
}

func TestClassificationInstallmentNormalization(t *testing.T) {
	db := setupSettlementDB(t)
	logger := quietLogger()
	bid := "biz-installment"
	due := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	title := seedTitle(t, db, &models.Title{
		BusinessId: bid, DocumentNumber: "DOC-9", Installment: "1",
		Amount: decimal.NewFromInt(50), DueDate: due, Settled: true,
	})

	// The bank writes the installment as "01"; no direct link.
	_, err := models.RegisterBankReturnBatch(db, bid, "ret.txt", "hash-installment", []models.NewBankReturnItem{
		{OccurrenceCode: models.OccurrenceLiquidatedDoc, DocumentNumberHint: "DOC-9",
			InstallmentHint: "01", Amount: decimal.NewFromInt(50), OccurrenceDate: due},
	})
	if err != nil {
		t.Fatalf("register batch: %v", err)
	}

	if _, err := workflow.RunSettlementClassification(context.Background(), db, logger,
		workflow.ClassifyOptions{BusinessId: bid}); err != nil {
		t.Fatalf("classification: %v", err)
	}

	if got := methodOf(t, db, bid, title.ID); got != string(models.SettlementMethodBankReturnDocument) {
		t.Errorf("title method = %q, want bank-return-document", got)
	}

	// Resolution backfills the item's direct link for later unwinds.
	var item models.BankReturnItem
	if err := db.Where("business_id = ? AND document_number_hint = ?", bid, "DOC-9").First(&item).Error; err != nil {
		t.Fatalf("fetch item: %v", err)
	}
	if item.TitleId == nil || *item.TitleId != title.ID {
		t.Errorf("item title link not backfilled: %v", item.TitleId)
	}
	if !item.TitleIdBackfilled {
		t.Error("backfilled link not marked as derived")
	}
}

func TestSplitSettlementAcrossStatementLines(t *testing.T) {
	db := setupSettlementDB(t)
	logger := quietLogger()
	bid := "biz-split"
	day := time.Date(2026, 4, 20, 0, 0, 0, 0, time.UTC)

	title := seedTitle(t, db, &models.Title{
		BusinessId: bid, DocumentNumber: "DOC-SPLIT", Installment: "1",
		Amount: decimal.NewFromInt(100), DueDate: day, Settled: true,
	})

	parts := []decimal.Decimal{decimal.NewFromInt(60), decimal.NewFromInt(40)}
	for _, amount := range parts {
		line := models.BankStatementLine{
			BusinessId: bid, Amount: amount, TransactionDate: day,
			MatchStatus: models.MatchStatusMatched,
		}
		if err := db.Create(&line).Error; err != nil {
			t.Fatalf("seed line: %v", err)
		}
		link, err := models.LinkStatementLineToTitle(db, bid, line.ID, title.ID, amount)
		if err != nil {
			t.Fatalf("link line: %v", err)
		}
		if err := models.ApproveReconciliationLink(db, bid, link.ID); err != nil {
			t.Fatalf("approve link: %v", err)
		}
	}

	sum, err := models.SumLinkedAmountForTitle(db, bid, title.ID)
	if err != nil {
		t.Fatalf("sum links: %v", err)
	}
	if !sum.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("linked sum = %s, want 100", sum)
	}

	if _, err := workflow.RunSettlementClassification(context.Background(), db, logger,
		workflow.ClassifyOptions{BusinessId: bid}); err != nil {
		t.Fatalf("classification: %v", err)
	}
	if got := methodOf(t, db, bid, title.ID); got != string(models.SettlementMethodStatementLink) {
		t.Errorf("title method = %q, want bank-statement-link", got)
	}

	// Links summing exactly to the title amount are a clean split, not
	// over-attribution.
	findings, _, err := workflow.RunConsistencyAudit(context.Background(), db, logger,
		bid, workflow.AuditOptions{})
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	for _, f := range findings {
		if f.CheckType == workflow.CheckLinkSumExceedsAmount {
			t.Errorf("split settlement flagged as over-attribution: %+v", f)
		}
	}

	// Linking the same line twice is idempotent, not an error.
	var firstLink models.ReconciliationLink
	if err := db.Where("business_id = ? AND title_id = ?", bid, title.ID).First(&firstLink).Error; err != nil {
		t.Fatalf("fetch link: %v", err)
	}
	again, err := models.LinkStatementLineToTitle(db, bid, firstLink.BankStatementLineId, title.ID, firstLink.Amount)
	if err != nil {
		t.Fatalf("re-link: %v", err)
	}
	if again.ID != firstLink.ID {
		t.Errorf("re-link created a second row: %d vs %d", again.ID, firstLink.ID)
	}
}

func TestUnwindRoundTrip(t *testing.T) {
	db := setupSettlementDB(t)
	logger := quietLogger()
	ctx := context.Background()
	bid := "biz-unwind"
	due := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	title := seedTitle(t, db, &models.Title{
		BusinessId: bid, DocumentNumber: "DOC-U", Installment: "1",
		Amount: decimal.NewFromInt(75), DueDate: due, Settled: true,
		ExternalStatus: models.ExternalStatusPaidBankReturn,
	})
	batch, err := models.RegisterBankReturnBatch(db, bid, "ret.txt", "hash-unwind", []models.NewBankReturnItem{
		{OccurrenceCode: models.OccurrenceLiquidated, TitleId: &title.ID,
			Amount: decimal.NewFromInt(75), OccurrenceDate: due},
	})
	if err != nil {
		t.Fatalf("register batch: %v", err)
	}

	if _, err := workflow.RunSettlementClassification(ctx, db, logger,
		workflow.ClassifyOptions{BusinessId: bid, BatchId: batch.ID}); err != nil {
		t.Fatalf("classification: %v", err)
	}
	wantMethod := string(models.SettlementMethodBankReturnDirect)
	if got := methodOf(t, db, bid, title.ID); got != wantMethod {
		t.Fatalf("title method = %q, want %q", got, wantMethod)
	}

	// The batch precondition now refuses a rerun.
	_, err = workflow.RunSettlementClassification(ctx, db, logger,
		workflow.ClassifyOptions{BusinessId: bid, BatchId: batch.ID})
	if err != workflow.ErrBatchAlreadyClassified {
		t.Fatalf("rerun err = %v, want ErrBatchAlreadyClassified", err)
	}

	result, err := workflow.RunReconciliationUnwind(ctx, db, logger, workflow.UnwindRequest{
		BusinessId: bid, BatchId: batch.ID,
	})
	if err != nil {
		t.Fatalf("unwind: %v", err)
	}
	if result.TitlesReverted != 1 {
		t.Fatalf("titles reverted = %d, want 1", result.TitlesReverted)
	}

	after := fetchTitle(t, db, bid, title.ID)
	if after.Settled || after.SettlementMethod != nil || after.SettlementDate != nil {
		t.Errorf("title not fully reverted: %+v", after)
	}
	if after.ExternalStatus != models.ExternalStatusNotPaid {
		t.Errorf("external status = %s, want not_paid", after.ExternalStatus)
	}
	// Evidence survives; only the back-reference view changes via the batch.
	var itemCount int64
	if err := db.Model(&models.BankReturnItem{}).Where("business_id = ?", bid).Count(&itemCount).Error; err != nil {
		t.Fatalf("count items: %v", err)
	}
	if itemCount != 1 {
		t.Errorf("bank return items = %d, want 1 (evidence is never deleted)", itemCount)
	}

	// Upstream settles the title again; reclassification restores the label.
	if err := db.Model(&models.Title{}).Where("id = ?", title.ID).Update("settled", true).Error; err != nil {
		t.Fatalf("re-settle: %v", err)
	}
	if _, err := workflow.RunSettlementClassification(ctx, db, logger,
		workflow.ClassifyOptions{BusinessId: bid, BatchId: batch.ID, Reclassify: true}); err != nil {
		t.Fatalf("reclassification: %v", err)
	}
	if got := methodOf(t, db, bid, title.ID); got != wantMethod {
		t.Errorf("reclassified method = %q, want %q", got, wantMethod)
	}
}

func TestConsistencyAuditFindings(t *testing.T) {
	db := setupSettlementDB(t)
	logger := quietLogger()
	bid := "biz-audit"
	due := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)

	// settled=1 but the accounting mirror says reversed.
	contradiction := seedTitle(t, db, &models.Title{
		BusinessId: bid, DocumentNumber: "A-1", Installment: "1",
		Amount: decimal.NewFromInt(10), DueDate: due, Settled: true,
		ExternalStatus: models.ExternalStatusReversed,
	})
	method := models.SettlementMethodReceipt
	if err := db.Model(contradiction).Update("settlement_method", method).Error; err != nil {
		t.Fatalf("label contradiction title: %v", err)
	}

	// settled=1 with no method.
	stuck := seedTitle(t, db, &models.Title{
		BusinessId: bid, DocumentNumber: "A-2", Installment: "1",
		Amount: decimal.NewFromInt(20), DueDate: due, Settled: true,
		ExternalStatus: models.ExternalStatusPaid,
	})

	// Conciliated links exceeding the title amount beyond tolerance.
	over := seedTitle(t, db, &models.Title{
		BusinessId: bid, DocumentNumber: "A-3", Installment: "1",
		Amount: decimal.NewFromInt(30), DueDate: due,
		ExternalStatus: models.ExternalStatusPaid,
	})
	line := models.BankStatementLine{BusinessId: bid, Amount: decimal.NewFromInt(31), TransactionDate: due}
	if err := db.Create(&line).Error; err != nil {
		t.Fatalf("seed line: %v", err)
	}
	link, err := models.LinkStatementLineToTitle(db, bid, line.ID, over.ID, decimal.NewFromInt(31))
	if err != nil {
		t.Fatalf("link: %v", err)
	}
	if err := models.ApproveReconciliationLink(db, bid, link.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}

	findings, _, err := workflow.RunConsistencyAudit(context.Background(), db, logger, bid,
		workflow.AuditOptions{Persist: true})
	if err != nil {
		t.Fatalf("audit: %v", err)
	}

	byCheck := map[string][]int{}
	for _, f := range findings {
		byCheck[f.CheckType] = append(byCheck[f.CheckType], f.EntityId)
	}
	if ids := byCheck[workflow.CheckSettledStatusContradiction]; len(ids) != 1 || ids[0] != contradiction.ID {
		t.Errorf("contradiction findings = %v, want [%d]", ids, contradiction.ID)
	}
	if ids := byCheck[workflow.CheckUnclassifiedSettledTitle]; len(ids) != 1 || ids[0] != stuck.ID {
		t.Errorf("unclassified findings = %v, want [%d]", ids, stuck.ID)
	}
	if ids := byCheck[workflow.CheckLinkSumExceedsAmount]; len(ids) != 1 || ids[0] != over.ID {
		t.Errorf("link sum findings = %v, want [%d]", ids, over.ID)
	}

	// Audit never repairs.
	if got := fetchTitle(t, db, bid, contradiction.ID); !got.Settled {
		t.Error("audit must not modify audited titles")
	}

	var persisted int64
	if err := db.Model(&models.ConsistencyReport{}).Where("business_id = ?", bid).Count(&persisted).Error; err != nil {
		t.Fatalf("count reports: %v", err)
	}
	if persisted != int64(len(findings)) {
		t.Errorf("persisted reports = %d, want %d", persisted, len(findings))
	}
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("settlement-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=settlement_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
