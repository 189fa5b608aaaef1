package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/mmdatafocus/settlement_backend/config"
	"github.com/mmdatafocus/settlement_backend/models"
	"github.com/mmdatafocus/settlement_backend/workflow"
)

func main() {
	businessID := flag.String("business-id", "", "Required: business id")
	titleIDs := flag.String("title-ids", "", "Optional: comma-separated title ids to restrict the run")
	batchID := flag.Int("batch-id", 0, "Optional: restrict the run to one bank return batch")
	reclassify := flag.Bool("reclassify", false, "Skip the batch already-classified precondition (after an unwind)")
	flag.Parse()

	if strings.TrimSpace(*businessID) == "" {
		fmt.Fprintln(os.Stderr, "--business-id is required")
		os.Exit(2)
	}

	ids, err := parseIntList(*titleIDs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid --title-ids: %v\n", err)
		os.Exit(2)
	}

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(2)
	}
	logger := config.GetLogger()

	run, err := workflow.RunSettlementClassification(context.Background(), db, logger, workflow.ClassifyOptions{
		BusinessId: strings.TrimSpace(*businessID),
		TitleIds:   ids,
		BatchId:    *batchID,
		Reclassify: *reclassify,
	})
	if err != nil {
		if errors.Is(err, workflow.ErrBatchAlreadyClassified) {
			fmt.Fprintln(os.Stderr, "batch already classified; pass --reclassify to rerun")
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "classification failed: %v\n", err)
		os.Exit(2)
	}

	printRun(run)

	switch run.Status {
	case models.RunStatusSucceeded:
		os.Exit(0)
	case models.RunStatusPartial:
		os.Exit(1)
	default:
		os.Exit(2)
	}
}

func printRun(run *models.ClassificationRun) {
	fmt.Printf("run %d (%s) status=%s snapshot=%d classified=%d\n",
		run.ID, run.CorrelationId, run.Status, run.SnapshotSize, run.TotalClassified())
	for _, s := range run.Steps {
		line := fmt.Sprintf("  step %d %-28s attempted=%d classified=%d skipped=%d errored=%d",
			s.StepNumber, s.Label, s.Attempted, s.Classified, s.Skipped, s.Errored)
		if s.FailedError != nil {
			line += " FAILED: " + *s.FailedError
		}
		fmt.Println(line)
	}
}

func parseIntList(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("%q is not an integer", part)
		}
		out = append(out, n)
	}
	return out, nil
}
