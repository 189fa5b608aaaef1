package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/mmdatafocus/settlement_backend/config"
	"github.com/mmdatafocus/settlement_backend/workflow"
)

func main() {
	businessID := flag.String("business-id", "", "Required: business id")
	titleIDs := flag.String("title-ids", "", "Comma-separated title ids to revert")
	batchID := flag.Int("batch-id", 0, "Revert every title settled by this bank return batch")
	confirm := flag.String("confirm", "", "Type UNWIND to proceed")
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
	if len(ids) == 0 && *batchID == 0 {
		fmt.Fprintln(os.Stderr, "one of --title-ids or --batch-id is required")
		os.Exit(2)
	}
	if strings.TrimSpace(*confirm) != "UNWIND" {
		fmt.Fprintln(os.Stderr, "set --confirm=UNWIND to proceed (unwind is destructive to settlement state)")
		os.Exit(2)
	}

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(2)
	}
	logger := config.GetLogger()

	result, err := workflow.RunReconciliationUnwind(context.Background(), db, logger, workflow.UnwindRequest{
		BusinessId: strings.TrimSpace(*businessID),
		TitleIds:   ids,
		BatchId:    *batchID,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "unwind failed (nothing reverted): %v\n", err)
		os.Exit(2)
	}

	fmt.Printf("titles reverted:   %d\n", result.TitlesReverted)
	fmt.Printf("links deleted:     %d\n", result.LinksDeleted)
	fmt.Printf("lines reset:       %d\n", result.LinesReset)
	fmt.Printf("evidence unlinked: %d\n", result.EvidenceUnlinked)
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
