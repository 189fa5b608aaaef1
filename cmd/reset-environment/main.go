package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/mmdatafocus/settlement_backend/config"
	"github.com/mmdatafocus/settlement_backend/models"
)

func main() {
	businessID := flag.String("business-id", "", "Required: business id")
	dryRun := flag.Bool("dry-run", true, "Show counts only (no writes)")
	confirm := flag.String("confirm", "", "Type RESET to proceed when dry-run=false")
	flag.Parse()

	if strings.TrimSpace(*businessID) == "" {
		fmt.Fprintln(os.Stderr, "--business-id is required")
		os.Exit(2)
	}
	if !*dryRun {
		if !config.AllowDestructiveReset() {
			fmt.Fprintln(os.Stderr, "reset-environment is disabled in this environment (APP_ENV=production)")
			os.Exit(2)
		}
		if strings.TrimSpace(*confirm) != "RESET" {
			fmt.Fprintln(os.Stderr, "set --confirm=RESET to proceed")
			os.Exit(2)
		}
	}

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(2)
	}

	bid := strings.TrimSpace(*businessID)

	counts, err := models.CountResetTargets(db, bid)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to count reset targets: %v\n", err)
		os.Exit(2)
	}
	fmt.Printf("titles to reset:          %d\n", counts.Titles)
	fmt.Printf("bank return batches:      %d\n", counts.BankReturnBatches)
	fmt.Printf("bank return items:        %d\n", counts.BankReturnItems)
	fmt.Printf("bank statement lines:     %d\n", counts.BankStatementLines)
	fmt.Printf("reconciliation links:     %d\n", counts.ReconciliationLinks)
	fmt.Printf("spreadsheet settlements:  %d\n", counts.SpreadsheetSettlements)
	fmt.Printf("receipt settlements:      %d\n", counts.ReceiptSettlements)
	fmt.Printf("classification runs:      %d\n", counts.ClassificationRuns)
	fmt.Printf("consistency reports:      %d\n", counts.ConsistencyReports)

	if *dryRun {
		fmt.Println("dry run; pass --dry-run=false --confirm=RESET to execute")
		return
	}

	if err := models.ResetEnvironment(db, bid); err != nil {
		fmt.Fprintf(os.Stderr, "reset failed (rolled back): %v\n", err)
		os.Exit(2)
	}
	fmt.Println("reset complete")
}
