package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/mmdatafocus/settlement_backend/config"
	"github.com/mmdatafocus/settlement_backend/workflow"
)

func main() {
	businessID := flag.String("business-id", "", "Required: business id")
	persist := flag.Bool("persist", false, "Write findings as consistency report rows")
	asJSON := flag.Bool("json", false, "Print findings as JSON lines")
	flag.Parse()

	if strings.TrimSpace(*businessID) == "" {
		fmt.Fprintln(os.Stderr, "--business-id is required")
		os.Exit(2)
	}

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(2)
	}
	logger := config.GetLogger()

	findings, correlationId, err := workflow.RunConsistencyAudit(context.Background(), db, logger,
		strings.TrimSpace(*businessID), workflow.AuditOptions{Persist: *persist})
	if err != nil {
		fmt.Fprintf(os.Stderr, "audit failed: %v\n", err)
		os.Exit(2)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		for _, f := range findings {
			if err := enc.Encode(f); err != nil {
				fmt.Fprintf(os.Stderr, "encode finding: %v\n", err)
				os.Exit(2)
			}
		}
	} else {
		for _, f := range findings {
			fmt.Printf("[%s] %s %s#%d: %s\n", f.Severity, f.CheckType, f.EntityType, f.EntityId, f.Details)
		}
	}

	fmt.Printf("audit %s: %d finding(s)\n", correlationId, len(findings))
	if len(findings) > 0 {
		os.Exit(1)
	}
}
