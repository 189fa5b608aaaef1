package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mmdatafocus/settlement_backend/config"
	"github.com/mmdatafocus/settlement_backend/models"
	"github.com/mmdatafocus/settlement_backend/utils"
)

// Registers an already-parsed bank-return batch. The input is a JSON array of
// typed occurrence records (the byte layout of the bank file is the parser's
// concern, not this engine's); the raw bytes' content hash makes re-import of
// the same file a no-op.
func main() {
	businessID := flag.String("business-id", "", "Required: business id")
	file := flag.String("file", "", "Required: parsed batch (JSON) path or gs://bucket/object reference")
	flag.Parse()

	if strings.TrimSpace(*businessID) == "" || strings.TrimSpace(*file) == "" {
		fmt.Fprintln(os.Stderr, "--business-id and --file are required")
		os.Exit(2)
	}

	ref := strings.TrimSpace(*file)
	data, err := utils.FetchEvidenceFile(context.Background(), ref)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to fetch %s: %v\n", ref, err)
		os.Exit(2)
	}

	var items []models.NewBankReturnItem
	if err := json.Unmarshal(data, &items); err != nil {
		fmt.Fprintf(os.Stderr, "failed to parse batch file: %v\n", err)
		os.Exit(2)
	}
	if len(items) == 0 {
		fmt.Fprintln(os.Stderr, "batch file has no occurrence records")
		os.Exit(2)
	}

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(2)
	}

	batch, err := models.RegisterBankReturnBatch(db, strings.TrimSpace(*businessID),
		filepath.Base(ref), utils.ContentHash(data), items)
	if errors.Is(err, utils.ErrBatchAlreadyImported) {
		fmt.Println("batch already imported; nothing to do")
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "import failed (rolled back): %v\n", err)
		os.Exit(2)
	}

	settling := 0
	for _, item := range items {
		if models.OccurrenceSettles(item.OccurrenceCode) {
			settling++
		}
	}
	fmt.Printf("batch %d registered: %d occurrence(s), %d liquidating\n", batch.ID, len(items), settling)
	fmt.Printf("classify it with: classify --business-id=%s --batch-id=%d\n", *businessID, batch.ID)
}
