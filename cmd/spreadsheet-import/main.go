package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mmdatafocus/settlement_backend/config"
	"github.com/mmdatafocus/settlement_backend/models"
	"github.com/mmdatafocus/settlement_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

// Expected columns: document number, installment, amount, settlement date
// (YYYY-MM-DD). The first row is a header and is skipped.
func main() {
	businessID := flag.String("business-id", "", "Required: business id")
	file := flag.String("file", "", "Required: xlsx path or gs://bucket/object reference")
	sheet := flag.String("sheet", "Sheet1", "Sheet name to read")
	dryRun := flag.Bool("dry-run", false, "Parse and report without writing rows")
	flag.Parse()

	if strings.TrimSpace(*businessID) == "" || strings.TrimSpace(*file) == "" {
		fmt.Fprintln(os.Stderr, "--business-id and --file are required")
		os.Exit(2)
	}

	ctx := context.Background()
	logger := config.GetLogger()

	data, err := utils.FetchEvidenceFile(ctx, strings.TrimSpace(*file))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to fetch %s: %v\n", *file, err)
		os.Exit(2)
	}

	xlsx, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		fmt.Fprintf(os.Stderr, "unable to open Excel file: %v\n", err)
		os.Exit(2)
	}
	defer xlsx.Close()

	rows, err := xlsx.GetRows(*sheet)
	if err != nil {
		fmt.Fprintf(os.Stderr, "unable to read sheet %s: %v\n", *sheet, err)
		os.Exit(2)
	}
	if len(rows) < 2 {
		fmt.Fprintln(os.Stderr, "sheet has no data rows")
		os.Exit(2)
	}

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(2)
	}

	bid := strings.TrimSpace(*businessID)
	sourceFile := strings.TrimSpace(*file)

	imported := 0
	malformed := 0
	for idx, row := range rows[1:] {
		rowNumber := idx + 2
		settlement, err := parseRow(bid, sourceFile, rowNumber, row)
		if err != nil {
			malformed++
			logger.WithFields(logrus.Fields{
				"file": sourceFile,
				"row":  rowNumber,
			}).Warnf("skipping malformed row: %v", err)
			continue
		}
		if *dryRun {
			imported++
			continue
		}
		if err := db.Create(settlement).Error; err != nil {
			fmt.Fprintf(os.Stderr, "row %d: insert failed: %v\n", rowNumber, err)
			os.Exit(2)
		}
		imported++
	}

	suffix := ""
	if *dryRun {
		suffix = " (dry run, nothing written)"
	}
	fmt.Printf("imported %d row(s), skipped %d malformed%s\n", imported, malformed, suffix)
	if malformed > 0 {
		os.Exit(1)
	}
}

func parseRow(businessId, sourceFile string, rowNumber int, row []string) (*models.SpreadsheetSettlement, error) {
	if len(row) < 4 {
		return nil, fmt.Errorf("expected 4 columns, got %d", len(row))
	}
	docNumber := strings.TrimSpace(row[0])
	if docNumber == "" {
		return nil, fmt.Errorf("document number is empty")
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(row[2]))
	if err != nil {
		return nil, fmt.Errorf("could not parse amount %q: %v", row[2], err)
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("amount %s is not positive", amount)
	}
	settlementDate, err := time.Parse("2006-01-02", strings.TrimSpace(row[3]))
	if err != nil {
		return nil, fmt.Errorf("could not parse settlement date %q: %v", row[3], err)
	}

	// The installment cell is stored as written; consumers compare through
	// normalization, and the raw value is what the operator can grep for.
	return &models.SpreadsheetSettlement{
		BusinessId:     businessId,
		DocumentNumber: docNumber,
		Installment:    strings.TrimSpace(row[1]),
		Amount:         amount,
		SettlementDate: settlementDate,
		Status:         models.EvidenceStatusPending,
		SourceFile:     sourceFile,
		RowNumber:      rowNumber,
	}, nil
}
