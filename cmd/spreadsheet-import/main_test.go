package main

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/mmdatafocus/settlement_backend/utils"
)

func TestParseRowKeepsRawInstallment(t *testing.T) {
	row, err := parseRow("biz-1", "sheet.xlsx", 2, []string{"DOC-9", " 01 ", "150.25", "2026-04-20"})
	if err != nil {
		t.Fatalf("parseRow: %v", err)
	}
	if row.Installment != "01" {
		t.Errorf("installment = %q, want the raw trimmed cell \"01\"", row.Installment)
	}
	if !utils.SameInstallment(row.Installment, "1") {
		t.Errorf("raw installment %q does not normalize to match \"1\"", row.Installment)
	}
	if !row.Amount.Equal(decimal.RequireFromString("150.25")) {
		t.Errorf("amount = %s, want 150.25", row.Amount)
	}
}

func TestParseRowRejectsMalformed(t *testing.T) {
	cases := map[string][]string{
		"missing date column":   {"DOC-1", "1", "100"},
		"empty document number": {"", "1", "100", "2026-04-20"},
		"unparseable amount":    {"DOC-1", "1", "abc", "2026-04-20"},
		"non-positive amount":   {"DOC-1", "1", "-5", "2026-04-20"},
		"wrong date layout":     {"DOC-1", "1", "100", "20/04/2026"},
	}
	for name, c := range cases {
		if _, err := parseRow("biz-1", "sheet.xlsx", 2, c); err == nil {
			t.Errorf("parseRow accepted a row with %s: %v", name, c)
		}
	}
}
