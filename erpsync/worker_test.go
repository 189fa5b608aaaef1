package erpsync

import (
	"testing"

	"github.com/mmdatafocus/settlement_backend/models"
	"github.com/shopspring/decimal"
)

func TestDecodeConfirmation(t *testing.T) {
	payload := []byte(`{
		"message_id": "m-1",
		"business_id": "biz-1",
		"external_line_id": "EXT-42",
		"document_number": "DOC-7",
		"installment": "01",
		"status": "paid",
		"amount": "150.25",
		"receipt_url": "https://erp.example/receipts/42.pdf"
	}`)

	c, err := DecodeConfirmation(payload)
	if err != nil {
		t.Fatalf("DecodeConfirmation: %v", err)
	}
	if c.MessageId != "m-1" || c.BusinessId != "biz-1" {
		t.Errorf("identity fields wrong: %+v", c)
	}
	if c.ExternalLineId != "EXT-42" || c.DocumentNumber != "DOC-7" || c.Installment != "01" {
		t.Errorf("resolution hints wrong: %+v", c)
	}
	if !c.Amount.Equal(decimal.RequireFromString("150.25")) {
		t.Errorf("amount = %s, want 150.25", c.Amount)
	}
	if c.ReceiptUrl == "" {
		t.Error("receipt url lost in decode")
	}
}

func TestDecodeConfirmationRejectsGarbage(t *testing.T) {
	if _, err := DecodeConfirmation([]byte("not json")); err == nil {
		t.Error("expected error for unparseable payload")
	}
}

func TestMapStatus(t *testing.T) {
	valid := map[string]models.ExternalStatus{
		"paid":             models.ExternalStatusPaid,
		"paid_bank_return": models.ExternalStatusPaidBankReturn,
		"not_paid":         models.ExternalStatusNotPaid,
		"reversed":         models.ExternalStatusReversed,
	}
	for raw, want := range valid {
		got, err := mapStatus(raw)
		if err != nil {
			t.Errorf("mapStatus(%q): %v", raw, err)
			continue
		}
		if got != want {
			t.Errorf("mapStatus(%q) = %s, want %s", raw, got, want)
		}
	}

	for _, raw := range []string{"", "PAID", "settled", "unknown"} {
		if _, err := mapStatus(raw); err == nil {
			t.Errorf("mapStatus(%q) should fail", raw)
		}
	}
}

func TestReceiptStatus(t *testing.T) {
	if got := receiptStatus(models.ExternalStatusPaid); got != models.EvidenceStatusSuccess {
		t.Errorf("paid receipt status = %s", got)
	}
	if got := receiptStatus(models.ExternalStatusReversed); got != models.EvidenceStatusFailed {
		t.Errorf("reversed receipt status = %s", got)
	}
}
