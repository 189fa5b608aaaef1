package erpsync

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentConfirmation is the accounting system's push payload: one payment
// state change for one ledger line. The engine mirrors the state; it never
// pushes anything back.
type PaymentConfirmation struct {
	MessageId      string          `json:"message_id"`
	BusinessId     string          `json:"business_id"`
	ExternalLineId string          `json:"external_line_id"`
	DocumentNumber string          `json:"document_number"`
	Installment    string          `json:"installment"`
	// Status: paid | paid_bank_return | not_paid | reversed.
	Status     string          `json:"status"`
	Amount     decimal.Decimal `json:"amount"`
	ReceiptUrl string          `json:"receipt_url"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// PubSubPushEnvelope is the wire shape Google Pub/Sub push subscriptions
// deliver to HTTP endpoints.
type PubSubPushEnvelope struct {
	Message struct {
		Data       []byte            `json:"data"`
		MessageId  string            `json:"messageId"`
		Attributes map[string]string `json:"attributes"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

func DecodeConfirmation(data []byte) (PaymentConfirmation, error) {
	var c PaymentConfirmation
	err := json.Unmarshal(data, &c)
	return c, err
}
