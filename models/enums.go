package models

// TitleDirection distinguishes receivables (money owed to us) from payables
// (money we owe).
type TitleDirection string

const (
	TitleDirectionReceivable TitleDirection = "Receivable"
	TitleDirectionPayable    TitleDirection = "Payable"
)

// SettlementMethod is the single authoritative answer to "how was this title
// paid". One label per waterfall step, so the audit trail records not just the
// channel but the evidence strength that won.
type SettlementMethod string

const (
	SettlementMethodBankReturnDirect   SettlementMethod = "bank-return-direct"
	SettlementMethodBankReturnDocument SettlementMethod = "bank-return-document"
	SettlementMethodBankReturnStatus   SettlementMethod = "bank-return-status"
	SettlementMethodSpreadsheet        SettlementMethod = "spreadsheet"
	SettlementMethodReceipt            SettlementMethod = "receipt"
	SettlementMethodStatementDirect    SettlementMethod = "bank-statement-direct"
	SettlementMethodStatementLink      SettlementMethod = "bank-statement-link"
	SettlementMethodExternalSystem     SettlementMethod = "direct-from-external-system"
)

// ExternalStatus mirrors the accounting system's payment state for a title.
// It is written only by erpsync (and cleared by unwind); this engine never
// pushes anything back.
type ExternalStatus string

const (
	ExternalStatusNotPaid        ExternalStatus = "not_paid"
	ExternalStatusPaid           ExternalStatus = "paid"
	ExternalStatusPaidBankReturn ExternalStatus = "paid_bank_return"
	ExternalStatusReversed       ExternalStatus = "reversed"
)

// IsPaidVariant reports whether the mirrored state claims the title is paid.
func (s ExternalStatus) IsPaidVariant() bool {
	return s == ExternalStatusPaid || s == ExternalStatusPaidBankReturn
}

// MatchStatus is the bank-statement line lifecycle: pending (never matched),
// matched (resolver proposed a title), approved (a human or the import
// confirmed the match; only approved lines settle titles).
type MatchStatus string

const (
	MatchStatusPending  MatchStatus = "pending"
	MatchStatusMatched  MatchStatus = "matched"
	MatchStatusApproved MatchStatus = "approved"
)

// LinkStatus is the reconciliation-link lifecycle. Only conciliated links are
// read by the classifier.
type LinkStatus string

const (
	LinkStatusPending     LinkStatus = "pending"
	LinkStatusConciliated LinkStatus = "conciliated"
)

// EvidenceStatus applies to spreadsheet and receipt confirmations.
type EvidenceStatus string

const (
	EvidenceStatusSuccess EvidenceStatus = "success"
	EvidenceStatusPending EvidenceStatus = "pending"
	EvidenceStatusFailed  EvidenceStatus = "failed"
)

// Bank-return occurrence codes (two-digit strings as delivered by the bank).
// Only the liquidation class participates in settlement; confirmations,
// rejections and cancellations are kept for audit but never settle anything.
const (
	OccurrenceEntryConfirmed = "02"
	OccurrenceEntryRejected  = "03"
	OccurrenceLiquidated     = "06"
	OccurrenceLiquidatedDoc  = "07"
	OccurrenceLiquidatedLate = "08"
	OccurrenceCancelled      = "09"
	OccurrenceCancelledAuto  = "10"
	OccurrenceLiquidatedCash = "15"
	OccurrenceLiquidatedPost = "17"
)

var liquidationOccurrences = map[string]bool{
	OccurrenceLiquidated:     true,
	OccurrenceLiquidatedDoc:  true,
	OccurrenceLiquidatedLate: true,
	OccurrenceLiquidatedCash: true,
	OccurrenceLiquidatedPost: true,
}

// OccurrenceSettles reports whether an occurrence code is in the liquidation
// class.
func OccurrenceSettles(code string) bool {
	return liquidationOccurrences[code]
}
