package utils

import "errors"

var (
	ErrorRecordNotFound = errors.New("record not found")

	// ErrBatchAlreadyImported: the bank-return batch content hash is already
	// registered for this business (at-most-once ingestion).
	ErrBatchAlreadyImported = errors.New("bank return batch already imported")

	// ErrAmbiguousResolution: document+installment matched more than one open
	// title. Never resolved locally; left for the link store or manual review.
	ErrAmbiguousResolution = errors.New("ambiguous title resolution")
)
