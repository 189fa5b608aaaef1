package models

import "testing"

func TestOccurrenceSettles(t *testing.T) {
	settling := []string{
		OccurrenceLiquidated,
		OccurrenceLiquidatedDoc,
		OccurrenceLiquidatedLate,
		OccurrenceLiquidatedCash,
		OccurrenceLiquidatedPost,
	}
	for _, code := range settling {
		if !OccurrenceSettles(code) {
			t.Errorf("OccurrenceSettles(%s) = false, want true", code)
		}
	}

	nonSettling := []string{
		OccurrenceEntryConfirmed,
		OccurrenceEntryRejected,
		OccurrenceCancelled,
		OccurrenceCancelledAuto,
		"",
		"99",
	}
	for _, code := range nonSettling {
		if OccurrenceSettles(code) {
			t.Errorf("OccurrenceSettles(%q) = true, want false", code)
		}
	}
}

func TestIsPaidVariant(t *testing.T) {
	cases := []struct {
		status ExternalStatus
		want   bool
	}{
		{ExternalStatusPaid, true},
		{ExternalStatusPaidBankReturn, true},
		{ExternalStatusNotPaid, false},
		{ExternalStatusReversed, false},
	}
	for _, tc := range cases {
		if got := tc.status.IsPaidVariant(); got != tc.want {
			t.Errorf("IsPaidVariant(%s) = %v, want %v", tc.status, got, tc.want)
		}
	}
}

func TestTitleInstallmentKey(t *testing.T) {
	a := Title{Installment: "01"}
	b := Title{Installment: "1"}
	if a.InstallmentKey() != b.InstallmentKey() {
		t.Errorf("installments 01 and 1 must share a key: %q vs %q",
			a.InstallmentKey(), b.InstallmentKey())
	}
	c := Title{Installment: "2"}
	if a.InstallmentKey() == c.InstallmentKey() {
		t.Error("installments 1 and 2 must not share a key")
	}
}
