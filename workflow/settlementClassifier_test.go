package workflow

import (
	"testing"

	"github.com/mmdatafocus/settlement_backend/models"
)

// The waterfall order is a correctness property, not a style choice: a title
// must never be attributed to a weaker channel when stronger evidence exists.
func TestWaterfallStepOrder(t *testing.T) {
	want := []models.SettlementMethod{
		models.SettlementMethodBankReturnDirect,
		models.SettlementMethodBankReturnDocument,
		models.SettlementMethodBankReturnStatus,
		models.SettlementMethodSpreadsheet,
		models.SettlementMethodReceipt,
		models.SettlementMethodStatementDirect,
		models.SettlementMethodStatementLink,
		models.SettlementMethodExternalSystem,
	}

	steps := waterfallSteps()
	if len(steps) != len(want) {
		t.Fatalf("got %d steps, want %d", len(steps), len(want))
	}
	for i, def := range steps {
		if def.number != i+1 {
			t.Errorf("step %d has number %d", i, def.number)
		}
		if def.label != want[i] {
			t.Errorf("step %d label = %s, want %s", def.number, def.label, want[i])
		}
		if def.run == nil {
			t.Errorf("step %d has no run func", def.number)
		}
	}
}

func TestRunContextScope(t *testing.T) {
	rc := newRunContext("biz-1", []int{10, 20, 30})

	if !rc.inScope(10) {
		t.Error("snapshot member should be in scope")
	}
	if rc.inScope(99) {
		t.Error("id outside the snapshot must never be in scope")
	}

	rc.classified[20] = true
	if rc.inScope(20) {
		t.Error("classified id must leave scope for later steps")
	}

	got := rc.remaining()
	if len(got) != 2 || got[0] != 10 || got[1] != 30 {
		t.Errorf("remaining = %v, want [10 30]", got)
	}
}

func TestRunContextEmptySnapshot(t *testing.T) {
	rc := newRunContext("biz-1", nil)
	if len(rc.remaining()) != 0 {
		t.Errorf("remaining on empty snapshot = %v", rc.remaining())
	}
	if rc.inScope(1) {
		t.Error("nothing is in scope of an empty snapshot")
	}
}

func TestIntersectIds(t *testing.T) {
	cases := []struct {
		name string
		a, b []int
		want []int
	}{
		{"empty a passes b through", nil, []int{1, 2}, []int{1, 2}},
		{"intersection keeps b order", []int{3, 1}, []int{1, 2, 3}, []int{1, 3}},
		{"disjoint", []int{5}, []int{1, 2}, nil},
		{"empty b", []int{1}, nil, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := intersectIds(tc.a, tc.b)
			if len(got) != len(tc.want) {
				t.Fatalf("intersectIds(%v, %v) = %v, want %v", tc.a, tc.b, got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("intersectIds(%v, %v) = %v, want %v", tc.a, tc.b, got, tc.want)
				}
			}
		})
	}
}

func TestLiquidationCodes(t *testing.T) {
	for _, code := range liquidationCodes() {
		if !models.OccurrenceSettles(code) {
			t.Errorf("code %s is queried as liquidating but OccurrenceSettles disagrees", code)
		}
	}
	for _, code := range []string{models.OccurrenceEntryConfirmed, models.OccurrenceEntryRejected, models.OccurrenceCancelled} {
		for _, liq := range liquidationCodes() {
			if code == liq {
				t.Errorf("non-liquidating code %s appears in liquidationCodes", code)
			}
		}
	}
}
