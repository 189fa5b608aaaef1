package workflow

import "testing"

func TestMergeIds(t *testing.T) {
	got := mergeIds([]int{1, 2, 3}, []int{3, 4, 2, 5})
	want := []int{1, 2, 3, 4, 5}
	if len(got) != len(want) {
		t.Fatalf("mergeIds = %v, want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("mergeIds = %v, want %v", got, want)
		}
	}
}

// An empty id list in a NOT IN / IN clause would be invalid SQL; the guard
// substitutes an id no row can have.
func TestNeverEmpty(t *testing.T) {
	if got := neverEmpty(nil); len(got) != 1 || got[0] != -1 {
		t.Errorf("neverEmpty(nil) = %v, want [-1]", got)
	}
	if got := neverEmpty([]int{7}); len(got) != 1 || got[0] != 7 {
		t.Errorf("neverEmpty([7]) = %v, want [7]", got)
	}
}
