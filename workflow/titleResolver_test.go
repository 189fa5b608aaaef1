package workflow

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestScoreAmountDate(t *testing.T) {
	cases := []struct {
		name  string
		delta string
		days  int
		want  int64
	}{
		{"exact amount on due date", "0", 0, 80},
		{"exact amount one day off", "0", 1, 75},
		{"exact amount at window edge", "0", 3, 65},
		{"inexact amount on due date", "0.01", 0, 70},
		{"inexact amount three days off", "0.01", 3, 55},
		{"score never drops below floor", "0.01", 30, 10},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			delta, err := decimal.NewFromString(tc.delta)
			if err != nil {
				t.Fatalf("bad delta %q: %v", tc.delta, err)
			}
			got := ScoreAmountDate(delta, tc.days)
			if !got.Equal(decimal.NewFromInt(tc.want)) {
				t.Errorf("ScoreAmountDate(%s, %d) = %s, want %d", tc.delta, tc.days, got, tc.want)
			}
		})
	}
}

func TestScoreAmountDateBelowDocInstallment(t *testing.T) {
	// The tightest possible amount+date match must still rank below a
	// document+installment resolution (score 90).
	best := ScoreAmountDate(decimal.Zero, 0)
	if !best.LessThan(decimal.NewFromInt(90)) {
		t.Errorf("best amount+date score %s should be below 90", best)
	}
}

func TestDaysApart(t *testing.T) {
	base := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		name string
		a, b time.Time
		want int
	}{
		{"same day", base, base, 0},
		{"one day later", base.AddDate(0, 0, 1), base, 1},
		{"one day earlier is symmetric", base, base.AddDate(0, 0, 1), 1},
		{"a week apart", base, base.AddDate(0, 0, 7), 7},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := daysApart(tc.a, tc.b); got != tc.want {
				t.Errorf("daysApart = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestSortCandidatesByScore(t *testing.T) {
	candidates := []TitleCandidate{
		{Score: decimal.NewFromInt(55), Criterion: CriterionAmountDate},
		{Score: decimal.NewFromInt(80), Criterion: CriterionAmountDate},
		{Score: decimal.NewFromInt(65), Criterion: CriterionAmountDate},
	}
	sortCandidatesByScore(candidates)
	for i := 1; i < len(candidates); i++ {
		if candidates[i].Score.GreaterThan(candidates[i-1].Score) {
			t.Fatalf("candidates not sorted descending at %d: %s > %s",
				i, candidates[i].Score, candidates[i-1].Score)
		}
	}
	if !candidates[0].Score.Equal(decimal.NewFromInt(80)) {
		t.Errorf("best candidate score = %s, want 80", candidates[0].Score)
	}
}
