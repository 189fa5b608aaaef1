package workflow

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mmdatafocus/settlement_backend/config"
	"github.com/mmdatafocus/settlement_backend/models"
	"github.com/mmdatafocus/settlement_backend/utils"
)

// Resolver criteria names, recorded on statement lines and run logs.
const (
	CriterionDirectLink     = "fk"
	CriterionDocInstallment = "doc+installment"
	CriterionAmountDate     = "amount+date"
)

// ResolveHints is the channel-independent evidence shape fed to the resolver.
type ResolveHints struct {
	BusinessId     string
	TitleId        *int
	DocumentNumber string
	Installment    string
	Amount         decimal.Decimal
	Date           time.Time
}

type TitleCandidate struct {
	Title     models.Title
	Score     decimal.Decimal
	Criterion string
}

// ResolveTitle runs the strategy chain in strict order, stopping at the first
// strategy that yields candidates. An empty result is a valid outcome, never
// an error. When doc+installment matches more than one title, all candidates
// are returned: ambiguity is for the caller to handle, never resolved here.
func ResolveTitle(db *gorm.DB, hints ResolveHints) ([]TitleCandidate, error) {
	// 1. Direct link.
	if hints.TitleId != nil && *hints.TitleId != 0 {
		title, err := models.GetTitle(db, hints.BusinessId, *hints.TitleId)
		if err != nil && !errors.Is(err, utils.ErrorRecordNotFound) {
			return nil, err
		}
		if title != nil {
			return []TitleCandidate{{
				Title:     *title,
				Score:     decimal.NewFromInt(100),
				Criterion: CriterionDirectLink,
			}}, nil
		}
		// A dangling FK falls through to the weaker strategies.
	}

	// 2. Document + normalized installment.
	if hints.DocumentNumber != "" {
		titles, err := models.FindTitlesByDocument(db, hints.BusinessId, hints.DocumentNumber, hints.Installment)
		if err != nil {
			return nil, err
		}
		if len(titles) > 0 {
			candidates := make([]TitleCandidate, 0, len(titles))
			for _, t := range titles {
				candidates = append(candidates, TitleCandidate{
					Title:     t,
					Score:     decimal.NewFromInt(90),
					Criterion: CriterionDocInstallment,
				})
			}
			return candidates, nil
		}
	}

	// 3. Amount within tolerance + date within window.
	if !hints.Amount.IsZero() && !hints.Date.IsZero() {
		return resolveByAmountDate(db, hints)
	}

	return nil, nil
}

func resolveByAmountDate(db *gorm.DB, hints ResolveHints) ([]TitleCandidate, error) {
	tolerance := config.AmountMatchTolerance()
	windowDays := config.DateMatchWindowDays()

	lo := hints.Amount.Sub(tolerance)
	hi := hints.Amount.Add(tolerance)
	from := hints.Date.AddDate(0, 0, -windowDays)
	to := hints.Date.AddDate(0, 0, windowDays)

	var titles []models.Title
	err := db.Where(
		"business_id = ? AND voided = 0 AND amount BETWEEN ? AND ? AND due_date BETWEEN ? AND ?",
		hints.BusinessId, lo, hi, from, to,
	).Find(&titles).Error
	if err != nil {
		return nil, err
	}

	candidates := make([]TitleCandidate, 0, len(titles))
	for _, t := range titles {
		score := ScoreAmountDate(hints.Amount.Sub(t.Amount).Abs(), daysApart(hints.Date, t.DueDate))
		candidates = append(candidates, TitleCandidate{
			Title:     t,
			Score:     score,
			Criterion: CriterionAmountDate,
		})
	}
	sortCandidatesByScore(candidates)
	return candidates, nil
}

// ScoreAmountDate grades an amount+date match by its tightness: an exact
// amount on the due date scores 80 (still below doc+installment's 90), each
// day of distance costs 5 and an inexact amount costs 10, floored at 10 so a
// within-tolerance match always outranks no match.
func ScoreAmountDate(amountDelta decimal.Decimal, daysApart int) decimal.Decimal {
	score := decimal.NewFromInt(80)
	score = score.Sub(decimal.NewFromInt(int64(daysApart) * 5))
	if !amountDelta.IsZero() {
		score = score.Sub(decimal.NewFromInt(10))
	}
	floor := decimal.NewFromInt(10)
	if score.LessThan(floor) {
		return floor
	}
	return score
}

func daysApart(a, b time.Time) int {
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return int(d.Hours() / 24)
}

func sortCandidatesByScore(candidates []TitleCandidate) {
	for i := 1; i < len(candidates); i++ {
		for j := i; j > 0 && candidates[j].Score.GreaterThan(candidates[j-1].Score); j-- {
			candidates[j], candidates[j-1] = candidates[j-1], candidates[j]
		}
	}
}
