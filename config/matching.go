package config

import (
	"os"
	"strings"

	"github.com/shopspring/decimal"
)

// Matching tolerances for the amount+date resolver strategy and the link-sum
// audit check. All are env-tunable; defaults match the historical behavior.
//
// - AMOUNT_MATCH_TOLERANCE       absolute amount delta accepted (default 0.01)
// - DATE_MATCH_WINDOW_DAYS       statement-date distance accepted (default 3)
// - LINK_SUM_TOLERANCE           rounding residual allowed when summing split
//   settlement links against a title's amount (default 0.05)

func AmountMatchTolerance() decimal.Decimal {
	return decimalFromEnv("AMOUNT_MATCH_TOLERANCE", "0.01")
}

func DateMatchWindowDays() int {
	return IntFromEnv("DATE_MATCH_WINDOW_DAYS", 3)
}

func LinkSumTolerance() decimal.Decimal {
	return decimalFromEnv("LINK_SUM_TOLERANCE", "0.05")
}

func decimalFromEnv(key, def string) decimal.Decimal {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		v = def
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		d, _ = decimal.NewFromString(def)
	}
	return d
}
