package config

import (
	"os"
	"strings"
)

// RetroactiveInstallmentNormalization applies the digit-normalized installment
// comparison to titles that were already classified before the normalization
// fix shipped: when enabled, unwind+reclassify cycles may land a title on a
// different (stronger) evidence channel than its historical label.
//
// Default off: normalization applies going forward only.
//
// Set via env:
// - RETROACTIVE_INSTALLMENT_NORMALIZATION=true
func RetroactiveInstallmentNormalization() bool {
	return envBool("RETROACTIVE_INSTALLMENT_NORMALIZATION")
}

// AllowDestructiveReset guards cmd/reset-environment. Never set in production.
//
// Set via env:
// - ALLOW_DESTRUCTIVE_RESET=true
func AllowDestructiveReset() bool {
	if strings.EqualFold(strings.TrimSpace(os.Getenv("APP_ENV")), "production") {
		return false
	}
	return envBool("ALLOW_DESTRUCTIVE_RESET")
}

func envBool(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}
