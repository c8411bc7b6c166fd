package core

import (
	"errors"
	"fmt"

	"tcrbert-backend/internal/config"
)

var ErrInvalidInput = errors.New("invalid input")

func invalidInputf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// ValidatePredictRequest checks a trimmed epitope and its CDR3b sequences
// against the configured bounds. The first failing check is returned.
func ValidatePredictRequest(cfg *config.DataConfig, epitope string, cdr3bs []string) error {
	if n := len(epitope); n < cfg.EpitopeRange[0] || n > cfg.EpitopeRange[1] {
		return invalidInputf("Epitope length should be between %s: %d", cfg.EpitopeRangeString(), n)
	}

	if !IsValidAASeq(epitope) {
		return invalidInputf("Invalid epitope sequence: %s", epitope)
	}

	if len(cdr3bs) == 0 {
		return invalidInputf("No CDR3beta sequences provided")
	}

	if n := len(cdr3bs); n > cfg.MaxNCdr3bs {
		return invalidInputf("Too many cdr3b sequences: %d > %d", n, cfg.MaxNCdr3bs)
	}

	for _, cdr3b := range cdr3bs {
		if len(cdr3b) > cfg.MaxCdr3b {
			return invalidInputf("Too long CDR3beta: %s, %d > %d", cdr3b, len(cdr3b), cfg.MaxCdr3b)
		}
	}

	for _, cdr3b := range cdr3bs {
		if !IsValidAASeq(cdr3b) {
			return invalidInputf("Invalid CDR3beta sequence: %s", cdr3b)
		}
	}

	return nil
}
