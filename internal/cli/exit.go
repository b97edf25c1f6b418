package cli

import (
	"errors"

	"github.com/gookit/color"

	"github.com/owen-raum/dpd-tracking/internal/core/domain"
)

// Process exit codes.
const (
	ExitOK                 = 0
	ExitFailure            = 1
	ExitNotFound           = 2
	ExitPostalCodeMismatch = 3
	ExitUnsupportedCountry = 4
)

// ExitCode maps an error onto the exit code scripts rely on.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, domain.ErrNotFound):
		return ExitNotFound
	case errors.Is(err, domain.ErrPostalCodeMismatch):
		return ExitPostalCodeMismatch
	case errors.Is(err, domain.ErrUnsupportedCountry):
		return ExitUnsupportedCountry
	default:
		return ExitFailure
	}
}

// FormatError renders err as the single stderr line shown to the user.
func FormatError(err error) string {
	return color.Red.Sprint("❌ Error: ") + err.Error()
}
