package envrunner

import (
	"errors"
	"fmt"
)

// ErrFail classifies user-level environment failures. The host aborts the
// affected environment, not the whole run, when errors.Is matches.
var ErrFail = errors.New("envrunner: environment failure")

// Failf wraps ErrFail with a formatted description.
func Failf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrFail}, args...)...)
}
