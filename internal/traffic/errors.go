package traffic

import (
	"context"
	"errors"
)

// Lookup stages. A failed lookup wraps exactly one of these.
var (
	ErrSessionLaunch      = errors.New("browser session launch failed")
	ErrNavigation         = errors.New("navigation failed")
	ErrSelectorWait       = errors.New("traffic label did not appear")
	ErrEvaluation         = errors.New("computed style evaluation failed")
	ErrLookupTimeout      = errors.New("lookup timed out")
	ErrLookupCanceled     = errors.New("lookup canceled")
	ErrBrowserUnavailable = errors.New("browser temporarily unavailable")
	ErrLookupPanic        = errors.New("browser session panicked")
)

// LookupError ties a low-level browser failure to the stage it happened in.
type LookupError struct {
	Stage error
	Err   error
}

// NewLookupError wraps err with the stage sentinel.
func NewLookupError(stage, err error) *LookupError {
	return &LookupError{Stage: stage, Err: err}
}

func (e *LookupError) Error() string {
	if e.Err == nil {
		return e.Stage.Error()
	}
	return e.Stage.Error() + ": " + e.Err.Error()
}

// Unwrap exposes both the stage and the underlying error to errors.Is/As.
func (e *LookupError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Stage}
	}
	return []error{e.Stage, e.Err}
}

// Cause returns a stable, low-cardinality label for err, used for metrics,
// logs and events. Deadline and cancellation win over the stage they hit.
func Cause(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrBrowserUnavailable):
		return "browser_unavailable"
	case errors.Is(err, ErrLookupTimeout), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrLookupCanceled), errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, ErrLookupPanic):
		return "panic"
	case errors.Is(err, ErrSessionLaunch):
		return "session_launch"
	case errors.Is(err, ErrNavigation):
		return "navigation"
	case errors.Is(err, ErrSelectorWait):
		return "selector_wait"
	case errors.Is(err, ErrEvaluation):
		return "evaluation"
	default:
		return "unknown"
	}
}

// CountsAgainstBrowser reports whether err says something about the health of
// the browser or the remote page, as opposed to the caller going away.
func CountsAgainstBrowser(err error) bool {
	return !errors.Is(err, ErrLookupCanceled) && !errors.Is(err, context.Canceled)
}
