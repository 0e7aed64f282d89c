package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lotas/tabgruppen/internal/applog"
)

// APIError is a failure reported by the browser for a single call.
type APIError struct {
	Action  string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Action, e.Message)
}

// goneReasons are the texts browsers use when a tab, group or window was
// closed between the event and the call that refers to it.
var goneReasons = []string{
	"no tab with id",
	"no tab group with id",
	"no group with id",
	"invalid tab id",
	"no window with id",
	"invalid window id",
	"cannot group tab in closed window",
	"tab not found",
	"group not found",
	"tabs cannot be edited right now",
}

// IsGone reports whether err means the referenced object no longer exists.
// These failures are expected races and are not worth more than a debug line.
func IsGone(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	msg := err.Error()
	if errors.As(err, &apiErr) {
		msg = apiErr.Message
	}
	msg = strings.ToLower(msg)
	for _, r := range goneReasons {
		if strings.Contains(msg, r) {
			return true
		}
	}
	return false
}

// ErrNotConnected is returned when no extension is connected to run a call.
var ErrNotConnected = errors.New("browser extension not connected")

// IsCanceled reports whether err stems from a canceled or expired context.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Report logs a failed browser call. Expected races and cancellations are
// logged at debug level, everything else as an error.
func Report(event string, err error, kv ...any) {
	if err == nil {
		return
	}
	if IsGone(err) || IsCanceled(err) {
		applog.Debug(event+".skipped", append(kv, "reason", err.Error())...)
		return
	}
	applog.Error(event, err, kv...)
}
