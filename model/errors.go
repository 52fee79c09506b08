package model

import "gitlab.com/tozd/go/errors"

var (
	// ErrClipboardUnavailable means the platform clipboard could not be accessed.
	ErrClipboardUnavailable = errors.Base("clipboard unavailable")
	// ErrIO wraps file read, write and create failures.
	ErrIO = errors.Base("io error")
	// ErrUnsafePath means a declared path would land outside the base directory.
	ErrUnsafePath = errors.Base("unsafe path")
	// ErrMalformedBlock marks a heading without a matching fence. It is never surfaced.
	ErrMalformedBlock = errors.Base("malformed block")
	// ErrIgnored means the path matched an ignore pattern.
	ErrIgnored = errors.Base("ignored path")
	// ErrExists means the destination exists and overwriting is disabled.
	ErrExists = errors.Base("file exists")
	// ErrNothingToUndo means the journal has no batch left to revert.
	ErrNothingToUndo = errors.Base("nothing to undo")
	// ErrConflict means a file changed on disk after it was written.
	ErrConflict = errors.Base("file changed since it was written")
	// ErrClone means a repository named on the copy command line could not
	// be cloned.
	ErrClone = errors.Base("git clone failed")
)

// ReasonText returns a short operator-facing description of a failure.
func ReasonText(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnsafePath):
		return "unsafe path"
	case errors.Is(err, ErrIgnored):
		return "ignored"
	case errors.Is(err, ErrExists):
		return "exists, not overwritten"
	case errors.Is(err, ErrConflict):
		return "changed since written"
	default:
		return err.Error()
	}
}

// IOError wraps an operating system failure so that it matches ErrIO.
func IOError(err error, action string) error {
	return errors.Errorf("%w: %s: %s", ErrIO, action, err.Error())
}
