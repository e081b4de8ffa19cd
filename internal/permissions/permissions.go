// Package permissions checks the OS privacy grants the recorder needs.
package permissions

import "errors"

// ErrScreenRecordingDenied means the process may not capture other apps' windows.
var ErrScreenRecordingDenied = errors.New("screen recording permission not granted")

// Platform hooks; replaced in tests.
var (
	preflight = preflightScreenCapture
	request   = requestScreenCapture
)

// CheckScreenRecording returns nil when capture is allowed. Otherwise it asks
// the OS to prompt the user and returns ErrScreenRecordingDenied, unless the
// prompt reports the grant is already in place. A grant made from the
// prompt only applies after the process restarts.
func CheckScreenRecording() error {
	if preflight() {
		return nil
	}
	if request() {
		return nil
	}
	return ErrScreenRecordingDenied
}
