package permissions

/*
#cgo LDFLAGS: -framework CoreGraphics
#include <CoreGraphics/CoreGraphics.h>

static int screenCapturePreflight(void) {
    return CGPreflightScreenCaptureAccess() ? 1 : 0;
}

// Shows the System Settings prompt at most once per process lifetime.
static int screenCaptureRequest(void) {
    return CGRequestScreenCaptureAccess() ? 1 : 0;
}
*/
import "C"

func preflightScreenCapture() bool {
	return C.screenCapturePreflight() != 0
}

func requestScreenCapture() bool {
	return C.screenCaptureRequest() != 0
}
