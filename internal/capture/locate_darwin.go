package capture

/*
#cgo CFLAGS: -x objective-c
#cgo LDFLAGS: -framework AppKit -framework CoreGraphics -framework CoreFoundation
#import <AppKit/AppKit.h>
#import <CoreGraphics/CoreGraphics.h>
#include <stdlib.h>

static int pidForBundle(const char *bundleID) {
    @autoreleasepool {
        NSString *ident = [NSString stringWithUTF8String:bundleID];
        NSArray<NSRunningApplication *> *apps =
            [NSRunningApplication runningApplicationsWithBundleIdentifier:ident];
        if (apps.count == 0) {
            return -1;
        }
        return (int)apps.firstObject.processIdentifier;
    }
}

// windowForPID returns the last on-screen window owned by pid, or 0.
static uint32_t windowForPID(int pid) {
    CFArrayRef list = CGWindowListCopyWindowInfo(kCGWindowListOptionOnScreenOnly, kCGNullWindowID);
    if (!list) {
        return 0;
    }
    uint32_t found = 0;
    CFIndex n = CFArrayGetCount(list);
    for (CFIndex i = 0; i < n; i++) {
        CFDictionaryRef info = (CFDictionaryRef)CFArrayGetValueAtIndex(list, i);
        CFNumberRef ownerRef = (CFNumberRef)CFDictionaryGetValue(info, kCGWindowOwnerPID);
        CFNumberRef numberRef = (CFNumberRef)CFDictionaryGetValue(info, kCGWindowNumber);
        if (!ownerRef || !numberRef) {
            continue;
        }
        int owner = 0;
        int32_t number = 0;
        CFNumberGetValue(ownerRef, kCFNumberIntType, &owner);
        CFNumberGetValue(numberRef, kCFNumberSInt32Type, &number);
        if (owner == pid) {
            found = (uint32_t)number;
        }
    }
    CFRelease(list);
    return found;
}
*/
import "C"

import (
	"fmt"
	"unsafe"
)

// AppLocator finds the on-screen window of a running application by bundle identifier.
type AppLocator struct{}

// NewAppLocator creates an AppLocator.
func NewAppLocator() *AppLocator {
	return &AppLocator{}
}

// NewLocator returns the locator for this platform.
func NewLocator() Locator {
	return NewAppLocator()
}

// Find resolves "display:N" or a bundle identifier such as com.apple.iphonesimulator.
func (l *AppLocator) Find(ident string) (Target, error) {
	if t, ok, err := ParseDisplay(ident); ok {
		return t, err
	}

	cs := C.CString(ident)
	defer C.free(unsafe.Pointer(cs))

	pid := C.pidForBundle(cs)
	if pid < 0 {
		return Target{}, fmt.Errorf("no running application %q: %w", ident, ErrTargetUnavailable)
	}
	id := C.windowForPID(pid)
	if id == 0 {
		return Target{}, fmt.Errorf("no on-screen window for %q (pid %d): %w", ident, int(pid), ErrTargetUnavailable)
	}
	return Target{Kind: KindWindow, ID: uint32(id)}, nil
}
