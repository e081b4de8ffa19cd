//go:build darwin

package capture

/*
#cgo LDFLAGS: -framework CoreGraphics -framework CoreFoundation
#include <CoreGraphics/CoreGraphics.h>
#include <dlfcn.h>

// CGWindowListCreateImage is unavailable in the macOS 15 SDK headers but still
// present in the CoreGraphics dylib. Load it dynamically.
typedef CGImageRef (*CGWindowListCreateImageFunc)(
    CGRect screenBounds,
    uint32_t listOption,
    uint32_t windowID,
    uint32_t imageOption
);

static CGWindowListCreateImageFunc getCGWindowListCreateImage(void) {
    static CGWindowListCreateImageFunc fn = NULL;
    if (!fn) {
        fn = (CGWindowListCreateImageFunc)dlsym(RTLD_DEFAULT, "CGWindowListCreateImage");
    }
    return fn;
}

static CGImageRef windowImage(uint32_t windowID) {
    CGWindowListCreateImageFunc fn = getCGWindowListCreateImage();
    if (!fn) {
        return NULL;
    }
    // kCGWindowListOptionIncludingWindow = 8, kCGWindowImageBoundsIgnoreFraming = 1
    return fn(CGRectNull, 8, windowID, 1);
}

static CGImageRef displayImage(CGDirectDisplayID displayID) {
    CGWindowListCreateImageFunc fn = getCGWindowListCreateImage();
    if (!fn) {
        return NULL;
    }
    // kCGWindowListOptionOnScreenOnly = 1, kCGNullWindowID = 0, kCGWindowImageDefault = 0
    return fn(CGDisplayBounds(displayID), 1, 0, 0);
}

// drawRGBA renders image into pix, a width*height*4 buffer owned by the caller.
static int drawRGBA(CGImageRef image, void* pix, size_t width, size_t height) {
    CGColorSpaceRef cs = CGColorSpaceCreateDeviceRGB();
    CGContextRef ctx = CGBitmapContextCreate(pix, width, height, 8, width * 4, cs,
        kCGImageAlphaPremultipliedLast);
    CGColorSpaceRelease(cs);
    if (!ctx) {
        return 0;
    }
    CGContextDrawImage(ctx, CGRectMake(0, 0, width, height), image);
    CGContextRelease(ctx);
    return 1;
}

static int windowOnScreen(uint32_t windowID) {
    CFArrayRef list = CGWindowListCopyWindowInfo(kCGWindowListOptionIncludingWindow, windowID);
    if (!list) {
        return 0;
    }
    int onscreen = 0;
    if (CFArrayGetCount(list) > 0) {
        CFDictionaryRef info = (CFDictionaryRef)CFArrayGetValueAtIndex(list, 0);
        CFBooleanRef flag = (CFBooleanRef)CFDictionaryGetValue(info, kCGWindowIsOnscreen);
        onscreen = flag != NULL && CFBooleanGetValue(flag);
    }
    CFRelease(list);
    return onscreen;
}
*/
import "C"

import (
	"fmt"
	"image"
	"unsafe"
)

// CGCapturer captures windows and displays with CoreGraphics.
type CGCapturer struct{}

func NewCGCapturer() *CGCapturer {
	return &CGCapturer{}
}

// NewCapturer returns the capturer for this platform.
func NewCapturer() Capturer {
	return NewCGCapturer()
}

func (c *CGCapturer) Capture(t Target) (*image.RGBA, error) {
	var ref C.CGImageRef
	switch t.Kind {
	case KindWindow:
		ref = C.windowImage(C.uint32_t(t.ID))
		if ref == 0 {
			if C.windowOnScreen(C.uint32_t(t.ID)) == 0 {
				return nil, fmt.Errorf("%s: %w", t, ErrTargetUnavailable)
			}
			return nil, fmt.Errorf("%s: %w", t, ErrCaptureEmpty)
		}
	case KindDisplay:
		id, err := displayID(int(t.ID))
		if err != nil {
			return nil, err
		}
		ref = C.displayImage(id)
		if ref == 0 {
			return nil, fmt.Errorf("%s: %w", t, ErrCaptureEmpty)
		}
	default:
		return nil, fmt.Errorf("unknown target kind %d: %w", t.Kind, ErrTargetUnavailable)
	}
	defer C.CGImageRelease(ref)

	w, h := int(C.CGImageGetWidth(ref)), int(C.CGImageGetHeight(ref))
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("%s: %w", t, ErrCaptureEmpty)
	}

	// CoreGraphics renders straight into the frame's pixel buffer.
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	if C.drawRGBA(ref, unsafe.Pointer(&img.Pix[0]), C.size_t(w), C.size_t(h)) == 0 {
		return nil, fmt.Errorf("%s: bitmap context: %w", t, ErrCaptureEmpty)
	}
	return img, nil
}

func displayID(index int) (C.CGDirectDisplayID, error) {
	if index == 0 {
		return C.CGMainDisplayID(), nil
	}
	var displays [16]C.CGDirectDisplayID
	var count C.uint32_t
	C.CGGetActiveDisplayList(16, &displays[0], &count)
	if index >= int(count) {
		return 0, fmt.Errorf("display index %d out of range (have %d displays): %w", index, count, ErrTargetUnavailable)
	}
	return displays[index], nil
}
