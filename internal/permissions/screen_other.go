//go:build !darwin

package permissions

// Only macOS gates screen capture behind a privacy grant.
func preflightScreenCapture() bool { return true }

func requestScreenCapture() bool { return true }
