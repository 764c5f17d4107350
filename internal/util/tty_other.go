//go:build !windows && !linux && !darwin && !freebsd && !openbsd && !netbsd && !dragonfly

package util

// IsTty always reports false where terminals cannot be detected.
func IsTty(_ interface{}) bool {
	return false
}
