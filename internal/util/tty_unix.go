//go:build linux || darwin || freebsd || openbsd || netbsd || dragonfly

package util

import "golang.org/x/sys/unix"

// IsTty checks if the given fd is a tty
func IsTty(arg interface{}) bool {
	fdsrc, ok := arg.(fder)
	if !ok {
		return false
	}
	_, err := unix.IoctlGetTermios(int(fdsrc.Fd()), ioctlReadTermios)
	return err == nil
}
