//go:build darwin || freebsd || openbsd || netbsd || dragonfly

package util

import "golang.org/x/sys/unix"

const ioctlReadTermios = unix.TIOCGETA
