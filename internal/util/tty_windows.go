package util

import (
	"syscall"
	"unsafe"
)

var (
	kernel32           = syscall.MustLoadDLL("kernel32.dll")
	procGetConsoleMode = kernel32.MustFindProc("GetConsoleMode")
)

// IsTty checks if the given fd is a console
func IsTty(arg interface{}) bool {
	fdsrc, ok := arg.(fder)
	if !ok {
		return false
	}
	fd := fdsrc.Fd()

	var st uint32
	r1, _, _ := procGetConsoleMode.Call(fd, uintptr(unsafe.Pointer(&st)))
	return r1 != 0
}
