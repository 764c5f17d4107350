//go:build unix

package storage

import (
	"os"

	"golang.org/x/sys/unix"
)

func mmap(f *os.File, off int64, length int) ([]byte, error) {
	if length <= 0 {
		return nil, unix.EINVAL
	}
	return unix.Mmap(int(f.Fd()), off, length, unix.PROT_READ, unix.MAP_SHARED)
}

func munmap(b []byte) error {
	return unix.Munmap(b)
}
