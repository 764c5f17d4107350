//go:build !unix

package storage

import (
	"os"

	"github.com/pkg/errors"
)

var errMmapUnsupported = errors.New("memory mapping is not supported on this platform")

func mmap(_ *os.File, _ int64, _ int) ([]byte, error) {
	return nil, errMmapUnsupported
}

func munmap(_ []byte) error {
	return nil
}
