package util

import (
	"errors"
	"unicode"
)

type fder interface {
	Fd() uintptr
}

func ContainsUpper(query string) bool {
	for _, c := range query {
		if unicode.IsUpper(c) {
			return true
		}
	}
	return false
}

type ignorable interface {
	Ignorable() bool
}

type exitStatuser interface {
	ExitStatus() int
}

// IsIgnorableError reports whether err, or an error it wraps, asks to be
// ignored. Such errors end a command without it being a failure.
func IsIgnorableError(err error) bool {
	var v ignorable
	if errors.As(err, &v) {
		return v.Ignorable()
	}
	return false
}

// GetExitStatus returns the exit status carried by err or an error it
// wraps, or 1 and false when there is none.
func GetExitStatus(err error) (int, bool) {
	var v exitStatuser
	if errors.As(err, &v) {
		return v.ExitStatus(), true
	}
	return 1, false
}
