package buffer

import (
	"encoding/binary"
	"unicode/utf16"

	"golang.org/x/text/encoding/unicode"
)

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// EncodeUnits appends s to dst as UTF-16 code units.
func EncodeUnits(dst []uint16, s string) []uint16 {
	for _, r := range s {
		dst = utf16.AppendRune(dst, r)
	}
	return dst
}

// UnitBytes serializes code units the way they are stored.
func UnitBytes(dst []byte, units []uint16) []byte {
	for _, u := range units {
		dst = binary.LittleEndian.AppendUint16(dst, u)
	}
	return dst
}

// decode converts stored bytes to a string.
func decode(b []byte) string {
	s, err := utf16le.NewDecoder().Bytes(b)
	if err != nil {
		// the decoder substitutes invalid sequences, so this is unexpected
		return ""
	}
	return string(s)
}

// unitCount returns how many UTF-16 code units encode s.
func unitCount(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

// byteIndex returns the byte offset in s of the character at code unit
// offset units.
func byteIndex(s string, units int) int {
	n := 0
	for i, r := range s {
		if n >= units {
			return i
		}
		n += utf16.RuneLen(r)
	}
	return len(s)
}

// endsInHighSurrogate reports whether b ends with the first half of a
// surrogate pair.
func endsInHighSurrogate(b []byte) bool {
	if len(b) < BytesPerChar {
		return false
	}
	u := binary.LittleEndian.Uint16(b[len(b)-BytesPerChar:])
	return u >= 0xd800 && u < 0xdc00
}

func utf16Len(r rune) int {
	if n := utf16.RuneLen(r); n > 0 {
		return n
	}
	return 1
}
