package line

import "github.com/pkg/errors"

// Kind is the output kind of a segment: which channel of the producer it
// came from.
type Kind int

const (
	KindNormal Kind = iota
	KindError
	KindInput
)

func (k Kind) String() string {
	switch k {
	case KindError:
		return "error"
	case KindInput:
		return "input"
	default:
		return "normal"
	}
}

func (k *Kind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "", "normal", "output":
		*k = KindNormal
	case "error", "err":
		*k = KindError
	case "input":
		*k = KindInput
	default:
		return errors.Errorf("unknown output kind %q", string(b))
	}
	return nil
}

// UnmarshalFlag lets Kind be used as a command line option value.
func (k *Kind) UnmarshalFlag(s string) error {
	return k.UnmarshalText([]byte(s))
}
