package storage

import (
	"sync"

	"github.com/lestrrat-go/pdebug"
	"github.com/pkg/errors"
)

// Mode selects the kind of storage a Factory creates.
type Mode int

const (
	// ModeAuto uses file storage until it fails with resource exhaustion,
	// then heap storage for the rest of the process.
	ModeAuto Mode = iota
	ModeFile
	ModeHeap
)

func (m Mode) String() string {
	switch m {
	case ModeFile:
		return "file"
	case ModeHeap:
		return "heap"
	default:
		return "auto"
	}
}

// UnmarshalText parses "auto", "file" or "heap".
func (m *Mode) UnmarshalText(b []byte) error {
	switch string(b) {
	case "", "auto":
		*m = ModeAuto
	case "file":
		*m = ModeFile
	case "heap":
		*m = ModeHeap
	default:
		return errors.Errorf("unknown storage mode %q", string(b))
	}
	return nil
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalFlag lets Mode be used as a command line option value.
func (m *Mode) UnmarshalFlag(s string) error {
	return m.UnmarshalText([]byte(s))
}

// Factory creates the storage for each new stream.
type Factory struct {
	mutex        sync.Mutex
	mode         Mode
	dir          string
	registry     *Registry
	fileDisabled bool
	fileOptions  []FileOption
}

// NewFactory creates a factory storing temp files in dir. A nil registry
// means DefaultRegistry.
func NewFactory(mode Mode, dir string, registry *Registry) *Factory {
	if registry == nil {
		registry = DefaultRegistry
	}
	return &Factory{mode: mode, dir: dir, registry: registry}
}

// New returns a fresh storage. In auto mode a failure to create the file
// falls back to the heap.
func (f *Factory) New() (Storage, error) {
	f.mutex.Lock()
	mode, disabled := f.mode, f.fileDisabled
	f.mutex.Unlock()

	if mode == ModeHeap || (mode == ModeAuto && disabled) {
		return NewHeap(DefaultWriteThreshold), nil
	}

	options := append([]FileOption{
		WithRegistry(f.registry),
		WithMapFailureHandler(f.ReportFailure),
	}, f.fileOptions...)
	s, err := NewFile(f.dir, options...)
	if err == nil {
		return s, nil
	}
	if mode == ModeFile {
		return nil, err
	}
	if pdebug.Enabled {
		pdebug.Printf("storage.Factory: falling back to heap storage: %s", err)
	}
	return NewHeap(DefaultWriteThreshold), nil
}

// ReportFailure records a failed write or mapping. Resource exhaustion
// turns file storage off for every storage created afterwards.
func (f *Factory) ReportFailure(err error) {
	if !errors.Is(err, ErrResourceExhaustion) {
		return
	}
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if !f.fileDisabled && pdebug.Enabled {
		pdebug.Printf("storage.Factory: disabling file storage: %s", err)
	}
	f.fileDisabled = true
}

// FileDisabled reports whether ReportFailure has turned file storage off.
func (f *Factory) FileDisabled() bool {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.fileDisabled
}
