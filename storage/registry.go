package storage

import (
	"sync"

	"github.com/lestrrat-go/pdebug"
)

// Registry tracks live file storages so their backing files can be removed
// when the process exits without disposing them.
type Registry struct {
	mutex sync.Mutex
	live  map[*File]struct{}
}

// DefaultRegistry is used by factories that are not given a registry.
var DefaultRegistry = NewRegistry()

func NewRegistry() *Registry {
	return &Registry{live: make(map[*File]struct{})}
}

func (r *Registry) add(f *File) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.live[f] = struct{}{}
}

func (r *Registry) remove(f *File) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	delete(r.live, f)
}

// Len returns the number of registered storages that are not disposed.
func (r *Registry) Len() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return len(r.live)
}

// Teardown disposes every registered storage.
func (r *Registry) Teardown() {
	r.mutex.Lock()
	files := make([]*File, 0, len(r.live))
	for f := range r.live {
		files = append(files, f)
	}
	r.mutex.Unlock()

	for _, f := range files {
		if err := f.Dispose(); err != nil && pdebug.Enabled {
			pdebug.Printf("storage.Registry: teardown of %s failed: %s", f.Path(), err)
		}
	}
}
