// Package buffer is the line index of a stream. It maps between byte
// offsets, character offsets and line numbers, accounts for tab expansion,
// keeps the visibility of folded line ranges, computes soft-wrapped row
// positions without materialising wrapped text, searches the stored text
// window by window, and evicts the oldest lines once configured limits are
// exceeded.
//
// Characters are stored as UTF-16 code units, two bytes each: the byte
// offset of a character is always twice its character offset.
package buffer

import (
	"sync"
	"sync/atomic"

	"github.com/peco/outstream/filter"
	"github.com/peco/outstream/internal/index"
	"github.com/peco/outstream/line"
	"github.com/peco/outstream/storage"
)

// BytesPerChar is the storage width of one character.
const BytesPerChar = 2

// Limits bounds how much a stream retains. Once a limit is exceeded the
// oldest min(RemoveLines, LineCount/2) lines are evicted.
type Limits struct {
	MaxLines          int `json:"MaxLines" yaml:"MaxLines"`
	MaxChars          int `json:"MaxChars" yaml:"MaxChars"`
	RemoveLines       int `json:"RemoveLines" yaml:"RemoveLines"`
	MaxAnnotatedLines int `json:"MaxAnnotatedLines" yaml:"MaxAnnotatedLines"`
}

// LineUpdate describes how the current line changed after a storage
// write. Length counts bytes including the terminator of a finished line;
// Logical is the tab-expanded length without the terminator.
type LineUpdate struct {
	Start    int64
	Length   int64
	Logical  int
	Finished bool
	// Info, when set, replaces the annotations of the line.
	Info *line.Info
}

// Match is a half-open character range found by a search.
type Match struct {
	Start int
	End   int
}

// StyledText is a piece of a row painted in one style.
type StyledText struct {
	Text  string
	Style line.Style
}

// WrapPosition locates a logical (wrapped) row.
type WrapPosition struct {
	Line  int // physical line index
	Row   int // row within that line
	Total int // rows the line is wrapped into
}

// Lines is the line index of one stream plus the storage it indexes. Every
// query and mutation takes the same read/write lock; the parallel indexes
// below are only ever changed together.
type Lines struct {
	mutex sync.RWMutex
	store storage.Storage

	limits   Limits
	tabWidth int

	starts     *index.List // byte offset of every line start, current line last
	logical    *index.Ints // tab-expanded length of every finished line
	curBytes   int64       // stored bytes of the current line
	curLogical int
	chars      int
	longest    int

	tabOffsets *index.List // char offset of every tab
	tabExtra   *index.Ints // cumulative extra width up to and including each tab

	foldOffsets   *index.Ints // distance back to the innermost enclosing fold start
	expanded      *index.Keyed[bool]
	openFold      int
	realToVisible []int
	visibleToReal []int

	// readers build the wrap cache under wrapMutex; writers hold mutex
	wrapMutex sync.Mutex
	wrap      *index.Sparse
	wrapWidth int

	evicted      int // chars evicted over the lifetime of the index
	evictedLines int

	annotations *index.Keyed[*line.Info]

	compiler *filter.Compiler

	dirty    atomic.Bool
	changes  chan struct{}
	disposed bool
}
