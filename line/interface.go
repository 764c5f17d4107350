// Package line holds the per-line annotations of a stream: which parts of a
// line came from which output kind, which carry a hyperlink, and which
// colors they were printed with.
package line

// Listener is an opaque hyperlink handle. It is owned by the producer that
// printed the text; the stream only hands it back. Handles are compared
// with ==, so they must be comparable (pointers usually are). The stream
// rejects a func, map or slice handle before it reaches an Info.
type Listener any

// Segment covers the characters of a line up to End (exclusive), starting
// where the previous segment ended.
type Segment struct {
	End       int
	Kind      Kind
	Listener  Listener
	Fg        Attribute // ColorDefault defers to the palette
	Bg        Attribute
	Important bool
}

// Span is a segment resolved to absolute positions within its line.
type Span struct {
	Start     int
	End       int
	Listener  Listener
	Important bool
}

// Info is the ordered, contiguous segment list of one line.
type Info struct {
	segments []Segment
}

// Palette gives the colors of segments that carry no color of their own.
type Palette struct {
	Normal             Style
	Error              Style
	Input              Style
	Hyperlink          Style
	ImportantHyperlink Style
}
