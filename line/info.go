package line

// NewInfo creates an empty annotation list.
func NewInfo() *Info {
	return &Info{}
}

func (s Segment) sameAttributes(o Segment) bool {
	return s.Kind == o.Kind &&
		s.Listener == o.Listener &&
		s.Fg == o.Fg &&
		s.Bg == o.Bg &&
		s.Important == o.Important
}

// AddSegment extends the annotated range to end. When the attributes match
// those of the last segment it is extended instead of a new one being
// added. An end that does not move past the last segment is ignored.
func (in *Info) AddSegment(end int, kind Kind, listener Listener, fg, bg Attribute, important bool) {
	seg := Segment{End: end, Kind: kind, Listener: listener, Fg: fg, Bg: bg, Important: important}
	n := len(in.segments)
	if n > 0 {
		last := &in.segments[n-1]
		if end <= last.End {
			return
		}
		if last.sameAttributes(seg) {
			last.End = end
			return
		}
	}
	in.segments = append(in.segments, seg)
}

// Truncate drops everything at or after end, so the annotations stay in
// step with a line that was partially erased.
func (in *Info) Truncate(end int) {
	for i, seg := range in.segments {
		if seg.End >= end {
			if end == in.start(i) {
				in.segments = in.segments[:i]
			} else {
				in.segments[i].End = end
				in.segments = in.segments[:i+1]
			}
			return
		}
	}
}

// Clone returns a copy that later changes to in do not affect.
func (in *Info) Clone() *Info {
	if in == nil {
		return nil
	}
	return &Info{segments: append([]Segment(nil), in.segments...)}
}

// Segments returns the segment list. It must not be modified.
func (in *Info) Segments() []Segment {
	return in.segments
}

// Len is the number of segments.
func (in *Info) Len() int {
	return len(in.segments)
}

// End is the end offset of the last segment.
func (in *Info) End() int {
	if n := len(in.segments); n > 0 {
		return in.segments[n-1].End
	}
	return 0
}

// Important reports whether any segment is marked important.
func (in *Info) Important() bool {
	for _, seg := range in.segments {
		if seg.Important {
			return true
		}
	}
	return false
}

// HasListeners reports whether any segment carries a hyperlink.
func (in *Info) HasListeners() bool {
	for _, seg := range in.segments {
		if seg.Listener != nil {
			return true
		}
	}
	return false
}

func (in *Info) start(i int) int {
	if i == 0 {
		return 0
	}
	return in.segments[i-1].End
}

func (in *Info) span(i int) Span {
	seg := in.segments[i]
	return Span{Start: in.start(i), End: seg.End, Listener: seg.Listener, Important: seg.Important}
}

// SegmentAt returns the segment covering pos.
func (in *Info) SegmentAt(pos int) (Segment, bool) {
	for _, seg := range in.segments {
		if pos < seg.End {
			return seg, true
		}
	}
	return Segment{}, false
}

// ListenerAt returns the hyperlink covering pos.
func (in *Info) ListenerAt(pos int) (Span, bool) {
	for i, seg := range in.segments {
		if pos < seg.End {
			if seg.Listener == nil || pos < in.start(i) {
				return Span{}, false
			}
			return in.span(i), true
		}
	}
	return Span{}, false
}

func (in *Info) FirstListener() (Span, bool) {
	for i, seg := range in.segments {
		if seg.Listener != nil {
			return in.span(i), true
		}
	}
	return Span{}, false
}

func (in *Info) LastListener() (Span, bool) {
	for i := len(in.segments) - 1; i >= 0; i-- {
		if in.segments[i].Listener != nil {
			return in.span(i), true
		}
	}
	return Span{}, false
}

// ListenerBefore returns the last hyperlink that ends at or before pos.
func (in *Info) ListenerBefore(pos int) (Span, bool) {
	for i := len(in.segments) - 1; i >= 0; i-- {
		seg := in.segments[i]
		if seg.Listener != nil && seg.End <= pos {
			return in.span(i), true
		}
	}
	return Span{}, false
}

// ListenerAfter returns the first hyperlink that starts after pos.
func (in *Info) ListenerAfter(pos int) (Span, bool) {
	for i, seg := range in.segments {
		if seg.Listener != nil && in.start(i) > pos {
			return in.span(i), true
		}
	}
	return Span{}, false
}
