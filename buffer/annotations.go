package buffer

import (
	"github.com/peco/outstream/internal/index"
	"github.com/peco/outstream/line"
)

// Annotation returns the annotations of line, if it has any. The returned
// Info must not be modified.
func (l *Lines) Annotation(i int) (*line.Info, bool) {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	if l.disposed {
		return nil, false
	}
	return l.annotations.Get(i)
}

// AnnotatedLineCount is the number of lines with annotations.
func (l *Lines) AnnotatedLineCount() int {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	return l.annotations.Len()
}

// NextAnnotatedLine returns the first annotated line after from.
func (l *Lines) NextAnnotatedLine(from int) (int, bool) {
	return l.nearestAnnotated(from+1, index.Forward, false)
}

// PrevAnnotatedLine returns the last annotated line before from.
func (l *Lines) PrevAnnotatedLine(from int) (int, bool) {
	return l.nearestAnnotated(from-1, index.Backward, false)
}

// NextImportantLine returns the first line after from with an important
// segment.
func (l *Lines) NextImportantLine(from int) (int, bool) {
	return l.nearestAnnotated(from+1, index.Forward, true)
}

// PrevImportantLine returns the last line before from with an important
// segment.
func (l *Lines) PrevImportantLine(from int) (int, bool) {
	return l.nearestAnnotated(from-1, index.Backward, true)
}

func (l *Lines) nearestAnnotated(from int, dir index.Direction, important bool) (int, bool) {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	if l.disposed || from < 0 {
		return -1, false
	}
	for k := from; k >= 0; {
		key, info, ok := l.annotations.Nearest(k, dir)
		if !ok {
			return -1, false
		}
		if !important || info.Important() {
			return key, true
		}
		if dir == index.Forward {
			k = key + 1
		} else {
			k = key - 1
		}
	}
	return -1, false
}

// ImportantLines lists every line with an important segment.
func (l *Lines) ImportantLines() []int {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	var lines []int
	if l.disposed {
		return lines
	}
	l.annotations.Ascend(0, l.starts.Size(), func(k int, info *line.Info) bool {
		if info.Important() {
			lines = append(lines, k)
		}
		return true
	})
	return lines
}

// SegmentStyle resolves the style of the character at pos of line using
// palette.
func (l *Lines) SegmentStyle(i, pos int, palette line.Palette) line.Style {
	info, ok := l.Annotation(i)
	if !ok {
		return palette.Normal
	}
	seg, ok := info.SegmentAt(pos)
	if !ok {
		return palette.Normal
	}
	return palette.Resolve(seg)
}
