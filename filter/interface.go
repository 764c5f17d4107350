// Package filter compiles the search patterns used to scan a stream and
// caches them so repeated searches reuse the compiled form.
package filter

import (
	"regexp"
	"sync"
	"time"
)

var ignoreCaseFlags = regexpFlagList{"i"}
var defaultFlags = regexpFlagList{}

// Query is a search pattern together with the flags it is compiled with.
type Query struct {
	Pattern   string
	Regex     bool
	MatchCase bool
}

// internal stuff
type regexpFlags interface {
	flags(string) []string
}
type regexpFlagList []string

type regexpFlagFunc func(string) []string

type regexpQuery struct {
	rx       *regexp.Regexp
	lastUsed time.Time
}

// Compiler turns queries into regular expressions, remembering recently
// used ones.
type Compiler struct {
	compiled  map[Query]regexpQuery
	mutex     sync.Mutex
	threshold time.Duration
	last      *Matcher
}

// Matcher finds occurrences of one compiled query.
type Matcher struct {
	query Query
	rx    *regexp.Regexp
}
