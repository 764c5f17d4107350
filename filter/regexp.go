package filter

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/lestrrat-go/pdebug"
	"github.com/peco/outstream/internal/util"
)

func (r regexpFlagList) flags(_ string) []string {
	return []string(r)
}

func (r regexpFlagFunc) flags(s string) []string {
	return r(s)
}

func regexpFor(q string, flags []string, quotemeta bool) (*regexp.Regexp, error) {
	reTxt := q
	if quotemeta {
		reTxt = regexp.QuoteMeta(q)
	}

	if len(flags) > 0 {
		reTxt = fmt.Sprintf("(?%s)%s", strings.Join(flags, ""), reTxt)
	}

	re, err := regexp.Compile(reTxt)
	if err != nil {
		return nil, fmt.Errorf("failed to compile regular expression '%s': %w", reTxt, err)
	}
	return re, nil
}

// SmartCase returns a query that matches case only when pattern contains
// an upper-case character.
func SmartCase(pattern string, regex bool) Query {
	return Query{Pattern: pattern, Regex: regex, MatchCase: util.ContainsUpper(pattern)}
}

func (q Query) flags() regexpFlags {
	if q.MatchCase {
		return defaultFlags
	}
	return ignoreCaseFlags
}

// NewCompiler creates a compiler whose cache entries expire after a
// minute without use.
func NewCompiler() *Compiler {
	return &Compiler{
		compiled:  make(map[Query]regexpQuery),
		threshold: time.Minute,
	}
}

const maxRegexpCacheSize = 100

// Compile returns the matcher for q. The matcher of the previous call is
// returned as is when q has not changed.
func (c *Compiler) Compile(q Query) (*Matcher, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if m := c.last; m != nil && m.query == q {
		return m, nil
	}

	rq, ok := c.compiled[q]
	if !ok || time.Since(rq.lastUsed) >= c.threshold {
		delete(c.compiled, q)
		rx, err := regexpFor(q.Pattern, q.flags().flags(q.Pattern), !q.Regex)
		if err != nil {
			return nil, err
		}
		if pdebug.Enabled {
			pdebug.Printf("filter.Compiler: compiled %q as %s", q.Pattern, rx)
		}
		rq.rx = rx

		// Evict stale entries if cache is over the size limit
		if len(c.compiled) >= maxRegexpCacheSize {
			now := time.Now()
			for k, v := range c.compiled {
				if now.Sub(v.lastUsed) >= c.threshold {
					delete(c.compiled, k)
				}
			}
			// If still over limit after evicting stale entries, clear all
			if len(c.compiled) >= maxRegexpCacheSize {
				c.compiled = make(map[Query]regexpQuery)
			}
		}
	}

	rq.lastUsed = time.Now()
	c.compiled[q] = rq
	c.last = &Matcher{query: q, rx: rq.rx}
	return c.last, nil
}

// Len returns the number of cached patterns.
func (c *Compiler) Len() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.compiled)
}

func (m *Matcher) Query() Query {
	return m.query
}

func (m *Matcher) String() string {
	return m.rx.String()
}

// First returns the byte range of the first non-empty match in s at or
// after from, or nil.
func (m *Matcher) First(s string, from int) []int {
	for from <= len(s) {
		loc := m.rx.FindStringIndex(s[from:])
		if loc == nil {
			return nil
		}
		if loc[1] > loc[0] {
			return []int{loc[0] + from, loc[1] + from}
		}
		// skip an empty match
		from += loc[0] + 1
	}
	return nil
}

// Last returns the byte range of the last non-empty match in s that starts
// before limit, or nil.
func (m *Matcher) Last(s string, limit int) []int {
	var found []int
	for _, loc := range m.rx.FindAllStringIndex(s, -1) {
		if loc[0] >= limit {
			break
		}
		if loc[1] > loc[0] {
			found = loc
		}
	}
	return found
}
