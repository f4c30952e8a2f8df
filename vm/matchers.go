package vm

import (
	"bytes"
	"fmt"
	"strconv"
	"unicode"
	"unicode/utf8"
)

// peekReader is implemented by the runtime's input cursor: peek the
// rune under the cursor without consuming it, or consume it.
type peekReader interface {
	peek() rune
	read()
}

// matcher is implemented by every terminal matcher a program's Ms list
// holds: any, string literal and character class (spec.md §3).
type matcher interface {
	match(peekReader) bool
}

// anyMatcher matches a single rune, excluding a decode failure at EOF.
type anyMatcher struct{}

func (anyMatcher) match(pr peekReader) bool {
	rn := pr.peek()
	pr.read()
	return rn != utf8.RuneError
}

func (anyMatcher) String() string { return "." }

// stringMatcher matches value verbatim (or case-insensitively if
// ignoreCase, in which case value must already be lowercase).
type stringMatcher struct {
	value      string
	ignoreCase bool
}

func (s stringMatcher) match(pr peekReader) bool {
	for _, want := range s.value {
		rn := pr.peek()
		if s.ignoreCase {
			rn = unicode.ToLower(rn)
		}
		if rn != want {
			return false
		}
		pr.read()
	}
	return true
}

func (s stringMatcher) String() string {
	v := strconv.Quote(s.value)
	if s.ignoreCase {
		v += "i"
	}
	return v
}

// classEntry is one named Unicode class inside a character class, from
// a \p{Name} (Negated false) or \P{Name} (Negated true) escape.
type classEntry struct {
	table   *unicode.RangeTable
	negated bool
}

// charClassMatcher matches one rune against a set of individual chars,
// inclusive ranges and named Unicode classes (spec.md §3 "class").
type charClassMatcher struct {
	chars      []rune // lowercase if ignoreCase
	ranges     []rune // lo,hi pairs; lowercase if ignoreCase
	classes    []classEntry
	ignoreCase bool
	inverted   bool
}

func (c charClassMatcher) match(pr peekReader) bool {
	rn := pr.peek()
	pr.read()
	if c.ignoreCase {
		rn = unicode.ToLower(rn)
	}

	for _, ch := range c.chars {
		if rn == ch {
			return !c.inverted
		}
	}
	for i := 0; i < len(c.ranges); i += 2 {
		if rn >= c.ranges[i] && rn <= c.ranges[i+1] {
			return !c.inverted
		}
	}
	for _, cl := range c.classes {
		in := unicode.Is(cl.table, rn)
		if in != cl.negated {
			return !c.inverted
		}
	}
	return c.inverted
}

func (c charClassMatcher) String() string {
	var buf bytes.Buffer
	buf.WriteString("[")
	if c.inverted {
		buf.WriteString("^")
	}
	for _, ch := range c.chars {
		buf.WriteRune(ch)
	}
	for i := 0; i < len(c.ranges); i += 2 {
		fmt.Fprintf(&buf, "%c-%c", c.ranges[i], c.ranges[i+1])
	}
	for _, cl := range c.classes {
		if cl.negated {
			buf.WriteString("\\P{class}")
		} else {
			buf.WriteString("\\p{class}")
		}
	}
	buf.WriteString("]")
	if c.ignoreCase {
		buf.WriteString("i")
	}
	return buf.String()
}

// rangeTable returns the Unicode range table named by class, checking
// categories, properties and scripts in that order.
func rangeTable(class string) *unicode.RangeTable {
	if rt, ok := unicode.Categories[class]; ok {
		return rt
	}
	if rt, ok := unicode.Properties[class]; ok {
		return rt
	}
	if rt, ok := unicode.Scripts[class]; ok {
		return rt
	}
	panic(fmt.Sprintf("invalid Unicode class: %s", class))
}
