package vm

import (
	"fmt"
	"unicode/utf8"
)

// position is a point in the input: a 1-based line and column and a
// 0-based byte offset of the current rune.
type position struct {
	line   int
	col    int
	offset int
}

func (p position) String() string { return fmt.Sprintf("%d:%d (%d)", p.line, p.col, p.offset) }

// current is the value actions and predicates run against: the start
// position and raw text of the expression they're attached to.
type current struct {
	pos  position
	text []byte
}

// svpt is a save point the cursor can be rewound to on backtrack.
type svpt struct {
	position
	rn rune
	w  int
}

// cursor walks the input text one rune at a time, tracking line/column
// and exposing save points for the P stack to push and the VM to
// restore from.
type cursor struct {
	data []byte
	pt   svpt
}

func (c *cursor) peek() rune { return c.pt.rn }

func (c *cursor) read() {
	c.pt.offset += c.pt.w
	rn, n := utf8.DecodeRune(c.data[c.pt.offset:])
	c.pt.rn = rn
	c.pt.w = n

	if rn == utf8.RuneError {
		if n > 0 {
			panic(errInvalidEncoding)
		}
		return
	}
	c.pt.col++
	if rn == '\n' {
		c.pt.line++
		c.pt.col = 0
	}
}

func (c *cursor) sliceFrom(start svpt) []byte {
	return c.data[start.offset:c.pt.offset]
}
