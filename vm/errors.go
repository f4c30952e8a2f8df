package vm

import "bytes"

// errInvalidEncoding is returned when the source is not properly
// UTF-8 encoded.
var errInvalidEncoding = errNew("invalid encoding")

// errNoMatch is returned if no match could be found and no other
// error has been raised.
var errNoMatch = errNew("no match found")

func errNew(s string) error { return &simpleError{s} }

type simpleError struct{ s string }

func (e *simpleError) Error() string { return e.s }

// errList accumulates the errors found while running a program.
type errList []error

func (e *errList) add(err error) {
	if err != nil {
		*e = append(*e, err)
	}
}

// err returns the error list as a single error, or nil if it is empty.
func (e errList) err() error {
	if len(e) == 0 {
		return nil
	}
	e.dedupe()
	return e
}

func (e *errList) dedupe() {
	var cleaned []error
	seen := make(map[string]bool)
	for _, err := range *e {
		if msg := err.Error(); !seen[msg] {
			seen[msg] = true
			cleaned = append(cleaned, err)
		}
	}
	*e = cleaned
}

func (e errList) Error() string {
	var buf bytes.Buffer
	for i, err := range e {
		if i > 0 {
			buf.WriteRune('\n')
		}
		buf.WriteString(err.Error())
	}
	return buf.String()
}

// parserError wraps an error with the rule prefix active when it was
// raised. Inner holds the original error so callers can unwrap it.
type parserError struct {
	Inner  error
	prefix string
}

func (p *parserError) Error() string { return p.prefix + ": " + p.Inner.Error() }
func (p *parserError) Unwrap() error { return p.Inner }
