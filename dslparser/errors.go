package dslparser

import (
	"fmt"
	"strings"

	"golang.org/x/exp/slices"

	"github.com/peggylang/peggy/ast"
)

// SyntaxError is returned when the grammar DSL itself does not parse. It
// carries the furthest offset reached and the deduplicated set of
// expected descriptions recorded there (spec.md §4.1 "Failures").
type SyntaxError struct {
	Source   string
	Pos      ast.Pos
	Expected []string
	Found    string
}

func (e *SyntaxError) Error() string {
	exp := dedupeSorted(e.Expected)
	var want string
	switch len(exp) {
	case 0:
		want = "something else"
	case 1:
		want = exp[0]
	default:
		want = strings.Join(exp[:len(exp)-1], ", ") + " or " + exp[len(exp)-1]
	}
	found := e.Found
	if found == "" {
		found = "end of input"
	}
	prefix := ""
	if e.Source != "" {
		prefix = fmt.Sprintf("%s:", e.Source)
	}
	return fmt.Sprintf("%s%s: expected %s but found %s", prefix, e.Pos, want, found)
}

func dedupeSorted(in []string) []string {
	set := make(map[string]bool, len(in))
	for _, s := range in {
		set[s] = true
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	slices.Sort(out)
	return out
}
