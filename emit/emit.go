// Package emit turns a compiled grammar (package compiler's Artifact)
// into a single, dependency-free Go source file: a standalone parser
// that embeds its own copy of the ϡvm runtime (runtime_skeleton.go)
// instead of importing package vm, so the generated file never needs
// this module at all to compile on its own (spec.md §4.4's "generated
// parser" output mode).
//
// Actions and predicates are rendered the way a hand-written
// generated parser does: each becomes a method on *current named onRuleNameN
// (or predRuleNameN), with one typed parameter per label in scope, plus
// a thin wrapper that pulls those values out of the current ϡargsSet
// and forwards them — the wrapper is what's actually registered in the
// program's as/bs slice.
package emit

import (
	"bytes"
	"fmt"
	"go/format"
	"strconv"
	"strings"

	"github.com/peggylang/peggy/compiler"
	"github.com/peggylang/peggy/vm"
)

// Format selects how the generated file exposes its entry points.
// spec.md §4.5 describes four host-language module formats (bare,
// global, UMD, dependency-injecting) that only make sense for a
// JavaScript host; for a Go host, the only axis that varies is whether
// the file stands alone (FormatStandalone) or is meant to be merged as
// an additional source into an existing package the caller already
// owns (FormatPackageMember, which skips the package clause and
// import block, since the caller's file already supplies both). See
// DESIGN.md for the Open Question this resolves.
type Format int

const (
	FormatStandalone Format = iota
	FormatPackageMember
)

// Options configures Render.
type Options struct {
	// PackageName names the generated file's package clause. Ignored
	// when Format is FormatPackageMember.
	PackageName string
	Format      Format
}

// Render assembles a complete Go source file implementing art's
// grammar, starting from the given start rule's program. The returned
// bytes are gofmt'd.
func Render(art *compiler.Artifact, opts Options) ([]byte, error) {
	if opts.PackageName == "" {
		opts.PackageName = "main"
	}

	var buf bytes.Buffer
	if opts.Format == FormatStandalone {
		fmt.Fprintf(&buf, "package %s\n\n", opts.PackageName)
		buf.WriteString(importBlock)
		buf.WriteString("\n")
	}

	buf.WriteString(stripSectionMarkers(runtimeSkeleton))
	buf.WriteString("\n")

	r := &renderer{art: art, ruleSeq: map[string]int{}}
	if err := r.renderActionsAndPredicates(&buf); err != nil {
		return nil, err
	}
	r.renderMatchers(&buf)
	r.renderProgram(&buf)

	out, err := format.Source(buf.Bytes())
	if err != nil {
		// Returning the unformatted source alongside the error lets a
		// caller inspect what went wrong instead of losing the text.
		return buf.Bytes(), fmt.Errorf("emit: gofmt failed: %w", err)
	}
	return out, nil
}

// importBlock lists everything the runtime skeleton itself references;
// a grammar's own actions may need more, which is on the caller (the
// generated Parse/ParseFile/ParseReader API is meant to be copied into
// a project the caller already builds, same as any other generated
// parser file).
const importBlock = `import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"strconv"
	"unicode"
	"unicode/utf8"
)
`

// stripSectionMarkers removes the "//+peggy: x.go" bookkeeping comments
// the skeleton uses to document which teacher source file each section
// was grounded on; they're not meaningful in the generated output.
func stripSectionMarkers(src string) string {
	lines := strings.Split(src, "\n")
	out := lines[:0]
	for _, l := range lines {
		if strings.HasPrefix(strings.TrimSpace(l), "//+peggy:") {
			continue
		}
		out = append(out, l)
	}
	return strings.Join(out, "\n")
}

type renderer struct {
	art     *compiler.Artifact
	ruleSeq map[string]int // per-rule counter, for onRuleNameN naming
}

// renderActionsAndPredicates emits one (*current) method plus one
// (*ϡvm) wrapper per action/predicate, in the order Program.As/Bs list
// them (the order addAction/addPredicate assigned their indices).
func (r *renderer) renderActionsAndPredicates(buf *bytes.Buffer) error {
	for i, info := range r.art.Actions {
		if strings.HasPrefix(info.Native, "text") {
			fmt.Fprintf(buf, "func ϡcallact%d(v *ϡvm) (interface{}, error) {\n\treturn string(v.cur.text), nil\n}\n\n", i)
			continue
		}
		if strings.HasPrefix(info.Native, "pick:") {
			label := strings.TrimPrefix(info.Native, "pick:")
			fmt.Fprintf(buf, "func ϡcallact%d(v *ϡvm) (interface{}, error) {\n\treturn v.a.peek()[%s], nil\n}\n\n",
				i, strconv.Quote(label))
			continue
		}
		if strings.HasPrefix(info.Native, "boundvar:") {
			label := strings.TrimPrefix(info.Native, "boundvar:")
			fmt.Fprintf(buf, "func ϡcallact%d(v *ϡvm) (interface{}, error) {\n\treturn v.a.peek()[%s], nil\n}\n\n",
				i, strconv.Quote(label))
			continue
		}

		name := r.nextName(info.Rule, "on")
		params := info.Labels

		fmt.Fprintf(buf, "func (c *current) %s(%s) (interface{}, error) {\n%s\n}\n\n",
			name, paramList(params), info.Code.Code)

		fmt.Fprintf(buf, "func ϡcallact%d(v *ϡvm) (interface{}, error) {\n", i)
		buf.WriteString("\tstack := v.a.peek()\n\t_ = stack\n")
		fmt.Fprintf(buf, "\treturn v.cur.%s(%s)\n}\n\n", name, argList(params))
	}

	for i, info := range r.art.Predicates {
		if strings.HasPrefix(info.Native, "minlen:") {
			min := strings.TrimPrefix(info.Native, "minlen:")
			fmt.Fprintf(buf, "func ϡcallpred%d(v *ϡvm) (bool, error) {\n\tarr, _ := v.v.peek().([]interface{})\n\treturn len(arr) >= %s, nil\n}\n\n",
				i, min)
			continue
		}
		if strings.HasPrefix(info.Native, "maxgate:") {
			label := strconv.Quote(strings.TrimPrefix(info.Native, "maxgate:"))
			fmt.Fprintf(buf, "func ϡcallpred%d(v *ϡvm) (bool, error) {\n"+
				"\tarr, _ := v.v.peek().([]interface{})\n"+
				"\twant, ok := ϡboundValueToInt(v.a.peek()[%s])\n"+
				"\tif !ok {\n\t\treturn true, nil\n\t}\n"+
				"\treturn len(arr) < want, nil\n}\n\n", i, label)
			continue
		}
		if strings.HasPrefix(info.Native, "minbound-zero:") {
			label := strconv.Quote(strings.TrimPrefix(info.Native, "minbound-zero:"))
			fmt.Fprintf(buf, "func ϡcallpred%d(v *ϡvm) (bool, error) {\n"+
				"\tmv, ok := ϡboundValueToInt(v.a.peek()[%s])\n"+
				"\treturn ok && mv <= 0, nil\n}\n\n", i, label)
			continue
		}
		if strings.HasPrefix(info.Native, "minbound-len:") {
			label := strconv.Quote(strings.TrimPrefix(info.Native, "minbound-len:"))
			fmt.Fprintf(buf, "func ϡcallpred%d(v *ϡvm) (bool, error) {\n"+
				"\tarr, _ := v.v.peek().([]interface{})\n"+
				"\tmv, ok := ϡboundValueToInt(v.a.peek()[%s])\n"+
				"\tif !ok {\n\t\treturn true, nil\n\t}\n"+
				"\treturn len(arr) >= mv, nil\n}\n\n", i, label)
			continue
		}

		name := r.nextName(info.Rule, "pred")
		params := info.Labels

		fmt.Fprintf(buf, "func (c *current) %s(%s) (bool, error) {\n%s\n}\n\n",
			name, paramList(params), info.Code.Code)

		fmt.Fprintf(buf, "func ϡcallpred%d(v *ϡvm) (bool, error) {\n", i)
		buf.WriteString("\tstack := v.a.peek()\n\t_ = stack\n")
		fmt.Fprintf(buf, "\treturn v.cur.%s(%s)\n}\n\n", name, argList(params))
	}
	return nil
}

// nextName picks onRuleName1, onRuleName2, ... (or predX), a simple
// per-rule sequential counter that keeps generated names readable and
// stable across re-renders of the same grammar.
func (r *renderer) nextName(rule, prefix string) string {
	key := prefix + "|" + rule
	r.ruleSeq[key]++
	clean := strings.Map(func(ch rune) rune {
		if ch == '.' {
			return '_'
		}
		return ch
	}, rule)
	return fmt.Sprintf("%s%s%d", prefix, strings.Title(clean), r.ruleSeq[key])
}

func paramList(labels []string) string {
	parts := make([]string, len(labels))
	for i, l := range labels {
		parts[i] = l + " interface{}"
	}
	return strings.Join(parts, ", ")
}

func argList(labels []string) string {
	parts := make([]string, len(labels))
	for i, l := range labels {
		parts[i] = fmt.Sprintf("stack[%s]", strconv.Quote(l))
	}
	return strings.Join(parts, ", ")
}

// renderMatchers emits the literal ϡmatcher value for every entry in
// art.MatcherSpecs, as a var ϡmatchers []ϡmatcher the generated
// program's ms field points at.
func (r *renderer) renderMatchers(buf *bytes.Buffer) {
	buf.WriteString("var ϡmatchers = []ϡmatcher{\n")
	for _, spec := range r.art.MatcherSpecs {
		buf.WriteString("\t" + matcherLiteral(spec) + ",\n")
	}
	buf.WriteString("}\n\n")
}

func matcherLiteral(spec compiler.MatcherSpec) string {
	switch spec.Kind {
	case compiler.MatcherAny:
		return "ϡanyMatcher{}"
	case compiler.MatcherLiteral:
		return fmt.Sprintf("ϡstringMatcher{value: %s, ignoreCase: %t}", strconv.Quote(spec.Value), spec.IgnoreCase)
	case compiler.MatcherClass:
		return classLiteral(spec.Class)
	case compiler.MatcherNamed:
		inner := "ϡanyMatcher{}"
		if spec.Inner != nil {
			inner = matcherLiteral(*spec.Inner)
		}
		return fmt.Sprintf("ϡnamedMatcher{inner: %s, name: %s}", inner, strconv.Quote(spec.Name))
	default:
		return "ϡanyMatcher{}"
	}
}

func classLiteral(c vm.CharClassSpec) string {
	var chars, ranges, classes []string
	for _, ch := range c.Chars {
		chars = append(chars, strconv.QuoteRune(ch))
	}
	for _, r := range c.Ranges {
		ranges = append(ranges, strconv.QuoteRune(r))
	}
	for i, name := range c.Classes {
		negated := i < len(c.ClassNegated) && c.ClassNegated[i]
		classes = append(classes, fmt.Sprintf("{table: ϡrangeTable(%s), negated: %t}", strconv.Quote(name), negated))
	}
	return fmt.Sprintf(
		"ϡcharClassMatcher{chars: []rune{%s}, ranges: []rune{%s}, classes: []ϡclassEntry{%s}, ignoreCase: %t, inverted: %t}",
		strings.Join(chars, ", "), strings.Join(ranges, ", "), strings.Join(classes, ", "), c.IgnoreCase, c.Inverted,
	)
}

// renderProgram emits ϡtheProgram, stitching together the bytecode
// stream, the string pool, and the matcher/action/predicate slices
// rendered above. Instr.Args are int in package compiler/vm and uint16
// in the skeleton's ϡinstr, matching the generated runtime's bytecode width.
func (r *renderer) renderProgram(buf *bytes.Buffer) {
	p := r.art.Program

	buf.WriteString("var ϡtheProgram = &ϡprogram{\n")

	buf.WriteString("\tinstrs: []ϡinstr{\n")
	for i, instr := range p.Instrs {
		op, args := vm.DecodeInstr(instr)
		ruleIx := -1
		if i < len(p.InstrToRule) {
			ruleIx = p.InstrToRule[i]
		}
		fmt.Fprintf(buf, "\t\t{op: ϡop(%d), ruleNmIx: %d, args: []uint16{%s}},\n",
			op, ruleIx, joinUint16(args))
	}
	buf.WriteString("\t},\n")

	buf.WriteString("\tms: ϡmatchers,\n")

	buf.WriteString("\tas: []func(*ϡvm) (interface{}, error){\n")
	for i := range r.art.Actions {
		fmt.Fprintf(buf, "\t\tϡcallact%d,\n", i)
	}
	buf.WriteString("\t},\n")

	buf.WriteString("\tbs: []func(*ϡvm) (bool, error){\n")
	for i := range r.art.Predicates {
		fmt.Fprintf(buf, "\t\tϡcallpred%d,\n", i)
	}
	buf.WriteString("\t},\n")

	buf.WriteString("\tss: []string{\n")
	for _, s := range p.Ss {
		fmt.Fprintf(buf, "\t\t%s,\n", strconv.Quote(s))
	}
	buf.WriteString("\t},\n")

	buf.WriteString("}\n")
}

func joinUint16(args []int) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = strconv.Itoa(a)
	}
	return strings.Join(parts, ", ")
}
