// Package dslparser is the hand-written recognizer for the PEG grammar
// DSL (spec.md §4.1). It does not use the bytecode/VM machinery in
// package vm — the grammar DSL is small and fixed, so (exactly like the
// teacher's own bootstrap parser) it is easier, and faster to compile, to
// hand-write a recursive-descent recognizer than to bootstrap the tool
// with itself.
package dslparser

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/peggylang/peggy/ast"
)

const eof = rune(-1)

// reservedWords mirrors the generated code's host language (Go):
// labels end up as the names of action/predicate method parameters, so
// they — and rule names, which become doc comments and switch labels —
// must not collide with a Go keyword.
var reservedWords = map[string]bool{
	"break": true, "default": true, "func": true, "interface": true, "select": true,
	"case": true, "defer": true, "go": true, "map": true, "struct": true,
	"chan": true, "else": true, "goto": true, "package": true, "switch": true,
	"const": true, "fallthrough": true, "if": true, "range": true, "type": true,
	"continue": true, "for": true, "import": true, "return": true, "var": true,
}

// IsReserved reports whether nm is a reserved word that may not be used
// as a bare rule or label name (spec.md §4.3 pass 10).
func IsReserved(nm string) bool { return reservedWords[nm] }

// Fragment is one named chunk of grammar source. Multiple fragments
// concatenate into a single grammar: each is parsed independently and
// their rule lists are concatenated, with the first fragment's
// initializers taking precedence (spec.md §4.1 "Contract").
type Fragment struct {
	Name string
	Text string
}

// Parse parses a single fragment into an *ast.Grammar, or returns a
// *SyntaxError.
func Parse(source, text string) (*ast.Grammar, error) {
	p := newParser(source, text)
	p.skipWS()
	g, ok := p.parseGrammar()
	if !ok {
		return nil, p.syntaxError()
	}
	p.skipWS()
	if p.i != len(p.data) {
		p.fail("end of grammar")
		return nil, p.syntaxError()
	}
	return g, nil
}

// ParseFragments parses every fragment independently and concatenates
// the resulting rule lists, with the first fragment's initializers
// taking precedence (spec.md §4.1).
func ParseFragments(frags []Fragment) (*ast.Grammar, error) {
	var out *ast.Grammar
	for _, f := range frags {
		g, err := Parse(f.Name, f.Text)
		if err != nil {
			return nil, err
		}
		if out == nil {
			out = g
			continue
		}
		out.Rules = append(out.Rules, g.Rules...)
		out.Imports = append(out.Imports, g.Imports...)
	}
	return out, nil
}

type parser struct {
	source  string
	data    []rune
	offsets []int // byte offset of data[i]; offsets[len(data)] == len(text) in bytes
	lines   []int
	cols    []int
	i       int

	failPos      int
	failExpected []string
}

func newParser(source, text string) *parser {
	var data []rune
	var offsets []int
	var lines []int
	var cols []int

	line, col := 1, 1
	off := 0
	for _, r := range text {
		data = append(data, r)
		offsets = append(offsets, off)
		lines = append(lines, line)
		cols = append(cols, col)
		off += utf8.RuneLen(r)
		if r == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	offsets = append(offsets, off)
	lines = append(lines, line)
	cols = append(cols, col)

	return &parser{source: source, data: data, offsets: offsets, lines: lines, cols: cols}
}

func (p *parser) pos() ast.Pos {
	return ast.Pos{Line: p.lines[p.i], Col: p.cols[p.i], Offset: p.offsets[p.i]}
}

func (p *parser) loc(start ast.Pos) ast.Location {
	return ast.Location{Source: p.source, Start: start, End: p.pos()}
}

func (p *parser) meta(start ast.Pos) ast.Meta { return ast.Meta{Location: p.loc(start)} }

func (p *parser) peek() rune {
	if p.i >= len(p.data) {
		return eof
	}
	return p.data[p.i]
}

func (p *parser) peekAt(off int) rune {
	if p.i+off >= len(p.data) || p.i+off < 0 {
		return eof
	}
	return p.data[p.i+off]
}

func (p *parser) advance() { p.i++ }

func (p *parser) fail(expected string) {
	if p.i > p.failPos {
		p.failPos = p.i
		p.failExpected = []string{expected}
	} else if p.i == p.failPos {
		p.failExpected = append(p.failExpected, expected)
	}
}

func (p *parser) syntaxError() *SyntaxError {
	ix := p.failPos
	if ix >= len(p.lines) {
		ix = len(p.lines) - 1
	}
	pos := ast.Pos{Line: p.lines[ix], Col: p.cols[ix], Offset: p.offsets[ix]}
	found := ""
	if ix < len(p.data) {
		found = strconv.QuoteRune(p.data[ix])
	}
	return &SyntaxError{Source: p.source, Pos: pos, Expected: p.failExpected, Found: found}
}

// lit matches an exact ASCII literal used by the DSL's own syntax (not
// to be confused with the grammar's literal matcher expressions).
func (p *parser) lit(s string) bool {
	start := p.i
	for _, r := range s {
		if p.peek() != r {
			p.i = start
			p.fail(strconv.Quote(s))
			return false
		}
		p.advance()
	}
	return true
}

// keyword matches s only when it is not immediately followed by another
// identifier character, so "from" doesn't also match the start of
// "fromage".
func (p *parser) keyword(s string) bool {
	start := p.i
	if !p.lit(s) {
		return false
	}
	if isIDPart(p.peek()) {
		p.i = start
		p.fail(strconv.Quote(s))
		return false
	}
	return true
}

func isIDStart(r rune) bool {
	return r == '_' || r == '$' || unicode.IsLetter(r)
}

func isIDPart(r rune) bool {
	return r == '_' || r == '$' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isWS(r rune) bool { return r == ' ' || r == '\t' || r == '\r' || r == '\n' }

// skipWS skips whitespace and // and /* */ comments (non-nesting),
// matching spec.md §4.1 "Comments".
func (p *parser) skipWS() {
	for {
		switch {
		case isWS(p.peek()):
			p.advance()
		case p.peek() == '/' && p.peekAt(1) == '/':
			for p.peek() != '\n' && p.peek() != eof {
				p.advance()
			}
		case p.peek() == '/' && p.peekAt(1) == '*':
			p.advance()
			p.advance()
			for !(p.peek() == '*' && p.peekAt(1) == '/') && p.peek() != eof {
				p.advance()
			}
			if p.peek() != eof {
				p.advance()
				p.advance()
			}
		default:
			return
		}
	}
}

// identifier parses an ECMAScript-like identifier, including \uXXXX and
// \u{...} escapes (spec.md §4.1 "Identifier syntax").
func (p *parser) identifier() (string, bool) {
	start := p.i
	var sb strings.Builder

	first, ok := p.identPart(true)
	if !ok {
		p.i = start
		p.fail("identifier")
		return "", false
	}
	sb.WriteRune(first)
	for {
		save := p.i
		r, ok := p.identPart(false)
		if !ok {
			p.i = save
			break
		}
		sb.WriteRune(r)
	}
	return sb.String(), true
}

func (p *parser) identPart(isStart bool) (rune, bool) {
	if p.peek() == '\\' && p.peekAt(1) == 'u' {
		save := p.i
		p.advance()
		p.advance()
		r, ok := p.unicodeEscape()
		if !ok || (isStart && !isIDStart(r)) || (!isStart && !isIDPart(r)) {
			p.i = save
			return 0, false
		}
		return r, true
	}
	r := p.peek()
	if isStart && isIDStart(r) {
		p.advance()
		return r, true
	}
	if !isStart && isIDPart(r) {
		p.advance()
		return r, true
	}
	return 0, false
}

func (p *parser) unicodeEscape() (rune, bool) {
	if p.peek() == '{' {
		p.advance()
		start := p.i
		for p.peek() != '}' && p.peek() != eof {
			p.advance()
		}
		hex := string(p.data[start:p.i])
		if p.peek() != '}' {
			return 0, false
		}
		p.advance()
		v, err := strconv.ParseInt(hex, 16, 32)
		if err != nil {
			return 0, false
		}
		return rune(v), true
	}
	if p.i+4 > len(p.data) {
		return 0, false
	}
	hex := string(p.data[p.i : p.i+4])
	v, err := strconv.ParseInt(hex, 16, 32)
	if err != nil {
		return 0, false
	}
	for k := 0; k < 4; k++ {
		p.advance()
	}
	return rune(v), true
}

// parseGrammar is the Grammar production: optional top-level and
// per-parse initializers, optional imports, then one or more rules.
func (p *parser) parseGrammar() (*ast.Grammar, bool) {
	start := p.pos()
	g := &ast.Grammar{}

	if cb, ok := p.tripleInitializer(); ok {
		g.Initializer = cb
		p.skipWS()
	}
	if cb, ok := p.doubleInitializer(); ok {
		g.PerParseInitializer = cb
		p.skipWS()
	}
	for {
		im, ok := p.parseImport()
		if !ok {
			break
		}
		g.Imports = append(g.Imports, im)
		p.skipWS()
	}

	for {
		r, ok := p.parseRule()
		if !ok {
			break
		}
		g.Rules = append(g.Rules, r)
		p.skipWS()
	}

	if len(g.Rules) == 0 {
		p.fail("rule")
		return nil, false
	}

	g.Location = p.loc(start)
	return g, true
}

func (p *parser) tripleInitializer() (*ast.CodeBlock, bool) {
	start := p.i
	startPos := p.pos()
	if !p.lit("{{{") {
		p.i = start
		return nil, false
	}
	code, ok := p.codeUntil("}}}")
	if !ok {
		p.i = start
		return nil, false
	}
	return &ast.CodeBlock{Code: code, Location: p.loc(startPos)}, true
}

func (p *parser) doubleInitializer() (*ast.CodeBlock, bool) {
	start := p.i
	startPos := p.pos()
	if !p.lit("{{") {
		p.i = start
		return nil, false
	}
	code, ok := p.codeUntil("}}")
	if !ok {
		p.i = start
		return nil, false
	}
	return &ast.CodeBlock{Code: code, Location: p.loc(startPos)}, true
}

// codeUntil consumes raw text up to (not including) the first
// occurrence of closer, tracking brace depth so a single '}' inside the
// code block does not end it prematurely.
func (p *parser) codeUntil(closer string) (string, bool) {
	start := p.i
	depth := 0
	for {
		if p.peek() == eof {
			return "", false
		}
		if depth == 0 && p.matchesHere(closer) {
			code := string(p.data[start:p.i])
			for range []rune(closer) {
				p.advance()
			}
			return code, true
		}
		switch p.peek() {
		case '{':
			depth++
		case '}':
			depth--
		}
		p.advance()
	}
}

func (p *parser) matchesHere(s string) bool {
	for k, r := range []rune(s) {
		if p.peekAt(k) != r {
			return false
		}
	}
	return true
}

func (p *parser) parseImport() (*ast.Import, bool) {
	start := p.i
	startPos := p.pos()
	if !p.keyword("import") {
		return nil, false
	}
	p.skipWS()

	var bindings []ast.ImportBinding
	if p.peek() == '{' {
		p.advance()
		p.skipWS()
		for p.peek() != '}' {
			bindings = append(bindings, p.importBinding())
			p.skipWS()
			if p.peek() == ',' {
				p.advance()
				p.skipWS()
			}
		}
		p.advance()
	} else {
		bindStart := p.pos()
		nm, ok := p.identifier()
		if !ok {
			p.i = start
			return nil, false
		}
		bindings = append(bindings, ast.ImportBinding{Name: nm, Location: p.loc(bindStart)})
	}
	p.skipWS()
	if !p.keyword("from") {
		p.i = start
		return nil, false
	}
	p.skipWS()
	mod, ok := p.stringLiteral()
	if !ok {
		p.i = start
		return nil, false
	}
	p.skipWS()
	if p.peek() == ';' {
		p.advance()
	}
	return &ast.Import{Bindings: bindings, Module: mod, Location: p.loc(startPos)}, true
}

func (p *parser) importBinding() ast.ImportBinding {
	startPos := p.pos()
	nm, _ := p.identifier()
	alias := ""
	p.skipWS()
	save := p.i
	if p.keyword("as") {
		p.skipWS()
		alias, _ = p.identifier()
	} else {
		p.i = save
	}
	return ast.ImportBinding{Name: nm, Alias: alias, Location: p.loc(startPos)}
}

// parseRule: name [display] ruleOp expression ";"?
func (p *parser) parseRule() (*ast.Rule, bool) {
	start := p.i
	startPos := p.pos()
	nameStart := p.pos()
	nm, ok := p.identifier()
	if !ok {
		return nil, false
	}
	if IsReserved(nm) {
		p.i = start
		p.fail("rule name")
		return nil, false
	}
	nameLoc := p.loc(nameStart)
	p.skipWS()

	var display string
	var hasDisplay bool
	if p.peek() == '"' || p.peek() == '\'' {
		if s, ok := p.stringLiteral(); ok {
			display = s
			hasDisplay = true
			p.skipWS()
		}
	}

	if !p.ruleOp() {
		p.i = start
		return nil, false
	}
	p.skipWS()

	expr, ok := p.choiceExpr()
	if !ok {
		p.i = start
		return nil, false
	}
	p.skipEOL()

	return &ast.Rule{
		Name:           nm,
		NameLoc:        nameLoc,
		DisplayName:    display,
		HasDisplayName: hasDisplay,
		Expr:           expr,
		Location:       p.loc(startPos),
	}, true
}

// skipEOL consumes an optional statement-terminating ";". It is never
// required: a rule's expression also ends where the next rule's head
// begins (spec.md §4.1: "; is optional before a newline-terminated
// line end").
func (p *parser) skipEOL() {
	save := p.i
	for p.peek() == ' ' || p.peek() == '\t' {
		p.advance()
	}
	if p.peek() == ';' {
		p.advance()
		return
	}
	p.i = save
}

// ruleOp accepts "=", "<-", "←" (U+2190) or "⟵" (U+27F5).
func (p *parser) ruleOp() bool {
	switch p.peek() {
	case '=':
		p.advance()
		return true
	case '←', '⟵':
		p.advance()
		return true
	case '<':
		if p.peekAt(1) == '-' {
			p.advance()
			p.advance()
			return true
		}
	}
	p.fail("rule definition operator")
	return false
}

// choiceExpr: alt ('/' alt)*
func (p *parser) choiceExpr() (ast.Expr, bool) {
	start := p.pos()
	first, ok := p.choiceAlt()
	if !ok {
		return nil, false
	}
	alts := []ast.Expr{first}
	for {
		save := p.i
		p.skipWS()
		if p.peek() != '/' {
			p.i = save
			break
		}
		p.advance()
		p.skipWS()
		alt, ok := p.choiceAlt()
		if !ok {
			p.i = save
			break
		}
		alts = append(alts, alt)
	}
	if len(alts) == 1 {
		return alts[0], true
	}
	return &ast.ChoiceExpr{Meta: p.meta(start), Alternatives: alts}, true
}

// choiceAlt: sequence ('{' code '}')?
func (p *parser) choiceAlt() (ast.Expr, bool) {
	start := p.pos()
	seq, ok := p.sequenceExpr()
	if !ok {
		return nil, false
	}
	save := p.i
	p.skipWS()
	if code, ok := p.braceCode(); ok {
		return &ast.ActionExpr{Meta: p.meta(start), Expr: seq, Code: code}, true
	}
	p.i = save
	return seq, true
}

// braceCode parses a "{ ... }" code block, used for both actions and
// semantic predicates.
func (p *parser) braceCode() (ast.CodeBlock, bool) {
	start := p.i
	startPos := p.pos()
	if p.peek() != '{' {
		return ast.CodeBlock{}, false
	}
	p.advance()
	code, ok := p.codeUntil("}")
	if !ok {
		p.i = start
		return ast.CodeBlock{}, false
	}
	return ast.CodeBlock{Code: code, Location: p.loc(startPos)}, true
}

// sequenceExpr: labeledExpr+
func (p *parser) sequenceExpr() (ast.Expr, bool) {
	start := p.pos()
	var elems []ast.Expr

	for {
		save := p.i
		e, ok := p.labeledExpr()
		if !ok {
			p.i = save
			break
		}
		elems = append(elems, e)
		p.skipWS()
	}

	if len(elems) == 0 {
		p.fail("expression")
		return nil, false
	}
	if len(elems) == 1 {
		return elems[0], true
	}
	return &ast.SeqExpr{Meta: p.meta(start), Exprs: elems}, true
}

// labeledExpr: (label ':' | '@' label ':' | '@') ? prefixExpr
func (p *parser) labeledExpr() (ast.Expr, bool) {
	start := p.pos()
	save := p.i

	pick := false
	if p.peek() == '@' {
		p.advance()
		pick = true
	}

	labelStart := p.pos()
	var label string
	hasLabel := false
	lsave := p.i
	if nm, ok := p.identifier(); ok {
		p.skipWSNoNewlineComment()
		if p.peek() == ':' {
			if IsReserved(nm) {
				p.i = save
				p.fail("label")
				return nil, false
			}
			p.advance()
			label = nm
			hasLabel = true
		} else {
			p.i = lsave
		}
	} else {
		p.i = lsave
	}

	if !pick && !hasLabel {
		p.i = save
	}

	p.skipWS()
	inner, ok := p.prefixExpr()
	if !ok {
		p.i = save
		return nil, false
	}

	if !pick && !hasLabel {
		return inner, true
	}
	return &ast.LabeledExpr{
		Meta:     p.meta(start),
		Label:    label,
		LabelLoc: p.loc(labelStart),
		HasLabel: hasLabel,
		Pick:     pick,
		Expr:     inner,
	}, true
}

// skipWSNoNewlineComment is a thin alias kept distinct from skipWS for
// readability at call sites that only need to bridge "name" and ":".
func (p *parser) skipWSNoNewlineComment() { p.skipWS() }

// prefixExpr: ('&' | '!') (semanticPredicate | suffixExpr) | '$' prefixExpr | suffixExpr
func (p *parser) prefixExpr() (ast.Expr, bool) {
	start := p.pos()
	switch p.peek() {
	case '&':
		p.advance()
		p.skipWS()
		if code, ok := p.braceCode(); ok {
			return &ast.SemanticAndExpr{Meta: p.meta(start), Code: code}, true
		}
		inner, ok := p.suffixExpr()
		if !ok {
			return nil, false
		}
		return &ast.SimpleAndExpr{Meta: p.meta(start), Expr: inner}, true
	case '!':
		p.advance()
		p.skipWS()
		if code, ok := p.braceCode(); ok {
			return &ast.SemanticNotExpr{Meta: p.meta(start), Code: code}, true
		}
		inner, ok := p.suffixExpr()
		if !ok {
			return nil, false
		}
		return &ast.SimpleNotExpr{Meta: p.meta(start), Expr: inner}, true
	case '$':
		p.advance()
		p.skipWS()
		inner, ok := p.prefixExpr()
		if !ok {
			return nil, false
		}
		return &ast.TextExpr{Meta: p.meta(start), Expr: inner}, true
	default:
		return p.suffixExpr()
	}
}

// suffixExpr: primaryExpr ('?' | '*' | '+' | '|' boundary '|')?
func (p *parser) suffixExpr() (ast.Expr, bool) {
	start := p.pos()
	prim, ok := p.primaryExpr()
	if !ok {
		return nil, false
	}

	switch p.peek() {
	case '?':
		p.advance()
		return &ast.OptionalExpr{Meta: p.meta(start), Expr: prim}, true
	case '*':
		p.advance()
		return &ast.ZeroOrMoreExpr{Meta: p.meta(start), Expr: prim}, true
	case '+':
		p.advance()
		return &ast.OneOrMoreExpr{Meta: p.meta(start), Expr: prim}, true
	case '|':
		min, max, delim, ok := p.repeatBoundary()
		if !ok {
			return prim, true
		}
		return &ast.RepeatedExpr{Meta: p.meta(start), Expr: prim, Min: min, Max: max, Delim: delim}, true
	default:
		return prim, true
	}
}

// repeatBoundary parses "|n|", "|min..max|", "|min..|", "|..max|",
// "|n, delim|" and "|min..max, delim|" (spec.md §3 "Repetition
// boundaries").
func (p *parser) repeatBoundary() (min, max ast.Bound, delim ast.Expr, ok bool) {
	start := p.i
	if p.peek() != '|' {
		return
	}
	p.advance()
	p.skipWS()

	min, hasMin := p.bound()
	p.skipWS()

	hasRange := false
	if p.peek() == '.' && p.peekAt(1) == '.' {
		hasRange = true
		p.advance()
		p.advance()
		p.skipWS()
	}

	if hasRange {
		max, _ = p.bound()
	} else {
		max = min
	}
	p.skipWS()

	if !hasMin && !hasRange {
		p.i = start
		ok = false
		return
	}

	if p.peek() == ',' {
		p.advance()
		p.skipWS()
		d, dok := p.choiceExpr()
		if !dok {
			p.i = start
			ok = false
			return
		}
		delim = d
		p.skipWS()
	}

	if p.peek() != '|' {
		p.i = start
		ok = false
		return
	}
	p.advance()
	ok = true
	return
}

func (p *parser) bound() (ast.Bound, bool) {
	start := p.pos()
	if p.peek() == '{' {
		if code, ok := p.braceCode(); ok {
			return ast.Bound{Kind: ast.BoundCode, Code: &code, Location: p.loc(start)}, true
		}
	}
	if unicode.IsDigit(p.peek()) {
		s := p.i
		for unicode.IsDigit(p.peek()) {
			p.advance()
		}
		n, _ := strconv.Atoi(string(p.data[s:p.i]))
		return ast.Bound{Kind: ast.BoundConst, Const: n, Location: p.loc(start)}, true
	}
	if isIDStart(p.peek()) {
		nm, ok := p.identifier()
		if ok {
			return ast.Bound{Kind: ast.BoundVar, Var: nm, Location: p.loc(start)}, true
		}
	}
	return ast.Bound{Kind: ast.BoundNone}, false
}

// primaryExpr: literal | class | '.' | name ('.' name)? | '(' expr ')'
func (p *parser) primaryExpr() (ast.Expr, bool) {
	start := p.pos()

	switch p.peek() {
	case '"', '\'', '`':
		if s, ok := p.stringLiteral(); ok {
			ignoreCase := p.peek() == 'i' && !isIDPart(p.peekAt(1))
			if ignoreCase {
				p.advance()
			}
			return &ast.LiteralExpr{Meta: p.meta(start), Value: s, IgnoreCase: ignoreCase}, true
		}
		return nil, false

	case '[':
		return p.classExpr()

	case '.':
		p.advance()
		return &ast.AnyExpr{Meta: p.meta(start)}, true

	case '(':
		p.advance()
		p.skipWS()
		inner, ok := p.choiceExpr()
		if !ok {
			p.fail("expression")
			return nil, false
		}
		p.skipWS()
		if p.peek() != ')' {
			p.fail("\")\"")
			return nil, false
		}
		p.advance()
		return &ast.GroupExpr{Meta: p.meta(start), Expr: inner}, true
	}

	if isIDStart(p.peek()) {
		nameAt := p.i
		nm, ok := p.identifier()
		if !ok {
			return nil, false
		}
		if p.peek() == '.' && isIDStart(p.peekAt(1)) {
			p.advance()
			rule, ok := p.identifier()
			if !ok {
				p.fail("rule name")
				return nil, false
			}
			return &ast.LibraryRefExpr{Meta: p.meta(start), Import: nm, Rule: rule}, true
		}
		// A name followed by a rule operator (after an optional display
		// name) is the head of the next rule, not a reference.
		after, failPos, failExpected := p.i, p.failPos, p.failExpected
		p.skipWS()
		if p.peek() == '"' || p.peek() == '\'' {
			p.stringLiteral()
			p.skipWS()
		}
		c := p.peek()
		nextRule := c == '=' || c == '←' || c == '⟵' || (c == '<' && p.peekAt(1) == '-')
		p.i, p.failPos, p.failExpected = after, failPos, failExpected
		if nextRule {
			p.i = nameAt
			return nil, false
		}
		return &ast.RuleRefExpr{Meta: p.meta(start), Name: nm}, true
	}

	p.fail("primary expression")
	return nil, false
}

// stringLiteral parses '...' / "..." / `...` with Go-style escapes,
// matching spec.md §4.1 "Identifiers, whitespace, comments and literals
// follow the same notation as the Go language".
func (p *parser) stringLiteral() (string, bool) {
	quote := p.peek()
	if quote != '"' && quote != '\'' && quote != '`' {
		p.fail("string literal")
		return "", false
	}
	start := p.i
	p.advance()

	if quote == '`' {
		s := p.i
		for p.peek() != '`' && p.peek() != eof {
			p.advance()
		}
		if p.peek() != '`' {
			p.i = start
			p.fail("closing `")
			return "", false
		}
		str := string(p.data[s:p.i])
		p.advance()
		return str, true
	}

	var sb strings.Builder
	for {
		r := p.peek()
		if r == eof {
			p.i = start
			p.fail("closing quote")
			return "", false
		}
		if r == quote {
			p.advance()
			return sb.String(), true
		}
		if r == '\\' {
			p.advance()
			esc, ok := p.escapeSequence()
			if !ok {
				p.i = start
				return "", false
			}
			sb.WriteRune(esc)
			continue
		}
		sb.WriteRune(r)
		p.advance()
	}
}

func (p *parser) escapeSequence() (rune, bool) {
	r := p.peek()
	switch r {
	case 'n':
		p.advance()
		return '\n', true
	case 't':
		p.advance()
		return '\t', true
	case 'r':
		p.advance()
		return '\r', true
	case '\\', '\'', '"', '`':
		p.advance()
		return r, true
	case '0':
		p.advance()
		return 0, true
	case 'b':
		p.advance()
		return '\b', true
	case 'f':
		p.advance()
		return '\f', true
	case 'v':
		p.advance()
		return '\v', true
	case 'x':
		p.advance()
		return p.hexEscape(2)
	case 'u':
		p.advance()
		return p.unicodeEscape()
	default:
		p.advance()
		return r, true
	}
}

func (p *parser) hexEscape(n int) (rune, bool) {
	if p.i+n > len(p.data) {
		return 0, false
	}
	hex := string(p.data[p.i : p.i+n])
	v, err := strconv.ParseInt(hex, 16, 32)
	if err != nil {
		return 0, false
	}
	for k := 0; k < n; k++ {
		p.advance()
	}
	return rune(v), true
}

// classExpr parses "[...]" character classes (spec.md §3 "class"),
// including ranges, inversion, the i/u suffixes and \p{...}/\P{...}
// Unicode property escapes (only meaningful with the u suffix, but
// accepted syntactically regardless; analysis rejects the combination
// elsewhere if ever required).
func (p *parser) classExpr() (ast.Expr, bool) {
	start := p.pos()
	if p.peek() != '[' {
		return nil, false
	}
	p.advance()

	var parts []ast.ClassPart
	inverted := false
	if p.peek() == '^' {
		inverted = true
		p.advance()
	}

	for p.peek() != ']' {
		if p.peek() == eof {
			p.fail("closing ]")
			return nil, false
		}
		if p.peek() == '\\' && (p.peekAt(1) == 'p' || p.peekAt(1) == 'P') {
			negated := p.peekAt(1) == 'P'
			p.advance()
			p.advance()
			name, ok := p.unicodeClassName()
			if !ok {
				return nil, false
			}
			parts = append(parts, ast.ClassPart{IsClass: true, ClassName: name, Negated: negated})
			continue
		}

		lo, ok := p.classChar()
		if !ok {
			return nil, false
		}
		if p.peek() == '-' && p.peekAt(1) != ']' && p.peekAt(1) != eof {
			p.advance()
			hi, ok := p.classChar()
			if !ok {
				return nil, false
			}
			if hi < lo {
				p.fail("valid character range (low <= high)")
				return nil, false
			}
			parts = append(parts, ast.ClassPart{IsRange: true, Lo: lo, Hi: hi})
		} else {
			parts = append(parts, ast.ClassPart{Single: lo})
		}
	}
	p.advance()

	ignoreCase := false
	unicodeFlag := false
	for {
		switch p.peek() {
		case 'i':
			if !isIDPart(p.peekAt(1)) || p.peekAt(1) == 'u' {
				ignoreCase = true
				p.advance()
				continue
			}
		case 'u':
			unicodeFlag = true
			p.advance()
			continue
		}
		break
	}

	return &ast.ClassExpr{
		Meta:       p.meta(start),
		Parts:      parts,
		Inverted:   inverted,
		IgnoreCase: ignoreCase,
		Unicode:    unicodeFlag,
	}, true
}

func (p *parser) classChar() (rune, bool) {
	r := p.peek()
	if r == eof || r == ']' {
		p.fail("character")
		return 0, false
	}
	if r == '\\' {
		p.advance()
		return p.escapeSequence()
	}
	p.advance()
	return r, true
}

func (p *parser) unicodeClassName() (string, bool) {
	if p.peek() != '{' {
		// single-letter form: \pL
		r := p.peek()
		if r == eof {
			p.fail("Unicode class letter")
			return "", false
		}
		p.advance()
		return string(r), true
	}
	p.advance()
	start := p.i
	for p.peek() != '}' && p.peek() != eof {
		p.advance()
	}
	if p.peek() != '}' {
		p.fail("closing }")
		return "", false
	}
	name := string(p.data[start:p.i])
	p.advance()
	return name, true
}
