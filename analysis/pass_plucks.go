package analysis

import "github.com/peggylang/peggy/ast"

// plucksPass is spec.md §4.3 pass 5: "@" only means anything as a
// direct element of a sequence (it says "replace the sequence's result
// with just this one"), and if that same sequence is itself wrapped in
// an action, the action's return value wins, silently discarding the
// pluck — worth flagging since it's easy to write by accident.
type plucksPass struct{}

func (plucksPass) Name() string { return "incorrect-plucks" }

func (plucksPass) Run(g *ast.Grammar, opts Options) []Problem {
	var probs []Problem
	for _, r := range g.Rules {
		// A rule's own top-level expression is in the same position a
		// single-element sequence would be (the parser collapses those
		// away), so a bare pick there is a harmless no-op, not a
		// violation.
		scanPlucks(r.Expr, true, &probs)
	}
	return probs
}

func scanPlucks(e ast.Expr, directSeqChild bool, probs *[]Problem) {
	switch e := e.(type) {
	case *ast.SeqExpr:
		for _, s := range e.Exprs {
			scanPlucks(s, true, probs)
		}
	case *ast.ActionExpr:
		if seq, ok := e.Expr.(*ast.SeqExpr); ok && seqHasPick(seq) {
			*probs = append(*probs, Problem{
				Severity: SeverityError,
				Message:  "@ pick has no effect here: the enclosing action's return value overrides it",
				Location: e.Loc(),
			})
		}
		scanPlucks(e.Expr, false, probs)
	case *ast.LabeledExpr:
		if e.Pick && !directSeqChild {
			*probs = append(*probs, Problem{
				Severity: SeverityError,
				Message:  "@ pick is only valid as a direct element of a sequence",
				Location: e.Loc(),
			})
		}
		scanPlucks(e.Expr, false, probs)
	case *ast.ChoiceExpr:
		for _, a := range e.Alternatives {
			scanPlucks(a, false, probs)
		}
	case *ast.OptionalExpr:
		scanPlucks(e.Expr, false, probs)
	case *ast.ZeroOrMoreExpr:
		scanPlucks(e.Expr, false, probs)
	case *ast.OneOrMoreExpr:
		scanPlucks(e.Expr, false, probs)
	case *ast.RepeatedExpr:
		scanPlucks(e.Expr, false, probs)
		if e.Delim != nil {
			scanPlucks(e.Delim, false, probs)
		}
	case *ast.GroupExpr:
		scanPlucks(e.Expr, false, probs)
	case *ast.TextExpr:
		scanPlucks(e.Expr, false, probs)
	case *ast.SimpleAndExpr:
		scanPlucks(e.Expr, false, probs)
	case *ast.SimpleNotExpr:
		scanPlucks(e.Expr, false, probs)
	case *ast.NamedExpr:
		scanPlucks(e.Expr, false, probs)
	}
}

func seqHasPick(seq *ast.SeqExpr) bool {
	for _, s := range seq.Exprs {
		if le, ok := s.(*ast.LabeledExpr); ok && le.Pick {
			return true
		}
	}
	return false
}
