package vm

// DecodeInstr exposes a Instr's opcode and arguments, for package emit's
// benefit: it renders a Program's instruction stream as literal Go
// source and has no other way to get at instr's unexported fields.
func DecodeInstr(in Instr) (op int, args []int) {
	args = make([]int, len(in.args))
	for i, a := range in.args {
		args[i] = int(a)
	}
	return int(in.op), args
}

// Arg returns the value bound to a label visible at the current action
// or predicate's position, or nil if no such label was stored.
func (v *VM) Arg(name string) interface{} {
	return v.a.peek()[name]
}

// Args returns every label bound in the innermost enclosing scope. The
// returned map is the VM's own, not a copy; callers must not retain it
// past the action or predicate call that received it.
func (v *VM) Args() map[string]interface{} {
	return v.a.peek()
}

// Text returns the raw input text spanned by the expression an action
// is attached to.
func (v *VM) Text() string {
	return string(v.cur.text)
}

// Position returns the 1-based line and column and the 0-based byte
// offset where the current action or predicate's expression started.
func (v *VM) Position() (line, col, offset int) {
	return v.cur.pos.line, v.cur.pos.col, v.cur.pos.offset
}

// Filename returns the source name Run was given, for actions that want
// to build their own diagnostics.
func (v *VM) Filename() string {
	return v.filename
}

// Peek returns the value currently on top of the V stack without
// popping it. It exists for native bytecode helpers (package compiler's
// repetition-boundary check) that run as a predicate via CALLB, which
// unlike CALLA never pops its operand.
func (v *VM) Peek() interface{} {
	return v.v.peek()
}
