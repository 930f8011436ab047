// Package expr implements the condition DSL: lex, parse, rewrite,
// typecheck, and evaluate, plus a compiled-form serialization so a
// stored notification can be re-evaluated after a restart without
// re-parsing user text.
package expr

import "athena/libs/ticker"

// Node is the closed set of AST node kinds. There is no "identifier"
// or "call" node that could reference an arbitrary name: every name a
// condition can mention is baked into one of the constructors below at
// parse time, so nothing outside this set can ever be evaluated.
type Node interface {
	node()
}

// Literal is a numeric constant.
type Literal struct {
	Value float64
}

func (Literal) node() {}

// TickerRef is a ticker reference as written in the surface syntax,
// before rewrite resolves it into a Reduce node. Kept as its own type
// so the parser and the rewrite pass are independently testable.
type TickerRef struct {
	Aggregator string // short code as written, resolved during rewrite
	Symbol     string
	Column     string // column code as written, resolved during rewrite
	N          int    // interval count, default 1
	Letter     string // interval letter, e.g. "T", "D", "C"
	Rewind     int    // non-positive; 0 if omitted
	RewindSet  bool   // true if ":rewind" was present in the source
	Func       string // reduction function; "" if absent (take last value)
}

func (TickerRef) node() {}

// Reduce is what a TickerRef rewrites to: a fetch over a resolved
// Naming and a relative bar window, followed by the named reduction
// (or "take the last value" when Func is empty).
type Reduce struct {
	Naming ticker.Naming
	Column ticker.Column
	Start  int // relative bar offset, <= 0
	End    int // relative bar offset, <= 0, Start < End
	Func   string
}

func (Reduce) node() {}

// BinOp is arithmetic: + - * / %.
type BinOp struct {
	Op          string
	Left, Right Node
}

func (BinOp) node() {}

// Compare is a numeric comparison: < <= > >= == !=.
type Compare struct {
	Op          string
	Left, Right Node
}

func (Compare) node() {}

// Logical is a boolean combinator: and/or.
type Logical struct {
	Op          string
	Left, Right Node
}

func (Logical) node() {}

// UnaryOp is unary minus (numeric) or "not" (boolean).
type UnaryOp struct {
	Op      string
	Operand Node
}

func (UnaryOp) node() {}
