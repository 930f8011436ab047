package expr

import (
	"fmt"
	"strconv"
	"strings"

	"athena/libs/ticker"
)

// Compile runs a condition's origin text through lex, parse, rewrite,
// and typecheck, and serializes the rewritten tree into its stored
// "compiled" form. The compiled form names only stable API values
// (aggregator/column/timespan codes, bar offsets, operator symbols):
// it is evaluable against a freshly booted process without re-parsing
// the original DSL text or closing over any transient object.
func Compile(origin string) (compiled string, tree Node, err error) {
	parsed, err := Parse(origin)
	if err != nil {
		return "", nil, err
	}
	rewritten, err := rewrite(parsed)
	if err != nil {
		return "", nil, err
	}
	if _, err := typecheck(rewritten); err != nil {
		return "", nil, err
	}
	return Serialize(rewritten), rewritten, nil
}

// Serialize renders a rewritten tree as a parenthesized prefix form.
func Serialize(node Node) string {
	switch n := node.(type) {
	case Literal:
		return fmt.Sprintf("(lit %s)", formatFloat(n.Value))
	case Reduce:
		fn := n.Func
		if fn == "" {
			fn = "_"
		}
		return fmt.Sprintf("(reduce %s %s %s %s %d %d %s)",
			n.Naming.Aggregator.Code(), n.Naming.Symbol, n.Column.Code(), n.Naming.TimeSpan.Letter(),
			n.Start, n.End, fn)
	case BinOp:
		return fmt.Sprintf("(bin %s %s %s)", n.Op, Serialize(n.Left), Serialize(n.Right))
	case Compare:
		return fmt.Sprintf("(cmp %s %s %s)", n.Op, Serialize(n.Left), Serialize(n.Right))
	case Logical:
		return fmt.Sprintf("(logical %s %s %s)", n.Op, Serialize(n.Left), Serialize(n.Right))
	case UnaryOp:
		return fmt.Sprintf("(unary %s %s)", n.Op, Serialize(n.Operand))
	default:
		return ""
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// ParseCompiled reconstructs the rewritten tree Compile produced,
// without re-running the lexer, parser, or typecheck pass: a stored
// compiled_condition is already validated at creation time.
func ParseCompiled(s string) (Node, error) {
	toks := tokenizeCompiled(s)
	node, rest, err := parseCompiledNode(toks)
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("%w: trailing tokens in compiled condition", ticker.ErrWrongCondition)
	}
	return node, nil
}

func tokenizeCompiled(s string) []string {
	var toks []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			toks = append(toks, cur.String())
			cur.Reset()
		}
	}
	for _, r := range s {
		switch {
		case r == '(' || r == ')':
			flush()
			toks = append(toks, string(r))
		case r == ' ' || r == '\t' || r == '\n':
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return toks
}

func parseCompiledNode(toks []string) (Node, []string, error) {
	if len(toks) < 2 || toks[0] != "(" {
		return nil, nil, fmt.Errorf("%w: malformed compiled condition", ticker.ErrWrongCondition)
	}
	kind := toks[1]
	rest := toks[2:]

	switch kind {
	case "lit":
		v, err := strconv.ParseFloat(rest[0], 64)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: malformed literal in compiled condition", ticker.ErrWrongCondition)
		}
		return Literal{Value: v}, expectCloseParen(rest[1:])
	case "reduce":
		agg, err := ticker.ParseAggregatorCode(rest[0])
		if err != nil {
			return nil, nil, err
		}
		symbol := rest[1]
		column, err := ticker.ParseColumnCode(rest[2])
		if err != nil {
			return nil, nil, err
		}
		span, err := ticker.ParseTimeSpanLetter(rest[3])
		if err != nil {
			return nil, nil, err
		}
		start, err := strconv.Atoi(rest[4])
		if err != nil {
			return nil, nil, fmt.Errorf("%w: malformed reduce start in compiled condition", ticker.ErrWrongCondition)
		}
		end, err := strconv.Atoi(rest[5])
		if err != nil {
			return nil, nil, fmt.Errorf("%w: malformed reduce end in compiled condition", ticker.ErrWrongCondition)
		}
		fn := rest[6]
		if fn == "_" {
			fn = ""
		}
		naming := ticker.Naming{Symbol: symbol, Aggregator: agg, TimeSpan: span}.WithDefaults()
		return Reduce{Naming: naming, Column: column, Start: start, End: end, Func: fn}, expectCloseParen(rest[7:])
	case "bin", "cmp", "logical":
		op := rest[0]
		left, rest2, err := parseCompiledNode(rest[1:])
		if err != nil {
			return nil, nil, err
		}
		right, rest3, err := parseCompiledNode(rest2)
		if err != nil {
			return nil, nil, err
		}
		var node Node
		switch kind {
		case "bin":
			node = BinOp{Op: op, Left: left, Right: right}
		case "cmp":
			node = Compare{Op: op, Left: left, Right: right}
		case "logical":
			node = Logical{Op: op, Left: left, Right: right}
		}
		return node, expectCloseParen(rest3)
	case "unary":
		op := rest[0]
		operand, rest2, err := parseCompiledNode(rest[1:])
		if err != nil {
			return nil, nil, err
		}
		return UnaryOp{Op: op, Operand: operand}, expectCloseParen(rest2)
	default:
		return nil, nil, fmt.Errorf("%w: unknown node kind %q in compiled condition", ticker.ErrWrongCondition, kind)
	}
}

func expectCloseParen(toks []string) []string {
	if len(toks) > 0 && toks[0] == ")" {
		return toks[1:]
	}
	return toks
}
