package expr

import (
	"fmt"
	"strings"

	"athena/libs/ticker"
)

// validReduceFuncs is the closed set of post-fetch reductions the
// surface syntax can name; an empty string means "take the last
// value" rather than naming one of these.
var validReduceFuncs = map[string]bool{"mean": true, "min": true, "max": true, "sum": true}

// rewrite replaces every TickerRef in node with the Reduce it denotes:
// start = rewind - n, end = rewind. Returns
// ticker.ErrNonexistentAggregator for an unresolvable aggregator code
// and ticker.ErrWrongCondition for any other malformed reference.
func rewrite(node Node) (Node, error) {
	switch n := node.(type) {
	case Literal:
		return n, nil
	case TickerRef:
		return rewriteReference(n)
	case BinOp:
		left, err := rewrite(n.Left)
		if err != nil {
			return nil, err
		}
		right, err := rewrite(n.Right)
		if err != nil {
			return nil, err
		}
		return BinOp{Op: n.Op, Left: left, Right: right}, nil
	case Compare:
		left, err := rewrite(n.Left)
		if err != nil {
			return nil, err
		}
		right, err := rewrite(n.Right)
		if err != nil {
			return nil, err
		}
		return Compare{Op: n.Op, Left: left, Right: right}, nil
	case Logical:
		left, err := rewrite(n.Left)
		if err != nil {
			return nil, err
		}
		right, err := rewrite(n.Right)
		if err != nil {
			return nil, err
		}
		return Logical{Op: n.Op, Left: left, Right: right}, nil
	case UnaryOp:
		operand, err := rewrite(n.Operand)
		if err != nil {
			return nil, err
		}
		return UnaryOp{Op: n.Op, Operand: operand}, nil
	case Reduce:
		return n, nil
	default:
		return nil, fmt.Errorf("%w: unrecognized node type %T", ticker.ErrWrongCondition, node)
	}
}

func rewriteReference(ref TickerRef) (Node, error) {
	aggCode := ref.Aggregator
	if aggCode == "" {
		aggCode = ticker.MOEX.Code()
	}
	agg, err := ticker.ParseAggregatorCode(aggCode)
	if err != nil {
		return nil, err
	}

	column, err := ticker.ParseColumnCode(ref.Column)
	if err != nil {
		return nil, err
	}

	span, err := ticker.ParseTimeSpanLetter(ref.Letter)
	if err != nil {
		return nil, err
	}

	fn := strings.ToLower(strings.TrimSpace(ref.Func))
	if fn != "" && !validReduceFuncs[fn] {
		return nil, fmt.Errorf("%w: unknown reduction function %q", ticker.ErrWrongCondition, ref.Func)
	}

	start := ref.Rewind - ref.N
	end := ref.Rewind
	if start >= end {
		return nil, fmt.Errorf("%w: interval produced empty window [%d,%d]", ticker.ErrWrongCondition, start, end)
	}

	naming := ticker.Naming{Symbol: ref.Symbol, Aggregator: agg, TimeSpan: span}.WithDefaults()

	return Reduce{Naming: naming, Column: column, Start: start, End: end, Func: fn}, nil
}
