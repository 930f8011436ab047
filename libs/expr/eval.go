package expr

import (
	"context"
	"fmt"

	"athena/libs/store"
	"athena/libs/ticker"
)

// FetchFunc resolves a Reduce node's window to bars. The condition
// processor supplies one backed by the store-keeper; start/end are the
// same relative bar offsets storekeeper.Keeper.GetTicker takes.
type FetchFunc func(ctx context.Context, naming ticker.Naming, start, end int) (store.Table, error)

// Value is the result of evaluating one node: exactly one of its two
// fields is meaningful, discriminated by Kind.
type Value struct {
	Kind kind
	Num  float64
	Bool bool
}

func numberValue(v float64) Value { return Value{Kind: kindNumber, Num: v} }
func boolValue(v bool) Value      { return Value{Kind: kindBoolean, Bool: v} }

// Eval walks node bottom-up, calling fetch for every Reduce leaf. Fetch
// calls are sequential within one expression; concurrency across
// notifications is the condition processor's responsibility.
// A non-boolean top-level result is a caller error: typecheck (run by
// Compile) rejects it before a condition is ever persisted. Eval itself
// does not check the kind of the top-level result.
func Eval(ctx context.Context, node Node, fetch FetchFunc) (Value, error) {
	switch n := node.(type) {
	case Literal:
		return numberValue(n.Value), nil
	case Reduce:
		return evalReduce(ctx, n, fetch)
	case BinOp:
		left, err := Eval(ctx, n.Left, fetch)
		if err != nil {
			return Value{}, err
		}
		right, err := Eval(ctx, n.Right, fetch)
		if err != nil {
			return Value{}, err
		}
		return evalBinOp(n.Op, left.Num, right.Num)
	case Compare:
		left, err := Eval(ctx, n.Left, fetch)
		if err != nil {
			return Value{}, err
		}
		right, err := Eval(ctx, n.Right, fetch)
		if err != nil {
			return Value{}, err
		}
		return evalCompare(n.Op, left.Num, right.Num)
	case Logical:
		left, err := Eval(ctx, n.Left, fetch)
		if err != nil {
			return Value{}, err
		}
		right, err := Eval(ctx, n.Right, fetch)
		if err != nil {
			return Value{}, err
		}
		switch n.Op {
		case "and":
			return boolValue(left.Bool && right.Bool), nil
		case "or":
			return boolValue(left.Bool || right.Bool), nil
		default:
			return Value{}, fmt.Errorf("%w: unknown logical operator %q", ticker.ErrWrongCondition, n.Op)
		}
	case UnaryOp:
		operand, err := Eval(ctx, n.Operand, fetch)
		if err != nil {
			return Value{}, err
		}
		switch n.Op {
		case "-":
			return numberValue(-operand.Num), nil
		case "not":
			return boolValue(!operand.Bool), nil
		default:
			return Value{}, fmt.Errorf("%w: unknown unary operator %q", ticker.ErrWrongCondition, n.Op)
		}
	default:
		return Value{}, fmt.Errorf("%w: unrecognized node type %T", ticker.ErrWrongCondition, node)
	}
}

func evalReduce(ctx context.Context, n Reduce, fetch FetchFunc) (Value, error) {
	table, err := fetch(ctx, n.Naming, n.Start, n.End)
	if err != nil {
		return Value{}, err
	}

	window := table.Tail(n.End - n.Start)
	switch n.Func {
	case "":
		v, ok := window.Last(n.Column)
		if !ok {
			return Value{}, fmt.Errorf("%w: no data for %s in requested window", ticker.ErrFetchFailed, n.Naming.TableName())
		}
		return numberValue(v), nil
	case "mean":
		return numberValue(mean(window.Values(n.Column))), nil
	case "min":
		return numberValue(minOf(window.Values(n.Column))), nil
	case "max":
		return numberValue(maxOf(window.Values(n.Column))), nil
	case "sum":
		return numberValue(sum(window.Values(n.Column))), nil
	default:
		return Value{}, fmt.Errorf("%w: unknown reduction %q", ticker.ErrWrongCondition, n.Func)
	}
}

func evalBinOp(op string, l, r float64) (Value, error) {
	switch op {
	case "+":
		return numberValue(l + r), nil
	case "-":
		return numberValue(l - r), nil
	case "*":
		return numberValue(l * r), nil
	case "/":
		if r == 0 {
			return Value{}, fmt.Errorf("%w: division by zero", ticker.ErrWrongCondition)
		}
		return numberValue(l / r), nil
	case "%":
		if r == 0 {
			return Value{}, fmt.Errorf("%w: modulo by zero", ticker.ErrWrongCondition)
		}
		return numberValue(float64(int64(l) % int64(r))), nil
	default:
		return Value{}, fmt.Errorf("%w: unknown arithmetic operator %q", ticker.ErrWrongCondition, op)
	}
}

func evalCompare(op string, l, r float64) (Value, error) {
	switch op {
	case "<":
		return boolValue(l < r), nil
	case "<=":
		return boolValue(l <= r), nil
	case ">":
		return boolValue(l > r), nil
	case ">=":
		return boolValue(l >= r), nil
	case "==":
		return boolValue(l == r), nil
	case "!=":
		return boolValue(l != r), nil
	default:
		return Value{}, fmt.Errorf("%w: unknown comparison operator %q", ticker.ErrWrongCondition, op)
	}
}

func mean(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	return sum(vs) / float64(len(vs))
}

func sum(vs []float64) float64 {
	total := 0.0
	for _, v := range vs {
		total += v
	}
	return total
}

func minOf(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	m := vs[0]
	for _, v := range vs[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func maxOf(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	m := vs[0]
	for _, v := range vs[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
