package expr

import (
	"fmt"

	"athena/libs/ticker"
)

// kind is the static result type of a node.
type kind int

const (
	kindNumber kind = iota
	kindBoolean
)

// typecheck walks a rewritten tree and infers each node's result type
// without evaluating it, rejecting anything that mixes numeric and
// boolean operands where it shouldn't. The allow-list *is* the set of
// node constructors in ast.go: there is no identifier-lookup node this
// pass could find out of bounds, so its only job is arithmetic-vs-
// boolean consistency and the top-level boolean requirement.
func typecheck(node Node) (kind, error) {
	k, err := inferKind(node)
	if err != nil {
		return 0, err
	}
	if k != kindBoolean {
		return 0, fmt.Errorf("%w: condition must evaluate to a boolean, not a number", ticker.ErrWrongCondition)
	}
	return k, nil
}

func inferKind(node Node) (kind, error) {
	switch n := node.(type) {
	case Literal:
		return kindNumber, nil
	case Reduce:
		return kindNumber, nil
	case BinOp:
		if err := expectKind(n.Left, kindNumber); err != nil {
			return 0, err
		}
		if err := expectKind(n.Right, kindNumber); err != nil {
			return 0, err
		}
		return kindNumber, nil
	case Compare:
		if err := expectKind(n.Left, kindNumber); err != nil {
			return 0, err
		}
		if err := expectKind(n.Right, kindNumber); err != nil {
			return 0, err
		}
		return kindBoolean, nil
	case Logical:
		if err := expectKind(n.Left, kindBoolean); err != nil {
			return 0, err
		}
		if err := expectKind(n.Right, kindBoolean); err != nil {
			return 0, err
		}
		return kindBoolean, nil
	case UnaryOp:
		switch n.Op {
		case "-":
			if err := expectKind(n.Operand, kindNumber); err != nil {
				return 0, err
			}
			return kindNumber, nil
		case "not":
			if err := expectKind(n.Operand, kindBoolean); err != nil {
				return 0, err
			}
			return kindBoolean, nil
		default:
			return 0, fmt.Errorf("%w: unknown unary operator %q", ticker.ErrWrongCondition, n.Op)
		}
	default:
		return 0, fmt.Errorf("%w: unrecognized node type %T", ticker.ErrWrongCondition, node)
	}
}

func expectKind(node Node, want kind) error {
	got, err := inferKind(node)
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("%w: type mismatch in condition", ticker.ErrWrongCondition)
	}
	return nil
}
