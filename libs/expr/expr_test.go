package expr

import (
	"context"
	"errors"
	"testing"

	"athena/libs/store"
	"athena/libs/ticker"
)

func fixedFetch(table store.Table) FetchFunc {
	return func(ctx context.Context, naming ticker.Naming, start, end int) (store.Table, error) {
		return table, nil
	}
}

func TestCompileAndEvalSimpleComparison(t *testing.T) {
	compiled, _, err := Compile("#YNDX.mean[C] > 100")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	tree, err := ParseCompiled(compiled)
	if err != nil {
		t.Fatalf("ParseCompiled: %v", err)
	}

	table := store.Table{{Datetime: 1, Values: map[ticker.Column]float64{ticker.Mean: 150}}}
	v, err := Eval(context.Background(), tree, fixedFetch(table))
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if !v.Bool {
		t.Error("expected true for mean=150 > 100")
	}
}

func TestCompileDefaultAggregatorIsMOEX(t *testing.T) {
	_, tree, err := Compile("#YNDX.mean[C] > 0")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	cmp, ok := tree.(Compare)
	if !ok {
		t.Fatalf("expected top-level Compare, got %T", tree)
	}
	reduce, ok := cmp.Left.(Reduce)
	if !ok {
		t.Fatalf("expected Reduce, got %T", cmp.Left)
	}
	if reduce.Naming.Aggregator != ticker.MOEX {
		t.Errorf("expected default aggregator MOEX, got %v", reduce.Naming.Aggregator)
	}
}

func TestCompileExplicitAggregator(t *testing.T) {
	_, tree, err := Compile("#MXNL:YNDX.long[1D] > 0")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	cmp := tree.(Compare)
	reduce := cmp.Left.(Reduce)
	if reduce.Naming.Aggregator != ticker.MOEXAnalytic {
		t.Errorf("expected MOEXAnalytic, got %v", reduce.Naming.Aggregator)
	}
}

func TestCompileIntervalDefaults(t *testing.T) {
	_, tree, err := Compile("#YNDX.mean[C] > 0")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	reduce := tree.(Compare).Left.(Reduce)
	if reduce.Start != -1 || reduce.End != 0 {
		t.Errorf("expected [C] to yield start=-1 end=0, got start=%d end=%d", reduce.Start, reduce.End)
	}
}

func TestCompileExplicitRewind(t *testing.T) {
	_, tree, err := Compile("#YNDX.mean[5T:-3] > 0")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	reduce := tree.(Compare).Left.(Reduce)
	if reduce.Start != -8 || reduce.End != -3 {
		t.Errorf("expected start=-8 end=-3, got start=%d end=%d", reduce.Start, reduce.End)
	}
}

func TestCompileRejectsZeroRewind(t *testing.T) {
	_, _, err := Compile("#YNDX.mean[C:0] > 0")
	if !errors.Is(err, ticker.ErrWrongCondition) {
		t.Errorf("expected ErrWrongCondition for explicit zero rewind, got %v", err)
	}
}

func TestCompileRejectsNonBooleanTopLevel(t *testing.T) {
	_, _, err := Compile("#YNDX.mean[C] + 1")
	if !errors.Is(err, ticker.ErrWrongCondition) {
		t.Errorf("expected ErrWrongCondition for non-boolean top level, got %v", err)
	}
}

func TestCompileRejectsUnknownAggregator(t *testing.T) {
	_, _, err := Compile("#ZZZZ:YNDX.mean[C] > 0")
	if !errors.Is(err, ticker.ErrNonexistentAggregator) {
		t.Errorf("expected ErrNonexistentAggregator, got %v", err)
	}
}

func TestCompileWithReductionFunction(t *testing.T) {
	compiled, tree, err := Compile("#YNDX.mean[10T].mean() > 100")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	reduce := tree.(Compare).Left.(Reduce)
	if reduce.Func != "mean" {
		t.Errorf("expected reduce func 'mean', got %q", reduce.Func)
	}

	table := store.Table{
		{Datetime: 1, Values: map[ticker.Column]float64{ticker.Mean: 100}},
		{Datetime: 2, Values: map[ticker.Column]float64{ticker.Mean: 200}},
	}
	parsed, err := ParseCompiled(compiled)
	if err != nil {
		t.Fatalf("ParseCompiled: %v", err)
	}
	v, err := Eval(context.Background(), parsed, fixedFetch(table))
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if !v.Bool {
		t.Error("expected mean(100,200)=150 > 100 to be true")
	}
}

func TestCompileLogicalAndParentheses(t *testing.T) {
	_, tree, err := Compile("(#YNDX.mean[C] > 100) and not (#YNDX.vol[C] < 10)")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	logical, ok := tree.(Logical)
	if !ok {
		t.Fatalf("expected top-level Logical, got %T", tree)
	}
	if logical.Op != "and" {
		t.Errorf("expected 'and', got %q", logical.Op)
	}
}

func TestParseRejectsMalformedInput(t *testing.T) {
	_, err := Parse("#YNDX.mean[C] >")
	if !errors.Is(err, ticker.ErrWrongCondition) {
		t.Errorf("expected ErrWrongCondition for truncated input, got %v", err)
	}
}

func TestEvalArithmetic(t *testing.T) {
	tree, err := Parse("2 + 3 * 4 > 10")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, err := typecheck(tree); err != nil {
		t.Fatalf("typecheck: %v", err)
	}
	v, err := Eval(context.Background(), tree, nil)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if !v.Bool {
		t.Error("expected 2+3*4=14 > 10 to be true (operator precedence respected)")
	}
}
