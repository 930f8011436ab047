package expr

import (
	"fmt"

	"athena/libs/ticker"
)

// parseReference parses one ticker reference, with the cursor
// positioned just past the leading '#'. Surface grammar:
//
//	'#' [ AGG ':' ] NAME '.' COLUMN '[' INTERVAL ']' [ '.' FUNC '(' ')' ]
//	INTERVAL := [ <n> ] <letter> [ ':' <rewind> ]
func (p *parser) parseReference() (Node, error) {
	ref := TickerRef{N: 1}

	first, err := p.expect(tokIdent, "ticker reference name or aggregator code")
	if err != nil {
		return nil, err
	}
	if p.check(tokColon) {
		p.advance()
		name, err := p.expect(tokIdent, "ticker symbol")
		if err != nil {
			return nil, err
		}
		ref.Aggregator = first.text
		ref.Symbol = name.text
	} else {
		ref.Symbol = first.text
	}

	if _, err := p.expectKind(tokDot); err != nil {
		return nil, err
	}
	column, err := p.expect(tokIdent, "column name")
	if err != nil {
		return nil, err
	}
	ref.Column = column.text

	if _, err := p.expectKind(tokLBracket); err != nil {
		return nil, err
	}
	if err := p.parseInterval(&ref); err != nil {
		return nil, err
	}
	if _, err := p.expectKind(tokRBracket); err != nil {
		return nil, err
	}

	if p.check(tokDot) {
		p.advance()
		fn, err := p.expect(tokIdent, "reduction function")
		if err != nil {
			return nil, err
		}
		if _, err := p.expectKind(tokLParen); err != nil {
			return nil, err
		}
		if _, err := p.expectKind(tokRParen); err != nil {
			return nil, err
		}
		ref.Func = fn.text
	}

	return ref, nil
}

func (p *parser) parseInterval(ref *TickerRef) error {
	if p.check(tokNumber) {
		n := p.advance()
		if n.num != float64(int(n.num)) || n.num <= 0 {
			return fmt.Errorf("%w: interval count must be a positive integer, got %v at %d", ticker.ErrWrongCondition, n.num, n.pos)
		}
		ref.N = int(n.num)
		letter, err := p.expect(tokIdent, "interval letter")
		if err != nil {
			return err
		}
		ref.Letter = letter.text
	} else {
		letter, err := p.expect(tokIdent, "interval letter")
		if err != nil {
			return err
		}
		ref.Letter = letter.text
	}

	if p.check(tokColon) {
		p.advance()
		minus, err := p.expectKind(tokMinus)
		if err != nil {
			return fmt.Errorf("%w: rewind must be a negative integer at %d", ticker.ErrWrongCondition, minus.pos)
		}
		n, err := p.expect(tokNumber, "rewind magnitude")
		if err != nil {
			return err
		}
		if n.num != float64(int(n.num)) || n.num <= 0 {
			return fmt.Errorf("%w: rewind must be a negative integer, got -%v at %d", ticker.ErrWrongCondition, n.num, n.pos)
		}
		ref.Rewind = -int(n.num)
		ref.RewindSet = true
	}

	return nil
}
