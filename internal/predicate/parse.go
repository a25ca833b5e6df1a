package predicate

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ParseError reports a syntax or type error in predicate source.
// Pos is a zero-based byte offset into the source string.
type ParseError struct {
	Pos    int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("predicate: %s at position %d", e.Reason, e.Pos)
}

func errorf(pos int, format string, args ...any) error {
	return &ParseError{Pos: pos, Reason: fmt.Sprintf(format, args...)}
}

type tokenType int

const (
	tokEOF tokenType = iota
	tokIdent
	tokNumber
	tokTime
	tokCmp
	tokAnd
	tokOr
	tokLParen
	tokRParen
)

type token struct {
	typ  tokenType
	text string
	pos  int
}

func lex(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++

		case c == '(':
			toks = append(toks, token{tokLParen, "(", i})
			i++
		case c == ')':
			toks = append(toks, token{tokRParen, ")", i})
			i++

		case c == '<' || c == '>':
			op := string(c)
			start := i
			i++
			if i < len(src) && src[i] == '=' {
				op += "="
				i++
			}
			toks = append(toks, token{tokCmp, op, start})

		case c == '=':
			if i+1 >= len(src) || src[i+1] != '=' {
				return nil, errorf(i, "unexpected %q, did you mean \"==\"", "=")
			}
			toks = append(toks, token{tokCmp, "==", i})
			i += 2

		case c >= '0' && c <= '9':
			tok, n, err := lexNumberOrTime(src, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, tok)
			i = n

		case isLetter(c):
			start := i
			for i < len(src) && isLetter(src[i]) {
				i++
			}
			word := src[start:i]
			switch word {
			case "AND":
				toks = append(toks, token{tokAnd, word, start})
			case "OR":
				toks = append(toks, token{tokOr, word, start})
			default:
				toks = append(toks, token{tokIdent, word, start})
			}

		default:
			return nil, errorf(i, "unexpected character %q", string(c))
		}
	}
	toks = append(toks, token{tokEOF, "", len(src)})
	return toks, nil
}

// lexNumberOrTime scans a decimal number or an HH:MM time token starting at
// position start. A time token is 1-2 digits, a colon, then exactly 2 digits.
func lexNumberOrTime(src string, start int) (token, int, error) {
	i := start
	for i < len(src) && src[i] >= '0' && src[i] <= '9' {
		i++
	}
	digits := i - start

	// HH:MM form
	if i < len(src) && src[i] == ':' && digits <= 2 {
		if i+2 >= len(src) || !isDigit(src[i+1]) || !isDigit(src[i+2]) {
			return token{}, 0, errorf(start, "malformed time literal")
		}
		end := i + 3
		if end < len(src) && isDigit(src[end]) {
			return token{}, 0, errorf(start, "malformed time literal")
		}
		return token{tokTime, src[start:end], start}, end, nil
	}

	// Fractional part
	if i < len(src) && src[i] == '.' {
		i++
		fracStart := i
		for i < len(src) && isDigit(src[i]) {
			i++
		}
		if i == fracStart {
			return token{}, 0, errorf(start, "malformed number")
		}
	}
	return token{tokNumber, src[start:i], start}, i, nil
}

func isLetter(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_'
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// Parse compiles predicate source into an evaluable expression.
func Parse(src string) (Expr, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	e, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.typ != tokEOF {
		return nil, errorf(tok.pos, "unexpected %q", tok.text)
	}
	return e, nil
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	tok := p.toks[p.pos]
	if tok.typ != tokEOF {
		p.pos++
	}
	return tok
}

func (p *parser) parseOr() (Expr, error) {
	lhs, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().typ == tokOr {
		p.next()
		rhs, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		lhs = &binary{op: "OR", lhs: lhs, rhs: rhs}
	}
	return lhs, nil
}

func (p *parser) parseAnd() (Expr, error) {
	lhs, err := p.parseCmp()
	if err != nil {
		return nil, err
	}
	for p.peek().typ == tokAnd {
		p.next()
		rhs, err := p.parseCmp()
		if err != nil {
			return nil, err
		}
		lhs = &binary{op: "AND", lhs: lhs, rhs: rhs}
	}
	return lhs, nil
}

func (p *parser) parseCmp() (Expr, error) {
	if p.peek().typ == tokLParen {
		p.next()
		e, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if tok := p.next(); tok.typ != tokRParen {
			return nil, errorf(tok.pos, "expected \")\"")
		}
		return e, nil
	}

	lhs, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	opTok := p.next()
	if opTok.typ != tokCmp {
		return nil, errorf(opTok.pos, "expected comparison operator")
	}
	rhs, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	if lhs.kind != rhs.kind {
		return nil, errorf(opTok.pos, "type mismatch: cannot compare %s value with %s value", lhs.kind, rhs.kind)
	}
	return &compare{op: opTok.text, lhs: lhs, rhs: rhs, kind: lhs.kind}, nil
}

func (p *parser) parseOperand() (operand, error) {
	tok := p.next()
	switch tok.typ {
	case tokIdent:
		switch tok.text {
		case "price":
			return operand{variable: true, kind: kindPrice}, nil
		case "time":
			return operand{variable: true, kind: kindTime}, nil
		}
		return operand{}, errorf(tok.pos, "unknown identifier %q", tok.text)

	case tokNumber:
		d, err := decimal.NewFromString(tok.text)
		if err != nil {
			return operand{}, errorf(tok.pos, "malformed number %q", tok.text)
		}
		return operand{kind: kindPrice, price: d}, nil

	case tokTime:
		mins, err := parseTimeLiteral(tok.text)
		if err != nil {
			return operand{}, errorf(tok.pos, "%v", err)
		}
		return operand{kind: kindTime, minutes: mins}, nil
	}
	return operand{}, errorf(tok.pos, "expected price, time, number, or HH:MM")
}

func parseTimeLiteral(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("malformed time literal %q", s)
	}
	if h > 23 || m > 59 {
		return 0, fmt.Errorf("time literal %q out of range", s)
	}
	return h*60 + m, nil
}
