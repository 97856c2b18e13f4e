package builtin

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// allowedExpressionChars is the complete alphabet accepted by calculate.
const allowedExpressionChars = "0123456789+-*/().% "

// ErrDivisionByZero is returned for x/0, x//0 and x%0.
var ErrDivisionByZero = errors.New("division by zero")

type tokenKind int

const (
	tokNumber tokenKind = iota
	tokPlus             // +
	tokMinus            // -
	tokStar             // *
	tokSlash            // /
	tokFloorDiv         // //
	tokPercent          // %
	tokPower            // **
	tokLParen           // (
	tokRParen           // )
	tokEOF
)

var tokenNames = map[tokenKind]string{
	tokNumber:   "number",
	tokPlus:     "+",
	tokMinus:    "-",
	tokStar:     "*",
	tokSlash:    "/",
	tokFloorDiv: "//",
	tokPercent:  "%",
	tokPower:    "**",
	tokLParen:   "(",
	tokRParen:   ")",
	tokEOF:      "end of expression",
}

func (k tokenKind) String() string { return tokenNames[k] }

var singleCharTokens = map[byte]tokenKind{
	'+': tokPlus, '-': tokMinus, '*': tokStar, '/': tokSlash, '%': tokPercent, '(': tokLParen, ')': tokRParen,
}

type token struct {
	kind tokenKind
	text string
	pos  int
}

func lex(input string) ([]token, error) {
	var tokens []token
	for i := 0; i < len(input); {
		c := input[i]
		if !strings.ContainsRune(allowedExpressionChars, rune(c)) {
			return nil, fmt.Errorf("expression contains disallowed character %q at position %d", c, i)
		}
		switch {
		case c == ' ':
			i++
		case c == '.' || (c >= '0' && c <= '9'):
			start := i
			for i < len(input) && (input[i] == '.' || (input[i] >= '0' && input[i] <= '9')) {
				i++
			}
			tokens = append(tokens, token{kind: tokNumber, text: input[start:i], pos: start})
		case c == '*' && i+1 < len(input) && input[i+1] == '*':
			tokens = append(tokens, token{kind: tokPower, text: "**", pos: i})
			i += 2
		case c == '/' && i+1 < len(input) && input[i+1] == '/':
			tokens = append(tokens, token{kind: tokFloorDiv, text: "//", pos: i})
			i += 2
		default:
			tokens = append(tokens, token{kind: singleCharTokens[c], text: string(c), pos: i})
			i++
		}
	}
	return append(tokens, token{kind: tokEOF, pos: len(input)}), nil
}

// number is an arithmetic value that keeps integers integral
// until an operation forces a float.
type number struct {
	isInt bool
	i     int64
	f     float64
}

func intNum(i int64) number     { return number{isInt: true, i: i} }
func floatNum(f float64) number { return number{f: f} }

func (n number) float() float64 {
	if n.isInt {
		return float64(n.i)
	}
	return n.f
}

// Value returns the Go value for JSON encoding.
func (n number) Value() any {
	if n.isInt {
		return n.i
	}
	return n.f
}

// TypeName reports "int" or "float".
func (n number) TypeName() string {
	if n.isInt {
		return "int"
	}
	return "float"
}

// evaluate parses and computes input.
// Precedence (low to high): + -, * / // %, unary + -, ** (right associative).
func evaluate(input string) (number, error) {
	if strings.TrimSpace(input) == "" {
		return number{}, errors.New("expression is empty")
	}
	tokens, err := lex(input)
	if err != nil {
		return number{}, err
	}
	p := &parser{tokens: tokens}
	result, err := p.parseSum()
	if err != nil {
		return number{}, err
	}
	if tok := p.current(); tok.kind != tokEOF {
		return number{}, fmt.Errorf("unexpected %s at position %d", tok.kind, tok.pos)
	}
	if !result.isInt && (math.IsInf(result.f, 0) || math.IsNaN(result.f)) {
		return number{}, errors.New("result out of range")
	}
	return result, nil
}

type parser struct {
	tokens []token
	pos    int
}

func (p *parser) current() token { return p.tokens[p.pos] }

func (p *parser) advance() token {
	tok := p.tokens[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

func (p *parser) parseSum() (number, error) {
	left, err := p.parseProduct()
	if err != nil {
		return number{}, err
	}
	for k := p.current().kind; k == tokPlus || k == tokMinus; k = p.current().kind {
		p.advance()
		right, err := p.parseProduct()
		if err != nil {
			return number{}, err
		}
		if left, err = apply(k, left, right); err != nil {
			return number{}, err
		}
	}
	return left, nil
}

func (p *parser) parseProduct() (number, error) {
	left, err := p.parseUnary()
	if err != nil {
		return number{}, err
	}
	for k := p.current().kind; k == tokStar || k == tokSlash || k == tokFloorDiv || k == tokPercent; k = p.current().kind {
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return number{}, err
		}
		if left, err = apply(k, left, right); err != nil {
			return number{}, err
		}
	}
	return left, nil
}

func (p *parser) parseUnary() (number, error) {
	switch p.current().kind {
	case tokPlus:
		p.advance()
		return p.parseUnary()
	case tokMinus:
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return number{}, err
		}
		return apply(tokMinus, intNum(0), operand)
	}
	return p.parsePower()
}

func (p *parser) parsePower() (number, error) {
	base, err := p.parsePrimary()
	if err != nil {
		return number{}, err
	}
	if p.current().kind != tokPower {
		return base, nil
	}
	p.advance()
	// The exponent binds a unary operand, so 2**-1 and 2**3**2 both work.
	exponent, err := p.parseUnary()
	if err != nil {
		return number{}, err
	}
	return apply(tokPower, base, exponent)
}

func (p *parser) parsePrimary() (number, error) {
	tok := p.advance()
	switch tok.kind {
	case tokNumber:
		return parseNumber(tok)
	case tokLParen:
		inner, err := p.parseSum()
		if err != nil {
			return number{}, err
		}
		if closing := p.advance(); closing.kind != tokRParen {
			return number{}, fmt.Errorf("expected ) but got %s at position %d", closing.kind, closing.pos)
		}
		return inner, nil
	default:
		return number{}, fmt.Errorf("unexpected %s at position %d", tok.kind, tok.pos)
	}
}

func parseNumber(tok token) (number, error) {
	if !strings.Contains(tok.text, ".") {
		i, err := strconv.ParseInt(tok.text, 10, 64)
		if err != nil {
			return number{}, fmt.Errorf("integer literal %s out of range", tok.text)
		}
		return intNum(i), nil
	}
	if tok.text == "." || strings.Count(tok.text, ".") > 1 {
		return number{}, fmt.Errorf("invalid number %q at position %d", tok.text, tok.pos)
	}
	f, err := strconv.ParseFloat(tok.text, 64)
	if err != nil {
		return number{}, fmt.Errorf("invalid number %q at position %d", tok.text, tok.pos)
	}
	return floatNum(f), nil
}

func apply(op tokenKind, a, b number) (number, error) {
	if a.isInt && b.isInt {
		return applyInt(op, a.i, b.i)
	}
	x, y := a.float(), b.float()
	switch op {
	case tokPlus:
		return floatNum(x + y), nil
	case tokMinus:
		return floatNum(x - y), nil
	case tokStar:
		return floatNum(x * y), nil
	case tokSlash:
		if y == 0 {
			return number{}, ErrDivisionByZero
		}
		return floatNum(x / y), nil
	case tokFloorDiv:
		if y == 0 {
			return number{}, ErrDivisionByZero
		}
		return floatNum(math.Floor(x / y)), nil
	case tokPercent:
		if y == 0 {
			return number{}, ErrDivisionByZero
		}
		return floatNum(floorMod(x, y)), nil
	case tokPower:
		if x == 0 && y < 0 {
			return number{}, ErrDivisionByZero
		}
		if x < 0 && y != math.Trunc(y) {
			return number{}, errors.New("fractional power of a negative number")
		}
		return floatNum(math.Pow(x, y)), nil
	}
	return number{}, fmt.Errorf("unsupported operator %s", op)
}

var errIntOverflow = errors.New("integer overflow")

func applyInt(op tokenKind, a, b int64) (number, error) {
	switch op {
	case tokPlus:
		s := a + b
		if (s > a) != (b > 0) {
			return number{}, errIntOverflow
		}
		return intNum(s), nil
	case tokMinus:
		d := a - b
		if (d < a) != (b > 0) {
			return number{}, errIntOverflow
		}
		return intNum(d), nil
	case tokStar:
		return mulInt(a, b)
	case tokSlash:
		if b == 0 {
			return number{}, ErrDivisionByZero
		}
		return floatNum(float64(a) / float64(b)), nil
	case tokFloorDiv:
		if b == 0 {
			return number{}, ErrDivisionByZero
		}
		if a == math.MinInt64 && b == -1 {
			return number{}, errIntOverflow
		}
		q := a / b
		if (a%b != 0) && ((a < 0) != (b < 0)) {
			q--
		}
		return intNum(q), nil
	case tokPercent:
		if b == 0 {
			return number{}, ErrDivisionByZero
		}
		if b == -1 {
			return intNum(0), nil
		}
		m := a % b
		if m != 0 && ((m < 0) != (b < 0)) {
			m += b
		}
		return intNum(m), nil
	case tokPower:
		if b < 0 {
			if a == 0 {
				return number{}, ErrDivisionByZero
			}
			return floatNum(math.Pow(float64(a), float64(b))), nil
		}
		result := int64(1)
		base := a
		for e := b; e > 0; e >>= 1 {
			var err error
			if e&1 == 1 {
				if result, err = mulRaw(result, base); err != nil {
					return number{}, err
				}
			}
			if e > 1 {
				if base, err = mulRaw(base, base); err != nil {
					return number{}, err
				}
			}
		}
		return intNum(result), nil
	}
	return number{}, fmt.Errorf("unsupported operator %s", op)
}

func mulInt(a, b int64) (number, error) {
	p, err := mulRaw(a, b)
	if err != nil {
		return number{}, err
	}
	return intNum(p), nil
}

func mulRaw(a, b int64) (int64, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	p := a * b
	if p/b != a || (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return 0, errIntOverflow
	}
	return p, nil
}

// floorMod matches the sign of the divisor, like integer %.
func floorMod(x, y float64) float64 {
	m := math.Mod(x, y)
	if m != 0 && (m < 0) != (y < 0) {
		m += y
	}
	return m
}
