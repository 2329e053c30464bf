package engine

import (
	"fmt"
	"strings"
	"unicode"
)

// The rule mini-grammar:
//
//	expr      := andExpr ( "or" andExpr )*
//	andExpr   := primary ( "and" primary )*
//	primary   := "(" expr ")" | predicate
//	predicate := path ( "=" literal | "!=" literal
//	                  | "in" "(" literal { "," literal } ")"
//	                  | "exists" )
//	path      := "document" "." ident "." ident
//	literal   := quoted string | bareword
//
// Keywords are case-insensitive; literals compare case-insensitively at
// evaluation time. Rule text comes from user input, so every parse error is
// a recoverable per-rule condition, never a panic.

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokString
	tokLParen
	tokRParen
	tokComma
	tokDot
	tokEq
	tokNeq
	tokEOF
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

type lexer struct {
	input string
	pos   int
}

func (lx *lexer) next() (token, error) {
	for lx.pos < len(lx.input) && unicode.IsSpace(rune(lx.input[lx.pos])) {
		lx.pos++
	}
	if lx.pos >= len(lx.input) {
		return token{kind: tokEOF, pos: lx.pos}, nil
	}

	start := lx.pos
	ch := lx.input[lx.pos]
	switch ch {
	case '(':
		lx.pos++
		return token{kind: tokLParen, text: "(", pos: start}, nil
	case ')':
		lx.pos++
		return token{kind: tokRParen, text: ")", pos: start}, nil
	case ',':
		lx.pos++
		return token{kind: tokComma, text: ",", pos: start}, nil
	case '.':
		lx.pos++
		return token{kind: tokDot, text: ".", pos: start}, nil
	case '=':
		lx.pos++
		return token{kind: tokEq, text: "=", pos: start}, nil
	case '!':
		if lx.pos+1 < len(lx.input) && lx.input[lx.pos+1] == '=' {
			lx.pos += 2
			return token{kind: tokNeq, text: "!=", pos: start}, nil
		}
		return token{}, fmt.Errorf("unexpected character %q at %d", ch, start)
	case '"', '\'':
		quote := ch
		lx.pos++
		var sb strings.Builder
		for lx.pos < len(lx.input) && lx.input[lx.pos] != quote {
			if lx.input[lx.pos] == '\\' && lx.pos+1 < len(lx.input) {
				lx.pos++
			}
			sb.WriteByte(lx.input[lx.pos])
			lx.pos++
		}
		if lx.pos >= len(lx.input) {
			return token{}, fmt.Errorf("unterminated string at %d", start)
		}
		lx.pos++
		return token{kind: tokString, text: sb.String(), pos: start}, nil
	}

	if isIdentChar(ch) {
		for lx.pos < len(lx.input) && isIdentChar(lx.input[lx.pos]) {
			lx.pos++
		}
		return token{kind: tokIdent, text: lx.input[start:lx.pos], pos: start}, nil
	}
	return token{}, fmt.Errorf("unexpected character %q at %d", ch, start)
}

func isIdentChar(ch byte) bool {
	return ch == '_' || ch == '-' ||
		(ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9')
}

type parser struct {
	lx   *lexer
	cur  token
	peek *token
}

func newParser(input string) (*parser, error) {
	p := &parser{lx: &lexer{input: input}}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *parser) advance() error {
	if p.peek != nil {
		p.cur = *p.peek
		p.peek = nil
		return nil
	}
	tok, err := p.lx.next()
	if err != nil {
		return err
	}
	p.cur = tok
	return nil
}

func (p *parser) keyword(word string) bool {
	return p.cur.kind == tokIdent && strings.EqualFold(p.cur.text, word)
}

// ParseValidation parses a validation predicate into its AST.
func ParseValidation(input string) (Expr, error) {
	if strings.TrimSpace(input) == "" {
		return nil, fmt.Errorf("empty validation")
	}
	p, err := newParser(input)
	if err != nil {
		return nil, err
	}
	expr, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.cur.kind != tokEOF {
		return nil, fmt.Errorf("unexpected %q at %d", p.cur.text, p.cur.pos)
	}
	return expr, nil
}

func (p *parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.keyword("or") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &Or{Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for p.keyword("and") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		left = &And{Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parsePrimary() (Expr, error) {
	if p.cur.kind == tokLParen {
		if err := p.advance(); err != nil {
			return nil, err
		}
		expr, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.cur.kind != tokRParen {
			return nil, fmt.Errorf("expected ) at %d", p.cur.pos)
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return expr, nil
	}
	return p.parsePredicate()
}

func (p *parser) parsePredicate() (Expr, error) {
	path, err := p.parsePath()
	if err != nil {
		return nil, err
	}

	switch {
	case p.cur.kind == tokEq:
		if err := p.advance(); err != nil {
			return nil, err
		}
		lit, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		return &Comparison{Path: path, Literal: lit}, nil
	case p.cur.kind == tokNeq:
		if err := p.advance(); err != nil {
			return nil, err
		}
		lit, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		return &Comparison{Path: path, Negated: true, Literal: lit}, nil
	case p.keyword("in"):
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.cur.kind != tokLParen {
			return nil, fmt.Errorf("expected ( after in at %d", p.cur.pos)
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		var values []string
		for {
			lit, err := p.parseLiteral()
			if err != nil {
				return nil, err
			}
			values = append(values, lit)
			if p.cur.kind == tokComma {
				if err := p.advance(); err != nil {
					return nil, err
				}
				continue
			}
			break
		}
		if p.cur.kind != tokRParen {
			return nil, fmt.Errorf("expected ) at %d", p.cur.pos)
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &InSet{Path: path, Values: values}, nil
	case p.keyword("exists"):
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &Exists{Path: path}, nil
	}
	return nil, fmt.Errorf("expected operator after %s at %d", path, p.cur.pos)
}

func (p *parser) parsePath() (Path, error) {
	if !p.keyword("document") {
		return Path{}, fmt.Errorf("expected document. path at %d", p.cur.pos)
	}
	if err := p.advance(); err != nil {
		return Path{}, err
	}
	if p.cur.kind != tokDot {
		return Path{}, fmt.Errorf("expected . after document at %d", p.cur.pos)
	}
	if err := p.advance(); err != nil {
		return Path{}, err
	}
	if p.cur.kind != tokIdent {
		return Path{}, fmt.Errorf("expected document type at %d", p.cur.pos)
	}
	docType := p.cur.text
	if err := p.advance(); err != nil {
		return Path{}, err
	}
	if p.cur.kind != tokDot {
		return Path{}, fmt.Errorf("expected . after document type at %d", p.cur.pos)
	}
	if err := p.advance(); err != nil {
		return Path{}, err
	}
	if p.cur.kind != tokIdent {
		return Path{}, fmt.Errorf("expected attribute name at %d", p.cur.pos)
	}
	attr := p.cur.text
	if err := p.advance(); err != nil {
		return Path{}, err
	}
	return Path{DocType: docType, Attribute: attr}, nil
}

func (p *parser) parseLiteral() (string, error) {
	if p.cur.kind != tokString && p.cur.kind != tokIdent {
		return "", fmt.Errorf("expected literal at %d", p.cur.pos)
	}
	lit := p.cur.text
	if err := p.advance(); err != nil {
		return "", err
	}
	return lit, nil
}
