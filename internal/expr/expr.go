// Package expr implements the small sandboxed expression grammar used for
// workflow goal and branch conditions. It supports boolean combinators
// (&&, ||, !), comparisons (==, !=, <, <=, >, >=), parentheses, string /
// number / bool literals and dotted lookups into an ExecutionContext.
//
// The grammar deliberately excludes function calls, assignment and any other
// host-language escape hatch: conditions are configuration, not code.
package expr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hupe1980/agentforge/core"
)

// Evaluate parses and evaluates a condition against the context, returning
// its boolean value. A syntactically invalid expression returns an error;
// callers evaluating goal conditions treat that as "goal not met".
func Evaluate(input string, ctx *core.ExecutionContext) (bool, error) {
	p := &parser{input: input, ctx: ctx}
	p.next()
	v, err := p.parseOr()
	if err != nil {
		return false, err
	}
	if p.tok.kind != tokenEOF {
		return false, fmt.Errorf("unexpected %q in condition", p.tok.text)
	}
	return truthy(v), nil
}

type tokenKind int

const (
	tokenEOF tokenKind = iota
	tokenIdent
	tokenNumber
	tokenString
	tokenOp     // == != < <= > >=
	tokenAnd    // &&
	tokenOr     // ||
	tokenNot    // !
	tokenLParen // (
	tokenRParen // )
)

type token struct {
	kind tokenKind
	text string
}

type parser struct {
	input string
	pos   int
	tok   token
	ctx   *core.ExecutionContext
}

// next advances to the following token, skipping whitespace.
func (p *parser) next() {
	for p.pos < len(p.input) && (p.input[p.pos] == ' ' || p.input[p.pos] == '\t') {
		p.pos++
	}
	if p.pos >= len(p.input) {
		p.tok = token{kind: tokenEOF}
		return
	}
	c := p.input[p.pos]
	switch {
	case c == '(':
		p.pos++
		p.tok = token{kind: tokenLParen, text: "("}
	case c == ')':
		p.pos++
		p.tok = token{kind: tokenRParen, text: ")"}
	case c == '&' && p.peek(1) == '&':
		p.pos += 2
		p.tok = token{kind: tokenAnd, text: "&&"}
	case c == '|' && p.peek(1) == '|':
		p.pos += 2
		p.tok = token{kind: tokenOr, text: "||"}
	case c == '!' && p.peek(1) == '=':
		p.pos += 2
		p.tok = token{kind: tokenOp, text: "!="}
	case c == '!':
		p.pos++
		p.tok = token{kind: tokenNot, text: "!"}
	case c == '=' && p.peek(1) == '=':
		p.pos += 2
		p.tok = token{kind: tokenOp, text: "=="}
	case c == '<' || c == '>':
		op := string(c)
		p.pos++
		if p.pos < len(p.input) && p.input[p.pos] == '=' {
			op += "="
			p.pos++
		}
		p.tok = token{kind: tokenOp, text: op}
	case c == '\'' || c == '"':
		p.lexString(c)
	case c >= '0' && c <= '9' || c == '-':
		p.lexNumber()
	case isIdentChar(c):
		p.lexIdent()
	default:
		// Unknown rune surfaces as an ident token and fails in parsing.
		p.tok = token{kind: tokenIdent, text: string(c)}
		p.pos++
	}
}

func (p *parser) peek(n int) byte {
	if p.pos+n < len(p.input) {
		return p.input[p.pos+n]
	}
	return 0
}

func (p *parser) lexString(quote byte) {
	p.pos++
	start := p.pos
	for p.pos < len(p.input) && p.input[p.pos] != quote {
		p.pos++
	}
	text := p.input[start:p.pos]
	if p.pos < len(p.input) {
		p.pos++ // closing quote
	}
	p.tok = token{kind: tokenString, text: text}
}

func (p *parser) lexNumber() {
	start := p.pos
	p.pos++ // first digit or sign
	for p.pos < len(p.input) && (p.input[p.pos] >= '0' && p.input[p.pos] <= '9' || p.input[p.pos] == '.') {
		p.pos++
	}
	p.tok = token{kind: tokenNumber, text: p.input[start:p.pos]}
}

func (p *parser) lexIdent() {
	start := p.pos
	for p.pos < len(p.input) && (isIdentChar(p.input[p.pos]) || p.input[p.pos] == '.') {
		p.pos++
	}
	p.tok = token{kind: tokenIdent, text: p.input[start:p.pos]}
}

func isIdentChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_'
}

// parseOr := and ("||" and)*
func (p *parser) parseOr() (any, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tokenOr {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = truthy(left) || truthy(right)
	}
	return left, nil
}

// parseAnd := unary ("&&" unary)*
func (p *parser) parseAnd() (any, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tokenAnd {
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = truthy(left) && truthy(right)
	}
	return left, nil
}

// parseUnary := "!" unary | comparison
func (p *parser) parseUnary() (any, error) {
	if p.tok.kind == tokenNot {
		p.next()
		v, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return !truthy(v), nil
	}
	return p.parseComparison()
}

// parseComparison := term (op term)?
func (p *parser) parseComparison() (any, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	if p.tok.kind != tokenOp {
		return left, nil
	}
	op := p.tok.text
	p.next()
	right, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	return compare(op, left, right)
}

// parseTerm := "(" expr ")" | literal | path
func (p *parser) parseTerm() (any, error) {
	switch p.tok.kind {
	case tokenLParen:
		p.next()
		v, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.tok.kind != tokenRParen {
			return nil, fmt.Errorf("missing closing parenthesis")
		}
		p.next()
		return v, nil
	case tokenString:
		v := p.tok.text
		p.next()
		return v, nil
	case tokenNumber:
		f, err := strconv.ParseFloat(p.tok.text, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", p.tok.text)
		}
		p.next()
		return f, nil
	case tokenIdent:
		name := p.tok.text
		p.next()
		switch name {
		case "true":
			return true, nil
		case "false":
			return false, nil
		case "null", "nil":
			return nil, nil
		}
		return p.resolve(name), nil
	default:
		return nil, fmt.Errorf("unexpected %q in condition", p.tok.text)
	}
}

// resolve looks up a dotted path in the context. The "context." prefix is
// accepted and stripped so conditions read the same as placeholders.
func (p *parser) resolve(path string) any {
	path = strings.TrimPrefix(path, "context.")
	if p.ctx == nil {
		return nil
	}
	v, ok := p.ctx.Lookup(path)
	if !ok {
		return nil
	}
	return v
}

// truthy converts a value to a boolean: bools as-is, numbers non-zero,
// strings non-empty, nil false.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	case int:
		return t != 0
	default:
		return true
	}
}

// compare applies a comparison operator. Numeric operands compare
// numerically; anything else compares by string form. Ordering operators on
// non-numeric operands use lexical order.
func compare(op string, left, right any) (bool, error) {
	lf, lok := toFloat(left)
	rf, rok := toFloat(right)
	if lok && rok {
		switch op {
		case "==":
			return lf == rf, nil
		case "!=":
			return lf != rf, nil
		case "<":
			return lf < rf, nil
		case "<=":
			return lf <= rf, nil
		case ">":
			return lf > rf, nil
		case ">=":
			return lf >= rf, nil
		}
	}
	ls, rs := toString(left), toString(right)
	switch op {
	case "==":
		return ls == rs, nil
	case "!=":
		return ls != rs, nil
	case "<":
		return ls < rs, nil
	case "<=":
		return ls <= rs, nil
	case ">":
		return ls > rs, nil
	case ">=":
		return ls >= rs, nil
	}
	return false, fmt.Errorf("unknown operator %q", op)
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	default:
		return 0, false
	}
}

func toString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
