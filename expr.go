package main

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// SymbolResolver maps the name in a $name reference to an address.
type SymbolResolver interface {
	ResolveSymbol(name string) (uint64, error)
}

// exprPattern finds the $module expressions inside a command line.
var exprPattern = regexp.MustCompile(`\$[a-zA-Z_][a-zA-Z0-9_.]*(?:\s*[+\-*/]\s*(?:0[xX][0-9a-fA-F]+|[0-9]+|\$[a-zA-Z_][a-zA-Z0-9_.]*))*`)

// ResolveSymbolsInCommand replaces every $module expression in cmd,
// e.g. "$game.exe+0x1f0", with its value in hex.
func ResolveSymbolsInCommand(cmd string, resolver SymbolResolver) (string, error) {
	if !strings.Contains(cmd, "$") {
		return cmd, nil
	}

	var firstErr error
	result := exprPattern.ReplaceAllStringFunc(cmd, func(match string) string {
		val, err := EvaluateExpression(match, resolver)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return match
		}
		return fmt.Sprintf("0x%x", val)
	})

	return result, firstErr
}

// EvaluateExpression computes expr, which is made of numbers (Go
// literal syntax), $module symbols, + - * / and parentheses. Arithmetic
// wraps at 64 bits like the addresses it is used for.
func EvaluateExpression(expr string, resolver SymbolResolver) (uint64, error) {
	tokens, err := tokenize(expr)
	if err != nil {
		return 0, err
	}
	if len(tokens) == 0 {
		return 0, errors.New("empty expression")
	}

	p := &exprParser{tokens: tokens, resolver: resolver}
	val, err := p.sum()
	if err != nil {
		return 0, err
	}
	if tok, ok := p.peek(); ok {
		return 0, errors.Errorf("unexpected %q", tok.text)
	}
	return val, nil
}

type tokenKind int

const (
	tokNumber tokenKind = iota
	tokSymbol
	tokOp
	tokOpen
	tokClose
)

type token struct {
	kind tokenKind
	text string
}

func isSymbolStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isSymbolByte(c byte) bool {
	return isSymbolStart(c) || c == '.' || (c >= '0' && c <= '9')
}

// tokenize splits expr. Symbols keep their name without the '$';
// numbers are validated when parsed.
func tokenize(expr string) ([]token, error) {
	var tokens []token

	for i := 0; i < len(expr); {
		c := expr[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case strings.IndexByte("+-*/", c) >= 0:
			tokens = append(tokens, token{tokOp, string(c)})
			i++
		case c == '(':
			tokens = append(tokens, token{tokOpen, "("})
			i++
		case c == ')':
			tokens = append(tokens, token{tokClose, ")"})
			i++
		case c == '$':
			end := i + 1
			if end == len(expr) || !isSymbolStart(expr[end]) {
				return nil, errors.Errorf("bad symbol at offset %d", i)
			}
			for end < len(expr) && isSymbolByte(expr[end]) {
				end++
			}
			tokens = append(tokens, token{tokSymbol, expr[i+1 : end]})
			i = end
		case c >= '0' && c <= '9':
			end := i
			for end < len(expr) && (isSymbolByte(expr[end]) && expr[end] != '.') {
				end++
			}
			tokens = append(tokens, token{tokNumber, expr[i:end]})
			i = end
		default:
			return nil, errors.Errorf("unexpected %q at offset %d", c, i)
		}
	}

	return tokens, nil
}

// exprParser is a recursive descent parser over:
//
//	sum     = product { ("+" | "-") product }
//	product = factor { ("*" | "/") factor }
//	factor  = number | symbol | "(" sum ")"
type exprParser struct {
	tokens   []token
	pos      int
	resolver SymbolResolver
}

func (p *exprParser) peek() (token, bool) {
	if p.pos >= len(p.tokens) {
		return token{}, false
	}
	return p.tokens[p.pos], true
}

// op consumes the next token if it is one of the operators in ops.
func (p *exprParser) op(ops string) (byte, bool) {
	tok, ok := p.peek()
	if !ok || tok.kind != tokOp || !strings.Contains(ops, tok.text) {
		return 0, false
	}
	p.pos++
	return tok.text[0], true
}

func (p *exprParser) sum() (uint64, error) {
	left, err := p.product()
	if err != nil {
		return 0, err
	}

	for {
		op, ok := p.op("+-")
		if !ok {
			return left, nil
		}

		right, err := p.product()
		if err != nil {
			return 0, err
		}

		if op == '+' {
			left += right
		} else {
			left -= right
		}
	}
}

func (p *exprParser) product() (uint64, error) {
	left, err := p.factor()
	if err != nil {
		return 0, err
	}

	for {
		op, ok := p.op("*/")
		if !ok {
			return left, nil
		}

		right, err := p.factor()
		if err != nil {
			return 0, err
		}

		if op == '*' {
			left *= right
		} else {
			if right == 0 {
				return 0, errors.New("division by zero")
			}
			left /= right
		}
	}
}

func (p *exprParser) factor() (uint64, error) {
	tok, ok := p.peek()
	if !ok {
		return 0, errors.New("unexpected end of expression")
	}
	p.pos++

	switch tok.kind {
	case tokNumber:
		val, err := strconv.ParseUint(tok.text, 0, 64)
		if err != nil {
			return 0, errors.Wrapf(err, "bad number %q", tok.text)
		}
		return val, nil
	case tokSymbol:
		val, err := p.resolver.ResolveSymbol(tok.text)
		if err != nil {
			return 0, errors.Wrapf(err, "failed to resolve symbol %s", tok.text)
		}
		return val, nil
	case tokOpen:
		val, err := p.sum()
		if err != nil {
			return 0, err
		}
		if next, ok := p.peek(); !ok || next.kind != tokClose {
			return 0, errors.New("missing closing parenthesis")
		}
		p.pos++
		return val, nil
	}

	return 0, errors.Errorf("unexpected %q", tok.text)
}
