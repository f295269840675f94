package expression

import (
	"strconv"
	"strings"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokString
	tokIdent
	tokOp
)

type token struct {
	kind tokenKind
	text string // operator or identifier text, decoded string literal
	num  float64
	pos  int
}

// twoCharOps must be checked before single-character operators.
var twoCharOps = []string{"&&", "||", "==", "!=", "<=", ">="}

const singleCharOps = "<>!+-*/%()[],"

func tokenize(src string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case isDigit(c) || (c == '.' && i+1 < len(src) && isDigit(src[i+1])):
			start := i
			for i < len(src) && isDigit(src[i]) {
				i++
			}
			if i < len(src) && src[i] == '.' {
				i++
				if i >= len(src) || !isDigit(src[i]) {
					return nil, errorf(KindSyntax, start, "malformed number %q", src[start:i])
				}
				for i < len(src) && isDigit(src[i]) {
					i++
				}
			}
			if i < len(src) && isIdentStart(src[i]) {
				return nil, errorf(KindSyntax, start, "malformed number %q", src[start:i+1])
			}
			v, err := strconv.ParseFloat(src[start:i], 64)
			if err != nil {
				return nil, errorf(KindSyntax, start, "malformed number %q", src[start:i])
			}
			tokens = append(tokens, token{kind: tokNumber, num: v, text: src[start:i], pos: start})
		case c == '\'' || c == '"':
			s, next, err := scanString(src, i)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{kind: tokString, text: s, pos: i})
			i = next
		case isIdentStart(c):
			start := i
			for i < len(src) && (isIdentStart(src[i]) || isDigit(src[i])) {
				i++
			}
			tokens = append(tokens, token{kind: tokIdent, text: src[start:i], pos: start})
		default:
			op := ""
			for _, candidate := range twoCharOps {
				if strings.HasPrefix(src[i:], candidate) {
					op = candidate
					break
				}
			}
			if op == "" && strings.IndexByte(singleCharOps, c) >= 0 {
				op = string(c)
			}
			if op == "" {
				if c == '=' {
					return nil, errorf(KindSyntax, i, "unexpected '=', use '==' for comparison")
				}
				return nil, errorf(KindSyntax, i, "unexpected character %q", rune(c))
			}
			tokens = append(tokens, token{kind: tokOp, text: op, pos: i})
			i += len(op)
		}
	}
	return append(tokens, token{kind: tokEOF, pos: len(src)}), nil
}

func scanString(src string, start int) (string, int, error) {
	quote := src[start]
	var b strings.Builder
	i := start + 1
	for i < len(src) {
		c := src[i]
		switch {
		case c == quote:
			return b.String(), i + 1, nil
		case c == '\\':
			if i+1 >= len(src) {
				return "", 0, errorf(KindSyntax, i, "unterminated escape sequence")
			}
			switch esc := src[i+1]; esc {
			case '\\', '\'', '"':
				b.WriteByte(esc)
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			default:
				return "", 0, errorf(KindSyntax, i, "unknown escape sequence \\%c", esc)
			}
			i += 2
		default:
			b.WriteByte(c)
			i++
		}
	}
	return "", 0, errorf(KindSyntax, start, "unterminated string literal")
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
