package schema

import (
	"fmt"
	"strconv"
	"strings"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokInt
	tokPunct
)

type token struct {
	kind tokenKind
	text string
	val  int64
	pos  Pos
}

func (t token) String() string {
	switch t.kind {
	case tokEOF:
		return "end of file"
	case tokInt:
		return "integer " + t.text
	default:
		return strconv.Quote(t.text)
	}
}

const punctChars = "{}()[]<>:,;=@+-*/%"

func lex(file string, src []byte) ([]token, error) {
	var toks []token
	line, col := 1, 1
	for i := 0; i < len(src); {
		c := src[i]
		pos := Pos{File: file, Line: line, Col: col}
		switch {
		case c == '\n':
			i++
			line++
			col = 1
		case c == ' ' || c == '\t' || c == '\r':
			i++
			col++
		case c == '/' && i+1 < len(src) && src[i+1] == '/':
			for i < len(src) && src[i] != '\n' {
				i++
			}
		case c == '-' && i+1 < len(src) && src[i+1] == '>':
			toks = append(toks, token{kind: tokPunct, text: "->", pos: pos})
			i += 2
			col += 2
		case isIdentStart(c):
			j := i + 1
			for j < len(src) && isIdentPart(src[j]) {
				j++
			}
			toks = append(toks, token{kind: tokIdent, text: string(src[i:j]), pos: pos})
			col += j - i
			i = j
		case c >= '0' && c <= '9':
			j := i + 1
			for j < len(src) && (isIdentPart(src[j])) {
				j++
			}
			text := string(src[i:j])
			v, err := strconv.ParseInt(text, 0, 64)
			if err != nil {
				return nil, &ParseError{Pos: pos, Msg: fmt.Sprintf("malformed integer %q", text)}
			}
			toks = append(toks, token{kind: tokInt, text: text, val: v, pos: pos})
			col += j - i
			i = j
		case strings.IndexByte(punctChars, c) >= 0:
			toks = append(toks, token{kind: tokPunct, text: string(c), pos: pos})
			i++
			col++
		default:
			return nil, &ParseError{Pos: pos, Msg: fmt.Sprintf("unexpected character %q", c)}
		}
	}
	toks = append(toks, token{kind: tokEOF, pos: Pos{File: file, Line: line, Col: col}})
	return toks, nil
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
