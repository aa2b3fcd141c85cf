package usd

import (
	"fmt"
	"strings"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokString
	tokAsset
	tokPathRef
	tokPunct
)

// token carries the decoded text of a lexeme and, for quoted forms, the
// source spelling used when a value is kept verbatim.
type token struct {
	kind tokenKind
	text string
	raw  string
	line int
}

// ParseError reports malformed layer text.
type ParseError struct {
	File string
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("usd: parse %s: line %d: %s", e.File, e.Line, e.Msg)
	}
	return fmt.Sprintf("usd: parse %s: %s", e.File, e.Msg)
}

type lexer struct {
	file string
	src  string
	pos  int
	line int
}

func newLexer(file, src string) *lexer {
	return &lexer{file: file, src: src, line: 1}
}

func (l *lexer) errorf(format string, args ...any) error {
	return &ParseError{File: l.file, Line: l.line, Msg: fmt.Sprintf(format, args...)}
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == '\n':
			l.line++
			l.pos++
		case c == ' ' || c == '\t' || c == '\r':
			l.pos++
		case c == '#':
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.pos++
			}
		default:
			return
		}
	}
}

func (l *lexer) next() (token, error) {
	l.skipSpace()
	if l.pos >= len(l.src) {
		return token{kind: tokEOF, line: l.line}, nil
	}

	start := l.pos
	c := l.src[l.pos]
	switch {
	case isIdentStart(c):
		l.pos++
		for l.pos < len(l.src) && (isIdentPart(l.src[l.pos]) || l.src[l.pos] == ':') {
			l.pos++
		}
		text := l.src[start:l.pos]
		return token{kind: tokIdent, text: text, raw: text, line: l.line}, nil

	case isDigit(c) || l.startsNumber():
		return l.number()

	case c == '"' || c == '\'':
		return l.str()

	case c == '@':
		return l.asset()

	case c == '<':
		end := strings.IndexByte(l.src[l.pos:], '>')
		if end < 0 {
			return token{}, l.errorf("unterminated path reference")
		}
		raw := l.src[l.pos : l.pos+end+1]
		l.pos += end + 1
		return token{kind: tokPathRef, text: raw[1 : len(raw)-1], raw: raw, line: l.line}, nil

	case strings.IndexByte("()[]{}=,;.:", c) >= 0:
		l.pos++
		return token{kind: tokPunct, text: string(c), raw: string(c), line: l.line}, nil
	}
	return token{}, l.errorf("unexpected character %q", c)
}

func (l *lexer) startsNumber() bool {
	if l.pos+1 >= len(l.src) {
		return false
	}
	c, n := l.src[l.pos], l.src[l.pos+1]
	switch c {
	case '-', '+':
		return isDigit(n) || n == '.' || n == 'i' || n == 'n'
	case '.':
		return isDigit(n)
	}
	return false
}

func (l *lexer) number() (token, error) {
	start := l.pos
	if c := l.src[l.pos]; c == '-' || c == '+' {
		l.pos++
	}
	// inf and nan spelled with a sign
	for _, word := range []string{"inf", "nan"} {
		if strings.HasPrefix(l.src[l.pos:], word) {
			l.pos += len(word)
			text := l.src[start:l.pos]
			return token{kind: tokNumber, text: text, raw: text, line: l.line}, nil
		}
	}
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if isDigit(c) || c == '.' {
			l.pos++
			continue
		}
		if (c == 'e' || c == 'E') && l.pos+1 < len(l.src) {
			l.pos++
			if s := l.src[l.pos]; s == '-' || s == '+' {
				l.pos++
			}
			continue
		}
		break
	}
	text := l.src[start:l.pos]
	if text == "-" || text == "+" || text == "." {
		return token{}, l.errorf("malformed number %q", text)
	}
	return token{kind: tokNumber, text: text, raw: text, line: l.line}, nil
}

func (l *lexer) str() (token, error) {
	start := l.pos
	startLine := l.line
	q := l.src[l.pos]
	triple := strings.Repeat(string(q), 3)

	if strings.HasPrefix(l.src[l.pos:], triple) {
		l.pos += 3
		end := strings.Index(l.src[l.pos:], triple)
		if end < 0 {
			return token{}, l.errorf("unterminated string")
		}
		body := l.src[l.pos : l.pos+end]
		l.line += strings.Count(body, "\n")
		l.pos += end + 3
		return token{kind: tokString, text: body, raw: l.src[start:l.pos], line: startLine}, nil
	}

	l.pos++
	var sb strings.Builder
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch c {
		case q:
			l.pos++
			return token{kind: tokString, text: sb.String(), raw: l.src[start:l.pos], line: startLine}, nil
		case '\n':
			return token{}, l.errorf("newline in string")
		case '\\':
			l.pos++
			if l.pos >= len(l.src) {
				return token{}, l.errorf("unterminated string")
			}
			switch e := l.src[l.pos]; e {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			default:
				sb.WriteByte(e)
			}
			l.pos++
		default:
			sb.WriteByte(c)
			l.pos++
		}
	}
	return token{}, l.errorf("unterminated string")
}

func (l *lexer) asset() (token, error) {
	start := l.pos
	delim := "@"
	if strings.HasPrefix(l.src[l.pos:], "@@@") {
		delim = "@@@"
	}
	l.pos += len(delim)
	end := strings.Index(l.src[l.pos:], delim)
	if end < 0 {
		return token{}, l.errorf("unterminated asset path")
	}
	text := l.src[l.pos : l.pos+end]
	l.pos += end + len(delim)
	return token{kind: tokAsset, text: text, raw: l.src[start:l.pos], line: l.line}, nil
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
