package filter

import (
	"strconv"
	"strings"
	"unicode"
)

type tokenType int

const (
	tokenEOF tokenType = iota
	tokenIdent
	tokenString
	tokenInt
	tokenLParen
	tokenRParen
	tokenLBracket
	tokenRBracket
	tokenComma
	tokenColon
)

func (t tokenType) String() string {
	switch t {
	case tokenEOF:
		return "end of expression"
	case tokenIdent:
		return "name"
	case tokenString:
		return "string"
	case tokenInt:
		return "integer"
	case tokenLParen:
		return `"("`
	case tokenRParen:
		return `")"`
	case tokenLBracket:
		return `"["`
	case tokenRBracket:
		return `"]"`
	case tokenComma:
		return `","`
	case tokenColon:
		return `":"`
	}
	return "token"
}

type token struct {
	typ tokenType
	val string
	pos int
}

type lexer struct {
	input  string
	pos    int
	tokens []token
}

func lex(input string) ([]token, error) {
	l := &lexer{input: input}
	if err := l.run(); err != nil {
		return nil, err
	}
	return l.tokens, nil
}

func (l *lexer) run() error {
	for l.pos < len(l.input) {
		ch := l.input[l.pos]

		switch {
		case isBlank(ch):
			l.pos++

		case ch == '\\':
			// Line continuation.
			if !l.skipContinuation() {
				return l.errorf(l.pos, "unexpected character %q", ch)
			}

		case ch == '"' || ch == '\'':
			tok, err := l.readString(l.pos, false)
			if err != nil {
				return err
			}
			l.tokens = append(l.tokens, tok)

		case ch == '(':
			l.emit(tokenLParen, "(")
		case ch == ')':
			l.emit(tokenRParen, ")")
		case ch == '[':
			l.emit(tokenLBracket, "[")
		case ch == ']':
			l.emit(tokenRBracket, "]")
		case ch == ',':
			l.emit(tokenComma, ",")
		case ch == ':':
			l.emit(tokenColon, ":")

		case isDigit(ch) || ((ch == '-' || ch == '+') && l.signedInt()):
			l.tokens = append(l.tokens, l.readInt())

		case isIdentStart(ch):
			start := l.pos
			tok := l.readIdent()
			if (tok.val == "r" || tok.val == "R") && l.pos < len(l.input) && (l.input[l.pos] == '"' || l.input[l.pos] == '\'') {
				str, err := l.readString(start, true)
				if err != nil {
					return err
				}
				l.tokens = append(l.tokens, str)
				continue
			}
			l.tokens = append(l.tokens, tok)

		default:
			return l.errorf(l.pos, "unexpected character %q", ch)
		}
	}
	l.tokens = append(l.tokens, token{typ: tokenEOF, pos: len(l.input)})
	return nil
}

func (l *lexer) emit(typ tokenType, val string) {
	l.tokens = append(l.tokens, token{typ: typ, val: val, pos: l.pos})
	l.pos += len(val)
}

func (l *lexer) skipContinuation() bool {
	rest := l.input[l.pos+1:]
	switch {
	case strings.HasPrefix(rest, "\r\n"):
		l.pos += 3
	case strings.HasPrefix(rest, "\n"):
		l.pos += 2
	default:
		return false
	}
	return true
}

// readString reads a quoted string starting at the quote under l.pos. Escapes
// follow the usual backslash conventions; unknown escapes are kept verbatim so
// that regular expressions such as "a\.b" survive unchanged.
func (l *lexer) readString(start int, raw bool) (token, error) {
	quote := l.input[l.pos]
	l.pos++ // skip opening quote
	var b strings.Builder
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if ch == '\\' && l.pos+1 < len(l.input) {
			next := l.input[l.pos+1]
			if raw {
				b.WriteByte(ch)
				b.WriteByte(next)
				l.pos += 2
				continue
			}
			if err := l.readEscape(&b); err != nil {
				return token{}, err
			}
			continue
		}
		if ch == quote {
			l.pos++
			return token{typ: tokenString, val: b.String(), pos: start}, nil
		}
		if ch == '\n' {
			break
		}
		b.WriteByte(ch)
		l.pos++
	}
	return token{}, l.errorf(start, "unterminated string")
}

func (l *lexer) readEscape(b *strings.Builder) error {
	esc := l.pos
	next := l.input[l.pos+1]
	l.pos += 2
	switch next {
	case 'n':
		b.WriteByte('\n')
	case 't':
		b.WriteByte('\t')
	case 'r':
		b.WriteByte('\r')
	case '0':
		b.WriteByte(0)
	case 'a':
		b.WriteByte('\a')
	case 'b':
		b.WriteByte('\b')
	case 'f':
		b.WriteByte('\f')
	case 'v':
		b.WriteByte('\v')
	case '\\', '"', '\'':
		b.WriteByte(next)
	case '\n':
		// Escaped newline inside a string is dropped.
	case 'x', 'u', 'U':
		n := map[byte]int{'x': 2, 'u': 4, 'U': 8}[next]
		if l.pos+n > len(l.input) {
			return l.errorf(esc, "truncated \\%c escape", next)
		}
		r, err := strconv.ParseUint(l.input[l.pos:l.pos+n], 16, 32)
		if err != nil {
			return l.errorf(esc, "invalid \\%c escape", next)
		}
		b.WriteRune(rune(r))
		l.pos += n
	default:
		b.WriteByte('\\')
		b.WriteByte(next)
	}
	return nil
}

// signedInt reports whether the sign at the current position is followed by
// digits, possibly after blanks.
func (l *lexer) signedInt() bool {
	i := l.pos + 1
	for i < len(l.input) && isBlank(l.input[i]) {
		i++
	}
	return i < len(l.input) && isDigit(l.input[i])
}

// readInt reads an optionally signed integer. Blanks between the sign and
// the digits are dropped from the token value.
func (l *lexer) readInt() token {
	start := l.pos
	var sign string
	if l.input[l.pos] == '-' || l.input[l.pos] == '+' {
		sign = l.input[l.pos : l.pos+1]
		l.pos++
		for l.pos < len(l.input) && isBlank(l.input[l.pos]) {
			l.pos++
		}
	}
	digits := l.pos
	for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
		l.pos++
	}
	return token{typ: tokenInt, val: sign + l.input[digits:l.pos], pos: start}
}

func (l *lexer) readIdent() token {
	start := l.pos
	for l.pos < len(l.input) && isIdentPart(l.input[l.pos]) {
		l.pos++
	}
	return token{typ: tokenIdent, val: l.input[start:l.pos], pos: start}
}

func (l *lexer) errorf(pos int, format string, args ...any) error {
	return newParseError(l.input, pos, format, args...)
}

func isBlank(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r'
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isIdentStart(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isIdentPart(ch byte) bool {
	r := rune(ch)
	return unicode.IsLetter(r) || unicode.IsDigit(r) || ch == '_'
}
