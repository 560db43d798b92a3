package filter

import (
	"fmt"
	"strings"
)

// ParseError reports a malformed filter expression. Pos is the byte offset
// of the offending fragment in Input.
type ParseError struct {
	Input string
	Pos   int
	Msg   string
}

func newParseError(input string, pos int, format string, args ...any) *ParseError {
	return &ParseError{Input: input, Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

func (e *ParseError) Error() string {
	line, col := e.line()
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("filter: %s at offset %d\n", e.Msg, e.Pos))
	sb.WriteString("  ")
	sb.WriteString(line)
	sb.WriteString("\n  ")
	sb.WriteString(strings.Repeat(" ", col))
	sb.WriteString("^")
	return sb.String()
}

// line returns the input line holding Pos and the column of Pos within it.
func (e *ParseError) line() (string, int) {
	pos := e.Pos
	if pos > len(e.Input) {
		pos = len(e.Input)
	}
	start := strings.LastIndexByte(e.Input[:pos], '\n') + 1
	end := strings.IndexByte(e.Input[pos:], '\n')
	if end < 0 {
		end = len(e.Input)
	} else {
		end += pos
	}
	line := strings.TrimRight(e.Input[start:end], "\r")
	return strings.ReplaceAll(line, "\t", " "), pos - start
}
