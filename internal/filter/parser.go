package filter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/esnet/esnet-smartnic-fw/internal/api"
)

// Parse compiles a filter expression into a filter tree.
// Returns nil if the input is empty.
//
// The expression language is a fixed set of constructor calls, e.g.
//
//	all(label(exact("units"), exact("packets")), neg(indices[10:20:2]))
//
// Only the names listed in builtins and constants are recognised.
func Parse(input string) (Filter, error) {
	if strings.TrimSpace(input) == "" {
		return nil, nil
	}

	tokens, err := lex(input)
	if err != nil {
		return nil, err
	}

	p := &parser{input: input, tokens: tokens}
	op, err := p.parseExpr()
	if err != nil {
		return nil, err
	}

	if tok := p.peek(); tok.typ != tokenEOF {
		return nil, p.errorf(tok.pos, "unexpected %s", describe(tok))
	}

	f, ok := op.val.(Filter)
	if !ok {
		return nil, p.errorf(op.pos, "expression is a %s, not a filter", kindOf(op.val))
	}
	return f, nil
}

// ParseAll parses each expression and combines the results with a logical AND.
// Returns nil if no expression yields a filter.
func ParseAll(inputs []string) (Filter, error) {
	var members []Filter
	for _, input := range inputs {
		f, err := Parse(input)
		if err != nil {
			return nil, err
		}
		if f != nil {
			members = append(members, f)
		}
	}

	switch len(members) {
	case 0:
		return nil, nil
	case 1:
		return members[0], nil
	}
	return All(members...), nil
}

type parser struct {
	input  string
	tokens []token
	pos    int
}

// operand is a parsed value together with the offset it came from.
type operand struct {
	val any
	pos int
}

// none is the value of the None constant.
type none struct{}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) advance() token {
	t := p.tokens[p.pos]
	if t.typ != tokenEOF {
		p.pos++
	}
	return t
}

func (p *parser) expect(typ tokenType, context string) (token, error) {
	t := p.advance()
	if t.typ != typ {
		return t, p.errorf(t.pos, "expected %s %s, got %s", typ, context, describe(t))
	}
	return t, nil
}

func (p *parser) errorf(pos int, format string, args ...any) error {
	return newParseError(p.input, pos, format, args...)
}

// expr = STRING | INT | name
func (p *parser) parseExpr() (operand, error) {
	tok := p.advance()
	switch tok.typ {
	case tokenString:
		return operand{val: tok.val, pos: tok.pos}, nil
	case tokenInt:
		n, err := p.atoi(tok)
		if err != nil {
			return operand{}, err
		}
		return operand{val: n, pos: tok.pos}, nil
	case tokenIdent:
		return p.parseName(tok)
	}
	return operand{}, p.errorf(tok.pos, "unexpected %s", describe(tok))
}

// name = IDENT | call | subscript
func (p *parser) parseName(name token) (operand, error) {
	switch p.peek().typ {
	case tokenLParen:
		return p.parseCall(name)
	case tokenLBracket:
		return p.parseSubscript(name)
	}

	if c, ok := constants[name.val]; ok {
		return operand{val: c(), pos: name.pos}, nil
	}
	if name.val == "indices" {
		return operand{}, p.errorf(name.pos, "indices must be subscripted, as in indices[0:3]")
	}
	if _, ok := builtins[name.val]; ok {
		return operand{}, p.errorf(name.pos, "%s must be called, as in %s(...)", name.val, name.val)
	}
	return operand{}, p.errorf(name.pos, "name %q is not defined", name.val)
}

// call = IDENT "(" [expr ("," expr)* [","]] ")"
func (p *parser) parseCall(name token) (operand, error) {
	b, ok := builtins[name.val]
	if !ok {
		switch {
		case name.val == "indices":
			return operand{}, p.errorf(name.pos, "indices must be subscripted, as in indices[0:3]")
		case constants[name.val] != nil:
			return operand{}, p.errorf(name.pos, "%s is not callable", name.val)
		}
		return operand{}, p.errorf(name.pos, "name %q is not defined", name.val)
	}
	p.advance() // consume '('

	var args []operand
	for p.peek().typ != tokenRParen {
		if len(args) > 0 {
			if _, err := p.expect(tokenComma, "between arguments to "+name.val+"()"); err != nil {
				return operand{}, err
			}
			if p.peek().typ == tokenRParen {
				break
			}
		}
		arg, err := p.parseExpr()
		if err != nil {
			return operand{}, err
		}
		args = append(args, arg)
	}
	p.advance() // consume ')'

	if b.arity >= 0 && len(args) != b.arity {
		return operand{}, p.errorf(name.pos, "%s() takes %d argument(s), %d given", name.val, b.arity, len(args))
	}

	val, err := b.fn(p, name.val, args)
	if err != nil {
		return operand{}, err
	}
	return operand{val: val, pos: name.pos}, nil
}

// subscript = "indices" "[" [slice ("," slice)* [","]] "]"
func (p *parser) parseSubscript(name token) (operand, error) {
	if name.val != "indices" {
		return operand{}, p.errorf(name.pos, "%s is not subscriptable", name.val)
	}
	p.advance() // consume '['

	var slices []IndexSlice
	for p.peek().typ != tokenRBracket {
		if len(slices) > 0 {
			if _, err := p.expect(tokenComma, "between index slices"); err != nil {
				return operand{}, err
			}
			if p.peek().typ == tokenRBracket {
				break
			}
		}
		s, err := p.parseSlice()
		if err != nil {
			return operand{}, err
		}
		slices = append(slices, s)
	}
	p.advance() // consume ']'

	return operand{val: &Match{Pred: &IndicesMatch{Slices: slices}}, pos: name.pos}, nil
}

// slice = INT | [INT] ":" [INT] [":" [INT]]
func (p *parser) parseSlice() (IndexSlice, error) {
	start := p.peek()
	var bounds [3]*token
	colons := 0
	for i := 0; i < len(bounds); i++ {
		if p.peek().typ == tokenInt {
			tok := p.advance()
			bounds[i] = &tok
		}
		if i < len(bounds)-1 && p.peek().typ == tokenColon {
			p.advance()
			colons++
			continue
		}
		break
	}

	if colons == 0 {
		if bounds[0] == nil {
			return IndexSlice{}, p.errorf(start.pos, "expected array index or slice, got %s", describe(start))
		}
		i, err := p.atoi(*bounds[0])
		if err != nil {
			return IndexSlice{}, err
		}
		return IndexSlice{Start: i, End: i, Step: 1}, nil
	}

	s := IndexSlice{Start: 0, End: -1, Step: 1}
	fields := [3]*int{&s.Start, &s.End, &s.Step}
	for i, tok := range bounds {
		if tok == nil {
			continue
		}
		n, err := p.atoi(*tok)
		if err != nil {
			return IndexSlice{}, err
		}
		*fields[i] = n
	}
	if s.Step <= 0 {
		return IndexSlice{}, p.errorf(bounds[2].pos, "slice step must be positive, got %d", s.Step)
	}
	return s, nil
}

func (p *parser) atoi(tok token) (int, error) {
	n, err := strconv.ParseInt(tok.val, 10, 32)
	if err != nil {
		return 0, p.errorf(tok.pos, "integer %s out of range", tok.val)
	}
	return int(n), nil
}

func (p *parser) argError(fn string, i int, want string, got operand) error {
	return p.errorf(got.pos, "%s() argument %d must be a %s, not %s", fn, i+1, want, kindOf(got.val))
}

func (p *parser) filterArg(fn string, i int, arg operand) (Filter, error) {
	f, ok := arg.val.(Filter)
	if !ok {
		return nil, p.argError(fn, i, "filter", arg)
	}
	return f, nil
}

func (p *parser) stringArg(fn string, i int, arg operand) (string, error) {
	s, ok := arg.val.(string)
	if !ok {
		return "", p.argError(fn, i, "string", arg)
	}
	return s, nil
}

func (p *parser) stringMatchArg(fn string, i int, arg operand) (StringMatch, error) {
	m, ok := arg.val.(StringMatch)
	if !ok {
		return nil, p.argError(fn, i, "string match", arg)
	}
	return m, nil
}

// optionalStringMatchArg accepts None as a wildcard.
func (p *parser) optionalStringMatchArg(fn string, i int, arg operand) (StringMatch, error) {
	if _, ok := arg.val.(none); ok {
		return nil, nil
	}
	m, ok := arg.val.(StringMatch)
	if !ok {
		return nil, p.argError(fn, i, "string match or None", arg)
	}
	return m, nil
}

type builtin struct {
	arity int // -1 for any number of arguments
	fn    func(p *parser, name string, args []operand) (any, error)
}

var builtins = map[string]builtin{
	"neg": {1, buildNeg},
	"any": {-1, buildSet},
	"all": {-1, buildSet},

	"type":   {1, buildType},
	"domain": {1, buildAttr(AttrDomain)},
	"zone":   {1, buildAttr(AttrZone)},
	"block":  {1, buildAttr(AttrBlock)},
	"name":   {1, buildAttr(AttrName)},
	"label":  {2, buildLabel},

	"exact":  {1, buildLiteral(func(s string) StringMatch { return &Exact{Value: s} })},
	"prefix": {1, buildLiteral(func(s string) StringMatch { return &Prefix{Value: s} })},
	"suffix": {1, buildLiteral(func(s string) StringMatch { return &Suffix{Value: s} })},
	"sub":    {1, buildLiteral(func(s string) StringMatch { return &Substring{Value: s} })},
	"re":     {1, buildRegexp},

	"split_any": {2, buildSplit(CombineAny)},
	"split_all": {2, buildSplit(CombineAll)},

	"part_value": {1, buildPartValue},
	"part_index": {1, buildPartIndex},
}

var constants = map[string]func() any{
	"COUNTER":   func() any { return api.MetricTypeCounter },
	"GAUGE":     func() any { return api.MetricTypeGauge },
	"FLAG":      func() any { return api.MetricTypeFlag },
	"None":      func() any { return none{} },
	"singleton": func() any { return &Match{Pred: &IndicesMatch{}} },
}

func buildNeg(p *parser, name string, args []operand) (any, error) {
	f, err := p.filterArg(name, 0, args[0])
	if err != nil {
		return nil, err
	}
	return Negate(f), nil
}

// buildSet builds a filter set, or a split part set when the members are
// split part matches.
func buildSet(p *parser, name string, args []operand) (any, error) {
	if len(args) > 0 {
		if _, ok := args[0].val.(PartMatch); ok {
			parts := make([]PartMatch, len(args))
			for i, arg := range args {
				pm, ok := arg.val.(PartMatch)
				if !ok {
					return nil, p.argError(name, i, "split part match", arg)
				}
				parts[i] = pm
			}
			if name == "any" {
				return &PartAnySet{Members: parts}, nil
			}
			return &PartAllSet{Members: parts}, nil
		}
	}

	members := make([]Filter, len(args))
	for i, arg := range args {
		f, err := p.filterArg(name, i, arg)
		if err != nil {
			return nil, err
		}
		members[i] = f
	}
	if name == "any" {
		return Any(members...), nil
	}
	return All(members...), nil
}

func buildType(p *parser, name string, args []operand) (any, error) {
	t, ok := args[0].val.(api.MetricType)
	if !ok {
		return nil, p.argError(name, 0, "metric type (COUNTER, GAUGE or FLAG)", args[0])
	}
	return MatchType(t), nil
}

func buildAttr(attr Attr) func(*parser, string, []operand) (any, error) {
	return func(p *parser, name string, args []operand) (any, error) {
		m, err := p.stringMatchArg(name, 0, args[0])
		if err != nil {
			return nil, err
		}
		return &Match{Pred: &AttrMatch{Attr: attr, Match: m}}, nil
	}
}

func buildLabel(p *parser, name string, args []operand) (any, error) {
	key, err := p.optionalStringMatchArg(name, 0, args[0])
	if err != nil {
		return nil, err
	}
	value, err := p.optionalStringMatchArg(name, 1, args[1])
	if err != nil {
		return nil, err
	}
	return MatchLabel(key, value), nil
}

func buildLiteral(ctor func(string) StringMatch) func(*parser, string, []operand) (any, error) {
	return func(p *parser, name string, args []operand) (any, error) {
		s, err := p.stringArg(name, 0, args[0])
		if err != nil {
			return nil, err
		}
		return ctor(s), nil
	}
}

func buildRegexp(p *parser, name string, args []operand) (any, error) {
	pattern, err := p.stringArg(name, 0, args[0])
	if err != nil {
		return nil, err
	}
	re, err := NewRegexp(pattern)
	if err != nil {
		return nil, p.errorf(args[0].pos, "invalid regular expression %q: %v", pattern, err)
	}
	return re, nil
}

func buildSplit(combine Combine) func(*parser, string, []operand) (any, error) {
	return func(p *parser, name string, args []operand) (any, error) {
		pattern, err := p.stringArg(name, 0, args[0])
		if err != nil {
			return nil, err
		}
		part, ok := args[1].val.(PartMatch)
		if !ok {
			return nil, p.argError(name, 1, "split part match", args[1])
		}
		s, err := NewSplit(pattern, combine, part)
		if err != nil {
			return nil, p.errorf(args[0].pos, "invalid split pattern %q: %v", pattern, err)
		}
		return s, nil
	}
}

func buildPartValue(p *parser, name string, args []operand) (any, error) {
	m, err := p.stringMatchArg(name, 0, args[0])
	if err != nil {
		return nil, err
	}
	return &PartValue{Match: m}, nil
}

func buildPartIndex(p *parser, name string, args []operand) (any, error) {
	i, ok := args[0].val.(int)
	if !ok {
		return nil, p.argError(name, 0, "integer", args[0])
	}
	return &PartIndex{Index: i}, nil
}

func kindOf(v any) string {
	switch v.(type) {
	case Filter:
		return "filter"
	case StringMatch:
		return "string match"
	case PartMatch:
		return "split part match"
	case api.MetricType:
		return "metric type"
	case string:
		return "string"
	case int:
		return "integer"
	case none:
		return "None"
	}
	return "value"
}

func describe(t token) string {
	switch t.typ {
	case tokenIdent:
		return fmt.Sprintf("name %q", t.val)
	case tokenString:
		return fmt.Sprintf("string %q", t.val)
	case tokenInt:
		return "integer " + t.val
	}
	return t.typ.String()
}
