package filter

import (
	"time"

	"github.com/dlclark/regexp2"

	"github.com/esnet/esnet-smartnic-fw/internal/api"
)

// Filter is a node in a metric filter tree.
type Filter interface {
	IsNegated() bool
	filter()
}

// AllSet is the logical AND of its members. An empty set is true.
type AllSet struct {
	Members []Filter
	Negated bool
}

func (*AllSet) filter()           {}
func (f *AllSet) IsNegated() bool { return f.Negated }

// AnySet is the logical OR of its members. An empty set is false.
type AnySet struct {
	Members []Filter
	Negated bool
}

func (*AnySet) filter()           {}
func (f *AnySet) IsNegated() bool { return f.Negated }

// Match is a leaf filter testing one attribute of a metric value.
type Match struct {
	Pred    Predicate
	Negated bool
}

func (*Match) filter()           {}
func (f *Match) IsNegated() bool { return f.Negated }

// Negate returns a copy of f with its negated flag toggled.
func Negate(f Filter) Filter {
	switch n := f.(type) {
	case *AllSet:
		c := *n
		c.Negated = !c.Negated
		return &c
	case *AnySet:
		c := *n
		c.Negated = !c.Negated
		return &c
	case *Match:
		c := *n
		c.Negated = !c.Negated
		return &c
	default:
		return f
	}
}

// All returns the conjunction of members.
func All(members ...Filter) *AllSet {
	return &AllSet{Members: members}
}

// Any returns the disjunction of members.
func Any(members ...Filter) *AnySet {
	return &AnySet{Members: members}
}

// Predicate is the attribute test held by a Match.
type Predicate interface {
	predicate()
}

// TypeMatch tests the metric type.
type TypeMatch struct {
	Type api.MetricType
}

func (*TypeMatch) predicate() {}

// Attr names a string attribute of a metric.
type Attr int

const (
	AttrDomain Attr = iota
	AttrZone
	AttrBlock
	AttrName
)

func (a Attr) String() string {
	switch a {
	case AttrDomain:
		return "domain"
	case AttrZone:
		return "zone"
	case AttrBlock:
		return "block"
	case AttrName:
		return "name"
	}
	return "unknown"
}

// AttrMatch tests a scope attribute or the metric name.
type AttrMatch struct {
	Attr  Attr
	Match StringMatch
}

func (*AttrMatch) predicate() {}

// IndicesMatch tests the array index of a value. No slices selects singleton
// metrics only.
type IndicesMatch struct {
	Slices []IndexSlice
}

func (*IndicesMatch) predicate() {}

// IndexSlice is an inclusive, stepped index range. Negative bounds count
// back from the array length.
type IndexSlice struct {
	Start, End, Step int
}

// LabelMatch tests the label pairs of a value. A nil Key or Value matches anything.
type LabelMatch struct {
	Key   StringMatch
	Value StringMatch
}

func (*LabelMatch) predicate() {}

// MatchType returns a leaf selecting metrics of type t.
func MatchType(t api.MetricType) *Match {
	return &Match{Pred: &TypeMatch{Type: t}}
}

// MatchLabel returns a leaf selecting values with a label matching key and value.
func MatchLabel(key, value StringMatch) *Match {
	return &Match{Pred: &LabelMatch{Key: key, Value: value}}
}

// StringMatch describes how a string attribute is tested.
type StringMatch interface {
	stringMatch()
}

// Exact matches the whole subject.
type Exact struct{ Value string }

// Prefix matches the start of the subject.
type Prefix struct{ Value string }

// Suffix matches the end of the subject.
type Suffix struct{ Value string }

// Substring matches anywhere in the subject.
type Substring struct{ Value string }

func (*Exact) stringMatch()     {}
func (*Prefix) stringMatch()    {}
func (*Suffix) stringMatch()    {}
func (*Substring) stringMatch() {}

// matchTimeout bounds a single backtracking match.
const matchTimeout = 100 * time.Millisecond

// compile builds an ECMAScript pattern.
func compile(pattern string) (*regexp2.Regexp, error) {
	re, err := regexp2.Compile(pattern, regexp2.ECMAScript)
	if err != nil {
		return nil, err
	}
	re.MatchTimeout = matchTimeout
	return re, nil
}

// Regexp matches when the ECMAScript pattern is found anywhere in the
// subject.
type Regexp struct {
	Pattern string
	re      *regexp2.Regexp
}

func (*Regexp) stringMatch() {}

func NewRegexp(pattern string) (*Regexp, error) {
	re, err := compile(pattern)
	if err != nil {
		return nil, err
	}
	return &Regexp{Pattern: pattern, re: re}, nil
}

func (r *Regexp) compiled() *regexp2.Regexp {
	if r.re != nil {
		return r.re
	}
	re, _ := compile(r.Pattern)
	return re
}

// Combine selects how the per-fragment results of a Split are reduced.
type Combine int

const (
	CombineAny Combine = iota
	CombineAll
)

// Split splits the subject on the ECMAScript Pattern and applies Part to
// every fragment.
type Split struct {
	Pattern string
	Combine Combine
	Part    PartMatch
	re      *regexp2.Regexp
}

func (*Split) stringMatch() {}

func NewSplit(pattern string, combine Combine, part PartMatch) (*Split, error) {
	re, err := compile(pattern)
	if err != nil {
		return nil, err
	}
	return &Split{Pattern: pattern, Combine: combine, Part: part, re: re}, nil
}

// MustSplit is like NewSplit but panics if the pattern does not compile.
func MustSplit(pattern string, combine Combine, part PartMatch) *Split {
	s, err := NewSplit(pattern, combine, part)
	if err != nil {
		panic("filter: split pattern " + pattern + ": " + err.Error())
	}
	return s
}

func (s *Split) compiled() *regexp2.Regexp {
	if s.re != nil {
		return s.re
	}
	re, _ := compile(s.Pattern)
	return re
}

// PartMatch tests one fragment produced by a Split.
type PartMatch interface {
	partMatch()
}

// PartValue tests the fragment content.
type PartValue struct {
	Match StringMatch
}

// PartIndex tests the 0-based fragment position. Negative positions count
// back from the last fragment.
type PartIndex struct {
	Index int
}

// PartAnySet is the logical OR of its members.
type PartAnySet struct {
	Members []PartMatch
}

// PartAllSet is the logical AND of its members.
type PartAllSet struct {
	Members []PartMatch
}

func (*PartValue) partMatch()  {}
func (*PartIndex) partMatch()  {}
func (*PartAnySet) partMatch() {}
func (*PartAllSet) partMatch() {}
