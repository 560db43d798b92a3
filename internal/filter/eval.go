package filter

import (
	"strings"

	"github.com/dlclark/regexp2"

	"github.com/esnet/esnet-smartnic-fw/internal/api"
)

// Evaluate reports whether value v of metric m satisfies the filter.
// Returns true if the filter is nil (no filter).
func Evaluate(f Filter, m *api.StatsMetric, v *api.MetricValue) bool {
	if f == nil {
		return true
	}
	return eval(f, m, v) != f.IsNegated()
}

func eval(f Filter, m *api.StatsMetric, v *api.MetricValue) bool {
	switch n := f.(type) {
	case *AllSet:
		for _, member := range n.Members {
			if !Evaluate(member, m, v) {
				return false
			}
		}
		return true
	case *AnySet:
		for _, member := range n.Members {
			if Evaluate(member, m, v) {
				return true
			}
		}
		return false
	case *Match:
		return evalPredicate(n.Pred, m, v)
	default:
		return false
	}
}

func evalPredicate(pred Predicate, m *api.StatsMetric, v *api.MetricValue) bool {
	switch p := pred.(type) {
	case *TypeMatch:
		return m.Type == p.Type
	case *AttrMatch:
		return MatchString(p.Match, attrValue(p.Attr, m))
	case *IndicesMatch:
		return matchIndices(p.Slices, m, v)
	case *LabelMatch:
		for _, l := range v.Labels {
			if (p.Key == nil || MatchString(p.Key, l.Key)) &&
				(p.Value == nil || MatchString(p.Value, l.Value)) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func attrValue(a Attr, m *api.StatsMetric) string {
	if a == AttrName {
		return m.Name
	}
	if m.Scope == nil {
		return ""
	}
	switch a {
	case AttrDomain:
		return m.Scope.Domain
	case AttrZone:
		return m.Scope.Zone
	case AttrBlock:
		return m.Scope.Block
	}
	return ""
}

func matchIndices(slices []IndexSlice, m *api.StatsMetric, v *api.MetricValue) bool {
	if !m.IsArray() {
		return len(slices) == 0
	}
	n := int(m.NumElements)
	idx := int(v.Index)
	for _, s := range slices {
		if s.Contains(idx, n) {
			return true
		}
	}
	return false
}

// Resolve maps the slice bounds onto an array of n elements. Negative bounds
// count back from n and a start before the first element is clamped to 0.
func (s IndexSlice) Resolve(n int) (start, end int) {
	start, end = s.Start, s.End
	if start < 0 {
		start += n
		if start < 0 {
			start = 0
		}
	}
	if end < 0 {
		end += n
	}
	return start, end
}

// Contains reports whether index i of an array of n elements falls in the slice.
func (s IndexSlice) Contains(i, n int) bool {
	start, end := s.Resolve(n)
	if i < start || i > end {
		return false
	}
	step := s.Step
	if step <= 0 {
		step = 1
	}
	return (i-start)%step == 0
}

// MatchString reports whether subject satisfies the string match.
func MatchString(sm StringMatch, subject string) bool {
	switch m := sm.(type) {
	case *Exact:
		return subject == m.Value
	case *Prefix:
		return strings.HasPrefix(subject, m.Value)
	case *Suffix:
		return strings.HasSuffix(subject, m.Value)
	case *Substring:
		return strings.Contains(subject, m.Value)
	case *Regexp:
		re := m.compiled()
		if re == nil {
			return false
		}
		ok, err := re.MatchString(subject)
		return err == nil && ok
	case *Split:
		re := m.compiled()
		if re == nil {
			return false
		}
		parts := split(re, subject)
		for i, part := range parts {
			ok := matchPart(m.Part, part, i, len(parts))
			if m.Combine == CombineAny && ok {
				return true
			}
			if m.Combine == CombineAll && !ok {
				return false
			}
		}
		return m.Combine == CombineAll
	default:
		return false
	}
}

// split cuts subject around every match of re. Empty matches at either end
// of the subject or right after the previous match do not cut.
func split(re *regexp2.Regexp, subject string) []string {
	runes := []rune(subject)
	var parts []string
	beg := 0
	m, err := re.FindRunesMatch(runes)
	for m != nil && err == nil {
		if m.Length > 0 || (m.Index != beg && m.Index != len(runes)) {
			parts = append(parts, string(runes[beg:m.Index]))
			beg = m.Index + m.Length
		}
		m, err = re.FindNextMatch(m)
	}
	return append(parts, string(runes[beg:]))
}

func matchPart(pm PartMatch, value string, i, n int) bool {
	switch p := pm.(type) {
	case *PartValue:
		return MatchString(p.Match, value)
	case *PartIndex:
		want := p.Index
		if want < 0 {
			want += n
		}
		return i == want
	case *PartAnySet:
		for _, member := range p.Members {
			if matchPart(member, value, i, n) {
				return true
			}
		}
		return false
	case *PartAllSet:
		for _, member := range p.Members {
			if !matchPart(member, value, i, n) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Select returns the metrics holding at least one value that satisfies the
// filter. Values are kept or dropped independently; the returned metrics are
// shallow copies and the input is not modified.
func Select(f Filter, metrics []*api.StatsMetric) []*api.StatsMetric {
	var out []*api.StatsMetric
	for _, m := range metrics {
		var values []*api.MetricValue
		for _, v := range m.Values {
			if Evaluate(f, m, v) {
				values = append(values, v)
			}
		}
		if len(values) == 0 {
			continue
		}
		c := *m
		c.Values = values
		out = append(out, &c)
	}
	return out
}
