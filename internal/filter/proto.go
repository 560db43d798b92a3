package filter

import (
	"errors"
	"fmt"

	"github.com/esnet/esnet-smartnic-fw/internal/api"
)

// ToProto converts a filter tree into its wire form. A nil filter yields nil.
func ToProto(f Filter) *api.MetricFilter {
	if f == nil {
		return nil
	}
	out := &api.MetricFilter{Negated: f.IsNegated()}
	switch n := f.(type) {
	case *AllSet:
		out.AllSet = &api.MetricFilterSet{Members: membersToProto(n.Members)}
	case *AnySet:
		out.AnySet = &api.MetricFilterSet{Members: membersToProto(n.Members)}
	case *Match:
		out.Match = predicateToProto(n.Pred)
	}
	return out
}

func membersToProto(members []Filter) []*api.MetricFilter {
	out := make([]*api.MetricFilter, 0, len(members))
	for _, m := range members {
		out = append(out, ToProto(m))
	}
	return out
}

func predicateToProto(pred Predicate) *api.MetricMatch {
	out := &api.MetricMatch{}
	switch p := pred.(type) {
	case *TypeMatch:
		out.Type = p.Type
	case *AttrMatch:
		sm := stringMatchToProto(p.Match)
		switch p.Attr {
		case AttrDomain:
			out.Domain = sm
		case AttrZone:
			out.Zone = sm
		case AttrBlock:
			out.Block = sm
		case AttrName:
			out.Name = sm
		}
	case *IndicesMatch:
		slices := make([]api.IndexSlice, 0, len(p.Slices))
		for _, s := range p.Slices {
			slices = append(slices, api.IndexSlice{Start: int32(s.Start), End: int32(s.End), Step: int32(s.Step)})
		}
		out.Indices = &api.MatchIndices{Slices: slices}
	case *LabelMatch:
		out.Label = &api.MatchLabel{Key: stringMatchToProto(p.Key), Value: stringMatchToProto(p.Value)}
	}
	return out
}

func stringMatchToProto(sm StringMatch) *api.StringMatch {
	switch m := sm.(type) {
	case *Exact:
		return &api.StringMatch{Exact: &m.Value}
	case *Prefix:
		return &api.StringMatch{Prefix: &m.Value}
	case *Suffix:
		return &api.StringMatch{Suffix: &m.Value}
	case *Substring:
		return &api.StringMatch{Substring: &m.Value}
	case *Regexp:
		return &api.StringMatch{Regexp: &api.StringRegexp{Pattern: m.Pattern}}
	case *Split:
		return &api.StringMatch{Split: &api.StringSplit{
			Pattern: m.Pattern,
			Any:     m.Combine == CombineAny,
			Part:    partToProto(m.Part),
		}}
	}
	return nil
}

func partToProto(pm PartMatch) *api.SplitPart {
	switch p := pm.(type) {
	case *PartValue:
		return &api.SplitPart{Match: &api.SplitPartMatch{Value: stringMatchToProto(p.Match)}}
	case *PartIndex:
		i := int32(p.Index)
		return &api.SplitPart{Match: &api.SplitPartMatch{Index: &i}}
	case *PartAnySet:
		return &api.SplitPart{AnySet: &api.SplitPartSet{Members: partsToProto(p.Members)}}
	case *PartAllSet:
		return &api.SplitPart{AllSet: &api.SplitPartSet{Members: partsToProto(p.Members)}}
	}
	return nil
}

func partsToProto(parts []PartMatch) []*api.SplitPart {
	out := make([]*api.SplitPart, 0, len(parts))
	for _, p := range parts {
		out = append(out, partToProto(p))
	}
	return out
}

var errNoVariant = errors.New("no variant set")

// FromProto converts a wire filter into a filter tree, rejecting nodes that
// set zero or several variants and patterns that do not compile.
// Returns nil if mf is nil.
func FromProto(mf *api.MetricFilter) (Filter, error) {
	if mf == nil {
		return nil, nil
	}
	f, err := filterFromProto(mf)
	if err != nil {
		return nil, fmt.Errorf("invalid metric filter: %w", err)
	}
	return f, nil
}

func filterFromProto(mf *api.MetricFilter) (Filter, error) {
	if n := countSet(mf.AllSet != nil, mf.AnySet != nil, mf.Match != nil); n != 1 {
		return nil, variantError("metric filter", n)
	}

	switch {
	case mf.AllSet != nil:
		members, err := membersFromProto(mf.AllSet.Members)
		if err != nil {
			return nil, err
		}
		return &AllSet{Members: members, Negated: mf.Negated}, nil
	case mf.AnySet != nil:
		members, err := membersFromProto(mf.AnySet.Members)
		if err != nil {
			return nil, err
		}
		return &AnySet{Members: members, Negated: mf.Negated}, nil
	}

	pred, err := predicateFromProto(mf.Match)
	if err != nil {
		return nil, err
	}
	return &Match{Pred: pred, Negated: mf.Negated}, nil
}

func membersFromProto(members []*api.MetricFilter) ([]Filter, error) {
	out := make([]Filter, 0, len(members))
	for i, m := range members {
		if m == nil {
			return nil, fmt.Errorf("member %d: %w", i, errNoVariant)
		}
		f, err := filterFromProto(m)
		if err != nil {
			return nil, fmt.Errorf("member %d: %w", i, err)
		}
		out = append(out, f)
	}
	return out, nil
}

func predicateFromProto(mm *api.MetricMatch) (Predicate, error) {
	n := countSet(mm.Type != api.MetricTypeUnknown, mm.Domain != nil, mm.Zone != nil,
		mm.Block != nil, mm.Name != nil, mm.Indices != nil, mm.Label != nil)
	if n != 1 {
		return nil, variantError("match", n)
	}

	attr := func(a Attr, sm *api.StringMatch) (Predicate, error) {
		m, err := stringMatchFromProto(sm)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", a, err)
		}
		return &AttrMatch{Attr: a, Match: m}, nil
	}

	switch {
	case mm.Type != api.MetricTypeUnknown:
		if _, ok := metricTypes[mm.Type]; !ok {
			return nil, fmt.Errorf("unknown metric type %d", mm.Type)
		}
		return &TypeMatch{Type: mm.Type}, nil
	case mm.Domain != nil:
		return attr(AttrDomain, mm.Domain)
	case mm.Zone != nil:
		return attr(AttrZone, mm.Zone)
	case mm.Block != nil:
		return attr(AttrBlock, mm.Block)
	case mm.Name != nil:
		return attr(AttrName, mm.Name)
	case mm.Indices != nil:
		slices := make([]IndexSlice, 0, len(mm.Indices.Slices))
		for _, s := range mm.Indices.Slices {
			if s.Step <= 0 {
				return nil, fmt.Errorf("indices: slice step must be positive, got %d", s.Step)
			}
			slices = append(slices, IndexSlice{Start: int(s.Start), End: int(s.End), Step: int(s.Step)})
		}
		return &IndicesMatch{Slices: slices}, nil
	}

	lm := &LabelMatch{}
	if mm.Label.Key != nil {
		key, err := stringMatchFromProto(mm.Label.Key)
		if err != nil {
			return nil, fmt.Errorf("label key: %w", err)
		}
		lm.Key = key
	}
	if mm.Label.Value != nil {
		value, err := stringMatchFromProto(mm.Label.Value)
		if err != nil {
			return nil, fmt.Errorf("label value: %w", err)
		}
		lm.Value = value
	}
	return lm, nil
}

var metricTypes = map[api.MetricType]struct{}{
	api.MetricTypeCounter: {},
	api.MetricTypeGauge:   {},
	api.MetricTypeFlag:    {},
}

func stringMatchFromProto(sm *api.StringMatch) (StringMatch, error) {
	if sm == nil {
		return nil, errNoVariant
	}
	n := countSet(sm.Exact != nil, sm.Prefix != nil, sm.Suffix != nil,
		sm.Substring != nil, sm.Regexp != nil, sm.Split != nil)
	if n != 1 {
		return nil, variantError("string match", n)
	}

	switch {
	case sm.Exact != nil:
		return &Exact{Value: *sm.Exact}, nil
	case sm.Prefix != nil:
		return &Prefix{Value: *sm.Prefix}, nil
	case sm.Suffix != nil:
		return &Suffix{Value: *sm.Suffix}, nil
	case sm.Substring != nil:
		return &Substring{Value: *sm.Substring}, nil
	case sm.Regexp != nil:
		re, err := NewRegexp(sm.Regexp.Pattern)
		if err != nil {
			return nil, fmt.Errorf("regexp %q: %w", sm.Regexp.Pattern, err)
		}
		return re, nil
	}

	part, err := partFromProto(sm.Split.Part)
	if err != nil {
		return nil, fmt.Errorf("split part: %w", err)
	}
	combine := CombineAll
	if sm.Split.Any {
		combine = CombineAny
	}
	s, err := NewSplit(sm.Split.Pattern, combine, part)
	if err != nil {
		return nil, fmt.Errorf("split %q: %w", sm.Split.Pattern, err)
	}
	return s, nil
}

func partFromProto(sp *api.SplitPart) (PartMatch, error) {
	if sp == nil {
		return nil, errNoVariant
	}
	if n := countSet(sp.AnySet != nil, sp.AllSet != nil, sp.Match != nil); n != 1 {
		return nil, variantError("split part", n)
	}

	switch {
	case sp.AnySet != nil:
		members, err := partsFromProto(sp.AnySet.Members)
		if err != nil {
			return nil, err
		}
		return &PartAnySet{Members: members}, nil
	case sp.AllSet != nil:
		members, err := partsFromProto(sp.AllSet.Members)
		if err != nil {
			return nil, err
		}
		return &PartAllSet{Members: members}, nil
	}

	m := sp.Match
	if n := countSet(m.Value != nil, m.Index != nil); n != 1 {
		return nil, variantError("split part match", n)
	}
	if m.Index != nil {
		return &PartIndex{Index: int(*m.Index)}, nil
	}
	value, err := stringMatchFromProto(m.Value)
	if err != nil {
		return nil, err
	}
	return &PartValue{Match: value}, nil
}

func partsFromProto(parts []*api.SplitPart) ([]PartMatch, error) {
	out := make([]PartMatch, 0, len(parts))
	for i, p := range parts {
		pm, err := partFromProto(p)
		if err != nil {
			return nil, fmt.Errorf("member %d: %w", i, err)
		}
		out = append(out, pm)
	}
	return out, nil
}

func countSet(set ...bool) int {
	n := 0
	for _, s := range set {
		if s {
			n++
		}
	}
	return n
}

func variantError(what string, n int) error {
	if n == 0 {
		return fmt.Errorf("%s: %w", what, errNoVariant)
	}
	return fmt.Errorf("%s: %d variants set, want exactly one", what, n)
}
