package filter

import (
	"strconv"
	"strings"
)

// String renders a filter tree in expression syntax. Parsing the result
// yields an equivalent tree.
func String(f Filter) string {
	if f == nil {
		return ""
	}
	var sb strings.Builder
	writeFilter(&sb, f)
	return sb.String()
}

func writeFilter(sb *strings.Builder, f Filter) {
	if f.IsNegated() {
		sb.WriteString("neg(")
		defer sb.WriteString(")")
	}

	switch n := f.(type) {
	case *AllSet:
		writeCall(sb, "all", len(n.Members), func(i int) { writeFilter(sb, n.Members[i]) })
	case *AnySet:
		writeCall(sb, "any", len(n.Members), func(i int) { writeFilter(sb, n.Members[i]) })
	case *Match:
		writePredicate(sb, n.Pred)
	}
}

func writePredicate(sb *strings.Builder, pred Predicate) {
	switch p := pred.(type) {
	case *TypeMatch:
		sb.WriteString("type(")
		sb.WriteString(strings.ToUpper(p.Type.String()))
		sb.WriteString(")")
	case *AttrMatch:
		sb.WriteString(p.Attr.String())
		sb.WriteString("(")
		writeStringMatch(sb, p.Match)
		sb.WriteString(")")
	case *IndicesMatch:
		if len(p.Slices) == 0 {
			sb.WriteString("singleton")
			return
		}
		sb.WriteString("indices[")
		for i, s := range p.Slices {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(s.String())
		}
		sb.WriteString("]")
	case *LabelMatch:
		sb.WriteString("label(")
		writeStringMatch(sb, p.Key)
		sb.WriteString(", ")
		writeStringMatch(sb, p.Value)
		sb.WriteString(")")
	}
}

func (s IndexSlice) String() string {
	if s.Start == s.End && s.Step == 1 {
		return strconv.Itoa(s.Start)
	}
	str := strconv.Itoa(s.Start) + ":" + strconv.Itoa(s.End)
	if s.Step != 1 {
		str += ":" + strconv.Itoa(s.Step)
	}
	return str
}

func writeStringMatch(sb *strings.Builder, sm StringMatch) {
	switch m := sm.(type) {
	case nil:
		sb.WriteString("None")
	case *Exact:
		writeLiteral(sb, "exact", m.Value)
	case *Prefix:
		writeLiteral(sb, "prefix", m.Value)
	case *Suffix:
		writeLiteral(sb, "suffix", m.Value)
	case *Substring:
		writeLiteral(sb, "sub", m.Value)
	case *Regexp:
		writeLiteral(sb, "re", m.Pattern)
	case *Split:
		name := "split_all"
		if m.Combine == CombineAny {
			name = "split_any"
		}
		sb.WriteString(name)
		sb.WriteString("(")
		sb.WriteString(strconv.Quote(m.Pattern))
		sb.WriteString(", ")
		writePart(sb, m.Part)
		sb.WriteString(")")
	}
}

func writeLiteral(sb *strings.Builder, name, value string) {
	sb.WriteString(name)
	sb.WriteString("(")
	sb.WriteString(strconv.Quote(value))
	sb.WriteString(")")
}

func writePart(sb *strings.Builder, pm PartMatch) {
	switch p := pm.(type) {
	case *PartValue:
		sb.WriteString("part_value(")
		writeStringMatch(sb, p.Match)
		sb.WriteString(")")
	case *PartIndex:
		sb.WriteString("part_index(")
		sb.WriteString(strconv.Itoa(p.Index))
		sb.WriteString(")")
	case *PartAnySet:
		writeCall(sb, "any", len(p.Members), func(i int) { writePart(sb, p.Members[i]) })
	case *PartAllSet:
		writeCall(sb, "all", len(p.Members), func(i int) { writePart(sb, p.Members[i]) })
	}
}

func writeCall(sb *strings.Builder, name string, n int, arg func(int)) {
	sb.WriteString(name)
	sb.WriteString("(")
	for i := 0; i < n; i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		arg(i)
	}
	sb.WriteString(")")
}
