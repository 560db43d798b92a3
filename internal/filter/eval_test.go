package filter

import (
	"reflect"
	"testing"

	"github.com/esnet/esnet-smartnic-fw/internal/api"
)

func makeMetric(name string, typ api.MetricType, numElements int, labels ...string) *api.StatsMetric {
	m := &api.StatsMetric{
		Scope:       &api.MetricScope{Domain: "sw", Zone: "cmac0", Block: "sn.igr"},
		Type:        typ,
		Name:        name,
		NumElements: uint32(numElements),
	}
	var ls []*api.MetricLabel
	for i := 0; i+1 < len(labels); i += 2 {
		ls = append(ls, &api.MetricLabel{Key: labels[i], Value: labels[i+1]})
	}
	n := numElements
	if n == 0 {
		n = 1
	}
	for i := 0; i < n; i++ {
		m.Values = append(m.Values, &api.MetricValue{Index: uint32(i), U64: uint64(i + 1), Labels: ls})
	}
	return m
}

func mustParse(t *testing.T, input string) Filter {
	t.Helper()
	f, err := Parse(input)
	if err != nil {
		t.Fatalf("Parse(%q): %v", input, err)
	}
	return f
}

func TestSplit(t *testing.T) {
	tests := []struct {
		pattern string
		subject string
		want    []string
	}{
		{",", "a,b,c", []string{"a", "b", "c"}},
		{",", "a,,b", []string{"a", "", "b"}},
		{",", ",a,", []string{"", "a", ""}},
		{",", "", []string{""}},
		{"[,:]", "sn.egr:1:out", []string{"sn.egr", "1", "out"}},
		{"(?=b)", "abab", []string{"a", "ba", "b"}},
		{"", "héllo", []string{"h", "é", "l", "l", "o"}},
	}
	for _, tt := range tests {
		re, err := compile(tt.pattern)
		if err != nil {
			t.Fatalf("compile(%q): %v", tt.pattern, err)
		}
		if got := split(re, tt.subject); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("split(%q, %q) = %q, want %q", tt.pattern, tt.subject, got, tt.want)
		}
	}
}

func TestEvaluate(t *testing.T) {
	m := makeMetric("rx_pkts", api.MetricTypeCounter, 0, "units", "packets", "views", "sn.igr.app0:0:in,sn.egr.app0:1:out")
	v := m.Values[0]

	tests := []struct {
		filter string
		want   bool
	}{
		{`type(COUNTER)`, true},
		{`type(GAUGE)`, false},
		{`domain(exact("sw"))`, true},
		{`zone(prefix("cmac"))`, true},
		{`block(suffix(".igr"))`, true},
		{`name(sub("_pk"))`, true},
		{`name(exact("rx"))`, false},

		// Regexp is an unanchored search
		{`name(re("pkt"))`, true},
		{`name(re("^pkt"))`, false},
		{`name(re("^rx_.*s$"))`, true},

		// ECMAScript lookaround and backreferences
		{`name(re("^(?!tx_)"))`, true},
		{`name(re("^(?!rx_)"))`, false},
		{`name(re("rx(?=_)"))`, true},
		{`name(re("pkts(?=_)"))`, false},
		{`label(exact("views"), re(r"(app\d):\d:in,sn\.egr\.\1"))`, true},
		{`name(re(r"(\w)\1"))`, false},

		// Labels
		{`label(exact("units"), exact("packets"))`, true},
		{`label(exact("units"), exact("bytes"))`, false},
		{`label(None, exact("packets"))`, true},
		{`label(exact("alias"), None)`, false},
		{`label(None, None)`, true},

		// Split
		{`label(exact("views"), split_any(",", part_value(prefix("sn.egr"))))`, true},
		{`label(exact("views"), split_all(",", part_value(prefix("sn.egr"))))`, false},
		{`label(exact("views"), split_all(",", part_value(prefix("sn."))))`, true},
		{`label(exact("views"), split_any(",", all(part_index(1), part_value(sub(":1:")))))`, true},
		{`label(exact("views"), split_any(",", all(part_index(0), part_value(sub(":1:")))))`, false},
		{`label(exact("views"), split_any("[,:]", all(part_index(-1), part_value(exact("out")))))`, true},
		{`name(split_any("_", any(part_value(exact("tx")), part_value(exact("rx")))))`, true},
		{`name(split_any("_(?=p)", all(part_index(1), part_value(exact("pkts")))))`, true},

		// Sets and negation
		{`all()`, true},
		{`any()`, false},
		{`neg(all())`, false},
		{`neg(any())`, true},
		{`all(type(COUNTER), name(prefix("rx")))`, true},
		{`all(type(COUNTER), name(prefix("tx")))`, false},
		{`any(type(GAUGE), name(prefix("rx")))`, true},
		{`neg(type(COUNTER))`, false},
		{`singleton`, true},
		{`indices[0]`, false},
	}

	for _, tt := range tests {
		f := mustParse(t, tt.filter)
		if got := Evaluate(f, m, v); got != tt.want {
			t.Errorf("Evaluate(%s) = %v, want %v", tt.filter, got, tt.want)
		}
	}

	if !Evaluate(nil, m, v) {
		t.Error("nil filter should match everything")
	}
}

func TestEvaluateNegationIdempotent(t *testing.T) {
	metrics := []*api.StatsMetric{
		makeMetric("a", api.MetricTypeCounter, 0, "units", "packets"),
		makeMetric("b", api.MetricTypeGauge, 4),
		makeMetric("c", api.MetricTypeFlag, 1, "alias", "link"),
	}
	filters := []string{
		`type(COUNTER)`,
		`indices[1:2]`,
		`singleton`,
		`any(label(None, exact("packets")), type(FLAG))`,
		`all(neg(type(GAUGE)), name(re("[ac]")))`,
		`any()`,
		`all()`,
	}

	for _, expr := range filters {
		f := mustParse(t, expr)
		for _, m := range metrics {
			for _, v := range m.Values {
				want := Evaluate(f, m, v)
				if got := Evaluate(Negate(Negate(f)), m, v); got != want {
					t.Errorf("neg(neg(%s)) on %s[%d] = %v, want %v", expr, m.Name, v.Index, got, want)
				}
				if got := Evaluate(Negate(f), m, v); got == want {
					t.Errorf("neg(%s) on %s[%d] = %v, want %v", expr, m.Name, v.Index, got, !want)
				}
			}
		}
	}
}

func TestEvaluateNegationIsPerNode(t *testing.T) {
	m := makeMetric("rx_pkts", api.MetricTypeCounter, 0)
	v := m.Values[0]

	// A is true, B is false.
	negAll := mustParse(t, `neg(all(type(COUNTER), type(GAUGE)))`)
	allNeg := mustParse(t, `all(neg(type(COUNTER)), neg(type(GAUGE)))`)
	anyNeg := mustParse(t, `any(neg(type(COUNTER)), neg(type(GAUGE)))`)

	if String(negAll) == String(anyNeg) {
		t.Error("negating a set must not rewrite its members")
	}
	if !Evaluate(negAll, m, v) {
		t.Error("neg(all(A, B)) should be true when B is false")
	}
	if Evaluate(allNeg, m, v) {
		t.Error("all(neg(A), neg(B)) should be false when A is true")
	}
	if Evaluate(negAll, m, v) != Evaluate(anyNeg, m, v) {
		t.Error("neg(all(A, B)) and any(neg(A), neg(B)) should agree")
	}
}

func TestEvaluateSingleton(t *testing.T) {
	m := makeMetric("link_up", api.MetricTypeFlag, 0)
	v := m.Values[0]

	if !Evaluate(&Match{Pred: &IndicesMatch{}}, m, v) {
		t.Error("empty indices should match a singleton metric")
	}
	for _, expr := range []string{`indices[0]`, `indices[0:-1]`, `indices[-1]`, `indices[::1]`} {
		if Evaluate(mustParse(t, expr), m, v) {
			t.Errorf("%s should not match a singleton metric", expr)
		}
	}

	arr := makeMetric("hist", api.MetricTypeCounter, 1)
	if Evaluate(mustParse(t, `singleton`), arr, arr.Values[0]) {
		t.Error("singleton should not match an array metric")
	}
}

func matchedIndices(f Filter, m *api.StatsMetric) []int {
	out := []int{}
	for _, v := range m.Values {
		if Evaluate(f, m, v) {
			out = append(out, int(v.Index))
		}
	}
	return out
}

func TestEvaluateSliceInclusive(t *testing.T) {
	m := makeMetric("hist", api.MetricTypeCounter, 8)
	got := matchedIndices(mustParse(t, `indices[2:5]`), m)
	if want := []int{2, 3, 4, 5}; !reflect.DeepEqual(got, want) {
		t.Errorf("indices[2:5] matched %v, want %v", got, want)
	}

	got = matchedIndices(mustParse(t, `indices[10:20:2]`), makeMetric("hist", api.MetricTypeCounter, 16))
	if want := []int{10, 12, 14}; !reflect.DeepEqual(got, want) {
		t.Errorf("indices[10:20:2] matched %v, want %v", got, want)
	}

	got = matchedIndices(mustParse(t, `neg(indices[10:20:2])`), makeMetric("hist", api.MetricTypeCounter, 12))
	if want := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 11}; !reflect.DeepEqual(got, want) {
		t.Errorf("neg(indices[10:20:2]) matched %v, want %v", got, want)
	}
}

func TestEvaluateSliceBoundaries(t *testing.T) {
	tests := []struct {
		filter string
		n      int
		want   []int
	}{
		{`indices[0]`, 1, []int{0}},
		{`indices[1]`, 1, []int{}},
		{`indices[-1]`, 1, []int{0}},
		{`indices[-2]`, 1, []int{}},
		{`indices[0:-1]`, 1, []int{0}},
		{`indices[:]`, 1, []int{0}},

		{`indices[-1]`, 2, []int{1}},
		{`indices[-2]`, 2, []int{0}},
		{`indices[0:-1]`, 2, []int{0, 1}},
		{`indices[::2]`, 2, []int{0}},
		{`indices[-2:]`, 2, []int{0, 1}},
		{`indices[1:0]`, 2, []int{}},

		{`indices[-1]`, 3, []int{2}},
		{`indices[0:-2]`, 3, []int{0, 1}},
		{`indices[::2]`, 3, []int{0, 2}},
		{`indices[-3:-1]`, 3, []int{0, 1, 2}},
		{`indices[5]`, 3, []int{}},
		{`indices[-5:1]`, 3, []int{0, 1}},
		{`indices[0, -1]`, 3, []int{0, 2}},
		{`indices[1:, 0]`, 3, []int{0, 1, 2}},
	}

	for _, tt := range tests {
		m := makeMetric("arr", api.MetricTypeCounter, tt.n)
		if got := matchedIndices(mustParse(t, tt.filter), m); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("%s on %d elements matched %v, want %v", tt.filter, tt.n, got, tt.want)
		}
	}
}

func TestSelectByType(t *testing.T) {
	metrics := []*api.StatsMetric{
		makeMetric("a", api.MetricTypeCounter, 0),
		makeMetric("b", api.MetricTypeGauge, 0),
	}
	got := Select(mustParse(t, `type(COUNTER)`), metrics)
	if len(got) != 1 || got[0].Name != "a" {
		t.Errorf("Select(type(COUNTER)) = %v, want only a", got)
	}
}

func TestSelectByLabel(t *testing.T) {
	f := mustParse(t, `label(exact("units"), exact("packets"))`)
	bytes := makeMetric("rx", api.MetricTypeCounter, 0, "units", "bytes")
	packets := makeMetric("rx", api.MetricTypeCounter, 0, "units", "packets")

	if got := Select(f, []*api.StatsMetric{bytes}); len(got) != 0 {
		t.Errorf("units=bytes should be excluded, got %v", got)
	}
	if got := Select(f, []*api.StatsMetric{packets}); len(got) != 1 {
		t.Errorf("units=packets should be included, got %v", got)
	}
}

func TestSelectValueGranularity(t *testing.T) {
	m := makeMetric("hist", api.MetricTypeCounter, 4)
	got := Select(mustParse(t, `indices[0:1]`), []*api.StatsMetric{m})
	if len(got) != 1 {
		t.Fatalf("got %d metrics, want 1", len(got))
	}
	if len(got[0].Values) != 2 || got[0].Values[0].Index != 0 || got[0].Values[1].Index != 1 {
		t.Errorf("got values %v, want indices 0 and 1", got[0].Values)
	}
	if len(m.Values) != 4 {
		t.Error("Select must not modify its input")
	}
}

func TestProtoRoundTrip(t *testing.T) {
	inputs := []string{
		`all(label(exact("units"), exact("packets")), neg(indices[10:20:2]))`,
		`any(type(GAUGE), type(FLAG), singleton)`,
		`label(None, split_any(",", any(part_index(-1), part_value(re("^sn")))))`,
		`neg(block(split_all(":", all(part_value(suffix("in")), part_index(2)))))`,
		`all(domain(exact("sw")), zone(prefix("cmac")), name(sub("pkt")))`,
	}

	for _, input := range inputs {
		f := mustParse(t, input)
		g, err := FromProto(ToProto(f))
		if err != nil {
			t.Errorf("FromProto(ToProto(%s)): %v", input, err)
			continue
		}
		if String(g) != String(f) {
			t.Errorf("proto round trip of %s gave %s", String(f), String(g))
		}
	}

	if f, err := FromProto(nil); f != nil || err != nil {
		t.Errorf("FromProto(nil) = %v, %v; want nil, nil", f, err)
	}
}

func TestFromProtoInvalid(t *testing.T) {
	str := func(s string) *string { return &s }
	tests := []struct {
		name string
		mf   *api.MetricFilter
	}{
		{"empty node", &api.MetricFilter{}},
		{"two variants", &api.MetricFilter{
			AllSet: &api.MetricFilterSet{},
			Match:  &api.MetricMatch{Type: api.MetricTypeCounter},
		}},
		{"empty match", &api.MetricFilter{Match: &api.MetricMatch{}}},
		{"unknown type", &api.MetricFilter{Match: &api.MetricMatch{Type: 42}}},
		{"nil member", &api.MetricFilter{AnySet: &api.MetricFilterSet{Members: []*api.MetricFilter{nil}}}},
		{"two string variants", &api.MetricFilter{Match: &api.MetricMatch{
			Name: &api.StringMatch{Exact: str("a"), Prefix: str("b")},
		}}},
		{"bad regexp", &api.MetricFilter{Match: &api.MetricMatch{
			Name: &api.StringMatch{Regexp: &api.StringRegexp{Pattern: "("}},
		}}},
		{"zero step", &api.MetricFilter{Match: &api.MetricMatch{
			Indices: &api.MatchIndices{Slices: []api.IndexSlice{{Start: 0, End: 3}}},
		}}},
		{"split without part", &api.MetricFilter{Match: &api.MetricMatch{
			Block: &api.StringMatch{Split: &api.StringSplit{Pattern: ","}},
		}}},
	}

	for _, tt := range tests {
		if _, err := FromProto(tt.mf); err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}
}
