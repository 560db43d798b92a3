package stats

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/facette/natsort"

	"github.com/esnet/esnet-smartnic-fw/internal/api"
)

// Row is one displayable metric value together with its candidate names.
type Row struct {
	Short   string // name, name[index] or alias
	Partial string // block.short
	Long    string // zone.block.short

	Value      string
	LastUpdate string
	Labels     []*api.MetricLabel
}

// Group is a display name and the rows shown under it. A group holds more
// than one row only when even the long name is shared.
type Group struct {
	Name string
	Rows []Row
}

// RowsFromStats expands every metric value into a row. With aliases set, the
// "alias" label replaces the metric name when present.
func RowsFromStats(stats *api.Stats, aliases bool) []Row {
	if stats == nil {
		return nil
	}

	var rows []Row
	for _, m := range stats.Metrics {
		var scope api.MetricScope
		if m.Scope != nil {
			scope = *m.Scope
		}
		for _, v := range m.Values {
			short := ""
			if aliases {
				short, _ = v.Label("alias")
			}
			if short == "" {
				short = m.Name
				if m.IsArray() {
					short += "[" + strconv.FormatUint(uint64(v.Index), 10) + "]"
				}
			}
			partial := scope.Block + "." + short

			rows = append(rows, Row{
				Short:      short,
				Partial:    partial,
				Long:       scope.Zone + "." + partial,
				Value:      formatValue(m.Type, v),
				LastUpdate: formatTimestamp(v),
				Labels:     v.Labels,
			})
		}
	}
	return rows
}

func formatValue(t api.MetricType, v *api.MetricValue) string {
	switch t {
	case api.MetricTypeFlag:
		if v.U64 != 0 {
			return "yes"
		}
		return "no"
	case api.MetricTypeGauge:
		return fmt.Sprintf("%.4g", v.F64)
	}
	return strconv.FormatUint(v.U64, 10)
}

func formatTimestamp(v *api.MetricValue) string {
	ts := v.LastUpdate
	if ts == nil {
		return "0s.0ns"
	}
	return fmt.Sprintf("%ds.%dns", ts.GetSeconds(), ts.GetNanos())
}

// Disambiguate picks a display name for every row: the short name when it is
// unique, else the partial name when that is unique, else the long name. With
// long set, every row uses its long name. Groups are returned in natural
// order of their names.
func Disambiguate(rows []Row, long bool) []Group {
	byShort := groupBy(rows, func(r Row) string { return r.Short })
	byPartial := groupBy(rows, func(r Row) string { return r.Partial })
	byLong := groupBy(rows, func(r Row) string { return r.Long })

	final := byLong
	if !long {
		final = make(map[string][]Row)
		for short, group := range byShort {
			if len(group) == 1 {
				final[short] = group
				continue
			}
			for _, r := range group {
				if p := byPartial[r.Partial]; len(p) == 1 {
					final[r.Partial] = p
				} else {
					final[r.Long] = byLong[r.Long]
				}
			}
		}
	}

	names := make([]string, 0, len(final))
	for name := range final {
		names = append(names, name)
	}
	SortNatural(names)

	groups := make([]Group, 0, len(names))
	for _, name := range names {
		groups = append(groups, Group{Name: name, Rows: final[name]})
	}
	return groups
}

func groupBy(rows []Row, key func(Row) string) map[string][]Row {
	m := make(map[string][]Row)
	for _, r := range rows {
		k := key(r)
		m[k] = append(m[k], r)
	}
	return m
}

// NaturalLess orders strings with digit runs compared by numeric value, so
// "m2" sorts before "m10". Names whose digit runs are numerically equal, such
// as "a1" and "a01", fall back to byte order.
func NaturalLess(a, b string) bool {
	if a == b {
		return false
	}
	ab, ba := natsort.Compare(a, b), natsort.Compare(b, a)
	if ab != ba {
		return ab
	}
	return a < b
}

// SortNatural sorts names in natural order.
func SortNatural(names []string) {
	sort.Slice(names, func(i, j int) bool { return NaturalLess(names[i], names[j]) })
}
