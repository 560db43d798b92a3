package stats

import (
	"fmt"
	"sort"
	"strings"

	"github.com/esnet/esnet-smartnic-fw/internal/api"
)

// HeaderSep separates the per-device sections of the stats display.
var HeaderSep = strings.Repeat("-", 40)

// Format renders the metrics as right-aligned "name: value" rows, optionally
// followed by the last update time and one line per label.
func Format(stats *api.Stats, opts Options) []string {
	groups := Disambiguate(RowsFromStats(stats, opts.Aliases), opts.LongName)
	if len(groups) == 0 {
		return nil
	}

	nameLen, valueLen := 0, 0
	for _, g := range groups {
		nameLen = max(nameLen, len(g.Name))
		for _, r := range g.Rows {
			valueLen = max(valueLen, len(r.Value))
		}
	}

	var lines []string
	for _, g := range groups {
		for _, r := range g.Rows {
			line := fmt.Sprintf("%*s: %-*s", nameLen, g.Name, valueLen, r.Value)
			if opts.LastUpdate {
				line += "    [" + r.LastUpdate + "]"
			}
			lines = append(lines, line)

			if opts.Labels {
				for _, l := range sortedLabels(r.Labels) {
					lines = append(lines, fmt.Sprintf("%*s  <%s=\"%s\">", nameLen, "", l.Key, l.Value))
				}
			}
		}
	}
	return lines
}

// FormatResponse renders one device section with its header.
func FormatResponse(resp *api.StatsResponse, opts Options) []string {
	lines := []string{
		HeaderSep,
		fmt.Sprintf("Device ID: %d", resp.DevID),
		HeaderSep,
	}
	return append(lines, Format(resp.Stats, opts)...)
}

// sortedLabels orders labels by key; for repeated keys only the last value is kept.
func sortedLabels(labels []*api.MetricLabel) []*api.MetricLabel {
	byKey := make(map[string]*api.MetricLabel, len(labels))
	for _, l := range labels {
		byKey[l.Key] = l
	}
	out := make([]*api.MetricLabel, 0, len(byKey))
	for _, l := range byKey {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
