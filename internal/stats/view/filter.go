// Package view selects datapath counters by their "views" label and pivots
// them into a port by direction table.
package view

import (
	"errors"
	"fmt"
	"strings"

	"github.com/grafana/regexp"

	"github.com/esnet/esnet-smartnic-fw/internal/api"
	"github.com/esnet/esnet-smartnic-fw/internal/filter"
	"github.com/esnet/esnet-smartnic-fw/internal/stats"
)

const (
	numFields = 3
	fieldSep  = ":"
	fieldGlob = "[^" + fieldSep + "]*"

	// LabelKey is the label listing the comma separated view specifications
	// of a counter.
	LabelKey = "views"
)

var ErrEmptyFilter = errors.New("empty view specification filter")

// Filter matches view specifications of the form <name>:<port>:<direction>.
type Filter struct {
	Spec    string
	Pattern string
	re      *regexp.Regexp

	// remote is the same pattern as sent to the agent.
	remote *filter.Regexp
}

// ParseFilter compiles a view specification filter. Within each field "." is
// literal and "*" matches any run of characters other than ":". Missing
// trailing fields match anything.
func ParseFilter(spec string) (*Filter, error) {
	fields := strings.Split(spec, fieldSep)
	if len(fields) == 1 && fields[0] == "" {
		return nil, ErrEmptyFilter
	}
	if len(fields) > numFields {
		return nil, fmt.Errorf("too many fields in view specification filter %q, expected no more than %d", spec, numFields)
	}

	for i, f := range fields {
		fields[i] = strings.ReplaceAll(strings.ReplaceAll(f, ".", `\.`), "*", fieldGlob)
	}
	for len(fields) < numFields {
		fields = append(fields, fieldGlob)
	}

	pattern := "^" + strings.Join(fields, fieldSep) + "$"
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("view specification filter %q: %w", spec, err)
	}
	remote, err := filter.NewRegexp(pattern)
	if err != nil {
		return nil, fmt.Errorf("view specification filter %q: %w", spec, err)
	}
	return &Filter{Spec: spec, Pattern: pattern, re: re, remote: remote}, nil
}

// ParseFilters compiles every spec, failing on the first invalid one.
func ParseFilters(specs []string) ([]*Filter, error) {
	out := make([]*Filter, 0, len(specs))
	for _, spec := range specs {
		f, err := ParseFilter(spec)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func (f *Filter) Match(viewSpec string) bool {
	return f.re.MatchString(viewSpec)
}

// LabelFilter matches values whose views label holds at least one
// specification accepted by any of the filters.
func LabelFilter(filters []*Filter) filter.Filter {
	parts := &filter.PartAnySet{}
	for _, f := range filters {
		parts.Members = append(parts.Members, &filter.PartValue{Match: f.remote})
	}
	return filter.MatchLabel(&filter.Exact{Value: LabelKey}, filter.MustSplit(",", filter.CombineAny, parts))
}

// NewRequest builds the stats request for a view display: packet counters
// (and byte counters when bytes is set) carrying a matching view, with labels.
func NewRequest(devID int32, filters []*Filter, zeroes, bytes bool) *api.StatsRequest {
	units := []string{"packets"}
	if bytes {
		units = append(units, "bytes")
	}
	return stats.NewRequest(devID, stats.Options{
		Filters:     []filter.Filter{LabelFilter(filters)},
		MetricTypes: []api.MetricType{api.MetricTypeCounter},
		Units:       units,
		Zeroes:      zeroes,
		Labels:      true,
	})
}
