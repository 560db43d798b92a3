// Package stats builds statistics requests for the SmartNIC config agent and
// renders the returned metrics for a terminal.
package stats

import (
	"github.com/esnet/esnet-smartnic-fw/internal/api"
	"github.com/esnet/esnet-smartnic-fw/internal/filter"
)

// Options control which metrics are requested and how they are displayed.
type Options struct {
	// Filters are ANDed together with the type and units restrictions.
	Filters []filter.Filter
	// MetricTypes restricts metrics to any of the given types.
	MetricTypes []api.MetricType
	// Units restricts metrics to any of the given "units" label values.
	Units []string

	Zeroes     bool
	Labels     bool
	Aliases    bool
	LongName   bool
	LastUpdate bool
}

// RootFilter combines the custom filters and the type and units restrictions
// into a single AllSet.
func RootFilter(opts Options) *filter.AllSet {
	root := filter.All()
	for _, f := range opts.Filters {
		if f != nil {
			root.Members = append(root.Members, f)
		}
	}

	if len(opts.MetricTypes) > 0 {
		types := filter.Any()
		for _, t := range opts.MetricTypes {
			types.Members = append(types.Members, filter.MatchType(t))
		}
		root.Members = append(root.Members, types)
	}

	if len(opts.Units) > 0 {
		units := filter.Any()
		for _, u := range opts.Units {
			units.Members = append(units.Members, filter.MatchLabel(&filter.Exact{Value: "units"}, &filter.Exact{Value: u}))
		}
		root.Members = append(root.Members, units)
	}
	return root
}

// NewRequest builds a stats request for the given device. A device ID of -1
// addresses all devices.
func NewRequest(devID int32, opts Options) *api.StatsRequest {
	return &api.StatsRequest{
		DevID: devID,
		Filters: &api.StatsFilters{
			NonZero:      !opts.Zeroes,
			WithLabels:   opts.Labels || opts.Aliases,
			MetricFilter: filter.ToProto(RootFilter(opts)),
		},
	}
}
