// Package api holds the sn_cfg.v1 statistics messages exchanged between the
// sn-cfg client and the SmartNIC config agent.
//
// The field names follow the snake_case protobuf names of the agent's schema.
// Oneof groups are modelled as optional pointer fields; at most one of them is
// set in a well-formed message.
package api

import (
	"google.golang.org/protobuf/types/known/timestamppb"
)

// MetricType is the kind of a statistics metric.
type MetricType int32

const (
	MetricTypeUnknown MetricType = iota
	MetricTypeCounter
	MetricTypeGauge
	MetricTypeFlag
)

var metricTypeNames = map[MetricType]string{
	MetricTypeCounter: "counter",
	MetricTypeGauge:   "gauge",
	MetricTypeFlag:    "flag",
}

func (t MetricType) String() string {
	if s, ok := metricTypeNames[t]; ok {
		return s
	}
	return "unknown"
}

// ParseMetricType maps a lower case type name ("counter", "gauge", "flag") to its enum.
func ParseMetricType(s string) (MetricType, bool) {
	for t, name := range metricTypeNames {
		if name == s {
			return t, true
		}
	}
	return MetricTypeUnknown, false
}

// MetricTypeNames returns the lower case names of all known metric types.
func MetricTypeNames() []string {
	return []string{"counter", "flag", "gauge"}
}

// StatsRequest selects the devices and metrics for GetStats and ClearStats.
// DevID -1 addresses all devices.
type StatsRequest struct {
	DevID   int32         `json:"dev_id"`
	Filters *StatsFilters `json:"filters,omitempty"`
}

type StatsFilters struct {
	NonZero      bool          `json:"non_zero,omitempty"`
	WithLabels   bool          `json:"with_labels,omitempty"`
	MetricFilter *MetricFilter `json:"metric_filter,omitempty"`
}

// MetricFilter is the wire form of a filter tree node.
type MetricFilter struct {
	Negated bool             `json:"negated,omitempty"`
	AllSet  *MetricFilterSet `json:"all_set,omitempty"`
	AnySet  *MetricFilterSet `json:"any_set,omitempty"`
	Match   *MetricMatch     `json:"match,omitempty"`
}

type MetricFilterSet struct {
	Members []*MetricFilter `json:"members"`
}

// MetricMatch is a leaf predicate. Type is set when non-zero.
type MetricMatch struct {
	Type    MetricType    `json:"type,omitempty"`
	Domain  *StringMatch  `json:"domain,omitempty"`
	Zone    *StringMatch  `json:"zone,omitempty"`
	Block   *StringMatch  `json:"block,omitempty"`
	Name    *StringMatch  `json:"name,omitempty"`
	Indices *MatchIndices `json:"indices,omitempty"`
	Label   *MatchLabel   `json:"label,omitempty"`
}

type MatchIndices struct {
	Slices []IndexSlice `json:"slices"`
}

type IndexSlice struct {
	Start int32 `json:"start"`
	End   int32 `json:"end"`
	Step  int32 `json:"step"`
}

// MatchLabel matches a label pair. A nil Key or Value is a wildcard.
type MatchLabel struct {
	Key   *StringMatch `json:"key,omitempty"`
	Value *StringMatch `json:"value,omitempty"`
}

type StringMatch struct {
	Exact     *string       `json:"exact,omitempty"`
	Prefix    *string       `json:"prefix,omitempty"`
	Suffix    *string       `json:"suffix,omitempty"`
	Substring *string       `json:"substring,omitempty"`
	Regexp    *StringRegexp `json:"regexp,omitempty"`
	Split     *StringSplit  `json:"split,omitempty"`
}

type StringRegexp struct {
	Pattern string `json:"pattern"`
}

// StringSplit splits a string on Pattern and applies Part to every fragment.
// Any selects OR as the reduction, otherwise AND.
type StringSplit struct {
	Pattern string     `json:"pattern"`
	Any     bool       `json:"any,omitempty"`
	Part    *SplitPart `json:"part,omitempty"`
}

type SplitPart struct {
	AnySet *SplitPartSet   `json:"any_set,omitempty"`
	AllSet *SplitPartSet   `json:"all_set,omitempty"`
	Match  *SplitPartMatch `json:"match,omitempty"`
}

type SplitPartSet struct {
	Members []*SplitPart `json:"members"`
}

type SplitPartMatch struct {
	Value *StringMatch `json:"value,omitempty"`
	Index *int32       `json:"index,omitempty"`
}

type StatsResponse struct {
	ErrorCode ErrorCode `json:"error_code"`
	DevID     int32     `json:"dev_id"`
	Stats     *Stats    `json:"stats,omitempty"`
}

type Stats struct {
	Metrics []*StatsMetric `json:"metrics,omitempty"`
}

type MetricScope struct {
	Domain string `json:"domain"`
	Zone   string `json:"zone"`
	Block  string `json:"block"`
}

// StatsMetric is one named metric. NumElements is zero for singleton metrics.
type StatsMetric struct {
	Scope       *MetricScope   `json:"scope"`
	Type        MetricType     `json:"type"`
	Name        string         `json:"name"`
	NumElements uint32         `json:"num_elements,omitempty"`
	Values      []*MetricValue `json:"values,omitempty"`
}

func (m *StatsMetric) IsArray() bool {
	return m.NumElements > 0
}

type MetricValue struct {
	Index      uint32                 `json:"index,omitempty"`
	U64        uint64                 `json:"u64,omitempty"`
	F64        float64                `json:"f64,omitempty"`
	Labels     []*MetricLabel         `json:"labels,omitempty"`
	LastUpdate *timestamppb.Timestamp `json:"last_update,omitempty"`
}

// IsZero reports whether the value holds neither an integer nor a float.
func (v *MetricValue) IsZero() bool {
	return v.U64 == 0 && v.F64 == 0
}

// Label returns the value of the first label with the given key.
func (v *MetricValue) Label(key string) (string, bool) {
	for _, l := range v.Labels {
		if l.Key == key {
			return l.Value, true
		}
	}
	return "", false
}

type MetricLabel struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}
