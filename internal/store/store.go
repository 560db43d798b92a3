package store

import (
	"context"

	"github.com/esnet/esnet-smartnic-fw/internal/api"
	"github.com/esnet/esnet-smartnic-fw/internal/filter"
)

// Store defines the metric catalog interface of the SmartNIC stats emulator.
// Devices are numbered from 0 to NumDevices()-1.
type Store interface {
	NumDevices() int

	// Stats
	GetStats(ctx context.Context, devID int, q Query) ([]*api.StatsMetric, error)
	ClearStats(ctx context.Context, devID int) error
	SetValue(ctx context.Context, devID int, key Key, index uint32, value Value) error

	// Snapshot returns every metric of a device, unfiltered and with labels.
	Snapshot(ctx context.Context, devID int) ([]*api.StatsMetric, error)

	// Admin
	Reset()

	// State returns summary statistics for the admin API.
	State() map[string]interface{}
}

// Query selects metric values. Values are filtered independently, and a
// metric with no remaining values is left out.
type Query struct {
	Filter     filter.Filter
	NonZero    bool
	WithLabels bool
}

// Key names a metric within a device catalog.
type Key struct {
	Domain string
	Zone   string
	Block  string
	Name   string
}

func KeyOf(m *api.StatsMetric) Key {
	k := Key{Name: m.Name}
	if m.Scope != nil {
		k.Domain, k.Zone, k.Block = m.Scope.Domain, m.Scope.Zone, m.Scope.Block
	}
	return k
}

func (k Key) String() string {
	return k.Domain + "." + k.Zone + "." + k.Block + "." + k.Name
}

// Value is a new metric value. Gauges take F64, counters and flags take U64.
type Value struct {
	U64 uint64
	F64 float64
}
