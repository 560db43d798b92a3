package store

import (
	"context"
	"strconv"
	"sync"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/esnet/esnet-smartnic-fw/internal/api"
	"github.com/esnet/esnet-smartnic-fw/internal/filter"
)

// device holds the catalog of one SmartNIC.
type device struct {
	metrics []*api.StatsMetric      // catalog order
	byKey   map[Key]*api.StatsMetric // same metrics, indexed
}

func newDevice(devID int, now time.Time) *device {
	d := &device{
		metrics: seedCatalog(devID, now),
		byKey:   make(map[Key]*api.StatsMetric),
	}
	for _, m := range d.metrics {
		d.byKey[KeyOf(m)] = m
	}
	return d
}

// MemoryStore implements Store with per-device in-memory catalogs.
type MemoryStore struct {
	mu      sync.RWMutex
	devices []*device
	now     func() time.Time
}

func NewMemoryStore(numDevices int) *MemoryStore {
	s := &MemoryStore{now: time.Now}
	s.seed(numDevices)
	return s
}

func (s *MemoryStore) seed(numDevices int) {
	now := s.now()
	s.devices = make([]*device, numDevices)
	for i := range s.devices {
		s.devices[i] = newDevice(i, now)
	}
}

func (s *MemoryStore) NumDevices() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.devices)
}

func (s *MemoryStore) device(devID int) (*device, error) {
	if devID < 0 || devID >= len(s.devices) {
		return nil, status.Errorf(codes.NotFound, "device %d not found", devID)
	}
	return s.devices[devID], nil
}

func (s *MemoryStore) GetStats(_ context.Context, devID int, q Query) ([]*api.StatsMetric, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, err := s.device(devID)
	if err != nil {
		return nil, err
	}

	var result []*api.StatsMetric
	for _, m := range d.metrics {
		var values []*api.MetricValue
		for _, v := range m.Values {
			if q.NonZero && v.IsZero() {
				continue
			}
			// Labels take part in matching even when they are not returned.
			if !filter.Evaluate(q.Filter, m, v) {
				continue
			}
			values = append(values, cloneValue(v, q.WithLabels))
		}
		if len(values) == 0 {
			continue
		}
		c := cloneMetric(m)
		c.Values = values
		result = append(result, c)
	}
	return result, nil
}

// ClearStats zeroes every counter of a device. Gauges and flags reflect
// current state and are left untouched.
func (s *MemoryStore) ClearStats(_ context.Context, devID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.device(devID)
	if err != nil {
		return err
	}

	ts := timestamppb.New(s.now())
	for _, m := range d.metrics {
		if m.Type != api.MetricTypeCounter {
			continue
		}
		for _, v := range m.Values {
			v.U64 = 0
			v.LastUpdate = ts
		}
	}
	return nil
}

func (s *MemoryStore) SetValue(_ context.Context, devID int, key Key, index uint32, value Value) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.device(devID)
	if err != nil {
		return err
	}
	m, ok := d.byKey[key]
	if !ok {
		return status.Errorf(codes.NotFound, "metric %q not found on device %d", key, devID)
	}
	if int(index) >= len(m.Values) {
		return status.Errorf(codes.OutOfRange, "metric %q has %d values, index %d out of range", key, len(m.Values), index)
	}

	v := m.Values[index]
	switch m.Type {
	case api.MetricTypeGauge:
		v.F64 = value.F64
	case api.MetricTypeFlag:
		v.U64 = 0
		if value.U64 != 0 {
			v.U64 = 1
		}
	default:
		v.U64 = value.U64
	}
	v.LastUpdate = timestamppb.New(s.now())
	return nil
}

func (s *MemoryStore) Snapshot(_ context.Context, devID int) ([]*api.StatsMetric, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, err := s.device(devID)
	if err != nil {
		return nil, err
	}

	result := make([]*api.StatsMetric, 0, len(d.metrics))
	for _, m := range d.metrics {
		c := cloneMetric(m)
		for _, v := range m.Values {
			c.Values = append(c.Values, cloneValue(v, true))
		}
		result = append(result, c)
	}
	return result, nil
}

// Reset restores the seeded catalog of every device.
func (s *MemoryStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seed(len(s.devices))
}

func (s *MemoryStore) State() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	deviceStats := make(map[string]interface{})
	for i, d := range s.devices {
		values, nonZero := 0, 0
		for _, m := range d.metrics {
			values += len(m.Values)
			for _, v := range m.Values {
				if !v.IsZero() {
					nonZero++
				}
			}
		}
		deviceStats[strconv.Itoa(i)] = map[string]interface{}{
			"metrics":         len(d.metrics),
			"values":          values,
			"non_zero_values": nonZero,
		}
	}

	return map[string]interface{}{
		"num_devices": len(s.devices),
		"devices":     deviceStats,
	}
}

func cloneMetric(m *api.StatsMetric) *api.StatsMetric {
	c := &api.StatsMetric{
		Type:        m.Type,
		Name:        m.Name,
		NumElements: m.NumElements,
	}
	if m.Scope != nil {
		scope := *m.Scope
		c.Scope = &scope
	}
	return c
}

func cloneValue(v *api.MetricValue, withLabels bool) *api.MetricValue {
	c := &api.MetricValue{
		Index: v.Index,
		U64:   v.U64,
		F64:   v.F64,
	}
	if v.LastUpdate != nil {
		c.LastUpdate = proto.Clone(v.LastUpdate).(*timestamppb.Timestamp)
	}
	if withLabels {
		c.Labels = make([]*api.MetricLabel, 0, len(v.Labels))
		for _, l := range v.Labels {
			c.Labels = append(c.Labels, &api.MetricLabel{Key: l.Key, Value: l.Value})
		}
	}
	return c
}
