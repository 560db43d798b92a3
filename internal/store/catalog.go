package store

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/esnet/esnet-smartnic-fw/internal/api"
)

const (
	numPorts       = 2
	numQueues      = 4
	numHistBuckets = 8
)

// seedCatalog builds the initial metrics of one device. Values are derived
// from the device ID so that devices can be told apart.
func seedCatalog(devID int, now time.Time) []*api.StatsMetric {
	b := &catalogBuilder{devID: devID, ts: timestamppb.New(now)}

	for p := 0; p < numPorts; p++ {
		zone := fmt.Sprintf("cmac%d", p)
		base := uint64(1000*(p+1) + devID)

		for _, dir := range []string{"rx", "tx"} {
			b.counter("hw", zone, dir, "total_packets", base, "units", "packets")
			b.counter("hw", zone, dir, "total_bytes", base*64, "units", "bytes")
			b.counter("hw", zone, dir, "bad_fcs", 0, "units", "packets")

			hist := make([]uint64, numHistBuckets)
			for i := range hist {
				hist[i] = base >> uint(i)
			}
			b.counterArray("hw", zone, dir, "packet_size_hist", hist, nil, "units", "packets")
		}

		linkUp := uint64(0)
		if p == 0 {
			linkUp = 1
		}
		b.flag("hw", zone, "status", "link_up", linkUp)
		b.flag("hw", zone, "status", "rx_aligned", linkUp)

		// Datapath probes along the ingress and egress paths of each port.
		probes := []struct {
			block string
			views string
		}{
			{fmt.Sprintf("probe_from_cmac_%d", p), fmt.Sprintf("sn.igr.cmac:%d:in", p)},
			{fmt.Sprintf("probe_to_app%d_igr", p), fmt.Sprintf("sn.igr.app:%d:out", p)},
			{fmt.Sprintf("probe_from_app%d_egr", p), fmt.Sprintf("sn.egr.app:%d:in", p)},
			{fmt.Sprintf("probe_to_cmac_%d", p), fmt.Sprintf("sn.egr.cmac:%d:out,sn.egr:%d:out", p, p)},
			{fmt.Sprintf("drops_ovfl_to_cmac_%d", p), fmt.Sprintf("sn.egr.cmac.drops:%d:out", p)},
		}
		for i, probe := range probes {
			pkts := base - uint64(i)
			if i == len(probes)-1 {
				pkts = 0
			}
			b.counter("sw", "smartnic", probe.block, "pkt_count", pkts, "units", "packets", "views", probe.views)
			b.counter("sw", "smartnic", probe.block, "byte_count", pkts*64, "units", "bytes", "views", probe.views)
		}
	}

	for _, dir := range []string{"h2c", "c2h"} {
		pkts := make([]uint64, numQueues)
		aliases := make([]string, numQueues)
		for q := range pkts {
			if q < numQueues-1 {
				pkts[q] = uint64(100*(q+1) + devID)
			}
			aliases[q] = fmt.Sprintf("%s_q%d_pkts", dir, q)
		}
		b.counterArray("hw", "qdma", dir, "queue_packets", pkts, aliases, "units", "packets")
	}

	b.gauge("hw", "sysmon0", "sensors", "temperature", 45.5+float64(devID), "units", "celsius")
	b.gauge("hw", "sysmon0", "sensors", "vccint", 0.85, "units", "volts")

	return b.metrics
}

type catalogBuilder struct {
	devID   int
	ts      *timestamppb.Timestamp
	metrics []*api.StatsMetric
}

func (b *catalogBuilder) add(domain, zone, block, name string, typ api.MetricType, numElements int) *api.StatsMetric {
	m := &api.StatsMetric{
		Scope:       &api.MetricScope{Domain: domain, Zone: zone, Block: block},
		Type:        typ,
		Name:        name,
		NumElements: uint32(numElements),
	}
	b.metrics = append(b.metrics, m)
	return m
}

func (b *catalogBuilder) value(index int, labels []string) *api.MetricValue {
	v := &api.MetricValue{Index: uint32(index), LastUpdate: b.ts}
	for i := 0; i+1 < len(labels); i += 2 {
		v.Labels = append(v.Labels, &api.MetricLabel{Key: labels[i], Value: labels[i+1]})
	}
	return v
}

func (b *catalogBuilder) counter(domain, zone, block, name string, u64 uint64, labels ...string) {
	m := b.add(domain, zone, block, name, api.MetricTypeCounter, 0)
	v := b.value(0, labels)
	v.U64 = u64
	m.Values = []*api.MetricValue{v}
}

func (b *catalogBuilder) counterArray(domain, zone, block, name string, u64s []uint64, aliases []string, labels ...string) {
	m := b.add(domain, zone, block, name, api.MetricTypeCounter, len(u64s))
	for i, u := range u64s {
		ls := labels
		if aliases != nil {
			ls = append([]string{"alias", aliases[i]}, labels...)
		}
		v := b.value(i, ls)
		v.U64 = u
		m.Values = append(m.Values, v)
	}
}

func (b *catalogBuilder) flag(domain, zone, block, name string, u64 uint64, labels ...string) {
	m := b.add(domain, zone, block, name, api.MetricTypeFlag, 0)
	v := b.value(0, labels)
	v.U64 = u64
	m.Values = []*api.MetricValue{v}
}

func (b *catalogBuilder) gauge(domain, zone, block, name string, f64 float64, labels ...string) {
	m := b.add(domain, zone, block, name, api.MetricTypeGauge, 0)
	v := b.value(0, labels)
	v.F64 = f64
	m.Values = []*api.MetricValue{v}
}
