package promql

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/prometheus/model/labels"
	"github.com/prometheus/prometheus/tsdb/chunkenc"

	"github.com/esnet/esnet-smartnic-fw/internal/api"
	"github.com/esnet/esnet-smartnic-fw/internal/store"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"cmac0_rx_total_packets", "cmac0_rx_total_packets"},
		{"cmac0.rx/total-packets", "cmac0_rx_total_packets"},
		{"0_queue", "_0_queue"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := SanitizeName(tt.input); got != tt.want {
			t.Errorf("SanitizeName(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestMetricToPromLabels(t *testing.T) {
	m := &api.StatsMetric{
		Scope:       &api.MetricScope{Domain: "hw", Zone: "qdma", Block: "h2c"},
		Type:        api.MetricTypeCounter,
		Name:        "queue_packets",
		NumElements: 4,
	}
	v := &api.MetricValue{Index: 2, U64: 7, Labels: []*api.MetricLabel{
		{Key: "alias", Value: "h2c_q2_pkts"},
		{Key: "zone", Value: "ignored"},
	}}

	got := MetricToPromLabels(m, v)
	want := labels.FromStrings(
		"__name__", "qdma_h2c_queue_packets",
		"alias", "h2c_q2_pkts",
		"block", "h2c",
		"domain", "hw",
		"index", "2",
		"metric", "queue_packets",
		"type", "counter",
		"zone", "qdma",
	)
	if labels.Compare(got, want) != 0 {
		t.Errorf("got %s, want %s", got, want)
	}
	if f := ValueToFloat64(m, v); f != 7 {
		t.Errorf("ValueToFloat64 = %v, want 7", f)
	}

	// Singletons carry no index.
	m.NumElements = 0
	if got := MetricToPromLabels(m, v); got.Has("index") {
		t.Errorf("singleton has index label: %s", got)
	}

	gauge := &api.StatsMetric{Scope: &api.MetricScope{}, Type: api.MetricTypeGauge, Name: "t"}
	if f := ValueToFloat64(gauge, &api.MetricValue{U64: 3, F64: 1.5}); f != 1.5 {
		t.Errorf("gauge ValueToFloat64 = %v, want 1.5", f)
	}
}

func selectAll(t *testing.T, q *StoreQueryable, mint, maxt time.Time, sortSeries bool, matchers ...*labels.Matcher) []storageSeries {
	t.Helper()
	querier, err := q.Querier(mint.UnixMilli(), maxt.UnixMilli())
	if err != nil {
		t.Fatal(err)
	}
	defer querier.Close()

	ss := querier.Select(context.Background(), sortSeries, nil, matchers...)
	var result []storageSeries
	for ss.Next() {
		s := ss.At()
		var samples []sample
		it := s.Iterator(nil)
		for it.Next() == chunkenc.ValFloat {
			ts, v := it.At()
			samples = append(samples, sample{t: ts, v: v})
		}
		result = append(result, storageSeries{labels: s.Labels(), samples: samples})
	}
	if err := ss.Err(); err != nil {
		t.Fatal(err)
	}
	return result
}

type storageSeries struct {
	labels  labels.Labels
	samples []sample
}

func TestSelect(t *testing.T) {
	s := store.NewMemoryStore(1)
	q := &StoreQueryable{Store: s, DevID: 0}
	now := time.Now()

	all := selectAll(t, q, now.Add(-time.Hour), now.Add(time.Hour), false)
	if len(all) != 78 {
		t.Errorf("got %d series, want one per catalog value (78)", len(all))
	}
	for _, series := range all {
		if len(series.samples) == 0 {
			t.Errorf("%s has no samples", series.labels)
		}
	}
}

func TestSelectWithMatcher(t *testing.T) {
	s := store.NewMemoryStore(1)
	q := &StoreQueryable{Store: s, DevID: 0}
	now := time.Now()

	m := labels.MustNewMatcher(labels.MatchEqual, "zone", "qdma")
	got := selectAll(t, q, now.Add(-time.Hour), now.Add(time.Hour), false, m)
	if len(got) != 8 {
		t.Errorf("got %d series, want 8", len(got))
	}

	re := labels.MustNewMatcher(labels.MatchRegexp, "views", ".*sn\\.egr\\.cmac:0:out.*")
	got = selectAll(t, q, now.Add(-time.Hour), now.Add(time.Hour), false, re)
	if len(got) != 2 {
		t.Errorf("got %d series for views regexp, want 2", len(got))
	}
}

func TestSelectTimeRange(t *testing.T) {
	s := store.NewMemoryStore(1)
	q := &StoreQueryable{Store: s, DevID: 0}
	now := time.Now()

	// Nothing existed before the catalog was seeded.
	if got := selectAll(t, q, now.Add(-2*time.Hour), now.Add(-time.Hour), false); len(got) != 0 {
		t.Errorf("got %d series before seeding, want 0", len(got))
	}

	// A value holds from its last update up to maxt.
	m := labels.MustNewMatcher(labels.MatchEqual, labels.MetricName, "cmac0_rx_total_packets")
	maxt := now.Add(10 * time.Minute)
	got := selectAll(t, q, now.Add(-time.Hour), maxt, false, m)
	if len(got) != 1 {
		t.Fatalf("got %d series, want 1", len(got))
	}
	samples := got[0].samples
	if n := len(samples); n < 10 || n > 11 {
		t.Errorf("got %d samples over 10 minutes, want 10 or 11", n)
	}
	if last := samples[len(samples)-1]; last.t != maxt.UnixMilli() || last.v != 1000 {
		t.Errorf("last sample = %+v, want 1000 at maxt", last)
	}
	for i := 1; i < len(samples); i++ {
		if samples[i].t-samples[i-1].t != sampleInterval.Milliseconds() {
			t.Errorf("samples %d and %d are not %s apart", i-1, i, sampleInterval)
		}
	}
}

func TestSelectUnknownDevice(t *testing.T) {
	q := &StoreQueryable{Store: store.NewMemoryStore(1), DevID: 3}
	querier, _ := q.Querier(0, time.Now().UnixMilli())
	ss := querier.Select(context.Background(), false, nil)
	if ss.Next() {
		t.Error("expected no series")
	}
	if ss.Err() == nil {
		t.Error("expected an error for an unknown device")
	}
}

func TestSelectSorted(t *testing.T) {
	s := store.NewMemoryStore(1)
	q := &StoreQueryable{Store: s, DevID: 0}
	now := time.Now()

	got := selectAll(t, q, now.Add(-time.Hour), now.Add(time.Hour), true)
	for i := 1; i < len(got); i++ {
		if labels.Compare(got[i-1].labels, got[i].labels) >= 0 {
			t.Fatalf("series %d and %d out of order: %s, %s", i-1, i, got[i-1].labels, got[i].labels)
		}
	}
}

func TestLabelValues(t *testing.T) {
	s := store.NewMemoryStore(1)
	q := &StoreQueryable{Store: s, DevID: 0}
	querier, _ := q.Querier(0, time.Now().Add(time.Hour).UnixMilli())
	defer querier.Close()

	m := labels.MustNewMatcher(labels.MatchEqual, "zone", "qdma")
	values, _, err := querier.LabelValues(context.Background(), "index", nil, m)
	if err != nil {
		t.Fatal(err)
	}
	if len(values) != 4 || values[0] != "0" || values[3] != "3" {
		t.Errorf("got %v, want [0 1 2 3]", values)
	}
}

func TestLabelNames(t *testing.T) {
	s := store.NewMemoryStore(1)
	q := &StoreQueryable{Store: s, DevID: 0}
	querier, _ := q.Querier(0, time.Now().Add(time.Hour).UnixMilli())
	defer querier.Close()

	m := labels.MustNewMatcher(labels.MatchEqual, "type", "flag")
	names, _, err := querier.LabelNames(context.Background(), nil, m)
	if err != nil {
		t.Fatal(err)
	}
	expected := map[string]bool{"__name__": true, "block": true, "domain": true, "metric": true, "type": true, "zone": true}
	if len(names) != len(expected) {
		t.Errorf("got %v, want %d names", names, len(expected))
	}
	for _, n := range names {
		if !expected[n] {
			t.Errorf("unexpected label name %q", n)
		}
	}
}

func TestSampleIteratorSeek(t *testing.T) {
	samples := []sample{
		{t: 1000, v: 1.0},
		{t: 2000, v: 2.0},
		{t: 3000, v: 3.0},
		{t: 4000, v: 4.0},
		{t: 5000, v: 5.0},
	}
	it := &sampleIterator{samples: samples, idx: -1}

	if vt := it.Seek(3000); vt != chunkenc.ValFloat {
		t.Fatalf("Seek(3000) = %v, want ValFloat", vt)
	}
	ts, v := it.At()
	if ts != 3000 || v != 3.0 {
		t.Errorf("At() = (%d, %f), want (3000, 3.0)", ts, v)
	}

	// Seeking backwards stays put.
	if vt := it.Seek(1000); vt != chunkenc.ValFloat {
		t.Fatalf("Seek(1000) = %v, want ValFloat", vt)
	}
	if ts, _ = it.At(); ts != 3000 {
		t.Errorf("Seek to earlier should not move back, got t=%d", ts)
	}

	if vt := it.Seek(9999); vt != chunkenc.ValNone {
		t.Fatalf("Seek(9999) = %v, want ValNone", vt)
	}
}

func TestSampleIteratorNextAndAt(t *testing.T) {
	samples := []sample{
		{t: 100, v: 1.0},
		{t: 200, v: 2.0},
		{t: 300, v: 3.0},
	}
	it := &sampleIterator{samples: samples, idx: -1}

	for i, want := range samples {
		if vt := it.Next(); vt != chunkenc.ValFloat {
			t.Fatalf("sample %d: Next() = %v, want ValFloat", i, vt)
		}
		ts, v := it.At()
		if ts != want.t || v != want.v {
			t.Errorf("sample %d: At() = (%d, %f), want (%d, %f)", i, ts, v, want.t, want.v)
		}
		if it.AtT() != want.t {
			t.Errorf("sample %d: AtT() = %d, want %d", i, it.AtT(), want.t)
		}
	}

	if vt := it.Next(); vt != chunkenc.ValNone {
		t.Errorf("Next() after exhaustion = %v, want ValNone", vt)
	}
}
