package promql

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/prometheus/model/histogram"
	"github.com/prometheus/prometheus/model/labels"
	"github.com/prometheus/prometheus/storage"
	"github.com/prometheus/prometheus/tsdb/chunkenc"
	"github.com/prometheus/prometheus/util/annotations"

	"github.com/esnet/esnet-smartnic-fw/internal/api"
	"github.com/esnet/esnet-smartnic-fw/internal/store"
)

const (
	// sampleInterval spaces the synthetic samples of a series. It must stay
	// below the engine lookback delta.
	sampleInterval = time.Minute

	maxSamplesPerSeries = 11000
)

// SanitizeName maps s onto the Prometheus name charset. Invalid characters
// become underscores and a leading digit gets an underscore prefix.
//
// Example: "cmac0.rx/total-packets" → "cmac0_rx_total_packets"
func SanitizeName(s string) string {
	out := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
	if out != "" && out[0] >= '0' && out[0] <= '9' {
		out = "_" + out
	}
	return out
}

// SeriesName returns the __name__ of a catalog metric.
//
// Example: zone "qdma", block "h2c", name "queue_packets" → "qdma_h2c_queue_packets"
func SeriesName(m *api.StatsMetric) string {
	k := store.KeyOf(m)
	return SanitizeName(k.Zone + "_" + k.Block + "_" + k.Name)
}

// MetricToPromLabels converts one value of a catalog metric to Prometheus labels.
//
// Mapping:
//   - zone, block, name → __name__ (sanitized)
//   - scope             → domain, zone, block
//   - name              → metric
//   - type              → type
//   - value index       → index (array metrics only)
//   - value labels      → same key (sanitized)
func MetricToPromLabels(m *api.StatsMetric, v *api.MetricValue) labels.Labels {
	b := labels.NewBuilder(labels.EmptyLabels())

	// Value labels first so that the fixed labels win on collision.
	for _, l := range v.Labels {
		if name := SanitizeName(l.Key); name != "" {
			b.Set(name, l.Value)
		}
	}

	k := store.KeyOf(m)
	b.Set(labels.MetricName, SeriesName(m))
	b.Set("domain", k.Domain)
	b.Set("zone", k.Zone)
	b.Set("block", k.Block)
	b.Set("metric", k.Name)
	b.Set("type", m.Type.String())
	if m.IsArray() {
		b.Set("index", strconv.FormatUint(uint64(v.Index), 10))
	}

	return b.Labels()
}

// ValueToFloat64 returns the numeric value of a metric value.
func ValueToFloat64(m *api.StatsMetric, v *api.MetricValue) float64 {
	if m.Type == api.MetricTypeGauge {
		return v.F64
	}
	return float64(v.U64)
}

// StoreQueryable implements storage.Queryable backed by our Store, scoped to
// one device.
type StoreQueryable struct {
	Store store.Store
	DevID int
}

func (q *StoreQueryable) Querier(mint, maxt int64) (storage.Querier, error) {
	return &storeQuerier{
		store: q.Store,
		devID: q.DevID,
		mint:  mint,
		maxt:  maxt,
	}, nil
}

type storeQuerier struct {
	store store.Store
	devID int
	mint  int64 // milliseconds since epoch
	maxt  int64 // milliseconds since epoch
}

// series is one catalog value with its labels.
type series struct {
	labels     labels.Labels
	value      float64
	lastUpdate int64 // milliseconds since epoch
}

func (q *storeQuerier) catalog(ctx context.Context, matchers []*labels.Matcher) ([]series, error) {
	metrics, err := q.store.Snapshot(ctx, q.devID)
	if err != nil {
		return nil, err
	}

	var result []series
	for _, m := range metrics {
		for _, v := range m.Values {
			lset := MetricToPromLabels(m, v)
			if !matchAll(lset, matchers) {
				continue
			}
			var lastUpdate int64
			if v.LastUpdate != nil {
				lastUpdate = v.LastUpdate.AsTime().UnixMilli()
			}
			result = append(result, series{labels: lset, value: ValueToFloat64(m, v), lastUpdate: lastUpdate})
		}
	}
	return result, nil
}

// Select returns every matching catalog value. The catalog keeps no history,
// so a value is reported as constant from its last update to maxt.
func (q *storeQuerier) Select(ctx context.Context, sortSeries bool, _ *storage.SelectHints, matchers ...*labels.Matcher) storage.SeriesSet {
	all, err := q.catalog(ctx, matchers)
	if err != nil {
		return storage.ErrSeriesSet(err)
	}

	var result []storage.Series
	for _, s := range all {
		samples := q.samples(s)
		if len(samples) == 0 {
			continue
		}
		result = append(result, &storeSeries{
			labels:  s.labels,
			samples: samples,
		})
	}

	if sortSeries {
		sort.Slice(result, func(i, j int) bool {
			return labels.Compare(result[i].Labels(), result[j].Labels()) < 0
		})
	}

	return newSeriesSet(result)
}

// samples spaces samples sampleInterval apart, ending at maxt and starting no
// earlier than the last update.
func (q *storeQuerier) samples(s series) []sample {
	start := q.mint
	if s.lastUpdate > start {
		start = s.lastUpdate
	}
	if start > q.maxt {
		return nil
	}

	step := sampleInterval.Milliseconds()
	n := int((q.maxt-start)/step) + 1
	if n > maxSamplesPerSeries {
		n = maxSamplesPerSeries
	}
	samples := make([]sample, n)
	for i := range samples {
		samples[n-1-i] = sample{t: q.maxt - int64(i)*step, v: s.value}
	}
	return samples
}

func (q *storeQuerier) LabelValues(ctx context.Context, name string, _ *storage.LabelHints, matchers ...*labels.Matcher) ([]string, annotations.Annotations, error) {
	all, err := q.catalog(ctx, matchers)
	if err != nil {
		return nil, nil, err
	}

	seen := map[string]struct{}{}
	for _, s := range all {
		if v := s.labels.Get(name); v != "" {
			seen[v] = struct{}{}
		}
	}

	values := make([]string, 0, len(seen))
	for v := range seen {
		values = append(values, v)
	}
	sort.Strings(values)
	return values, nil, nil
}

func (q *storeQuerier) LabelNames(ctx context.Context, _ *storage.LabelHints, matchers ...*labels.Matcher) ([]string, annotations.Annotations, error) {
	all, err := q.catalog(ctx, matchers)
	if err != nil {
		return nil, nil, err
	}

	seen := map[string]struct{}{}
	for _, s := range all {
		s.labels.Range(func(l labels.Label) {
			seen[l.Name] = struct{}{}
		})
	}

	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil, nil
}

func (q *storeQuerier) Close() error {
	return nil
}

func matchAll(lset labels.Labels, matchers []*labels.Matcher) bool {
	for _, m := range matchers {
		if !m.Matches(lset.Get(m.Name)) {
			return false
		}
	}
	return true
}

// --- SeriesSet ---

type storeSeriesSet struct {
	series []storage.Series
	idx    int
}

func newSeriesSet(series []storage.Series) storage.SeriesSet {
	return &storeSeriesSet{series: series, idx: -1}
}

func (s *storeSeriesSet) Next() bool {
	s.idx++
	return s.idx < len(s.series)
}

func (s *storeSeriesSet) At() storage.Series {
	return s.series[s.idx]
}

func (s *storeSeriesSet) Err() error {
	return nil
}

func (s *storeSeriesSet) Warnings() annotations.Annotations {
	return nil
}

// --- Series ---

type sample struct {
	t int64
	v float64
}

type storeSeries struct {
	labels  labels.Labels
	samples []sample
}

func (s *storeSeries) Labels() labels.Labels {
	return s.labels
}

func (s *storeSeries) Iterator(_ chunkenc.Iterator) chunkenc.Iterator {
	return &sampleIterator{samples: s.samples, idx: -1}
}

// --- Sample Iterator ---

type sampleIterator struct {
	samples []sample
	idx     int
}

func (it *sampleIterator) Next() chunkenc.ValueType {
	it.idx++
	if it.idx >= len(it.samples) {
		return chunkenc.ValNone
	}
	return chunkenc.ValFloat
}

func (it *sampleIterator) Seek(t int64) chunkenc.ValueType {
	if it.idx >= 0 && it.idx < len(it.samples) && it.samples[it.idx].t >= t {
		return chunkenc.ValFloat
	}
	start := it.idx + 1
	if start < 0 {
		start = 0
	}
	for i := start; i < len(it.samples); i++ {
		if it.samples[i].t >= t {
			it.idx = i
			return chunkenc.ValFloat
		}
	}
	it.idx = len(it.samples)
	return chunkenc.ValNone
}

func (it *sampleIterator) At() (int64, float64) {
	s := it.samples[it.idx]
	return s.t, s.v
}

func (it *sampleIterator) AtHistogram(_ *histogram.Histogram) (int64, *histogram.Histogram) {
	return 0, nil
}

func (it *sampleIterator) AtFloatHistogram(_ *histogram.FloatHistogram) (int64, *histogram.FloatHistogram) {
	return 0, nil
}

func (it *sampleIterator) AtT() int64 {
	return it.samples[it.idx].t
}

func (it *sampleIterator) Err() error {
	return nil
}
