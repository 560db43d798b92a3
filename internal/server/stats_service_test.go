package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/esnet/esnet-smartnic-fw/internal/api"
	"github.com/esnet/esnet-smartnic-fw/internal/filter"
	"github.com/esnet/esnet-smartnic-fw/internal/stats"
	"github.com/esnet/esnet-smartnic-fw/internal/store"
)

type testEnv struct {
	store   *store.MemoryStore
	metrics *Metrics
	client  api.SmartnicConfigClient
}

func startServer(t *testing.T, numDevices int) *testEnv {
	t.Helper()

	s := store.NewMemoryStore(numDevices)
	m := NewMetrics(prometheus.NewRegistry())
	grpcServer := grpc.NewServer(m.ServerOptions()...)
	api.RegisterSmartnicConfigServer(grpcServer, NewStatsServer(s, slog.Default()))

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	go grpcServer.Serve(lis)
	t.Cleanup(grpcServer.Stop)

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })

	return &testEnv{store: s, metrics: m, client: api.NewSmartnicConfigClient(conn)}
}

func request(t *testing.T, devID int32, expr string, nonZero bool) *api.StatsRequest {
	t.Helper()
	req := &api.StatsRequest{DevID: devID, Filters: &api.StatsFilters{NonZero: nonZero}}
	if expr != "" {
		f, err := filter.Parse(expr)
		if err != nil {
			t.Fatal(err)
		}
		req.Filters.MetricFilter = filter.ToProto(f)
	}
	return req
}

func TestGetStatsAllDevices(t *testing.T) {
	env := startServer(t, 2)
	ctx := context.Background()

	resps, err := stats.Get(ctx, env.client, request(t, -1, `type(GAUGE)`, false))
	if err != nil {
		t.Fatal(err)
	}
	if len(resps) != 2 {
		t.Fatalf("got %d responses, want 2", len(resps))
	}
	for i, resp := range resps {
		if resp.DevID != int32(i) {
			t.Errorf("response %d: dev_id %d", i, resp.DevID)
		}
		if n := len(resp.Stats.Metrics); n != 2 {
			t.Errorf("device %d: got %d gauges, want 2", i, n)
		}
		for _, m := range resp.Stats.Metrics {
			if m.Type != api.MetricTypeGauge {
				t.Errorf("device %d: unexpected %s metric %s", i, m.Type, m.Name)
			}
			if len(m.Values[0].Labels) != 0 {
				t.Errorf("device %d: labels returned without with_labels", i)
			}
			if m.Values[0].LastUpdate == nil {
				t.Errorf("device %d: missing last_update", i)
			}
		}
	}

	if got := testutil.ToFloat64(env.metrics.requestsTotal.WithLabelValues("GetStats", "OK")); got != 1 {
		t.Errorf("requests_total{GetStats,OK} = %v, want 1", got)
	}
}

func TestGetStatsWithLabels(t *testing.T) {
	env := startServer(t, 1)

	req := request(t, 0, `all(zone(exact("qdma")), block(exact("h2c")))`, true)
	req.Filters.WithLabels = true
	resps, err := stats.Get(context.Background(), env.client, req)
	if err != nil {
		t.Fatal(err)
	}
	metrics := resps[0].Stats.Metrics
	if len(metrics) != 1 || len(metrics[0].Values) != 3 {
		t.Fatalf("got %+v, want queue_packets with 3 non-zero values", metrics)
	}
	if alias, _ := metrics[0].Values[2].Label("alias"); alias != "h2c_q2_pkts" {
		t.Errorf("alias = %q, want h2c_q2_pkts", alias)
	}
	if metrics[0].Values[2].Index != 2 {
		t.Errorf("index = %d, want 2", metrics[0].Values[2].Index)
	}
}

func TestGetStatsRemoteErrors(t *testing.T) {
	env := startServer(t, 2)
	ctx := context.Background()

	bad := &api.StatsRequest{DevID: 0, Filters: &api.StatsFilters{MetricFilter: &api.MetricFilter{}}}

	tests := []struct {
		name string
		req  *api.StatsRequest
		code api.ErrorCode
	}{
		{"device past end", request(t, 2, "", false), api.ErrorCodeInvalidDeviceID},
		{"negative device", request(t, -5, "", false), api.ErrorCodeInvalidDeviceID},
		{"malformed filter", bad, api.ErrorCodeInvalidMetricFilter},
	}

	for _, tt := range tests {
		_, err := stats.Get(ctx, env.client, tt.req)
		var remote *stats.RemoteError
		if !errors.As(err, &remote) {
			t.Errorf("%s: expected RemoteError, got %v", tt.name, err)
			continue
		}
		if remote.Code != tt.code {
			t.Errorf("%s: code %s, want %s", tt.name, remote.Code, tt.code)
		}
	}
}

func TestClearStats(t *testing.T) {
	env := startServer(t, 2)
	ctx := context.Background()

	ids, err := stats.Clear(ctx, env.client, &api.StatsRequest{DevID: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != 1 {
		t.Fatalf("cleared %v, want [1]", ids)
	}

	resps, err := stats.Get(ctx, env.client, request(t, -1, `type(COUNTER)`, true))
	if err != nil {
		t.Fatal(err)
	}
	if n := len(resps[0].Stats.Metrics); n == 0 {
		t.Error("device 0 counters should be untouched")
	}
	if n := len(resps[1].Stats.Metrics); n != 0 {
		t.Errorf("device 1: %d counters still non-zero", n)
	}

	ids, err = stats.Clear(ctx, env.client, &api.StatsRequest{DevID: -1})
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 {
		t.Errorf("cleared %v, want both devices", ids)
	}
}

type nopSender struct{}

func (nopSender) Send(*api.StatsResponse) error { return nil }
func (nopSender) Context() context.Context       { return context.Background() }

func TestNilRequest(t *testing.T) {
	s := NewStatsServer(store.NewMemoryStore(1), nil)
	if err := s.GetStats(nil, nopSender{}); status.Code(err) != codes.InvalidArgument {
		t.Errorf("expected InvalidArgument, got %v", err)
	}
}
