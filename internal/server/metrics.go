package server

import (
	"context"
	"path"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// Metrics tracks the RPCs served by the emulator.
//
// Metrics:
//   - sn_cfg_emulator_requests_total: RPCs by method and gRPC status code
//   - sn_cfg_emulator_request_duration_seconds: RPC latency by method
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// NewMetrics creates the RPC metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sn_cfg",
				Subsystem: "emulator",
				Name:      "requests_total",
				Help:      "Total number of RPCs served",
			},
			[]string{"method", "code"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "sn_cfg",
				Subsystem: "emulator",
				Name:      "request_duration_seconds",
				Help:      "Duration of RPCs in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
			},
			[]string{"method"},
		),
	}
	reg.MustRegister(m.requestsTotal, m.requestDuration)
	return m
}

func (m *Metrics) observe(fullMethod string, start time.Time, err error) {
	method := path.Base(fullMethod)
	m.requestsTotal.WithLabelValues(method, status.Code(err).String()).Inc()
	m.requestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
}

func (m *Metrics) UnaryInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	m.observe(info.FullMethod, start, err)
	return resp, err
}

func (m *Metrics) StreamInterceptor(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	start := time.Now()
	err := handler(srv, ss)
	m.observe(info.FullMethod, start, err)
	return err
}

// ServerOptions returns the options that install the interceptors.
func (m *Metrics) ServerOptions() []grpc.ServerOption {
	return []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(m.UnaryInterceptor),
		grpc.ChainStreamInterceptor(m.StreamInterceptor),
	}
}
