// Package emulator wires the SmartNIC stats catalog to its network surfaces.
// The gRPC config service and the HTTP APIs share a single port.
package emulator

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/soheilhy/cmux"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"github.com/esnet/esnet-smartnic-fw/internal/admin"
	"github.com/esnet/esnet-smartnic-fw/internal/api"
	"github.com/esnet/esnet-smartnic-fw/internal/promql"
	"github.com/esnet/esnet-smartnic-fw/internal/server"
	"github.com/esnet/esnet-smartnic-fw/internal/store"
)

// Emulator serves one in-memory catalog over gRPC and HTTP.
type Emulator struct {
	Store    *store.MemoryStore
	Registry *prometheus.Registry

	logger     *slog.Logger
	grpcServer *grpc.Server
	httpServer *http.Server
}

// New seeds a catalog of numDevices devices and builds the servers around it.
func New(numDevices int, logger *slog.Logger) *Emulator {
	if logger == nil {
		logger = slog.Default()
	}
	s := store.NewMemoryStore(numDevices)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := server.NewMetrics(reg)

	// No TLS and no auth, it's an emulator.
	grpcServer := grpc.NewServer(m.ServerOptions()...)
	api.RegisterSmartnicConfigServer(grpcServer, server.NewStatsServer(s, logger))
	reflection.Register(grpcServer)

	httpMux := http.NewServeMux()
	httpMux.Handle("/v1/", promql.NewHandler(s))
	httpMux.Handle("/admin/", admin.NewHandler(s))
	httpMux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	return &Emulator{
		Store:      s,
		Registry:   reg,
		logger:     logger,
		grpcServer: grpcServer,
		httpServer: &http.Server{Handler: httpMux, ReadHeaderTimeout: 10 * time.Second},
	}
}

// Serve multiplexes lis between the gRPC and HTTP servers and blocks until
// the listener is closed. A closed listener is not an error.
func (e *Emulator) Serve(lis net.Listener) error {
	m := cmux.New(lis)
	// Prefix match so that application/grpc+json is routed to gRPC too.
	grpcLis := m.MatchWithWriters(cmux.HTTP2MatchHeaderFieldPrefixSendSettings("content-type", "application/grpc"))
	httpLis := m.Match(cmux.Any())

	go func() {
		if err := e.grpcServer.Serve(grpcLis); err != nil && !isClosedErr(err) {
			e.logger.Error("gRPC server error", "error", err)
		}
	}()
	go func() {
		if err := e.httpServer.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) && !isClosedErr(err) {
			e.logger.Error("HTTP server error", "error", err)
		}
	}()

	if err := m.Serve(); err != nil && !isClosedErr(err) {
		return err
	}
	return nil
}

// Shutdown stops accepting RPCs and waits for in-flight ones, then closes
// the HTTP server.
func (e *Emulator) Shutdown(ctx context.Context) error {
	e.grpcServer.GracefulStop()
	return e.httpServer.Shutdown(ctx)
}

func isClosedErr(err error) bool {
	return err != nil && (errors.Is(err, net.ErrClosed) ||
		err.Error() == "mux: server closed" ||
		err.Error() == "mux: listener closed")
}
