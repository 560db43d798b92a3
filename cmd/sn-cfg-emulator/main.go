// Command sn-cfg-emulator serves an in-memory SmartNIC stats catalog to
// sn-cfg and to Prometheus-compatible tools.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/esnet/esnet-smartnic-fw/internal/config"
	"github.com/esnet/esnet-smartnic-fw/internal/emulator"
)

func main() {
	port := pflag.Int("port", config.DefaultPort, "port to listen on")
	numDevices := pflag.Int("num-devices", 1, "number of emulated devices")
	verbose := pflag.Bool("verbose", false, "log debug detail")
	pflag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	if *numDevices < 1 {
		logger.Error("invalid device count", "num_devices", *numDevices)
		os.Exit(1)
	}

	emu := emulator.New(*numDevices, logger)

	addr := fmt.Sprintf(":%d", *port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Error("failed to listen", "addr", addr, "error", err)
		os.Exit(1)
	}

	logger.Info("smartnic config emulator started",
		"port", *port,
		"num_devices", *numDevices,
		"grpc", fmt.Sprintf("localhost:%d", *port),
		"promql", fmt.Sprintf("http://localhost:%d/v1/devices/{dev}/api/v1/", *port),
		"admin", fmt.Sprintf("http://localhost:%d/admin/", *port),
		"metrics", fmt.Sprintf("http://localhost:%d/metrics", *port),
	)

	// Graceful shutdown on SIGINT/SIGTERM.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("shutting down", "signal", sig)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := emu.Shutdown(ctx); err != nil {
			logger.Warn("shutdown incomplete", "error", err)
		}
		lis.Close()
	}()

	if err := emu.Serve(lis); err != nil {
		logger.Error("serve error", "error", err)
		os.Exit(1)
	}
}
