package server

import (
	"context"
	"log/slog"

	"google.golang.org/grpc/status"

	"github.com/esnet/esnet-smartnic-fw/internal/api"
	"github.com/esnet/esnet-smartnic-fw/internal/filter"
	"github.com/esnet/esnet-smartnic-fw/internal/store"
	"github.com/esnet/esnet-smartnic-fw/internal/validation"
)

// StatsServer implements the streaming stats RPCs of the SmartNIC config
// service over a metric catalog.
type StatsServer struct {
	store  store.Store
	logger *slog.Logger
}

func NewStatsServer(s store.Store, logger *slog.Logger) *StatsServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatsServer{store: s, logger: logger}
}

// statsOp runs a stats operation against one device.
type statsOp func(ctx context.Context, devID int, f filter.Filter, filters *api.StatsFilters) (*api.Stats, error)

func (s *StatsServer) GetStats(req *api.StatsRequest, stream api.StatsSender) error {
	return s.serve("get", req, stream, func(ctx context.Context, devID int, f filter.Filter, filters *api.StatsFilters) (*api.Stats, error) {
		q := store.Query{Filter: f}
		if filters != nil {
			q.NonZero, q.WithLabels = filters.NonZero, filters.WithLabels
		}
		metrics, err := s.store.GetStats(ctx, devID, q)
		if err != nil {
			return nil, err
		}
		return &api.Stats{Metrics: metrics}, nil
	})
}

func (s *StatsServer) ClearStats(req *api.StatsRequest, stream api.StatsSender) error {
	return s.serve("clear", req, stream, func(ctx context.Context, devID int, _ filter.Filter, _ *api.StatsFilters) (*api.Stats, error) {
		return nil, s.store.ClearStats(ctx, devID)
	})
}

// serve validates the request and streams one response per addressed device.
// Request-level failures are reported through the response error code.
func (s *StatsServer) serve(op string, req *api.StatsRequest, stream api.StatsSender, fn statsOp) error {
	if err := validation.ValidateStatsRequest(req); err != nil {
		return err
	}
	ctx := stream.Context()
	logger := s.logger.With("op", op, "dev_id", req.DevID)

	ids, err := validation.DeviceIDs(req.DevID, s.store.NumDevices())
	if err != nil {
		logger.Warn("invalid device", "error", err)
		return stream.Send(&api.StatsResponse{ErrorCode: api.ErrorCodeInvalidDeviceID, DevID: req.DevID})
	}
	f, err := validation.StatsFilter(req.Filters)
	if err != nil {
		logger.Warn("invalid metric filter", "error", err)
		return stream.Send(&api.StatsResponse{ErrorCode: api.ErrorCodeInvalidMetricFilter, DevID: req.DevID})
	}

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return status.FromContextError(err).Err()
		}
		stats, err := fn(ctx, id, f, req.Filters)
		if err != nil {
			logger.Error("stats operation failed", "device", id, "error", err)
			return err
		}
		if err := stream.Send(&api.StatsResponse{ErrorCode: api.ErrorCodeOK, DevID: int32(id), Stats: stats}); err != nil {
			return err
		}
		if stats != nil {
			logger.Debug("sent stats", "device", id, "metrics", len(stats.Metrics))
		}
	}
	return nil
}
