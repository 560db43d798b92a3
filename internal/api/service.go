package api

import (
	"context"

	"google.golang.org/grpc"
)

const ServiceName = "sn_cfg.v1.SmartnicConfig"

const (
	GetStatsMethod   = "/" + ServiceName + "/GetStats"
	ClearStatsMethod = "/" + ServiceName + "/ClearStats"
)

// SmartnicConfigServer is the server API for the stats RPCs. Both RPCs stream
// one response per addressed device.
type SmartnicConfigServer interface {
	GetStats(*StatsRequest, StatsSender) error
	ClearStats(*StatsRequest, StatsSender) error
}

type StatsSender interface {
	Send(*StatsResponse) error
	Context() context.Context
}

type statsSender struct {
	grpc.ServerStream
}

func (s *statsSender) Send(m *StatsResponse) error {
	return s.ServerStream.SendMsg(m)
}

func getStatsHandler(srv any, stream grpc.ServerStream) error {
	req := new(StatsRequest)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(SmartnicConfigServer).GetStats(req, &statsSender{stream})
}

func clearStatsHandler(srv any, stream grpc.ServerStream) error {
	req := new(StatsRequest)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(SmartnicConfigServer).ClearStats(req, &statsSender{stream})
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SmartnicConfigServer)(nil),
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "GetStats",
			Handler:       getStatsHandler,
			ServerStreams: true,
		},
		{
			StreamName:    "ClearStats",
			Handler:       clearStatsHandler,
			ServerStreams: true,
		},
	},
	Metadata: "sn_cfg_v1.proto",
}

func RegisterSmartnicConfigServer(s grpc.ServiceRegistrar, srv SmartnicConfigServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// SmartnicConfigClient is the client API for the stats RPCs.
type SmartnicConfigClient interface {
	GetStats(ctx context.Context, in *StatsRequest, opts ...grpc.CallOption) (StatsReceiver, error)
	ClearStats(ctx context.Context, in *StatsRequest, opts ...grpc.CallOption) (StatsReceiver, error)
}

// StatsReceiver yields responses until it returns io.EOF.
type StatsReceiver interface {
	Recv() (*StatsResponse, error)
}

type smartnicConfigClient struct {
	cc grpc.ClientConnInterface
}

func NewSmartnicConfigClient(cc grpc.ClientConnInterface) SmartnicConfigClient {
	return &smartnicConfigClient{cc: cc}
}

func (c *smartnicConfigClient) GetStats(ctx context.Context, in *StatsRequest, opts ...grpc.CallOption) (StatsReceiver, error) {
	return c.serverStream(ctx, &ServiceDesc.Streams[0], GetStatsMethod, in, opts...)
}

func (c *smartnicConfigClient) ClearStats(ctx context.Context, in *StatsRequest, opts ...grpc.CallOption) (StatsReceiver, error) {
	return c.serverStream(ctx, &ServiceDesc.Streams[1], ClearStatsMethod, in, opts...)
}

func (c *smartnicConfigClient) serverStream(ctx context.Context, desc *grpc.StreamDesc, method string, in *StatsRequest, opts ...grpc.CallOption) (StatsReceiver, error) {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	stream, err := c.cc.NewStream(ctx, desc, method, opts...)
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &statsReceiver{stream}, nil
}

type statsReceiver struct {
	grpc.ClientStream
}

func (r *statsReceiver) Recv() (*StatsResponse, error) {
	m := new(StatsResponse)
	if err := r.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}
