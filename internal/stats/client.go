package stats

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/esnet/esnet-smartnic-fw/internal/api"
)

// RemoteError reports a response carrying a non-OK error code.
type RemoteError struct {
	DevID int32
	Code  api.ErrorCode
}

func (e *RemoteError) Error() string {
	return "remote failure: " + e.Code.String()
}

// Get runs GetStats and returns every response once the stream is drained.
// Nothing is returned if any response carries an error code.
func Get(ctx context.Context, client api.SmartnicConfigClient, req *api.StatsRequest) ([]*api.StatsResponse, error) {
	stream, err := client.GetStats(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("get stats: %w", err)
	}
	resps, err := Collect(stream)
	if err != nil {
		return nil, fmt.Errorf("get stats: %w", err)
	}
	return resps, nil
}

// Clear runs ClearStats and returns the IDs of the cleared devices.
func Clear(ctx context.Context, client api.SmartnicConfigClient, req *api.StatsRequest) ([]int32, error) {
	stream, err := client.ClearStats(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("clear stats: %w", err)
	}
	resps, err := Collect(stream)
	if err != nil {
		return nil, fmt.Errorf("clear stats: %w", err)
	}

	ids := make([]int32, 0, len(resps))
	for _, resp := range resps {
		ids = append(ids, resp.DevID)
	}
	return ids, nil
}

// Collect receives responses until the stream ends. The first response with a
// non-OK error code aborts collection with a *RemoteError.
func Collect(stream api.StatsReceiver) ([]*api.StatsResponse, error) {
	var resps []*api.StatsResponse
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return resps, nil
		}
		if err != nil {
			return nil, err
		}
		if resp.ErrorCode != api.ErrorCodeOK {
			return nil, &RemoteError{DevID: resp.DevID, Code: resp.ErrorCode}
		}
		resps = append(resps, resp)
	}
}
