package validation

import (
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/esnet/esnet-smartnic-fw/internal/api"
	"github.com/esnet/esnet-smartnic-fw/internal/filter"
)

// AllDevices is the dev_id that addresses every device.
const AllDevices = -1

// ValidateStatsRequest checks the parts of a stats request that cannot be
// reported through a response error code.
func ValidateStatsRequest(req *api.StatsRequest) error {
	if req == nil {
		return status.Error(codes.InvalidArgument, "request is required")
	}
	return nil
}

// DeviceIDs expands a request dev_id into the devices it addresses.
func DeviceIDs(devID int32, numDevices int) ([]int, error) {
	if devID == AllDevices {
		ids := make([]int, numDevices)
		for i := range ids {
			ids[i] = i
		}
		return ids, nil
	}
	if devID < 0 || int(devID) >= numDevices {
		return nil, fmt.Errorf("device id %d out of range [0, %d)", devID, numDevices)
	}
	return []int{int(devID)}, nil
}

// StatsFilter converts the metric filter of a request. A request without
// filters selects everything.
func StatsFilter(f *api.StatsFilters) (filter.Filter, error) {
	if f == nil || f.MetricFilter == nil {
		return nil, nil
	}
	return filter.FromProto(f.MetricFilter)
}
