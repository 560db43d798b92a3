package api

// ErrorCode is the request-level status carried in every response.
type ErrorCode int32

const (
	ErrorCodeUnknown ErrorCode = iota
	ErrorCodeOK

	// Device errors.
	ErrorCodeInvalidDeviceID

	// Statistics errors.
	ErrorCodeInvalidMetricFilter
	ErrorCodeStatsUnavailable
)

var errorCodeNames = map[ErrorCode]string{
	ErrorCodeOK:                  "ok",
	ErrorCodeInvalidDeviceID:     "invalid-device-id",
	ErrorCodeInvalidMetricFilter: "invalid-metric-filter",
	ErrorCodeStatsUnavailable:    "stats-unavailable",
}

func (c ErrorCode) String() string {
	if s, ok := errorCodeNames[c]; ok {
		return s
	}
	return "unknown"
}
