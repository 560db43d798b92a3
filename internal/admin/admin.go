package admin

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/tidwall/gjson"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/esnet/esnet-smartnic-fw/internal/store"
)

const maxBodySize = 1 << 16

// NewHandler returns an HTTP handler for the admin API.
func NewHandler(s store.Store) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /admin/reset", handleReset(s))
	mux.HandleFunc("GET /admin/state", handleState(s))
	mux.HandleFunc("POST /admin/values", handleSetValue(s))
	return mux
}

func handleReset(s store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.Reset()
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleState(s store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := s.State()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(state)
	}
}

// handleSetValue sets one metric value. The body looks like
//
//	{"dev_id": 0, "domain": "hw", "zone": "cmac0", "block": "rx",
//	 "name": "total_packets", "index": 0, "u64": 42}
//
// Gauges take "f64" instead of "u64".
func handleSetValue(s store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		devID, key, index, value, err := parseSetValue(body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		if err := s.SetValue(r.Context(), devID, key, index, value); err != nil {
			http.Error(w, status.Convert(err).Message(), httpStatus(err))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func parseSetValue(body []byte) (devID int, key store.Key, index uint32, value store.Value, err error) {
	if !gjson.ValidBytes(body) {
		return 0, key, 0, value, fmt.Errorf("invalid JSON body")
	}
	fields := gjson.GetManyBytes(body, "dev_id", "domain", "zone", "block", "name", "index", "u64", "f64")
	dev, domain, zone, block, name, idx, u64, f64 := fields[0], fields[1], fields[2], fields[3], fields[4], fields[5], fields[6], fields[7]

	if dev.Type != gjson.Number {
		return 0, key, 0, value, fmt.Errorf("dev_id is required")
	}
	if name.String() == "" {
		return 0, key, 0, value, fmt.Errorf("name is required")
	}
	if idx.Exists() && (idx.Type != gjson.Number || idx.Int() < 0) {
		return 0, key, 0, value, fmt.Errorf("index must be a non-negative number")
	}
	switch {
	case u64.Type == gjson.Number:
		value.U64 = u64.Uint()
	case f64.Type == gjson.Number:
		value.F64 = f64.Float()
	default:
		return 0, key, 0, value, fmt.Errorf("one of u64 or f64 is required")
	}

	key = store.Key{Domain: domain.String(), Zone: zone.String(), Block: block.String(), Name: name.String()}
	return int(dev.Int()), key, uint32(idx.Uint()), value, nil
}

func httpStatus(err error) int {
	switch status.Code(err) {
	case codes.NotFound:
		return http.StatusNotFound
	case codes.OutOfRange, codes.InvalidArgument:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
