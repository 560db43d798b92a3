package promql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"math"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/prometheus/model/labels"
	"github.com/prometheus/prometheus/promql"
	"github.com/prometheus/prometheus/promql/parser"
	"github.com/prometheus/prometheus/storage"

	"github.com/esnet/esnet-smartnic-fw/internal/store"
)

const (
	lookbackDelta = 5 * time.Minute
	queryTimeout  = 2 * time.Minute
	apiPrefix     = "/v1/devices/"
	apiVersion    = "api/v1"
)

type errorType string

const (
	errorBadData   errorType = "bad_data"
	errorExec      errorType = "execution"
	errorNotFound  errorType = "not_found"
	errorUnhandled errorType = "internal"
)

// apiResponse is the Prometheus API response envelope.
type apiResponse struct {
	Status    string      `json:"status"`
	Data      interface{} `json:"data,omitempty"`
	ErrorType errorType   `json:"errorType,omitempty"`
	Error     string      `json:"error,omitempty"`
}

type apiError struct {
	typ errorType
	err error
}

func badData(format string, args ...any) *apiError {
	return &apiError{typ: errorBadData, err: fmt.Errorf(format, args...)}
}

func (e *apiError) status() int {
	switch e.typ {
	case errorBadData:
		return http.StatusBadRequest
	case errorExec:
		return http.StatusUnprocessableEntity
	case errorNotFound:
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

type queryData struct {
	ResultType string      `json:"resultType"`
	Result     interface{} `json:"result"`
}

type vectorItem struct {
	Metric map[string]string `json:"metric"`
	Value  [2]interface{}    `json:"value"`
}

type matrixItem struct {
	Metric map[string]string `json:"metric"`
	Values [][2]interface{}  `json:"values"`
}

// apiFunc serves one endpoint for the device catalog in q.
type apiFunc func(r *http.Request, q *StoreQueryable) (interface{}, *apiError)

// Handler serves the Prometheus-compatible HTTP API over the catalog of one
// device.
//
// Path pattern: /v1/devices/{dev}/api/v1/{endpoint}
type Handler struct {
	store     store.Store
	engine    *promql.Engine
	endpoints map[string]apiFunc
}

// NewHandler creates a Prometheus API handler backed by the given store.
func NewHandler(s store.Store) http.Handler {
	h := &Handler{
		store: s,
		engine: promql.NewEngine(promql.EngineOpts{
			MaxSamples:           50000000,
			Timeout:              queryTimeout,
			EnableAtModifier:     true,
			EnableNegativeOffset: true,
			LookbackDelta:        lookbackDelta,
		}),
	}
	h.endpoints = map[string]apiFunc{
		"query":           h.query,
		"query_range":     h.queryRange,
		"series":          h.series,
		"labels":          h.labelNames,
		"query_exemplars": func(*http.Request, *StoreQueryable) (interface{}, *apiError) { return []struct{}{}, nil },
		"metadata":        func(*http.Request, *StoreQueryable) (interface{}, *apiError) { return map[string]interface{}{}, nil },
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	devID, endpoint, ok := parsePromPath(r.URL.Path)
	if !ok {
		writeError(w, &apiError{errorNotFound, errors.New("invalid Prometheus API path")})
		return
	}
	if devID >= h.store.NumDevices() {
		writeError(w, &apiError{errorNotFound, fmt.Errorf("unknown device %d", devID)})
		return
	}

	fn, ok := h.endpoints[endpoint]
	if !ok {
		name, isLabel := parseLabelValuesEndpoint(endpoint)
		if !isLabel {
			writeError(w, &apiError{errorNotFound, fmt.Errorf("unknown endpoint: %s", endpoint)})
			return
		}
		fn = func(r *http.Request, q *StoreQueryable) (interface{}, *apiError) {
			return h.labelValues(r, q, name)
		}
	}

	if err := r.ParseForm(); err != nil {
		writeError(w, badData("%v", err))
		return
	}
	data, apiErr := fn(r, &StoreQueryable{Store: h.store, DevID: devID})
	if apiErr != nil {
		writeError(w, apiErr)
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Status: "success", Data: data})
}

func (h *Handler) query(r *http.Request, q *StoreQueryable) (interface{}, *apiError) {
	expr := r.FormValue("query")
	if expr == "" {
		return nil, badData("missing query parameter")
	}
	ts, err := parseTime(r.FormValue("time"))
	if err != nil {
		return nil, badData("invalid time: %v", err)
	}

	qry, err := h.engine.NewInstantQuery(r.Context(), q, nil, expr, ts)
	if err != nil {
		return nil, badData("%v", err)
	}
	return execQuery(r.Context(), qry)
}

func (h *Handler) queryRange(r *http.Request, q *StoreQueryable) (interface{}, *apiError) {
	expr := r.FormValue("query")
	if expr == "" {
		return nil, badData("missing query parameter")
	}

	var (
		bounds [2]time.Time
		err    error
	)
	for i, name := range []string{"start", "end"} {
		if bounds[i], err = parseTime(r.FormValue(name)); err != nil {
			return nil, badData("invalid %s: %v", name, err)
		}
	}
	step, err := parseDuration(r.FormValue("step"))
	if err != nil {
		return nil, badData("invalid step: %v", err)
	}
	if step <= 0 {
		return nil, badData("invalid step: must be positive")
	}

	qry, err := h.engine.NewRangeQuery(r.Context(), q, nil, expr, bounds[0], bounds[1], step)
	if err != nil {
		return nil, badData("%v", err)
	}
	return execQuery(r.Context(), qry)
}

func execQuery(ctx context.Context, qry promql.Query) (interface{}, *apiError) {
	defer qry.Close()

	res := qry.Exec(ctx)
	if res.Err != nil {
		return nil, &apiError{errorExec, res.Err}
	}

	switch v := res.Value.(type) {
	case promql.Vector:
		items := make([]vectorItem, len(v))
		for i, s := range v {
			items[i] = vectorItem{Metric: labelsToMap(s.Metric), Value: formatSamplePair(s.T, s.F)}
		}
		return queryData{ResultType: "vector", Result: items}, nil
	case promql.Matrix:
		items := make([]matrixItem, len(v))
		for i, s := range v {
			values := make([][2]interface{}, len(s.Floats))
			for j, p := range s.Floats {
				values[j] = formatSamplePair(p.T, p.F)
			}
			items[i] = matrixItem{Metric: labelsToMap(s.Metric), Values: values}
		}
		return queryData{ResultType: "matrix", Result: items}, nil
	case promql.Scalar:
		return queryData{ResultType: "scalar", Result: formatSamplePair(v.T, v.V)}, nil
	default:
		return queryData{ResultType: string(v.Type()), Result: v.String()}, nil
	}
}

// querier opens a querier over the request's start/end range.
func querier(r *http.Request, q *StoreQueryable) (storage.Querier, *apiError) {
	start, end := parseTimeRange(r)
	qr, err := q.Querier(start.UnixMilli(), end.UnixMilli())
	if err != nil {
		return nil, &apiError{errorUnhandled, err}
	}
	return qr, nil
}

// matcherSets parses every match[] selector of the request.
func matcherSets(r *http.Request) ([][]*labels.Matcher, *apiError) {
	var sets [][]*labels.Matcher
	for _, sel := range r.Form["match[]"] {
		ms, err := parser.ParseMetricSelector(sel)
		if err != nil {
			return nil, badData("invalid match[]: %v", err)
		}
		sets = append(sets, ms)
	}
	return sets, nil
}

func (h *Handler) series(r *http.Request, q *StoreQueryable) (interface{}, *apiError) {
	sets, apiErr := matcherSets(r)
	if apiErr != nil {
		return nil, apiErr
	}
	if len(sets) == 0 {
		return nil, badData("no match[] parameter provided")
	}
	qr, apiErr := querier(r, q)
	if apiErr != nil {
		return nil, apiErr
	}
	defer qr.Close()

	seen := make(map[uint64]bool)
	result := []map[string]string{}
	for _, ms := range sets {
		ss := qr.Select(r.Context(), false, nil, ms...)
		for ss.Next() {
			lset := ss.At().Labels()
			if hash := lset.Hash(); !seen[hash] {
				seen[hash] = true
				result = append(result, labelsToMap(lset))
			}
		}
		if err := ss.Err(); err != nil {
			return nil, &apiError{errorExec, err}
		}
	}
	return result, nil
}

// unionStrings calls fn once with no matchers, or once per match[] set, and
// returns the sorted union of the results.
func unionStrings(r *http.Request, q *StoreQueryable, fn func(storage.Querier, ...*labels.Matcher) ([]string, error)) (interface{}, *apiError) {
	sets, apiErr := matcherSets(r)
	if apiErr != nil {
		return nil, apiErr
	}
	if len(sets) == 0 {
		sets = [][]*labels.Matcher{nil}
	}
	qr, apiErr := querier(r, q)
	if apiErr != nil {
		return nil, apiErr
	}
	defer qr.Close()

	union := make(map[string]struct{})
	for _, ms := range sets {
		names, err := fn(qr, ms...)
		if err != nil {
			return nil, &apiError{errorExec, err}
		}
		for _, n := range names {
			union[n] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(union)), nil
}

func (h *Handler) labelNames(r *http.Request, q *StoreQueryable) (interface{}, *apiError) {
	return unionStrings(r, q, func(qr storage.Querier, ms ...*labels.Matcher) ([]string, error) {
		names, _, err := qr.LabelNames(r.Context(), nil, ms...)
		return names, err
	})
}

func (h *Handler) labelValues(r *http.Request, q *StoreQueryable, name string) (interface{}, *apiError) {
	return unionStrings(r, q, func(qr storage.Querier, ms ...*labels.Matcher) ([]string, error) {
		values, _, err := qr.LabelValues(r.Context(), name, nil, ms...)
		return values, err
	})
}

// parsePromPath splits /v1/devices/{dev}/api/v1/{endpoint...} into the
// device ID and the endpoint.
func parsePromPath(path string) (devID int, endpoint string, ok bool) {
	rest, found := strings.CutPrefix(path, apiPrefix)
	if !found {
		return 0, "", false
	}
	dev, rest, found := strings.Cut(rest, "/")
	if !found {
		return 0, "", false
	}
	endpoint, found = strings.CutPrefix(rest, apiVersion+"/")
	if !found || endpoint == "" {
		return 0, "", false
	}
	devID, err := strconv.Atoi(dev)
	if err != nil || devID < 0 {
		return 0, "", false
	}
	return devID, endpoint, true
}

// parseLabelValuesEndpoint extracts the name from "label/{name}/values".
func parseLabelValuesEndpoint(endpoint string) (string, bool) {
	rest, ok := strings.CutPrefix(endpoint, "label/")
	if !ok {
		return "", false
	}
	name, ok := strings.CutSuffix(rest, "/values")
	if !ok || name == "" {
		return "", false
	}
	return name, true
}

// parseTime accepts Unix seconds with an optional fraction or RFC 3339.
// An empty string is the current time.
func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Now(), nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		sec, frac := math.Modf(f)
		return time.Unix(int64(sec), int64(frac*1e9)), nil
	}
	return time.Parse(time.RFC3339, s)
}

// parseDuration accepts a Go duration or a bare number of seconds.
func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, errors.New("empty duration")
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(f * float64(time.Second)), nil
	}
	return time.ParseDuration(s)
}

// parseTimeRange defaults to the last hour when start or end is missing or
// malformed.
func parseTimeRange(r *http.Request) (start, end time.Time) {
	now := time.Now()
	start, err := parseTime(r.FormValue("start"))
	if err != nil {
		start = now.Add(-time.Hour)
	}
	if end, err = parseTime(r.FormValue("end")); err != nil {
		end = now
	}
	return start, end
}

func formatSamplePair(tMillis int64, v float64) [2]interface{} {
	return [2]interface{}{float64(tMillis) / 1000.0, formatFloat(v)}
}

func formatFloat(v float64) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "+Inf"
	case math.IsInf(v, -1):
		return "-Inf"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func labelsToMap(lset labels.Labels) map[string]string {
	m := make(map[string]string, lset.Len())
	lset.Range(func(l labels.Label) {
		m[l.Name] = l.Value
	})
	return m
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, e *apiError) {
	writeJSON(w, e.status(), apiResponse{
		Status:    "error",
		ErrorType: e.typ,
		Error:     e.err.Error(),
	})
}
