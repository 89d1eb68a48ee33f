// Copyright 2025 The Go Cloud Development Kit Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package oteltest supports testing of OpenTelemetry integrations.
package oteltest

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
	"gocloud.dev/fsdoc/gcerrors"
	fsotel "gocloud.dev/fsdoc/internal/otel"
)

// TestExporter collects OpenTelemetry spans and metrics, for testing.
// It should be created with NewTestExporter.
type TestExporter struct {
	spans  *tracetest.SpanRecorder
	reader *sdkmetric.ManualReader
	tp     *sdktrace.TracerProvider
	mp     *sdkmetric.MeterProvider

	prevTP trace.TracerProvider
	prevMP metric.MeterProvider
}

// NewTestExporter creates a TestExporter and registers it as the global
// tracer and meter provider. Tracers created afterwards report to it.
func NewTestExporter() *TestExporter {
	te := &TestExporter{
		spans:  tracetest.NewSpanRecorder(),
		reader: sdkmetric.NewManualReader(),
		prevTP: otel.GetTracerProvider(),
		prevMP: otel.GetMeterProvider(),
	}
	te.tp = sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithSpanProcessor(te.spans),
	)
	te.mp = sdkmetric.NewMeterProvider(sdkmetric.WithReader(te.reader))
	otel.SetTracerProvider(te.tp)
	otel.SetMeterProvider(te.mp)
	return te
}

// Spans returns the ended spans, in the order they ended.
func (te *TestExporter) Spans() []sdktrace.ReadOnlySpan {
	return te.spans.Ended()
}

// Metrics collects and returns the current metrics.
func (te *TestExporter) Metrics(ctx context.Context) ([]metricdata.ScopeMetrics, error) {
	var rm metricdata.ResourceMetrics
	if err := te.reader.Collect(ctx, &rm); err != nil {
		return nil, err
	}
	return rm.ScopeMetrics, nil
}

// Shutdown restores the previous global providers and shuts down the
// exporter's.
func (te *TestExporter) Shutdown(ctx context.Context) error {
	otel.SetTracerProvider(te.prevTP)
	otel.SetMeterProvider(te.prevMP)
	err := te.tp.Shutdown(ctx)
	if merr := te.mp.Shutdown(ctx); err == nil {
		err = merr
	}
	return err
}

// Call represents a method call with its result code.
type Call struct {
	Method string
	Code   gcerrors.ErrorCode
}

// Diff compares the spans and latency metrics recorded by a fsotel.Tracer
// with the expected calls. Span order matters; metric order does not.
// namePrefix is the tracer's package, and provider its provider name.
// Diff returns the empty string if there are no differences.
func Diff(gotSpans []sdktrace.ReadOnlySpan, gotMetrics []metricdata.ScopeMetrics, namePrefix, provider string, want []Call) string {
	ds := diffSpans(gotSpans, namePrefix, want)
	dm := diffLatency(gotMetrics, namePrefix, provider, want)
	if len(ds) > 0 {
		ds = "trace: " + ds + "\n"
	}
	if len(dm) > 0 {
		dm = "metrics: " + dm
	}
	return ds + dm
}

func formatSpan(s sdktrace.ReadOnlySpan) string {
	if s == nil {
		return "missing"
	}
	return fmt.Sprintf("<Name: %q, Code: %s>", s.Name(), s.Status().Code)
}

func formatCall(c *Call) string {
	if c == nil {
		return "nothing"
	}
	return fmt.Sprintf("<Name: %q, Code: %s>", c.Method, c.Code)
}

func statusCode(code gcerrors.ErrorCode) codes.Code {
	if code == gcerrors.OK {
		return codes.Ok
	}
	return codes.Error
}

func diffSpans(got []sdktrace.ReadOnlySpan, prefix string, want []Call) string {
	var diffs []string
	add := func(i int, g sdktrace.ReadOnlySpan, w *Call) {
		diffs = append(diffs, fmt.Sprintf("#%d: got %s, want %s", i, formatSpan(g), formatCall(w)))
	}
	for i := 0; i < len(got) || i < len(want); i++ {
		switch {
		case i >= len(got):
			w := want[i]
			w.Method = prefix + "." + w.Method
			add(i, nil, &w)
		case i >= len(want):
			add(i, got[i], nil)
		default:
			w := want[i]
			w.Method = prefix + "." + w.Method
			if got[i].Name() != w.Method || got[i].Status().Code != statusCode(w.Code) {
				add(i, got[i], &w)
			}
			if w.Code != gcerrors.OK && !hasStatus(got[i], w.Code) {
				diffs = append(diffs, fmt.Sprintf("#%d: span lacks status attribute %s", i, w.Code))
			}
		}
	}
	return strings.Join(diffs, "\n")
}

func hasStatus(s sdktrace.ReadOnlySpan, code gcerrors.ErrorCode) bool {
	for _, kv := range s.Attributes() {
		if kv.Key == fsotel.StatusKey && kv.Value.AsString() == fmt.Sprint(code) {
			return true
		}
	}
	return false
}

// diffLatency checks that the latency histogram counted each wanted call
// under its method, status and provider.
func diffLatency(got []metricdata.ScopeMetrics, prefix, provider string, want []Call) string {
	gotCounts := map[string]uint64{}
	for _, sm := range got {
		for _, m := range sm.Metrics {
			if m.Name != prefix+".latency" {
				continue
			}
			h, ok := m.Data.(metricdata.Histogram[float64])
			if !ok {
				continue
			}
			for _, dp := range h.DataPoints {
				method, _ := dp.Attributes.Value(fsotel.MethodKey)
				status, _ := dp.Attributes.Value(fsotel.StatusKey)
				prov, _ := dp.Attributes.Value(fsotel.ProviderKey)
				gotCounts[latencyKey(method.AsString(), status.AsString(), prov.AsString())] += dp.Count
			}
		}
	}
	wantCounts := map[string]uint64{}
	for _, c := range want {
		wantCounts[latencyKey(c.Method, fmt.Sprint(c.Code), provider)]++
	}

	var diffs []string
	for k, n := range wantCounts {
		if gotCounts[k] != n {
			diffs = append(diffs, fmt.Sprintf("%s: got %d calls, want %d", k, gotCounts[k], n))
		}
	}
	for k, n := range gotCounts {
		if _, ok := wantCounts[k]; !ok {
			diffs = append(diffs, fmt.Sprintf("%s: got %d unexpected calls", k, n))
		}
	}
	sort.Strings(diffs)
	return strings.Join(diffs, "\n")
}

func latencyKey(method, status, provider string) string {
	return fmt.Sprintf("<method=%s status=%s provider=%s>", method, status, provider)
}
