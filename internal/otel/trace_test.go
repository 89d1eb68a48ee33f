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

package otel

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type testDriver struct{}

func TestProviderName(t *testing.T) {
	testCases := []struct {
		name   string
		driver any
		want   string
	}{
		{"nil", nil, ""},
		{"struct", testDriver{}, "gocloud.dev/fsdoc/internal/otel"},
		{"pointer", &testDriver{}, "gocloud.dev/fsdoc/internal/otel"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := ProviderName(tc.driver)
			if got != tc.want {
				t.Errorf("ProviderName(%#v) = %q, want %q", tc.driver, got, tc.want)
			}
		})
	}
}

func TestTracer(t *testing.T) {
	spanRecorder := tracetest.NewSpanRecorder()
	testProvider := trace.NewTracerProvider(
		trace.WithSampler(trace.AlwaysSample()),
		trace.WithSpanProcessor(spanRecorder),
	)
	origProvider := otel.GetTracerProvider()
	otel.SetTracerProvider(testProvider)
	defer otel.SetTracerProvider(origProvider)

	tracer := NewTracer("test", "test-provider")
	if tracer.Package != "test" {
		t.Errorf("Package = %q, want %q", tracer.Package, "test")
	}
	if tracer.Provider != "test-provider" {
		t.Errorf("Provider = %q, want %q", tracer.Provider, "test-provider")
	}

	_, span := tracer.Start(context.Background(), "TestMethod")
	tracer.End(span, nil)
	spans := spanRecorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if got, want := spans[0].Name(), "test.TestMethod"; got != want {
		t.Errorf("span name = %q, want %q", got, want)
	}
	if got := spans[0].Status().Code; got != codes.Ok {
		t.Errorf("status = %v, want Ok", got)
	}

	_, span = tracer.Start(context.Background(), "TestErrorMethod")
	tracer.End(span, errors.New("test error"))
	spans = spanRecorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("got %d spans, want 2", len(spans))
	}
	if got := spans[1].Status().Code; got != codes.Error {
		t.Errorf("status = %v, want Error", got)
	}
}

func TestEndCallRecordsLatency(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	origProvider := otel.GetMeterProvider()
	otel.SetMeterProvider(mp)
	defer otel.SetMeterProvider(origProvider)

	tracer := NewTracer("test")
	ctx, span := tracer.Start(context.Background(), "Commit")
	tracer.EndCall(ctx, span, nil)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatal(err)
	}
	found := false
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == "test.latency" {
				found = true
			}
		}
	}
	if !found {
		t.Error("test.latency histogram was not recorded")
	}
}
