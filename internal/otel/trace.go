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

// Package otel supports OpenTelemetry tracing and metrics for fsdoc.
package otel

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"gocloud.dev/fsdoc/gcerrors"
)

// Common attribute keys.
var (
	MethodKey   = attribute.Key("fsdoc.method")
	PackageKey  = attribute.Key("fsdoc.package")
	ProviderKey = attribute.Key("fsdoc.provider")
	StatusKey   = attribute.Key("fsdoc.status")
	ErrorKey    = attribute.Key("fsdoc.error")
)

// Tracer provides OpenTelemetry tracing and call metrics for an fsdoc package.
type Tracer struct {
	Package  string
	Provider string

	latency metric.Float64Histogram
}

type startKey struct{}

// ProviderName returns the name of the provider associated with the driver value.
// It is intended to be used to set Tracer.Provider.
// It actually returns the package path of the driver's type.
func ProviderName(driver any) string {
	if driver == nil {
		return ""
	}
	t := reflect.TypeOf(driver)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.PkgPath()
}

// NewTracer creates a new Tracer for a package and optional provider.
// Latency is recorded against the global meter provider; if the histogram
// cannot be created only spans are emitted.
func NewTracer(pkg string, provider ...string) *Tracer {
	providerName := ""
	if len(provider) > 0 && provider[0] != "" {
		providerName = provider[0]
	}
	latency, err := otel.GetMeterProvider().Meter(pkg).Float64Histogram(
		pkg+".latency",
		metric.WithDescription("Latency of method call in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		latency = nil
	}
	return &Tracer{
		Package:  pkg,
		Provider: providerName,
		latency:  latency,
	}
}

// Start creates and starts a new span and returns the updated context and span.
func (t *Tracer) Start(ctx context.Context, methodName string) (context.Context, trace.Span) {
	fullName := t.Package + "." + methodName

	attrs := []attribute.KeyValue{
		PackageKey.String(t.Package),
		MethodKey.String(methodName),
	}
	if t.Provider != "" {
		attrs = append(attrs, ProviderKey.String(t.Provider))
	}
	ctx = context.WithValue(ctx, startKey{}, startInfo{method: methodName, at: time.Now()})
	return otel.Tracer(t.Package).Start(ctx, fullName, trace.WithAttributes(attrs...))
}

type startInfo struct {
	method string
	at     time.Time
}

// End completes a span with error information if applicable.
func (t *Tracer) End(span trace.Span, err error) {
	code := gcerrors.Code(err)
	if err != nil {
		span.SetAttributes(
			ErrorKey.String(err.Error()),
			StatusKey.String(fmt.Sprint(code)),
		)
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// EndCall is End plus a latency measurement for the call started with ctx.
func (t *Tracer) EndCall(ctx context.Context, span trace.Span, err error) {
	t.End(span, err)
	si, ok := ctx.Value(startKey{}).(startInfo)
	if !ok || t.latency == nil {
		return
	}
	attrs := []attribute.KeyValue{
		MethodKey.String(si.method),
		StatusKey.String(fmt.Sprint(gcerrors.Code(err))),
	}
	if t.Provider != "" {
		attrs = append(attrs, ProviderKey.String(t.Provider))
	}
	ms := float64(time.Since(si.at).Nanoseconds()) / 1e6
	t.latency.Record(ctx, ms, metric.WithAttributes(attrs...))
}
