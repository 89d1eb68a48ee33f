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

package fsdoc

import (
	"context"
	"testing"

	pb "cloud.google.com/go/firestore/apiv1/firestorepb"
	"gocloud.dev/fsdoc/gcerrors"
	"gocloud.dev/fsdoc/internal/otel"
	"gocloud.dev/fsdoc/internal/testing/oteltest"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/timestamppb"
)

func TestOpenTelemetry(t *testing.T) {
	ctx := context.Background()
	te := oteltest.NewTestExporter()
	defer te.Shutdown(ctx)

	ft := &fakeTransport{getResp: &pb.Document{
		Name:       testDocName,
		CreateTime: timestamppb.New(fakeUpdateTime),
		UpdateTime: timestamppb.New(fakeUpdateTime),
	}}
	d := newTestClient(t, ft).Doc("users/alovelace")

	if _, err := d.Get(ctx, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := d.Update(ctx, map[string]interface{}{}, nil); err == nil {
		t.Fatal("empty update: got nil error")
	}
	ft.err = status.Error(codes.PermissionDenied, "denied")
	if _, err := d.Set(ctx, map[string]interface{}{"a": 1}, nil); err == nil {
		t.Fatal("Set: got nil error")
	}

	metrics, err := te.Metrics(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := []oteltest.Call{
		{Method: "DocumentRef.Get", Code: gcerrors.OK},
		{Method: "DocumentRef.Update", Code: gcerrors.InvalidArgument},
		{Method: "DocumentRef.Set", Code: gcerrors.PermissionDenied},
	}
	if diff := oteltest.Diff(te.Spans(), metrics, pkgName, otel.ProviderName(ft), want); diff != "" {
		t.Error(diff)
	}
}
