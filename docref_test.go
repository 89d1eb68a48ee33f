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
	"errors"
	"testing"
	"time"

	pb "cloud.google.com/go/firestore/apiv1/firestorepb"
	"github.com/google/go-cmp/cmp"
	"github.com/googleapis/gax-go/v2"
	"gocloud.dev/fsdoc/fieldpath"
	"gocloud.dev/fsdoc/gcerrors"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/testing/protocmp"
	"google.golang.org/protobuf/types/known/timestamppb"
)

func TestDocumentRefCreate(t *testing.T) {
	ctx := context.Background()
	ft := &fakeTransport{}
	d := newTestClient(t, ft).Doc("users/alovelace")

	wr, err := d.Create(ctx, map[string]interface{}{"first": "Ada"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !wr.UpdateTime.Equal(fakeUpdateTime) {
		t.Errorf("UpdateTime = %v, want %v", wr.UpdateTime, fakeUpdateTime)
	}
	want := &pb.CommitRequest{
		Database: "projects/project/databases/db",
		Writes: []*pb.Write{{
			Operation:       &pb.Write_Update{Update: &pb.Document{Name: testDocName, Fields: map[string]*pb.Value{"first": sval("Ada")}}},
			CurrentDocument: exists(false),
		}},
	}
	if diff := cmp.Diff([]*pb.CommitRequest{want}, ft.commitReqs, protocmp.Transform()); diff != "" {
		t.Errorf("commit requests (-want +got):\n%s", diff)
	}

	_, err = d.Create(ctx, map[string]interface{}{}, &WriteOptions{Precondition: Exists(true)})
	checkUsage(t, err, ErrInvalidPrecondition)
}

func TestDocumentRefCallPolicy(t *testing.T) {
	ctx := context.Background()
	ft := &fakeTransport{}
	d := newTestClient(t, ft).Doc("users/alovelace")
	retry := func() gax.Retryer {
		return gax.OnCodes([]codes.Code{codes.Unavailable}, gax.Backoff{})
	}
	policy := CallPolicy{Retry: retry, Timeout: 123 * time.Second}

	if _, err := d.Set(ctx, map[string]interface{}{"a": 1}, &SetOptions{CallPolicy: policy}); err != nil {
		t.Fatal(err)
	}
	if _, err := d.Update(ctx, map[string]interface{}{"a": 1}, &WriteOptions{CallPolicy: policy}); err != nil {
		t.Fatal(err)
	}
	if _, err := d.Delete(ctx, &WriteOptions{CallPolicy: policy}); err != nil {
		t.Fatal(err)
	}
	if _, err := d.Get(ctx, &GetOptions{CallPolicy: policy}); err != nil {
		t.Fatal(err)
	}
	d.Collections(ctx, &ListOptions{CallPolicy: policy})
	for i, opts := range ft.callOpts {
		if len(opts) != 2 {
			t.Errorf("call %d: got %d call options, want 2", i, len(opts))
		}
	}

	// Without a policy no options are sent.
	ft.callOpts = nil
	if _, err := d.Get(ctx, nil); err != nil {
		t.Fatal(err)
	}
	if len(ft.callOpts[0]) != 0 {
		t.Errorf("got %d call options, want 0", len(ft.callOpts[0]))
	}
}

func TestDocumentRefUpdate(t *testing.T) {
	ctx := context.Background()
	ft := &fakeTransport{}
	d := newTestClient(t, ft).Doc("users/alovelace")

	_, err := d.Update(ctx, map[string]interface{}{}, nil)
	checkUsage(t, err, ErrEmptyUpdate)
	_, err = d.Update(ctx, map[string]interface{}{"a": 1}, &WriteOptions{Precondition: Exists(true)})
	checkUsage(t, err, ErrExistsPrecondition)
	if len(ft.commitReqs) != 0 {
		t.Fatalf("invalid updates sent %d commits", len(ft.commitReqs))
	}

	ts := time.Date(2003, 7, 19, 22, 51, 41, 100022244, time.UTC)
	txn := []byte("txn")
	if _, err := d.Update(ctx, map[string]interface{}{"a.b": 1}, &WriteOptions{Precondition: LastUpdateTime(ts), Transaction: txn}); err != nil {
		t.Fatal(err)
	}
	req := ft.commitReqs[0]
	if string(req.Transaction) != "txn" {
		t.Errorf("transaction = %q", req.Transaction)
	}
	wantPC := &pb.Precondition{ConditionType: &pb.Precondition_UpdateTime{UpdateTime: timestamppb.New(ts)}}
	if diff := cmp.Diff(wantPC, req.Writes[0].CurrentDocument, protocmp.Transform()); diff != "" {
		t.Errorf("precondition: %s", diff)
	}
}

func TestDocumentRefDelete(t *testing.T) {
	ctx := context.Background()
	ft := &fakeTransport{commitResp: &pb.CommitResponse{
		WriteResults: []*pb.WriteResult{{}},
		CommitTime:   timestamppb.New(fakeCommitTime),
	}}
	d := newTestClient(t, ft).Doc("users/alovelace")
	got, err := d.Delete(ctx, &WriteOptions{Precondition: Exists(true)})
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(fakeCommitTime) {
		t.Errorf("commit time = %v, want %v", got, fakeCommitTime)
	}
	want := &pb.Write{Operation: &pb.Write_Delete{Delete: testDocName}, CurrentDocument: exists(true)}
	if diff := cmp.Diff(want, ft.commitReqs[0].Writes[0], protocmp.Transform()); diff != "" {
		t.Errorf("write: %s", diff)
	}
}

func TestDocumentRefDeleteLastUpdateTime(t *testing.T) {
	ctx := context.Background()
	ft := &fakeTransport{commitResp: &pb.CommitResponse{
		WriteResults: []*pb.WriteResult{{}},
		CommitTime:   timestamppb.New(fakeCommitTime),
	}}
	d := newTestClient(t, ft).Doc("users/alovelace")
	ts := time.Date(2003, 7, 19, 18, 51, 41, 100022244, time.UTC)
	if _, err := d.Delete(ctx, &WriteOptions{Precondition: LastUpdateTime(ts)}); err != nil {
		t.Fatal(err)
	}
	want := &pb.Precondition{ConditionType: &pb.Precondition_UpdateTime{
		UpdateTime: &timestamppb.Timestamp{Seconds: ts.Unix(), Nanos: 100022244},
	}}
	if diff := cmp.Diff(want, ft.commitReqs[0].Writes[0].CurrentDocument, protocmp.Transform()); diff != "" {
		t.Errorf("precondition: %s", diff)
	}
}

func TestDocumentRefDeleteNoCommitTime(t *testing.T) {
	ft := &fakeTransport{commitResp: &pb.CommitResponse{WriteResults: []*pb.WriteResult{{}}}}
	d := newTestClient(t, ft).Doc("users/alovelace")
	got, err := d.Delete(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if !got.IsZero() {
		t.Errorf("commit time = %v, want zero", got)
	}
}

func TestDocumentRefTransportErrorUnchanged(t *testing.T) {
	ctx := context.Background()
	terr := status.Error(codes.AlreadyExists, "exists")
	d := newTestClient(t, &fakeTransport{err: terr}).Doc("users/alovelace")
	_, err := d.Create(ctx, map[string]interface{}{"a": 1}, nil)
	if err != terr {
		t.Errorf("got %v, want the transport error unchanged", err)
	}
	if gcerrors.Code(err) != gcerrors.AlreadyExists {
		t.Errorf("code = %v", gcerrors.Code(err))
	}
}

func TestDocumentRefNoWriteResults(t *testing.T) {
	ft := &fakeTransport{commitResp: &pb.CommitResponse{CommitTime: timestamppb.New(fakeCommitTime)}}
	d := newTestClient(t, ft).Doc("users/alovelace")
	_, err := d.Set(context.Background(), map[string]interface{}{"a": 1}, nil)
	if gcerrors.Code(err) != gcerrors.Internal {
		t.Errorf("got %v, want Internal", err)
	}
}

func TestDocumentRefGet(t *testing.T) {
	ctx := context.Background()
	ct := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	ut := time.Date(2020, 2, 1, 0, 0, 0, 0, time.UTC)
	ft := &fakeTransport{getResp: &pb.Document{
		Name:       testDocName,
		Fields:     map[string]*pb.Value{"foo": sval("bar"), "bar": mval(map[string]*pb.Value{"baz": intval(1)})},
		CreateTime: timestamppb.New(ct),
		UpdateTime: timestamppb.New(ut),
	}}
	d := newTestClient(t, ft).Doc("users/alovelace")

	snap, err := d.Get(ctx, &GetOptions{FieldPaths: []string{"foo", "bar.baz"}, Transaction: []byte("t")})
	if err != nil {
		t.Fatal(err)
	}
	wantReq := &pb.GetDocumentRequest{
		Name:                testDocName,
		Mask:                &pb.DocumentMask{FieldPaths: []string{"bar.baz", "foo"}},
		ConsistencySelector: &pb.GetDocumentRequest_Transaction{Transaction: []byte("t")},
	}
	if diff := cmp.Diff(wantReq, ft.getReqs[0], protocmp.Transform()); diff != "" {
		t.Errorf("request: %s", diff)
	}
	if !snap.Exists() || !snap.CreateTime.Equal(ct) || !snap.UpdateTime.Equal(ut) {
		t.Errorf("snapshot: exists=%t create=%v update=%v", snap.Exists(), snap.CreateTime, snap.UpdateTime)
	}
	if !snap.Ref.Equal(d) {
		t.Errorf("Ref = %v, want %v", snap.Ref, d)
	}
	v, err := snap.DataAt("bar.baz")
	if err != nil || v != int64(1) {
		t.Errorf("DataAt(bar.baz) = %v, %v", v, err)
	}

	// A bare string is rejected before any RPC.
	ft.getReqs = nil
	_, err = d.Get(ctx, &GetOptions{FieldPaths: "foo"})
	checkUsage(t, err, ErrFieldPathsNotList)
	if len(ft.getReqs) != 0 {
		t.Error("bare string field paths sent an RPC")
	}

	// So is an empty path.
	_, err = d.Get(ctx, &GetOptions{FieldPaths: []fieldpath.Path{{}}})
	var se *fieldpath.SyntaxError
	if !errors.As(err, &se) || gcerrors.Code(err) != gcerrors.InvalidArgument {
		t.Errorf("empty path: got %v, want InvalidArgument *fieldpath.SyntaxError", err)
	}
	if len(ft.getReqs) != 0 {
		t.Error("empty field path sent an RPC")
	}
}

func TestDocumentRefGetNotFound(t *testing.T) {
	ft := &fakeTransport{err: status.Error(codes.NotFound, "missing")}
	d := newTestClient(t, ft).Doc("users/alovelace")
	snap, err := d.Get(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if snap.Exists() {
		t.Error("Exists() = true, want false")
	}
	data, err := snap.Data()
	if data != nil || err != nil {
		t.Errorf("Data() = %v, %v; want nil, nil", data, err)
	}
	if !snap.CreateTime.IsZero() || !snap.UpdateTime.IsZero() {
		t.Error("times of a missing document should be zero")
	}
	if !snap.Ref.Equal(d) {
		t.Error("Ref of a missing document should be set")
	}

	ft.err = status.Error(codes.PermissionDenied, "no")
	if _, err := d.Get(context.Background(), nil); gcerrors.Code(err) != gcerrors.PermissionDenied {
		t.Errorf("got %v, want PermissionDenied", err)
	}
}

func TestDocumentRefCollections(t *testing.T) {
	ft := &fakeTransport{collections: []string{"platform", "posts"}}
	d := newTestClient(t, ft).Doc("users/alovelace")
	it := d.Collections(context.Background(), &ListOptions{PageSize: 10})
	colls, err := it.GetAll()
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, c := range colls {
		if !c.Parent().Equal(d) {
			t.Errorf("%s: parent = %v, want %v", c.ID(), c.Parent(), d)
		}
		got = append(got, c.Path())
	}
	if diff := cmp.Diff([]string{"users/alovelace/platform", "users/alovelace/posts"}, got); diff != "" {
		t.Error(diff)
	}
	wantReq := &pb.ListCollectionIdsRequest{Parent: testDocName, PageSize: 10}
	if diff := cmp.Diff(wantReq, ft.listReqs[0], protocmp.Transform()); diff != "" {
		t.Errorf("request: %s", diff)
	}
	if _, err := it.Next(); err != iterator.Done {
		t.Errorf("after end: got %v, want iterator.Done", err)
	}
}

func TestDocumentRefCollectionsBadID(t *testing.T) {
	ft := &fakeTransport{collections: []string{"ok", "bad/id"}}
	d := newTestClient(t, ft).Doc("users/alovelace")
	it := d.Collections(context.Background(), nil)
	if c, err := it.Next(); err != nil || c.ID() != "ok" {
		t.Fatalf("first: got %v, %v", c, err)
	}
	c, err := it.Next()
	if c != nil || gcerrors.Code(err) != gcerrors.Internal {
		t.Errorf("bad id: got %v, %v; want nil, Internal", c, err)
	}
	if _, err2 := it.Next(); err2 != err {
		t.Errorf("after error: got %v, want %v", err2, err)
	}
}

func TestDocumentRefOnSnapshot(t *testing.T) {
	ctx := context.Background()
	d := newTestClient(t, &fakeTransport{}).Doc("users/alovelace")
	_, err := d.OnSnapshot(ctx, func(*DocumentSnapshot, error) {})
	if gcerrors.Code(err) != gcerrors.Unimplemented {
		t.Errorf("got %v, want Unimplemented", err)
	}

	fw := &fakeWatcher{}
	c, err := NewClient(fw, "project", &ClientOptions{DatabaseID: "db"})
	if err != nil {
		t.Fatal(err)
	}
	d = c.Doc("users/alovelace")
	var snaps []*DocumentSnapshot
	stop, err := d.OnSnapshot(ctx, func(s *DocumentSnapshot, err error) {
		if err != nil {
			t.Errorf("unexpected error: %v", err)
			return
		}
		snaps = append(snaps, s)
	})
	if err != nil {
		t.Fatal(err)
	}
	wantTarget := &pb.Target{
		TargetType: &pb.Target_Documents{Documents: &pb.Target_DocumentsTarget{Documents: []string{testDocName}}},
		TargetId:   watchTargetID,
	}
	if diff := cmp.Diff(wantTarget, fw.target, protocmp.Transform()); diff != "" {
		t.Errorf("target: %s", diff)
	}
	if fw.database != "projects/project/databases/db" {
		t.Errorf("database = %q", fw.database)
	}
	fw.fn(nil, fakeCommitTime, nil)
	fw.fn(&pb.Document{Name: testDocName, Fields: map[string]*pb.Value{"a": intval(1)}}, fakeCommitTime, nil)
	if len(snaps) != 2 || snaps[0].Exists() || !snaps[1].Exists() || !snaps[1].ReadTime.Equal(fakeCommitTime) {
		t.Errorf("unexpected snapshots: %+v", snaps)
	}
	stop()
	if !fw.stopped {
		t.Error("stop did not reach the watcher")
	}

	var gotErr error
	if _, err := d.OnSnapshot(ctx, func(_ *DocumentSnapshot, err error) { gotErr = err }); err != nil {
		t.Fatal(err)
	}
	streamErr := errors.New("stream broke")
	fw.fn(nil, time.Time{}, streamErr)
	if gotErr != streamErr {
		t.Errorf("got %v, want stream error", gotErr)
	}
}
