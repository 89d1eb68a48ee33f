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
	"time"

	pb "cloud.google.com/go/firestore/apiv1/firestorepb"
	"github.com/googleapis/gax-go/v2"
	"gocloud.dev/fsdoc/driver"
	"google.golang.org/api/iterator"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// fakeTransport records requests and returns canned responses.
type fakeTransport struct {
	commitReqs  []*pb.CommitRequest
	getReqs     []*pb.GetDocumentRequest
	listReqs    []*pb.ListCollectionIdsRequest
	callOpts    [][]gax.CallOption
	commitResp  *pb.CommitResponse
	getResp     *pb.Document
	err         error
	collections []string
	closed      bool
}

var (
	fakeCommitTime = time.Date(2021, 3, 4, 5, 6, 7, 8000, time.UTC)
	fakeUpdateTime = time.Date(2021, 3, 4, 5, 6, 7, 0, time.UTC)
)

func (f *fakeTransport) Commit(_ context.Context, req *pb.CommitRequest, opts ...gax.CallOption) (*pb.CommitResponse, error) {
	f.commitReqs = append(f.commitReqs, req)
	f.callOpts = append(f.callOpts, opts)
	if f.err != nil {
		return nil, f.err
	}
	if f.commitResp != nil {
		return f.commitResp, nil
	}
	return &pb.CommitResponse{
		WriteResults: []*pb.WriteResult{{UpdateTime: timestamppb.New(fakeUpdateTime)}},
		CommitTime:   timestamppb.New(fakeCommitTime),
	}, nil
}

func (f *fakeTransport) GetDocument(_ context.Context, req *pb.GetDocumentRequest, opts ...gax.CallOption) (*pb.Document, error) {
	f.getReqs = append(f.getReqs, req)
	f.callOpts = append(f.callOpts, opts)
	if f.err != nil {
		return nil, f.err
	}
	return f.getResp, nil
}

func (f *fakeTransport) ListCollectionIds(_ context.Context, req *pb.ListCollectionIdsRequest, opts ...gax.CallOption) driver.CollectionIDIterator {
	f.listReqs = append(f.listReqs, req)
	f.callOpts = append(f.callOpts, opts)
	return &sliceIter{ids: f.collections, err: f.err}
}

func (f *fakeTransport) As(i interface{}) bool {
	p, ok := i.(**fakeTransport)
	if !ok {
		return false
	}
	*p = f
	return true
}

func (f *fakeTransport) Close() error {
	f.closed = true
	return nil
}

type sliceIter struct {
	ids []string
	err error
}

func (s *sliceIter) Next() (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if len(s.ids) == 0 {
		return "", iterator.Done
	}
	id := s.ids[0]
	s.ids = s.ids[1:]
	return id, nil
}

// fakeWatcher adds driver.Watcher to fakeTransport.
type fakeWatcher struct {
	fakeTransport
	target   *pb.Target
	database string
	fn       func(*pb.Document, time.Time, error)
	stopped  bool
}

func (w *fakeWatcher) Watch(_ context.Context, database string, target *pb.Target, fn func(*pb.Document, time.Time, error)) (func(), error) {
	w.database = database
	w.target = target
	w.fn = fn
	return func() { w.stopped = true }, nil
}

func newTestClient(t *testing.T, tr *fakeTransport) *Client {
	t.Helper()
	c, err := NewClient(tr, "project", &ClientOptions{DatabaseID: "db"})
	if err != nil {
		t.Fatal(err)
	}
	return c
}

const testDocName = "projects/project/databases/db/documents/users/alovelace"
