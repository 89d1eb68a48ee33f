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

// Package driver defines interfaces to be implemented by fsdoc transports,
// which will be used by the fsdoc package to talk to the document service.
// Application code should use package fsdoc.
package driver // import "gocloud.dev/fsdoc/driver"

import (
	"context"
	"time"

	pb "cloud.google.com/go/firestore/apiv1/firestorepb"
	"github.com/googleapis/gax-go/v2"
)

// Transport carries the RPCs that the document reference operations issue.
// Each fsdoc operation makes exactly one Transport call.
//
// Errors are returned to the caller unchanged, so implementations should
// return errors carrying a gRPC status. In particular, GetDocument must
// report a missing document with codes.NotFound.
//
// The CallOptions passed to each method carry the caller's retry and timeout
// policy. Implementations that do not retry may ignore them.
type Transport interface {
	// Commit applies the writes in req atomically.
	Commit(ctx context.Context, req *pb.CommitRequest, opts ...gax.CallOption) (*pb.CommitResponse, error)

	// GetDocument reads a single document, restricted to req.Mask if set.
	GetDocument(ctx context.Context, req *pb.GetDocumentRequest, opts ...gax.CallOption) (*pb.Document, error)

	// ListCollectionIds lists the ids of the collections directly under
	// req.Parent. Errors are reported by the iterator.
	ListCollectionIds(ctx context.Context, req *pb.ListCollectionIdsRequest, opts ...gax.CallOption) CollectionIDIterator

	// As converts i to driver-specific types.
	As(i interface{}) bool

	// Close releases the transport's resources.
	Close() error
}

// CollectionIDIterator iterates over collection ids.
type CollectionIDIterator interface {
	// Next returns the next id. It returns iterator.Done from
	// google.golang.org/api/iterator when there are no more ids.
	Next() (string, error)
}

// Watcher is implemented by transports that can stream changes to documents.
// It is optional: fsdoc reports Unimplemented for OnSnapshot when the
// transport lacks it.
type Watcher interface {
	// Watch starts listening to target in database. fn is called once with the
	// current state and then on every change: doc is nil when the document
	// does not exist. When the stream fails fn is called with a non-nil error
	// and no further calls are made. stop ends the watch; fn is not called
	// after stop returns.
	Watch(ctx context.Context, database string, target *pb.Target, fn func(doc *pb.Document, readTime time.Time, err error)) (stop func(), err error)
}
