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

package memfirestore

import (
	"context"

	pb "cloud.google.com/go/firestore/apiv1/firestorepb"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc"
)

// RegisterServer registers t on s as a Firestore gRPC service. Only the
// Commit, GetDocument and ListCollectionIds methods are implemented; the
// others return Unimplemented. This lets clients that speak the Firestore
// protocol, such as gcpfirestore, run against a Transport.
func RegisterServer(s *grpc.Server, t *Transport) {
	pb.RegisterFirestoreServer(s, &server{t: t})
}

type server struct {
	pb.UnimplementedFirestoreServer
	t *Transport
}

func (s *server) Commit(ctx context.Context, req *pb.CommitRequest) (*pb.CommitResponse, error) {
	return s.t.Commit(ctx, req)
}

func (s *server) GetDocument(ctx context.Context, req *pb.GetDocumentRequest) (*pb.Document, error) {
	return s.t.GetDocument(ctx, req)
}

// defaultPageSize bounds ListCollectionIds pages when the request sets no
// page size.
const defaultPageSize = 300

// ListCollectionIds returns a page of ids. The page token is the last id of
// the previous page.
func (s *server) ListCollectionIds(ctx context.Context, req *pb.ListCollectionIdsRequest) (*pb.ListCollectionIdsResponse, error) {
	size := int(req.GetPageSize())
	if size <= 0 {
		size = defaultPageSize
	}
	it := s.t.ListCollectionIds(ctx, req)
	res := &pb.ListCollectionIdsResponse{}
	for {
		id, err := it.Next()
		if err == iterator.Done {
			return res, nil
		}
		if err != nil {
			return nil, err
		}
		if id <= req.GetPageToken() {
			continue
		}
		if len(res.CollectionIds) == size {
			res.NextPageToken = res.CollectionIds[size-1]
			return res, nil
		}
		res.CollectionIds = append(res.CollectionIds, id)
	}
}
