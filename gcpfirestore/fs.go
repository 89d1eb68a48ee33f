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

// Package gcpfirestore provides a fsdoc transport backed by Google Cloud
// Firestore. Use NewTransport to construct a driver.Transport from a
// *firestore.Client, or OpenClient to get a *fsdoc.Client directly.
//
// The transport does not implement driver.Watcher, so DocumentRef.OnSnapshot
// reports Unimplemented.
//
// # URLs
//
// For fsdoc.OpenClient, gcpfirestore registers for the scheme "firestore".
// The default URL opener will create a connection using default credentials
// from the environment, as described in
// https://cloud.google.com/docs/authentication/production.
// To customize the URL opener, or for more details on the URL format,
// see URLOpener.
//
// # Emulator
//
// If the FIRESTORE_EMULATOR_HOST environment variable is set, Dial connects
// to the emulator at that address without credentials.
//
// # As
//
// gcpfirestore exposes the following types for As functions.
// The firestore package is cloud.google.com/go/firestore/apiv1.
//   - Client.As: *firestore.Client
package gcpfirestore // import "gocloud.dev/fsdoc/gcpfirestore"

import (
	"context"
	"os"
	"strings"

	vkit "cloud.google.com/go/firestore/apiv1"
	pb "cloud.google.com/go/firestore/apiv1/firestorepb"
	"github.com/google/wire"
	"github.com/googleapis/gax-go/v2"
	"go.uber.org/zap"
	"gocloud.dev/fsdoc"
	"gocloud.dev/fsdoc/driver"
	"gocloud.dev/fsdoc/internal/useragent"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

// Dial returns a client to use with Firestore and a clean-up function to close
// the client after used.
// If the 'FIRESTORE_EMULATOR_HOST' environment variable is set the client connects
// to the GCP firestore emulator by overriding the default endpoint.
func Dial(ctx context.Context, ts oauth2.TokenSource) (*vkit.Client, func(), error) {
	opts := []option.ClientOption{
		useragent.ClientOption("fsdoc"),
	}
	if host := os.Getenv("FIRESTORE_EMULATOR_HOST"); host != "" {
		conn, err := grpc.NewClient(host, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts,
			option.WithEndpoint(host),
			option.WithGRPCConn(conn),
		)
	} else {
		opts = append(opts, option.WithTokenSource(ts))
	}
	c, err := vkit.NewClient(ctx, opts...)
	if err != nil {
		return nil, nil, err
	}
	return c, func() { c.Close() }, nil
}

// Set holds Wire providers for this package.
var Set = wire.NewSet(
	Dial,
	NewTransport,
	wire.Struct(new(URLOpener), "Client"),
)

// Transport is a driver.Transport that sends RPCs to Firestore.
type Transport struct {
	client *vkit.Client
}

var _ driver.Transport = (*Transport)(nil)

// NewTransport returns a Transport using client. Closing the Transport does
// not close client.
func NewTransport(client *vkit.Client) *Transport {
	return &Transport{client: client}
}

// OpenClient returns a fsdoc.Client for the project and database that sends
// RPCs through client. An empty databaseID selects the default database.
func OpenClient(client *vkit.Client, projectID, databaseID string, logger *zap.Logger) (*fsdoc.Client, error) {
	return fsdoc.NewClient(NewTransport(client), projectID, &fsdoc.ClientOptions{
		DatabaseID: databaseID,
		Logger:     logger,
	})
}

// Commit implements driver.Transport.Commit.
func (t *Transport) Commit(ctx context.Context, req *pb.CommitRequest, opts ...gax.CallOption) (*pb.CommitResponse, error) {
	return t.client.Commit(withResourceHeader(ctx, req.GetDatabase()), req, opts...)
}

// GetDocument implements driver.Transport.GetDocument.
func (t *Transport) GetDocument(ctx context.Context, req *pb.GetDocumentRequest, opts ...gax.CallOption) (*pb.Document, error) {
	return t.client.GetDocument(withResourceHeader(ctx, databaseOf(req.GetName())), req, opts...)
}

// ListCollectionIds implements driver.Transport.ListCollectionIds.
func (t *Transport) ListCollectionIds(ctx context.Context, req *pb.ListCollectionIdsRequest, opts ...gax.CallOption) driver.CollectionIDIterator {
	return t.client.ListCollectionIds(withResourceHeader(ctx, databaseOf(req.GetParent())), req, opts...)
}

// As implements driver.Transport.As.
func (t *Transport) As(i interface{}) bool {
	p, ok := i.(**vkit.Client)
	if !ok {
		return false
	}
	*p = t.client
	return true
}

// Close implements driver.Transport.Close. The client belongs to the caller,
// so Close does nothing.
func (t *Transport) Close() error { return nil }

// databaseOf returns the database part, "projects/P/databases/D", of a
// document or documents-root resource name.
func databaseOf(name string) string {
	if i := strings.Index(name, "/documents"); i >= 0 {
		return name[:i]
	}
	return name
}

// resourcePrefixHeader is the name of the metadata header used to indicate
// the resource being operated on.
const resourcePrefixHeader = "google-cloud-resource-prefix"

// withResourceHeader returns a new context that includes resource in a special header.
// Firestore uses the resource header for routing.
func withResourceHeader(ctx context.Context, resource string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	md[resourcePrefixHeader] = []string{resource}
	return metadata.NewOutgoingContext(ctx, md)
}
