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
	"errors"
	"fmt"
	"strings"

	pb "cloud.google.com/go/firestore/apiv1/firestorepb"
	"go.uber.org/zap"
	"gocloud.dev/fsdoc/driver"
	"gocloud.dev/fsdoc/internal/gcerr"
	"gocloud.dev/fsdoc/internal/otel"
)

// DefaultDatabaseID is the id of a project's default database.
const DefaultDatabaseID = "(default)"

const pkgName = "gocloud.dev/fsdoc"

// A Client addresses one database through a Transport. It is safe for
// concurrent use.
type Client struct {
	transport  driver.Transport
	projectID  string
	databaseID string
	logger     *zap.Logger
	tracer     *otel.Tracer
}

// ClientOptions controls NewClient.
type ClientOptions struct {
	// DatabaseID selects the database. It defaults to DefaultDatabaseID.
	DatabaseID string

	// Logger receives debug entries for every RPC. If nil, nothing is logged.
	Logger *zap.Logger
}

// NewClient returns a Client for the given project that sends RPCs over t.
// The Client takes ownership of t; Close closes it.
func NewClient(t driver.Transport, projectID string, opts *ClientOptions) (*Client, error) {
	if t == nil {
		return nil, gcerr.Newf(gcerr.InvalidArgument, nil, "fsdoc: nil transport")
	}
	if projectID == "" {
		return nil, gcerr.Newf(gcerr.InvalidArgument, nil, "fsdoc: empty project ID")
	}
	if opts == nil {
		opts = &ClientOptions{}
	}
	c := &Client{
		transport:  t,
		projectID:  projectID,
		databaseID: opts.DatabaseID,
		logger:     opts.Logger,
		tracer:     otel.NewTracer(pkgName, otel.ProviderName(t)),
	}
	if c.databaseID == "" {
		c.databaseID = DefaultDatabaseID
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	c.logger = c.logger.With(zap.String("database", c.databaseName()))
	return c, nil
}

// Close closes the underlying transport.
func (c *Client) Close() error {
	return c.transport.Close()
}

// As converts i to driver-specific types. See the transport package's
// documentation for the supported types.
func (c *Client) As(i interface{}) bool {
	if i == nil {
		return false
	}
	return c.transport.As(i)
}

// databaseName is the resource name "projects/P/databases/D".
func (c *Client) databaseName() string {
	return fmt.Sprintf("projects/%s/databases/%s", c.projectID, c.databaseID)
}

// documentsRoot is the parent of every top-level collection.
func (c *Client) documentsRoot() string {
	return c.databaseName() + "/documents"
}

// Collection returns a reference to the collection at the slash-separated
// path, such as "users" or "users/alovelace/platforms". It returns nil if the
// path is malformed or names a document.
func (c *Client) Collection(path string) *CollectionRef {
	ids, ok := splitPath(path)
	if !ok || len(ids)%2 == 0 {
		return nil
	}
	return c.collectionFromIDs(ids)
}

// Doc returns a reference to the document at the slash-separated path, such as
// "users/alovelace". It returns nil if the path is malformed or names a
// collection.
func (c *Client) Doc(path string) *DocumentRef {
	ids, ok := splitPath(path)
	if !ok || len(ids)%2 != 0 {
		return nil
	}
	return c.collectionFromIDs(ids[:len(ids)-1]).Doc(ids[len(ids)-1])
}

func splitPath(path string) ([]string, bool) {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil, false
	}
	ids := strings.Split(path, "/")
	for _, id := range ids {
		if id == "" {
			return nil, false
		}
	}
	return ids, true
}

// collectionFromIDs builds a collection from alternating collection and
// document ids, which must be of odd length.
func (c *Client) collectionFromIDs(ids []string) *CollectionRef {
	coll := &CollectionRef{client: c, id: ids[0]}
	for i := 1; i+1 < len(ids); i += 2 {
		coll = coll.Doc(ids[i]).Collection(ids[i+1])
	}
	return coll
}

var errBadReference = errors.New("fsdoc: bad document reference")

// docRefFromName parses a full document resource name in this client's
// database.
func (c *Client) docRefFromName(name string) (*DocumentRef, error) {
	prefix := c.documentsRoot() + "/"
	if !strings.HasPrefix(name, prefix) {
		return nil, gcerr.Newf(gcerr.InvalidArgument, errBadReference, "fsdoc: reference %q is not in database %s", name, c.databaseName())
	}
	d := c.Doc(strings.TrimPrefix(name, prefix))
	if d == nil {
		return nil, gcerr.Newf(gcerr.InvalidArgument, errBadReference, "fsdoc: reference %q does not name a document", name)
	}
	return d, nil
}

func (c *Client) commitRequest(w *pb.Write, txn []byte) *pb.CommitRequest {
	return &pb.CommitRequest{
		Database:    c.databaseName(),
		Writes:      []*pb.Write{w},
		Transaction: txn,
	}
}
