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
	"strings"

	"github.com/google/uuid"
)

// A CollectionRef is a reference to a collection of documents. It is
// immutable and safe for concurrent use.
type CollectionRef struct {
	client *Client
	parent *DocumentRef // nil for a top-level collection
	id     string
}

// ID returns the collection's id, the last component of its path.
func (c *CollectionRef) ID() string { return c.id }

// Parent returns the document containing c, or nil if c is a top-level
// collection.
func (c *CollectionRef) Parent() *DocumentRef { return c.parent }

// Path returns the slash-separated path of c relative to the database, such as
// "users/alovelace/platforms".
func (c *CollectionRef) Path() string {
	if c.parent == nil {
		return c.id
	}
	return c.parent.Path() + "/" + c.id
}

// Name returns the full resource name of c.
func (c *CollectionRef) Name() string {
	return c.client.documentsRoot() + "/" + c.Path()
}

// Equal reports whether c and d refer to the same collection.
func (c *CollectionRef) Equal(d *CollectionRef) bool {
	if c == nil || d == nil {
		return c == d
	}
	return c.client.databaseName() == d.client.databaseName() && c.Path() == d.Path()
}

func (c *CollectionRef) String() string { return c.Path() }

// Doc returns a reference to the document in c with the given id. It returns
// nil if id is empty or contains a slash.
func (c *CollectionRef) Doc(id string) *DocumentRef {
	if id == "" || strings.Contains(id, "/") {
		return nil
	}
	return &DocumentRef{parent: c, id: id}
}

// NewDoc returns a reference to a document in c with a randomly generated id.
func (c *CollectionRef) NewDoc() *DocumentRef {
	return c.Doc(strings.ReplaceAll(uuid.NewString(), "-", ""))
}

// Add creates a document in c with a generated id and the given data.
func (c *CollectionRef) Add(ctx context.Context, data map[string]interface{}, opts *WriteOptions) (*DocumentRef, *WriteResult, error) {
	d := c.NewDoc()
	wr, err := d.Create(ctx, data, opts)
	if err != nil {
		return nil, nil, err
	}
	return d, wr, nil
}
