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
	"strings"
	"time"

	pb "cloud.google.com/go/firestore/apiv1/firestorepb"
	"go.uber.org/zap"
	"gocloud.dev/fsdoc/driver"
	"gocloud.dev/fsdoc/fieldpath"
	"gocloud.dev/fsdoc/internal/gcerr"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// A DocumentRef is a reference to a document, which may or may not exist. It
// is immutable and safe for concurrent use.
type DocumentRef struct {
	parent *CollectionRef
	id     string
}

// WriteResult is returned by a successful write.
type WriteResult struct {
	// UpdateTime is the time at which the document was updated.
	UpdateTime time.Time
}

// watchTargetID identifies the single target of a document watch.
const watchTargetID int32 = 'f'<<8 | 's'

// ID returns the document's id, the last component of its path.
func (d *DocumentRef) ID() string { return d.id }

// Parent returns the collection containing d.
func (d *DocumentRef) Parent() *CollectionRef { return d.parent }

// Path returns the slash-separated path of d relative to the database, such as
// "users/alovelace".
func (d *DocumentRef) Path() string { return d.parent.Path() + "/" + d.id }

// Name returns the full resource name of d,
// "projects/P/databases/D/documents/...".
func (d *DocumentRef) Name() string { return d.parent.Name() + "/" + d.id }

// Collection returns a reference to the subcollection of d with the given id.
// It returns nil if id is empty or contains a slash.
func (d *DocumentRef) Collection(id string) *CollectionRef {
	if id == "" || strings.Contains(id, "/") {
		return nil
	}
	return &CollectionRef{client: d.client(), parent: d, id: id}
}

// Equal reports whether d and e refer to the same document.
func (d *DocumentRef) Equal(e *DocumentRef) bool {
	if d == nil || e == nil {
		return d == e
	}
	return d.parent.Equal(e.parent) && d.id == e.id
}

func (d *DocumentRef) String() string { return d.Path() }

func (d *DocumentRef) client() *Client { return d.parent.client }

// Create creates the document with the given data. It fails if the document
// already exists. Transforms other than Delete may appear in data.
func (d *DocumentRef) Create(ctx context.Context, data map[string]interface{}, opts *WriteOptions) (_ *WriteResult, err error) {
	c := d.client()
	ctx, span := c.tracer.Start(ctx, "DocumentRef.Create")
	defer func() { c.tracer.EndCall(ctx, span, err) }()

	if opts != nil && opts.Precondition != nil {
		return nil, usageErrorf(ErrInvalidPrecondition, "fsdoc: Create does not accept a precondition")
	}
	w, err := createWrite(d.Name(), data)
	if err != nil {
		return nil, err
	}
	return d.commit(ctx, "create", w, writeTxn(opts), writePolicy(opts))
}

// Set replaces the document with data, creating it if necessary. With
// MergeAll or Merge in opts, the data is merged into the stored document
// instead, and Delete may be used.
func (d *DocumentRef) Set(ctx context.Context, data map[string]interface{}, opts *SetOptions) (_ *WriteResult, err error) {
	c := d.client()
	ctx, span := c.tracer.Start(ctx, "DocumentRef.Set")
	defer func() { c.tracer.EndCall(ctx, span, err) }()

	var (
		mergeAll bool
		merge    []fieldpath.Path
		txn      []byte
		policy   *CallPolicy
	)
	if opts != nil {
		if opts.MergeAll && opts.Merge != nil {
			return nil, usageErrorf(ErrMergeField, "fsdoc: MergeAll and Merge are mutually exclusive")
		}
		mergeAll = opts.MergeAll
		if opts.Merge != nil {
			if merge, err = mergePaths(opts.Merge); err != nil {
				return nil, err
			}
		}
		txn = opts.Transaction
		policy = &opts.CallPolicy
	}
	w, err := setWrite(d.Name(), data, mergeAll, merge)
	if err != nil {
		return nil, err
	}
	return d.commit(ctx, "set", w, txn, policy)
}

// Update changes the fields named by the keys of updates, which are dotted
// field paths (see fieldpath.Parse). Fields whose value is Delete are
// removed. The document must exist, unless opts has a LastUpdateTime
// precondition, which then replaces the existence check.
func (d *DocumentRef) Update(ctx context.Context, updates map[string]interface{}, opts *WriteOptions) (_ *WriteResult, err error) {
	c := d.client()
	ctx, span := c.tracer.Start(ctx, "DocumentRef.Update")
	defer func() { c.tracer.EndCall(ctx, span, err) }()

	var pc Precondition
	if opts != nil {
		pc = opts.Precondition
	}
	w, err := updateWrite(d.Name(), updates, pc)
	if err != nil {
		return nil, err
	}
	return d.commit(ctx, "update", w, writeTxn(opts), writePolicy(opts))
}

// Delete deletes the document. Deleting a missing document succeeds unless a
// precondition says otherwise. It returns the commit time.
func (d *DocumentRef) Delete(ctx context.Context, opts *WriteOptions) (_ time.Time, err error) {
	c := d.client()
	ctx, span := c.tracer.Start(ctx, "DocumentRef.Delete")
	defer func() { c.tracer.EndCall(ctx, span, err) }()

	var pc Precondition
	if opts != nil {
		pc = opts.Precondition
	}
	res, err := d.commitRPC(ctx, "delete", deleteWrite(d.Name(), pc), writeTxn(opts), writePolicy(opts))
	if err != nil {
		return time.Time{}, err
	}
	if ct := res.GetCommitTime(); ct != nil {
		return ct.AsTime(), nil
	}
	return time.Time{}, nil
}

func (d *DocumentRef) commit(ctx context.Context, op string, w *pb.Write, txn []byte, policy *CallPolicy) (*WriteResult, error) {
	res, err := d.commitRPC(ctx, op, w, txn, policy)
	if err != nil {
		return nil, err
	}
	if len(res.GetWriteResults()) == 0 {
		return nil, gcerr.Newf(gcerr.Internal, nil, "fsdoc: commit of %s returned no write results", d.Path())
	}
	wr := &WriteResult{}
	if ut := res.WriteResults[0].GetUpdateTime(); ut != nil {
		wr.UpdateTime = ut.AsTime()
	}
	return wr, nil
}

func (d *DocumentRef) commitRPC(ctx context.Context, op string, w *pb.Write, txn []byte, policy *CallPolicy) (*pb.CommitResponse, error) {
	c := d.client()
	req := c.commitRequest(w, txn)
	c.logger.Debug("commit",
		zap.String("op", op),
		zap.String("document", d.Path()),
		zap.Strings("mask", w.GetUpdateMask().GetFieldPaths()),
		zap.Int("transforms", len(w.GetUpdateTransforms())),
		zap.Bool("transaction", len(txn) > 0))
	res, err := c.transport.Commit(ctx, req, policy.callOptions()...)
	if err != nil {
		c.logger.Debug("commit failed", zap.String("document", d.Path()), zap.Error(err))
		return nil, err
	}
	return res, nil
}

func writeTxn(opts *WriteOptions) []byte {
	if opts == nil {
		return nil
	}
	return opts.Transaction
}

func writePolicy(opts *WriteOptions) *CallPolicy {
	if opts == nil {
		return nil
	}
	return &opts.CallPolicy
}

// Get reads the document. A missing document is not an error: the returned
// snapshot's Exists reports false.
func (d *DocumentRef) Get(ctx context.Context, opts *GetOptions) (_ *DocumentSnapshot, err error) {
	c := d.client()
	ctx, span := c.tracer.Start(ctx, "DocumentRef.Get")
	defer func() { c.tracer.EndCall(ctx, span, err) }()

	req := &pb.GetDocumentRequest{Name: d.Name()}
	var policy *CallPolicy
	if opts != nil {
		if opts.FieldPaths != nil {
			paths, err := fieldpath.FromInterfaces(opts.FieldPaths)
			if err != nil {
				if errors.Is(err, fieldpath.ErrNotList) {
					return nil, usageErrorf(ErrFieldPathsNotList, "fsdoc: GetOptions.FieldPaths is the string %q; use a []string", opts.FieldPaths)
				}
				return nil, invalidArg(err)
			}
			fieldpath.Sort(paths)
			req.Mask = &pb.DocumentMask{FieldPaths: fieldpath.Strings(paths)}
		}
		if opts.Transaction != nil {
			req.ConsistencySelector = &pb.GetDocumentRequest_Transaction{Transaction: opts.Transaction}
		}
		policy = &opts.CallPolicy
	}
	c.logger.Debug("get document",
		zap.String("document", d.Path()),
		zap.Strings("mask", req.GetMask().GetFieldPaths()))
	doc, err := c.transport.GetDocument(ctx, req, policy.callOptions()...)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return newMissingSnapshot(d, time.Time{}), nil
		}
		return nil, err
	}
	return newSnapshot(d, doc, time.Time{}), nil
}

// Collections returns an iterator over the subcollections of d.
func (d *DocumentRef) Collections(ctx context.Context, opts *ListOptions) *CollectionIterator {
	c := d.client()
	ctx, span := c.tracer.Start(ctx, "DocumentRef.Collections")
	defer func() { c.tracer.EndCall(ctx, span, nil) }()

	req := &pb.ListCollectionIdsRequest{Parent: d.Name()}
	var policy *CallPolicy
	if opts != nil {
		req.PageSize = opts.PageSize
		policy = &opts.CallPolicy
	}
	c.logger.Debug("list collection ids", zap.String("document", d.Path()), zap.Int32("page_size", req.PageSize))
	return &CollectionIterator{
		parent: d,
		it:     c.transport.ListCollectionIds(ctx, req, policy.callOptions()...),
	}
}

// CollectionIterator iterates over the subcollections of a document.
type CollectionIterator struct {
	parent *DocumentRef
	it     driver.CollectionIDIterator
	err    error
}

// Next returns the next collection. It returns iterator.Done when there are no
// more.
func (it *CollectionIterator) Next() (*CollectionRef, error) {
	if it.err != nil {
		return nil, it.err
	}
	id, err := it.it.Next()
	if err != nil {
		it.err = err
		return nil, err
	}
	c := it.parent.Collection(id)
	if c == nil {
		it.err = gcerr.Newf(gcerr.Internal, nil, "fsdoc: invalid collection ID %q from transport", id)
		return nil, it.err
	}
	return c, nil
}

// GetAll returns all remaining collections.
func (it *CollectionIterator) GetAll() ([]*CollectionRef, error) {
	var colls []*CollectionRef
	for {
		c, err := it.Next()
		if err == iterator.Done {
			return colls, nil
		}
		if err != nil {
			return nil, err
		}
		colls = append(colls, c)
	}
}

// OnSnapshot listens to changes to the document. fn is called with the
// current snapshot and then after every change, until stop is called or the
// stream fails, in which case fn receives the error. The transport must
// implement driver.Watcher; otherwise OnSnapshot returns an error with code
// Unimplemented.
func (d *DocumentRef) OnSnapshot(ctx context.Context, fn func(*DocumentSnapshot, error)) (stop func(), err error) {
	c := d.client()
	ctx, span := c.tracer.Start(ctx, "DocumentRef.OnSnapshot")
	defer func() { c.tracer.EndCall(ctx, span, err) }()

	w, ok := c.transport.(driver.Watcher)
	if !ok {
		return nil, gcerr.Newf(gcerr.Unimplemented, nil, "fsdoc: transport %T cannot watch documents", c.transport)
	}
	c.logger.Debug("watch", zap.String("document", d.Path()))
	return w.Watch(ctx, c.databaseName(), d.watchTarget(), func(doc *pb.Document, readTime time.Time, err error) {
		switch {
		case err != nil:
			fn(nil, err)
		case doc == nil:
			fn(newMissingSnapshot(d, readTime), nil)
		default:
			fn(newSnapshot(d, doc, readTime), nil)
		}
	})
}

func (d *DocumentRef) watchTarget() *pb.Target {
	return &pb.Target{
		TargetType: &pb.Target_Documents{
			Documents: &pb.Target_DocumentsTarget{Documents: []string{d.Name()}},
		},
		TargetId: watchTargetID,
	}
}
