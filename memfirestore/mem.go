// Copyright 2019 The Go Cloud Development Kit Authors
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

// Package memfirestore provides an in-process in-memory implementation of the
// fsdoc transport. It is suitable for local development and testing.
//
// A Transport holds the documents of any number of databases. Commits are
// applied atomically under a single lock, and honor preconditions, update
// masks and field transforms the way the service does. Errors carry gRPC
// status codes, so fsdoc sees the same errors as with a real service.
//
// # Watching
//
// Transport implements driver.Watcher: DocumentRef.OnSnapshot callbacks run
// synchronously, first inside Watch and then inside the Commit that changed
// the document. Callbacks must not call the stop function they were given.
//
// # URLs
//
// For fsdoc.OpenClient, memfirestore registers for the scheme "mem".
// To customize the URL opener, or for more details on the URL format,
// see URLOpener.
package memfirestore // import "gocloud.dev/fsdoc/memfirestore"

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	pb "cloud.google.com/go/firestore/apiv1/firestorepb"
	"github.com/googleapis/gax-go/v2"
	"go.uber.org/zap"
	"gocloud.dev/fsdoc/driver"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// Options are optional arguments to NewTransport.
type Options struct {
	// The file holding the documents. When a transport is created with a
	// non-empty filename, the documents are loaded from the file if it exists.
	// When the transport is closed, its contents are saved to the file.
	Filename string

	// Now returns the current time. It defaults to time.Now. Commit times are
	// made strictly increasing regardless.
	Now func() time.Time

	// Logger receives debug entries for loads and saves. If nil, nothing is
	// logged.
	Logger *zap.Logger
}

// Transport is an in-memory driver.Transport and driver.Watcher.
type Transport struct {
	opts   *Options
	logger *zap.Logger

	mu       sync.Mutex
	docs     map[string]*pb.Document // by full resource name
	last     time.Time
	watches  map[string]map[int]*watch // by document name, then id
	nextID   int
	isClosed bool
}

var (
	_ driver.Transport = (*Transport)(nil)
	_ driver.Watcher   = (*Transport)(nil)
)

// NewTransport creates an empty Transport, or one loaded from opts.Filename.
func NewTransport(opts *Options) (*Transport, error) {
	if opts == nil {
		opts = &Options{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	docs, err := loadDocs(opts.Filename)
	if err != nil {
		return nil, err
	}
	if opts.Filename != "" {
		logger.Debug("loaded documents", zap.String("file", opts.Filename), zap.Int("count", len(docs)))
	}
	return &Transport{
		opts:    opts,
		logger:  logger,
		docs:    docs,
		watches: map[string]map[int]*watch{},
	}, nil
}

// tick returns the next commit time. Must be called with the lock held.
func (t *Transport) tick() time.Time {
	now := t.opts.Now().UTC().Truncate(time.Microsecond)
	if !now.After(t.last) {
		now = t.last.Add(time.Microsecond)
	}
	t.last = now
	return now
}

func contextErr(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return status.FromContextError(err).Err()
	}
	return nil
}

// checkName reports whether name is a document of database.
func checkName(database, name string) error {
	prefix := database + "/documents/"
	if database == "" || !strings.HasPrefix(name, prefix) {
		return status.Errorf(codes.InvalidArgument, "document %q is not in database %q", name, database)
	}
	ids := strings.Split(strings.TrimPrefix(name, prefix), "/")
	if len(ids)%2 != 0 {
		return status.Errorf(codes.InvalidArgument, "%q is not a document name", name)
	}
	for _, id := range ids {
		if id == "" {
			return status.Errorf(codes.InvalidArgument, "%q has an empty id", name)
		}
	}
	return nil
}

func databaseOf(name string) string {
	if i := strings.Index(name, "/documents"); i >= 0 {
		return name[:i]
	}
	return ""
}

// Commit implements driver.Transport.Commit. The call options are ignored.
func (t *Transport) Commit(ctx context.Context, req *pb.CommitRequest, _ ...gax.CallOption) (*pb.CommitResponse, error) {
	if err := contextErr(ctx); err != nil {
		return nil, err
	}
	for _, w := range req.GetWrites() {
		if err := checkName(req.GetDatabase(), writeName(w)); err != nil {
			return nil, err
		}
	}

	t.mu.Lock()
	if t.isClosed {
		t.mu.Unlock()
		return nil, status.Error(codes.FailedPrecondition, "memfirestore: transport is closed")
	}
	now := t.tick()
	staged := map[string]*pb.Document{}
	var order []string
	res := &pb.CommitResponse{CommitTime: timestamppb.New(now)}
	for _, w := range req.GetWrites() {
		name := writeName(w)
		cur, ok := staged[name]
		if !ok {
			cur = t.docs[name]
		}
		next, wr, err := applyWrite(cur, w, now)
		if err != nil {
			t.mu.Unlock()
			return nil, err
		}
		if _, seen := staged[name]; !seen {
			order = append(order, name)
		}
		staged[name] = next
		res.WriteResults = append(res.WriteResults, wr)
	}
	for name, d := range staged {
		if d == nil {
			delete(t.docs, name)
		} else {
			t.docs[name] = d
		}
	}
	deliveries := t.collectDeliveries(order, staged, now)
	t.mu.Unlock()

	for _, d := range deliveries {
		d()
	}
	return res, nil
}

func writeName(w *pb.Write) string {
	if n := w.GetDelete(); n != "" {
		return n
	}
	return w.GetUpdate().GetName()
}

// GetDocument implements driver.Transport.GetDocument. Transactions are
// accepted and ignored.
func (t *Transport) GetDocument(ctx context.Context, req *pb.GetDocumentRequest, _ ...gax.CallOption) (*pb.Document, error) {
	if err := contextErr(ctx); err != nil {
		return nil, err
	}
	if err := checkName(databaseOf(req.GetName()), req.GetName()); err != nil {
		return nil, err
	}
	t.mu.Lock()
	doc := t.docs[req.GetName()]
	t.mu.Unlock()
	if doc == nil {
		return nil, status.Errorf(codes.NotFound, "%q not found", req.GetName())
	}
	if req.GetMask() == nil {
		return proto.Clone(doc).(*pb.Document), nil
	}
	return applyMask(doc, req.GetMask().GetFieldPaths())
}

// ListCollectionIds implements driver.Transport.ListCollectionIds. The ids are
// returned sorted; PageSize only bounds how many the iterator buffers at once.
func (t *Transport) ListCollectionIds(ctx context.Context, req *pb.ListCollectionIdsRequest, _ ...gax.CallOption) driver.CollectionIDIterator {
	if err := contextErr(ctx); err != nil {
		return &idIterator{err: err}
	}
	prefix := req.GetParent() + "/"
	seen := map[string]bool{}
	t.mu.Lock()
	for name := range t.docs {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		rest := strings.SplitN(strings.TrimPrefix(name, prefix), "/", 2)
		if len(rest) == 2 {
			seen[rest[0]] = true
		}
	}
	t.mu.Unlock()
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return &idIterator{ids: ids}
}

type idIterator struct {
	ids []string
	err error
}

func (it *idIterator) Next() (string, error) {
	if it.err != nil {
		return "", it.err
	}
	if len(it.ids) == 0 {
		return "", iterator.Done
	}
	id := it.ids[0]
	it.ids = it.ids[1:]
	return id, nil
}

// As implements driver.Transport.As. It supports **Transport.
func (t *Transport) As(i interface{}) bool {
	p, ok := i.(**Transport)
	if !ok {
		return false
	}
	*p = t
	return true
}

// Close implements driver.Transport.Close.
// If the transport was created with a Filename option, Close writes the
// documents to the file.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.isClosed {
		return nil
	}
	t.isClosed = true
	if t.opts.Filename != "" {
		t.logger.Debug("saving documents", zap.String("file", t.opts.Filename), zap.Int("count", len(t.docs)))
	}
	return saveDocs(t.opts.Filename, t.docs)
}

// loadDocs reads documents from filename if it is not empty and the file
// exists. Otherwise it returns an empty (not nil) map.
func loadDocs(filename string) (map[string]*pb.Document, error) {
	docs := map[string]*pb.Document{}
	if filename == "" {
		return docs, nil
	}
	b, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return docs, nil
		}
		return nil, err
	}
	var list pb.ListDocumentsResponse
	if err := proto.Unmarshal(b, &list); err != nil {
		return nil, fmt.Errorf("failed to decode from %q: %v", filename, err)
	}
	for _, d := range list.Documents {
		docs[d.Name] = d
	}
	return docs, nil
}

// saveDocs saves docs to filename if filename is not empty.
func saveDocs(filename string, docs map[string]*pb.Document) error {
	if filename == "" {
		return nil
	}
	list := &pb.ListDocumentsResponse{}
	for _, d := range docs {
		list.Documents = append(list.Documents, d)
	}
	sort.Slice(list.Documents, func(i, j int) bool { return list.Documents[i].Name < list.Documents[j].Name })
	b, err := proto.Marshal(list)
	if err != nil {
		return fmt.Errorf("failed to encode to %q: %v", filename, err)
	}
	return os.WriteFile(filename, b, 0o644)
}
