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
	"sync"
	"time"

	pb "cloud.google.com/go/firestore/apiv1/firestorepb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
)

type watch struct {
	mu      sync.Mutex
	stopped bool
	fn      func(*pb.Document, time.Time, error)
}

func (w *watch) deliver(doc *pb.Document, readTime time.Time, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.stopped {
		w.fn(doc, readTime, err)
	}
}

// Watch implements driver.Watcher.Watch for targets listing documents. fn
// receives the current state before Watch returns. When ctx is done, fn
// receives the context's error and the watch ends.
func (t *Transport) Watch(ctx context.Context, database string, target *pb.Target, fn func(*pb.Document, time.Time, error)) (func(), error) {
	if err := contextErr(ctx); err != nil {
		return nil, err
	}
	names := target.GetDocuments().GetDocuments()
	if len(names) == 0 {
		return nil, status.Error(codes.Unimplemented, "memfirestore: only document targets can be watched")
	}
	for _, name := range names {
		if err := checkName(database, name); err != nil {
			return nil, err
		}
	}
	w := &watch{fn: fn}

	t.mu.Lock()
	id := t.nextID
	t.nextID++
	initial := make([]*pb.Document, len(names))
	for i, name := range names {
		if t.watches[name] == nil {
			t.watches[name] = map[int]*watch{}
		}
		t.watches[name][id] = w
		if d := t.docs[name]; d != nil {
			initial[i] = proto.Clone(d).(*pb.Document)
		}
	}
	readTime := t.last
	t.mu.Unlock()

	for _, d := range initial {
		w.deliver(d, readTime, nil)
	}

	stopCh := make(chan struct{})
	var once sync.Once
	stop := func() {
		once.Do(func() {
			close(stopCh)
			t.mu.Lock()
			for _, name := range names {
				delete(t.watches[name], id)
				if len(t.watches[name]) == 0 {
					delete(t.watches, name)
				}
			}
			t.mu.Unlock()
			w.mu.Lock()
			w.stopped = true
			w.mu.Unlock()
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			w.deliver(nil, time.Time{}, status.FromContextError(ctx.Err()).Err())
			stop()
		case <-stopCh:
		}
	}()
	return stop, nil
}

// collectDeliveries returns the notifications for the documents in staged.
// Must be called with the lock held; the returned functions must be called
// without it.
func (t *Transport) collectDeliveries(order []string, staged map[string]*pb.Document, now time.Time) []func() {
	var out []func()
	for _, name := range order {
		for _, w := range t.watches[name] {
			w := w
			var doc *pb.Document
			if d := staged[name]; d != nil {
				doc = proto.Clone(d).(*pb.Document)
			}
			out = append(out, func() { w.deliver(doc, now, nil) })
		}
	}
	return out
}
