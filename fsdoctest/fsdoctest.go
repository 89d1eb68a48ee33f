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

// Package fsdoctest provides a conformance test for implementations of
// driver.Transport.
package fsdoctest // import "gocloud.dev/fsdoc/fsdoctest"

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"gocloud.dev/fsdoc"
	"gocloud.dev/fsdoc/driver"
	"gocloud.dev/fsdoc/gcerrors"
)

// Harness descibes the functionality test harnesses must provide to run
// conformance tests.
type Harness interface {
	// MakeTransport makes a driver.Transport for testing. The client built
	// on it closes it.
	MakeTransport(context.Context) (driver.Transport, error)

	// ProjectID is the project the test documents are written to.
	ProjectID() string

	// Close closes resources used by the harness.
	Close()
}

// HarnessMaker describes functions that construct a harness for running tests.
// It is called exactly once per test; Harness.Close() will be called when the
// test is complete.
type HarnessMaker func(ctx context.Context, t *testing.T) (Harness, error)

// AsTest represents a test of As functionality.
type AsTest interface {
	// Name should return a descriptive name for the test.
	Name() string
	// ClientCheck will be called to allow verification of Client.As.
	ClientCheck(c *fsdoc.Client) error
}

type verifyAsFailsOnNil struct{}

func (verifyAsFailsOnNil) Name() string {
	return "verify As returns false when passed nil"
}

func (verifyAsFailsOnNil) ClientCheck(c *fsdoc.Client) error {
	if c.As(nil) {
		return errors.New("want Client.As to return false when passed nil")
	}
	return nil
}

// RunConformanceTests runs conformance tests for implementations of
// driver.Transport.
func RunConformanceTests(t *testing.T, newHarness HarnessMaker, asTests []AsTest) {
	t.Run("Create", func(t *testing.T) { withCollection(t, newHarness, testCreate) })
	t.Run("Set", func(t *testing.T) { withCollection(t, newHarness, testSet) })
	t.Run("SetMerge", func(t *testing.T) { withCollection(t, newHarness, testSetMerge) })
	t.Run("Update", func(t *testing.T) { withCollection(t, newHarness, testUpdate) })
	t.Run("UpdateMissing", func(t *testing.T) { withCollection(t, newHarness, testUpdateMissing) })
	t.Run("UpdateTimePrecondition", func(t *testing.T) { withCollection(t, newHarness, testUpdateTimePrecondition) })
	t.Run("ArrayTransforms", func(t *testing.T) { withCollection(t, newHarness, testArrayTransforms) })
	t.Run("Delete", func(t *testing.T) { withCollection(t, newHarness, testDelete) })
	t.Run("GetFieldPaths", func(t *testing.T) { withCollection(t, newHarness, testGetFieldPaths) })
	t.Run("Collections", func(t *testing.T) { withCollection(t, newHarness, testCollections) })
	t.Run("OnSnapshot", func(t *testing.T) { withCollection(t, newHarness, testOnSnapshot) })

	asTests = append(asTests, verifyAsFailsOnNil{})
	t.Run("As", func(t *testing.T) {
		for _, st := range asTests {
			if st.Name() == "" {
				t.Fatalf("AsTest.Name is required")
			}
			t.Run(st.Name(), func(t *testing.T) {
				withClient(t, newHarness, func(t *testing.T, c *fsdoc.Client) {
					if err := st.ClientCheck(c); err != nil {
						t.Error(err)
					}
				})
			})
		}
	})
}

// withClient calls f with a client on a fresh transport.
func withClient(t *testing.T, newHarness HarnessMaker, f func(*testing.T, *fsdoc.Client)) {
	ctx := context.Background()
	h, err := newHarness(ctx, t)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	tr, err := h.MakeTransport(ctx)
	if err != nil {
		t.Fatal(err)
	}
	c, err := fsdoc.NewClient(tr, h.ProjectID(), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	f(t, c)
}

// withCollection calls f with a collection that no other test uses. The
// collection lives under a fresh document, so tests against a shared
// database do not see each other's writes.
func withCollection(t *testing.T, newHarness HarnessMaker, f func(*testing.T, *fsdoc.CollectionRef)) {
	withClient(t, newHarness, func(t *testing.T, c *fsdoc.Client) {
		f(t, c.Collection("fsdoctest").NewDoc().Collection("docs"))
	})
}

type docmap = map[string]interface{}

func mustGet(t *testing.T, d *fsdoc.DocumentRef, opts *fsdoc.GetOptions) docmap {
	t.Helper()
	snap, err := d.Get(context.Background(), opts)
	if err != nil {
		t.Fatalf("Get(%s): %v", d.ID(), err)
	}
	if !snap.Exists() {
		t.Fatalf("Get(%s): document does not exist", d.ID())
	}
	data, err := snap.Data()
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func checkCode(t *testing.T, err error, want gcerrors.ErrorCode) {
	t.Helper()
	if got := gcerrors.Code(err); got != want {
		t.Errorf("got error %v with code %s, want code %s", err, got, want)
	}
}

func testCreate(t *testing.T, coll *fsdoc.CollectionRef) {
	ctx := context.Background()
	d := coll.Doc("created")
	doc := docmap{"s": "str", "i": 1, "f": 2.5, "b": true, "m": docmap{"x": "y"}, "a": []interface{}{1, "two"}, "n": nil}
	wr, err := d.Create(ctx, doc, nil)
	if err != nil {
		t.Fatal(err)
	}
	if wr.UpdateTime.IsZero() {
		t.Error("got zero UpdateTime")
	}
	want := docmap{"s": "str", "i": int64(1), "f": 2.5, "b": true, "m": docmap{"x": "y"}, "a": []interface{}{int64(1), "two"}, "n": nil}
	if diff := cmp.Diff(want, mustGet(t, d, nil)); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}

	_, err = d.Create(ctx, docmap{"s": "again"}, nil)
	checkCode(t, err, gcerrors.AlreadyExists)

	// An empty document can be created.
	if _, err := coll.Doc("empty").Create(ctx, docmap{}, nil); err != nil {
		t.Fatal(err)
	}
	if got := mustGet(t, coll.Doc("empty"), nil); len(got) != 0 {
		t.Errorf("got %v, want empty document", got)
	}
}

func testSet(t *testing.T, coll *fsdoc.CollectionRef) {
	ctx := context.Background()
	d := coll.Doc("set")
	if _, err := d.Set(ctx, docmap{"a": 1, "b": docmap{"c": 2}}, nil); err != nil {
		t.Fatal(err)
	}
	// Set without merge replaces the whole document.
	if _, err := d.Set(ctx, docmap{"z": "only"}, nil); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(docmap{"z": "only"}, mustGet(t, d, nil)); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func testSetMerge(t *testing.T, coll *fsdoc.CollectionRef) {
	ctx := context.Background()
	d := coll.Doc("merge")
	if _, err := d.Set(ctx, docmap{"a": 1, "b": docmap{"c": 2, "d": 3}, "e": 4}, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := d.Set(ctx, docmap{"b": docmap{"c": 20}, "e": fsdoc.Delete, "f": 5}, &fsdoc.SetOptions{MergeAll: true}); err != nil {
		t.Fatal(err)
	}
	want := docmap{"a": int64(1), "b": docmap{"c": int64(20), "d": int64(3)}, "f": int64(5)}
	if diff := cmp.Diff(want, mustGet(t, d, nil)); diff != "" {
		t.Errorf("MergeAll mismatch (-want +got):\n%s", diff)
	}

	// Only the named paths are written.
	if _, err := d.Set(ctx, docmap{"a": 100, "b": docmap{"d": 30}}, &fsdoc.SetOptions{Merge: []interface{}{"b.d"}}); err != nil {
		t.Fatal(err)
	}
	want = docmap{"a": int64(1), "b": docmap{"c": int64(20), "d": int64(30)}, "f": int64(5)}
	if diff := cmp.Diff(want, mustGet(t, d, nil)); diff != "" {
		t.Errorf("Merge mismatch (-want +got):\n%s", diff)
	}

	// Merging into a missing document creates it.
	nd := coll.Doc("merge-new")
	if _, err := nd.Set(ctx, docmap{"x": docmap{"y": 1}}, &fsdoc.SetOptions{MergeAll: true}); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(docmap{"x": docmap{"y": int64(1)}}, mustGet(t, nd, nil)); diff != "" {
		t.Errorf("new document mismatch (-want +got):\n%s", diff)
	}
}

func testUpdate(t *testing.T, coll *fsdoc.CollectionRef) {
	ctx := context.Background()
	d := coll.Doc("update")
	if _, err := d.Create(ctx, docmap{"a": 1, "b": docmap{"c": 2, "d": 3}, "n": 1.5}, nil); err != nil {
		t.Fatal(err)
	}
	wr, err := d.Update(ctx, docmap{
		"a":   fsdoc.Delete,
		"b.c": 5,
		"t":   fsdoc.ServerTimestamp,
		"n":   fsdoc.Increment(1),
		"k":   fsdoc.Increment(3),
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	want := docmap{
		"b": docmap{"c": int64(5), "d": int64(3)},
		"t": wr.UpdateTime,
		"n": 2.5,
		"k": int64(3),
	}
	if diff := cmp.Diff(want, mustGet(t, d, nil)); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}

	// Replacing a top-level key replaces the whole map under it.
	if _, err := d.Update(ctx, docmap{"b": docmap{"e": 6}}, nil); err != nil {
		t.Fatal(err)
	}
	got := mustGet(t, d, nil)
	if diff := cmp.Diff(docmap{"e": int64(6)}, got["b"]); diff != "" {
		t.Errorf("b mismatch (-want +got):\n%s", diff)
	}
}

func testUpdateMissing(t *testing.T, coll *fsdoc.CollectionRef) {
	_, err := coll.Doc("missing").Update(context.Background(), docmap{"a": 1}, nil)
	checkCode(t, err, gcerrors.NotFound)
	if snap, err := coll.Doc("missing").Get(context.Background(), nil); err != nil || snap.Exists() {
		t.Errorf("after failed update: got (%v, %v), want missing document", snap, err)
	}
}

func testUpdateTimePrecondition(t *testing.T, coll *fsdoc.CollectionRef) {
	ctx := context.Background()
	d := coll.Doc("pre")
	wr, err := d.Create(ctx, docmap{"v": 1}, nil)
	if err != nil {
		t.Fatal(err)
	}
	stale := wr.UpdateTime.Add(-time.Second)
	_, err = d.Update(ctx, docmap{"v": 2}, &fsdoc.WriteOptions{Precondition: fsdoc.LastUpdateTime(stale)})
	checkCode(t, err, gcerrors.FailedPrecondition)

	if _, err := d.Update(ctx, docmap{"v": 3}, &fsdoc.WriteOptions{Precondition: fsdoc.LastUpdateTime(wr.UpdateTime)}); err != nil {
		t.Fatal(err)
	}
	if got := mustGet(t, d, nil)["v"]; got != int64(3) {
		t.Errorf("got v=%v, want 3", got)
	}
}

func testArrayTransforms(t *testing.T, coll *fsdoc.CollectionRef) {
	ctx := context.Background()
	d := coll.Doc("arrays")
	if _, err := d.Create(ctx, docmap{"arr": []interface{}{1, 2, 1}}, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := d.Update(ctx, docmap{"arr": fsdoc.ArrayUnion(2, 3), "fresh": fsdoc.ArrayUnion("x")}, nil); err != nil {
		t.Fatal(err)
	}
	want := docmap{"arr": []interface{}{int64(1), int64(2), int64(1), int64(3)}, "fresh": []interface{}{"x"}}
	if diff := cmp.Diff(want, mustGet(t, d, nil)); diff != "" {
		t.Errorf("ArrayUnion mismatch (-want +got):\n%s", diff)
	}
	if _, err := d.Update(ctx, docmap{"arr": fsdoc.ArrayRemove(1)}, nil); err != nil {
		t.Fatal(err)
	}
	want["arr"] = []interface{}{int64(2), int64(3)}
	if diff := cmp.Diff(want, mustGet(t, d, nil)); diff != "" {
		t.Errorf("ArrayRemove mismatch (-want +got):\n%s", diff)
	}
}

func testDelete(t *testing.T, coll *fsdoc.CollectionRef) {
	ctx := context.Background()
	d := coll.Doc("deleted")

	// Deleting a missing document succeeds.
	if _, err := d.Delete(ctx, nil); err != nil {
		t.Fatal(err)
	}
	_, err := d.Delete(ctx, &fsdoc.WriteOptions{Precondition: fsdoc.Exists(true)})
	checkCode(t, err, gcerrors.NotFound)

	wr, err := d.Create(ctx, docmap{"a": 1}, nil)
	if err != nil {
		t.Fatal(err)
	}
	stale := wr.UpdateTime.Add(-time.Second)
	_, err = d.Delete(ctx, &fsdoc.WriteOptions{Precondition: fsdoc.LastUpdateTime(stale)})
	checkCode(t, err, gcerrors.FailedPrecondition)
	if !mustExist(t, d) {
		t.Fatal("document deleted despite a stale update time")
	}
	ct, err := d.Delete(ctx, &fsdoc.WriteOptions{Precondition: fsdoc.LastUpdateTime(wr.UpdateTime)})
	if err != nil {
		t.Fatal(err)
	}
	if ct.IsZero() {
		t.Error("got zero commit time")
	}
	snap, err := d.Get(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if snap.Exists() {
		t.Error("document exists after Delete")
	}
	if _, err := snap.Data(); err != nil {
		t.Errorf("Data of missing document: %v", err)
	}
}

func mustExist(t *testing.T, d *fsdoc.DocumentRef) bool {
	t.Helper()
	snap, err := d.Get(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	return snap.Exists()
}

func testGetFieldPaths(t *testing.T, coll *fsdoc.CollectionRef) {
	ctx := context.Background()
	d := coll.Doc("paths")
	if _, err := d.Create(ctx, docmap{"a": 1, "b": docmap{"c": 2, "d": 3}}, nil); err != nil {
		t.Fatal(err)
	}
	got := mustGet(t, d, &fsdoc.GetOptions{FieldPaths: []string{"b.c", "nope"}})
	if diff := cmp.Diff(docmap{"b": docmap{"c": int64(2)}}, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func testCollections(t *testing.T, coll *fsdoc.CollectionRef) {
	ctx := context.Background()
	parent := coll.Doc("parent")
	for _, id := range []string{"y", "x", "y"} {
		if _, _, err := parent.Collection(id).Add(ctx, docmap{"id": id}, nil); err != nil {
			t.Fatal(err)
		}
	}
	refs, err := parent.Collections(ctx, nil).GetAll()
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, r := range refs {
		if !r.Parent().Equal(parent) {
			t.Errorf("%s: got parent %s, want %s", r.ID(), r.Parent(), parent)
		}
		got = append(got, r.ID())
	}
	if diff := cmp.Diff([]string{"x", "y"}, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func testOnSnapshot(t *testing.T, coll *fsdoc.CollectionRef) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d := coll.Doc("watched")
	snaps := make(chan *fsdoc.DocumentSnapshot, 10)
	stop, err := d.OnSnapshot(ctx, func(s *fsdoc.DocumentSnapshot, err error) {
		if err == nil {
			snaps <- s
		}
	})
	if err != nil {
		// Not every transport can watch; those that cannot say so.
		checkCode(t, err, gcerrors.Unimplemented)
		return
	}
	defer stop()

	next := func() *fsdoc.DocumentSnapshot {
		t.Helper()
		select {
		case s := <-snaps:
			return s
		case <-time.After(10 * time.Second):
			t.Fatal("timed out waiting for snapshot")
			return nil
		}
	}
	if s := next(); s.Exists() {
		t.Error("first snapshot: document exists")
	}
	if _, err := d.Create(ctx, docmap{"a": 1}, nil); err != nil {
		t.Fatal(err)
	}
	s := next()
	if !s.Exists() {
		t.Fatal("after Create: document does not exist")
	}
	if got, err := s.DataAt("a"); err != nil || got != int64(1) {
		t.Errorf("DataAt(a) = (%v, %v), want (1, nil)", got, err)
	}
}
