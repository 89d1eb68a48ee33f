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
	"testing"

	"github.com/google/go-cmp/cmp"
	"gocloud.dev/fsdoc/fieldpath"
)

func TestExtractFields(t *testing.T) {
	data := map[string]interface{}{
		"z": 1,
		"a": map[string]interface{}{
			"c": []interface{}{map[string]interface{}{"deep": 1}},
			"b": map[string]interface{}{},
		},
		"m": map[string]string{"k": "v"},
	}
	leaves, err := extractFields(data, fieldpath.Path{})
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, l := range leaves {
		got = append(got, l.path.String())
	}
	want := []string{"a.b", "a.c", "m.k", "z"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("leaf paths (-want +got):\n%s", diff)
	}

	leaves, err = extractFields(map[string]interface{}{}, fieldpath.Path{})
	if err != nil || len(leaves) != 0 {
		t.Errorf("empty map: got %v, %v; want no leaves", leaves, err)
	}

	leaves, err = extractFields(map[string]interface{}{}, fieldpath.New("p"))
	if err != nil || len(leaves) != 0 {
		t.Errorf("empty map with prefix: got %v, %v; want no leaves", leaves, err)
	}
}

func TestExtractDocument(t *testing.T) {
	data := map[string]interface{}{
		"a.b": 1,
		"a.c": Delete,
		"d":   map[string]interface{}{"t": ServerTimestamp, "u": "x"},
		"e":   Increment(1.5),
	}
	ex, err := extractDocument(data, true)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(map[string]interface{}{
		"a": map[string]interface{}{"b": 1},
		"d": map[string]interface{}{"u": "x"},
	}, ex.data); diff != "" {
		t.Errorf("data: %s", diff)
	}
	if diff := cmp.Diff([]string{"a.b", "d.u"}, fieldpath.Strings(ex.dataPaths)); diff != "" {
		t.Errorf("data paths: %s", diff)
	}
	if diff := cmp.Diff([]string{"a.c"}, fieldpath.Strings(ex.deletes)); diff != "" {
		t.Errorf("deletes: %s", diff)
	}
	var tpaths []string
	for _, ft := range ex.transforms {
		tpaths = append(tpaths, ft.path.String())
	}
	if diff := cmp.Diff([]string{"d.t", "e"}, tpaths); diff != "" {
		t.Errorf("transforms: %s", diff)
	}
	if diff := cmp.Diff([]string{"a.b", "a.c", "d", "e"}, fieldpath.Strings(ex.topLevel)); diff != "" {
		t.Errorf("top level: %s", diff)
	}

	// Without expansion, dotted keys are single field names.
	ex, err = extractDocument(map[string]interface{}{"a.b": 1}, false)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"`a.b`"}, fieldpath.Strings(ex.dataPaths)); diff != "" {
		t.Errorf("verbatim keys: %s", diff)
	}
}
