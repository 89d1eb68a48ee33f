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

// Splitting caller data into plain values, deleted fields and transforms.

import (
	"reflect"
	"sort"

	"gocloud.dev/fsdoc/fieldpath"
)

// A leaf is a field of the data that is not itself a non-empty map.
type leaf struct {
	path  fieldpath.Path
	value interface{}
}

type fieldTransform struct {
	path fieldpath.Path
	t    Transform
}

// extraction is the data of a Create, Set or Update split by kind.
type extraction struct {
	data       map[string]interface{} // plain values, nested
	dataPaths  []fieldpath.Path       // leaf paths of data, in extraction order
	deletes    []fieldpath.Path
	transforms []fieldTransform // never Delete
	topLevel   []fieldpath.Path // parsed keys of the caller's map, sorted
}

func (e *extraction) isTransformPath(p fieldpath.Path) bool {
	for _, ft := range e.transforms {
		if ft.path.Equal(p) {
			return true
		}
	}
	return false
}

// asMap reports whether v is a non-nil map with string keys, and returns it as
// a map[string]interface{}.
func asMap(v interface{}) (map[string]interface{}, bool) {
	if m, ok := v.(map[string]interface{}); ok {
		return m, m != nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String || rv.IsNil() {
		return nil, false
	}
	m := make(map[string]interface{}, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		m[iter.Key().String()] = iter.Value().Interface()
	}
	return m, true
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// extractFields walks m depth first, visiting keys in sorted order, and returns
// every leaf under prefix. Arrays are atomic. A nested empty map is a leaf; an
// empty m at the top level yields nothing.
func extractFields(m map[string]interface{}, prefix fieldpath.Path) ([]leaf, error) {
	var leaves []leaf
	for _, k := range sortedKeys(m) {
		if k == "" {
			return nil, &EncodeError{Path: prefix, Value: m, Reason: "empty field name"}
		}
		var err error
		leaves, err = appendLeaves(leaves, prefix.Append(k), m[k])
		if err != nil {
			return nil, err
		}
	}
	return leaves, nil
}

func appendLeaves(leaves []leaf, p fieldpath.Path, v interface{}) ([]leaf, error) {
	sub, ok := asMap(v)
	if !ok || len(sub) == 0 {
		return append(leaves, leaf{path: p, value: v}), nil
	}
	more, err := extractFields(sub, p)
	if err != nil {
		return nil, err
	}
	return append(leaves, more...), nil
}

// extractDocument splits data into plain values, deletes and transforms. When
// expandDots is true each top-level key is parsed as a dotted field path, as
// Update requires; otherwise keys are field names used verbatim.
func extractDocument(data map[string]interface{}, expandDots bool) (*extraction, error) {
	ex := &extraction{data: map[string]interface{}{}}
	type entry struct {
		path  fieldpath.Path
		value interface{}
	}
	var entries []entry
	for k, v := range data {
		var p fieldpath.Path
		if expandDots {
			var err error
			p, err = fieldpath.Parse(k)
			if err != nil {
				return nil, invalidArg(err)
			}
		} else {
			if k == "" {
				return nil, invalidArg(&EncodeError{Value: data, Reason: "empty field name"})
			}
			p = fieldpath.New(k)
		}
		entries = append(entries, entry{p, v})
	}
	sort.Slice(entries, func(i, j int) bool { return fieldpath.Less(entries[i].path, entries[j].path) })

	for i, e := range entries {
		if i > 0 && entries[i-1].path.IsPrefixOf(e.path) {
			return nil, usageErrorf(ErrConflictingPaths, "fsdoc: field paths %s and %s conflict", entries[i-1].path, e.path)
		}
		ex.topLevel = append(ex.topLevel, e.path)
	}

	var leaves []leaf
	for _, e := range entries {
		var err error
		leaves, err = appendLeaves(leaves, e.path, e.value)
		if err != nil {
			return nil, invalidArg(err)
		}
	}
	for _, l := range leaves {
		switch t := l.value.(type) {
		case deleteTransform:
			ex.deletes = append(ex.deletes, l.path)
		case Transform:
			ex.transforms = append(ex.transforms, fieldTransform{path: l.path, t: t})
		default:
			ex.dataPaths = append(ex.dataPaths, l.path)
			setAtPath(ex.data, l.path, l.value)
		}
	}
	return ex, nil
}

// setAtPath sets m[p] = v, creating intermediate maps as needed.
func setAtPath(m map[string]interface{}, p fieldpath.Path, v interface{}) {
	for i := 0; i < p.Len()-1; i++ {
		seg := p.Segment(i)
		next, ok := m[seg].(map[string]interface{})
		if !ok {
			next = map[string]interface{}{}
			m[seg] = next
		}
		m = next
	}
	if sub, ok := asMap(v); ok && len(sub) == 0 {
		v = map[string]interface{}{}
	}
	m[p.Last()] = v
}

// getAtPath returns the value at p in the nested map m.
func getAtPath(m map[string]interface{}, p fieldpath.Path) (interface{}, bool) {
	var cur interface{} = m
	for _, seg := range p.Segments() {
		cm, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = cm[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}
