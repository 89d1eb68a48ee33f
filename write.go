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

// Building the single Write message each mutation sends.

import (
	pb "cloud.google.com/go/firestore/apiv1/firestorepb"
	"gocloud.dev/fsdoc/fieldpath"
)

// createWrite builds the write for Create: the whole document, which must not
// already exist.
func createWrite(name string, data map[string]interface{}) (*pb.Write, error) {
	ex, err := extractDocument(data, false)
	if err != nil {
		return nil, err
	}
	if len(ex.deletes) > 0 {
		return nil, usageErrorf(ErrDeleteWithoutMerge, "fsdoc: Create cannot delete field %s", ex.deletes[0])
	}
	w, err := documentWrite(name, ex, nil)
	if err != nil {
		return nil, err
	}
	w.CurrentDocument = Exists(false).proto()
	return w, nil
}

// setWrite builds the write for Set. Without a merge option the document is
// replaced. With mergeAll every leaf of data is merged; with merge only the
// given paths are.
func setWrite(name string, data map[string]interface{}, mergeAll bool, merge []fieldpath.Path) (*pb.Write, error) {
	ex, err := extractDocument(data, false)
	if err != nil {
		return nil, err
	}
	switch {
	case mergeAll:
		mask := append(append([]fieldpath.Path(nil), ex.dataPaths...), ex.deletes...)
		fieldpath.Sort(mask)
		if mask == nil {
			mask = []fieldpath.Path{}
		}
		return documentWrite(name, ex, mask)

	case merge != nil:
		return mergeWrite(name, ex, merge)

	default:
		if len(ex.deletes) > 0 {
			return nil, usageErrorf(ErrDeleteWithoutMerge, "fsdoc: Set without merge cannot delete field %s", ex.deletes[0])
		}
		return documentWrite(name, ex, nil)
	}
}

// mergeWrite restricts ex to the merge paths. The mask is the merge paths
// themselves, less those naming a transformed field exactly.
func mergeWrite(name string, ex *extraction, merge []fieldpath.Path) (*pb.Write, error) {
	if len(merge) == 0 {
		return nil, usageErrorf(ErrMergeField, "fsdoc: Set with an empty merge list")
	}
	sorted := append([]fieldpath.Path(nil), merge...)
	fieldpath.Sort(sorted)
	for i := 1; i < len(sorted); i++ {
		if sorted[i-1].IsPrefixOf(sorted[i]) {
			return nil, usageErrorf(ErrConflictingPaths, "fsdoc: merge paths %s and %s conflict", sorted[i-1], sorted[i])
		}
	}

	covered := func(p fieldpath.Path) bool {
		for _, m := range sorted {
			if m.IsPrefixOf(p) {
				return true
			}
		}
		return false
	}
	for _, d := range ex.deletes {
		if !covered(d) {
			return nil, usageErrorf(ErrMergeField, "fsdoc: cannot delete field %s, which is not merged", d)
		}
	}

	merged := &extraction{data: map[string]interface{}{}}
	var mask []fieldpath.Path
	for _, m := range sorted {
		found := false
		for _, p := range ex.dataPaths {
			if m.IsPrefixOf(p) {
				found = true
				v, _ := getAtPath(ex.data, p)
				setAtPath(merged.data, p, v)
				merged.dataPaths = append(merged.dataPaths, p)
			}
		}
		for _, d := range ex.deletes {
			if m.IsPrefixOf(d) {
				found = true
				merged.deletes = append(merged.deletes, d)
			}
		}
		for _, ft := range ex.transforms {
			if m.IsPrefixOf(ft.path) {
				found = true
			}
		}
		if !found {
			return nil, usageErrorf(ErrMergeField, "fsdoc: merge path %s is not in the data", m)
		}
		if !ex.isTransformPath(m) {
			mask = append(mask, m)
		}
	}
	for _, ft := range ex.transforms {
		if covered(ft.path) {
			merged.transforms = append(merged.transforms, ft)
		}
	}
	if mask == nil {
		mask = []fieldpath.Path{}
	}
	return documentWrite(name, merged, mask)
}

// updateWrite builds the write for Update. Keys of updates are dotted field
// paths. The mask is the sorted top-level paths, less transformed ones; a
// path whose value is Delete is in the mask but not the data.
func updateWrite(name string, updates map[string]interface{}, pc Precondition) (*pb.Write, error) {
	if len(updates) == 0 {
		return nil, usageErrorf(ErrEmptyUpdate, "fsdoc: Update called with no fields")
	}
	if pc != nil && pc.isExists() {
		return nil, usageErrorf(ErrExistsPrecondition, "fsdoc: Update with an Exists precondition")
	}
	ex, err := extractDocument(updates, true)
	if err != nil {
		return nil, err
	}
	for _, d := range ex.deletes {
		top := false
		for _, p := range ex.topLevel {
			if p.Equal(d) {
				top = true
				break
			}
		}
		if !top {
			return nil, usageErrorf(ErrNestedDelete, "fsdoc: Delete at %s is nested in a map value", d)
		}
	}
	mask := []fieldpath.Path{}
	for _, p := range ex.topLevel {
		if !ex.isTransformPath(p) {
			mask = append(mask, p)
		}
	}
	w, err := documentWrite(name, ex, mask)
	if err != nil {
		return nil, err
	}
	if pc == nil {
		pc = Exists(true)
	}
	w.CurrentDocument = pc.proto()
	return w, nil
}

// deleteWrite builds the write for Delete.
func deleteWrite(name string, pc Precondition) *pb.Write {
	w := &pb.Write{Operation: &pb.Write_Delete{Delete: name}}
	if pc != nil {
		w.CurrentDocument = pc.proto()
	}
	return w
}

// documentWrite encodes ex as an update write. A nil mask means none.
func documentWrite(name string, ex *extraction, mask []fieldpath.Path) (*pb.Write, error) {
	fields, err := encodeMap(ex.data, fieldpath.Path{})
	if err != nil {
		return nil, invalidArg(err)
	}
	w := &pb.Write{
		Operation: &pb.Write_Update{Update: &pb.Document{Name: name, Fields: fields}},
	}
	if mask != nil {
		w.UpdateMask = &pb.DocumentMask{FieldPaths: fieldpath.Strings(mask)}
	}
	for _, ft := range ex.transforms {
		t, err := transformProto(ft)
		if err != nil {
			return nil, invalidArg(err)
		}
		w.UpdateTransforms = append(w.UpdateTransforms, t)
	}
	return w, nil
}

func transformProto(ft fieldTransform) (*pb.DocumentTransform_FieldTransform, error) {
	out := &pb.DocumentTransform_FieldTransform{FieldPath: ft.path.String()}
	switch t := ft.t.(type) {
	case serverTimestampTransform:
		out.TransformType = &pb.DocumentTransform_FieldTransform_SetToServerValue{
			SetToServerValue: pb.DocumentTransform_FieldTransform_REQUEST_TIME,
		}
	case arrayUnionTransform:
		av, err := encodeElements(t.elems, ft.path)
		if err != nil {
			return nil, err
		}
		out.TransformType = &pb.DocumentTransform_FieldTransform_AppendMissingElements{AppendMissingElements: av}
	case arrayRemoveTransform:
		av, err := encodeElements(t.elems, ft.path)
		if err != nil {
			return nil, err
		}
		out.TransformType = &pb.DocumentTransform_FieldTransform_RemoveAllFromArray{RemoveAllFromArray: av}
	case incrementTransform:
		n, err := encodeNumber(t.n, ft.path)
		if err != nil {
			return nil, err
		}
		out.TransformType = &pb.DocumentTransform_FieldTransform_Increment{Increment: n}
	default:
		return nil, &EncodeError{Path: ft.path, Value: ft.t, Reason: "unknown transform"}
	}
	return out, nil
}

func encodeElements(elems []interface{}, path fieldpath.Path) (*pb.ArrayValue, error) {
	if len(elems) == 0 {
		return &pb.ArrayValue{}, nil
	}
	av, err := encodeValue(elems, path)
	if err != nil {
		return nil, err
	}
	return av.GetArrayValue(), nil
}

func encodeNumber(n interface{}, path fieldpath.Path) (*pb.Value, error) {
	switch n.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return encodeValue(n, path)
	}
	return nil, &EncodeError{Path: path, Value: n, Reason: "Increment needs an integer or floating-point operand"}
}
