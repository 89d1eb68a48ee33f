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
	"math"
	"time"

	pb "cloud.google.com/go/firestore/apiv1/firestorepb"
	"gocloud.dev/fsdoc/fieldpath"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// applyWrite returns the state of the document after w is applied to cur, or
// nil if w deletes it. cur is nil for a missing document and is not modified.
func applyWrite(cur *pb.Document, w *pb.Write, now time.Time) (*pb.Document, *pb.WriteResult, error) {
	name := writeName(w)
	if err := checkPrecondition(name, cur, w.GetCurrentDocument()); err != nil {
		return nil, nil, err
	}
	switch op := w.GetOperation().(type) {
	case *pb.Write_Delete:
		return nil, &pb.WriteResult{}, nil

	case *pb.Write_Update:
		next := &pb.Document{Name: name, Fields: map[string]*pb.Value{}}
		if w.GetUpdateMask() == nil {
			next.Fields = cloneFields(op.Update.GetFields())
		} else {
			if cur != nil {
				next.Fields = cloneFields(cur.GetFields())
			}
			for _, s := range w.GetUpdateMask().GetFieldPaths() {
				p, err := fieldpath.Parse(s)
				if err != nil {
					return nil, nil, status.Errorf(codes.InvalidArgument, "bad mask path %q: %v", s, err)
				}
				if v, ok := getValue(op.Update.GetFields(), p); ok {
					if err := setValue(next.Fields, p, proto.Clone(v).(*pb.Value)); err != nil {
						return nil, nil, err
					}
				} else {
					deleteValue(next.Fields, p)
				}
			}
		}
		wr := &pb.WriteResult{UpdateTime: timestamppb.New(now)}
		for _, ft := range w.GetUpdateTransforms() {
			v, err := applyTransform(next.Fields, ft, now)
			if err != nil {
				return nil, nil, err
			}
			wr.TransformResults = append(wr.TransformResults, v)
		}
		next.CreateTime = timestamppb.New(now)
		if cur != nil {
			next.CreateTime = cur.GetCreateTime()
		}
		next.UpdateTime = timestamppb.New(now)
		return next, wr, nil

	default:
		return nil, nil, status.Errorf(codes.InvalidArgument, "unsupported write operation %T", op)
	}
}

func checkPrecondition(name string, cur *pb.Document, pc *pb.Precondition) error {
	switch c := pc.GetConditionType().(type) {
	case nil:
		return nil
	case *pb.Precondition_Exists:
		if c.Exists && cur == nil {
			return status.Errorf(codes.NotFound, "no document to update: %s", name)
		}
		if !c.Exists && cur != nil {
			return status.Errorf(codes.AlreadyExists, "document already exists: %s", name)
		}
	case *pb.Precondition_UpdateTime:
		if cur == nil {
			return status.Errorf(codes.NotFound, "no document to update: %s", name)
		}
		if !proto.Equal(cur.GetUpdateTime(), c.UpdateTime) {
			return status.Errorf(codes.FailedPrecondition, "the stored version of %s (%s) does not match the required version (%s)",
				name, cur.GetUpdateTime().AsTime(), c.UpdateTime.AsTime())
		}
	}
	return nil
}

// applyMask returns a copy of doc holding only the fields named by paths.
func applyMask(doc *pb.Document, paths []string) (*pb.Document, error) {
	out := &pb.Document{
		Name:       doc.GetName(),
		Fields:     map[string]*pb.Value{},
		CreateTime: doc.GetCreateTime(),
		UpdateTime: doc.GetUpdateTime(),
	}
	for _, s := range paths {
		p, err := fieldpath.Parse(s)
		if err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "bad mask path %q: %v", s, err)
		}
		if v, ok := getValue(doc.GetFields(), p); ok {
			if err := setValue(out.Fields, p, proto.Clone(v).(*pb.Value)); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

func cloneFields(fields map[string]*pb.Value) map[string]*pb.Value {
	out := make(map[string]*pb.Value, len(fields))
	for k, v := range fields {
		out[k] = proto.Clone(v).(*pb.Value)
	}
	return out
}

// getValue returns the value at p in fields.
func getValue(fields map[string]*pb.Value, p fieldpath.Path) (*pb.Value, bool) {
	m := getParentMap(fields, p, false)
	if m == nil {
		return nil, false
	}
	v, ok := m[p.Last()]
	return v, ok
}

// setValue sets the value at p, creating intermediate maps as needed. A
// non-map value along the way is replaced by a map.
func setValue(fields map[string]*pb.Value, p fieldpath.Path, v *pb.Value) error {
	if p.IsEmpty() {
		return status.Error(codes.InvalidArgument, "empty field path")
	}
	getParentMap(fields, p, true)[p.Last()] = v
	return nil
}

// deleteValue removes the value at p, if it exists.
func deleteValue(fields map[string]*pb.Value, p fieldpath.Path) {
	if m := getParentMap(fields, p, false); m != nil {
		delete(m, p.Last())
	}
}

// getParentMap returns the map that directly contains the field at p. If a
// missing or non-map value is encountered, nil is returned unless create is
// true, in which case an empty map is put at that point.
func getParentMap(fields map[string]*pb.Value, p fieldpath.Path, create bool) map[string]*pb.Value {
	m := fields
	for i := 0; i < p.Len()-1; i++ {
		k := p.Segment(i)
		mv := m[k].GetMapValue()
		if mv == nil {
			if !create {
				return nil
			}
			mv = &pb.MapValue{}
			m[k] = &pb.Value{ValueType: &pb.Value_MapValue{MapValue: mv}}
		}
		if mv.Fields == nil {
			mv.Fields = map[string]*pb.Value{}
		}
		m = mv.Fields
	}
	return m
}

// applyTransform updates fields with ft and returns the field's new value.
func applyTransform(fields map[string]*pb.Value, ft *pb.DocumentTransform_FieldTransform, now time.Time) (*pb.Value, error) {
	p, err := fieldpath.Parse(ft.GetFieldPath())
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "bad transform path %q: %v", ft.GetFieldPath(), err)
	}
	cur, _ := getValue(fields, p)
	var next *pb.Value
	switch t := ft.GetTransformType().(type) {
	case *pb.DocumentTransform_FieldTransform_SetToServerValue:
		if t.SetToServerValue != pb.DocumentTransform_FieldTransform_REQUEST_TIME {
			return nil, status.Errorf(codes.InvalidArgument, "unsupported server value %v", t.SetToServerValue)
		}
		next = &pb.Value{ValueType: &pb.Value_TimestampValue{TimestampValue: timestamppb.New(now)}}
	case *pb.DocumentTransform_FieldTransform_Increment:
		next, err = add(cur, t.Increment)
		if err != nil {
			return nil, err
		}
	case *pb.DocumentTransform_FieldTransform_AppendMissingElements:
		elems := append([]*pb.Value(nil), cur.GetArrayValue().GetValues()...)
		for _, e := range t.AppendMissingElements.GetValues() {
			if !containsValue(elems, e) {
				elems = append(elems, proto.Clone(e).(*pb.Value))
			}
		}
		next = arrayValue(elems)
	case *pb.DocumentTransform_FieldTransform_RemoveAllFromArray:
		var elems []*pb.Value
		for _, e := range cur.GetArrayValue().GetValues() {
			if !containsValue(t.RemoveAllFromArray.GetValues(), e) {
				elems = append(elems, e)
			}
		}
		next = arrayValue(elems)
	default:
		return nil, status.Errorf(codes.Unimplemented, "unsupported transform %T", t)
	}
	if err := setValue(fields, p, next); err != nil {
		return nil, err
	}
	return next, nil
}

func arrayValue(elems []*pb.Value) *pb.Value {
	return &pb.Value{ValueType: &pb.Value_ArrayValue{ArrayValue: &pb.ArrayValue{Values: elems}}}
}

func containsValue(vs []*pb.Value, v *pb.Value) bool {
	for _, e := range vs {
		if proto.Equal(e, v) {
			return true
		}
	}
	return false
}

// add adds the operand y to the stored value x. A missing or non-numeric x
// counts as absent and is replaced by y. Integer sums saturate.
func add(x, y *pb.Value) (*pb.Value, error) {
	yi, yIsInt := y.GetValueType().(*pb.Value_IntegerValue)
	yd, yIsDouble := y.GetValueType().(*pb.Value_DoubleValue)
	if !yIsInt && !yIsDouble {
		return nil, status.Errorf(codes.InvalidArgument, "increment operand %v is not a number", y)
	}
	switch x := x.GetValueType().(type) {
	case *pb.Value_IntegerValue:
		if yIsInt {
			return intValue(saturatingAdd(x.IntegerValue, yi.IntegerValue)), nil
		}
		return doubleValue(float64(x.IntegerValue) + yd.DoubleValue), nil
	case *pb.Value_DoubleValue:
		if yIsInt {
			return doubleValue(x.DoubleValue + float64(yi.IntegerValue)), nil
		}
		return doubleValue(x.DoubleValue + yd.DoubleValue), nil
	default:
		return proto.Clone(y).(*pb.Value), nil
	}
}

func saturatingAdd(a, b int64) int64 {
	s := a + b
	switch {
	case a > 0 && b > 0 && s < 0:
		return math.MaxInt64
	case a < 0 && b < 0 && s >= 0:
		return math.MinInt64
	}
	return s
}

func intValue(i int64) *pb.Value {
	return &pb.Value{ValueType: &pb.Value_IntegerValue{IntegerValue: i}}
}

func doubleValue(f float64) *pb.Value {
	return &pb.Value{ValueType: &pb.Value_DoubleValue{DoubleValue: f}}
}
