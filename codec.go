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

// Encoding and decoding between Go values and document protos.

import (
	"fmt"
	"math"
	"reflect"
	"time"

	pb "cloud.google.com/go/firestore/apiv1/firestorepb"
	"gocloud.dev/fsdoc/fieldpath"
	"google.golang.org/genproto/googleapis/type/latlng"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"
)

var (
	typeOfGoTime         = reflect.TypeOf(time.Time{})
	typeOfProtoTimestamp = reflect.TypeOf((*timestamppb.Timestamp)(nil))
	typeOfLatLng         = reflect.TypeOf((*latlng.LatLng)(nil))
	typeOfDocumentRef    = reflect.TypeOf((*DocumentRef)(nil))
	typeOfTransform      = reflect.TypeOf((*Transform)(nil)).Elem()
)

var nullValue = &pb.Value{ValueType: &pb.Value_NullValue{NullValue: structpb.NullValue_NULL_VALUE}}

// encodeMap encodes a plain (transform-free) map as document fields.
func encodeMap(m map[string]interface{}, prefix fieldpath.Path) (map[string]*pb.Value, error) {
	fields := make(map[string]*pb.Value, len(m))
	for k, v := range m {
		if k == "" {
			return nil, &EncodeError{Path: prefix, Value: m, Reason: "empty field name"}
		}
		pv, err := encodeValue(v, prefix.Append(k))
		if err != nil {
			return nil, err
		}
		fields[k] = pv
	}
	return fields, nil
}

// encodeValue encodes a Go value as a document Value. path locates x in the
// document and is used only for errors.
func encodeValue(x interface{}, path fieldpath.Path) (*pb.Value, error) {
	return encodeReflect(reflect.ValueOf(x), path, false)
}

func encodeReflect(v reflect.Value, path fieldpath.Path, inArray bool) (*pb.Value, error) {
	if !v.IsValid() {
		return nullValue, nil
	}
	if v.Type().Implements(typeOfTransform) && v.Kind() != reflect.Interface {
		reason := "transform must be extracted before encoding"
		if inArray {
			reason = "transforms are not allowed inside arrays"
		}
		return nil, &EncodeError{Path: path, Value: v.Interface(), Reason: reason}
	}
	if pv, ok, err := encodeSpecial(v, path); ok {
		return pv, err
	}
	switch v.Kind() {
	case reflect.Bool:
		return &pb.Value{ValueType: &pb.Value_BooleanValue{BooleanValue: v.Bool()}}, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return intval(v.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := v.Uint()
		if u > math.MaxInt64 {
			return nil, &EncodeError{Path: path, Value: v.Interface(), Reason: fmt.Sprintf("%d overflows int64", u)}
		}
		return intval(int64(u)), nil
	case reflect.Float32, reflect.Float64:
		return floatval(v.Float()), nil
	case reflect.String:
		return &pb.Value{ValueType: &pb.Value_StringValue{StringValue: v.String()}}, nil
	case reflect.Slice:
		if v.IsNil() {
			return nullValue, nil
		}
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return &pb.Value{ValueType: &pb.Value_BytesValue{BytesValue: v.Bytes()}}, nil
		}
		return encodeList(v, path, inArray)
	case reflect.Array:
		return encodeList(v, path, inArray)
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return nil, &EncodeError{Path: path, Value: v.Interface(), Reason: "map keys must be strings"}
		}
		if v.IsNil() {
			return nullValue, nil
		}
		fields := make(map[string]*pb.Value, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			k := iter.Key().String()
			if k == "" {
				return nil, &EncodeError{Path: path, Value: v.Interface(), Reason: "empty field name"}
			}
			pv, err := encodeReflect(iter.Value(), path.Append(k), false)
			if err != nil {
				return nil, err
			}
			fields[k] = pv
		}
		return &pb.Value{ValueType: &pb.Value_MapValue{MapValue: &pb.MapValue{Fields: fields}}}, nil
	case reflect.Ptr, reflect.Interface:
		if v.IsNil() {
			return nullValue, nil
		}
		return encodeReflect(v.Elem(), path, inArray)
	}
	return nil, &EncodeError{Path: path, Value: v.Interface(), Reason: "unsupported type"}
}

func encodeList(v reflect.Value, path fieldpath.Path, inArray bool) (*pb.Value, error) {
	if inArray {
		return nil, &EncodeError{Path: path, Value: v.Interface(), Reason: "arrays cannot directly contain arrays"}
	}
	vals := make([]*pb.Value, v.Len())
	for i := 0; i < v.Len(); i++ {
		pv, err := encodeReflect(v.Index(i), path, true)
		if err != nil {
			return nil, err
		}
		vals[i] = pv
	}
	return &pb.Value{ValueType: &pb.Value_ArrayValue{ArrayValue: &pb.ArrayValue{Values: vals}}}, nil
}

// encodeSpecial encodes time.Time, *timestamppb.Timestamp, *latlng.LatLng and
// *DocumentRef, which are not handled by kind.
func encodeSpecial(v reflect.Value, path fieldpath.Path) (*pb.Value, bool, error) {
	switch v.Type() {
	case typeOfGoTime:
		t := v.Interface().(time.Time)
		ts := timestamppb.New(t)
		if err := ts.CheckValid(); err != nil {
			return nil, true, &EncodeError{Path: path, Value: t, Reason: err.Error()}
		}
		return &pb.Value{ValueType: &pb.Value_TimestampValue{TimestampValue: ts}}, true, nil
	case typeOfProtoTimestamp:
		if v.IsNil() {
			return nullValue, true, nil
		}
		return &pb.Value{ValueType: &pb.Value_TimestampValue{TimestampValue: v.Interface().(*timestamppb.Timestamp)}}, true, nil
	case typeOfLatLng:
		if v.IsNil() {
			return nullValue, true, nil
		}
		return &pb.Value{ValueType: &pb.Value_GeoPointValue{GeoPointValue: v.Interface().(*latlng.LatLng)}}, true, nil
	case typeOfDocumentRef:
		if v.IsNil() {
			return nullValue, true, nil
		}
		return &pb.Value{ValueType: &pb.Value_ReferenceValue{ReferenceValue: v.Interface().(*DocumentRef).Name()}}, true, nil
	}
	return nil, false, nil
}

func intval(x int64) *pb.Value     { return &pb.Value{ValueType: &pb.Value_IntegerValue{IntegerValue: x}} }
func floatval(x float64) *pb.Value { return &pb.Value{ValueType: &pb.Value_DoubleValue{DoubleValue: x}} }

////////////////////////////////////////////////////////////////

// decodeFields decodes document fields into a map of canonical Go values.
func (c *Client) decodeFields(fields map[string]*pb.Value) (map[string]interface{}, error) {
	m := make(map[string]interface{}, len(fields))
	for k, pv := range fields {
		v, err := c.decodeValue(pv)
		if err != nil {
			return nil, err
		}
		m[k] = v
	}
	return m, nil
}

// decodeValue decodes pv into the canonical Go type for its kind: nil, bool,
// int64, float64, string, []byte, time.Time, *latlng.LatLng, *DocumentRef,
// []interface{} or map[string]interface{}.
func (c *Client) decodeValue(pv *pb.Value) (interface{}, error) {
	switch v := pv.GetValueType().(type) {
	case nil, *pb.Value_NullValue:
		return nil, nil
	case *pb.Value_BooleanValue:
		return v.BooleanValue, nil
	case *pb.Value_IntegerValue:
		return v.IntegerValue, nil
	case *pb.Value_DoubleValue:
		return v.DoubleValue, nil
	case *pb.Value_StringValue:
		return v.StringValue, nil
	case *pb.Value_BytesValue:
		return v.BytesValue, nil
	case *pb.Value_TimestampValue:
		if err := v.TimestampValue.CheckValid(); err != nil {
			return nil, err
		}
		return v.TimestampValue.AsTime(), nil
	case *pb.Value_ReferenceValue:
		return c.docRefFromName(v.ReferenceValue)
	case *pb.Value_GeoPointValue:
		return v.GeoPointValue, nil
	case *pb.Value_ArrayValue:
		s := make([]interface{}, len(v.ArrayValue.GetValues()))
		for i, e := range v.ArrayValue.GetValues() {
			d, err := c.decodeValue(e)
			if err != nil {
				return nil, err
			}
			s[i] = d
		}
		return s, nil
	case *pb.Value_MapValue:
		return c.decodeFields(v.MapValue.GetFields())
	}
	return nil, fmt.Errorf("fsdoc: unknown value type %T", pv.GetValueType())
}
