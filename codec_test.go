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
	"errors"
	"math"
	"testing"
	"time"

	pb "cloud.google.com/go/firestore/apiv1/firestorepb"
	"github.com/google/go-cmp/cmp"
	"gocloud.dev/fsdoc/fieldpath"
	"google.golang.org/genproto/googleapis/type/latlng"
	"google.golang.org/protobuf/testing/protocmp"
	"google.golang.org/protobuf/types/known/timestamppb"
)

func TestEncodeValue(t *testing.T) {
	c := newTestClient(t, &fakeTransport{})
	ref := c.Doc("C/d")
	tm := time.Date(2019, 5, 6, 7, 8, 9, 123456789, time.UTC)
	ll := &latlng.LatLng{Latitude: 51.5, Longitude: -0.1}
	var nilMap map[string]interface{}
	for _, test := range []struct {
		in   interface{}
		want *pb.Value
	}{
		{nil, nullValue},
		{true, bval(true)},
		{int8(-3), intval(-3)},
		{uint32(7), intval(7)},
		{uint64(math.MaxInt64), intval(math.MaxInt64)},
		{float32(0.5), floatval(0.5)},
		{"s", sval("s")},
		{[]byte{1, 2}, &pb.Value{ValueType: &pb.Value_BytesValue{BytesValue: []byte{1, 2}}}},
		{tm, &pb.Value{ValueType: &pb.Value_TimestampValue{TimestampValue: timestamppb.New(tm)}}},
		{&tm, &pb.Value{ValueType: &pb.Value_TimestampValue{TimestampValue: timestamppb.New(tm)}}},
		{timestamppb.New(tm), &pb.Value{ValueType: &pb.Value_TimestampValue{TimestampValue: timestamppb.New(tm)}}},
		{ll, &pb.Value{ValueType: &pb.Value_GeoPointValue{GeoPointValue: ll}}},
		{ref, &pb.Value{ValueType: &pb.Value_ReferenceValue{ReferenceValue: "projects/project/databases/db/documents/C/d"}}},
		{[]int{1, 2}, aval(intval(1), intval(2))},
		{[2]string{"a", "b"}, aval(sval("a"), sval("b"))},
		{[]interface{}{}, aval()},
		{map[string]int{"x": 1}, mval(map[string]*pb.Value{"x": intval(1)})},
		{nilMap, nullValue},
		{map[string]interface{}{"m": map[string]interface{}{}}, mval(map[string]*pb.Value{"m": mval(map[string]*pb.Value{})})},
	} {
		got, err := encodeValue(test.in, fieldpath.Path{})
		if err != nil {
			t.Errorf("%#v: %v", test.in, err)
			continue
		}
		if diff := cmp.Diff(test.want, got, protocmp.Transform()); diff != "" {
			t.Errorf("%#v: %s", test.in, diff)
		}
	}
}

func TestEncodeValueErrors(t *testing.T) {
	type unsupported struct{ X int }
	for _, test := range []struct {
		in       interface{}
		wantPath string
	}{
		{uint64(math.MaxInt64 + 1), "f"},
		{unsupported{1}, "f"},
		{map[int]string{1: "x"}, "f"},
		{[]interface{}{[]int{1}}, "f"},
		{[]interface{}{ServerTimestamp}, "f"},
		{map[string]interface{}{"g": Delete}, "f.g"},
		{map[string]interface{}{"": 1}, "f"},
		{make(chan int), "f"},
	} {
		_, err := encodeValue(test.in, fieldpath.New("f"))
		var ee *EncodeError
		if !errors.As(err, &ee) {
			t.Errorf("%#v: got %v, want *EncodeError", test.in, err)
			continue
		}
		if got := ee.Path.String(); got != test.wantPath {
			t.Errorf("%#v: path = %q, want %q", test.in, got, test.wantPath)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	c := newTestClient(t, &fakeTransport{})
	in := map[string]interface{}{
		"nil":   nil,
		"bool":  true,
		"int":   int64(-5),
		"float": 2.5,
		"str":   "héllo",
		"bytes": []byte("xyz"),
		"time":  time.Date(2020, 1, 2, 3, 4, 5, 6, time.UTC),
		"geo":   &latlng.LatLng{Latitude: 1, Longitude: 2},
		"ref":   c.Doc("users/alovelace/platform/*nix"),
		"arr":   []interface{}{int64(1), "two", map[string]interface{}{"three": 3.0}},
		"map":   map[string]interface{}{"a": map[string]interface{}{}, "b": []interface{}{}},
	}
	fields, err := encodeMap(in, fieldpath.Path{})
	if err != nil {
		t.Fatal(err)
	}
	got, err := c.decodeFields(fields)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(in, got, protocmp.Transform()); diff != "" {
		t.Errorf("round trip (-want +got):\n%s", diff)
	}
}

func TestDecodeReferenceErrors(t *testing.T) {
	c := newTestClient(t, &fakeTransport{})
	for _, name := range []string{
		"projects/other/databases/db/documents/C/d",
		"projects/project/databases/db/documents/C",
		"not a name",
	} {
		_, err := c.decodeValue(&pb.Value{ValueType: &pb.Value_ReferenceValue{ReferenceValue: name}})
		if !errors.Is(err, errBadReference) {
			t.Errorf("%q: got %v, want errBadReference", name, err)
		}
	}
}
