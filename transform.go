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

import "fmt"

// A Transform is a value that, placed in the data given to Create, Set or
// Update, asks the service to modify a field instead of storing a value.
//
// Transforms are recognized by their type, never by comparing values. They
// may appear at any depth in nested maps, but not inside arrays.
type Transform interface {
	transformName() string
}

type (
	deleteTransform          struct{}
	serverTimestampTransform struct{}
	arrayUnionTransform      struct{ elems []interface{} }
	arrayRemoveTransform     struct{ elems []interface{} }
	incrementTransform       struct{ n interface{} }
)

var (
	// Delete removes the field. It is allowed in Update and in Set with a
	// merge option.
	Delete Transform = deleteTransform{}

	// ServerTimestamp sets the field to the commit time of the write.
	ServerTimestamp Transform = serverTimestampTransform{}
)

// ArrayUnion appends each of elems not already present in the array field.
// A missing or non-array field is replaced by elems.
func ArrayUnion(elems ...interface{}) Transform {
	return arrayUnionTransform{elems: elems}
}

// ArrayRemove removes every occurrence of each of elems from the array field.
func ArrayRemove(elems ...interface{}) Transform {
	return arrayRemoveTransform{elems: elems}
}

// Increment adds n to the numeric field. n must be an integer or floating-point
// value; other types are rejected when the write is built.
func Increment(n interface{}) Transform {
	return incrementTransform{n: n}
}

func (deleteTransform) transformName() string          { return "Delete" }
func (serverTimestampTransform) transformName() string { return "ServerTimestamp" }
func (arrayUnionTransform) transformName() string      { return "ArrayUnion" }
func (arrayRemoveTransform) transformName() string     { return "ArrayRemove" }
func (incrementTransform) transformName() string       { return "Increment" }

func (t deleteTransform) String() string          { return t.transformName() }
func (t serverTimestampTransform) String() string { return t.transformName() }
func (t arrayUnionTransform) String() string      { return fmt.Sprintf("ArrayUnion%v", t.elems) }
func (t arrayRemoveTransform) String() string     { return fmt.Sprintf("ArrayRemove%v", t.elems) }
func (t incrementTransform) String() string       { return fmt.Sprintf("Increment(%v)", t.n) }
