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

// Package fsdoc reads and writes single documents in a hierarchical document
// database with the data model of Cloud Firestore.
//
// A Client addresses one database. Documents live in collections and may
// contain subcollections; a DocumentRef names one by its slash-separated path:
//
//	doc := client.Doc("users/alovelace")
//	_, err := doc.Create(ctx, map[string]interface{}{"first": "Ada", "born": 1815}, nil)
//
// # Writes
//
// Each of Create, Set, Update and Delete sends exactly one write in one
// commit. Create fails if the document exists; Set replaces it, or with
// SetOptions.MergeAll or SetOptions.Merge merges into it; Update changes only
// the named fields of an existing document. Keys of the map given to Update
// are dotted field paths (see package fieldpath), so
//
//	doc.Update(ctx, map[string]interface{}{"address.city": "London"}, nil)
//
// changes only the city. The special values Delete, ServerTimestamp,
// ArrayUnion, ArrayRemove and Increment ask the service to transform a field
// rather than store a value.
//
// # Values
//
// Writes accept nil, bool, integer and floating-point types, string, []byte,
// time.Time, *timestamppb.Timestamp, *latlng.LatLng, *DocumentRef, slices and
// arrays, and maps with string keys. Arrays may not directly contain arrays.
// Reads return nil, bool, int64, float64, string, []byte, time.Time,
// *latlng.LatLng, *DocumentRef, []interface{} and map[string]interface{}.
//
// # Transports
//
// A Client sends its RPCs through a driver.Transport. Package gcpfirestore
// talks to Cloud Firestore or its emulator; package memfirestore keeps
// documents in memory. OpenClient selects one by URL scheme.
//
// # Errors
//
// Invalid arguments are reported before any RPC, with gcerrors.Code
// InvalidArgument; test for the specific cause with errors.Is against the
// Err variables of this package. Errors from the transport are returned
// unchanged.
//
// # OpenTelemetry Integration
//
// Every operation emits a span named "gocloud.dev/fsdoc.<Type>.<Method>" and
// records its latency in the "gocloud.dev/fsdoc.latency" histogram, using the
// global OpenTelemetry providers.
package fsdoc // import "gocloud.dev/fsdoc"
