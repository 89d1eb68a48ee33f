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
	"time"

	pb "cloud.google.com/go/firestore/apiv1/firestorepb"
	"github.com/googleapis/gax-go/v2"
	"gocloud.dev/fsdoc/fieldpath"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// A Precondition is a condition on the stored document that must hold for a
// write to succeed. Use Exists or LastUpdateTime.
type Precondition interface {
	proto() *pb.Precondition
	isExists() bool
}

type existsPrecondition bool

// Exists returns a precondition that the document exists (b == true) or does
// not exist (b == false). Update does not accept it.
func Exists(b bool) Precondition { return existsPrecondition(b) }

func (e existsPrecondition) proto() *pb.Precondition {
	return &pb.Precondition{ConditionType: &pb.Precondition_Exists{Exists: bool(e)}}
}

func (existsPrecondition) isExists() bool { return true }

type updateTimePrecondition time.Time

// LastUpdateTime returns a precondition that the document was last updated
// at exactly t.
func LastUpdateTime(t time.Time) Precondition { return updateTimePrecondition(t) }

func (u updateTimePrecondition) proto() *pb.Precondition {
	return &pb.Precondition{ConditionType: &pb.Precondition_UpdateTime{
		UpdateTime: timestamppb.New(time.Time(u)),
	}}
}

func (updateTimePrecondition) isExists() bool { return false }

// CallPolicy carries the retry and timeout policy for a single RPC. It is
// forwarded to the transport unchanged.
type CallPolicy struct {
	// Retry, if non-nil, is used by the transport to decide whether to retry.
	Retry func() gax.Retryer
	// Timeout bounds the RPC, if positive.
	Timeout time.Duration
	// CallOptions are appended after Retry and Timeout.
	CallOptions []gax.CallOption
}

func (p *CallPolicy) callOptions() []gax.CallOption {
	if p == nil {
		return nil
	}
	var opts []gax.CallOption
	if p.Retry != nil {
		opts = append(opts, gax.WithRetry(p.Retry))
	}
	if p.Timeout > 0 {
		opts = append(opts, gax.WithTimeout(p.Timeout))
	}
	return append(opts, p.CallOptions...)
}

// WriteOptions controls Create, Update and Delete.
type WriteOptions struct {
	// Precondition, if set, must hold for the write to be applied.
	Precondition Precondition
	// Transaction is an opaque transaction id to commit within.
	Transaction []byte
	CallPolicy
}

// SetOptions controls Set.
type SetOptions struct {
	// MergeAll merges every leaf field of the data into the stored document
	// instead of replacing it.
	MergeAll bool
	// Merge restricts the write to the given paths. Paths are dotted strings
	// (parsed with fieldpath.Parse) or fieldpath.Path values. It may not be
	// combined with MergeAll.
	Merge []interface{}
	// Transaction is an opaque transaction id to commit within.
	Transaction []byte
	CallPolicy
}

// GetOptions controls Get.
type GetOptions struct {
	// FieldPaths, if non-nil, restricts the returned fields. It must be a
	// []string of dotted paths, a []fieldpath.Path or a [][]string of
	// segments. A bare string is rejected.
	FieldPaths interface{}
	// Transaction is an opaque transaction id to read within.
	Transaction []byte
	CallPolicy
}

// ListOptions controls Collections.
type ListOptions struct {
	// PageSize is the number of ids requested per RPC. Zero lets the service
	// choose.
	PageSize int32
	CallPolicy
}

func mergePaths(merge []interface{}) ([]fieldpath.Path, error) {
	out := make([]fieldpath.Path, 0, len(merge))
	for _, m := range merge {
		switch m := m.(type) {
		case string:
			p, err := fieldpath.Parse(m)
			if err != nil {
				return nil, invalidArg(err)
			}
			out = append(out, p)
		case fieldpath.Path:
			if m.IsEmpty() {
				return nil, usageErrorf(ErrMergeField, "fsdoc: empty merge path")
			}
			out = append(out, m)
		default:
			return nil, usageErrorf(ErrMergeField, "fsdoc: merge path must be a string or fieldpath.Path, not %T", m)
		}
	}
	return out, nil
}
