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
	"sync"
	"time"

	pb "cloud.google.com/go/firestore/apiv1/firestorepb"
	"gocloud.dev/fsdoc/fieldpath"
	"gocloud.dev/fsdoc/internal/gcerr"
)

// A DocumentSnapshot is the contents of a document as of a read. The fields
// are decoded the first time they are accessed.
type DocumentSnapshot struct {
	// Ref is the document that was read.
	Ref *DocumentRef

	// CreateTime and UpdateTime are zero if the document does not exist.
	CreateTime time.Time
	UpdateTime time.Time

	// ReadTime is the time of the read, if the transport reported one.
	ReadTime time.Time

	proto *pb.Document

	once sync.Once
	data map[string]interface{}
	err  error
}

func newSnapshot(ref *DocumentRef, doc *pb.Document, readTime time.Time) *DocumentSnapshot {
	s := &DocumentSnapshot{Ref: ref, proto: doc, ReadTime: readTime}
	if doc.GetCreateTime() != nil {
		s.CreateTime = doc.CreateTime.AsTime()
	}
	if doc.GetUpdateTime() != nil {
		s.UpdateTime = doc.UpdateTime.AsTime()
	}
	return s
}

func newMissingSnapshot(ref *DocumentRef, readTime time.Time) *DocumentSnapshot {
	return &DocumentSnapshot{Ref: ref, ReadTime: readTime}
}

// Exists reports whether the document existed at the time of the read.
func (s *DocumentSnapshot) Exists() bool {
	return s != nil && s.proto != nil
}

func (s *DocumentSnapshot) decoded() (map[string]interface{}, error) {
	s.once.Do(func() {
		s.data, s.err = s.Ref.client().decodeFields(s.proto.GetFields())
	})
	return s.data, s.err
}

// Data returns the document's fields as a map of the types described in the
// package documentation. It returns nil if the document does not exist. The
// map is a copy; modifying it does not affect the snapshot.
func (s *DocumentSnapshot) Data() (map[string]interface{}, error) {
	if !s.Exists() {
		return nil, nil
	}
	m, err := s.decoded()
	if err != nil {
		return nil, err
	}
	return deepCopy(m).(map[string]interface{}), nil
}

// DataAt returns the value at the dotted field path. It returns an error
// wrapping ErrDocumentNotExist if the document does not exist, and
// ErrNoSuchField if the field is absent.
func (s *DocumentSnapshot) DataAt(path string) (interface{}, error) {
	p, err := fieldpath.Parse(path)
	if err != nil {
		return nil, invalidArg(err)
	}
	return s.dataAtPath(p)
}

// DataAtPath is like DataAt, for a parsed path.
func (s *DocumentSnapshot) DataAtPath(p fieldpath.Path) (interface{}, error) {
	return s.dataAtPath(p)
}

func (s *DocumentSnapshot) dataAtPath(p fieldpath.Path) (interface{}, error) {
	if !s.Exists() {
		return nil, gcerr.New(gcerr.NotFound, ErrDocumentNotExist, 2, "fsdoc: "+s.Ref.Path())
	}
	m, err := s.decoded()
	if err != nil {
		return nil, err
	}
	v, ok := getAtPath(m, p)
	if !ok || p.IsEmpty() {
		return nil, gcerr.New(gcerr.NotFound, ErrNoSuchField, 2, "fsdoc: "+p.String())
	}
	return deepCopy(v), nil
}

func deepCopy(v interface{}) interface{} {
	switch v := v.(type) {
	case map[string]interface{}:
		m := make(map[string]interface{}, len(v))
		for k, e := range v {
			m[k] = deepCopy(e)
		}
		return m
	case []interface{}:
		s := make([]interface{}, len(v))
		for i, e := range v {
			s[i] = deepCopy(e)
		}
		return s
	case []byte:
		return append([]byte(nil), v...)
	}
	return v
}
