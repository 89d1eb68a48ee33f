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
	"fmt"

	"gocloud.dev/fsdoc/fieldpath"
	"gocloud.dev/fsdoc/internal/gcerr"
)

// Usage errors. Each is returned wrapped in an error whose gcerrors.Code is
// InvalidArgument; test for them with errors.Is.
var (
	// ErrEmptyUpdate is returned by Update when there are no fields to update.
	ErrEmptyUpdate = errors.New("fsdoc: no fields to update")

	// ErrExistsPrecondition is returned by Update when given an Exists
	// precondition. Update always requires the document to exist.
	ErrExistsPrecondition = errors.New("fsdoc: Update does not accept an Exists precondition")

	// ErrFieldPathsNotList is returned by Get when GetOptions.FieldPaths is
	// a single string rather than a list of paths.
	ErrFieldPathsNotList = fieldpath.ErrNotList

	// ErrConflictingPaths is returned when one update or merge path is a
	// prefix of, or the same as, another.
	ErrConflictingPaths = errors.New("fsdoc: conflicting field paths")

	// ErrNestedDelete is returned by Update when Delete appears inside a map
	// value rather than as the value of an update path.
	ErrNestedDelete = errors.New("fsdoc: Delete cannot be nested inside a map value")

	// ErrDeleteWithoutMerge is returned by Create, and by Set without a
	// merge option, when the data contains Delete.
	ErrDeleteWithoutMerge = errors.New("fsdoc: Delete is only allowed in Update or in Set with a merge option")

	// ErrMergeField is returned by Set when a merge path is not present
	// in the data, or when Delete appears outside the merge paths.
	ErrMergeField = errors.New("fsdoc: invalid merge field")

	// ErrInvalidPrecondition is returned for a precondition the operation
	// cannot take.
	ErrInvalidPrecondition = errors.New("fsdoc: invalid precondition")
)

// Snapshot field access errors.
var (
	// ErrDocumentNotExist is returned when reading a field of a snapshot
	// whose document does not exist.
	ErrDocumentNotExist = errors.New("fsdoc: document does not exist")

	// ErrNoSuchField is returned when reading a field that is not present in
	// an existing document.
	ErrNoSuchField = errors.New("fsdoc: no such field")
)

// EncodeError reports a value that has no document representation.
type EncodeError struct {
	Path   fieldpath.Path // location of Value in the document; empty at the top level
	Value  interface{}
	Reason string
}

func (e *EncodeError) Error() string {
	if e.Path.IsEmpty() {
		return fmt.Sprintf("fsdoc: cannot encode %T: %s", e.Value, e.Reason)
	}
	return fmt.Sprintf("fsdoc: cannot encode %T at %s: %s", e.Value, e.Path, e.Reason)
}

func usageErrorf(sentinel error, format string, args ...interface{}) error {
	return gcerr.New(gcerr.InvalidArgument, sentinel, 2, fmt.Sprintf(format, args...))
}

// invalidArg wraps err, which came from field path parsing or encoding.
func invalidArg(err error) error {
	var ge *gcerr.Error
	if errors.As(err, &ge) {
		return err
	}
	return gcerr.New(gcerr.InvalidArgument, err, 2, "")
}
