// Copyright 2019 The Go Cloud Development Kit Authors
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

// Package gcerrors provides support for getting error codes from
// errors returned by fsdoc APIs.
package gcerrors

import (
	"context"
	"errors"

	"gocloud.dev/fsdoc/internal/gcerr"
)

// An ErrorCode describes the error's category. Programs should act upon an error's
// code, not its message.
type ErrorCode = gcerr.ErrorCode

const (
	// Returned by the Code function on a nil error. It is not a valid
	// code for an error.
	OK ErrorCode = gcerr.OK

	// The error could not be categorized.
	Unknown ErrorCode = gcerr.Unknown

	// The document was not found.
	NotFound ErrorCode = gcerr.NotFound

	// The document exists, but it should not.
	AlreadyExists ErrorCode = gcerr.AlreadyExists

	// A value given to an fsdoc API is incorrect: a malformed field path,
	// an unencodable value or an invalid combination of options.
	InvalidArgument ErrorCode = gcerr.InvalidArgument

	// Something unexpected happened.
	Internal ErrorCode = gcerr.Internal

	// The feature is not implemented by the transport.
	Unimplemented ErrorCode = gcerr.Unimplemented

	// A write precondition did not hold.
	FailedPrecondition ErrorCode = gcerr.FailedPrecondition

	// The caller does not have permission to execute the operation.
	PermissionDenied ErrorCode = gcerr.PermissionDenied

	// Some resource has been exhausted.
	ResourceExhausted ErrorCode = gcerr.ResourceExhausted

	// The operation was canceled.
	Canceled ErrorCode = gcerr.Canceled

	// The operation timed out.
	DeadlineExceeded ErrorCode = gcerr.DeadlineExceeded
)

// Code returns the ErrorCode of err if it, or some error it wraps, is an *Error.
// Errors that carry a gRPC status, as returned unchanged from a transport, are
// mapped from their status code.
// It returns Unknown if err is a non-nil error of a different type.
// If err is nil, it returns the special code OK.
func Code(err error) ErrorCode {
	if err == nil {
		return OK
	}
	var e *gcerr.Error
	if errors.As(err, &e) {
		return e.Code
	}
	if errors.Is(err, context.Canceled) {
		return Canceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return DeadlineExceeded
	}
	return gcerr.GRPCCode(err)
}
