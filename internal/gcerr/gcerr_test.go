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

package gcerr

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestNewf(t *testing.T) {
	e := Newf(Internal, nil, "a %d b", 3)
	got := e.Error()
	want := "a 3 b (code=Internal)"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestFormatting(t *testing.T) {
	for i, test := range []struct {
		err  *Error
		verb string
		want []string // regexps, one per line
	}{
		{
			New(NotFound, nil, 1, "message"),
			"%v",
			[]string{`^message \(code=NotFound\)$`},
		},
		{
			New(NotFound, nil, 1, "message"),
			"%+v",
			[]string{
				`^message \(code=NotFound\):$`,
				`\s+gocloud.dev/fsdoc/internal/gcerr.TestFormatting$`,
				`\s+.*/internal/gcerr/gcerr_test.go:\d+$`,
			},
		},
		{
			New(FailedPrecondition, errors.New("wrapped"), 1, "message"),
			"%v",
			[]string{`^message \(code=FailedPrecondition\): wrapped$`},
		},
		{
			New(AlreadyExists, errors.New("wrapped"), 1, ""),
			"%v",
			[]string{`^code=AlreadyExists: wrapped`},
		},
	} {
		t.Run(strconv.Itoa(i), func(t *testing.T) {
			gotString := fmt.Sprintf(test.verb, test.err)
			gotLines := strings.Split(gotString, "\n")
			if got, want := len(gotLines), len(test.want); got != want {
				t.Fatalf("got %d lines, want %d. got:\n%s", got, want, gotString)
			}
			for j, gl := range gotLines {
				matched, err := regexp.MatchString(test.want[j], gl)
				if err != nil {
					t.Fatal(err)
				}
				if !matched {
					t.Fatalf("line #%d: got %q, which doesn't match %q", j, gl, test.want[j])
				}
			}
		})
	}
}

func TestUnwrap(t *testing.T) {
	sentinel := errors.New("sentinel")
	err := Newf(InvalidArgument, sentinel, "bad %s", "thing")
	if !errors.Is(err, sentinel) {
		t.Errorf("errors.Is(%v, sentinel) = false, want true", err)
	}
	var ge *Error
	if !errors.As(fmt.Errorf("outer: %w", err), &ge) || ge.Code != InvalidArgument {
		t.Errorf("errors.As did not find the *Error with code InvalidArgument")
	}
}

func TestGRPCCode(t *testing.T) {
	for _, test := range []struct {
		in   error
		want ErrorCode
	}{
		{status.Error(codes.NotFound, ""), NotFound},
		{status.Error(codes.AlreadyExists, ""), AlreadyExists},
		{status.Error(codes.FailedPrecondition, ""), FailedPrecondition},
		{status.Error(codes.Aborted, ""), FailedPrecondition},
		{status.Error(codes.PermissionDenied, ""), PermissionDenied},
		{status.Error(codes.DeadlineExceeded, ""), DeadlineExceeded},
		{errors.New("plain"), Unknown},
	} {
		if got := GRPCCode(test.in); got != test.want {
			t.Errorf("GRPCCode(%v) = %v, want %v", test.in, got, test.want)
		}
	}
}

func TestDoNotWrap(t *testing.T) {
	if !DoNotWrap(fmt.Errorf("x: %w", context.Canceled)) {
		t.Error("wrapped context.Canceled: got false, want true")
	}
	if DoNotWrap(errors.New("x")) {
		t.Error("plain error: got true, want false")
	}
}
