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

// Package fieldpath parses, renders and orders paths to fields inside a
// document.
//
// A Path is a sequence of segments naming a field in nested maps. Its string
// form, the "API representation", separates segments with dots and wraps any
// segment that is not a simple identifier in backticks:
//
//	a.b.c
//	`first.name`.last
//	`1x`.`back\`tick`
package fieldpath // import "gocloud.dev/fsdoc/fieldpath"

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// A Path names a field within a document. The zero value is the empty path,
// which names the document itself.
type Path struct {
	segs []string
}

// New returns the path with the given segments, used verbatim. Segments are
// not split on dots.
// New panics if a segment is empty.
func New(segments ...string) Path {
	for i, s := range segments {
		if s == "" {
			panic(fmt.Sprintf("fieldpath.New: empty segment at index %d", i))
		}
	}
	return Path{segs: append([]string(nil), segments...)}
}

// SyntaxError describes a malformed field path string.
type SyntaxError struct {
	Input  string
	Offset int // byte offset of the problem in Input
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("fieldpath: invalid path %q at offset %d: %s", e.Input, e.Offset, e.Msg)
}

// Parse parses s as a dotted field path.
//
// Unquoted segments end at the next unescaped dot; a backslash makes the
// following character literal, so `a\.b` is the single segment "a.b".
// Backtick-quoted segments may contain dots, and use a backslash to escape a
// backtick or a backslash.
func Parse(s string) (Path, error) {
	if s == "" {
		return Path{}, &SyntaxError{Input: s, Msg: "empty path"}
	}
	var (
		segs []string
		cur  strings.Builder
		i    int
	)
	synErr := func(off int, msg string) error {
		return &SyntaxError{Input: s, Offset: off, Msg: msg}
	}
	for {
		start := i
		cur.Reset()
		if i < len(s) && s[i] == '`' {
			i++
			closed := false
			for i < len(s) {
				c := s[i]
				if c == '\\' {
					if i+1 >= len(s) {
						return Path{}, synErr(i, "dangling escape")
					}
					cur.WriteByte(s[i+1])
					i += 2
					continue
				}
				if c == '`' {
					closed = true
					i++
					break
				}
				cur.WriteByte(c)
				i++
			}
			if !closed {
				return Path{}, synErr(start, "unterminated quoted segment")
			}
			if i < len(s) && s[i] != '.' {
				return Path{}, synErr(i, "quoted segment must be followed by '.'")
			}
		} else {
			for i < len(s) && s[i] != '.' {
				c := s[i]
				switch c {
				case '\\':
					if i+1 >= len(s) {
						return Path{}, synErr(i, "dangling escape")
					}
					cur.WriteByte(s[i+1])
					i += 2
					continue
				case '`':
					return Path{}, synErr(i, "backtick inside unquoted segment")
				}
				cur.WriteByte(c)
				i++
			}
		}
		if cur.Len() == 0 {
			return Path{}, synErr(start, "empty segment")
		}
		segs = append(segs, cur.String())
		if i == len(s) {
			break
		}
		// s[i] == '.'
		i++
		if i == len(s) {
			return Path{}, synErr(i, "empty segment")
		}
	}
	return Path{segs: segs}, nil
}

// MustParse is like Parse but panics on error.
func MustParse(s string) Path {
	p, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return p
}

var simpleSegment = regexp.MustCompile(`^[A-Za-z_][A-Za-z_0-9]*$`)

// String returns the API representation of p.
func (p Path) String() string {
	var b strings.Builder
	for i, s := range p.segs {
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(quote(s))
	}
	return b.String()
}

func quote(s string) string {
	if simpleSegment.MatchString(s) {
		return s
	}
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "`", "\\`")
	return "`" + s + "`"
}

// Segments returns a copy of p's segments.
func (p Path) Segments() []string {
	return append([]string(nil), p.segs...)
}

// Len returns the number of segments in p.
func (p Path) Len() int { return len(p.segs) }

// Segment returns the i'th segment.
func (p Path) Segment(i int) string { return p.segs[i] }

// IsEmpty reports whether p has no segments.
func (p Path) IsEmpty() bool { return len(p.segs) == 0 }

// Append returns a new path with segs added to the end of p.
func (p Path) Append(segs ...string) Path {
	out := make([]string, 0, len(p.segs)+len(segs))
	out = append(out, p.segs...)
	return New(append(out, segs...)...)
}

// Concat returns p followed by q.
func (p Path) Concat(q Path) Path {
	return p.Append(q.segs...)
}

// Parent returns p without its last segment.
func (p Path) Parent() Path {
	if len(p.segs) == 0 {
		return p
	}
	return Path{segs: p.segs[:len(p.segs)-1]}
}

// Last returns the final segment of p, or "" for the empty path.
func (p Path) Last() string {
	if len(p.segs) == 0 {
		return ""
	}
	return p.segs[len(p.segs)-1]
}

// Equal reports whether p and q have the same segments.
func (p Path) Equal(q Path) bool {
	return Compare(p, q) == 0
}

// IsPrefixOf reports whether p equals q or is an ancestor of q.
func (p Path) IsPrefixOf(q Path) bool {
	if len(p.segs) > len(q.segs) {
		return false
	}
	for i, s := range p.segs {
		if q.segs[i] != s {
			return false
		}
	}
	return true
}

// Compare orders paths segment by segment; when one path is a prefix of the
// other, the shorter sorts first. It returns -1, 0 or +1.
func Compare(p, q Path) int {
	for i := 0; i < len(p.segs) && i < len(q.segs); i++ {
		if c := strings.Compare(p.segs[i], q.segs[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(p.segs) < len(q.segs):
		return -1
	case len(p.segs) > len(q.segs):
		return 1
	}
	return 0
}

// Less reports whether p sorts before q.
func Less(p, q Path) bool { return Compare(p, q) < 0 }

// Sort sorts ps in place.
func Sort(ps []Path) {
	sort.Slice(ps, func(i, j int) bool { return Less(ps[i], ps[j]) })
}

// Strings renders each path in ps.
func Strings(ps []Path) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.String()
	}
	return out
}

// ErrNotList is returned by FromInterfaces for a bare string.
var ErrNotList = fmt.Errorf("fieldpath: field paths must be a list, not a single string")

// FromInterfaces converts a caller-supplied collection of paths. It accepts
// []string (each parsed with Parse), []Path and [][]string (segments). A bare
// string is rejected with ErrNotList, since iterating it would yield one path
// per character. A nil v yields nil.
func FromInterfaces(v interface{}) ([]Path, error) {
	switch v := v.(type) {
	case nil:
		return nil, nil
	case string:
		return nil, ErrNotList
	case []string:
		out := make([]Path, len(v))
		for i, s := range v {
			p, err := Parse(s)
			if err != nil {
				return nil, err
			}
			out[i] = p
		}
		return out, nil
	case []Path:
		for _, p := range v {
			if p.IsEmpty() {
				return nil, &SyntaxError{Msg: "empty path"}
			}
		}
		return append([]Path(nil), v...), nil
	case [][]string:
		out := make([]Path, len(v))
		for i, segs := range v {
			if len(segs) == 0 {
				return nil, &SyntaxError{Msg: "empty path"}
			}
			for _, s := range segs {
				if s == "" {
					return nil, &SyntaxError{Input: strings.Join(segs, "."), Msg: "empty segment"}
				}
			}
			out[i] = New(segs...)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("fieldpath: unsupported field path collection of type %T", v)
	}
}
