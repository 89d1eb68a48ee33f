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

package main

import (
	"encoding/base64"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"gocloud.dev/fsdoc"
	"google.golang.org/genproto/googleapis/type/latlng"
)

// parseObject parses a JSON object into a document map. Numbers written
// without a fraction or exponent become int64s; others become float64s.
func parseObject(s string) (map[string]interface{}, error) {
	if !gjson.Valid(s) {
		return nil, fmt.Errorf("invalid JSON: %q", s)
	}
	r := gjson.Parse(s)
	if !r.IsObject() {
		return nil, fmt.Errorf("JSON value %s is not an object", r.Raw)
	}
	return fromJSON(r).(map[string]interface{}), nil
}

func fromJSON(r gjson.Result) interface{} {
	switch {
	case r.IsObject():
		m := map[string]interface{}{}
		r.ForEach(func(k, v gjson.Result) bool {
			m[k.String()] = fromJSON(v)
			return true
		})
		return m
	case r.IsArray():
		s := []interface{}{}
		for _, e := range r.Array() {
			s = append(s, fromJSON(e))
		}
		return s
	}
	switch r.Type {
	case gjson.Null:
		return nil
	case gjson.True, gjson.False:
		return r.Bool()
	case gjson.Number:
		if !strings.ContainsAny(r.Raw, ".eE") {
			if i, err := strconv.ParseInt(r.Raw, 10, 64); err == nil {
				return i
			}
		}
		return r.Float()
	default:
		return r.String()
	}
}

// toJSON renders document data as a JSON object with sorted keys.
func toJSON(data map[string]interface{}) (string, error) {
	out := "{}"
	for _, k := range sortedKeys(data) {
		var err error
		if out, err = setJSON(out, escapeKey(k), data[k]); err != nil {
			return "", err
		}
	}
	return out, nil
}

// setJSON sets the value at path in doc. Values without a JSON form are
// rendered as strings.
func setJSON(doc, path string, v interface{}) (string, error) {
	var err error
	switch v := v.(type) {
	case map[string]interface{}:
		if doc, err = sjson.SetRaw(doc, path, "{}"); err != nil {
			return "", err
		}
		for _, k := range sortedKeys(v) {
			if doc, err = setJSON(doc, path+"."+escapeKey(k), v[k]); err != nil {
				return "", err
			}
		}
		return doc, nil
	case []interface{}:
		if doc, err = sjson.SetRaw(doc, path, "[]"); err != nil {
			return "", err
		}
		for i, e := range v {
			if doc, err = setJSON(doc, path+"."+strconv.Itoa(i), e); err != nil {
				return "", err
			}
		}
		return doc, nil
	case []byte:
		return sjson.Set(doc, path, base64.StdEncoding.EncodeToString(v))
	case time.Time:
		return sjson.Set(doc, path, v.Format(time.RFC3339Nano))
	case *fsdoc.DocumentRef:
		return sjson.Set(doc, path, v.Path())
	case *latlng.LatLng:
		return sjson.SetRaw(doc, path, fmt.Sprintf(`{"latitude":%v,"longitude":%v}`, v.GetLatitude(), v.GetLongitude()))
	default:
		return sjson.Set(doc, path, v)
	}
}

// escapeKey escapes the characters sjson treats specially in a path.
func escapeKey(k string) string {
	var b strings.Builder
	for _, r := range k {
		switch r {
		case '.', '*', '?', '\\', '|', '#', '@', ':', '!', '=', '<', '>', '%':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
