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

package gcpfirestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"gocloud.dev/fsdoc"
)

// fakeDefaultCredentials points the default credential lookup at a file with
// fake user credentials.
func fakeDefaultCredentials(t *testing.T) {
	t.Helper()
	f := filepath.Join(t.TempDir(), "creds.json")
	creds := `{"type": "authorized_user", "client_id": "id", "client_secret": "secret", "refresh_token": "token"}`
	if err := os.WriteFile(f, []byte(creds), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", f)
}

func TestOpenClientFromURL(t *testing.T) {
	fakeDefaultCredentials(t)

	tests := []struct {
		URL     string
		WantErr bool
	}{
		// OK.
		{"firestore://projects/myproject/databases/mydb", false},
		// OK, default database.
		{"firestore://projects/myproject", false},
		// Missing project ID.
		{"firestore:///databases/mydb", true},
		// Documents are not part of the URL.
		{"firestore://projects/myproject/databases/mydb/documents/c", true},
		// Invalid param.
		{"firestore://projects/myproject?param=value", true},
	}

	ctx := context.Background()
	for _, test := range tests {
		c, err := fsdoc.OpenClient(ctx, test.URL)
		if c != nil {
			defer c.Close()
		}
		if (err != nil) != test.WantErr {
			t.Errorf("%s: got error %v, want error %v", test.URL, err, test.WantErr)
		}
	}
}

func TestParseDatabase(t *testing.T) {
	for _, test := range []struct {
		in           string
		wantP, wantD string
		wantErr      bool
	}{
		{"projects/p", "p", "", false},
		{"projects/p/databases/(default)", "p", "(default)", false},
		{"projects//databases/d", "", "", true},
		{"p", "", "", true},
	} {
		p, d, err := parseDatabase(test.in)
		if (err != nil) != test.wantErr {
			t.Errorf("%q: got error %v, want error %t", test.in, err, test.wantErr)
			continue
		}
		if p != test.wantP || d != test.wantD {
			t.Errorf("%q: got (%q, %q), want (%q, %q)", test.in, p, d, test.wantP, test.wantD)
		}
	}
}
