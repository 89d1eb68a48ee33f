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
	"fmt"
	"net/url"
	"os"
	"path"
	"regexp"
	"sync"

	vkit "cloud.google.com/go/firestore/apiv1"
	"go.uber.org/zap"
	"gocloud.dev/fsdoc"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

func init() {
	fsdoc.DefaultURLMux().RegisterClient(Scheme, &lazyCredsOpener{})
}

// datastoreScope is the OAuth2 scope Firestore requires.
const datastoreScope = "https://www.googleapis.com/auth/datastore"

type lazyCredsOpener struct {
	init   sync.Once
	opener *URLOpener
	err    error
}

func (o *lazyCredsOpener) OpenClientURL(ctx context.Context, u *url.URL) (*fsdoc.Client, error) {
	o.init.Do(func() {
		// The emulator takes no credentials.
		var ts oauth2.TokenSource
		if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
			creds, err := google.FindDefaultCredentials(ctx, datastoreScope)
			if err != nil {
				o.err = err
				return
			}
			ts = creds.TokenSource
		}
		client, _, err := Dial(ctx, ts)
		if err != nil {
			o.err = err
			return
		}
		o.opener = &URLOpener{Client: client}
	})
	if o.err != nil {
		return nil, fmt.Errorf("open client %s: %v", u, o.err)
	}
	return o.opener.OpenClientURL(ctx, u)
}

// Scheme is the URL scheme gcpfirestore registers its URLOpener under on
// fsdoc.DefaultURLMux.
const Scheme = "firestore"

// databaseRE matches "projects/P" and "projects/P/databases/D".
var databaseRE = regexp.MustCompile(`^projects/([^/]+)(?:/databases/([^/]+))?$`)

// URLOpener opens firestore URLs like
// "firestore://projects/myproject/databases/mydb".
//
// The databases part may be omitted to use the default database.
// No query parameters are supported.
type URLOpener struct {
	// Client must be set to a non-nil client authenticated with Cloud Firestore
	// scope or equivalent.
	Client *vkit.Client

	// Logger is passed to the fsdoc.Client. If nil, nothing is logged.
	Logger *zap.Logger
}

// OpenClientURL opens a fsdoc.Client based on u.
func (o *URLOpener) OpenClientURL(ctx context.Context, u *url.URL) (*fsdoc.Client, error) {
	for param := range u.Query() {
		return nil, fmt.Errorf("open client %s: invalid query parameter %q", u, param)
	}
	projectID, databaseID, err := parseDatabase(path.Join(u.Host, u.Path))
	if err != nil {
		return nil, fmt.Errorf("open client %s: %v", u, err)
	}
	return OpenClient(o.Client, projectID, databaseID, o.Logger)
}

func parseDatabase(s string) (projectID, databaseID string, err error) {
	m := databaseRE.FindStringSubmatch(s)
	if m == nil {
		return "", "", fmt.Errorf("%q is not of the form projects/P or projects/P/databases/D", s)
	}
	return m[1], m[2], nil
}
