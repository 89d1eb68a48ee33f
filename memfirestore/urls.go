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

package memfirestore

import (
	"context"
	"fmt"
	"net/url"

	"go.uber.org/zap"
	"gocloud.dev/fsdoc"
)

func init() {
	fsdoc.DefaultURLMux().RegisterClient(Scheme, &URLOpener{})
}

// Scheme is the URL scheme memfirestore registers its URLOpener under on
// fsdoc.DefaultURLMux.
const Scheme = "mem"

// URLOpener opens URLs like "mem://my-project?database=db".
//
// The URL's host is used as the project ID. The URL's path is ignored.
//
// The following query parameters are supported:
//
//   - database: the database ID; defaults to fsdoc.DefaultDatabaseID.
//   - filename: the file to load documents from and save them to on Close.
//
// Every URL opens a new, separate Transport.
type URLOpener struct {
	// Logger is passed to both the Transport and the Client.
	Logger *zap.Logger
}

// OpenClientURL opens a fsdoc.Client based on u.
func (o *URLOpener) OpenClientURL(ctx context.Context, u *url.URL) (*fsdoc.Client, error) {
	q := u.Query()
	opts := &Options{Filename: q.Get("filename"), Logger: o.Logger}
	copts := &fsdoc.ClientOptions{DatabaseID: q.Get("database"), Logger: o.Logger}
	q.Del("filename")
	q.Del("database")
	for param := range q {
		return nil, fmt.Errorf("open client %v: invalid query parameter %q", u, param)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("open client %v: missing project ID in host", u)
	}
	t, err := NewTransport(opts)
	if err != nil {
		return nil, fmt.Errorf("open client %v: %v", u, err)
	}
	return fsdoc.NewClient(t, u.Host, copts)
}
