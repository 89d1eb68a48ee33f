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
	"context"
	"net/url"

	"gocloud.dev/fsdoc/internal/openurl"
)

// ClientURLOpener opens a Client based on a URL.
// The opener must not modify the URL argument. It must be safe to call from
// multiple goroutines.
//
// This interface is generally implemented by types in transport packages.
type ClientURLOpener interface {
	OpenClientURL(ctx context.Context, u *url.URL) (*Client, error)
}

// URLMux is a URL opener multiplexer. It matches the scheme of the URLs against
// a set of registered schemes and calls the opener that matches the URL's
// scheme.
//
// The zero value is a multiplexer with no registered scheme.
type URLMux struct {
	schemes openurl.SchemeMap
}

// ClientSchemes returns a sorted slice of the registered Client schemes.
func (mux *URLMux) ClientSchemes() []string { return mux.schemes.Schemes() }

// RegisterClient registers the opener with the given scheme. If an opener
// already exists for the scheme, RegisterClient panics.
func (mux *URLMux) RegisterClient(scheme string, opener ClientURLOpener) {
	mux.schemes.Register("fsdoc", scheme, opener)
}

// OpenClient calls OpenClientURL with the URL parsed from urlstr.
// OpenClient is safe to call from multiple goroutines.
func (mux *URLMux) OpenClient(ctx context.Context, urlstr string) (*Client, error) {
	opener, u, err := mux.schemes.FromString(urlstr)
	if err != nil {
		return nil, err
	}
	return opener.(ClientURLOpener).OpenClientURL(ctx, u)
}

// OpenClientURL dispatches the URL to the opener that is registered with
// the URL's scheme. OpenClientURL is safe to call from multiple goroutines.
func (mux *URLMux) OpenClientURL(ctx context.Context, u *url.URL) (*Client, error) {
	opener, err := mux.schemes.FromURL(u)
	if err != nil {
		return nil, err
	}
	return opener.(ClientURLOpener).OpenClientURL(ctx, u)
}

var defaultURLMux = new(URLMux)

// DefaultURLMux returns the URLMux used by OpenClient.
//
// Transport packages can use this to register their ClientURLOpener on the mux.
func DefaultURLMux() *URLMux {
	return defaultURLMux
}

// OpenClient opens the Client identified by the URL given, such as
// "firestore://projects/my-project/databases/(default)" or "mem://my-project".
// See the URLOpener documentation in transport subpackages for details on
// supported URL formats.
func OpenClient(ctx context.Context, urlstr string) (*Client, error) {
	return defaultURLMux.OpenClient(ctx, urlstr)
}
