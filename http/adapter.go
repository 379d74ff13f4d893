// Package http exposes a Store over HTTP.
//
// POST stores the request body and answers with a short URL. GET and HEAD
// redirect a short URL to the stored target.
package http //nolint:revive // package name matches the protocol it serves

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/meigma/shortblob/core"
)

// DefaultScheme is used for short URLs built from plain-HTTP requests.
const DefaultScheme = "http"

// Adapter translates between request fields and Store operations. It holds
// no state of its own and is safe for concurrent use.
type Adapter struct {
	store  *core.Store
	scheme string
}

// NewAdapter returns an adapter over store producing scheme:// URLs. An
// empty scheme means DefaultScheme.
func NewAdapter(store *core.Store, scheme string) *Adapter {
	if scheme == "" {
		scheme = DefaultScheme
	}
	return &Adapter{store: store, scheme: scheme}
}

// Shorten stores body and returns the short URL for it on host.
func (a *Adapter) Shorten(ctx context.Context, host string, body []byte) (string, error) {
	return a.shorten(ctx, a.scheme, host, body)
}

func (a *Adapter) shorten(ctx context.Context, scheme, host string, body []byte) (string, error) {
	id, err := a.store.Insert(ctx, body)
	if err != nil {
		return "", err
	}
	return scheme + "://" + host + "/" + id.String(), nil
}

// Resolve returns the redirect target for a request path. The last path
// segment is the candidate identifier; anything malformed is ErrNotFound.
func (a *Adapter) Resolve(ctx context.Context, path string) (string, error) {
	content, err := a.store.Lookup(ctx, lastSegment(path))
	if err != nil {
		return "", err
	}
	return decodeTarget(content), nil
}

func lastSegment(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[i+1:]
	}
	return path
}

func decodeTarget(content []byte) string {
	if utf8.Valid(content) {
		return string(content)
	}
	return strings.ToValidUTF8(string(content), string(utf8.RuneError))
}
