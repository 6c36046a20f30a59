package source

import (
	"context"
	"io"
	"strings"

	"github.com/appnyang/leafreader/internal/core/domain"
	"github.com/appnyang/leafreader/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DocumentSource = (*Router)(nil)

// Router dispatches URIs to document sources by scheme prefix
type Router struct {
	routes   []route
	fallback driven.DocumentSource
}

type route struct {
	prefix string
	source driven.DocumentSource
}

// NewRouter creates a router sending unmatched URIs to fallback
func NewRouter(fallback driven.DocumentSource) *Router {
	return &Router{fallback: fallback}
}

// Handle routes URIs starting with prefix to src
func (r *Router) Handle(prefix string, src driven.DocumentSource) *Router {
	r.routes = append(r.routes, route{prefix: prefix, source: src})
	return r
}

func (r *Router) pick(uri string) driven.DocumentSource {
	for _, rt := range r.routes {
		if strings.HasPrefix(uri, rt.prefix) {
			return rt.source
		}
	}
	return r.fallback
}

func (r *Router) Stat(ctx context.Context, uri string) (*domain.DocumentInfo, error) {
	return r.pick(uri).Stat(ctx, uri)
}

func (r *Router) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	return r.pick(uri).Open(ctx, uri)
}

func (r *Router) OpenAt(ctx context.Context, uri string, byteOffset int64) (io.ReadCloser, error) {
	return r.pick(uri).OpenAt(ctx, uri, byteOffset)
}
