package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/yatube/yatube/pkg/logging"
	"github.com/yatube/yatube/pkg/telemetry"
)

// entry is a rendered response as stored in the Store.
type entry struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// PageCache serves whole rendered responses from a Store for a fixed TTL.
// Entries are never invalidated per post: only expiry and Clear drop them.
type PageCache struct {
	store  Store
	prefix string
	ttl    time.Duration
	vary   func(*gin.Context) string
	logger *zap.Logger

	hits   metric.Int64Counter
	misses metric.Int64Counter
}

// NewPageCache creates a page cache whose keys start with page:<prefix>:.
func NewPageCache(store Store, prefix string, ttl time.Duration) *PageCache {
	meter := telemetry.Meter()
	hits, _ := meter.Int64Counter("yatube.page_cache.hits",
		metric.WithDescription("Responses served from the page cache"))
	misses, _ := meter.Int64Counter("yatube.page_cache.misses",
		metric.WithDescription("Responses rendered because the page cache had no entry"))

	return &PageCache{
		store:  store,
		prefix: prefix,
		ttl:    ttl,
		logger: logging.WithComponent("page_cache"),
		hits:   hits,
		misses: misses,
	}
}

// VaryBy makes fn's result part of every key, so responses rendered for
// different viewers are stored apart. fn returns "" for the shared entry.
func (p *PageCache) VaryBy(fn func(*gin.Context) string) *PageCache {
	p.vary = fn
	return p
}

// Key returns the cache key of a request URI. The query string is part of it,
// so every page number has its own entry.
func (p *PageCache) Key(requestURI, vary string) string {
	if vary == "" {
		return "page:" + p.prefix + ":" + HashKey(requestURI)
	}
	return "page:" + p.prefix + ":" + HashKey(requestURI, vary)
}

// Clear flushes every cached page.
func (p *PageCache) Clear(ctx context.Context) error {
	return p.store.Clear(ctx)
}

// Middleware returns a gin handler that replays a cached response or lets the
// chain render it and stores the result when it is a 200.
func (p *PageCache) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		vary := ""
		if p.vary != nil {
			vary = p.vary(c)
		}
		key := p.Key(c.Request.URL.RequestURI(), vary)
		attrs := metric.WithAttributes(attribute.String("prefix", p.prefix))

		raw, err := p.store.Get(ctx, key)
		switch {
		case err == nil:
			var e entry
			if err := json.Unmarshal(raw, &e); err == nil {
				p.hits.Add(ctx, 1, attrs)
				c.Header("X-Cache", "HIT")
				c.Data(e.Status, e.ContentType, e.Body)
				c.Abort()
				return
			}
			p.logger.Warn("Dropping undecodable cache entry", zap.String("key", key))
		case !errors.Is(err, ErrCacheMiss):
			p.logger.Error("Cache read failed", zap.String("key", key), zap.Error(err))
		}

		p.misses.Add(ctx, 1, attrs)
		w := &capturingWriter{ResponseWriter: c.Writer}
		c.Writer = w
		c.Header("X-Cache", "MISS")

		c.Next()

		if w.Status() != http.StatusOK || len(c.Errors) > 0 {
			return
		}

		value, err := json.Marshal(entry{
			Status:      w.Status(),
			ContentType: w.Header().Get("Content-Type"),
			Body:        w.body.Bytes(),
		})
		if err != nil {
			p.logger.Error("Failed to encode cache entry", zap.Error(err))
			return
		}
		if err := p.store.Set(ctx, key, value, p.ttl); err != nil {
			p.logger.Error("Cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
}

// capturingWriter copies everything written to the client into body.
type capturingWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *capturingWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *capturingWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}
