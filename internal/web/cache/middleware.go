package cache

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/textproto"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/conduit-lang/waypoint/runtime/metadata"
)

// Config configures response caching
type Config struct {
	Store Store

	// TTL defaults to five minutes
	TTL time.Duration

	// CacheControl is sent with cached responses; defaults to public with
	// a max-age of TTL
	CacheControl string

	// Key derives the cache key of a request; defaults to Key
	Key func(*http.Request) string

	Logger *zap.Logger
}

// replay headers describe the request that produced the entry, not the
// one being served from it
var replaySkip = map[string]bool{
	"Set-Cookie":   true,
	"X-Cache":      true,
	"X-Request-Id": true,
	"Retry-After":  true,
}

type entry struct {
	Status   int         `json:"status"`
	Header   http.Header `json:"header"`
	Body     []byte      `json:"body"`
	ETag     string      `json:"etag"`
	Modified time.Time   `json:"modified"`
}

// Middleware serves repeated anonymous GET requests from the store. Only
// 200 responses that do not opt out with Cache-Control no-store or private
// are stored. Hits carry ETag and Last-Modified and honor conditional
// requests.
func Middleware(config Config) func(http.Handler) http.Handler {
	if config.TTL <= 0 {
		config.TTL = 5 * time.Minute
	}
	if config.CacheControl == "" {
		config.CacheControl = "public, max-age=" + strconv.Itoa(int(config.TTL/time.Second))
	}
	if config.Key == nil {
		config.Key = Key
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cacheable(r) {
				next.ServeHTTP(w, r)
				return
			}

			key := config.Key(r)
			if e, ok := lookup(r.Context(), config, key); ok {
				serve(w, r, e, config.CacheControl)
				return
			}

			w.Header().Set("X-Cache", "MISS")
			rec := &recorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			if rec.status != http.StatusOK || !storable(w.Header()) {
				return
			}
			e := entry{
				Status:   rec.status,
				Header:   w.Header().Clone(),
				Body:     rec.body.Bytes(),
				ETag:     ETag(rec.body.Bytes()),
				Modified: time.Now().UTC(),
			}
			data, err := json.Marshal(e)
			if err != nil {
				return
			}
			ctx := context.WithoutCancel(r.Context())
			if err := config.Store.Set(ctx, key, data, config.TTL); err != nil {
				config.Logger.Warn("failed to cache response", zap.String("path", r.URL.Path), zap.Error(err))
			}
		})
	}
}

// Action attaches response caching to individual actions
func Action(config Config) metadata.MiddlewareRef {
	return metadata.UseHTTP("responseCache", Middleware(config))
}

// Key hashes the method, path, sorted query and Accept header of r
func Key(r *http.Request) string {
	var b strings.Builder
	b.WriteString(r.Method)
	b.WriteByte(' ')
	b.WriteString(r.URL.Path)

	query := r.URL.Query()
	names := make([]string, 0, len(query))
	for name := range query {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		values := append([]string(nil), query[name]...)
		sort.Strings(values)
		for _, v := range values {
			b.WriteString("&" + name + "=" + v)
		}
	}
	b.WriteString("|" + r.Header.Get("Accept"))

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:16])
}

func cacheable(r *http.Request) bool {
	if r.Method != http.MethodGet {
		return false
	}
	if r.Header.Get("Authorization") != "" || r.Header.Get("Cookie") != "" {
		return false
	}
	return !strings.Contains(r.Header.Get("Cache-Control"), "no-store")
}

func storable(h http.Header) bool {
	cc := h.Get("Cache-Control")
	return !strings.Contains(cc, "no-store") && !strings.Contains(cc, "private")
}

func lookup(ctx context.Context, config Config, key string) (entry, bool) {
	data, err := config.Store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			config.Logger.Warn("cache lookup failed", zap.Error(err))
		}
		return entry{}, false
	}
	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		config.Logger.Warn("dropping undecodable cache entry", zap.Error(err))
		return entry{}, false
	}
	return e, true
}

func serve(w http.ResponseWriter, r *http.Request, e entry, cacheControl string) {
	h := w.Header()
	for name, values := range e.Header {
		name = textproto.CanonicalMIMEHeaderKey(name)
		if replaySkip[name] || strings.HasPrefix(name, "X-Ratelimit-") {
			continue
		}
		if _, set := h[name]; !set {
			h[name] = values
		}
	}
	h.Set("ETag", e.ETag)
	h.Set("Last-Modified", e.Modified.Format(http.TimeFormat))
	h.Set("Cache-Control", cacheControl)
	h.Set("X-Cache", "HIT")

	if NotModified(r, e.ETag, e.Modified) {
		h.Del("Content-Type")
		h.Del("Content-Length")
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.WriteHeader(e.Status)
	_, _ = w.Write(e.Body)
}

// recorder passes the response through while keeping a copy of the body
type recorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	body        bytes.Buffer
}

func (r *recorder) WriteHeader(status int) {
	if !r.wroteHeader {
		r.status = status
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *recorder) Write(b []byte) (int, error) {
	r.wroteHeader = true
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *recorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *recorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
