package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/yardgate-backend/api/responses"
	pkgerrors "github.com/angelmondragon/yardgate-backend/pkg/errors"
	"github.com/angelmondragon/yardgate-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/yardgate-backend/pkg/redis"
)

const (
	IdempotencyKeyHeader = "Idempotency-Key"
	// ReplayedHeader marks a response served from a stored record.
	ReplayedHeader = "Idempotent-Replayed"

	defaultIdempotencyTTL = 24 * time.Hour
	pendingIdempotencyTTL = 30 * time.Second
	pendingMarker         = "pending"
)

// idempotentRoute is a POST route whose response is stored per key. Segments
// written as {name} match any single path segment.
type idempotentRoute struct {
	segments []string
	ttl      time.Duration
}

func route(template string, ttl time.Duration) idempotentRoute {
	return idempotentRoute{segments: splitPath(template), ttl: ttl}
}

// Desk and gate submissions. A retried submission replays the first response
// instead of tripping the open-cycle or state checks a second time.
var idempotentRoutes = []idempotentRoute{
	route("/api/v1/desk/exits", defaultIdempotencyTTL),
	route("/api/v1/desk/entries", defaultIdempotencyTTL),
	route("/api/v1/gate/transactions/{transactionId}/exit", defaultIdempotencyTTL),
	route("/api/v1/gate/transactions/{transactionId}/entry", defaultIdempotencyTTL),
}

func (rt idempotentRoute) matches(segments []string) bool {
	if len(segments) != len(rt.segments) {
		return false
	}
	for i, want := range rt.segments {
		if strings.HasPrefix(want, "{") && strings.HasSuffix(want, "}") {
			if segments[i] == "" {
				return false
			}
			continue
		}
		if segments[i] != want {
			return false
		}
	}
	return true
}

func splitPath(path string) []string {
	return strings.Split(strings.Trim(path, "/"), "/")
}

// routeTTL accepts either the chi route pattern or the raw request path.
func routeTTL(method, path string) (time.Duration, bool) {
	if method != http.MethodPost || path == "" {
		return 0, false
	}
	segments := splitPath(path)
	for _, rt := range idempotentRoutes {
		if rt.matches(segments) {
			return rt.ttl, true
		}
	}
	return 0, false
}

type idempotencyRecord struct {
	Status      int    `json:"status"`
	Body        string `json:"body"`
	ContentType string `json:"content_type,omitempty"`
	RequestHash string `json:"request_hash"`
}

// Idempotency replays stored responses for requests that repeat an
// Idempotency-Key. Requests without the header pass straight through, as do
// all requests when store is nil. Server errors are not stored so the caller
// can retry with the same key.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ttl, ok := routeTTL(r.Method, routePattern(r))
			clientKey := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
			if !ok || clientKey == "" {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			guard := idempotencyGuard{
				store:       store,
				logg:        logg,
				key:         store.IdempotencyKey(buildScope(r), clientKey),
				requestHash: hashBody(body),
			}
			if err := guard.claim(ctx, w); err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			if guard.replayed {
				return
			}

			var captured bytes.Buffer
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			ww.Tee(&captured)
			next.ServeHTTP(ww, r)

			guard.settle(ctx, ww.Status(), ww.Header().Get("Content-Type"), captured.Bytes(), ttl)
		})
	}
}

type idempotencyGuard struct {
	store       pkgredis.IdempotencyStore
	logg        *logger.Logger
	key         string
	requestHash string
	replayed    bool
}

// claim either replays a finished record into w or reserves the key for this
// request. Any returned error is ready to be written to the client.
func (g *idempotencyGuard) claim(ctx context.Context, w http.ResponseWriter) error {
	stored, err := g.store.Get(ctx, g.key)
	switch {
	case err != nil && !errors.Is(err, redis.Nil):
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency")
	case stored == pendingMarker:
		return errInFlight()
	case stored != "":
		return g.replay(ctx, w, stored)
	}

	reserved, err := g.store.SetNX(ctx, g.key, pendingMarker, pendingIdempotencyTTL)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve idempotency key")
	}
	if !reserved {
		return errInFlight()
	}
	return nil
}

func (g *idempotencyGuard) replay(ctx context.Context, w http.ResponseWriter, stored string) error {
	var record idempotencyRecord
	if err := json.Unmarshal([]byte(stored), &record); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record")
	}
	if record.RequestHash != g.requestHash {
		return pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body")
	}
	body, err := base64.StdEncoding.DecodeString(record.Body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record")
	}

	if g.logg != nil {
		g.logg.Info(g.logg.WithField(ctx, "replayed_status", record.Status), "idempotency.replayed")
	}
	if record.ContentType != "" {
		w.Header().Set("Content-Type", record.ContentType)
	}
	w.Header().Set(ReplayedHeader, "true")
	w.WriteHeader(record.Status)
	_, _ = w.Write(body)
	g.replayed = true
	return nil
}

// settle stores the finished response, or frees the key after a server error.
func (g *idempotencyGuard) settle(ctx context.Context, status int, contentType string, body []byte, ttl time.Duration) {
	if status == 0 {
		status = http.StatusOK
	}
	if status >= http.StatusInternalServerError {
		g.logFailure(ctx, "idempotency.release_failed", g.store.Del(ctx, g.key))
		return
	}

	payload, err := json.Marshal(idempotencyRecord{
		Status:      status,
		Body:        base64.StdEncoding.EncodeToString(body),
		ContentType: contentType,
		RequestHash: g.requestHash,
	})
	if err != nil {
		g.logFailure(ctx, "idempotency.encode_failed", err)
		return
	}
	g.logFailure(ctx, "idempotency.persist_failed", g.store.Set(ctx, g.key, string(payload), ttl))
}

func (g *idempotencyGuard) logFailure(ctx context.Context, msg string, err error) {
	if g.logg == nil || err == nil {
		return
	}
	g.logg.Error(g.logg.WithField(ctx, "idempotency_key", g.key), msg, err)
}

func errInFlight() error {
	return pkgerrors.New(pkgerrors.CodeIdempotency, "request with this idempotency key is still in progress")
}

// buildScope keeps keys from colliding across operators and targets.
func buildScope(r *http.Request) string {
	return strings.Join([]string{OperatorIDFromContext(r.Context()), r.Method, r.URL.Path}, "|")
}

func hashBody(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}
