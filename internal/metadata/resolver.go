// internal/metadata/resolver.go
package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"marketplace-sync/internal/common/logger"
	"marketplace-sync/internal/common/metrics"
)

// documentSchema type-checks the fetched document. Presence is enforced
// separately: a document is only rejected when name, description and image
// are all absent.
const documentSchema = `{
	"type": "object",
	"properties": {
		"name": {"type": "string"},
		"description": {"type": "string"},
		"image": {"type": "string"}
	}
}`

// Resolver fetches token metadata over HTTP with bounded retries and linear
// backoff. Resolve never fails outward: exhausted attempts yield the
// sentinel document.
type Resolver struct {
	client      *http.Client
	logger      logger.Logger
	maxAttempts int
	backoffBase time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
	schema      *gojsonschema.Schema
}

type ResolverOption func(*Resolver)

// WithMaxAttempts overrides the attempt budget (default 3).
func WithMaxAttempts(n int) ResolverOption {
	return func(r *Resolver) {
		if n > 0 {
			r.maxAttempts = n
		}
	}
}

// WithBackoffBase overrides the backoff unit (default 1s). The wait before
// attempt i+1 is base × i.
func WithBackoffBase(d time.Duration) ResolverOption {
	return func(r *Resolver) {
		r.backoffBase = d
	}
}

// WithHTTPClient injects the transport client.
func WithHTTPClient(c *http.Client) ResolverOption {
	return func(r *Resolver) {
		r.client = c
	}
}

// WithSleep injects the backoff sleeper, for tests with a fake clock.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) ResolverOption {
	return func(r *Resolver) {
		r.sleep = sleep
	}
}

func NewResolver(log logger.Logger, fetchTimeout time.Duration, opts ...ResolverOption) *Resolver {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(documentSchema))
	if err != nil {
		// The schema is a compile-time constant; this only fires on a
		// broken edit.
		panic(fmt.Sprintf("metadata: invalid document schema: %v", err))
	}

	r := &Resolver{
		client:      &http.Client{Timeout: fetchTimeout},
		logger:      log.With(map[string]interface{}{"component": "metadata-resolver"}),
		maxAttempts: 3,
		backoffBase: time.Second,
		sleep:       sleepContext,
		schema:      schema,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve fetches and validates the document at uri. It always returns a
// usable document; failures are logged and masked by the sentinel.
func (r *Resolver) Resolve(ctx context.Context, uri string) (doc Document) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("resolver panic, degrading to sentinel", map[string]interface{}{
				"uri":   uri,
				"panic": rec,
			})
			metrics.MetadataFallbacks.Inc()
			doc = Sentinel()
		}
	}()

	if reason := invalidURI(uri); reason != "" {
		r.logger.Warn("unresolvable metadata uri, using fallback", map[string]interface{}{
			"uri":    uri,
			"reason": reason,
		})
		metrics.MetadataFetchAttempts.WithLabelValues("invalid_uri").Inc()
		metrics.MetadataFallbacks.Inc()
		return Sentinel()
	}

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		fetched, err := r.fetch(ctx, uri)
		if err == nil {
			metrics.MetadataFetchAttempts.WithLabelValues("success").Inc()
			r.logger.Debug("metadata resolved", map[string]interface{}{
				"uri":     uri,
				"attempt": attempt,
			})
			return fetched
		}

		metrics.MetadataFetchAttempts.WithLabelValues("failure").Inc()
		r.logger.Warn("metadata fetch attempt failed", map[string]interface{}{
			"uri":     uri,
			"attempt": attempt,
			"error":   err.Error(),
		})

		if attempt < r.maxAttempts {
			if err := r.sleep(ctx, r.backoffBase*time.Duration(attempt)); err != nil {
				// Context gone; no point burning the remaining attempts.
				break
			}
		}
	}

	metrics.MetadataFallbacks.Inc()
	return Sentinel()
}

// fetch performs one attempt. HTTP failures, malformed JSON, wrong-typed
// fields and the all-fields-missing case share the same retryable error
// path on purpose.
func (r *Resolver) fetch(ctx context.Context, uri string) (Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return Document{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return Document{}, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return Document{}, fmt.Errorf("metadata endpoint returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Document{}, fmt.Errorf("read body: %w", err)
	}

	result, err := r.schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return Document{}, fmt.Errorf("parse document: %w", err)
	}
	if !result.Valid() {
		return Document{}, fmt.Errorf("invalid document structure: %s", schemaErrors(result))
	}

	var fetched Document
	if err := json.Unmarshal(body, &fetched); err != nil {
		return Document{}, fmt.Errorf("decode document: %w", err)
	}

	if fetched.Name == "" && fetched.Description == "" && fetched.Image == "" {
		return Document{}, fmt.Errorf("document missing name, description and image")
	}

	// Partial documents are accepted; missing fields degrade to the
	// sentinel values so the Document invariant holds.
	if fetched.Name == "" {
		fetched.Name = SentinelName
	}
	if fetched.Description == "" {
		fetched.Description = SentinelDescription
	}
	if fetched.Image == "" {
		fetched.Image = SentinelImage
	}

	return fetched, nil
}

// invalidURI reports why a uri can never resolve, or "" when it is worth
// fetching. Unresolved placeholders come from upstream template bugs, e.g.
// "https://ipfs.io/ipfs/undefined".
func invalidURI(uri string) string {
	switch {
	case strings.TrimSpace(uri) == "":
		return "empty"
	case strings.Contains(uri, "undefined"):
		return "unresolved placeholder"
	case strings.Contains(uri, "${"):
		return "unexpanded template"
	default:
		return ""
	}
}

func schemaErrors(result *gojsonschema.Result) string {
	msgs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		msgs = append(msgs, desc.String())
	}
	return strings.Join(msgs, "; ")
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
