package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/eventcore/pkg/errors"
)

// replayCache is an in-memory IdempotencyStore.
type replayCache map[string]string

func (c replayCache) Get(_ context.Context, key string) (string, error) {
	v, ok := c[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (c replayCache) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, taken := c[key]; taken {
		return false, nil
	}
	c[key] = value.(string)
	return true, nil
}

func (c replayCache) IdempotencyKey(scope, id string) string {
	return "test|" + scope + "|" + id
}

const (
	changesURL = "/api/v1/tenants/tenant_a/changes"
	cleanupURL = "/api/admin/v1/events/cleanup"
)

// countingHandler answers with status and body and counts invocations.
func countingHandler(status int, body string, calls *int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		*calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	})
}

func send(h http.Handler, method, target, body, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestMatchRule(t *testing.T) {
	cases := []struct {
		method, path      string
		guarded, required bool
	}{
		{http.MethodPost, changesURL, true, false},
		{http.MethodPost, "/api/admin/v1/tenants/tenant_a/events/9/retry", true, false},
		{http.MethodPost, cleanupURL, true, true},
		{http.MethodPost, "/api/admin/v1/tenants/tenant_a/events/pause", false, false},
		{http.MethodGet, changesURL, false, false},
		{http.MethodPost, "/api/v1/tenants/a/b/changes", false, false},
	}
	for _, tc := range cases {
		rule, ok := matchRule(tc.method, tc.path)
		assert.Equal(t, tc.guarded, ok, "%s %s", tc.method, tc.path)
		if ok {
			assert.Equal(t, tc.required, rule.required, "%s %s", tc.method, tc.path)
		}
	}
}

func TestIdempotencyReplaysFirstResponse(t *testing.T) {
	cache := replayCache{}
	calls := 0
	h := Idempotency(cache, nil)(countingHandler(http.StatusAccepted, `{"event_ids":[1]}`, &calls))

	first := send(h, http.MethodPost, changesURL, `{"entity_id":"7"}`, "k-1")
	require.Equal(t, http.StatusAccepted, first.Code)
	assert.Empty(t, first.Header().Get("Idempotent-Replay"))
	require.Len(t, cache, 1)

	again := send(h, http.MethodPost, changesURL, `{"entity_id":"7"}`, "k-1")
	assert.Equal(t, http.StatusAccepted, again.Code)
	assert.Equal(t, "true", again.Header().Get("Idempotent-Replay"))
	assert.Equal(t, "application/json", again.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"event_ids":[1]}`, again.Body.String())
	assert.Equal(t, 1, calls)

	// A different key is a different request.
	send(h, http.MethodPost, changesURL, `{"entity_id":"7"}`, "k-2")
	assert.Equal(t, 2, calls)
}

func TestIdempotencyRejectsReusedKeyWithNewBody(t *testing.T) {
	calls := 0
	h := Idempotency(replayCache{}, nil)(countingHandler(http.StatusOK, `{}`, &calls))

	send(h, http.MethodPost, changesURL, `{"entity_id":"7"}`, "k-1")
	rec := send(h, http.MethodPost, changesURL, `{"entity_id":"8"}`, "k-1")

	require.Equal(t, http.StatusConflict, rec.Code)
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, string(pkgerrors.CodeConflict), payload.Error.Code)
	assert.Equal(t, 1, calls)
}

func TestIdempotencyKeyRequirement(t *testing.T) {
	calls := 0
	cache := replayCache{}
	h := Idempotency(cache, nil)(countingHandler(http.StatusOK, `{}`, &calls))

	rec := send(h, http.MethodPost, cleanupURL, `{}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, calls)

	// Optional routes run every time without a key and store nothing.
	send(h, http.MethodPost, changesURL, `{}`, "")
	send(h, http.MethodPost, changesURL, `{}`, "")
	assert.Equal(t, 2, calls)
	assert.Empty(t, cache)
}

func TestIdempotencySkipsServerErrors(t *testing.T) {
	calls := 0
	cache := replayCache{}
	h := Idempotency(cache, nil)(countingHandler(http.StatusServiceUnavailable, `{}`, &calls))

	send(h, http.MethodPost, changesURL, `{}`, "k-1")
	send(h, http.MethodPost, changesURL, `{}`, "k-1")
	assert.Equal(t, 2, calls)
	assert.Empty(t, cache)
}

func TestIdempotencyDisabledWithoutStore(t *testing.T) {
	calls := 0
	h := Idempotency(nil, nil)(countingHandler(http.StatusOK, `{}`, &calls))
	rec := send(h, http.MethodPost, cleanupURL, `{}`, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, calls)
}
