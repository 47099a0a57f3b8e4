package api_test

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/likebank/likebank/internal/api"
	"github.com/likebank/likebank/internal/clock"
	"github.com/likebank/likebank/internal/config"
	"github.com/likebank/likebank/internal/engine"
	"github.com/likebank/likebank/internal/instagram"
	"github.com/likebank/likebank/internal/storage/memory"
)

type testAPI struct {
	store   *memory.Store
	handler http.Handler
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	store := memory.New()
	eng := engine.New(store, instagram.NewFake(), clock.NewManual(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)), engine.Config{
		UnitCost:         decimal.NewFromInt(10),
		RewardAmount:     decimal.NewFromInt(8),
		AssignmentWindow: 10 * time.Minute,
	})
	cfg := &config.Config{AdminIDs: []int64{999}}
	srv := api.NewServer(eng, cfg, zerolog.Nop())
	return &testAPI{store: store, handler: srv.Handler()}
}

func (a *testAPI) do(t *testing.T, method, path string, userID int64, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	if userID != 0 {
		req.Header.Set("X-User-ID", strconv.FormatInt(userID, 10))
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Body.String(), "{") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func TestHealthz(t *testing.T) {
	a := newTestAPI(t)
	rec, body := a.do(t, http.MethodGet, "/healthz", 0, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestRequiresIdentityHeader(t *testing.T) {
	a := newTestAPI(t)
	rec, _ := a.do(t, http.MethodGet, "/api/balance", 0, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOrderLifecycleOverHTTP(t *testing.T) {
	a := newTestAPI(t)
	owner := a.store.SeedUser("owner", decimal.NewFromInt(100))
	worker := a.store.SeedUser("worker", decimal.Zero)

	rec, body := a.do(t, http.MethodPost, "/api/orders", owner,
		`{"kind":"like","target_url":"https://www.instagram.com/p/Cxyz123/","target_count":2}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "20", fmt.Sprint(body["cost"]))
	assert.Equal(t, "80", fmt.Sprint(body["new_balance"]))
	orderID := int64(body["order_id"].(float64))

	rec, _ = a.do(t, http.MethodGet, "/api/orders", owner, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body = a.do(t, http.MethodPost, "/api/tasks/take", worker, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	taskID := int64(body["task_id"].(float64))
	assert.Equal(t, "https://www.instagram.com/p/Cxyz123/", body["target_url"])

	rec, body = a.do(t, http.MethodPost, fmt.Sprintf("/api/tasks/%d/complete", taskID), worker, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "verified", body["outcome"])
	assert.Equal(t, "8", fmt.Sprint(body["new_balance"]))

	rec, body = a.do(t, http.MethodPost, fmt.Sprintf("/api/orders/%d/cancel", orderID), owner, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "cancelled", body["order_status"])
	assert.Equal(t, "90", fmt.Sprint(body["new_balance"]))

	rec, body = a.do(t, http.MethodGet, "/api/balance", worker, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "8", fmt.Sprint(body["balance"]))
}

func TestErrorStatusMapping(t *testing.T) {
	a := newTestAPI(t)
	owner := a.store.SeedUser("owner", decimal.NewFromInt(5))
	worker := a.store.SeedUser("worker", decimal.Zero)

	// Insufficient funds conflicts.
	rec, _ := a.do(t, http.MethodPost, "/api/orders", owner,
		`{"kind":"like","target_url":"https://www.instagram.com/p/Cxyz123/","target_count":1}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Invalid target is a bad request.
	rec, _ = a.do(t, http.MethodPost, "/api/orders", owner,
		`{"kind":"like","target_url":"https://example.com/p/x/","target_count":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Unknown JSON fields are rejected at ingress.
	rec, _ = a.do(t, http.MethodPost, "/api/orders", owner,
		`{"kind":"like","target_url":"https://www.instagram.com/p/Cxyz123/","target_count":1,"bogus":true}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Empty pool maps to not found.
	rec, _ = a.do(t, http.MethodPost, "/api/tasks/take", worker, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Completing a nonexistent task maps to not found.
	rec, _ = a.do(t, http.MethodPost, "/api/tasks/12345/complete", worker, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Cancelling someone else's order is forbidden.
	richOwner := a.store.SeedUser("rich", decimal.NewFromInt(100))
	rec, body := a.do(t, http.MethodPost, "/api/orders", richOwner,
		`{"kind":"like","target_url":"https://www.instagram.com/p/Cxyz123/","target_count":1}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	orderID := int64(body["order_id"].(float64))
	rec, _ = a.do(t, http.MethodPost, fmt.Sprintf("/api/orders/%d/cancel", orderID), worker, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// An admin may cancel on the owner's behalf.
	rec, body = a.do(t, http.MethodPost, fmt.Sprintf("/api/orders/%d/cancel", orderID), 999, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "cancelled", body["order_status"])
}

func TestRateLimit(t *testing.T) {
	store := memory.New()
	eng := engine.New(store, instagram.NewFake(), clock.System{}, engine.Config{
		UnitCost:     decimal.NewFromInt(10),
		RewardAmount: decimal.NewFromInt(8),
	})
	cfg := &config.Config{RateLimitPerMinute: 2}
	a := &testAPI{store: store, handler: api.NewServer(eng, cfg, zerolog.Nop()).Handler()}
	userID := store.SeedUser("user", decimal.Zero)

	for i := 0; i < 2; i++ {
		rec, _ := a.do(t, http.MethodGet, "/api/balance", userID, "")
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i)
	}
	rec, _ := a.do(t, http.MethodGet, "/api/balance", userID, "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}
