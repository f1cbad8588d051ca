package routes

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/eventcore/internal/control"
	"github.com/angelmondragon/eventcore/internal/processor"
	"github.com/angelmondragon/eventcore/pkg/config"
	"github.com/angelmondragon/eventcore/pkg/db/models"
	"github.com/angelmondragon/eventcore/pkg/logger"
	"github.com/angelmondragon/eventcore/pkg/metrics"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

type stubControl struct{ tenant string }

func (s *stubControl) Pause(ctx context.Context, tenant, actor, reason string) (control.StatusSnapshot, error) {
	s.tenant = tenant
	return control.StatusSnapshot{TenantSchema: tenant, IsPaused: true}, nil
}

func (s *stubControl) Resume(ctx context.Context, tenant, actor string) (control.StatusSnapshot, error) {
	s.tenant = tenant
	return control.StatusSnapshot{TenantSchema: tenant}, nil
}

func (s *stubControl) Status(ctx context.Context, tenant string) (control.StatusSnapshot, error) {
	s.tenant = tenant
	return control.StatusSnapshot{TenantSchema: tenant}, nil
}

type stubProcessor struct{ retried int64 }

func (s *stubProcessor) ProcessPending(ctx context.Context, tenant string) (processor.Summary, error) {
	return processor.Summary{Tenant: tenant}, nil
}

func (s *stubProcessor) RetryFailed(ctx context.Context, tenant string, id int64) (*models.Event, error) {
	s.retried = id
	return &models.Event{ID: id}, nil
}

func newTestRouter(t *testing.T, params RouterParams) http.Handler {
	t.Helper()
	params.Config = &config.Config{App: config.AppConfig{Env: "test"}}
	params.Logger = logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	return NewRouter(params)
}

func TestHealthRoutes(t *testing.T) {
	router := newTestRouter(t, RouterParams{DB: stubPinger{}})

	for _, path := range []string{"/health/live", "/health/ready"} {
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: unexpected status %d", path, resp.Code)
		}
		if resp.Header().Get("X-Request-Id") == "" {
			t.Fatalf("%s: expected request id header", path)
		}
	}
}

func TestReadyFailsWhenDatabaseDown(t *testing.T) {
	router := newTestRouter(t, RouterParams{DB: stubPinger{err: errors.New("down")}})

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.Code)
	}
}

func TestMetricsRouteServesRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewProcessorMetrics(reg)
	m.IncProcessed("COMPLETED")
	router := newTestRouter(t, RouterParams{Gatherer: reg})

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "events_processed_total") {
		t.Fatalf("expected processor metrics in body")
	}
}

func TestAdminRoutesResolveTenant(t *testing.T) {
	ctrl := &stubControl{}
	router := newTestRouter(t, RouterParams{Control: ctrl})

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/admin/v1/tenants/Tenant_A/events/pause", strings.NewReader(`{"actor":"ops"}`)))
	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	if ctrl.tenant != "tenant_a" {
		t.Fatalf("expected normalized tenant, got %q", ctrl.tenant)
	}
}

func TestAdminRoutesRejectInvalidTenant(t *testing.T) {
	ctrl := &stubControl{}
	router := newTestRouter(t, RouterParams{Control: ctrl})

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/admin/v1/tenants/bad-tenant/events/status", nil))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
	if ctrl.tenant != "" {
		t.Fatal("control should not be called")
	}
}

func TestRetryRoute(t *testing.T) {
	proc := &stubProcessor{}
	router := newTestRouter(t, RouterParams{Processor: proc})

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/admin/v1/tenants/tenant_a/events/17/retry", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	if proc.retried != 17 {
		t.Fatalf("expected event 17, got %d", proc.retried)
	}
}

func TestMissingServiceReturnsInternalError(t *testing.T) {
	router := newTestRouter(t, RouterParams{})

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/tenants/tenant_a/activities?entity_type=Client&entity_id=1", nil))
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.Code)
	}
	var envelope map[string]map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope["error"]["code"] != "INTERNAL_ERROR" {
		t.Fatalf("unexpected envelope %v", envelope)
	}
}
