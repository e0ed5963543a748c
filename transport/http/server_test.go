package http

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kochabonline/hartshorn/ioc"
	"github.com/kochabonline/hartshorn/metrics"
)

type healthStub struct {
	err error
}

func (p *healthStub) HealthCheck(context.Context) error { return p.err }

func newTestServer(t *testing.T, c Config, p *healthStub) (*Server, *GinHandler) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	handler := NewHandler()
	app := ioc.New(ioc.WithPostProcessors(NewRouteProcessor(handler)))
	require.NoError(t, ioc.Bind[*healthStub](app).ToSupplier(func(context.Context, *ioc.ApplicationContext) (*healthStub, error) {
		return p, nil
	}))
	require.NoError(t, ioc.Bind[*MockGinRegister](app).ToConstructor(func() *MockGinRegister {
		return NewMockGinRegister("/ping")
	}))
	// singletons created before the server mounts its routes
	_, err := ioc.Get[*MockGinRegister](context.Background(), app)
	require.NoError(t, err)

	prom := metrics.NewPrometheus(metrics.Config{})
	s, err := NewServer(c, app, WithHandler(handler), WithMetrics(prom))
	require.NoError(t, err)
	return s, handler
}

func get(s *Server, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestServer_Defaults(t *testing.T) {
	s, _ := newTestServer(t, Config{Addr: "bad"}, &healthStub{})
	assert.Equal(t, "http", s.Name())
	assert.Equal(t, defaultAddr, s.Addr())
	assert.Equal(t, "/api", s.config.Prefix)
	assert.Equal(t, "/health", s.config.Health.Path)
}

func TestServer_Routes(t *testing.T) {
	s, handler := newTestServer(t, Config{}, &healthStub{})
	assert.Equal(t, 1, handler.Count())

	w := get(s, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"up"`)

	w = get(s, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)

	w = get(s, "/bindings")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "MockGinRegister")
	assert.Contains(t, w.Body.String(), `"lifecycle":"singleton"`)

	w = get(s, "/api/ping")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestServer_HealthDown(t *testing.T) {
	p := &healthStub{}
	s, _ := newTestServer(t, Config{}, p)
	// health checks only cover singletons that have been created
	_, err := ioc.Get[*healthStub](context.Background(), s.app)
	require.NoError(t, err)

	p.err = fmt.Errorf("database unreachable")
	w := get(s, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "database unreachable")
}

func TestServer_Disabled(t *testing.T) {
	s, _ := newTestServer(t, Config{
		Metrics:  PathOption{Disabled: true},
		Bindings: PathOption{Disabled: true},
	}, &healthStub{})

	assert.Equal(t, http.StatusNotFound, get(s, "/metrics").Code)
	assert.Equal(t, http.StatusNotFound, get(s, "/bindings").Code)
	assert.Equal(t, http.StatusOK, get(s, "/health").Code)
}

func TestServer_RequestMetrics(t *testing.T) {
	s, _ := newTestServer(t, Config{}, &healthStub{})

	assert.Equal(t, http.StatusOK, get(s, "/api/ping").Code)
	assert.Equal(t, http.StatusNotFound, get(s, "/api/missing").Code)
	assert.Equal(t, http.StatusNotFound, get(s, "/api/other").Code)

	m := s.metrics.HTTP()
	assert.Equal(t, 2, testutil.CollectAndCount(m.Duration), "unmatched paths share one series")
	assert.Equal(t, float64(0), testutil.ToFloat64(m.InFlight))

	w := get(s, "/metrics")
	assert.Contains(t, w.Body.String(), `http_request_seconds_count{method="GET",route="/api/ping",status="200"} 1`)
	assert.Contains(t, w.Body.String(), `route="unmatched",status="404"} 2`)
}
