package middleware_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnierp/controlplane/modules/tenants/domain/aggregates/tenant"
	"github.com/omnierp/controlplane/modules/tenants/infrastructure/directory"
	"github.com/omnierp/controlplane/modules/tenants/infrastructure/persistence"
	"github.com/omnierp/controlplane/modules/tenants/services"
	"github.com/omnierp/controlplane/pkg/application"
	"github.com/omnierp/controlplane/pkg/composables"
	"github.com/omnierp/controlplane/pkg/eventbus"
	"github.com/omnierp/controlplane/pkg/middleware"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func okHandler(t *testing.T, sawRequest *bool) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*sawRequest = true
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestWithLogger_PropagatesRequestID(t *testing.T) {
	t.Parallel()

	var gotRequestID string
	handler := middleware.WithLogger(quietLogger(), middleware.LoggerOptions{})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotRequestID = composables.UseRequestID(r.Context())
			w.WriteHeader(http.StatusNoContent)
		}),
	)

	req := httptest.NewRequest(http.MethodGet, "/catalog/api/plans", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "req-42", gotRequestID)
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-Id"))
}

func TestWithLogger_MintsRequestIDWhenMissing(t *testing.T) {
	t.Parallel()

	handler := middleware.WithLogger(quietLogger(), middleware.LoggerOptions{})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}),
	)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestWithLogger_RecoversPanicIntoJSON500(t *testing.T) {
	t.Parallel()

	handler := middleware.WithLogger(quietLogger(), middleware.LoggerOptions{})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		}),
	)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "INTERNAL_SERVER_ERROR")
}

func setupDirectoryApp(t *testing.T) (application.Application, *persistence.InmemTenantRepository) {
	t.Helper()
	repo := persistence.NewInmemTenantRepository()
	dir := services.NewDirectoryService(repo, directory.NewInmemCache(), time.Minute, time.Second)

	app := application.New(&application.ApplicationOptions{
		EventBus: eventbus.NewEventPublisher(quietLogger()),
		Logger:   quietLogger(),
	})
	app.RegisterServices(dir)
	return app, repo
}

func TestRequireTenantFromHost_ResolvesActiveTenant(t *testing.T) {
	t.Parallel()

	app, repo := setupDirectoryApp(t)
	seeded := tenant.New("acme", "Acme Inc",
		tenant.WithDomain("acme.example.com"),
		tenant.WithStatus(tenant.StatusActive),
	)
	_, err := repo.Create(context.Background(), seeded)
	require.NoError(t, err)

	var sawRequest bool
	handler := middleware.WithLogger(quietLogger(), middleware.LoggerOptions{})(
		middleware.RequireTenantFromHost(app)(
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				id, err := composables.UseTenantID(r.Context())
				require.NoError(t, err)
				assert.Equal(t, seeded.ID(), id)
				sawRequest = true
				w.WriteHeader(http.StatusNoContent)
			}),
		),
	)

	// The port is stripped before the directory lookup.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Host = "ACME.example.com:8443"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.True(t, sawRequest)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRequireTenantFromHost_UnknownHost(t *testing.T) {
	t.Parallel()

	app, _ := setupDirectoryApp(t)

	var sawRequest bool
	handler := middleware.WithLogger(quietLogger(), middleware.LoggerOptions{})(
		middleware.RequireTenantFromHost(app)(okHandler(t, &sawRequest)),
	)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Host = "nobody.example.com"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.False(t, sawRequest)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRequireTenantFromHost_DeletedTenantIsGone(t *testing.T) {
	t.Parallel()

	app, repo := setupDirectoryApp(t)
	deleted := tenant.New("gone", "Gone Ltd",
		tenant.WithDomain("gone.example.com"),
		tenant.WithStatus(tenant.StatusDeleted),
	)
	_, err := repo.Create(context.Background(), deleted)
	require.NoError(t, err)

	var sawRequest bool
	handler := middleware.WithLogger(quietLogger(), middleware.LoggerOptions{})(
		middleware.RequireTenantFromHost(app)(okHandler(t, &sawRequest)),
	)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Host = "gone.example.com"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.False(t, sawRequest)
	assert.Equal(t, http.StatusGone, rec.Code)
}
