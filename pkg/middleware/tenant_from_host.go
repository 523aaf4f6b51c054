package middleware

import (
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/omnierp/controlplane/modules/tenants/domain/aggregates/tenant"
	"github.com/omnierp/controlplane/modules/tenants/services"
	"github.com/omnierp/controlplane/pkg/application"
	"github.com/omnierp/controlplane/pkg/composables"
)

// RequireTenantFromHost resolves the request host through the tenant
// directory and stores the tenant ID in the context. Deleted tenants get
// 410 so clients stop retrying.
func RequireTenantFromHost(app application.Application) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			host := normalizeHost(r.Host)
			if host == "" {
				http.NotFound(w, r)
				return
			}

			dir := app.Service(services.DirectoryService{}).(*services.DirectoryService)
			desc, err := dir.LookupByDomain(r.Context(), host)
			if err != nil {
				logger := composables.UseLogger(r.Context())
				logger.WithField("host", host).WithField("path", r.URL.Path).WithError(err).Warn("tenant not resolved for host")
				if errors.Is(err, tenant.ErrGone) {
					http.Error(w, "tenant gone", http.StatusGone)
					return
				}
				http.NotFound(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(composables.WithTenantID(r.Context(), desc.ID)))
		})
	}
}

func normalizeHost(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	raw = strings.ToLower(raw)
	if h, _, err := net.SplitHostPort(raw); err == nil {
		return strings.ToLower(strings.TrimSpace(h))
	}
	return raw
}
