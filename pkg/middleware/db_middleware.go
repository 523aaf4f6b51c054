package middleware

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/omnierp/controlplane/pkg/composables"
)

// WithPool makes the master catalog pool available to repositories through the
// request context.
func WithPool(pool *pgxpool.Pool) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(composables.WithPool(r.Context(), pool)))
		})
	}
}

// WithTransaction wraps the request in a catalog transaction. Writes that span
// multiple repositories, like superseding a subscription, commit atomically.
func WithTransaction() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			pool, err := composables.UsePool(r.Context())
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			tx, err := pool.Begin(r.Context())
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			defer func() {
				if err := tx.Rollback(r.Context()); err != nil {
					if errors.Is(err, pgx.ErrTxClosed) {
						return
					}
					composables.UseLogger(r.Context()).WithError(err).Error("failed to rollback transaction")
				}
			}()
			r = r.WithContext(composables.WithTx(r.Context(), tx))
			next.ServeHTTP(w, r)
			if err := tx.Commit(r.Context()); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}
		})
	}
}
