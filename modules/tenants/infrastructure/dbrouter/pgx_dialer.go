package dbrouter

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgxDialer dials real tenant databases through pgxpool.
type PgxDialer struct{}

func NewPgxDialer() *PgxDialer {
	return &PgxDialer{}
}

func (d *PgxDialer) Dial(ctx context.Context, connString string, maxConns int32) (Pool, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, errors.Wrap(err, "parse tenant connection string")
	}
	cfg.MaxConns = maxConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "dial tenant database")
	}
	// Fail fast on bad credentials instead of surfacing the error on the
	// first acquire after rotation.
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "ping tenant database")
	}
	return &pgxPool{inner: pool}, nil
}

type pgxPool struct {
	inner *pgxpool.Pool
}

func (p *pgxPool) Acquire(ctx context.Context) (Conn, error) {
	conn, err := p.inner.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &pgxConn{inner: conn}, nil
}

func (p *pgxPool) Close() {
	p.inner.Close()
}

type pgxConn struct {
	inner *pgxpool.Conn
}

func (c *pgxConn) Release() {
	c.inner.Release()
}

// Pgx unwraps the underlying pgxpool connection for query execution.
func (c *pgxConn) Pgx() *pgxpool.Conn {
	return c.inner
}
