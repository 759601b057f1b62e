// Package tracedb records a simulation run's job/action state
// transitions to a Postgres sink via uptrace/bun, in the
// sql.OpenDB+pgdriver+pgdialect shape mbflow's internal/db package uses
// for its own bun.DB wiring.
package tracedb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/wrenchsim/wrench/internal/wlog"
	"github.com/wrenchsim/wrench/pkg/controller"
)

// Record is one row tracedb persists per observed execution event: the
// event's job ID and kind (as State), with its cause if any. No action ID
// is recorded.
type Record struct {
	bun.BaseModel `bun:"table:wrench_execution_events,alias:evt"`

	ID        int64     `bun:"id,pk,autoincrement"`
	JobID     string    `bun:"job_id,notnull"`
	State     string    `bun:"state,notnull"`
	Cause     string    `bun:"cause"`
	Timestamp time.Time `bun:"timestamp,notnull,default:current_timestamp"`
}

// Config configures a connection to the tracing database.
type Config struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	Debug    bool
}

// Sink persists Events it is handed. Production code gets *DB
// (backed by Postgres); tests use an in-memory fake rather than a real
// database.
type Sink interface {
	Record(ctx context.Context, evt controller.Event) error
	Close() error
}

// DB is the Postgres-backed Sink.
type DB struct {
	bun *bun.DB
	log wlog.Logger
}

// Open connects to Postgres via pgdriver and ensures the
// wrench_execution_events table exists.
func Open(ctx context.Context, cfg Config, log wlog.Logger) (*DB, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(
		pgdriver.WithAddr(fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)),
		pgdriver.WithInsecure(true),
		pgdriver.WithDatabase(cfg.Database),
		pgdriver.WithUser(cfg.User),
		pgdriver.WithPassword(cfg.Password),
		pgdriver.WithTimeout(5*time.Second),
		pgdriver.WithDialTimeout(5*time.Second),
	))
	bunDB := bun.NewDB(sqldb, pgdialect.New())

	if _, err := bunDB.NewCreateTable().Model((*Record)(nil)).IfNotExists().Exec(ctx); err != nil {
		return nil, fmt.Errorf("create execution events table: %w", err)
	}

	return &DB{bun: bunDB, log: log.With("component", "tracedb")}, nil
}

// Record inserts one row capturing evt.
func (d *DB) Record(ctx context.Context, evt controller.Event) error {
	cause := ""
	if evt.Cause != nil {
		cause = evt.Cause.Error()
	}
	rec := &Record{
		JobID:     evt.JobID,
		State:     evt.Kind.String(),
		Cause:     cause,
		Timestamp: time.Now(),
	}
	_, err := d.bun.NewInsert().Model(rec).Exec(ctx)
	return err
}

// Close releases the underlying connection pool.
func (d *DB) Close() error {
	return d.bun.DB.Close()
}
