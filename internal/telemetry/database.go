package telemetry

import (
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

const (
	spanKey    = "dbtrace:span"
	startedKey = "dbtrace:started"

	// Long statements get clipped; engagement aggregation queries can be
	// wide and the span attribute only needs to identify the query
	maxStatementLen = 400
)

// GORMTracingPlugin traces database calls as child spans of the request
// span, tagged with the table and operation. Registered by
// database.Initialize when tracing is enabled.
func GORMTracingPlugin() gorm.Plugin {
	return &dbTracing{tracer: otel.Tracer("gracechapel/db")}
}

type dbTracing struct {
	tracer trace.Tracer
}

func (p *dbTracing) Name() string {
	return "gracechapel:dbtrace"
}

func (p *dbTracing) Initialize(db *gorm.DB) error {
	cb := db.Callback()

	hooks := []struct {
		register func() error
	}{
		{func() error {
			return cb.Query().Before("gorm:query").Register("dbtrace:query_start", p.start("select"))
		}},
		{func() error {
			return cb.Create().Before("gorm:create").Register("dbtrace:create_start", p.start("insert"))
		}},
		{func() error {
			return cb.Update().Before("gorm:update").Register("dbtrace:update_start", p.start("update"))
		}},
		{func() error {
			return cb.Delete().Before("gorm:delete").Register("dbtrace:delete_start", p.start("delete"))
		}},
		{func() error {
			return cb.Query().After("gorm:query").Register("dbtrace:query_end", p.finish)
		}},
		{func() error {
			return cb.Create().After("gorm:create").Register("dbtrace:create_end", p.finish)
		}},
		{func() error {
			return cb.Update().After("gorm:update").Register("dbtrace:update_end", p.finish)
		}},
		{func() error {
			return cb.Delete().After("gorm:delete").Register("dbtrace:delete_end", p.finish)
		}},
	}

	for _, h := range hooks {
		if err := h.register(); err != nil {
			return fmt.Errorf("registering db trace callback: %w", err)
		}
	}
	return nil
}

// start returns a before-callback that opens a span named after the
// operation and table, e.g. "select view_events"
func (p *dbTracing) start(operation string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		ctx := db.Statement.Context
		if ctx == nil {
			return
		}

		table := db.Statement.Table
		if table == "" {
			table = "unknown"
		}

		_, span := p.tracer.Start(ctx, operation+" "+table,
			trace.WithAttributes(
				attribute.String("db.system", "postgresql"),
				attribute.String("db.sql.table", table),
				attribute.String("db.operation", strings.ToUpper(operation)),
			),
		)

		db.InstanceSet(spanKey, span)
		db.InstanceSet(startedKey, time.Now())
	}
}

func (p *dbTracing) finish(db *gorm.DB) {
	raw, ok := db.InstanceGet(spanKey)
	if !ok {
		return
	}
	span, ok := raw.(trace.Span)
	if !ok {
		return
	}
	defer span.End()

	if startedRaw, ok := db.InstanceGet(startedKey); ok {
		if started, ok := startedRaw.(time.Time); ok {
			span.SetAttributes(attribute.Int64("db.duration_ms", time.Since(started).Milliseconds()))
		}
	}

	if sql := db.Statement.SQL.String(); sql != "" {
		if len(sql) > maxStatementLen {
			sql = sql[:maxStatementLen] + "..."
		}
		span.SetAttributes(attribute.String("db.statement", sql))
	}

	if db.RowsAffected > 0 {
		span.SetAttributes(attribute.Int64("db.rows_affected", db.RowsAffected))
	}

	if db.Error != nil {
		span.SetStatus(codes.Error, db.Error.Error())
		span.RecordError(db.Error)
	}
}
