package aggregates

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/mdr-backend/internal/data/graphstore"
	domainagg "github.com/yungbote/mdr-backend/internal/domain/aggregates"
	"github.com/yungbote/mdr-backend/internal/platform/logger"
)

const tracerName = "github.com/yungbote/mdr-backend/internal/data/aggregates"

type BaseDeps struct {
	Store  graphstore.Store
	Log    *logger.Logger
	Runner TxRunner
	Hooks  Hooks
	Tracer trace.Tracer
	// Now stamps version edges and links. Defaults to UTC wall clock.
	Now func() time.Time
	// NewID mints value, edge and link ids. Defaults to uuid v4.
	NewID func() string
}

func (d BaseDeps) withDefaults() BaseDeps {
	if d.Runner == nil {
		d.Runner = NewStoreTxRunner(d.Store)
	}
	if d.Hooks == nil {
		d.Hooks = noopHooks{}
	}
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	if d.Tracer == nil {
		d.Tracer = otel.Tracer(tracerName)
	}
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	if d.NewID == nil {
		d.NewID = uuid.NewString
	}
	return d
}

func executeWrite(ctx context.Context, deps BaseDeps, op string, fn func(tx graphstore.Tx) error) error {
	deps = deps.withDefaults()
	return observe(ctx, deps, op, func(ctx context.Context) error {
		return deps.Runner.InTx(ctx, fn)
	})
}

// executeRead runs fn against a read-only view when a store is configured,
// falling back to the write runner otherwise.
func executeRead(ctx context.Context, deps BaseDeps, op string, fn func(tx graphstore.Tx) error) error {
	deps = deps.withDefaults()
	return observe(ctx, deps, op, func(ctx context.Context) error {
		if deps.Store != nil {
			return deps.Store.View(ctx, fn)
		}
		return deps.Runner.InTx(ctx, fn)
	})
}

func observe(ctx context.Context, deps BaseDeps, op string, run func(ctx context.Context) error) error {
	start := time.Now()
	op = strings.TrimSpace(op)
	if op == "" {
		op = "aggregate.write"
	}
	ctx, span := deps.Tracer.Start(ctx, op)
	defer span.End()

	mapped := MapError(op, run(ctx))

	status := "success"
	if mapped != nil {
		status = aggregateErrorStatus(mapped)
		if domainagg.IsCode(mapped, domainagg.CodeConflict) {
			deps.Hooks.IncConflict(op)
		}
		if domainagg.IsCode(mapped, domainagg.CodeRetryable) {
			deps.Hooks.IncRetry(op)
		}
		span.RecordError(mapped)
		span.SetStatus(codes.Error, status)
	}
	span.SetAttributes(attribute.String("aggregate.status", status))
	deps.Hooks.ObserveOperation(op, status, time.Since(start))
	return mapped
}

func aggregateErrorStatus(err error) string {
	if err == nil {
		return "success"
	}
	code := strings.TrimSpace(string(domainagg.CodeOf(err)))
	if code == "" {
		code = strings.TrimSpace(string(domainagg.CodeOf(MapError("aggregate.status", err))))
	}
	if code == "" {
		return "failure"
	}
	return code
}
