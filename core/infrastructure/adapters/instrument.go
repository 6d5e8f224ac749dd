package adapters

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/hyperterse/tablescope/core/observability"
)

// track opens a span for one adapter operation. The returned func records the
// outcome of *errp and closes the span.
func track(ctx context.Context, kind, op string) (context.Context, func(errp *error)) {
	start := time.Now()
	ctx, span := observability.StartSpan(ctx, "adapter."+op,
		attribute.String(observability.AttrBackendKind, kind),
		attribute.String(observability.AttrOperation, op),
	)
	return ctx, func(errp *error) {
		var err error
		if errp != nil {
			err = *errp
		}
		observability.RecordAdapterOperation(ctx, kind, op, err == nil, float64(time.Since(start).Microseconds())/1000)
		observability.EndSpan(span, err)
	}
}
