package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/oocana-go/oocana/internal/domain/flow"
	"github.com/oocana-go/oocana/internal/domain/session"
	"github.com/oocana-go/oocana/internal/infrastructure/scheduler"
)

// TracedDispatcher wraps a scheduler.Dispatcher with a span per
// dispatch, covering both the Broker's local/remote process spawn and
// any future dispatcher implementation equally since it only depends
// on the Dispatcher interface.
type TracedDispatcher struct {
	next   scheduler.Dispatcher
	tracer trace.Tracer
}

// NewTracedDispatcher wraps next, tracing under the given tracer name.
func NewTracedDispatcher(next scheduler.Dispatcher, tracerName string) *TracedDispatcher {
	return &TracedDispatcher{next: next, tracer: Tracer(tracerName)}
}

var _ scheduler.Dispatcher = (*TracedDispatcher)(nil)

func (d *TracedDispatcher) Dispatch(ctx context.Context, scope session.Scope, node *flow.Node, jobID flow.JobId, bundle map[flow.HandleName]interface{}) error {
	ctx, span := d.tracer.Start(ctx, "broker.dispatch",
		trace.WithAttributes(
			attribute.String("oocana.node_id", string(node.ID)),
			attribute.String("oocana.job_id", string(jobID)),
			attribute.String("oocana.node_kind", node.Kind.String()),
			attribute.String("oocana.session_id", string(scope.SessionID)),
		),
	)
	defer span.End()

	err := d.next.Dispatch(ctx, scope, node, jobID, bundle)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	}
	return err
}

func (d *TracedDispatcher) Cancel(jobID flow.JobId) {
	d.next.Cancel(jobID)
}
