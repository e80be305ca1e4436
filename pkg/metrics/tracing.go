package metrics

import (
	"context"

	"github.com/newrelic/go-agent/v3/newrelic"
)

// MethodTracer collects analytics for a single method call. A nil tracer is
// valid and discards everything.
type MethodTracer struct {
	txn *newrelic.Transaction
	seg *newrelic.Segment

	// ownsTxn is set when the tracer started txn itself and must end it
	ownsTxn bool
}

// TraceMethodCall traces a method call with a given struct/package and method
// names. The call becomes a segment of the transaction in ctx when there is
// one. Otherwise a background transaction is started on the application in
// ctx, so ledger submissions outside of a request are still traced.
func TraceMethodCall(ctx context.Context, structOrPackageName, methodName string) *MethodTracer {
	name := structOrPackageName + " " + methodName

	if txn := newrelic.FromContext(ctx); txn != nil {
		return &MethodTracer{
			txn: txn,
			seg: txn.StartSegment(name),
		}
	}

	if app, ok := fromContext(ctx); ok {
		return &MethodTracer{
			txn:     app.StartTransaction(name),
			ownsTxn: true,
		}
	}

	return nil
}

// AddAttribute adds a key-value pair metadata to the method trace
func (t *MethodTracer) AddAttribute(key string, value interface{}) {
	if t == nil {
		return
	}

	if t.seg != nil {
		t.seg.AddAttribute(key, value)
		return
	}
	t.txn.AddAttribute(key, value)
}

// OnError observes an error within a method trace
func (t *MethodTracer) OnError(err error) {
	if t == nil || err == nil {
		return
	}

	t.txn.NoticeError(err)
}

// End completes the trace for the method call.
func (t *MethodTracer) End() {
	if t == nil {
		return
	}

	if t.seg != nil {
		t.seg.End()
	}
	if t.ownsTxn {
		t.txn.End()
	}
}
