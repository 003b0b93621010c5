package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewIsShared(t *testing.T) {
	if New() != New() {
		t.Fatal("expected a single metrics instance per process")
	}
}

func TestRecorders(t *testing.T) {
	m := New()

	conns := testutil.ToFloat64(m.ActiveConnections)
	m.Connected()
	m.Connected()
	m.Disconnected()
	if got := testutil.ToFloat64(m.ActiveConnections) - conns; got != 1 {
		t.Fatalf("expected one more connection, got %v", got)
	}

	applied := testutil.ToFloat64(m.HistoryOps.WithLabelValues("undo", "applied"))
	noop := testutil.ToFloat64(m.HistoryOps.WithLabelValues("undo", "noop"))
	m.RecordHistoryOp("undo", true)
	m.RecordHistoryOp("undo", false)
	m.RecordHistoryOp("undo", false)
	if got := testutil.ToFloat64(m.HistoryOps.WithLabelValues("undo", "applied")) - applied; got != 1 {
		t.Fatalf("applied undo delta = %v", got)
	}
	if got := testutil.ToFloat64(m.HistoryOps.WithLabelValues("undo", "noop")) - noop; got != 2 {
		t.Fatalf("noop undo delta = %v", got)
	}

	rejected := testutil.ToFloat64(m.Rejected.WithLabelValues("malformed"))
	m.RecordRejected("malformed")
	if got := testutil.ToFloat64(m.Rejected.WithLabelValues("malformed")) - rejected; got != 1 {
		t.Fatalf("rejected delta = %v", got)
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.Connected()
	m.Disconnected()
	m.RecordCommit()
	m.RecordHistoryOp("redo", true)
	m.RecordResync()
	m.RecordRejected("binary")
	m.RecordEviction()
}
