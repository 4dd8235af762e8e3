package observe_test

import (
	"context"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/voiceflow/voiceflowd/internal/observe"
)

func TestNewMetrics_InstrumentsRecord(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	ctx := context.Background()
	m.TranscriptionDuration.Record(ctx, 0.12)
	m.RecordReconcilePass(ctx, "ok")
	m.RecordReconcilePass(ctx, "skipped")
	m.RecordEngineError(ctx, "final")
	m.ActiveSessions.Add(ctx, 1)
	m.ActiveSessions.Add(ctx, -1)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(rm.ScopeMetrics) == 0 {
		t.Fatal("Collect: no scope metrics recorded")
	}

	names := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, inst := range sm.Metrics {
			names[inst.Name] = true
		}
	}
	for _, want := range []string{
		"voiceflowd.transcription.duration",
		"voiceflowd.reconcile.passes",
		"voiceflowd.engine.errors",
		"voiceflowd.active_sessions",
	} {
		if !names[want] {
			t.Errorf("metric %q was not recorded; got %v", want, names)
		}
	}
}

func TestDefaultMetrics_Singleton(t *testing.T) {
	t.Parallel()

	a := observe.DefaultMetrics()
	b := observe.DefaultMetrics()
	if a != b {
		t.Fatal("DefaultMetrics: expected the same instance on repeat calls")
	}
}
