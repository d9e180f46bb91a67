package observability

import (
	"testing"
	"time"
)

func TestStageWindowSnapshot(t *testing.T) {
	w := NewStageWindow(8)
	w.Observe(StageFirstContent, 300)
	w.Observe(StageFirstContent, 500)
	w.Observe(StageFirstContent, 700)
	w.ObserveIndicator("synthesized_stream")
	w.ObserveIndicator("synthesized_stream")

	snap := w.Snapshot()
	if snap.WindowSize != 8 {
		t.Fatalf("WindowSize = %d, want 8", snap.WindowSize)
	}
	if len(snap.Stages) != 1 {
		t.Fatalf("len(Stages) = %d, want 1", len(snap.Stages))
	}
	s := snap.Stages[0]
	if s.Stage != StageFirstContent {
		t.Fatalf("Stage = %q, want %q", s.Stage, StageFirstContent)
	}
	if s.Samples != 3 {
		t.Fatalf("Samples = %d, want 3", s.Samples)
	}
	if s.LastMS != 700 {
		t.Fatalf("LastMS = %.2f, want 700", s.LastMS)
	}
	if s.P50MS != 500 {
		t.Fatalf("P50MS = %.2f, want 500", s.P50MS)
	}
	if s.P95MS <= 500 || s.P95MS > 700 {
		t.Fatalf("P95MS = %.2f, want (500,700]", s.P95MS)
	}
	if s.TargetP95MS != 900 {
		t.Fatalf("TargetP95MS = %.2f, want 900", s.TargetP95MS)
	}
	if len(snap.Indicators) != 1 {
		t.Fatalf("len(Indicators) = %d, want 1", len(snap.Indicators))
	}
	if snap.Indicators[0].Name != "synthesized_stream" {
		t.Fatalf("Indicators[0].Name = %q", snap.Indicators[0].Name)
	}
	if snap.Indicators[0].Count != 2 {
		t.Fatalf("Indicators[0].Count = %d, want 2", snap.Indicators[0].Count)
	}
}

func TestStageWindowBoundsSamples(t *testing.T) {
	w := NewStageWindow(4)
	for i := 0; i < 10; i++ {
		w.Observe(StageExchangeTotal, float64(100*i))
	}
	snap := w.Snapshot()
	if snap.Stages[0].Samples != 4 {
		t.Fatalf("Samples = %d, want 4", snap.Stages[0].Samples)
	}
	if snap.Stages[0].LastMS != 900 {
		t.Fatalf("LastMS = %.2f, want 900", snap.Stages[0].LastMS)
	}
}

func TestStageWindowObserveDuration(t *testing.T) {
	w := NewStageWindow(4)
	w.ObserveDuration(StageMetadataReady, 1500*time.Millisecond)
	snap := w.Snapshot()
	if snap.Stages[0].LastMS != 1500 {
		t.Fatalf("LastMS = %.2f, want 1500", snap.Stages[0].LastMS)
	}
}
