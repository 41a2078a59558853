package models

import (
	"encoding/json"
	"testing"
)

func TestMetricsMarshal(t *testing.T) {
	m := Metrics{
		"mos":     4.2,
		"quality": "good",
	}

	data, err := m.Value()
	if err != nil {
		t.Fatalf("failed to marshal metrics: %v", err)
	}

	if data == nil {
		t.Fatal("expected non-nil data")
	}

	// Verify it's valid JSON
	var result map[string]interface{}
	if err := json.Unmarshal(data.([]byte), &result); err != nil {
		t.Fatalf("failed to unmarshal result: %v", err)
	}

	if result["quality"] != "good" {
		t.Errorf("expected quality=good, got %v", result["quality"])
	}
}

func TestMetricsScan(t *testing.T) {
	jsonData := []byte(`{"mos": 4.5, "latency_ms": 320}`)

	var m Metrics
	if err := m.Scan(jsonData); err != nil {
		t.Fatalf("failed to scan: %v", err)
	}

	if v, ok := m.Float(MetricMOS); !ok || v != 4.5 {
		t.Errorf("expected mos=4.5, got %v (ok=%v)", v, ok)
	}

	if v, ok := m.Float(MetricLatencyMs); !ok || v != 320 {
		t.Errorf("expected latency_ms=320, got %v (ok=%v)", v, ok)
	}

	if _, ok := m.Float("missing"); ok {
		t.Error("expected missing metric to report !ok")
	}
}

func TestComparisonStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to ComparisonStatus
		want     bool
	}{
		{ComparisonStatusPending, ComparisonStatusGenerating, true},
		{ComparisonStatusGenerating, ComparisonStatusEvaluating, true},
		{ComparisonStatusEvaluating, ComparisonStatusCompleted, true},
		{ComparisonStatusPending, ComparisonStatusFailed, true},
		{ComparisonStatusEvaluating, ComparisonStatusFailed, true},
		{ComparisonStatusEvaluating, ComparisonStatusGenerating, false},
		{ComparisonStatusCompleted, ComparisonStatusFailed, false},
		{ComparisonStatusFailed, ComparisonStatusGenerating, false},
	}

	for _, c := range cases {
		if got := c.from.CanTransition(c.to); got != c.want {
			t.Errorf("CanTransition(%s → %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestExpectedSampleCount(t *testing.T) {
	c := &Comparison{
		ProviderA:   ProviderSelection{Provider: "elevenlabs", Voices: []Voice{{ID: "v1"}, {ID: "v2"}}},
		ProviderB:   ProviderSelection{Provider: "cartesia", Voices: []Voice{{ID: "v3"}}},
		SampleTexts: []string{"Hello", "Thanks", "Goodbye"},
		NumRuns:     2,
	}

	// 3 texts × (2 + 1) voices × 2 runs
	if got := c.ExpectedSampleCount(); got != 18 {
		t.Errorf("expected sample count 18, got %d", got)
	}
}

func TestSampleHasAudio(t *testing.T) {
	path := "abc/sample.mp3"

	s := &Sample{Status: SampleStatusCompleted, AudioPath: &path}
	if !s.HasAudio() {
		t.Error("completed sample with audio path should have audio")
	}

	s = &Sample{Status: SampleStatusCompleted}
	if s.HasAudio() {
		t.Error("completed sample without audio path should not have audio")
	}

	s = &Sample{Status: SampleStatusFailed, AudioPath: &path}
	if s.HasAudio() {
		t.Error("failed sample should not have audio")
	}
}
