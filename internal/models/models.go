package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Enums

type ComparisonStatus string

const (
	ComparisonStatusPending    ComparisonStatus = "pending"
	ComparisonStatusGenerating ComparisonStatus = "generating"
	ComparisonStatusEvaluating ComparisonStatus = "evaluating"
	ComparisonStatusCompleted  ComparisonStatus = "completed"
	ComparisonStatusFailed     ComparisonStatus = "failed"
)

// Terminal reports whether a comparison in this status will not change again.
func (s ComparisonStatus) Terminal() bool {
	return s == ComparisonStatusCompleted || s == ComparisonStatusFailed
}

// statusRank orders the non-failed statuses for the monotonicity guard.
// failed is terminal and reachable from any non-terminal state.
var statusRank = map[ComparisonStatus]int{
	ComparisonStatusPending:    0,
	ComparisonStatusGenerating: 1,
	ComparisonStatusEvaluating: 2,
	ComparisonStatusCompleted:  3,
}

// CanTransition reports whether moving from s to next keeps the status
// monotonically non-decreasing. failed is allowed from any non-terminal
// state and never left once entered.
func (s ComparisonStatus) CanTransition(next ComparisonStatus) bool {
	if s.Terminal() {
		return false
	}
	if next == ComparisonStatusFailed {
		return true
	}
	return statusRank[next] >= statusRank[s]
}

type SampleStatus string

const (
	SampleStatusPending    SampleStatus = "pending"
	SampleStatusGenerating SampleStatus = "generating"
	SampleStatusCompleted  SampleStatus = "completed"
	SampleStatusFailed     SampleStatus = "failed"
)

// Terminal reports whether the sample will not change again.
func (s SampleStatus) Terminal() bool {
	return s == SampleStatusCompleted || s == SampleStatusFailed
}

// ProviderLabel identifies a side of the comparison ("a" or "b").
// This is the canonical identity; the blind test presents samples under
// anonymized X/Y labels instead.
type ProviderLabel string

const (
	ProviderA ProviderLabel = "a"
	ProviderB ProviderLabel = "b"
)

// Objective metric names stored in a sample's metrics map.
const (
	MetricMOS       = "mos"
	MetricValence   = "valence"
	MetricArousal   = "arousal"
	MetricProsody   = "prosody"
	MetricLatencyMs = "latency_ms"
)

// Metrics is a custom type for PostgreSQL JSONB columns holding
// metric name → value pairs. Values are numeric for the known metrics
// but the column tolerates strings for provider-reported extras.
type Metrics map[string]interface{}

func (m Metrics) Value() (driver.Value, error) {
	return json.Marshal(m)
}

func (m *Metrics) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, m)
}

// Float returns the named metric as a float64 when present and numeric.
func (m Metrics) Float(name string) (float64, bool) {
	if m == nil {
		return 0, false
	}
	switch v := m[name].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// Models

// Voice is one selectable voice of a provider/model pair.
type Voice struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// ProviderSelection pins one side of the comparison: a provider, a model,
// and the ordered list of voices to synthesize with.
type ProviderSelection struct {
	Provider string  `json:"provider"`
	Model    string  `json:"model"`
	Voices   []Voice `json:"voices"`
}

// VoiceIDs returns the ordered voice ids of the selection.
func (p ProviderSelection) VoiceIDs() []string {
	ids := make([]string, len(p.Voices))
	for i, v := range p.Voices {
		ids[i] = v.ID
	}
	return ids
}

type Comparison struct {
	ID           uuid.UUID          `json:"id"`
	Name         string             `json:"name"`
	Status       ComparisonStatus   `json:"status"`
	ProviderA    ProviderSelection  `json:"provider_a"`
	ProviderB    ProviderSelection  `json:"provider_b"`
	SampleTexts  []string           `json:"sample_texts"`
	NumRuns      int                `json:"num_runs"`
	Samples      []Sample           `json:"samples,omitempty"`
	BlindTest    *BlindTestSummary  `json:"blind_test,omitempty"`
	Evaluation   *EvaluationSummary `json:"evaluation,omitempty"`
	ErrorMessage *string            `json:"error_message,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// ExpectedSampleCount is the full ledger size:
// len(sample_texts) × (|voices_a| + |voices_b|) × num_runs.
// The actual count may fall short only through provider-reported failures.
func (c *Comparison) ExpectedSampleCount() int {
	return len(c.SampleTexts) * (len(c.ProviderA.Voices) + len(c.ProviderB.Voices)) * c.NumRuns
}

// Selection returns the provider selection for the given side.
func (c *Comparison) Selection(label ProviderLabel) ProviderSelection {
	if label == ProviderB {
		return c.ProviderB
	}
	return c.ProviderA
}

// Sample is one synthesized audio artifact, keyed within its comparison by
// (provider, sample_index, run_index, voice_id).
type Sample struct {
	ID           uuid.UUID     `json:"id"`
	ComparisonID uuid.UUID     `json:"comparison_id"`
	Provider     ProviderLabel `json:"provider"`
	SampleIndex  int           `json:"sample_index"`
	RunIndex     int           `json:"run_index"`
	VoiceID      string        `json:"voice_id"`
	VoiceName    *string       `json:"voice_name,omitempty"`
	Text         string        `json:"text"`
	AudioPath    *string       `json:"audio_path,omitempty"` // object key, set once generation succeeds
	AudioURL     *string       `json:"audio_url,omitempty"`  // derived from storage, never persisted
	DurationMs   *int          `json:"duration_ms,omitempty"`
	LatencyMs    *int          `json:"latency_ms,omitempty"`
	Status       SampleStatus  `json:"status"`
	ErrorMessage *string       `json:"error_message,omitempty"`
	Metrics      Metrics       `json:"metrics,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// HasAudio reports whether the sample finished with a playable artifact.
func (s *Sample) HasAudio() bool {
	return s.Status == SampleStatusCompleted && s.AudioPath != nil && *s.AudioPath != ""
}

// BlindTestSummary is the backend-computed preference tally.
type BlindTestSummary struct {
	AWins int     `json:"a_wins"`
	BWins int     `json:"b_wins"`
	APct  float64 `json:"a_pct"`
	BPct  float64 `json:"b_pct"`
}

// ProviderAggregate holds the per-provider metric means over completed samples.
type ProviderAggregate struct {
	Provider    string             `json:"provider"`
	Model       string             `json:"model"`
	SampleCount int                `json:"sample_count"`
	Means       map[string]float64 `json:"means"`
}

// EvaluationSummary combines objective aggregates, the optional blind tally,
// and the winner decision.
type EvaluationSummary struct {
	ProviderA ProviderAggregate `json:"provider_a"`
	ProviderB ProviderAggregate `json:"provider_b"`
	BlindTest *BlindTestSummary `json:"blind_test,omitempty"`
	Winner    ProviderLabel     `json:"winner"`
}

// AnalyticsRow is a lifetime-scoped (provider, model, voice) rollup computed
// by the backend per query. Nil metric pointers mean no completed sample
// carried that metric.
type AnalyticsRow struct {
	Provider     string   `json:"provider"`
	Model        string   `json:"model"`
	VoiceID      string   `json:"voice_id"`
	VoiceName    string   `json:"voice_name"`
	SampleCount  int      `json:"sample_count"`
	AvgMOS       *float64 `json:"avg_mos,omitempty"`
	AvgValence   *float64 `json:"avg_valence,omitempty"`
	AvgArousal   *float64 `json:"avg_arousal,omitempty"`
	AvgProsody   *float64 `json:"avg_prosody,omitempty"`
	AvgLatencyMs *float64 `json:"avg_latency_ms,omitempty"`
}

// DTOs for API requests and responses

type CreateComparisonRequest struct {
	Name        string            `json:"name"`
	ProviderA   ProviderSelection `json:"provider_a"`
	ProviderB   ProviderSelection `json:"provider_b"`
	SampleTexts []string          `json:"sample_texts"`
	NumRuns     int               `json:"num_runs"`
}

type CreateComparisonResponse struct {
	ComparisonID uuid.UUID        `json:"comparison_id"`
	Status       ComparisonStatus `json:"status"`
}

// ComparisonSummary is a lightweight DTO for the list endpoint — no samples
// array, just enough for a history row.
type ComparisonSummary struct {
	ID           uuid.UUID        `json:"id"`
	Name         string           `json:"name"`
	Status       ComparisonStatus `json:"status"`
	ProviderA    string           `json:"provider_a"`
	ProviderB    string           `json:"provider_b"`
	NumRuns      int              `json:"num_runs"`
	TextCount    int              `json:"text_count"`
	SampleCount  int              `json:"sample_count"`
	ErrorMessage *string          `json:"error_message,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

type ListComparisonsResponse struct {
	Comparisons []ComparisonSummary `json:"comparisons"`
	Total       int                 `json:"total"`
}

// BlindTestResult is one reconciled preference: the pair's text index, the
// canonical provider the listener preferred, and the voices that were heard.
type BlindTestResult struct {
	SampleIndex int           `json:"sample_index"`
	Preferred   ProviderLabel `json:"preferred"`
	VoiceIDA    string        `json:"voice_id_a"`
	VoiceIDB    string        `json:"voice_id_b"`
}

type SubmitBlindTestRequest struct {
	Results []BlindTestResult `json:"results"`
}

type GenerateSampleTextsRequest struct {
	Topic string `json:"topic"`
	Style string `json:"style,omitempty"`
	Count int    `json:"count"`
}

type GenerateSampleTextsResponse struct {
	Samples []string `json:"samples"`
}
