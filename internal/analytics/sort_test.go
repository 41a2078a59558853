package analytics

import (
	"testing"

	"github.com/echolab/voicearena/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f(v float64) *float64 { return &v }

func leaderboard() []models.AnalyticsRow {
	return []models.AnalyticsRow{
		{Provider: "elevenlabs", Model: "eleven_turbo_v2", VoiceName: "Rachel", SampleCount: 12, AvgMOS: f(4.3)},
		{Provider: "cartesia", Model: "sonic-2", VoiceName: "Astra", SampleCount: 8, AvgMOS: f(4.5)},
		{Provider: "cartesia", Model: "sonic-2", VoiceName: "Orion", SampleCount: 20, AvgMOS: nil},
		{Provider: "elevenlabs", Model: "eleven_turbo_v2", VoiceName: "Adam", SampleCount: 4, AvgMOS: f(3.9)},
	}
}

func voiceNames(rows []models.AnalyticsRow) []string {
	names := make([]string, len(rows))
	for i, r := range rows {
		names[i] = r.VoiceName
	}
	return names
}

func TestDefaultDirections(t *testing.T) {
	assert.Equal(t, Ascending, DefaultDirection(KeyProvider))
	assert.Equal(t, Ascending, DefaultDirection(KeyVoiceName))
	assert.Equal(t, Descending, DefaultDirection(KeyAvgMOS))
	assert.Equal(t, Descending, DefaultDirection(KeySampleCount))
	assert.Equal(t, Descending, DefaultDirection(KeyAvgLatencyMs))
}

func TestSelectTogglesAndSwitches(t *testing.T) {
	var s State
	s.Select(KeyAvgMOS)
	assert.Equal(t, State{KeyAvgMOS, Descending}, s)

	s.Select(KeyAvgMOS)
	assert.Equal(t, State{KeyAvgMOS, Ascending}, s)

	s.Select(KeyAvgMOS)
	assert.Equal(t, State{KeyAvgMOS, Descending}, s)

	// Switching columns resets to that column's default
	s.Select(KeyProvider)
	assert.Equal(t, State{KeyProvider, Ascending}, s)
}

func TestSortStrings(t *testing.T) {
	rows := leaderboard()
	Sort(rows, KeyVoiceName, Ascending)
	assert.Equal(t, []string{"Adam", "Astra", "Orion", "Rachel"}, voiceNames(rows))

	Sort(rows, KeyVoiceName, Descending)
	assert.Equal(t, []string{"Rachel", "Orion", "Astra", "Adam"}, voiceNames(rows))
}

func TestSortNumbers(t *testing.T) {
	rows := leaderboard()
	Sort(rows, KeySampleCount, Descending)
	assert.Equal(t, []string{"Orion", "Rachel", "Astra", "Adam"}, voiceNames(rows))
}

func TestSortNullsLastBothDirections(t *testing.T) {
	rows := leaderboard()
	Sort(rows, KeyAvgMOS, Descending)
	require.Equal(t, []string{"Astra", "Rachel", "Adam", "Orion"}, voiceNames(rows))

	Sort(rows, KeyAvgMOS, Ascending)
	require.Equal(t, []string{"Adam", "Rachel", "Astra", "Orion"}, voiceNames(rows))
}

func TestSortIsStable(t *testing.T) {
	rows := []models.AnalyticsRow{
		{Provider: "cartesia", VoiceName: "first", AvgMOS: f(4.0)},
		{Provider: "cartesia", VoiceName: "second", AvgMOS: f(4.0)},
		{Provider: "cartesia", VoiceName: "third", AvgMOS: f(4.0)},
	}
	Sort(rows, KeyAvgMOS, Descending)
	assert.Equal(t, []string{"first", "second", "third"}, voiceNames(rows))

	Sort(rows, KeyAvgMOS, Ascending)
	assert.Equal(t, []string{"first", "second", "third"}, voiceNames(rows))
}

func TestSortIsIdempotent(t *testing.T) {
	rows := leaderboard()
	Sort(rows, KeyAvgMOS, Descending)
	once := voiceNames(rows)
	Sort(rows, KeyAvgMOS, Descending)
	assert.Equal(t, once, voiceNames(rows))
}
