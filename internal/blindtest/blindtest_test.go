package blindtest

import (
	"math/rand"
	"testing"

	"github.com/echolab/voicearena/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completedSample(provider models.ProviderLabel, sampleIndex int, voiceID string) models.Sample {
	path := "audio/" + voiceID + ".mp3"
	return models.Sample{
		Provider:    provider,
		SampleIndex: sampleIndex,
		VoiceID:     voiceID,
		Status:      models.SampleStatusCompleted,
		AudioPath:   &path,
	}
}

func TestBuildPairsOnePerText(t *testing.T) {
	c := &models.Comparison{
		SampleTexts: []string{"Hello there.", "Thanks for calling."},
		Samples: []models.Sample{
			completedSample(models.ProviderA, 0, "v1"),
			completedSample(models.ProviderB, 0, "v2"),
			completedSample(models.ProviderA, 1, "v1"),
			completedSample(models.ProviderB, 1, "v2"),
		},
	}

	pairs := BuildPairs(c, rand.New(rand.NewSource(1)))
	require.Len(t, pairs, 2)

	for i, p := range pairs {
		assert.Equal(t, i, p.SampleIndex)
		assert.Equal(t, c.SampleTexts[i], p.Text)
		// X and Y always cover both voices, in some order
		heard := map[string]bool{p.X().VoiceID: true, p.Y().VoiceID: true}
		assert.True(t, heard["v1"] && heard["v2"])
	}
}

func TestBuildPairsSkipsIncompleteIndexes(t *testing.T) {
	failed := completedSample(models.ProviderB, 1, "v2")
	failed.Status = models.SampleStatusFailed
	failed.AudioPath = nil

	c := &models.Comparison{
		SampleTexts: []string{"first", "second", "third"},
		Samples: []models.Sample{
			completedSample(models.ProviderA, 0, "v1"),
			completedSample(models.ProviderB, 0, "v2"),
			completedSample(models.ProviderA, 1, "v1"),
			failed, // provider B has no audio for index 1
			// index 2 has no samples at all
		},
	}

	pairs := BuildPairs(c, rand.New(rand.NewSource(7)))
	require.Len(t, pairs, 1)
	assert.Equal(t, 0, pairs[0].SampleIndex)
}

func TestPairPresentationFollowsFlip(t *testing.T) {
	a := completedSample(models.ProviderA, 0, "voice-a")
	b := completedSample(models.ProviderB, 0, "voice-b")

	straight := Pair{SampleIndex: 0, Flipped: false, a: a, b: b}
	assert.Equal(t, "voice-a", straight.X().VoiceID)
	assert.Equal(t, "voice-b", straight.Y().VoiceID)

	flipped := Pair{SampleIndex: 0, Flipped: true, a: a, b: b}
	assert.Equal(t, "voice-b", flipped.X().VoiceID)
	assert.Equal(t, "voice-a", flipped.Y().VoiceID)
}

func TestReconcileTruthTable(t *testing.T) {
	a := completedSample(models.ProviderA, 0, "voice-a")
	b := completedSample(models.ProviderB, 0, "voice-b")

	cases := []struct {
		name    string
		flipped bool
		picked  Label
		want    models.ProviderLabel
	}{
		{"straight pick X", false, LabelX, models.ProviderA},
		{"straight pick Y", false, LabelY, models.ProviderB},
		{"flipped pick X", true, LabelX, models.ProviderB},
		{"flipped pick Y", true, LabelY, models.ProviderA},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pairs := []Pair{{SampleIndex: 0, Flipped: tc.flipped, a: a, b: b}}
			results, err := Reconcile(pairs, []Choice{{SampleIndex: 0, Picked: tc.picked}})
			require.NoError(t, err)
			require.Len(t, results, 1)
			assert.Equal(t, tc.want, results[0].Preferred)
			assert.Equal(t, "voice-a", results[0].VoiceIDA)
			assert.Equal(t, "voice-b", results[0].VoiceIDB)
		})
	}
}

func TestReconcileRoundTrip(t *testing.T) {
	// Whatever the random flips turn out to be, picking the sample that is
	// canonically A must always reconcile back to A.
	c := &models.Comparison{
		SampleTexts: []string{"one", "two", "three", "four"},
	}
	for i := range c.SampleTexts {
		c.Samples = append(c.Samples,
			completedSample(models.ProviderA, i, "v1"),
			completedSample(models.ProviderB, i, "v2"),
		)
	}

	pairs := BuildPairs(c, rand.New(rand.NewSource(42)))
	require.Len(t, pairs, 4)

	choices := make([]Choice, 0, len(pairs))
	for _, p := range pairs {
		picked := LabelX
		if p.Flipped {
			picked = LabelY
		}
		choices = append(choices, Choice{SampleIndex: p.SampleIndex, Picked: picked})
	}

	results, err := Reconcile(pairs, choices)
	require.NoError(t, err)
	for _, r := range results {
		assert.Equal(t, models.ProviderA, r.Preferred)
	}
}

func TestReconcileRejectsUnknownIndexAndLabel(t *testing.T) {
	a := completedSample(models.ProviderA, 0, "v1")
	b := completedSample(models.ProviderB, 0, "v2")
	pairs := []Pair{{SampleIndex: 0, a: a, b: b}}

	_, err := Reconcile(pairs, []Choice{{SampleIndex: 5, Picked: LabelX}})
	assert.Error(t, err)

	_, err = Reconcile(pairs, []Choice{{SampleIndex: 0, Picked: Label("z")}})
	assert.Error(t, err)
}
