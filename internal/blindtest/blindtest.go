// Package blindtest builds anonymized listening pairs from a completed
// comparison and reconciles listener choices back to canonical providers.
package blindtest

import (
	"fmt"
	"math/rand"

	"github.com/echolab/voicearena/internal/models"
)

// Label is the anonymized side a listener sees. It carries no provider
// identity; only Reconcile may translate it back.
type Label string

const (
	LabelX Label = "x"
	LabelY Label = "y"
)

// Pair is one blind presentation: the two samples for a text index under
// anonymized labels. Flipped is drawn once at construction and is the single
// source of truth for reversing the anonymization — it is never recomputed.
// The canonical samples stay unexported so callers cannot shortcut the blind.
type Pair struct {
	SampleIndex int
	Text        string
	Flipped     bool

	a models.Sample
	b models.Sample
}

// X returns the sample presented under label X.
func (p Pair) X() models.Sample {
	if p.Flipped {
		return p.b
	}
	return p.a
}

// Y returns the sample presented under label Y.
func (p Pair) Y() models.Sample {
	if p.Flipped {
		return p.a
	}
	return p.b
}

// Choice records which label the listener picked for one pair.
type Choice struct {
	SampleIndex int
	Picked      Label
}

// BuildPairs constructs one pair per sample text where both providers have a
// completed sample with audio. An index missing either side is skipped
// entirely — partial generation failure degrades blind-test coverage rather
// than aborting it. rng drives the per-pair flip; pass a seeded source in
// tests.
func BuildPairs(c *models.Comparison, rng *rand.Rand) []Pair {
	var pairs []Pair
	for i, text := range c.SampleTexts {
		sampleA := firstQualifying(c.Samples, i, models.ProviderA)
		sampleB := firstQualifying(c.Samples, i, models.ProviderB)
		if sampleA == nil || sampleB == nil {
			continue
		}

		pairs = append(pairs, Pair{
			SampleIndex: i,
			Text:        text,
			Flipped:     rng.Intn(2) == 1,
			a:           *sampleA,
			b:           *sampleB,
		})
	}
	return pairs
}

// firstQualifying returns the first completed-with-audio sample for the
// given text index and provider, or nil.
func firstQualifying(samples []models.Sample, sampleIndex int, provider models.ProviderLabel) *models.Sample {
	for i := range samples {
		s := &samples[i]
		if s.SampleIndex == sampleIndex && s.Provider == provider && s.HasAudio() {
			return s
		}
	}
	return nil
}

// Reconcile maps listener choices back to canonical providers using each
// pair's Flipped flag:
//
//	flipped=false: X→A, Y→B
//	flipped=true:  X→B, Y→A
//
// Choices for indices without a pair are an error — the caller presented
// something that was never built.
func Reconcile(pairs []Pair, choices []Choice) ([]models.BlindTestResult, error) {
	byIndex := make(map[int]Pair, len(pairs))
	for _, p := range pairs {
		byIndex[p.SampleIndex] = p
	}

	results := make([]models.BlindTestResult, 0, len(choices))
	for _, choice := range choices {
		pair, ok := byIndex[choice.SampleIndex]
		if !ok {
			return nil, fmt.Errorf("no blind pair for sample index %d", choice.SampleIndex)
		}

		var preferred models.ProviderLabel
		switch choice.Picked {
		case LabelX:
			preferred = models.ProviderA
			if pair.Flipped {
				preferred = models.ProviderB
			}
		case LabelY:
			preferred = models.ProviderB
			if pair.Flipped {
				preferred = models.ProviderA
			}
		default:
			return nil, fmt.Errorf("invalid choice label %q for sample index %d", choice.Picked, choice.SampleIndex)
		}

		results = append(results, models.BlindTestResult{
			SampleIndex: choice.SampleIndex,
			Preferred:   preferred,
			VoiceIDA:    pair.a.VoiceID,
			VoiceIDB:    pair.b.VoiceID,
		})
	}

	return results, nil
}
