// Package results aggregates a completed comparison's sample metrics into
// per-provider means and decides the winner.
package results

import (
	"github.com/echolab/voicearena/internal/models"
)

// winBias is how much each net blind-test win shifts the winner decision,
// expressed in MOS points.
const winBias = 0.1

// aggregatedMetrics are the metric names rolled into provider means.
var aggregatedMetrics = []string{
	models.MetricMOS,
	models.MetricValence,
	models.MetricArousal,
	models.MetricProsody,
	models.MetricLatencyMs,
}

// Aggregate computes the evaluation summary for a comparison snapshot.
// Only completed samples contribute; a sample missing a given metric is
// skipped for that metric but still counts toward the others it carries.
// The result is deterministic for a given snapshot.
func Aggregate(c *models.Comparison) *models.EvaluationSummary {
	summary := &models.EvaluationSummary{
		ProviderA: aggregateProvider(c, models.ProviderA),
		ProviderB: aggregateProvider(c, models.ProviderB),
		BlindTest: c.BlindTest,
	}
	summary.Winner = decideWinner(summary)
	return summary
}

func aggregateProvider(c *models.Comparison, label models.ProviderLabel) models.ProviderAggregate {
	selection := c.Selection(label)
	agg := models.ProviderAggregate{
		Provider: selection.Provider,
		Model:    selection.Model,
		Means:    make(map[string]float64),
	}

	sums := make(map[string]float64)
	counts := make(map[string]int)

	for i := range c.Samples {
		s := &c.Samples[i]
		if s.Provider != label || s.Status != models.SampleStatusCompleted {
			continue
		}
		agg.SampleCount++
		for _, name := range aggregatedMetrics {
			if v, ok := s.Metrics.Float(name); ok {
				sums[name] += v
				counts[name]++
			}
		}
	}

	for name, n := range counts {
		agg.Means[name] = sums[name] / float64(n)
	}
	return agg
}

// decideWinner applies the preference-biased mean MOS rule:
//
//	winner = A  iff  meanMosA + 0.1×(aWins−bWins) >= meanMosB
//
// Ties go to A, so two identical providers with no blind test still produce
// a stable answer.
func decideWinner(s *models.EvaluationSummary) models.ProviderLabel {
	meanA := s.ProviderA.Means[models.MetricMOS]
	meanB := s.ProviderB.Means[models.MetricMOS]

	var bias float64
	if s.BlindTest != nil {
		bias = winBias * float64(s.BlindTest.AWins-s.BlindTest.BWins)
	}

	if meanA+bias >= meanB {
		return models.ProviderA
	}
	return models.ProviderB
}
