// Package analytics provides the client-side view logic for the lifetime
// voice leaderboard: sortable columns with sensible defaults and toggling.
package analytics

import (
	"sort"
	"strings"

	"github.com/echolab/voicearena/internal/models"
)

// Key names a sortable leaderboard column.
type Key string

const (
	KeyProvider     Key = "provider"
	KeyModel        Key = "model"
	KeyVoiceName    Key = "voice_name"
	KeySampleCount  Key = "sample_count"
	KeyAvgMOS       Key = "avg_mos"
	KeyAvgValence   Key = "avg_valence"
	KeyAvgArousal   Key = "avg_arousal"
	KeyAvgProsody   Key = "avg_prosody"
	KeyAvgLatencyMs Key = "avg_latency_ms"
)

type Direction int

const (
	Ascending Direction = iota
	Descending
)

// DefaultDirection is ascending for identifier columns and descending for
// numeric ones, so a fresh click on a score column shows the best first.
func DefaultDirection(key Key) Direction {
	switch key {
	case KeyProvider, KeyModel, KeyVoiceName:
		return Ascending
	default:
		return Descending
	}
}

// State tracks the active sort column and direction.
type State struct {
	Key       Key
	Direction Direction
}

// Select applies a column click: selecting the active column toggles the
// direction, selecting a different column switches to it with its default
// direction.
func (s *State) Select(key Key) {
	if s.Key == key {
		if s.Direction == Ascending {
			s.Direction = Descending
		} else {
			s.Direction = Ascending
		}
		return
	}
	s.Key = key
	s.Direction = DefaultDirection(key)
}

// Sort orders rows in place by the given key and direction. The sort is
// stable, so rows equal under the key keep their relative order. Rows whose
// metric is null sort after all non-null rows in both directions.
func Sort(rows []models.AnalyticsRow, key Key, dir Direction) {
	sort.SliceStable(rows, func(i, j int) bool {
		return less(&rows[i], &rows[j], key, dir)
	})
}

func less(a, b *models.AnalyticsRow, key Key, dir Direction) bool {
	switch key {
	case KeyProvider, KeyModel, KeyVoiceName:
		cmp := strings.Compare(stringValue(a, key), stringValue(b, key))
		if dir == Descending {
			return cmp > 0
		}
		return cmp < 0
	case KeySampleCount:
		if dir == Descending {
			return a.SampleCount > b.SampleCount
		}
		return a.SampleCount < b.SampleCount
	default:
		return lessNullable(metricValue(a, key), metricValue(b, key), dir)
	}
}

// lessNullable compares optional metrics with nulls last regardless of
// direction.
func lessNullable(a, b *float64, dir Direction) bool {
	if a == nil {
		return false
	}
	if b == nil {
		return true
	}
	if dir == Descending {
		return *a > *b
	}
	return *a < *b
}

func stringValue(row *models.AnalyticsRow, key Key) string {
	switch key {
	case KeyProvider:
		return row.Provider
	case KeyModel:
		return row.Model
	default:
		return row.VoiceName
	}
}

func metricValue(row *models.AnalyticsRow, key Key) *float64 {
	switch key {
	case KeyAvgMOS:
		return row.AvgMOS
	case KeyAvgValence:
		return row.AvgValence
	case KeyAvgArousal:
		return row.AvgArousal
	case KeyAvgProsody:
		return row.AvgProsody
	case KeyAvgLatencyMs:
		return row.AvgLatencyMs
	default:
		return nil
	}
}
