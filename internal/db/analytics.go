package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/echolab/voicearena/internal/models"
)

// GetAnalytics computes the lifetime (provider, model, voice) rollup over
// every completed sample across all comparisons. It is rebuilt per query —
// there is no materialized table to keep in sync.
func (db *DB) GetAnalytics(ctx context.Context) ([]models.AnalyticsRow, error) {
	query := `
		SELECT
			provider_name,
			model_id,
			voice_id,
			COALESCE(voice_name, ''),
			COUNT(*),
			AVG((metrics->>'mos')::double precision),
			AVG((metrics->>'valence')::double precision),
			AVG((metrics->>'arousal')::double precision),
			AVG((metrics->>'prosody')::double precision),
			AVG(latency_ms::double precision)
		FROM samples
		WHERE status = 'completed'
		GROUP BY provider_name, model_id, voice_id, voice_name
		ORDER BY provider_name, model_id, voice_id
	`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query analytics: %w", err)
	}
	defer rows.Close()

	var result []models.AnalyticsRow
	for rows.Next() {
		var (
			r                                models.AnalyticsRow
			mos, valence, arousal, prosody   sql.NullFloat64
			latency                          sql.NullFloat64
		)
		if err := rows.Scan(
			&r.Provider, &r.Model, &r.VoiceID, &r.VoiceName, &r.SampleCount,
			&mos, &valence, &arousal, &prosody, &latency,
		); err != nil {
			return nil, fmt.Errorf("failed to scan analytics row: %w", err)
		}

		r.AvgMOS = nullableFloat(mos)
		r.AvgValence = nullableFloat(valence)
		r.AvgArousal = nullableFloat(arousal)
		r.AvgProsody = nullableFloat(prosody)
		r.AvgLatencyMs = nullableFloat(latency)

		result = append(result, r)
	}

	return result, rows.Err()
}

func nullableFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
