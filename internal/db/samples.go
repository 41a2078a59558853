package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/echolab/voicearena/internal/models"
	"github.com/google/uuid"
)

const sampleColumns = `
	id, comparison_id, provider, sample_index, run_index, voice_id, voice_name,
	text, audio_path, duration_ms, latency_ms, status, error_message, metrics,
	created_at, updated_at
`

// CreateSample inserts one ledger row. The provider/model columns are
// denormalized from the comparison's selection so the analytics rollup can
// group without unpacking comparison JSON.
func (db *DB) CreateSample(ctx context.Context, s *models.Sample, providerName, modelID string) error {
	query := `
		INSERT INTO samples (
			id, comparison_id, provider, provider_name, model_id,
			sample_index, run_index, voice_id, voice_name, text, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at
	`

	return db.QueryRowContext(
		ctx, query,
		s.ID, s.ComparisonID, s.Provider, providerName, modelID,
		s.SampleIndex, s.RunIndex, s.VoiceID, s.VoiceName, s.Text, s.Status,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
}

func (db *DB) GetSample(ctx context.Context, id uuid.UUID) (*models.Sample, error) {
	query := `SELECT ` + sampleColumns + ` FROM samples WHERE id = $1`

	s := &models.Sample{}
	err := db.QueryRowContext(ctx, query, id).Scan(
		&s.ID, &s.ComparisonID, &s.Provider, &s.SampleIndex, &s.RunIndex,
		&s.VoiceID, &s.VoiceName, &s.Text, &s.AudioPath, &s.DurationMs,
		&s.LatencyMs, &s.Status, &s.ErrorMessage, &s.Metrics,
		&s.CreatedAt, &s.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("sample not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sample: %w", err)
	}

	return s, nil
}

// GetComparisonSamples returns the full ledger ordered by
// (sample_index, provider, voice, run) so clients see a stable layout.
func (db *DB) GetComparisonSamples(ctx context.Context, comparisonID uuid.UUID) ([]models.Sample, error) {
	query := `
		SELECT ` + sampleColumns + `
		FROM samples
		WHERE comparison_id = $1
		ORDER BY sample_index, provider, voice_id, run_index
	`

	rows, err := db.QueryContext(ctx, query, comparisonID)
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	defer rows.Close()

	var samples []models.Sample
	for rows.Next() {
		var s models.Sample
		if err := rows.Scan(
			&s.ID, &s.ComparisonID, &s.Provider, &s.SampleIndex, &s.RunIndex,
			&s.VoiceID, &s.VoiceName, &s.Text, &s.AudioPath, &s.DurationMs,
			&s.LatencyMs, &s.Status, &s.ErrorMessage, &s.Metrics,
			&s.CreatedAt, &s.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		samples = append(samples, s)
	}

	return samples, rows.Err()
}

func (db *DB) UpdateSampleStatus(ctx context.Context, id uuid.UUID, status models.SampleStatus) error {
	query := `UPDATE samples SET status = $1, updated_at = NOW() WHERE id = $2`
	_, err := db.ExecContext(ctx, query, status, id)
	return err
}

// UpdateSampleAudio marks a sample completed with its artifact and timings.
func (db *DB) UpdateSampleAudio(ctx context.Context, id uuid.UUID, audioPath string, durationMs, latencyMs int) error {
	query := `
		UPDATE samples
		SET status = $1, audio_path = $2, duration_ms = $3, latency_ms = $4, updated_at = NOW()
		WHERE id = $5
	`
	_, err := db.ExecContext(ctx, query, models.SampleStatusCompleted, audioPath, durationMs, latencyMs, id)
	return err
}

func (db *DB) UpdateSampleError(ctx context.Context, id uuid.UUID, errorMessage string) error {
	query := `
		UPDATE samples
		SET status = $1, error_message = $2, updated_at = NOW()
		WHERE id = $3
	`
	_, err := db.ExecContext(ctx, query, models.SampleStatusFailed, errorMessage, id)
	return err
}

func (db *DB) UpdateSampleMetrics(ctx context.Context, id uuid.UUID, metrics models.Metrics) error {
	query := `UPDATE samples SET metrics = $1, updated_at = NOW() WHERE id = $2`
	_, err := db.ExecContext(ctx, query, metrics, id)
	return err
}

// AreAllSamplesTerminal reports whether every ledger row is completed or failed.
func (db *DB) AreAllSamplesTerminal(ctx context.Context, comparisonID uuid.UUID) (bool, error) {
	var remaining int
	query := `
		SELECT COUNT(*) FROM samples
		WHERE comparison_id = $1 AND status NOT IN ('completed', 'failed')
	`
	if err := db.QueryRowContext(ctx, query, comparisonID).Scan(&remaining); err != nil {
		return false, fmt.Errorf("failed to count pending samples: %w", err)
	}
	return remaining == 0, nil
}

// CountCompletedSamples returns how many samples finished with audio.
func (db *DB) CountCompletedSamples(ctx context.Context, comparisonID uuid.UUID) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM samples WHERE comparison_id = $1 AND status = 'completed'`
	if err := db.QueryRowContext(ctx, query, comparisonID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count completed samples: %w", err)
	}
	return count, nil
}
