package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/echolab/voicearena/internal/models"
	"github.com/google/uuid"
)

func (db *DB) CreateComparison(ctx context.Context, c *models.Comparison) error {
	providerA, err := json.Marshal(c.ProviderA)
	if err != nil {
		return fmt.Errorf("failed to marshal provider A: %w", err)
	}
	providerB, err := json.Marshal(c.ProviderB)
	if err != nil {
		return fmt.Errorf("failed to marshal provider B: %w", err)
	}
	texts, err := json.Marshal(c.SampleTexts)
	if err != nil {
		return fmt.Errorf("failed to marshal sample texts: %w", err)
	}

	query := `
		INSERT INTO comparisons (
			id, name, status, provider_a, provider_b, sample_texts, num_runs
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`

	return db.QueryRowContext(
		ctx, query,
		c.ID, c.Name, c.Status, providerA, providerB, texts, c.NumRuns,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
}

func (db *DB) GetComparison(ctx context.Context, id uuid.UUID) (*models.Comparison, error) {
	query := `
		SELECT
			id, name, status, provider_a, provider_b, sample_texts, num_runs,
			a_wins, b_wins, a_pct, b_pct, error_message, created_at, updated_at
		FROM comparisons
		WHERE id = $1
	`

	c := &models.Comparison{}
	var (
		providerA, providerB, texts []byte
		aWins, bWins                sql.NullInt64
		aPct, bPct                  sql.NullFloat64
	)

	err := db.QueryRowContext(ctx, query, id).Scan(
		&c.ID, &c.Name, &c.Status, &providerA, &providerB, &texts, &c.NumRuns,
		&aWins, &bWins, &aPct, &bPct, &c.ErrorMessage, &c.CreatedAt, &c.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("comparison not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get comparison: %w", err)
	}

	if err := json.Unmarshal(providerA, &c.ProviderA); err != nil {
		return nil, fmt.Errorf("failed to unmarshal provider A: %w", err)
	}
	if err := json.Unmarshal(providerB, &c.ProviderB); err != nil {
		return nil, fmt.Errorf("failed to unmarshal provider B: %w", err)
	}
	if err := json.Unmarshal(texts, &c.SampleTexts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sample texts: %w", err)
	}

	if aWins.Valid && bWins.Valid {
		c.BlindTest = &models.BlindTestSummary{
			AWins: int(aWins.Int64),
			BWins: int(bWins.Int64),
			APct:  aPct.Float64,
			BPct:  bPct.Float64,
		}
	}

	return c, nil
}

// ListComparisons returns lightweight summaries ordered newest first.
func (db *DB) ListComparisons(ctx context.Context) ([]models.ComparisonSummary, error) {
	query := `
		SELECT
			c.id, c.name, c.status,
			c.provider_a->>'provider', c.provider_b->>'provider',
			c.num_runs, c.sample_texts, c.error_message,
			(SELECT COUNT(*) FROM samples s WHERE s.comparison_id = c.id),
			c.created_at, c.updated_at
		FROM comparisons c
		ORDER BY c.created_at DESC
	`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list comparisons: %w", err)
	}
	defer rows.Close()

	var summaries []models.ComparisonSummary
	for rows.Next() {
		var (
			s     models.ComparisonSummary
			texts []byte
		)
		if err := rows.Scan(
			&s.ID, &s.Name, &s.Status, &s.ProviderA, &s.ProviderB,
			&s.NumRuns, &texts, &s.ErrorMessage, &s.SampleCount,
			&s.CreatedAt, &s.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan comparison: %w", err)
		}

		var sampleTexts []string
		if err := json.Unmarshal(texts, &sampleTexts); err == nil {
			s.TextCount = len(sampleTexts)
		}

		summaries = append(summaries, s)
	}

	return summaries, rows.Err()
}

// UpdateComparisonStatus advances the comparison status. The WHERE clause
// enforces the monotonic status invariant at the database level: a terminal
// comparison is never updated, and a later phase is never rolled back.
func (db *DB) UpdateComparisonStatus(ctx context.Context, id uuid.UUID, status models.ComparisonStatus) error {
	query := `
		UPDATE comparisons
		SET status = $1, updated_at = NOW()
		WHERE id = $2
		  AND status NOT IN ('completed', 'failed')
		  AND (
			$1 = 'failed' OR
			CASE status
				WHEN 'pending' THEN 0
				WHEN 'generating' THEN 1
				WHEN 'evaluating' THEN 2
			END <=
			CASE $1
				WHEN 'pending' THEN 0
				WHEN 'generating' THEN 1
				WHEN 'evaluating' THEN 2
				WHEN 'completed' THEN 3
			END
		  )
	`
	_, err := db.ExecContext(ctx, query, status, id)
	return err
}

func (db *DB) UpdateComparisonError(ctx context.Context, id uuid.UUID, errorMessage string) error {
	query := `
		UPDATE comparisons
		SET status = $1, error_message = $2, updated_at = NOW()
		WHERE id = $3 AND status NOT IN ('completed', 'failed')
	`
	_, err := db.ExecContext(ctx, query, models.ComparisonStatusFailed, errorMessage, id)
	return err
}

func (db *DB) DeleteComparison(ctx context.Context, id uuid.UUID) error {
	result, err := db.ExecContext(ctx, `DELETE FROM comparisons WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete comparison: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("comparison not found")
	}
	return nil
}

// SaveBlindTest stores the reconciled preference records and the computed
// tally in one transaction. Re-submitting replaces the previous results.
func (db *DB) SaveBlindTest(ctx context.Context, id uuid.UUID, results []models.BlindTestResult, summary models.BlindTestSummary) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM blind_preferences WHERE comparison_id = $1`, id); err != nil {
		return fmt.Errorf("failed to clear blind preferences: %w", err)
	}

	insert := `
		INSERT INTO blind_preferences (comparison_id, sample_index, preferred, voice_id_a, voice_id_b, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	now := time.Now()
	for _, r := range results {
		if _, err := tx.ExecContext(ctx, insert, id, r.SampleIndex, r.Preferred, r.VoiceIDA, r.VoiceIDB, now); err != nil {
			return fmt.Errorf("failed to insert blind preference: %w", err)
		}
	}

	update := `
		UPDATE comparisons
		SET a_wins = $1, b_wins = $2, a_pct = $3, b_pct = $4, updated_at = NOW()
		WHERE id = $5
	`
	if _, err := tx.ExecContext(ctx, update, summary.AWins, summary.BWins, summary.APct, summary.BPct, id); err != nil {
		return fmt.Errorf("failed to update blind test summary: %w", err)
	}

	return tx.Commit()
}
