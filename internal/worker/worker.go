package worker

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/echolab/voicearena/internal/db"
	"github.com/echolab/voicearena/internal/models"
	"github.com/echolab/voicearena/internal/queue"
	"github.com/echolab/voicearena/internal/services"
	"github.com/echolab/voicearena/internal/storage"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

type Worker struct {
	db        *db.DB
	queue     *queue.Queue
	storage   *storage.Storage
	registry  *services.Registry
	evaluator *services.EvaluatorService // Optional: nil when GEMINI_API_KEY is not set
	uploadSem chan struct{}              // Limits concurrent storage uploads to prevent congestion
}

func New(
	database *db.DB,
	q *queue.Queue,
	stor *storage.Storage,
	registry *services.Registry,
	evaluator *services.EvaluatorService,
) *Worker {
	return &Worker{
		db:        database,
		queue:     q,
		storage:   stor,
		registry:  registry,
		evaluator: evaluator,
		uploadSem: make(chan struct{}, 4),
	}
}

// uploadWithLimit wraps an upload call with a semaphore so a burst of
// finished samples cannot saturate the storage backend.
func (w *Worker) uploadWithLimit(ctx context.Context, label string, fn func() error) error {
	select {
	case w.uploadSem <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("upload cancelled while waiting for slot: %w", ctx.Err())
	}
	defer func() { <-w.uploadSem }()

	log.Printf("[Upload] %s uploading...", label)
	return fn()
}

// Start begins processing jobs from all queues
func (w *Worker) Start(ctx context.Context, concurrency int) {
	log.Printf("Worker started with concurrency: %d", concurrency)

	for i := 0; i < concurrency; i++ {
		go w.processQueue(ctx, queue.QueueGenerateComparison, w.handleGenerateComparison)
		go w.processQueue(ctx, queue.QueueSynthesizeSample, w.handleSynthesizeSample)
		go w.processQueue(ctx, queue.QueueEvaluateComparison, w.handleEvaluateComparison)
	}

	<-ctx.Done()
	log.Println("Worker shutting down...")
}

func (w *Worker) processQueue(ctx context.Context, queueName string, handler func(context.Context, *queue.Job) error) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			job, err := w.queue.Dequeue(ctx, queueName, 5*time.Second)
			if err != nil {
				log.Printf("Error dequeuing from %s: %v", queueName, err)
				continue
			}

			if job == nil {
				continue // No job available, retry
			}

			log.Printf("Processing job %s (type: %s, comparison: %s)", job.ID, job.Type, job.ComparisonID)

			if err := handler(ctx, job); err != nil {
				log.Printf("Job %s failed: %v", job.ID, err)
			} else {
				log.Printf("Job %s completed successfully", job.ID)
			}
		}
	}
}

// handleGenerateComparison materializes the sample ledger — one pending row
// per (text, voice, run) on each side — and fans out one synthesis job per
// row. Expected ledger size is len(texts) × (|voicesA| + |voicesB|) × runs.
func (w *Worker) handleGenerateComparison(ctx context.Context, job *queue.Job) error {
	comparison, err := w.db.GetComparison(ctx, job.ComparisonID)
	if err != nil {
		return fmt.Errorf("failed to get comparison: %w", err)
	}

	// Re-delivered job for an already-started comparison: nothing to do
	if comparison.Status != models.ComparisonStatusPending {
		log.Printf("Comparison %s already %s, skipping generation", comparison.ID, comparison.Status)
		return nil
	}

	if err := w.db.UpdateComparisonStatus(ctx, comparison.ID, models.ComparisonStatusGenerating); err != nil {
		return fmt.Errorf("failed to update comparison status: %w", err)
	}

	created := 0
	for _, label := range []models.ProviderLabel{models.ProviderA, models.ProviderB} {
		selection := comparison.Selection(label)

		for textIndex, text := range comparison.SampleTexts {
			for _, voice := range selection.Voices {
				for run := 0; run < comparison.NumRuns; run++ {
					sample := &models.Sample{
						ID:           uuid.New(),
						ComparisonID: comparison.ID,
						Provider:     label,
						SampleIndex:  textIndex,
						RunIndex:     run,
						VoiceID:      voice.ID,
						Text:         text,
						Status:       models.SampleStatusPending,
					}
					if voice.Name != "" {
						name := voice.Name
						sample.VoiceName = &name
					}

					if err := w.db.CreateSample(ctx, sample, selection.Provider, selection.Model); err != nil {
						w.db.UpdateComparisonError(ctx, comparison.ID, fmt.Sprintf("ledger creation failed: %v", err))
						return fmt.Errorf("failed to create sample: %w", err)
					}

					if err := w.queue.EnqueueSynthesizeSample(ctx, comparison.ID, sample.ID); err != nil {
						w.db.UpdateComparisonError(ctx, comparison.ID, fmt.Sprintf("enqueue failed: %v", err))
						return fmt.Errorf("failed to enqueue sample synthesis: %w", err)
					}

					created++
				}
			}
		}
	}

	log.Printf("Comparison %s: ledger created with %d samples (expected %d)",
		comparison.ID, created, comparison.ExpectedSampleCount())
	return nil
}

// handleSynthesizeSample synthesizes one ledger row: TTS call with measured
// latency, audio upload, sample bookkeeping. A provider failure marks only
// this sample failed — the comparison keeps going with reduced coverage.
func (w *Worker) handleSynthesizeSample(ctx context.Context, job *queue.Job) error {
	if job.SampleID == nil {
		return fmt.Errorf("sample ID missing")
	}

	sample, err := w.db.GetSample(ctx, *job.SampleID)
	if err != nil {
		return fmt.Errorf("failed to get sample: %w", err)
	}

	// Re-delivered job for a finished sample: reads only
	if sample.Status.Terminal() {
		return nil
	}

	comparison, err := w.db.GetComparison(ctx, job.ComparisonID)
	if err != nil {
		return fmt.Errorf("failed to get comparison: %w", err)
	}
	selection := comparison.Selection(sample.Provider)

	if err := w.db.UpdateSampleStatus(ctx, sample.ID, models.SampleStatusGenerating); err != nil {
		return fmt.Errorf("failed to update sample status: %w", err)
	}

	svc, err := w.registry.Get(selection.Provider)
	if err != nil {
		w.db.UpdateSampleError(ctx, sample.ID, err.Error())
		return w.finishSample(ctx, comparison.ID, err)
	}

	resp, err := svc.Synthesize(ctx, services.SpeechRequest{
		Text:    sample.Text,
		ModelID: selection.Model,
		VoiceID: sample.VoiceID,
	})
	if err != nil {
		w.db.UpdateSampleError(ctx, sample.ID, fmt.Sprintf("synthesis failed: %v", err))
		return w.finishSample(ctx, comparison.ID, fmt.Errorf("synthesis failed: %w", err))
	}

	audioPath := w.storage.SamplePath(comparison.ID, selection.Provider, sample.SampleIndex, sample.RunIndex, sample.VoiceID)

	if err := w.uploadWithLimit(ctx, audioPath, func() error {
		return w.storage.Upload(ctx, audioPath, resp.AudioData, "audio/mpeg")
	}); err != nil {
		w.db.UpdateSampleError(ctx, sample.ID, fmt.Sprintf("audio upload failed: %v", err))
		return w.finishSample(ctx, comparison.ID, fmt.Errorf("audio upload failed: %w", err))
	}

	if err := w.db.UpdateSampleAudio(ctx, sample.ID, audioPath, resp.DurationMs, resp.LatencyMs); err != nil {
		return fmt.Errorf("failed to update sample audio: %w", err)
	}

	return w.finishSample(ctx, comparison.ID, nil)
}

// finishSample runs after a sample reaches a terminal state, successful or
// not. Once the whole ledger is terminal the comparison moves to evaluating
// and the metric pass is enqueued.
func (w *Worker) finishSample(ctx context.Context, comparisonID uuid.UUID, sampleErr error) error {
	done, err := w.db.AreAllSamplesTerminal(ctx, comparisonID)
	if err != nil {
		return fmt.Errorf("failed to check ledger completion: %w", err)
	}

	if done {
		completed, err := w.db.CountCompletedSamples(ctx, comparisonID)
		if err != nil {
			return fmt.Errorf("failed to count completed samples: %w", err)
		}
		log.Printf("Comparison %s: all samples terminal (%d completed), enqueuing evaluation", comparisonID, completed)

		if err := w.db.UpdateComparisonStatus(ctx, comparisonID, models.ComparisonStatusEvaluating); err != nil {
			return fmt.Errorf("failed to update comparison status: %w", err)
		}
		if err := w.queue.EnqueueEvaluateComparison(ctx, comparisonID); err != nil {
			return fmt.Errorf("failed to enqueue evaluation: %w", err)
		}
	}

	return sampleErr
}

// handleEvaluateComparison scores every completed sample and finalizes the
// comparison. Provider A and B pipelines run concurrently; a single sample's
// evaluation failure downgrades that sample's metrics rather than failing
// the comparison.
func (w *Worker) handleEvaluateComparison(ctx context.Context, job *queue.Job) error {
	comparison, err := w.db.GetComparison(ctx, job.ComparisonID)
	if err != nil {
		return fmt.Errorf("failed to get comparison: %w", err)
	}

	if comparison.Status.Terminal() {
		return nil
	}

	samples, err := w.db.GetComparisonSamples(ctx, comparison.ID)
	if err != nil {
		return fmt.Errorf("failed to get samples: %w", err)
	}

	var completed []models.Sample
	for _, s := range samples {
		if s.Status == models.SampleStatusCompleted {
			completed = append(completed, s)
		}
	}

	if len(completed) == 0 {
		w.db.UpdateComparisonError(ctx, comparison.ID, "all samples failed to synthesize")
		return fmt.Errorf("comparison %s: no samples completed", comparison.ID)
	}

	// Per-provider evaluation pipelines converge before the status flip
	g, gctx := errgroup.WithContext(ctx)
	for _, label := range []models.ProviderLabel{models.ProviderA, models.ProviderB} {
		label := label
		g.Go(func() error {
			for _, s := range completed {
				if s.Provider != label {
					continue
				}
				if err := w.evaluateSample(gctx, s); err != nil {
					return err
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		w.db.UpdateComparisonError(ctx, comparison.ID, fmt.Sprintf("evaluation failed: %v", err))
		return fmt.Errorf("evaluation failed: %w", err)
	}

	if err := w.db.UpdateComparisonStatus(ctx, comparison.ID, models.ComparisonStatusCompleted); err != nil {
		return fmt.Errorf("failed to complete comparison: %w", err)
	}

	log.Printf("Comparison %s: completed (%d/%d samples)", comparison.ID, len(completed), len(samples))
	return nil
}

// evaluateSample stores objective metrics for one completed sample. The
// synthesis latency is always recorded; model-estimated scores are added
// when the evaluator is configured and succeeds.
func (w *Worker) evaluateSample(ctx context.Context, s models.Sample) error {
	metrics := models.Metrics{}
	if s.LatencyMs != nil {
		metrics[models.MetricLatencyMs] = float64(*s.LatencyMs)
	}

	if w.evaluator != nil && s.AudioPath != nil {
		audioData, err := w.storage.Download(ctx, *s.AudioPath)
		if err != nil {
			log.Printf("Sample %s: WARNING — audio download for scoring failed, keeping latency-only metrics: %v", s.ID, err)
		} else {
			scores, err := w.evaluator.ScoreSample(ctx, audioData, "audio/mpeg", s.Text)
			if err != nil {
				log.Printf("Sample %s: WARNING — scoring failed, keeping latency-only metrics: %v", s.ID, err)
			} else {
				metrics[models.MetricMOS] = scores.MOS
				metrics[models.MetricValence] = scores.Valence
				metrics[models.MetricArousal] = scores.Arousal
				metrics[models.MetricProsody] = scores.Prosody
			}
		}
	}

	if err := w.db.UpdateSampleMetrics(ctx, s.ID, metrics); err != nil {
		return fmt.Errorf("failed to store sample metrics: %w", err)
	}
	return nil
}
