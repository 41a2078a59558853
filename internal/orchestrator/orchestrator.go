// Package orchestrator drives one comparison through its client-side
// lifecycle: configure → progress → blind-test → results. It is the single
// owner of the active comparison snapshot; the UI layers read from it and
// feed user actions back in.
//
// An Orchestrator is single-threaded by design. All methods must be called
// from the same goroutine that runs Wait.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/echolab/voicearena/internal/blindtest"
	"github.com/echolab/voicearena/internal/models"
	"github.com/echolab/voicearena/internal/results"
	"github.com/google/uuid"
)

// Step is the client-side lifecycle position. It advances independently of
// the backend comparison status: the backend can report completed while the
// client is still on progress waiting for its next poll tick.
type Step string

const (
	StepConfigure Step = "configure"
	StepProgress  Step = "progress"
	StepBlindTest Step = "blind-test"
	StepResults   Step = "results"
)

// defaultPollInterval is the fixed cadence for progress polling.
const defaultPollInterval = 3 * time.Second

// ErrPollTimeout is returned by Wait when MaxPollDuration elapses before the
// comparison reaches a terminal status.
var ErrPollTimeout = errors.New("orchestrator: polling timed out before the comparison finished")

// ValidationError reports a comparison spec that cannot be submitted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid comparison spec: %s %s", e.Field, e.Reason)
}

// Spec is the client-side draft of a comparison before submission.
type Spec struct {
	Name        string
	ProviderA   models.ProviderSelection
	ProviderB   models.ProviderSelection
	SampleTexts []string
	NumRuns     int
}

// Validate checks the draft the same way the backend will, so a bad spec
// fails locally instead of burning a round trip.
func (s *Spec) Validate() error {
	sides := []struct {
		field string
		sel   models.ProviderSelection
	}{
		{"provider_a", s.ProviderA},
		{"provider_b", s.ProviderB},
	}
	for _, side := range sides {
		if side.sel.Provider == "" {
			return &ValidationError{Field: side.field + ".provider", Reason: "is required"}
		}
		if side.sel.Model == "" {
			return &ValidationError{Field: side.field + ".model", Reason: "is required"}
		}
		if len(side.sel.Voices) == 0 {
			return &ValidationError{Field: side.field + ".voices", Reason: "must not be empty"}
		}
	}
	if len(s.SampleTexts) == 0 {
		return &ValidationError{Field: "sample_texts", Reason: "must not be empty"}
	}
	if s.NumRuns < 1 || s.NumRuns > 10 {
		return &ValidationError{Field: "num_runs", Reason: "must be between 1 and 10"}
	}
	return nil
}

// Backend is the slice of the HTTP client the orchestrator needs. Tests
// substitute a scripted fake.
type Backend interface {
	CreateComparison(ctx context.Context, req models.CreateComparisonRequest) (*models.CreateComparisonResponse, error)
	GenerateComparison(ctx context.Context, id uuid.UUID) error
	GetComparison(ctx context.Context, id uuid.UUID) (*models.Comparison, error)
	SubmitBlindTest(ctx context.Context, id uuid.UUID, results []models.BlindTestResult) error
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithPollInterval overrides the fixed polling cadence. Intended for tests.
func WithPollInterval(d time.Duration) Option {
	return func(o *Orchestrator) { o.pollInterval = d }
}

// WithMaxPollDuration bounds how long Wait polls before giving up with
// ErrPollTimeout. Zero means poll until terminal.
func WithMaxPollDuration(d time.Duration) Option {
	return func(o *Orchestrator) { o.maxPollDuration = d }
}

// WithRand sets the randomness source for blind-pair flips. Tests pass a
// seeded source for reproducible anonymization.
func WithRand(rng *rand.Rand) Option {
	return func(o *Orchestrator) { o.rng = rng }
}

// WithPollObserver registers a callback invoked after every successful poll
// tick inside Wait, so callers can render progress without running their own
// polling loop (which would bypass MaxPollDuration).
func WithPollObserver(fn func()) Option {
	return func(o *Orchestrator) { o.pollObserver = fn }
}

// Orchestrator owns the active comparison and its lifecycle step.
type Orchestrator struct {
	backend         Backend
	pollInterval    time.Duration
	maxPollDuration time.Duration
	rng             *rand.Rand
	pollObserver    func()

	step       Step
	activeID   uuid.UUID
	comparison *models.Comparison
	pairs      []blindtest.Pair
	summary    *models.EvaluationSummary
}

func New(backend Backend, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		backend:      backend,
		pollInterval: defaultPollInterval,
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
		step:         StepConfigure,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Step returns the current lifecycle position.
func (o *Orchestrator) Step() Step {
	return o.step
}

// Comparison returns the latest snapshot, or nil before the first create.
func (o *Orchestrator) Comparison() *models.Comparison {
	return o.comparison
}

// Pairs returns the blind pairs built when the comparison completed.
func (o *Orchestrator) Pairs() []blindtest.Pair {
	return o.pairs
}

// Summary returns the evaluation summary once the results step is reached.
func (o *Orchestrator) Summary() *models.EvaluationSummary {
	return o.summary
}

// Create validates the spec, registers it with the backend, requests
// generation, and advances to the progress step. A failure at any point
// leaves the orchestrator on configure so the user can retry.
func (o *Orchestrator) Create(ctx context.Context, spec Spec) error {
	if o.step != StepConfigure {
		return fmt.Errorf("cannot create a comparison from step %q", o.step)
	}
	if err := spec.Validate(); err != nil {
		return err
	}

	resp, err := o.backend.CreateComparison(ctx, models.CreateComparisonRequest{
		Name:        spec.Name,
		ProviderA:   spec.ProviderA,
		ProviderB:   spec.ProviderB,
		SampleTexts: spec.SampleTexts,
		NumRuns:     spec.NumRuns,
	})
	if err != nil {
		return err
	}

	if err := o.backend.GenerateComparison(ctx, resp.ComparisonID); err != nil {
		return err
	}

	o.activeID = resp.ComparisonID
	o.comparison = nil
	o.pairs = nil
	o.summary = nil
	o.step = StepProgress
	return nil
}

// Poll runs one polling tick. Outside the progress step it is a no-op, so a
// tick that fires after the step already moved on is harmless. On a completed
// snapshot it builds the blind pairs and advances to blind-test; a failed
// snapshot stays on progress with the error visible on the comparison.
func (o *Orchestrator) Poll(ctx context.Context) error {
	if o.step != StepProgress {
		return nil
	}

	id := o.activeID
	comparison, err := o.backend.GetComparison(ctx, id)
	if err != nil {
		return err
	}

	// A Reset or new Create may have raced the request; drop the stale result.
	if o.step != StepProgress || o.activeID != id {
		return nil
	}

	o.comparison = comparison
	if comparison.Status == models.ComparisonStatusCompleted {
		o.pairs = blindtest.BuildPairs(comparison, o.rng)
		o.step = StepBlindTest
	}
	return nil
}

// Wait polls at the fixed interval until the comparison reaches a terminal
// status, the context is cancelled, or MaxPollDuration elapses. Transient
// fetch errors are logged and retried on the next tick.
func (o *Orchestrator) Wait(ctx context.Context) error {
	if o.step != StepProgress {
		return nil
	}
	id := o.activeID

	var deadline time.Time
	if o.maxPollDuration > 0 {
		deadline = time.Now().Add(o.maxPollDuration)
	}

	ticker := time.NewTicker(o.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if o.step != StepProgress || o.activeID != id {
				return nil
			}
			if !deadline.IsZero() && time.Now().After(deadline) {
				return ErrPollTimeout
			}
			if err := o.Poll(ctx); err != nil {
				log.Printf("[Orchestrator] Poll failed for comparison %s: %v", id, err)
				continue
			}
			if o.pollObserver != nil {
				o.pollObserver()
			}
			if o.step != StepProgress {
				return nil
			}
			if o.comparison != nil && o.comparison.Status == models.ComparisonStatusFailed {
				return nil
			}
		}
	}
}

// Progress returns the percentage of the sample ledger that has reached a
// terminal status, against the expected full ledger size. It reads 100 only
// when every expected sample is completed or failed.
func (o *Orchestrator) Progress() int {
	if o.comparison == nil {
		return 0
	}
	expected := o.comparison.ExpectedSampleCount()
	if expected == 0 {
		return 0
	}
	terminal := 0
	for i := range o.comparison.Samples {
		if o.comparison.Samples[i].Status.Terminal() {
			terminal++
		}
	}
	pct := terminal * 100 / expected
	if pct > 100 {
		pct = 100
	}
	return pct
}

// SubmitChoices reconciles the listener's picks, submits them as one batch,
// refetches the snapshot to pick up the backend tally, and advances to
// results. Choices need not cover every pair; skipped pairs simply do not
// count.
func (o *Orchestrator) SubmitChoices(ctx context.Context, choices []blindtest.Choice) error {
	if o.step != StepBlindTest {
		return fmt.Errorf("cannot submit blind-test choices from step %q", o.step)
	}

	reconciled, err := blindtest.Reconcile(o.pairs, choices)
	if err != nil {
		return err
	}
	if len(reconciled) == 0 {
		return errors.New("no choices to submit")
	}

	if err := o.backend.SubmitBlindTest(ctx, o.activeID, reconciled); err != nil {
		return err
	}

	comparison, err := o.backend.GetComparison(ctx, o.activeID)
	if err != nil {
		return err
	}

	o.comparison = comparison
	o.summary = results.Aggregate(comparison)
	o.step = StepResults
	return nil
}

// SkipBlindTest advances straight to results with objective metrics only.
func (o *Orchestrator) SkipBlindTest() error {
	if o.step != StepBlindTest {
		return fmt.Errorf("cannot skip the blind test from step %q", o.step)
	}
	o.summary = results.Aggregate(o.comparison)
	o.step = StepResults
	return nil
}

// Reset discards all comparison state and returns to configure. Any poll
// tick still in flight becomes a no-op.
func (o *Orchestrator) Reset() {
	o.step = StepConfigure
	o.activeID = uuid.Nil
	o.comparison = nil
	o.pairs = nil
	o.summary = nil
}
