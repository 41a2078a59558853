package orchestrator

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/echolab/voicearena/internal/blindtest"
	"github.com/echolab/voicearena/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend serves a scripted sequence of comparison snapshots. The last
// snapshot repeats once the script runs out.
type fakeBackend struct {
	createResp  *models.CreateComparisonResponse
	createErr   error
	generateErr error
	snapshots   []*models.Comparison
	snapshotIdx int
	getFailures int // number of leading GetComparison calls that fail
	submitted   []models.BlindTestResult
	submitErr   error

	createCalls   int
	generateCalls int
	getCalls      int
}

func (f *fakeBackend) CreateComparison(ctx context.Context, req models.CreateComparisonRequest) (*models.CreateComparisonResponse, error) {
	f.createCalls++
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.createResp, nil
}

func (f *fakeBackend) GenerateComparison(ctx context.Context, id uuid.UUID) error {
	f.generateCalls++
	return f.generateErr
}

func (f *fakeBackend) GetComparison(ctx context.Context, id uuid.UUID) (*models.Comparison, error) {
	f.getCalls++
	if f.getFailures > 0 {
		f.getFailures--
		return nil, errors.New("connection refused")
	}
	if len(f.snapshots) == 0 {
		return nil, errors.New("no snapshot scripted")
	}
	s := f.snapshots[f.snapshotIdx]
	if f.snapshotIdx < len(f.snapshots)-1 {
		f.snapshotIdx++
	}
	return s, nil
}

func (f *fakeBackend) SubmitBlindTest(ctx context.Context, id uuid.UUID, results []models.BlindTestResult) error {
	if f.submitErr != nil {
		return f.submitErr
	}
	f.submitted = results
	return nil
}

func validSpec() Spec {
	return Spec{
		Name: "turbo vs sonic",
		ProviderA: models.ProviderSelection{
			Provider: "elevenlabs",
			Model:    "eleven_turbo_v2",
			Voices:   []models.Voice{{ID: "v1", Name: "Rachel"}},
		},
		ProviderB: models.ProviderSelection{
			Provider: "cartesia",
			Model:    "sonic-2",
			Voices:   []models.Voice{{ID: "v2", Name: "Astra"}},
		},
		SampleTexts: []string{"Hello there.", "Thanks for calling."},
		NumRuns:     1,
	}
}

// snapshot builds a comparison for the spec above with one sample per
// provider per text, in the given statuses.
func snapshot(id uuid.UUID, status models.ComparisonStatus, sampleStatus models.SampleStatus) *models.Comparison {
	spec := validSpec()
	c := &models.Comparison{
		ID:          id,
		Name:        spec.Name,
		Status:      status,
		ProviderA:   spec.ProviderA,
		ProviderB:   spec.ProviderB,
		SampleTexts: spec.SampleTexts,
		NumRuns:     1,
	}
	for i := range spec.SampleTexts {
		for _, side := range []struct {
			label models.ProviderLabel
			voice string
			mos   float64
		}{
			{models.ProviderA, "v1", 4.2},
			{models.ProviderB, "v2", 4.0},
		} {
			s := models.Sample{
				ID:           uuid.New(),
				ComparisonID: id,
				Provider:     side.label,
				SampleIndex:  i,
				VoiceID:      side.voice,
				Text:         spec.SampleTexts[i],
				Status:       sampleStatus,
			}
			if sampleStatus == models.SampleStatusCompleted {
				path := "audio.mp3"
				s.AudioPath = &path
				s.Metrics = models.Metrics{models.MetricMOS: side.mos}
			}
			c.Samples = append(c.Samples, s)
		}
	}
	return c
}

func newTestOrchestrator(backend Backend) *Orchestrator {
	return New(backend,
		WithPollInterval(time.Millisecond),
		WithRand(rand.New(rand.NewSource(11))),
	)
}

func TestSpecValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Spec)
	}{
		{"missing provider", func(s *Spec) { s.ProviderA.Provider = "" }},
		{"missing model", func(s *Spec) { s.ProviderB.Model = "" }},
		{"no voices", func(s *Spec) { s.ProviderA.Voices = nil }},
		{"no texts", func(s *Spec) { s.SampleTexts = nil }},
		{"zero runs", func(s *Spec) { s.NumRuns = 0 }},
		{"too many runs", func(s *Spec) { s.NumRuns = 11 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			spec := validSpec()
			tc.mutate(&spec)
			err := spec.Validate()
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
		})
	}

	spec := validSpec()
	assert.NoError(t, spec.Validate())
}

func TestCreateAdvancesToProgress(t *testing.T) {
	id := uuid.New()
	backend := &fakeBackend{
		createResp: &models.CreateComparisonResponse{ComparisonID: id, Status: models.ComparisonStatusPending},
	}
	o := newTestOrchestrator(backend)

	require.NoError(t, o.Create(context.Background(), validSpec()))
	assert.Equal(t, StepProgress, o.Step())
	assert.Equal(t, 1, backend.createCalls)
	assert.Equal(t, 1, backend.generateCalls)

	// A second create from progress is rejected
	assert.Error(t, o.Create(context.Background(), validSpec()))
}

func TestCreateFailureStaysOnConfigure(t *testing.T) {
	backend := &fakeBackend{
		createResp:  &models.CreateComparisonResponse{ComparisonID: uuid.New()},
		generateErr: errors.New("queue unavailable"),
	}
	o := newTestOrchestrator(backend)

	assert.Error(t, o.Create(context.Background(), validSpec()))
	assert.Equal(t, StepConfigure, o.Step())
}

func TestPollIsNoOpOutsideProgress(t *testing.T) {
	backend := &fakeBackend{}
	o := newTestOrchestrator(backend)

	require.NoError(t, o.Poll(context.Background()))
	assert.Zero(t, backend.getCalls)
}

func TestProgressPercentage(t *testing.T) {
	id := uuid.New()
	o := newTestOrchestrator(&fakeBackend{})
	assert.Equal(t, 0, o.Progress())

	c := snapshot(id, models.ComparisonStatusGenerating, models.SampleStatusPending)
	o.comparison = c
	assert.Equal(t, 0, o.Progress())

	c.Samples[0].Status = models.SampleStatusCompleted
	c.Samples[1].Status = models.SampleStatusFailed
	assert.Equal(t, 50, o.Progress())

	for i := range c.Samples {
		c.Samples[i].Status = models.SampleStatusCompleted
	}
	assert.Equal(t, 100, o.Progress())
}

func TestFullLifecycle(t *testing.T) {
	id := uuid.New()
	blindSnapshot := snapshot(id, models.ComparisonStatusCompleted, models.SampleStatusCompleted)
	blindSnapshot.BlindTest = &models.BlindTestSummary{AWins: 2, BWins: 0, APct: 100, BPct: 0}

	backend := &fakeBackend{
		createResp: &models.CreateComparisonResponse{ComparisonID: id, Status: models.ComparisonStatusPending},
		snapshots: []*models.Comparison{
			snapshot(id, models.ComparisonStatusGenerating, models.SampleStatusGenerating),
			snapshot(id, models.ComparisonStatusCompleted, models.SampleStatusCompleted),
			blindSnapshot,
		},
	}
	o := newTestOrchestrator(backend)
	ctx := context.Background()

	require.NoError(t, o.Create(ctx, validSpec()))
	require.NoError(t, o.Wait(ctx))
	require.Equal(t, StepBlindTest, o.Step())
	assert.Equal(t, 100, o.Progress())

	pairs := o.Pairs()
	require.Len(t, pairs, 2)

	// Pick whichever label hides provider A on every pair
	choices := make([]blindtest.Choice, 0, len(pairs))
	for _, p := range pairs {
		picked := blindtest.LabelX
		if p.Flipped {
			picked = blindtest.LabelY
		}
		choices = append(choices, blindtest.Choice{SampleIndex: p.SampleIndex, Picked: picked})
	}

	require.NoError(t, o.SubmitChoices(ctx, choices))
	assert.Equal(t, StepResults, o.Step())

	require.Len(t, backend.submitted, 2)
	for _, r := range backend.submitted {
		assert.Equal(t, models.ProviderA, r.Preferred)
	}

	summary := o.Summary()
	require.NotNil(t, summary)
	assert.Equal(t, models.ProviderA, summary.Winner)
	assert.InDelta(t, 4.2, summary.ProviderA.Means[models.MetricMOS], 1e-9)
	assert.InDelta(t, 4.0, summary.ProviderB.Means[models.MetricMOS], 1e-9)
	require.NotNil(t, summary.BlindTest)
	assert.Equal(t, 2, summary.BlindTest.AWins)
	assert.Equal(t, 0, summary.BlindTest.BWins)
}

func TestFailedComparisonStaysOnProgress(t *testing.T) {
	id := uuid.New()
	failed := snapshot(id, models.ComparisonStatusFailed, models.SampleStatusFailed)
	msg := "all samples failed to synthesize"
	failed.ErrorMessage = &msg

	backend := &fakeBackend{
		createResp: &models.CreateComparisonResponse{ComparisonID: id},
		snapshots:  []*models.Comparison{failed},
	}
	o := newTestOrchestrator(backend)
	ctx := context.Background()

	require.NoError(t, o.Create(ctx, validSpec()))
	require.NoError(t, o.Wait(ctx))

	assert.Equal(t, StepProgress, o.Step())
	require.NotNil(t, o.Comparison())
	require.NotNil(t, o.Comparison().ErrorMessage)
	assert.Equal(t, msg, *o.Comparison().ErrorMessage)
	assert.Empty(t, o.Pairs())
}

func TestWaitTimesOut(t *testing.T) {
	id := uuid.New()
	backend := &fakeBackend{
		createResp: &models.CreateComparisonResponse{ComparisonID: id},
		snapshots: []*models.Comparison{
			snapshot(id, models.ComparisonStatusGenerating, models.SampleStatusGenerating),
		},
	}
	o := New(backend,
		WithPollInterval(time.Millisecond),
		WithMaxPollDuration(10*time.Millisecond),
		WithRand(rand.New(rand.NewSource(1))),
	)
	ctx := context.Background()

	require.NoError(t, o.Create(ctx, validSpec()))
	assert.ErrorIs(t, o.Wait(ctx), ErrPollTimeout)
	assert.Equal(t, StepProgress, o.Step())
}

func TestWaitNotifiesObserverAndKeepsDeadline(t *testing.T) {
	id := uuid.New()
	backend := &fakeBackend{
		createResp: &models.CreateComparisonResponse{ComparisonID: id},
		snapshots: []*models.Comparison{
			snapshot(id, models.ComparisonStatusGenerating, models.SampleStatusGenerating),
		},
	}

	// The CLI's configuration: progress rendering via the observer, polling
	// bounded by a max duration.
	ticks := 0
	o := New(backend,
		WithPollInterval(time.Millisecond),
		WithMaxPollDuration(10*time.Millisecond),
		WithRand(rand.New(rand.NewSource(1))),
		WithPollObserver(func() { ticks++ }),
	)
	ctx := context.Background()

	require.NoError(t, o.Create(ctx, validSpec()))
	assert.ErrorIs(t, o.Wait(ctx), ErrPollTimeout)
	assert.Greater(t, ticks, 0)
	assert.Equal(t, ticks, backend.getCalls)
}

func TestWaitRetriesTransientErrors(t *testing.T) {
	id := uuid.New()
	backend := &fakeBackend{
		createResp:  &models.CreateComparisonResponse{ComparisonID: id},
		getFailures: 3,
		snapshots: []*models.Comparison{
			snapshot(id, models.ComparisonStatusCompleted, models.SampleStatusCompleted),
		},
	}
	o := newTestOrchestrator(backend)
	ctx := context.Background()

	require.NoError(t, o.Create(ctx, validSpec()))
	require.NoError(t, o.Wait(ctx))

	assert.Equal(t, StepBlindTest, o.Step())
	assert.GreaterOrEqual(t, backend.getCalls, 4)
}

func TestSkipBlindTest(t *testing.T) {
	id := uuid.New()
	backend := &fakeBackend{
		createResp: &models.CreateComparisonResponse{ComparisonID: id},
		snapshots: []*models.Comparison{
			snapshot(id, models.ComparisonStatusCompleted, models.SampleStatusCompleted),
		},
	}
	o := newTestOrchestrator(backend)
	ctx := context.Background()

	require.NoError(t, o.Create(ctx, validSpec()))
	require.NoError(t, o.Wait(ctx))
	require.Equal(t, StepBlindTest, o.Step())

	require.NoError(t, o.SkipBlindTest())
	assert.Equal(t, StepResults, o.Step())

	summary := o.Summary()
	require.NotNil(t, summary)
	assert.Nil(t, summary.BlindTest)
	assert.Equal(t, models.ProviderA, summary.Winner)
}

func TestResetReturnsToConfigure(t *testing.T) {
	id := uuid.New()
	backend := &fakeBackend{
		createResp: &models.CreateComparisonResponse{ComparisonID: id},
		snapshots: []*models.Comparison{
			snapshot(id, models.ComparisonStatusCompleted, models.SampleStatusCompleted),
		},
	}
	o := newTestOrchestrator(backend)
	ctx := context.Background()

	require.NoError(t, o.Create(ctx, validSpec()))
	require.NoError(t, o.Wait(ctx))
	o.Reset()

	assert.Equal(t, StepConfigure, o.Step())
	assert.Nil(t, o.Comparison())
	assert.Empty(t, o.Pairs())
	assert.Nil(t, o.Summary())

	// Polls after a reset are no-ops
	calls := backend.getCalls
	require.NoError(t, o.Poll(ctx))
	assert.Equal(t, calls, backend.getCalls)
}
