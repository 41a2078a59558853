package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/echolab/voicearena/internal/db"
	"github.com/echolab/voicearena/internal/models"
	"github.com/echolab/voicearena/internal/queue"
	"github.com/echolab/voicearena/internal/services"
	"github.com/echolab/voicearena/internal/storage"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const (
	maxRuns            = 10
	audioURLExpirySecs = 3600
)

type Handler struct {
	db      *db.DB
	queue   *queue.Queue
	storage *storage.Storage
	openai  *services.OpenAIService // Optional: nil when OPENAI_API_KEY is not set
}

func NewHandler(database *db.DB, q *queue.Queue, stor *storage.Storage, openaiSvc *services.OpenAIService) *Handler {
	return &Handler{
		db:      database,
		queue:   q,
		storage: stor,
		openai:  openaiSvc,
	}
}

// CreateComparison handles POST /v1/comparisons
func (h *Handler) CreateComparison(w http.ResponseWriter, r *http.Request) {
	var req models.CreateComparisonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if msg := validateCreateRequest(&req); msg != "" {
		respondError(w, http.StatusBadRequest, msg)
		return
	}

	name := req.Name
	if name == "" {
		name = fmt.Sprintf("%s vs %s", req.ProviderA.Provider, req.ProviderB.Provider)
	}

	comparison := &models.Comparison{
		ID:          uuid.New(),
		Name:        name,
		Status:      models.ComparisonStatusPending,
		ProviderA:   req.ProviderA,
		ProviderB:   req.ProviderB,
		SampleTexts: req.SampleTexts,
		NumRuns:     req.NumRuns,
	}

	if err := h.db.CreateComparison(r.Context(), comparison); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to create comparison")
		return
	}

	respondJSON(w, http.StatusCreated, models.CreateComparisonResponse{
		ComparisonID: comparison.ID,
		Status:       comparison.Status,
	})
}

func validateCreateRequest(req *models.CreateComparisonRequest) string {
	for label, sel := range map[string]models.ProviderSelection{"provider_a": req.ProviderA, "provider_b": req.ProviderB} {
		if sel.Provider == "" {
			return fmt.Sprintf("%s.provider is required", label)
		}
		if sel.Model == "" {
			return fmt.Sprintf("%s.model is required", label)
		}
		if len(sel.Voices) == 0 {
			return fmt.Sprintf("%s.voices must not be empty", label)
		}
		for _, v := range sel.Voices {
			if v.ID == "" {
				return fmt.Sprintf("%s has a voice without an id", label)
			}
		}
	}
	if len(req.SampleTexts) == 0 {
		return "sample_texts must not be empty"
	}
	if req.NumRuns < 1 || req.NumRuns > maxRuns {
		return fmt.Sprintf("num_runs must be between 1 and %d", maxRuns)
	}
	return ""
}

// GenerateComparison handles POST /v1/comparisons/{id}/generate
func (h *Handler) GenerateComparison(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid comparison ID")
		return
	}

	comparison, err := h.db.GetComparison(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusNotFound, "Comparison not found")
		return
	}

	if comparison.Status != models.ComparisonStatusPending {
		respondError(w, http.StatusConflict, fmt.Sprintf("Comparison is already %s", comparison.Status))
		return
	}

	if err := h.queue.EnqueueGenerateComparison(r.Context(), id); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to enqueue generation")
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// GetComparison handles GET /v1/comparisons/{id}
// Returns the full snapshot including the sample ledger; used both for
// progress polling and for historical viewing.
func (h *Handler) GetComparison(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid comparison ID")
		return
	}

	comparison, err := h.db.GetComparison(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusNotFound, "Comparison not found")
		return
	}

	samples, err := h.db.GetComparisonSamples(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to get samples")
		return
	}

	// Attach signed listener URLs to completed samples
	for i := range samples {
		if samples[i].AudioPath == nil {
			continue
		}
		signedURL, err := h.storage.GetSignedURL(r.Context(), *samples[i].AudioPath, audioURLExpirySecs)
		if err != nil {
			// Public buckets still serve the object without a signature
			log.Printf("[API] Failed to sign audio URL for sample %s, falling back to public URL: %v", samples[i].ID, err)
			publicURL := h.storage.GetPublicURL(*samples[i].AudioPath)
			samples[i].AudioURL = &publicURL
			continue
		}
		samples[i].AudioURL = &signedURL
	}

	comparison.Samples = samples
	respondJSON(w, http.StatusOK, comparison)
}

// ListComparisons handles GET /v1/comparisons
func (h *Handler) ListComparisons(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.db.ListComparisons(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to list comparisons")
		return
	}

	if summaries == nil {
		summaries = []models.ComparisonSummary{}
	}

	respondJSON(w, http.StatusOK, models.ListComparisonsResponse{
		Comparisons: summaries,
		Total:       len(summaries),
	})
}

// DeleteComparison handles DELETE /v1/comparisons/{id}
func (h *Handler) DeleteComparison(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid comparison ID")
		return
	}

	if err := h.db.DeleteComparison(r.Context(), id); err != nil {
		respondError(w, http.StatusNotFound, "Comparison not found")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SubmitBlindTest handles POST /v1/comparisons/{id}/blind-test
// Accepts the reconciled preference records and computes the tally.
func (h *Handler) SubmitBlindTest(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid comparison ID")
		return
	}

	var req models.SubmitBlindTestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if len(req.Results) == 0 {
		respondError(w, http.StatusBadRequest, "results must not be empty")
		return
	}

	for _, res := range req.Results {
		if res.Preferred != models.ProviderA && res.Preferred != models.ProviderB {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid preferred value %q", res.Preferred))
			return
		}
	}

	comparison, err := h.db.GetComparison(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusNotFound, "Comparison not found")
		return
	}

	if comparison.Status != models.ComparisonStatusCompleted {
		respondError(w, http.StatusConflict, "Comparison is not completed yet")
		return
	}

	summary := tallyBlindTest(req.Results)
	if err := h.db.SaveBlindTest(r.Context(), id, req.Results, summary); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to save blind test results")
		return
	}

	respondJSON(w, http.StatusOK, summary)
}

func tallyBlindTest(results []models.BlindTestResult) models.BlindTestSummary {
	var summary models.BlindTestSummary
	for _, r := range results {
		if r.Preferred == models.ProviderA {
			summary.AWins++
		} else {
			summary.BWins++
		}
	}
	total := summary.AWins + summary.BWins
	if total > 0 {
		summary.APct = float64(summary.AWins) / float64(total) * 100
		summary.BPct = float64(summary.BWins) / float64(total) * 100
	}
	return summary
}

// GetAnalytics handles GET /v1/analytics
func (h *Handler) GetAnalytics(w http.ResponseWriter, r *http.Request) {
	rows, err := h.db.GetAnalytics(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to compute analytics")
		return
	}

	if rows == nil {
		rows = []models.AnalyticsRow{}
	}

	respondJSON(w, http.StatusOK, rows)
}

// GenerateSampleTexts handles POST /v1/sample-texts/generate
func (h *Handler) GenerateSampleTexts(w http.ResponseWriter, r *http.Request) {
	if h.openai == nil {
		respondError(w, http.StatusServiceUnavailable, "Sample text generation is not configured")
		return
	}

	var req models.GenerateSampleTextsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Topic == "" {
		respondError(w, http.StatusBadRequest, "topic is required")
		return
	}

	texts, err := h.openai.GenerateSampleTexts(r.Context(), req.Topic, req.Style, req.Count)
	if err != nil {
		respondError(w, http.StatusBadGateway, "Sample text generation failed")
		return
	}

	respondJSON(w, http.StatusOK, models.GenerateSampleTextsResponse{Samples: texts})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// Health check. Includes queue depths so a stuck worker is visible from the
// outside.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	depths := map[string]int64{}
	for _, name := range []string{queue.QueueGenerateComparison, queue.QueueSynthesizeSample, queue.QueueEvaluateComparison} {
		n, err := h.queue.GetQueueLength(r.Context(), name)
		if err != nil {
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": "queue unreachable"})
			return
		}
		depths[name] = n
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"queues": depths,
	})
}
