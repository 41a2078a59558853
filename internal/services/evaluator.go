package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"google.golang.org/genai"
)

// ---------------------------------------------------------------------------
// Evaluator — objective quality estimation on synthesized audio.
// Scores each sample with a multimodal Gemini model: MOS, valence, arousal
// and prosody on fixed scales, returned as JSON.
// ---------------------------------------------------------------------------

const defaultEvaluatorModel = "gemini-2.5-flash"

// SampleScores are the model-estimated objective metrics for one audio sample.
type SampleScores struct {
	MOS     float64 `json:"mos"`     // 1.0–5.0 overall quality
	Valence float64 `json:"valence"` // 0.0–1.0 negative→positive affect
	Arousal float64 `json:"arousal"` // 0.0–1.0 calm→energetic
	Prosody float64 `json:"prosody"` // 1.0–5.0 naturalness of rhythm/intonation
}

// EvaluatorService scores synthesized audio via the Google Gen AI SDK.
type EvaluatorService struct {
	apiKey string
	model  string
}

func NewEvaluatorService(apiKey, model string) *EvaluatorService {
	if model == "" {
		model = defaultEvaluatorModel
	}
	return &EvaluatorService{
		apiKey: apiKey,
		model:  model,
	}
}

const evaluatorPrompt = `You are rating a synthesized text-to-speech audio sample.

The intended transcript is:
%q

Rate the audio and respond with ONLY a JSON object:
{
  "mos": <1.0-5.0, overall perceived quality (Mean Opinion Score)>,
  "valence": <0.0-1.0, emotional positivity of the delivery>,
  "arousal": <0.0-1.0, energy level of the delivery>,
  "prosody": <1.0-5.0, naturalness of rhythm, stress and intonation>
}

Judge pronunciation accuracy against the transcript, artifacts/glitches,
and how human the delivery sounds. No prose, JSON only.`

// ScoreSample estimates objective metrics for one audio artifact.
func (s *EvaluatorService) ScoreSample(ctx context.Context, audioData []byte, mimeType, transcript string) (*SampleScores, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  s.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	parts := []*genai.Part{
		genai.NewPartFromBytes(audioData, mimeType),
		genai.NewPartFromText(fmt.Sprintf(evaluatorPrompt, transcript)),
	}
	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}

	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	}

	log.Printf("[Evaluator] Scoring sample (model=%s, audio=%d bytes, textLen=%d)",
		s.model, len(audioData), len(transcript))

	resp, err := client.Models.GenerateContent(ctx, s.model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("evaluation request failed: %w", err)
	}

	raw := strings.TrimSpace(resp.Text())
	if raw == "" {
		return nil, fmt.Errorf("evaluator returned empty response")
	}

	var scores SampleScores
	if err := json.Unmarshal([]byte(raw), &scores); err != nil {
		log.Printf("[Evaluator] parse failed, raw response: %s", truncate(raw, 500))
		return nil, fmt.Errorf("failed to parse evaluation scores: %w", err)
	}

	if scores.MOS < 1.0 || scores.MOS > 5.0 {
		return nil, fmt.Errorf("evaluator returned out-of-range MOS %.2f", scores.MOS)
	}

	log.Printf("[Evaluator] Scored sample: mos=%.2f valence=%.2f arousal=%.2f prosody=%.2f",
		scores.MOS, scores.Valence, scores.Arousal, scores.Prosody)

	return &scores, nil
}

// truncate limits a string to maxLen characters for log output
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
