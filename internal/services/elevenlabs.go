package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// ---------------------------------------------------------------------------
// ElevenLabs Text-to-Speech adapter
// Uses the ElevenLabs REST API. The comparison spec picks the model per
// request, so unlike a single-narrator pipeline there is no service-level
// default voice — every sample names its own voice id.
// ---------------------------------------------------------------------------

const (
	elevenLabsBaseURL      = "https://api.elevenlabs.io"
	elevenLabsDefaultModel = "eleven_flash_v2_5"
	elevenLabsOutputFormat = "mp3_44100_128"
)

// ElevenLabsService handles text-to-speech via the ElevenLabs API.
type ElevenLabsService struct {
	apiKey string
	client *http.Client
}

// Ensure ElevenLabsService implements SpeechService at compile time.
var _ SpeechService = (*ElevenLabsService)(nil)

func NewElevenLabsService(apiKey string) *ElevenLabsService {
	return &ElevenLabsService{
		apiKey: apiKey,
		client: &http.Client{Timeout: 90 * time.Second},
	}
}

func (s *ElevenLabsService) Provider() string {
	return "elevenlabs"
}

type elevenLabsRequest struct {
	Text          string                   `json:"text"`
	ModelID       string                   `json:"model_id"`
	VoiceSettings *elevenLabsVoiceSettings `json:"voice_settings,omitempty"`
}

type elevenLabsVoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// Synthesize converts text to speech using ElevenLabs.
// Neutral voice settings — comparison samples should reflect the voice as
// configured, not a tuned delivery.
func (s *ElevenLabsService) Synthesize(ctx context.Context, req SpeechRequest) (*SpeechResponse, error) {
	if req.VoiceID == "" {
		return nil, fmt.Errorf("elevenlabs: voice id is required")
	}

	modelID := req.ModelID
	if modelID == "" {
		modelID = elevenLabsDefaultModel
	}

	reqBody := elevenLabsRequest{
		Text:    req.Text,
		ModelID: modelID,
		VoiceSettings: &elevenLabsVoiceSettings{
			Stability:       0.50,
			SimilarityBoost: 0.75,
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ElevenLabs request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/text-to-speech/%s?output_format=%s",
		elevenLabsBaseURL, req.VoiceID, elevenLabsOutputFormat)

	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create ElevenLabs request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("xi-api-key", s.apiKey)

	log.Printf("[ElevenLabs] Synthesizing (voiceID=%s, model=%s, textLen=%d)",
		req.VoiceID, modelID, len(req.Text))

	start := time.Now()
	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ElevenLabs request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ElevenLabs returned status %d: %s", resp.StatusCode, string(body))
	}

	// The response body IS the audio file
	audioData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read ElevenLabs audio response: %w", err)
	}
	latencyMs := int(time.Since(start).Milliseconds())

	if len(audioData) == 0 {
		return nil, fmt.Errorf("ElevenLabs returned empty audio")
	}

	// This endpoint does not report duration; estimate from the text
	durationMs := estimateAudioDuration(req.Text, 1.0)

	log.Printf("[ElevenLabs] Synthesized %d bytes in %dms (estimated %dms audio)",
		len(audioData), latencyMs, durationMs)

	return &SpeechResponse{
		AudioData:  audioData,
		DurationMs: durationMs,
		LatencyMs:  latencyMs,
		Format:     "mp3",
	}, nil
}
