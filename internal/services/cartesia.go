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

const (
	// Default Cartesia API version
	cartesiaAPIVersion = "2024-06-10"

	cartesiaDefaultModel = "sonic-english"
)

// CartesiaService handles text-to-speech via the Cartesia API.
type CartesiaService struct {
	apiKey     string
	apiURL     string
	apiVersion string
	client     *http.Client
}

// Ensure CartesiaService implements SpeechService at compile time.
var _ SpeechService = (*CartesiaService)(nil)

func NewCartesiaService(apiKey, apiURL string) *CartesiaService {
	return &CartesiaService{
		apiKey:     apiKey,
		apiURL:     apiURL,
		apiVersion: cartesiaAPIVersion,
		client:     &http.Client{Timeout: 60 * time.Second},
	}
}

func (s *CartesiaService) Provider() string {
	return "cartesia"
}

// cartesiaRequest matches the Cartesia /tts/bytes API specification
type cartesiaRequest struct {
	ModelID      string                 `json:"model_id"`
	Transcript   string                 `json:"transcript"`
	Voice        cartesiaVoiceSpecifier `json:"voice"`
	Language     *string                `json:"language,omitempty"`
	OutputFormat cartesiaOutputFormat   `json:"output_format"`
}

type cartesiaVoiceSpecifier struct {
	Mode string `json:"mode"`
	ID   string `json:"id"`
}

type cartesiaOutputFormat struct {
	Container  string `json:"container"`
	Encoding   string `json:"encoding,omitempty"`
	SampleRate int    `json:"sample_rate"`
	BitRate    int    `json:"bit_rate,omitempty"`
}

// Synthesize generates audio from text using Cartesia TTS.
// No generation_config tuning — comparison samples use provider defaults so
// the blind test hears the voice, not our post-settings.
func (s *CartesiaService) Synthesize(ctx context.Context, req SpeechRequest) (*SpeechResponse, error) {
	if req.VoiceID == "" {
		return nil, fmt.Errorf("cartesia: voice id is required")
	}

	modelID := req.ModelID
	if modelID == "" {
		modelID = cartesiaDefaultModel
	}

	reqBody := cartesiaRequest{
		ModelID:    modelID,
		Transcript: req.Text,
		Voice: cartesiaVoiceSpecifier{
			Mode: "id",
			ID:   req.VoiceID,
		},
		OutputFormat: cartesiaOutputFormat{
			Container:  "mp3",
			SampleRate: 44100,
			BitRate:    192000,
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/tts/bytes", s.apiURL)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Authorization", "Bearer "+s.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Cartesia-Version", s.apiVersion)

	log.Printf("[Cartesia] Synthesizing (voiceID=%s, model=%s, textLen=%d)",
		req.VoiceID, modelID, len(req.Text))

	start := time.Now()
	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("cartesia request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("cartesia returned status %d: %s", resp.StatusCode, string(body))
	}

	audioData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio: %w", err)
	}
	latencyMs := int(time.Since(start).Milliseconds())

	if len(audioData) == 0 {
		return nil, fmt.Errorf("cartesia returned empty audio")
	}

	durationMs := estimateAudioDuration(req.Text, 1.0)

	log.Printf("[Cartesia] Synthesized %d bytes in %dms (estimated %dms audio)",
		len(audioData), latencyMs, durationMs)

	return &SpeechResponse{
		AudioData:  audioData,
		DurationMs: durationMs,
		LatencyMs:  latencyMs,
		Format:     "mp3",
	}, nil
}
