package services

import (
	"context"
	"fmt"
	"hash/fnv"
)

// MockSpeechService is a deterministic local provider for development and
// integration testing without vendor API keys. The audio bytes are derived
// from the request so identical requests produce identical artifacts.
type MockSpeechService struct{}

var _ SpeechService = (*MockSpeechService)(nil)

func NewMockSpeechService() *MockSpeechService {
	return &MockSpeechService{}
}

func (s *MockSpeechService) Provider() string {
	return "mock"
}

func (s *MockSpeechService) Synthesize(_ context.Context, req SpeechRequest) (*SpeechResponse, error) {
	if req.VoiceID == "" {
		return nil, fmt.Errorf("mock: voice id is required")
	}

	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%s|%s", req.Text, req.ModelID, req.VoiceID)
	seed := h.Sum64()

	// Pseudo-audio payload, stable per request
	data := make([]byte, 2048)
	for i := range data {
		seed = seed*6364136223846793005 + 1442695040888963407
		data[i] = byte(seed >> 56)
	}

	return &SpeechResponse{
		AudioData:  data,
		DurationMs: estimateAudioDuration(req.Text, 1.0),
		LatencyMs:  1,
		Format:     "mp3",
	}, nil
}
