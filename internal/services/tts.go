package services

import (
	"context"
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// SpeechService — common interface for text-to-speech providers.
// The worker resolves a provider by id from the Registry and never knows
// which vendor is behind it.
// ---------------------------------------------------------------------------

// SpeechRequest carries everything a provider needs for one synthesis call.
type SpeechRequest struct {
	Text    string
	ModelID string
	VoiceID string
}

// SpeechResponse is the common response type from any TTS provider.
type SpeechResponse struct {
	AudioData  []byte
	DurationMs int
	LatencyMs  int // wall-clock synthesis latency measured by the adapter
	Format     string
}

// SpeechService is the interface that any TTS provider must implement.
type SpeechService interface {
	// Provider returns the provider id this adapter serves (e.g. "elevenlabs").
	Provider() string

	// Synthesize converts text to audio with the requested model and voice.
	Synthesize(ctx context.Context, req SpeechRequest) (*SpeechResponse, error)
}

// Registry resolves provider ids to their adapters.
type Registry struct {
	providers map[string]SpeechService
}

func NewRegistry(services ...SpeechService) *Registry {
	r := &Registry{providers: make(map[string]SpeechService)}
	for _, svc := range services {
		r.providers[svc.Provider()] = svc
	}
	return r
}

// Get returns the adapter for a provider id, or an error naming the
// providers that are configured.
func (r *Registry) Get(provider string) (SpeechService, error) {
	svc, ok := r.providers[provider]
	if !ok {
		return nil, fmt.Errorf("unknown TTS provider %q (configured: %s)", provider, strings.Join(r.Providers(), ", "))
	}
	return svc, nil
}

// Providers returns the configured provider ids.
func (r *Registry) Providers() []string {
	ids := make([]string, 0, len(r.providers))
	for id := range r.providers {
		ids = append(ids, id)
	}
	return ids
}

// estimateAudioDuration approximates speech length for providers that do not
// report it: ~150 words per minute at normal speed.
func estimateAudioDuration(text string, speed float64) int {
	words := len(strings.Fields(text))
	if words == 0 {
		return 0
	}
	if speed <= 0 {
		speed = 1.0
	}
	minutes := float64(words) / (150.0 * speed)
	return int(minutes * 60 * 1000)
}
