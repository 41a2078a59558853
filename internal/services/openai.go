package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

type OpenAIService struct {
	client *openai.Client
}

func NewOpenAIService(apiKey string) *OpenAIService {
	return &OpenAIService{
		client: openai.NewClient(apiKey),
	}
}

// sampleTextBatch is the structured-output shape requested from the model.
type sampleTextBatch struct {
	Samples []string `json:"samples"`
}

const sampleTextSystemPrompt = `You write short sample sentences used to compare text-to-speech voices.

Rules:
- Each sample is one or two natural sentences, 8-25 words.
- Cover varied phonetic content: questions, numbers, proper nouns, pauses.
- No stage directions, no markdown, no numbering — plain sentences only.

Respond with a JSON object: {"samples": ["...", "..."]}`

// GenerateSampleTexts produces count sample sentences about a topic using
// OpenAI structured output (JSON mode). style is an optional register hint
// ("conversational", "news anchor", ...).
func (s *OpenAIService) GenerateSampleTexts(ctx context.Context, topic, style string, count int) ([]string, error) {
	if count <= 0 {
		count = 5
	}

	userPrompt := fmt.Sprintf("Generate exactly %d sample sentences about: %s", count, topic)
	if style != "" {
		userPrompt += fmt.Sprintf("\nDelivery register: %s", style)
	}

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: "gpt-5-mini",
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: sampleTextSystemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: userPrompt,
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 1.0,
	})

	if err != nil {
		return nil, fmt.Errorf("openai request failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from openai")
	}

	rawContent := resp.Choices[0].Message.Content

	var batch sampleTextBatch
	if err := json.Unmarshal([]byte(rawContent), &batch); err != nil {
		log.Printf("[OpenAI texts] parse failed: %v", err)
		return nil, fmt.Errorf("failed to parse sample texts: %w", err)
	}

	// Drop empties and trim; the model occasionally pads with blanks
	texts := make([]string, 0, len(batch.Samples))
	for _, t := range batch.Samples {
		if trimmed := strings.TrimSpace(t); trimmed != "" {
			texts = append(texts, trimmed)
		}
	}

	if len(texts) == 0 {
		return nil, fmt.Errorf("sample text generation returned no usable texts")
	}

	if len(texts) > count {
		texts = texts[:count]
	}

	log.Printf("[OpenAI texts] Generated %d sample texts for topic %q", len(texts), topic)
	return texts, nil
}
