// Package mock implements every provider interface with canned fixtures so
// the pipeline can run end to end without API keys or spend. Enabled by the
// USE_MOCK_PROVIDERS flag; intended for local development and demos.
package mock

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"animatevdo-backend/internal/models"
	"animatevdo-backend/internal/providers"
	"animatevdo-backend/internal/providers/render"
)

// onePixelPNG is a valid 1x1 transparent PNG, enough for storage uploads to
// carry real image bytes.
const onePixelPNG = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg=="

// Provider satisfies all five stage provider interfaces.
type Provider struct{}

func New() *Provider {
	return &Provider{}
}

func (p *Provider) Research(ctx context.Context, topic string) (*models.ResearchContent, error) {
	return &models.ResearchContent{
		Summary: fmt.Sprintf("%s has a rich history full of notable moments and figures.", topic),
		KeyPoints: []string{
			fmt.Sprintf("The origins of %s trace back further than most people expect.", topic),
			fmt.Sprintf("Several pivotal events shaped how %s is understood today.", topic),
			fmt.Sprintf("Experts continue to debate the future of %s.", topic),
		},
		Sources: []string{
			"https://en.wikipedia.org/wiki/Example",
			"https://example.com/research",
		},
	}, nil
}

func (p *Provider) ChatCompletion(ctx context.Context, systemPrompt, userPrompt string) (string, *providers.Usage, error) {
	script := `{
		"title": "A Mock Story",
		"scenes": [
			{"scene_number": 1, "narration": "Our story begins in a place not so far away, where everything was about to change.", "visual_description": "A wide establishing shot of a quiet town at dawn"},
			{"scene_number": 2, "narration": "Nobody expected what happened next, least of all the people at the center of it.", "visual_description": "A close-up of a surprised face lit by warm light"},
			{"scene_number": 3, "narration": "And that is how the story found its ending, remembered long after.", "visual_description": "A slow fade over the town at sunset"}
		]
	}`
	usage := &providers.Usage{Model: "mock", InputTokens: 250, OutputTokens: 180}
	return script, usage, nil
}

func (p *Provider) GenerateImage(ctx context.Context, prompt string) ([]byte, *providers.Usage, error) {
	data, err := base64.StdEncoding.DecodeString(onePixelPNG)
	if err != nil {
		return nil, nil, err
	}
	return data, &providers.Usage{Model: "mock"}, nil
}

func (p *Provider) Synthesize(ctx context.Context, text, voiceID string, settings models.VoiceSettings) ([]byte, *providers.Usage, error) {
	// Not a playable MP3, but enough bytes to exercise storage uploads.
	data := []byte("ID3mock-audio: " + text)
	return data, &providers.Usage{Model: "mock", InputTokens: len(text)}, nil
}

func (p *Provider) SubmitJob(ctx context.Context, job render.JobRequest) (string, error) {
	return fmt.Sprintf("mock-job-%d", time.Now().UnixNano()), nil
}

func (p *Provider) WaitForJob(ctx context.Context, jobID string, pollInterval time.Duration) (*render.JobStatus, error) {
	return &render.JobStatus{
		JobID:           jobID,
		Status:          "completed",
		VideoURL:        "https://cdn.example.com/videos/" + jobID + ".mp4",
		DurationSeconds: 30,
	}, nil
}
