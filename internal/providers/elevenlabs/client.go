package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"animatevdo-backend/internal/logger"
	"animatevdo-backend/internal/models"
	"animatevdo-backend/internal/providers"
)

const serviceName = "elevenlabs"

// Client synthesizes narration audio, one request per scene.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        *logger.Logger
}

func NewClient(baseURL, apiKey string, log *logger.Logger) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		log: log.With("component", "elevenlabs"),
	}
}

type ttsRequest struct {
	Text          string      `json:"text"`
	ModelID       string      `json:"model_id"`
	VoiceSettings ttsSettings `json:"voice_settings"`
}

type ttsSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// Synthesize converts text to speech with the given voice and returns MP3
// bytes. Usage reports characters as input tokens, matching the provider's
// billing unit.
func (c *Client) Synthesize(ctx context.Context, text, voiceID string, settings models.VoiceSettings) ([]byte, *providers.Usage, error) {
	reqBody := ttsRequest{
		Text:    text,
		ModelID: "eleven_multilingual_v2",
		VoiceSettings: ttsSettings{
			Stability:       settings.Stability,
			SimilarityBoost: settings.SimilarityBoost,
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/text-to-speech/%s", c.baseURL, voiceID)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("xi-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("tts request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response body: %w", err)
	}

	usage := &providers.Usage{
		Model:       "eleven_multilingual_v2",
		InputTokens: len(text),
	}

	if resp.StatusCode != http.StatusOK {
		return nil, usage, providers.NewAPIError(serviceName, resp.StatusCode, body)
	}

	c.log.Debug("narration synthesized", "voice_id", voiceID, "chars", len(text), "bytes", len(body))
	return body, usage, nil
}
