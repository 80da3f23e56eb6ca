package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"animatevdo-backend/internal/logger"
	"animatevdo-backend/internal/providers"
)

const serviceName = "openai"

// Client covers the two OpenAI capabilities the pipeline uses: chat
// completions for script generation and image generations for character and
// scene art.
type Client struct {
	baseURL     string
	apiKey      string
	scriptModel string
	imageModel  string
	httpClient  *http.Client
	log         *logger.Logger
}

func NewClient(baseURL, apiKey, scriptModel, imageModel string, log *logger.Logger) *Client {
	return &Client{
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		apiKey:      apiKey,
		scriptModel: scriptModel,
		imageModel:  imageModel,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		log: log.With("component", "openai"),
	}
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	MaxTokens      int           `json:"max_tokens"`
	ResponseFormat *respFormat   `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type respFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// ChatCompletion sends a system+user prompt pair and returns the raw model
// output plus token usage. JSON mode is requested so script output parses
// cleanly most of the time.
func (c *Client) ChatCompletion(ctx context.Context, systemPrompt, userPrompt string) (string, *providers.Usage, error) {
	reqBody := chatRequest{
		Model: c.scriptModel,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature:    0.7,
		MaxTokens:      4096,
		ResponseFormat: &respFormat{Type: "json_object"},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("chat request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", nil, providers.NewAPIError(serviceName, resp.StatusCode, body)
	}

	var result chatResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", nil, fmt.Errorf("chat response contained no choices")
	}

	usage := &providers.Usage{
		Model:        c.scriptModel,
		InputTokens:  result.Usage.PromptTokens,
		OutputTokens: result.Usage.CompletionTokens,
	}

	if result.Choices[0].FinishReason == "content_filter" {
		return "", usage, fmt.Errorf("completion blocked by content filter")
	}

	c.log.Debug("chat completion finished",
		"model", c.scriptModel,
		"prompt_tokens", result.Usage.PromptTokens,
		"completion_tokens", result.Usage.CompletionTokens)
	return result.Choices[0].Message.Content, usage, nil
}

type imageRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	Size           string `json:"size"`
	ResponseFormat string `json:"response_format"`
}

type imageResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
	} `json:"data"`
}

// GenerateImage renders one image for the prompt and returns the PNG bytes.
func (c *Client) GenerateImage(ctx context.Context, prompt string) ([]byte, *providers.Usage, error) {
	reqBody := imageRequest{
		Model:          c.imageModel,
		Prompt:         prompt,
		N:              1,
		Size:           "1024x1024",
		ResponseFormat: "b64_json",
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/images/generations", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("image request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response body: %w", err)
	}

	usage := &providers.Usage{Model: c.imageModel}

	if resp.StatusCode != http.StatusOK {
		return nil, usage, providers.NewAPIError(serviceName, resp.StatusCode, body)
	}

	var result imageResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, usage, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(result.Data) == 0 {
		return nil, usage, fmt.Errorf("image response contained no data")
	}

	imageData, err := base64.StdEncoding.DecodeString(result.Data[0].B64JSON)
	if err != nil {
		return nil, usage, fmt.Errorf("failed to decode image data: %w", err)
	}

	c.log.Debug("image generated", "model", c.imageModel, "bytes", len(imageData))
	return imageData, usage, nil
}
