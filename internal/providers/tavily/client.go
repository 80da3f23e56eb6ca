package tavily

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

const serviceName = "tavily"

// Client calls the Tavily search API to research a topic. The answer plus
// result snippets become the research stage's summary, key points, and
// sources.
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
			Timeout: 30 * time.Second,
		},
		log: log.With("component", "tavily"),
	}
}

type searchRequest struct {
	APIKey        string `json:"api_key"`
	Query         string `json:"query"`
	SearchDepth   string `json:"search_depth"`
	IncludeAnswer bool   `json:"include_answer"`
	MaxResults    int    `json:"max_results"`
}

type searchResponse struct {
	Answer  string `json:"answer"`
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

// Research runs a search-and-summarize query for the topic.
func (c *Client) Research(ctx context.Context, topic string) (*models.ResearchContent, error) {
	reqBody := searchRequest{
		APIKey:        c.apiKey,
		Query:         fmt.Sprintf("%s story history facts", topic),
		SearchDepth:   "advanced",
		IncludeAnswer: true,
		MaxResults:    5,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/search", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, providers.NewAPIError(serviceName, resp.StatusCode, body)
	}

	var result searchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	c.log.Debug("search completed", "topic", topic, "results", len(result.Results))
	return shapeResearch(topic, result), nil
}

// shapeResearch reduces raw search output to the research content schema:
// the answer is the summary, result snippets become key points, result URLs
// become sources.
func shapeResearch(topic string, result searchResponse) *models.ResearchContent {
	content := &models.ResearchContent{
		Summary: strings.TrimSpace(result.Answer),
	}
	if content.Summary == "" {
		content.Summary = fmt.Sprintf("Research findings for %s.", topic)
	}

	for _, r := range result.Results {
		point := strings.TrimSpace(r.Content)
		if point == "" {
			continue
		}
		if idx := strings.IndexAny(point, ".!?"); idx > 20 {
			point = point[:idx+1]
		}
		content.KeyPoints = append(content.KeyPoints, point)
		if r.URL != "" {
			content.Sources = append(content.Sources, r.URL)
		}
	}

	return content
}
