package render

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
	"animatevdo-backend/internal/providers"
)

const serviceName = "render"

// Client talks to the media-assembly service that stitches scene images and
// narration audio into the final video. Jobs are submitted and then polled;
// the service does the actual encoding.
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
		log: log.With("component", "render"),
	}
}

// JobRequest describes one render job: per-scene visual and audio tracks in
// scene order, plus output settings.
type JobRequest struct {
	Title      string     `json:"title"`
	Scenes     []JobScene `json:"scenes"`
	Resolution string     `json:"resolution"`
	FPS        int        `json:"fps"`
	Transition string     `json:"transition"`
}

type JobScene struct {
	SceneNumber     int     `json:"scene_number"`
	ImageURL        string  `json:"image_url"`
	AudioURL        string  `json:"audio_url"`
	DurationSeconds float64 `json:"duration_seconds"`
}

type submitResponse struct {
	JobID string `json:"job_id"`
}

// JobStatus is a poll snapshot. Status is one of queued, processing,
// completed, failed.
type JobStatus struct {
	JobID           string  `json:"job_id"`
	Status          string  `json:"status"`
	VideoURL        string  `json:"video_url"`
	DurationSeconds float64 `json:"duration_seconds"`
	Error           string  `json:"error"`
}

func (c *Client) SubmitJob(ctx context.Context, job JobRequest) (string, error) {
	jsonData, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/jobs", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("submit request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return "", providers.NewAPIError(serviceName, resp.StatusCode, body)
	}

	var result submitResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if result.JobID == "" {
		return "", fmt.Errorf("submit response contained no job id")
	}

	c.log.Info("render job submitted", "job_id", result.JobID, "scenes", len(job.Scenes))
	return result.JobID, nil
}

func (c *Client) GetJobStatus(ctx context.Context, jobID string) (*JobStatus, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/jobs/"+jobID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("status request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, providers.NewAPIError(serviceName, resp.StatusCode, body)
	}

	var status JobStatus
	if err := json.Unmarshal(body, &status); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &status, nil
}

// WaitForJob polls until the job reaches a terminal state or ctx expires. A
// failed job surfaces its service-side error text, which the classifier
// reads for the ffmpeg marker.
func (c *Client) WaitForJob(ctx context.Context, jobID string, pollInterval time.Duration) (*JobStatus, error) {
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		status, err := c.GetJobStatus(ctx, jobID)
		if err != nil {
			return nil, err
		}

		switch status.Status {
		case "completed":
			c.log.Info("render job completed", "job_id", jobID, "video_url", status.VideoURL)
			return status, nil
		case "failed":
			if status.Error == "" {
				status.Error = "render job failed"
			}
			return nil, fmt.Errorf("render job %s failed: %s", jobID, status.Error)
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
