// Package enhance drives the remote audio-enhancement service: media
// registration, timeline mix jobs, enhancement jobs, polling, download.
package enhance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"podpress/pkg/logger"
	"podpress/pkg/types"
)

// GainPoint is one control point of a piecewise-linear gain envelope.
// Offsets are relative to the segment start and must strictly increase.
type GainPoint struct {
	OffsetMs int     `json:"offset_ms"`
	GainDb   float64 `json:"gain_db"`
}

// Segment places one registered track on the output timeline.
type Segment struct {
	Source        string      `json:"source"`
	StartMs       int         `json:"start_ms"`
	DurationMs    int         `json:"duration_ms"`
	DestinationMs int         `json:"destination_ms"`
	Envelope      []GainPoint `json:"envelope,omitempty"`
}

// JobStatus is the service's view of one submitted job.
type JobStatus string

const (
	JobPending JobStatus = "Pending"
	JobRunning JobStatus = "Running"
	JobSuccess JobStatus = "Success"
	JobFailed  JobStatus = "Failed"
)

// Client is a thin wrapper over the enhancement service's HTTP API.
// All methods take the bearer token from AcquireToken; the client keeps
// no session state of its own.
type Client struct {
	endpoint     string
	apiKey       string
	apiSecret    string
	pollInterval time.Duration
	pollAttempts int
	httpClient   *http.Client
	log          *logger.Logger
}

// NewClient creates an enhancement client from config.
func NewClient(cfg types.EnhancementConfig, log *logger.Logger) *Client {
	pollInterval := time.Duration(cfg.PollInterval) * time.Second
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	pollAttempts := cfg.PollAttempts
	if pollAttempts <= 0 {
		pollAttempts = 60
	}
	timeout := time.Duration(cfg.HTTPTimeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		endpoint:     strings.TrimSuffix(cfg.Endpoint, "/"),
		apiKey:       cfg.APIKey,
		apiSecret:    cfg.APISecret,
		pollInterval: pollInterval,
		pollAttempts: pollAttempts,
		httpClient:   &http.Client{Timeout: timeout},
		log:          log,
	}
}

// AcquireToken exchanges the API key pair for a short-lived bearer token.
func (c *Client) AcquireToken(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", c.endpoint+"/v1/auth/token", nil)
	if err != nil {
		return "", &RemoteAuthError{Err: err}
	}
	req.SetBasicAuth(c.apiKey, c.apiSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &RemoteAuthError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &RemoteAuthError{StatusCode: resp.StatusCode}
	}

	var body struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", &RemoteAuthError{Err: fmt.Errorf("decode token response: %w", err)}
	}
	if body.AccessToken == "" {
		return "", &RemoteAuthError{Err: fmt.Errorf("empty access token")}
	}
	return body.AccessToken, nil
}

// CreateInput registers a source URL with the service and returns the
// media reference to use in job submissions. The service pulls the
// audio from the URL itself.
func (c *Client) CreateInput(ctx context.Context, token, sourceURL, label string) (string, error) {
	payload := map[string]string{"source_url": sourceURL, "label": label}
	var body struct {
		MediaURL string `json:"media_url"`
	}
	if err := c.postJSON(ctx, token, "/v1/media/inputs", "create input", payload, &body); err != nil {
		return "", err
	}
	if body.MediaURL == "" {
		return "", &RemoteJobError{Stage: "create input", Message: "empty media url"}
	}
	return body.MediaURL, nil
}

// CreateOutput registers an output slot and returns its media reference.
func (c *Client) CreateOutput(ctx context.Context, token, label string) (string, error) {
	payload := map[string]string{"label": label}
	var body struct {
		MediaURL string `json:"media_url"`
	}
	if err := c.postJSON(ctx, token, "/v1/media/outputs", "create output", payload, &body); err != nil {
		return "", err
	}
	if body.MediaURL == "" {
		return "", &RemoteJobError{Stage: "create output", Message: "empty media url"}
	}
	return body.MediaURL, nil
}

// AnalyzeDuration asks the service for a registered input's duration.
func (c *Client) AnalyzeDuration(ctx context.Context, token, mediaURL string) (int, error) {
	payload := map[string]string{"media_url": mediaURL}
	var body struct {
		DurationMs int `json:"duration_ms"`
	}
	if err := c.postJSON(ctx, token, "/v1/media/analyze", "analyze", payload, &body); err != nil {
		return 0, err
	}
	if body.DurationMs <= 0 {
		return 0, &RemoteJobError{Stage: "analyze", Message: "service reported non-positive duration"}
	}
	return body.DurationMs, nil
}

// SubmitMixJob submits a timeline mix rendering to the given output and
// returns the job id.
func (c *Client) SubmitMixJob(ctx context.Context, token string, segments []Segment, outputURL string) (string, error) {
	payload := map[string]any{
		"segments": segments,
		"output":   outputURL,
	}
	var body struct {
		JobID string `json:"job_id"`
	}
	if err := c.postJSON(ctx, token, "/v1/mix", "mix submission", payload, &body); err != nil {
		return "", err
	}
	if body.JobID == "" {
		return "", &RemoteJobError{Stage: "mix submission", Message: "empty job id"}
	}
	return body.JobID, nil
}

// SubmitEnhanceJob submits a single-track speech enhancement job for
// the given input and returns the job id.
func (c *Client) SubmitEnhanceJob(ctx context.Context, token, inputURL, outputURL string) (string, error) {
	payload := map[string]any{
		"input":  inputURL,
		"output": outputURL,
		"audio": map[string]any{
			"speech": map[string]bool{"enhance": true},
			"noise":  map[string]bool{"reduce": true},
		},
		"content": map[string]string{"type": "podcast"},
	}
	var body struct {
		JobID string `json:"job_id"`
	}
	if err := c.postJSON(ctx, token, "/v1/enhance", "enhance submission", payload, &body); err != nil {
		return "", err
	}
	if body.JobID == "" {
		return "", &RemoteJobError{Stage: "enhance submission", Message: "empty job id"}
	}
	return body.JobID, nil
}

// PollJob waits for the job to reach a terminal status, polling at the
// configured interval. It stops early when the context is cancelled.
func (c *Client) PollJob(ctx context.Context, token, jobID string) error {
	for attempt := 1; attempt <= c.pollAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return fmt.Errorf("polling job %s: %w", jobID, ctx.Err())
		case <-time.After(c.pollInterval):
		}

		status, message, err := c.jobStatus(ctx, token, jobID)
		if err != nil {
			return err
		}

		switch status {
		case JobSuccess:
			return nil
		case JobFailed:
			return &RemoteJobError{Stage: "job execution", Message: message}
		default:
			c.log.Debug("enhancement job still running",
				zap.String("job_id", jobID),
				zap.Int("attempt", attempt),
				zap.String("status", string(status)))
		}
	}
	return &RemoteTimeoutError{JobID: jobID, Attempts: c.pollAttempts}
}

func (c *Client) jobStatus(ctx context.Context, token, jobID string) (JobStatus, string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.endpoint+"/v1/jobs/"+url.PathEscape(jobID), nil)
	if err != nil {
		return "", "", &RemoteJobError{Stage: "job status", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", "", &RemoteJobError{Stage: "job status", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", &RemoteJobError{Stage: "job status", StatusCode: resp.StatusCode}
	}

	var body struct {
		Status JobStatus `json:"status"`
		Error  string    `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", "", &RemoteJobError{Stage: "job status", Err: fmt.Errorf("decode response: %w", err)}
	}
	return body.Status, body.Error, nil
}

// Download fetches the rendered bytes of a completed output.
func (c *Client) Download(ctx context.Context, token, mediaURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.endpoint+"/v1/media/download", nil)
	if err != nil {
		return nil, &RemoteJobError{Stage: "download", Err: err}
	}
	q := req.URL.Query()
	q.Set("media_url", mediaURL)
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &RemoteJobError{Stage: "download", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &RemoteJobError{Stage: "download", StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RemoteJobError{Stage: "download", Err: err}
	}
	return data, nil
}

func (c *Client) postJSON(ctx context.Context, token, path, stage string, payload any, out any) error {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return &RemoteJobError{Stage: stage, Err: fmt.Errorf("marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.endpoint+path, bytes.NewReader(reqBody))
	if err != nil {
		return &RemoteJobError{Stage: stage, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &RemoteJobError{Stage: stage, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &RemoteJobError{Stage: stage, StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &RemoteJobError{Stage: stage, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
