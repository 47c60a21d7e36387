package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// modelVersion pins the image-to-image interior model.
const modelVersion = "854e8727697a057c525cdb45ab037f64ecca770a1769cc52287c2e56472a247b"

// ErrGenerationFailed means the job API reported a terminal failure.
var ErrGenerationFailed = errors.New("image generation failed")

// ErrGenerationTimeout means the polling budget ran out before the job
// reached a terminal state. Distinct from a provider-reported failure.
var ErrGenerationTimeout = errors.New("image generation timed out")

// JobInput is one generation job: the source photo and the constructed prompt.
type JobInput struct {
	ImageURL string
	Prompt   string
}

// JobClient submits a generation job and waits for its result.
type JobClient interface {
	Generate(ctx context.Context, in JobInput) ([]string, error)
}

// ReplicateClient drives the external prediction API: submit, then poll at a
// fixed interval until terminal state or the attempt budget is spent.
type ReplicateClient struct {
	Token        string
	Host         string
	PollInterval time.Duration
	MaxAttempts  int
	HTTPClient   *http.Client
}

func NewReplicateClient(token, host string, pollInterval time.Duration, maxAttempts int) *ReplicateClient {
	return &ReplicateClient{
		Token:        token,
		Host:         host,
		PollInterval: pollInterval,
		MaxAttempts:  maxAttempts,
		HTTPClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

var _ JobClient = (*ReplicateClient)(nil)

type predictionRequest struct {
	Version string          `json:"version"`
	Input   predictionInput `json:"input"`
}

type predictionInput struct {
	Image   string `json:"image"`
	Prompt  string `json:"prompt"`
	APrompt string `json:"a_prompt"`
	NPrompt string `json:"n_prompt"`
}

type prediction struct {
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	URLs   struct {
		Get string `json:"get"`
	} `json:"urls"`
	Error any `json:"error"`
}

func (c *ReplicateClient) Generate(ctx context.Context, in JobInput) ([]string, error) {
	pollURL, err := c.submit(ctx, in)
	if err != nil {
		return nil, err
	}
	return c.wait(ctx, pollURL)
}

func (c *ReplicateClient) submit(ctx context.Context, in JobInput) (string, error) {
	body, err := json.Marshal(predictionRequest{
		Version: modelVersion,
		Input: predictionInput{
			Image:   in.ImageURL,
			Prompt:  in.Prompt,
			APrompt: assistPrompt,
			NPrompt: negativePrompt,
		},
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Host+"/v1/predictions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Token "+c.Token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("submit prediction: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("prediction API returned %d: %s", resp.StatusCode, b)
	}
	var p prediction
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return "", err
	}
	if p.URLs.Get == "" {
		return "", errors.New("prediction response missing polling URL")
	}
	return p.URLs.Get, nil
}

func (c *ReplicateClient) wait(ctx context.Context, pollURL string) ([]string, error) {
	ticker := time.NewTicker(c.PollInterval)
	defer ticker.Stop()

	for attempt := 0; attempt < c.MaxAttempts; attempt++ {
		p, err := c.poll(ctx, pollURL)
		if err != nil {
			return nil, err
		}
		switch p.Status {
		case "succeeded":
			var out []string
			if err := json.Unmarshal(p.Output, &out); err != nil {
				// Some model versions return a single URL string.
				var single string
				if err2 := json.Unmarshal(p.Output, &single); err2 != nil {
					return nil, fmt.Errorf("decode prediction output: %w", err)
				}
				out = []string{single}
			}
			return out, nil
		case "failed", "canceled":
			return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, p.Error)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
	return nil, ErrGenerationTimeout
}

func (c *ReplicateClient) poll(ctx context.Context, pollURL string) (*prediction, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pollURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Token "+c.Token)
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("poll prediction: %w", err)
	}
	defer resp.Body.Close()
	var p prediction
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, err
	}
	return &p, nil
}
