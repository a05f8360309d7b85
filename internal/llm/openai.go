package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Default configuration values for the OpenAI chat client.
const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o-mini"
	DefaultTimeout = 120 * time.Second
)

// OpenAIConfig holds configuration for the OpenAI chat client.
type OpenAIConfig struct {
	// APIKey is the OpenAI API key (required).
	APIKey string
	// BaseURL is the API base URL (default: https://api.openai.com/v1).
	BaseURL string
	// Model is the chat model (default: gpt-4o-mini).
	Model string
	// Temperature for sampling. Grounded answering uses 0 for determinism.
	Temperature float64
	// Timeout is the request timeout (default: 120s).
	Timeout time.Duration
}

// OpenAIClient completes prompts over the OpenAI /chat/completions endpoint.
// Calls are synchronous and single-shot: a failure propagates to the caller
// with its cause, without retry.
type OpenAIClient struct {
	client      *http.Client
	baseURL     string
	apiKey      string
	model       string
	temperature float64
}

type chatCompletionRequest struct {
	Model       string              `json:"model"`
	Messages    []chatCompletionMsg `json:"messages"`
	Temperature float64             `json:"temperature"`
}

type chatCompletionMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// NewOpenAIClient creates an OpenAI chat client.
func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &OpenAIClient{
		client:      &http.Client{Timeout: cfg.Timeout},
		baseURL:     cfg.BaseURL,
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: cfg.Temperature,
	}, nil
}

// Complete sends prompt as a single user message and returns the model's text reply.
func (c *OpenAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	reqBody := chatCompletionRequest{
		Model:       c.model,
		Messages:    []chatCompletionMsg{{Role: "user", Content: prompt}},
		Temperature: c.temperature,
	}
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	var chatResp chatCompletionResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if chatResp.Error != nil {
		return "", fmt.Errorf("openai error: %s", chatResp.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("openai error (status %d): %s", resp.StatusCode, string(body))
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("openai: no response choices returned")
	}
	return chatResp.Choices[0].Message.Content, nil
}

// ModelName returns the name of the chat model in use.
func (c *OpenAIClient) ModelName() string {
	return c.model
}

// Close releases resources. The HTTP client needs no explicit cleanup.
func (c *OpenAIClient) Close() error {
	return nil
}
