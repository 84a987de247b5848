// Package music adapts the external GPU inference service behind the
// domain.Generator contract. The call is synchronous and reports no
// incremental progress; a single attempt is made per invocation.
package music

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"server/internal/domain"
	"server/internal/infra"
)

const defaultRequestTimeout = 5 * time.Minute

// Options configures the inference client.
type Options struct {
	APIKey         string
	BaseURL        string
	Model          string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls to the music generation API. When no API key
// is configured the client produces deterministic synthetic audio so the
// worker stays fully operational in local and CI environments.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *infra.Logger
	timeout    time.Duration
}

// NewClient validates the options and builds a client.
func NewClient(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if opts.APIKey != "" && baseURL != "" {
		if _, err := url.Parse(baseURL); err != nil {
			return nil, fmt.Errorf("music: invalid base url: %w", err)
		}
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRequestTimeout}
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	model := opts.Model
	if model == "" {
		model = "musicgen-large"
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		model:      model,
		httpClient: httpClient,
		logger:     opts.Logger,
		timeout:    timeout,
	}, nil
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return c.model
}

// Synthetic reports whether the client will fabricate audio locally
// instead of calling the external service.
func (c *Client) Synthetic() bool {
	return c.apiKey == "" || c.baseURL == ""
}

type generationPayload struct {
	Model    string `json:"model"`
	Prompt   string `json:"prompt"`
	Duration int    `json:"duration"`
	Genre    string `json:"genre,omitempty"`
}

type generationError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Generate invokes the model and returns raw WAV bytes. Any transport or
// model error is wrapped in domain.ErrProviderFailure; timeouts are not
// distinguished from other failures.
func (c *Client) Generate(ctx context.Context, req domain.GenerationRequest) ([]byte, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, ErrMissingPrompt
	}
	if c.Synthetic() {
		if c.logger != nil {
			c.logger.Warn().Str("model", c.model).Msg("music: api key missing, producing synthetic audio")
		}
		return syntheticWAV(req), nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(generationPayload{
		Model:    c.model,
		Prompt:   req.Prompt,
		Duration: req.Duration,
		Genre:    req.Genre,
	})
	if err != nil {
		return nil, fmt.Errorf("music: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/audio/generations", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("music: build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "audio/wav")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrProviderFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s", domain.ErrProviderFailure, apiErrorMessage(resp))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", domain.ErrProviderFailure, err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("%w: empty audio response", domain.ErrProviderFailure)
	}
	return audio, nil
}

func apiErrorMessage(resp *http.Response) string {
	data, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil || len(data) == 0 {
		return fmt.Sprintf("status %d", resp.StatusCode)
	}
	var apiErr generationError
	if jsonErr := json.Unmarshal(data, &apiErr); jsonErr == nil && apiErr.Error.Message != "" {
		return apiErr.Error.Message
	}
	return fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
}

var (
	_ domain.Generator = (*Client)(nil)
	// ErrMissingPrompt guards direct library misuse; handlers validate
	// requests before they reach the client.
	ErrMissingPrompt = errors.New("music: prompt is required")
)
