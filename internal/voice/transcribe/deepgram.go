package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

const deepgramAPIURL = "https://api.deepgram.com/v1/listen"

// DeepgramClient implements Transcriber against Deepgram's prerecorded API.
// It is the alternate backend for deployments without OpenAI access.
type DeepgramClient struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// DeepgramConfig holds configuration for the Deepgram client.
type DeepgramConfig struct {
	APIKey  string
	Model   string // e.g., "nova-3"
	BaseURL string // override for testing
}

// NewDeepgramClient creates a new Deepgram transcription client.
func NewDeepgramClient(cfg DeepgramConfig) *DeepgramClient {
	model := cfg.Model
	if model == "" {
		model = "nova-3"
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = deepgramAPIURL
	}
	return &DeepgramClient{
		apiKey:     cfg.APIKey,
		model:      model,
		baseURL:    baseURL,
		httpClient: &http.Client{},
	}
}

// deepgramResponse is the subset of the prerecorded API response we read.
type deepgramResponse struct {
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string `json:"transcript"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

// Transcribe posts the audio buffer and returns the top transcript.
func (c *DeepgramClient) Transcribe(ctx context.Context, audio []byte, language string) (string, error) {
	if len(audio) == 0 {
		return "", ErrEmptyAudio
	}

	params := url.Values{}
	params.Set("model", c.model)
	params.Set("punctuate", "true")
	if language != "" {
		params.Set("language", language)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"?"+params.Encode(), bytes.NewReader(audio))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "audio/webm")
	httpReq.Header.Set("Authorization", "Token "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("Deepgram API error: %s - %s", resp.Status, string(respBody))
	}

	var dr deepgramResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if len(dr.Results.Channels) == 0 || len(dr.Results.Channels[0].Alternatives) == 0 {
		return "", nil
	}
	return dr.Results.Channels[0].Alternatives[0].Transcript, nil
}
