package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com"
	defaultOpenAIModel   = "whisper-1"
)

// OpenAI transcribes audio via an OpenAI-compatible transcription endpoint.
type OpenAI struct {
	APIKey  string
	Model   string
	BaseURL string
	Client  *http.Client
}

func NewOpenAI(apiKey, model string) *OpenAI {
	return &OpenAI{
		APIKey: apiKey,
		Model:  model,
		Client: &http.Client{Timeout: 120 * time.Second},
	}
}

// Transcribe uploads the audio file as a multipart request and returns the
// transcribed text.
func (o *OpenAI) Transcribe(ctx context.Context, audioPath, prompt string) (string, error) {
	if o.APIKey == "" {
		return "", fmt.Errorf("openai API key not set: set SENATEWATCH_OPENAI_API_KEY or add openai_api_key to config")
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if err := writer.WriteField("model", o.model()); err != nil {
		return "", err
	}
	if prompt != "" {
		if err := writer.WriteField("prompt", prompt); err != nil {
			return "", err
		}
	}

	file, err := os.Open(audioPath)
	if err != nil {
		return "", fmt.Errorf("opening audio file: %w", err)
	}
	defer file.Close()

	part, err := writer.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", err
	}

	if err := writer.Close(); err != nil {
		return "", err
	}

	url := o.baseURL() + "/v1/audio/transcriptions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+o.APIKey)

	resp, err := o.client().Do(req)
	if err != nil {
		return "", fmt.Errorf("calling transcription API: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("transcription API error (HTTP %d): %s", resp.StatusCode, string(respBody))
	}

	var apiResp struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", fmt.Errorf("parsing transcription response: %w", err)
	}

	return apiResp.Text, nil
}

func (o *OpenAI) model() string {
	if o.Model != "" {
		return o.Model
	}
	return defaultOpenAIModel
}

func (o *OpenAI) baseURL() string {
	if o.BaseURL != "" {
		return o.BaseURL
	}
	return defaultOpenAIBaseURL
}

func (o *OpenAI) client() *http.Client {
	if o.Client != nil {
		return o.Client
	}
	return http.DefaultClient
}
