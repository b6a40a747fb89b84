// Package google transcribes utterances with the Cloud Speech-to-Text v1 REST API.
package google

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"voice-chatbot/internal/domain"
)

// SpeechClient sends WAV utterances to speech:recognize. Encoding and sample
// rate are left out of the request so the service reads them from the WAV
// header, whatever rate the source recorded at.
type SpeechClient struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	language   string
}

func NewSpeechClient(apiKey, language string) *SpeechClient {
	return NewSpeechClientWithURL(apiKey, language, "https://speech.googleapis.com/v1")
}

func NewSpeechClientWithURL(apiKey, language, baseURL string) *SpeechClient {
	if language == "" {
		language = "en-US"
	}
	return &SpeechClient{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		language:   language,
	}
}

type recognitionConfig struct {
	LanguageCode string `json:"languageCode"`
}

type recognitionAudio struct {
	Content string `json:"content"`
}

type request struct {
	Config recognitionConfig `json:"config"`
	Audio  recognitionAudio  `json:"audio"`
}

type response struct {
	Results []struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"results"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error,omitempty"`
}

func (c *SpeechClient) Transcribe(ctx context.Context, audio []byte) (string, error) {
	reqBody := request{
		Config: recognitionConfig{
			LanguageCode: c.language,
		},
		Audio: recognitionAudio{
			Content: base64.StdEncoding.EncodeToString(audio),
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/speech:recognize?key=%s", c.baseURL, url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("sending request: %w: %w", domain.ErrTranscriptionService, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w: %w", domain.ErrTranscriptionService, err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("google speech API error %d: %s: %w", resp.StatusCode, string(respBody), domain.ErrTranscriptionService)
	}

	var result response
	if err = json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("decoding response: %w: %w", domain.ErrTranscriptionService, err)
	}

	if result.Error != nil {
		return "", fmt.Errorf("google speech error: %s: %w", result.Error.Message, domain.ErrTranscriptionService)
	}

	var parts []string
	for _, r := range result.Results {
		if len(r.Alternatives) == 0 {
			continue
		}
		if t := strings.TrimSpace(r.Alternatives[0].Transcript); t != "" {
			parts = append(parts, t)
		}
	}

	if len(parts) == 0 {
		return "", domain.ErrNoSpeech
	}

	return strings.Join(parts, " "), nil
}
