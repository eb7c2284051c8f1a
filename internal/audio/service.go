// Package audio is the speech-to-text boundary, backed by a
// Whisper-compatible transcription endpoint.
package audio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"lifetracker/internal/models"
)

// Transcriber turns recorded audio into text. Implemented by Service and
// by test fakes.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error)
}

// Service calls a Whisper-compatible /audio/transcriptions endpoint
type Service struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewService builds the transcription client. Whisper can take a while
// for long recordings, hence the generous timeout.
func NewService(baseURL, apiKey, model string) *Service {
	return &Service{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

var mimeExtensions = map[string]string{
	"audio/wav":  "wav",
	"audio/mpeg": "mp3",
	"audio/mp4":  "m4a",
	"audio/ogg":  "ogg",
	"audio/webm": "webm",
}

// Transcribe uploads the audio and returns the transcript text. Every
// failure maps to ErrTranscriptionFailed; the caller aborts the turn
// before any model call is made.
func (s *Service) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	if len(audio) == 0 {
		return "", fmt.Errorf("%w: empty audio payload", models.ErrTranscriptionFailed)
	}

	ext, ok := mimeExtensions[mimeType]
	if !ok {
		ext = "wav"
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", "recording."+ext)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrTranscriptionFailed, err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrTranscriptionFailed, err)
	}
	if err := writer.WriteField("model", s.model); err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrTranscriptionFailed, err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrTranscriptionFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.baseURL+"/audio/transcriptions", &body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrTranscriptionFailed, err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrTranscriptionFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("%w: API error (status %d): %s", models.ErrTranscriptionFailed, resp.StatusCode, string(respBody))
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("%w: failed to decode response: %v", models.ErrTranscriptionFailed, err)
	}
	if result.Text == "" {
		return "", fmt.Errorf("%w: provider returned empty transcript", models.ErrTranscriptionFailed)
	}
	return result.Text, nil
}
