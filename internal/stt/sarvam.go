// Package stt transcribes caller audio with Sarvam's Saarika model.
package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/ShivaKumarAnandam/sarvam-voice-agent/internal/wav"
)

const speechToTextEndpoint = "https://api.sarvam.ai/speech-to-text"

// SarvamClient wraps the Saarika speech-to-text REST API. Input audio is
// raw mu-law 8 kHz; it is wrapped into a WAV container before upload.
type SarvamClient struct {
	HTTPClient *http.Client
	APIKey     string
	Model      string
	SampleRate int
}

type speechToTextResponse struct {
	RequestID    string `json:"request_id"`
	Transcript   string `json:"transcript"`
	LanguageCode string `json:"language_code"`
}

func NewSarvamClient(apiKey, model string) *SarvamClient {
	if model == "" {
		model = "saarika:v2.5"
	}
	return &SarvamClient{
		HTTPClient: &http.Client{Timeout: 20 * time.Second},
		APIKey:     apiKey,
		Model:      model,
		SampleRate: 8000,
	}
}

// Transcribe uploads one utterance and returns the transcript plus the
// language Saarika detected. An empty languageHint asks the model to
// detect the language on its own.
func (c *SarvamClient) Transcribe(ctx context.Context, audio []byte, languageHint string) (string, string, error) {
	if c.APIKey == "" {
		return "", "", fmt.Errorf("sarvam api key missing")
	}
	if len(audio) == 0 {
		return "", "", fmt.Errorf("empty audio")
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "utterance.wav")
	if err != nil {
		return "", "", err
	}
	if _, err := fw.Write(wav.EncodeMuLawFile(audio, c.SampleRate)); err != nil {
		return "", "", err
	}
	_ = mw.WriteField("model", c.Model)
	if languageHint == "" {
		languageHint = "unknown"
	}
	_ = mw.WriteField("language_code", languageHint)
	if err := mw.Close(); err != nil {
		return "", "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, speechToTextEndpoint, &body)
	if err != nil {
		return "", "", err
	}
	req.Header.Set("api-subscription-key", c.APIKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return "", "", fmt.Errorf("sarvam stt error: status=%d body=%s", resp.StatusCode, string(b))
	}

	var sr speechToTextResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return "", "", err
	}
	return strings.TrimSpace(sr.Transcript), sr.LanguageCode, nil
}
