// Package tts synthesizes assistant replies into telephone-ready audio.
// Output is always raw mu-law 8 kHz so it can go straight onto the media
// stream.
package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ShivaKumarAnandam/sarvam-voice-agent/internal/wav"
)

const textToSpeechEndpoint = "https://api.sarvam.ai/text-to-speech"

// SarvamClient wraps the Bulbul text-to-speech REST API.
type SarvamClient struct {
	HTTPClient *http.Client
	APIKey     string
	Model      string
	Speaker    string
}

type textToSpeechRequest struct {
	Text             string `json:"text"`
	TargetLanguage   string `json:"target_language_code"`
	Model            string `json:"model"`
	Speaker          string `json:"speaker,omitempty"`
	SpeechSampleRate int    `json:"speech_sample_rate"`
}

type textToSpeechResponse struct {
	RequestID string   `json:"request_id"`
	Audios    []string `json:"audios"`
}

func NewSarvamClient(apiKey, model, speaker string) *SarvamClient {
	if model == "" {
		model = "bulbul:v2"
	}
	if speaker == "" {
		speaker = "anushka"
	}
	return &SarvamClient{
		HTTPClient: &http.Client{Timeout: 20 * time.Second},
		APIKey:     apiKey,
		Model:      model,
		Speaker:    speaker,
	}
}

// Synthesize renders text in the given language and returns raw mu-law
// 8 kHz audio. Bulbul responds with base64 WAV PCM16; the container is
// stripped and the samples companded here.
func (c *SarvamClient) Synthesize(ctx context.Context, text, language string) ([]byte, error) {
	if c.APIKey == "" {
		return nil, fmt.Errorf("sarvam api key missing")
	}
	if text == "" {
		return nil, fmt.Errorf("empty text")
	}

	body, _ := json.Marshal(textToSpeechRequest{
		Text:             text,
		TargetLanguage:   language,
		Model:            c.Model,
		Speaker:          c.Speaker,
		SpeechSampleRate: 8000,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, textToSpeechEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("api-subscription-key", c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("sarvam tts error: status=%d body=%s", resp.StatusCode, string(b))
	}

	var tr textToSpeechResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, err
	}
	if len(tr.Audios) == 0 {
		return nil, fmt.Errorf("sarvam tts: no audio in response")
	}

	raw, err := base64.StdEncoding.DecodeString(tr.Audios[0])
	if err != nil {
		return nil, fmt.Errorf("sarvam tts: decode audio: %w", err)
	}
	samples, _, err := wav.DecodePCM16(raw)
	if err != nil {
		return nil, fmt.Errorf("sarvam tts: parse wav: %w", err)
	}
	return wav.MuLawFromPCM16(samples), nil
}
