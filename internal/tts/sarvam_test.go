package tts

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ShivaKumarAnandam/sarvam-voice-agent/internal/wav"
)

func redirectTo(srv *httptest.Server) *http.Client {
	return &http.Client{Timeout: time.Second, Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		req.URL.Scheme = "http"
		req.URL.Host = srv.Listener.Addr().String()
		return http.DefaultTransport.RoundTrip(req)
	})}
}

func TestSarvamTTS_NoKey(t *testing.T) {
	c := NewSarvamClient("", "", "")
	if _, err := c.Synthesize(context.Background(), "hello", "en-IN"); err == nil {
		t.Fatalf("expected error with missing key")
	}
}

func TestSarvamTTS_EmptyText(t *testing.T) {
	c := NewSarvamClient("key", "", "")
	if _, err := c.Synthesize(context.Background(), "", "en-IN"); err == nil {
		t.Fatalf("expected error for empty text")
	}
}

func TestSarvamTTS_Synthesize(t *testing.T) {
	// 80 samples of silence, 8 kHz PCM16 inside a WAV container
	wavFile := wav.EncodePCM16File(make([]int16, 80), 8000)

	var got textToSpeechRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if key := r.Header.Get("api-subscription-key"); key != "key" {
			t.Errorf("api-subscription-key = %q", key)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(200)
		fmt.Fprintf(w, `{"request_id":"r1","audios":[%q]}`, base64.StdEncoding.EncodeToString(wavFile))
	}))
	defer srv.Close()

	c := NewSarvamClient("key", "", "")
	c.HTTPClient = redirectTo(srv)
	out, err := c.Synthesize(context.Background(), "vandanalu", "te-IN")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if len(out) != 80 {
		t.Fatalf("expected 80 mu-law bytes, got %d", len(out))
	}
	if got.TargetLanguage != "te-IN" || got.Text != "vandanalu" {
		t.Fatalf("request not forwarded: %+v", got)
	}
	if got.SpeechSampleRate != 8000 {
		t.Fatalf("sample rate %d, want 8000", got.SpeechSampleRate)
	}
}

func TestSarvamTTS_Failures(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"status_non_2xx", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(429); _, _ = w.Write([]byte("rate limited")) }},
		{"no_audios", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte(`{"audios":[]}`)) }},
		{"bad_base64", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte(`{"audios":["%%%"]}`)) }},
		{"not_a_wav", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(200)
			fmt.Fprintf(w, `{"audios":[%q]}`, base64.StdEncoding.EncodeToString([]byte("junk")))
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()
			c := NewSarvamClient("key", "", "")
			c.HTTPClient = redirectTo(srv)
			if _, err := c.Synthesize(context.Background(), "hello", "en-IN"); err == nil {
				t.Fatalf("expected error; got nil")
			}
		})
	}
}

func TestDeepgram_NoKey(t *testing.T) {
	d := NewDeepgramClient("", "")
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if _, err := d.Synthesize(ctx, "hello", "en-IN"); err == nil {
		t.Fatalf("expected error when api key missing")
	}
}

func TestDeepgram_EmptyText(t *testing.T) {
	d := NewDeepgramClient("key", "")
	if _, err := d.Synthesize(context.Background(), "", "en-IN"); err == nil {
		t.Fatalf("expected error for empty text")
	}
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }
