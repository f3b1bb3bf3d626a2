package stt

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func redirectTo(srv *httptest.Server) *http.Client {
	return &http.Client{Timeout: time.Second, Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		req.URL.Scheme = "http"
		req.URL.Host = srv.Listener.Addr().String()
		return http.DefaultTransport.RoundTrip(req)
	})}
}

func TestSarvam_NoKey(t *testing.T) {
	c := NewSarvamClient("", "")
	if _, _, err := c.Transcribe(context.Background(), []byte{0xFF}, ""); err == nil {
		t.Fatalf("expected error with missing key")
	}
}

func TestSarvam_EmptyAudio(t *testing.T) {
	c := NewSarvamClient("key", "")
	if _, _, err := c.Transcribe(context.Background(), nil, ""); err == nil {
		t.Fatalf("expected error for empty audio")
	}
}

func TestSarvam_Transcribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if key := r.Header.Get("api-subscription-key"); key != "key" {
			t.Errorf("api-subscription-key = %q", key)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("multipart parse: %v", err)
		}
		if model := r.FormValue("model"); model != "saarika:v2.5" {
			t.Errorf("model = %q", model)
		}
		if lang := r.FormValue("language_code"); lang != "te-IN" {
			t.Errorf("language_code = %q", lang)
		}
		f, _, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
		} else {
			head := make([]byte, 4)
			_, _ = io.ReadFull(f, head)
			if !bytes.Equal(head, []byte("RIFF")) {
				t.Errorf("upload is not a WAV container: % x", head)
			}
			f.Close()
		}
		w.WriteHeader(200)
		_, _ = w.Write([]byte(`{"request_id":"r1","transcript":" namaskaram ","language_code":"te-IN"}`))
	}))
	defer srv.Close()

	c := NewSarvamClient("key", "")
	c.HTTPClient = redirectTo(srv)
	text, lang, err := c.Transcribe(context.Background(), make([]byte, 1600), "te-IN")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "namaskaram" {
		t.Fatalf("transcript %q, want trimmed", text)
	}
	if lang != "te-IN" {
		t.Fatalf("detected language %q", lang)
	}
}

func TestSarvam_HintDefaultsToUnknown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseMultipartForm(1 << 20)
		if lang := r.FormValue("language_code"); lang != "unknown" {
			t.Errorf("language_code = %q, want unknown", lang)
		}
		w.WriteHeader(200)
		_, _ = w.Write([]byte(`{"transcript":"hi","language_code":"en-IN"}`))
	}))
	defer srv.Close()

	c := NewSarvamClient("key", "")
	c.HTTPClient = redirectTo(srv)
	if _, _, err := c.Transcribe(context.Background(), make([]byte, 160), ""); err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
}

func TestSarvam_HTTPFailures(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"status_non_2xx", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(502); _, _ = w.Write([]byte("bad gateway")) }},
		{"bad_json", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("not-json")) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()
			c := NewSarvamClient("key", "")
			c.HTTPClient = redirectTo(srv)
			if _, _, err := c.Transcribe(context.Background(), make([]byte, 160), ""); err == nil {
				t.Fatalf("expected error; got nil")
			}
		})
	}
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }
