// Package storage persists per-turn call recordings to Supabase
// Storage. Uploads are best effort: a failed upload is logged, never
// surfaced to the call path.
package storage

import (
	"bytes"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/supabase-community/supabase-go"

	"github.com/ShivaKumarAnandam/sarvam-voice-agent/internal/wav"
)

// Recorder uploads utterance and reply audio for one call.
type Recorder struct {
	client *supabase.Client
	bucket string
	log    zerolog.Logger
}

func NewRecorder(url, serviceKey, bucket string, log zerolog.Logger) (*Recorder, error) {
	if url == "" || serviceKey == "" {
		return nil, fmt.Errorf("missing Supabase configuration: url and service key required")
	}
	if bucket == "" {
		bucket = "call-recordings"
	}
	client, err := supabase.NewClient(url, serviceKey, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("create supabase client: %w", err)
	}
	return &Recorder{
		client: client,
		bucket: bucket,
		log:    log.With().Str("component", "storage").Logger(),
	}, nil
}

// SaveTurn stores both sides of one exchange as WAV files under the
// call's prefix. Audio in and out is raw mu-law 8 kHz.
func (r *Recorder) SaveTurn(callID string, turn int, utterance, reply []byte) {
	stamp := time.Now().UTC().Format("20060102T150405")
	if len(utterance) > 0 {
		key := fmt.Sprintf("%s/%03d-%s-user.wav", callID, turn, stamp)
		r.upload(key, wav.EncodeMuLawFile(utterance, 8000))
	}
	if len(reply) > 0 {
		key := fmt.Sprintf("%s/%03d-%s-assistant.wav", callID, turn, stamp)
		r.upload(key, wav.EncodeMuLawFile(reply, 8000))
	}
}

func (r *Recorder) upload(key string, body []byte) {
	_, err := r.client.Storage.UploadFile(r.bucket, key, bytes.NewReader(body))
	if err != nil {
		r.log.Warn().Err(err).Str("key", key).Msg("recording upload failed")
		return
	}
	r.log.Debug().Str("key", key).Int("bytes", len(body)).Msg("recording uploaded")
}
