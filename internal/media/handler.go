// Package media bridges Twilio Media Streams to the turn pipeline: it
// receives inbound mu-law frames over a websocket, feeds them to the
// segmenter, and paces synthesized replies back onto the stream.
package media

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/ShivaKumarAnandam/sarvam-voice-agent/internal/agent"
	"github.com/ShivaKumarAnandam/sarvam-voice-agent/internal/language"
	"github.com/ShivaKumarAnandam/sarvam-voice-agent/internal/metrics"
	"github.com/ShivaKumarAnandam/sarvam-voice-agent/internal/segment"
	"github.com/ShivaKumarAnandam/sarvam-voice-agent/internal/storage"
	"github.com/ShivaKumarAnandam/sarvam-voice-agent/internal/stream"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  65536,
	WriteBufferSize: 65536,
	CheckOrigin: func(r *http.Request) bool {
		// Twilio connects server to server, no browser origin to check
		return true
	},
}

// Handler serves one Twilio media stream per websocket connection.
type Handler struct {
	// NewSession builds the per-call session. Called once per stream.
	NewSession func() *agent.Session
	// Segmenter configuration for inbound audio.
	Segment segment.Config
	// Streamer paces outbound audio.
	Streamer *stream.Streamer
	// Recorder stores per-turn audio when non-nil.
	Recorder *storage.Recorder
	// Greet synthesizes the opening line for a language. Optional.
	Greet func(ctx context.Context, lang string) ([]byte, error)

	Log zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*agent.Session
}

// Statuses snapshots every active call for the debug endpoint.
func (h *Handler) Statuses() []agent.Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]agent.Status, 0, len(h.sessions))
	for _, s := range h.sessions {
		out = append(out, s.Status())
	}
	return out
}

// Session looks up an active call by session id.
func (h *Handler) Session(id string) (*agent.Session, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.sessions[id]
	return s, ok
}

func (h *Handler) track(s *agent.Session) {
	h.mu.Lock()
	if h.sessions == nil {
		h.sessions = make(map[string]*agent.Session)
	}
	h.sessions[s.ID()] = s
	h.mu.Unlock()
}

func (h *Handler) untrack(s *agent.Session) {
	h.mu.Lock()
	delete(h.sessions, s.ID())
	h.mu.Unlock()
}

// ServeStream upgrades the request and runs the call until the caller
// hangs up or the socket drops.
func (h *Handler) ServeStream(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Log.Error().Err(err).Msg("media stream upgrade failed")
		return
	}
	defer conn.Close()

	metrics.SessionStarted()
	defer metrics.SessionEnded()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	session := h.NewSession()
	h.track(session)
	defer h.untrack(session)
	log := h.Log.With().Str("session_id", session.ID()).Logger()
	seg := segment.NewSegmenter(h.Segment, log)
	defer seg.Close()

	var (
		sink    *wsSink
		callSid string
		done    chan struct{}
	)
	defer func() {
		if sink != nil {
			sink.disconnect()
		}
		cancel()
		if done != nil {
			<-done
		}
	}()

	for {
		var msg streamMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn().Err(err).Msg("media stream closed unexpectedly")
			}
			return
		}

		switch msg.Event {
		case "connected":
			log.Debug().Msg("twilio connected")

		case "start":
			if msg.Start == nil {
				log.Warn().Msg("start event without payload")
				continue
			}
			callSid = msg.Start.CallSid
			sink = newWSSink(conn, msg.Start.StreamSid)
			if lang := msg.Start.CustomParameters["language"]; lang != "" && language.Known(lang) {
				session.SetLanguage(lang)
			}
			log.Info().
				Str("call_sid", callSid).
				Str("stream_sid", msg.Start.StreamSid).
				Str("language", session.Language()).
				Msg("media stream started")

			done = make(chan struct{})
			go h.runTurns(ctx, session, seg, sink, callSid, done, log)
			// greeting runs off the read loop so inbound frames keep flowing
			go h.greet(ctx, session, sink, log)

		case "media":
			if msg.Media == nil {
				continue
			}
			frame, err := base64.StdEncoding.DecodeString(msg.Media.Payload)
			if err != nil {
				log.Warn().Err(err).Msg("undecodable media payload")
				continue
			}
			seg.PushFrame(frame)

		case "mark":
			if msg.Mark != nil {
				log.Debug().Str("mark", msg.Mark.Name).Msg("playback mark reached")
			}

		case "stop":
			log.Info().Str("call_sid", callSid).Msg("media stream stopped")
			seg.Flush()
			return
		}
	}
}

// runTurns consumes utterances serially so history stays in speaking
// order. It exits when the segmenter closes or the call context ends.
func (h *Handler) runTurns(ctx context.Context, session *agent.Session, seg *segment.Segmenter, sink *wsSink, callSid string, done chan struct{}, log zerolog.Logger) {
	defer close(done)
	turn := 0
	for {
		select {
		case <-ctx.Done():
			return
		case utterance, ok := <-seg.Utterances():
			if !ok {
				return
			}
			turn++
			session.SetState(agent.StateProcessing)
			res := session.ProcessTurn(ctx, utterance)
			if res.Err != nil && res.Response == "" {
				log.Error().Err(res.Err).Int("turn", turn).Msg("turn failed")
				continue
			}
			if res.Degraded() {
				log.Warn().Int("turn", turn).Str("response", res.Response).Msg("no audio for reply, skipping playback")
				continue
			}
			session.SetState(agent.StateSpeaking)
			if err := h.Streamer.Stream(ctx, res.Audio, sink); err != nil {
				log.Error().Err(err).Int("turn", turn).Msg("stream reply failed")
			}
			_ = sink.WriteMark(fmt.Sprintf("turn-%d", turn))
			session.SetState(agent.StateListening)

			if h.Recorder != nil {
				go h.Recorder.SaveTurn(callSid, turn, utterance, res.Audio)
			}
		}
	}
}

func (h *Handler) greet(ctx context.Context, session *agent.Session, sink *wsSink, log zerolog.Logger) {
	if h.Greet == nil {
		return
	}
	audio, err := h.Greet(ctx, session.Language())
	if err != nil {
		log.Warn().Err(err).Msg("greeting synthesis failed")
		return
	}
	session.SetState(agent.StateSpeaking)
	if err := h.Streamer.Stream(ctx, audio, sink); err != nil {
		log.Warn().Err(err).Msg("greeting playback failed")
	}
	_ = sink.WriteMark("greeting")
	session.SetState(agent.StateListening)
}
