package media

import (
	"encoding/base64"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
)

// wsSink writes outbound media frames onto a Twilio stream websocket.
// Writes are serialized; gorilla connections allow one writer at a time.
type wsSink struct {
	mu        sync.Mutex
	conn      *websocket.Conn
	streamSid string
	connected atomic.Bool
}

func newWSSink(conn *websocket.Conn, streamSid string) *wsSink {
	s := &wsSink{conn: conn, streamSid: streamSid}
	s.connected.Store(true)
	return s
}

func (s *wsSink) Connected() bool { return s.connected.Load() }

func (s *wsSink) disconnect() { s.connected.Store(false) }

// WriteAudio sends one chunk of raw mu-law audio as a media event.
func (s *wsSink) WriteAudio(chunk []byte) error {
	return s.write(streamMessage{
		Event:     "media",
		StreamSid: s.streamSid,
		Media:     &mediaFrame{Payload: base64.StdEncoding.EncodeToString(chunk)},
	})
}

// WriteMark asks Twilio to echo the mark back once all audio queued
// before it has been played to the caller.
func (s *wsSink) WriteMark(name string) error {
	return s.write(streamMessage{
		Event:     "mark",
		StreamSid: s.streamSid,
		Mark:      &markFrame{Name: name},
	})
}

func (s *wsSink) write(msg streamMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.WriteJSON(msg); err != nil {
		s.connected.Store(false)
		return err
	}
	return nil
}
