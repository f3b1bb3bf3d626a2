package stream

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fakeSink struct {
	chunks    [][]byte
	connected bool
	failAfter int // fail the write once this many chunks landed; -1 disables
	dropAfter int // report disconnected after this many chunks; -1 disables
}

func newFakeSink() *fakeSink {
	return &fakeSink{connected: true, failAfter: -1, dropAfter: -1}
}

func (f *fakeSink) WriteAudio(chunk []byte) error {
	if f.failAfter >= 0 && len(f.chunks) >= f.failAfter {
		return errors.New("socket closed")
	}
	c := make([]byte, len(chunk))
	copy(c, chunk)
	f.chunks = append(f.chunks, c)
	if f.dropAfter >= 0 && len(f.chunks) >= f.dropAfter {
		f.connected = false
	}
	return nil
}

func (f *fakeSink) Connected() bool { return f.connected }

func TestStreamChunksWholeBuffer(t *testing.T) {
	s := NewStreamer(zerolog.Nop(), WithChunkSize(4), WithInterval(time.Millisecond))
	sink := newFakeSink()

	audio := []byte("abcdefghij") // 4 + 4 + 2
	if err := s.Stream(context.Background(), audio, sink); err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if len(sink.chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(sink.chunks))
	}
	if string(sink.chunks[2]) != "ij" {
		t.Fatalf("last chunk %q, want trailing remainder", sink.chunks[2])
	}
}

func TestStreamEmptyBufferIsNoop(t *testing.T) {
	s := NewStreamer(zerolog.Nop(), WithInterval(time.Millisecond))
	sink := newFakeSink()
	if err := s.Stream(context.Background(), nil, sink); err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if len(sink.chunks) != 0 {
		t.Fatalf("no chunks expected, got %d", len(sink.chunks))
	}
}

func TestStreamStopsQuietlyOnDisconnect(t *testing.T) {
	s := NewStreamer(zerolog.Nop(), WithChunkSize(2), WithInterval(time.Millisecond))
	sink := newFakeSink()
	sink.dropAfter = 2

	if err := s.Stream(context.Background(), []byte("abcdefgh"), sink); err != nil {
		t.Fatalf("disconnect should not be an error, got %v", err)
	}
	if len(sink.chunks) != 2 {
		t.Fatalf("expected 2 chunks before disconnect, got %d", len(sink.chunks))
	}
}

func TestStreamReturnsWriteError(t *testing.T) {
	s := NewStreamer(zerolog.Nop(), WithChunkSize(2), WithInterval(time.Millisecond))
	sink := newFakeSink()
	sink.failAfter = 1

	err := s.Stream(context.Background(), []byte("abcdef"), sink)
	if err == nil {
		t.Fatal("expected write error")
	}
}

func TestStreamHonorsContextCancel(t *testing.T) {
	s := NewStreamer(zerolog.Nop(), WithChunkSize(1), WithInterval(50*time.Millisecond))
	sink := newFakeSink()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Stream(ctx, []byte("abcdef"), sink)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(sink.chunks) != 1 {
		t.Fatalf("expected the first chunk before cancellation, got %d", len(sink.chunks))
	}
}
