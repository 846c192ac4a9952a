package conversation

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lumia-zhu/aiplanner-sub000/internal/core"
	"github.com/lumia-zhu/aiplanner-sub000/internal/events"
)

const (
	DefaultChunkSize  = 3
	DefaultChunkDelay = 20 * time.Millisecond
)

// Streamer delivers assistant messages chunk by chunk. At most one stream
// is live: starting a stream revokes the previous one, which then neither
// emits chunks nor appends its message.
type Streamer struct {
	mu         sync.Mutex
	log        *Log
	bus        *events.EventBus
	sessionID  string
	chunkSize  int
	chunkDelay time.Duration
	now        func() time.Time

	gen    uint64
	cancel context.CancelFunc
	done   chan struct{}
}

// NewStreamer creates a streamer appending to log. chunkSize <= 0 uses
// DefaultChunkSize; a zero delay emits chunks back to back.
func NewStreamer(log *Log, bus *events.EventBus, sessionID string, chunkSize int, chunkDelay time.Duration) *Streamer {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkDelay < 0 {
		chunkDelay = 0
	}
	return &Streamer{
		log:        log,
		bus:        bus,
		sessionID:  sessionID,
		chunkSize:  chunkSize,
		chunkDelay: chunkDelay,
		now:        time.Now,
	}
}

// Stream starts delivering text and returns a channel closed when the
// stream finished or was superseded. interactive, when non-nil, is attached
// to the finalized message.
func (s *Streamer) Stream(text string, interactive *core.Interactive) <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.gen++
	s.cancel = cancel
	done := make(chan struct{})
	s.done = done

	go s.run(ctx, s.gen, uuid.NewString(), text, interactive, done)
	return done
}

// Cancel revokes the live stream, if any.
func (s *Streamer) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.gen++
}

// Streaming reports whether a stream is live.
func (s *Streamer) Streaming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Wait blocks until the live stream ends or ctx is done.
func (s *Streamer) Wait(ctx context.Context) error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Streamer) run(ctx context.Context, gen uint64, id, text string, interactive *core.Interactive, done chan struct{}) {
	defer close(done)
	defer func() {
		s.mu.Lock()
		if s.gen == gen {
			s.cancel = nil
		}
		s.mu.Unlock()
	}()

	for _, chunk := range splitRunes(text, s.chunkSize) {
		if !s.emit(gen, func() { s.bus.Publish(events.NewStreamChunkEvent(s.sessionID, id, chunk)) }) {
			return
		}
		if s.chunkDelay > 0 {
			t := time.NewTimer(s.chunkDelay)
			select {
			case <-ctx.Done():
				t.Stop()
				return
			case <-t.C:
			}
		}
	}

	msg := core.ChatMessage{
		ID:        id,
		Role:      core.RoleAssistant,
		Content:   []core.ContentPart{core.TextPart(text)},
		CreatedAt: s.now(),
	}
	if interactive != nil {
		msg.Content = append(msg.Content, core.ContentPart{Type: core.PartInteractive, Interactive: interactive})
	}
	s.emit(gen, func() {
		if interactive != nil {
			s.log.DeactivateAll()
		}
		s.log.Append(msg)
		s.bus.Publish(events.NewMessageFinalizedEvent(s.sessionID, id, msg))
	})
}

// emit runs fn only while gen is still the live stream. Holding the lock
// across fn orders it before any later Stream call.
func (s *Streamer) emit(gen uint64, fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return false
	}
	fn()
	return true
}

func splitRunes(text string, size int) []string {
	runes := []rune(text)
	chunks := make([]string, 0, len(runes)/size+1)
	for i := 0; i < len(runes); i += size {
		end := min(i+size, len(runes))
		chunks = append(chunks, string(runes[i:end]))
	}
	return chunks
}
