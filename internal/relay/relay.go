// Package relay is a per-hostname fan-out buffer from one producing
// worker to zero-or-more viewers. It is not a persistent log — state
// lives in memory only, owned per hostname, and is gone once the
// producer disconnects.
//
// The fan-out shape is a map of subscriber channels guarded by a
// mutex, with a non-blocking publish that drops rather than blocks a
// slow reader, plus a bounded ring buffer for late-joining viewers and
// an explicit producer/consumer lifecycle.
package relay

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// DefaultBufferSize is the ring buffer's recommended per-hostname capacity.
const DefaultBufferSize = 5000

const consumerChanCapacity = 256

// Hub owns every active hostname's stream.
type Hub struct {
	logger     *slog.Logger
	bufferSize int

	mu      sync.Mutex
	streams map[string]*stream
}

// NewHub constructs a Hub. bufferSize <= 0 uses DefaultBufferSize.
func NewHub(logger *slog.Logger, bufferSize int) *Hub {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Hub{logger: logger, bufferSize: bufferSize, streams: make(map[string]*stream)}
}

type stream struct {
	mu        sync.Mutex
	buffer    []string
	consumers map[*Consumer]struct{}
	closed    bool
}

// Consumer is a single viewer's subscription. Recv yields lines in
// order; Closed is signalled when the hub drops this consumer, either
// because the producer disconnected or because it fell too far behind.
type Consumer struct {
	SessionID string
	ch        chan string
	closed    chan struct{}
}

// Recv returns the channel of incoming log lines.
func (c *Consumer) Recv() <-chan string { return c.ch }

// Closed returns the channel that's closed when this subscription ends.
func (c *Consumer) Closed() <-chan struct{} { return c.closed }

func (h *Hub) getOrCreate(hostname string) *stream {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.streams[hostname]
	if !ok {
		s = &stream{consumers: make(map[*Consumer]struct{})}
		h.streams[hostname] = s
	}
	return s
}

// Publish appends a line to hostname's stream and fans it out to every
// current consumer. Called by the producer endpoint for every message
// it reads off the worker's websocket.
func (h *Hub) Publish(hostname, line string) {
	s := h.getOrCreate(hostname)

	s.mu.Lock()
	s.buffer = append(s.buffer, line)
	if len(s.buffer) > h.bufferSize {
		// Discard the oldest half on overflow, not just the single
		// oldest line, to avoid re-trimming on every message.
		drop := len(s.buffer) / 2
		s.buffer = append([]string(nil), s.buffer[drop:]...)
	}
	toDrop := h.publishLocked(s, line)
	s.mu.Unlock()

	for _, c := range toDrop {
		h.dropConsumer(s, c)
	}
}

// publishLocked must be called with s.mu held. It returns consumers
// that must be dropped for being too slow; dropping happens after the
// lock is released to avoid recursive locking.
func (h *Hub) publishLocked(s *stream, line string) []*Consumer {
	var slow []*Consumer
	for c := range s.consumers {
		select {
		case c.ch <- line:
		default:
			slow = append(slow, c)
		}
	}
	return slow
}

func (h *Hub) dropConsumer(s *stream, c *Consumer) {
	s.mu.Lock()
	_, present := s.consumers[c]
	if present {
		delete(s.consumers, c)
	}
	s.mu.Unlock()
	if present {
		h.logger.Warn("relay: dropping slow consumer", "session_id", c.SessionID)
		close(c.closed)
	}
}

// Subscribe attaches a new viewer to hostname's stream, returning the
// new Consumer and a snapshot of the current backlog (up to bufferSize
// lines); detach it with Unsubscribe. Late joiners see only the
// retained suffix.
func (h *Hub) Subscribe(hostname string) (*Consumer, []string) {
	s := h.getOrCreate(hostname)
	c := &Consumer{SessionID: uuid.NewString(), ch: make(chan string, consumerChanCapacity), closed: make(chan struct{})}

	s.mu.Lock()
	defer s.mu.Unlock()
	backlog := append([]string(nil), s.buffer...)
	if s.closed {
		close(c.closed)
		return c, backlog
	}
	s.consumers[c] = struct{}{}
	return c, backlog
}

// Unsubscribe detaches c from hostname's stream. Safe to call more than
// once or after the hub already dropped c.
func (h *Hub) Unsubscribe(hostname string, c *Consumer) {
	h.mu.Lock()
	s, ok := h.streams[hostname]
	h.mu.Unlock()
	if !ok {
		return
	}
	s.mu.Lock()
	if _, present := s.consumers[c]; present {
		delete(s.consumers, c)
	}
	s.mu.Unlock()
}

// CloseProducer ends hostname's stream: every current and future
// consumer is closed, and the stream is removed so a subsequent
// producer connection starts fresh. A disconnecting producer always
// closes every viewer currently attached to its stream.
func (h *Hub) CloseProducer(hostname string) {
	h.mu.Lock()
	s, ok := h.streams[hostname]
	if ok {
		delete(h.streams, hostname)
	}
	h.mu.Unlock()
	if !ok {
		return
	}

	s.mu.Lock()
	s.closed = true
	consumers := make([]*Consumer, 0, len(s.consumers))
	for c := range s.consumers {
		consumers = append(consumers, c)
	}
	s.consumers = make(map[*Consumer]struct{})
	s.mu.Unlock()

	for _, c := range consumers {
		close(c.closed)
	}
}
