package api

import (
	"sync"
	"time"

	"github.com/bryanchriswhite/FocusTracker/internal/aim"
	"github.com/bryanchriswhite/FocusTracker/internal/tracker"
)

// Message types sent to track stream subscribers.
const (
	MessageTrack = "track"
	MessageMove  = "move"
)

// Message is one websocket frame of the track stream.
type Message struct {
	Type       string                 `json:"type"`
	Timestamp  time.Time              `json:"timestamp"`
	Sequence   uint64                 `json:"sequence,omitempty"`
	Detections []tracker.DetectionBox `json:"detections,omitempty"`
	Result     *tracker.Result        `json:"result,omitempty"`
	Gated      bool                   `json:"gated,omitempty"`
	Armed      bool                   `json:"armed,omitempty"`
	DX         int                    `json:"dx,omitempty"`
	DY         int                    `json:"dy,omitempty"`
}

// Hub fans loop events and actuation out to websocket subscribers. Slow
// subscribers miss messages rather than stall the loop.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[chan Message]struct{}
	last        *Message
	now         func() time.Time
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[chan Message]struct{}),
		now:         time.Now,
	}
}

// Subscribe returns a channel receiving every subsequent message.
func (h *Hub) Subscribe() chan Message {
	ch := make(chan Message, 16)
	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

// Unsubscribe removes and closes ch.
func (h *Hub) Unsubscribe(ch chan Message) {
	h.mu.Lock()
	if _, ok := h.subscribers[ch]; ok {
		delete(h.subscribers, ch)
		close(ch)
	}
	h.mu.Unlock()
}

// Subscribers returns the number of subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Last returns the most recent track message, if any.
func (h *Hub) Last() (Message, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.last == nil {
		return Message{}, false
	}
	return *h.last, true
}

// Observe implements aim.Observer.
func (h *Hub) Observe(ev aim.Event) {
	res := ev.Result
	msg := Message{
		Type:       MessageTrack,
		Timestamp:  ev.At,
		Detections: ev.Detections,
		Result:     &res,
		Gated:      ev.Gated,
		Armed:      ev.Armed,
	}
	if ev.Frame != nil {
		msg.Sequence = ev.Frame.Sequence
	}

	h.mu.Lock()
	h.last = &msg
	h.mu.Unlock()
	h.broadcast(msg)
}

// MoveBy implements actuate.Sink by publishing the move.
func (h *Hub) MoveBy(dx, dy int) error {
	h.broadcast(Message{Type: MessageMove, Timestamp: h.now(), DX: dx, DY: dy})
	return nil
}

func (h *Hub) broadcast(msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subscribers {
		select {
		case ch <- msg:
		default:
		}
	}
}
