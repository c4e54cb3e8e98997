package sessions

import (
	"errors"
	"sync"
)

const DefaultFeedBuffer = 64

var (
	ErrFeedFull   = errors.New("subscriber buffer full")
	ErrFeedClosed = errors.New("subscriber closed")
)

// Frame is one encoded event queued for a subscriber.
type Frame struct {
	Type    EventType
	Payload []byte
}

// Feed is a Listener backed by a bounded queue. A subscriber that falls
// behind by more than the buffer is closed instead of stalling broadcasts;
// its reader drains what was queued and then sees the channel close.
type Feed struct {
	mu     sync.Mutex
	ch     chan Frame
	closed bool
}

func NewFeed(buffer int) *Feed {
	if buffer <= 0 {
		buffer = DefaultFeedBuffer
	}
	return &Feed{ch: make(chan Frame, buffer)}
}

func (f *Feed) Deliver(event EventType, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrFeedClosed
	}
	select {
	case f.ch <- Frame{Type: event, Payload: payload}:
		return nil
	default:
		f.closed = true
		close(f.ch)
		return ErrFeedFull
	}
}

// Frames is closed once the feed is closed.
func (f *Feed) Frames() <-chan Frame {
	return f.ch
}

func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.closed {
		f.closed = true
		close(f.ch)
	}
}
