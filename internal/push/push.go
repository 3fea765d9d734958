package push

import (
	"errors"
	"fmt"
)

// Listener receives events from one channel. Events maps an event name to its
// callback; events without a registered callback are dropped. Callbacks run on
// the channel's reader goroutine.
//
// Close does not wait for the reader, so a callback may still run once after
// Close returns. Owners that reopen channels must tag each listener with a
// per-connection token and drop callbacks whose token is no longer current.
type Listener struct {
	Events  map[string]func(data []byte)
	OnError func(err error)
}

func (l Listener) dispatch(event string, data []byte) bool {
	fn, ok := l.Events[event]
	if !ok || fn == nil {
		return false
	}
	fn(data)
	return true
}

func (l Listener) fail(err error) {
	if l.OnError != nil {
		l.OnError(err)
	}
}

// Handle is an open channel.
type Handle interface {
	// Close stops delivery. It is idempotent and does not block; a callback
	// already in flight may still complete (see Listener).
	Close()
	// URL returns the address the channel was opened against.
	URL() string
}

// Dialer opens push channels.
type Dialer interface {
	Open(url string, l Listener) Handle
}

// ErrStreamEnded reports that the server closed the event stream.
var ErrStreamEnded = errors.New("event stream ended")

// ChannelError wraps a transport failure on a push channel.
type ChannelError struct {
	URL string
	Err error
}

func (e *ChannelError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("push channel %s: %v", e.URL, e.Err)
}

func (e *ChannelError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
