// Package pushtest provides an in-memory push.Dialer for tests.
package pushtest

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"streamclean/internal/push"
)

// Dialer records every channel opened through it.
type Dialer struct {
	mu      sync.Mutex
	handles []*Handle
}

// Open implements push.Dialer.
func (d *Dialer) Open(url string, l push.Listener) push.Handle {
	h := &Handle{url: url, listener: l}
	d.mu.Lock()
	d.handles = append(d.handles, h)
	d.mu.Unlock()
	return h
}

// Handles returns every handle opened so far, oldest first.
func (d *Dialer) Handles() []*Handle {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*Handle, len(d.handles))
	copy(out, d.handles)
	return out
}

// Last returns the most recently opened handle or nil.
func (d *Dialer) Last() *Handle {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.handles) == 0 {
		return nil
	}
	return d.handles[len(d.handles)-1]
}

// Handle is a fake channel driven by the test.
type Handle struct {
	url      string
	listener push.Listener
	closed   atomic.Bool
	closes   atomic.Int32
}

// Close implements push.Handle.
func (h *Handle) Close() {
	h.closes.Add(1)
	h.closed.Store(true)
}

// URL implements push.Handle.
func (h *Handle) URL() string { return h.url }

// Closed reports whether Close was called.
func (h *Handle) Closed() bool { return h.closed.Load() }

// CloseCount reports how many times Close was called.
func (h *Handle) CloseCount() int { return int(h.closes.Load()) }

// Emit delivers an event the way a live channel would. Payloads that are not
// already []byte or string are JSON encoded. It reports whether a callback
// ran; closed handles deliver nothing.
func (h *Handle) Emit(event string, payload any) bool {
	if h.Closed() {
		return false
	}
	return h.deliver(event, payload)
}

// EmitAfterClose delivers an event regardless of Close, simulating a message
// already in flight when the owner closed the channel.
func (h *Handle) EmitAfterClose(event string, payload any) bool {
	return h.deliver(event, payload)
}

// Fail reports a transport error to the listener unless the handle is closed.
func (h *Handle) Fail(err error) {
	if h.Closed() || h.listener.OnError == nil {
		return
	}
	h.listener.OnError(&push.ChannelError{URL: h.url, Err: err})
}

// FailAfterClose reports an error regardless of Close, simulating a transport
// failure racing with the owner's teardown.
func (h *Handle) FailAfterClose(err error) {
	if h.listener.OnError == nil {
		return
	}
	h.listener.OnError(&push.ChannelError{URL: h.url, Err: err})
}

func (h *Handle) deliver(event string, payload any) bool {
	fn, ok := h.listener.Events[event]
	if !ok || fn == nil {
		return false
	}
	fn(encode(payload))
	return true
}

func encode(payload any) []byte {
	switch v := payload.(type) {
	case []byte:
		return v
	case string:
		return []byte(v)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		panic(fmt.Sprintf("pushtest: encode payload: %v", err))
	}
	return data
}
