// Package push implements the server-push channels used to follow jobs.
//
// A channel is opened with Dialer.Open and delivers named events to the
// callbacks registered on a Listener. HTTPDialer speaks text/event-stream over
// net/http; pushtest provides an in-memory dialer for store tests.
//
// Channels never reconnect on their own. When the transport fails, OnError is
// invoked once and the channel stops; reopening is the owner's decision.
// Close cancels the underlying request and returns without waiting for the
// reader goroutine, so it is safe to call from inside an event callback.
package push
