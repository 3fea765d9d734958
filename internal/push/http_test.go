package push_test

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"streamclean/internal/push"
)

func TestHTTPDialerDeliversNamedEvents(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") != "text/event-stream" {
			t.Errorf("unexpected accept header %q", r.Header.Get("Accept"))
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Error("expected request id header")
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: status\ndata: {\"status\":\"processing\"}\n\n")
		fmt.Fprint(w, "event: other\ndata: ignored\n\n")
		fmt.Fprint(w, "event: status\ndata: {\"status\":\"completed\"}\n\n")
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	var mu sync.Mutex
	var got []string
	done := make(chan struct{})
	dialer := push.NewHTTPDialer(nil, nil)
	h := dialer.Open(srv.URL+"/jobs/1/events", push.Listener{
		Events: map[string]func([]byte){
			"status": func(data []byte) {
				mu.Lock()
				got = append(got, string(data))
				n := len(got)
				mu.Unlock()
				if n == 2 {
					close(done)
				}
			},
		},
		OnError: func(err error) { t.Errorf("unexpected channel error: %v", err) },
	})
	defer h.Close()

	if h.URL() != srv.URL+"/jobs/1/events" {
		t.Fatalf("unexpected url %q", h.URL())
	}
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for events")
	}
	h.Close()

	mu.Lock()
	defer mu.Unlock()
	if got[0] != `{"status":"processing"}` || got[1] != `{"status":"completed"}` {
		t.Fatalf("unexpected payloads: %v", got)
	}
}

func TestHTTPDialerReportsStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	errs := make(chan error, 1)
	h := push.NewHTTPDialer(srv.Client(), nil).Open(srv.URL, push.Listener{
		OnError: func(err error) { errs <- err },
	})
	defer h.Close()

	select {
	case err := <-errs:
		var chErr *push.ChannelError
		if !errors.As(err, &chErr) {
			t.Fatalf("expected ChannelError, got %T", err)
		}
		if chErr.URL != srv.URL {
			t.Fatalf("unexpected url %q", chErr.URL)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for channel error")
	}
}

func TestHTTPDialerReportsStreamEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, ": hello\n\n")
	}))
	defer srv.Close()

	errs := make(chan error, 1)
	h := push.NewHTTPDialer(nil, nil).Open(srv.URL, push.Listener{
		OnError: func(err error) { errs <- err },
	})
	defer h.Close()

	select {
	case err := <-errs:
		if !errors.Is(err, push.ErrStreamEnded) {
			t.Fatalf("expected ErrStreamEnded, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for stream end")
	}
}

func TestHTTPDialerCloseSuppressesError(t *testing.T) {
	started := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.(http.Flusher).Flush()
		close(started)
		<-r.Context().Done()
	}))
	defer srv.Close()

	errs := make(chan error, 1)
	h := push.NewHTTPDialer(nil, nil).Open(srv.URL, push.Listener{
		OnError: func(err error) { errs <- err },
	})
	<-started
	h.Close()
	h.Close()

	select {
	case err := <-errs:
		t.Fatalf("closed channel reported error: %v", err)
	case <-time.After(200 * time.Millisecond):
	}
}
