package push

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"streamclean/internal/logging"
)

// HTTPDialer opens text/event-stream channels over HTTP.
type HTTPDialer struct {
	client *http.Client
	logger *slog.Logger
}

// NewHTTPDialer builds a dialer. The client must not carry an overall timeout
// since channels stay open for the life of a job; a nil client selects a
// fresh one.
func NewHTTPDialer(client *http.Client, logger *slog.Logger) *HTTPDialer {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPDialer{
		client: client,
		logger: logging.NewComponentLogger(logger, "push"),
	}
}

// Open starts reading the channel in the background and returns immediately.
func (d *HTTPDialer) Open(url string, l Listener) Handle {
	ctx, cancel := context.WithCancel(context.Background())
	h := &httpHandle{url: url, cancel: cancel}
	go d.run(ctx, h, l)
	return h
}

func (d *HTTPDialer) run(ctx context.Context, h *httpHandle, l Listener) {
	requestID := uuid.NewString()
	logger := d.logger.With(slog.String(logging.FieldURL, h.url), slog.String(logging.FieldRequestID, requestID))

	err := d.stream(ctx, h, l, requestID, logger)
	if h.isClosed() {
		logger.Debug("push channel closed")
		return
	}
	if err == nil || errors.Is(err, io.EOF) {
		err = ErrStreamEnded
	}
	logger.Debug("push channel failed", logging.Error(err))
	h.Close()
	l.fail(&ChannelError{URL: h.url, Err: err})
}

func (d *HTTPDialer) stream(ctx context.Context, h *httpHandle, l Listener, requestID string, logger *slog.Logger) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("X-Request-ID", requestID)

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	logger.Debug("push channel open")

	dec := NewDecoder(resp.Body)
	for {
		event, err := dec.Next()
		if err != nil {
			return err
		}
		if h.isClosed() {
			return nil
		}
		if !l.dispatch(event.Type, []byte(event.Data)) {
			logger.Debug("push event ignored", slog.String(logging.FieldEventType, event.Type))
		}
	}
}

type httpHandle struct {
	url    string
	cancel context.CancelFunc
	closed atomic.Bool
	once   sync.Once
}

func (h *httpHandle) Close() {
	h.once.Do(func() {
		h.closed.Store(true)
		h.cancel()
	})
}

func (h *httpHandle) URL() string { return h.url }

func (h *httpHandle) isClosed() bool { return h.closed.Load() }
