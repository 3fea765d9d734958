package push

import (
	"bufio"
	"io"
	"strings"
)

const maxEventLine = 1 << 20

// Event is one dispatched text/event-stream message.
type Event struct {
	Type string
	Data string
	ID   string
}

// Decoder reads events from a text/event-stream body. Lines may end in LF or
// CRLF. Data lines of one event are joined with "\n"; comments and retry
// hints are skipped.
type Decoder struct {
	scanner *bufio.Scanner
	lastID  string
}

// NewDecoder returns a decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxEventLine)
	return &Decoder{scanner: scanner}
}

// Next returns the next event. It returns io.EOF when the stream ends cleanly
// between events; a partial trailing event is discarded.
func (d *Decoder) Next() (Event, error) {
	var (
		eventType string
		data      strings.Builder
		hasData   bool
	)
	for d.scanner.Scan() {
		line := d.scanner.Text()
		if line == "" {
			if !hasData {
				eventType = ""
				continue
			}
			if eventType == "" {
				eventType = "message"
			}
			return Event{Type: eventType, Data: data.String(), ID: d.lastID}, nil
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			eventType = value
		case "data":
			if hasData {
				data.WriteByte('\n')
			}
			data.WriteString(value)
			hasData = true
		case "id":
			if !strings.ContainsRune(value, 0) {
				d.lastID = value
			}
		}
	}
	if err := d.scanner.Err(); err != nil {
		return Event{}, err
	}
	return Event{}, io.EOF
}
