package chat

import (
	"bytes"
	"encoding/json"
	"errors"
)

// EventType discriminates the payload of a data line.
type EventType string

const (
	EventToken   EventType = "token"
	EventStatus  EventType = "status"
	EventSources EventType = "sources"
	EventDone    EventType = "done"
	EventError   EventType = "error"
)

const dataPrefix = "data: "

// Event is one decoded line of the chat stream.
type Event struct {
	Type    EventType `json:"type"`
	Content string    `json:"content,omitempty"`
	Error   string    `json:"error,omitempty"`
	Sources []string  `json:"sources,omitempty"`
	Icon    string    `json:"icon,omitempty"`
}

// Terminal reports whether no further events follow this one.
func (e Event) Terminal() bool {
	return e.Type == EventDone || e.Type == EventError
}

var errMissingType = errors.New("missing type field")

// ParseLine decodes a single line. ok is false for lines that do not carry
// the data prefix, such as blank keep-alives. A data line with an
// undecodable payload returns a *ProtocolError.
func ParseLine(line []byte) (ev Event, ok bool, err error) {
	line = bytes.TrimRight(line, "\r\n")
	if !bytes.HasPrefix(line, []byte(dataPrefix)) {
		return Event{}, false, nil
	}

	payload := line[len(dataPrefix):]
	if err := json.Unmarshal(payload, &ev); err != nil {
		return Event{}, false, &ProtocolError{Line: string(line), Err: err}
	}
	if ev.Type == "" {
		return Event{}, false, &ProtocolError{Line: string(line), Err: errMissingType}
	}
	return ev, true, nil
}

// request is the JSON body posted once per exchange.
type request struct {
	Message      string  `json:"message"`
	ThreadID     int64   `json:"thread_id"`
	EnableSearch bool    `json:"enable_search"`
	ThinkingMode bool    `json:"thinking_mode"`
	Image        *string `json:"image"`
}

// ImagePlaceholder is sent as the message when only an image is attached.
const ImagePlaceholder = "Analyze this image"

func newRequest(ex Exchange) request {
	req := request{
		Message:      ex.Text,
		ThreadID:     ex.ThreadID,
		EnableSearch: ex.Search,
		ThinkingMode: ex.Thinking,
	}
	if ex.Image != "" {
		image := ex.Image
		req.Image = &image
		if isBlank(req.Message) {
			req.Message = ImagePlaceholder
		}
	}
	return req
}
