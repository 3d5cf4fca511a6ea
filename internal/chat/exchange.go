package chat

import "strings"

// Exchange is one request/response cycle against a thread.
type Exchange struct {
	ThreadID int64
	Text     string
	// Image is an optional base64 data URI.
	Image    string
	Search   bool
	Thinking bool
}

func (e Exchange) Validate() error {
	if isBlank(e.Text) && e.Image == "" {
		return ErrEmptyMessage
	}
	return nil
}

func (e Exchange) initialStatus() string {
	if e.Thinking {
		return "Thinking deeply..."
	}
	return "Thinking..."
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// Session holds the toggles forwarded with every exchange. They are
// session-scoped: a value stays in effect for all later exchanges on the
// same Client until it is changed.
type Session struct {
	Search   bool
	Thinking bool
}

type Phase int

const (
	Idle Phase = iota
	Streaming
)

func (p Phase) String() string {
	if p == Streaming {
		return "streaming"
	}
	return "idle"
}

// State is a snapshot of the client.
type State struct {
	Phase      Phase
	ExchangeID string
	Content    string
	Status     string
	// StatusIcon is the backend's hint for the current status, e.g. "globe".
	StatusIcon string
	Sources    []string
}

type UpdateKind int

const (
	UpdateStarted UpdateKind = iota
	UpdateStatus
	UpdateToken
	UpdateSources
)

func (k UpdateKind) String() string {
	switch k {
	case UpdateStarted:
		return "started"
	case UpdateStatus:
		return "status"
	case UpdateToken:
		return "token"
	case UpdateSources:
		return "sources"
	default:
		return "unknown"
	}
}

// Update is published for every observable change while streaming.
type Update struct {
	Kind  UpdateKind
	State State
}

// Hooks receive the client's state transitions. They run on the exchange's
// goroutine, one at a time and in arrival order, and must not call Cancel
// synchronously.
type Hooks struct {
	OnUpdate   func(Update)
	OnComplete func(Exchange)
	OnError    func(Exchange, error)
}
