package api

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// NewThreadTitle is used when a thread is created implicitly by a first message.
const NewThreadTitle = "New Conversation"

type Thread struct {
	ID        int64                  `json:"id"`
	Title     string                 `json:"title"`
	CreatedAt Timestamp              `json:"created_at"`
	UpdatedAt Timestamp              `json:"updated_at"`
	Metadata  map[string]interface{} `json:"thread_metadata,omitempty"`
	Messages  []Message              `json:"messages"`
	Documents []Document             `json:"documents"`
}

type Message struct {
	ID        int64     `json:"id"`
	ThreadID  int64     `json:"thread_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Sources   []string  `json:"sources"`
	Timestamp Timestamp `json:"timestamp"`
}

type Document struct {
	ID         int64     `json:"id"`
	ThreadID   int64     `json:"thread_id"`
	Filename   string    `json:"filename"`
	FileType   string    `json:"file_type"`
	UploadDate Timestamp `json:"upload_date"`
}

type HealthStatus struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Timestamp accepts RFC 3339 as well as the naive ISO-8601 form the backend
// emits for timezone-less columns. Naive values are taken as UTC.
type Timestamp struct {
	time.Time
}

var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
}

func ParseTimestamp(s string) (Timestamp, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return Timestamp{t}, nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return Timestamp{t}, nil
		}
	}
	return Timestamp{}, fmt.Errorf("unrecognised timestamp %q", s)
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*t = Timestamp{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*t = Timestamp{}
		return nil
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}
