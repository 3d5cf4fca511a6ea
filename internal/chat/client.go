package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/bz888/nebula/internal/logger"
	"github.com/google/uuid"
)

// ClientConfig holds the configuration for the streaming client.
type ClientConfig struct {
	// URL is the absolute chat endpoint.
	URL        string
	HTTPClient *http.Client
	Hooks      Hooks
	Session    Session
}

// Client sends exchanges to the chat endpoint and projects the streamed
// reply into state updates. At most one exchange streams at a time.
type Client struct {
	url   string
	http  *http.Client
	hooks Hooks
	log   *logger.Logger

	mu      sync.Mutex
	session Session
	current *Handle

	// deliverMu serializes hook calls with Cancel, so nothing is published
	// for an exchange once Cancel has returned.
	deliverMu sync.Mutex
}

func NewClient(config ClientConfig) *Client {
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		url:     config.URL,
		http:    httpClient,
		hooks:   config.Hooks,
		log:     logger.NewLogger("chat stream"),
		session: config.Session,
	}
}

// Handle is the cancel handle of one exchange.
type Handle struct {
	id       string
	exchange Exchange
	client   *Client
	cancel   context.CancelFunc
	done     chan struct{}
	err      error

	// guarded by client.mu
	content strings.Builder
	status  string
	icon    string
	sources []string
}

func (h *Handle) ID() string {
	return h.id
}

// Done is closed when the exchange has finished, whatever the outcome.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Err returns the outcome once Done is closed: nil after a done event,
// ErrCanceled after a cancel, otherwise the error passed to OnError.
func (h *Handle) Err() error {
	select {
	case <-h.done:
		return h.err
	default:
		return nil
	}
}

// Cancel aborts the exchange if it is still the active one. It is a no-op
// otherwise, so a stale handle never affects a newer exchange.
func (h *Handle) Cancel() {
	c := h.client
	c.deliverMu.Lock()
	defer c.deliverMu.Unlock()

	c.mu.Lock()
	if c.current != h {
		c.mu.Unlock()
		return
	}
	c.current = nil
	h.reset()
	c.mu.Unlock()

	h.cancel()
	c.log.Info("Exchange canceled: ", h.id)
}

func (h *Handle) reset() {
	h.content.Reset()
	h.status = ""
	h.icon = ""
	h.sources = nil
}

// Cancel aborts the in-flight exchange. Calling it while idle does nothing.
func (c *Client) Cancel() {
	c.mu.Lock()
	h := c.current
	c.mu.Unlock()
	if h != nil {
		h.Cancel()
	}
}

func (c *Client) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// ToggleSearch flips the session search flag and returns the new value.
func (c *Client) ToggleSearch() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session.Search = !c.session.Search
	return c.session.Search
}

// ToggleThinking flips the session deep reasoning flag and returns the new value.
func (c *Client) ToggleThinking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session.Thinking = !c.session.Thinking
	return c.session.Thinking
}

// Compose builds an exchange carrying the current session flags.
func (c *Client) Compose(threadID int64, text, image string) Exchange {
	s := c.Session()
	return Exchange{
		ThreadID: threadID,
		Text:     text,
		Image:    image,
		Search:   s.Search,
		Thinking: s.Thinking,
	}
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *Client) Streaming() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != nil
}

func (c *Client) stateLocked() State {
	h := c.current
	if h == nil {
		return State{Phase: Idle}
	}
	var sources []string
	if len(h.sources) > 0 {
		sources = append(sources, h.sources...)
	}
	return State{
		Phase:      Streaming,
		ExchangeID: h.id,
		Content:    h.content.String(),
		Status:     h.status,
		StatusIcon: h.icon,
		Sources:    sources,
	}
}

// Submit starts an exchange and returns immediately. Empty submissions and
// submissions while another exchange is streaming are rejected before any
// request is made.
func (c *Client) Submit(ctx context.Context, ex Exchange) (*Handle, error) {
	if err := ex.Validate(); err != nil {
		return nil, err
	}
	body, err := json.Marshal(newRequest(ex))
	if err != nil {
		return nil, fmt.Errorf("failed to encode chat request: %w", err)
	}

	c.mu.Lock()
	if c.current != nil {
		c.mu.Unlock()
		return nil, ErrBusy
	}
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{
		id:       uuid.NewString(),
		exchange: ex,
		client:   c,
		cancel:   cancel,
		done:     make(chan struct{}),
		status:   ex.initialStatus(),
	}
	c.current = h
	c.mu.Unlock()

	c.log.Info("Exchange ", h.id, " started on thread ", ex.ThreadID)
	go c.run(ctx, h, body)
	return h, nil
}

func (c *Client) run(ctx context.Context, h *Handle, body []byte) {
	defer close(h.done)

	var err error
	if c.publish(h, UpdateStarted, nil) {
		err = c.stream(ctx, h, body)
	} else {
		err = ErrCanceled
	}
	c.finish(ctx, h, err)
}

func (c *Client) stream(ctx context.Context, h *Handle, body []byte) error {
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return &TransportError{Err: err}
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Accept", "text/event-stream")
	request.Header.Set("Cache-Control", "no-cache")

	response, err := c.http.Do(request)
	if err != nil {
		return &TransportError{Err: err}
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return &TransportError{StatusCode: response.StatusCode, Detail: readDetail(response.Body)}
	}

	decoder := NewDecoder(response.Body)
	for {
		ev, err := decoder.Next()
		if err != nil {
			var protoErr *ProtocolError
			switch {
			case errors.As(err, &protoErr):
				c.log.Warn("Skipping line: ", protoErr)
				continue
			case errors.Is(err, io.EOF):
				return ErrTruncated
			default:
				return &TransportError{Err: err}
			}
		}

		if ev.Terminal() {
			return outcome(ev)
		}

		delivered := true
		switch ev.Type {
		case EventToken:
			delivered = c.publish(h, UpdateToken, func() { h.content.WriteString(ev.Content) })
		case EventStatus:
			delivered = c.publish(h, UpdateStatus, func() {
				h.status = ev.Content
				h.icon = ev.Icon
			})
		case EventSources:
			delivered = c.publish(h, UpdateSources, func() { h.sources = ev.Sources })
		default:
			c.log.Info("Ignoring event type ", ev.Type)
		}
		if !delivered {
			return ErrCanceled
		}
	}
}

// publish applies mutate and notifies OnUpdate while h is still the active
// exchange. It reports false once h has been canceled.
func (c *Client) publish(h *Handle, kind UpdateKind, mutate func()) bool {
	c.deliverMu.Lock()
	defer c.deliverMu.Unlock()

	c.mu.Lock()
	if c.current != h {
		c.mu.Unlock()
		return false
	}
	if mutate != nil {
		mutate()
	}
	state := c.stateLocked()
	c.mu.Unlock()

	if c.hooks.OnUpdate != nil {
		c.hooks.OnUpdate(Update{Kind: kind, State: state})
	}
	return true
}

func (c *Client) finish(ctx context.Context, h *Handle, err error) {
	c.deliverMu.Lock()
	defer c.deliverMu.Unlock()

	c.mu.Lock()
	if c.current != h {
		c.mu.Unlock()
		h.err = ErrCanceled
		return
	}
	c.current = nil
	h.reset()
	c.mu.Unlock()

	// the caller's context was canceled: same clean exit as Cancel
	aborted := err != nil && errors.Is(ctx.Err(), context.Canceled)
	h.cancel()

	switch {
	case aborted:
		h.err = ErrCanceled
		c.log.Info("Exchange ", h.id, " aborted by caller")
	case err == nil:
		c.log.Info("Exchange ", h.id, " completed")
		if c.hooks.OnComplete != nil {
			c.hooks.OnComplete(h.exchange)
		}
	default:
		h.err = err
		c.log.Error("Exchange ", h.id, " failed: ", err)
		if c.hooks.OnError != nil {
			c.hooks.OnError(h.exchange, err)
		}
	}
}

// outcome maps a terminal event to the exchange result.
func outcome(ev Event) error {
	if ev.Type == EventDone {
		return nil
	}
	return &RemoteError{Message: remoteMessage(ev)}
}

func remoteMessage(ev Event) string {
	switch {
	case ev.Error != "":
		return ev.Error
	case ev.Content != "":
		return ev.Content
	default:
		return "unknown stream error"
	}
}

// readDetail extracts the detail field of an error body, falling back to
// the raw text.
func readDetail(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && len(body.Detail) > 0 {
		var detail string
		if err := json.Unmarshal(body.Detail, &detail); err == nil {
			return detail
		}
		return string(body.Detail)
	}
	return strings.TrimSpace(string(raw))
}
