package ui

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bz888/nebula/internal/api"
	"github.com/bz888/nebula/internal/chat"
	"github.com/bz888/nebula/internal/logger"
)

const (
	requestTimeout = 30 * time.Second
	uploadTimeout  = 2 * time.Minute
)

// ThreadService is the collaborator backend. *api.Client implements it.
type ThreadService interface {
	Health(ctx context.Context) (*api.HealthStatus, error)
	ListThreads(ctx context.Context) ([]api.Thread, error)
	CreateThread(ctx context.Context, title string) (*api.Thread, error)
	GetThread(ctx context.Context, id int64) (*api.Thread, error)
	RenameThread(ctx context.Context, id int64, title string) (*api.Thread, error)
	DeleteThread(ctx context.Context, id int64) error
	UploadDocument(ctx context.Context, threadID int64, path string) (*api.Document, error)
	ListDocuments(ctx context.Context, threadID int64) ([]api.Document, error)
	DeleteDocument(ctx context.Context, id int64) error
	MaxUploadSize() int64
}

// ChatService streams replies. *chat.Client implements it.
type ChatService interface {
	Submit(ctx context.Context, ex chat.Exchange) (*chat.Handle, error)
	Cancel()
	Compose(threadID int64, text, image string) chat.Exchange
	Session() chat.Session
	ToggleSearch() bool
	ToggleThinking() bool
	Streaming() bool
}

// Screen renders controller output. Implementations must be safe to call
// from any goroutine.
type Screen interface {
	ShowThread(thread *api.Thread)
	ShowThreads(threads []api.Thread, current int64)
	ShowUserMessage(text string, image bool)
	// ShowSession shows the toggles and the name of a pending image, if any.
	ShowSession(session chat.Session, image string)
	// Confirm asks a yes/no question; onConfirm runs off the UI goroutine.
	Confirm(question string, onConfirm func())
	StreamStarted()
	StreamStopped()
	Notice(text string)
	Failure(err error)
	ToggleDebug()
	Quit()
}

var errNoThread = errors.New("no thread selected, use /threads or /new")

// Controller runs slash commands and submissions against the backend.
type Controller struct {
	threads ThreadService
	chat    ChatService
	screen  Screen
	log     *logger.Logger
	ctx     context.Context

	mu      sync.Mutex
	current *api.Thread
	list    []api.Thread
	image   string
	// imageName is shown back to the user while an image is pending
	imageName string
}

func NewController(ctx context.Context, threads ThreadService, chatService ChatService, screen Screen) *Controller {
	return &Controller{
		threads: threads,
		chat:    chatService,
		screen:  screen,
		log:     logger.NewLogger("controller"),
		ctx:     ctx,
	}
}

// Start checks the backend and opens threadID, or the most recently
// updated thread when threadID is zero.
func (c *Controller) Start(threadID int64) {
	ctx, cancel := context.WithTimeout(c.ctx, requestTimeout)
	defer cancel()

	if _, err := c.threads.Health(ctx); err != nil {
		c.log.Warn("Health check failed: ", err)
		c.screen.Failure(fmt.Errorf("backend unreachable: %w", err))
	}
	c.showSession()
	threads := c.refreshList()
	switch {
	case threadID > 0:
		c.OpenThread(threadID)
	case len(threads) > 0:
		c.OpenThread(threads[0].ID)
	}
}

// Handle runs one line of user input. It blocks on network calls and is
// meant to run off the UI goroutine.
func (c *Controller) Handle(input string) {
	name, arg, ok := parseCommand(input)
	if !ok {
		c.Send(input)
		return
	}
	c.log.Info("Command ", name, " ", arg)

	switch name {
	case "/help":
		c.screen.Notice(helpText())
	case "/bye", "/quit", "/exit":
		c.Quit()
	case "/debug":
		c.screen.ToggleDebug()
	case "/threads":
		c.showThreads()
	case "/new":
		c.newThread(arg)
	case "/rename":
		c.rename(arg)
	case "/delete":
		c.deleteThread()
	case "/docs":
		c.listDocuments()
	case "/rmdoc":
		c.removeDocument(arg)
	case "/upload":
		c.upload(arg)
	case "/image":
		c.attachImage(arg)
	case "/search":
		on := c.chat.ToggleSearch()
		c.screen.Notice("Web search " + onOff(on))
		c.showSession()
	case "/think":
		on := c.chat.ToggleThinking()
		c.screen.Notice("Deep reasoning " + onOff(on))
		c.showSession()
	case "/stop":
		c.Stop()
	default:
		c.screen.Failure(fmt.Errorf("unknown command %s, try /help", name))
	}
}

// Send submits a message to the current thread, creating one first when
// none is selected. A pending image is attached and then cleared.
func (c *Controller) Send(text string) {
	if c.chat.Streaming() {
		c.screen.Failure(chat.ErrBusy)
		return
	}

	c.mu.Lock()
	image := c.image
	c.mu.Unlock()

	if strings.TrimSpace(text) == "" && image == "" {
		return
	}

	thread, err := c.ensureThread()
	if err != nil {
		c.screen.Failure(err)
		return
	}

	ex := c.chat.Compose(thread.ID, text, image)
	shown := text
	if strings.TrimSpace(shown) == "" {
		shown = chat.ImagePlaceholder
	}
	c.screen.ShowUserMessage(shown, image != "")

	// the pane opens first so a fast completion cannot be overtaken
	c.screen.StreamStarted()
	if _, err := c.chat.Submit(c.ctx, ex); err != nil {
		c.log.Warn("Submit rejected: ", err)
		c.screen.StreamStopped()
		c.screen.Failure(err)
		return
	}

	c.mu.Lock()
	c.image, c.imageName = "", ""
	c.mu.Unlock()
	c.showSession()
}

// Quit cancels any streaming reply before closing the screen, so nothing
// is left waiting on a stopped UI.
func (c *Controller) Quit() {
	c.chat.Cancel()
	c.screen.Quit()
}

// Stop cancels the streaming reply, if any.
func (c *Controller) Stop() {
	if !c.chat.Streaming() {
		return
	}
	c.chat.Cancel()
	c.screen.StreamStopped()
	c.screen.Notice("Stopped")
}

// Completed refreshes the thread once a reply has been persisted.
func (c *Controller) Completed(ex chat.Exchange) {
	c.screen.StreamStopped()
	c.reload(ex.ThreadID)
	c.refreshList()
}

// Failed reports a stream failure and refreshes the thread, since the
// backend may already have stored the user message.
func (c *Controller) Failed(ex chat.Exchange, err error) {
	c.screen.StreamStopped()
	c.screen.Failure(err)
	c.reload(ex.ThreadID)
}

// OpenThread loads a thread and makes it current.
func (c *Controller) OpenThread(id int64) {
	if c.chat.Streaming() {
		c.screen.Failure(chat.ErrBusy)
		return
	}
	ctx, cancel := context.WithTimeout(c.ctx, requestTimeout)
	defer cancel()

	thread, err := c.threads.GetThread(ctx, id)
	if err != nil {
		c.screen.Failure(err)
		return
	}
	c.setCurrent(thread)
	c.screen.ShowThread(thread)
}

// Current returns the id of the current thread, or 0.
func (c *Controller) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return 0
	}
	return c.current.ID
}

func (c *Controller) setCurrent(thread *api.Thread) {
	c.mu.Lock()
	c.current = thread
	c.mu.Unlock()
}

func (c *Controller) ensureThread() (*api.Thread, error) {
	c.mu.Lock()
	current := c.current
	c.mu.Unlock()
	if current != nil {
		return current, nil
	}

	ctx, cancel := context.WithTimeout(c.ctx, requestTimeout)
	defer cancel()
	thread, err := c.threads.CreateThread(ctx, api.NewThreadTitle)
	if err != nil {
		return nil, fmt.Errorf("failed to create thread: %w", err)
	}
	c.setCurrent(thread)
	c.screen.ShowThread(thread)
	return thread, nil
}

func (c *Controller) reload(id int64) {
	if id != c.Current() {
		return
	}
	ctx, cancel := context.WithTimeout(c.ctx, requestTimeout)
	defer cancel()

	thread, err := c.threads.GetThread(ctx, id)
	if err != nil {
		c.log.Error("Failed to reload thread ", id, ": ", err)
		if api.IsNotFound(err) {
			c.setCurrent(nil)
		}
		c.screen.Failure(err)
		return
	}
	c.setCurrent(thread)
	c.screen.ShowThread(thread)
}

func (c *Controller) refreshList() []api.Thread {
	ctx, cancel := context.WithTimeout(c.ctx, requestTimeout)
	defer cancel()

	threads, err := c.threads.ListThreads(ctx)
	if err != nil {
		c.log.Error("Failed to list threads: ", err)
		return nil
	}
	c.mu.Lock()
	c.list = threads
	c.mu.Unlock()
	return threads
}

func (c *Controller) showThreads() {
	threads := c.refreshList()
	if threads == nil {
		c.mu.Lock()
		threads = c.list
		c.mu.Unlock()
	}
	if len(threads) == 0 {
		c.screen.Notice("No threads yet, send a message or use /new")
		return
	}
	c.screen.ShowThreads(threads, c.Current())
}

func (c *Controller) newThread(title string) {
	if c.chat.Streaming() {
		c.screen.Failure(chat.ErrBusy)
		return
	}
	if title == "" {
		title = api.NewThreadTitle
	}
	ctx, cancel := context.WithTimeout(c.ctx, requestTimeout)
	defer cancel()

	thread, err := c.threads.CreateThread(ctx, title)
	if err != nil {
		c.screen.Failure(err)
		return
	}
	c.setCurrent(thread)
	c.screen.ShowThread(thread)
	c.refreshList()
}

func (c *Controller) rename(title string) {
	id := c.Current()
	if id == 0 {
		c.screen.Failure(errNoThread)
		return
	}
	ctx, cancel := context.WithTimeout(c.ctx, requestTimeout)
	defer cancel()

	if _, err := c.threads.RenameThread(ctx, id, title); err != nil {
		c.screen.Failure(err)
		return
	}
	c.reload(id)
	c.refreshList()
}

func (c *Controller) deleteThread() {
	id := c.Current()
	if id == 0 {
		c.screen.Failure(errNoThread)
		return
	}
	if c.chat.Streaming() {
		c.screen.Failure(chat.ErrBusy)
		return
	}
	c.screen.Confirm("Are you sure you want to delete this thread?", func() {
		c.confirmDelete(id)
	})
}

func (c *Controller) confirmDelete(id int64) {
	if c.chat.Streaming() {
		c.screen.Failure(chat.ErrBusy)
		return
	}
	ctx, cancel := context.WithTimeout(c.ctx, requestTimeout)
	defer cancel()

	if err := c.threads.DeleteThread(ctx, id); err != nil {
		c.screen.Failure(err)
		return
	}
	if c.Current() == id {
		c.setCurrent(nil)
		c.screen.ShowThread(nil)
	}
	c.screen.Notice(fmt.Sprintf("Deleted thread %d", id))
	c.refreshList()
}

func (c *Controller) listDocuments() {
	id := c.Current()
	if id == 0 {
		c.screen.Failure(errNoThread)
		return
	}
	ctx, cancel := context.WithTimeout(c.ctx, requestTimeout)
	defer cancel()

	docs, err := c.threads.ListDocuments(ctx, id)
	if err != nil {
		c.screen.Failure(err)
		return
	}
	if len(docs) == 0 {
		c.screen.Notice("No documents in this thread")
		return
	}
	var b strings.Builder
	b.WriteString("Documents:\n")
	for _, doc := range docs {
		fmt.Fprintf(&b, "- [%d] %s (%s, %s)\n", doc.ID, doc.Filename, doc.FileType, doc.UploadDate.Local().Format("2006-01-02 15:04"))
	}
	c.screen.Notice(b.String())
}

func (c *Controller) removeDocument(arg string) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		c.screen.Failure(errors.New("usage: /rmdoc <id>, ids are listed by /docs"))
		return
	}
	current := c.Current()
	if current == 0 {
		c.screen.Failure(errNoThread)
		return
	}
	ctx, cancel := context.WithTimeout(c.ctx, requestTimeout)
	defer cancel()

	if err := c.threads.DeleteDocument(ctx, id); err != nil {
		c.screen.Failure(err)
		return
	}
	c.screen.Notice(fmt.Sprintf("Deleted document %d", id))
	c.reload(current)
}

func (c *Controller) upload(path string) {
	if path == "" {
		c.screen.Failure(errors.New("usage: /upload <path>"))
		return
	}
	if api.IsImage(path) {
		c.attachImage(path)
		return
	}
	if _, err := api.ValidateDocument(path, c.threads.MaxUploadSize()); err != nil {
		c.screen.Failure(err)
		return
	}

	thread, err := c.ensureThread()
	if err != nil {
		c.screen.Failure(err)
		return
	}
	c.screen.Notice("Uploading " + filepath.Base(path) + "...")

	ctx, cancel := context.WithTimeout(c.ctx, uploadTimeout)
	defer cancel()
	doc, err := c.threads.UploadDocument(ctx, thread.ID, path)
	if err != nil {
		c.screen.Failure(err)
		return
	}
	c.screen.Notice(fmt.Sprintf("Uploaded %s", doc.Filename))
	c.reload(thread.ID)
}

func (c *Controller) attachImage(path string) {
	if path == "" {
		c.screen.Failure(errors.New("usage: /image <path>"))
		return
	}
	uri, err := api.LoadImage(path, c.threads.MaxUploadSize())
	if err != nil {
		c.screen.Failure(err)
		return
	}
	name := filepath.Base(path)
	c.mu.Lock()
	c.image, c.imageName = uri, name
	c.mu.Unlock()
	c.screen.Notice("Attached " + name + ", it will be sent with your next message")
	c.showSession()
}

func (c *Controller) showSession() {
	c.screen.ShowSession(c.chat.Session(), c.PendingImage())
}

// PendingImage returns the name of the image waiting to be sent.
func (c *Controller) PendingImage() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.imageName
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
