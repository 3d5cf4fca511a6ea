package ui

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bz888/nebula/internal/api"
	"github.com/bz888/nebula/internal/chat"
	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type endlessBackend struct {
	tokens atomic.Int32
	closed chan struct{}
}

// newEndlessBackend streams a token every few milliseconds until the
// request goes away.
func newEndlessBackend(t *testing.T) (*httptest.Server, *endlessBackend) {
	t.Helper()
	b := &endlessBackend{closed: make(chan struct{}, 1)}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		w.Header().Set("Content-Type", "text/event-stream")
		ticker := time.NewTicker(5 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-r.Context().Done():
				b.closed <- struct{}{}
				return
			case <-ticker.C:
				fmt.Fprintf(w, "data: {\"type\":\"token\",\"content\":\"tok \"}\n\n")
				flusher.Flush()
				b.tokens.Add(1)
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv, b
}

type running struct {
	ui     *UI
	screen tcell.SimulationScreen
	client *chat.Client
	ctrl   *Controller
	done   chan error
}

func startStreaming(t *testing.T) (*running, *endlessBackend) {
	t.Helper()
	srv, backend := newEndlessBackend(t)

	u := New(false)
	sim := tcell.NewSimulationScreen("UTF-8")
	u.app.SetScreen(sim)

	client := chat.NewClient(chat.ClientConfig{URL: srv.URL + "/api/chat", Hooks: u.Hooks()})

	threads := new(MockThreadService)
	threads.On("Health").Return(&api.HealthStatus{Status: "ok"}, nil).Maybe()
	threads.On("ListThreads").Return([]api.Thread{}, nil).Maybe()
	threads.On("CreateThread", mock.Anything).Return(&api.Thread{ID: 1, Title: api.NewThreadTitle}, nil).Maybe()
	threads.On("GetThread", mock.Anything).Return(&api.Thread{ID: 1}, nil).Maybe()

	ctrl := NewController(context.Background(), threads, client, u)
	u.Bind(ctrl)

	r := &running{ui: u, screen: sim, client: client, ctrl: ctrl, done: make(chan error, 1)}
	go func() {
		r.done <- u.Run(0)
	}()
	go ctrl.Send("tell me a long story")

	require.Eventually(t, func() bool {
		return backend.tokens.Load() >= 5
	}, 5*time.Second, 5*time.Millisecond)
	require.True(t, client.Streaming())
	return r, backend
}

func (r *running) waitExit(t *testing.T) {
	t.Helper()
	select {
	case err := <-r.done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("application did not exit")
	}
}

func TestCancelAfterAppStoppedMidStream(t *testing.T) {
	r, backend := startStreaming(t)

	r.ui.app.Stop()
	r.waitExit(t)

	// tokens keep arriving after the event loop is gone
	seen := backend.tokens.Load()
	require.Eventually(t, func() bool {
		return backend.tokens.Load() > seen+3
	}, 2*time.Second, 5*time.Millisecond)

	canceled := make(chan struct{})
	go func() {
		r.client.Cancel()
		close(canceled)
	}()
	select {
	case <-canceled:
	case <-time.After(2 * time.Second):
		t.Fatal("Cancel blocked after the application stopped")
	}
	assert.False(t, r.client.Streaming())

	select {
	case <-backend.closed:
	case <-time.After(2 * time.Second):
		t.Fatal("request was not aborted")
	}
}

func TestCtrlCCancelsStreamAndExits(t *testing.T) {
	r, backend := startStreaming(t)

	r.screen.InjectKey(tcell.KeyCtrlC, 0, tcell.ModCtrl)
	r.waitExit(t)

	assert.False(t, r.client.Streaming())
	select {
	case <-backend.closed:
	case <-time.After(2 * time.Second):
		t.Fatal("request was not aborted")
	}
}

func TestQueueAfterStopReturns(t *testing.T) {
	u := New(false)
	close(u.stopped)

	ran := false
	u.queue(func() { ran = true })
	assert.False(t, ran)
}
