package ui

import (
	"fmt"
	"strings"
	"sync"

	"github.com/bz888/nebula/internal/api"
	"github.com/bz888/nebula/internal/chat"
	"github.com/bz888/nebula/internal/logger"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

const (
	mainPage    = "main"
	threadsPage = "threadsModal"
	confirmPage = "confirmModal"
	streamRows  = 10
)

var statusIcons = map[string]string{
	"file":  "📄",
	"globe": "🌐",
	"brain": "🧠",
}

// UI is the terminal front end.
type UI struct {
	app          *tview.Application
	pages        *tview.Pages
	mainFlex     *tview.Flex
	chatFlex     *tview.Flex
	textView     *tview.TextView
	streamView   *tview.TextView
	statusBar    *tview.TextView
	textArea     *tview.TextArea
	debugConsole *tview.TextView

	ctrl *Controller
	log  *logger.Logger

	// touched only on the UI goroutine
	debugShown bool
	streaming  bool

	quitOnce sync.Once
	// stopped is closed once Run has returned
	stopped chan struct{}
}

func New(dev bool) *UI {
	u := &UI{app: tview.NewApplication(), stopped: make(chan struct{})}
	u.app.EnablePaste(true)
	u.app.EnableMouse(true)

	u.debugConsole = u.initDebugConsole()
	u.textView = u.initChatViewer()
	u.streamView = u.initStreamView()
	u.statusBar = tview.NewTextView().SetDynamicColors(true)
	u.textArea = u.initChatInput()

	u.chatFlex = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(u.textView, 0, 1, false).
		AddItem(u.streamView, 0, 0, false).
		AddItem(u.statusBar, 1, 0, false).
		AddItem(u.textArea, 6, 0, true)
	u.mainFlex = tview.NewFlex().
		AddItem(u.chatFlex, 0, 2, true)
	if dev {
		u.mainFlex.AddItem(u.debugConsole, 0, 1, false)
		u.debugShown = true
	}
	u.pages = tview.NewPages().AddPage(mainPage, u.mainFlex, true, true)
	return u
}

func (u *UI) initChatViewer() *tview.TextView {
	textView := tview.NewTextView().
		SetDynamicColors(true).
		SetRegions(true).
		SetWordWrap(true).
		SetChangedFunc(func() {
			u.app.Draw()
		})

	textView.SetTitle("Conversation").SetBorder(true)
	textView.SetScrollable(true)
	textView.ScrollToEnd()
	return textView
}

func (u *UI) initStreamView() *tview.TextView {
	streamView := tview.NewTextView().
		SetDynamicColors(true).
		SetWordWrap(true)
	streamView.SetTitle("Assistant").SetBorder(true)
	streamView.ScrollToEnd()
	return streamView
}

func (u *UI) initChatInput() *tview.TextArea {
	textArea := tview.NewTextArea()
	textArea.SetTitle("Question").SetBorder(true)
	textArea.SetPlaceholder("Type a message, /help for commands")
	return textArea
}

func (u *UI) initDebugConsole() *tview.TextView {
	console := tview.NewTextView().
		SetDynamicColors(true).
		SetRegions(true).
		SetWordWrap(true).
		SetChangedFunc(func() {
			u.app.Draw()
		})

	console.SetTitle("Debugger").SetBorder(true)
	console.ScrollToEnd()
	return console
}

// DebugConsole is the view the logger mirrors into in dev mode.
func (u *UI) DebugConsole() *tview.TextView {
	return u.debugConsole
}

// Hooks renders stream updates. Follow-up work runs on its own goroutine so
// the stream is never held up by backend calls.
func (u *UI) Hooks() chat.Hooks {
	return chat.Hooks{
		OnUpdate: func(update chat.Update) {
			u.queue(func() {
				u.renderStream(update.State)
			})
		},
		OnComplete: func(ex chat.Exchange) {
			go u.ctrl.Completed(ex)
		},
		OnError: func(ex chat.Exchange, err error) {
			go u.ctrl.Failed(ex, err)
		},
	}
}

// Bind attaches the controller. It must be called before Run.
func (u *UI) Bind(ctrl *Controller) {
	u.ctrl = ctrl
	u.log = logger.NewLogger("views")
}

// Run blocks until the application exits.
func (u *UI) Run(threadID int64) error {
	defer close(u.stopped)
	u.setInputCapture()
	go u.ctrl.Start(threadID)

	return u.app.SetRoot(u.pages, true).SetFocus(u.textArea).Run()
}

// queue runs f on the UI goroutine and waits for it. Once the application
// has stopped, f is dropped so callers never wait on a dead event loop.
// It must not be called from the UI goroutine.
func (u *UI) queue(f func()) {
	select {
	case <-u.stopped:
		return
	default:
	}

	done := make(chan struct{})
	go func() {
		u.app.QueueUpdateDraw(f)
		close(done)
	}()
	select {
	case <-done:
	case <-u.stopped:
	}
}

func (u *UI) setInputCapture() {
	// Ctrl-C goes through the controller so a streaming reply is canceled
	// before the application stops.
	u.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyCtrlC {
			go u.ctrl.Quit()
			return nil
		}
		return event
	})

	u.textView.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyEnter:
			u.app.SetFocus(u.textArea)
		}
		return event
	})

	u.textArea.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyESC:
			if u.streaming {
				go u.ctrl.Stop()
				return nil
			}
			if u.textView.GetText(false) != "" {
				u.app.SetFocus(u.textView)
			}
		case tcell.KeyEnter:
			if event.Modifiers()&tcell.ModAlt != 0 {
				return event
			}
			content := u.textArea.GetText()
			if strings.TrimSpace(content) == "" {
				return nil
			}
			if name, _, ok := parseCommand(content); ok && name == "/stop" {
				u.textArea.SetText("", true)
				go u.ctrl.Handle(content)
				return nil
			}
			if u.streaming {
				return nil
			}
			u.textArea.SetText("", true)
			u.textArea.SetDisabled(true)
			go func() {
				u.ctrl.Handle(content)
				u.queue(func() {
					if !u.streaming {
						u.textArea.SetDisabled(false)
					}
				})
			}()
			return nil
		}
		return event
	})
}

func (u *UI) renderStream(state chat.State) {
	if state.Phase != chat.Streaming {
		return
	}
	u.streamView.Clear()
	if state.Status != "" {
		if icon, ok := statusIcons[state.StatusIcon]; ok {
			fmt.Fprintf(u.streamView, "%s ", icon)
		}
		fmt.Fprintf(u.streamView, "[yellow::i]%s[-::-]\n", tview.Escape(state.Status))
	}
	fmt.Fprint(u.streamView, tview.Escape(state.Content))
	if len(state.Sources) > 0 {
		fmt.Fprintf(u.streamView, "\n[gray]Sources: %s[-]", tview.Escape(strings.Join(state.Sources, ", ")))
	}
	u.streamView.ScrollToEnd()
}

func (u *UI) ShowThread(thread *api.Thread) {
	u.queue(func() {
		u.textView.Clear()
		if thread == nil {
			u.textView.SetTitle("Conversation")
			return
		}
		u.textView.SetTitle(fmt.Sprintf("%s (#%d)", thread.Title, thread.ID))
		writeThread(u.textView, thread)
		u.textView.ScrollToEnd()
	})
}

func writeThread(w *tview.TextView, thread *api.Thread) {
	if len(thread.Documents) > 0 {
		names := make([]string, 0, len(thread.Documents))
		for _, doc := range thread.Documents {
			names = append(names, doc.Filename)
		}
		fmt.Fprintf(w, "[gray]Documents: %s[-]\n", tview.Escape(strings.Join(names, ", ")))
	}
	for _, msg := range thread.Messages {
		if msg.Role == api.RoleUser {
			fmt.Fprintln(w, "\n[red::]You:[-]")
		} else {
			fmt.Fprintln(w, "\n[green::]Bot:[-]")
		}
		fmt.Fprintln(w, tview.Escape(msg.Content))
		if len(msg.Sources) > 0 {
			fmt.Fprintf(w, "[gray]Sources: %s[-]\n", tview.Escape(strings.Join(msg.Sources, ", ")))
		}
	}
}

func (u *UI) ShowThreads(threads []api.Thread, current int64) {
	u.queue(func() {
		list := tview.NewList()
		list.SetBorder(true).SetTitle("Threads")
		for i, thread := range threads {
			id := thread.ID
			secondary := thread.UpdatedAt.Local().Format("2006-01-02 15:04")
			if id == current {
				secondary = "Current thread"
			}
			var shortcut rune
			if i < 9 {
				shortcut = '1' + rune(i)
			}
			list.AddItem(thread.Title, secondary, shortcut, func() {
				u.closeModal(threadsPage)
				if id != current {
					go u.ctrl.OpenThread(id)
				}
			})
		}
		list.AddItem("Back", "", 'q', func() {
			u.closeModal(threadsPage)
		})
		list.SetDoneFunc(func() {
			u.closeModal(threadsPage)
		})

		u.pages.AddPage(threadsPage, createModal(list, 50, 20), true, true)
		u.app.SetFocus(list)
	})
}

func createModal(p tview.Primitive, width, height int) tview.Primitive {
	return tview.NewFlex().
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().SetDirection(tview.FlexRow).
			AddItem(nil, 0, 1, false).
			AddItem(p, height, 1, true).
			AddItem(nil, 0, 1, false), width, 1, true).
		AddItem(nil, 0, 1, false)
}

func (u *UI) closeModal(name string) {
	u.pages.RemovePage(name)
	u.app.SetFocus(u.textArea)
}

func (u *UI) ShowUserMessage(text string, image bool) {
	u.queue(func() {
		fmt.Fprintln(u.textView, "\n[red::]You:[-]")
		if image {
			fmt.Fprintln(u.textView, "[gray](image attached)[-]")
		}
		fmt.Fprintln(u.textView, tview.Escape(text))
		u.textView.ScrollToEnd()
	})
}

func (u *UI) ShowSession(session chat.Session, image string) {
	text := fmt.Sprintf(" search: %s  think: %s", onOff(session.Search), onOff(session.Thinking))
	if image != "" {
		text += fmt.Sprintf("  image: %s", tview.Escape(image))
	}
	text += "  [gray]/help for commands[-]"
	u.queue(func() {
		u.statusBar.SetText(text)
	})
}

func (u *UI) Confirm(question string, onConfirm func()) {
	u.queue(func() {
		modal := tview.NewModal().
			SetText(question).
			AddButtons([]string{"Delete", "Cancel"}).
			SetDoneFunc(func(buttonIndex int, buttonLabel string) {
				u.closeModal(confirmPage)
				if buttonLabel == "Delete" {
					go onConfirm()
				}
			})
		u.pages.AddPage(confirmPage, modal, false, true)
		u.app.SetFocus(modal)
	})
}

func (u *UI) StreamStarted() {
	u.queue(func() {
		u.streaming = true
		u.streamView.Clear()
		u.chatFlex.ResizeItem(u.streamView, streamRows, 0)
		u.textArea.SetDisabled(true)
	})
}

func (u *UI) StreamStopped() {
	u.queue(func() {
		u.streaming = false
		u.streamView.Clear()
		u.chatFlex.ResizeItem(u.streamView, 0, 0)
		u.textArea.SetDisabled(false)
		u.app.SetFocus(u.textArea)
	})
}

func (u *UI) Notice(text string) {
	u.queue(func() {
		fmt.Fprintf(u.textView, "\n[blue::]%s[-]\n", tview.Escape(strings.TrimRight(text, "\n")))
		u.textView.ScrollToEnd()
	})
}

func (u *UI) Failure(err error) {
	if u.log != nil {
		u.log.Error(err)
	}
	u.queue(func() {
		fmt.Fprintf(u.textView, "\n[red]Error: %s[-]\n", tview.Escape(err.Error()))
		u.textView.ScrollToEnd()
	})
}

func (u *UI) ToggleDebug() {
	u.queue(func() {
		if u.debugShown {
			u.mainFlex.RemoveItem(u.debugConsole)
			fmt.Fprintf(u.textView, "\nDebug console disabled\n")
		} else {
			u.mainFlex.AddItem(u.debugConsole, 0, 1, false)
			fmt.Fprintf(u.textView, "\nDebug console enabled\n")
		}
		u.debugShown = !u.debugShown
	})
}

func (u *UI) Quit() {
	u.quitOnce.Do(func() {
		u.queue(func() {
			fmt.Fprintf(u.textView, "Bye bye\n")
		})
		u.app.Stop()
	})
}
