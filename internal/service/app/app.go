package app

import (
	"context"
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"go.uber.org/zap"

	"group_chat/internal/model"
	"group_chat/internal/service/session"
	"group_chat/internal/transport"
	"group_chat/internal/utils/log"
)

type (
	// App is the interactive menu surface over a session. All protocol
	// logic lives in the session layer; this only collects input and
	// renders results.
	App struct {
		app    *tview.Application
		pages  *tview.Pages
		menu   *tview.List
		output *tview.TextView

		client   *transport.Client
		session  *session.Session
		selector *session.Selector
		name     string
	}
)

func NewApp(client *transport.Client, sess *session.Session, selector *session.Selector, name string) *App {
	return &App{
		app:      tview.NewApplication(),
		client:   client,
		session:  sess,
		selector: selector,
		name:     name,
	}
}

// Run blocks until the user exits. Operation errors are displayed and
// the loop continues; only startup failures are fatal to the process.
func (a *App) Run(ctx context.Context) error {
	a.output = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	a.output.SetBorder(true).SetTitle(fmt.Sprintf(" %s ", shortID(a.session.Identity())))

	a.menu = tview.NewList().
		AddItem("Generate key package", "publish a fresh admission ticket", '1', func() { a.runOp("publish key package", a.session.PublishKeyPackage) }).
		AddItem("Create group", "start a new group with members", '2', a.showCreateGroup).
		AddItem("View pending invites", "accept a received group invite", '3', a.showPendingInvites).
		AddItem("Invite to group", "add a member to an existing group", '4', a.showInvite).
		AddItem("Send message", "post a message to a group", '5', a.showSendMessage).
		AddItem("Publish metadata", "announce profile and relay lists", '6', a.showPublishMetadata).
		AddItem("Exit", "", '7', func() { a.app.Stop() })
	a.menu.SetBorder(true).SetTitle(" Main Menu ")

	layout := tview.NewFlex().
		AddItem(a.menu, 40, 0, true).
		AddItem(a.output, 0, 1, false)

	a.pages = tview.NewPages().
		AddPage("main", layout, true, true)

	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyCtrlC {
			a.app.Stop()
			return nil
		}
		return event
	})

	go a.receiveLoop(ctx)

	if err := a.app.SetRoot(a.pages, true).SetFocus(a.menu).Run(); err != nil {
		return fmt.Errorf("run ui: %w", err)
	}
	return nil
}

// receiveLoop feeds relay-pushed wraps and live group messages through
// the session's incoming path.
func (a *App) receiveLoop(ctx context.Context) {
	messages, err := a.client.Subscribe(ctx, transport.Filter{Kinds: []int{model.KindGroupMessage}})
	if err != nil {
		log.Error("subscribe to group messages failed", zap.Error(err))
		a.printf("[red]cannot subscribe to group messages: %v", err)
		return
	}

	for {
		var ev model.Event
		var ok bool
		select {
		case ev, ok = <-a.client.Inbox():
		case ev, ok = <-messages:
		case <-ctx.Done():
			return
		}
		if !ok {
			return
		}

		msg, err := a.session.HandleIncoming(ctx, ev)
		if err != nil {
			log.Error("handle incoming event failed", zap.String("id", ev.ID), zap.Error(err))
			continue
		}
		switch {
		case msg != nil && msg.Sender != a.session.Identity():
			a.printf("[green]%s:[-] %s", shortID(msg.Sender), msg.Content)
		case msg == nil && ev.Kind == model.KindGiftWrap:
			a.printf("[yellow]You have a new pending invite (menu 3 to review)[-]")
		}
	}
}

// runOp executes a session operation off the UI goroutine and reports
// its outcome in the output pane.
func (a *App) runOp(label string, op func(context.Context) error) {
	go func() {
		if err := op(context.Background()); err != nil {
			a.printf("[red]Error: %s: %v[-]", label, err)
			return
		}
		a.printf("[white]%s: done[-]", label)
	}()
}

func (a *App) printf(format string, args ...any) {
	a.app.QueueUpdateDraw(func() {
		fmt.Fprintf(a.output, format+"\n", args...)
		a.output.ScrollToEnd()
	})
}

func (a *App) closeModal(name string) {
	a.pages.RemovePage(name)
	a.app.SetFocus(a.menu)
}

func shortID(identifier string) string {
	if len(identifier) <= 12 {
		return identifier
	}
	return identifier[:12] + "…"
}
