package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/rivo/tview"

	"group_chat/internal/model"
	"group_chat/internal/service/session"
)

func (a *App) showCreateGroup() {
	const page = "create-group"

	form := tview.NewForm().
		AddInputField("Group name", "", 40, nil, nil).
		AddInputField("Description", "", 40, nil, nil).
		AddInputField("Member ids (comma-separated)", "", 64, nil, nil)
	form.AddButton("Create", func() {
		name := form.GetFormItem(0).(*tview.InputField).GetText()
		description := form.GetFormItem(1).(*tview.InputField).GetText()
		members := splitList(form.GetFormItem(2).(*tview.InputField).GetText())
		a.closeModal(page)

		go func() {
			group, err := a.session.CreateGroup(context.Background(), name, description, members)
			if err != nil {
				a.printf("[red]Error: create group: %v[-]", err)
				return
			}
			a.printf("Group '%s' created with %d members", group.Name, len(group.Members))
		}()
	})
	form.AddButton("Cancel", func() { a.closeModal(page) })
	form.SetBorder(true).SetTitle(" Create Group ")

	a.showModal(page, form)
}

func (a *App) showPendingInvites() {
	const page = "pending-invites"

	welcomes, err := a.selector.PendingWelcomes(context.Background())
	if err != nil {
		a.printf("[red]Error: list invites: %v[-]", err)
		return
	}
	if len(welcomes) == 0 {
		a.printf("No pending invites")
		return
	}

	list := tview.NewList()
	for i, w := range welcomes {
		list.AddItem(
			fmt.Sprintf("%s (%d members)", w.GroupName, w.MemberCount),
			fmt.Sprintf("invited by %s", shortID(w.Welcomer)),
			rune('1'+i%9), nil)
	}
	list.SetSelectedFunc(func(index int, _, _ string, _ rune) {
		a.closeModal(page)
		w, ok := session.PickWelcome(welcomes, index)
		if !ok {
			return
		}
		go func() {
			if err := a.session.AcceptWelcome(context.Background(), *w); err != nil {
				a.printf("[red]Error: accept invite: %v[-]", err)
				return
			}
			a.printf("Accepted invite to group: %s", w.GroupName)
		}()
	})
	list.SetDoneFunc(func() { a.closeModal(page) })
	list.SetBorder(true).SetTitle(" Pending Invites (esc to cancel) ")

	a.showModal(page, list)
}

func (a *App) showInvite() {
	a.withSelectedGroup("invite-group", func(group *model.Group) {
		const page = "invite-member"

		form := tview.NewForm().
			AddInputField("Member id", "", 64, nil, nil)
		form.AddButton("Invite", func() {
			member := strings.TrimSpace(form.GetFormItem(0).(*tview.InputField).GetText())
			a.closeModal(page)

			go func() {
				if err := a.session.InviteMember(context.Background(), group.MLSGroupID, member); err != nil {
					a.printf("[red]Error: invite member: %v[-]", err)
					return
				}
				a.printf("Invitation sent to %s", shortID(member))
			}()
		})
		form.AddButton("Cancel", func() { a.closeModal(page) })
		form.SetBorder(true).SetTitle(fmt.Sprintf(" Invite to %s ", group.Name))

		a.showModal(page, form)
	})
}

func (a *App) showSendMessage() {
	a.withSelectedGroup("message-group", func(group *model.Group) {
		const page = "send-message"

		form := tview.NewForm().
			AddInputField("Message", "", 64, nil, nil)
		form.AddButton("Send", func() {
			content := form.GetFormItem(0).(*tview.InputField).GetText()
			a.closeModal(page)

			go func() {
				if err := a.session.SendMessage(context.Background(), group.MLSGroupID, content); err != nil {
					a.printf("[red]Error: send message: %v[-]", err)
					return
				}
				a.printf("[yellow]You → %s:[-] %s", group.Name, content)
			}()
		})
		form.AddButton("Cancel", func() { a.closeModal(page) })
		form.SetBorder(true).SetTitle(fmt.Sprintf(" Message %s ", group.Name))

		a.showModal(page, form)
	})
}

func (a *App) showPublishMetadata() {
	const page = "publish-metadata"

	form := tview.NewForm().
		AddInputField("Your name", a.name, 40, nil, nil)
	form.AddButton("Publish", func() {
		name := strings.TrimSpace(form.GetFormItem(0).(*tview.InputField).GetText())
		a.closeModal(page)

		go func() {
			if err := a.session.PublishMetadata(context.Background(), name); err != nil {
				a.printf("[red]Error: publish metadata: %v[-]", err)
				return
			}
			a.printf("Metadata published")
		}()
	})
	form.AddButton("Cancel", func() { a.closeModal(page) })
	form.SetBorder(true).SetTitle(" Publish Metadata ")

	a.showModal(page, form)
}

// withSelectedGroup shows the group picker and calls then with the
// chosen group. Cancelling is a no-op.
func (a *App) withSelectedGroup(page string, then func(*model.Group)) {
	groups, err := a.selector.Groups(context.Background())
	if err != nil {
		a.printf("[red]Error: list groups: %v[-]", err)
		return
	}
	if len(groups) == 0 {
		a.printf("No groups yet")
		return
	}

	list := tview.NewList()
	for i, g := range groups {
		list.AddItem(g.Name, fmt.Sprintf("%d members", len(g.Members)), rune('1'+i%9), nil)
	}
	list.SetSelectedFunc(func(index int, _, _ string, _ rune) {
		a.closeModal(page)
		if group, ok := session.PickGroup(groups, index); ok {
			then(group)
		}
	})
	list.SetDoneFunc(func() { a.closeModal(page) })
	list.SetBorder(true).SetTitle(" Select Group (esc to cancel) ")

	a.showModal(page, list)
}

func (a *App) showModal(name string, primitive tview.Primitive) {
	modal := tview.NewFlex().
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().SetDirection(tview.FlexRow).
			AddItem(nil, 0, 1, false).
			AddItem(primitive, 0, 2, true).
			AddItem(nil, 0, 1, false), 0, 2, true).
		AddItem(nil, 0, 1, false)

	a.pages.AddPage(name, modal, true, true)
	a.app.SetFocus(primitive)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
