package session

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"group_chat/internal/model"
)

func TestDispatchDeliversEachArtifactOnce(t *testing.T) {
	ft := newFakeTransport()
	d := NewDispatcher(ft)

	idA, kpA := newMember(t, ft)
	idB, kpB := newMember(t, ft)
	roster := Roster{idA: kpA, idB: kpB}

	rumors := []string{
		welcomeReferencing(t, kpA.TicketID()),
		welcomeReferencing(t, kpB.TicketID()),
	}

	report := d.Dispatch(context.Background(), rumors, roster)
	require.Len(t, report, 2)
	for _, r := range report {
		assert.False(t, r.Skipped)
		assert.NoError(t, r.Err)
	}

	assert.ElementsMatch(t, []string{idA, idB}, ft.wrapRecipients())

	// every wrap went to its owner's advertised encryption key
	for _, w := range ft.wraps {
		want, err := roster[w.recipient].EncryptionKey()
		require.NoError(t, err)
		assert.Equal(t, want, w.encKey)
	}
}

func TestDispatchDropsUnknownTicketButDeliversSiblings(t *testing.T) {
	ft := newFakeTransport()
	d := NewDispatcher(ft)

	idA, kpA := newMember(t, ft)
	roster := Roster{idA: kpA}

	rumors := []string{
		welcomeReferencing(t, "ticket-nobody-knows"),
		welcomeReferencing(t, kpA.TicketID()),
	}

	report := d.Dispatch(context.Background(), rumors, roster)
	require.Len(t, report, 2)
	assert.True(t, report[0].Skipped)
	assert.False(t, report[1].Skipped)
	assert.NoError(t, report[1].Err)

	assert.Equal(t, []string{idA}, ft.wrapRecipients(), "unmatched artifact must never be delivered")
}

func TestDispatchPerItemFailureDoesNotBlockOthers(t *testing.T) {
	ft := newFakeTransport()
	d := NewDispatcher(ft)

	idA, kpA := newMember(t, ft)
	idB, kpB := newMember(t, ft)
	ft.wrapErrFor[idA] = errors.New("relay refused")
	roster := Roster{idA: kpA, idB: kpB}

	rumors := []string{
		welcomeReferencing(t, kpA.TicketID()),
		welcomeReferencing(t, kpB.TicketID()),
	}

	report := d.Dispatch(context.Background(), rumors, roster)
	require.Len(t, report, 2)
	assert.Error(t, report[0].Err)
	assert.NoError(t, report[1].Err)

	assert.Equal(t, []string{idB}, ft.wrapRecipients())
}

func TestDispatchExpirationIsDispatchTimePlusWindow(t *testing.T) {
	ft := newFakeTransport()
	d := NewDispatcher(ft)

	dispatchTime := time.Unix(2_000_000_000, 0)
	d.now = func() time.Time { return dispatchTime }

	idA, kpA := newMember(t, ft)
	roster := Roster{idA: kpA}

	// artifact created an hour before dispatch: the window still counts
	// from dispatch time
	rumor := model.UnsignedEvent{
		CreatedAt: dispatchTime.Add(-time.Hour).Unix(),
		Kind:      model.KindWelcome,
		Tags:      model.Tags{{model.TagEventRef, kpA.TicketID()}},
		Content:   "sealed",
	}
	require.NoError(t, rumor.Finalize())
	raw, err := rumor.JSON()
	require.NoError(t, err)

	d.Dispatch(context.Background(), []string{raw}, roster)
	require.Len(t, ft.wraps, 1)

	want := dispatchTime.Add(30 * 24 * time.Hour).Unix()
	got := model.Tags(ft.wraps[0].tags).Value(model.TagExpiration)
	assert.Equal(t, strconv.FormatInt(want, 10), got)
}

func TestDispatchSharesOneExpirationAcrossBatch(t *testing.T) {
	ft := newFakeTransport()
	d := NewDispatcher(ft)

	idA, kpA := newMember(t, ft)
	idB, kpB := newMember(t, ft)
	roster := Roster{idA: kpA, idB: kpB}

	rumors := []string{
		welcomeReferencing(t, kpA.TicketID()),
		welcomeReferencing(t, kpB.TicketID()),
	}
	d.Dispatch(context.Background(), rumors, roster)
	require.Len(t, ft.wraps, 2)

	first := model.Tags(ft.wraps[0].tags).Value(model.TagExpiration)
	second := model.Tags(ft.wraps[1].tags).Value(model.TagExpiration)
	assert.Equal(t, first, second)
}

func TestDispatchEmptyBatch(t *testing.T) {
	ft := newFakeTransport()
	d := NewDispatcher(ft)

	assert.Nil(t, d.Dispatch(context.Background(), nil, Roster{}))
	assert.Empty(t, ft.wraps)
}
