package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"group_chat/internal/model"
)

func TestResolveReturnsPublishedTicket(t *testing.T) {
	ft := newFakeTransport()
	r := NewResolver(ft)

	id, kp := newMember(t, ft)

	got, err := r.Resolve(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, kp.TicketID(), got.TicketID())
	assert.Equal(t, id, got.Owner())
}

func TestResolveUnknownIdentity(t *testing.T) {
	ft := newFakeTransport()
	r := NewResolver(ft)

	_, err := r.Resolve(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrIdentityNotFound)
}

func TestResolveTransportErrorIsNotFound(t *testing.T) {
	ft := newFakeTransport()
	ft.fetchErr = errors.New("relay timeout")
	r := NewResolver(ft)

	_, err := r.Resolve(context.Background(), "anyone")
	assert.ErrorIs(t, err, ErrIdentityNotFound)
}

func TestResolveSkipsInvalidTickets(t *testing.T) {
	ft := newFakeTransport()
	r := NewResolver(ft)

	id, kp := newMember(t, ft)

	// prepend a tampered copy; the resolver must fall through to the
	// valid one
	bogus := kp.Event
	bogus.Content = "tampered"
	ft.fetchByAuthor[id] = []model.Event{bogus, kp.Event}

	got, err := r.Resolve(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, kp.TicketID(), got.TicketID())
}
