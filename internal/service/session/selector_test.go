package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"group_chat/internal/model"
)

func TestPickGroup(t *testing.T) {
	groups := []model.Group{
		{MLSGroupID: "g1", Name: "first"},
		{MLSGroupID: "g2", Name: "second"},
	}

	g, ok := PickGroup(groups, 1)
	require.True(t, ok)
	assert.Equal(t, "g2", g.MLSGroupID)

	_, ok = PickGroup(groups, 2)
	assert.False(t, ok)

	_, ok = PickGroup(groups, -1)
	assert.False(t, ok, "negative index means cancelled, never an error")

	_, ok = PickGroup(nil, 0)
	assert.False(t, ok)
}

func TestPickWelcome(t *testing.T) {
	welcomes := []model.PendingWelcome{
		{ID: "w1"},
		{ID: "w2"},
	}

	w, ok := PickWelcome(welcomes, 0)
	require.True(t, ok)
	assert.Equal(t, "w1", w.ID)

	_, ok = PickWelcome(welcomes, 5)
	assert.False(t, ok)

	_, ok = PickWelcome(welcomes, -1)
	assert.False(t, ok)
}
