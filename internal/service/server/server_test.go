package server

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"group_chat/internal/transport"
)

func newTestClient(pubkey string) *client {
	return &client{
		pubkey: pubkey,
		subs:   make(map[string]*transport.Filter),
	}
}

func TestRegisterRejectsDuplicatePubkey(t *testing.T) {
	s := NewHttpServer("", nil, nil)

	first := newTestClient("alice")
	require.True(t, s.register(first))
	assert.False(t, s.register(newTestClient("alice")))

	// the original routing entry survives the rejected attempt
	s.mu.Lock()
	assert.Same(t, first, s.clients["alice"])
	s.mu.Unlock()

	assert.True(t, s.register(newTestClient("bob")))
}

func TestRegisterConcurrentSamePubkey(t *testing.T) {
	s := NewHttpServer("", nil, nil)

	const attempts = 32
	var wg sync.WaitGroup
	results := make([]bool, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = s.register(newTestClient("alice"))
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, ok := range results {
		if ok {
			wins++
		}
	}
	assert.Equal(t, 1, wins, "exactly one connection may claim a pubkey")
}
