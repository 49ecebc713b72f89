package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndVerify(t *testing.T) {
	keys, err := GenerateKeys()
	require.NoError(t, err)

	ev := UnsignedEvent{
		Kind:    KindChat,
		Tags:    Tags{{TagGroupRef, "wire-id"}},
		Content: "hello",
	}
	signed, err := ev.Sign(keys)
	require.NoError(t, err)

	assert.Equal(t, keys.PublicKey(), signed.PubKey)
	assert.NotEmpty(t, signed.ID)
	assert.NotZero(t, signed.CreatedAt)
	require.NoError(t, signed.Verify())
}

func TestVerifyRejectsTamperedContent(t *testing.T) {
	keys, err := GenerateKeys()
	require.NoError(t, err)

	signed, err := (&UnsignedEvent{Kind: KindChat, Content: "original"}).Sign(keys)
	require.NoError(t, err)

	tampered := *signed
	tampered.Content = "modified"
	assert.Error(t, tampered.Verify())
}

func TestVerifyRejectsForeignSignature(t *testing.T) {
	alice, err := GenerateKeys()
	require.NoError(t, err)
	mallory, err := GenerateKeys()
	require.NoError(t, err)

	signed, err := (&UnsignedEvent{Kind: KindChat, Content: "hi"}).Sign(alice)
	require.NoError(t, err)

	forged := *signed
	forged.PubKey = mallory.PublicKey()
	// id no longer matches either
	assert.Error(t, forged.Verify())
}

func TestComputeIDIsDeterministic(t *testing.T) {
	ev := UnsignedEvent{
		PubKey:    "ab",
		CreatedAt: 42,
		Kind:      KindWelcome,
		Content:   "payload",
	}
	first, err := ev.ComputeID()
	require.NoError(t, err)
	second, err := ev.ComputeID()
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// nil and empty tag lists serialize identically
	withTags := ev
	withTags.Tags = Tags{}
	third, err := withTags.ComputeID()
	require.NoError(t, err)
	assert.Equal(t, first, third)
}

func TestExpirationTagRoundTrip(t *testing.T) {
	at := time.Unix(1_900_000_000, 0)
	tags := Tags{ExpirationTag(at)}

	got, ok := tags.Expiration()
	require.True(t, ok)
	assert.True(t, got.Equal(at))
}

func TestExpirationMissingOrMalformed(t *testing.T) {
	_, ok := Tags{}.Expiration()
	assert.False(t, ok)

	_, ok = Tags{{TagExpiration, "not-a-number"}}.Expiration()
	assert.False(t, ok)
}

func TestTagsFirstAndValue(t *testing.T) {
	tags := Tags{
		{TagEventRef, "ticket-1"},
		{TagEventRef, "ticket-2"},
		{TagRelays, "ws://a", "ws://b"},
	}

	tag, ok := tags.First(TagEventRef)
	require.True(t, ok)
	assert.Equal(t, "ticket-1", tag.Value())
	assert.Equal(t, "ticket-1", tags.Value(TagEventRef))
	assert.Empty(t, tags.Value("nope"))
}

func TestParseKeysValidation(t *testing.T) {
	_, err := ParseKeys("zz")
	assert.Error(t, err)

	_, err = ParseKeys("abcd")
	assert.Error(t, err, "short seed must be rejected")

	keys, err := GenerateKeys()
	require.NoError(t, err)
	assert.Len(t, keys.PublicKey(), 64)
}
