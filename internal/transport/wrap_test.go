package transport

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"group_chat/internal/cryptographic/encryption"
	"group_chat/internal/model"
)

func wrapFor(t *testing.T, recipient *model.Keys, rumorJSON string) *model.Event {
	t.Helper()

	sealed, err := encryption.Seal(recipient.EncryptionPublicKey(), []byte(rumorJSON), []byte(recipient.PublicKey()))
	require.NoError(t, err)

	ephemeral, err := model.GenerateKeys()
	require.NoError(t, err)

	wrap := model.UnsignedEvent{
		CreatedAt: time.Now().Unix(),
		Kind:      model.KindGiftWrap,
		Tags:      model.Tags{{model.TagRecipient, recipient.PublicKey()}},
		Content:   base64.StdEncoding.EncodeToString(sealed),
	}
	ev, err := wrap.Sign(ephemeral)
	require.NoError(t, err)
	return ev
}

func TestUnwrapGift(t *testing.T) {
	recipient, err := model.GenerateKeys()
	require.NoError(t, err)

	rumor := model.UnsignedEvent{Kind: model.KindWelcome, Content: "sealed group info"}
	require.NoError(t, rumor.Finalize())
	rumorJSON, err := rumor.JSON()
	require.NoError(t, err)

	wrap := wrapFor(t, recipient, rumorJSON)

	got, err := UnwrapGift(recipient, wrap)
	require.NoError(t, err)
	assert.Equal(t, rumorJSON, got)
}

func TestUnwrapGiftWrongRecipient(t *testing.T) {
	recipient, err := model.GenerateKeys()
	require.NoError(t, err)
	bystander, err := model.GenerateKeys()
	require.NoError(t, err)

	wrap := wrapFor(t, recipient, `{"kind":444}`)

	_, err = UnwrapGift(bystander, wrap)
	assert.Error(t, err, "a wrap must only open for its addressee")
}

func TestUnwrapGiftWrongKind(t *testing.T) {
	recipient, err := model.GenerateKeys()
	require.NoError(t, err)

	ev := model.Event{UnsignedEvent: model.UnsignedEvent{Kind: model.KindChat}}
	_, err = UnwrapGift(recipient, &ev)
	assert.Error(t, err)
}
