package transport

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"group_chat/internal/cryptographic/encryption"
	"group_chat/internal/model"
)

// GiftWrap seals a rumor to the recipient's encryption key and publishes
// it as a wrap event addressed to them. The wrap is signed by a one-use
// ephemeral identity so the outer event reveals neither sender nor
// content; extraTags (typically an expiration tag) ride on the wrap.
func (c *Client) GiftWrap(ctx context.Context, recipient string, recipientEncKey [32]byte, rumor *model.UnsignedEvent, extraTags []model.Tag) error {
	rumorJSON, err := rumor.JSON()
	if err != nil {
		return err
	}

	sealed, err := encryption.Seal(recipientEncKey, []byte(rumorJSON), []byte(recipient))
	if err != nil {
		return fmt.Errorf("seal wrap for %s: %w", recipient, err)
	}

	ephemeral, err := model.GenerateKeys()
	if err != nil {
		return err
	}

	tags := model.Tags{model.Tag{model.TagRecipient, recipient}}
	tags = append(tags, extraTags...)

	wrap := model.UnsignedEvent{
		CreatedAt: time.Now().Unix(),
		Kind:      model.KindGiftWrap,
		Tags:      tags,
		Content:   base64.StdEncoding.EncodeToString(sealed),
	}
	ev, err := wrap.Sign(ephemeral)
	if err != nil {
		return err
	}
	return c.Publish(ctx, ev)
}

// UnwrapGift opens a wrap addressed to keys and returns the rumor JSON
// it carries.
func UnwrapGift(keys *model.Keys, wrap *model.Event) (string, error) {
	if wrap.Kind != model.KindGiftWrap {
		return "", fmt.Errorf("expected kind %d event, got %d", model.KindGiftWrap, wrap.Kind)
	}
	recipient := wrap.Tags.Value(model.TagRecipient)
	if recipient != keys.PublicKey() {
		return "", fmt.Errorf("wrap %s is not addressed to us", wrap.ID)
	}

	sealed, err := base64.StdEncoding.DecodeString(wrap.Content)
	if err != nil {
		return "", fmt.Errorf("decode wrap payload: %w", err)
	}

	plain, err := encryption.Open(keys.EncryptionPrivateKey(), sealed, []byte(recipient))
	if err != nil {
		return "", fmt.Errorf("open wrap %s: %w", wrap.ID, err)
	}
	return string(plain), nil
}
