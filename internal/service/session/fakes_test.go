package session

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"group_chat/internal/engine"
	"group_chat/internal/model"
	"group_chat/internal/transport"
)

type (
	wrapCall struct {
		recipient string
		encKey    [32]byte
		rumor     *model.UnsignedEvent
		tags      []model.Tag
	}

	fakeTransport struct {
		mu sync.Mutex

		fetchByAuthor map[string][]model.Event
		fetchErr      error
		fetchCalls    int

		published  []*model.Event
		publishErr error

		wraps       []wrapCall
		wrapErrFor  map[string]error
	}
)

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		fetchByAuthor: make(map[string][]model.Event),
		wrapErrFor:    make(map[string]error),
	}
}

func (f *fakeTransport) Publish(_ context.Context, ev *model.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, ev)
	return nil
}

func (f *fakeTransport) Fetch(_ context.Context, filter transport.Filter, _ time.Duration) ([]model.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchCalls++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	if len(filter.Authors) != 1 {
		return nil, errors.New("fake expects exactly one author")
	}
	return f.fetchByAuthor[filter.Authors[0]], nil
}

func (f *fakeTransport) GiftWrap(_ context.Context, recipient string, encKey [32]byte, rumor *model.UnsignedEvent, extraTags []model.Tag) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.wrapErrFor[recipient]; ok {
		return err
	}
	f.wraps = append(f.wraps, wrapCall{
		recipient: recipient,
		encKey:    encKey,
		rumor:     rumor,
		tags:      extraTags,
	})
	return nil
}

func (f *fakeTransport) wrapRecipients() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.wraps))
	for _, w := range f.wraps {
		out = append(out, w.recipient)
	}
	return out
}

type fakeEngine struct {
	mu sync.Mutex

	createGroupCalls int
	createErr        error
	lastTickets      []string
	welcomeRumors    []string
	group            model.Group

	addMembersCalls int
	addErr          error

	createMessageCalls int
	messageJSON        string
	messageErr         error

	acceptedJSONs []string
	acceptErrs    []error // popped per call, nil when exhausted

	pending []model.PendingWelcome
	groups  []model.Group
}

var _ engine.Engine = (*fakeEngine)(nil)

func (f *fakeEngine) CreateKeyPackageForEvent(context.Context, string, []string) (*engine.KeyPackageResult, error) {
	return &engine.KeyPackageResult{Payload: "deadbeef", Tags: model.Tags{}}, nil
}

func (f *fakeEngine) CreateGroup(_ context.Context, _ string, tickets []string, _, _ string, _, _ []string) (*engine.GroupResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createGroupCalls++
	f.lastTickets = tickets
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &engine.GroupResult{Group: f.group, WelcomeRumorJSONs: f.welcomeRumors}, nil
}

func (f *fakeEngine) AddMembers(_ context.Context, _ string, tickets []string) (*engine.GroupResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addMembersCalls++
	f.lastTickets = tickets
	if f.addErr != nil {
		return nil, f.addErr
	}
	return &engine.GroupResult{Group: f.group, WelcomeRumorJSONs: f.welcomeRumors}, nil
}

func (f *fakeEngine) CreateMessage(context.Context, string, string, string, int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createMessageCalls++
	return f.messageJSON, f.messageErr
}

func (f *fakeEngine) AcceptWelcome(_ context.Context, welcomeJSON string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acceptedJSONs = append(f.acceptedJSONs, welcomeJSON)
	if len(f.acceptErrs) == 0 {
		return nil
	}
	err := f.acceptErrs[0]
	f.acceptErrs = f.acceptErrs[1:]
	return err
}

func (f *fakeEngine) ProcessWelcome(context.Context, string, string) error { return nil }

func (f *fakeEngine) ProcessMessage(context.Context, string) (*engine.DecryptedMessage, error) {
	return nil, engine.ErrUnknownGroup
}

func (f *fakeEngine) GetPendingWelcomes(context.Context) ([]model.PendingWelcome, error) {
	return f.pending, nil
}

func (f *fakeEngine) GetGroups(context.Context) ([]model.Group, error) {
	return f.groups, nil
}

// newMember fabricates an identity with a published admission ticket
// and registers it with the fake transport.
func newMember(t *testing.T, ft *fakeTransport) (string, *model.KeyPackage) {
	t.Helper()

	keys, err := model.GenerateKeys()
	require.NoError(t, err)
	encPub := keys.EncryptionPublicKey()

	ev := model.UnsignedEvent{
		Kind: model.KindKeyPackage,
		Tags: model.Tags{
			model.RelaysTag([]string{"ws://localhost:9090/ws"}),
			model.Tag{model.TagEncryptionKey, hex.EncodeToString(encPub[:])},
		},
		Content: "init-key-material",
	}
	signed, err := ev.Sign(keys)
	require.NoError(t, err)

	kp, err := model.NewKeyPackage(*signed)
	require.NoError(t, err)

	ft.fetchByAuthor[keys.PublicKey()] = []model.Event{*signed}
	return keys.PublicKey(), kp
}

// welcomeReferencing builds an unsigned welcome rumor whose "e" tag
// points at the given ticket ID.
func welcomeReferencing(t *testing.T, ticketID string) string {
	t.Helper()
	rumor := model.UnsignedEvent{
		CreatedAt: time.Now().Unix(),
		Kind:      model.KindWelcome,
		Tags:      model.Tags{{model.TagEventRef, ticketID}},
		Content:   fmt.Sprintf("sealed-for-%s", ticketID),
	}
	require.NoError(t, rumor.Finalize())
	raw, err := rumor.JSON()
	require.NoError(t, err)
	return raw
}
