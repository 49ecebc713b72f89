package transport

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"group_chat/internal/model"
	"group_chat/internal/utils/log"
)

type (
	// Client maintains websocket connections to a configured relay set
	// and exposes publish, fetch and subscribe over the pool. Per-relay
	// failures are recoverable; only a fully unreachable pool is fatal.
	Client struct {
		keys      *model.Keys
		relayURLs []string

		mu    sync.Mutex
		conns map[string]*relayConn
		subs  map[string]*subscription

		inbox chan model.Event
	}

	relayConn struct {
		url     string
		ws      *websocket.Conn
		writeMu sync.Mutex
	}

	subscription struct {
		id     string
		events chan model.Event
		eose   chan string // relay URL that finished stored events
	}
)

func NewClient(keys *model.Keys, relayURLs []string) *Client {
	return &Client{
		keys:      keys,
		relayURLs: relayURLs,
		conns:     make(map[string]*relayConn),
		subs:      make(map[string]*subscription),
		inbox:     make(chan model.Event, 64),
	}
}

// Connect dials every configured relay, identifying the client by its
// public key so the relay can deliver queued confidential wraps. Relays
// that fail to dial are skipped; at least one must connect.
func (c *Client) Connect(ctx context.Context) error {
	for _, relayURL := range c.relayURLs {
		u, err := url.Parse(relayURL)
		if err != nil {
			log.Error("malformed relay url", zap.String("url", relayURL), zap.Error(err))
			continue
		}
		q := u.Query()
		q.Set("pubkey", c.keys.PublicKey())
		u.RawQuery = q.Encode()

		ws, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
		if err != nil {
			log.Error("relay dial failed", zap.String("url", relayURL), zap.Error(err))
			continue
		}

		conn := &relayConn{url: relayURL, ws: ws}
		c.mu.Lock()
		c.conns[relayURL] = conn
		c.mu.Unlock()

		go c.readLoop(conn)
	}

	c.mu.Lock()
	connected := len(c.conns)
	c.mu.Unlock()
	if connected == 0 {
		return errors.New("no relay could be reached")
	}
	return nil
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, conn := range c.conns {
		conn.ws.Close()
	}
	c.conns = make(map[string]*relayConn)
}

// Relays returns the configured relay set.
func (c *Client) Relays() []string {
	return c.relayURLs
}

// Inbox delivers confidential wraps the relays push for our identity.
func (c *Client) Inbox() <-chan model.Event {
	return c.inbox
}

func (c *Client) readLoop(conn *relayConn) {
	for {
		var frame Frame
		if err := conn.ws.ReadJSON(&frame); err != nil {
			log.Debug("relay socket closed", zap.String("url", conn.url), zap.Error(err))
			conn.ws.Close()
			c.mu.Lock()
			delete(c.conns, conn.url)
			c.mu.Unlock()
			return
		}

		switch frame.Type {
		case FrameEvent:
			if frame.Event == nil {
				continue
			}
			if frame.SubID == InboxSubID {
				select {
				case c.inbox <- *frame.Event:
				default:
					log.Warn("inbox full, dropping wrap", zap.String("id", frame.Event.ID))
				}
				continue
			}
			c.mu.Lock()
			sub, ok := c.subs[frame.SubID]
			c.mu.Unlock()
			if ok {
				select {
				case sub.events <- *frame.Event:
				default:
				}
			}
		case FrameEOSE:
			c.mu.Lock()
			sub, ok := c.subs[frame.SubID]
			c.mu.Unlock()
			if ok {
				select {
				case sub.eose <- conn.url:
				default:
				}
			}
		case FrameOK:
			if !frame.OK {
				log.Warn("relay rejected event",
					zap.String("url", conn.url),
					zap.String("id", frame.ID),
					zap.String("reason", frame.Reason))
			}
		}
	}
}

func (conn *relayConn) write(frame *Frame) error {
	conn.writeMu.Lock()
	defer conn.writeMu.Unlock()
	return conn.ws.WriteJSON(frame)
}

func (c *Client) broadcast(frame *Frame) (int, error) {
	c.mu.Lock()
	conns := make([]*relayConn, 0, len(c.conns))
	for _, conn := range c.conns {
		conns = append(conns, conn)
	}
	c.mu.Unlock()

	var lastErr error
	sent := 0
	for _, conn := range conns {
		if err := conn.write(frame); err != nil {
			log.Error("relay write failed", zap.String("url", conn.url), zap.Error(err))
			lastErr = err
			continue
		}
		sent++
	}
	if sent == 0 {
		if lastErr == nil {
			lastErr = errors.New("no connected relay")
		}
		return 0, lastErr
	}
	return sent, nil
}

// Publish sends a signed event to every connected relay; it fails only
// when no relay accepted the write.
func (c *Client) Publish(ctx context.Context, ev *model.Event) error {
	if err := ev.Verify(); err != nil {
		return fmt.Errorf("refusing to publish invalid event: %w", err)
	}
	if _, err := c.broadcast(&Frame{Type: FrameEvent, Event: ev}); err != nil {
		return fmt.Errorf("publish event %s: %w", ev.ID, err)
	}
	return nil
}

// Fetch queries stored events matching the filter, waiting until every
// contacted relay reports end-of-stored-events or the timeout expires.
// Results are deduplicated and ordered newest first.
func (c *Client) Fetch(ctx context.Context, filter Filter, timeout time.Duration) ([]model.Event, error) {
	sub := &subscription{
		id:     newSubID(),
		events: make(chan model.Event, 128),
		eose:   make(chan string, 16),
	}

	c.mu.Lock()
	c.subs[sub.id] = sub
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.subs, sub.id)
		c.mu.Unlock()
		c.broadcast(&Frame{Type: FrameClose, SubID: sub.id})
	}()

	contacted, err := c.broadcast(&Frame{Type: FrameReq, SubID: sub.id, Filter: &filter})
	if err != nil {
		return nil, fmt.Errorf("fetch request: %w", err)
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	seen := make(map[string]model.Event)
	finished := 0
collect:
	for {
		select {
		case ev := <-sub.events:
			seen[ev.ID] = ev
		case <-sub.eose:
			finished++
			if finished >= contacted {
				break collect
			}
		case <-deadline.C:
			break collect
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	results := make([]model.Event, 0, len(seen))
	for _, ev := range seen {
		results = append(results, ev)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].CreatedAt != results[j].CreatedAt {
			return results[i].CreatedAt > results[j].CreatedAt
		}
		return results[i].ID < results[j].ID
	})
	if filter.Limit > 0 && len(results) > filter.Limit {
		results = results[:filter.Limit]
	}
	return results, nil
}

// Subscribe opens a live subscription over the pool. The channel closes
// when ctx is cancelled.
func (c *Client) Subscribe(ctx context.Context, filter Filter) (<-chan model.Event, error) {
	sub := &subscription{
		id:     newSubID(),
		events: make(chan model.Event, 128),
		eose:   make(chan string, 16),
	}

	c.mu.Lock()
	c.subs[sub.id] = sub
	c.mu.Unlock()

	if _, err := c.broadcast(&Frame{Type: FrameReq, SubID: sub.id, Filter: &filter}); err != nil {
		c.mu.Lock()
		delete(c.subs, sub.id)
		c.mu.Unlock()
		return nil, fmt.Errorf("subscribe: %w", err)
	}

	out := make(chan model.Event, 128)
	go func() {
		defer close(out)
		seen := make(map[string]struct{})
		for {
			select {
			case ev := <-sub.events:
				if _, dup := seen[ev.ID]; dup {
					continue
				}
				seen[ev.ID] = struct{}{}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			case <-sub.eose:
			case <-ctx.Done():
				c.mu.Lock()
				delete(c.subs, sub.id)
				c.mu.Unlock()
				c.broadcast(&Frame{Type: FrameClose, SubID: sub.id})
				return
			}
		}
	}()
	return out, nil
}

func newSubID() string {
	var b [8]byte
	rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
