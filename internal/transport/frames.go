package transport

import (
	"slices"

	"group_chat/internal/model"
)

// Frame types exchanged with relays.
const (
	FrameEvent = "event"
	FrameReq   = "req"
	FrameClose = "close"
	FrameEOSE  = "eose"
	FrameOK    = "ok"
)

// InboxSubID marks events a relay pushes without a matching REQ:
// confidential wraps addressed to the connected identity.
const InboxSubID = "inbox"

type (
	// Frame is the JSON message unit on a relay websocket, both
	// directions.
	Frame struct {
		Type   string       `json:"type"`
		SubID  string       `json:"sub_id,omitempty"`
		Event  *model.Event `json:"event,omitempty"`
		Filter *Filter      `json:"filter,omitempty"`
		ID     string       `json:"id,omitempty"`
		OK     bool         `json:"ok,omitempty"`
		Reason string       `json:"reason,omitempty"`
	}

	Filter struct {
		Kinds   []int    `json:"kinds,omitempty"`
		Authors []string `json:"authors,omitempty"`
		Limit   int      `json:"limit,omitempty"`
	}
)

func (f *Filter) Matches(ev *model.Event) bool {
	if len(f.Kinds) > 0 && !slices.Contains(f.Kinds, ev.Kind) {
		return false
	}
	if len(f.Authors) > 0 && !slices.Contains(f.Authors, ev.PubKey) {
		return false
	}
	return true
}
