package model

type (
	// Group mirrors the group-security engine's view of a session. The
	// engine owns this state; everything here is a read-only snapshot.
	Group struct {
		MLSGroupID  string   `json:"mls_group_id"`
		WireGroupID string   `json:"wire_group_id"`
		Name        string   `json:"name"`
		Description string   `json:"description"`
		Admins      []string `json:"admins"`
		Relays      []string `json:"relays"`
		Members     []string `json:"members"`
		Epoch       uint64   `json:"epoch"`
	}

	WelcomeState string

	// PendingWelcome is a received, not-yet-accepted welcome. The field
	// set matches the engine's accept_welcome input exactly so the cached
	// copy can be handed back without re-fetching anything.
	PendingWelcome struct {
		ID                string       `json:"id"`
		EventJSON         string       `json:"event_json"`
		MLSGroupID        string       `json:"mls_group_id"`
		WireGroupID       string       `json:"wire_group_id"`
		GroupName         string       `json:"group_name"`
		GroupDescription  string       `json:"group_description"`
		GroupAdminPubKeys []string     `json:"group_admin_pubkeys"`
		GroupRelays       []string     `json:"group_relays"`
		Welcomer          string       `json:"welcomer"`
		MemberCount       int          `json:"member_count"`
		State             WelcomeState `json:"state"`
		WrapperEventID    string       `json:"wrapper_event_id"`
	}
)

const (
	WelcomePending  WelcomeState = "pending"
	WelcomeAccepted WelcomeState = "accepted"
	WelcomeDeclined WelcomeState = "declined"
)
