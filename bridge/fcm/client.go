package fcm

import (
	"context"
	"errors"
)

// Transport-level failure classes the router distinguishes. Concrete
// clients wrap their errors so these match with errors.Is; anything else
// is treated as an unclassified server error.
var (
	ErrAuthentication = errors.New("fcm: authentication rejected")
	ErrConnection     = errors.New("fcm: connection failed")
)

// Message is a single-device downstream send request.
type Message struct {
	RegistrationID string            `json:"registration_id"`
	CollapseKey    string            `json:"collapse_key,omitempty"`
	Data           map[string]string `json:"data,omitempty"`
	DryRun         bool              `json:"dry_run,omitempty"`
	TimeToLive     int64             `json:"time_to_live"`
}

// Result is the per-device slot of a gateway reply. RegistrationID carries
// the canonical replacement token when the gateway reports one.
type Result struct {
	MessageID      string `json:"message_id"`
	RegistrationID string `json:"registration_id"`
	Error          string `json:"error"`
}

// Reply is the raw gateway response handed to the reply processor.
type Reply struct {
	MulticastID  int64    `json:"multicast_id"`
	Success      int      `json:"success"`
	Failure      int      `json:"failure"`
	CanonicalIDs int      `json:"canonical_ids"`
	Results      []Result `json:"results"`
}

// Client is the subset of the FCM connection the router uses. The concrete
// client owns transport and auth; it is built once from the static API key
// at startup.
type Client interface {
	NotifySingleDevice(ctx context.Context, msg *Message) (*Reply, error)
}
