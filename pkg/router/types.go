// Package router defines the domain model shared by every delivery bridge:
// the notification being routed, the per-device routing data owned by the
// subscription registry, and the response/error contract handed back to the
// endpoint layer.
package router

import (
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// Credentials pin a device registration to the sender identity it was
// validated against.
type Credentials struct {
	SenderID string `json:"senderID"`
	Auth     string `json:"auth,omitempty"`
}

// SubscriptionKeys holds the Web Push key material supplied by the browser
// at subscription time.
type SubscriptionKeys struct {
	P256dh string `json:"p256dh,omitempty"`
	Auth   string `json:"auth,omitempty"`
}

// RouterData is the per-device routing state. The external registry owns it;
// bridges only read it and propose updates through the Response.RouterData
// patch.
type RouterData struct {
	Token  string       `json:"token,omitempty"`
	Creds  *Credentials `json:"creds,omitempty"`
	DryRun bool         `json:"dryrun,omitempty"`

	// Web Push subscription data. Unused by the token-based bridges.
	Endpoint string           `json:"endpoint,omitempty"`
	Keys     SubscriptionKeys `json:"keys,omitempty"`
}

// UserData is the registry record for a device as handed to the routers.
type UserData struct {
	UAID       string     `json:"uaid"`
	RouterData RouterData `json:"router_data"`
}

// Headers carries the content-encoding metadata the endpoint layer attaches
// to an encrypted payload. CryptoKey and EncryptionKey are mutually
// exclusive; CryptoKey wins when both are present.
type Headers struct {
	Encoding      string
	Encryption    string
	CryptoKey     string
	EncryptionKey string
}

// Notification is a single outbound message. The caller builds one per
// message and never mutates it afterwards.
type Notification struct {
	ChannelID uuid.UUID
	Version   string
	Data      []byte
	Headers   Headers
	// TTL is the requested retention in seconds. Zero means the caller did
	// not ask for one; bridges clamp it into the gateway-accepted range.
	TTL int64
}

// ChannelIDHex renders the channel id the way the registration service
// issued it: 32 lowercase hex digits, no dashes.
func (n Notification) ChannelIDHex() string {
	return hex.EncodeToString(n.ChannelID[:])
}

// Response is the outward result of a dispatch that reached the gateway.
// RouterData is a patch the registry should merge into the stored routing
// data (e.g. a rotated token); an empty patch means nothing changed.
type Response struct {
	Status       int
	ErrNo        int
	Body         string
	Headers      map[string]string
	RouterData   map[string]string
	LoggedStatus int
}

// Error is returned instead of a Response when delivery cannot proceed.
type Error struct {
	Message string
	Status  int
	ErrNo   int
	Body    string
	// LogException marks failures worth an error-level log upstream.
	// Expected conditions (missing token, oversized payload, transient
	// gateway trouble) leave it false.
	LogException bool
}

func (e *Error) Error() string {
	if e.ErrNo != 0 {
		return fmt.Sprintf("router error %d (errno %d): %s", e.Status, e.ErrNo, e.Message)
	}
	return fmt.Sprintf("router error %d: %s", e.Status, e.Message)
}
