// Package apns routes notifications to Apple devices over the APNs HTTP/2
// API using token-based authentication.
package apns

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/payload"
	"github.com/sideshow/apns2/token"

	"github.com/josejibin/autopush/pkg/router"
)

// Client is the subset of the apns2.Client methods the router uses.
type Client interface {
	Push(n *apns2.Notification) (*apns2.Response, error)
}

// Config holds the credentials required to sign APNs tokens plus the
// router policy knobs shared with the other bridges.
type Config struct {
	KeyID  string
	TeamID string
	// BundleID is the app bundle id, used as the APNs topic and as the
	// application identity devices register against.
	BundleID string
	// P8Key is the raw content of the .p8 signing key.
	P8Key   string
	MinTTL  int64
	MaxData int
	// Sandbox selects the development APNs endpoint.
	Sandbox bool
}

const (
	defaultMinTTL  = 60
	defaultMaxData = 4096
)

// NewClient parses the P8 key and builds the concrete APNs client. The key
// is parsed immediately so bad credentials fail at startup.
func NewClient(cfg Config) (*apns2.Client, error) {
	authKey, err := token.AuthKeyFromBytes([]byte(cfg.P8Key))
	if err != nil {
		return nil, fmt.Errorf("apns: failed to parse P8 key: %w", err)
	}
	client := apns2.NewTokenClient(&token.Token{
		AuthKey: authKey,
		KeyID:   cfg.KeyID,
		TeamID:  cfg.TeamID,
	})
	if cfg.Sandbox {
		return client.Development(), nil
	}
	return client.Production(), nil
}

// Router delivers notifications to Apple devices and translates APNs
// rejection reasons into the service response contract.
type Router struct {
	cfg      Config
	settings router.Settings
	client   Client
	pool     *router.Pool
	logger   *slog.Logger
}

var _ router.Router = (*Router)(nil)

func New(cfg Config, settings router.Settings, client Client, pool *router.Pool, logger *slog.Logger) (*Router, error) {
	if cfg.BundleID == "" {
		return nil, errors.New("apns: bundleID is required")
	}
	if client == nil {
		return nil, errors.New("apns: client not initialized")
	}
	if pool == nil {
		return nil, errors.New("apns: dispatch pool is required")
	}
	if cfg.MinTTL <= 0 {
		cfg.MinTTL = defaultMinTTL
	}
	if cfg.MaxData <= 0 {
		cfg.MaxData = defaultMaxData
	}
	r := &Router{
		cfg:      cfg,
		settings: settings,
		client:   client,
		pool:     pool,
		logger:   logger.With("component", "APNSRouter"),
	}
	r.logger.Debug("Starting APNS router")
	return r, nil
}

// Register validates that the device supplied an APNs token for our app
// bundle and stamps the routing data with the identity used for delivery.
func (r *Router) Register(uaid string, routerData router.RouterData, appID string) (router.RouterData, error) {
	if routerData.Token == "" {
		return routerData, r.routeError("connect info missing APNS 'token'", 401, 0)
	}
	if appID != r.cfg.BundleID {
		return routerData, r.routeError("Invalid Bundle ID", 410, 105)
	}
	routerData.Creds = &router.Credentials{SenderID: r.cfg.BundleID}
	return routerData, nil
}

// RouteNotification hands the blocking HTTP/2 push to the dispatch pool
// and returns the eventual outcome.
func (r *Router) RouteNotification(n router.Notification, userData router.UserData) *router.Future {
	routerData := userData.RouterData
	return r.pool.Submit(func() (*router.Response, error) {
		return r.route(n, routerData)
	})
}

// AmendEndpointResponse copies the registered app identity into the
// outward registration response.
func (r *Router) AmendEndpointResponse(body map[string]any, routerData router.RouterData) {
	senderID := ""
	if routerData.Creds != nil {
		senderID = routerData.Creds.SenderID
	}
	body["senderid"] = senderID
}

func (r *Router) route(n router.Notification, routerData router.RouterData) (*router.Response, error) {
	if routerData.Token == "" {
		return nil, r.routeError("No registration token found. Rejecting message.", 410, 106)
	}

	// Silent push: the payload travels in custom keys, the client wakes on
	// content-available and decrypts locally.
	builder := payload.NewPayload().ContentAvailable().
		Custom("chid", n.ChannelIDHex()).
		Custom("ver", n.Version)
	if len(n.Data) > 0 {
		if len(n.Data) > r.cfg.MaxData {
			return nil, r.routeError(fmt.Sprintf(
				"This message is intended for a constrained device and is "+
					"limited to 3070 bytes. Converted buffer too long by %d bytes",
				len(n.Data)-r.cfg.MaxData), 413, 104)
		}
		builder = builder.Custom("body", string(n.Data)).
			Custom("con", n.Headers.Encoding).
			Custom("enc", n.Headers.Encryption)
		if n.Headers.CryptoKey != "" {
			builder = builder.Custom("cryptokey", n.Headers.CryptoKey)
		} else if n.Headers.EncryptionKey != "" {
			builder = builder.Custom("enckey", n.Headers.EncryptionKey)
		}
	}

	ttl := router.EffectiveTTL(r.cfg.MinTTL, n.TTL)
	res, err := r.client.Push(&apns2.Notification{
		DeviceToken: routerData.Token,
		Topic:       r.cfg.BundleID,
		Expiration:  time.Now().Add(time.Duration(ttl) * time.Second),
		Payload:     builder,
	})
	if err != nil {
		r.increment("updates.client.bridge.apns.connection_err")
		r.logger.Warn("Could not connect to APNS server", "err", err)
		return nil, &router.Error{Message: "Server error", Status: 502}
	}
	r.increment("updates.client.bridge.apns.attempted")
	return r.processResponse(res, n, routerData, ttl)
}

// processResponse translates the APNs reply. Every branch terminates in
// exactly one of Response or Error.
func (r *Router) processResponse(res *apns2.Response, n router.Notification, routerData router.RouterData, ttl int64) (*router.Response, error) {
	if res.Sent() {
		r.increment("updates.client.bridge.apns.succeeded")
		return &router.Response{
			Status: 201,
			Body:   "",
			Headers: map[string]string{
				"TTL":      strconv.FormatInt(ttl, 10),
				"Location": fmt.Sprintf("%s/m/%s", r.settings.EndpointBaseURL, n.Version),
			},
			LoggedStatus: 200,
		}, nil
	}

	r.increment("updates.client.bridge.apns.failed")
	switch res.Reason {
	case apns2.ReasonUnregistered, apns2.ReasonBadDeviceToken, apns2.ReasonDeviceTokenNotForTopic:
		// The token is dead; the registry must drop it.
		return nil, r.routeError("device has unregistered with APNS", 410, 103)
	case apns2.ReasonExpiredProviderToken, apns2.ReasonInvalidProviderToken, apns2.ReasonMissingProviderToken:
		r.logger.Error("APNS rejected provider token", "reason", res.Reason)
		return nil, &router.Error{Message: "Server error", Status: 500, LogException: true}
	case apns2.ReasonPayloadTooLarge:
		return nil, r.routeError("Message length was too big", 413, 104)
	case apns2.ReasonTooManyRequests:
		return nil, r.routeError("Too many messages for this device", 503, 4)
	default:
		r.logger.Warn("APNS delivery failed", "reason", res.Reason, "status", res.StatusCode)
		return nil, &router.Error{Message: "Server error", Status: 502}
	}
}

func (r *Router) routeError(msg string, status, errno int) *router.Error {
	r.logger.Debug(msg, "status", status, "errno", errno)
	return &router.Error{Message: msg, Status: status, ErrNo: errno, Body: msg}
}

func (r *Router) increment(name string) {
	if r.settings.Metrics != nil {
		r.settings.Metrics.Increment(name, "platform:apns")
	}
}
