// Package fcm routes notifications through the legacy FCM HTTP gateway.
package fcm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/josejibin/autopush/pkg/router"
)

// Config is the router configuration block this bridge recognizes.
type Config struct {
	// SenderID is the sender identity devices must be registered against.
	SenderID string
	// Auth is the static gateway API key.
	Auth        string
	MinTTL      int64
	DryRun      bool
	CollapseKey string
	// MaxData caps the encrypted payload size in bytes.
	MaxData int
}

const (
	defaultMinTTL      = 60
	defaultCollapseKey = "webpush"
	defaultMaxData     = 4096
)

// Router delivers notifications to Android devices through the legacy FCM
// gateway and translates its replies into the service response contract.
type Router struct {
	cfg      Config
	settings router.Settings
	client   Client
	pool     *router.Pool
	logger   *slog.Logger
}

var _ router.Router = (*Router)(nil)

// New builds the bridge. The gateway client is constructed from the static
// API credential at startup, so a missing client or credential fails
// initialization rather than the first send.
func New(cfg Config, settings router.Settings, client Client, pool *router.Pool, logger *slog.Logger) (*Router, error) {
	if cfg.SenderID == "" || cfg.Auth == "" {
		return nil, errors.New("fcm: senderID and auth are required")
	}
	if client == nil {
		return nil, errors.New("fcm: gateway client not initialized")
	}
	if pool == nil {
		return nil, errors.New("fcm: dispatch pool is required")
	}
	if cfg.MinTTL <= 0 {
		cfg.MinTTL = defaultMinTTL
	}
	if cfg.CollapseKey == "" {
		cfg.CollapseKey = defaultCollapseKey
	}
	if cfg.MaxData <= 0 {
		cfg.MaxData = defaultMaxData
	}
	r := &Router{
		cfg:      cfg,
		settings: settings,
		client:   client,
		pool:     pool,
		logger:   logger.With("component", "FCMRouter"),
	}
	r.logger.Debug("Starting FCM router")
	return r, nil
}

// Register validates that the device supplied an FCM instance token bound
// to our sender identity and returns the routing data with the delivery
// credentials stamped in. It never touches the network.
func (r *Router) Register(uaid string, routerData router.RouterData, appID string) (router.RouterData, error) {
	if routerData.Token == "" {
		return routerData, r.routeError("connect info missing FCM Instance 'token'", 401, 0)
	}
	// The sender id is baked into the client at install time. A device
	// carrying a different sender id can never be reached with our auth
	// key, so the registration is rejected for good rather than retried.
	if appID != r.cfg.SenderID {
		return routerData, r.routeError("Invalid SenderID", 410, 105)
	}
	routerData.Creds = &router.Credentials{SenderID: r.cfg.SenderID, Auth: r.cfg.Auth}
	return routerData, nil
}

// RouteNotification hands the blocking gateway call to the dispatch pool
// and returns the eventual outcome.
func (r *Router) RouteNotification(n router.Notification, userData router.UserData) *router.Future {
	routerData := userData.RouterData
	return r.pool.Submit(func() (*router.Response, error) {
		return r.route(n, routerData)
	})
}

// AmendEndpointResponse copies the registered sender id into the outward
// registration response so clients can detect identity drift.
func (r *Router) AmendEndpointResponse(body map[string]any, routerData router.RouterData) {
	senderID := ""
	if routerData.Creds != nil {
		senderID = routerData.Creds.SenderID
	}
	body["senderid"] = senderID
}

// route runs on a pool worker and performs the blocking gateway call.
func (r *Router) route(n router.Notification, routerData router.RouterData) (*router.Response, error) {
	// chid must match the channel id generated by the registration
	// service, which hands it out in hex form.
	data := map[string]string{"chid": n.ChannelIDHex()}
	if routerData.Token == "" {
		return nil, r.routeError("No registration token found. Rejecting message.", 410, 106)
	}
	regID := routerData.Token
	// Payload is optional; the endpoint layer has already verified that
	// the encryption headers accompany it.
	if len(n.Data) > 0 {
		if len(n.Data) > r.cfg.MaxData {
			return nil, r.routeError(fmt.Sprintf(
				"This message is intended for a constrained device and is "+
					"limited to 3070 bytes. Converted buffer too long by %d bytes",
				len(n.Data)-r.cfg.MaxData), 413, 104)
		}
		data["body"] = string(n.Data)
		data["con"] = n.Headers.Encoding
		data["enc"] = n.Headers.Encryption
		if n.Headers.CryptoKey != "" {
			data["cryptokey"] = n.Headers.CryptoKey
		} else if n.Headers.EncryptionKey != "" {
			data["enckey"] = n.Headers.EncryptionKey
		}
	}

	ttl := router.EffectiveTTL(r.cfg.MinTTL, n.TTL)
	reply, err := r.client.NotifySingleDevice(context.Background(), &Message{
		RegistrationID: regID,
		CollapseKey:    r.cfg.CollapseKey,
		Data:           data,
		DryRun:         r.cfg.DryRun || routerData.DryRun,
		TimeToLive:     ttl,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrAuthentication):
			// Credentials are static; retrying reproduces the failure.
			r.logger.Error("Authentication error", "err", err)
			return nil, &router.Error{Message: "Server error", Status: 500, LogException: true}
		case errors.Is(err, ErrConnection):
			r.increment("updates.client.bridge.fcm.connection_err")
			r.logger.Warn("Could not connect to FCM server", "err", err)
			return nil, &router.Error{Message: "Server error", Status: 502}
		default:
			r.logger.Error("Unhandled FCM error", "err", err)
			return nil, &router.Error{Message: "Server error", Status: 500, LogException: true}
		}
	}
	r.increment("updates.client.bridge.fcm.attempted")
	return r.processReply(reply, n, routerData, ttl)
}

// processReply interprets the gateway reply. Every branch terminates in
// exactly one of Response or Error.
func (r *Router) processReply(reply *Reply, n router.Notification, routerData router.RouterData, ttl int64) (*router.Response, error) {
	var result Result
	if len(reply.Results) > 0 {
		result = reply.Results[0]
	}

	if reply.CanonicalIDs > 0 {
		// The gateway rotated the instance token. The registry must store
		// the replacement before a retry can succeed, so the caller gets a
		// retry instruction instead of a silent success.
		r.logger.Info("FCM id changed", "old", routerData.Token, "new", result.RegistrationID)
		r.increment("updates.client.bridge.fcm.failed.rereg")
		return &router.Response{
			Status:     503,
			Body:       "Please try request again.",
			RouterData: map[string]string{"token": result.RegistrationID},
		}, nil
	}

	if reply.Failure > 0 {
		r.increment("updates.client.bridge.fcm.failed")
		reason := result.Error
		if reason == "" {
			reason = unreported
		}
		entry := Reason(reason)
		if entry.Critical {
			// Critical reasons mean misconfiguration on our side. Keep the
			// detail in the logs and give the caller a generic retry;
			// registered creds may be absent on old records, so only fields
			// we actually hold are attached.
			r.logger.Log(context.Background(), router.LevelCritical, entry.Message,
				"nlen", len(n.Data),
				"regid", routerData.Token,
				"senderid", r.cfg.SenderID,
				"ttl", n.TTL,
			)
			return nil, &router.Error{
				Message: "FCM failure to deliver",
				Status:  entry.Status,
				Body:    "Please try request later.",
			}
		}
		senderID := ""
		if routerData.Creds != nil {
			senderID = routerData.Creds.SenderID
		}
		r.logger.Info(entry.Message, "senderid", senderID, "reason", reason)
		return &router.Response{
			Status:     entry.Status,
			ErrNo:      entry.ErrNo,
			Body:       entry.Message,
			RouterData: map[string]string{},
		}, nil
	}

	r.increment("updates.client.bridge.fcm.succeeded")
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

// routeError logs the rejection at debug and wraps it in the structured
// failure returned to the endpoint layer. These are expected client-input
// conditions, never logged as exceptions.
func (r *Router) routeError(msg string, status, errno int) *router.Error {
	r.logger.Debug(msg, "status", status, "errno", errno)
	return &router.Error{Message: msg, Status: status, ErrNo: errno, Body: msg}
}

func (r *Router) increment(name string) {
	if r.settings.Metrics != nil {
		r.settings.Metrics.Increment(name, "platform:fcm")
	}
}
