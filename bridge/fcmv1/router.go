// Package fcmv1 routes notifications through the FCM HTTP v1 API using the
// Firebase Admin SDK. It carries the same contract as the legacy bridge,
// but the SDK owns transport, auth, and reply parsing, so vendor failures
// arrive as typed errors instead of reason strings.
package fcmv1

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"github.com/josejibin/autopush/bridge/fcm"
	"github.com/josejibin/autopush/pkg/router"
)

// Client is the subset of the Firebase Messaging API the router uses.
// *messaging.Client satisfies it; tests supply a mock.
type Client interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
	SendDryRun(ctx context.Context, message *messaging.Message) (string, error)
}

// Config is the router configuration block this bridge recognizes. The
// project id doubles as the sender identity devices register against.
type Config struct {
	ProjectID   string
	MinTTL      int64
	DryRun      bool
	CollapseKey string
	MaxData     int
}

const (
	defaultMinTTL      = 60
	defaultCollapseKey = "webpush"
	defaultMaxData     = 4096
)

// NewMessagingClient builds the concrete Firebase messaging client from a
// service-account credential. Nil credentials fall back to application
// default credentials. It fails fast so a bad credential stops the service
// at startup rather than on the first send.
func NewMessagingClient(ctx context.Context, projectID string, credentialsJSON []byte) (*messaging.Client, error) {
	var opts []option.ClientOption
	if credentialsJSON != nil {
		opts = append(opts, option.WithCredentialsJSON(credentialsJSON))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("fcmv1: firebase app init failed: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("fcmv1: messaging client init failed: %w", err)
	}
	return client, nil
}

// Router delivers notifications to Android devices through the FCM v1 API.
type Router struct {
	cfg      Config
	settings router.Settings
	client   Client
	pool     *router.Pool
	logger   *slog.Logger
}

var _ router.Router = (*Router)(nil)

func New(cfg Config, settings router.Settings, client Client, pool *router.Pool, logger *slog.Logger) (*Router, error) {
	if cfg.ProjectID == "" {
		return nil, errors.New("fcmv1: projectID is required")
	}
	if client == nil {
		return nil, errors.New("fcmv1: messaging client not initialized")
	}
	if pool == nil {
		return nil, errors.New("fcmv1: dispatch pool is required")
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
		logger:   logger.With("component", "FCMv1Router"),
	}
	r.logger.Debug("Starting FCM v1 router")
	return r, nil
}

// Register validates the instance token and project binding, and stamps
// the routing data with the identity used for delivery.
func (r *Router) Register(uaid string, routerData router.RouterData, appID string) (router.RouterData, error) {
	if routerData.Token == "" {
		return routerData, r.routeError("connect info missing FCM Instance 'token'", 401, 0)
	}
	if appID != r.cfg.ProjectID {
		return routerData, r.routeError("Invalid SenderID", 410, 105)
	}
	routerData.Creds = &router.Credentials{SenderID: r.cfg.ProjectID}
	return routerData, nil
}

// RouteNotification hands the blocking SDK call to the dispatch pool and
// returns the eventual outcome.
func (r *Router) RouteNotification(n router.Notification, userData router.UserData) *router.Future {
	routerData := userData.RouterData
	return r.pool.Submit(func() (*router.Response, error) {
		return r.route(n, routerData)
	})
}

// AmendEndpointResponse copies the registered sender id into the outward
// registration response.
func (r *Router) AmendEndpointResponse(body map[string]any, routerData router.RouterData) {
	senderID := ""
	if routerData.Creds != nil {
		senderID = routerData.Creds.SenderID
	}
	body["senderid"] = senderID
}

func (r *Router) route(n router.Notification, routerData router.RouterData) (*router.Response, error) {
	data := map[string]string{"chid": n.ChannelIDHex()}
	if routerData.Token == "" {
		return nil, r.routeError("No registration token found. Rejecting message.", 410, 106)
	}
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
	ttlDur := time.Duration(ttl) * time.Second
	msg := &messaging.Message{
		Token: routerData.Token,
		Data:  data,
		Android: &messaging.AndroidConfig{
			CollapseKey: r.cfg.CollapseKey,
			TTL:         &ttlDur,
		},
	}

	ctx := context.Background()
	send := r.client.Send
	if r.cfg.DryRun || routerData.DryRun {
		send = r.client.SendDryRun
	}
	if _, err := send(ctx, msg); err != nil {
		return r.processError(err, n, routerData)
	}

	r.increment("updates.client.bridge.fcmv1.attempted")
	r.increment("updates.client.bridge.fcmv1.succeeded")
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

// processError folds the SDK's typed errors back into the shared reason
// taxonomy so both FCM bridges surface identical outcomes.
func (r *Router) processError(err error, n router.Notification, routerData router.RouterData) (*router.Response, error) {
	switch {
	case messaging.IsThirdPartyAuthError(err):
		// Credentials are static; retrying reproduces the failure.
		r.logger.Error("Authentication error", "err", err)
		return nil, &router.Error{Message: "Server error", Status: 500, LogException: true}
	case messaging.IsUnavailable(err):
		r.increment("updates.client.bridge.fcmv1.connection_err")
		r.logger.Warn("Could not reach FCM service", "err", err)
		return nil, &router.Error{Message: "Server error", Status: 502}
	}

	reason := classify(err)
	if reason == "" {
		r.logger.Error("Unhandled FCM error", "err", err)
		return nil, &router.Error{Message: "Server error", Status: 500, LogException: true}
	}

	r.increment("updates.client.bridge.fcmv1.failed")
	entry := fcm.Reason(reason)
	if entry.Critical {
		r.logger.Log(context.Background(), router.LevelCritical, entry.Message,
			"nlen", len(n.Data),
			"regid", routerData.Token,
			"senderid", r.cfg.ProjectID,
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

// classify maps the SDK error predicates onto legacy reason keys. An empty
// result means the error fits no known delivery failure.
func classify(err error) string {
	switch {
	case messaging.IsRegistrationTokenNotRegistered(err):
		return "NotRegistered"
	case messaging.IsSenderIDMismatch(err):
		return "MismatchSenderid"
	case messaging.IsQuotaExceeded(err):
		return "DeviceMessageRateExceeded"
	case messaging.IsInvalidArgument(err):
		return "InvalidRegistration"
	case messaging.IsInternal(err):
		return "InternalServerError"
	}
	return ""
}

func (r *Router) routeError(msg string, status, errno int) *router.Error {
	r.logger.Debug(msg, "status", status, "errno", errno)
	return &router.Error{Message: msg, Status: status, ErrNo: errno, Body: msg}
}

func (r *Router) increment(name string) {
	if r.settings.Metrics != nil {
		r.settings.Metrics.Increment(name, "platform:fcmv1")
	}
}
