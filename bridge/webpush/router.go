// Package webpush routes notifications to browsers through their push
// services using the Web Push protocol with VAPID authentication.
package webpush

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/SherClockHolmes/webpush-go"

	"github.com/josejibin/autopush/pkg/router"
)

// Config holds the VAPID key pair plus the router policy knobs shared with
// the other bridges.
type Config struct {
	PublicKey       string
	PrivateKey      string
	SubscriberEmail string
	MinTTL          int64
	MaxData         int
}

const (
	defaultMinTTL  = 60
	defaultMaxData = 4096
)

// Router delivers notifications to browser push services. Routing data for
// this bridge is the subscription the browser handed out: endpoint URL
// plus key material.
type Router struct {
	cfg        Config
	settings   router.Settings
	pool       *router.Pool
	httpClient *http.Client
	logger     *slog.Logger
}

var _ router.Router = (*Router)(nil)

func New(cfg Config, settings router.Settings, pool *router.Pool, logger *slog.Logger) (*Router, error) {
	if cfg.PublicKey == "" || cfg.PrivateKey == "" {
		return nil, errors.New("webpush: VAPID key pair is required")
	}
	if pool == nil {
		return nil, errors.New("webpush: dispatch pool is required")
	}
	if cfg.MinTTL <= 0 {
		cfg.MinTTL = defaultMinTTL
	}
	if cfg.MaxData <= 0 {
		cfg.MaxData = defaultMaxData
	}
	r := &Router{
		cfg:        cfg,
		settings:   settings,
		pool:       pool,
		httpClient: &http.Client{},
		logger:     logger.With("component", "WebPushRouter"),
	}
	r.logger.Debug("Starting Web Push router")
	return r, nil
}

// Register validates that the subscription carries an endpoint and key
// material. The application id, when supplied, must match our VAPID public
// key; a subscription created against a different key is unreachable.
func (r *Router) Register(uaid string, routerData router.RouterData, appID string) (router.RouterData, error) {
	if routerData.Endpoint == "" || routerData.Keys.P256dh == "" || routerData.Keys.Auth == "" {
		return routerData, r.routeError("connect info missing Web Push subscription", 401, 0)
	}
	if appID != "" && appID != r.cfg.PublicKey {
		return routerData, r.routeError("Invalid application server key", 410, 105)
	}
	routerData.Creds = &router.Credentials{SenderID: r.cfg.PublicKey}
	return routerData, nil
}

// RouteNotification hands the blocking push-service call to the dispatch
// pool and returns the eventual outcome.
func (r *Router) RouteNotification(n router.Notification, userData router.UserData) *router.Future {
	routerData := userData.RouterData
	return r.pool.Submit(func() (*router.Response, error) {
		return r.route(n, routerData)
	})
}

// AmendEndpointResponse copies the VAPID key the subscription was
// registered against into the outward registration response.
func (r *Router) AmendEndpointResponse(body map[string]any, routerData router.RouterData) {
	senderID := ""
	if routerData.Creds != nil {
		senderID = routerData.Creds.SenderID
	}
	body["senderid"] = senderID
}

func (r *Router) route(n router.Notification, routerData router.RouterData) (*router.Response, error) {
	if routerData.Endpoint == "" {
		return nil, r.routeError("No subscription endpoint found. Rejecting message.", 410, 106)
	}
	if len(n.Data) > r.cfg.MaxData {
		return nil, r.routeError(fmt.Sprintf(
			"This message is intended for a constrained device and is "+
				"limited to 3070 bytes. Converted buffer too long by %d bytes",
			len(n.Data)-r.cfg.MaxData), 413, 104)
	}

	ttl := router.EffectiveTTL(r.cfg.MinTTL, n.TTL)
	resp, err := webpush.SendNotification(n.Data, &webpush.Subscription{
		Endpoint: routerData.Endpoint,
		Keys: webpush.Keys{
			P256dh: routerData.Keys.P256dh,
			Auth:   routerData.Keys.Auth,
		},
	}, &webpush.Options{
		Subscriber:      r.cfg.SubscriberEmail,
		VAPIDPublicKey:  r.cfg.PublicKey,
		VAPIDPrivateKey: r.cfg.PrivateKey,
		TTL:             int(ttl),
		HTTPClient:      r.httpClient,
	})
	if err != nil {
		r.increment("updates.client.bridge.webpush.connection_err")
		r.logger.Warn("Could not reach push service", "endpoint", routerData.Endpoint, "err", err)
		return nil, &router.Error{Message: "Server error", Status: 502}
	}
	defer resp.Body.Close()
	r.increment("updates.client.bridge.webpush.attempted")
	return r.processStatus(resp.StatusCode, n, ttl)
}

// processStatus translates the push-service HTTP status. Every branch
// terminates in exactly one of Response or Error.
func (r *Router) processStatus(status int, n router.Notification, ttl int64) (*router.Response, error) {
	switch {
	case status == http.StatusCreated || status == http.StatusOK:
		r.increment("updates.client.bridge.webpush.succeeded")
		return &router.Response{
			Status: 201,
			Body:   "",
			Headers: map[string]string{
				"TTL":      strconv.FormatInt(ttl, 10),
				"Location": fmt.Sprintf("%s/m/%s", r.settings.EndpointBaseURL, n.Version),
			},
			LoggedStatus: 200,
		}, nil
	case status == http.StatusGone || status == http.StatusNotFound:
		// Subscription is dead; the registry must drop it.
		r.increment("updates.client.bridge.webpush.failed")
		return nil, r.routeError("subscription has unsubscribed or expired", 410, 103)
	case status == http.StatusRequestEntityTooLarge:
		r.increment("updates.client.bridge.webpush.failed")
		return nil, r.routeError("Message length was too big", 413, 104)
	case status == http.StatusTooManyRequests:
		r.increment("updates.client.bridge.webpush.failed")
		return nil, r.routeError("Too many messages for this subscription", 503, 4)
	default:
		r.increment("updates.client.bridge.webpush.failed")
		r.logger.Warn("Push service rejected delivery", "status", status)
		return nil, &router.Error{Message: "Server error", Status: 502}
	}
}

func (r *Router) routeError(msg string, status, errno int) *router.Error {
	r.logger.Debug(msg, "status", status, "errno", errno)
	return &router.Error{Message: msg, Status: status, ErrNo: errno, Body: msg}
}

func (r *Router) increment(name string) {
	if r.settings.Metrics != nil {
		r.settings.Metrics.Increment(name, "platform:webpush")
	}
}
