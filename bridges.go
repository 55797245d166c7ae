// Package autopush assembles the delivery bridges of the push service
// from a single router configuration.
package autopush

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/josejibin/autopush/bridge/apns"
	"github.com/josejibin/autopush/bridge/fcm"
	"github.com/josejibin/autopush/bridge/fcmv1"
	"github.com/josejibin/autopush/bridge/webpush"
	"github.com/josejibin/autopush/config"
	"github.com/josejibin/autopush/pkg/router"
)

// Bridges is the set of delivery backends built from one configuration.
// Keys are the router type names stored in device registration records.
type Bridges struct {
	routers map[string]router.Router
	pool    *router.Pool
}

// New builds every enabled bridge. Vendor clients are constructed up front
// so credential problems stop the service at startup instead of surfacing
// on the first send. The legacy FCM gateway client is an external
// collaborator and must be supplied by the caller when that bridge is
// enabled.
func New(ctx context.Context, cfg *config.Config, settings router.Settings, fcmClient fcm.Client, logger *slog.Logger) (*Bridges, error) {
	pool := router.NewPool(cfg.Workers)
	b := &Bridges{routers: make(map[string]router.Router), pool: pool}

	if cfg.FCM.Enabled {
		r, err := fcm.New(fcm.Config{
			SenderID:    cfg.FCM.SenderID,
			Auth:        cfg.FCM.Auth,
			MinTTL:      cfg.FCM.MinTTL,
			DryRun:      cfg.FCM.DryRun,
			CollapseKey: cfg.FCM.CollapseKey,
			MaxData:     cfg.FCM.MaxData,
		}, settings, fcmClient, pool, logger)
		if err != nil {
			pool.Close()
			return nil, err
		}
		b.routers["fcm"] = r
	}

	if cfg.FCMv1.Enabled {
		var creds []byte
		if cfg.FCMv1.CredentialsFile != "" {
			var err error
			creds, err = os.ReadFile(cfg.FCMv1.CredentialsFile)
			if err != nil {
				pool.Close()
				return nil, fmt.Errorf("failed to read fcmv1 credentials: %w", err)
			}
		}
		client, err := fcmv1.NewMessagingClient(ctx, cfg.FCMv1.ProjectID, creds)
		if err != nil {
			pool.Close()
			return nil, err
		}
		r, err := fcmv1.New(fcmv1.Config{
			ProjectID:   cfg.FCMv1.ProjectID,
			MinTTL:      cfg.FCMv1.MinTTL,
			DryRun:      cfg.FCMv1.DryRun,
			CollapseKey: cfg.FCMv1.CollapseKey,
			MaxData:     cfg.FCMv1.MaxData,
		}, settings, client, pool, logger)
		if err != nil {
			pool.Close()
			return nil, err
		}
		b.routers["fcmv1"] = r
	}

	if cfg.APNS.Enabled {
		p8, err := os.ReadFile(cfg.APNS.P8KeyFile)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to read APNs P8 key: %w", err)
		}
		apnsCfg := apns.Config{
			KeyID:    cfg.APNS.KeyID,
			TeamID:   cfg.APNS.TeamID,
			BundleID: cfg.APNS.BundleID,
			P8Key:    string(p8),
			Sandbox:  cfg.APNS.Sandbox,
			MinTTL:   cfg.APNS.MinTTL,
			MaxData:  cfg.APNS.MaxData,
		}
		client, err := apns.NewClient(apnsCfg)
		if err != nil {
			pool.Close()
			return nil, err
		}
		r, err := apns.New(apnsCfg, settings, client, pool, logger)
		if err != nil {
			pool.Close()
			return nil, err
		}
		b.routers["apns"] = r
	}

	if cfg.WebPush.Enabled {
		r, err := webpush.New(webpush.Config{
			PublicKey:       cfg.WebPush.PublicKey,
			PrivateKey:      cfg.WebPush.PrivateKey,
			SubscriberEmail: cfg.WebPush.SubscriberEmail,
			MinTTL:          cfg.WebPush.MinTTL,
			MaxData:         cfg.WebPush.MaxData,
		}, settings, pool, logger)
		if err != nil {
			pool.Close()
			return nil, err
		}
		b.routers["webpush"] = r
	}

	return b, nil
}

// Router returns the bridge registered for the given router type.
func (b *Bridges) Router(name string) (router.Router, bool) {
	r, ok := b.routers[name]
	return r, ok
}

// Names lists the enabled bridges.
func (b *Bridges) Names() []string {
	names := make([]string, 0, len(b.routers))
	for name := range b.routers {
		names = append(names, name)
	}
	return names
}

// Close drains the shared dispatch pool, waiting for in-flight deliveries.
func (b *Bridges) Close() {
	b.pool.Close()
}
