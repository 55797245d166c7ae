// Package config carries the router configuration for every delivery
// bridge. A YAML file provides the base values; environment variables
// override them and a final pass validates and fills defaults.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
)

// FCMConfig configures the legacy FCM bridge.
type FCMConfig struct {
	Enabled     bool
	SenderID    string
	Auth        string
	MinTTL      int64
	DryRun      bool
	CollapseKey string
	MaxData     int
}

// FCMv1Config configures the FCM HTTP v1 bridge.
type FCMv1Config struct {
	Enabled         bool
	ProjectID       string
	CredentialsFile string
	MinTTL          int64
	DryRun          bool
	CollapseKey     string
	MaxData         int
}

// APNSConfig configures the APNs bridge.
type APNSConfig struct {
	Enabled  bool
	KeyID    string
	TeamID   string
	BundleID string
	// P8KeyFile points at the .p8 signing key on disk.
	P8KeyFile string
	Sandbox   bool
	MinTTL    int64
	MaxData   int
}

// WebPushConfig configures the Web Push bridge.
type WebPushConfig struct {
	Enabled         bool
	PublicKey       string
	PrivateKey      string
	SubscriberEmail string
	MinTTL          int64
	MaxData         int
}

// Config is the single, authoritative router configuration.
type Config struct {
	// EndpointBaseURL is the public base of the message endpoint, used for
	// Location headers on successful delivery.
	EndpointBaseURL string
	// Workers bounds the dispatch pool shared by the bridges.
	Workers int

	FCM     FCMConfig
	FCMv1   FCMv1Config
	APNS    APNSConfig
	WebPush WebPushConfig
}

// UpdateConfigWithEnvOverrides applies environment variables and final
// validation.
func UpdateConfigWithEnvOverrides(cfg *Config, logger *slog.Logger) (*Config, error) {
	logger.Debug("Applying environment variable overrides")

	if val := os.Getenv("ENDPOINT_BASE_URL"); val != "" {
		logger.Debug("Overriding config value", "key", "ENDPOINT_BASE_URL", "source", "env")
		cfg.EndpointBaseURL = val
	}
	if val := os.Getenv("ROUTER_WORKERS"); val != "" {
		if workers, err := strconv.Atoi(val); err == nil && workers > 0 {
			logger.Debug("Overriding config value", "key", "ROUTER_WORKERS", "source", "env")
			cfg.Workers = workers
		}
	}

	// FCM overrides
	if val := os.Getenv("FCM_SENDER_ID"); val != "" {
		cfg.FCM.SenderID = val
		cfg.FCM.Enabled = true
	}
	if val := os.Getenv("FCM_AUTH"); val != "" {
		cfg.FCM.Auth = val
	}
	if val := os.Getenv("FCM_MIN_TTL"); val != "" {
		if ttl, err := strconv.ParseInt(val, 10, 64); err == nil && ttl > 0 {
			cfg.FCM.MinTTL = ttl
		}
	}
	if val := os.Getenv("FCM_MAX_DATA"); val != "" {
		if max, err := strconv.Atoi(val); err == nil && max > 0 {
			cfg.FCM.MaxData = max
		}
	}
	if val := os.Getenv("FCM_DRY_RUN"); val != "" {
		dryRun, _ := strconv.ParseBool(val)
		cfg.FCM.DryRun = dryRun
	}
	if val := os.Getenv("FCM_COLLAPSE_KEY"); val != "" {
		cfg.FCM.CollapseKey = val
	}

	// FCM v1 overrides
	if val := os.Getenv("FCMV1_PROJECT_ID"); val != "" {
		cfg.FCMv1.ProjectID = val
		cfg.FCMv1.Enabled = true
	}
	if val := os.Getenv("FCMV1_CREDENTIALS_FILE"); val != "" {
		cfg.FCMv1.CredentialsFile = val
	}

	// APNS overrides
	if val := os.Getenv("APNS_KEY_ID"); val != "" {
		cfg.APNS.KeyID = val
		cfg.APNS.Enabled = true
	}
	if val := os.Getenv("APNS_TEAM_ID"); val != "" {
		cfg.APNS.TeamID = val
	}
	if val := os.Getenv("APNS_BUNDLE_ID"); val != "" {
		cfg.APNS.BundleID = val
	}
	if val := os.Getenv("APNS_P8_KEY_FILE"); val != "" {
		cfg.APNS.P8KeyFile = val
	}
	if val := os.Getenv("APNS_SANDBOX"); val != "" {
		sandbox, _ := strconv.ParseBool(val)
		cfg.APNS.Sandbox = sandbox
	}

	// VAPID overrides
	if val := os.Getenv("VAPID_PUBLIC_KEY"); val != "" {
		cfg.WebPush.PublicKey = val
		cfg.WebPush.Enabled = true
	}
	if val := os.Getenv("VAPID_PRIVATE_KEY"); val != "" {
		cfg.WebPush.PrivateKey = val
	}
	if val := os.Getenv("VAPID_SUB_EMAIL"); val != "" {
		cfg.WebPush.SubscriberEmail = val
	}

	// Final validation and defaults
	if cfg.EndpointBaseURL == "" {
		return nil, fmt.Errorf("endpoint_base_url is required (set via YAML or ENDPOINT_BASE_URL env var)")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.FCM.Enabled {
		if cfg.FCM.SenderID == "" || cfg.FCM.Auth == "" {
			return nil, fmt.Errorf("fcm bridge requires sender_id and auth")
		}
		applyBridgeDefaults(&cfg.FCM.MinTTL, &cfg.FCM.MaxData)
		if cfg.FCM.CollapseKey == "" {
			cfg.FCM.CollapseKey = "webpush"
		}
	}
	if cfg.FCMv1.Enabled {
		if cfg.FCMv1.ProjectID == "" {
			return nil, fmt.Errorf("fcmv1 bridge requires project_id")
		}
		applyBridgeDefaults(&cfg.FCMv1.MinTTL, &cfg.FCMv1.MaxData)
		if cfg.FCMv1.CollapseKey == "" {
			cfg.FCMv1.CollapseKey = "webpush"
		}
	}
	if cfg.APNS.Enabled {
		if cfg.APNS.KeyID == "" || cfg.APNS.TeamID == "" || cfg.APNS.BundleID == "" || cfg.APNS.P8KeyFile == "" {
			return nil, fmt.Errorf("apns bridge requires key_id, team_id, bundle_id and p8_key_file")
		}
		applyBridgeDefaults(&cfg.APNS.MinTTL, &cfg.APNS.MaxData)
	}
	if cfg.WebPush.Enabled {
		if cfg.WebPush.PublicKey == "" || cfg.WebPush.PrivateKey == "" {
			return nil, fmt.Errorf("webpush bridge requires the VAPID key pair")
		}
		applyBridgeDefaults(&cfg.WebPush.MinTTL, &cfg.WebPush.MaxData)
	}

	logger.Debug("Configuration finalized and validated successfully")
	return cfg, nil
}

func applyBridgeDefaults(minTTL *int64, maxData *int) {
	if *minTTL <= 0 {
		*minTTL = 60
	}
	if *maxData <= 0 {
		*maxData = 4096
	}
}
