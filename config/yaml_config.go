package config

import (
	"fmt"
	"log/slog"

	"gopkg.in/yaml.v3"
)

type YamlFCMConfig struct {
	Enabled     bool   `yaml:"enabled"`
	SenderID    string `yaml:"sender_id"`
	Auth        string `yaml:"auth"`
	MinTTL      int64  `yaml:"ttl"`
	DryRun      bool   `yaml:"dryrun"`
	CollapseKey string `yaml:"collapse_key"`
	MaxData     int    `yaml:"max_data"`
}

type YamlFCMv1Config struct {
	Enabled         bool   `yaml:"enabled"`
	ProjectID       string `yaml:"project_id"`
	CredentialsFile string `yaml:"credentials_file"`
	MinTTL          int64  `yaml:"ttl"`
	DryRun          bool   `yaml:"dryrun"`
	CollapseKey     string `yaml:"collapse_key"`
	MaxData         int    `yaml:"max_data"`
}

type YamlAPNSConfig struct {
	Enabled   bool   `yaml:"enabled"`
	KeyID     string `yaml:"key_id"`
	TeamID    string `yaml:"team_id"`
	BundleID  string `yaml:"bundle_id"`
	P8KeyFile string `yaml:"p8_key_file"`
	Sandbox   bool   `yaml:"sandbox"`
	MinTTL    int64  `yaml:"ttl"`
	MaxData   int    `yaml:"max_data"`
}

type YamlWebPushConfig struct {
	Enabled         bool   `yaml:"enabled"`
	PublicKey       string `yaml:"public_key"`
	PrivateKey      string `yaml:"private_key"`
	SubscriberEmail string `yaml:"subscriber_email"`
	MinTTL          int64  `yaml:"ttl"`
	MaxData         int    `yaml:"max_data"`
}

// YamlConfig mirrors the raw router.yaml file.
type YamlConfig struct {
	EndpointBaseURL string            `yaml:"endpoint_base_url"`
	Workers         int               `yaml:"workers"`
	FCM             YamlFCMConfig     `yaml:"fcm"`
	FCMv1           YamlFCMv1Config   `yaml:"fcmv1"`
	APNS            YamlAPNSConfig    `yaml:"apns"`
	WebPush         YamlWebPushConfig `yaml:"webpush"`
}

// NewConfigFromYaml converts the YamlConfig into a clean, base Config.
func NewConfigFromYaml(baseCfg *YamlConfig, logger *slog.Logger) (*Config, error) {
	logger.Debug("Mapping YAML config to base config struct")

	cfg := &Config{
		EndpointBaseURL: baseCfg.EndpointBaseURL,
		Workers:         baseCfg.Workers,
		FCM: FCMConfig{
			Enabled:     baseCfg.FCM.Enabled,
			SenderID:    baseCfg.FCM.SenderID,
			Auth:        baseCfg.FCM.Auth,
			MinTTL:      baseCfg.FCM.MinTTL,
			DryRun:      baseCfg.FCM.DryRun,
			CollapseKey: baseCfg.FCM.CollapseKey,
			MaxData:     baseCfg.FCM.MaxData,
		},
		FCMv1: FCMv1Config{
			Enabled:         baseCfg.FCMv1.Enabled,
			ProjectID:       baseCfg.FCMv1.ProjectID,
			CredentialsFile: baseCfg.FCMv1.CredentialsFile,
			MinTTL:          baseCfg.FCMv1.MinTTL,
			DryRun:          baseCfg.FCMv1.DryRun,
			CollapseKey:     baseCfg.FCMv1.CollapseKey,
			MaxData:         baseCfg.FCMv1.MaxData,
		},
		APNS: APNSConfig{
			Enabled:   baseCfg.APNS.Enabled,
			KeyID:     baseCfg.APNS.KeyID,
			TeamID:    baseCfg.APNS.TeamID,
			BundleID:  baseCfg.APNS.BundleID,
			P8KeyFile: baseCfg.APNS.P8KeyFile,
			Sandbox:   baseCfg.APNS.Sandbox,
			MinTTL:    baseCfg.APNS.MinTTL,
			MaxData:   baseCfg.APNS.MaxData,
		},
		WebPush: WebPushConfig{
			Enabled:         baseCfg.WebPush.Enabled,
			PublicKey:       baseCfg.WebPush.PublicKey,
			PrivateKey:      baseCfg.WebPush.PrivateKey,
			SubscriberEmail: baseCfg.WebPush.SubscriberEmail,
			MinTTL:          baseCfg.WebPush.MinTTL,
			MaxData:         baseCfg.WebPush.MaxData,
		},
	}

	logger.Debug("YAML config mapping complete",
		"endpoint_base_url", cfg.EndpointBaseURL,
		"workers", cfg.Workers,
	)

	return cfg, nil
}

// ParseYaml unmarshals raw YAML bytes into the mirror struct.
func ParseYaml(raw []byte) (*YamlConfig, error) {
	var yamlCfg YamlConfig
	if err := yaml.Unmarshal(raw, &yamlCfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal router yaml config: %w", err)
	}
	return &yamlCfg, nil
}
