package config_test

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josejibin/autopush/config"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const sampleYaml = `
endpoint_base_url: "https://updates.example.com"
workers: 8
fcm:
  enabled: true
  sender_id: "123456"
  auth: "fcm-server-key"
  ttl: 120
  dryrun: true
  collapse_key: "simplepush"
  max_data: 2048
fcmv1:
  enabled: true
  project_id: "proj-1"
  credentials_file: "/etc/autopush/fcm.json"
apns:
  enabled: true
  key_id: "KEY1"
  team_id: "TEAM1"
  bundle_id: "com.example.app"
  p8_key_file: "/etc/autopush/apns.p8"
  sandbox: true
webpush:
  enabled: true
  public_key: "vapid-public"
  private_key: "vapid-private"
  subscriber_email: "ops@example.com"
`

func loadSample(t *testing.T) *config.Config {
	t.Helper()
	yamlCfg, err := config.ParseYaml([]byte(sampleYaml))
	require.NoError(t, err)
	cfg, err := config.NewConfigFromYaml(yamlCfg, newTestLogger())
	require.NoError(t, err)
	return cfg
}

func TestParseYaml_MapsAllBridges(t *testing.T) {
	cfg := loadSample(t)

	assert.Equal(t, "https://updates.example.com", cfg.EndpointBaseURL)
	assert.Equal(t, 8, cfg.Workers)

	assert.True(t, cfg.FCM.Enabled)
	assert.Equal(t, "123456", cfg.FCM.SenderID)
	assert.Equal(t, "fcm-server-key", cfg.FCM.Auth)
	assert.Equal(t, int64(120), cfg.FCM.MinTTL)
	assert.True(t, cfg.FCM.DryRun)
	assert.Equal(t, "simplepush", cfg.FCM.CollapseKey)
	assert.Equal(t, 2048, cfg.FCM.MaxData)

	assert.True(t, cfg.FCMv1.Enabled)
	assert.Equal(t, "proj-1", cfg.FCMv1.ProjectID)
	assert.Equal(t, "/etc/autopush/fcm.json", cfg.FCMv1.CredentialsFile)

	assert.True(t, cfg.APNS.Enabled)
	assert.Equal(t, "KEY1", cfg.APNS.KeyID)
	assert.Equal(t, "TEAM1", cfg.APNS.TeamID)
	assert.Equal(t, "com.example.app", cfg.APNS.BundleID)
	assert.Equal(t, "/etc/autopush/apns.p8", cfg.APNS.P8KeyFile)
	assert.True(t, cfg.APNS.Sandbox)

	assert.True(t, cfg.WebPush.Enabled)
	assert.Equal(t, "vapid-public", cfg.WebPush.PublicKey)
	assert.Equal(t, "vapid-private", cfg.WebPush.PrivateKey)
	assert.Equal(t, "ops@example.com", cfg.WebPush.SubscriberEmail)
}

func TestParseYaml_Invalid(t *testing.T) {
	_, err := config.ParseYaml([]byte("fcm: [not a mapping"))
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Run("env values win over yaml", func(t *testing.T) {
		t.Setenv("ENDPOINT_BASE_URL", "https://override.example.com")
		t.Setenv("ROUTER_WORKERS", "16")
		t.Setenv("FCM_SENDER_ID", "654321")
		t.Setenv("FCM_MIN_TTL", "300")
		t.Setenv("FCM_DRY_RUN", "false")

		cfg, err := config.UpdateConfigWithEnvOverrides(loadSample(t), newTestLogger())
		require.NoError(t, err)
		assert.Equal(t, "https://override.example.com", cfg.EndpointBaseURL)
		assert.Equal(t, 16, cfg.Workers)
		assert.Equal(t, "654321", cfg.FCM.SenderID)
		assert.Equal(t, int64(300), cfg.FCM.MinTTL)
		assert.False(t, cfg.FCM.DryRun)
	})

	t.Run("bridge env vars enable the bridge", func(t *testing.T) {
		t.Setenv("ENDPOINT_BASE_URL", "https://updates.example.com")
		t.Setenv("FCM_SENDER_ID", "123456")
		t.Setenv("FCM_AUTH", "fcm-server-key")

		cfg, err := config.UpdateConfigWithEnvOverrides(&config.Config{}, newTestLogger())
		require.NoError(t, err)
		assert.True(t, cfg.FCM.Enabled)
		assert.False(t, cfg.WebPush.Enabled)
	})

	t.Run("malformed numeric override is ignored", func(t *testing.T) {
		t.Setenv("ROUTER_WORKERS", "lots")

		cfg, err := config.UpdateConfigWithEnvOverrides(
			&config.Config{EndpointBaseURL: "https://updates.example.com", Workers: 2},
			newTestLogger())
		require.NoError(t, err)
		assert.Equal(t, 2, cfg.Workers)
	})
}

func TestValidation(t *testing.T) {
	t.Run("endpoint base url is required", func(t *testing.T) {
		_, err := config.UpdateConfigWithEnvOverrides(&config.Config{}, newTestLogger())
		assert.ErrorContains(t, err, "endpoint_base_url")
	})

	t.Run("enabled fcm bridge requires credentials", func(t *testing.T) {
		cfg := &config.Config{
			EndpointBaseURL: "https://updates.example.com",
			FCM:             config.FCMConfig{Enabled: true, SenderID: "123456"},
		}
		_, err := config.UpdateConfigWithEnvOverrides(cfg, newTestLogger())
		assert.ErrorContains(t, err, "sender_id and auth")
	})

	t.Run("enabled apns bridge requires signing key", func(t *testing.T) {
		cfg := &config.Config{
			EndpointBaseURL: "https://updates.example.com",
			APNS:            config.APNSConfig{Enabled: true, KeyID: "KEY1", TeamID: "TEAM1"},
		}
		_, err := config.UpdateConfigWithEnvOverrides(cfg, newTestLogger())
		assert.ErrorContains(t, err, "apns bridge")
	})

	t.Run("enabled webpush bridge requires key pair", func(t *testing.T) {
		cfg := &config.Config{
			EndpointBaseURL: "https://updates.example.com",
			WebPush:         config.WebPushConfig{Enabled: true, PublicKey: "vapid-public"},
		}
		_, err := config.UpdateConfigWithEnvOverrides(cfg, newTestLogger())
		assert.ErrorContains(t, err, "VAPID key pair")
	})

	t.Run("disabled bridges are not validated", func(t *testing.T) {
		cfg := &config.Config{EndpointBaseURL: "https://updates.example.com"}
		out, err := config.UpdateConfigWithEnvOverrides(cfg, newTestLogger())
		require.NoError(t, err)
		assert.Equal(t, 4, out.Workers)
	})
}

func TestDefaults(t *testing.T) {
	cfg := &config.Config{
		EndpointBaseURL: "https://updates.example.com",
		FCM:             config.FCMConfig{Enabled: true, SenderID: "123456", Auth: "key"},
		WebPush:         config.WebPushConfig{Enabled: true, PublicKey: "pub", PrivateKey: "priv"},
	}
	out, err := config.UpdateConfigWithEnvOverrides(cfg, newTestLogger())
	require.NoError(t, err)

	assert.Equal(t, 4, out.Workers)
	assert.Equal(t, int64(60), out.FCM.MinTTL)
	assert.Equal(t, 4096, out.FCM.MaxData)
	assert.Equal(t, "webpush", out.FCM.CollapseKey)
	assert.Equal(t, int64(60), out.WebPush.MinTTL)
	assert.Equal(t, 4096, out.WebPush.MaxData)
}
