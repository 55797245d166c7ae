package apns_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/sideshow/apns2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/josejibin/autopush/bridge/apns"
	"github.com/josejibin/autopush/pkg/router"
)

// MockClient satisfies the apns.Client interface.
type MockClient struct {
	mock.Mock
}

func (m *MockClient) Push(n *apns2.Notification) (*apns2.Response, error) {
	args := m.Called(n)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*apns2.Response), args.Error(1)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func baseConfig() apns.Config {
	return apns.Config{KeyID: "KEY1", TeamID: "TEAM1", BundleID: "com.example.app"}
}

func newTestRouter(t *testing.T, cfg apns.Config, client apns.Client) *apns.Router {
	t.Helper()
	pool := router.NewPool(1)
	t.Cleanup(pool.Close)
	settings := router.Settings{EndpointBaseURL: "https://updates.example.com"}
	r, err := apns.New(cfg, settings, client, pool, newTestLogger())
	require.NoError(t, err)
	return r
}

func route(t *testing.T, r *apns.Router, n router.Notification, rd router.RouterData) (*router.Response, error) {
	t.Helper()
	fut := r.RouteNotification(n, router.UserData{UAID: "uaid-1", RouterData: rd})
	return fut.Wait(context.Background())
}

func TestNewClient_BadKeyFailsFast(t *testing.T) {
	cfg := baseConfig()
	cfg.P8Key = "not a pem key"
	_, err := apns.NewClient(cfg)
	assert.Error(t, err)
}

func TestRegister(t *testing.T) {
	r := newTestRouter(t, baseConfig(), new(MockClient))

	t.Run("stamps bundle identity", func(t *testing.T) {
		out, err := r.Register("uaid-1", router.RouterData{Token: "device-token"}, "com.example.app")
		require.NoError(t, err)
		require.NotNil(t, out.Creds)
		assert.Equal(t, "com.example.app", out.Creds.SenderID)
	})

	t.Run("missing token", func(t *testing.T) {
		_, err := r.Register("uaid-1", router.RouterData{}, "com.example.app")
		var routerErr *router.Error
		require.ErrorAs(t, err, &routerErr)
		assert.Equal(t, 401, routerErr.Status)
	})

	t.Run("bundle mismatch", func(t *testing.T) {
		_, err := r.Register("uaid-1", router.RouterData{Token: "device-token"}, "com.other.app")
		var routerErr *router.Error
		require.ErrorAs(t, err, &routerErr)
		assert.Equal(t, 410, routerErr.Status)
		assert.Equal(t, 105, routerErr.ErrNo)
	})
}

func TestRoute_Lifecycle(t *testing.T) {
	chid := uuid.New()
	rd := router.RouterData{Token: "device-token"}

	t.Run("sent yields 201 with location and ttl", func(t *testing.T) {
		client := new(MockClient)
		r := newTestRouter(t, baseConfig(), client)

		var sent *apns2.Notification
		client.On("Push", mock.Anything).
			Run(func(args mock.Arguments) {
				sent = args.Get(0).(*apns2.Notification)
			}).
			Return(&apns2.Response{StatusCode: http.StatusOK}, nil)

		n := router.Notification{ChannelID: chid, Version: "ver-9", TTL: 30}
		resp, err := route(t, r, n, rd)
		require.NoError(t, err)
		assert.Equal(t, 201, resp.Status)
		assert.Equal(t, "60", resp.Headers["TTL"])
		assert.Equal(t, "https://updates.example.com/m/ver-9", resp.Headers["Location"])
		assert.Equal(t, 200, resp.LoggedStatus)

		require.NotNil(t, sent)
		assert.Equal(t, "device-token", sent.DeviceToken)
		assert.Equal(t, "com.example.app", sent.Topic)
		assert.False(t, sent.Expiration.IsZero())
	})

	t.Run("missing token", func(t *testing.T) {
		client := new(MockClient)
		r := newTestRouter(t, baseConfig(), client)

		_, err := route(t, r, router.Notification{ChannelID: chid}, router.RouterData{})
		var routerErr *router.Error
		require.ErrorAs(t, err, &routerErr)
		assert.Equal(t, 410, routerErr.Status)
		assert.Equal(t, 106, routerErr.ErrNo)
		client.AssertNotCalled(t, "Push", mock.Anything)
	})

	t.Run("oversized payload", func(t *testing.T) {
		client := new(MockClient)
		cfg := baseConfig()
		cfg.MaxData = 32
		r := newTestRouter(t, cfg, client)

		n := router.Notification{ChannelID: chid, Data: make([]byte, 40)}
		_, err := route(t, r, n, rd)
		var routerErr *router.Error
		require.ErrorAs(t, err, &routerErr)
		assert.Equal(t, 413, routerErr.Status)
		assert.Equal(t, 104, routerErr.ErrNo)
	})

	t.Run("transport error yields 502", func(t *testing.T) {
		client := new(MockClient)
		r := newTestRouter(t, baseConfig(), client)
		client.On("Push", mock.Anything).Return(nil, errors.New("network down"))

		_, err := route(t, r, router.Notification{ChannelID: chid}, rd)
		var routerErr *router.Error
		require.ErrorAs(t, err, &routerErr)
		assert.Equal(t, 502, routerErr.Status)
	})

	t.Run("rejection reasons", func(t *testing.T) {
		cases := []struct {
			reason     string
			wantStatus int
			wantErrNo  int
		}{
			{apns2.ReasonUnregistered, 410, 103},
			{apns2.ReasonBadDeviceToken, 410, 103},
			{apns2.ReasonDeviceTokenNotForTopic, 410, 103},
			{apns2.ReasonExpiredProviderToken, 500, 0},
			{apns2.ReasonPayloadTooLarge, 413, 104},
			{apns2.ReasonTooManyRequests, 503, 4},
			{apns2.ReasonInternalServerError, 502, 0},
		}
		for _, tc := range cases {
			t.Run(tc.reason, func(t *testing.T) {
				client := new(MockClient)
				r := newTestRouter(t, baseConfig(), client)
				client.On("Push", mock.Anything).
					Return(&apns2.Response{StatusCode: http.StatusGone, Reason: tc.reason}, nil)

				_, err := route(t, r, router.Notification{ChannelID: chid}, rd)
				var routerErr *router.Error
				require.ErrorAs(t, err, &routerErr)
				assert.Equal(t, tc.wantStatus, routerErr.Status)
				if tc.wantErrNo != 0 {
					assert.Equal(t, tc.wantErrNo, routerErr.ErrNo)
				}
			})
		}
	})
}
