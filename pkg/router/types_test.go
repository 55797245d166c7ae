package router_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josejibin/autopush/pkg/router"
)

func TestNotification_ChannelIDHex(t *testing.T) {
	chid := uuid.MustParse("deadbeef-0000-4000-8000-0123456789ab")
	n := router.Notification{ChannelID: chid}
	assert.Equal(t, "deadbeef0000400080000123456789ab", n.ChannelIDHex())
	assert.Len(t, n.ChannelIDHex(), 32)
	assert.NotContains(t, n.ChannelIDHex(), "-")
}

func TestError_Error(t *testing.T) {
	withErrno := &router.Error{Message: "Invalid SenderID", Status: 410, ErrNo: 105}
	assert.Equal(t, "router error 410 (errno 105): Invalid SenderID", withErrno.Error())

	plain := &router.Error{Message: "Server error", Status: 500}
	assert.Equal(t, "router error 500: Server error", plain.Error())

	var err error = plain
	var routerErr *router.Error
	require.ErrorAs(t, err, &routerErr)
}
