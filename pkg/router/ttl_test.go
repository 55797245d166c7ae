package router_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/josejibin/autopush/pkg/router"
)

func TestEffectiveTTL(t *testing.T) {
	cases := []struct {
		name      string
		minTTL    int64
		requested int64
		want      int64
	}{
		{"unset request takes the floor", 60, 0, 60},
		{"below floor is raised", 60, 30, 60},
		{"within range passes through", 60, 3600, 3600},
		{"exactly the floor", 60, 60, 60},
		{"exactly the ceiling", 60, router.MaxTTL, router.MaxTTL},
		{"above ceiling is clamped", 60, 99999999, 2419200},
		{"custom floor", 300, 120, 300},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, router.EffectiveTTL(tc.minTTL, tc.requested))
		})
	}
}
