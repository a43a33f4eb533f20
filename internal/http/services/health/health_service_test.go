package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCheck_Status(t *testing.T) {
	ok := func(context.Context) error { return nil }
	fail := func(context.Context) error { return errors.New("down") }
	fixed := func() time.Time { return time.Unix(100, 0) }

	cases := []struct {
		name   string
		checks []Check
		want   string
	}{
		{"no checks", nil, "ready"},
		{"all ok", []Check{{Name: "a", Critical: true, Fn: ok}}, "ready"},
		{"non critical fails", []Check{{Name: "a", Critical: true, Fn: ok}, {Name: "b", Fn: fail}}, "degraded"},
		{"critical fails", []Check{{Name: "a", Critical: true, Fn: fail}, {Name: "b", Fn: fail}}, "unavailable"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := NewHealthService(Deps{Service: "token", Checks: tc.checks, Now: fixed}).Check(context.Background())
			require.Equal(t, tc.want, resp.Status)
			require.Equal(t, "token", resp.Service)
			require.Len(t, resp.Components, len(tc.checks))
			require.Equal(t, time.Unix(100, 0).UTC(), resp.Timestamp)
		})
	}
}
