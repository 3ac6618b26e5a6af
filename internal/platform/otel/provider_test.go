package otel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetupDisabledIsNoop(t *testing.T) {
	ctx := context.Background()

	for name, cfg := range map[string]Config{
		"disabled":       {Enabled: false, Endpoint: "http://localhost:4318"},
		"empty endpoint": {Enabled: true},
	} {
		t.Run(name, func(t *testing.T) {
			shutdown, err := Setup(ctx, cfg)
			require.NoError(t, err)
			require.NoError(t, shutdown(ctx))
		})
	}
}
