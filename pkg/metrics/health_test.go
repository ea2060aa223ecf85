package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetComponents(t *testing.T) {
	t.Helper()
	components = newComponentRegistry()
}

func TestSetComponent(t *testing.T) {
	resetComponents(t)

	SetComponent("grpc", false, "starting")
	SetComponent("grpc", true, "serving")

	all := Components()
	require.Len(t, all, 1)
	assert.True(t, all["grpc"].Healthy)
	assert.Equal(t, "serving", all["grpc"].Message)
	assert.False(t, all["grpc"].Updated.IsZero())

	all["grpc"] = Component{}
	assert.True(t, Components()["grpc"].Healthy, "Components must return a copy")
}

func TestReadiness(t *testing.T) {
	tests := []struct {
		name        string
		critical    []string
		components  map[string]bool
		wantReady   bool
		wantChecks  map[string]string
		wantMessage string
	}{
		{
			name:       "default critical serving",
			components: map[string]bool{"grpc": true},
			wantReady:  true,
			wantChecks: map[string]string{"grpc": "ready"},
		},
		{
			name:        "critical not registered",
			critical:    []string{"grpc", "join"},
			components:  map[string]bool{"grpc": true},
			wantReady:   false,
			wantChecks:  map[string]string{"grpc": "ready", "join": "not registered"},
			wantMessage: "waiting for join",
		},
		{
			name:        "first failing component named",
			critical:    []string{"join", "grpc"},
			components:  map[string]bool{"grpc": false, "join": false},
			wantReady:   false,
			wantChecks:  map[string]string{"grpc": "not ready: x", "join": "not ready: x"},
			wantMessage: "waiting for grpc",
		},
		{
			name:       "non-critical ignored",
			components: map[string]bool{"grpc": true, "join": false},
			wantReady:  true,
			wantChecks: map[string]string{"grpc": "ready"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetComponents(t)
			if tt.critical != nil {
				SetCriticalComponents(tt.critical...)
			}
			for name, healthy := range tt.components {
				SetComponent(name, healthy, "x")
			}

			ready, checks, message := Readiness()
			assert.Equal(t, tt.wantReady, ready)
			assert.Equal(t, tt.wantChecks, checks)
			assert.Equal(t, tt.wantMessage, message)
		})
	}
}

func TestVersionAndUptime(t *testing.T) {
	resetComponents(t)
	SetVersion("1.2.3")

	assert.Equal(t, "1.2.3", Version())
	time.Sleep(time.Millisecond)
	assert.Positive(t, Uptime())
}
