package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cuemby/googol/pkg/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthHandler(t *testing.T) {
	hs := NewHealthServer("queue")

	tests := []struct {
		name           string
		method         string
		expectedStatus int
	}{
		{
			name:           "GET request succeeds",
			method:         http.MethodGet,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "POST request fails",
			method:         http.MethodPost,
			expectedStatus: http.StatusMethodNotAllowed,
		},
		{
			name:           "DELETE request fails",
			method:         http.MethodDelete,
			expectedStatus: http.StatusMethodNotAllowed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/health", nil)
			w := httptest.NewRecorder()

			hs.GetHandler().ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)

			if tt.expectedStatus == http.StatusOK {
				var response HealthResponse
				require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
				assert.Equal(t, "healthy", response.Status)
				assert.Equal(t, "queue", response.Role)
				assert.NotZero(t, response.Timestamp)
			}
		})
	}
}

func TestReadyHandler(t *testing.T) {
	metrics.SetCriticalComponents("grpc")
	t.Cleanup(func() { metrics.SetCriticalComponents("grpc") })

	tests := []struct {
		name           string
		grpcHealthy    bool
		joined         bool
		expectedStatus int
		expectedState  string
	}{
		{"serving and joined", true, true, http.StatusOK, "ready"},
		{"still synching", true, false, http.StatusServiceUnavailable, "not ready"},
		{"grpc down", false, true, http.StatusServiceUnavailable, "not ready"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metrics.SetComponent("grpc", tt.grpcHealthy, "test")

			hs := NewHealthServer("barrel")
			joined := tt.joined
			hs.AddCheck("join", func() (bool, string) {
				if joined {
					return true, "active"
				}
				return false, "synching"
			})

			req := httptest.NewRequest(http.MethodGet, "/ready", nil)
			w := httptest.NewRecorder()
			hs.GetHandler().ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			var response ReadyResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
			assert.Equal(t, tt.expectedState, response.Status)
			assert.Contains(t, response.Checks, "grpc")
			assert.Contains(t, response.Checks, "join")
			if tt.expectedStatus != http.StatusOK {
				assert.NotEmpty(t, response.Message)
			}
		})
	}
}

func TestReadyHandlerMethodValidation(t *testing.T) {
	hs := NewHealthServer("gateway")

	req := httptest.NewRequest(http.MethodPost, "/ready", nil)
	w := httptest.NewRecorder()
	hs.GetHandler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestHealthServerRoutes(t *testing.T) {
	hs := NewHealthServer("downloader")
	server := httptest.NewServer(hs.GetHandler())
	defer server.Close()

	for _, path := range []string{"/health", "/ready", "/metrics"} {
		resp, err := http.Get(server.URL + path)
		require.NoError(t, err, path)
		_ = resp.Body.Close()
		assert.NotEqual(t, http.StatusNotFound, resp.StatusCode, path)
	}
}
