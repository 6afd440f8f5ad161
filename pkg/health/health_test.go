package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Kadacheahmedrami/Email-Craft/pkg/health"
)

func TestLiveness(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	health.Liveness()(w, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	require.Equal(t, http.StatusOK, w.Code)
}

func TestReadiness(t *testing.T) {
	t.Parallel()

	t.Run("all healthy", func(t *testing.T) {
		t.Parallel()

		checks := health.Checks{
			"postgres": func(ctx context.Context) error { return nil },
			"redis":    func(ctx context.Context) error { return nil },
		}

		w := httptest.NewRecorder()
		health.Readiness(checks, nil)(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

		require.Equal(t, http.StatusOK, w.Code)

		var resp health.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Equal(t, "healthy", resp.Status)
		require.Equal(t, "ok", resp.Checks["postgres"])
	})

	t.Run("one failing", func(t *testing.T) {
		t.Parallel()

		checks := health.Checks{
			"postgres": func(ctx context.Context) error { return nil },
			"redis":    func(ctx context.Context) error { return errors.New("connection refused") },
		}

		w := httptest.NewRecorder()
		health.Readiness(checks, nil)(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

		require.Equal(t, http.StatusServiceUnavailable, w.Code)

		var resp health.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Equal(t, "unhealthy", resp.Status)
		require.Equal(t, "connection refused", resp.Checks["redis"])
	})

	t.Run("no checks", func(t *testing.T) {
		t.Parallel()

		w := httptest.NewRecorder()
		health.Readiness(nil, nil)(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

		require.Equal(t, http.StatusOK, w.Code)
	})
}
