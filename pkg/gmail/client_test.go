package gmail_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/Kadacheahmedrami/Email-Craft/pkg/gmail"
	"github.com/Kadacheahmedrami/Email-Craft/pkg/mailerr"
)

// fakeGmail stands in for the Gmail REST API.
func fakeGmail(t *testing.T, handler http.HandlerFunc) *gmail.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return gmail.New(gmail.Config{Timeout: 5 * time.Second},
		option.WithEndpoint(srv.URL),
		option.WithHTTPClient(srv.Client()),
	)
}

func TestClient_Verify_Success(t *testing.T) {
	t.Parallel()

	client := fakeGmail(t, func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.Contains(r.URL.Path, "/profile"), "unexpected path %s", r.URL.Path)
		require.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"emailAddress":  "alice@example.com",
			"messagesTotal": 42,
		})
	})

	profile, err := client.Verify(context.Background(), "tok-123")
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", profile.EmailAddress)
}

func TestClient_Verify_ErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		want   mailerr.Code
	}{
		{"invalid token", http.StatusUnauthorized, mailerr.CodeAuthExpired},
		{"insufficient consent", http.StatusForbidden, mailerr.CodePermissionDenied},
		{"throttled", http.StatusTooManyRequests, mailerr.CodeRateLimited},
		{"outage", http.StatusBadGateway, mailerr.CodeTransport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client := fakeGmail(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"error": map[string]any{"code": tt.status, "message": tt.name},
				})
			})

			_, err := client.Verify(context.Background(), "tok")
			require.Error(t, err)
			require.Equal(t, tt.want, mailerr.CodeOf(err))
		})
	}
}

func TestClient_Send_Success(t *testing.T) {
	t.Parallel()

	raw := base64.RawURLEncoding.EncodeToString([]byte("To: a@b.com\r\n\r\nhi"))

	client := fakeGmail(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)

		var body struct {
			Raw string `json:"raw"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, raw, body.Raw)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":       "msg-1",
			"threadId": "thread-1",
		})
	})

	res, err := client.Send(context.Background(), "tok", raw)
	require.NoError(t, err)
	require.Equal(t, "msg-1", res.MessageID)
	require.Equal(t, "thread-1", res.ThreadID)
}

func TestClient_Send_RateLimited(t *testing.T) {
	t.Parallel()

	client := fakeGmail(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"code": 429, "message": "User-rate limit exceeded"},
		})
	})

	_, err := client.Send(context.Background(), "tok", "cmF3")
	require.Equal(t, mailerr.CodeRateLimited, mailerr.CodeOf(err))
}

func TestClient_Send_TimeoutIsTransport(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	t.Cleanup(srv.Close)

	client := gmail.New(gmail.Config{Timeout: 20 * time.Millisecond},
		option.WithEndpoint(srv.URL),
		option.WithHTTPClient(srv.Client()),
	)

	_, err := client.Send(context.Background(), "tok", "cmF3")
	require.Error(t, err)
	require.Equal(t, mailerr.CodeTransport, mailerr.CodeOf(err))
}
