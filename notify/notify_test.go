package notify_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/passlink/credmine/notify"
)

func TestNewReturnsNoopWhenTopicMissing(t *testing.T) {
	n := notify.New("  ", time.Second)
	require.IsType(t, notify.Noop{}, n)
	require.NoError(t, n.NewPasswordNotification(context.Background(), notify.Notification{Label: "x"}))
}

func TestNtfyFormatsPayload(t *testing.T) {
	var captured struct {
		title string
		tags  string
		body  string
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		captured.title = r.Header.Get("Title")
		captured.tags = r.Header.Get("Tags")
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		captured.body = string(body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := notify.New(server.URL, 5*time.Second)
	err := n.NewPasswordNotification(context.Background(), notify.Notification{
		TaskID:   "t1",
		Label:    "Example",
		Username: "bob",
		URL:      "https://example.com",
		Hidden:   true,
	})
	require.NoError(t, err)
	require.Equal(t, "Credmine - New Password", captured.title)
	require.Equal(t, "credmine,password,new,hidden", captured.tags)
	require.Equal(t, "New password detected: Example\nUser: bob\nURL: https://example.com", captured.body)
}

func TestNtfyReportsHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic closed", http.StatusForbidden)
	}))
	defer server.Close()

	err := notify.New(server.URL, time.Second).NewPasswordNotification(context.Background(), notify.Notification{Label: "x"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "403")
	require.Contains(t, err.Error(), "topic closed")
}

func TestFuncAdapter(t *testing.T) {
	var got notify.Notification
	f := notify.Func(func(_ context.Context, n notify.Notification) error {
		got = n
		return nil
	})
	require.NoError(t, f.NewPasswordNotification(context.Background(), notify.Notification{TaskID: "a"}))
	require.Equal(t, "a", got.TaskID)
}
