// Package notify emits the "new password detected" signal shown to the user
// when a capture is queued for review.
package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const userAgent = "credmine/0.1.0"

// Notification describes a queued capture. It never carries the secret.
type Notification struct {
	TaskID   string
	Label    string
	Username string
	URL      string
	Hidden   bool
}

// Notifier emits new-password notifications.
type Notifier interface {
	NewPasswordNotification(ctx context.Context, n Notification) error
}

// Func adapts a function to Notifier.
type Func func(ctx context.Context, n Notification) error

// NewPasswordNotification calls f.
func (f Func) NewPasswordNotification(ctx context.Context, n Notification) error { return f(ctx, n) }

// Noop discards notifications.
type Noop struct{}

// NewPasswordNotification implements Notifier.
func (Noop) NewPasswordNotification(context.Context, Notification) error { return nil }

// New builds an ntfy notifier for topic. An empty topic yields Noop.
func New(topic string, timeout time.Duration) Notifier {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return Noop{}
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Ntfy{endpoint: topic, client: &http.Client{Timeout: timeout}}
}

// Ntfy posts notifications to an ntfy topic URL.
type Ntfy struct {
	endpoint string
	client   *http.Client
}

// NewPasswordNotification implements Notifier.
func (n *Ntfy) NewPasswordNotification(ctx context.Context, note Notification) error {
	label := strings.TrimSpace(note.Label)
	if label == "" {
		label = note.URL
	}
	message := fmt.Sprintf("New password detected: %s", label)
	if user := strings.TrimSpace(note.Username); user != "" {
		message = fmt.Sprintf("%s\nUser: %s", message, user)
	}
	if note.URL != "" && note.URL != label {
		message = fmt.Sprintf("%s\nURL: %s", message, note.URL)
	}
	tags := []string{"credmine", "password", "new"}
	if note.Hidden {
		tags = append(tags, "hidden")
	}
	return n.send(ctx, "Credmine - New Password", message, tags)
}

func (n *Ntfy) send(ctx context.Context, title, message string, tags []string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	req.Header.Set("Title", title)
	if len(tags) > 0 {
		req.Header.Set("Tags", strings.Join(tags, ","))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
