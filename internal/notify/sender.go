package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/phrazzld/goalforge/internal/domain"
)

var (
	// ErrRejected means the channel refused the message. Sending it again
	// will not help.
	ErrRejected = errors.New("notification rejected")

	// ErrUnavailable means the channel could not be reached or asked us to
	// back off. A later attempt may succeed.
	ErrUnavailable = errors.New("notification channel unavailable")
)

// Sender delivers a notification to a user on one channel.
type Sender interface {
	Channel() domain.NotificationChannel
	Send(ctx context.Context, n *domain.Notification, user *domain.User) error
}

const maxErrorBody = 512

// classify maps a non-success response to ErrRejected or ErrUnavailable.
func classify(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	switch {
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, body)
	default:
		return fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, body)
	}
}

func do(client *http.Client, req *http.Request) error {
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return classify(resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
