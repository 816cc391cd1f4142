package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bundlewise/backend/internal/domain/bundling"
)

// ErrNoWebhookURL indicates the shop has no Slack webhook configured
var ErrNoWebhookURL = errors.New("notification: slack webhook url is empty")

// slackTimeout bounds each webhook POST
const slackTimeout = 10 * time.Second

// SlackNotifier posts conversion notices to a Slack incoming webhook
type SlackNotifier struct {
	httpClient *http.Client
	logger     *zap.Logger
}

// slackMessage is the incoming-webhook payload
type slackMessage struct {
	Text string `json:"text"`
}

// NewSlackNotifier creates a Slack notifier with a bounded HTTP client
func NewSlackNotifier(logger *zap.Logger) *SlackNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SlackNotifier{
		httpClient: &http.Client{Timeout: slackTimeout},
		logger:     logger,
	}
}

// Channel names the transport
func (n *SlackNotifier) Channel() string {
	return "slack"
}

// Notify posts the notice to the given webhook URL
func (n *SlackNotifier) Notify(ctx context.Context, destination string, notice bundling.ConversionNotice) error {
	url := strings.TrimSpace(destination)
	if url == "" {
		return ErrNoWebhookURL
	}

	payload, err := json.Marshal(slackMessage{
		Text: subject(notice) + "\n" + body(notice),
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notification: slack webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// Ensure SlackNotifier implements the notifier port
var _ bundling.ConversionNotifier = (*SlackNotifier)(nil)
