package bundling

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/bundlewise/backend/internal/domain/bundling"
	"github.com/bundlewise/backend/internal/domain/shop"
)

type recordingNotifier struct {
	channel string
	err     error

	mu           sync.Mutex
	destinations []string
}

func (n *recordingNotifier) Channel() string {
	return n.channel
}

func (n *recordingNotifier) Notify(ctx context.Context, destination string, notice bundling.ConversionNotice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.destinations = append(n.destinations, destination)
	return n.err
}

func (n *recordingNotifier) sent() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.destinations...)
}

func dispatchNotice() bundling.ConversionNotice {
	return bundling.ConversionNotice{
		ShopDomain: "demo.myshopify.com",
		OrderName:  "#1001",
		RuleName:   "Phone Starter Kit",
		BundledSKU: "PHONE-BUNDLE-001",
		Savings:    decimal.NewFromFloat(8.50),
		Currency:   "USD",
	}
}

func TestDispatch_OnlyEnabledChannels(t *testing.T) {
	email := &recordingNotifier{channel: "email"}
	slack := &recordingNotifier{channel: "slack"}
	d := NewDispatcher([]bundling.ConversionNotifier{email, slack}, zaptest.NewLogger(t))

	sh := pipelineShop(t)
	require.NoError(t, sh.UpdateNotifications(shop.NotificationSettings{
		EmailEnabled: true,
		EmailAddress: "owner@example.com",
		// slack stays disabled
	}))

	d.Dispatch(sh, dispatchNotice())
	d.Wait()

	assert.Equal(t, []string{"owner@example.com"}, email.sent())
	assert.Empty(t, slack.sent())
}

func TestDispatch_BothChannels(t *testing.T) {
	email := &recordingNotifier{channel: "email"}
	slack := &recordingNotifier{channel: "slack"}
	d := NewDispatcher([]bundling.ConversionNotifier{email, slack}, zaptest.NewLogger(t))

	sh := pipelineShop(t)
	require.NoError(t, sh.UpdateNotifications(shop.NotificationSettings{
		EmailEnabled:    true,
		EmailAddress:    "owner@example.com",
		SlackEnabled:    true,
		SlackWebhookURL: "https://hooks.slack.com/services/T/B/X",
	}))

	d.Dispatch(sh, dispatchNotice())
	d.Wait()

	assert.Len(t, email.sent(), 1)
	assert.Equal(t, []string{"https://hooks.slack.com/services/T/B/X"}, slack.sent())
}

func TestDispatch_FailuresAreSwallowed(t *testing.T) {
	email := &recordingNotifier{channel: "email", err: errors.New("smtp down")}
	d := NewDispatcher([]bundling.ConversionNotifier{email}, zaptest.NewLogger(t))

	sh := pipelineShop(t)
	require.NoError(t, sh.UpdateNotifications(shop.NotificationSettings{
		EmailEnabled: true,
		EmailAddress: "owner@example.com",
	}))

	// No panic, no error surface: Dispatch has no error return at all
	d.Dispatch(sh, dispatchNotice())
	d.Wait()
	assert.Len(t, email.sent(), 1)
}

func TestDispatch_NothingEnabledIsSilent(t *testing.T) {
	email := &recordingNotifier{channel: "email"}
	d := NewDispatcher([]bundling.ConversionNotifier{email}, zaptest.NewLogger(t))

	d.Dispatch(pipelineShop(t), dispatchNotice())
	d.Wait()
	assert.Empty(t, email.sent())
}
