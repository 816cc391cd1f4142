package shop

import (
	"strings"

	"github.com/bundlewise/backend/internal/domain/shared"
)

// ShopStatus represents the install state of a shop
type ShopStatus string

const (
	ShopStatusActive      ShopStatus = "active"
	ShopStatusUninstalled ShopStatus = "uninstalled" // App removed; token revoked by the platform
)

// NotificationSettings holds the shop's conversion notification preferences.
// The dispatcher consults these before fanning out; disabled channels are
// simply skipped.
type NotificationSettings struct {
	EmailEnabled    bool   `json:"email_enabled"`
	EmailAddress    string `json:"email_address"`
	SlackEnabled    bool   `json:"slack_enabled"`
	SlackWebhookURL string `json:"slack_webhook_url"`
}

// DefaultNotificationSettings returns the settings for a fresh install
func DefaultNotificationSettings() NotificationSettings {
	return NotificationSettings{}
}

// Shop represents one installed store. It is the aggregate root for
// install lifecycle and per-shop settings.
type Shop struct {
	shared.BaseEntity
	Domain        string               `gorm:"type:varchar(255);not null;uniqueIndex"`
	AccessToken   string               `gorm:"type:varchar(255)"`
	Status        ShopStatus           `gorm:"type:varchar(20);not null;default:'active'"`
	CachedTier    string               `gorm:"type:varchar(20)"` // Last tier seen from the subscription query
	Notifications NotificationSettings `gorm:"embedded;embeddedPrefix:notify_"`
}

// TableName returns the table name for GORM
func (Shop) TableName() string {
	return "shops"
}

// NewShop creates an active shop record for a completed install
func NewShop(domain, accessToken string) (*Shop, error) {
	normalized, err := NormalizeDomain(domain)
	if err != nil {
		return nil, err
	}
	if accessToken == "" {
		return nil, shared.NewDomainError("INVALID_TOKEN", "Access token cannot be empty")
	}

	return &Shop{
		BaseEntity:    shared.NewBaseEntity(),
		Domain:        normalized,
		AccessToken:   accessToken,
		Status:        ShopStatusActive,
		Notifications: DefaultNotificationSettings(),
	}, nil
}

// MarkUninstalled records an app/uninstalled webhook. The token is cleared
// because the platform revokes it at uninstall time.
func (s *Shop) MarkUninstalled() {
	s.Status = ShopStatusUninstalled
	s.AccessToken = ""
	s.CachedTier = ""
	s.Touch()
}

// Reinstall reactivates a previously uninstalled shop with a fresh token
func (s *Shop) Reinstall(accessToken string) error {
	if accessToken == "" {
		return shared.NewDomainError("INVALID_TOKEN", "Access token cannot be empty")
	}
	s.AccessToken = accessToken
	s.Status = ShopStatusActive
	s.Touch()
	return nil
}

// UpdateNotifications replaces the notification preferences
func (s *Shop) UpdateNotifications(settings NotificationSettings) error {
	if settings.EmailEnabled && settings.EmailAddress == "" {
		return shared.NewDomainError("INVALID_NOTIFICATION_TARGET", "Email notifications need an address")
	}
	if settings.SlackEnabled && settings.SlackWebhookURL == "" {
		return shared.NewDomainError("INVALID_NOTIFICATION_TARGET", "Slack notifications need a webhook URL")
	}
	s.Notifications = settings
	s.Touch()
	return nil
}

// SetCachedTier remembers the last subscription tier the platform reported
func (s *Shop) SetCachedTier(tier string) {
	s.CachedTier = tier
	s.Touch()
}

// IsActive returns true if the app is currently installed
func (s *Shop) IsActive() bool {
	return s.Status == ShopStatusActive
}

// HasAdminAccess returns true if the shop has a usable API credential
func (s *Shop) HasAdminAccess() bool {
	return s.IsActive() && s.AccessToken != ""
}

// NormalizeDomain lowercases and validates a myshopify domain
func NormalizeDomain(domain string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(domain))
	if normalized == "" {
		return "", shared.NewDomainError("INVALID_DOMAIN", "Shop domain cannot be empty")
	}
	if len(normalized) > 255 {
		return "", shared.NewDomainError("INVALID_DOMAIN", "Shop domain cannot exceed 255 characters")
	}
	if !strings.HasSuffix(normalized, ".myshopify.com") {
		return "", shared.NewDomainError("INVALID_DOMAIN", "Shop domain must be a myshopify.com domain")
	}
	return normalized, nil
}
