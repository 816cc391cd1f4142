package models

import (
	"github.com/bundlewise/backend/internal/domain/shop"
)

// ShopModel is the persistence model for the Shop aggregate.
type ShopModel struct {
	BaseModel
	Domain                string          `gorm:"type:varchar(255);not null;uniqueIndex"`
	AccessToken           string          `gorm:"type:text;not null"`
	Status                shop.ShopStatus `gorm:"type:varchar(20);not null;index"`
	CachedTier            string          `gorm:"type:varchar(20)"`
	NotifyEmailEnabled    bool            `gorm:"not null;default:false"`
	NotifyEmailAddress    string          `gorm:"type:varchar(255)"`
	NotifySlackEnabled    bool            `gorm:"not null;default:false"`
	NotifySlackWebhookURL string          `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (ShopModel) TableName() string {
	return "shops"
}

// ToDomain converts the persistence model to a domain Shop.
func (m *ShopModel) ToDomain() *shop.Shop {
	return &shop.Shop{
		BaseEntity:  m.BaseModel.ToDomain(),
		Domain:      m.Domain,
		AccessToken: m.AccessToken,
		Status:      m.Status,
		CachedTier:  m.CachedTier,
		Notifications: shop.NotificationSettings{
			EmailEnabled:    m.NotifyEmailEnabled,
			EmailAddress:    m.NotifyEmailAddress,
			SlackEnabled:    m.NotifySlackEnabled,
			SlackWebhookURL: m.NotifySlackWebhookURL,
		},
	}
}

// FromDomain populates the persistence model from a domain Shop.
func (m *ShopModel) FromDomain(s *shop.Shop) {
	m.FromDomainBaseEntity(s.BaseEntity)
	m.Domain = s.Domain
	m.AccessToken = s.AccessToken
	m.Status = s.Status
	m.CachedTier = s.CachedTier
	m.NotifyEmailEnabled = s.Notifications.EmailEnabled
	m.NotifyEmailAddress = s.Notifications.EmailAddress
	m.NotifySlackEnabled = s.Notifications.SlackEnabled
	m.NotifySlackWebhookURL = s.Notifications.SlackWebhookURL
}

// ShopModelFromDomain creates a new persistence model from a domain Shop.
func ShopModelFromDomain(s *shop.Shop) *ShopModel {
	m := &ShopModel{}
	m.FromDomain(s)
	return m
}
