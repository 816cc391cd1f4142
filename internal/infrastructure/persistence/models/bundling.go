package models

import (
	"encoding/json"

	"github.com/bundlewise/backend/internal/domain/bundling"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// logger for model conversion errors (silent failures are logged for debugging)
var modelLogger = zap.L().Named("bundling.models")

// BundleRuleModel is the persistence model for the BundleRule aggregate.
type BundleRuleModel struct {
	BaseModel
	ShopID      uuid.UUID           `gorm:"type:uuid;not null;index:idx_bundle_rules_shop"`
	Name        string              `gorm:"type:varchar(200);not null"`
	MembersJSON string              `gorm:"column:members;type:jsonb;not null"`
	BundledSKU  string              `gorm:"column:bundled_sku;type:varchar(100);not null"`
	Savings     decimal.Decimal     `gorm:"type:decimal(12,2);not null;default:0"`
	Status      bundling.RuleStatus `gorm:"type:varchar(20);not null;index"`
	MatchCount  int64               `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (BundleRuleModel) TableName() string {
	return "bundle_rules"
}

// ToDomain converts the persistence model to a domain BundleRule.
func (m *BundleRuleModel) ToDomain() *bundling.BundleRule {
	rule := &bundling.BundleRule{
		BaseEntity: m.BaseModel.ToDomain(),
		ShopID:     m.ShopID,
		Name:       m.Name,
		Members:    make([]string, 0),
		BundledSKU: m.BundledSKU,
		Savings:    m.Savings,
		Status:     m.Status,
		MatchCount: m.MatchCount,
	}

	if m.MembersJSON != "" && m.MembersJSON != "[]" {
		var members []string
		if err := json.Unmarshal([]byte(m.MembersJSON), &members); err != nil {
			modelLogger.Warn("failed to parse rule members JSON",
				zap.String("rule_id", m.ID.String()),
				zap.String("raw_json", m.MembersJSON),
				zap.Error(err))
		} else {
			rule.Members = members
		}
	}

	return rule
}

// FromDomain populates the persistence model from a domain BundleRule.
func (m *BundleRuleModel) FromDomain(r *bundling.BundleRule) {
	m.FromDomainBaseEntity(r.BaseEntity)
	m.ShopID = r.ShopID
	m.Name = r.Name
	m.BundledSKU = r.BundledSKU
	m.Savings = r.Savings
	m.Status = r.Status
	m.MatchCount = r.MatchCount

	if jsonBytes, err := json.Marshal(r.Members); err == nil {
		m.MembersJSON = string(jsonBytes)
	} else {
		m.MembersJSON = "[]"
	}
}

// BundleRuleModelFromDomain creates a new persistence model from a domain BundleRule.
func BundleRuleModelFromDomain(r *bundling.BundleRule) *BundleRuleModel {
	m := &BundleRuleModel{}
	m.FromDomain(r)
	return m
}

// OrderConversionModel is the persistence model for the OrderConversion record.
// The unique index on (shop_id, order_id) is the at-most-once backstop for
// concurrent duplicate webhook deliveries.
type OrderConversionModel struct {
	BaseModel
	ShopID            uuid.UUID           `gorm:"type:uuid;not null;uniqueIndex:idx_order_conversions_shop_order,priority:1"`
	OrderID           int64               `gorm:"not null;uniqueIndex:idx_order_conversions_shop_order,priority:2"`
	OrderName         string              `gorm:"type:varchar(50);not null"`
	RuleID            uuid.UUID           `gorm:"type:uuid;not null;index"`
	BundledSKU        string              `gorm:"column:bundled_sku;type:varchar(100);not null"`
	OriginalItemsJSON string              `gorm:"column:original_items;type:jsonb;not null"`
	Savings           decimal.Decimal     `gorm:"type:decimal(12,2);not null;default:0"`
	EditStatus        bundling.EditStatus `gorm:"type:varchar(20);not null;index"`
	FailedPhase       *string             `gorm:"type:varchar(20)"`
}

// TableName returns the table name for GORM
func (OrderConversionModel) TableName() string {
	return "order_conversions"
}

// ToDomain converts the persistence model to a domain OrderConversion.
func (m *OrderConversionModel) ToDomain() *bundling.OrderConversion {
	conv := &bundling.OrderConversion{
		BaseEntity:    m.BaseModel.ToDomain(),
		ShopID:        m.ShopID,
		OrderID:       m.OrderID,
		OrderName:     m.OrderName,
		RuleID:        m.RuleID,
		BundledSKU:    m.BundledSKU,
		OriginalItems: make([]string, 0),
		Savings:       m.Savings,
		EditStatus:    m.EditStatus,
	}

	if m.FailedPhase != nil {
		phase := bundling.EditPhase(*m.FailedPhase)
		conv.FailedPhase = &phase
	}

	if m.OriginalItemsJSON != "" && m.OriginalItemsJSON != "[]" {
		var items []string
		if err := json.Unmarshal([]byte(m.OriginalItemsJSON), &items); err != nil {
			modelLogger.Warn("failed to parse conversion items JSON",
				zap.String("conversion_id", m.ID.String()),
				zap.String("raw_json", m.OriginalItemsJSON),
				zap.Error(err))
		} else {
			conv.OriginalItems = items
		}
	}

	return conv
}

// FromDomain populates the persistence model from a domain OrderConversion.
func (m *OrderConversionModel) FromDomain(c *bundling.OrderConversion) {
	m.FromDomainBaseEntity(c.BaseEntity)
	m.ShopID = c.ShopID
	m.OrderID = c.OrderID
	m.OrderName = c.OrderName
	m.RuleID = c.RuleID
	m.BundledSKU = c.BundledSKU
	m.Savings = c.Savings
	m.EditStatus = c.EditStatus

	if c.FailedPhase != nil {
		phase := c.FailedPhase.String()
		m.FailedPhase = &phase
	} else {
		m.FailedPhase = nil
	}

	if jsonBytes, err := json.Marshal(c.OriginalItems); err == nil {
		m.OriginalItemsJSON = string(jsonBytes)
	} else {
		m.OriginalItemsJSON = "[]"
	}
}

// OrderConversionModelFromDomain creates a new persistence model from a domain OrderConversion.
func OrderConversionModelFromDomain(c *bundling.OrderConversion) *OrderConversionModel {
	m := &OrderConversionModel{}
	m.FromDomain(c)
	return m
}
