// Package bundling implements the order-conversion pipeline: rule matching,
// the idempotent conversion ledger, quota gating, the order-edit
// orchestrator, and the best-effort notice dispatcher.
package bundling

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/bundlewise/backend/internal/domain/bundling"
	"github.com/bundlewise/backend/internal/domain/platform"
	"github.com/bundlewise/backend/internal/domain/shared"
	"github.com/bundlewise/backend/internal/domain/shop"
	"github.com/bundlewise/backend/internal/infrastructure/telemetry"
)

// Outcome classifies how the pipeline disposed of one order event. Every
// outcome is a handled result; the webhook transport answers 200 for all
// of them.
type Outcome string

const (
	// OutcomeConverted means a new ledger row was written
	OutcomeConverted Outcome = "converted"
	// OutcomeRetried means an earlier failed rewrite was re-driven
	OutcomeRetried Outcome = "retried"
	// OutcomeDuplicate means the order was already converted
	OutcomeDuplicate Outcome = "duplicate"
	// OutcomeNoIdentifiers means no line carried a usable identifier
	OutcomeNoIdentifiers Outcome = "no_identifiers"
	// OutcomeNoMatch means no active rule was satisfied
	OutcomeNoMatch Outcome = "no_match"
	// OutcomeQuotaExceeded means the monthly allowance is exhausted
	OutcomeQuotaExceeded Outcome = "quota_exceeded"
)

// ProcessResult is what one pipeline run produced. EditErr is non-nil when
// the ledger row was written (or retried) but the platform-side rewrite
// failed; the ledger stays authoritative either way.
type ProcessResult struct {
	Outcome    Outcome
	Conversion *bundling.OrderConversion
	EditErr    error
}

// QuotaGate authorizes one more conversion for a shop
type QuotaGate interface {
	Authorize(ctx context.Context, sh *shop.Shop) error
}

// EditApplier drives the platform-side order rewrite for a conversion
type EditApplier interface {
	ApplyBundle(ctx context.Context, sh *shop.Shop, order *platform.Order, conv *bundling.OrderConversion) error
}

// NoticeDispatcher fans a conversion notice out to the shop's channels
type NoticeDispatcher interface {
	Dispatch(sh *shop.Shop, notice bundling.ConversionNotice)
}

// ConversionService runs the pipeline for inbound order events:
// dedupe against the ledger, quota gate, first-match rule evaluation,
// ledger write, async notices, then the order rewrite.
type ConversionService struct {
	ruleRepo       bundling.BundleRuleRepository
	conversionRepo bundling.OrderConversionRepository
	quota          QuotaGate
	orchestrator   EditApplier
	dispatcher     NoticeDispatcher
	metrics        *telemetry.ConversionMetrics
	logger         *zap.Logger
}

// NewConversionService creates a new ConversionService. metrics and
// dispatcher may be nil.
func NewConversionService(
	ruleRepo bundling.BundleRuleRepository,
	conversionRepo bundling.OrderConversionRepository,
	quota QuotaGate,
	orchestrator EditApplier,
	dispatcher NoticeDispatcher,
	metrics *telemetry.ConversionMetrics,
	logger *zap.Logger,
) *ConversionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConversionService{
		ruleRepo:       ruleRepo,
		conversionRepo: conversionRepo,
		quota:          quota,
		orchestrator:   orchestrator,
		dispatcher:     dispatcher,
		metrics:        metrics,
		logger:         logger,
	}
}

// Process runs one order event through the pipeline. Only infrastructure
// faults (rule listing unavailable, ledger unreachable) return an error;
// every business disposition comes back as a ProcessResult.
func (s *ConversionService) Process(ctx context.Context, sh *shop.Shop, order *platform.Order) (*ProcessResult, error) {
	log := s.logger.With(
		zap.String("shop_id", sh.ID.String()),
		zap.Int64("order_id", order.ID),
		zap.String("order_name", order.Name))

	// Redelivery fast path: an existing ledger row means the order was
	// already converted. A committed (or in-flight) rewrite makes this a
	// pure no-op; only a failed rewrite is re-driven, and nothing else —
	// no second row, no counter bump, no second notice.
	existing, err := s.conversionRepo.FindByShopAndOrder(ctx, sh.ID, order.ID)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		return s.handleRedelivery(ctx, log, sh, order, existing)
	}

	identifiers := bundling.IdentifiersFromOrder(order)
	if identifiers.Empty() {
		log.Debug("order carries no usable identifiers")
		s.recordSkip(ctx, sh, telemetry.SkipReasonNoIdentifiers)
		return &ProcessResult{Outcome: OutcomeNoIdentifiers}, nil
	}

	// Quota runs before the matcher and creates no records. Exhausted
	// allowance skips processing entirely; gate errors fail open inside
	// the quota service.
	if err := s.quota.Authorize(ctx, sh); err != nil {
		if errors.Is(err, shared.ErrQuotaExceeded) {
			log.Warn("conversion skipped, monthly allowance exhausted")
			s.recordSkip(ctx, sh, telemetry.SkipReasonQuotaExceeded)
			return &ProcessResult{Outcome: OutcomeQuotaExceeded}, nil
		}
		return nil, err
	}

	rules, err := s.ruleRepo.FindActiveByShop(ctx, sh.ID)
	if err != nil {
		return nil, err
	}

	rule := bundling.Match(identifiers, rules)
	if rule == nil {
		s.recordSkip(ctx, sh, telemetry.SkipReasonNoMatch)
		return &ProcessResult{Outcome: OutcomeNoMatch}, nil
	}

	matched := bundling.MatchedLines(order, rule)
	originals := bundling.ReplacedIdentifiers(matched)

	conv, err := bundling.NewOrderConversion(sh.ID, order.ID, order.Name, rule, originals)
	if err != nil {
		return nil, err
	}

	// The ledger insert precedes any externally observable mutation. The
	// unique constraint is the backstop for concurrent duplicates.
	if err := s.conversionRepo.Create(ctx, conv); err != nil {
		if errors.Is(err, shared.ErrAlreadyExists) {
			log.Info("concurrent duplicate delivery, order already converted")
			s.recordSkip(ctx, sh, telemetry.SkipReasonDuplicate)
			return &ProcessResult{Outcome: OutcomeDuplicate}, nil
		}
		return nil, err
	}

	// The counter bump shares the logical step with the insert but not a
	// transaction; a miss here only skews the frequency statistic.
	if err := s.ruleRepo.IncrementMatchCount(ctx, rule.ID); err != nil {
		log.Warn("failed to increment rule match count",
			zap.String("rule_id", rule.ID.String()),
			zap.Error(err))
	}

	if s.metrics != nil {
		s.metrics.RecordConversion(ctx, sh.ID, rule.ID, conv.Savings)
	}
	log.Info("order converted",
		zap.String("rule_id", rule.ID.String()),
		zap.String("rule_name", rule.Name),
		zap.String("bundled_sku", conv.BundledSKU),
		zap.String("savings", conv.Savings.String()))

	// Notices go out once per conversion, independent of the rewrite
	// outcome that follows.
	if s.dispatcher != nil {
		s.dispatcher.Dispatch(sh, bundling.ConversionNotice{
			ShopDomain: sh.Domain,
			OrderName:  order.Name,
			RuleName:   rule.Name,
			BundledSKU: conv.BundledSKU,
			Savings:    conv.Savings,
			Currency:   order.Currency,
		})
	}

	editErr := s.orchestrator.ApplyBundle(ctx, sh, order, conv)
	return &ProcessResult{Outcome: OutcomeConverted, Conversion: conv, EditErr: editErr}, nil
}

// handleRedelivery disposes of an event whose order already has a ledger
// row. Failed rewrites are rewound and re-driven; everything else is a
// duplicate no-op.
func (s *ConversionService) handleRedelivery(ctx context.Context, log *zap.Logger, sh *shop.Shop, order *platform.Order, conv *bundling.OrderConversion) (*ProcessResult, error) {
	if !conv.EditRetryable() {
		log.Debug("duplicate delivery, order already converted",
			zap.String("edit_status", conv.EditStatus.String()))
		s.recordSkip(ctx, sh, telemetry.SkipReasonDuplicate)
		return &ProcessResult{Outcome: OutcomeDuplicate, Conversion: conv}, nil
	}

	if err := conv.ResetForRetry(); err != nil {
		return nil, err
	}
	if err := s.conversionRepo.UpdateEditOutcome(ctx, conv); err != nil {
		return nil, err
	}
	log.Info("redelivery retrying failed order rewrite")

	editErr := s.orchestrator.ApplyBundle(ctx, sh, order, conv)
	return &ProcessResult{Outcome: OutcomeRetried, Conversion: conv, EditErr: editErr}, nil
}

func (s *ConversionService) recordSkip(ctx context.Context, sh *shop.Shop, reason telemetry.SkipReason) {
	if s.metrics != nil {
		s.metrics.RecordSkipped(ctx, sh.ID, reason)
	}
}
