package bundling

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/bundlewise/backend/internal/domain/bundling"
	"github.com/bundlewise/backend/internal/domain/platform"
	"github.com/bundlewise/backend/internal/domain/shop"
	"github.com/bundlewise/backend/internal/infrastructure/telemetry"
)

// EditOrchestrator drives the four-phase order rewrite against the platform:
// resolve the bundle variant, open an edit session, apply the line changes,
// commit. Phases run in strict order with no intra-invocation retry; the
// first failure marks the conversion failed with its phase and aborts the
// rest. The conversion ledger row is never rolled back by a failed rewrite.
type EditOrchestrator struct {
	clients        platform.ClientFactory
	conversionRepo bundling.OrderConversionRepository
	metrics        *telemetry.ConversionMetrics
	logger         *zap.Logger
}

// NewEditOrchestrator creates a new EditOrchestrator. metrics may be nil.
func NewEditOrchestrator(
	clients platform.ClientFactory,
	conversionRepo bundling.OrderConversionRepository,
	metrics *telemetry.ConversionMetrics,
	logger *zap.Logger,
) *EditOrchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EditOrchestrator{
		clients:        clients,
		conversionRepo: conversionRepo,
		metrics:        metrics,
		logger:         logger,
	}
}

// ApplyBundle rewrites the order on the platform according to the recorded
// conversion: one unit of the bundle variant in, every replaced original
// line retired to quantity zero. The conversion's edit status is advanced
// through the state machine and persisted as it goes.
func (o *EditOrchestrator) ApplyBundle(ctx context.Context, sh *shop.Shop, order *platform.Order, conv *bundling.OrderConversion) error {
	client, err := o.clients.ForShop(sh.Domain, sh.AccessToken)
	if err != nil {
		return o.fail(ctx, sh, conv, bundling.EditPhaseResolve, err)
	}

	// Phase 1: resolve the bundle variant. A missing variant is a
	// configuration error the merchant has to fix by creating the SKU.
	variant, err := client.FindVariantBySKU(ctx, conv.BundledSKU)
	if err != nil {
		return o.fail(ctx, sh, conv, bundling.EditPhaseResolve, err)
	}
	o.advance(ctx, conv, conv.MarkResolved())

	// Phase 2: open the edit session.
	session, err := client.BeginOrderEdit(ctx, conv.OrderID)
	if err != nil {
		return o.fail(ctx, sh, conv, bundling.EditPhaseBegin, err)
	}
	o.advance(ctx, conv, conv.MarkEditing())

	// Phase 3: add the bundle line, then retire every replaced original.
	if _, err := client.AddVariantToEdit(ctx, session.ID, variant.ID, 1); err != nil {
		return o.fail(ctx, sh, conv, bundling.EditPhaseApplyLines, err)
	}
	for _, line := range sessionLinesFor(session, conv.OriginalItems) {
		if err := client.SetEditLineQuantity(ctx, session.ID, line.ID, 0); err != nil {
			return o.fail(ctx, sh, conv, bundling.EditPhaseApplyLines, err)
		}
	}
	o.advance(ctx, conv, conv.MarkLinesApplied())

	// Phase 4: commit with customer notification suppressed; the merchant
	// is told through the dispatcher, not the buyer.
	if err := client.CommitOrderEdit(ctx, session.ID, false); err != nil {
		return o.fail(ctx, sh, conv, bundling.EditPhaseCommit, err)
	}
	o.advance(ctx, conv, conv.MarkCommitted())

	o.logger.Info("order rewrite committed",
		zap.String("shop_id", sh.ID.String()),
		zap.Int64("order_id", conv.OrderID),
		zap.String("bundled_sku", conv.BundledSKU))
	return nil
}

// sessionLinesFor returns the session lines whose identifiers appear in the
// conversion's replaced item set, deduplicated in session order
func sessionLinesFor(session *platform.EditSession, originalItems []string) []platform.EditLine {
	replaced := make(map[string]struct{}, len(originalItems))
	for _, item := range originalItems {
		if id, ok := bundling.ParseIdentifier(item); ok {
			replaced[id.Value] = struct{}{}
		}
	}

	lines := make([]platform.EditLine, 0, len(originalItems))
	for _, line := range session.Lines {
		if lineMatches(line, replaced) {
			lines = append(lines, line)
		}
	}
	return lines
}

func lineMatches(line platform.EditLine, replaced map[string]struct{}) bool {
	if id, ok := bundling.SKUIdentifier(line.SKU); ok {
		if _, hit := replaced[id.Value]; hit {
			return true
		}
	}
	if id, ok := bundling.VariantIdentifier(line.VariantID); ok {
		if _, hit := replaced[id.Value]; hit {
			return true
		}
	}
	return false
}

// advance applies a state transition and persists it. Transition errors
// mean the record was touched concurrently; they are logged, not fatal,
// because the platform-side edit is already in flight.
func (o *EditOrchestrator) advance(ctx context.Context, conv *bundling.OrderConversion, transitionErr error) {
	if transitionErr != nil {
		o.logger.Warn("unexpected edit state transition",
			zap.String("conversion_id", conv.ID.String()),
			zap.String("edit_status", conv.EditStatus.String()),
			zap.Error(transitionErr))
		return
	}
	o.persist(ctx, conv)
}

// fail records the broken phase on the conversion and surfaces the error.
// The ledger row stays; the reconciliation listing and webhook redelivery
// are the recovery paths.
func (o *EditOrchestrator) fail(ctx context.Context, sh *shop.Shop, conv *bundling.OrderConversion, phase bundling.EditPhase, cause error) error {
	if err := conv.MarkEditFailed(phase); err != nil {
		o.logger.Warn("could not mark conversion failed",
			zap.String("conversion_id", conv.ID.String()),
			zap.Error(err))
	} else {
		o.persist(ctx, conv)
	}

	if o.metrics != nil {
		o.metrics.RecordEditFailure(ctx, sh.ID, phase.String())
	}
	o.logger.Error("order rewrite failed",
		zap.String("shop_id", sh.ID.String()),
		zap.Int64("order_id", conv.OrderID),
		zap.String("bundled_sku", conv.BundledSKU),
		zap.String("phase", phase.String()),
		zap.Error(cause))
	return fmt.Errorf("order edit %s: %w", phase, cause)
}

func (o *EditOrchestrator) persist(ctx context.Context, conv *bundling.OrderConversion) {
	if err := o.conversionRepo.UpdateEditOutcome(ctx, conv); err != nil {
		o.logger.Warn("failed to persist edit outcome",
			zap.String("conversion_id", conv.ID.String()),
			zap.String("edit_status", conv.EditStatus.String()),
			zap.Error(err))
	}
}
