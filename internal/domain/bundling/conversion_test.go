package bundling

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConversion(t *testing.T) *OrderConversion {
	t.Helper()
	shopID := uuid.New()
	rule, err := NewBundleRule(shopID, "Phone bundle",
		[]string{"CASE-001", "SCREEN-PRO", "CABLE-USB"},
		"PHONE-BUNDLE-001", decimal.NewFromFloat(8.50))
	require.NoError(t, err)

	conv, err := NewOrderConversion(shopID, 1001, "#1001", rule,
		[]string{"CASE-001", "SCREEN-PRO", "CABLE-USB"})
	require.NoError(t, err)
	return conv
}

func TestNewOrderConversion(t *testing.T) {
	t.Run("captures rule fields at conversion time", func(t *testing.T) {
		conv := newTestConversion(t)

		assert.Equal(t, "PHONE-BUNDLE-001", conv.BundledSKU)
		assert.True(t, conv.Savings.Equal(decimal.NewFromFloat(8.50)))
		assert.Equal(t, EditStatusPending, conv.EditStatus)
		assert.Nil(t, conv.FailedPhase)
		assert.Equal(t, int64(1001), conv.OrderID)
	})

	t.Run("later rule edits do not rewrite history", func(t *testing.T) {
		shopID := uuid.New()
		rule, err := NewBundleRule(shopID, "Kit", []string{"A"}, "KIT-1", decimal.NewFromInt(5))
		require.NoError(t, err)
		conv, err := NewOrderConversion(shopID, 42, "#42", rule, []string{"A"})
		require.NoError(t, err)

		require.NoError(t, rule.Update("Kit", []string{"A"}, "KIT-2", decimal.NewFromInt(9)))

		assert.Equal(t, "KIT-1", conv.BundledSKU)
		assert.True(t, conv.Savings.Equal(decimal.NewFromInt(5)))
	})

	t.Run("requires a rule", func(t *testing.T) {
		_, err := NewOrderConversion(uuid.New(), 1, "#1", nil, []string{"A"})

		assert.ErrorIs(t, err, ErrConversionRuleRequired)
	})

	t.Run("requires an order id", func(t *testing.T) {
		shopID := uuid.New()
		rule, err := NewBundleRule(shopID, "Kit", []string{"A"}, "KIT-1", decimal.Zero)
		require.NoError(t, err)

		_, err = NewOrderConversion(shopID, 0, "", rule, []string{"A"})

		assert.ErrorIs(t, err, ErrConversionOrderRequired)
	})

	t.Run("requires replaced items", func(t *testing.T) {
		shopID := uuid.New()
		rule, err := NewBundleRule(shopID, "Kit", []string{"A"}, "KIT-1", decimal.Zero)
		require.NoError(t, err)

		_, err = NewOrderConversion(shopID, 1, "#1", rule, nil)

		assert.ErrorIs(t, err, ErrConversionItemsEmpty)
	})
}

func TestOrderConversionEditStateMachine(t *testing.T) {
	t.Run("happy path walks all four phases", func(t *testing.T) {
		conv := newTestConversion(t)

		require.NoError(t, conv.MarkResolved())
		require.NoError(t, conv.MarkEditing())
		require.NoError(t, conv.MarkLinesApplied())
		require.NoError(t, conv.MarkCommitted())

		assert.True(t, conv.EditCommitted())
		assert.False(t, conv.EditRetryable())
	})

	t.Run("phases cannot be skipped", func(t *testing.T) {
		conv := newTestConversion(t)

		err := conv.MarkEditing()

		assert.ErrorIs(t, err, ErrIllegalEditTransition)
		assert.Equal(t, EditStatusPending, conv.EditStatus)
	})

	t.Run("failure records the phase", func(t *testing.T) {
		conv := newTestConversion(t)
		require.NoError(t, conv.MarkResolved())
		require.NoError(t, conv.MarkEditing())

		require.NoError(t, conv.MarkEditFailed(EditPhaseApplyLines))

		assert.Equal(t, EditStatusFailed, conv.EditStatus)
		require.NotNil(t, conv.FailedPhase)
		assert.Equal(t, EditPhaseApplyLines, *conv.FailedPhase)
		assert.True(t, conv.EditRetryable())
	})

	t.Run("committed conversions cannot fail afterwards", func(t *testing.T) {
		conv := newTestConversion(t)
		require.NoError(t, conv.MarkResolved())
		require.NoError(t, conv.MarkEditing())
		require.NoError(t, conv.MarkLinesApplied())
		require.NoError(t, conv.MarkCommitted())

		err := conv.MarkEditFailed(EditPhaseCommit)

		assert.ErrorIs(t, err, ErrIllegalEditTransition)
	})

	t.Run("reset for retry rewinds only failed conversions", func(t *testing.T) {
		conv := newTestConversion(t)
		require.NoError(t, conv.MarkEditFailed(EditPhaseResolve))

		require.NoError(t, conv.ResetForRetry())

		assert.Equal(t, EditStatusPending, conv.EditStatus)
		assert.Nil(t, conv.FailedPhase)

		err := conv.ResetForRetry()
		assert.ErrorIs(t, err, ErrIllegalEditTransition)
	})
}
