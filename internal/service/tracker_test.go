package service

import (
	"errors"
	"testing"

	"kiosk-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func activeOrder(orderNo int64, totalItems int) models.Order {
	return models.Order{SiteKey: "site-a", OrderNo: orderNo, TotalItems: totalItems}
}

func TestSnapshotReplacesPriorState(t *testing.T) {
	tr := NewTracker("site-a", LinearWaitEstimator(5))

	tr.OnActiveOrdersChanged([]models.Order{
		activeOrder(5, 1), activeOrder(7, 1), activeOrder(9, 1),
	})
	assert.Equal(t, int64(5), tr.NowServing())

	tr.OnActiveOrdersChanged([]models.Order{
		activeOrder(7, 1), activeOrder(9, 1),
	})
	assert.Equal(t, int64(7), tr.NowServing(), "each snapshot is authoritative")
	assert.Equal(t, 2, tr.ActiveCount())
}

func TestEmptySnapshotClearsQueue(t *testing.T) {
	tr := NewTracker("site-a", LinearWaitEstimator(5))

	tr.OnActiveOrdersChanged([]models.Order{activeOrder(3, 2)})
	tr.OnActiveOrdersChanged(nil)

	assert.Equal(t, int64(0), tr.NowServing())
	assert.Equal(t, 0, tr.ActiveCount())
	assert.True(t, tr.Primed())
}

func TestEstimate(t *testing.T) {
	tr := NewTracker("site-a", LinearWaitEstimator(5))
	tr.OnActiveOrdersChanged([]models.Order{
		activeOrder(1, 2),
		activeOrder(2, 3),
	})

	est, ok := tr.Estimate(2)
	require.True(t, ok)
	assert.Equal(t, 1, est.Position)
	assert.Equal(t, 2*5+3*5, est.WaitMinutes)

	est, ok = tr.Estimate(1)
	require.True(t, ok)
	assert.Equal(t, 0, est.Position, "head of queue is being prepared now")
	assert.Equal(t, 10, est.WaitMinutes)
}

func TestEstimateAbsentOrder(t *testing.T) {
	tr := NewTracker("site-a", LinearWaitEstimator(5))
	tr.OnActiveOrdersChanged([]models.Order{activeOrder(2, 3)})

	// Completed or pre-snapshot orders are not position 0; they are absent.
	_, ok := tr.Estimate(1)
	assert.False(t, ok)
}

func TestStreamErrorRetainsLastGoodState(t *testing.T) {
	tr := NewTracker("site-a", LinearWaitEstimator(5))
	tr.OnActiveOrdersChanged([]models.Order{
		activeOrder(4, 2), activeOrder(6, 1),
	})

	tr.OnStreamError(errors.New("transient network loss"))

	assert.Equal(t, int64(4), tr.NowServing())
	assert.Equal(t, 2, tr.ActiveCount())
	est, ok := tr.Estimate(6)
	require.True(t, ok)
	assert.Equal(t, 1, est.Position)
}

func TestWaitForEntryFallsBackToLedgerItems(t *testing.T) {
	tr := NewTracker("site-a", LinearWaitEstimator(5))
	tr.OnActiveOrdersChanged([]models.Order{
		activeOrder(1, 2), activeOrder(2, 3),
	})

	// Entry no longer in the active set: its own item count stands in and
	// every active order ahead still counts.
	wait := tr.WaitForEntry(models.LedgerEntry{OrderNo: 4, TotalItems: 2})
	assert.Equal(t, (2+3)*5+2*5, wait)

	// Entry present in the active set uses the authoritative item count.
	wait = tr.WaitForEntry(models.LedgerEntry{OrderNo: 2, TotalItems: 99})
	assert.Equal(t, 2*5+3*5, wait)
}

func TestEstimatePluggableStrategy(t *testing.T) {
	fixed := func(itemsBefore, selfItems int) int { return 42 }
	tr := NewTracker("site-a", fixed)
	tr.OnActiveOrdersChanged([]models.Order{activeOrder(1, 2)})

	est, ok := tr.Estimate(1)
	require.True(t, ok)
	assert.Equal(t, 42, est.WaitMinutes)
}
