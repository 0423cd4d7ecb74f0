// Package repositorytest holds behaviour checks shared by every ledger backend.
package repositorytest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mide008/Roothaus-1/internal/domain"
	"github.com/Mide008/Roothaus-1/internal/repository"
)

// Factory returns a fresh ledger with the given claim TTL and a function that
// moves the ledger's clock forward
type Factory func(t *testing.T, claimTTL time.Duration) (repository.NotificationRepository, func(time.Duration))

// RunNotificationLedgerTests exercises the claim, mark-sent and release contract
func RunNotificationLedgerTests(t *testing.T, newLedger Factory) {
	ctx := context.Background()

	t.Run("claim once", func(t *testing.T) {
		ledger, _ := newLedger(t, time.Minute)

		claim, err := ledger.Claim(ctx, "cs_1", domain.NotificationCustomer)
		require.NoError(t, err)
		assert.True(t, claim.Acquired)
		assert.False(t, claim.ClaimedAt.IsZero())

		claim, err = ledger.Claim(ctx, "cs_1", domain.NotificationCustomer)
		require.NoError(t, err)
		assert.False(t, claim.Acquired, "a live claim blocks a concurrent delivery")
		assert.Equal(t, domain.NotificationPending, claim.Status, "the blocking claim is still in flight")

		claim, err = ledger.Claim(ctx, "cs_1", domain.NotificationAdmin)
		require.NoError(t, err)
		assert.True(t, claim.Acquired, "kinds are independent")
	})

	t.Run("sent is final", func(t *testing.T) {
		ledger, advance := newLedger(t, time.Minute)

		first, err := ledger.Claim(ctx, "cs_2", domain.NotificationCustomer)
		require.NoError(t, err)
		require.True(t, first.Acquired)
		require.NoError(t, ledger.MarkSent(ctx, "cs_2", domain.NotificationCustomer))

		advance(time.Hour)
		claim, err := ledger.Claim(ctx, "cs_2", domain.NotificationCustomer)
		require.NoError(t, err)
		assert.False(t, claim.Acquired)
		assert.Equal(t, domain.NotificationSent, claim.Status)

		// releasing a sent notification does not reopen it
		require.NoError(t, ledger.Release(ctx, "cs_2", domain.NotificationCustomer, first.ClaimedAt))
		claim, err = ledger.Claim(ctx, "cs_2", domain.NotificationCustomer)
		require.NoError(t, err)
		assert.False(t, claim.Acquired)
		assert.Equal(t, domain.NotificationSent, claim.Status)
	})

	t.Run("release reopens a pending claim", func(t *testing.T) {
		ledger, _ := newLedger(t, time.Minute)

		claim, err := ledger.Claim(ctx, "cs_3", domain.NotificationAdmin)
		require.NoError(t, err)
		require.True(t, claim.Acquired)
		require.NoError(t, ledger.Release(ctx, "cs_3", domain.NotificationAdmin, claim.ClaimedAt))

		claim, err = ledger.Claim(ctx, "cs_3", domain.NotificationAdmin)
		require.NoError(t, err)
		assert.True(t, claim.Acquired)
	})

	t.Run("stale claim can be taken over", func(t *testing.T) {
		ledger, advance := newLedger(t, time.Minute)

		claim, err := ledger.Claim(ctx, "cs_4", domain.NotificationCustomer)
		require.NoError(t, err)
		require.True(t, claim.Acquired)

		advance(2 * time.Minute)
		claim, err = ledger.Claim(ctx, "cs_4", domain.NotificationCustomer)
		require.NoError(t, err)
		assert.True(t, claim.Acquired)
	})

	t.Run("release by a superseded claimant keeps the new claim", func(t *testing.T) {
		ledger, advance := newLedger(t, time.Minute)

		stale, err := ledger.Claim(ctx, "cs_5", domain.NotificationCustomer)
		require.NoError(t, err)
		require.True(t, stale.Acquired)

		advance(2 * time.Minute)
		current, err := ledger.Claim(ctx, "cs_5", domain.NotificationCustomer)
		require.NoError(t, err)
		require.True(t, current.Acquired)

		// the first delivery finally gives up after its claim was taken over
		require.NoError(t, ledger.Release(ctx, "cs_5", domain.NotificationCustomer, stale.ClaimedAt))

		third, err := ledger.Claim(ctx, "cs_5", domain.NotificationCustomer)
		require.NoError(t, err)
		assert.False(t, third.Acquired, "the takeover claim still blocks a third delivery")
		assert.Equal(t, domain.NotificationPending, third.Status)

		require.NoError(t, ledger.Release(ctx, "cs_5", domain.NotificationCustomer, current.ClaimedAt))
		third, err = ledger.Claim(ctx, "cs_5", domain.NotificationCustomer)
		require.NoError(t, err)
		assert.True(t, third.Acquired)
	})

	t.Run("mark sent without claim", func(t *testing.T) {
		ledger, _ := newLedger(t, time.Minute)
		assert.Error(t, ledger.MarkSent(ctx, "cs_unknown", domain.NotificationAdmin))
	})

	t.Run("list", func(t *testing.T) {
		ledger, advance := newLedger(t, time.Minute)

		_, err := ledger.Claim(ctx, "cs_a", domain.NotificationCustomer)
		require.NoError(t, err)
		require.NoError(t, ledger.MarkSent(ctx, "cs_a", domain.NotificationCustomer))
		advance(time.Second)
		_, err = ledger.Claim(ctx, "cs_b", domain.NotificationCustomer)
		require.NoError(t, err)

		records, err := ledger.List(ctx, 10, 0)
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, "cs_b", records[0].SessionID)
		assert.Equal(t, domain.NotificationPending, records[0].Status)
		assert.Equal(t, "cs_a", records[1].SessionID)
		assert.Equal(t, domain.NotificationSent, records[1].Status)
		assert.NotNil(t, records[1].SentAt)

		page, err := ledger.List(ctx, 1, 1)
		require.NoError(t, err)
		require.Len(t, page, 1)
		assert.Equal(t, "cs_a", page[0].SessionID)

		empty, err := ledger.List(ctx, 10, 5)
		require.NoError(t, err)
		assert.Empty(t, empty)
	})
}
