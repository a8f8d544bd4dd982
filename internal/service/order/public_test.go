package order

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/washfold/washfold/internal/entity"
	"github.com/washfold/washfold/internal/workflow"
	"github.com/washfold/washfold/pkg/errorbank"
)

func TestConfirmDelivery(t *testing.T) {
	newOrder := func(status workflow.Status) *entity.Order {
		return &entity.Order{
			ID:              10,
			TenantID:        testTenantID,
			Number:          "WF-1000",
			Status:          status,
			DeliveryAddress: "14 Alder Row",
		}
	}

	t.Run("confirms from out_for_delivery", func(t *testing.T) {
		f := newFixture(t)
		f.orders.orders[10] = newOrder(workflow.StatusOutForDelivery)

		result, err := f.svc.ConfirmDelivery(context.Background(), "sunrise-cleaners", "WF-1000")
		require.NoError(t, err)
		assert.Equal(t, workflow.StatusDelivered, result.Order.Status)

		require.Len(t, f.audit.records, 1)
		record := f.audit.records[0]
		assert.Equal(t, "public-link", record.ActorID)
		assert.Equal(t, "public-link", record.Metadata["source"])
	})

	t.Run("repeated confirmation is idempotent", func(t *testing.T) {
		f := newFixture(t)
		f.orders.orders[10] = newOrder(workflow.StatusOutForDelivery)

		_, err := f.svc.ConfirmDelivery(context.Background(), "sunrise-cleaners", "WF-1000")
		require.NoError(t, err)
		result, err := f.svc.ConfirmDelivery(context.Background(), "sunrise-cleaners", "WF-1000")
		require.NoError(t, err)
		assert.Equal(t, workflow.StatusDelivered, result.Order.Status)
	})

	t.Run("rejected from early stages", func(t *testing.T) {
		f := newFixture(t)
		f.orders.orders[10] = newOrder(workflow.StatusProcessing)

		_, err := f.svc.ConfirmDelivery(context.Background(), "sunrise-cleaners", "WF-1000")
		require.Error(t, err)
		assert.True(t, errorbank.IsKind(err, errorbank.KindInvalidTransition))
		assert.Equal(t, workflow.StatusProcessing, f.orders.orders[10].Status)
	})

	t.Run("unknown tenant slug", func(t *testing.T) {
		f := newFixture(t)
		f.orders.orders[10] = newOrder(workflow.StatusOutForDelivery)

		_, err := f.svc.ConfirmDelivery(context.Background(), "midnight-wash", "WF-1000")
		require.Error(t, err)
		assert.True(t, errorbank.IsKind(err, errorbank.KindNotFound))
	})

	t.Run("unknown order number", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.svc.ConfirmDelivery(context.Background(), "sunrise-cleaners", "WF-9999")
		require.Error(t, err)
		assert.True(t, errorbank.IsKind(err, errorbank.KindNotFound))
	})
}
