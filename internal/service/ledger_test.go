package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solemates/commerce-backend/internal/entity"
)

func pendingOrder(ref string) *entity.Order {
	items := []entity.OrderLineItem{
		{ProductID: "p1", Name: "Product p1", UnitPrice: decimal.RequireFromString("50.00"), Quantity: 2},
	}
	return &entity.Order{
		ExternalReference: ref,
		TotalAmount:       entity.RecomputeTotal(items),
		ReservationID:     "res-" + ref,
		Items:             items,
	}
}

func TestLedgerCreate(t *testing.T) {
	ctx := context.Background()
	s := newStack()

	o := pendingOrder("ord-1")
	require.NoError(t, s.ledger.Create(ctx, o))
	assert.NotEmpty(t, o.ID)
	assert.Equal(t, entity.StatusPending, o.Status)
	assert.False(t, o.CreatedAt.IsZero())

	got, err := s.ledger.GetByExternalReference(ctx, "ord-1")
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)
	assert.True(t, got.TotalAmount.Equal(decimal.RequireFromString("100.00")))
}

func TestLedgerCreateRejectsEmptyOrder(t *testing.T) {
	s := newStack()
	err := s.ledger.Create(context.Background(), &entity.Order{ExternalReference: "ord-1"})
	var verr *entity.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestLedgerCreateRejectsMismatchedTotal(t *testing.T) {
	s := newStack()
	o := pendingOrder("ord-1")
	o.TotalAmount = decimal.RequireFromString("99.00")
	err := s.ledger.Create(context.Background(), o)
	var verr *entity.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestLedgerCreateAcceptsDiscountedTotal(t *testing.T) {
	s := newStack()
	o := pendingOrder("ord-1")
	o.DiscountAmount = decimal.RequireFromString("10.00")
	o.TotalAmount = decimal.RequireFromString("90.00")
	assert.NoError(t, s.ledger.Create(context.Background(), o))
}

func TestLedgerTransitionApplies(t *testing.T) {
	ctx := context.Background()
	s := newStack()
	require.NoError(t, s.ledger.Create(ctx, pendingOrder("ord-1")))

	o, applied, err := s.ledger.Transition(ctx, "ord-1", entity.StatusApproved, "pay-42")
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, entity.StatusApproved, o.Status)
	assert.Equal(t, "pay-42", o.PaymentID)

	events := s.publisher.Events()
	require.Len(t, events, 1)
	approved, ok := events[0].(entity.OrderApproved)
	require.True(t, ok)
	assert.Equal(t, "ord-1", approved.ExternalReference)
	assert.Equal(t, "res-ord-1", approved.ReservationID)
	assert.Equal(t, "pay-42", approved.PaymentID)
}

func TestLedgerTransitionDuplicateIsNoop(t *testing.T) {
	ctx := context.Background()
	s := newStack()
	require.NoError(t, s.ledger.Create(ctx, pendingOrder("ord-1")))

	_, applied, err := s.ledger.Transition(ctx, "ord-1", entity.StatusApproved, "pay-42")
	require.NoError(t, err)
	require.True(t, applied)

	o, applied, err := s.ledger.Transition(ctx, "ord-1", entity.StatusApproved, "pay-42")
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, entity.StatusApproved, o.Status)

	assert.Len(t, s.publisher.Events(), 1, "duplicate transition must not republish")

	trail, err := s.ledger.Trail(ctx, o.ID)
	require.NoError(t, err)
	assert.Len(t, trail, 1, "duplicate transition must not extend the trail")
}

func TestLedgerTransitionUnreachable(t *testing.T) {
	ctx := context.Background()
	s := newStack()
	require.NoError(t, s.ledger.Create(ctx, pendingOrder("ord-1")))

	_, _, err := s.ledger.Transition(ctx, "ord-1", entity.StatusRejected, "pay-42")
	require.NoError(t, err)

	// Terminal state reached; approval can no longer happen.
	_, _, err = s.ledger.Transition(ctx, "ord-1", entity.StatusApproved, "pay-43")
	var invalid *entity.InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, entity.StatusRejected, invalid.From)
	assert.Equal(t, entity.StatusApproved, invalid.To)

	o, err := s.ledger.GetByExternalReference(ctx, "ord-1")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusRejected, o.Status, "failed transition must not change state")
	assert.Equal(t, "pay-42", o.PaymentID, "payment id stays from the first terminal transition")
}

func TestLedgerTransitionUnknownOrder(t *testing.T) {
	s := newStack()
	_, _, err := s.ledger.Transition(context.Background(), "ghost", entity.StatusApproved, "pay-1")
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestLedgerTrailRecordsCausation(t *testing.T) {
	ctx := context.Background()
	s := newStack()
	o := pendingOrder("ord-1")
	require.NoError(t, s.ledger.Create(ctx, o))

	_, _, err := s.ledger.Transition(ctx, "ord-1", entity.StatusApproved, "pay-42")
	require.NoError(t, err)
	_, _, err = s.ledger.Transition(ctx, "ord-1", entity.StatusShipped, "admin")
	require.NoError(t, err)

	trail, err := s.ledger.Trail(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.Equal(t, entity.StatusPending, trail[0].From)
	assert.Equal(t, entity.StatusApproved, trail[0].To)
	assert.Equal(t, "pay-42", trail[0].CausationID)
	assert.Equal(t, entity.StatusApproved, trail[1].From)
	assert.Equal(t, entity.StatusShipped, trail[1].To)
	assert.Equal(t, "admin", trail[1].CausationID)
}

func TestLedgerSetPreferenceID(t *testing.T) {
	ctx := context.Background()
	s := newStack()
	require.NoError(t, s.ledger.Create(ctx, pendingOrder("ord-1")))

	require.NoError(t, s.ledger.SetPreferenceID(ctx, "ord-1", "pref-9"))

	o, err := s.ledger.GetByExternalReference(ctx, "ord-1")
	require.NoError(t, err)
	assert.Equal(t, "pref-9", o.PreferenceID)
}
