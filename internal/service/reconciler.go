package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/solemates/commerce-backend/internal/entity"
)

// Reconciler is the single entry point for asynchronous payment-status
// notifications. The gateway delivers at least once and without ordering, so
// everything here leans on the ledger's idempotent transition.
type Reconciler struct {
	ledger *Ledger
}

func NewReconciler(ledger *Ledger) *Reconciler {
	return &Reconciler{ledger: ledger}
}

// MapStatus maps a gateway payment status to an internal order status. The
// second return value reports whether the status is actionable; anything
// unknown or still pending maps to a no-op.
func MapStatus(gatewayStatus string) (entity.Status, bool) {
	switch strings.ToLower(gatewayStatus) {
	case "approved":
		return entity.StatusApproved, true
	case "rejected", "cancelled":
		return entity.StatusRejected, true
	default:
		return entity.StatusPending, false
	}
}

// Reconcile applies a payment notification to the order ledger.
//
// A nil return means the notification was durably processed or correctly
// deduced as a no-op and the gateway must be acknowledged. Only transient
// failures (unknown external reference racing order creation, persistence
// unavailable) return an error, and that error is retryable: the caller
// should withhold the ack so the gateway redelivers.
func (r *Reconciler) Reconcile(ctx context.Context, paymentID, externalReference, gatewayStatus string) error {
	target, actionable := MapStatus(gatewayStatus)
	if !actionable {
		slog.Debug("Ignoring non-actionable payment status",
			"payment_id", paymentID, "status", gatewayStatus)
		return nil
	}

	_, applied, err := r.ledger.Transition(ctx, externalReference, target, paymentID)
	if err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			// The order row may not be committed yet; the gateway can race
			// the tail of the checkout. Ask for a retry instead of failing.
			return &entity.TransientError{Err: err}
		}
		var invalid *entity.InvalidTransitionError
		if errors.As(err, &invalid) {
			// Stale or contradictory notification (e.g. approved after
			// rejected). The order is in a terminal state; retrying cannot
			// help, so log loudly and ack.
			slog.Error("Payment notification for unreachable state",
				"payment_id", paymentID, "external_reference", externalReference,
				"from", invalid.From, "to", invalid.To)
			return nil
		}
		return &entity.TransientError{Err: err}
	}

	if applied {
		slog.Info("Payment notification applied", "payment_id", paymentID,
			"external_reference", externalReference, "status", target)
	} else {
		slog.Info("Duplicate payment notification, no-op", "payment_id", paymentID,
			"external_reference", externalReference, "status", target)
	}
	return nil
}
