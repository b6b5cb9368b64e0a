package harbor

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/harborbank/harbor/config"
	"github.com/harborbank/harbor/internal/notification"
	"github.com/harborbank/harbor/model"
)

// SweepPendingPayments flags external payments that sat PENDING past the
// configured window and escalates each one for manual settlement. It never
// settles or fails anything on its own.
func (h *Harbor) SweepPendingPayments(ctx context.Context) (int, error) {
	cnf, err := config.Fetch()
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().Add(-time.Duration(cnf.Reconciliation.PendingPaymentWindowHours) * time.Hour)

	stale, err := h.datasource.GetTransactionsByStatus(ctx, model.TypePayment, model.StatusPending, cutoff)
	if err != nil {
		return 0, err
	}

	flagged := 0
	for i := range stale {
		payment := &stale[i]
		if err := h.datasource.UpdateTransactionStatus(ctx, payment.TransactionID, model.StatusFlagged); err != nil {
			logrus.Errorf("failed to flag stale payment %s: %v", payment.TransactionID, err)
			continue
		}
		flagged++
		notification.NotifyError(fmt.Errorf(
			"payment %s (ref %s) has been pending since %s and needs manual settlement",
			payment.TransactionID, payment.Reference, payment.CreatedAt.Format(time.RFC3339)))
	}

	logrus.Infof("pending payment sweep: %d stale, %d flagged", len(stale), flagged)
	return flagged, nil
}
