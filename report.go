package harbor

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/harborbank/harbor/database"
)

// OverviewReport is the admin dashboard payload.
type OverviewReport struct {
	From            time.Time                  `json:"from"`
	To              time.Time                  `json:"to"`
	TotalsByType    map[string]decimal.Decimal `json:"totals_by_type"`
	DailyVolume     []database.DailyVolume     `json:"daily_volume"`
	AccountsByState map[string]int64           `json:"accounts_by_status"`
}

// GetOverviewReport aggregates transaction totals, the daily volume series,
// and account counts for a window. Defaults to the trailing 30 days.
func (h *Harbor) GetOverviewReport(ctx context.Context, from, to time.Time) (*OverviewReport, error) {
	if to.IsZero() {
		to = time.Now()
	}
	if from.IsZero() {
		from = to.AddDate(0, 0, -30)
	}

	totals, err := h.datasource.GetTransactionTotalsByType(ctx, from, to)
	if err != nil {
		return nil, err
	}
	volume, err := h.datasource.GetDailyTransactionVolume(ctx, from, to)
	if err != nil {
		return nil, err
	}
	counts, err := h.datasource.GetAccountCountsByStatus(ctx)
	if err != nil {
		return nil, err
	}

	return &OverviewReport{
		From:            from,
		To:              to,
		TotalsByType:    totals,
		DailyVolume:     volume,
		AccountsByState: counts,
	}, nil
}
