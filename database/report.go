package database

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/harborbank/harbor/internal/apierror"
)

// GetTransactionTotalsByType sums applied transaction amounts per type over
// the window. PENDING and REJECTED rows are excluded so the totals reflect
// money that actually moved.
func (d Datasource) GetTransactionTotalsByType(ctx context.Context, from, to time.Time) (map[string]decimal.Decimal, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT type, COALESCE(SUM(amount), 0)
		FROM transactions
		WHERE status = 'APPLIED' AND created_at >= $1 AND created_at < $2
		GROUP BY type
	`, from, to)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to aggregate transaction totals", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	totals := make(map[string]decimal.Decimal)
	for rows.Next() {
		var txnType, totalStr string
		if err := rows.Scan(&txnType, &totalStr); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan transaction totals", err)
		}
		total, err := decimal.NewFromString(totalStr)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to parse transaction total", err)
		}
		totals[txnType] = total
	}

	return totals, rows.Err()
}

func (d Datasource) GetDailyTransactionVolume(ctx context.Context, from, to time.Time) ([]DailyVolume, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT DATE_TRUNC('day', created_at) AS day, COUNT(*), COALESCE(SUM(amount), 0)
		FROM transactions
		WHERE status = 'APPLIED' AND created_at >= $1 AND created_at < $2
		GROUP BY day
		ORDER BY day ASC
	`, from, to)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to aggregate daily volume", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var series []DailyVolume
	for rows.Next() {
		var point DailyVolume
		var volumeStr string
		if err := rows.Scan(&point.Day, &point.Count, &volumeStr); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan daily volume", err)
		}
		point.Volume, err = decimal.NewFromString(volumeStr)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to parse daily volume", err)
		}
		series = append(series, point)
	}

	return series, rows.Err()
}

func (d Datasource) GetAccountCountsByStatus(ctx context.Context) (map[string]int64, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT status, COUNT(*)
		FROM accounts
		GROUP BY status
	`)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to aggregate account counts", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	counts := make(map[string]int64)
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan account counts", err)
		}
		counts[status] = count
	}

	return counts, rows.Err()
}
