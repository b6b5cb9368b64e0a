package database

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/harborbank/harbor/model"
)

func TestGetTransactionTotalsByType(t *testing.T) {
	ds, mock := newTestDatasource(t)

	from := time.Now().AddDate(0, -1, 0)
	to := time.Now()
	rows := sqlmock.NewRows([]string{"type", "sum"}).
		AddRow(model.TypeTransferOut, "1250.0000").
		AddRow(model.TypeDeposit, "300.0000")

	mock.ExpectQuery(regexp.QuoteMeta(`GROUP BY type`)).
		WithArgs(from, to).
		WillReturnRows(rows)

	totals, err := ds.GetTransactionTotalsByType(context.Background(), from, to)

	assert.NoError(t, err)
	assert.Len(t, totals, 2)
	assert.True(t, totals[model.TypeTransferOut].Equal(decimal.NewFromInt(1250)))
	assert.True(t, totals[model.TypeDeposit].Equal(decimal.NewFromInt(300)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetDailyTransactionVolume(t *testing.T) {
	ds, mock := newTestDatasource(t)

	from := time.Now().AddDate(0, 0, -7)
	to := time.Now()
	day := time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"day", "count", "sum"}).
		AddRow(day, 12, "480.0000")

	mock.ExpectQuery(regexp.QuoteMeta(`DATE_TRUNC('day', created_at)`)).
		WithArgs(from, to).
		WillReturnRows(rows)

	series, err := ds.GetDailyTransactionVolume(context.Background(), from, to)

	assert.NoError(t, err)
	assert.Len(t, series, 1)
	assert.Equal(t, day, series[0].Day)
	assert.Equal(t, int64(12), series[0].Count)
	assert.True(t, series[0].Volume.Equal(decimal.NewFromInt(480)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAccountCountsByStatus(t *testing.T) {
	ds, mock := newTestDatasource(t)

	rows := sqlmock.NewRows([]string{"status", "count"}).
		AddRow(model.AccountActive, 40).
		AddRow(model.AccountFrozen, 2)

	mock.ExpectQuery(regexp.QuoteMeta(`GROUP BY status`)).
		WillReturnRows(rows)

	counts, err := ds.GetAccountCountsByStatus(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, int64(40), counts[model.AccountActive])
	assert.Equal(t, int64(2), counts[model.AccountFrozen])
	assert.NoError(t, mock.ExpectationsWereMet())
}
