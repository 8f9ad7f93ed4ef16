package service

import (
	"context"
	"testing"
	"time"

	"github.com/mis-sentinel/internal/constants"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummaryConservesTotals(t *testing.T) {
	env := setupLedgerServiceTest(t)
	ctx := context.Background()
	partner := env.createPartner(t, "summary@example.com", constants.CommissionTypePercentage, 10)

	env.insertEarningAt(t, partner.ID, "10.10", constants.EarningStatusPending, env.now.Add(-time.Hour))
	env.insertEarningAt(t, partner.ID, "20.20", constants.EarningStatusApproved, env.now.Add(-2*time.Hour))
	env.insertEarningAt(t, partner.ID, "30.30", constants.EarningStatusPaid, env.now.AddDate(0, -1, 0))
	env.insertEarningAt(t, partner.ID, "5.00", constants.EarningStatusCancelled, env.now.AddDate(0, -2, 0))
	env.insertEarningAt(t, partner.ID, "1.01", constants.EarningStatusOnHold, env.now.Add(-3*time.Hour))

	summary, err := env.earnings.Summary(ctx, partner.ID)
	require.NoError(t, err)
	require.Len(t, summary.ByStatus, 5)

	sum := decimal.Zero
	var count int64
	for _, bucket := range summary.ByStatus {
		sum = sum.Add(bucket.Amount.Decimal)
		count += bucket.Count
	}
	assert.Equal(t, "66.61", summary.TotalAmount.String())
	assert.True(t, sum.Equal(summary.TotalAmount.Decimal))
	assert.EqualValues(t, 5, summary.TotalCount)
	assert.Equal(t, summary.TotalCount, count)
	assert.Equal(t, "30.30", summary.ByStatus[constants.EarningStatusPaid].Amount.String())

	assert.EqualValues(t, 3, summary.ThisMonth.Count)
	assert.Equal(t, "31.31", summary.ThisMonth.Amount.String())
}

func TestSummaryForEmptyPartner(t *testing.T) {
	env := setupLedgerServiceTest(t)
	partner := env.createPartner(t, "summary-empty@example.com", constants.CommissionTypePercentage, 10)

	summary, err := env.earnings.Summary(context.Background(), partner.ID)
	require.NoError(t, err)
	assert.Zero(t, summary.TotalCount)
	assert.Equal(t, "0.00", summary.TotalAmount.String())
	for _, status := range earningStatuses {
		bucket, ok := summary.ByStatus[status]
		require.True(t, ok, status)
		assert.Zero(t, bucket.Count)
	}

	_, err = env.earnings.Summary(context.Background(), 9999)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListEarningsFiltersAndTotals(t *testing.T) {
	env := setupLedgerServiceTest(t)
	ctx := context.Background()
	partner := env.createPartner(t, "list@example.com", constants.CommissionTypePercentage, 10)

	env.insertEarningAt(t, partner.ID, "10.00", constants.EarningStatusPending, time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC))
	env.insertEarningAt(t, partner.ID, "15.00", constants.EarningStatusPaid, time.Date(2024, time.March, 10, 23, 59, 59, 0, time.UTC))
	env.insertEarningAt(t, partner.ID, "40.00", constants.EarningStatusPaid, time.Date(2024, time.March, 11, 0, 0, 0, 0, time.UTC))
	env.insertEarningAt(t, partner.ID, "99.00", constants.EarningStatusCancelled, time.Date(2024, time.February, 28, 12, 0, 0, 0, time.UTC))

	result, err := env.earnings.ListEarnings(ctx, partner.ID, EarningListInput{
		DateFrom: "2024-03-01",
		DateTo:   "2024-03-10",
		PageSize: 1,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 2, result.Total)
	assert.Len(t, result.Items, 1)
	assert.Equal(t, 1, result.PageSize)
	assert.Equal(t, "25.00", result.Totals.TotalAmount.String())
	assert.Equal(t, "10.00", result.Totals.Pending.String())
	assert.Equal(t, "15.00", result.Totals.Paid.String())
	assert.Equal(t, "15.00", result.Items[0].Amount.String())

	paidOnly, err := env.earnings.ListEarnings(ctx, partner.ID, EarningListInput{
		Status:    constants.EarningStatusPaid,
		SortBy:    "amount",
		SortOrder: "asc",
	})
	require.NoError(t, err)
	require.Len(t, paidOnly.Items, 2)
	assert.Equal(t, "15.00", paidOnly.Items[0].Amount.String())
	assert.Equal(t, "55.00", paidOnly.Totals.Paid.String())
	assert.Equal(t, "0.00", paidOnly.Totals.Pending.String())

	_, err = env.earnings.ListEarnings(ctx, partner.ID, EarningListInput{Status: "settled"})
	require.ErrorIs(t, err, ErrValidation)
	_, err = env.earnings.ListEarnings(ctx, partner.ID, EarningListInput{DateFrom: "03/01/2024"})
	require.ErrorIs(t, err, ErrValidation)
	_, err = env.earnings.ListEarnings(ctx, partner.ID, EarningListInput{DateFrom: "2024-03-10", DateTo: "2024-03-01"})
	require.ErrorIs(t, err, ErrValidation)
}

func TestMonthlyReportUsesHalfOpenMonthRange(t *testing.T) {
	env := setupLedgerServiceTest(t)
	ctx := context.Background()
	partner := env.createPartner(t, "report@example.com", constants.CommissionTypePercentage, 10)

	env.insertEarningAt(t, partner.ID, "1.00", constants.EarningStatusPending, time.Date(2024, time.January, 31, 23, 59, 59, 0, time.UTC))
	env.insertEarningAt(t, partner.ID, "2.00", constants.EarningStatusPending, time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC))
	env.insertEarningAt(t, partner.ID, "3.00", constants.EarningStatusPaid, time.Date(2024, time.February, 1, 18, 30, 0, 0, time.UTC))
	env.insertEarningAt(t, partner.ID, "4.00", constants.EarningStatusApproved, time.Date(2024, time.February, 29, 23, 59, 59, 0, time.UTC))
	env.insertEarningAt(t, partner.ID, "5.00", constants.EarningStatusPending, time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC))

	report, err := env.earnings.MonthlyReport(ctx, partner.ID, 2024, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 3, report.TotalCount)
	assert.Equal(t, "9.00", report.TotalAmount.String())
	assert.Equal(t, "2.00", report.ByStatus[constants.EarningStatusPending].Amount.String())
	assert.Equal(t, "3.00", report.ByStatus[constants.EarningStatusPaid].Amount.String())
	assert.Equal(t, "4.00", report.ByStatus[constants.EarningStatusApproved].Amount.String())
	require.Len(t, report.Transactions, 3)
	assert.Equal(t, "2.00", report.Transactions[0].Amount.String())
	assert.Equal(t, "4.00", report.Transactions[2].Amount.String())

	require.Len(t, report.Daily, 2)
	assert.Equal(t, 1, report.Daily[0].Day)
	assert.EqualValues(t, 2, report.Daily[0].Count)
	assert.Equal(t, "5.00", report.Daily[0].Amount.String())
	assert.Equal(t, "2024-02-29", report.Daily[1].Date)

	_, err = env.earnings.MonthlyReport(ctx, partner.ID, 2024, 0)
	require.ErrorIs(t, err, ErrValidation)
	_, err = env.earnings.MonthlyReport(ctx, partner.ID, 2024, 13)
	require.ErrorIs(t, err, ErrValidation)
}

func TestMonthlyReportFollowsLedgerTimezone(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*3600)
	env := setupLedgerServiceTest(t, func(s *LedgerSetting) { s.Location = loc })
	partner := env.createPartner(t, "report-tz@example.com", constants.CommissionTypePercentage, 10)

	// 2024-02-01 00:30 UTC+8 falls on 2024-01-31 in UTC
	env.insertEarningAt(t, partner.ID, "7.00", constants.EarningStatusPending, time.Date(2024, time.February, 1, 0, 30, 0, 0, loc))
	env.insertEarningAt(t, partner.ID, "8.00", constants.EarningStatusPending, time.Date(2024, time.January, 31, 23, 30, 0, 0, loc))

	report, err := env.earnings.MonthlyReport(context.Background(), partner.ID, 2024, 2)
	require.NoError(t, err)
	require.Len(t, report.Transactions, 1)
	assert.Equal(t, "7.00", report.Transactions[0].Amount.String())
	assert.Equal(t, "2024-02-01", report.Daily[0].Date)
	assert.Equal(t, "UTC+8", report.Timezone)
}

func TestParseDateRangeAcceptsRFC3339(t *testing.T) {
	env := setupLedgerServiceTest(t)

	from, to, err := env.earnings.ParseDateRange("2024-03-01T10:00:00Z", "2024-03-02")
	require.NoError(t, err)
	require.NotNil(t, from)
	require.NotNil(t, to)
	assert.True(t, from.Equal(time.Date(2024, time.March, 1, 10, 0, 0, 0, time.UTC)))
	assert.True(t, to.Equal(time.Date(2024, time.March, 3, 0, 0, 0, 0, time.UTC)))

	from, to, err = env.earnings.ParseDateRange("", "")
	require.NoError(t, err)
	assert.Nil(t, from)
	assert.Nil(t, to)
}
