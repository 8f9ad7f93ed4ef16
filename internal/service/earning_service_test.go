package service

import (
	"context"
	"errors"
	"testing"

	"github.com/mis-sentinel/internal/constants"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEarningTransitionsFollowStateMachine(t *testing.T) {
	env := setupLedgerServiceTest(t)
	ctx := context.Background()
	partner := env.createPartner(t, "machine@example.com", constants.CommissionTypePercentage, 10)

	earning := env.createEarning(t, partner.ID, 50, "")
	require.Equal(t, constants.EarningStatusPending, earning.Status)

	approved, err := env.earnings.Approve(ctx, partner.ID, earning.ID, EarningTransitionInput{Reason: "ok", Operator: "ops"})
	require.NoError(t, err)
	assert.Equal(t, constants.EarningStatusApproved, approved.Status)

	held, err := env.earnings.Hold(ctx, partner.ID, earning.ID, EarningTransitionInput{Reason: "review"})
	require.NoError(t, err)
	assert.Equal(t, constants.EarningStatusOnHold, held.Status)

	_, err = env.earnings.Approve(ctx, partner.ID, earning.ID, EarningTransitionInput{})
	require.ErrorIs(t, err, ErrInvalidState)

	released, err := env.earnings.Release(ctx, partner.ID, earning.ID, EarningTransitionInput{})
	require.NoError(t, err)
	assert.Equal(t, constants.EarningStatusPending, released.Status)

	paid, err := env.earnings.MarkPaid(ctx, partner.ID, earning.ID, MarkPaidInput{PaymentMethod: "bank", PaymentReference: "TX-1"})
	require.NoError(t, err)
	assert.Equal(t, constants.EarningStatusPaid, paid.Status)
	require.NotNil(t, paid.PaidDate)
	assert.True(t, paid.PaidDate.Equal(env.now))
	assert.Equal(t, "bank", paid.PaymentMethod)
	assert.Equal(t, "TX-1", paid.PaymentReference)

	history, err := env.earnings.History(ctx, partner.ID, earning.ID)
	require.NoError(t, err)
	actions := make([]string, 0, len(history))
	for _, row := range history {
		actions = append(actions, row.Action)
	}
	assert.Equal(t, []string{
		constants.EarningActionCreate,
		constants.EarningActionApprove,
		constants.EarningActionHold,
		constants.EarningActionRelease,
		constants.EarningActionMarkPaid,
	}, actions)
	assert.Equal(t, "ops", history[1].Operator)
	assert.Equal(t, constants.EarningStatusPending, history[1].FromStatus)
}

func TestPaidAndCancelledEarningsAreTerminal(t *testing.T) {
	env := setupLedgerServiceTest(t)
	ctx := context.Background()
	partner := env.createPartner(t, "terminal@example.com", constants.CommissionTypePercentage, 10)

	paid := env.createEarning(t, partner.ID, 20, constants.EarningStatusPaid)
	cancelled := env.createEarning(t, partner.ID, 30, constants.EarningStatusPending)
	_, err := env.earnings.Cancel(ctx, partner.ID, cancelled.ID, EarningTransitionInput{Reason: "refund"})
	require.NoError(t, err)

	for _, id := range []uint{paid.ID, cancelled.ID} {
		_, err := env.earnings.Approve(ctx, partner.ID, id, EarningTransitionInput{})
		assert.ErrorIs(t, err, ErrInvalidState)
		_, err = env.earnings.MarkPaid(ctx, partner.ID, id, MarkPaidInput{})
		assert.ErrorIs(t, err, ErrInvalidState)
		_, err = env.earnings.Cancel(ctx, partner.ID, id, EarningTransitionInput{})
		assert.ErrorIs(t, err, ErrInvalidState)
		_, err = env.earnings.Hold(ctx, partner.ID, id, EarningTransitionInput{})
		assert.ErrorIs(t, err, ErrInvalidState)
		_, err = env.earnings.Release(ctx, partner.ID, id, EarningTransitionInput{})
		assert.ErrorIs(t, err, ErrInvalidState)
	}

	var invalid *InvalidStateError
	_, err = env.earnings.Approve(ctx, partner.ID, paid.ID, EarningTransitionInput{})
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, constants.EarningStatusPaid, invalid.Current)
	assert.Equal(t, constants.EarningActionApprove, invalid.Attempted)
}

func TestHoldFromAnyStatusWhenConfigured(t *testing.T) {
	env := setupLedgerServiceTest(t, func(s *LedgerSetting) { s.AllowHoldFromAny = true })
	ctx := context.Background()
	partner := env.createPartner(t, "hold-any@example.com", constants.CommissionTypePercentage, 10)

	paid := env.createEarning(t, partner.ID, 20, constants.EarningStatusPaid)
	held, err := env.earnings.Hold(ctx, partner.ID, paid.ID, EarningTransitionInput{Reason: "dispute"})
	require.NoError(t, err)
	assert.Equal(t, constants.EarningStatusOnHold, held.Status)

	_, err = env.earnings.Hold(ctx, partner.ID, paid.ID, EarningTransitionInput{})
	assert.ErrorIs(t, err, ErrInvalidState)

	// 从 paid 冻结的记录既不能解冻回 pending，也不能被取消
	_, err = env.earnings.Release(ctx, partner.ID, paid.ID, EarningTransitionInput{})
	require.ErrorIs(t, err, ErrInvalidState)
	_, err = env.earnings.Cancel(ctx, partner.ID, paid.ID, EarningTransitionInput{})
	require.ErrorIs(t, err, ErrInvalidState)
	_, err = env.earnings.MarkPaid(ctx, partner.ID, paid.ID, MarkPaidInput{})
	require.ErrorIs(t, err, ErrInvalidState)

	cancelled := env.createEarning(t, partner.ID, 5, constants.EarningStatusCancelled)
	_, err = env.earnings.Hold(ctx, partner.ID, cancelled.ID, EarningTransitionInput{})
	require.NoError(t, err)
	_, err = env.earnings.Release(ctx, partner.ID, cancelled.ID, EarningTransitionInput{})
	require.ErrorIs(t, err, ErrInvalidState)

	pending := env.createEarning(t, partner.ID, 7, "")
	_, err = env.earnings.Hold(ctx, partner.ID, pending.ID, EarningTransitionInput{})
	require.NoError(t, err)
	released, err := env.earnings.Release(ctx, partner.ID, pending.ID, EarningTransitionInput{})
	require.NoError(t, err)
	assert.Equal(t, constants.EarningStatusPending, released.Status)

	history, err := env.earnings.History(ctx, partner.ID, paid.ID)
	require.NoError(t, err)
	paidTransitions := 0
	for _, row := range history {
		if row.ToStatus == constants.EarningStatusPaid && row.Action != constants.EarningActionCreate {
			paidTransitions++
		}
	}
	assert.Zero(t, paidTransitions)
}

func TestEarningTransitionRejectsForeignPartner(t *testing.T) {
	env := setupLedgerServiceTest(t)
	ctx := context.Background()
	owner := env.createPartner(t, "owner@example.com", constants.CommissionTypePercentage, 10)
	other := env.createPartner(t, "other@example.com", constants.CommissionTypePercentage, 10)
	earning := env.createEarning(t, owner.ID, 10, "")

	_, err := env.earnings.Approve(ctx, other.ID, earning.ID, EarningTransitionInput{})
	require.ErrorIs(t, err, ErrNotFound)

	_, err = env.earnings.Approve(ctx, owner.ID, 9999, EarningTransitionInput{})
	require.ErrorIs(t, err, ErrNotFound)

	_, err = env.earnings.History(ctx, other.ID, earning.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestBulkPayPartialSuccess(t *testing.T) {
	env := setupLedgerServiceTest(t)
	ctx := context.Background()
	partner := env.createPartner(t, "bulk@example.com", constants.CommissionTypePercentage, 10)

	pending := env.createEarning(t, partner.ID, 40, constants.EarningStatusPending)
	approved := env.createEarning(t, partner.ID, 25, constants.EarningStatusApproved)
	alreadyPaid := env.createEarning(t, partner.ID, 99, constants.EarningStatusPaid)

	result, err := env.earnings.BulkPay(ctx, partner.ID, BulkPayInput{
		EarningIDs:    []uint{pending.ID, alreadyPaid.ID, 424242, approved.ID, pending.ID},
		MarkPaidInput: MarkPaidInput{PaymentMethod: "wire", Operator: "finance"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Count)
	assert.ElementsMatch(t, []uint{pending.ID, approved.ID}, result.PaidIDs)
	assert.Equal(t, "65.00", result.TotalAmount.String())
	assert.ElementsMatch(t, []BulkPaySkip{
		{ID: alreadyPaid.ID, Reason: "invalid_status:" + constants.EarningStatusPaid},
		{ID: 424242, Reason: "not_found"},
	}, result.Skipped)

	reloaded, err := env.earnings.ListEarnings(ctx, partner.ID, EarningListInput{Status: constants.EarningStatusPaid})
	require.NoError(t, err)
	assert.EqualValues(t, 3, reloaded.Total)
}

func TestBulkPayNothingPayable(t *testing.T) {
	env := setupLedgerServiceTest(t)
	ctx := context.Background()
	partner := env.createPartner(t, "bulk-none@example.com", constants.CommissionTypePercentage, 10)
	paid := env.createEarning(t, partner.ID, 10, constants.EarningStatusPaid)

	_, err := env.earnings.BulkPay(ctx, partner.ID, BulkPayInput{EarningIDs: []uint{paid.ID, 777}})
	require.ErrorIs(t, err, ErrValidation)

	_, err = env.earnings.BulkPay(ctx, partner.ID, BulkPayInput{})
	require.ErrorIs(t, err, ErrValidation)
}

func TestBulkPayRespectsMaxSize(t *testing.T) {
	env := setupLedgerServiceTest(t, func(s *LedgerSetting) { s.MaxBulkPay = 2 })
	partner := env.createPartner(t, "bulk-max@example.com", constants.CommissionTypePercentage, 10)

	_, err := env.earnings.BulkPay(context.Background(), partner.ID, BulkPayInput{EarningIDs: []uint{1, 2, 3}})
	require.ErrorIs(t, err, ErrValidation)
}

func TestCreateEarningValidation(t *testing.T) {
	env := setupLedgerServiceTest(t)
	ctx := context.Background()
	partner := env.createPartner(t, "create-earning@example.com", constants.CommissionTypePercentage, 10)

	_, err := env.earnings.CreateEarning(ctx, partner.ID, CreateEarningInput{})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = env.earnings.CreateEarning(ctx, partner.ID, CreateEarningInput{Amount: decimalFromString(t, "5"), Status: "settled"})
	assert.ErrorIs(t, err, ErrValidation)

	missingClient := uint(404)
	_, err = env.earnings.CreateEarning(ctx, partner.ID, CreateEarningInput{Amount: decimalFromString(t, "5"), ClientID: &missingClient})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = env.earnings.CreateEarning(ctx, 999, CreateEarningInput{Amount: decimalFromString(t, "5")})
	assert.ErrorIs(t, err, ErrNotFound)

	earning, err := env.earnings.CreateEarning(ctx, partner.ID, CreateEarningInput{Amount: decimalFromString(t, "12.345")})
	require.NoError(t, err)
	assert.Equal(t, "12.35", earning.Amount.String())
	assert.Equal(t, constants.CommissionTypePercentage, earning.CommissionType)
}
