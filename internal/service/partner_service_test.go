package service

import (
	"context"
	"testing"

	"github.com/mis-sentinel/internal/constants"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreatePartnerDefaultsAndDuplicateEmail(t *testing.T) {
	env := setupLedgerServiceTest(t)
	ctx := context.Background()

	partner, err := env.partners.Create(ctx, CreatePartnerInput{Name: " Acme ", Email: "Sales@Acme.io"})
	require.NoError(t, err)
	assert.Equal(t, "Acme", partner.Name)
	assert.Equal(t, "sales@acme.io", partner.Email)
	assert.Equal(t, constants.PartnerStatusPending, partner.Status)
	assert.Equal(t, constants.PartnerTypeAffiliate, partner.PartnerType)
	assert.Equal(t, constants.CommissionTypePercentage, partner.CommissionType)
	assert.Equal(t, "10.00", partner.CommissionRate.String())

	_, err = env.partners.Create(ctx, CreatePartnerInput{Name: "Acme 2", Email: "sales@acme.io"})
	require.ErrorIs(t, err, ErrConflict)

	_, err = env.partners.Create(ctx, CreatePartnerInput{Name: "Bad", Email: "not-an-email"})
	require.ErrorIs(t, err, ErrValidation)

	over := decimal.NewFromInt(101)
	_, err = env.partners.Create(ctx, CreatePartnerInput{Name: "Greedy", Email: "greedy@example.com", CommissionRate: &over})
	require.ErrorIs(t, err, ErrValidation)

	_, err = env.partners.Create(ctx, CreatePartnerInput{Name: "Odd", Email: "odd@example.com", PartnerType: "franchise"})
	require.ErrorIs(t, err, ErrValidation)
}

func TestCreatePartnerUsesConfiguredDefaultRate(t *testing.T) {
	env := setupLedgerServiceTest(t, func(s *LedgerSetting) { s.DefaultCommissionRate = decimal.NewFromFloat(12.5) })

	partner, err := env.partners.Create(context.Background(), CreatePartnerInput{Name: "Rate", Email: "rate@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "12.50", partner.CommissionRate.String())
}

func TestPartnerStatusLifecycle(t *testing.T) {
	env := setupLedgerServiceTest(t)
	ctx := context.Background()
	a := env.createPartner(t, "life-a@example.com", constants.CommissionTypePercentage, 10)
	b := env.createPartner(t, "life-b@example.com", constants.CommissionTypePercentage, 10)

	activated, err := env.partners.Activate(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.PartnerStatusActive, activated.Status)

	suspended, err := env.partners.Suspend(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.PartnerStatusSuspended, suspended.Status)

	affected, err := env.partners.BulkUpdateStatus(ctx, []uint{a.ID, b.ID, b.ID, 0, 9999}, constants.PartnerStatusActive)
	require.NoError(t, err)
	assert.EqualValues(t, 2, affected)

	_, err = env.partners.BulkUpdateStatus(ctx, []uint{a.ID}, "archived")
	require.ErrorIs(t, err, ErrValidation)

	_, err = env.partners.Activate(ctx, 9999)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUpdatePartnerMergesMetadataAndRejectsCycles(t *testing.T) {
	env := setupLedgerServiceTest(t)
	ctx := context.Background()
	root := env.createPartner(t, "root@example.com", constants.CommissionTypePercentage, 10)

	child, err := env.partners.Create(ctx, CreatePartnerInput{
		Name:            "Child",
		Email:           "child@example.com",
		ParentPartnerID: &root.ID,
		Metadata:        map[string]interface{}{"region": "emea"},
	})
	require.NoError(t, err)
	grandchild, err := env.partners.Create(ctx, CreatePartnerInput{
		Name:            "Grandchild",
		Email:           "grandchild@example.com",
		ParentPartnerID: &child.ID,
	})
	require.NoError(t, err)

	updated, err := env.partners.Update(ctx, child.ID, UpdatePartnerInput{Metadata: map[string]interface{}{"tier": "gold"}})
	require.NoError(t, err)
	assert.Equal(t, "emea", updated.Metadata["region"])
	assert.Equal(t, "gold", updated.Metadata["tier"])

	_, err = env.partners.Update(ctx, root.ID, UpdatePartnerInput{ParentPartnerID: &grandchild.ID})
	require.ErrorIs(t, err, ErrValidation)

	_, err = env.partners.Update(ctx, root.ID, UpdatePartnerInput{ParentPartnerID: &root.ID})
	require.ErrorIs(t, err, ErrValidation)

	missing := uint(9999)
	_, err = env.partners.Update(ctx, root.ID, UpdatePartnerInput{ParentPartnerID: &missing})
	require.ErrorIs(t, err, ErrNotFound)

	children, err := env.partners.ListSubPartners(ctx, root.ID)
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, child.ID, children[0].ID)

	detached, err := env.partners.Update(ctx, grandchild.ID, UpdatePartnerInput{ClearParent: true})
	require.NoError(t, err)
	assert.Nil(t, detached.ParentPartnerID)
}

func TestDeletePartnerSoftAndHard(t *testing.T) {
	env := setupLedgerServiceTest(t)
	ctx := context.Background()
	busy := env.createPartner(t, "busy@example.com", constants.CommissionTypePercentage, 10)
	env.createClient(t, busy.ID, "busy-client@example.com")
	empty := env.createPartner(t, "empty@example.com", constants.CommissionTypePercentage, 10)

	require.ErrorIs(t, env.partners.Delete(ctx, busy.ID, true), ErrConflict)

	require.NoError(t, env.partners.Delete(ctx, busy.ID, false))
	soft, err := env.partners.Get(ctx, busy.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.PartnerStatusInactive, soft.Status)

	require.NoError(t, env.partners.Delete(ctx, empty.ID, true))
	_, err = env.partners.Get(ctx, empty.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPartnerDetailCarriesStats(t *testing.T) {
	env := setupLedgerServiceTest(t)
	ctx := context.Background()
	partner := env.createPartner(t, "detail@example.com", constants.CommissionTypePercentage, 20)
	client := env.createClient(t, partner.ID, "detail-client@example.com")
	env.createClient(t, partner.ID, "detail-idle@example.com")
	_, err := env.partners.Create(ctx, CreatePartnerInput{Name: "Sub", Email: "sub@example.com", ParentPartnerID: &partner.ID})
	require.NoError(t, err)

	_, err = env.clients.RecordPayment(ctx, partner.ID, client.ID, RecordPaymentInput{Amount: decimalFromString(t, "50")})
	require.NoError(t, err)

	detail, err := env.partners.GetDetail(ctx, partner.ID)
	require.NoError(t, err)
	assert.Equal(t, partner.ID, detail.Partner.ID)
	assert.EqualValues(t, 2, detail.Stats.ClientCount)
	assert.EqualValues(t, 1, detail.Stats.ActiveClientCount)
	assert.EqualValues(t, 1, detail.Stats.SubPartnerCount)
	assert.EqualValues(t, 1, detail.Stats.Earnings.TotalCount)
	assert.Equal(t, "10.00", detail.Stats.Earnings.TotalAmount.String())
}

func TestSubPartnerChangesInvalidateParentStats(t *testing.T) {
	env := setupLedgerServiceTest(t)
	ctx := context.Background()
	first := env.createPartner(t, "first-parent@example.com", constants.CommissionTypePercentage, 10)
	second := env.createPartner(t, "second-parent@example.com", constants.CommissionTypePercentage, 10)

	var invalidated []uint
	env.partners.publisher.invalidateFn = func(_ context.Context, partnerID uint) error {
		invalidated = append(invalidated, partnerID)
		return nil
	}

	child, err := env.partners.Create(ctx, CreatePartnerInput{Name: "Child", Email: "child@example.com", ParentPartnerID: &first.ID})
	require.NoError(t, err)
	assert.Equal(t, []uint{first.ID}, invalidated)

	invalidated = nil
	_, err = env.partners.Update(ctx, child.ID, UpdatePartnerInput{ParentPartnerID: &second.ID})
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{child.ID, first.ID, second.ID}, invalidated)

	// 上级未变化时只刷新自身
	invalidated = nil
	name := "Child Renamed"
	_, err = env.partners.Update(ctx, child.ID, UpdatePartnerInput{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, []uint{child.ID}, invalidated)

	invalidated = nil
	require.NoError(t, env.partners.Delete(ctx, child.ID, true))
	assert.Equal(t, []uint{child.ID, second.ID}, invalidated)
}
