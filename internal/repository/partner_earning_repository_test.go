package repository

import (
	"testing"
	"time"

	"github.com/mis-sentinel/internal/constants"
	"github.com/mis-sentinel/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func createRepoTestEarning(t *testing.T, db *gorm.DB, partnerID uint, amount string, status string, createdAt time.Time) models.PartnerEarning {
	t.Helper()
	earning := models.PartnerEarning{
		PartnerID:      partnerID,
		Amount:         models.NewMoneyFromDecimal(decimal.RequireFromString(amount)),
		CommissionRate: models.NewMoneyFromDecimal(decimal.NewFromInt(15)),
		CommissionType: constants.CommissionTypePercentage,
		Status:         status,
		CreatedAt:      createdAt,
		UpdatedAt:      createdAt,
	}
	if err := db.Create(&earning).Error; err != nil {
		t.Fatalf("create earning failed: %v", err)
	}
	return earning
}

func TestPartnerEarningRepositoryTransitionStatusIsConditional(t *testing.T) {
	db := setupLedgerRepositoryTest(t)
	repo := NewPartnerEarningRepository(db)
	partner := createRepoTestPartner(t, db, "cas@example.com", nil)
	other := createRepoTestPartner(t, db, "cas-other@example.com", nil)
	earning := createRepoTestEarning(t, db, partner.ID, "30.00", constants.EarningStatusPending, time.Now().UTC())

	pending := []string{constants.EarningStatusPending}
	applied, err := repo.TransitionStatus(other.ID, earning.ID, pending, constants.EarningStatusApproved, nil)
	if err != nil {
		t.Fatalf("foreign transition returned error: %v", err)
	}
	if applied {
		t.Fatalf("transition through foreign partner must not apply")
	}

	applied, err = repo.TransitionStatus(partner.ID, earning.ID, pending, constants.EarningStatusApproved, map[string]interface{}{"updated_at": time.Now().UTC()})
	if err != nil || !applied {
		t.Fatalf("first approve should apply: applied=%v err=%v", applied, err)
	}
	applied, err = repo.TransitionStatus(partner.ID, earning.ID, pending, constants.EarningStatusApproved, nil)
	if err != nil {
		t.Fatalf("second approve returned error: %v", err)
	}
	if applied {
		t.Fatalf("second approve must lose the compare-and-swap")
	}

	reloaded, err := repo.GetByPartnerAndID(partner.ID, earning.ID)
	if err != nil || reloaded == nil {
		t.Fatalf("reload earning failed: %v", err)
	}
	if reloaded.Status != constants.EarningStatusApproved {
		t.Fatalf("status want approved got %s", reloaded.Status)
	}
}

func TestPartnerEarningRepositoryAggregateAndRange(t *testing.T) {
	db := setupLedgerRepositoryTest(t)
	repo := NewPartnerEarningRepository(db)
	partner := createRepoTestPartner(t, db, "agg@example.com", nil)

	march := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	april := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	createRepoTestEarning(t, db, partner.ID, "10.10", constants.EarningStatusPending, march)
	createRepoTestEarning(t, db, partner.ID, "20.20", constants.EarningStatusPending, march.Add(time.Hour))
	createRepoTestEarning(t, db, partner.ID, "5.00", constants.EarningStatusPaid, april.Add(-time.Second))
	createRepoTestEarning(t, db, partner.ID, "99.00", constants.EarningStatusCancelled, april)

	rows, err := repo.AggregateByStatus(PartnerEarningListFilter{PartnerID: partner.ID})
	if err != nil {
		t.Fatalf("aggregate failed: %v", err)
	}
	byStatus := map[string]EarningStatusAggregate{}
	for _, row := range rows {
		byStatus[row.Status] = row
	}
	if byStatus[constants.EarningStatusPending].Count != 2 {
		t.Fatalf("pending count want 2 got %d", byStatus[constants.EarningStatusPending].Count)
	}
	if !byStatus[constants.EarningStatusPending].Amount.Equal(decimal.RequireFromString("30.30")) {
		t.Fatalf("pending amount want 30.30 got %s", byStatus[constants.EarningStatusPending].Amount)
	}

	inMarch, err := repo.ListByCreatedRange(partner.ID, march, april)
	if err != nil {
		t.Fatalf("list by range failed: %v", err)
	}
	if len(inMarch) != 3 {
		t.Fatalf("march range want 3 rows got %d", len(inMarch))
	}
	if !inMarch[0].CreatedAt.Equal(march) {
		t.Fatalf("range should be ascending by created_at")
	}

	list, total, err := repo.List(PartnerEarningListFilter{
		PartnerID:   partner.ID,
		Statuses:    []string{constants.EarningStatusPending, constants.EarningStatusPaid},
		CreatedFrom: &march,
		CreatedTo:   &april,
		Page:        1,
		PageSize:    2,
		SortBy:      "amount",
		SortOrder:   "asc",
	})
	if err != nil {
		t.Fatalf("list earnings failed: %v", err)
	}
	if total != 3 || len(list) != 2 {
		t.Fatalf("list want total=3 len=2 got total=%d len=%d", total, len(list))
	}
	if !list[0].Amount.Equal(decimal.RequireFromString("5.00")) {
		t.Fatalf("ascending amount sort want 5.00 first got %s", list[0].Amount.String())
	}
}

func TestEarningAuditRepositoryListByEarning(t *testing.T) {
	db := setupLedgerRepositoryTest(t)
	repo := NewEarningAuditRepository(db)
	for _, action := range []string{constants.EarningActionCreate, constants.EarningActionApprove} {
		if err := repo.Create(&models.PartnerEarningAuditLog{
			EarningID: 7,
			PartnerID: 3,
			Action:    action,
			ToStatus:  constants.EarningStatusApproved,
		}); err != nil {
			t.Fatalf("create audit log failed: %v", err)
		}
	}
	logs, err := repo.ListByEarning(3, 7)
	if err != nil {
		t.Fatalf("list audit logs failed: %v", err)
	}
	if len(logs) != 2 || logs[0].Action != constants.EarningActionCreate {
		t.Fatalf("audit logs should be ascending, got %+v", logs)
	}
}
