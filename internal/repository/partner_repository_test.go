package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/mis-sentinel/internal/constants"
	"github.com/mis-sentinel/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func setupLedgerRepositoryTest(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:ledger_repo_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := models.MigrateDB(db); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	return db
}

func createRepoTestPartner(t *testing.T, db *gorm.DB, email string, parentID *uint) models.Partner {
	t.Helper()
	now := time.Now().UTC()
	partner := models.Partner{
		Name:            "Partner " + email,
		Email:           email,
		Status:          constants.PartnerStatusActive,
		PartnerType:     constants.PartnerTypeAffiliate,
		CommissionRate:  models.NewMoneyFromDecimal(decimal.NewFromInt(15)),
		CommissionType:  constants.CommissionTypePercentage,
		ParentPartnerID: parentID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := db.Create(&partner).Error; err != nil {
		t.Fatalf("create partner failed: %v", err)
	}
	return partner
}

func TestPartnerRepositoryListFiltersAndChildren(t *testing.T) {
	db := setupLedgerRepositoryTest(t)
	repo := NewPartnerRepository(db)

	parent := createRepoTestPartner(t, db, "parent@example.com", nil)
	createRepoTestPartner(t, db, "child-a@example.com", &parent.ID)
	createRepoTestPartner(t, db, "child-b@example.com", &parent.ID)

	rows, total, err := repo.List(PartnerListFilter{Page: 1, PageSize: 10, ParentPartnerID: &parent.ID})
	if err != nil {
		t.Fatalf("list partners failed: %v", err)
	}
	if total != 2 || len(rows) != 2 {
		t.Fatalf("want 2 children, got total=%d len=%d", total, len(rows))
	}

	rows, total, err = repo.List(PartnerListFilter{Page: 1, PageSize: 1, Keyword: "child"})
	if err != nil {
		t.Fatalf("list partners by keyword failed: %v", err)
	}
	if total != 2 || len(rows) != 1 {
		t.Fatalf("keyword page want total=2 len=1, got total=%d len=%d", total, len(rows))
	}

	count, err := repo.CountChildren(parent.ID)
	if err != nil {
		t.Fatalf("count children failed: %v", err)
	}
	if count != 2 {
		t.Fatalf("children count want 2 got %d", count)
	}

	found, err := repo.GetByEmail("  PARENT@example.com ")
	if err != nil {
		t.Fatalf("get by email failed: %v", err)
	}
	if found == nil || found.ID != parent.ID {
		t.Fatalf("get by email should normalize case, got %+v", found)
	}
}

func TestPartnerRepositoryBatchUpdateStatus(t *testing.T) {
	db := setupLedgerRepositoryTest(t)
	repo := NewPartnerRepository(db)

	a := createRepoTestPartner(t, db, "a@example.com", nil)
	b := createRepoTestPartner(t, db, "b@example.com", nil)

	affected, err := repo.BatchUpdateStatus([]uint{a.ID, b.ID, 9999}, constants.PartnerStatusSuspended, time.Now().UTC())
	if err != nil {
		t.Fatalf("batch update failed: %v", err)
	}
	if affected != 2 {
		t.Fatalf("affected want 2 got %d", affected)
	}
	reloaded, err := repo.GetByID(b.ID)
	if err != nil || reloaded == nil {
		t.Fatalf("reload partner failed: %v", err)
	}
	if reloaded.Status != constants.PartnerStatusSuspended {
		t.Fatalf("status want suspended got %s", reloaded.Status)
	}

	missing, err := repo.GetByID(9999)
	if err != nil {
		t.Fatalf("get missing partner failed: %v", err)
	}
	if missing != nil {
		t.Fatalf("missing partner should be nil")
	}
}
