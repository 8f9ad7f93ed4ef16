package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/mis-sentinel/internal/constants"
	"github.com/mis-sentinel/internal/models"
	"github.com/mis-sentinel/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ledgerTestEnv struct {
	db       *gorm.DB
	partners *PartnerService
	clients  *PartnerClientService
	earnings *EarningService
	now      time.Time
}

func setupLedgerServiceTest(t *testing.T, mutate ...func(*LedgerSetting)) *ledgerTestEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:ledger_service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := models.MigrateDB(db); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}

	setting := DefaultLedgerSetting()
	for _, fn := range mutate {
		fn(&setting)
	}

	partnerRepo := repository.NewPartnerRepository(db)
	clientRepo := repository.NewPartnerClientRepository(db)
	earningRepo := repository.NewPartnerEarningRepository(db)
	auditRepo := repository.NewEarningAuditRepository(db)

	earnings := NewEarningService(partnerRepo, clientRepo, earningRepo, auditRepo, nil, setting)
	clients := NewPartnerClientService(partnerRepo, clientRepo, earningRepo, auditRepo, nil)
	partners := NewPartnerService(partnerRepo, clientRepo, earningRepo, earnings, setting)

	env := &ledgerTestEnv{
		db:       db,
		partners: partners,
		clients:  clients,
		earnings: earnings,
		now:      time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return env.now }
	earnings.now = clock
	clients.now = clock
	partners.now = clock
	return env
}

func (env *ledgerTestEnv) createPartner(t *testing.T, email, commissionType string, rate int64) *models.Partner {
	t.Helper()
	r := decimal.NewFromInt(rate)
	partner, err := env.partners.Create(context.Background(), CreatePartnerInput{
		Name:           "Partner " + email,
		Email:          email,
		CommissionType: commissionType,
		CommissionRate: &r,
	})
	if err != nil {
		t.Fatalf("create partner failed: %v", err)
	}
	return partner
}

func (env *ledgerTestEnv) createClient(t *testing.T, partnerID uint, email string) *models.PartnerClient {
	t.Helper()
	client, err := env.clients.Create(context.Background(), partnerID, CreateClientInput{
		ClientName:  "Client " + email,
		ClientEmail: email,
	})
	if err != nil {
		t.Fatalf("create client failed: %v", err)
	}
	return client
}

func (env *ledgerTestEnv) createEarning(t *testing.T, partnerID uint, amount int64, status string) *models.PartnerEarning {
	t.Helper()
	earning, err := env.earnings.CreateEarning(context.Background(), partnerID, CreateEarningInput{
		Amount: decimal.NewFromInt(amount),
		Status: status,
	})
	if err != nil {
		t.Fatalf("create earning failed: %v", err)
	}
	return earning
}

// insertEarningAt 直接写入指定创建时间的佣金记录
func (env *ledgerTestEnv) insertEarningAt(t *testing.T, partnerID uint, amount string, status string, createdAt time.Time) models.PartnerEarning {
	t.Helper()
	earning := models.PartnerEarning{
		PartnerID:      partnerID,
		Amount:         models.NewMoneyFromDecimal(decimal.RequireFromString(amount)),
		CommissionRate: models.NewMoneyFromDecimal(decimal.NewFromInt(10)),
		CommissionType: constants.CommissionTypePercentage,
		Status:         status,
		CreatedAt:      createdAt.UTC(),
		UpdatedAt:      createdAt.UTC(),
	}
	if err := env.db.Create(&earning).Error; err != nil {
		t.Fatalf("insert earning failed: %v", err)
	}
	return earning
}

func decimalFromString(t *testing.T, raw string) decimal.Decimal {
	t.Helper()
	value, err := decimal.NewFromString(raw)
	if err != nil {
		t.Fatalf("parse decimal %q failed: %v", raw, err)
	}
	return value
}
