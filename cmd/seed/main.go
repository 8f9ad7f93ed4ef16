package main

import (
	"context"
	"errors"
	"time"

	"github.com/mis-sentinel/internal/config"
	"github.com/mis-sentinel/internal/constants"
	"github.com/mis-sentinel/internal/logger"
	"github.com/mis-sentinel/internal/models"
	"github.com/mis-sentinel/internal/provider"
	"github.com/mis-sentinel/internal/service"

	"github.com/shopspring/decimal"
)

type seedClient struct {
	name     string
	email    string
	plan     string
	value    string
	payments []string
}

type seedPartner struct {
	name           string
	email          string
	partnerType    string
	commissionType string
	rate           string
	activate       bool
	clients        []seedClient
}

var seedPartners = []seedPartner{
	{
		name:           "Northwind Referrals",
		email:          "ops@northwind.example",
		partnerType:    constants.PartnerTypeAffiliate,
		commissionType: constants.CommissionTypePercentage,
		rate:           "15",
		activate:       true,
		clients: []seedClient{
			{name: "Globex Security", email: "billing@globex.example", plan: "enterprise", value: "1200", payments: []string{"1200.00", "1200.00"}},
			{name: "Initech", email: "finance@initech.example", plan: "business", value: "300", payments: []string{"300.00"}},
		},
	},
	{
		name:           "Contoso Resellers",
		email:          "partners@contoso.example",
		partnerType:    constants.PartnerTypeReseller,
		commissionType: constants.CommissionTypeFixed,
		rate:           "25",
		activate:       true,
		clients: []seedClient{
			{name: "Umbrella Labs", email: "ap@umbrella.example", plan: "starter", value: "99", payments: []string{"99.00"}},
		},
	},
	{
		name:           "Pending Agency",
		email:          "hello@pending-agency.example",
		partnerType:    constants.PartnerTypeAgency,
		commissionType: constants.CommissionTypePercentage,
		rate:           "10",
	},
}

func main() {
	// 连接数据库
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}

	// 自动迁移
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	// 演示数据不经过队列与缓存
	container := provider.NewContainerWithDB(cfg, models.DB, nil)
	ctx := context.Background()

	for _, item := range seedPartners {
		existing, err := container.PartnerRepo.GetByEmail(item.email)
		if err != nil {
			stdLog.Fatalf("Failed to load partner %s: %v", item.email, err)
		}
		if existing != nil {
			stdLog.Printf("Partner already exists: %s", item.email)
			continue
		}

		rate := decimal.RequireFromString(item.rate)
		partner, err := container.PartnerService.Create(ctx, service.CreatePartnerInput{
			Name:           item.name,
			Email:          item.email,
			PartnerType:    item.partnerType,
			CommissionType: item.commissionType,
			CommissionRate: &rate,
			Metadata:       models.JSON{"source": "seed"},
		})
		if err != nil {
			stdLog.Printf("Failed to create partner %s: %v", item.email, err)
			continue
		}
		stdLog.Printf("Created partner: %s (#%d)", partner.Email, partner.ID)

		if item.activate {
			if _, err := container.PartnerService.Activate(ctx, partner.ID); err != nil {
				stdLog.Printf("Failed to activate partner %s: %v", item.email, err)
			}
		}

		for _, c := range item.clients {
			seedClientPayments(ctx, container, partner.ID, c)
		}
	}

	stdLog.Printf("Seed completed")
}

func seedClientPayments(ctx context.Context, container *provider.Container, partnerID uint, c seedClient) {
	stdLog := logger.StdLogger()
	client, err := container.PartnerClientService.Create(ctx, partnerID, service.CreateClientInput{
		ClientName:        c.name,
		ClientEmail:       c.email,
		SubscriptionPlan:  c.plan,
		SubscriptionValue: decimal.RequireFromString(c.value),
	})
	if err != nil {
		if errors.Is(err, service.ErrConflict) {
			stdLog.Printf("Client already exists: %s", c.email)
			return
		}
		stdLog.Printf("Failed to create client %s: %v", c.email, err)
		return
	}

	paidAt := time.Now().UTC().AddDate(0, -len(c.payments), 0)
	for _, amount := range c.payments {
		paymentDate := paidAt
		result, err := container.PartnerClientService.RecordPayment(ctx, partnerID, client.ID, service.RecordPaymentInput{
			Amount:      decimal.RequireFromString(amount),
			PaymentDate: &paymentDate,
			Description: "seed subscription payment",
			Operator:    "seed",
		})
		if err != nil {
			stdLog.Printf("Failed to record payment for %s: %v", c.email, err)
			return
		}
		stdLog.Printf("Recorded payment %s for %s, commission %s", amount, c.email, result.CommissionAmount.String())
		paidAt = paidAt.AddDate(0, 1, 0)
	}
}
