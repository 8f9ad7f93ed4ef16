package provider

import (
	"github.com/mis-sentinel/internal/cache"
	"github.com/mis-sentinel/internal/config"
	"github.com/mis-sentinel/internal/logger"
	"github.com/mis-sentinel/internal/models"
	"github.com/mis-sentinel/internal/queue"
	"github.com/mis-sentinel/internal/repository"
	"github.com/mis-sentinel/internal/service"

	"gorm.io/gorm"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client
	DB          *gorm.DB

	// Repositories
	PartnerRepo       repository.PartnerRepository
	PartnerClientRepo repository.PartnerClientRepository
	EarningRepo       repository.PartnerEarningRepository
	EarningAuditRepo  repository.EarningAuditRepository

	// Services
	LedgerSetting        service.LedgerSetting
	PartnerService       *service.PartnerService
	PartnerClientService *service.PartnerClientService
	EarningService       *service.EarningService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端
	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	return NewContainerWithDB(cfg, models.DB, queueClient)
}

// NewContainerWithDB 使用给定数据库与队列客户端组装仓储与服务
func NewContainerWithDB(cfg *config.Config, db *gorm.DB, queueClient *queue.Client) *Container {
	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
		DB:          db,
	}
	c.initRepositories()
	c.initServices()
	return c
}

func (c *Container) initRepositories() {
	c.PartnerRepo = repository.NewPartnerRepository(c.DB)
	c.PartnerClientRepo = repository.NewPartnerClientRepository(c.DB)
	c.EarningRepo = repository.NewPartnerEarningRepository(c.DB)
	c.EarningAuditRepo = repository.NewEarningAuditRepository(c.DB)
}

func (c *Container) initServices() {
	c.LedgerSetting = service.DefaultLedgerSetting()
	if c.Config != nil {
		c.LedgerSetting = service.NewLedgerSetting(c.Config.Ledger)
	}
	c.EarningService = service.NewEarningService(c.PartnerRepo, c.PartnerClientRepo, c.EarningRepo, c.EarningAuditRepo, c.QueueClient, c.LedgerSetting)
	c.PartnerClientService = service.NewPartnerClientService(c.PartnerRepo, c.PartnerClientRepo, c.EarningRepo, c.EarningAuditRepo, c.QueueClient)
	c.PartnerService = service.NewPartnerService(c.PartnerRepo, c.PartnerClientRepo, c.EarningRepo, c.EarningService, c.LedgerSetting)
}
