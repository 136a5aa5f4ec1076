package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"gitbridge/internal/pkg/config"
	"gitbridge/internal/repository"
	"gitbridge/internal/service"
)

// 单轮巡检的整体超时
const sweepTimeout = 10 * time.Minute

// Scheduler 调度器：定期巡检已存储的集成Token是否仍然有效
type Scheduler struct {
	cron      *cron.Cron
	logger    *zap.Logger
	repo      repository.SecretsRepository
	validator service.TokenValidator
	entries   map[string]cron.EntryID
}

// NewScheduler 创建调度器
func NewScheduler(repo repository.SecretsRepository, validator service.TokenValidator, logger *zap.Logger) *Scheduler {
	// 创建 cron 实例（带秒级支持）
	c := cron.New(cron.WithSeconds())

	return &Scheduler{
		cron:      c,
		logger:    logger,
		repo:      repo,
		validator: validator,
		entries:   make(map[string]cron.EntryID),
	}
}

// Start 启动调度器。未配置cron表达式时不注册巡检任务
func (s *Scheduler) Start(cfg *config.Config) error {
	log := s.logger.Sugar()

	cronExpr := cfg.Git.RevalidateCron
	if cronExpr == "" {
		log.Info("未配置git.revalidate_cron，跳过凭据巡检任务")
		return nil
	}

	log.Info("启动定时任务调度器...")

	entryID, err := s.cron.AddFunc(cronExpr, func() {
		log.Info("执行定时任务: 凭据巡检")
		s.RevalidateAll()
	})
	if err != nil {
		log.Errorf("注册凭据巡检任务失败: %v cron=%s", err, cronExpr)
		return err
	}

	s.entries["token_revalidate"] = entryID
	log.Infof("凭据巡检任务已注册: %s entry_id=%d", cronExpr, entryID)

	s.cron.Start()
	log.Info("定时任务调度器启动成功")

	return nil
}

// Stop 停止调度器
func (s *Scheduler) Stop() {
	s.logger.Info("正在停止定时任务调度器...")

	// 停止 cron（等待正在执行的任务完成）
	ctx := s.cron.Stop()
	<-ctx.Done()

	s.logger.Info("定时任务调度器已停止")
}

// RevalidateAll 巡检全部用户的集成Token。
// 单个用户或单个集成的失败只记录日志，绝不中断整轮巡检
func (s *Scheduler) RevalidateAll() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	userIDs, err := s.repo.ListUserIDs(ctx)
	if err != nil {
		s.logger.Error("凭据巡检: 查询用户列表失败", zap.Error(err))
		return
	}

	var checked, failed int
	for _, userID := range userIDs {
		set, err := s.repo.Load(ctx, userID)
		if err != nil {
			s.logger.Warn("凭据巡检: 加载用户凭据失败，跳过",
				zap.String("user_id", userID), zap.Error(err))
			continue
		}
		if set == nil {
			continue
		}

		for _, it := range set.Integrations() {
			if it.Token.IsEmpty() {
				continue
			}
			checked++
			if err := s.validator.Validate(ctx, it.ProviderType, it.Token.Value(), it.Host); err != nil {
				failed++
				s.logger.Warn("凭据巡检: 集成Token已失效",
					zap.String("user_id", userID),
					zap.String("integration_id", it.ID),
					zap.String("provider", string(it.ProviderType)),
					zap.Error(err))
			}
		}
	}

	s.logger.Info("凭据巡检完成",
		zap.Int("users", len(userIDs)),
		zap.Int("checked", checked),
		zap.Int("failed", failed))
}
