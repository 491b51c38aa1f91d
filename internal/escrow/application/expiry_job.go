package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/wyfcoding/escrowsettlement/internal/escrow/domain"
	"github.com/wyfcoding/pkg/messagequeue"
)

// VAExpiryJob 负责定期清扫超过有效期仍未收到付款的虚拟账户。
type VAExpiryJob struct {
	vaRepo    domain.VirtualAccountRepository
	publisher messagequeue.EventPublisher
	logger    *slog.Logger
	interval  time.Duration
}

func NewVAExpiryJob(
	vaRepo domain.VirtualAccountRepository,
	publisher messagequeue.EventPublisher,
	logger *slog.Logger,
) *VAExpiryJob {
	return &VAExpiryJob{
		vaRepo:    vaRepo,
		publisher: publisher,
		logger:    logger,
		interval:  1 * time.Hour, // 有效期按天计, 小时级清扫足够
	}
}

func (j *VAExpiryJob) Start(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.logger.Info("VA Expiry Job started", "interval", j.interval)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.run(ctx)
		}
	}
}

// run 单次清扫, 过期由单条 UPDATE 批量完成, 只扫 active 状态
func (j *VAExpiryJob) run(ctx context.Context) {
	now := time.Now()
	expired, err := j.vaRepo.ExpireDue(ctx, now)
	if err != nil {
		j.logger.Error("failed to expire virtual accounts", "error", err)
		return
	}
	if expired == 0 {
		return
	}

	j.logger.Info("expired virtual accounts swept", "expired_count", expired)

	if j.publisher == nil {
		return
	}
	event := domain.VirtualAccountsExpiredEvent{
		ExpiredCount: expired,
		SweptAt:      now,
		OccurredAt:   time.Now(),
	}
	if err := j.publisher.Publish(ctx, domain.VirtualAccountsExpiredEventType, now.Format("20060102150405"), event); err != nil {
		j.logger.Error("failed to publish expiry event", "error", err)
	}
}
