package application

import (
	"context"
	"log/slog"

	"github.com/wyfcoding/escrowsettlement/internal/escrow/domain"
)

// EscrowProjectionService 负责将托管账户事件投影到读模型。
// repo 必须是主库仓储, 投影读自己刷新的缓存会形成回环。
type EscrowProjectionService struct {
	repo         domain.EscrowAccountRepository
	readRepo     domain.EscrowAccountReadRepository
	summaryCache domain.DealEscrowSummaryReadRepository
	logger       *slog.Logger
}

func NewEscrowProjectionService(
	repo domain.EscrowAccountRepository,
	readRepo domain.EscrowAccountReadRepository,
	summaryCache domain.DealEscrowSummaryReadRepository,
	logger *slog.Logger,
) *EscrowProjectionService {
	return &EscrowProjectionService{
		repo:         repo,
		readRepo:     readRepo,
		summaryCache: summaryCache,
		logger:       logger,
	}
}

// RefreshAccount 按账号重建托管账户缓存
// 账户不存在时不做定向删除, 残留键由 TTL 兜底
func (s *EscrowProjectionService) RefreshAccount(ctx context.Context, accountNo string) error {
	if s.readRepo == nil {
		return nil
	}
	account, err := s.repo.FindByAccountNo(ctx, accountNo)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to load escrow account for projection", "account_no", accountNo, "error", err)
		return err
	}
	if account == nil {
		return nil
	}
	if err := s.readRepo.Save(ctx, account); err != nil {
		s.logger.ErrorContext(ctx, "failed to save escrow account cache", "account_no", accountNo, "error", err)
		return err
	}
	return nil
}

// InvalidateSummary 失效交易汇总缓存, 下一次查询重新归并
func (s *EscrowProjectionService) InvalidateSummary(ctx context.Context, dealID string) error {
	if s.summaryCache == nil {
		return nil
	}
	if err := s.summaryCache.Delete(ctx, dealID); err != nil {
		s.logger.ErrorContext(ctx, "failed to invalidate deal summary cache", "deal_id", dealID, "error", err)
		return err
	}
	return nil
}
