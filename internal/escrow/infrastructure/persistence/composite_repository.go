package persistence

import (
	"context"

	"github.com/wyfcoding/escrowsettlement/internal/escrow/domain"
	"github.com/wyfcoding/pkg/contextx"
)

type compositeEscrowAccountRepository struct {
	mysql domain.EscrowAccountRepository
	redis domain.EscrowAccountReadRepository
}

// NewCompositeEscrowAccountRepository 主库写入为准, 缓存旁路加速读取
func NewCompositeEscrowAccountRepository(mysql domain.EscrowAccountRepository, redis domain.EscrowAccountReadRepository) domain.EscrowAccountRepository {
	return &compositeEscrowAccountRepository{
		mysql: mysql,
		redis: redis,
	}
}

func (r *compositeEscrowAccountRepository) Save(ctx context.Context, account *domain.EscrowAccount) error {
	if err := r.mysql.Save(ctx, account); err != nil {
		return err
	}
	if contextx.GetTx(ctx) == nil {
		_ = r.redis.Save(ctx, account) // Cache 写入失败不影响主库
	}
	return nil
}

// Update 主库更新后仅失效缓存, 提交后的刷新由事件投影完成
func (r *compositeEscrowAccountRepository) Update(ctx context.Context, account *domain.EscrowAccount) error {
	if err := r.mysql.Update(ctx, account); err != nil {
		return err
	}
	if contextx.GetTx(ctx) == nil {
		_ = r.redis.Delete(ctx, account)
	}
	return nil
}

func (r *compositeEscrowAccountRepository) FindByAccountNo(ctx context.Context, accountNo string) (*domain.EscrowAccount, error) {
	// 事务内直读主库, 缓存不参与未提交读
	if contextx.GetTx(ctx) != nil {
		return r.mysql.FindByAccountNo(ctx, accountNo)
	}
	account, err := r.redis.GetByAccountNo(ctx, accountNo)
	if err == nil && account != nil {
		return account, nil
	}
	account, err = r.mysql.FindByAccountNo(ctx, accountNo)
	if err != nil || account == nil {
		return account, err
	}
	_ = r.redis.Save(ctx, account)
	return account, nil
}

func (r *compositeEscrowAccountRepository) FindByDealID(ctx context.Context, dealID string) (*domain.EscrowAccount, error) {
	if contextx.GetTx(ctx) != nil {
		return r.mysql.FindByDealID(ctx, dealID)
	}
	account, err := r.redis.GetByDealID(ctx, dealID)
	if err == nil && account != nil {
		return account, nil
	}
	account, err = r.mysql.FindByDealID(ctx, dealID)
	if err != nil || account == nil {
		return account, err
	}
	_ = r.redis.Save(ctx, account)
	return account, nil
}

func (r *compositeEscrowAccountRepository) List(ctx context.Context, offset, limit int) ([]*domain.EscrowAccount, int64, error) {
	// 列表查询不走 Redis
	return r.mysql.List(ctx, offset, limit)
}

func (r *compositeEscrowAccountRepository) WithTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	return r.mysql.WithTx(ctx, fn)
}

func (r *compositeEscrowAccountRepository) ExecWithBarrier(ctx context.Context, barrier any, fn func(txCtx context.Context) error) error {
	// Barrier 操作必须在主库上执行
	return r.mysql.ExecWithBarrier(ctx, barrier, fn)
}
