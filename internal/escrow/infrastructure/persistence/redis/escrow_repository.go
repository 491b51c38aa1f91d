package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/wyfcoding/escrowsettlement/internal/escrow/domain"
)

type escrowAccountRedisRepository struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewEscrowAccountRedisRepository 托管账户读模型缓存, 同一份数据按账号与交易号双键写入
func NewEscrowAccountRedisRepository(client redis.UniversalClient) domain.EscrowAccountReadRepository {
	return &escrowAccountRedisRepository{
		client: client,
		prefix: "escrow:account:",
		ttl:    24 * time.Hour,
	}
}

func (r *escrowAccountRedisRepository) Save(ctx context.Context, account *domain.EscrowAccount) error {
	if account == nil {
		return nil
	}
	data, err := json.Marshal(account)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.accountKey(account.AccountNo), data, r.ttl).Err(); err != nil {
		return err
	}
	return r.client.Set(ctx, r.dealKey(account.DealID), data, r.ttl).Err()
}

func (r *escrowAccountRedisRepository) GetByAccountNo(ctx context.Context, accountNo string) (*domain.EscrowAccount, error) {
	return r.get(ctx, r.accountKey(accountNo))
}

func (r *escrowAccountRedisRepository) GetByDealID(ctx context.Context, dealID string) (*domain.EscrowAccount, error) {
	return r.get(ctx, r.dealKey(dealID))
}

func (r *escrowAccountRedisRepository) Delete(ctx context.Context, account *domain.EscrowAccount) error {
	if account == nil {
		return nil
	}
	return r.client.Del(ctx, r.accountKey(account.AccountNo), r.dealKey(account.DealID)).Err()
}

func (r *escrowAccountRedisRepository) get(ctx context.Context, key string) (*domain.EscrowAccount, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var account domain.EscrowAccount
	if err := json.Unmarshal(data, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *escrowAccountRedisRepository) accountKey(accountNo string) string {
	return r.prefix + accountNo
}

func (r *escrowAccountRedisRepository) dealKey(dealID string) string {
	return r.prefix + "deal:" + dealID
}

type dealSummaryRedisRepository struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewDealSummaryRedisRepository 交易资金汇总缓存
// 汇总是实时归并的快照, TTL 压短, 过期清扫等无法定向失效的写路径靠 TTL 兜底
func NewDealSummaryRedisRepository(client redis.UniversalClient) domain.DealEscrowSummaryReadRepository {
	return &dealSummaryRedisRepository{
		client: client,
		prefix: "escrow:summary:",
		ttl:    time.Minute,
	}
}

func (r *dealSummaryRedisRepository) Save(ctx context.Context, summary *domain.DealEscrowSummary) error {
	if summary == nil {
		return nil
	}
	data, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.key(summary.DealID), data, r.ttl).Err()
}

func (r *dealSummaryRedisRepository) Get(ctx context.Context, dealID string) (*domain.DealEscrowSummary, error) {
	data, err := r.client.Get(ctx, r.key(dealID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var summary domain.DealEscrowSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

func (r *dealSummaryRedisRepository) Delete(ctx context.Context, dealID string) error {
	return r.client.Del(ctx, r.key(dealID)).Err()
}

func (r *dealSummaryRedisRepository) key(dealID string) string {
	return r.prefix + dealID
}
