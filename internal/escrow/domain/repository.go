package domain

import (
	"context"
	"time"
)

// EscrowAccountRepository 托管账户仓储接口
type EscrowAccountRepository interface {
	// Save 新建托管账户
	Save(ctx context.Context, account *EscrowAccount) error
	// Update 带乐观锁的整体更新, 版本不匹配返回错误
	Update(ctx context.Context, account *EscrowAccount) error
	// FindByAccountNo 按业务账号查询, 不存在返回 (nil, nil)
	FindByAccountNo(ctx context.Context, accountNo string) (*EscrowAccount, error)
	// FindByDealID 按交易查询唯一托管账户, 不存在返回 (nil, nil)
	FindByDealID(ctx context.Context, dealID string) (*EscrowAccount, error)
	// List 分页列出托管账户
	List(ctx context.Context, offset, limit int) ([]*EscrowAccount, int64, error)
	// WithTx 在事务内执行, 事务句柄经 context 传递给同事务内的其他仓储调用
	WithTx(ctx context.Context, fn func(txCtx context.Context) error) error
	// ExecWithBarrier 在 DTM 子事务屏障内执行, 拦截空补偿与重复请求
	ExecWithBarrier(ctx context.Context, barrier any, fn func(txCtx context.Context) error) error
}

// VirtualAccountRepository 虚拟账户仓储接口
type VirtualAccountRepository interface {
	// Save 新建虚拟账户
	Save(ctx context.Context, va *VirtualAccount) error
	// Update 带乐观锁的整体更新, 版本不匹配返回错误
	Update(ctx context.Context, va *VirtualAccount) error
	// FindByVANumber 按虚拟账号查询, 不存在返回 (nil, nil)
	FindByVANumber(ctx context.Context, vaNumber string) (*VirtualAccount, error)
	// FindByCommitmentID 按认缴查询, 用于一认缴一户的去重
	FindByCommitmentID(ctx context.Context, commitmentID string) (*VirtualAccount, error)
	// FindByDealID 列出一笔交易下全部虚拟账户
	FindByDealID(ctx context.Context, dealID string) ([]*VirtualAccount, error)
	// FindByEscrowAccountNo 列出托管账户下全部虚拟账户
	FindByEscrowAccountNo(ctx context.Context, escrowAccountNo string) ([]*VirtualAccount, error)
	// ExpireDue 批量过期: active 且已过有效期的账户一次性置为 expired, 返回行数
	ExpireDue(ctx context.Context, now time.Time) (int64, error)
	// WithTx 在事务内执行
	WithTx(ctx context.Context, fn func(txCtx context.Context) error) error
}

// PaymentTransactionRepository 入金流水仓储接口, 流水只增不删
type PaymentTransactionRepository interface {
	// Save 追加一笔流水
	Save(ctx context.Context, payment *PaymentTransaction) error
	// Update 仅用于追加核验/退款元数据
	Update(ctx context.Context, payment *PaymentTransaction) error
	// FindByTransactionNo 按流水号查询, 不存在返回 (nil, nil)
	FindByTransactionNo(ctx context.Context, transactionNo string) (*PaymentTransaction, error)
	// FindByVANumber 按虚拟账号列出流水, 新到旧
	FindByVANumber(ctx context.Context, vaNumber string) ([]*PaymentTransaction, error)
	// FindByUTR 按银行流水号查询, 用于入金通知去重
	FindByUTR(ctx context.Context, utrNumber string) (*PaymentTransaction, error)
	// FindByDealID 分页列出一笔交易下的流水
	FindByDealID(ctx context.Context, dealID string, offset, limit int) ([]*PaymentTransaction, int64, error)
}

// DisbursementRepository 出款单仓储接口
type DisbursementRepository interface {
	// Save 新建出款单
	Save(ctx context.Context, disbursement *Disbursement) error
	// Update 整体更新
	Update(ctx context.Context, disbursement *Disbursement) error
	// FindByNo 按单号查询, 不存在返回 (nil, nil)
	FindByNo(ctx context.Context, disbursementNo string) (*Disbursement, error)
	// FindByDealID 分页列出一笔交易下的出款单
	FindByDealID(ctx context.Context, dealID string, offset, limit int) ([]*Disbursement, int64, error)
	// FindPendingApproval 分页列出待复核出款单, 旧到新
	FindPendingApproval(ctx context.Context, offset, limit int) ([]*Disbursement, int64, error)
}

// RefundRepository 退款单仓储接口
type RefundRepository interface {
	// Save 新建退款单
	Save(ctx context.Context, refund *Refund) error
	// Update 整体更新
	Update(ctx context.Context, refund *Refund) error
	// FindByNo 按单号查询, 不存在返回 (nil, nil)
	FindByNo(ctx context.Context, refundNo string) (*Refund, error)
	// FindByDealID 分页列出一笔交易下的退款单
	FindByDealID(ctx context.Context, dealID string, offset, limit int) ([]*Refund, int64, error)
	// FindPendingApproval 分页列出待复核退款单, 旧到新
	FindPendingApproval(ctx context.Context, offset, limit int) ([]*Refund, int64, error)
}

// EscrowAccountReadRepository 托管账户读模型缓存
type EscrowAccountReadRepository interface {
	Save(ctx context.Context, account *EscrowAccount) error
	GetByAccountNo(ctx context.Context, accountNo string) (*EscrowAccount, error)
	GetByDealID(ctx context.Context, dealID string) (*EscrowAccount, error)
	Delete(ctx context.Context, account *EscrowAccount) error
}

// DealEscrowSummaryReadRepository 交易资金汇总读模型缓存
type DealEscrowSummaryReadRepository interface {
	Save(ctx context.Context, summary *DealEscrowSummary) error
	Get(ctx context.Context, dealID string) (*DealEscrowSummary, error)
	Delete(ctx context.Context, dealID string) error
}
