package application

import (
	"context"
	"log/slog"

	"github.com/wyfcoding/escrowsettlement/internal/escrow/domain"
)

// EscrowQueryService 处理资金托管模块的全部查询操作。
type EscrowQueryService struct {
	escrowRepo       domain.EscrowAccountRepository
	vaRepo           domain.VirtualAccountRepository
	paymentRepo      domain.PaymentTransactionRepository
	disbursementRepo domain.DisbursementRepository
	refundRepo       domain.RefundRepository
	summaryCache     domain.DealEscrowSummaryReadRepository
	logger           *slog.Logger
}

// NewEscrowQueryService 构造查询服务, summaryCache 可为 nil
func NewEscrowQueryService(
	escrowRepo domain.EscrowAccountRepository,
	vaRepo domain.VirtualAccountRepository,
	paymentRepo domain.PaymentTransactionRepository,
	disbursementRepo domain.DisbursementRepository,
	refundRepo domain.RefundRepository,
	summaryCache domain.DealEscrowSummaryReadRepository,
	logger *slog.Logger,
) *EscrowQueryService {
	return &EscrowQueryService{
		escrowRepo:       escrowRepo,
		vaRepo:           vaRepo,
		paymentRepo:      paymentRepo,
		disbursementRepo: disbursementRepo,
		refundRepo:       refundRepo,
		summaryCache:     summaryCache,
		logger:           logger.With("module", "escrow_query"),
	}
}

// GetEscrowAccount 按账号查询托管账户
func (q *EscrowQueryService) GetEscrowAccount(ctx context.Context, accountNo string) (*domain.EscrowAccount, error) {
	account, err := q.escrowRepo.FindByAccountNo(ctx, accountNo)
	if err != nil {
		return nil, domain.NewFetchError(err)
	}
	if account == nil {
		return nil, domain.NewNotFound("escrow account %s not found", accountNo)
	}
	return account, nil
}

// GetEscrowAccountByDeal 按交易查询托管账户
func (q *EscrowQueryService) GetEscrowAccountByDeal(ctx context.Context, dealID string) (*domain.EscrowAccount, error) {
	account, err := q.escrowRepo.FindByDealID(ctx, dealID)
	if err != nil {
		return nil, domain.NewFetchError(err)
	}
	if account == nil {
		return nil, domain.NewNotFound("escrow account for deal %s not found", dealID)
	}
	return account, nil
}

// ListEscrowAccounts 分页列出托管账户
func (q *EscrowQueryService) ListEscrowAccounts(ctx context.Context, offset, limit int) ([]*domain.EscrowAccount, int64, error) {
	accounts, total, err := q.escrowRepo.List(ctx, offset, limit)
	if err != nil {
		return nil, 0, domain.NewFetchError(err)
	}
	return accounts, total, nil
}

// GetVirtualAccount 按虚拟账号查询
func (q *EscrowQueryService) GetVirtualAccount(ctx context.Context, vaNumber string) (*domain.VirtualAccount, error) {
	va, err := q.vaRepo.FindByVANumber(ctx, vaNumber)
	if err != nil {
		return nil, domain.NewFetchError(err)
	}
	if va == nil {
		return nil, domain.NewNotFound("virtual account %s not found", vaNumber)
	}
	return va, nil
}

// ListVirtualAccountsByDeal 列出一笔交易下全部虚拟账户
func (q *EscrowQueryService) ListVirtualAccountsByDeal(ctx context.Context, dealID string) ([]*domain.VirtualAccount, error) {
	vas, err := q.vaRepo.FindByDealID(ctx, dealID)
	if err != nil {
		return nil, domain.NewFetchError(err)
	}
	return vas, nil
}

// GetDealEscrowSummary 查询交易维度募集汇总
// 缓存命中直接返回, 未命中实时归并后回填
func (q *EscrowQueryService) GetDealEscrowSummary(ctx context.Context, dealID string) (*domain.DealEscrowSummary, error) {
	if q.summaryCache != nil {
		if cached, err := q.summaryCache.Get(ctx, dealID); err == nil && cached != nil {
			return cached, nil
		}
	}

	account, err := q.GetEscrowAccountByDeal(ctx, dealID)
	if err != nil {
		return nil, err
	}
	vas, err := q.vaRepo.FindByDealID(ctx, dealID)
	if err != nil {
		return nil, domain.NewFetchError(err)
	}

	summary := domain.BuildDealEscrowSummary(account, vas)
	if q.summaryCache != nil {
		// Cache 写入失败不影响查询结果
		if err := q.summaryCache.Save(ctx, summary); err != nil {
			q.logger.WarnContext(ctx, "failed to cache deal summary", "deal_id", dealID, "error", err)
		}
	}
	return summary, nil
}

// GetPaymentTransaction 按流水号查询付款流水
func (q *EscrowQueryService) GetPaymentTransaction(ctx context.Context, transactionNo string) (*domain.PaymentTransaction, error) {
	payment, err := q.paymentRepo.FindByTransactionNo(ctx, transactionNo)
	if err != nil {
		return nil, domain.NewFetchError(err)
	}
	if payment == nil {
		return nil, domain.NewNotFound("payment transaction %s not found", transactionNo)
	}
	return payment, nil
}

// ListPaymentsByVA 按虚拟账号列出付款流水, 新到旧
func (q *EscrowQueryService) ListPaymentsByVA(ctx context.Context, vaNumber string) ([]*domain.PaymentTransaction, error) {
	payments, err := q.paymentRepo.FindByVANumber(ctx, vaNumber)
	if err != nil {
		return nil, domain.NewFetchError(err)
	}
	return payments, nil
}

// ListPaymentsByDeal 分页列出一笔交易下的付款流水
func (q *EscrowQueryService) ListPaymentsByDeal(ctx context.Context, dealID string, offset, limit int) ([]*domain.PaymentTransaction, int64, error) {
	payments, total, err := q.paymentRepo.FindByDealID(ctx, dealID, offset, limit)
	if err != nil {
		return nil, 0, domain.NewFetchError(err)
	}
	return payments, total, nil
}

// GetDisbursement 按单号查询出款单
func (q *EscrowQueryService) GetDisbursement(ctx context.Context, disbursementNo string) (*domain.Disbursement, error) {
	disbursement, err := q.disbursementRepo.FindByNo(ctx, disbursementNo)
	if err != nil {
		return nil, domain.NewFetchError(err)
	}
	if disbursement == nil {
		return nil, domain.NewNotFound("disbursement %s not found", disbursementNo)
	}
	return disbursement, nil
}

// ListDisbursementsByDeal 分页列出一笔交易下的出款单
func (q *EscrowQueryService) ListDisbursementsByDeal(ctx context.Context, dealID string, offset, limit int) ([]*domain.Disbursement, int64, error) {
	disbursements, total, err := q.disbursementRepo.FindByDealID(ctx, dealID, offset, limit)
	if err != nil {
		return nil, 0, domain.NewFetchError(err)
	}
	return disbursements, total, nil
}

// ListPendingDisbursements 分页列出待复核出款单
func (q *EscrowQueryService) ListPendingDisbursements(ctx context.Context, offset, limit int) ([]*domain.Disbursement, int64, error) {
	disbursements, total, err := q.disbursementRepo.FindPendingApproval(ctx, offset, limit)
	if err != nil {
		return nil, 0, domain.NewFetchError(err)
	}
	return disbursements, total, nil
}

// GetRefund 按单号查询退款单
func (q *EscrowQueryService) GetRefund(ctx context.Context, refundNo string) (*domain.Refund, error) {
	refund, err := q.refundRepo.FindByNo(ctx, refundNo)
	if err != nil {
		return nil, domain.NewFetchError(err)
	}
	if refund == nil {
		return nil, domain.NewNotFound("refund %s not found", refundNo)
	}
	return refund, nil
}

// ListRefundsByDeal 分页列出一笔交易下的退款单
func (q *EscrowQueryService) ListRefundsByDeal(ctx context.Context, dealID string, offset, limit int) ([]*domain.Refund, int64, error) {
	refunds, total, err := q.refundRepo.FindByDealID(ctx, dealID, offset, limit)
	if err != nil {
		return nil, 0, domain.NewFetchError(err)
	}
	return refunds, total, nil
}

// ListPendingRefunds 分页列出待复核退款单
func (q *EscrowQueryService) ListPendingRefunds(ctx context.Context, offset, limit int) ([]*domain.Refund, int64, error) {
	refunds, total, err := q.refundRepo.FindPendingApproval(ctx, offset, limit)
	if err != nil {
		return nil, 0, domain.NewFetchError(err)
	}
	return refunds, total, nil
}
