package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/dtm-labs/client/dtmcli"
	"github.com/wyfcoding/escrowsettlement/internal/escrow/domain"
	"github.com/wyfcoding/pkg/contextx"
	"github.com/wyfcoding/pkg/messagequeue"
)

// TransferSagaPayload Saga 分支回调载荷
type TransferSagaPayload struct {
	OrderNo string `json:"order_no"`
}

// BankTransferInstruction 发给银行网关的划付指令
type BankTransferInstruction struct {
	OrderNo                  string `json:"order_no"`
	OrderType                string `json:"order_type"`
	EscrowAccountNo          string `json:"escrow_account_no"`
	Amount                   string `json:"amount"`
	BeneficiaryName          string `json:"beneficiary_name"`
	BeneficiaryAccountNumber string `json:"beneficiary_account_number"`
	BeneficiaryIFSCCode      string `json:"beneficiary_ifsc_code"`
	BeneficiaryBankName      string `json:"beneficiary_bank_name"`
}

const (
	transferOrderTypeDisbursement = "disbursement"
	transferOrderTypeRefund       = "refund"
)

// TransferExecutionManager 编排已复核单据的资金划付。
// 架构逻辑:
// 1. 本地扣账与银行划付指令经 DTM Saga 编排, 分支以子事务屏障保证幂等。
// 2. 银行回执 (成功带 UTR / 失败带原因) 由回调驱动终态落账。
type TransferExecutionManager struct {
	escrowRepo       domain.EscrowAccountRepository
	vaRepo           domain.VirtualAccountRepository
	paymentRepo      domain.PaymentTransactionRepository
	disbursementRepo domain.DisbursementRepository
	refundRepo       domain.RefundRepository
	publisher        messagequeue.EventPublisher
	logger           *slog.Logger
	dtmServer        string
	escrowSvcURL     string
	bankGatewayURL   string
}

// NewTransferExecutionManager 构造划付执行管理器
func NewTransferExecutionManager(
	escrowRepo domain.EscrowAccountRepository,
	vaRepo domain.VirtualAccountRepository,
	paymentRepo domain.PaymentTransactionRepository,
	disbursementRepo domain.DisbursementRepository,
	refundRepo domain.RefundRepository,
	publisher messagequeue.EventPublisher,
	logger *slog.Logger,
) *TransferExecutionManager {
	return &TransferExecutionManager{
		escrowRepo:       escrowRepo,
		vaRepo:           vaRepo,
		paymentRepo:      paymentRepo,
		disbursementRepo: disbursementRepo,
		refundRepo:       refundRepo,
		publisher:        publisher,
		logger:           logger.With("module", "transfer_execution"),
	}
}

// SetDTMServer 配置分布式事务协调器地址
func (m *TransferExecutionManager) SetDTMServer(addr string) {
	m.dtmServer = addr
}

// SetSvcURL 配置当前服务的基地址, 用于 Saga 分支回调注册
func (m *TransferExecutionManager) SetSvcURL(url string) {
	m.escrowSvcURL = url
}

// SetBankGatewayURL 配置银行合作方网关地址
func (m *TransferExecutionManager) SetBankGatewayURL(url string) {
	m.bankGatewayURL = url
}

// ExecuteDisbursement 启动已复核出款单的划付 Saga
// gid 由单号派生, 重复提交同一单据是幂等的
func (m *TransferExecutionManager) ExecuteDisbursement(ctx context.Context, disbursementNo string) error {
	disbursement, err := m.loadDisbursement(ctx, disbursementNo)
	if err != nil {
		return err
	}
	switch disbursement.Status {
	case domain.TransferStatusProcessing, domain.TransferStatusCompleted:
		return nil
	case domain.TransferStatusApproved:
	default:
		return domain.NewInvalidOperation("disbursement %s is %s, only approved can be executed", disbursementNo, disbursement.Status)
	}

	gid := "SAGA-DSB-" + disbursementNo
	branch := m.escrowSvcURL + "/api/v1/escrow/saga/disbursements"
	payload := &TransferSagaPayload{OrderNo: disbursementNo}
	instruction := &BankTransferInstruction{
		OrderNo:                  disbursement.DisbursementNo,
		OrderType:                transferOrderTypeDisbursement,
		EscrowAccountNo:          disbursement.EscrowAccountNo,
		Amount:                   disbursement.Amount.String(),
		BeneficiaryName:          disbursement.BeneficiaryName,
		BeneficiaryAccountNumber: disbursement.BeneficiaryAccountNumber,
		BeneficiaryIFSCCode:      disbursement.BeneficiaryIFSCCode,
		BeneficiaryBankName:      disbursement.BeneficiaryBankName,
	}

	saga := dtmcli.NewSaga(m.dtmServer, gid).
		Add(branch+"/debit", branch+"/credit", payload).
		Add(m.bankGatewayURL+"/api/v1/transfers", "", instruction)

	if err := saga.Submit(); err != nil {
		m.logger.ErrorContext(ctx, "failed to submit disbursement saga", "gid", gid, "error", err)
		return err
	}

	m.logger.InfoContext(ctx, "disbursement saga submitted", "gid", gid, "amount", disbursement.Amount.String())
	return nil
}

// SagaDebitDisbursement Saga 正向分支: 出款单转入 processing 并从托管账户扣款
// 余额不足时整个 Saga 回滚
func (m *TransferExecutionManager) SagaDebitDisbursement(ctx context.Context, barrier any, disbursementNo string) error {
	return m.escrowRepo.ExecWithBarrier(ctx, barrier, func(txCtx context.Context) error {
		disbursement, err := m.disbursementRepo.FindByNo(txCtx, disbursementNo)
		if err != nil {
			return err
		}
		if disbursement == nil {
			return domain.NewNotFound("disbursement %s not found", disbursementNo)
		}
		if err := disbursement.StartProcessing(ctx); err != nil {
			return err
		}
		escrow, err := m.escrowRepo.FindByAccountNo(txCtx, disbursement.EscrowAccountNo)
		if err != nil {
			return err
		}
		if escrow == nil {
			return domain.NewNotFound("escrow account %s not found", disbursement.EscrowAccountNo)
		}
		if err := escrow.Debit(disbursement.Amount); err != nil {
			return err
		}
		if err := m.escrowRepo.Update(txCtx, escrow); err != nil {
			return err
		}
		return m.disbursementRepo.Update(txCtx, disbursement)
	})
}

// SagaCreditDisbursement Saga 补偿分支: 回冲扣款并将出款单置为失败
func (m *TransferExecutionManager) SagaCreditDisbursement(ctx context.Context, barrier any, disbursementNo string) error {
	var failed *domain.Disbursement
	err := m.escrowRepo.ExecWithBarrier(ctx, barrier, func(txCtx context.Context) error {
		disbursement, err := m.disbursementRepo.FindByNo(txCtx, disbursementNo)
		if err != nil {
			return err
		}
		// 正向分支未执行过时无需补偿
		if disbursement == nil || disbursement.Status != domain.TransferStatusProcessing {
			return nil
		}
		escrow, err := m.escrowRepo.FindByAccountNo(txCtx, disbursement.EscrowAccountNo)
		if err != nil {
			return err
		}
		if escrow == nil {
			return domain.NewNotFound("escrow account %s not found", disbursement.EscrowAccountNo)
		}
		escrow.RestoreDebit(disbursement.Amount)
		if err := disbursement.Fail(ctx, "bank transfer instruction rejected"); err != nil {
			return err
		}
		if err := m.escrowRepo.Update(txCtx, escrow); err != nil {
			return err
		}
		if err := m.disbursementRepo.Update(txCtx, disbursement); err != nil {
			return err
		}
		failed = disbursement
		return nil
	})
	if err != nil {
		return err
	}
	if failed != nil {
		m.publishOrderEvent(ctx, domain.DisbursementFailedEventType, failed.DisbursementNo,
			failed.EscrowAccountNo, failed.DealID, failed, nil)
	}
	return nil
}

// CompleteDisbursement 银行划付成功回执: 记录 UTR 并落终态
// 末期 (tranche N of N) 出款完成时, 将该交易下全部 verified 虚拟账户划转终态
func (m *TransferExecutionManager) CompleteDisbursement(ctx context.Context, disbursementNo, utrNumber string) error {
	disbursement, err := m.loadDisbursement(ctx, disbursementNo)
	if err != nil {
		return err
	}
	if disbursement.Status == domain.TransferStatusCompleted {
		return nil
	}
	if err := disbursement.Complete(ctx, utrNumber); err != nil {
		return err
	}

	err = m.escrowRepo.WithTx(ctx, func(txCtx context.Context) error {
		if err := m.disbursementRepo.Update(txCtx, disbursement); err != nil {
			return err
		}
		if disbursement.TrancheNumber == disbursement.TrancheOf {
			if err := m.markDealFundsTransferred(ctx, txCtx, disbursement.DealID); err != nil {
				return err
			}
		}
		if m.publisher == nil {
			return nil
		}
		event := domain.TransferOrderEvent{
			OrderNo:         disbursement.DisbursementNo,
			EscrowAccountNo: disbursement.EscrowAccountNo,
			DealID:          disbursement.DealID,
			Amount:          disbursement.Amount,
			Status:          disbursement.Status,
			Actor:           disbursement.ApprovedBy,
			OccurredAt:      time.Now(),
		}
		return m.publisher.PublishInTx(ctx, contextx.GetTx(txCtx), domain.DisbursementCompletedEventType, disbursement.DisbursementNo, event)
	})
	if err != nil {
		return err
	}

	m.logger.InfoContext(ctx, "disbursement completed",
		"disbursement_no", disbursement.DisbursementNo, "utr_number", utrNumber)
	return nil
}

// FailDisbursement 银行划付失败回执: 回冲扣款并落失败终态
func (m *TransferExecutionManager) FailDisbursement(ctx context.Context, disbursementNo, reason string) error {
	disbursement, err := m.loadDisbursement(ctx, disbursementNo)
	if err != nil {
		return err
	}
	if disbursement.Status == domain.TransferStatusFailed {
		return nil
	}

	escrow, err := m.escrowRepo.FindByAccountNo(ctx, disbursement.EscrowAccountNo)
	if err != nil {
		return domain.NewFetchError(err)
	}
	if escrow == nil {
		return domain.NewNotFound("escrow account %s not found", disbursement.EscrowAccountNo)
	}

	if err := disbursement.Fail(ctx, reason); err != nil {
		return err
	}
	escrow.RestoreDebit(disbursement.Amount)

	err = m.escrowRepo.WithTx(ctx, func(txCtx context.Context) error {
		if err := m.disbursementRepo.Update(txCtx, disbursement); err != nil {
			return err
		}
		return m.escrowRepo.Update(txCtx, escrow)
	})
	if err != nil {
		return err
	}
	m.publishOrderEvent(ctx, domain.DisbursementFailedEventType, disbursement.DisbursementNo,
		disbursement.EscrowAccountNo, disbursement.DealID, disbursement, nil)

	m.logger.WarnContext(ctx, "disbursement failed",
		"disbursement_no", disbursement.DisbursementNo, "reason", reason)
	return nil
}

// ExecuteRefund 启动已复核退款单的划付 Saga
func (m *TransferExecutionManager) ExecuteRefund(ctx context.Context, refundNo string) error {
	refund, err := m.loadRefund(ctx, refundNo)
	if err != nil {
		return err
	}
	switch refund.Status {
	case domain.TransferStatusProcessing, domain.TransferStatusCompleted:
		return nil
	case domain.TransferStatusApproved:
	default:
		return domain.NewInvalidOperation("refund %s is %s, only approved can be executed", refundNo, refund.Status)
	}

	beneficiaryName := ""
	if va, err := m.vaRepo.FindByVANumber(ctx, refund.VANumber); err == nil && va != nil {
		beneficiaryName = va.BeneficiaryName
	}

	gid := "SAGA-RFD-" + refundNo
	branch := m.escrowSvcURL + "/api/v1/escrow/saga/refunds"
	payload := &TransferSagaPayload{OrderNo: refundNo}
	instruction := &BankTransferInstruction{
		OrderNo:                  refund.RefundNo,
		OrderType:                transferOrderTypeRefund,
		EscrowAccountNo:          refund.EscrowAccountNo,
		Amount:                   refund.Amount.String(),
		BeneficiaryName:          beneficiaryName,
		BeneficiaryAccountNumber: refund.BeneficiaryAccountNumber,
		BeneficiaryIFSCCode:      refund.BeneficiaryIFSCCode,
		BeneficiaryBankName:      refund.BeneficiaryBankName,
	}

	saga := dtmcli.NewSaga(m.dtmServer, gid).
		Add(branch+"/debit", branch+"/credit", payload).
		Add(m.bankGatewayURL+"/api/v1/transfers", "", instruction)

	if err := saga.Submit(); err != nil {
		m.logger.ErrorContext(ctx, "failed to submit refund saga", "gid", gid, "error", err)
		return err
	}

	m.logger.InfoContext(ctx, "refund saga submitted", "gid", gid, "amount", refund.Amount.String())
	return nil
}

// SagaDebitRefund Saga 正向分支: 退款单转入 processing
// 已核验入账的资金从托管账户余额中扣除, 未核验的资金从未入账, 不动余额
func (m *TransferExecutionManager) SagaDebitRefund(ctx context.Context, barrier any, refundNo string) error {
	return m.escrowRepo.ExecWithBarrier(ctx, barrier, func(txCtx context.Context) error {
		refund, err := m.refundRepo.FindByNo(txCtx, refundNo)
		if err != nil {
			return err
		}
		if refund == nil {
			return domain.NewNotFound("refund %s not found", refundNo)
		}
		if err := refund.StartProcessing(ctx); err != nil {
			return err
		}
		va, err := m.vaRepo.FindByVANumber(txCtx, refund.VANumber)
		if err != nil {
			return err
		}
		if va == nil {
			return domain.NewNotFound("virtual account %s not found", refund.VANumber)
		}
		if va.Status == domain.VAStatusVerified {
			escrow, err := m.escrowRepo.FindByAccountNo(txCtx, refund.EscrowAccountNo)
			if err != nil {
				return err
			}
			if escrow == nil {
				return domain.NewNotFound("escrow account %s not found", refund.EscrowAccountNo)
			}
			if err := escrow.DeductRefund(refund.Amount); err != nil {
				return err
			}
			if err := m.escrowRepo.Update(txCtx, escrow); err != nil {
				return err
			}
		}
		return m.refundRepo.Update(txCtx, refund)
	})
}

// SagaCreditRefund Saga 补偿分支: 回冲退款扣账并将退款单置为失败
func (m *TransferExecutionManager) SagaCreditRefund(ctx context.Context, barrier any, refundNo string) error {
	var failed *domain.Refund
	err := m.escrowRepo.ExecWithBarrier(ctx, barrier, func(txCtx context.Context) error {
		refund, err := m.refundRepo.FindByNo(txCtx, refundNo)
		if err != nil {
			return err
		}
		if refund == nil || refund.Status != domain.TransferStatusProcessing {
			return nil
		}
		va, err := m.vaRepo.FindByVANumber(txCtx, refund.VANumber)
		if err != nil {
			return err
		}
		if va != nil && va.Status == domain.VAStatusVerified {
			escrow, err := m.escrowRepo.FindByAccountNo(txCtx, refund.EscrowAccountNo)
			if err != nil {
				return err
			}
			if escrow != nil {
				escrow.RestoreRefund(refund.Amount)
				if err := m.escrowRepo.Update(txCtx, escrow); err != nil {
					return err
				}
			}
		}
		if err := refund.Fail(ctx, "bank refund instruction rejected"); err != nil {
			return err
		}
		if err := m.refundRepo.Update(txCtx, refund); err != nil {
			return err
		}
		failed = refund
		return nil
	})
	if err != nil {
		return err
	}
	if failed != nil {
		m.publishOrderEvent(ctx, domain.RefundFailedEventType, failed.RefundNo,
			failed.EscrowAccountNo, failed.DealID, nil, failed)
	}
	return nil
}

// CompleteRefund 银行退款成功回执: 退款单/虚拟账户/原流水在同一事务内落终态
func (m *TransferExecutionManager) CompleteRefund(ctx context.Context, refundNo, utrNumber string) error {
	refund, err := m.loadRefund(ctx, refundNo)
	if err != nil {
		return err
	}
	if refund.Status == domain.TransferStatusCompleted {
		return nil
	}

	va, err := m.vaRepo.FindByVANumber(ctx, refund.VANumber)
	if err != nil {
		return domain.NewFetchError(err)
	}
	if va == nil {
		return domain.NewNotFound("virtual account %s not found", refund.VANumber)
	}
	payment, err := m.paymentRepo.FindByTransactionNo(ctx, refund.PaymentTransactionNo)
	if err != nil {
		return domain.NewFetchError(err)
	}
	if payment == nil {
		return domain.NewNotFound("payment transaction %s not found", refund.PaymentTransactionNo)
	}

	if err := refund.Complete(ctx, utrNumber); err != nil {
		return err
	}
	if err := va.MarkRefunded(ctx); err != nil {
		return err
	}
	if err := payment.MarkRefunded(utrNumber); err != nil {
		return err
	}

	err = m.escrowRepo.WithTx(ctx, func(txCtx context.Context) error {
		if err := m.refundRepo.Update(txCtx, refund); err != nil {
			return err
		}
		if err := m.vaRepo.Update(txCtx, va); err != nil {
			return err
		}
		if err := m.paymentRepo.Update(txCtx, payment); err != nil {
			return err
		}
		if m.publisher == nil {
			return nil
		}
		event := domain.TransferOrderEvent{
			OrderNo:         refund.RefundNo,
			EscrowAccountNo: refund.EscrowAccountNo,
			DealID:          refund.DealID,
			Amount:          refund.Amount,
			Status:          refund.Status,
			Actor:           refund.ApprovedBy,
			Reason:          string(refund.Reason),
			OccurredAt:      time.Now(),
		}
		return m.publisher.PublishInTx(ctx, contextx.GetTx(txCtx), domain.RefundCompletedEventType, refund.RefundNo, event)
	})
	if err != nil {
		return err
	}

	m.logger.InfoContext(ctx, "refund completed",
		"refund_no", refund.RefundNo, "va_number", refund.VANumber, "utr_number", utrNumber)
	return nil
}

// FailRefund 银行退款失败回执
func (m *TransferExecutionManager) FailRefund(ctx context.Context, refundNo, reason string) error {
	refund, err := m.loadRefund(ctx, refundNo)
	if err != nil {
		return err
	}
	if refund.Status == domain.TransferStatusFailed {
		return nil
	}

	va, err := m.vaRepo.FindByVANumber(ctx, refund.VANumber)
	if err != nil {
		return domain.NewFetchError(err)
	}

	if err := refund.Fail(ctx, reason); err != nil {
		return err
	}

	err = m.escrowRepo.WithTx(ctx, func(txCtx context.Context) error {
		if va != nil && va.Status == domain.VAStatusVerified {
			escrow, err := m.escrowRepo.FindByAccountNo(txCtx, refund.EscrowAccountNo)
			if err != nil {
				return err
			}
			if escrow != nil {
				escrow.RestoreRefund(refund.Amount)
				if err := m.escrowRepo.Update(txCtx, escrow); err != nil {
					return err
				}
			}
		}
		return m.refundRepo.Update(txCtx, refund)
	})
	if err != nil {
		return err
	}
	m.publishOrderEvent(ctx, domain.RefundFailedEventType, refund.RefundNo,
		refund.EscrowAccountNo, refund.DealID, nil, refund)

	m.logger.WarnContext(ctx, "refund failed", "refund_no", refund.RefundNo, "reason", reason)
	return nil
}

// markDealFundsTransferred 末期出款完成后, 交易下全部已核验虚拟账户落划转终态
func (m *TransferExecutionManager) markDealFundsTransferred(ctx, txCtx context.Context, dealID string) error {
	vas, err := m.vaRepo.FindByDealID(txCtx, dealID)
	if err != nil {
		return err
	}
	for _, va := range vas {
		if va.Status != domain.VAStatusVerified {
			continue
		}
		if err := va.MarkTransferred(ctx); err != nil {
			return err
		}
		if err := m.vaRepo.Update(txCtx, va); err != nil {
			return err
		}
	}
	return nil
}

func (m *TransferExecutionManager) loadDisbursement(ctx context.Context, disbursementNo string) (*domain.Disbursement, error) {
	disbursement, err := m.disbursementRepo.FindByNo(ctx, disbursementNo)
	if err != nil {
		return nil, domain.NewFetchError(err)
	}
	if disbursement == nil {
		return nil, domain.NewNotFound("disbursement %s not found", disbursementNo)
	}
	return disbursement, nil
}

func (m *TransferExecutionManager) loadRefund(ctx context.Context, refundNo string) (*domain.Refund, error) {
	refund, err := m.refundRepo.FindByNo(ctx, refundNo)
	if err != nil {
		return nil, domain.NewFetchError(err)
	}
	if refund == nil {
		return nil, domain.NewNotFound("refund %s not found", refundNo)
	}
	return refund, nil
}

func (m *TransferExecutionManager) publishOrderEvent(ctx context.Context, eventType, orderNo, escrowAccountNo, dealID string,
	disbursement *domain.Disbursement, refund *domain.Refund,
) {
	if m.publisher == nil {
		return
	}
	event := domain.TransferOrderEvent{
		OrderNo:         orderNo,
		EscrowAccountNo: escrowAccountNo,
		DealID:          dealID,
		OccurredAt:      time.Now(),
	}
	switch {
	case disbursement != nil:
		event.Amount = disbursement.Amount
		event.Status = disbursement.Status
		event.Reason = disbursement.FailureReason
	case refund != nil:
		event.Amount = refund.Amount
		event.Status = refund.Status
		event.Reason = refund.FailureReason
	}
	if err := m.publisher.Publish(ctx, eventType, orderNo, event); err != nil {
		m.logger.ErrorContext(ctx, "failed to publish transfer event",
			"event_type", eventType, "order_no", orderNo, "error", err)
	}
}
