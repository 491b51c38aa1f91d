package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/escrowsettlement/internal/escrow/domain"
	"github.com/wyfcoding/pkg/messagequeue"
)

// TransferCommandService 处理出款与退款单的发起与复核
// 发起与复核是两次独立调用, 同一人不得复核自己发起的单据
type TransferCommandService struct {
	escrowRepo       domain.EscrowAccountRepository
	vaRepo           domain.VirtualAccountRepository
	paymentRepo      domain.PaymentTransactionRepository
	disbursementRepo domain.DisbursementRepository
	refundRepo       domain.RefundRepository
	publisher        messagequeue.EventPublisher
	logger           *slog.Logger
}

// NewTransferCommandService 创建出款/退款命令服务
func NewTransferCommandService(
	escrowRepo domain.EscrowAccountRepository,
	vaRepo domain.VirtualAccountRepository,
	paymentRepo domain.PaymentTransactionRepository,
	disbursementRepo domain.DisbursementRepository,
	refundRepo domain.RefundRepository,
	publisher messagequeue.EventPublisher,
	logger *slog.Logger,
) *TransferCommandService {
	return &TransferCommandService{
		escrowRepo:       escrowRepo,
		vaRepo:           vaRepo,
		paymentRepo:      paymentRepo,
		disbursementRepo: disbursementRepo,
		refundRepo:       refundRepo,
		publisher:        publisher,
		logger:           logger.With("module", "transfer_command"),
	}
}

// CreateDisbursementCommand 发起出款命令
type CreateDisbursementCommand struct {
	EscrowAccountNo string
	Amount          decimal.Decimal
	Beneficiary     domain.Beneficiary
	TrancheNumber   int
	TrancheOf       int
	RequestedBy     string
}

// CreateDisbursement 发起出款申请
// 金额以托管账户当前余额为闸口, 超出即拒绝, 不允许透支排队
func (s *TransferCommandService) CreateDisbursement(ctx context.Context, cmd CreateDisbursementCommand) (*domain.Disbursement, error) {
	if !cmd.Amount.GreaterThan(decimal.Zero) {
		return nil, domain.NewInvalidOperation("disbursement amount must be positive")
	}
	if cmd.RequestedBy == "" {
		return nil, domain.NewInvalidOperation("requested by is required")
	}

	escrow, err := s.escrowRepo.FindByAccountNo(ctx, cmd.EscrowAccountNo)
	if err != nil {
		return nil, domain.NewFetchError(err)
	}
	if escrow == nil {
		return nil, domain.NewNotFound("escrow account %s not found", cmd.EscrowAccountNo)
	}
	if !escrow.IsActive() {
		return nil, domain.NewInvalidOperation("escrow account %s is %s, cannot disburse", escrow.AccountNo, escrow.Status)
	}
	if cmd.Amount.GreaterThan(escrow.CurrentBalance) {
		return nil, domain.NewInsufficientBalance(cmd.Amount, escrow.CurrentBalance)
	}

	trancheNumber, trancheOf := cmd.TrancheNumber, cmd.TrancheOf
	if trancheNumber <= 0 {
		trancheNumber = 1
	}
	if trancheOf <= 0 {
		trancheOf = trancheNumber
	}

	disbursement := domain.NewDisbursement(escrow.AccountNo, escrow.DealID, cmd.Amount,
		cmd.Beneficiary, trancheNumber, trancheOf, cmd.RequestedBy)

	err = s.disbursementRepo.Save(ctx, disbursement)
	if err != nil {
		return nil, err
	}
	s.publishTransferEvent(ctx, domain.DisbursementRequestedEventType, disbursement.DisbursementNo,
		escrow.AccountNo, escrow.DealID, cmd.Amount, disbursement.Status, cmd.RequestedBy, "")

	s.logger.InfoContext(ctx, "disbursement requested",
		"disbursement_no", disbursement.DisbursementNo, "deal_id", disbursement.DealID,
		"amount", disbursement.Amount.String(), "tranche", trancheNumber, "tranche_of", trancheOf,
		"requested_by", cmd.RequestedBy)
	return disbursement, nil
}

// ApproveDisbursement 复核通过出款单
func (s *TransferCommandService) ApproveDisbursement(ctx context.Context, disbursementNo, approver, remark string) (*domain.Disbursement, error) {
	disbursement, err := s.loadDisbursement(ctx, disbursementNo)
	if err != nil {
		return nil, err
	}
	if err := disbursement.Approve(ctx, approver, remark); err != nil {
		return nil, err
	}
	if err := s.disbursementRepo.Update(ctx, disbursement); err != nil {
		return nil, err
	}
	s.publishTransferEvent(ctx, domain.DisbursementApprovedEventType, disbursement.DisbursementNo,
		disbursement.EscrowAccountNo, disbursement.DealID, disbursement.Amount, disbursement.Status, approver, remark)

	s.logger.InfoContext(ctx, "disbursement approved",
		"disbursement_no", disbursement.DisbursementNo, "approved_by", approver)
	return disbursement, nil
}

// RejectDisbursement 复核拒绝出款单
func (s *TransferCommandService) RejectDisbursement(ctx context.Context, disbursementNo, approver, remark string) (*domain.Disbursement, error) {
	disbursement, err := s.loadDisbursement(ctx, disbursementNo)
	if err != nil {
		return nil, err
	}
	if err := disbursement.Reject(ctx, approver, remark); err != nil {
		return nil, err
	}
	if err := s.disbursementRepo.Update(ctx, disbursement); err != nil {
		return nil, err
	}
	s.publishTransferEvent(ctx, domain.DisbursementRejectedEventType, disbursement.DisbursementNo,
		disbursement.EscrowAccountNo, disbursement.DealID, disbursement.Amount, disbursement.Status, approver, remark)

	s.logger.InfoContext(ctx, "disbursement rejected",
		"disbursement_no", disbursement.DisbursementNo, "rejected_by", approver)
	return disbursement, nil
}

// CreateRefundCommand 发起退款命令
type CreateRefundCommand struct {
	VANumber      string
	TransactionNo string
	Reason        domain.RefundReason
	RequestedBy   string
}

// CreateRefund 发起退款申请
// 退款收款方固定取原入金流水的付款方要素, 原路退回
func (s *TransferCommandService) CreateRefund(ctx context.Context, cmd CreateRefundCommand) (*domain.Refund, error) {
	if !cmd.Reason.Valid() {
		return nil, domain.NewInvalidOperation("unknown refund reason %q", string(cmd.Reason))
	}
	if cmd.RequestedBy == "" {
		return nil, domain.NewInvalidOperation("requested by is required")
	}

	va, err := s.vaRepo.FindByVANumber(ctx, cmd.VANumber)
	if err != nil {
		return nil, domain.NewFetchError(err)
	}
	if va == nil {
		return nil, domain.NewNotFound("virtual account %s not found", cmd.VANumber)
	}
	if !domain.CanTransition(va.Status, domain.VAStatusRefunded) {
		return nil, domain.NewInvalidOperation("virtual account %s is %s, cannot be refunded", va.VANumber, va.Status)
	}

	payment, err := s.paymentRepo.FindByTransactionNo(ctx, cmd.TransactionNo)
	if err != nil {
		return nil, domain.NewFetchError(err)
	}
	if payment == nil {
		return nil, domain.NewNotFound("payment transaction %s not found", cmd.TransactionNo)
	}
	if payment.VANumber != va.VANumber {
		return nil, domain.NewInvalidOperation("payment %s does not belong to virtual account %s", payment.TransactionNo, va.VANumber)
	}

	refund := domain.NewRefund(va, payment, cmd.Reason, cmd.RequestedBy)

	if err := s.refundRepo.Save(ctx, refund); err != nil {
		return nil, err
	}
	s.publishTransferEvent(ctx, domain.RefundRequestedEventType, refund.RefundNo,
		refund.EscrowAccountNo, refund.DealID, refund.Amount, refund.Status, cmd.RequestedBy, string(cmd.Reason))

	s.logger.InfoContext(ctx, "refund requested",
		"refund_no", refund.RefundNo, "va_number", refund.VANumber,
		"amount", refund.Amount.String(), "reason", refund.Reason, "requested_by", cmd.RequestedBy)
	return refund, nil
}

// ApproveRefund 复核通过退款单
func (s *TransferCommandService) ApproveRefund(ctx context.Context, refundNo, approver, remark string) (*domain.Refund, error) {
	refund, err := s.loadRefund(ctx, refundNo)
	if err != nil {
		return nil, err
	}
	if err := refund.Approve(ctx, approver, remark); err != nil {
		return nil, err
	}
	if err := s.refundRepo.Update(ctx, refund); err != nil {
		return nil, err
	}
	s.publishTransferEvent(ctx, domain.RefundApprovedEventType, refund.RefundNo,
		refund.EscrowAccountNo, refund.DealID, refund.Amount, refund.Status, approver, remark)

	s.logger.InfoContext(ctx, "refund approved", "refund_no", refund.RefundNo, "approved_by", approver)
	return refund, nil
}

// RejectRefund 复核拒绝退款单
func (s *TransferCommandService) RejectRefund(ctx context.Context, refundNo, approver, remark string) (*domain.Refund, error) {
	refund, err := s.loadRefund(ctx, refundNo)
	if err != nil {
		return nil, err
	}
	if err := refund.Reject(ctx, approver, remark); err != nil {
		return nil, err
	}
	if err := s.refundRepo.Update(ctx, refund); err != nil {
		return nil, err
	}
	s.publishTransferEvent(ctx, domain.RefundRejectedEventType, refund.RefundNo,
		refund.EscrowAccountNo, refund.DealID, refund.Amount, refund.Status, approver, remark)

	s.logger.InfoContext(ctx, "refund rejected", "refund_no", refund.RefundNo, "rejected_by", approver)
	return refund, nil
}

func (s *TransferCommandService) loadDisbursement(ctx context.Context, disbursementNo string) (*domain.Disbursement, error) {
	disbursement, err := s.disbursementRepo.FindByNo(ctx, disbursementNo)
	if err != nil {
		return nil, domain.NewFetchError(err)
	}
	if disbursement == nil {
		return nil, domain.NewNotFound("disbursement %s not found", disbursementNo)
	}
	return disbursement, nil
}

func (s *TransferCommandService) loadRefund(ctx context.Context, refundNo string) (*domain.Refund, error) {
	refund, err := s.refundRepo.FindByNo(ctx, refundNo)
	if err != nil {
		return nil, domain.NewFetchError(err)
	}
	if refund == nil {
		return nil, domain.NewNotFound("refund %s not found", refundNo)
	}
	return refund, nil
}

// publishTransferEvent 单据生命周期事件, 发布失败只告警不阻断审批流
func (s *TransferCommandService) publishTransferEvent(ctx context.Context, eventType, orderNo, escrowAccountNo, dealID string,
	amount decimal.Decimal, status domain.TransferStatus, actor, reason string,
) {
	if s.publisher == nil {
		return
	}
	event := domain.TransferOrderEvent{
		OrderNo:         orderNo,
		EscrowAccountNo: escrowAccountNo,
		DealID:          dealID,
		Amount:          amount,
		Status:          status,
		Actor:           actor,
		Reason:          reason,
		OccurredAt:      time.Now(),
	}
	if err := s.publisher.Publish(ctx, eventType, orderNo, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish transfer event",
			"event_type", eventType, "order_no", orderNo, "error", err)
	}
}
