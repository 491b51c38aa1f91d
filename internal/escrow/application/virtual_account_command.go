package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/escrowsettlement/internal/escrow/domain"
	"github.com/wyfcoding/pkg/contextx"
	"github.com/wyfcoding/pkg/messagequeue"
)

// VirtualAccountCommandService 处理虚拟账户分配与入金的写操作
type VirtualAccountCommandService struct {
	escrowRepo  domain.EscrowAccountRepository
	vaRepo      domain.VirtualAccountRepository
	paymentRepo domain.PaymentTransactionRepository
	publisher   messagequeue.EventPublisher
	logger      *slog.Logger
}

// NewVirtualAccountCommandService 创建虚拟账户命令服务
func NewVirtualAccountCommandService(
	escrowRepo domain.EscrowAccountRepository,
	vaRepo domain.VirtualAccountRepository,
	paymentRepo domain.PaymentTransactionRepository,
	publisher messagequeue.EventPublisher,
	logger *slog.Logger,
) *VirtualAccountCommandService {
	return &VirtualAccountCommandService{
		escrowRepo:  escrowRepo,
		vaRepo:      vaRepo,
		paymentRepo: paymentRepo,
		publisher:   publisher,
		logger:      logger.With("module", "virtual_account_command"),
	}
}

// CreateVirtualAccountCommand 分配虚拟账户命令
type CreateVirtualAccountCommand struct {
	EscrowAccountNo string
	InvestorID      string
	CommitmentID    string
	InvestorName    string
	ExpectedAmount  decimal.Decimal
	ValidityDays    int
}

// CreateVirtualAccount 为一笔认缴分配虚拟账户
// 仅 active 托管账户可开立虚拟账户, 一笔认缴最多一个虚拟账户
func (s *VirtualAccountCommandService) CreateVirtualAccount(ctx context.Context, cmd CreateVirtualAccountCommand) (*domain.VirtualAccount, error) {
	if cmd.InvestorID == "" || cmd.CommitmentID == "" {
		return nil, domain.NewInvalidOperation("investor id and commitment id are required")
	}
	if !cmd.ExpectedAmount.GreaterThan(decimal.Zero) {
		return nil, domain.NewInvalidOperation("expected amount must be positive")
	}

	escrow, err := s.escrowRepo.FindByAccountNo(ctx, cmd.EscrowAccountNo)
	if err != nil {
		return nil, domain.NewFetchError(err)
	}
	if escrow == nil {
		return nil, domain.NewNotFound("escrow account %s not found", cmd.EscrowAccountNo)
	}
	if !escrow.IsActive() {
		return nil, domain.NewInvalidOperation("escrow account %s is %s, virtual accounts require an active escrow", escrow.AccountNo, escrow.Status)
	}

	existing, err := s.vaRepo.FindByCommitmentID(ctx, cmd.CommitmentID)
	if err != nil {
		return nil, domain.NewFetchError(err)
	}
	if existing != nil {
		return nil, domain.NewInvalidOperation("commitment %s already has virtual account %s", cmd.CommitmentID, existing.VANumber)
	}

	expiresAt := domain.GenerateExpiry(cmd.ValidityDays)
	va := domain.NewVirtualAccount(escrow.AccountNo, escrow.DealID, cmd.InvestorID, cmd.CommitmentID,
		cmd.InvestorName, escrow.IFSCCode, cmd.ExpectedAmount, expiresAt)

	err = s.vaRepo.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.vaRepo.Save(txCtx, va); err != nil {
			return err
		}
		if s.publisher == nil {
			return nil
		}
		event := domain.VirtualAccountCreatedEvent{
			VANumber:        va.VANumber,
			EscrowAccountNo: va.EscrowAccountNo,
			DealID:          va.DealID,
			InvestorID:      va.InvestorID,
			CommitmentID:    va.CommitmentID,
			ExpectedAmount:  va.ExpectedAmount,
			ExpiresAt:       va.ExpiresAt,
			OccurredAt:      time.Now(),
		}
		return s.publisher.PublishInTx(ctx, contextx.GetTx(txCtx), domain.VirtualAccountCreatedEventType, va.VANumber, event)
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "virtual account created",
		"va_number", va.VANumber, "deal_id", va.DealID, "investor_id", va.InvestorID,
		"expected_amount", va.ExpectedAmount.String(), "expires_at", va.ExpiresAt)
	return va, nil
}

// RecordPaymentCommand 入金记账命令, 字段来自银行入金通知
type RecordPaymentCommand struct {
	VANumber            string
	Amount              decimal.Decimal
	PaymentMode         domain.PaymentMode
	UTRNumber           string
	SenderAccountNumber string
	SenderIFSCCode      string
	SenderBankName      string
}

// RecordPayment 记录一笔银行入金
// 同一 UTR 的重复通知幂等返回首次入账的流水;
// 虚拟账户仅 active 可收款, 金额不一致照常入账留待人工对账
func (s *VirtualAccountCommandService) RecordPayment(ctx context.Context, cmd RecordPaymentCommand) (*domain.PaymentTransaction, error) {
	if !cmd.Amount.GreaterThan(decimal.Zero) {
		return nil, domain.NewInvalidOperation("payment amount must be positive")
	}
	if cmd.UTRNumber != "" {
		existing, err := s.paymentRepo.FindByUTR(ctx, cmd.UTRNumber)
		if err != nil {
			return nil, domain.NewFetchError(err)
		}
		if existing != nil {
			s.logger.WarnContext(ctx, "duplicate payment notification ignored",
				"utr_number", cmd.UTRNumber, "transaction_no", existing.TransactionNo)
			return existing, nil
		}
	}

	va, err := s.loadVA(ctx, cmd.VANumber)
	if err != nil {
		return nil, err
	}
	if err := va.AcceptPayment(ctx, cmd.Amount, cmd.PaymentMode, cmd.UTRNumber); err != nil {
		return nil, err
	}

	payment := domain.NewPaymentTransaction(va, cmd.Amount, cmd.PaymentMode,
		cmd.UTRNumber, cmd.SenderAccountNumber, cmd.SenderIFSCCode, cmd.SenderBankName)

	err = s.vaRepo.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.paymentRepo.Save(txCtx, payment); err != nil {
			return err
		}
		if err := s.vaRepo.Update(txCtx, va); err != nil {
			return err
		}
		if s.publisher == nil {
			return nil
		}
		event := domain.PaymentRecordedEvent{
			TransactionNo:   payment.TransactionNo,
			VANumber:        payment.VANumber,
			DealID:          payment.DealID,
			InvestorID:      payment.InvestorID,
			Amount:          payment.Amount,
			UTRNumber:       payment.UTRNumber,
			IsAmountMatched: payment.IsAmountMatched,
			OccurredAt:      time.Now(),
		}
		return s.publisher.PublishInTx(ctx, contextx.GetTx(txCtx), domain.PaymentRecordedEventType, payment.VANumber, event)
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "payment recorded",
		"transaction_no", payment.TransactionNo, "va_number", payment.VANumber,
		"amount", payment.Amount.String(), "amount_matched", payment.IsAmountMatched)
	return payment, nil
}

// VerifyPaymentCommand 入金核验命令
type VerifyPaymentCommand struct {
	VANumber   string
	VerifiedBy string
}

// VerifyPayment 人工核验入金并将资金计入托管账户余额
// 实收金额与期望金额严格相等才放行; 核验通过与托管账户入账落在同一事务
func (s *VirtualAccountCommandService) VerifyPayment(ctx context.Context, cmd VerifyPaymentCommand) (*domain.VirtualAccount, error) {
	if cmd.VerifiedBy == "" {
		return nil, domain.NewInvalidOperation("verified by is required")
	}

	va, err := s.loadVA(ctx, cmd.VANumber)
	if err != nil {
		return nil, err
	}

	escrow, err := s.escrowRepo.FindByAccountNo(ctx, va.EscrowAccountNo)
	if err != nil {
		return nil, domain.NewFetchError(err)
	}
	if escrow == nil {
		return nil, domain.NewNotFound("escrow account %s not found", va.EscrowAccountNo)
	}

	payment, err := s.findPendingPayment(ctx, va.VANumber)
	if err != nil {
		return nil, err
	}

	if err := va.VerifyPayment(ctx, cmd.VerifiedBy); err != nil {
		return nil, err
	}
	if err := escrow.Credit(va.ReceivedAmount); err != nil {
		return nil, err
	}
	if err := payment.MarkVerified(cmd.VerifiedBy); err != nil {
		return nil, err
	}

	err = s.vaRepo.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.vaRepo.Update(txCtx, va); err != nil {
			return err
		}
		if err := s.escrowRepo.Update(txCtx, escrow); err != nil {
			return err
		}
		if err := s.paymentRepo.Update(txCtx, payment); err != nil {
			return err
		}
		if s.publisher == nil {
			return nil
		}
		event := domain.PaymentVerifiedEvent{
			TransactionNo:   payment.TransactionNo,
			VANumber:        va.VANumber,
			EscrowAccountNo: va.EscrowAccountNo,
			DealID:          va.DealID,
			Amount:          va.ReceivedAmount,
			VerifiedBy:      cmd.VerifiedBy,
			OccurredAt:      time.Now(),
		}
		return s.publisher.PublishInTx(ctx, contextx.GetTx(txCtx), domain.PaymentVerifiedEventType, va.VANumber, event)
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "payment verified",
		"va_number", va.VANumber, "transaction_no", payment.TransactionNo,
		"amount", va.ReceivedAmount.String(), "verified_by", cmd.VerifiedBy)
	return va, nil
}

func (s *VirtualAccountCommandService) loadVA(ctx context.Context, vaNumber string) (*domain.VirtualAccount, error) {
	if vaNumber == "" {
		return nil, domain.NewInvalidOperation("virtual account number is required")
	}
	va, err := s.vaRepo.FindByVANumber(ctx, vaNumber)
	if err != nil {
		return nil, domain.NewFetchError(err)
	}
	if va == nil {
		return nil, domain.NewNotFound("virtual account %s not found", vaNumber)
	}
	return va, nil
}

// findPendingPayment 取该虚拟账户下待核验的最新流水
func (s *VirtualAccountCommandService) findPendingPayment(ctx context.Context, vaNumber string) (*domain.PaymentTransaction, error) {
	payments, err := s.paymentRepo.FindByVANumber(ctx, vaNumber)
	if err != nil {
		return nil, domain.NewFetchError(err)
	}
	for _, p := range payments {
		if p.Status == domain.PaymentStatusReceived {
			return p, nil
		}
	}
	return nil, domain.NewNotFound("no pending payment transaction for virtual account %s", vaNumber)
}
